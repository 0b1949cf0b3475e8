package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRankMap_Full(t *testing.T) {
	rm := NewFull(4)
	assert.Equal(t, 4, rm.Size())
	assert.Equal(t, 2, rm.Eval(2))
	assert.Equal(t, InvalidRank, rm.Eval(4))
}

func TestRankMap_Strided(t *testing.T) {
	rm := NewStrided(10, 3, 4)
	assert.Equal(t, 10, rm.Eval(0))
	assert.Equal(t, 13, rm.Eval(1))
	assert.Equal(t, 19, rm.Eval(3))
	assert.Equal(t, InvalidRank, rm.Eval(-1))
}

func TestRankMap_Array(t *testing.T) {
	rm := NewArray([]int{7, 2, 9})
	assert.Equal(t, 3, rm.Size())
	assert.Equal(t, 2, rm.Eval(1))
	assert.Equal(t, InvalidRank, rm.Eval(5))
}

func TestRankMap_ArrayCopyIsIndependent(t *testing.T) {
	backing := []int{1, 2, 3}
	rm := NewArray(backing)
	backing[0] = 99
	assert.Equal(t, 1, rm.Eval(0))
}

func locs() []Location {
	// ranks 0,1 on node 0 socket 0; rank 2 on node 0 socket 1;
	// rank 3 on node 1 socket 2. All on subnet 0.
	return []Location{
		{SubnetID: 0, NodeID: 0, SocketID: 0},
		{SubnetID: 0, NodeID: 0, SocketID: 0},
		{SubnetID: 0, NodeID: 0, SocketID: 1},
		{SubnetID: 0, NodeID: 1, SocketID: 2},
	}
}

func TestBuild_NodeSubgroup(t *testing.T) {
	topo := Build(locs(), 0)

	assert.Equal(t, Enabled, topo.Node.State)
	assert.Equal(t, []int{0, 1, 2}, topo.Node.Members)
	assert.Equal(t, 0, topo.Node.MyRank)
}

func TestBuild_NodeLeader(t *testing.T) {
	topo := Build(locs(), 0)
	assert.Equal(t, Enabled, topo.NodeLeader.State)

	topo1 := Build(locs(), 1)
	assert.Equal(t, Disabled, topo1.NodeLeader.State)

	topo3 := Build(locs(), 3)
	assert.Equal(t, Enabled, topo3.NodeLeader.State)
}

func TestBuild_SocketSubgroupIsolatesByKey(t *testing.T) {
	topo := Build(locs(), 2)
	assert.Equal(t, Enabled, topo.Socket.State)
	assert.Equal(t, []int{2}, topo.Socket.Members)
}

func TestBuild_UnsupportedWhenLocationMissing(t *testing.T) {
	locations := locs()
	locations[0].NodeID = Unknown

	topo := Build(locations, 0)
	assert.Equal(t, Unsupported, topo.Node.State)
	assert.Equal(t, Unsupported, topo.NodeLeader.State)
}

func TestSubgroup_RankMapTranslatesToGroupRanks(t *testing.T) {
	topo := Build(locs(), 1)
	rm := topo.Node.RankMap()
	assert.Equal(t, 1, rm.Eval(topo.Node.MyRank))
}
