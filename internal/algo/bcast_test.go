package algo

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ucg-engine/pkg/datatype"
)

func TestBcast_TreeDeliversRootDataToEveryRank(t *testing.T) {
	const size = 5
	const count = 4
	dt := datatype.Predefined(datatype.TagUint32)
	bus := newFakeBus()
	vgs := newFakeVGroups(bus, size, 7)

	want := []byte{1, 0, 0, 0, 2, 0, 0, 0, 3, 0, 0, 0, 4, 0, 0, 0}

	ops := make([]interface {
		Trigger() error
		Progress() error
	}, size)
	bufs := make([][]byte, size)
	for r := 0; r < size; r++ {
		bufs[r] = make([]byte, len(want))
		if r == 2 {
			copy(bufs[r], want)
		}
		args := &Args{VGroup: vgs[r], Dt: dt, Count: count, RecvBuf: bufs[r], Root: 2}
		op, err := NewBcastPrepare()(args)
		require.NoError(t, err)
		ops[r] = op
	}

	results := runToCompletion(ops)
	for r := 0; r < size; r++ {
		require.Falsef(t, results[r].Failed(), "rank %d: %v", r, results[r])
		require.Equal(t, want, bufs[r], "rank %d", r)
	}
}

func TestBcast_SingleRankIsNoop(t *testing.T) {
	dt := datatype.Predefined(datatype.TagUint8)
	bus := newFakeBus()
	vgs := newFakeVGroups(bus, 1, 1)

	buf := make([]byte, 4)
	op, err := NewBcastPrepare()(&Args{VGroup: vgs[0], Dt: dt, Count: 4, RecvBuf: buf, Root: 0})
	require.NoError(t, err)
	require.False(t, toStatus(op.Trigger()).Failed())
}
