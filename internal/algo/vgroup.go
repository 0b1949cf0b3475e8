// Package algo implements the concrete collective algorithms that
// plug into the plan catalog via a plan.PrepareFunc, per §4.I: ring,
// binomial/k-nomial tree, and recursive-doubling iterators driving a
// flag-based, re-entrant step state machine over the abstract p2p
// transport.
package algo

import (
	"github.com/ucg-engine/pkg/p2p"
	"github.com/ucg-engine/pkg/topology"
)

// VGroup is the view an algorithm operates over: dense local ranks
// translated to the enclosing group's rank space, plus the group id
// used in the tag's group-id field and the transport algorithms post
// through.
type VGroup struct {
	MyRank    int
	Size      int
	RankMap   topology.RankMap
	GroupID   uint32
	Transport p2p.Transport
}

// GroupRank translates a local dense rank into the enclosing group's
// rank space, per §3's vgroup contract.
func (v *VGroup) GroupRank(localRank int) int {
	return v.RankMap.Eval(localRank)
}

// MyGroupRank is GroupRank(MyRank), the value other members put in
// the sender-rank field of a tag when they expect a message from us.
func (v *VGroup) MyGroupRank() int {
	return v.RankMap.Eval(v.MyRank)
}
