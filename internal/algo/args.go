package algo

import "github.com/ucg-engine/pkg/datatype"

// Args is the argument snapshot every algorithm's prepare function
// receives, cast from plan.PrepareFunc's `any` parameter. Fields
// unused by a given collective are left zero. No caller compares
// buffers against request.InPlace; SendBuf and RecvBuf are used as
// given.
type Args struct {
	VGroup *VGroup
	Dt     *datatype.Datatype
	Count  int

	SendBuf []byte
	RecvBuf []byte

	Root int // bcast, gatherv, scatterv, reduce

	Op *datatype.Op // allreduce, reduce

	// Variable-vector forms (scatterv/gatherv/alltoallv/allgatherv):
	// per-rank element counts and displacements, length == VGroup.Size.
	SendCounts []int
	SendDispls []int
	RecvCounts []int
	RecvDispls []int

	// OnComplete, if set, is invoked once the moment the collective's
	// own bookkeeping (not the request framework's) considers it done,
	// before status propagates back up through Progress. Only the
	// hierarchical allreduce composition in internal/engine invokes it;
	// the algorithms in this package ignore it.
	OnComplete func()
}

// recvCountFor returns the number of elements for this collective's
// buffers, defaulting to Count for fixed-count collectives.
func (a *Args) recvCountFor(rank int) int {
	if a.RecvCounts != nil {
		return a.RecvCounts[rank]
	}
	return a.Count
}
