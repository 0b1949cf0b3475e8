// Package ucg is the public façade: the seven collectives of the
// external operation set (§6 — reduce stays internal-only, selected
// only as a building block by internal/engine's hierarchical
// compositions), each a thin request_<coll>_init-style constructor
// over a *engine.Group. Start/Test/Cleanup are *request.Base's own
// methods; this package only knows how to build the Args a given
// collective needs and ask the group to prepare a matching op.
package ucg

import (
	"github.com/ucg-engine/internal/algo"
	"github.com/ucg-engine/internal/engine"
	"github.com/ucg-engine/pkg/datatype"
	"github.com/ucg-engine/pkg/errors"
	"github.com/ucg-engine/pkg/plan"
	"github.com/ucg-engine/pkg/request"
)

// InPlace re-exports request.InPlace. The constructors below take
// []byte buffers and never consult it; none of them aliases a send
// buffer from the receive buffer.
var InPlace = request.InPlace

// Request wraps a prepared, not-yet-started collective. Start/Test/
// Cleanup map directly onto request_start/request_test/request_cleanup
// (§6); OnComplete installs a completion callback, matching "completion
// callbacks receive the final status as an argument" (§7).
type Request struct {
	base  *request.Base
	group *engine.Group
}

// Start triggers the collective, per request_start.
func (r *Request) Start() *errors.Status { return r.group.Start(r.base) }

// Test advances and returns the request's current status, per
// request_test.
func (r *Request) Test() *errors.Status { return r.base.Test() }

// Cleanup releases the request, per request_cleanup. Returns
// IN_PROGRESS and does nothing while the request is still active.
func (r *Request) Cleanup() *errors.Status { return r.base.Cleanup() }

// OnComplete installs the completion callback; must be called before
// Start.
func (r *Request) OnComplete(fn func(status *errors.Status)) {
	r.base.SetCompletion(fn)
}

func prepare(g *engine.Group, coll plan.CollType, a *algo.Args) (*Request, *errors.Status) {
	base, status := g.Prepare(coll, plan.Host, a)
	if status.Failed() {
		return nil, status
	}
	return &Request{base: base, group: g}, errors.Ok()
}

// Bcast broadcasts count elements of dt from root's recvbuf into every
// other member's recvbuf; there is no separate send buffer.
func Bcast(g *engine.Group, dt *datatype.Datatype, count int, root int, recvbuf []byte) (*Request, *errors.Status) {
	return prepare(g, plan.Bcast, &algo.Args{Dt: dt, Count: count, Root: root, RecvBuf: recvbuf})
}

// Allreduce combines count elements of dt from every member's sendbuf
// with op, landing the identical result in every member's recvbuf.
func Allreduce(g *engine.Group, dt *datatype.Datatype, count int, op *datatype.Op, sendbuf, recvbuf []byte) (*Request, *errors.Status) {
	return prepare(g, plan.Allreduce, &algo.Args{Dt: dt, Count: count, Op: op, SendBuf: sendbuf, RecvBuf: recvbuf})
}

// Barrier blocks every member until all members have entered it.
func Barrier(g *engine.Group) (*Request, *errors.Status) {
	return prepare(g, plan.Barrier, &algo.Args{})
}

// Alltoallv exchanges per-pair variable-length slices of dt, sendcounts/
// senddispls/recvcounts/recvdispls each indexed by group rank.
func Alltoallv(g *engine.Group, dt *datatype.Datatype, sendbuf []byte, sendcounts, senddispls []int, recvbuf []byte, recvcounts, recvdispls []int) (*Request, *errors.Status) {
	return prepare(g, plan.Alltoallv, &algo.Args{
		Dt: dt, SendBuf: sendbuf, SendCounts: sendcounts, SendDispls: senddispls,
		RecvBuf: recvbuf, RecvCounts: recvcounts, RecvDispls: recvdispls,
	})
}

// Scatterv distributes root's sendbuf, sliced per sendcounts/senddispls,
// one variable-length piece per member's recvbuf.
func Scatterv(g *engine.Group, dt *datatype.Datatype, root int, sendbuf []byte, sendcounts, senddispls []int, recvbuf []byte) (*Request, *errors.Status) {
	return prepare(g, plan.Scatterv, &algo.Args{
		Dt: dt, Root: root, SendBuf: sendbuf, SendCounts: sendcounts, SendDispls: senddispls, RecvBuf: recvbuf,
	})
}

// Gatherv collects every member's variable-length sendbuf into root's
// recvbuf, sliced per recvcounts/recvdispls.
func Gatherv(g *engine.Group, dt *datatype.Datatype, root int, sendbuf []byte, recvbuf []byte, recvcounts, recvdispls []int) (*Request, *errors.Status) {
	return prepare(g, plan.Gatherv, &algo.Args{
		Dt: dt, Root: root, SendBuf: sendbuf, RecvBuf: recvbuf, RecvCounts: recvcounts, RecvDispls: recvdispls,
	})
}

// Allgatherv collects every member's variable-length sendbuf into every
// member's recvbuf, sliced per recvcounts/recvdispls.
func Allgatherv(g *engine.Group, dt *datatype.Datatype, sendbuf []byte, recvbuf []byte, recvcounts, recvdispls []int) (*Request, *errors.Status) {
	return prepare(g, plan.Allgatherv, &algo.Args{
		Dt: dt, SendBuf: sendbuf, RecvBuf: recvbuf, RecvCounts: recvcounts, RecvDispls: recvdispls,
	})
}
