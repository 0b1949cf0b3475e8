// Package request implements the request lifecycle (prepare/start/
// test/cleanup) and the meta-op sequencing framework that composite
// collectives build on, per §4.F.
package request

import (
	"github.com/ucg-engine/pkg/bitset"
	"github.com/ucg-engine/pkg/errors"
	"github.com/ucg-engine/pkg/plan"
)

// InPlace is an exported sentinel value for "alias the send side from
// the receive side". The collective constructors in pkg/ucg take their
// buffers as []byte, so InPlace cannot be passed as a buffer and no
// code compares against it: no collective aliases its send buffer from
// its receive buffer.
var InPlace = &struct{}{}

// CompletionFunc is the optional callback fired exactly once, with the
// request's final status, when it leaves the active state.
type CompletionFunc func(status *errors.Status)

// Base is the common request state embedded by every concrete op
// (plan-ops and meta-ops alike), per §3's Request(base) data model.
type Base struct {
	Status    *errors.Status
	GroupID   uint32
	RequestID uint16 // 0 means "not allocated"
	op        plan.Op
	onDone    CompletionFunc
	onRelease func(id uint16) // returns RequestID to the owning group's allocator
	active    bool
}

// NewBase wraps a prepared op in a fresh, not-yet-started request.
// Per the lifecycle diagram in §4.F, a created request starts with
// Status OK and no allocated id.
func NewBase(op plan.Op, groupID uint32, onRelease func(id uint16)) *Base {
	return &Base{
		Status:    errors.Ok(),
		GroupID:   groupID,
		op:        op,
		onRelease: onRelease,
	}
}

// SetCompletion installs the callback fired on this request's terminal
// transition; it must be called before Start.
func (b *Base) SetCompletion(fn CompletionFunc) {
	b.onDone = fn
}

// TaggedOp is optionally implemented by a plan.Op that needs the
// request id before Trigger runs — algorithms use it as the op-seq
// field of the p2p tag (§4.C) to keep concurrent collectives on the
// same group from cross-matching.
type TaggedOp interface {
	SetRequestID(id uint16)
}

// Start triggers the request, per §4.F's lifecycle rules: a non-OK
// request returns its latched status untouched; an already-active
// request is rejected; otherwise the id is allocated by the caller
// (via the group's IDAllocator, see Group.Start) before Start is invoked and the op's
// Trigger is called.
func (b *Base) Start(id uint16) *errors.Status {
	if b.Status.Failed() {
		return b.Status
	}
	if b.active {
		return errors.New(errors.InvalidParam, "request already started")
	}
	b.RequestID = id
	b.active = true
	b.Status = errors.InProgressStatus()
	if tagged, ok := b.op.(TaggedOp); ok {
		tagged.SetRequestID(id)
	}
	if err := b.op.Trigger(); err != nil {
		b.latch(toStatus(err))
		return b.Status
	}
	return b.Status
}

// Test advances the request one step if active; a non-active request
// returns its latched status untouched, matching "test on a
// non-active request returns its latched status without touching it".
func (b *Base) Test() *errors.Status {
	if !b.active {
		return b.Status
	}
	if err := b.op.Progress(); err != nil {
		b.latch(toStatus(err))
		return b.Status
	}
	if b.Status.Code != errors.InProgress {
		b.finish()
	}
	return b.Status
}

// latch records a terminal (non-IN_PROGRESS) status exactly once; a
// request's status is sticky once it leaves IN_PROGRESS (§4.F, §7).
func (b *Base) latch(status *errors.Status) {
	b.Status = status
	if status.Code != errors.InProgress {
		b.finish()
	}
}

// finish performs the on-terminal transition: release the request id,
// leave the active state, and fire the completion callback.
func (b *Base) finish() {
	if !b.active {
		return
	}
	b.active = false
	id := b.RequestID
	b.RequestID = 0
	if b.onRelease != nil && id != 0 {
		b.onRelease(id)
	}
	if b.onDone != nil {
		b.onDone(b.Status)
	}
}

// Active reports whether the request is on the progress list.
func (b *Base) Active() bool { return b.active }

// Cleanup releases the request. Per §4.F, cleanup on an active request
// returns IN_PROGRESS and does nothing; otherwise the op is discarded.
func (b *Base) Cleanup() *errors.Status {
	if b.active {
		return errors.InProgressStatus()
	}
	if b.op != nil {
		b.op.Discard()
		b.op = nil
	}
	return errors.Ok()
}

func toStatus(err error) *errors.Status {
	if err == nil {
		return errors.Ok()
	}
	if s, ok := err.(*errors.Status); ok {
		return s
	}
	return errors.Wrap(errors.IOError, "op reported an error", err)
}

// IDAllocator hands out the 16-bit rolling, never-zero request ids a
// group allocates at start and releases at completion (§3's Request-id
// allocation). Per SPEC_FULL §3 it also fails closed on wraparound
// into a still-outstanding id rather than silently reusing it, which
// the reference implementation's §9 open question leaves unresolved.
type IDAllocator struct {
	next     uint16
	outstand *bitset.Bitset
}

// NewIDAllocator creates an allocator for one group's request-id
// space.
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{next: 1, outstand: bitset.New(1 << 16)}
}

// Alloc returns the next free, non-zero id, or NO_RESOURCE if every
// id in the 16-bit space is currently outstanding.
func (a *IDAllocator) Alloc() (uint16, *errors.Status) {
	for i := 0; i < 1<<16; i++ {
		id := a.next
		a.next++
		if a.next == 0 {
			a.next = 1 // skip the reserved 0 value
		}
		if id == 0 {
			continue
		}
		if !a.outstand.Test(int(id)) {
			a.outstand.Set(int(id))
			return id, errors.Ok()
		}
	}
	return 0, errors.New(errors.NoResource, "no free request id: 65535 collectives already outstanding on this group")
}

// Release returns id to the free pool.
func (a *IDAllocator) Release(id uint16) {
	if id == 0 {
		return
	}
	a.outstand.Clear(int(id))
}

// Outstanding returns the number of ids currently allocated.
func (a *IDAllocator) Outstanding() int {
	return a.outstand.Count()
}
