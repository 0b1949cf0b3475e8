package p2p

import (
	"github.com/ucg-engine/pkg/datatype"
	"github.com/ucg-engine/pkg/errors"
)

// Handle is an opaque reference to a posted, not-yet-complete
// operation. Its concrete type is defined by whichever Transport
// implementation issued it; the engine never inspects it, only passes
// it back to Test.
type Handle interface{}

// Transport is the abstract p2p interface a plugin binds; the core
// never implements one itself (§1: "the underlying point-to-point
// transport... the core consumes an abstract p2p interface").
type Transport interface {
	// ISend posts a send. A return of (nil, OK) means it completed
	// synchronously; (h, IN_PROGRESS) means h must be polled via Test.
	ISend(buf []byte, count int, dt *datatype.Datatype, peer int, tag uint64) (Handle, *errors.Status)
	// IRecv posts a receive with the same completion contract as ISend.
	IRecv(buf []byte, count int, dt *datatype.Datatype, peer int, tag uint64) (Handle, *errors.Status)
	// Test polls a previously returned Handle for completion.
	Test(h Handle) (done bool, status *errors.Status)
}

// State tracks one operation's in-flight sends/receives, per §4.C.
// Pending handles are kept in slices rather than a decremented
// integer counter so Testall can actually poll each one; Count methods
// expose len() as the counter the spec names.
type State struct {
	pendingSend []Handle
	pendingRecv []Handle
	status      *errors.Status
}

// NewState returns a fresh, empty in-flight state.
func NewState() *State {
	return &State{status: errors.Ok()}
}

// Send posts buf via t and tracks it if it doesn't complete
// synchronously.
func (s *State) Send(t Transport, buf []byte, count int, dt *datatype.Datatype, peer int, tag uint64) *errors.Status {
	if s.status.Failed() {
		return s.status
	}
	h, status := t.ISend(buf, count, dt, peer, tag)
	return s.trackPost(status, h, &s.pendingSend)
}

// Recv posts buf via t and tracks it if it doesn't complete
// synchronously.
func (s *State) Recv(t Transport, buf []byte, count int, dt *datatype.Datatype, peer int, tag uint64) *errors.Status {
	if s.status.Failed() {
		return s.status
	}
	h, status := t.IRecv(buf, count, dt, peer, tag)
	return s.trackPost(status, h, &s.pendingRecv)
}

func (s *State) trackPost(status *errors.Status, h Handle, pending *[]Handle) *errors.Status {
	if status.Failed() {
		s.status = status
		return status
	}
	if status.Code == errors.InProgress {
		*pending = append(*pending, h)
	}
	return status
}

// Testall polls every pending handle, returning OK once both counters
// reach zero, IN_PROGRESS while any remain, or the latched error if a
// transport completion reported one (terminal — once latched, Testall
// keeps returning it).
func (s *State) Testall(t Transport) *errors.Status {
	if s.status.Failed() {
		return s.status
	}
	s.pendingSend = s.drain(t, s.pendingSend)
	if s.status.Failed() {
		return s.status
	}
	s.pendingRecv = s.drain(t, s.pendingRecv)
	if s.status.Failed() {
		return s.status
	}
	if len(s.pendingSend) == 0 && len(s.pendingRecv) == 0 {
		return errors.Ok()
	}
	return errors.InProgressStatus()
}

func (s *State) drain(t Transport, handles []Handle) []Handle {
	remaining := handles[:0]
	for _, h := range handles {
		done, status := t.Test(h)
		if status.Failed() {
			s.status = status
			return nil
		}
		if !done {
			remaining = append(remaining, h)
		}
	}
	return remaining
}

// InflightSendCount returns the number of unacknowledged sends.
func (s *State) InflightSendCount() int { return len(s.pendingSend) }

// InflightRecvCount returns the number of unacknowledged receives.
func (s *State) InflightRecvCount() int { return len(s.pendingRecv) }
