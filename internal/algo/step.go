package algo

import (
	"github.com/ucg-engine/pkg/errors"
	"github.com/ucg-engine/pkg/p2p"
)

// phase posts one batch of sends/recvs exactly once across repeated
// re-entrant Progress calls, then polls until the batch drains. This
// is the "flag-driven re-entrant state machine" pattern of §4.I
// collapsed to its essence: a single pending/not-pending bit per
// batch instead of the full SEND/RECV/RECV_FROM_PARENT/SEND_TO_CHILD
// bitset, since every algorithm here only ever has one batch
// in flight at a time.
type phase struct {
	state  *p2p.State
	posted bool
}

func newPhase() *phase {
	return &phase{state: p2p.NewState()}
}

// run invokes post on its first call only (re-entry just re-polls),
// then drains. It returns (true, OK) once every posted send/recv in
// this batch has completed, (false, OK) while still draining, or
// (false, <error>) on a latched transport failure.
func (p *phase) run(t p2p.Transport, post func(*p2p.State)) (bool, *errors.Status) {
	if !p.posted {
		post(p.state)
		p.posted = true
	}
	st := p.state.Testall(t)
	if st.Failed() {
		return false, st
	}
	return st.Code == errors.OK, errors.Ok()
}

// tag builds this op's p2p tag for a message whose sender is
// senderGroupRank, using reqID as the op-seq disambiguator (§4.C).
func tag(reqID uint16, senderGroupRank int, groupID uint32) uint64 {
	return p2p.MakeTag(reqID, uint32(senderGroupRank), groupID)
}
