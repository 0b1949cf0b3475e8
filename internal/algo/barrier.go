package algo

import (
	"github.com/ucg-engine/pkg/datatype"
	"github.com/ucg-engine/pkg/errors"
	"github.com/ucg-engine/pkg/p2p"
	"github.com/ucg-engine/pkg/plan"
)

// barrierOp implements the dissemination barrier (Hensgen, Finkel &
// Manber): ceil(log2(size)) rounds, each exchanging a zero-length
// message with a different pair of partners, needing no power-of-two
// group size.
type barrierOp struct {
	vg     *VGroup
	reqID  uint16
	step   int
	nSteps int
	cur    *phase
	status *errors.Status
}

// NewBarrierPrepare returns a plan.PrepareFunc for the dissemination
// barrier algorithm.
func NewBarrierPrepare() plan.PrepareFunc {
	return func(rawArgs any) (plan.Op, error) {
		a, ok := rawArgs.(*Args)
		if !ok {
			return nil, errors.New(errors.InvalidParam, "barrier prepare requires *algo.Args")
		}
		if a.VGroup.Size <= 1 {
			return &noopOp{}, nil
		}
		return &barrierOp{
			vg:     a.VGroup,
			nSteps: DisseminationSteps(a.VGroup.Size),
		}, nil
	}
}

func (o *barrierOp) SetRequestID(id uint16) { o.reqID = id }

func (o *barrierOp) Trigger() error {
	o.status = errors.InProgressStatus()
	o.step = 0
	o.cur = newPhase()
	return o.Progress()
}

func (o *barrierOp) Progress() error {
	if o.status.Failed() || o.status.Code == errors.OK {
		return o.status
	}

	for o.step < o.nSteps {
		sendToLocal, recvFromLocal := DisseminationPartners(o.vg.MyRank, o.vg.Size, o.step)
		sendTo := o.vg.GroupRank(sendToLocal)
		recvFrom := o.vg.GroupRank(recvFromLocal)
		my := o.vg.MyGroupRank()

		done, st := o.cur.run(o.vg.Transport, func(s *p2p.State) {
			s.Send(o.vg.Transport, nil, 0, datatype.Predefined(datatype.TagUint8), sendTo, tag(o.reqID, my, o.vg.GroupID))
			s.Recv(o.vg.Transport, nil, 0, datatype.Predefined(datatype.TagUint8), recvFrom, tag(o.reqID, recvFrom, o.vg.GroupID))
		})
		if st.Failed() {
			o.status = st
			return o.status
		}
		if !done {
			return o.status
		}
		o.step++
		o.cur = newPhase()
	}

	o.status = errors.Ok()
	return o.status
}

func (o *barrierOp) Discard() {}
