package algo

import (
	"github.com/ucg-engine/pkg/errors"
	"github.com/ucg-engine/pkg/p2p"
	"github.com/ucg-engine/pkg/plan"
)

// alltoallvOp implements a flat, fully-pairwise alltoallv: every rank
// posts one send and one receive per peer (skipping itself) in a
// single batch. §4.D's plan-selection formula treats alltoallv's
// shape as size-independent the same way it does scatterv/gatherv, so
// there is no staged (e.g. pairwise-exchange-rounds) variant here.
type alltoallvOp struct {
	vg    *VGroup
	reqID uint16

	batch  *phase
	post   func(*p2p.State)
	status *errors.Status
}

// NewAlltoallvPrepare returns a plan.PrepareFunc for the flat
// pairwise alltoallv algorithm.
func NewAlltoallvPrepare() plan.PrepareFunc {
	return func(rawArgs any) (plan.Op, error) {
		a, ok := rawArgs.(*Args)
		if !ok {
			return nil, errors.New(errors.InvalidParam, "alltoallv prepare requires *algo.Args")
		}
		if a.VGroup.Size <= 1 {
			return &noopOp{}, nil
		}

		sz := int(a.Dt.Size)
		my := a.VGroup.MyGroupRank()
		op := &alltoallvOp{vg: a.VGroup}

		mySendLo := a.SendDispls[a.VGroup.MyRank] * sz
		mySendHi := mySendLo + a.SendCounts[a.VGroup.MyRank]*sz
		myRecvLo := a.RecvDispls[a.VGroup.MyRank] * sz
		myRecvHi := myRecvLo + a.RecvCounts[a.VGroup.MyRank]*sz
		copy(a.RecvBuf[myRecvLo:myRecvHi], a.SendBuf[mySendLo:mySendHi])

		op.post = func(s *p2p.State) {
			for i := 0; i < a.VGroup.Size; i++ {
				if i == a.VGroup.MyRank {
					continue
				}
				peer := a.VGroup.GroupRank(i)

				sLo := a.SendDispls[i] * sz
				sHi := sLo + a.SendCounts[i]*sz
				s.Send(a.VGroup.Transport, a.SendBuf[sLo:sHi], a.SendCounts[i], a.Dt, peer, tag(op.reqID, my, a.VGroup.GroupID))

				rLo := a.RecvDispls[i] * sz
				rHi := rLo + a.RecvCounts[i]*sz
				s.Recv(a.VGroup.Transport, a.RecvBuf[rLo:rHi], a.RecvCounts[i], a.Dt, peer, tag(op.reqID, peer, a.VGroup.GroupID))
			}
		}
		return op, nil
	}
}

func (o *alltoallvOp) SetRequestID(id uint16) { o.reqID = id }

func (o *alltoallvOp) Trigger() error {
	o.status = errors.InProgressStatus()
	o.batch = newPhase()
	return o.Progress()
}

func (o *alltoallvOp) Progress() error {
	if o.status.Failed() || o.status.Code == errors.OK {
		return o.status
	}
	done, st := o.batch.run(o.vg.Transport, o.post)
	if st.Failed() {
		o.status = st
		return o.status
	}
	if done {
		o.status = errors.Ok()
	}
	return o.status
}

func (o *alltoallvOp) Discard() {}
