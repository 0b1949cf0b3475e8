package algo

import (
	"github.com/ucg-engine/pkg/datatype"
	"github.com/ucg-engine/pkg/errors"
	"github.com/ucg-engine/pkg/p2p"
	"github.com/ucg-engine/pkg/plan"
)

// gathervOp implements a flat-tree (linear) gatherv, the mirror of
// scattervOp: every non-root rank sends its whole SendBuf directly to
// Args.Root in one batch; Root posts one receive per other rank.
type gathervOp struct {
	vg    *VGroup
	reqID uint16

	recvPhase *phase
	post      func(*p2p.State)
	status    *errors.Status
}

// NewGathervPrepare returns a plan.PrepareFunc for the linear gatherv
// algorithm.
func NewGathervPrepare() plan.PrepareFunc {
	return func(rawArgs any) (plan.Op, error) {
		a, ok := rawArgs.(*Args)
		if !ok {
			return nil, errors.New(errors.InvalidParam, "gatherv prepare requires *algo.Args")
		}
		if a.VGroup.Size <= 1 {
			if a.VGroup.Size == 1 {
				copy(a.RecvBuf, a.SendBuf)
			}
			return &noopOp{}, nil
		}

		op := &gathervOp{vg: a.VGroup}
		sz := int(a.Dt.Size)
		if a.VGroup.MyRank == a.Root {
			op.post = func(s *p2p.State) {
				for i := 0; i < a.VGroup.Size; i++ {
					if i == a.Root {
						continue
					}
					lo := a.RecvDispls[i] * sz
					hi := lo + a.RecvCounts[i]*sz
					src := a.VGroup.GroupRank(i)
					s.Recv(a.VGroup.Transport, a.RecvBuf[lo:hi], a.RecvCounts[i], a.Dt, src, tag(op.reqID, src, a.VGroup.GroupID))
				}
			}
			lo := a.RecvDispls[a.Root] * sz
			hi := lo + a.RecvCounts[a.Root]*sz
			copy(a.RecvBuf[lo:hi], a.SendBuf)
		} else {
			root := a.VGroup.GroupRank(a.Root)
			op.post = func(s *p2p.State) {
				my := a.VGroup.MyGroupRank()
				s.Send(a.VGroup.Transport, a.SendBuf, a.Count, a.Dt, root, tag(op.reqID, my, a.VGroup.GroupID))
			}
		}
		return op, nil
	}
}

func (o *gathervOp) SetRequestID(id uint16) { o.reqID = id }

func (o *gathervOp) Trigger() error {
	o.status = errors.InProgressStatus()
	o.recvPhase = newPhase()
	return o.Progress()
}

func (o *gathervOp) Progress() error {
	if o.status.Failed() || o.status.Code == errors.OK {
		return o.status
	}
	done, st := o.recvPhase.run(o.vg.Transport, o.post)
	if st.Failed() {
		o.status = st
		return o.status
	}
	if done {
		o.status = errors.Ok()
	}
	return o.status
}

func (o *gathervOp) Discard() {}
