package algo

import (
	"github.com/ucg-engine/pkg/datatype"
	"github.com/ucg-engine/pkg/errors"
	"github.com/ucg-engine/pkg/p2p"
	"github.com/ucg-engine/pkg/plan"
)

// scattervOp implements a flat-tree (linear) scatterv: Args.Root sends
// a distinct, individually-sized slice of SendBuf directly to every
// other rank in one batch; every other rank posts a single receive.
// §4.D's formula makes scatterv's plan selection size-independent, so
// unlike bcast there is no tree-depth reason to prefer a multi-hop
// shape here.
type scattervOp struct {
	vg     *VGroup
	dt     *datatype.Datatype
	reqID  uint16
	isRoot bool

	sendPhase *phase
	post      func(*p2p.State)
	status    *errors.Status
}

// NewScattervPrepare returns a plan.PrepareFunc for the linear
// scatterv algorithm.
func NewScattervPrepare() plan.PrepareFunc {
	return func(rawArgs any) (plan.Op, error) {
		a, ok := rawArgs.(*Args)
		if !ok {
			return nil, errors.New(errors.InvalidParam, "scatterv prepare requires *algo.Args")
		}
		if a.VGroup.Size <= 1 {
			if a.VGroup.Size == 1 {
				copy(a.RecvBuf, a.SendBuf)
			}
			return &noopOp{}, nil
		}

		op := &scattervOp{vg: a.VGroup, dt: a.Dt}
		sz := int(a.Dt.Size)
		if a.VGroup.MyRank == a.Root {
			op.isRoot = true
			op.post = func(s *p2p.State) {
				my := a.VGroup.MyGroupRank()
				for i := 0; i < a.VGroup.Size; i++ {
					if i == a.Root {
						continue
					}
					lo := a.SendDispls[i] * sz
					hi := lo + a.SendCounts[i]*sz
					dst := a.VGroup.GroupRank(i)
					s.Send(a.VGroup.Transport, a.SendBuf[lo:hi], a.SendCounts[i], a.Dt, dst, tag(op.reqID, my, a.VGroup.GroupID))
				}
			}
			lo := a.SendDispls[a.Root] * sz
			hi := lo + a.SendCounts[a.Root]*sz
			copy(a.RecvBuf, a.SendBuf[lo:hi])
		} else {
			root := a.VGroup.GroupRank(a.Root)
			op.post = func(s *p2p.State) {
				s.Recv(a.VGroup.Transport, a.RecvBuf, a.Count, a.Dt, root, tag(op.reqID, root, a.VGroup.GroupID))
			}
		}
		return op, nil
	}
}

func (o *scattervOp) SetRequestID(id uint16) { o.reqID = id }

func (o *scattervOp) Trigger() error {
	o.status = errors.InProgressStatus()
	o.sendPhase = newPhase()
	return o.Progress()
}

func (o *scattervOp) Progress() error {
	if o.status.Failed() || o.status.Code == errors.OK {
		return o.status
	}
	done, st := o.sendPhase.run(o.vg.Transport, o.post)
	if st.Failed() {
		o.status = st
		return o.status
	}
	if done {
		o.status = errors.Ok()
	}
	return o.status
}

func (o *scattervOp) Discard() {}
