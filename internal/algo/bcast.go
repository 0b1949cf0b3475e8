package algo

import (
	"github.com/ucg-engine/pkg/datatype"
	"github.com/ucg-engine/pkg/errors"
	"github.com/ucg-engine/pkg/p2p"
	"github.com/ucg-engine/pkg/plan"
)

// bcastOp implements a binary-tree broadcast (KNomialTree, k=2)
// rooted at Args.Root: the root's data reaches every rank in
// floor(log2(size)) hops, each rank receiving once from its tree
// parent and forwarding once to its tree children.
type bcastOp struct {
	vg       *VGroup
	dt       *datatype.Datatype
	count    int
	buf      []byte
	parent   int   // group rank, -1 if none
	children []int // group ranks
	reqID    uint16

	recvPhase *phase
	sendPhase *phase
	status    *errors.Status
}

// NewBcastPrepare returns a plan.PrepareFunc for the binary-tree
// broadcast algorithm.
func NewBcastPrepare() plan.PrepareFunc {
	return func(rawArgs any) (plan.Op, error) {
		a, ok := rawArgs.(*Args)
		if !ok {
			return nil, errors.New(errors.InvalidParam, "bcast prepare requires *algo.Args")
		}
		if a.VGroup.Size <= 1 || a.Count == 0 {
			return &noopOp{}, nil
		}

		local := Rotate(a.VGroup.MyRank, a.Root, a.VGroup.Size)
		parentLocal, childrenLocal := KNomialTree(local, a.VGroup.Size, 2)

		op := &bcastOp{
			vg:    a.VGroup,
			dt:    a.Dt,
			count: a.Count,
			buf:   a.RecvBuf,
		}
		if parentLocal < 0 {
			op.parent = -1
		} else {
			op.parent = a.VGroup.GroupRank(Unrotate(parentLocal, a.Root, a.VGroup.Size))
		}
		for _, c := range childrenLocal {
			op.children = append(op.children, a.VGroup.GroupRank(Unrotate(c, a.Root, a.VGroup.Size)))
		}
		return op, nil
	}
}

func (o *bcastOp) SetRequestID(id uint16) { o.reqID = id }

func (o *bcastOp) Trigger() error {
	o.status = errors.InProgressStatus()
	o.recvPhase = newPhase()
	o.sendPhase = newPhase()
	return o.Progress()
}

func (o *bcastOp) Progress() error {
	if o.status.Failed() || o.status.Code == errors.OK {
		return o.status
	}

	if o.parent >= 0 {
		done, st := o.recvPhase.run(o.vg.Transport, func(s *p2p.State) {
			s.Recv(o.vg.Transport, o.buf, o.count, o.dt, o.parent, tag(o.reqID, o.parent, o.vg.GroupID))
		})
		if st.Failed() {
			o.status = st
			return o.status
		}
		if !done {
			return o.status
		}
		o.parent = -1 // recv phase satisfied; don't re-run it on re-entry
	}

	done, st := o.sendPhase.run(o.vg.Transport, func(s *p2p.State) {
		my := o.vg.MyGroupRank()
		for _, c := range o.children {
			s.Send(o.vg.Transport, o.buf, o.count, o.dt, c, tag(o.reqID, my, o.vg.GroupID))
		}
	})
	if st.Failed() {
		o.status = st
		return o.status
	}
	if done {
		o.status = errors.Ok()
	}
	return o.status
}

func (o *bcastOp) Discard() {}

// noopOp completes immediately on Trigger; used for zero-member/
// zero-count collectives per §8's boundary behaviours ("count == 0:
// every collective short-circuits to OK; no p2p is posted").
type noopOp struct{}

func (noopOp) Trigger() error         { return errors.Ok() }
func (noopOp) Progress() error        { return errors.Ok() }
func (noopOp) Discard()               {}
func (noopOp) Status() *errors.Status { return errors.Ok() }
