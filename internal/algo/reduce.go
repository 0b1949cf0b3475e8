package algo

import (
	"github.com/ucg-engine/pkg/datatype"
	"github.com/ucg-engine/pkg/errors"
	"github.com/ucg-engine/pkg/p2p"
	"github.com/ucg-engine/pkg/plan"
)

// reduceOp implements a binary-tree reduce (KNomialTree, k=2) to
// Args.Root (§6: "reduce
// is internal-only at this revision" — internal/engine selects it for
// meta-op compositions such as reduce-within-node, §1.3). Every node
// receives one message per tree child, combines each into its
// accumulator with Args.Op, then forwards the accumulator to its
// parent (skipped at the root).
type reduceOp struct {
	vg        *VGroup
	dt        *datatype.Datatype
	op        *datatype.Op
	count     int
	accum     []byte // starts as a copy of SendBuf, ends holding the result at root
	parent    int    // group rank, -1 if none
	children  []int  // group ranks
	childBufs [][]byte
	reqID     uint16

	recvPhase *phase
	sendPhase *phase
	combined  bool
	status    *errors.Status
}

// NewReducePrepare returns a plan.PrepareFunc for the binary-tree
// reduce algorithm.
func NewReducePrepare() plan.PrepareFunc {
	return func(rawArgs any) (plan.Op, error) {
		a, ok := rawArgs.(*Args)
		if !ok {
			return nil, errors.New(errors.InvalidParam, "reduce prepare requires *algo.Args")
		}
		if a.VGroup.Size <= 1 || a.Count == 0 {
			if a.VGroup.Size == 1 && a.Count > 0 {
				copy(a.RecvBuf, a.SendBuf)
			}
			return &noopOp{}, nil
		}

		local := Rotate(a.VGroup.MyRank, a.Root, a.VGroup.Size)
		parentLocal, childrenLocal := KNomialTree(local, a.VGroup.Size, 2)

		op := &reduceOp{
			vg:    a.VGroup,
			dt:    a.Dt,
			op:    a.Op,
			count: a.Count,
			accum: append([]byte(nil), a.SendBuf...),
		}
		op.parent = -1
		if parentLocal >= 0 {
			op.parent = a.VGroup.GroupRank(Unrotate(parentLocal, a.Root, a.VGroup.Size))
		}
		for _, c := range childrenLocal {
			op.children = append(op.children, a.VGroup.GroupRank(Unrotate(c, a.Root, a.VGroup.Size)))
			op.childBufs = append(op.childBufs, make([]byte, int(a.Dt.Size)*a.Count))
		}
		if op.parent < 0 {
			// Root: the accumulator IS the caller's result buffer so the
			// final reduction lands exactly where the caller expects it.
			op.accum = a.RecvBuf
			copy(op.accum, a.SendBuf)
		}
		return op, nil
	}
}

func (o *reduceOp) SetRequestID(id uint16) { o.reqID = id }

func (o *reduceOp) Trigger() error {
	o.status = errors.InProgressStatus()
	o.recvPhase = newPhase()
	o.sendPhase = newPhase()
	return o.Progress()
}

func (o *reduceOp) Progress() error {
	if o.status.Failed() || o.status.Code == errors.OK {
		return o.status
	}

	if len(o.children) > 0 {
		done, st := o.recvPhase.run(o.vg.Transport, func(s *p2p.State) {
			for i, c := range o.children {
				s.Recv(o.vg.Transport, o.childBufs[i], o.count, o.dt, c, tag(o.reqID, c, o.vg.GroupID))
			}
		})
		if st.Failed() {
			o.status = st
			return o.status
		}
		if !done {
			return o.status
		}
		if !o.combined {
			for _, buf := range o.childBufs {
				if rst := datatype.Reduce(o.op, buf, o.accum, o.count, o.dt); rst.Failed() {
					o.status = rst
					return o.status
				}
			}
			o.combined = true
		}
	}

	if o.parent < 0 {
		o.status = errors.Ok()
		return o.status
	}

	done, st := o.sendPhase.run(o.vg.Transport, func(s *p2p.State) {
		my := o.vg.MyGroupRank()
		s.Send(o.vg.Transport, o.accum, o.count, o.dt, o.parent, tag(o.reqID, my, o.vg.GroupID))
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

func (o *reduceOp) Discard() {}
