package algo

import (
	"github.com/ucg-engine/pkg/datatype"
	"github.com/ucg-engine/pkg/errors"
	"github.com/ucg-engine/pkg/p2p"
	"github.com/ucg-engine/pkg/plan"
)

// chunkBound is one ring-allreduce chunk's position within the
// logical element count, dividing it as evenly as possible across the
// ring.
type chunkBound struct {
	elemOffset int
	elemCount  int
}

func chunkBounds(count, size int) []chunkBound {
	bounds := make([]chunkBound, size)
	base := count / size
	rem := count % size
	offset := 0
	for i := 0; i < size; i++ {
		n := base
		if i < rem {
			n++
		}
		bounds[i] = chunkBound{elemOffset: offset, elemCount: n}
		offset += n
	}
	return bounds
}

// allreduceOp implements ring-allreduce: a reduce-scatter pass
// followed by an allgather pass, each size-1 ring steps, every step
// moving one chunk to the next rank. Unlike plain recursive doubling
// this needs no power-of-two group size and moves the same total
// byte volume regardless of size, the standard choice for
// bandwidth-bound large messages in this domain.
type allreduceOp struct {
	vg      *VGroup
	dt      *datatype.Datatype
	op      *datatype.Op
	count   int
	buf     []byte
	chunks  []chunkBound
	scratch []byte
	reqID   uint16

	step       int
	totalSteps int
	cur        *phase
	status     *errors.Status
}

// NewAllreducePrepare returns a plan.PrepareFunc for the ring
// reduce-scatter/allgather allreduce algorithm.
func NewAllreducePrepare() plan.PrepareFunc {
	return func(rawArgs any) (plan.Op, error) {
		a, ok := rawArgs.(*Args)
		if !ok {
			return nil, errors.New(errors.InvalidParam, "allreduce prepare requires *algo.Args")
		}
		if a.VGroup.Size <= 1 || a.Count == 0 {
			if a.VGroup.Size == 1 && a.Count > 0 {
				copy(a.RecvBuf, a.SendBuf)
			}
			return &noopOp{}, nil
		}

		chunks := chunkBounds(a.Count, a.VGroup.Size)
		maxElems := 0
		for _, c := range chunks {
			if c.elemCount > maxElems {
				maxElems = c.elemCount
			}
		}

		buf := a.RecvBuf
		copy(buf, a.SendBuf)

		return &allreduceOp{
			vg:         a.VGroup,
			dt:         a.Dt,
			op:         a.Op,
			count:      a.Count,
			buf:        buf,
			chunks:     chunks,
			scratch:    make([]byte, maxElems*int(a.Dt.Size)),
			totalSteps: 2 * (a.VGroup.Size - 1),
		}, nil
	}
}

func (o *allreduceOp) SetRequestID(id uint16) { o.reqID = id }

func (o *allreduceOp) Trigger() error {
	o.status = errors.InProgressStatus()
	o.step = 0
	o.cur = newPhase()
	return o.Progress()
}

func (o *allreduceOp) byteRange(c chunkBound) (lo, hi int) {
	sz := int(o.dt.Size)
	return c.elemOffset * sz, (c.elemOffset + c.elemCount) * sz
}

func (o *allreduceOp) Progress() error {
	if o.status.Failed() || o.status.Code == errors.OK {
		return o.status
	}

	size := o.vg.Size
	rank := o.vg.MyRank

	for o.step < o.totalSteps {
		reduceScatterPhase := o.step < size-1
		i := o.step
		if !reduceScatterPhase {
			i = o.step - (size - 1)
		}

		var sendIdx, recvIdx int
		if reduceScatterPhase {
			sendIdx = mod(rank-i, size)
			recvIdx = mod(rank-i-1, size)
		} else {
			sendIdx = mod(rank-i+1, size)
			recvIdx = mod(rank-i, size)
		}

		sendLo, sendHi := o.byteRange(o.chunks[sendIdx])
		recvChunk := o.chunks[recvIdx]
		recvLo, recvHi := o.byteRange(recvChunk)

		sendToLocal, recvFromLocal := RingNeighbors(rank, size)
		sendTo := o.vg.GroupRank(sendToLocal)
		recvFrom := o.vg.GroupRank(recvFromLocal)
		my := o.vg.MyGroupRank()

		done, st := o.cur.run(o.vg.Transport, func(s *p2p.State) {
			s.Send(o.vg.Transport, o.buf[sendLo:sendHi], o.chunks[sendIdx].elemCount, o.dt, sendTo, tag(o.reqID, my, o.vg.GroupID))
			s.Recv(o.vg.Transport, o.scratch[:recvHi-recvLo], recvChunk.elemCount, o.dt, recvFrom, tag(o.reqID, recvFrom, o.vg.GroupID))
		})
		if st.Failed() {
			o.status = st
			return o.status
		}
		if !done {
			return o.status
		}

		if reduceScatterPhase {
			if rst := datatype.Reduce(o.op, o.scratch[:recvHi-recvLo], o.buf[recvLo:recvHi], recvChunk.elemCount, o.dt); rst.Failed() {
				o.status = rst
				return o.status
			}
		} else {
			copy(o.buf[recvLo:recvHi], o.scratch[:recvHi-recvLo])
		}

		o.step++
		o.cur = newPhase()
	}

	o.status = errors.Ok()
	return o.status
}

func (o *allreduceOp) Discard() {}

func mod(a, b int) int {
	return ((a % b) + b) % b
}
