package algo

import (
	"sync"

	"github.com/ucg-engine/pkg/datatype"
	"github.com/ucg-engine/pkg/errors"
	"github.com/ucg-engine/pkg/p2p"
	"github.com/ucg-engine/pkg/topology"
)

// fakeBus is an in-process, single-threaded "network" shared by every
// rank's fakeTransport in a test: ISend completes synchronously and
// appends to the destination rank's inbox, IRecv completes
// synchronously if a matching payload is already queued, otherwise it
// hands back a handle fakeTransport.Test re-polls. Good enough to
// drive the cooperative, non-blocking Progress loop every algorithm
// in this package implements.
type fakeBus struct {
	mu    sync.Mutex
	inbox map[int]map[uint64][][]byte
}

func newFakeBus() *fakeBus {
	return &fakeBus{inbox: make(map[int]map[uint64][][]byte)}
}

func (b *fakeBus) push(dst int, tag uint64, payload []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.inbox[dst] == nil {
		b.inbox[dst] = make(map[uint64][][]byte)
	}
	b.inbox[dst][tag] = append(b.inbox[dst][tag], payload)
}

func (b *fakeBus) pop(dst int, tag uint64) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q := b.inbox[dst][tag]
	if len(q) == 0 {
		return nil, false
	}
	b.inbox[dst][tag] = q[1:]
	return q[0], true
}

// fakeTransport is one rank's view of a fakeBus.
type fakeTransport struct {
	bus  *fakeBus
	rank int
}

type fakeRecvHandle struct {
	buf []byte
	tag uint64
}

func (t *fakeTransport) ISend(buf []byte, count int, dt *datatype.Datatype, peer int, tag uint64) (p2p.Handle, *errors.Status) {
	need := count * int(dt.Size)
	payload := make([]byte, need)
	copy(payload, buf[:need])
	t.bus.push(peer, tag, payload)
	return nil, errors.Ok()
}

func (t *fakeTransport) IRecv(buf []byte, count int, dt *datatype.Datatype, peer int, tag uint64) (p2p.Handle, *errors.Status) {
	need := count * int(dt.Size)
	if payload, ok := t.bus.pop(t.rank, tag); ok {
		copy(buf[:need], payload)
		return nil, errors.Ok()
	}
	return &fakeRecvHandle{buf: buf[:need], tag: tag}, errors.InProgressStatus()
}

func (t *fakeTransport) Test(h p2p.Handle) (bool, *errors.Status) {
	rh := h.(*fakeRecvHandle)
	if payload, ok := t.bus.pop(t.rank, rh.tag); ok {
		copy(rh.buf, payload)
		return true, errors.Ok()
	}
	return false, errors.Ok()
}

// runToCompletion drives every op's Trigger then repeatedly Progress
// in round-robin order until every op reports OK, a failure, or the
// round budget is exhausted (a stuck test should fail loudly, not
// hang).
func runToCompletion(ops []interface {
	Trigger() error
	Progress() error
}) []*errors.Status {
	results := make([]*errors.Status, len(ops))
	done := make([]bool, len(ops))

	for i, op := range ops {
		results[i] = toStatus(op.Trigger())
		if results[i].Code == errors.OK {
			done[i] = true
		}
	}

	for round := 0; round < 10000; round++ {
		allDone := true
		for i, op := range ops {
			if done[i] {
				continue
			}
			st := toStatus(op.Progress())
			results[i] = st
			if st.Failed() {
				done[i] = true
				continue
			}
			if st.Code == errors.OK {
				done[i] = true
				continue
			}
			allDone = false
		}
		if allDone {
			break
		}
	}
	return results
}

func toStatus(err error) *errors.Status {
	if err == nil {
		return errors.Ok()
	}
	if s, ok := err.(*errors.Status); ok {
		return s
	}
	return errors.New(errors.InvalidParam, err.Error())
}

func newFakeVGroups(bus *fakeBus, size int, groupID uint32) []*VGroup {
	vgs := make([]*VGroup, size)
	rm := topology.NewFull(size)
	for r := 0; r < size; r++ {
		vgs[r] = &VGroup{
			MyRank:    r,
			Size:      size,
			RankMap:   rm,
			GroupID:   groupID,
			Transport: &fakeTransport{bus: bus, rank: r},
		}
	}
	return vgs
}
