package request

import "github.com/ucg-engine/pkg/errors"

// MaxMetaOpChildren is the compile-time cap on a meta-op's child
// count (§4.F: "up to a fixed maximum of 8 children").
const MaxMetaOpChildren = 8

// Child is the minimal interface a meta-op drives: it must be a
// plan.Op (Trigger/Progress/Discard) that additionally exposes its own
// latched status and accepts the parent's request-id, since every
// child shares that id (§3: "All children share the parent's
// request-id").
type Child interface {
	SetRequestID(id uint16)
	Trigger() error
	Progress() error
	Status() *errors.Status
	Discard()
}

// MetaOp sequences up to MaxMetaOpChildren child ops, triggering each
// only when its predecessor has completed, per §4.F's protocol and
// §1.3's topology-aware compositions (e.g. reduce-within-node →
// allreduce-across-nodes → broadcast-within-node).
type MetaOp struct {
	ops        []Child
	nCompleted int
	triggered  bool
	requestID  uint16
	status     *errors.Status
}

// NewMetaOp creates a meta-op sequencing ops in order. len(ops) must
// not exceed MaxMetaOpChildren.
func NewMetaOp(ops []Child) (*MetaOp, *errors.Status) {
	if len(ops) > MaxMetaOpChildren {
		return nil, errors.New(errors.InvalidParam, "meta-op exceeds the maximum child count")
	}
	return &MetaOp{ops: ops, status: errors.Ok()}, errors.Ok()
}

// SetRequestID records the parent's id; Progress copies it into each
// child just before that child triggers.
func (m *MetaOp) SetRequestID(id uint16) {
	m.requestID = id
}

// Trigger starts the sequence. An empty meta-op (n_ops == 0) succeeds
// immediately, per §4.F.
func (m *MetaOp) Trigger() error {
	if len(m.ops) == 0 {
		m.status = errors.Ok()
		return m.status
	}
	m.nCompleted = 0
	m.triggered = false
	m.status = errors.InProgressStatus()
	return m.Progress()
}

// Progress advances the currently-running child, per §4.F's protocol:
// trigger the current child on first entry, then progress it; a child
// completing OK advances the cursor and, once every child is done,
// latches the parent OK; a child IN_PROGRESS propagates as-is; any
// child error latches the parent to that error.
func (m *MetaOp) Progress() error {
	if m.status.Code != errors.InProgress {
		return m.status
	}
	if m.nCompleted >= len(m.ops) {
		m.status = errors.Ok()
		return m.status
	}

	cur := m.ops[m.nCompleted]
	if !m.triggered {
		cur.SetRequestID(m.requestID)
		if err := cur.Trigger(); err != nil {
			m.status = toStatus(err)
			return m.status
		}
		m.triggered = true
	}
	if err := cur.Progress(); err != nil {
		m.status = toStatus(err)
		return m.status
	}

	childStatus := cur.Status()
	switch childStatus.Code {
	case errors.InProgress:
		return m.status
	case errors.OK:
		m.nCompleted++
		m.triggered = false
		if m.nCompleted >= len(m.ops) {
			m.status = errors.Ok()
		}
		return m.status
	default:
		m.status = childStatus
		return m.status
	}
}

// Status returns the meta-op's current latched status, letting it
// itself serve as a Child inside an outer meta-op.
func (m *MetaOp) Status() *errors.Status {
	return m.status
}

// Discard discards every child, in order, then releases the meta-op
// shell itself.
func (m *MetaOp) Discard() {
	for _, op := range m.ops {
		op.Discard()
	}
	m.ops = nil
}
