package engine

import (
	"github.com/ucg-engine/internal/algo"
	"github.com/ucg-engine/pkg/errors"
	"github.com/ucg-engine/pkg/plan"
	"github.com/ucg-engine/pkg/request"
	"github.com/ucg-engine/pkg/topology"
)

// hierPlanScore outranks a plugin's own default plans (tcp scores its
// entries at 100): Catalog.Add's equal-range absorb rule keeps whichever
// of two colliding plans scores higher as the first-class entry and
// folds the other in as its fallback, so this composition becomes the
// primary choice and the plugin's flat algorithm becomes the plan that
// runs once this one declines with Unsupported (no usable node
// topology). A deployment can still push either one ahead of the other
// through <COLL>_ATTR.
const hierPlanScore = 150

// registerHierarchicalPlans adds the engine's own topology-aware
// allreduce composition on top of whatever plugin plan already occupies
// the full message-size range, demonstrating the meta-op framework's
// purpose (§1.3, §4.F): chaining reduce-within-node ->
// allreduce-across-leaders -> bcast-within-node without teaching the
// ring allreduce algorithm anything about topology. It is folded in via
// plan.Catalog's equal-range absorb rule rather than its own first-class
// range, so the plugin's flat plan survives as its fallback.
func (g *Group) registerHierarchicalPlans() {
	p := &plan.Plan{
		Attr: plan.Attr{
			ID:      "engine.allreduce.hierarchical",
			Name:    "engine.allreduce.hierarchical",
			Domain:  "engine",
			Score:   hierPlanScore,
			Range:   plan.Range{Start: 0, End: plan.RangeMax},
			Prepare: g.hierAllreducePrepare,
		},
	}
	_ = g.plans.Add(plan.Allreduce, plan.Host, p)
}

// hierAllreducePrepare declines with Unsupported whenever the group's
// node topology doesn't cover this member, letting the catalog fall
// through to the flat ring allreduce a plugin registered.
func (g *Group) hierAllreducePrepare(rawArgs any) (plan.Op, error) {
	a, ok := rawArgs.(*algo.Args)
	if !ok {
		return nil, errors.New(errors.InvalidParam, "hierarchical allreduce prepare requires *algo.Args")
	}
	if g.topo == nil || g.topo.Node.State != topology.Enabled || g.topo.NodeLeader == nil {
		return nil, errors.ErrUnsupported
	}
	if a.VGroup.Size <= 1 || a.Count == 0 {
		return nil, errors.ErrUnsupported
	}

	node := g.topo.Node
	nodeVG := &algo.VGroup{MyRank: node.MyRank, Size: len(node.Members), RankMap: node.RankMap(), GroupID: g.id, Transport: g.transport}

	scratch := make([]byte, a.Count*int(a.Dt.Size))

	reduceOp, err := algo.NewReducePrepare()(&algo.Args{
		VGroup: nodeVG, Dt: a.Dt, Count: a.Count,
		SendBuf: a.SendBuf, RecvBuf: scratch, Root: 0, Op: a.Op,
	})
	if err != nil {
		return nil, err
	}
	children := []request.Child{newOpChild(reduceOp)}

	if g.topo.NodeLeader.State == topology.Enabled {
		leader := g.topo.NodeLeader
		leaderVG := &algo.VGroup{MyRank: leader.MyRank, Size: len(leader.Members), RankMap: leader.RankMap(), GroupID: g.id, Transport: g.transport}
		arOp, err := algo.NewAllreducePrepare()(&algo.Args{
			VGroup: leaderVG, Dt: a.Dt, Count: a.Count,
			SendBuf: scratch, RecvBuf: scratch, Op: a.Op,
		})
		if err != nil {
			return nil, err
		}
		children = append(children, newOpChild(arOp))
	}

	bcastOp, err := algo.NewBcastPrepare()(&algo.Args{
		VGroup: nodeVG, Dt: a.Dt, Count: a.Count,
		RecvBuf: scratch, Root: 0,
	})
	if err != nil {
		return nil, err
	}
	children = append(children, newOpChild(bcastOp))

	meta, status := request.NewMetaOp(children)
	if status.Failed() {
		return nil, status
	}
	return &hierAllreduceOp{meta: meta, scratch: scratch, final: a.RecvBuf, onComplete: a.OnComplete}, nil
}

// hierAllreduceOp wraps a meta-op sequencing the three phases above: on
// the meta-op's terminal OK it copies the node-local scratch buffer
// (every algorithm's true working buffer) into the caller's recvbuf,
// since the bcast phase only needed to land the result in scratch for
// every node member, not the caller's own buffer directly.
type hierAllreduceOp struct {
	meta       *request.MetaOp
	scratch    []byte
	final      []byte
	onComplete func()
	completed  bool
}

func (o *hierAllreduceOp) SetRequestID(id uint16) { o.meta.SetRequestID(id) }

func (o *hierAllreduceOp) Trigger() error {
	return o.observe(o.meta.Trigger())
}

func (o *hierAllreduceOp) Progress() error {
	return o.observe(o.meta.Progress())
}

func (o *hierAllreduceOp) observe(err error) error {
	st := toStatus(err)
	if st.Code == errors.OK && !o.completed {
		copy(o.final, o.scratch)
		o.completed = true
		if o.onComplete != nil {
			o.onComplete()
		}
	}
	return st
}

func (o *hierAllreduceOp) Discard() { o.meta.Discard() }

// opChild adapts a plan.Op into a request.Child for meta-op composition:
// plan.Op only exposes Trigger/Progress/Discard, while a meta-op's
// children additionally need a Status() it can inspect without
// re-triggering the child (§3: "All children share the parent's
// request-id", §4.F's meta-op protocol). It caches the status each
// Trigger/Progress call returns.
type opChild struct {
	op     plan.Op
	status *errors.Status
}

func newOpChild(op plan.Op) *opChild {
	return &opChild{op: op, status: errors.InProgressStatus()}
}

func (c *opChild) SetRequestID(id uint16) {
	if tagged, ok := c.op.(interface{ SetRequestID(uint16) }); ok {
		tagged.SetRequestID(id)
	}
}

// Trigger and Progress only return a non-nil error when the wrapped
// plan.Op reports a genuine failure: plan.Op always returns a non-nil
// *errors.Status even on success or in-progress, but MetaOp's Child
// contract (see scriptedChild in metaop_test.go) treats any non-nil
// Trigger/Progress return as a hard failure and consults Status() for
// everything else, so success and in-progress must collapse to nil here.
func (c *opChild) Trigger() error {
	c.status = toStatus(c.op.Trigger())
	if c.status.Failed() {
		return c.status
	}
	return nil
}

func (c *opChild) Progress() error {
	c.status = toStatus(c.op.Progress())
	if c.status.Failed() {
		return c.status
	}
	return nil
}

func (c *opChild) Status() *errors.Status { return c.status }

func (c *opChild) Discard() { c.op.Discard() }

func toStatus(err error) *errors.Status {
	if err == nil {
		return errors.Ok()
	}
	if s, ok := err.(*errors.Status); ok {
		return s
	}
	return errors.Wrap(errors.IOError, "op reported an error", err)
}
