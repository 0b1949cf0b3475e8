package engine

import (
	"github.com/ucg-engine/internal/algo"
	"github.com/ucg-engine/internal/plugin"
	"github.com/ucg-engine/pkg/errors"
	"github.com/ucg-engine/pkg/p2p"
	"github.com/ucg-engine/pkg/plan"
	"github.com/ucg-engine/pkg/planattr"
	"github.com/ucg-engine/pkg/request"
	"github.com/ucg-engine/pkg/topology"
)

// pluginGroupHandle remembers which plugin a per-group handle belongs
// to, so Destroy can call back into the right implementation.
type pluginGroupHandle struct {
	impl   plugin.Plugin
	ctx    plugin.ContextHandle
	handle plugin.GroupHandle
}

// Group is the per-communicator state of §3/§4.H: the plans container
// seeded from every loaded plugin, the topology subgroups derived from
// the context's process-info table, and the rolling request-id
// allocator collectives on this group share.
type Group struct {
	ctx       *Context
	id        uint32
	size      int
	myRank    int
	rankMap   topology.RankMap
	transport p2p.Transport

	pluginGroups map[string]pluginGroupHandle
	plans        *plan.Catalog
	topo         *topology.Topology
	idAlloc      *request.IDAllocator
}

// CreateParams configures CreateGroup. ID is optional; a zero value
// asks the context to assign the next sequential one.
type CreateParams struct {
	ID        uint32
	Size      int
	MyRank    int
	RankMap   topology.RankMap
	Transport p2p.Transport
}

// CreateGroup runs §4.H's create sequence under the context lock: build
// per-plugin subgroup handles (rolling back on failure), derive
// topology from the process-info table, and seed a fresh plans
// container from every plugin's GetPlans, applying the user's
// plan-attribute overrides per collective type.
func (c *Context) CreateGroup(p CreateParams) (*Group, *errors.Status) {
	if p.RankMap == nil || p.RankMap.Size() != p.Size {
		return nil, errors.New(errors.InvalidParam, "group create requires rank_map.size == size")
	}
	if p.MyRank < 0 || p.MyRank >= p.Size {
		return nil, errors.New(errors.InvalidParam, "group create requires 0 <= myrank < size")
	}

	c.lock()
	defer c.unlock()

	id := p.ID
	if id == 0 {
		id = c.nextGroupID()
	}

	g := &Group{
		ctx: c, id: id, size: p.Size, myRank: p.MyRank,
		rankMap: p.RankMap, transport: p.Transport,
		pluginGroups: make(map[string]pluginGroupHandle, len(c.plugins)),
		idAlloc:      request.NewIDAllocator(),
	}

	var createdOrder []string
	for _, lp := range c.plugins {
		addrs := make([]plugin.Address, p.Size)
		for i := 0; i < p.Size; i++ {
			if ctxRank := p.RankMap.Eval(i); ctxRank >= 0 && ctxRank < len(c.procInfo) {
				addrs[i] = c.procInfo[ctxRank].Addrs[lp.name]
			}
		}
		gh, status := lp.impl.GroupCreate(lp.ctx, plugin.GroupParams{
			ID: id, Size: p.Size, MyRank: p.MyRank, RankMap: p.RankMap, Addrs: addrs,
		})
		if status.Failed() {
			for i := len(createdOrder) - 1; i >= 0; i-- {
				pg := g.pluginGroups[createdOrder[i]]
				pg.impl.GroupDestroy(pg.ctx, pg.handle)
			}
			return nil, status
		}
		g.pluginGroups[lp.name] = pluginGroupHandle{impl: lp.impl, ctx: lp.ctx, handle: gh}
		createdOrder = append(createdOrder, lp.name)
	}

	locations := make([]topology.Location, p.Size)
	for i := 0; i < p.Size; i++ {
		if ctxRank := p.RankMap.Eval(i); ctxRank >= 0 && ctxRank < len(c.procInfo) {
			locations[i] = c.procInfo[ctxRank].Location
		} else {
			locations[i] = topology.Location{SubnetID: topology.Unknown, NodeID: topology.Unknown, SocketID: topology.Unknown}
		}
	}
	g.topo = topology.Build(locations, p.MyRank)

	g.plans = plan.NewCatalog()
	for _, lp := range c.plugins {
		pg := g.pluginGroups[lp.name]
		for _, e := range lp.impl.GetPlans(lp.ctx, pg.handle) {
			attr := e.Plan.Attr
			overrideStr, _ := c.cfg.AttrFor(e.Coll.String())
			overrides, status := planattr.Parse(overrideStr)
			if status != nil && status.Failed() {
				c.log.Warn("ignoring malformed plan-attribute override for %s: %s", e.Coll.String(), status.Message)
			} else {
				plan.ApplyOverride(&attr, overrides, p.Size)
			}
			cp := &plan.Plan{Attr: attr, Fallbacks: e.Plan.Fallbacks}
			_ = g.plans.Add(e.Coll, e.Mem, cp)
		}
	}
	g.registerHierarchicalPlans()

	c.groups[id] = g
	return g, errors.Ok()
}

// Destroy tears a group down under the context lock, per §4.H.
func (g *Group) Destroy() *errors.Status {
	g.ctx.lock()
	defer g.ctx.unlock()
	delete(g.ctx.groups, g.id)
	return g.destroyLocked()
}

func (g *Group) destroyLocked() *errors.Status {
	g.topo = nil
	g.plans = nil
	for _, pg := range g.pluginGroups {
		pg.impl.GroupDestroy(pg.ctx, pg.handle)
	}
	g.pluginGroups = nil
	g.rankMap = nil
	return errors.Ok()
}

// ID, Size, MyRank expose the read-only identity fields algorithms and
// the public facade need.
func (g *Group) ID() uint32  { return g.id }
func (g *Group) Size() int   { return g.size }
func (g *Group) MyRank() int { return g.myRank }

// Plans exposes this group's plan catalog, read-only from the
// caller's perspective: used by ucg_info's "-p" diagnostic dump (§6).
func (g *Group) Plans() *plan.Catalog { return g.plans }

func (g *Group) vgroup() *algo.VGroup {
	return &algo.VGroup{MyRank: g.myRank, Size: g.size, RankMap: g.rankMap, GroupID: g.id, Transport: g.transport}
}

// Prepare selects and instantiates a plan-op for coll over mem-type
// mem, stamping a.VGroup with this group's own full vgroup before
// computing the collective's message-size selection key (§4.D).
func (g *Group) Prepare(coll plan.CollType, mem plan.MemType, a *algo.Args) (*request.Base, *errors.Status) {
	a.VGroup = g.vgroup()
	var dtSize uint64
	if a.Dt != nil {
		dtSize = a.Dt.Size
	}
	msgSize := plan.MsgSize(coll, plan.MsgSizeArgs{
		DtSize: dtSize, Count: a.Count, GroupSize: g.size, RecvCounts: a.RecvCounts,
	})
	op, status := g.plans.Prepare(coll, mem, msgSize, a)
	if status.Failed() {
		return nil, status
	}
	return request.NewBase(op, g.id, g.idAlloc.Release), errors.Ok()
}

// Start allocates a request-id and triggers req, enqueueing it on the
// context's progress list if it didn't complete synchronously. Per
// §4.F, all members of a group must call Start for a given collective
// in the same relative order since the id is a lockstep counter — an
// API contract this method does not itself enforce.
func (g *Group) Start(req *request.Base) *errors.Status {
	id, status := g.idAlloc.Alloc()
	if status.Failed() {
		return status
	}
	st := req.Start(id)
	if st.Code == errors.InProgress {
		g.ctx.enqueue(req)
	}
	return st
}
