// Package engine implements the process-wide Context and per-communicator
// Group types of §4.G/§4.H: plugin loading, process-info exchange,
// thread-mode arbitration, topology construction, and the plans
// container each group seeds from its loaded plugins.
package engine

import (
	"context"
	"encoding/binary"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ucg-engine/internal/plugin"
	"github.com/ucg-engine/pkg/config"
	"github.com/ucg-engine/pkg/errors"
	"github.com/ucg-engine/pkg/logging"
	"github.com/ucg-engine/pkg/pool"
	"github.com/ucg-engine/pkg/request"
	"github.com/ucg-engine/pkg/telemetry"
	"github.com/ucg-engine/pkg/topology"
)

// APIVersionMajor/APIVersionMinor are the library's own API version,
// checked against a caller's requested version at init per §4.G step 1:
// a differing major or a minor ahead of the library's own is rejected.
const (
	APIVersionMajor = 1
	APIVersionMinor = 0
)

// OOBAllgather is the bootstrap collective a host application supplies
// before any plugin is connected (§1: "deliberately out of scope").
// Every member calls it with its own local bytes and gets back every
// member's bytes, in rank order.
type OOBAllgather func(ctx context.Context, local []byte) ([][]byte, *errors.Status)

// LocationFunc resolves a context rank to its optional topology hints.
type LocationFunc func(rank int) topology.Location

// ProcessInfo is one context rank's entry in the process-info table
// (§3): its location plus, for each loaded plugin, the contact address
// that plugin's context_query returned.
type ProcessInfo struct {
	Location topology.Location
	Addrs    map[string]plugin.Address
}

// loadedPlugin pairs a live plugin instance with the context handle its
// own ContextInit returned.
type loadedPlugin struct {
	name string
	impl plugin.Plugin
	ctx  plugin.ContextHandle
}

// Params configures Init.
type Params struct {
	VersionMajor int
	VersionMinor int
	Size         int
	MyRank       int
	OOB          OOBAllgather
	Locate       LocationFunc
	Config       *config.Config
	Logger       logging.Logger
}

// Context is the process-wide state of §3: loaded plugins, the
// process-info table, the active-request progress list, the
// thread-mode lock, and a meta-op object pool.
type Context struct {
	cfg    *config.Config
	log    logging.Logger
	oob    OOBAllgather
	locate LocationFunc

	size   int
	myRank int

	plugins []loadedPlugin
	locked  bool
	mu      sync.Mutex

	progress *pool.Queue[*request.Base]
	metaPool *pool.Pool[*request.MetaOp]

	procInfo []ProcessInfo

	groups   map[uint32]*Group
	groupSeq uint32
}

// Init runs the §4.G init sequence: version check, plugin loading,
// per-plugin context_init/context_query, thread-mode arbitration, and
// the two-phase OOB process-info exchange (lengths, then padded
// entries).
func Init(ctx context.Context, p Params) (*Context, *errors.Status) {
	if p.VersionMajor != APIVersionMajor || p.VersionMinor > APIVersionMinor {
		return nil, errors.New(errors.Incompatible, fmt.Sprintf(
			"caller requested API v%d.%d, library provides v%d.%d",
			p.VersionMajor, p.VersionMinor, APIVersionMajor, APIVersionMinor))
	}
	if p.OOB == nil || p.Locate == nil {
		return nil, errors.New(errors.InvalidParam, "context init requires an OOB allgather callback and a location callback")
	}

	cfg := p.Config
	if cfg == nil {
		loaded, err := config.Load("")
		if err != nil {
			return nil, errors.Wrap(errors.InvalidParam, "failed to load default configuration", err)
		}
		cfg = loaded
	}
	log := p.Logger
	if log == nil {
		log = logging.New(logging.ParseLevel(cfg.LogLevel))
	}

	names, status := plugin.ResolveNames(cfg.PlanC)
	if status.Failed() {
		return nil, status
	}

	c := &Context{
		cfg: cfg, log: log, oob: p.OOB, locate: p.Locate,
		size: p.Size, myRank: p.MyRank,
		progress: pool.NewQueue[*request.Base](64),
		metaPool: pool.New(func() *request.MetaOp { return &request.MetaOp{} }),
		groups:   make(map[uint32]*Group),
	}

	loaded, status := createAndInitPlugins(names)
	if status.Failed() {
		return nil, status
	}
	c.plugins = loaded
	for _, lp := range c.plugins {
		if lp.impl.ThreadSingle() {
			c.locked = true
		}
	}

	if status := c.buildProcessInfo(ctx); status.Failed() {
		c.teardownPlugins()
		return nil, status
	}

	return c, errors.Ok()
}

// buildProcessInfo runs §4.G step 6's two-phase exchange: first every
// member learns the largest local entry size, then a second allgather
// moves entries padded to that common stride so every reader can
// index the table at a fixed offset.
func (c *Context) buildProcessInfo(ctx context.Context) *errors.Status {
	type pluginAddr = struct {
		name string
		addr plugin.Address
	}
	addrs := make([]pluginAddr, 0, len(c.plugins))
	for _, lp := range c.plugins {
		addr, status := lp.impl.ContextQuery(lp.ctx)
		if status.Failed() {
			return status
		}
		addrs = append(addrs, pluginAddr{name: lp.name, addr: addr})
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i].name < addrs[j].name })

	loc := c.locate(c.myRank)
	local := encodeProcessInfo(loc, addrs)

	lenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBuf, uint32(len(local)))
	lens, status := c.oob(ctx, lenBuf)
	if status.Failed() {
		return status
	}
	maxLen := 0
	for _, l := range lens {
		if len(l) < 4 {
			return errors.New(errors.IOError, "oob allgather returned a short length entry")
		}
		if n := int(binary.LittleEndian.Uint32(l)); n > maxLen {
			maxLen = n
		}
	}

	padded := make([]byte, maxLen)
	copy(padded, local)
	entries, status := c.oob(ctx, padded)
	if status.Failed() {
		return status
	}

	procInfo := make([]ProcessInfo, len(entries))
	for i, e := range entries {
		pi, err := decodeProcessInfo(e)
		if err != nil {
			return errors.Wrap(errors.IOError, "failed to decode peer process-info entry", err)
		}
		procInfo[i] = pi
	}
	c.procInfo = procInfo
	return errors.Ok()
}

// encodeProcessInfo serialises a process-info entry: the three location
// ints, then each (name, address) pair in the given (already sorted)
// order, length-prefixed so every reader can walk the list without a
// shared schema beyond this encoding.
func encodeProcessInfo(loc topology.Location, addrs []struct {
	name string
	addr plugin.Address
}) []byte {
	buf := make([]byte, 0, 16)
	var tmp [4]byte
	putInt32 := func(v int) {
		binary.LittleEndian.PutUint32(tmp[:], uint32(int32(v)))
		buf = append(buf, tmp[:]...)
	}
	putInt32(loc.SubnetID)
	putInt32(loc.NodeID)
	putInt32(loc.SocketID)
	putInt32(len(addrs))
	for _, a := range addrs {
		putInt32(len(a.name))
		buf = append(buf, a.name...)
		putInt32(len(a.addr))
		buf = append(buf, a.addr...)
	}
	return buf
}

func decodeProcessInfo(buf []byte) (ProcessInfo, error) {
	readInt32 := func() (int, error) {
		if len(buf) < 4 {
			return 0, fmt.Errorf("process-info entry truncated")
		}
		v := int32(binary.LittleEndian.Uint32(buf[:4]))
		buf = buf[4:]
		return int(v), nil
	}

	subnet, err := readInt32()
	if err != nil {
		return ProcessInfo{}, err
	}
	node, err := readInt32()
	if err != nil {
		return ProcessInfo{}, err
	}
	socket, err := readInt32()
	if err != nil {
		return ProcessInfo{}, err
	}
	n, err := readInt32()
	if err != nil {
		return ProcessInfo{}, err
	}

	pi := ProcessInfo{
		Location: topology.Location{SubnetID: subnet, NodeID: node, SocketID: socket},
		Addrs:    make(map[string]plugin.Address, n),
	}
	for i := 0; i < n; i++ {
		nameLen, err := readInt32()
		if err != nil {
			return ProcessInfo{}, err
		}
		if len(buf) < nameLen {
			return ProcessInfo{}, fmt.Errorf("process-info entry truncated in plugin name")
		}
		name := string(buf[:nameLen])
		buf = buf[nameLen:]

		addrLen, err := readInt32()
		if err != nil {
			return ProcessInfo{}, err
		}
		if len(buf) < addrLen {
			return ProcessInfo{}, fmt.Errorf("process-info entry truncated in address")
		}
		pi.Addrs[name] = plugin.Address(append([]byte(nil), buf[:addrLen]...))
		buf = buf[addrLen:]
	}
	return pi, nil
}

// createAndInitPlugins instantiates every named plugin and runs its
// context_init concurrently, grounded on the same errgroup.SetLimit
// worker-pool idiom as the teacher's parallel analysis passes: each
// plugin's context_init is independent of the others (§4.G step 3
// only requires every plugin be loaded before step 4 reads its
// address), so there is no reason to serialise what can be a slow,
// blocking call (e.g. a transport plugin opening a listening socket)
// once per plugin. Results land in index-aligned slots, so the
// returned slice preserves the caller's name order regardless of
// which goroutine finishes first.
func createAndInitPlugins(names []string) ([]loadedPlugin, *errors.Status) {
	handles := make([]loadedPlugin, len(names))
	ok := make([]bool, len(names))

	g := new(errgroup.Group)
	g.SetLimit(len(names))
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			impl, status := plugin.Create(name)
			if status.Failed() {
				return status
			}
			ctxHandle, status := impl.ContextInit()
			if status.Failed() {
				return status
			}
			handles[i] = loadedPlugin{name: name, impl: impl, ctx: ctxHandle}
			ok[i] = true
			return nil
		})
	}
	groupErr := g.Wait()

	if groupErr != nil {
		for i, didInit := range ok {
			if didInit {
				handles[i].impl.ContextCleanup(handles[i].ctx)
			}
		}
		if status, isStatus := groupErr.(*errors.Status); isStatus {
			return nil, status
		}
		return nil, errors.Wrap(errors.IOError, "plugin load failed", groupErr)
	}
	return handles, errors.Ok()
}

// teardownPlugins runs config_release then ContextCleanup on every
// plugin loaded so far, used both by Cleanup and by Init's
// unwind-on-failure path (§7: "constructor paths unwind all prior
// allocations on any failure"). Plugins own disjoint state, so cleanup
// fans out the same way createAndInitPlugins fans out init; neither
// call returns anything worth collecting, so there is nothing to wait
// on besides completion.
func (c *Context) teardownPlugins() {
	var wg sync.WaitGroup
	wg.Add(len(c.plugins))
	for _, lp := range c.plugins {
		lp := lp
		go func() {
			defer wg.Done()
			lp.impl.ConfigRelease(lp.ctx)
			lp.impl.ContextCleanup(lp.ctx)
		}()
	}
	wg.Wait()
	c.plugins = nil
}

// lock acquires the context lock only in locked (thread-mode) mode, per
// §5's shared-resource policy: a single-threaded context pays no
// synchronisation cost.
func (c *Context) lock() {
	if c.locked {
		c.mu.Lock()
	}
}

func (c *Context) unlock() {
	if c.locked {
		c.mu.Unlock()
	}
}

// Cleanup runs §4.G's cleanup sequence: destroy any groups still alive,
// tear down plugins, and discard the process-info table.
func (c *Context) Cleanup() *errors.Status {
	c.lock()
	defer c.unlock()
	for id, g := range c.groups {
		g.destroyLocked()
		delete(c.groups, id)
	}
	c.teardownPlugins()
	c.procInfo = nil
	return errors.Ok()
}

// Progress runs one sweep of the progress list, per §4.G: test every
// active request, removing and firing the completion callback (inside
// request.Base.Test/finish) of any that reached a terminal status.
func (c *Context) Progress() *errors.Status {
	c.lock()
	defer c.unlock()

	_, span := telemetry.StartSpan(context.Background(), "context.progress")
	defer span.End()

	var done []*request.Base
	c.progress.Each(func(r *request.Base) bool {
		if st := r.Test(); st.Code != errors.InProgress {
			done = append(done, r)
		}
		return true
	})
	for _, r := range done {
		target := r
		c.progress.RemoveFirstMatch(func(v *request.Base) bool { return v == target })
	}
	return errors.Ok()
}

// enqueue appends an active request to the progress list, called by
// Group.Start once a request.Base transitions to IN_PROGRESS.
func (c *Context) enqueue(r *request.Base) {
	c.lock()
	defer c.unlock()
	c.progress.Enqueue(r)
}

// nextGroupID hands out a process-local identifier for a new group when
// the caller doesn't supply one of its own; §4.H only requires group
// ids be unique and used consistently as the tag's group-id field.
func (c *Context) nextGroupID() uint32 {
	c.groupSeq++
	return c.groupSeq
}
