// Package plugin implements the plugin registry the teacher's
// internal/scheduler/source package uses for its task-source
// strategies, repurposed here for the PlanC/PlanM implementations §4.G
// loads by name: mem-query, config read/modify/release, context
// init/cleanup/query, group create/destroy, and get-plans.
//
// The reference implementation discovers these as dynamically loaded
// shared libraries (§9's "Dynamic dispatch on plugins"); this module
// treats plugin discovery as out of the core's scope (§1) and instead
// exposes static, compile-time registration — the same trade-off the
// design notes recommend ("Replace with explicit constructor-time
// registration").
package plugin

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ucg-engine/pkg/errors"
	"github.com/ucg-engine/pkg/plan"
	"github.com/ucg-engine/pkg/topology"
)

// Address is a plugin's opaque contact information for one process,
// exchanged verbatim through the process-info table's trailing bytes
// region (§3).
type Address []byte

// GroupParams carries the fields a plugin needs to build its
// per-group subgroup handle.
type GroupParams struct {
	ID      uint32
	Size    int
	MyRank  int
	RankMap topology.RankMap
	Addrs   []Address // one per context rank, for the group's members
}

// GroupHandle is a plugin's opaque per-group state; the core never
// inspects it, only passes it back to GetPlans and GroupDestroy.
type GroupHandle interface{}

// ContextHandle is a plugin's opaque process-wide state.
type ContextHandle interface{}

// Plugin is the interface every PlanC/PlanM implementation satisfies,
// matching §4.G step 3's enumeration: mem-query, config
// read/modify/release, context init/cleanup/query, group
// create/destroy, get-plans.
type Plugin interface {
	// Name identifies the plugin for the PLANC config list.
	Name() string

	// MemQuery reports whether this plugin can operate on the given
	// memory type.
	MemQuery(mem plan.MemType) bool

	// ConfigRead returns this plugin's tunables as name/value strings,
	// the per-plugin half of config_read (§4.G step 3, §6).
	ConfigRead(ctx ContextHandle) (map[string]string, *errors.Status)
	// ConfigModify changes one of this plugin's tunables by name,
	// the per-plugin half of config_modify.
	ConfigModify(ctx ContextHandle, name, value string) *errors.Status
	// ConfigRelease releases any resources ConfigRead/ConfigModify
	// hold, the per-plugin half of config_release. Called once during
	// ContextCleanup, after group teardown.
	ConfigRelease(ctx ContextHandle)

	// ContextInit initializes process-wide plugin state.
	ContextInit() (ContextHandle, *errors.Status)
	// ContextCleanup tears down process-wide plugin state.
	ContextCleanup(ctx ContextHandle)
	// ContextQuery returns this process's local contact address for
	// inclusion in the process-info table.
	ContextQuery(ctx ContextHandle) (Address, *errors.Status)

	// GroupCreate builds a per-group subgroup handle.
	GroupCreate(ctx ContextHandle, params GroupParams) (GroupHandle, *errors.Status)
	// GroupDestroy tears down a subgroup handle.
	GroupDestroy(ctx ContextHandle, g GroupHandle)

	// GetPlans returns the plugin's default plans to seed a fresh
	// catalog for one group, per §4.H step 4.
	GetPlans(ctx ContextHandle, g GroupHandle) []PlanEntry

	// ThreadSingle reports whether this plugin can only run
	// single-threaded, forcing the context into locked mode (§4.G step
	// 5, §5's shared-resource policy).
	ThreadSingle() bool
}

// PlanEntry names which (coll-type, mem-type) cell a plugin-provided
// plan belongs in.
type PlanEntry struct {
	Coll plan.CollType
	Mem  plan.MemType
	Plan *plan.Plan
}

// Factory constructs a fresh Plugin instance; plugins register one at
// package init time, mirroring the teacher's SourceCreator pattern.
type Factory func() Plugin

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds a plugin factory under name. Called from the init()
// function of each plugin implementation package, matching
// source.Register's call site convention.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

// RegisteredNames returns every registered plugin name, sorted for
// deterministic iteration (used by PLANC=all and by the CLI's config
// dump).
func RegisteredNames() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// IsRegistered reports whether name has a registered factory.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[name]
	return ok
}

// Create instantiates the plugin registered under name.
func Create(name string) (Plugin, *errors.Status) {
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.New(errors.NoResource, fmt.Sprintf("unknown plugin %q (registered: %v)", name, RegisteredNames()))
	}
	return f(), errors.Ok()
}

// ResolveNames expands the PLANC config value into a concrete plugin
// name list: "all" means every registered plugin, in sorted order;
// otherwise a comma-separated subset, validated against the registry.
func ResolveNames(planc string) ([]string, *errors.Status) {
	if planc == "all" {
		return RegisteredNames(), errors.Ok()
	}
	var names []string
	for _, n := range strings.Split(planc, ",") {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if !IsRegistered(n) {
			return nil, errors.New(errors.NoResource, fmt.Sprintf("unknown plugin %q in PLANC", n))
		}
		names = append(names, n)
	}
	if len(names) == 0 {
		return nil, errors.New(errors.InvalidParam, "PLANC names no plugins")
	}
	return names, errors.Ok()
}
