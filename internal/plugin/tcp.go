package plugin

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/ucg-engine/internal/algo"
	"github.com/ucg-engine/pkg/errors"
	"github.com/ucg-engine/pkg/plan"
)

// defaultTCPBacklog is the pending-connection queue depth a real
// socket-backed build of this plugin would pass to listen(2); the
// reference plugin has no live listener (§1), but still exposes the
// knob through ConfigRead/ConfigModify so a host that swaps in a real
// transport has somewhere to tune it.
const defaultTCPBacklog = 128

// addressStore persists a process's contact address keyed by its
// context rank, the rendezvous step ContextQuery's result eventually
// feeds into the process-info table (§3). tcpContext defaults to an
// in-memory store; a SQL-backed one is available for deployments that
// already run a directory service, mirroring the teacher's
// repository.TaskRepository split between a production and a
// swappable backing store.
type addressStore interface {
	SaveAddress(ctx context.Context, rank int, addr Address) error
	LoadAddress(ctx context.Context, rank int) (Address, error)
}

// memAddressStore is the default, zero-configuration addressStore.
type memAddressStore struct {
	addrs map[int]Address
}

func newMemAddressStore() *memAddressStore {
	return &memAddressStore{addrs: make(map[int]Address)}
}

func (s *memAddressStore) SaveAddress(_ context.Context, rank int, addr Address) error {
	s.addrs[rank] = addr
	return nil
}

func (s *memAddressStore) LoadAddress(_ context.Context, rank int) (Address, error) {
	addr, ok := s.addrs[rank]
	if !ok {
		return nil, fmt.Errorf("no address recorded for rank %d", rank)
	}
	return addr, nil
}

// sqlAddressStore persists addresses through a relational table,
// queried the same request/response shape as the teacher's
// MySQLTaskRepository. It takes an already-opened *sql.DB rather than
// owning a driver/DSN, so the caller picks the concrete driver.
type sqlAddressStore struct {
	db *sql.DB
}

// newSQLAddressStore wraps db as an addressStore. The caller is
// responsible for ensuring a `tcp_plugin_addresses(rank INT PRIMARY
// KEY, addr BLOB)` table exists.
func newSQLAddressStore(db *sql.DB) *sqlAddressStore {
	return &sqlAddressStore{db: db}
}

func (s *sqlAddressStore) SaveAddress(ctx context.Context, rank int, addr Address) error {
	query := `INSERT INTO tcp_plugin_addresses (rank, addr) VALUES (?, ?)`
	if _, err := s.db.ExecContext(ctx, query, rank, []byte(addr)); err != nil {
		return fmt.Errorf("failed to save tcp plugin address: %w", err)
	}
	return nil
}

func (s *sqlAddressStore) LoadAddress(ctx context.Context, rank int) (Address, error) {
	query := `SELECT addr FROM tcp_plugin_addresses WHERE rank = ?`
	var addr []byte
	err := s.db.QueryRowContext(ctx, query, rank).Scan(&addr)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no address recorded for rank %d", rank)
		}
		return nil, fmt.Errorf("failed to load tcp plugin address: %w", err)
	}
	return Address(addr), nil
}

// tcpContext is tcpPlugin's ContextHandle: a contact-address store and
// this process's own generated address.
type tcpContext struct {
	store     addressStore
	localAddr Address
	backlog   int
}

// tcpGroup is tcpPlugin's GroupHandle: the resolved peer addresses for
// one group, keyed by group-local rank.
type tcpGroup struct {
	params GroupParams
}

// tcpPlugin is a reference PlanC/PlanM implementation: it has no real
// socket transport of its own (§1 scopes the p2p transport out of the
// core; the engine consumes it as an injected interface), but wires
// internal/algo's prepare functions into the catalog the way a real
// transport-backed plugin would, and exercises the ContextQuery/
// GroupCreate lifecycle an on-the-wire plugin needs.
type tcpPlugin struct{}

func init() {
	Register("tcp", func() Plugin { return &tcpPlugin{} })
}

func (p *tcpPlugin) Name() string { return "tcp" }

func (p *tcpPlugin) MemQuery(mem plan.MemType) bool {
	return mem == plan.Host
}

func (p *tcpPlugin) ContextInit() (ContextHandle, *errors.Status) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return nil, errors.Wrap(errors.IOError, "failed to generate tcp contact address", err)
	}
	return &tcpContext{store: newMemAddressStore(), localAddr: Address(buf), backlog: defaultTCPBacklog}, errors.Ok()
}

func (p *tcpPlugin) ContextCleanup(ctx ContextHandle) {
	_ = ctx
}

// ConfigRead reports this plugin's one tunable, the listen backlog
// depth.
func (p *tcpPlugin) ConfigRead(ctx ContextHandle) (map[string]string, *errors.Status) {
	tc, ok := ctx.(*tcpContext)
	if !ok {
		return nil, errors.New(errors.InvalidParam, "tcp plugin: wrong context handle type")
	}
	return map[string]string{"backlog": strconv.Itoa(tc.backlog)}, errors.Ok()
}

// ConfigModify changes the listen backlog depth; it is the only
// tunable this reference plugin exposes.
func (p *tcpPlugin) ConfigModify(ctx ContextHandle, name, value string) *errors.Status {
	tc, ok := ctx.(*tcpContext)
	if !ok {
		return errors.New(errors.InvalidParam, "tcp plugin: wrong context handle type")
	}
	if name != "backlog" {
		return errors.New(errors.InvalidParam, fmt.Sprintf("tcp plugin: unknown config key %q", name))
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return errors.New(errors.InvalidParam, fmt.Sprintf("tcp plugin: backlog must be a positive integer, got %q", value))
	}
	tc.backlog = n
	return errors.Ok()
}

// ConfigRelease is a no-op: the backlog value lives inline in
// tcpContext, so there is nothing to release independently of
// ContextCleanup.
func (p *tcpPlugin) ConfigRelease(ctx ContextHandle) {
	_ = ctx
}

func (p *tcpPlugin) ContextQuery(ctx ContextHandle) (Address, *errors.Status) {
	tc, ok := ctx.(*tcpContext)
	if !ok {
		return nil, errors.New(errors.InvalidParam, "tcp plugin: wrong context handle type")
	}
	return tc.localAddr, errors.Ok()
}

func (p *tcpPlugin) GroupCreate(ctx ContextHandle, params GroupParams) (GroupHandle, *errors.Status) {
	tc, ok := ctx.(*tcpContext)
	if !ok {
		return nil, errors.New(errors.InvalidParam, "tcp plugin: wrong context handle type")
	}
	if err := tc.store.SaveAddress(context.Background(), params.MyRank, tc.localAddr); err != nil {
		return nil, errors.Wrap(errors.IOError, "tcp plugin: failed to record local address", err)
	}
	return &tcpGroup{params: params}, errors.Ok()
}

func (p *tcpPlugin) GroupDestroy(ctx ContextHandle, g GroupHandle) {
	_, _ = ctx, g
}

func (p *tcpPlugin) GetPlans(ctx ContextHandle, g GroupHandle) []PlanEntry {
	_, _ = ctx, g
	entries := []struct {
		coll    plan.CollType
		name    string
		prepare plan.PrepareFunc
	}{
		{plan.Bcast, "tcp.bcast.binomial", algo.NewBcastPrepare()},
		{plan.Allreduce, "tcp.allreduce.ring", algo.NewAllreducePrepare()},
		{plan.Barrier, "tcp.barrier.dissemination", algo.NewBarrierPrepare()},
		{plan.Alltoallv, "tcp.alltoallv.flat", algo.NewAlltoallvPrepare()},
		{plan.Scatterv, "tcp.scatterv.flat", algo.NewScattervPrepare()},
		{plan.Gatherv, "tcp.gatherv.flat", algo.NewGathervPrepare()},
		{plan.Allgatherv, "tcp.allgatherv.ring", algo.NewAllgathervPrepare()},
		{plan.Reduce, "tcp.reduce.binomial", algo.NewReducePrepare()},
	}

	out := make([]PlanEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, PlanEntry{
			Coll: e.coll,
			Mem:  plan.Host,
			Plan: &plan.Plan{
				Attr: plan.Attr{
					ID:      e.name,
					Name:    e.name,
					Domain:  "tcp",
					Score:   100,
					Range:   plan.Range{Start: 0, End: plan.RangeMax},
					Prepare: e.prepare,
				},
			},
		})
	}
	return out
}

func (p *tcpPlugin) ThreadSingle() bool { return false }
