package engine

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	_ "github.com/ucg-engine/internal/plugin" // registers the tcp plugin
	"github.com/ucg-engine/pkg/config"
	"github.com/ucg-engine/pkg/errors"
	"github.com/ucg-engine/pkg/topology"
)

// barrierOOB is a generational barrier shared by every rank's Init
// call in a test: it blocks every caller until all n have submitted
// their local payload for the current round, then releases them all
// with the same rank-ordered result, exactly the fan-in/fan-out shape
// a real out-of-band allgather has. Standard-library sync.Cond is
// enough for this since it is test-only bootstrap plumbing, not the
// transport under test.
type barrierOOB struct {
	n      int
	mu     sync.Mutex
	cond   *sync.Cond
	bufs   [][]byte
	count  int
	result [][]byte
	gen    int
}

func newBarrierOOB(n int) *barrierOOB {
	b := &barrierOOB{n: n, bufs: make([][]byte, n)}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *barrierOOB) allgather(rank int, local []byte) ([][]byte, *errors.Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	myGen := b.gen
	b.bufs[rank] = local
	b.count++
	if b.count == b.n {
		b.result = append([][]byte(nil), b.bufs...)
		b.bufs = make([][]byte, b.n)
		b.count = 0
		b.gen++
		b.cond.Broadcast()
		return b.result, errors.Ok()
	}
	for b.gen == myGen {
		b.cond.Wait()
	}
	return b.result, errors.Ok()
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	return cfg
}

func TestInit_RejectsVersionMismatch(t *testing.T) {
	_, status := Init(context.Background(), Params{
		VersionMajor: APIVersionMajor + 1,
		VersionMinor: 0,
		Size:         1, MyRank: 0,
		OOB:    func(context.Context, []byte) ([][]byte, *errors.Status) { return nil, errors.Ok() },
		Locate: func(int) topology.Location { return topology.Location{} },
		Config: testConfig(t),
	})
	require.True(t, status.Failed())
	require.Equal(t, errors.Incompatible, status.Code)
}

func TestInit_RejectsNewerMinor(t *testing.T) {
	_, status := Init(context.Background(), Params{
		VersionMajor: APIVersionMajor,
		VersionMinor: APIVersionMinor + 1,
		Size:         1, MyRank: 0,
		OOB:    func(context.Context, []byte) ([][]byte, *errors.Status) { return nil, errors.Ok() },
		Locate: func(int) topology.Location { return topology.Location{} },
		Config: testConfig(t),
	})
	require.True(t, status.Failed())
	require.Equal(t, errors.Incompatible, status.Code)
}

func TestInit_RequiresOOBAndLocate(t *testing.T) {
	_, status := Init(context.Background(), Params{
		VersionMajor: APIVersionMajor, VersionMinor: APIVersionMinor,
		Size: 1, MyRank: 0, Config: testConfig(t),
	})
	require.True(t, status.Failed())
	require.Equal(t, errors.InvalidParam, status.Code)
}

func TestInit_SingletonContextBuildsProcessInfo(t *testing.T) {
	bus := newBarrierOOB(1)
	ctx, status := Init(context.Background(), Params{
		VersionMajor: APIVersionMajor, VersionMinor: APIVersionMinor,
		Size: 1, MyRank: 0,
		OOB: func(c context.Context, local []byte) ([][]byte, *errors.Status) {
			return bus.allgather(0, local)
		},
		Locate: func(int) topology.Location { return topology.Location{SubnetID: 1, NodeID: 2, SocketID: 3} },
		Config: testConfig(t),
	})
	require.False(t, status.Failed())
	require.NotNil(t, ctx)
	defer ctx.Cleanup()

	require.Len(t, ctx.procInfo, 1)
	require.Equal(t, topology.Location{SubnetID: 1, NodeID: 2, SocketID: 3}, ctx.procInfo[0].Location)
	require.Contains(t, ctx.procInfo[0].Addrs, "tcp")
}

func TestInit_MultiRankExchangesEveryPeerAddress(t *testing.T) {
	const size = 4
	bus := newBarrierOOB(size)

	var wg sync.WaitGroup
	ctxs := make([]*Context, size)
	statuses := make([]*errors.Status, size)
	wg.Add(size)
	for r := 0; r < size; r++ {
		r := r
		go func() {
			defer wg.Done()
			ctxs[r], statuses[r] = Init(context.Background(), Params{
				VersionMajor: APIVersionMajor, VersionMinor: APIVersionMinor,
				Size: size, MyRank: r,
				OOB: func(c context.Context, local []byte) ([][]byte, *errors.Status) {
					return bus.allgather(r, local)
				},
				Locate: func(rank int) topology.Location { return topology.Location{NodeID: rank / 2} },
				Config: testConfig(t),
			})
		}()
	}
	wg.Wait()

	for r := 0; r < size; r++ {
		require.Falsef(t, statuses[r].Failed(), "rank %d: %v", r, statuses[r])
		require.Len(t, ctxs[r].procInfo, size)
		for peer := 0; peer < size; peer++ {
			require.NotEmpty(t, ctxs[r].procInfo[peer].Addrs["tcp"])
		}
		require.Equal(t, r/2, ctxs[r].procInfo[r].Location.NodeID)
	}
	for r := 0; r < size; r++ {
		ctxs[r].Cleanup()
	}
}

func TestContext_ProgressOnEmptyListIsNoop(t *testing.T) {
	bus := newBarrierOOB(1)
	ctx, status := Init(context.Background(), Params{
		VersionMajor: APIVersionMajor, VersionMinor: APIVersionMinor,
		Size: 1, MyRank: 0,
		OOB: func(c context.Context, local []byte) ([][]byte, *errors.Status) {
			return bus.allgather(0, local)
		},
		Locate: func(int) topology.Location { return topology.Location{} },
		Config: testConfig(t),
	})
	require.False(t, status.Failed())
	defer ctx.Cleanup()

	// A context with nothing enqueued should progress cleanly as a no-op.
	require.False(t, ctx.Progress().Failed())
}
