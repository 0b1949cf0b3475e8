package plugin

import (
	"context"
	"database/sql"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ucg-engine/pkg/plan"
)

func TestSQLAddressStore_SaveAndLoad(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := newSQLAddressStore(db)

	mock.ExpectExec("INSERT INTO tcp_plugin_addresses").
		WithArgs(3, []byte("addr-3")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, store.SaveAddress(context.Background(), 3, Address("addr-3")))

	rows := sqlmock.NewRows([]string{"addr"}).AddRow([]byte("addr-3"))
	mock.ExpectQuery("SELECT addr FROM tcp_plugin_addresses").WithArgs(3).WillReturnRows(rows)

	addr, err := store.LoadAddress(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, Address("addr-3"), addr)
}

func TestSQLAddressStore_LoadMissingRankFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := newSQLAddressStore(db)

	mock.ExpectQuery("SELECT addr FROM tcp_plugin_addresses").WithArgs(9).WillReturnError(sql.ErrNoRows)

	_, err = store.LoadAddress(context.Background(), 9)
	require.Error(t, err)
}

func TestTCPPlugin_LifecycleAndGetPlans(t *testing.T) {
	p := &tcpPlugin{}
	assert.Equal(t, "tcp", p.Name())
	assert.True(t, p.MemQuery(plan.Host))
	assert.False(t, p.MemQuery(plan.Device))

	ctx, status := p.ContextInit()
	require.False(t, status.Failed())
	defer p.ContextCleanup(ctx)

	addr, status := p.ContextQuery(ctx)
	require.False(t, status.Failed())
	require.NotEmpty(t, addr)

	g, status := p.GroupCreate(ctx, GroupParams{ID: 1, Size: 4, MyRank: 0})
	require.False(t, status.Failed())
	defer p.GroupDestroy(ctx, g)

	entries := p.GetPlans(ctx, g)
	require.Len(t, entries, 8)
	seen := make(map[plan.CollType]bool)
	for _, e := range entries {
		seen[e.Coll] = true
		assert.Equal(t, plan.Host, e.Mem)
		assert.NotNil(t, e.Plan.Attr.Prepare)
	}
	assert.True(t, seen[plan.Bcast])
	assert.True(t, seen[plan.Reduce])
}

func TestTCPPlugin_Config(t *testing.T) {
	p := &tcpPlugin{}
	ctx, status := p.ContextInit()
	require.False(t, status.Failed())
	defer p.ContextCleanup(ctx)

	vals, status := p.ConfigRead(ctx)
	require.False(t, status.Failed())
	assert.Equal(t, "128", vals["backlog"])

	status = p.ConfigModify(ctx, "backlog", "256")
	require.False(t, status.Failed())

	vals, status = p.ConfigRead(ctx)
	require.False(t, status.Failed())
	assert.Equal(t, "256", vals["backlog"])

	status = p.ConfigModify(ctx, "backlog", "not-a-number")
	assert.True(t, status.Failed())

	status = p.ConfigModify(ctx, "unknown", "1")
	assert.True(t, status.Failed())

	p.ConfigRelease(ctx)
}
