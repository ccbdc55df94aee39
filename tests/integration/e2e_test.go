//go:build integration

package integration

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-arndt/wolkendb"
	"github.com/p-arndt/wolkendb/debugger"
	"github.com/p-arndt/wolkendb/internal/service"
	"github.com/p-arndt/wolkendb/internal/testutil"
	"github.com/p-arndt/wolkendb/internal/transport"
	"github.com/p-arndt/wolkendb/protocol"
)

func ptr[T any](v T) *T { return &v }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startProject(t *testing.T) (*wolkendb.Project, *testutil.Server) {
	t.Helper()
	srv := testutil.NewServer()
	t.Cleanup(srv.Close)

	p, err := wolkendb.NewProject(wolkendb.Options{
		Project:  "p1",
		Endpoint: srv.URL(),
		APIKey:   testutil.TestAPIKey,
		Logger:   testLogger(),
	})
	require.NoError(t, err)
	return p, srv
}

func TestInstanceLifecycle(t *testing.T) {
	p, srv := startProject(t)
	srv.AddInstanceConfig("p1", "eu-central", "EU Central")
	srv.OperationPolls = 2

	ctx := context.Background()

	missing, err := p.Instance(ctx, "prod")
	require.NoError(t, err)
	assert.Nil(t, missing)

	job, err := p.CreateInstance(ctx, "prod", wolkendb.InstanceSpec{
		ConfigID:  "eu-central",
		NodeCount: 3,
	})
	require.NoError(t, err)
	job.PollInterval = time.Millisecond
	require.NoError(t, job.Wait(ctx))

	inst := job.Instance()
	require.NotNil(t, inst)
	assert.Equal(t, "prod", inst.ID())
	assert.True(t, inst.Ready())
	assert.Equal(t, 3, inst.NodeCount())

	require.NoError(t, inst.Update(ctx, wolkendb.InstanceUpdate{NodeCount: 5}))
	assert.Equal(t, 5, inst.NodeCount())

	again, err := p.Instance(ctx, "prod")
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, 5, again.NodeCount())
}

func TestDatabaseLifecycleAndPagination(t *testing.T) {
	p, srv := startProject(t)
	srv.AddInstance("p1", "prod", 1)
	srv.PageSize = 2

	ctx := context.Background()

	for _, id := range []string{"alpha", "beta", "gamma", "delta", "epsilon"} {
		job, err := p.CreateDatabase(ctx, "prod", id)
		require.NoError(t, err)
		job.PollInterval = time.Millisecond
		require.NoError(t, job.Wait(ctx))
		require.NotNil(t, job.Database())
	}

	all, err := p.AllDatabases(ctx, "prod")
	require.NoError(t, err)
	require.Len(t, all, 5, "pagination must visit every database exactly once")

	seen := map[string]bool{}
	for _, db := range all {
		assert.False(t, seen[db.ID()], "database %s listed twice", db.ID())
		seen[db.ID()] = true
		assert.True(t, db.Ready())
	}
}

func TestTransactionalClient(t *testing.T) {
	p, srv := startProject(t)
	srv.AddInstance("p1", "prod", 1)
	srv.AddDatabase("p1", "prod", "orders")

	ctx := context.Background()

	client, err := p.Client(ctx, "prod", "orders", wolkendb.SessionPoolOptions{
		MinSessions: ptr(4),
		MaxSessions: 8,
	})
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, 4, srv.SessionCount(), "pool creates its minimum eagerly")

	rs, err := client.Query(ctx, "SELECT value FROM config", nil)
	require.NoError(t, err)
	require.Len(t, rs.Rows, 1)

	n, err := client.Exec(ctx, "UPDATE orders SET shipped = true WHERE id = @id", map[string]any{"id": 7})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	commitTime, err := client.ReadWriteTransaction(ctx, func(ctx context.Context, tx *wolkendb.Transaction) error {
		if _, err := tx.Exec(ctx, "INSERT INTO orders (id) VALUES (@id)", map[string]any{"id": 8}); err != nil {
			return err
		}
		_, err := tx.Query(ctx, "SELECT count(*) FROM orders", nil)
		return err
	})
	require.NoError(t, err)
	assert.False(t, commitTime.IsZero())
}

func TestClientClosesItsSessions(t *testing.T) {
	p, srv := startProject(t)
	srv.AddInstance("p1", "prod", 1)
	srv.AddDatabase("p1", "prod", "orders")

	client, err := p.Client(context.Background(), "prod", "orders", wolkendb.SessionPoolOptions{
		MinSessions: ptr(3),
		MaxSessions: 5,
	})
	require.NoError(t, err)
	require.Equal(t, 3, srv.SessionCount())

	require.NoError(t, client.Close())
	assert.Equal(t, 0, srv.SessionCount(), "close must delete every pooled session")
}

func TestExpiredSessionIsReplaced(t *testing.T) {
	p, srv := startProject(t)
	srv.AddInstance("p1", "prod", 1)
	srv.AddDatabase("p1", "prod", "orders")

	ctx := context.Background()
	client, err := p.Client(ctx, "prod", "orders", wolkendb.SessionPoolOptions{
		MinSessions: ptr(1),
		MaxSessions: 1,
		WriteRatio:  ptr(0.0),
	})
	require.NoError(t, err)
	defer client.Close()

	// Kill the only session behind the client's back, as the service's
	// reaper would.
	rs, err := client.Query(ctx, "SELECT 1", nil)
	require.NoError(t, err)
	require.NotNil(t, rs)

	srv.ExpireAllSessions()

	_, err = client.Query(ctx, "SELECT 1", nil)
	require.Error(t, err)
	assert.True(t, transport.IsNotFound(err))

	// The pool restocks in the background; the next query finds a fresh
	// session.
	assert.Eventually(t, func() bool {
		_, err := client.Query(ctx, "SELECT 1", nil)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDebuggerAgentRoundTrip(t *testing.T) {
	srv := testutil.NewServer()
	t.Cleanup(srv.Close)

	inv := transport.New(transport.Config{Endpoint: srv.URL(), APIKey: testutil.TestAPIKey})
	svc := service.New(inv)

	h := &captureHandler{}
	agent, err := debugger.New(debugger.Config{
		Controller:   svc,
		Handler:      h,
		Project:      "p1",
		Service:      "orders-api",
		Version:      "v7",
		PollInterval: 5 * time.Millisecond,
		Logger:       testLogger(),
	})
	require.NoError(t, err)

	require.NoError(t, agent.Start(context.Background()))
	defer agent.Stop()

	bp := &protocol.Breakpoint{
		ID:       "bp-1",
		Action:   protocol.ActionCapture,
		Location: &protocol.SourceLocation{Path: "orders/handler.go", Line: 120},
	}
	srv.SetBreakpoint(bp)

	require.Eventually(t, func() bool { return h.got() != nil }, time.Second, 5*time.Millisecond)

	captured := h.got()
	captured.StackFrames = []*protocol.StackFrame{{
		Function: "orders.Ship",
		Location: captured.Location,
		Locals:   []*protocol.Variable{{Name: "orderID", Value: "7", Type: "int64"}},
	}}
	require.NoError(t, agent.Complete(context.Background(), captured))

	final := srv.Breakpoint("bp-1")
	require.NotNil(t, final)
	assert.True(t, final.IsFinalState)
	require.Len(t, final.StackFrames, 1)
	assert.Equal(t, "orders.Ship", final.StackFrames[0].Function)
}

type captureHandler struct {
	mu sync.Mutex
	bp *protocol.Breakpoint
}

func (h *captureHandler) Attach(bp *protocol.Breakpoint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bp = bp
}

func (h *captureHandler) Detach(id string) {}

func (h *captureHandler) got() *protocol.Breakpoint {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.bp
}
