package wolkendb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-arndt/wolkendb/internal/config"
	"github.com/p-arndt/wolkendb/internal/service"
	"github.com/p-arndt/wolkendb/internal/transport"
	"github.com/p-arndt/wolkendb/protocol"
)

// sessionFarm wires the session RPCs into a fakeInvoker with sequential
// session names and a record of deletions.
type sessionFarm struct {
	mu      sync.Mutex
	next    int
	deleted []string
}

func (s *sessionFarm) newName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return fmt.Sprintf("s-%d", s.next)
}

func (s *sessionFarm) wasDeleted(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.deleted {
		if d == name {
			return true
		}
	}
	return false
}

func (s *sessionFarm) install(inv *fakeInvoker) {
	inv.on(protocol.MethodBatchCreateSessions, func(req any) (any, error) {
		count := req.(*protocol.BatchCreateSessionsRequest).Count
		sessions := make([]*protocol.Session, count)
		for i := range sessions {
			sessions[i] = &protocol.Session{Name: s.newName()}
		}
		return &protocol.BatchCreateSessionsResponse{Sessions: sessions}, nil
	})
	inv.on(protocol.MethodCreateSession, func(any) (any, error) {
		return &protocol.Session{Name: s.newName()}, nil
	})
	inv.on(protocol.MethodDeleteSession, func(req any) (any, error) {
		s.mu.Lock()
		s.deleted = append(s.deleted, req.(*protocol.DeleteSessionRequest).Name)
		s.mu.Unlock()
		return nil, nil
	})
	inv.on(protocol.MethodBeginTransaction, func(any) (any, error) {
		return &protocol.BeginTransactionResponse{TransactionID: "tx-1"}, nil
	})
}

func newTestClient(t *testing.T, inv *fakeInvoker, opts SessionPoolOptions) *Client {
	t.Helper()
	p := newTestProject(t, inv)
	c, err := p.Client(context.Background(), "i1", "d1", opts)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

// smallPool keeps the eager population to one session with no
// pre-allocated transaction.
func smallPool() SessionPoolOptions {
	return SessionPoolOptions{MinSessions: ptr(1), MaxSessions: 2, WriteRatio: ptr(0.0)}
}

func TestClient_QueryUsesSingleUseTransaction(t *testing.T) {
	inv := newFakeInvoker()
	farm := &sessionFarm{}
	farm.install(inv)
	inv.on(protocol.MethodExecuteSql, func(req any) (any, error) {
		r := req.(*protocol.ExecuteSqlRequest)
		assert.Equal(t, "s-1", r.Session)
		assert.Empty(t, r.TransactionID)
		assert.Equal(t, "SELECT name FROM users WHERE id = @id", r.Sql)
		assert.Equal(t, map[string]any{"id": 7}, r.Params)
		return &protocol.ResultSet{Columns: []string{"name"}, Rows: [][]any{{"ada"}}}, nil
	})
	c := newTestClient(t, inv, smallPool())

	rs, err := c.Query(context.Background(), "SELECT name FROM users WHERE id = @id", map[string]any{"id": 7})
	require.NoError(t, err)
	require.Len(t, rs.Rows, 1)
	assert.Equal(t, "ada", rs.Rows[0][0])

	stats := c.Stats()
	assert.Equal(t, 1, stats.Available, "session returns to the pool after the query")
	assert.Equal(t, 0, stats.Leased)
}

func TestClient_ExecReportsRowCount(t *testing.T) {
	inv := newFakeInvoker()
	farm := &sessionFarm{}
	farm.install(inv)
	inv.respond(protocol.MethodExecuteSql, &protocol.ResultSet{RowCount: 4})
	c := newTestClient(t, inv, smallPool())

	n, err := c.Exec(context.Background(), "UPDATE users SET active = false", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestClient_ReadWriteTransactionCommits(t *testing.T) {
	commitTime := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	inv := newFakeInvoker()
	farm := &sessionFarm{}
	farm.install(inv)
	inv.on(protocol.MethodExecuteSql, func(req any) (any, error) {
		r := req.(*protocol.ExecuteSqlRequest)
		assert.Equal(t, "tx-1", r.TransactionID)
		return &protocol.ResultSet{RowCount: 1}, nil
	})
	inv.on(protocol.MethodCommit, func(req any) (any, error) {
		r := req.(*protocol.CommitRequest)
		assert.Equal(t, "tx-1", r.TransactionID)
		return &protocol.CommitResponse{CommitTime: commitTime}, nil
	})
	c := newTestClient(t, inv, smallPool())

	ts, err := c.ReadWriteTransaction(context.Background(), func(ctx context.Context, tx *Transaction) error {
		n, err := tx.Exec(ctx, "INSERT INTO users (name) VALUES (@n)", map[string]any{"n": "ada"})
		if err != nil {
			return err
		}
		assert.Equal(t, int64(1), n)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, commitTime, ts)
	assert.Zero(t, inv.callsTo(protocol.MethodRollback))
}

func TestClient_ReadWriteTransactionRollsBackOnError(t *testing.T) {
	boom := errors.New("business rule violated")
	inv := newFakeInvoker()
	farm := &sessionFarm{}
	farm.install(inv)
	inv.on(protocol.MethodRollback, func(req any) (any, error) {
		assert.Equal(t, "tx-1", req.(*protocol.RollbackRequest).TransactionID)
		return nil, nil
	})
	c := newTestClient(t, inv, smallPool())

	_, err := c.ReadWriteTransaction(context.Background(), func(ctx context.Context, tx *Transaction) error {
		return boom
	})
	assert.Same(t, boom, err, "fn's error is returned unchanged")
	assert.Equal(t, 1, inv.callsTo(protocol.MethodRollback))
	assert.Zero(t, inv.callsTo(protocol.MethodCommit))
}

func TestClient_ReadWriteTransactionUsesPreparedTransaction(t *testing.T) {
	inv := newFakeInvoker()
	farm := &sessionFarm{}
	farm.install(inv)
	inv.respond(protocol.MethodCommit, &protocol.CommitResponse{CommitTime: time.Now()})
	// WriteRatio 1 pre-allocates a transaction on the single session.
	c := newTestClient(t, inv, SessionPoolOptions{MinSessions: ptr(1), MaxSessions: 2, WriteRatio: ptr(1.0)})

	begun := inv.callsTo(protocol.MethodBeginTransaction)
	require.Equal(t, 1, begun, "pool construction pre-allocates the transaction")

	_, err := c.ReadWriteTransaction(context.Background(), func(ctx context.Context, tx *Transaction) error {
		assert.Equal(t, "tx-1", tx.ID())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, begun, inv.callsTo(protocol.MethodBeginTransaction), "prepared transaction skips BeginTransaction")
}

func TestClient_NotFoundInvalidatesSession(t *testing.T) {
	inv := newFakeInvoker()
	farm := &sessionFarm{}
	farm.install(inv)
	inv.on(protocol.MethodExecuteSql, func(any) (any, error) {
		return nil, &transport.StatusError{Code: transport.CodeNotFound, Message: "session expired"}
	})
	c := newTestClient(t, inv, smallPool())

	_, err := c.Query(context.Background(), "SELECT 1", nil)
	require.Error(t, err)
	assert.True(t, transport.IsNotFound(err))

	// The expired session is deleted and replaced in the background.
	assert.Eventually(t, func() bool {
		return farm.wasDeleted("s-1") && c.Stats().Available == 1
	}, time.Second, 5*time.Millisecond)
}

func TestClient_CloseStopsSessionUse(t *testing.T) {
	inv := newFakeInvoker()
	farm := &sessionFarm{}
	farm.install(inv)
	c := newTestClient(t, inv, smallPool())

	require.NoError(t, c.Close())
	assert.True(t, farm.wasDeleted("s-1"))

	_, err := c.Query(context.Background(), "SELECT 1", nil)
	assert.ErrorIs(t, err, ErrClientClosed)
}

func TestClient_PoolExhaustionFailsFast(t *testing.T) {
	inv := newFakeInvoker()
	farm := &sessionFarm{}
	farm.install(inv)
	blocker := make(chan struct{})
	inv.on(protocol.MethodExecuteSql, func(any) (any, error) {
		<-blocker
		return &protocol.ResultSet{}, nil
	})
	c := newTestClient(t, inv, SessionPoolOptions{MinSessions: ptr(1), MaxSessions: 1, WriteRatio: ptr(0.0)})

	done := make(chan error, 1)
	go func() {
		_, err := c.Query(context.Background(), "SELECT pg_sleep(10)", nil)
		done <- err
	}()

	require.Eventually(t, func() bool { return c.Stats().Leased == 1 }, time.Second, time.Millisecond)

	_, err := c.Query(context.Background(), "SELECT 1", nil)
	assert.ErrorIs(t, err, ErrPoolExhausted)

	close(blocker)
	require.NoError(t, <-done)
}

func TestClient_PoolConfigFromEnvironment(t *testing.T) {
	t.Setenv("WOLKENDB_POOL_MIN_SESSIONS", "1")
	t.Setenv("WOLKENDB_POOL_MAX_SESSIONS", "1")
	t.Setenv("WOLKENDB_POOL_WRITE_RATIO", "0")
	t.Setenv("WOLKENDB_POOL_FAIL_ON_EXHAUSTED", "true")

	inv := newFakeInvoker()
	farm := &sessionFarm{}
	farm.install(inv)
	blocker := make(chan struct{})
	inv.on(protocol.MethodExecuteSql, func(any) (any, error) {
		<-blocker
		return &protocol.ResultSet{}, nil
	})

	p, err := NewProject(Options{Project: "p1", Logger: discardLogger()})
	require.NoError(t, err)
	p.svc = service.New(inv)

	c, err := p.Client(context.Background(), "i1", "d1", SessionPoolOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	assert.Equal(t, 1, c.Stats().Available, "eager population follows the env minimum")

	done := make(chan error, 1)
	go func() {
		_, err := c.Query(context.Background(), "SELECT 1", nil)
		done <- err
	}()
	require.Eventually(t, func() bool { return c.Stats().Leased == 1 }, time.Second, time.Millisecond)

	_, err = c.Query(context.Background(), "SELECT 1", nil)
	assert.ErrorIs(t, err, ErrPoolExhausted, "env maximum bounds the pool")

	close(blocker)
	require.NoError(t, <-done)
}

func TestSessionPoolOptions_ExplicitZerosOverrideDefaults(t *testing.T) {
	def := config.DefaultPool()
	def.FailOnExhausted = false

	cfg := SessionPoolOptions{
		MinSessions:      ptr(0),
		WriteRatio:       ptr(0.0),
		BlockOnExhausted: ptr(false),
	}.poolConfig(def, discardLogger())

	assert.Zero(t, cfg.Min, "explicit zero minimum must not revert to the default")
	assert.Zero(t, cfg.WriteRatio)
	assert.True(t, cfg.Fail, "explicit fail-fast overrides a blocking default")
	assert.Equal(t, def.MaxSessions, cfg.Max)
	assert.Equal(t, def.KeepAlive(), cfg.KeepAlive)
}
