package wolkendb

import (
	"context"
	"log/slog"
	"time"

	"github.com/p-arndt/wolkendb/internal/config"
	"github.com/p-arndt/wolkendb/internal/pool"
	"github.com/p-arndt/wolkendb/internal/service"
	"github.com/p-arndt/wolkendb/internal/transport"
	"github.com/p-arndt/wolkendb/protocol"
)

// SessionPoolOptions tune the session pool backing a Client. Unset fields
// (nil pointers, zero MaxSessions and KeepAlive) fall back to the
// project's loaded configuration: the YAML pool section and the
// WOLKENDB_POOL_* environment, then the built-in defaults (10 min, 100
// max, 30 minute keep-alive, write ratio 0.3, fail on exhaustion).
// Pointer fields keep explicit zeros representable.
type SessionPoolOptions struct {
	// MinSessions is the number of sessions created eagerly. An explicit
	// 0 makes the pool populate on demand.
	MinSessions *int
	MaxSessions int
	KeepAlive   time.Duration
	// WriteRatio is the fraction of MinSessions created with a
	// pre-allocated read-write transaction. An explicit 0 disables the
	// pre-allocation.
	WriteRatio *float64
	// BlockOnExhausted makes session-consuming calls wait for a release
	// instead of failing with ErrPoolExhausted when the pool is at
	// MaxSessions.
	BlockOnExhausted *bool
}

func (o SessionPoolOptions) poolConfig(def config.PoolConfig, logger *slog.Logger) pool.Config {
	cfg := pool.Config{
		Min:        def.MinSessions,
		Max:        def.MaxSessions,
		KeepAlive:  def.KeepAlive(),
		WriteRatio: def.WriteRatio,
		Fail:       def.FailOnExhausted,
		Logger:     logger,
	}
	if o.MinSessions != nil {
		cfg.Min = *o.MinSessions
	}
	if o.MaxSessions > 0 {
		cfg.Max = o.MaxSessions
	}
	if o.KeepAlive > 0 {
		cfg.KeepAlive = o.KeepAlive
	}
	if o.WriteRatio != nil {
		cfg.WriteRatio = *o.WriteRatio
	}
	if o.BlockOnExhausted != nil {
		cfg.Fail = !*o.BlockOnExhausted
	}
	return cfg
}

// Client runs SQL against one database through a session pool.
type Client struct {
	db     *service.DatabaseService
	pool   *pool.Pool
	logger *slog.Logger
}

// Client builds a session-pooled client for one database under this
// project. Construction is eager: the pool's minimum sessions are created
// before Client returns, so a bad database name fails here rather than on
// the first query. Close the client to release its sessions.
func (p *Project) Client(ctx context.Context, instanceID, databaseID string, opts SessionPoolOptions) (*Client, error) {
	def := p.poolCfg
	if def.MaxSessions == 0 {
		def = config.DefaultPool()
	}
	db := service.NewDatabaseService(p.svc, protocol.DatabasePath(p.id, instanceID, databaseID))
	sp, err := pool.New(ctx, db, opts.poolConfig(def, p.logger))
	if err != nil {
		return nil, err
	}
	return &Client{db: db, pool: sp, logger: p.logger}, nil
}

// DatabasePath is the full resource name of the client's database.
func (c *Client) DatabasePath() string { return c.db.Database() }

// Query runs a statement in a single-use transaction and returns its rows.
func (c *Client) Query(ctx context.Context, sql string, params map[string]any) (*protocol.ResultSet, error) {
	s, err := c.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer c.pool.Release(s)

	rs, err := c.db.ExecuteSql(ctx, &protocol.ExecuteSqlRequest{
		Session: s.Name,
		Sql:     sql,
		Params:  params,
	})
	if err != nil {
		if transport.IsNotFound(err) {
			s.Invalidate()
		}
		return nil, err
	}
	return rs, nil
}

// Exec runs a DML statement in a single-use transaction and returns the
// affected row count.
func (c *Client) Exec(ctx context.Context, sql string, params map[string]any) (int64, error) {
	rs, err := c.Query(ctx, sql, params)
	if err != nil {
		return 0, err
	}
	return rs.RowCount, nil
}

// ReadWriteTransaction runs fn inside one read-write transaction and
// returns the commit timestamp. If fn returns an error the transaction is
// rolled back and the error returned unchanged. The session's
// pre-allocated transaction is used when present, saving the
// BeginTransaction round trip.
func (c *Client) ReadWriteTransaction(ctx context.Context, fn func(ctx context.Context, tx *Transaction) error) (time.Time, error) {
	s, err := c.pool.Acquire(ctx)
	if err != nil {
		return time.Time{}, err
	}
	defer c.pool.Release(s)

	txID := s.TxID
	s.TxID = ""
	if txID == "" {
		txID, err = c.db.BeginTransaction(ctx, s.Name)
		if err != nil {
			if transport.IsNotFound(err) {
				s.Invalidate()
			}
			return time.Time{}, err
		}
	}

	tx := &Transaction{db: c.db, session: s, id: txID}
	if err := fn(ctx, tx); err != nil {
		if rbErr := c.db.Rollback(ctx, s.Name, txID); rbErr != nil {
			c.logger.Warn("rollback failed", "session", s.Name, "error", rbErr)
		}
		return time.Time{}, err
	}

	resp, err := c.db.Commit(ctx, s.Name, txID)
	if err != nil {
		if transport.IsNotFound(err) {
			s.Invalidate()
		}
		return time.Time{}, err
	}
	return resp.CommitTime, nil
}

// Stats reports the pool's current occupancy.
func (c *Client) Stats() pool.Stats { return c.pool.Stats() }

// Close deletes the pooled sessions. Calls made after Close return
// ErrClientClosed.
func (c *Client) Close() error { return c.pool.Close() }
