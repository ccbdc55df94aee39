// Package pool maintains a bounded set of database sessions, amortizing the
// cost of session creation across many operations. Sessions are leased to
// one caller at a time and returned on completion; a background task pings
// idle sessions so the server does not expire them.
package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var (
	// ErrExhausted is returned by Acquire when the pool is at max capacity,
	// no session is available, and the fail policy is enabled.
	ErrExhausted = errors.New("session pool exhausted")

	// ErrClosed is returned by Acquire after Close.
	ErrClosed = errors.New("session pool closed")
)

// Session is a leased server-side handle. It is owned by the pool except
// while leased; the leaseholder must hand it back via Release exactly once.
type Session struct {
	Name     string
	LastUsed time.Time

	// TxID is the pre-allocated transaction id, if any. Consumers that use
	// it must clear the field before releasing the session.
	TxID string

	invalid bool
}

// Invalidate marks the session as unusable, e.g. because the server
// reported it gone. Release discards invalid sessions instead of pooling
// them.
func (s *Session) Invalidate() { s.invalid = true }

// HasTransaction reports whether a transaction is pre-allocated on this
// session.
func (s *Session) HasTransaction() bool { return s.TxID != "" }

type Config struct {
	// Min sessions are created eagerly at construction.
	Min int
	// Max bounds leased + available sessions.
	Max int
	// KeepAlive is the idle age after which a session is pinged before reuse.
	KeepAlive time.Duration
	// WriteRatio is the fraction of the initial population that gets a
	// pre-allocated transaction.
	WriteRatio float64
	// Fail selects the exhaustion policy: true errors with ErrExhausted,
	// false blocks until a session is released.
	Fail bool
	// PingInterval overrides the keep-alive tick, mainly for tests.
	// Defaults to KeepAlive/2 clamped to [1s, 5m].
	PingInterval time.Duration

	Logger *slog.Logger
}

func (c Config) validate() error {
	if c.Min < 0 {
		return fmt.Errorf("min must be >= 0, got %d", c.Min)
	}
	if c.Max <= 0 {
		return fmt.Errorf("max must be > 0, got %d", c.Max)
	}
	if c.Min > c.Max {
		return fmt.Errorf("min (%d) must not exceed max (%d)", c.Min, c.Max)
	}
	if c.KeepAlive <= 0 {
		return fmt.Errorf("keepalive must be > 0, got %s", c.KeepAlive)
	}
	if c.WriteRatio < 0 || c.WriteRatio > 1 {
		return fmt.Errorf("write ratio must be in [0, 1], got %g", c.WriteRatio)
	}
	return nil
}

// Pool is a bounded session pool. One mutex guards all accounting; the
// condition variable wakes acquirers blocked on exhaustion.
type Pool struct {
	cfg    Config
	client SessionClient
	logger *slog.Logger

	mu        sync.Mutex
	cond      *sync.Cond
	available []*Session // LIFO
	numOpen   int        // leased + available + reserved for in-flight creates
	closed    bool

	stopCh chan struct{}
	doneCh chan struct{}
}

// New validates cfg, eagerly creates Min sessions (a WriteRatio share of
// them with a pre-allocated transaction), and starts the keep-alive task.
func New(ctx context.Context, client SessionClient, cfg Config) (*Pool, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid pool config: %w", err)
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = cfg.KeepAlive / 2
		if cfg.PingInterval < time.Second {
			cfg.PingInterval = time.Second
		}
		if cfg.PingInterval > 5*time.Minute {
			cfg.PingInterval = 5 * time.Minute
		}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pool{
		cfg:    cfg,
		client: client,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)

	if cfg.Min > 0 {
		names, err := client.BatchCreateSessions(ctx, cfg.Min)
		if err != nil {
			return nil, fmt.Errorf("populate session pool: %w", err)
		}
		withTx := int(float64(len(names))*cfg.WriteRatio + 0.5)
		now := time.Now()
		for i, name := range names {
			s := &Session{Name: name, LastUsed: now}
			if i < withTx {
				txID, err := client.BeginTransaction(ctx, name)
				if err != nil {
					// The session is still usable, just without the
					// saved round trip on first write.
					logger.Warn("pre-allocating transaction failed", "session", name, "error", err)
				} else {
					s.TxID = txID
				}
			}
			p.available = append(p.available, s)
		}
		p.numOpen = len(names)
	}

	go p.keepAlive()
	return p, nil
}

// Acquire leases a session. When the pool is at max and empty it either
// returns ErrExhausted (fail policy) or blocks until a release or ctx
// cancellation.
func (p *Pool) Acquire(ctx context.Context) (*Session, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, ErrClosed
		}

		if n := len(p.available); n > 0 {
			s := p.available[n-1]
			p.available = p.available[:n-1]
			stale := time.Since(s.LastUsed) >= p.cfg.KeepAlive
			p.mu.Unlock()
			if stale {
				if err := p.client.PingSession(ctx, s.Name); err != nil {
					if cerr := ctx.Err(); cerr != nil {
						// The caller gave up mid-ping; the session is not
						// known dead, so it goes back instead of being
						// discarded.
						p.mu.Lock()
						if p.closed {
							p.numOpen--
							p.mu.Unlock()
							p.deleteSession(s.Name)
							return nil, cerr
						}
						p.available = append(p.available, s)
						p.cond.Signal()
						p.mu.Unlock()
						return nil, cerr
					}
					p.logger.Warn("stale session failed ping, discarding", "session", s.Name, "error", err)
					p.discard(s)
					continue
				}
			}
			s.LastUsed = time.Now()
			return s, nil
		}

		if p.numOpen < p.cfg.Max {
			p.numOpen++ // reserve the slot before the RPC
			p.mu.Unlock()
			name, err := p.client.CreateSession(ctx)
			if err != nil {
				p.mu.Lock()
				p.numOpen--
				p.cond.Signal()
				p.mu.Unlock()
				return nil, fmt.Errorf("create session: %w", err)
			}
			return &Session{Name: name, LastUsed: time.Now()}, nil
		}

		if p.cfg.Fail {
			p.mu.Unlock()
			return nil, ErrExhausted
		}

		// Block until a release, close, or ctx cancellation. The AfterFunc
		// broadcast is what lets a cancelled waiter leave the cond wait.
		stop := context.AfterFunc(ctx, func() {
			p.mu.Lock()
			p.cond.Broadcast()
			p.mu.Unlock()
		})
		for len(p.available) == 0 && p.numOpen >= p.cfg.Max && !p.closed && ctx.Err() == nil {
			p.cond.Wait()
		}
		p.mu.Unlock()
		stop()
	}
}

// Release hands a session back. Invalid sessions are discarded and replaced
// in the background so the pool's capacity is not silently eroded.
func (p *Pool) Release(s *Session) {
	if s == nil {
		return
	}
	if s.invalid {
		go p.replace(s)
		return
	}

	p.mu.Lock()
	if p.closed {
		p.numOpen--
		p.mu.Unlock()
		p.deleteSession(s.Name)
		return
	}
	s.LastUsed = time.Now()
	p.available = append(p.available, s)
	p.cond.Signal()
	p.mu.Unlock()
}

// Stats is a point-in-time snapshot of pool accounting.
type Stats struct {
	Available int
	Leased    int
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{Available: len(p.available), Leased: p.numOpen - len(p.available)}
}

// Close stops the keep-alive task, wakes blocked acquirers with ErrClosed,
// and deletes the remaining sessions. Safe to call more than once.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	sessions := p.available
	p.available = nil
	p.numOpen -= len(sessions)
	p.cond.Broadcast()
	p.mu.Unlock()

	close(p.stopCh)
	<-p.doneCh // join the keep-alive task before tearing down sessions

	for _, s := range sessions {
		p.deleteSession(s.Name)
	}
	return nil
}

func (p *Pool) keepAlive() {
	defer close(p.doneCh)
	ticker := time.NewTicker(p.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.pingIdle()
		}
	}
}

// pingIdle pings every available session idle longer than KeepAlive.
// Stale sessions are pulled out of the available set while their ping is in
// flight; they still count against max.
func (p *Pool) pingIdle() {
	cutoff := time.Now().Add(-p.cfg.KeepAlive)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	var stale, fresh []*Session
	for _, s := range p.available {
		if s.LastUsed.Before(cutoff) {
			stale = append(stale, s)
		} else {
			fresh = append(fresh, s)
		}
	}
	p.available = fresh
	p.mu.Unlock()

	if len(stale) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, s := range stale {
		if err := p.client.PingSession(ctx, s.Name); err != nil {
			p.logger.Warn("keep-alive ping failed, replacing session", "session", s.Name, "error", err)
			p.discard(s)
			p.restock(ctx)
			continue
		}
		s.LastUsed = time.Now()
		p.mu.Lock()
		if p.closed {
			p.numOpen--
			p.mu.Unlock()
			p.deleteSession(s.Name)
			continue
		}
		p.available = append(p.available, s)
		p.cond.Signal()
		p.mu.Unlock()
	}
}

// replace discards an invalidated session and restores the pool's capacity
// with a fresh one.
func (p *Pool) replace(s *Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	p.discard(s)
	p.restock(ctx)
}

// discard drops a session from the accounting and deletes it server-side.
func (p *Pool) discard(s *Session) {
	p.mu.Lock()
	p.numOpen--
	p.cond.Signal() // a freed slot lets a blocked acquirer create
	p.mu.Unlock()
	p.deleteSession(s.Name)
}

// restock creates one replacement session and adds it to the available set,
// retrying transient failures. Failures are logged, never propagated: the
// pool keeps serving with what it has.
func (p *Pool) restock(ctx context.Context) {
	op := func() error {
		p.mu.Lock()
		if p.closed || p.numOpen >= p.cfg.Max {
			p.mu.Unlock()
			return nil
		}
		p.numOpen++
		p.mu.Unlock()

		name, err := p.client.CreateSession(ctx)
		if err != nil {
			p.mu.Lock()
			p.numOpen--
			p.cond.Signal()
			p.mu.Unlock()
			return err
		}

		s := &Session{Name: name, LastUsed: time.Now()}
		p.mu.Lock()
		if p.closed {
			p.numOpen--
			p.mu.Unlock()
			p.deleteSession(name)
			return nil
		}
		p.available = append(p.available, s)
		p.cond.Signal()
		p.mu.Unlock()
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		p.logger.Warn("session replacement failed", "error", err)
	}
}

func (p *Pool) deleteSession(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := p.client.DeleteSession(ctx, name); err != nil {
		p.logger.Debug("delete session", "session", name, "error", err)
	}
}
