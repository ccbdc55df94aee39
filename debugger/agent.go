// Package debugger implements the Wolke debugger agent. The agent
// registers the running application as a debuggee, long-polls the
// controller for active breakpoints, hands them to a Handler that
// instruments the process, and reports completed captures back.
package debugger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/p-arndt/wolkendb/protocol"
)

// DefaultPollInterval paces the breakpoint poll loop between long-poll
// rounds.
const DefaultPollInterval = time.Second

// Config configures an Agent. Controller, Handler and Project are
// required.
type Config struct {
	Controller Controller
	Handler    Handler

	// Project the debuggee belongs to.
	Project string
	// Service names the application, shown to debugger users.
	Service string
	// Version distinguishes deployments of the same service.
	Version string

	PollInterval time.Duration
	Logger       *slog.Logger
}

// Agent drives the debuggee lifecycle. Create one with New, then Start
// it; Stop joins the poll loop.
type Agent struct {
	cfg      Config
	debuggee *protocol.Debuggee

	mu        sync.Mutex
	attached  map[string]bool
	completed map[string]bool
	started   bool

	cancel context.CancelFunc
	doneCh chan struct{}
}

func New(cfg Config) (*Agent, error) {
	if cfg.Controller == nil {
		return nil, errors.New("debugger: Controller is required")
	}
	if cfg.Handler == nil {
		return nil, errors.New("debugger: Handler is required")
	}
	if cfg.Project == "" {
		return nil, errors.New("debugger: Project is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Agent{
		cfg:       cfg,
		attached:  map[string]bool{},
		completed: map[string]bool{},
		doneCh:    make(chan struct{}),
	}, nil
}

// Start registers the debuggee and spawns the poll loop. Registration is
// retried with exponential backoff; if it still fails, Start returns the
// error and the agent stays inert.
func (a *Agent) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return errors.New("debugger: agent already started")
	}
	a.started = true
	a.mu.Unlock()

	if err := a.register(ctx); err != nil {
		return fmt.Errorf("register debuggee: %w", err)
	}
	a.cfg.Logger.Info("debuggee registered",
		"debuggee", a.debuggee.ID, "service", a.cfg.Service, "version", a.cfg.Version)

	loopCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	go a.poll(loopCtx)
	return nil
}

// Stop ends the poll loop and waits for it to finish. Safe to call more
// than once.
func (a *Agent) Stop() {
	a.mu.Lock()
	cancel := a.cancel
	a.cancel = nil
	a.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-a.doneCh
}

// DebuggeeID is the service-assigned debuggee id, empty before Start
// succeeds.
func (a *Agent) DebuggeeID() string {
	if a.debuggee == nil {
		return ""
	}
	return a.debuggee.ID
}

// Complete finalizes a breakpoint and reports its results. For capture
// breakpoints the caller fills StackFrames and EvaluatedExpressions
// first. Repeat completions of the same breakpoint are dropped.
func (a *Agent) Complete(ctx context.Context, bp *protocol.Breakpoint) error {
	a.mu.Lock()
	if a.completed[bp.ID] {
		a.mu.Unlock()
		return nil
	}
	a.completed[bp.ID] = true
	a.mu.Unlock()

	bp.IsFinalState = true
	bp.FinalTime = time.Now().UTC()
	if err := a.cfg.Controller.UpdateActiveBreakpoint(ctx, a.debuggee.ID, bp); err != nil {
		a.mu.Lock()
		delete(a.completed, bp.ID)
		a.mu.Unlock()
		return err
	}
	return nil
}

func (a *Agent) register(ctx context.Context) error {
	req := &protocol.Debuggee{
		Project:      a.cfg.Project,
		Uniquifier:   uuid.NewString(),
		Description:  a.cfg.Service,
		AgentVersion: a.cfg.Version,
		Labels: map[string]string{
			"service": a.cfg.Service,
			"version": a.cfg.Version,
		},
	}
	op := func() error {
		d, err := a.cfg.Controller.RegisterDebuggee(ctx, req)
		if err != nil {
			a.cfg.Logger.Warn("debuggee registration failed, retrying", "error", err)
			return err
		}
		a.debuggee = d
		return nil
	}
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), ctx))
}

func (a *Agent) poll(ctx context.Context) {
	defer close(a.doneCh)

	var waitToken string
	for {
		resp, err := a.cfg.Controller.ListActiveBreakpoints(ctx, a.debuggee.ID, waitToken)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			a.cfg.Logger.Warn("breakpoint poll failed", "error", err)
		} else {
			if resp.NextWaitToken != "" {
				waitToken = resp.NextWaitToken
			}
			if !resp.WaitExpired {
				a.sync(resp.Breakpoints)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(a.cfg.PollInterval):
		}
	}
}

// sync diffs the controller's active set against the locally attached
// one and drives the Handler accordingly.
func (a *Agent) sync(active []*protocol.Breakpoint) {
	a.mu.Lock()
	current := map[string]bool{}
	var added []*protocol.Breakpoint
	for _, bp := range active {
		if bp.IsFinalState || a.completed[bp.ID] {
			continue
		}
		current[bp.ID] = true
		if !a.attached[bp.ID] {
			added = append(added, bp)
		}
	}
	var removed []string
	for id := range a.attached {
		if !current[id] {
			removed = append(removed, id)
		}
	}
	a.attached = current
	a.mu.Unlock()

	for _, bp := range added {
		a.cfg.Logger.Debug("breakpoint activated", "breakpoint", bp.ID, "action", bp.Action)
		a.cfg.Handler.Attach(bp)
	}
	for _, id := range removed {
		a.cfg.Logger.Debug("breakpoint deactivated", "breakpoint", id)
		a.cfg.Handler.Detach(id)
	}
}
