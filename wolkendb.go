// Package wolkendb is the Go client for the Wolke managed database
// service. A Project is the entry point: it administers instances and
// databases and hands out per-database Clients that run transactional SQL
// over a pooled set of sessions.
package wolkendb

import (
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/p-arndt/wolkendb/internal/config"
	"github.com/p-arndt/wolkendb/internal/pool"
	"github.com/p-arndt/wolkendb/internal/service"
	"github.com/p-arndt/wolkendb/internal/transport"
)

// Sentinel errors surfaced by Clients, re-exported so callers never have
// to reach into internal packages.
var (
	// ErrPoolExhausted is returned by session-consuming calls when the
	// pool is at capacity and configured to fail rather than block.
	ErrPoolExhausted = pool.ErrExhausted

	// ErrClientClosed is returned by calls on a closed Client.
	ErrClientClosed = pool.ErrClosed
)

// Options configures a Project. Zero fields fall back to the WOLKENDB_*
// environment and built-in defaults.
type Options struct {
	// Project is the project id. When empty it is resolved from
	// WOLKENDB_PROJECT, CLOUD_PROJECT, then GCLOUD_PROJECT.
	Project  string
	Endpoint string
	APIKey   string
	Timeout  time.Duration
	// ConfigFile is an optional YAML configuration file. When empty only
	// the built-in defaults and the WOLKENDB_* environment apply.
	ConfigFile string
	Logger     *slog.Logger
}

// Project is the top-level handle on one Wolke project.
type Project struct {
	id      string
	svc     *service.Service
	poolCfg config.PoolConfig
	logger  *slog.Logger
}

// NewProject resolves the project id and builds the RPC plumbing. It does
// not call the service; a bad endpoint surfaces on the first operation.
// The loaded pool configuration becomes the fallback for every Client the
// project hands out.
func NewProject(opts Options) (*Project, error) {
	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		return nil, err
	}
	if opts.Endpoint != "" {
		cfg.Endpoint = opts.Endpoint
	}
	if opts.APIKey != "" {
		cfg.APIKey = opts.APIKey
	}
	if opts.Timeout > 0 {
		cfg.TimeoutSeconds = int(opts.Timeout / time.Second)
	}

	id := config.ResolveProject(opts.Project, os.Getenv)
	if id == "" {
		return nil, errors.New("wolkendb: no project id, set Options.Project or WOLKENDB_PROJECT")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	inv := transport.New(transport.Config{
		Endpoint: cfg.Endpoint,
		APIKey:   cfg.APIKey,
		Timeout:  cfg.Timeout(),
	})
	return &Project{id: id, svc: service.New(inv), poolCfg: cfg.Pool, logger: logger}, nil
}

// ID returns the resolved project id.
func (p *Project) ID() string { return p.id }
