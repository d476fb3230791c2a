// Package server exposes the interpreters over HTTP (Connect, with JSON and
// CBOR codecs) and to editors over LSP.
package server

import (
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/tliron/commonlog"

	"github.com/chazu/jiki/vm"
)

var log = commonlog.GetLogger("jiki.server")

// Server is the HTTP interpreter service with its runner pool, program
// handles and optional result cache.
type Server struct {
	runner   *Runner
	programs *ProgramStore
	cache    *ResultCache
	mux      *http.ServeMux

	stopSweeper func()
}

// ServerOption configures a Server.
type ServerOption func(*serverConfig)

type serverConfig struct {
	policy        vm.Policy
	externals     *vm.Externals
	runners       int
	cachePath     string
	programTTL    time.Duration
	sweepInterval time.Duration
}

// WithPolicy sets the policy used by requests that carry none.
func WithPolicy(p vm.Policy) ServerOption {
	return func(c *serverConfig) { c.policy = p }
}

// WithExternals exposes host functions to every run. Runs that can reach
// host functions bypass the result cache.
func WithExternals(x *vm.Externals) ServerOption {
	return func(c *serverConfig) { c.externals = x }
}

// WithRunners bounds the number of concurrent runs.
func WithRunners(n int) ServerOption {
	return func(c *serverConfig) { c.runners = n }
}

// WithResultCache enables the SQLite result cache at path.
func WithResultCache(path string) ServerOption {
	return func(c *serverConfig) { c.cachePath = path }
}

// WithProgramTTL sets how long an unused program handle lives and how often
// expired handles are swept.
func WithProgramTTL(ttl, sweepInterval time.Duration) ServerOption {
	return func(c *serverConfig) {
		c.programTTL = ttl
		c.sweepInterval = sweepInterval
	}
}

// New creates a Server. It fails when the policy is invalid or the result
// cache cannot be opened.
func New(opts ...ServerOption) (*Server, error) {
	cfg := &serverConfig{
		policy:        vm.DefaultPolicy(),
		runners:       runtime.GOMAXPROCS(0),
		programTTL:    30 * time.Minute,
		sweepInterval: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.policy.Validate(); err != nil {
		return nil, err
	}
	if cfg.sweepInterval <= 0 {
		cfg.sweepInterval = time.Minute
	}

	s := &Server{
		runner:   NewRunner(cfg.runners),
		programs: NewProgramStore(),
		mux:      http.NewServeMux(),
	}
	if cfg.cachePath != "" {
		cache, err := OpenResultCache(cfg.cachePath)
		if err != nil {
			s.runner.Stop()
			return nil, err
		}
		s.cache = cache
	}

	svc := NewInterpreterService(s.runner, s.programs, s.cache, cfg.policy, cfg.externals)
	path, handler := NewInterpreterServiceHandler(svc)
	s.mux.Handle(path, handler)

	s.stopSweeper = s.programs.StartSweeper(cfg.sweepInterval, cfg.programTTL)
	return s, nil
}

// Handler returns the HTTP handler serving every procedure.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe starts the HTTP server on the given address.
// The address should be in the form "host:port" or ":port".
func (s *Server) ListenAndServe(addr string) error {
	log.Noticef("jiki interpreter service listening on %s", addr)
	log.Infof("  Connect (HTTP/JSON, HTTP/CBOR): http://%s%s", addr, InterpretProcedure)
	err := http.ListenAndServe(addr, s.mux)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop shuts down the sweeper, the runners and the cache.
func (s *Server) Stop() {
	if s.stopSweeper != nil {
		s.stopSweeper()
	}
	s.runner.Stop()
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			log.Warningf("closing result cache: %v", err)
		}
	}
}
