// Package api provides the JuniperCAM block normalization REST and
// WebSocket API server.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/FocuswithJustin/JuniperCAM/core/dialect"
	"github.com/FocuswithJustin/JuniperCAM/core/rs274"
	"github.com/FocuswithJustin/JuniperCAM/internal/cache"
	"github.com/FocuswithJustin/JuniperCAM/internal/logging"
	"github.com/FocuswithJustin/JuniperCAM/internal/runlog"
)

// normKey identifies one compiled normalizer variant.
type normKey struct {
	dialect string
	strict  bool
}

// blockKey identifies one cached block result. The table fingerprint pins
// the result to the exact modal table that produced it.
type blockKey struct {
	fingerprint string
	strict      bool
	text        string
}

// Server is one API server instance: the loaded dialect set, the block
// result cache, the optional run transcript store, the job store and the
// WebSocket hub.
type Server struct {
	cfg       Config
	dialects  map[string]*dialect.Dialect
	origins   map[string]string // dialect name -> "builtin" or source path
	names     []string          // sorted dialect names
	blocks    *cache.Cache[blockKey, *rs274.Block]
	runs      *runlog.Store // nil when transcripts are disabled
	jobs      *JobStore
	hub       *Hub
	startTime time.Time

	mu          sync.RWMutex
	normalizers map[normKey]*rs274.Normalizer

	httpServer *http.Server
}

// NewServer loads the dialect set and opens the run transcript store. The
// returned server is ready to serve; Start binds it to cfg.Addr.
func NewServer(cfg Config) (*Server, error) {
	if err := ValidateAuthConfig(cfg.Auth); err != nil {
		return nil, fmt.Errorf("invalid auth config: %w", err)
	}
	if cfg.TLS.Enabled && (cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "") {
		return nil, fmt.Errorf("TLS enabled but cert or key file not specified")
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultConfig().Addr
	}
	if cfg.MaxRequestBytes <= 0 {
		cfg.MaxRequestBytes = DefaultConfig().MaxRequestBytes
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultConfig().CacheSize
	}

	s := &Server{
		cfg:         cfg,
		dialects:    make(map[string]*dialect.Dialect),
		origins:     make(map[string]string),
		blocks:      cache.New[blockKey, *rs274.Block](cfg.CacheSize, cfg.CacheTTL),
		jobs:        NewJobStore(),
		hub:         NewHub(),
		normalizers: make(map[normKey]*rs274.Normalizer),
		startTime:   time.Now(),
	}

	if err := s.loadDialects(); err != nil {
		return nil, err
	}

	if cfg.LogDB != "" {
		store, err := runlog.Open(cfg.LogDB)
		if err != nil {
			return nil, fmt.Errorf("open run log: %w", err)
		}
		s.runs = store
	}

	go s.hub.Run()
	return s, nil
}

// loadDialects registers the built-in dialects and everything found in
// DialectDir. A directory dialect with a built-in's name overrides it.
func (s *Server) loadDialects() error {
	for _, name := range dialect.Names() {
		d, _ := dialect.Builtin(name)
		s.dialects[name] = d
		s.origins[name] = "builtin"
	}

	if s.cfg.DialectDir != "" {
		loaded, err := dialect.LoadDir(s.cfg.DialectDir)
		if err != nil {
			return fmt.Errorf("load dialect dir: %w", err)
		}
		for _, d := range loaded {
			if errs := d.Validate(); len(errs) > 0 {
				return fmt.Errorf("dialect %q: %v", d.Name, errs[0])
			}
			s.dialects[d.Name] = d
			s.origins[d.Name] = s.cfg.DialectDir
		}
	}

	s.names = s.names[:0]
	for name := range s.dialects {
		s.names = append(s.names, name)
	}
	sort.Strings(s.names)

	for _, name := range s.names {
		rows, err := s.dialects[name].Rows()
		if err != nil {
			return fmt.Errorf("dialect %q: %w", name, err)
		}
		logging.DialectLoaded(name, s.origins[name], len(rows))
	}
	return nil
}

// resolveDialect maps a request's dialect reference to a loaded dialect.
// Only names are accepted: the HTTP surface never resolves filesystem
// paths, so requests cannot reach outside the configured dialect set.
func (s *Server) resolveDialect(name string) (*dialect.Dialect, error) {
	if name == "" {
		name = "default"
	}
	d, ok := s.dialects[name]
	if !ok {
		return nil, fmt.Errorf("unknown dialect %q", name)
	}
	return d, nil
}

// normalizer returns the compiled normalizer for a dialect, with the
// dialect's own strict policy unless the request overrides it. Compiled
// tables are cached per variant.
func (s *Server) normalizer(name string, strict *bool) (*rs274.Normalizer, error) {
	d, err := s.resolveDialect(name)
	if err != nil {
		return nil, err
	}

	opts, err := d.Options()
	if err != nil {
		return nil, err
	}
	if strict != nil {
		opts.Strict = *strict
	}

	key := normKey{dialect: d.Name, strict: opts.Strict}
	s.mu.RLock()
	n, ok := s.normalizers[key]
	s.mu.RUnlock()
	if ok {
		return n, nil
	}

	n, err = rs274.NewNormalizer(opts)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.normalizers[key] = n
	s.mu.Unlock()
	return n, nil
}

// normalizeBlock normalizes one block through the result cache. Only
// successful results are cached; failures re-run so their typed errors
// stay fresh.
func (s *Server) normalizeBlock(n *rs274.Normalizer, line string) (*rs274.Block, error) {
	key := blockKey{fingerprint: n.Table().Fingerprint(), strict: n.Strict(), text: line}
	if block, ok := s.blocks.Get(key); ok {
		return block, nil
	}
	block, err := n.NormalizeBlock(line)
	if err != nil {
		return nil, err
	}
	s.blocks.Set(key, block)
	return block, nil
}

// Handler builds the full middleware chain around the route mux.
func (s *Server) Handler() http.Handler {
	mux := s.setupRoutes()

	var handler http.Handler = securityHeaders(mux)

	if s.cfg.Auth.Enabled {
		handler = AuthMiddleware(s.cfg.Auth, handler)
		logging.SecurityEvent("authentication_configured", "api",
			"enabled", true,
			"note", "API key required")
	} else {
		logging.SecurityEvent("authentication_configured", "api",
			"enabled", false,
			"note", "all requests allowed")
	}

	if s.cfg.RateLimitRequests > 0 {
		limiterCfg := RateLimiterConfig{
			RequestsPerMinute: s.cfg.RateLimitRequests,
			BurstSize:         s.cfg.RateLimitBurst,
		}
		if limiterCfg.BurstSize == 0 {
			limiterCfg.BurstSize = 10
		}
		limiter := NewRateLimiter(limiterCfg)
		handler = limiter.Middleware(handler)
		logging.Info("rate limiting enabled",
			"requests_per_minute", limiterCfg.RequestsPerMinute,
			"burst_size", limiterCfg.BurstSize)
	}

	handler = corsMiddleware(s.cfg.AllowedOrigins, handler)
	handler = logging.CombinedMiddleware(handler)
	return handler
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/v1/dialects", s.handleDialects)
	mux.HandleFunc("/v1/table", s.handleTable)
	mux.HandleFunc("/v1/normalize", s.handleNormalize)
	mux.HandleFunc("/v1/jobs", s.handleJobs)
	mux.HandleFunc("/v1/jobs/", s.handleJobByID)
	mux.HandleFunc("/v1/runs", s.handleRuns)
	mux.HandleFunc("/v1/runs/", s.handleRunByID)
	mux.HandleFunc("/ws", s.handleWebSocket)

	return mux
}

// Start binds the server to its address and serves until Shutdown or a
// listener error.
func (s *Server) Start() error {
	protocol := "http"
	wsProtocol := "ws"
	if s.cfg.TLS.Enabled {
		protocol = "https"
		wsProtocol = "wss"
		logging.Info("TLS enabled", "cert_file", s.cfg.TLS.CertFile)
	} else {
		logging.Warn("TLS disabled, using plain HTTP",
			"recommendation", "use TLS or a reverse proxy in production")
	}
	logging.ServerStartup("rest_api", protocol, s.cfg.Addr,
		"websocket_protocol", wsProtocol,
		"dialects", len(s.names))

	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var err error
	if s.cfg.TLS.Enabled {
		err = s.httpServer.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
	} else {
		err = s.httpServer.ListenAndServe()
	}
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests, stops the hub and closes the run
// transcript store.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	s.hub.Stop()
	if s.runs != nil {
		if closeErr := s.runs.Close(); err == nil {
			err = closeErr
		}
	}
	return err
}

// Close releases server resources without waiting for in-flight requests.
// For servers that never started listening.
func (s *Server) Close() error {
	s.hub.Stop()
	if s.runs != nil {
		return s.runs.Close()
	}
	return nil
}
