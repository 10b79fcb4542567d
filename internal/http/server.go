// Package http serves the server-rendered expense screens. Each browser
// session owns a view.Controller kept in a TTL-LRU cache.
package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"sync"
	"time"

	"expenses/internal/cache"
	"expenses/internal/core"
	"expenses/internal/i18n"
	applog "expenses/internal/log"
	"expenses/internal/middleware/ratelimit"
	"expenses/internal/middleware/security"
	"expenses/internal/middleware/trace"
	"expenses/internal/store"
	appweb "expenses/web"
)

// Config holds the presentation settings of the server.
type Config struct {
	Addr               string
	Locale             i18n.Locale
	Currency           string
	SessionTTL         time.Duration
	MaxSessions        int
	RequestTimeout     time.Duration
	RateLimitPerMinute int
}

func (c *Config) setDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.Currency == "" {
		c.Currency = "SAR"
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = 30 * time.Minute
	}
	if c.MaxSessions <= 0 {
		c.MaxSessions = 1000
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 10 * time.Second
	}
}

type Server struct {
	http.Server
	mux       *http.ServeMux
	gateway   store.Gateway
	msgs      *i18n.Messages
	templates *template.Template
	logger    *applog.Logger
	timeout   time.Duration
	now       func() time.Time

	sessions     *sessionStore
	cacheManager *cache.Manager
	rateLimiter  *ratelimit.Limiter
	detector     *security.Detector
	trace        *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates.
func NewServer(cfg Config, gateway store.Gateway, logger *applog.Logger) (*Server, error) {
	cfg.setDefaults()
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)
	msgs := i18n.For(cfg.Locale)

	tmpl, err := parseTemplates(cfg.Currency)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	s := &Server{
		mux:          mux,
		gateway:      gateway,
		msgs:         msgs,
		templates:    tmpl,
		logger:       logger,
		timeout:      cfg.RequestTimeout,
		now:          time.Now,
		sessions:     newSessionStore(cfg.MaxSessions, cfg.SessionTTL),
		cacheManager: cache.NewManager(logger.Base()),
		rateLimiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute}),
		detector:     security.NewDetector(),
	}
	s.trace = trace.NewMiddleware(logger, s.detector.ClientIP)

	s.cacheManager.Register(s.sessions.controllers)
	s.cacheManager.StartCleanup(cfg.SessionTTL / 2)

	static, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("mount static assets: %w", err)
	}
	mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(
		http.StripPrefix("/static/", http.FileServerFS(static))))

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /expenses", s.handleSave)
	mux.HandleFunc("POST /expenses/{id}/edit", s.handleEdit)
	mux.HandleFunc("POST /expenses/{id}/delete", s.handleDelete)
	mux.HandleFunc("POST /edit/cancel", s.handleCancelEdit)
	mux.HandleFunc("GET /filter", s.handleFilter)
	mux.HandleFunc("GET /export.csv", s.handleExport)
	mux.HandleFunc("POST /error/dismiss", s.handleDismiss)
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	var h http.Handler = mux
	h = s.rateLimiter.Middleware(s.detector.ClientIP, ratelimit.Mutating)(h)
	h = s.detector.Middleware(h)
	h = security.Headers(security.DefaultHeadersConfig())(h)
	h = s.trace.Middleware(h)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Mount serves h under prefix, e.g. the JSON API under "/api/". Mounted
// handlers share the middleware stack.
func (s *Server) Mount(prefix string, h http.Handler) {
	s.mux.Handle(prefix, h)
}

// Shutdown stops background cleanup and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		s.logger.InfoContext(ctx, "Shutting down HTTP server",
			applog.FieldOperation, applog.OpShutdown,
			"requests", s.trace.GetMetrics().TotalRequests,
			"suspicious_requests", s.detector.SuspiciousRequests(),
			"rate_limited", s.rateLimiter.Rejected())
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.timeout)
}

func parseTemplates(currency string) (*template.Template, error) {
	funcs := template.FuncMap{
		"money": func(m core.Money) string {
			return m.String() + " " + currency
		},
		"idstr": func(id int64) string {
			return strconv.FormatInt(id, 10)
		},
	}
	t, err := template.New("").Funcs(funcs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return t, nil
}
