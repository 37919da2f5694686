package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/franz/culture-recs/internal/clean"
	"github.com/franz/culture-recs/internal/metrics"
	"github.com/franz/culture-recs/internal/recommend"
	"github.com/franz/culture-recs/internal/report"
	"github.com/franz/culture-recs/internal/util"
)

// WelcomeMessage is returned by the root endpoint
const WelcomeMessage = "Bienvenue sur l'API Chatbot Culture & Loisirs."

// ShutdownTimeout bounds graceful shutdown
const ShutdownTimeout = 10 * time.Second

// Server exposes the catalog over HTTP
type Server struct {
	catalog   *recommend.Catalog
	addr      string
	rateLimit int
	logger    *report.EventLogger
	seed      uint64
	handler   http.Handler
}

// Config holds server configuration
type Config struct {
	Catalog *recommend.Catalog
	Addr    string
	// RateLimit is requests per minute per client IP; zero disables limiting
	RateLimit int
	Logger    *report.EventLogger
	// Seed fixes the random sample order when non-zero (tests)
	Seed uint64
}

// New creates a new Server
func New(cfg *Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8000"
	}
	s := &Server{
		catalog:   cfg.Catalog,
		addr:      cfg.Addr,
		rateLimit: cfg.RateLimit,
		logger:    cfg.Logger,
		seed:      cfg.Seed,
	}
	s.handler = s.routes()

	for _, d := range clean.Domains {
		metrics.SetCatalogRows(string(d), s.catalog.Len(d))
	}
	return s
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		MaxAge:         86400,
	}))
	r.Use(recordMetrics)
	if s.rateLimit > 0 {
		r.Use(httprate.LimitByRealIP(s.rateLimit, time.Minute))
	}

	r.Get("/", s.handleRoot)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	for _, d := range clean.Domains {
		h := s.handleDomain(d)
		r.Get("/"+d.Collection()+"/", h)
		r.Get("/"+d.Collection(), h)
	}

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		util.InfoLog("API listening on %s", ln.Addr())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	util.InfoLog("Shutting down API...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// recordMetrics counts requests by matched route pattern and status
func recordMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RecordAPIRequest(r.Method, route, status, time.Since(start))
	})
}
