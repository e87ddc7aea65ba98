// package server contains middleware & handlers for the download web service
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotclone/internal/models"
	"github.com/desertthunder/spotclone/internal/shared"
	"github.com/desertthunder/spotclone/internal/tasks"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler defines the interface for HTTP request handlers in the download service.
// Implementations own every method served on their routes.
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the path patterns this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// Recorder stores download history. Implementations must not fail the request.
type Recorder interface {
	Record(req models.DownloadRequest, res models.DownloadResult)
}

// Resolver runs batch stream-URL lookups.
type Resolver interface {
	Resolve(ctx context.Context, req tasks.BatchRequest, progress chan<- tasks.ProgressUpdate) (*tasks.BatchResult, error)
}

// Opts configures a [Server].
type Opts struct {
	Addr       string
	Version    string
	Engine     tasks.Downloader
	Resolver   Resolver
	Recorder   Recorder // optional
	Logger     *log.Logger
	RateLimit  float64 // requests per second per client, 0 disables
	Burst      int
	TrustProxy bool // rate limit on X-Forwarded-For instead of the remote address
}

// Server is the HTTP entry point for downloads and batch resolution.
type Server struct {
	http   *http.Server
	router *BasicRouter
	logger *log.Logger
}

// New wires handlers and middleware into a ready-to-run [Server].
func New(opts Opts) *Server {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	logger := shared.WithPrefix(opts.Logger, "http")

	router := NewBasicRouter()
	router.Use(RequestLogger(logger), Recover(logger))
	if opts.RateLimit > 0 {
		router.Use(RateLimit(RateLimitOpts{
			PerSecond:  opts.RateLimit,
			Burst:      opts.Burst,
			TrustProxy: opts.TrustProxy,
		}))
	}

	router.Handler(NewDownloadHandler(opts.Engine, opts.Recorder, logger))
	router.Handle(http.MethodPost, "/api/download/batch", NewBatchHandler(opts.Resolver, logger))
	router.Handle(http.MethodGet, "/api/health", HealthHandler(opts.Version))

	return &Server{
		http: &http.Server{
			Addr:              opts.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		router: router,
		logger: logger,
	}
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
		close(serverErrors)
	}()

	select {
	case err := <-serverErrors:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("error shutting down server", "error", err)
		return err
	}
	s.logger.Info("server stopped")
	return nil
}
