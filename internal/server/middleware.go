package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// RequestIDHeader carries the per-request id set by [RequestLogger].
const RequestIDHeader = "X-Request-ID"

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(p []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(p)
	s.bytes += n
	return n, err
}

// RequestLogger logs one line per request and tags the response with a request id.
func RequestLogger(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := uuid.NewString()
			w.Header().Set(RequestIDHeader, id)

			rec := &statusRecorder{ResponseWriter: w}
			started := time.Now()
			defer func() {
				logger.Info("request",
					"id", id,
					"method", r.Method,
					"path", r.URL.Path,
					"status", rec.status,
					"bytes", rec.bytes,
					"elapsed", time.Since(started),
				)
			}()
			next.ServeHTTP(rec, r)
		})
	}
}

// Recover turns a handler panic into a 500 JSON error. A panic after the
// response has started aborts the connection instead.
func Recover(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec, ok := w.(*statusRecorder)
			if !ok {
				rec = &statusRecorder{ResponseWriter: w}
			}
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}
				logger.Error("handler panic", "path", r.URL.Path, "panic", v)
				if rec.status != 0 {
					panic(http.ErrAbortHandler)
				}
				writeJSON(rec, http.StatusInternalServerError, ErrorBody{
					Error:   "Internal server error",
					Message: "An unexpected error occurred",
				})
			}()
			next.ServeHTTP(rec, r)
		})
	}
}

// RateLimitOpts configures [RateLimit].
type RateLimitOpts struct {
	PerSecond  float64
	Burst      int
	TrustProxy bool          // key clients on the first X-Forwarded-For hop
	IdleTTL    time.Duration // limiters unused this long are dropped (default: 10m)
}

// RateLimit applies a token bucket per client address. Excess requests get a 429 JSON error.
func RateLimit(opts RateLimitOpts) Middleware {
	limiters := newClientLimiters(opts, time.Now)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiters.get(clientAddr(r, opts.TrustProxy)).Allow() {
				w.Header().Set("Retry-After", "1")
				writeJSON(w, http.StatusTooManyRequests, ErrorBody{
					Error:   "Too many requests",
					Message: "rate limit exceeded, retry shortly",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiters holds one limiter per client. Idle entries are swept at most
// once per IdleTTL, on the request path.
type clientLimiters struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	idle      time.Duration
	now       func() time.Time
	lastSweep time.Time
	entries   map[string]*clientLimiter
}

func newClientLimiters(opts RateLimitOpts, now func() time.Time) *clientLimiters {
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = 10 * time.Minute
	}
	return &clientLimiters{
		limit:     rate.Limit(opts.PerSecond),
		burst:     opts.Burst,
		idle:      opts.IdleTTL,
		now:       now,
		lastSweep: now(),
		entries:   map[string]*clientLimiter{},
	}
}

func (c *clientLimiters) get(client string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if now.Sub(c.lastSweep) >= c.idle {
		for key, e := range c.entries {
			if now.Sub(e.lastSeen) >= c.idle {
				delete(c.entries, key)
			}
		}
		c.lastSweep = now
	}

	e, ok := c.entries[client]
	if !ok {
		e = &clientLimiter{limiter: rate.NewLimiter(c.limit, c.burst)}
		c.entries[client] = e
	}
	e.lastSeen = now
	return e.limiter
}

func (c *clientLimiters) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// clientAddr returns the remote host. With trustProxy set, the first X-Forwarded-For hop wins.
func clientAddr(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
