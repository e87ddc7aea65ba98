package server

import (
	"net/http"
	"slices"
	"strings"
	"sync"
)

// BasicRouter is a simple HTTP router implementing the [Router] interface.
//
// Uses [http.ServeMux] internally for routing. Several methods may share one path.
type BasicRouter struct {
	mux         *http.ServeMux
	middlewares []Middleware

	mu      sync.Mutex
	methods map[string]map[string]http.Handler // path -> METHOD -> handler
}

// NewBasicRouter creates a new [BasicRouter] instance.
func NewBasicRouter() *BasicRouter {
	return &BasicRouter{
		mux:         http.NewServeMux(),
		middlewares: []Middleware{},
		methods:     map[string]map[string]http.Handler{},
	}
}

// Use adds [Middleware] to the [Router] instance's middleware stack, applied in the order it's added.
//
// Middleware must be added before routes are registered.
func (r *BasicRouter) Use(middleware ...Middleware) {
	r.middlewares = append(r.middlewares, middleware...)
}

// Handle registers a handler for the specified HTTP method and path.
//
// Requests to a known path with an unregistered method get a 405 JSON error.
func (r *BasicRouter) Handle(method, path string, handler http.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byMethod, ok := r.methods[path]
	if !ok {
		byMethod = map[string]http.Handler{}
		r.methods[path] = byMethod
		r.mux.Handle(path, r.Apply(r.dispatch(path)))
	}
	byMethod[strings.ToUpper(method)] = handler
}

// Handler registers a custom Handler implementation.
//
// All routes returned by [Handler.Routes] are registered with this handler.
func (r *BasicRouter) Handler(handler Handler) {
	wrapped := r.Apply(handler)

	for _, route := range handler.Routes() {
		r.mux.Handle(route, wrapped)
	}
}

// ServeHTTP implements [http.Handler] for the entire router.
func (r *BasicRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Apply wraps a handler with all registered middleware.
//
// Middleware is applied in reverse order (last added wraps first).
func (r *BasicRouter) Apply(handler http.Handler) http.Handler {
	wrapped := handler

	for i := len(r.middlewares) - 1; i >= 0; i-- {
		wrapped = r.middlewares[i](wrapped)
	}

	return wrapped
}

func (r *BasicRouter) dispatch(path string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.mu.Lock()
		h, ok := r.methods[path][strings.ToUpper(req.Method)]
		allowed := make([]string, 0, len(r.methods[path]))
		for m := range r.methods[path] {
			allowed = append(allowed, m)
		}
		r.mu.Unlock()

		if !ok {
			slices.Sort(allowed)
			methodNotAllowed(w, allowed...)
			return
		}
		h.ServeHTTP(w, req)
	})
}
