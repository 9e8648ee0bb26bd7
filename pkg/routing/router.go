package routing

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/julienschmidt/httprouter"
	"github.com/verve-web/verve/pkg/errs"
	"github.com/verve-web/verve/pkg/scope"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// RouterConfig defines the configuration the application passes to its
// router: logging, path handling, and the merged lifespan declarations.
type RouterConfig struct {
	Logger          *zap.Logger
	RootPath        string // Optional mount prefix stripped before matching
	RedirectSlashes bool
	OnStartup       []Hook
	OnShutdown      []Hook
	Lifespan        Lifespan
}

// Router matches requests against the route tree and dispatches to gateway
// handlers. It is the innermost target of the application's middleware
// chain and owns the lifespan events. A Router is immutable after
// construction; the application builds a fresh one on route changes.
type Router struct {
	mux        *httprouter.Router
	logger     *zap.Logger
	routes     []Route
	rootPath   string
	onStartup  []Hook
	onShutdown []Hook
	lifespan   Lifespan
	cleanup    func(ctx context.Context) error

	wg         sync.WaitGroup
	shutdown   bool
	shutdownMu sync.RWMutex
}

// methods registered for mounted applications, which must receive every verb.
var allMethods = []string{
	http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
	http.MethodPatch, http.MethodDelete, http.MethodOptions,
}

// NewRouter creates a router for the given route tree. Invalid route tables
// (conflicting paths, empty patterns) are configuration errors reported
// immediately.
func NewRouter(config RouterConfig, routes []Route) (rt *Router, err error) {
	logger := config.Logger
	if logger == nil {
		logger, err = zap.NewProduction()
		if err != nil {
			logger = zap.NewNop()
		}
	}

	mux := httprouter.New()
	mux.RedirectTrailingSlash = config.RedirectSlashes
	mux.HandleMethodNotAllowed = true

	rt = &Router{
		mux:        mux,
		logger:     logger,
		routes:     routes,
		rootPath:   strings.TrimSuffix(config.RootPath, "/"),
		onStartup:  config.OnStartup,
		onShutdown: config.OnShutdown,
		lifespan:   config.Lifespan,
	}

	// Unmatched requests join the error path so registered status handlers
	// can shape the response.
	mux.NotFound = rt.failHandler(errs.NewHTTPError(http.StatusNotFound, "Not Found"))
	mux.MethodNotAllowed = rt.failHandler(errs.NewHTTPError(http.StatusMethodNotAllowed, "Method Not Allowed"))

	// httprouter reports registration conflicts by panicking; surface them
	// as construction-time configuration errors instead.
	defer func() {
		if rec := recover(); rec != nil {
			rt, err = nil, errs.ImproperlyConfigured("invalid route table: %v", rec)
		}
	}()
	rt.register("", routes)
	return rt, nil
}

// register walks the route tree and installs gateways and mounted
// applications on the mux, composing path prefixes along the way.
func (rt *Router) register(prefix string, routes []Route) {
	for _, route := range routes {
		switch node := route.(type) {
		case *Gateway:
			full := joinPath(prefix, node.Path)
			handler := rt.adapt(node)
			methods := node.Methods
			if len(methods) == 0 {
				methods = []string{http.MethodGet}
			}
			for _, method := range methods {
				rt.mux.Handler(method, full, handler)
			}
		case *Include:
			full := joinPath(prefix, node.Path)
			if node.App != nil {
				rt.mount(full, node.App)
				continue
			}
			rt.register(full, node.Routes)
		}
	}
}

// mount installs an opaque handler under a path prefix, stripping the prefix
// before delegation.
func (rt *Router) mount(path string, app http.Handler) {
	stripped := http.StripPrefix(path, app)
	for _, method := range allMethods {
		rt.mux.Handler(method, path+"/*mounted", stripped)
	}
}

// adapt converts a gateway to an http.Handler, exposing route parameters in
// the context and funnelling handler errors into the request scope.
func (rt *Router) adapt(gateway *Gateway) http.Handler {
	if gateway.Handler == nil || gateway.Handler.Func == nil {
		panic("gateway " + gateway.Path + " has no handler")
	}
	fn := gateway.Handler.Func
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			rt.fail(w, r, err)
		}
	})
}

// failHandler returns an http.Handler that records a fixed error.
func (rt *Router) failHandler(err *errs.HTTPError) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rt.fail(w, r, err)
	})
}

// fail records err on the request scope for boundary dispatch. When the
// router is used bare, without the application's boundaries, it answers
// directly instead.
func (rt *Router) fail(w http.ResponseWriter, r *http.Request, err error) {
	if sc, ok := scope.FromContext(r.Context()); ok {
		sc.Fail(err)
		return
	}
	var httpErr *errs.HTTPError
	if errors.As(err, &httpErr) {
		http.Error(w, httpErr.Message, httpErr.StatusCode)
		return
	}
	rt.logger.Error("Handler error",
		zap.Error(err),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	)
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

// ServeHTTP implements http.Handler. In-flight requests are tracked so
// Shutdown can drain them; requests arriving after shutdown receive 503.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.wg.Add(1)
	defer rt.wg.Done()

	rt.shutdownMu.RLock()
	isShutdown := rt.shutdown
	rt.shutdownMu.RUnlock()
	if isShutdown {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	if rt.rootPath != "" {
		if stripped, ok := strings.CutPrefix(r.URL.Path, rt.rootPath); ok {
			r2 := r.Clone(r.Context())
			if stripped == "" {
				stripped = "/"
			}
			r2.URL.Path = stripped
			r = r2
		}
	}
	rt.mux.ServeHTTP(w, r)
}

// Routes returns the route tree the router was built from.
func (rt *Router) Routes() []Route {
	return rt.routes
}

// Startup runs the lifespan callback, if any, followed by the startup hooks
// in declaration order. The first failure aborts startup.
func (rt *Router) Startup(ctx context.Context) error {
	if rt.lifespan != nil {
		cleanup, err := rt.lifespan(ctx)
		if err != nil {
			return err
		}
		rt.cleanup = cleanup
	}
	for _, hook := range rt.onStartup {
		if err := hook(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight requests to drain,
// then runs all shutdown hooks and the lifespan cleanup. Hook failures are
// aggregated; every hook runs even if an earlier one fails.
func (rt *Router) Shutdown(ctx context.Context) error {
	rt.shutdownMu.Lock()
	rt.shutdown = true
	rt.shutdownMu.Unlock()

	done := make(chan struct{})
	go func() {
		rt.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = multierr.Append(err, ctx.Err())
	}

	for _, hook := range rt.onShutdown {
		err = multierr.Append(err, hook(ctx))
	}
	if rt.cleanup != nil {
		err = multierr.Append(err, rt.cleanup(ctx))
	}
	return err
}

// GetParams retrieves the httprouter.Params from the request context. The
// mux stores them there when dispatching through an http.Handler.
func GetParams(r *http.Request) httprouter.Params {
	return httprouter.ParamsFromContext(r.Context())
}

// GetParam retrieves a named route parameter from the request context.
func GetParam(r *http.Request, name string) string {
	return GetParams(r).ByName(name)
}

// joinPath composes a route prefix and a child path into a single pattern.
func joinPath(prefix, path string) string {
	if path == "" {
		path = "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if prefix == "" {
		return path
	}
	if path == "/" {
		return prefix
	}
	return strings.TrimSuffix(prefix, "/") + path
}
