// Package app provides the Verve application object: the composition root
// that merges configuration, builds the exception-handler registry and the
// middleware chain, and wraps them around the router.
package app

import (
	"context"
	"net/http"
	"slices"

	"github.com/verve-web/verve/pkg/common"
	"github.com/verve-web/verve/pkg/config"
	"github.com/verve-web/verve/pkg/errs"
	"github.com/verve-web/verve/pkg/middleware"
	"github.com/verve-web/verve/pkg/routing"
	"github.com/verve-web/verve/pkg/scheduler"
	"go.uber.org/zap"
)

// App is an application instance. It owns the resolved configuration record,
// the route tree, the merged error-handler maps, and the final wrapped
// handler. Construction is single-threaded and runs once; the instance is
// frozen afterward except for append-only route additions, which trigger a
// full rebuild. Concurrent request dispatch through the built chain is safe
// because the chain is structurally side-effect-free: all per-request state
// lives in the request scope.
type App struct {
	cfg       *config.AppConfig
	routes    []routing.Route
	router    *routing.Router
	handler   http.Handler
	logger    *zap.Logger
	limiter   middleware.RateLimiter
	scheduler *scheduler.Scheduler

	userMiddleware []common.Middleware
	typedHandlers  errs.Handlers
	errorHandler   errs.Handler
}

// New constructs an application from explicit options and a settings
// defaults record. A nil settings argument means framework defaults.
// Configuration errors (mutually exclusive options, invalid route tables,
// bad scheduler specs) are fatal: they are returned immediately and the
// application never starts.
func New(opts config.Options, settings *config.Settings) (*App, error) {
	cfg, err := config.Merge(opts, settings)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:     cfg,
		routes:  slices.Clone(opts.Routes),
		logger:  cfg.Logger,
		limiter: middleware.NewUberRateLimiter(),
	}

	if cfg.EnableScheduler {
		sched, err := scheduler.New(cfg.Scheduler, cfg.Timezone, a.logger)
		if err != nil {
			return nil, err
		}
		a.scheduler = sched
	}

	if err := a.rebuild(); err != nil {
		return nil, err
	}
	return a, nil
}

// rebuild derives the error-handler maps, the user middleware list, the
// router, and the final wrapped chain from the current route tree. It is
// idempotent: the whole pipeline is rebuilt from the configuration record
// and the tree, never patched in place.
func (a *App) rebuild() error {
	merged := a.buildErrorHandlers()
	typed, errorHandler := merged.Partition()

	router, err := routing.NewRouter(routing.RouterConfig{
		Logger:          a.logger,
		RootPath:        a.cfg.RootPath,
		RedirectSlashes: a.cfg.RedirectSlashes,
		OnStartup:       a.startupHooks(),
		OnShutdown:      a.shutdownHooks(),
		Lifespan:        a.cfg.Lifespan,
	}, a.routes)
	if err != nil {
		return err
	}

	user := a.buildUserMiddleware()

	chain := common.NewMiddlewareChain(middleware.ErrorBoundary(typed, a.logger, a.cfg.Debug))
	chain = chain.Append(user...)
	chain = chain.Append(
		middleware.CatchAll(typed, errorHandler, a.logger),
		middleware.RequestScope(),
	)

	a.typedHandlers = typed
	a.errorHandler = errorHandler
	a.userMiddleware = user
	a.router = router
	a.handler = chain.Then(router)
	return nil
}

// ServeHTTP implements http.Handler, exposing the application in the request
// context and delegating to the wrapped chain.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r = r.WithContext(NewContext(r.Context(), a))
	a.handler.ServeHTTP(w, r)
}

// SelfContained marks the application as a nested-application boundary: when
// mounted in a parent's route tree, its middleware and handlers stay out of
// the parent's aggregation.
func (a *App) SelfContained() {}

// AddRoute appends a route to the tree and rebuilds the whole pipeline.
func (a *App) AddRoute(route routing.Route) error {
	a.routes = append(a.routes, route)
	return a.rebuild()
}

// AddRouter merges another router's route tree into this application and
// rebuilds.
func (a *App) AddRouter(router *routing.Router) error {
	a.routes = append(a.routes, router.Routes()...)
	return a.rebuild()
}

// Mount is not supported; mount applications with a routing.Include (or
// routing.Nested) in the route tree instead.
func (a *App) Mount(path string, handler http.Handler) error {
	return errs.ImproperlyConfigured("Mount is not supported; use an Include in the route tree instead")
}

// Host is not supported; host-based dispatch belongs in front of the
// application.
func (a *App) Host(host string, handler http.Handler) error {
	return errs.ImproperlyConfigured("Host is not supported; dispatch on host in front of the application instead")
}

// Startup runs the application's lifespan startup: the lifespan callback or
// the startup hooks, plus the scheduler when enabled.
func (a *App) Startup(ctx context.Context) error {
	return a.router.Startup(ctx)
}

// Shutdown drains in-flight requests and runs the shutdown hooks, the
// lifespan cleanup, and the scheduler stop.
func (a *App) Shutdown(ctx context.Context) error {
	return a.router.Shutdown(ctx)
}

// startupHooks returns the configured startup hooks plus framework-owned
// ones (scheduler start).
func (a *App) startupHooks() []routing.Hook {
	hooks := slices.Clone(a.cfg.OnStartup)
	if a.scheduler != nil {
		hooks = append(hooks, func(ctx context.Context) error {
			a.scheduler.Start()
			return nil
		})
	}
	return hooks
}

func (a *App) shutdownHooks() []routing.Hook {
	hooks := slices.Clone(a.cfg.OnShutdown)
	if a.scheduler != nil {
		hooks = append(hooks, func(ctx context.Context) error {
			return a.scheduler.Stop(ctx)
		})
	}
	return hooks
}

// Config returns the resolved configuration record.
func (a *App) Config() *config.AppConfig {
	return a.cfg
}

// Router returns the current router.
func (a *App) Router() *routing.Router {
	return a.router
}

// Routes returns a copy of the route tree.
func (a *App) Routes() []routing.Route {
	return slices.Clone(a.routes)
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// UserMiddleware returns the assembled user middleware list: built-ins,
// application-declared, then route-contributed entries.
func (a *App) UserMiddleware() []common.Middleware {
	return slices.Clone(a.userMiddleware)
}

type ctxKey struct{}

// NewContext returns a context carrying the application.
func NewContext(ctx context.Context, a *App) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

// FromContext returns the application serving the request, if any.
func FromContext(ctx context.Context) (*App, bool) {
	a, ok := ctx.Value(ctxKey{}).(*App)
	return a, ok
}
