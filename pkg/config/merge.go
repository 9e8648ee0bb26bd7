package config

import (
	"slices"

	"github.com/verve-web/verve/pkg/common"
	"github.com/verve-web/verve/pkg/errs"
	"github.com/verve-web/verve/pkg/middleware"
	"github.com/verve-web/verve/pkg/routing"
	"github.com/verve-web/verve/pkg/scheduler"
	"go.uber.org/zap"
)

// AppConfig is the immutable snapshot of resolved settings an application is
// built from. It is created once per construction and never mutated; route
// changes rebuild a fresh record.
type AppConfig struct {
	Debug           bool
	AppName         string
	Title           string
	Version         string
	Summary         string
	Description     string
	SecretKey       string
	RootPath        string
	RedirectSlashes bool
	Timezone        string
	EnableScheduler bool
	EnableTraceID   bool

	AllowedHosts []string
	AllowOrigins []string

	CORS      *middleware.CORSConfig
	CSRF      *middleware.CSRFConfig
	Session   *middleware.SessionConfig
	RateLimit *middleware.RateLimitConfig
	Metrics   *middleware.MetricsConfig
	IP        *middleware.IPConfig
	Scheduler *scheduler.Config

	Middleware    []common.Middleware
	ErrorHandlers errs.Handlers

	OnStartup  []routing.Hook
	OnShutdown []routing.Hook
	Lifespan   routing.Lifespan

	Logger *zap.Logger
}

// Merge resolves explicit options against the settings defaults into a fully
// populated configuration record. Each field takes the explicit value when
// it is set (non-zero), else the default. Merge is a pure function of its
// two arguments; a nil settings argument means framework defaults.
//
// Two option pairs are mutually exclusive and fail the merge: AllowOrigins
// with CORS, and Lifespan with OnStartup/OnShutdown. These are configuration
// mistakes reported immediately, never silent overrides.
func Merge(opts Options, settings *Settings) (*AppConfig, error) {
	if settings == nil {
		settings = DefaultSettings()
	}

	if len(opts.AllowOrigins) > 0 && opts.CORS != nil {
		return nil, errs.ImproperlyConfigured("use either AllowOrigins or CORS, not both")
	}
	if opts.Lifespan != nil && (len(opts.OnStartup) > 0 || len(opts.OnShutdown) > 0) {
		return nil, errs.ImproperlyConfigured("use either Lifespan or OnStartup/OnShutdown, not both")
	}

	cfg := &AppConfig{
		Debug:           opts.Debug || settings.Debug,
		AppName:         fallback(opts.AppName, settings.AppName),
		Title:           fallback(opts.Title, settings.Title),
		Version:         fallback(opts.Version, settings.Version),
		Summary:         fallback(opts.Summary, settings.Summary),
		Description:     fallback(opts.Description, settings.Description),
		SecretKey:       fallback(opts.SecretKey, settings.SecretKey),
		RootPath:        fallback(opts.RootPath, settings.RootPath),
		RedirectSlashes: opts.RedirectSlashes || settings.RedirectSlashes,
		Timezone:        fallback(opts.Timezone, settings.Timezone),
		EnableScheduler: opts.EnableScheduler || settings.EnableScheduler,
		EnableTraceID:   opts.EnableTraceID || settings.EnableTraceID,

		AllowedHosts: fallbackSlice(opts.AllowedHosts, settings.AllowedHosts),
		AllowOrigins: fallbackSlice(opts.AllowOrigins, settings.AllowOrigins),

		CORS:      fallback(opts.CORS, settings.CORS),
		CSRF:      fallback(opts.CSRF, settings.CSRF),
		Session:   fallback(opts.Session, settings.Session),
		RateLimit: fallback(opts.RateLimit, settings.RateLimit),
		Metrics:   fallback(opts.Metrics, settings.Metrics),
		IP:        fallback(opts.IP, settings.IP),
		Scheduler: fallback(opts.Scheduler, settings.Scheduler),

		Middleware:    fallbackSlice(opts.Middleware, settings.Middleware),
		ErrorHandlers: fallbackHandlers(opts.ErrorHandlers, settings.ErrorHandlers),

		OnStartup:  fallbackSlice(opts.OnStartup, settings.OnStartup),
		OnShutdown: fallbackSlice(opts.OnShutdown, settings.OnShutdown),
	}

	cfg.Lifespan = opts.Lifespan
	if cfg.Lifespan == nil {
		cfg.Lifespan = settings.Lifespan
	}

	cfg.Logger = opts.Logger
	if cfg.Logger == nil {
		cfg.Logger = settings.BuildLogger()
	}

	return cfg, nil
}

// fallback returns the explicit value when it is non-zero, else the default.
func fallback[T comparable](explicit, def T) T {
	var zero T
	if explicit != zero {
		return explicit
	}
	return def
}

// fallbackSlice prefers a non-empty explicit slice, copying so the snapshot
// does not alias caller-owned storage.
func fallbackSlice[T any](explicit, def []T) []T {
	if len(explicit) > 0 {
		return slices.Clone(explicit)
	}
	return slices.Clone(def)
}

func fallbackHandlers(explicit, def errs.Handlers) errs.Handlers {
	if len(explicit) > 0 {
		return errs.Merge(explicit)
	}
	return errs.Merge(def)
}
