package config

import (
	"github.com/verve-web/verve/pkg/common"
	"github.com/verve-web/verve/pkg/errs"
	"github.com/verve-web/verve/pkg/middleware"
	"github.com/verve-web/verve/pkg/routing"
	"github.com/verve-web/verve/pkg/scheduler"
	"go.uber.org/zap"
)

// Options carries the explicit constructor arguments of an application.
// Every field is optional; zero values fall back to the Settings defaults
// during the merge.
type Options struct {
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

	// AllowedHosts enables the trusted-host validator.
	AllowedHosts []string

	// AllowOrigins is the CORS shorthand: mutually exclusive with CORS.
	AllowOrigins []string

	CORS      *middleware.CORSConfig
	CSRF      *middleware.CSRFConfig
	Session   *middleware.SessionConfig
	RateLimit *middleware.RateLimitConfig
	Metrics   *middleware.MetricsConfig
	IP        *middleware.IPConfig
	Scheduler *scheduler.Config

	// Middleware is the application-declared middleware list; route
	// contributions are appended to it during stack building.
	Middleware []common.Middleware

	// ErrorHandlers are the application-level registrations merged over the
	// framework defaults.
	ErrorHandlers errs.Handlers

	// Routes is the initial route tree.
	Routes []routing.Route

	// OnStartup and OnShutdown are the lifespan hook lists: mutually
	// exclusive with Lifespan.
	OnStartup  []routing.Hook
	OnShutdown []routing.Hook
	Lifespan   routing.Lifespan

	Logger *zap.Logger
}
