package app

import (
	"github.com/verve-web/verve/pkg/common"
	"github.com/verve-web/verve/pkg/errs"
	"github.com/verve-web/verve/pkg/middleware"
	"github.com/verve-web/verve/pkg/routing"
)

// buildErrorHandlers assembles the merged exception-handler map: framework
// defaults seeded first (overridable), then application-level registrations,
// then per-route registrations collected top-down so the deepest entry for a
// kind wins.
func (a *App) buildErrorHandlers() errs.Handlers {
	defaults := errs.Handlers{
		errs.KindOf(&errs.ImproperlyConfiguredError{}): errs.ImproperlyConfiguredHandler,
		errs.KindOf(&errs.ValidationError{}):           errs.ValidationErrorHandler,
		errs.KindOf(&errs.HTTPError{}):                 errs.HTTPErrorHandler,
	}
	return errs.Merge(defaults, a.cfg.ErrorHandlers, routing.CollectErrorHandlers(a.routes))
}

// buildUserMiddleware assembles the user middleware list in execution order:
// built-in cross-cutting concerns in fixed order, each a no-op (absent) when
// its configuration is absent, then the application-declared list, then
// route-contributed entries collected bottom-up.
func (a *App) buildUserMiddleware() []common.Middleware {
	var user []common.Middleware

	if a.cfg.IP != nil {
		user = append(user, middleware.ClientIPMiddleware(a.cfg.IP))
	}
	if a.cfg.EnableTraceID {
		user = append(user, middleware.TraceMiddleware())
	}
	if len(a.cfg.AllowedHosts) > 0 {
		user = append(user, middleware.TrustedHost(&middleware.TrustedHostConfig{
			AllowedHosts: a.cfg.AllowedHosts,
		}))
	}
	if cors := a.corsConfig(); cors != nil {
		user = append(user, middleware.CORS(cors))
	}
	if csrf := a.csrfConfig(); csrf != nil {
		user = append(user, middleware.CSRF(csrf))
	}
	if session := a.sessionConfig(); session != nil {
		user = append(user, middleware.SessionStore(session))
	}
	if a.cfg.RateLimit != nil {
		user = append(user, middleware.RateLimit(a.cfg.RateLimit, a.limiter, a.logger))
	}
	if a.cfg.Metrics != nil {
		user = append(user, middleware.Metrics(a.cfg.Metrics))
	}

	user = append(user, a.cfg.Middleware...)
	user = append(user, routing.CollectMiddleware(a.routes)...)
	return user
}

// corsConfig resolves the CORS configuration, expanding the AllowOrigins
// shorthand. The merger guarantees the two were not both supplied.
func (a *App) corsConfig() *middleware.CORSConfig {
	if a.cfg.CORS != nil {
		return a.cfg.CORS
	}
	if len(a.cfg.AllowOrigins) > 0 {
		return &middleware.CORSConfig{AllowOrigins: a.cfg.AllowOrigins}
	}
	return nil
}

// csrfConfig fills the CSRF secret from the application secret when unset.
func (a *App) csrfConfig() *middleware.CSRFConfig {
	if a.cfg.CSRF == nil {
		return nil
	}
	if a.cfg.CSRF.Secret != "" {
		return a.cfg.CSRF
	}
	csrf := *a.cfg.CSRF
	csrf.Secret = a.cfg.SecretKey
	return &csrf
}

// sessionConfig fills the session secret from the application secret when
// unset.
func (a *App) sessionConfig() *middleware.SessionConfig {
	if a.cfg.Session == nil {
		return nil
	}
	if a.cfg.Session.SecretKey != "" {
		return a.cfg.Session
	}
	session := *a.cfg.Session
	session.SecretKey = a.cfg.SecretKey
	return &session
}
