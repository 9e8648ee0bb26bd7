package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/verve-web/verve/pkg/common"
	"github.com/verve-web/verve/pkg/errs"
	"github.com/verve-web/verve/pkg/scope"
	"go.uber.org/zap"
)

// The application stack brackets all user middleware between two error
// boundaries. ErrorBoundary is the outermost layer: it creates the request
// scope and dispatches captured errors that have a typed registration.
// CatchAll sits just inside the user middleware: it recovers panics and
// claims errors without a typed registration using the designated error
// handler. RequestScope is innermost-but-one and releases per-request
// resources before control unwinds past it.

// ErrorBoundary returns the outer typed-error boundary. Errors still
// unclaimed here are logged and surfaced as a bare 500; in debug mode the
// error text is included in the response.
func ErrorBoundary(typed errs.Handlers, logger *zap.Logger, debug bool) common.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sc := scope.New()
			r = r.WithContext(scope.NewContext(r.Context(), sc))
			rw := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			err := sc.Err()
			if err == nil {
				return
			}
			if handler, ok := typed.Resolve(err); ok {
				sc.MarkHandled()
				dispatchError(rw, r, err, handler, logger)
				return
			}

			sc.MarkHandled()
			fields := []zap.Field{
				zap.Error(err),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
			}
			if traceID := GetTraceID(r); traceID != "" {
				fields = append([]zap.Field{zap.String("trace_id", traceID)}, fields...)
			}
			logger.Error("Unhandled error", fields...)

			if rw.wrote {
				return
			}
			message := "Internal Server Error"
			if debug {
				message = err.Error()
			}
			http.Error(rw, message, http.StatusInternalServerError)
		})
	}
}

// CatchAll returns the inner catch-all boundary. It recovers panics raised
// below it, records them as errors, and claims any error without a typed
// registration using errorHandler. Errors with a typed registration pass
// through untouched for the outer boundary.
func CatchAll(typed errs.Handlers, errorHandler errs.Handler, logger *zap.Logger) common.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sc, hasScope := scope.FromContext(r.Context())

			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("Panic recovered",
						zap.Any("panic", rec),
						zap.String("stack", string(debug.Stack())),
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
					)
					if !hasScope {
						http.Error(w, "Internal Server Error", http.StatusInternalServerError)
						return
					}
					sc.Fail(fmt.Errorf("panic: %v", rec))
				}
				if !hasScope {
					return
				}
				err := sc.Err()
				if err == nil {
					return
				}
				if _, ok := typed.Resolve(err); ok {
					// The outer boundary owns typed dispatch.
					return
				}
				if errorHandler != nil {
					sc.MarkHandled()
					dispatchError(w, r, err, errorHandler, logger)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// RequestScope returns the resource-scope layer. It releases everything
// registered on the request scope before control unwinds past it, on every
// exit path: normal return, recorded error, or panic.
func RequestScope() common.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sc, ok := scope.FromContext(r.Context())
			if !ok {
				// Standalone use without the outer boundary.
				sc = scope.New()
				r = r.WithContext(scope.NewContext(r.Context(), sc))
			}
			defer sc.Release()
			next.ServeHTTP(w, r)
		})
	}
}

// dispatchError invokes a registered error handler, skipping it when the
// response has already started.
func dispatchError(w http.ResponseWriter, r *http.Request, err error, handler errs.Handler, logger *zap.Logger) {
	if sr, ok := w.(*statusRecorder); ok && sr.wrote {
		logger.Warn("Error raised after response started; handler skipped",
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
		)
		return
	}
	handler(w, r, err)
}
