// Package routing provides the Verve route tree, the pure aggregation walks
// that collect per-route middleware and error handlers, and the Router that
// sits at the innermost position of the application's middleware chain.
package routing

import (
	"context"
	"net/http"

	"github.com/verve-web/verve/pkg/common"
	"github.com/verve-web/verve/pkg/errs"
)

// HandlerFunc handles a request and reports failure as an error. Returned
// errors are captured by the request scope and dispatched through the
// application's error-handler registry.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// Handler binds a handler function to its own middleware and error-handler
// declarations. A Gateway merges these after its own during aggregation.
type Handler struct {
	Func          HandlerFunc
	Middleware    []common.Middleware
	ErrorHandlers errs.Handlers
}

// Route is a node in the route tree: either a *Gateway leaf or an *Include
// subtree.
type Route interface {
	isRoute()
}

// Gateway is a leaf route binding a path to a handler, with its own
// middleware and error-handler overrides.
type Gateway struct {
	Path          string
	Methods       []string // Defaults to GET when empty
	Handler       *Handler
	Middleware    []common.Middleware
	ErrorHandlers errs.Handlers
	Name          string
}

func (*Gateway) isRoute() {}

// Include is a route subtree under a common path prefix. When App is set the
// include mounts a handler instead of child routes; if that handler owns its
// own stack (see Boundary) the subtree is opaque to aggregation.
type Include struct {
	Path          string
	Routes        []Route
	App           http.Handler
	Middleware    []common.Middleware
	ErrorHandlers errs.Handlers
	Name          string
}

func (*Include) isRoute() {}

// Boundary marks a mounted handler that assembles its own middleware and
// error-handler stacks. Aggregation does not descend past it: the nested
// application is a black box with an independently built pipeline.
type Boundary interface {
	SelfContained()
}

// IsBoundary reports whether the include mounts a self-contained application.
func (inc *Include) IsBoundary() bool {
	if inc.App == nil {
		return false
	}
	_, ok := inc.App.(Boundary)
	return ok
}

// Nested mounts a self-contained application under a path prefix. It exists
// purely for readability at call sites; a plain Include with App set behaves
// identically.
func Nested(path string, app http.Handler) *Include {
	return &Include{Path: path, App: app}
}

// Hook is a lifespan event callback run on application startup or shutdown.
type Hook func(ctx context.Context) error

// Lifespan is the single-callback alternative to startup/shutdown hook
// lists. It runs at startup and returns the cleanup to run at shutdown.
type Lifespan func(ctx context.Context) (cleanup func(ctx context.Context) error, err error)
