package routing

import (
	"github.com/verve-web/verve/pkg/common"
	"github.com/verve-web/verve/pkg/errs"
)

// Collect walks the route tree depth-first in declaration order and
// concatenates the extractor's results for every visited node. The tree is
// never mutated. Nested-application boundaries are opaque: their children
// are never visited, and visitBoundary controls whether the boundary node's
// own declarations are taken before the walk stops there.
func Collect[T any](routes []Route, extract func(Route) []T, visitBoundary bool) []T {
	var out []T
	for _, route := range routes {
		switch node := route.(type) {
		case *Include:
			if node.IsBoundary() {
				if visitBoundary {
					out = append(out, extract(route)...)
				}
				continue
			}
			out = append(out, extract(route)...)
			out = append(out, Collect(node.Routes, extract, visitBoundary)...)
		case *Gateway:
			out = append(out, extract(route)...)
		}
	}
	return out
}

// CollectMiddleware gathers route-contributed middleware bottom-up: each
// non-boundary include contributes its own entries before its children, each
// gateway contributes its entries followed by its handler's. Boundary
// includes contribute nothing.
func CollectMiddleware(routes []Route) []common.Middleware {
	return Collect(routes, func(route Route) []common.Middleware {
		switch node := route.(type) {
		case *Include:
			return node.Middleware
		case *Gateway:
			mws := make([]common.Middleware, 0, len(node.Middleware))
			mws = append(mws, node.Middleware...)
			if node.Handler != nil {
				mws = append(mws, node.Handler.Middleware...)
			}
			return mws
		}
		return nil
	}, false)
}

// CollectErrorHandlers gathers exception handlers top-down: include-level
// registrations merge before their descendants, so the deepest registration
// for a kind wins. A boundary include's own handlers merge, but its subtree
// stays opaque.
func CollectErrorHandlers(routes []Route) errs.Handlers {
	maps := Collect(routes, func(route Route) []errs.Handlers {
		switch node := route.(type) {
		case *Include:
			return []errs.Handlers{node.ErrorHandlers}
		case *Gateway:
			handlers := []errs.Handlers{node.ErrorHandlers}
			if node.Handler != nil {
				handlers = append(handlers, node.Handler.ErrorHandlers)
			}
			return handlers
		}
		return nil
	}, true)
	return errs.Merge(maps...)
}
