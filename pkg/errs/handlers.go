package errs

import (
	"errors"
	"net/http"
	"reflect"
)

// Handler writes a response for an error raised during request dispatch.
type Handler func(w http.ResponseWriter, r *http.Request, err error)

// Kind identifies a class of errors a Handler is registered for. A kind is
// either the concrete type of an error value (see KindOf), an int HTTP
// status code, or the CatchAll sentinel.
type Kind any

type catchAll struct{}

// CatchAll is the kind for handlers that should receive any error without a
// more specific registration. Together with status code 500 it designates
// the application's error handler rather than a typed entry.
var CatchAll Kind = catchAll{}

// KindOf returns the kind for the concrete type of target. The target value
// itself is only used as a type prototype:
//
//	handlers := errs.Handlers{
//	    errs.KindOf(&errs.ValidationError{}): myValidationHandler,
//	}
func KindOf(target error) Kind {
	return reflect.TypeOf(target)
}

// Handlers maps error kinds to handlers.
type Handlers map[Kind]Handler

// Merge combines handler maps into a new map. Later maps win on key
// collision; the inputs are never mutated.
func Merge(maps ...Handlers) Handlers {
	merged := Handlers{}
	for _, m := range maps {
		for kind, handler := range m {
			merged[kind] = handler
		}
	}
	return merged
}

// Partition splits a merged map into the typed dispatch map and the
// designated catch-all error handler. Entries keyed by CatchAll or by HTTP
// status 500 become the error handler; everything else stays typed. The two
// key spaces are segregated so a catch-all registration never shadows a
// specific one.
func (h Handlers) Partition() (typed Handlers, errorHandler Handler) {
	typed = Handlers{}
	for kind, handler := range h {
		if kind == CatchAll || kind == http.StatusInternalServerError {
			errorHandler = handler
			continue
		}
		typed[kind] = handler
	}
	return typed, errorHandler
}

// Resolve finds the most specific handler for err, from most to least
// specific: a concrete-type match along the Unwrap chain (outermost wrapper
// wins), then a status-code match for an HTTPError in the chain, then a
// registration for the HTTPError type itself. The second return reports
// whether a handler was found.
func (h Handlers) Resolve(err error) (Handler, bool) {
	httpErrKind := reflect.TypeOf(&HTTPError{})
	for e := err; e != nil; e = errors.Unwrap(e) {
		kind := reflect.TypeOf(e)
		if kind == httpErrKind {
			continue
		}
		if handler, ok := h[kind]; ok {
			return handler, true
		}
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		if handler, ok := h[httpErr.StatusCode]; ok {
			return handler, true
		}
		if handler, ok := h[httpErrKind]; ok {
			return handler, true
		}
	}
	return nil, false
}
