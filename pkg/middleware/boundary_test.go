package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/verve-web/verve/pkg/common"
	"github.com/verve-web/verve/pkg/errs"
	"github.com/verve-web/verve/pkg/scope"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// boundaryStack wires the three boundary layers around inner the way the
// application stack builder does.
func boundaryStack(typed errs.Handlers, errorHandler errs.Handler, logger *zap.Logger, debugMode bool, inner http.Handler) http.Handler {
	chain := common.NewMiddlewareChain(
		ErrorBoundary(typed, logger, debugMode),
		CatchAll(typed, errorHandler, logger),
		RequestScope(),
	)
	return chain.Then(inner)
}

// failWith returns a handler that records err on the request scope.
func failWith(err error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sc, _ := scope.FromContext(r.Context())
		sc.Fail(err)
	})
}

func TestErrorBoundaryDispatchesTypedError(t *testing.T) {
	typed := errs.Handlers{
		errs.KindOf(&errs.ValidationError{}): errs.ValidationErrorHandler,
	}
	handler := boundaryStack(typed, nil, zap.NewNop(), false, failWith(&errs.ValidationError{Message: "bad input"}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/submit", nil))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 from the validation handler, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "bad input") {
		t.Errorf("Expected the validation detail in the body, got %q", rec.Body.String())
	}
}

func TestErrorBoundaryUnhandledErrorIs500(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	handler := boundaryStack(errs.Handlers{}, nil, zap.New(core), false, failWith(errors.New("database on fire")))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "database on fire") {
		t.Error("Expected the error detail hidden outside debug mode")
	}
	if logs.FilterMessage("Unhandled error").Len() != 1 {
		t.Error("Expected the unhandled error to be logged")
	}
}

func TestErrorBoundaryDebugModeExposesError(t *testing.T) {
	handler := boundaryStack(errs.Handlers{}, nil, zap.NewNop(), true, failWith(errors.New("database on fire")))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if !strings.Contains(rec.Body.String(), "database on fire") {
		t.Errorf("Expected the error detail in debug mode, got %q", rec.Body.String())
	}
}

func TestCatchAllClaimsUntypedError(t *testing.T) {
	errorHandler := func(w http.ResponseWriter, r *http.Request, err error) {
		http.Error(w, "claimed: "+err.Error(), http.StatusBadGateway)
	}
	handler := boundaryStack(errs.Handlers{}, errorHandler, zap.NewNop(), false, failWith(errors.New("upstream gone")))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusBadGateway {
		t.Errorf("Expected the designated handler's status, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "upstream gone") {
		t.Errorf("Expected the designated handler's body, got %q", rec.Body.String())
	}
}

func TestCatchAllLeavesTypedErrorsToOuterBoundary(t *testing.T) {
	typed := errs.Handlers{
		errs.KindOf(&errs.ValidationError{}): errs.ValidationErrorHandler,
	}
	errorHandler := func(w http.ResponseWriter, r *http.Request, err error) {
		http.Error(w, "catch-all should not see this", http.StatusBadGateway)
	}
	handler := boundaryStack(typed, errorHandler, zap.NewNop(), false, failWith(&errs.ValidationError{Message: "typed"}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected the typed handler to win over the catch-all, got %d", rec.Code)
	}
}

func TestCatchAllRecoversPanic(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("something broke")
	})
	handler := boundaryStack(errs.Handlers{}, nil, zap.New(core), false, panicking)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500 after a panic, got %d", rec.Code)
	}
	if logs.FilterMessage("Panic recovered").Len() != 1 {
		t.Error("Expected the panic to be logged")
	}
}

func TestCatchAllPanicReachesErrorHandler(t *testing.T) {
	var seen error
	errorHandler := func(w http.ResponseWriter, r *http.Request, err error) {
		seen = err
		w.WriteHeader(http.StatusInternalServerError)
	}
	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	})
	handler := boundaryStack(errs.Handlers{}, errorHandler, zap.NewNop(), false, panicking)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if seen == nil || !strings.Contains(seen.Error(), "kaboom") {
		t.Errorf("Expected the panic as an error, got %v", seen)
	}
}

func TestScopeReleasedOnPanic(t *testing.T) {
	released := false
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sc, _ := scope.FromContext(r.Context())
		sc.Defer(func() { released = true })
		panic("after acquiring")
	})
	handler := boundaryStack(errs.Handlers{}, nil, zap.NewNop(), false, inner)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !released {
		t.Error("Expected scope cleanups to run during panic unwinding")
	}
}

func TestDispatchSkippedAfterResponseStarted(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("partial"))
		sc, _ := scope.FromContext(r.Context())
		sc.Fail(&errs.ValidationError{Message: "too late"})
	})
	typed := errs.Handlers{
		errs.KindOf(&errs.ValidationError{}): errs.ValidationErrorHandler,
	}
	handler := boundaryStack(typed, nil, zap.New(core), false, inner)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("Expected the committed status untouched, got %d", rec.Code)
	}
	if rec.Body.String() != "partial" {
		t.Errorf("Expected only the committed body, got %q", rec.Body.String())
	}
	if logs.FilterMessage("Error raised after response started; handler skipped").Len() != 1 {
		t.Error("Expected the skipped dispatch to be logged")
	}
}

func TestRequestScopeStandalone(t *testing.T) {
	released := false
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sc, ok := scope.FromContext(r.Context())
		if !ok {
			t.Fatal("Expected a scope without the outer boundary")
		}
		sc.Defer(func() { released = true })
	})
	handler := RequestScope()(inner)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !released {
		t.Error("Expected the standalone scope to be released")
	}
}

func TestSuccessfulRequestPassesThrough(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	handler := boundaryStack(errs.Handlers{}, nil, zap.NewNop(), false, inner)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("Expected an untouched success response, got %d %q", rec.Code, rec.Body.String())
	}
}
