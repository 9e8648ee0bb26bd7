package errs

import (
	"encoding/json"
	"errors"
	"net/http"
)

// writeJSON writes v as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	// The response is already committed; an encode failure here has nowhere
	// to go but the caller's logs.
	_ = json.NewEncoder(w).Encode(v)
}

// ImproperlyConfiguredHandler is the built-in handler for configuration
// errors that surface during dispatch. It responds with a 500 JSON body.
func ImproperlyConfiguredHandler(w http.ResponseWriter, r *http.Request, err error) {
	writeJSON(w, http.StatusInternalServerError, map[string]any{
		"detail": err.Error(),
	})
}

// ValidationErrorHandler is the built-in handler for validation failures.
// It responds with a 400 JSON body carrying per-field details when present.
func ValidationErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	body := map[string]any{"detail": err.Error()}
	var ve *ValidationError
	if errors.As(err, &ve) {
		body["detail"] = ve.Message
		if len(ve.Fields) > 0 {
			body["fields"] = ve.Fields
		}
	}
	writeJSON(w, http.StatusBadRequest, body)
}

// HTTPErrorHandler is the built-in handler for HTTPError values without a
// more specific registration. It responds with the error's own status code.
func HTTPErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		httpErr = NewHTTPError(http.StatusInternalServerError, "Internal Server Error")
	}
	writeJSON(w, httpErr.StatusCode, map[string]any{
		"detail": httpErr.Message,
	})
}
