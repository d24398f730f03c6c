// Package fault classifies domain errors into stable kinds shared by the
// HTTP API and the realtime transport.
package fault

import (
	"errors"
	"net/http"

	"github.com/erazemk/najdeno/internal/embedding"
	"github.com/erazemk/najdeno/internal/identity"
	"github.com/erazemk/najdeno/internal/lifecycle"
)

// Error kinds.
const (
	KindInvalidSignature  = "invalid_signature"
	KindUnauthorized      = "unauthorized"
	KindInvalidTransition = "invalid_transition"
	KindNotFound          = "not_found"
	KindConflict          = "conflict"
	KindServiceError      = "service_error"
	KindBadRequest        = "bad_request"
	KindInternal          = "internal"
)

// ErrBadRequest marks malformed input. Wrap it with details.
var ErrBadRequest = errors.New("bad request")

// Kind returns the kind of err and the HTTP status it maps to.
func Kind(err error) (string, int) {
	var te *lifecycle.TransitionError
	var se *embedding.ServiceError
	switch {
	case errors.Is(err, identity.ErrInvalidSignature):
		return KindInvalidSignature, http.StatusUnauthorized
	case errors.Is(err, lifecycle.ErrUnauthorized):
		return KindUnauthorized, http.StatusForbidden
	case errors.As(err, &te):
		return KindInvalidTransition, http.StatusConflict
	case errors.Is(err, lifecycle.ErrNotFound):
		return KindNotFound, http.StatusNotFound
	case errors.Is(err, lifecycle.ErrConflict):
		return KindConflict, http.StatusConflict
	case errors.As(err, &se):
		return KindServiceError, http.StatusBadGateway
	case errors.Is(err, ErrBadRequest):
		return KindBadRequest, http.StatusBadRequest
	default:
		return KindInternal, http.StatusInternalServerError
	}
}

// Body returns the JSON error body for err. Internal errors are not
// described to the caller.
func Body(err error) map[string]any {
	kind, _ := Kind(err)
	body := map[string]any{"kind": kind, "error": err.Error()}
	if kind == KindInternal {
		body["error"] = "internal server error"
	}

	var te *lifecycle.TransitionError
	if errors.As(err, &te) {
		body["subject"] = te.Subject
		body["current_status"] = te.Current
		body["attempted"] = te.Attempted
	}
	return body
}
