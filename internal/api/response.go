package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/erazemk/najdeno/internal/fault"
	"github.com/erazemk/najdeno/internal/identity"
)

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("encoding response", "error", err)
		}
	}
}

// jsonError writes the error body for err with the status of its kind.
func jsonError(w http.ResponseWriter, r *http.Request, err error) {
	kind, status := fault.Kind(err)
	if kind == fault.KindInternal {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	jsonResponse(w, status, fault.Body(err))
}

// badRequest returns an error of kind bad_request.
func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", fault.ErrBadRequest, fmt.Sprintf(format, args...))
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		return badRequest("invalid request body")
	}
	return nil
}

// signedRequest is embedded in every request body that must prove an
// identity. Address, when present, must match the recovered signer.
type signedRequest struct {
	Signature        string `json:"signature"`
	SignatureMessage string `json:"signatureMessage"`
	Address          string `json:"address,omitempty"`
}

func (s signedRequest) verify() (identity.Identity, error) {
	if s.Signature == "" || s.SignatureMessage == "" {
		return identity.Zero, fmt.Errorf("%w: signature and signatureMessage are required", identity.ErrInvalidSignature)
	}
	return identity.Verify(s.SignatureMessage, s.Signature, s.Address)
}

// decodeSigned decodes a signed JSON body into target, which must embed
// signedRequest, and returns the verified caller.
func decodeSigned(r *http.Request, target interface{ signed() signedRequest }) (identity.Identity, error) {
	if err := decodeJSON(r, target); err != nil {
		return identity.Zero, err
	}
	return target.signed().verify()
}

func (s signedRequest) signed() signedRequest { return s }
