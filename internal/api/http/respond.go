package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"estate-market-backend/internal/apperrors"
	"estate-market-backend/internal/logger"
)

const maxJSONBody = 1 << 20

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    apperrors.Kind `json:"kind"`
	Message string         `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(data)
}

// statusOf maps an error kind onto its HTTP status.
func statusOf(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindForbidden:
		return http.StatusForbidden
	case apperrors.KindConflict:
		return http.StatusConflict
	case apperrors.KindValidation:
		return http.StatusBadRequest
	case apperrors.KindUnauthenticated:
		return http.StatusUnauthorized
	case apperrors.KindProvider:
		return http.StatusBadGateway
	case apperrors.KindProviderUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError renders err as the API error body. Causes are logged, never
// written to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperrors.KindOf(err)
	status := statusOf(kind)
	msg := apperrors.MessageOf(err)
	if status == http.StatusInternalServerError {
		logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = "internal server error"
	} else if status >= http.StatusBadGateway {
		logger.Warn("Upstream failure", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	respondJSON(w, status, errorBody{Error: errorDetail{Kind: kind, Message: msg}})
}

// decodeJSON reads a single JSON object from the request body. An empty body
// decodes to the zero value.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apperrors.Validation("malformed JSON body: " + err.Error())
	}
	return nil
}
