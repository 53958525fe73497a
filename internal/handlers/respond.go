package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ringforgeapp/ringforge/internal/metalrate"
	"github.com/ringforgeapp/ringforge/internal/nivoda"
	"github.com/ringforgeapp/ringforge/internal/shopify"
)

type errorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func (h *Handlers) respondJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.loggerFromContext(r.Context()).Error("failed to encode response", "error", err)
	}
}

// respondError maps domain errors onto HTTP statuses and writes a JSON error
// envelope. Unrecognized errors become a 500 with a generic message so
// upstream details never leak.
func (h *Handlers) respondError(w http.ResponseWriter, r *http.Request, err error) {
	logger := h.loggerFromContext(r.Context())
	status := http.StatusInternalServerError
	message := "internal server error"
	var details any

	var apiErr *shopify.APIError
	var unresolved *metalrate.UnresolvedError
	var fetchErr *metalrate.FetchError
	var graphqlErr *nivoda.GraphQLError

	switch {
	case errors.As(err, &apiErr):
		status = apiErr.Status
		message = apiErr.Message
		details = apiErr.Details
	case errors.Is(err, nivoda.ErrNotFound):
		status = http.StatusNotFound
		message = err.Error()
	case errors.Is(err, nivoda.ErrMissingCredentials):
		status = http.StatusServiceUnavailable
		message = err.Error()
	case errors.Is(err, nivoda.ErrAuthFailed):
		status = http.StatusBadGateway
		message = err.Error()
	case errors.As(err, &graphqlErr):
		status = http.StatusBadGateway
		message = "diamond search failed"
		details = graphqlErr.Errors
	case errors.As(err, &unresolved):
		status = http.StatusBadGateway
		message = err.Error()
	case errors.As(err, &fetchErr):
		status = http.StatusBadGateway
		message = err.Error()
	case errors.Is(err, nivoda.ErrUnexpectedResponse):
		status = http.StatusBadGateway
		message = err.Error()
	}

	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
	} else {
		logger.Warn("request rejected", "status", status, "error", err)
	}

	h.respondJSON(w, r, status, errorResponse{Error: message, Details: details})
}

func (h *Handlers) respondBadRequest(w http.ResponseWriter, r *http.Request, message string) {
	h.loggerFromContext(r.Context()).Warn("request rejected", "status", http.StatusBadRequest, "error", message)
	h.respondJSON(w, r, http.StatusBadRequest, errorResponse{Error: message})
}
