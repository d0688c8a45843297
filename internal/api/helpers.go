package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/wdesk/groupbroker/internal/groups"
	"github.com/wdesk/groupbroker/internal/money"
	"github.com/wdesk/groupbroker/internal/settings"
	"github.com/wdesk/groupbroker/internal/store"
	"github.com/wdesk/groupbroker/internal/transfer"
	"github.com/wdesk/groupbroker/internal/withdraw"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, errorResponse{Error: code})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("trailing data")
	}
	return nil
}

// writeDomainError maps service errors onto HTTP responses. Anything
// unmapped is an internal error and is logged by the caller.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, money.ErrInvalidAmount), errors.Is(err, store.ErrInvalidMethod),
		errors.Is(err, withdraw.ErrInvalidTarget):
		writeError(w, http.StatusBadRequest, "invalid_request")
	case errors.Is(err, settings.ErrUnknownKey):
		writeError(w, http.StatusBadRequest, "unknown_setting")
	case errors.Is(err, withdraw.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "unauthorized")
	case errors.Is(err, transfer.ErrNoPending):
		writeError(w, http.StatusNotFound, "no_pending_transfer")
	case errors.Is(err, transfer.ErrExpired):
		writeError(w, http.StatusGone, "transfer_expired")
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "not_found")
	case errors.Is(err, store.ErrInsufficientBalance):
		writeError(w, http.StatusConflict, "insufficient_balance")
	case errors.Is(err, store.ErrAlreadyProcessed):
		writeError(w, http.StatusConflict, "already_processed")
	case errors.Is(err, groups.ErrNotFound):
		writeError(w, http.StatusUnprocessableEntity, "group_not_found")
	case errors.Is(err, groups.ErrAccessDenied):
		writeError(w, http.StatusUnprocessableEntity, "group_access_denied")
	case errors.Is(err, transfer.ErrUnavailable):
		writeError(w, http.StatusBadGateway, "inspection_unavailable")
	default:
		s.logger.Error("internal error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error")
	}
}
