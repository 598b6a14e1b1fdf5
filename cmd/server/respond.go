package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Simplici0/pricedesk/internal/metrics"
	"github.com/Simplici0/pricedesk/internal/pricing"
	"github.com/Simplici0/pricedesk/internal/store"
)

const maxBodyBytes = 1 << 20

var errInvalidBody = errors.New("malformed request body")

type errorResponse struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Missing []string `json:"missing,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

// respondError maps domain and storage errors onto status codes and stable
// error codes. Anything unrecognised is logged and hidden behind a 500.
func (s *server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var missing *pricing.MissingMarginError
	if errors.As(err, &missing) {
		keys := make([]string, 0, len(missing.Missing))
		for _, pt := range missing.Missing {
			keys = append(keys, string(pt))
		}
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:   "missing_margin_configuration",
			Message: err.Error(),
			Missing: keys,
		})
		return
	}

	if kind := metrics.ErrorKind(err); kind != "" {
		writeError(w, http.StatusUnprocessableEntity, kind, err.Error())
		return
	}

	switch {
	case errors.Is(err, store.ErrIncompleteOverride):
		writeError(w, http.StatusUnprocessableEntity, "incomplete_override", err.Error())
	case errors.Is(err, store.ErrInvalidInput), errors.Is(err, errInvalidBody):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, store.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, store.ErrNoConfig):
		writeError(w, http.StatusServiceUnavailable, "pricing_config_unavailable", "no pricing configuration is available; prices cannot be derived")
	default:
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	return nil
}

// parseDecimal reads a JSON number or numeric string. A missing or
// non-numeric value is reported as kind, the engine error for that field.
func parseDecimal(raw json.RawMessage, field string, kind error) (decimal.Decimal, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return decimal.Zero, fmt.Errorf("%w: %s is required", kind, field)
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(raw); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s must be numeric", kind, field)
	}
	return d, nil
}
