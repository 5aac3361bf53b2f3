package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/sandeepkv93/qr-attendance-service/internal/http/response"
	"github.com/sandeepkv93/qr-attendance-service/internal/service"
)

type errorMapping struct {
	err    error
	status int
	code   string
}

var serviceErrors = []errorMapping{
	{service.ErrValidation, http.StatusBadRequest, "VALIDATION_ERROR"},
	{service.ErrSessionNotFound, http.StatusNotFound, "SESSION_NOT_FOUND"},
	{service.ErrInvalidState, http.StatusConflict, "INVALID_STATE"},
	{service.ErrSessionExpired, http.StatusGone, "SESSION_EXPIRED"},
	{service.ErrInvalidToken, http.StatusBadRequest, "INVALID_TOKEN"},
	{service.ErrSessionInactive, http.StatusConflict, "SESSION_INACTIVE"},
	{service.ErrTokenExpired, http.StatusGone, "TOKEN_EXPIRED"},
	{service.ErrDuplicateCheckIn, http.StatusConflict, "DUPLICATE_CHECKIN"},
}

// writeServiceError maps a service sentinel onto its status and stable code.
// Anything unrecognised is logged and reported as a 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			response.Error(w, r, m.status, m.code, err.Error(), nil)
			return
		}
	}
	slog.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	response.Error(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error", nil)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is required", service.ErrValidation)
		}
		return fmt.Errorf("%w: invalid request body: %v", service.ErrValidation, err)
	}
	return nil
}
