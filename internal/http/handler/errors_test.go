package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sandeepkv93/qr-attendance-service/internal/service"
)

func TestWriteServiceErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("%w: subject is required", service.ErrValidation), http.StatusBadRequest, "VALIDATION_ERROR"},
		{service.ErrSessionNotFound, http.StatusNotFound, "SESSION_NOT_FOUND"},
		{service.ErrInvalidState, http.StatusConflict, "INVALID_STATE"},
		{service.ErrSessionExpired, http.StatusGone, "SESSION_EXPIRED"},
		{service.ErrInvalidToken, http.StatusBadRequest, "INVALID_TOKEN"},
		{service.ErrSessionInactive, http.StatusConflict, "SESSION_INACTIVE"},
		{service.ErrTokenExpired, http.StatusGone, "TOKEN_EXPIRED"},
		{service.ErrDuplicateCheckIn, http.StatusConflict, "DUPLICATE_CHECKIN"},
		{errors.New("database is locked"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		writeServiceError(rr, httptest.NewRequest(http.MethodGet, "/", nil), tc.err)
		if rr.Code != tc.status {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.status, rr.Code)
		}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if env.Error.Code != tc.code {
			t.Fatalf("%v: expected code %s, got %s", tc.err, tc.code, env.Error.Code)
		}
		if tc.status == http.StatusInternalServerError && strings.Contains(env.Error.Message, "locked") {
			t.Fatal("internal error detail must not leak")
		}
	}
}

func TestDecodeJSONRejectsUnknownFieldsAndEmptyBody(t *testing.T) {
	var dst checkInRequest
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"token":"a","extra":1}`))
	if err := decodeJSON(req, &dst); !errors.Is(err, service.ErrValidation) {
		t.Fatalf("expected validation error for unknown field, got %v", err)
	}
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	if err := decodeJSON(req, &dst); !errors.Is(err, service.ErrValidation) {
		t.Fatalf("expected validation error for empty body, got %v", err)
	}
}
