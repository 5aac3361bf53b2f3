package handler

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sandeepkv93/qr-attendance-service/internal/domain"
	"github.com/sandeepkv93/qr-attendance-service/internal/http/middleware"
	"github.com/sandeepkv93/qr-attendance-service/internal/http/response"
	"github.com/sandeepkv93/qr-attendance-service/internal/service"
)

type CheckInProtocol interface {
	Verify(ctx context.Context, token, studentID string, now time.Time) (*service.VerifyResult, error)
	CheckIn(ctx context.Context, in service.CheckInInput) (*domain.AttendanceRecord, error)
	History(ctx context.Context, studentID string) ([]domain.AttendanceRecord, error)
}

type CheckInHandler struct {
	checkins CheckInProtocol
	clock    service.Clock
}

func NewCheckInHandler(checkins CheckInProtocol, clock service.Clock) *CheckInHandler {
	if clock == nil {
		clock = service.SystemClock{}
	}
	return &CheckInHandler{checkins: checkins, clock: clock}
}

func (h *CheckInHandler) Verify(w http.ResponseWriter, r *http.Request) {
	student, _ := middleware.IdentityFromContext(r.Context())
	token := r.URL.Query().Get("token")
	if token == "" {
		writeServiceError(w, r, fmt.Errorf("%w: token query parameter is required", service.ErrValidation))
		return
	}
	result, err := h.checkins.Verify(r.Context(), token, student.ID, h.clock.Now())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, result)
}

type checkInRequest struct {
	Token string `json:"token"`
}

func (h *CheckInHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	student, _ := middleware.IdentityFromContext(r.Context())
	var req checkInRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	record, err := h.checkins.CheckIn(r.Context(), service.CheckInInput{
		Token:     req.Token,
		StudentID: student.ID,
		Now:       h.clock.Now(),
		Origin:    remoteIP(r),
		UserAgent: truncate(r.UserAgent(), 512),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusCreated, record)
}

func (h *CheckInHandler) MyAttendance(w http.ResponseWriter, r *http.Request) {
	student, _ := middleware.IdentityFromContext(r.Context())
	records, err := h.checkins.History(r.Context(), student.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"records": records})
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
