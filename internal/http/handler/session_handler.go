package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sandeepkv93/qr-attendance-service/internal/domain"
	"github.com/sandeepkv93/qr-attendance-service/internal/http/middleware"
	"github.com/sandeepkv93/qr-attendance-service/internal/http/response"
	"github.com/sandeepkv93/qr-attendance-service/internal/qrcode"
	"github.com/sandeepkv93/qr-attendance-service/internal/service"
)

type SessionLifecycle interface {
	Create(ctx context.Context, teacherID string, in service.CreateSessionInput) (*domain.Session, error)
	Start(ctx context.Context, sessionID, teacherID string) (*service.IssuedSession, error)
	RefreshToken(ctx context.Context, sessionID, teacherID string) (*service.IssuedSession, error)
	Stop(ctx context.Context, sessionID, teacherID string) (*domain.Session, error)
	Get(ctx context.Context, sessionID, teacherID string) (*domain.Session, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]domain.Session, error)
	Delete(ctx context.Context, sessionID, teacherID string) error
	ListAttendance(ctx context.Context, sessionID, teacherID string) ([]domain.AttendanceRecord, error)
	Resolve(ctx context.Context, token string) (*domain.Session, error)
	CheckInURL(token string) string
}

type SessionHandler struct {
	sessions SessionLifecycle
	encoder  qrcode.Encoder
}

func NewSessionHandler(sessions SessionLifecycle, encoder qrcode.Encoder) *SessionHandler {
	return &SessionHandler{sessions: sessions, encoder: encoder}
}

type createSessionRequest struct {
	Subject     string     `json:"subject"`
	Room        string     `json:"room"`
	Description string     `json:"description"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	teacher, _ := middleware.IdentityFromContext(r.Context())
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	session, err := h.sessions.Create(r.Context(), teacher.ID, service.CreateSessionInput{
		Subject:     req.Subject,
		Room:        req.Room,
		Description: req.Description,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusCreated, session)
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	teacher, _ := middleware.IdentityFromContext(r.Context())
	sessions, err := h.sessions.ListByTeacher(r.Context(), teacher.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"sessions": sessions})
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	teacher, _ := middleware.IdentityFromContext(r.Context())
	session, err := h.sessions.Get(r.Context(), chi.URLParam(r, "id"), teacher.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, session)
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	teacher, _ := middleware.IdentityFromContext(r.Context())
	id := chi.URLParam(r, "id")
	if err := h.sessions.Delete(r.Context(), id, teacher.ID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"id": id, "deleted": true})
}

func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.issue(w, r, h.sessions.Start)
}

func (h *SessionHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.issue(w, r, h.sessions.RefreshToken)
}

func (h *SessionHandler) issue(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, sessionID, teacherID string) (*service.IssuedSession, error)) {
	teacher, _ := middleware.IdentityFromContext(r.Context())
	issued, err := op(r.Context(), chi.URLParam(r, "id"), teacher.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, issued)
}

func (h *SessionHandler) Stop(w http.ResponseWriter, r *http.Request) {
	teacher, _ := middleware.IdentityFromContext(r.Context())
	session, err := h.sessions.Stop(r.Context(), chi.URLParam(r, "id"), teacher.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, session)
}

// Code renders the check-in URL of the token the teacher currently holds.
// The token must still be the session's current one.
func (h *SessionHandler) Code(w http.ResponseWriter, r *http.Request) {
	teacher, _ := middleware.IdentityFromContext(r.Context())
	id := chi.URLParam(r, "id")
	token := r.URL.Query().Get("token")
	if token == "" {
		writeServiceError(w, r, fmt.Errorf("%w: token query parameter is required", service.ErrValidation))
		return
	}
	size := qrcode.DefaultPNGSize
	if raw := r.URL.Query().Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 64 || n > 2048 {
			writeServiceError(w, r, fmt.Errorf("%w: size must be between 64 and 2048", service.ErrValidation))
			return
		}
		size = n
	}
	session, err := h.sessions.Resolve(r.Context(), token)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if session.ID != id || session.TeacherID != teacher.ID {
		writeServiceError(w, r, service.ErrSessionNotFound)
		return
	}
	png, err := h.encoder.PNG(h.sessions.CheckInURL(token), size)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.Binary(w, http.StatusOK, "image/png", png)
}

func (h *SessionHandler) Attendance(w http.ResponseWriter, r *http.Request) {
	teacher, _ := middleware.IdentityFromContext(r.Context())
	records, err := h.sessions.ListAttendance(r.Context(), chi.URLParam(r, "id"), teacher.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"records": records})
}
