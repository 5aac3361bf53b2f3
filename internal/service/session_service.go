package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/sandeepkv93/qr-attendance-service/internal/domain"
	"github.com/sandeepkv93/qr-attendance-service/internal/observability"
	"github.com/sandeepkv93/qr-attendance-service/internal/repository"
	"github.com/sandeepkv93/qr-attendance-service/internal/security"
)

type CreateSessionInput struct {
	Subject     string
	Room        string
	Description string
	ExpiresAt   *time.Time
}

// IssuedSession carries the raw token. It is the only place the token
// leaves the service; only its hash is stored.
type IssuedSession struct {
	Session    *domain.Session `json:"session"`
	Token      string          `json:"token"`
	CheckInURL string          `json:"checkin_url"`
}

type SessionServiceOptions struct {
	RotationWindow   time.Duration
	DefaultTTL       time.Duration
	PublicBaseURL    string
	RejectedTokenTTL time.Duration
}

type SessionService struct {
	sessions   repository.SessionRepository
	attendance repository.AttendanceRepository
	tokens     security.TokenGenerator
	hasher     *security.TokenHasher
	rejected   RejectedTokenStore
	clock      Clock
	logger     *slog.Logger
	opts       SessionServiceOptions
}

func NewSessionService(
	sessions repository.SessionRepository,
	attendance repository.AttendanceRepository,
	tokens security.TokenGenerator,
	hasher *security.TokenHasher,
	rejected RejectedTokenStore,
	clock Clock,
	logger *slog.Logger,
	opts SessionServiceOptions,
) *SessionService {
	if rejected == nil {
		rejected = NewNoopRejectedTokenStore()
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	opts.PublicBaseURL = strings.TrimRight(opts.PublicBaseURL, "/")
	return &SessionService{
		sessions:   sessions,
		attendance: attendance,
		tokens:     tokens,
		hasher:     hasher,
		rejected:   rejected,
		clock:      clock,
		logger:     logger,
		opts:       opts,
	}
}

func (s *SessionService) Create(ctx context.Context, teacherID string, in CreateSessionInput) (session *domain.Session, err error) {
	ctx, span := observability.StartSpan(ctx, "session.create", attribute.String("teacher.id", teacherID))
	defer func() { observability.EndSpan(span, err) }()
	defer func() { recordLifecycle(ctx, "create", err) }()

	subject := strings.TrimSpace(in.Subject)
	if subject == "" {
		return nil, fmt.Errorf("%w: subject is required", ErrValidation)
	}
	if strings.TrimSpace(teacherID) == "" {
		return nil, fmt.Errorf("%w: teacher id is required", ErrValidation)
	}
	now := s.clock.Now().UTC()
	expiresAt := now.Add(s.opts.DefaultTTL)
	if in.ExpiresAt != nil {
		if !in.ExpiresAt.After(now) {
			return nil, fmt.Errorf("%w: expires_at must be in the future", ErrValidation)
		}
		expiresAt = in.ExpiresAt.UTC()
	}

	session = &domain.Session{
		ID:          uuid.NewString(),
		TeacherID:   teacherID,
		Subject:     subject,
		Room:        strings.TrimSpace(in.Room),
		Description: strings.TrimSpace(in.Description),
		State:       domain.SessionStateCreated,
		ExpiresAt:   expiresAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	observability.AuditContext(ctx, "session.created", "session_id", session.ID, "teacher_id", teacherID)
	return session, nil
}

// Start activates an owned session and issues a fresh token. StartTime is
// only set on the first successful Start.
func (s *SessionService) Start(ctx context.Context, sessionID, teacherID string) (issued *IssuedSession, err error) {
	ctx, span := observability.StartSpan(ctx, "session.start", attribute.String("session.id", sessionID))
	defer func() { observability.EndSpan(span, err) }()
	defer func() { recordLifecycle(ctx, "start", err) }()

	session, err := s.owned(ctx, sessionID, teacherID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()
	if session.State == domain.SessionStateExpired {
		return nil, ErrSessionExpired
	}
	if now.After(session.ExpiresAt) {
		if _, err := s.ExpireOverdue(ctx, session, now); err != nil {
			return nil, err
		}
		return nil, ErrSessionExpired
	}

	token, hash, deadline := s.mint(now)
	ok, err := s.sessions.Activate(ctx, teacherID, sessionID, hash, deadline, now)
	if err != nil {
		return nil, fmt.Errorf("activate session: %w", err)
	}
	if !ok {
		return nil, s.explainMiss(ctx, sessionID, teacherID, now)
	}
	observability.AuditContext(ctx, "session.started", "session_id", sessionID, "teacher_id", teacherID)
	return s.issued(ctx, sessionID, teacherID, token)
}

// RefreshToken replaces the token of an active session. The deadline slides
// to now + rotation window on every call.
func (s *SessionService) RefreshToken(ctx context.Context, sessionID, teacherID string) (issued *IssuedSession, err error) {
	ctx, span := observability.StartSpan(ctx, "session.refresh", attribute.String("session.id", sessionID))
	defer func() { observability.EndSpan(span, err) }()
	defer func() { recordLifecycle(ctx, "refresh", err) }()

	session, err := s.owned(ctx, sessionID, teacherID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()
	expired, err := s.ExpireOverdue(ctx, session, now)
	if err != nil {
		return nil, err
	}
	if expired {
		return nil, ErrSessionExpired
	}
	if !session.IsActive {
		return nil, fmt.Errorf("%w: session is %s", ErrInvalidState, session.State)
	}

	token, hash, deadline := s.mint(now)
	ok, err := s.sessions.RotateToken(ctx, teacherID, sessionID, hash, deadline, now)
	if err != nil {
		return nil, fmt.Errorf("rotate token: %w", err)
	}
	if !ok {
		return nil, s.explainMiss(ctx, sessionID, teacherID, now)
	}
	return s.issued(ctx, sessionID, teacherID, token)
}

// Stop deactivates an owned session. Stopping a session that is not active
// returns it unchanged.
func (s *SessionService) Stop(ctx context.Context, sessionID, teacherID string) (session *domain.Session, err error) {
	ctx, span := observability.StartSpan(ctx, "session.stop", attribute.String("session.id", sessionID))
	defer func() { observability.EndSpan(span, err) }()
	defer func() { recordLifecycle(ctx, "stop", err) }()

	session, err = s.owned(ctx, sessionID, teacherID)
	if err != nil {
		return nil, err
	}
	if !session.IsActive {
		return session, nil
	}
	now := s.clock.Now().UTC()
	expired, err := s.ExpireOverdue(ctx, session, now)
	if err != nil {
		return nil, err
	}
	if !expired {
		if _, err := s.sessions.Deactivate(ctx, teacherID, sessionID, now); err != nil {
			return nil, fmt.Errorf("deactivate session: %w", err)
		}
		observability.AuditContext(ctx, "session.stopped", "session_id", sessionID, "teacher_id", teacherID)
	}
	return s.owned(ctx, sessionID, teacherID)
}

// SweepExpired expires every active session whose administrative deadline
// is before now.
func (s *SessionService) SweepExpired(ctx context.Context, now time.Time) (n int64, err error) {
	ctx, span := observability.StartSpan(ctx, "session.sweep")
	defer func() { observability.EndSpan(span, err) }()

	n, err = s.sessions.ExpireActive(ctx, now.UTC())
	if err != nil {
		recordLifecycle(ctx, "sweep", err)
		return 0, fmt.Errorf("sweep expired sessions: %w", err)
	}
	span.SetAttributes(attribute.Int64("sessions.expired", n))
	observability.RecordSessionsSwept(ctx, n)
	recordLifecycle(ctx, "sweep", nil)
	if n > 0 {
		s.logger.InfoContext(ctx, "expired sessions swept", "count", n)
	}
	return n, nil
}

// ExpireOverdue expires session on the spot when it is active past its
// deadline. It reports whether it did so and updates the passed value to
// match the stored row.
func (s *SessionService) ExpireOverdue(ctx context.Context, session *domain.Session, now time.Time) (bool, error) {
	if !session.IsActive || !now.After(session.ExpiresAt) {
		return false, nil
	}
	if _, err := s.sessions.ExpireByID(ctx, session.ID, now); err != nil {
		return false, fmt.Errorf("expire session: %w", err)
	}
	session.State = domain.SessionStateExpired
	session.IsActive = false
	session.CurrentTokenHash = nil
	session.TokenExpiresAt = nil
	if session.EndTime == nil {
		end := now
		session.EndTime = &end
	}
	observability.AuditContext(ctx, "session.expired", "session_id", session.ID)
	return true, nil
}

// Resolve maps a raw check-in token to the session currently holding it.
func (s *SessionService) Resolve(ctx context.Context, token string) (*domain.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	hash := s.hasher.Hash(token)
	if seen, err := s.rejected.Seen(ctx, hash); err != nil {
		s.logger.WarnContext(ctx, "rejected token cache lookup failed", "error", err)
	} else if seen {
		return nil, ErrInvalidToken
	}
	session, err := s.sessions.FindByTokenHash(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			if err := s.rejected.Remember(ctx, hash, s.opts.RejectedTokenTTL); err != nil {
				s.logger.WarnContext(ctx, "rejected token cache write failed", "error", err)
			}
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("resolve token: %w", err)
	}
	return session, nil
}

func (s *SessionService) Get(ctx context.Context, sessionID, teacherID string) (*domain.Session, error) {
	return s.owned(ctx, sessionID, teacherID)
}

// ListByTeacher sweeps overdue sessions before listing so no listed session
// is active past its deadline.
func (s *SessionService) ListByTeacher(ctx context.Context, teacherID string) ([]domain.Session, error) {
	if _, err := s.SweepExpired(ctx, s.clock.Now()); err != nil {
		return nil, err
	}
	sessions, err := s.sessions.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

func (s *SessionService) Delete(ctx context.Context, sessionID, teacherID string) (err error) {
	ctx, span := observability.StartSpan(ctx, "session.delete", attribute.String("session.id", sessionID))
	defer func() { observability.EndSpan(span, err) }()
	defer func() { recordLifecycle(ctx, "delete", err) }()

	if err := s.sessions.DeleteForTeacher(ctx, teacherID, sessionID); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("delete session: %w", err)
	}
	observability.AuditContext(ctx, "session.deleted", "session_id", sessionID, "teacher_id", teacherID)
	return nil
}

// ListAttendance returns the ledger of an owned session in check-in order.
func (s *SessionService) ListAttendance(ctx context.Context, sessionID, teacherID string) ([]domain.AttendanceRecord, error) {
	if _, err := s.owned(ctx, sessionID, teacherID); err != nil {
		return nil, err
	}
	records, err := s.attendance.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return records, nil
}

// CheckInURL is the URL encoded into the scannable code for token.
func (s *SessionService) CheckInURL(token string) string {
	return s.opts.PublicBaseURL + "/checkin?token=" + url.QueryEscape(token)
}

func (s *SessionService) owned(ctx context.Context, sessionID, teacherID string) (*domain.Session, error) {
	session, err := s.sessions.FindByIDForTeacher(ctx, teacherID, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	return session, nil
}

func (s *SessionService) mint(now time.Time) (token, hash string, deadline time.Time) {
	token = s.tokens.Generate()
	return token, s.hasher.Hash(token), now.Add(s.opts.RotationWindow)
}

func (s *SessionService) issued(ctx context.Context, sessionID, teacherID, token string) (*IssuedSession, error) {
	session, err := s.owned(ctx, sessionID, teacherID)
	if err != nil {
		return nil, err
	}
	return &IssuedSession{Session: session, Token: token, CheckInURL: s.CheckInURL(token)}, nil
}

// explainMiss classifies a conditional update that matched no row because
// the session changed between the read and the write.
func (s *SessionService) explainMiss(ctx context.Context, sessionID, teacherID string, now time.Time) error {
	session, err := s.owned(ctx, sessionID, teacherID)
	if err != nil {
		return err
	}
	if session.State == domain.SessionStateExpired || now.After(session.ExpiresAt) {
		return ErrSessionExpired
	}
	if !session.IsActive {
		return fmt.Errorf("%w: session is %s", ErrInvalidState, session.State)
	}
	return fmt.Errorf("%w: concurrent update", ErrInvalidState)
}

func recordLifecycle(ctx context.Context, action string, err error) {
	observability.RecordSessionLifecycle(ctx, action, outcomeOf(err))
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrSessionNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrSessionExpired):
		return "session_expired"
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, ErrSessionInactive):
		return "session_inactive"
	case errors.Is(err, ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, ErrDuplicateCheckIn):
		return "duplicate"
	default:
		return "error"
	}
}
