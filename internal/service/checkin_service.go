package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/sandeepkv93/qr-attendance-service/internal/domain"
	"github.com/sandeepkv93/qr-attendance-service/internal/observability"
	"github.com/sandeepkv93/qr-attendance-service/internal/repository"
)

const DayKeyLayout = "2006-01-02"

// SessionResolver is the part of the session lifecycle the check-in
// protocol depends on.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*domain.Session, error)
	ExpireOverdue(ctx context.Context, session *domain.Session, now time.Time) (bool, error)
}

type SessionSummary struct {
	ID             string     `json:"id"`
	TeacherID      string     `json:"teacher_id"`
	Subject        string     `json:"subject"`
	Room           string     `json:"room,omitempty"`
	Description    string     `json:"description,omitempty"`
	StartTime      *time.Time `json:"start_time,omitempty"`
	TokenExpiresAt *time.Time `json:"token_expires_at,omitempty"`
}

type VerifyResult struct {
	Session         SessionSummary `json:"session"`
	DayKey          string         `json:"day_key"`
	AlreadyAttended bool           `json:"already_attended"`
}

type CheckInInput struct {
	Token     string
	StudentID string
	Now       time.Time
	Origin    string
	UserAgent string
}

type CheckInServiceOptions struct {
	LateThreshold time.Duration
	DayZone       *time.Location
}

type CheckInService struct {
	sessions SessionResolver
	ledger   repository.AttendanceRepository
	clock    Clock
	logger   *slog.Logger
	opts     CheckInServiceOptions
}

func NewCheckInService(sessions SessionResolver, ledger repository.AttendanceRepository, clock Clock, logger *slog.Logger, opts CheckInServiceOptions) *CheckInService {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.DayZone == nil {
		opts.DayZone = time.UTC
	}
	return &CheckInService{sessions: sessions, ledger: ledger, clock: clock, logger: logger, opts: opts}
}

// Verify runs the check-in validation chain without writing. A student who
// already checked in today gets AlreadyAttended, not an error.
func (s *CheckInService) Verify(ctx context.Context, token, studentID string, now time.Time) (result *VerifyResult, err error) {
	ctx, span := observability.StartSpan(ctx, "checkin.verify")
	defer func() { observability.EndSpan(span, err) }()
	defer func() { observability.RecordCheckIn(ctx, "verify", outcomeOf(err)) }()

	if now.IsZero() {
		now = s.clock.Now()
	}
	session, dayKey, err := s.admit(ctx, token, now)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("session.id", session.ID))

	attended := true
	if _, err := s.ledger.FindByStudentSessionDay(ctx, studentID, session.ID, dayKey); err != nil {
		if !errors.Is(err, repository.ErrAttendanceNotFound) {
			return nil, fmt.Errorf("lookup attendance: %w", err)
		}
		attended = false
	}
	return &VerifyResult{Session: summarize(session), DayKey: dayKey, AlreadyAttended: attended}, nil
}

// CheckIn redeems token for studentID. Concurrent attempts for the same
// student, session and day yield exactly one record; the others fail with
// ErrDuplicateCheckIn.
func (s *CheckInService) CheckIn(ctx context.Context, in CheckInInput) (record *domain.AttendanceRecord, err error) {
	ctx, span := observability.StartSpan(ctx, "checkin.redeem")
	defer func() { observability.EndSpan(span, err) }()
	defer func() { observability.RecordCheckIn(ctx, "checkin", outcomeOf(err)) }()

	if in.StudentID == "" {
		return nil, fmt.Errorf("%w: student id is required", ErrValidation)
	}
	now := in.Now
	if now.IsZero() {
		now = s.clock.Now()
	}
	now = now.UTC()
	session, dayKey, err := s.admit(ctx, in.Token, now)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("session.id", session.ID), attribute.String("attendance.day_key", dayKey))

	if _, err := s.ledger.FindByStudentSessionDay(ctx, in.StudentID, session.ID, dayKey); err == nil {
		return nil, ErrDuplicateCheckIn
	} else if !errors.Is(err, repository.ErrAttendanceNotFound) {
		return nil, fmt.Errorf("lookup attendance: %w", err)
	}

	record = &domain.AttendanceRecord{
		ID:          uuid.NewString(),
		StudentID:   in.StudentID,
		SessionID:   session.ID,
		DayKey:      dayKey,
		CheckedInAt: now,
		Status:      ClassifyArrival(session.StartTime, now, s.opts.LateThreshold),
		OriginIP:    in.Origin,
		UserAgent:   in.UserAgent,
	}
	if err := s.ledger.Insert(ctx, record); err != nil {
		if errors.Is(err, repository.ErrDuplicateAttendance) {
			return nil, ErrDuplicateCheckIn
		}
		return nil, fmt.Errorf("record attendance: %w", err)
	}
	observability.AuditContext(ctx, "attendance.recorded",
		"session_id", session.ID,
		"student_id", in.StudentID,
		"status", string(record.Status),
		"day_key", dayKey,
	)
	return record, nil
}

func (s *CheckInService) History(ctx context.Context, studentID string) ([]domain.AttendanceRecord, error) {
	records, err := s.ledger.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return records, nil
}

func (s *CheckInService) admit(ctx context.Context, token string, now time.Time) (*domain.Session, string, error) {
	session, err := s.sessions.Resolve(ctx, token)
	if err != nil {
		return nil, "", err
	}
	if !session.IsActive {
		return nil, "", ErrSessionInactive
	}
	expired, err := s.sessions.ExpireOverdue(ctx, session, now)
	if err != nil {
		return nil, "", err
	}
	if expired {
		return nil, "", ErrSessionInactive
	}
	if session.TokenExpiresAt == nil || now.After(*session.TokenExpiresAt) {
		return nil, "", ErrTokenExpired
	}
	return session, DayKey(now, s.opts.DayZone), nil
}

// DayKey is the calendar day of t in zone.
func DayKey(t time.Time, zone *time.Location) string {
	return t.In(zone).Format(DayKeyLayout)
}

// ClassifyArrival is late when more than threshold has passed since the
// session first started. A session that never started counts as present.
func ClassifyArrival(start *time.Time, now time.Time, threshold time.Duration) domain.AttendanceStatus {
	if start == nil || now.Sub(*start) <= threshold {
		return domain.AttendanceStatusPresent
	}
	return domain.AttendanceStatusLate
}

func summarize(s *domain.Session) SessionSummary {
	return SessionSummary{
		ID:             s.ID,
		TeacherID:      s.TeacherID,
		Subject:        s.Subject,
		Room:           s.Room,
		Description:    s.Description,
		StartTime:      s.StartTime,
		TokenExpiresAt: s.TokenExpiresAt,
	}
}
