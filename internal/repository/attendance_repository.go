package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/sandeepkv93/qr-attendance-service/internal/domain"
	"github.com/sandeepkv93/qr-attendance-service/internal/observability"

	"gorm.io/gorm"
)

var (
	ErrAttendanceNotFound  = errors.New("attendance record not found")
	ErrDuplicateAttendance = errors.New("attendance already recorded for this student, session and day")
)

// AttendanceRepository is the append-only check-in ledger. Uniqueness of
// (student, session, day key) is enforced by the database index, so Insert
// is the only authority on duplicates.
type AttendanceRepository interface {
	FindByStudentSessionDay(ctx context.Context, studentID, sessionID, dayKey string) (*domain.AttendanceRecord, error)
	Insert(ctx context.Context, rec *domain.AttendanceRecord) error
	ListBySession(ctx context.Context, sessionID string) ([]domain.AttendanceRecord, error)
	ListByStudent(ctx context.Context, studentID string) ([]domain.AttendanceRecord, error)
}

type GormAttendanceRepository struct{ db *gorm.DB }

func NewAttendanceRepository(db *gorm.DB) AttendanceRepository {
	return &GormAttendanceRepository{db: db}
}

func (r *GormAttendanceRepository) FindByStudentSessionDay(ctx context.Context, studentID, sessionID, dayKey string) (*domain.AttendanceRecord, error) {
	var rec domain.AttendanceRecord
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND session_id = ? AND day_key = ?", studentID, sessionID, dayKey).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "attendance", "find_by_student_session_day", "not_found")
			return nil, ErrAttendanceNotFound
		}
		observability.RecordRepositoryOperation(ctx, "attendance", "find_by_student_session_day", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "attendance", "find_by_student_session_day", "success")
	return &rec, nil
}

func (r *GormAttendanceRepository) Insert(ctx context.Context, rec *domain.AttendanceRecord) error {
	err := r.db.WithContext(ctx).Create(rec).Error
	if err != nil {
		if IsUniqueViolation(err) {
			observability.RecordRepositoryOperation(ctx, "attendance", "insert", "duplicate")
			return ErrDuplicateAttendance
		}
		observability.RecordRepositoryOperation(ctx, "attendance", "insert", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "attendance", "insert", "success")
	return nil
}

func (r *GormAttendanceRepository) ListBySession(ctx context.Context, sessionID string) ([]domain.AttendanceRecord, error) {
	var records []domain.AttendanceRecord
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).
		Order("checked_in_at ASC").
		Order("id ASC").
		Find(&records).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "attendance", "list_by_session", "error")
		return records, err
	}
	observability.RecordRepositoryOperation(ctx, "attendance", "list_by_session", "success")
	return records, nil
}

func (r *GormAttendanceRepository) ListByStudent(ctx context.Context, studentID string) ([]domain.AttendanceRecord, error) {
	var records []domain.AttendanceRecord
	err := r.db.WithContext(ctx).Where("student_id = ?", studentID).
		Order("checked_in_at DESC").
		Order("id DESC").
		Find(&records).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "attendance", "list_by_student", "error")
		return records, err
	}
	observability.RecordRepositoryOperation(ctx, "attendance", "list_by_student", "success")
	return records, nil
}

// IsUniqueViolation reports whether err is a unique constraint failure.
// Dialects translate to gorm.ErrDuplicatedKey when TranslateError is on; the
// message checks cover drivers that do not.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "sqlstate 23505")
}
