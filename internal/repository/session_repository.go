package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sandeepkv93/qr-attendance-service/internal/domain"
	"github.com/sandeepkv93/qr-attendance-service/internal/observability"

	"gorm.io/gorm"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionRepository persists class sessions. Every mutation is a single
// conditional UPDATE scoped to one session id; the bool results report
// whether the condition matched.
type SessionRepository interface {
	Create(ctx context.Context, s *domain.Session) error
	FindByIDForTeacher(ctx context.Context, teacherID, sessionID string) (*domain.Session, error)
	FindByID(ctx context.Context, sessionID string) (*domain.Session, error)
	FindByTokenHash(ctx context.Context, hash string) (*domain.Session, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]domain.Session, error)
	Activate(ctx context.Context, teacherID, sessionID, tokenHash string, tokenExpiresAt, now time.Time) (bool, error)
	RotateToken(ctx context.Context, teacherID, sessionID, tokenHash string, tokenExpiresAt, now time.Time) (bool, error)
	Deactivate(ctx context.Context, teacherID, sessionID string, now time.Time) (bool, error)
	ExpireByID(ctx context.Context, sessionID string, now time.Time) (bool, error)
	ExpireActive(ctx context.Context, now time.Time) (int64, error)
	DeleteForTeacher(ctx context.Context, teacherID, sessionID string) error
}

type GormSessionRepository struct{ db *gorm.DB }

func NewSessionRepository(db *gorm.DB) SessionRepository { return &GormSessionRepository{db: db} }

func (r *GormSessionRepository) Create(ctx context.Context, s *domain.Session) error {
	err := r.db.WithContext(ctx).Create(s).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "session", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "session", "create", "success")
	return nil
}

func (r *GormSessionRepository) FindByIDForTeacher(ctx context.Context, teacherID, sessionID string) (*domain.Session, error) {
	return r.findOne(ctx, "find_by_id_for_teacher", "teacher_id = ? AND id = ?", teacherID, sessionID)
}

func (r *GormSessionRepository) FindByID(ctx context.Context, sessionID string) (*domain.Session, error) {
	return r.findOne(ctx, "find_by_id", "id = ?", sessionID)
}

func (r *GormSessionRepository) FindByTokenHash(ctx context.Context, hash string) (*domain.Session, error) {
	if hash == "" {
		return nil, ErrSessionNotFound
	}
	return r.findOne(ctx, "find_by_token_hash", "current_token_hash = ?", hash)
}

func (r *GormSessionRepository) findOne(ctx context.Context, op string, query string, args ...any) (*domain.Session, error) {
	var s domain.Session
	err := r.db.WithContext(ctx).Where(query, args...).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "session", op, "not_found")
			return nil, ErrSessionNotFound
		}
		observability.RecordRepositoryOperation(ctx, "session", op, "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "session", op, "success")
	return &s, nil
}

func (r *GormSessionRepository) ListByTeacher(ctx context.Context, teacherID string) ([]domain.Session, error) {
	var sessions []domain.Session
	err := r.db.WithContext(ctx).Where("teacher_id = ?", teacherID).
		Order("created_at DESC").
		Order("id").
		Find(&sessions).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "session", "list_by_teacher", "error")
		return sessions, err
	}
	observability.RecordRepositoryOperation(ctx, "session", "list_by_teacher", "success")
	return sessions, nil
}

// Activate moves an owned, unexpired session to active with a fresh token.
// StartTime is only written when it is still NULL.
func (r *GormSessionRepository) Activate(ctx context.Context, teacherID, sessionID, tokenHash string, tokenExpiresAt, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("id = ? AND teacher_id = ? AND state <> ? AND expires_at >= ?", sessionID, teacherID, domain.SessionStateExpired, now).
		Updates(map[string]any{
			"state":              domain.SessionStateActive,
			"is_active":          true,
			"start_time":         gorm.Expr("COALESCE(start_time, ?)", now),
			"current_token_hash": tokenHash,
			"token_expires_at":   tokenExpiresAt,
		})
	return r.updated(ctx, "activate", res)
}

// RotateToken replaces the token of an active session. The previous token
// stops resolving as soon as the row is written.
func (r *GormSessionRepository) RotateToken(ctx context.Context, teacherID, sessionID, tokenHash string, tokenExpiresAt, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("id = ? AND teacher_id = ? AND is_active = ? AND expires_at >= ?", sessionID, teacherID, true, now).
		Updates(map[string]any{
			"current_token_hash": tokenHash,
			"token_expires_at":   tokenExpiresAt,
		})
	return r.updated(ctx, "rotate_token", res)
}

func (r *GormSessionRepository) Deactivate(ctx context.Context, teacherID, sessionID string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("id = ? AND teacher_id = ? AND is_active = ?", sessionID, teacherID, true).
		Updates(map[string]any{
			"state":              domain.SessionStateStopped,
			"is_active":          false,
			"end_time":           now,
			"current_token_hash": nil,
			"token_expires_at":   nil,
		})
	return r.updated(ctx, "deactivate", res)
}

func (r *GormSessionRepository) ExpireByID(ctx context.Context, sessionID string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("id = ? AND is_active = ? AND expires_at < ?", sessionID, true, now).
		Updates(expireUpdates(now))
	return r.updated(ctx, "expire_by_id", res)
}

func (r *GormSessionRepository) ExpireActive(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("is_active = ? AND expires_at < ?", true, now).
		Updates(expireUpdates(now))
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "session", "expire_active", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(ctx, "session", "expire_active", "success")
	return res.RowsAffected, nil
}

func expireUpdates(now time.Time) map[string]any {
	return map[string]any{
		"state":              domain.SessionStateExpired,
		"is_active":          false,
		"end_time":           gorm.Expr("COALESCE(end_time, ?)", now),
		"current_token_hash": nil,
		"token_expires_at":   nil,
	}
}

// DeleteForTeacher removes an owned session together with its attendance
// records in one transaction.
func (r *GormSessionRepository) DeleteForTeacher(ctx context.Context, teacherID, sessionID string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var s domain.Session
		if err := tx.Where("teacher_id = ? AND id = ?", teacherID, sessionID).First(&s).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSessionNotFound
			}
			return err
		}
		if err := tx.Where("session_id = ?", s.ID).Delete(&domain.AttendanceRecord{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", s.ID).Delete(&domain.Session{}).Error
	})
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			observability.RecordRepositoryOperation(ctx, "session", "delete_for_teacher", "not_found")
		} else {
			observability.RecordRepositoryOperation(ctx, "session", "delete_for_teacher", "error")
		}
		return err
	}
	observability.RecordRepositoryOperation(ctx, "session", "delete_for_teacher", "success")
	return nil
}

func (r *GormSessionRepository) updated(ctx context.Context, op string, res *gorm.DB) (bool, error) {
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "session", op, "error")
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(ctx, "session", op, "no_match")
		return false, nil
	}
	observability.RecordRepositoryOperation(ctx, "session", op, "success")
	return true, nil
}
