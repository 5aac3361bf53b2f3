package domain

import "time"

type SessionState string

const (
	SessionStateCreated SessionState = "created"
	SessionStateActive  SessionState = "active"
	SessionStateStopped SessionState = "stopped"
	SessionStateExpired SessionState = "expired"
)

// Session is one class meeting owned by a teacher. CurrentTokenHash is set
// iff IsActive; the raw token is never persisted.
type Session struct {
	ID               string       `gorm:"primaryKey;size:36" json:"id"`
	TeacherID        string       `gorm:"size:128;index;not null" json:"teacher_id"`
	Subject          string       `gorm:"size:256;not null" json:"subject"`
	Room             string       `gorm:"size:128" json:"room,omitempty"`
	Description      string       `gorm:"size:1024" json:"description,omitempty"`
	State            SessionState `gorm:"size:16;index;not null" json:"state"`
	IsActive         bool         `gorm:"index;not null" json:"is_active"`
	StartTime        *time.Time   `json:"start_time,omitempty"`
	EndTime          *time.Time   `json:"end_time,omitempty"`
	ExpiresAt        time.Time    `gorm:"index;not null" json:"expires_at"`
	CurrentTokenHash *string      `gorm:"size:128;uniqueIndex" json:"-"`
	TokenExpiresAt   *time.Time   `json:"token_expires_at,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

func (s *Session) HasToken() bool {
	return s.CurrentTokenHash != nil && *s.CurrentTokenHash != ""
}
