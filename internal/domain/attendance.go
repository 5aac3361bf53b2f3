package domain

import "time"

type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "present"
	AttendanceStatusLate    AttendanceStatus = "late"
)

// AttendanceRecord is append-only. At most one row exists per
// (StudentID, SessionID, DayKey); the composite unique index enforces it.
type AttendanceRecord struct {
	ID          string           `gorm:"primaryKey;size:36" json:"id"`
	StudentID   string           `gorm:"size:128;not null;uniqueIndex:ux_attendance_student_session_day,priority:1;index" json:"student_id"`
	SessionID   string           `gorm:"size:36;not null;uniqueIndex:ux_attendance_student_session_day,priority:2;index" json:"session_id"`
	DayKey      string           `gorm:"size:10;not null;uniqueIndex:ux_attendance_student_session_day,priority:3" json:"day_key"`
	CheckedInAt time.Time        `gorm:"index;not null" json:"checked_in_at"`
	Status      AttendanceStatus `gorm:"size:16;not null" json:"status"`
	OriginIP    string           `gorm:"size:64" json:"origin_ip,omitempty"`
	UserAgent   string           `gorm:"size:512" json:"user_agent,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}
