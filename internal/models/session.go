package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FocusArea is the therapy category attached to sessions, goals and metrics.
type FocusArea string

const (
	FocusAcademic   FocusArea = "academic"
	FocusEmotional  FocusArea = "emotional"
	FocusLinguistic FocusArea = "linguistic"
	FocusSensory    FocusArea = "sensory"
	FocusBehavioral FocusArea = "behavioral"
	FocusLifeSkills FocusArea = "life_skills"
)

// Valid reports whether the focus area is known.
func (f FocusArea) Valid() bool {
	switch f {
	case FocusAcademic, FocusEmotional, FocusLinguistic, FocusSensory, FocusBehavioral, FocusLifeSkills:
		return true
	default:
		return false
	}
}

// SessionStatus tracks the lifecycle of a therapy session.
type SessionStatus string

const (
	SessionScheduled   SessionStatus = "scheduled"
	SessionCompleted   SessionStatus = "completed"
	SessionCancelled   SessionStatus = "cancelled"
	SessionRescheduled SessionStatus = "rescheduled"
)

// Valid reports whether the status is known.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionScheduled, SessionCompleted, SessionCancelled, SessionRescheduled:
		return true
	default:
		return false
	}
}

// TherapySession is a scheduled or completed session between a therapist and
// a student. Only the owning therapist may change it.
type TherapySession struct {
	ID              uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID       uuid.UUID     `gorm:"type:uuid;not null;index" json:"student_id"`
	TherapistID     uuid.UUID     `gorm:"type:uuid;not null;index" json:"therapist_id"`
	SessionDate     time.Time     `gorm:"not null;index" json:"session_date"`
	DurationMinutes *int          `json:"duration_minutes"`
	FocusArea       *FocusArea    `gorm:"size:32" json:"focus_area"`
	Status          SessionStatus `gorm:"size:32;not null;default:scheduled" json:"status"`
	VideoURL        *string       `gorm:"size:512" json:"video_url"`
	Notes           *string       `gorm:"type:text" json:"notes"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// BeforeCreate assigns a primary key and the initial status.
func (s *TherapySession) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Status == "" {
		s.Status = SessionScheduled
	}
	return nil
}

// SessionView is a session joined with the student and therapist names.
type SessionView struct {
	TherapySession
	StudentName   string `json:"student_name"`
	TherapistName string `json:"therapist_name"`
}
