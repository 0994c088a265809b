package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/therapy-api/internal/models"
)

// SessionCreateRequest captures the payload for scheduling a session.
type SessionCreateRequest struct {
	StudentID       string  `json:"studentId" validate:"required,uuid"`
	SessionDate     string  `json:"sessionDate" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	DurationMinutes *int    `json:"durationMinutes" validate:"omitempty,min=1,max=1440"`
	FocusArea       *string `json:"focusArea" validate:"omitempty,oneof=academic emotional linguistic sensory behavioral life_skills"`
	Notes           *string `json:"notes" validate:"omitempty,max=5000"`
}

// SessionUpdateRequest captures partial updates. Nil fields keep their value.
type SessionUpdateRequest struct {
	Status          *string `json:"status" validate:"omitempty,oneof=scheduled completed cancelled rescheduled"`
	DurationMinutes *int    `json:"durationMinutes" validate:"omitempty,min=1,max=1440"`
	FocusArea       *string `json:"focusArea" validate:"omitempty,oneof=academic emotional linguistic sensory behavioral life_skills"`
	VideoURL        *string `json:"videoUrl" validate:"omitempty,url,max=512"`
	Notes           *string `json:"notes" validate:"omitempty,max=5000"`
}

// Empty reports whether the update carries no fields.
func (r SessionUpdateRequest) Empty() bool {
	return r.Status == nil && r.DurationMinutes == nil && r.FocusArea == nil && r.VideoURL == nil && r.Notes == nil
}

// SessionResponse is the public view of a therapy session.
type SessionResponse struct {
	ID              uuid.UUID `json:"id"`
	StudentID       uuid.UUID `json:"student_id"`
	TherapistID     uuid.UUID `json:"therapist_id"`
	StudentName     string    `json:"student_name,omitempty"`
	TherapistName   string    `json:"therapist_name,omitempty"`
	SessionDate     time.Time `json:"session_date"`
	DurationMinutes *int      `json:"duration_minutes"`
	FocusArea       *string   `json:"focus_area"`
	Status          string    `json:"status"`
	VideoURL        *string   `json:"video_url"`
	Notes           *string   `json:"notes"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewSessionResponse maps a session model.
func NewSessionResponse(session models.TherapySession) SessionResponse {
	var focus *string
	if session.FocusArea != nil {
		value := string(*session.FocusArea)
		focus = &value
	}

	return SessionResponse{
		ID:              session.ID,
		StudentID:       session.StudentID,
		TherapistID:     session.TherapistID,
		SessionDate:     session.SessionDate,
		DurationMinutes: session.DurationMinutes,
		FocusArea:       focus,
		Status:          string(session.Status),
		VideoURL:        session.VideoURL,
		Notes:           session.Notes,
		CreatedAt:       session.CreatedAt,
		UpdatedAt:       session.UpdatedAt,
	}
}

// NewSessionViewResponse maps a session joined with display names.
func NewSessionViewResponse(view models.SessionView) SessionResponse {
	response := NewSessionResponse(view.TherapySession)
	response.StudentName = view.StudentName
	response.TherapistName = view.TherapistName
	return response
}

// NewSessionViewResponses maps a slice of joined sessions.
func NewSessionViewResponses(views []models.SessionView) []SessionResponse {
	responses := make([]SessionResponse, 0, len(views))
	for _, view := range views {
		responses = append(responses, NewSessionViewResponse(view))
	}
	return responses
}
