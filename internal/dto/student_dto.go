package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/therapy-api/internal/models"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// StudentCreateRequest captures the payload for registering a student.
type StudentCreateRequest struct {
	FullName           string  `json:"fullName" validate:"required,min=1,max=255"`
	DateOfBirth        string  `json:"dateOfBirth" validate:"required,datetime=2006-01-02"`
	Gender             *string `json:"gender" validate:"omitempty,oneof=male female other"`
	ParentID           string  `json:"parentId" validate:"required,uuid"`
	PrimaryTherapistID *string `json:"primaryTherapistId" validate:"omitempty,uuid"`
	AvatarURL          *string `json:"avatarUrl" validate:"omitempty,url,max=512"`
	EmergencyContact   *string `json:"emergencyContact" validate:"omitempty,max=255"`
	MedicalNotes       *string `json:"medicalNotes" validate:"omitempty,max=5000"`
}

// StudentUpdateRequest captures partial updates. Nil fields keep their value.
type StudentUpdateRequest struct {
	FullName         *string `json:"fullName" validate:"omitempty,min=1,max=255"`
	DateOfBirth      *string `json:"dateOfBirth" validate:"omitempty,datetime=2006-01-02"`
	Gender           *string `json:"gender" validate:"omitempty,oneof=male female other"`
	AvatarURL        *string `json:"avatarUrl" validate:"omitempty,url,max=512"`
	EmergencyContact *string `json:"emergencyContact" validate:"omitempty,max=255"`
	MedicalNotes     *string `json:"medicalNotes" validate:"omitempty,max=5000"`
}

// Empty reports whether the update carries no fields.
func (r StudentUpdateRequest) Empty() bool {
	return r.FullName == nil && r.DateOfBirth == nil && r.Gender == nil &&
		r.AvatarURL == nil && r.EmergencyContact == nil && r.MedicalNotes == nil
}

// StudentResponse is the public view of a student.
type StudentResponse struct {
	ID                 uuid.UUID  `json:"id"`
	FullName           string     `json:"full_name"`
	DateOfBirth        string     `json:"date_of_birth"`
	Gender             *string    `json:"gender"`
	ParentID           uuid.UUID  `json:"parent_id"`
	PrimaryTherapistID *uuid.UUID `json:"primary_therapist_id"`
	AvatarURL          *string    `json:"avatar_url"`
	EmergencyContact   *string    `json:"emergency_contact"`
	MedicalNotes       *string    `json:"medical_notes"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// StudentStatsResponse summarises a student's recent progress. Absent data is zero.
type StudentStatsResponse struct {
	OverallProgress float64 `json:"overall_progress"`
	ActiveGoals     int     `json:"active_goals"`
	CompletedGoals  int     `json:"completed_goals"`
	TotalSessions   int64   `json:"total_sessions"`
}

// ParentResponse is the compact parent view used by student forms.
type ParentResponse struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"full_name"`
	Email    string    `json:"email"`
}

// NewStudentResponse maps a student model.
func NewStudentResponse(student models.Student) StudentResponse {
	return StudentResponse{
		ID:                 student.ID,
		FullName:           student.FullName,
		DateOfBirth:        student.DateOfBirth.Format(DateLayout),
		Gender:             student.Gender,
		ParentID:           student.ParentID,
		PrimaryTherapistID: student.PrimaryTherapistID,
		AvatarURL:          student.AvatarURL,
		EmergencyContact:   student.EmergencyContact,
		MedicalNotes:       student.MedicalNotes,
		CreatedAt:          student.CreatedAt,
		UpdatedAt:          student.UpdatedAt,
	}
}

// NewStudentResponses maps a slice of students.
func NewStudentResponses(students []models.Student) []StudentResponse {
	responses := make([]StudentResponse, 0, len(students))
	for _, student := range students {
		responses = append(responses, NewStudentResponse(student))
	}
	return responses
}

// NewParentResponse maps a parent profile.
func NewParentResponse(profile models.Profile) ParentResponse {
	return ParentResponse{ID: profile.ID, FullName: profile.FullName, Email: profile.Email}
}
