package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/noah-isme/therapy-api/internal/access"
)

// Student is a child receiving therapy. Every student has exactly one parent
// and at most one primary therapist.
type Student struct {
	ID                 uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	FullName           string     `gorm:"size:255;not null" json:"full_name"`
	DateOfBirth        time.Time  `gorm:"type:date;not null" json:"date_of_birth"`
	Gender             *string    `gorm:"size:16" json:"gender"`
	ParentID           uuid.UUID  `gorm:"type:uuid;not null;index" json:"parent_id"`
	PrimaryTherapistID *uuid.UUID `gorm:"type:uuid;index" json:"primary_therapist_id"`
	AvatarURL          *string    `gorm:"size:512" json:"avatar_url"`
	EmergencyContact   *string    `gorm:"size:255" json:"emergency_contact"`
	MedicalNotes       *string    `gorm:"type:text" json:"medical_notes"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// BeforeCreate assigns a primary key when the caller did not.
func (s *Student) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Ref returns the ownership columns used by the access policy.
func (s Student) Ref() access.StudentRef {
	return access.StudentRef{ParentID: s.ParentID, PrimaryTherapistID: s.PrimaryTherapistID}
}

// School groups students and the staff administering them.
type School struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate assigns a primary key when the caller did not.
func (s *School) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// SchoolStaff links a user to a school they administer.
type SchoolStaff struct {
	SchoolID uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID   uuid.UUID `gorm:"type:uuid;primaryKey;index"`
}

// TableName keeps the table name singular.
func (SchoolStaff) TableName() string {
	return "school_staff"
}

// StudentSchoolEnrollment links a student to a school.
type StudentSchoolEnrollment struct {
	StudentID uuid.UUID `gorm:"type:uuid;primaryKey"`
	SchoolID  uuid.UUID `gorm:"type:uuid;primaryKey;index"`
}

// TableName matches the enrollment table name.
func (StudentSchoolEnrollment) TableName() string {
	return "student_school_enrollment"
}
