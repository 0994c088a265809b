package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProgressRecord is a single tracked metric for a student on a given day.
type ProgressRecord struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"student_id"`
	TrackingDate time.Time  `gorm:"type:date;not null;index" json:"tracking_date"`
	FocusArea    FocusArea  `gorm:"size:32;not null" json:"focus_area"`
	MetricName   string     `gorm:"size:128;not null" json:"metric_name"`
	MetricValue  *float64   `json:"metric_value"`
	Notes        *string    `gorm:"type:text" json:"notes"`
	RecordedBy   *uuid.UUID `gorm:"type:uuid" json:"recorded_by"`
	CreatedAt    time.Time  `json:"created_at"`
}

// TableName matches the progress table name.
func (ProgressRecord) TableName() string {
	return "progress_tracking"
}

// BeforeCreate assigns a primary key when the caller did not.
func (p *ProgressRecord) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
