package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/therapy-api/internal/models"
)

// ProgressCreateRequest records a metric for a student. TrackingDate defaults to today.
type ProgressCreateRequest struct {
	TrackingDate *string  `json:"trackingDate" validate:"omitempty,datetime=2006-01-02"`
	FocusArea    string   `json:"focusArea" validate:"required,oneof=academic emotional linguistic sensory behavioral life_skills"`
	MetricName   string   `json:"metricName" validate:"required,min=1,max=128"`
	MetricValue  *float64 `json:"metricValue" validate:"required"`
	Notes        *string  `json:"notes" validate:"omitempty,max=5000"`
}

// ProgressResponse is the public view of a progress record.
type ProgressResponse struct {
	ID           uuid.UUID  `json:"id"`
	StudentID    uuid.UUID  `json:"student_id"`
	TrackingDate string     `json:"tracking_date"`
	FocusArea    string     `json:"focus_area"`
	MetricName   string     `json:"metric_name"`
	MetricValue  *float64   `json:"metric_value"`
	Notes        *string    `json:"notes"`
	RecordedBy   *uuid.UUID `json:"recorded_by"`
	CreatedAt    time.Time  `json:"created_at"`
}

// NewProgressResponse maps a progress model.
func NewProgressResponse(record models.ProgressRecord) ProgressResponse {
	return ProgressResponse{
		ID:           record.ID,
		StudentID:    record.StudentID,
		TrackingDate: record.TrackingDate.Format(DateLayout),
		FocusArea:    string(record.FocusArea),
		MetricName:   record.MetricName,
		MetricValue:  record.MetricValue,
		Notes:        record.Notes,
		RecordedBy:   record.RecordedBy,
		CreatedAt:    record.CreatedAt,
	}
}

// NewProgressResponses maps a slice of progress records.
func NewProgressResponses(records []models.ProgressRecord) []ProgressResponse {
	responses := make([]ProgressResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, NewProgressResponse(record))
	}
	return responses
}
