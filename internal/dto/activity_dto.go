package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/therapy-api/internal/models"
)

// ActivityListRequest defines filters for listing activity entries.
// StudentID selects the audit trail of a student across every entity type.
type ActivityListRequest struct {
	Page       int
	PageSize   int
	ActorID    *uuid.UUID
	EntityID   *uuid.UUID
	StudentID  *uuid.UUID
	Action     string
	EntityType string
}

// ActivityResponse serializes activity log entries.
type ActivityResponse struct {
	ID         uuid.UUID              `json:"id"`
	ActorID    uuid.UUID              `json:"actor_id"`
	ActorRole  string                 `json:"actor_role"`
	Action     string                 `json:"action"`
	EntityType string                 `json:"entity_type"`
	EntityID   *uuid.UUID             `json:"entity_id"`
	StudentID  *uuid.UUID             `json:"student_id"`
	Metadata   map[string]interface{} `json:"metadata"`
	CreatedAt  time.Time              `json:"created_at"`
}

// PaginationMeta is rendered under "meta" for paginated listings.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// ActivityListResponse wraps paginated activity entries.
type ActivityListResponse struct {
	Items      []ActivityResponse `json:"items"`
	Pagination PaginationMeta     `json:"pagination"`
}

// NewActivityResponse maps an activity model.
func NewActivityResponse(entry models.ActivityLog) ActivityResponse {
	metadata := map[string]interface{}(entry.Metadata)
	if metadata == nil {
		metadata = map[string]interface{}{}
	}

	return ActivityResponse{
		ID:         entry.ID,
		ActorID:    entry.ActorID,
		ActorRole:  entry.ActorRole,
		Action:     entry.Action,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		StudentID:  entry.StudentID,
		Metadata:   metadata,
		CreatedAt:  entry.CreatedAt,
	}
}
