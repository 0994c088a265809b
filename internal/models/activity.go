package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ActivityLog captures an auditable mutation performed by a user.
type ActivityLog struct {
	ID         uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	ActorID    uuid.UUID         `gorm:"type:uuid;not null;index" json:"actor_id"`
	ActorRole  string            `gorm:"size:32;not null" json:"actor_role"`
	Action     string            `gorm:"size:64;not null;index" json:"action"`
	EntityType string            `gorm:"size:64;not null;index" json:"entity_type"`
	EntityID   *uuid.UUID        `gorm:"type:uuid;index" json:"entity_id"`
	StudentID  *uuid.UUID        `gorm:"type:uuid;index" json:"student_id"`
	Metadata   datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt  time.Time         `json:"created_at"`
}

// BeforeCreate assigns a primary key when the caller did not.
func (a *ActivityLog) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
