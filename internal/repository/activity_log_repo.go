package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/noah-isme/therapy-api/internal/models"
)

// ActivityLogFilter narrows audit trail queries. Zero values are ignored.
type ActivityLogFilter struct {
	Page       int
	PageSize   int
	ActorID    *uuid.UUID
	EntityID   *uuid.UUID
	StudentID  *uuid.UUID
	Action     string
	EntityType string
}

func (f ActivityLogFilter) apply(query *gorm.DB) *gorm.DB {
	columns := []struct {
		column string
		value  *uuid.UUID
	}{
		{"actor_id", f.ActorID},
		{"entity_id", f.EntityID},
		{"student_id", f.StudentID},
	}
	for _, c := range columns {
		if c.value != nil {
			query = query.Where(c.column+" = ?", *c.value)
		}
	}
	if f.Action != "" {
		query = query.Where("action = ?", f.Action)
	}
	if f.EntityType != "" {
		query = query.Where("entity_type = ?", f.EntityType)
	}
	return query
}

// ActivityLogRepository persists audit trail events. Entries are append-only.
type ActivityLogRepository interface {
	Create(ctx context.Context, entry *models.ActivityLog) error
	List(ctx context.Context, filter ActivityLogFilter) ([]models.ActivityLog, int64, error)
}

type activityLogRepository struct {
	db *gorm.DB
}

// NewActivityLogRepository constructs the activity log repository.
func NewActivityLogRepository(db *gorm.DB) ActivityLogRepository {
	return &activityLogRepository{db: db}
}

func (r *activityLogRepository) Create(ctx context.Context, entry *models.ActivityLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// List returns the newest entries first. Entries written in the same instant
// are ordered by id so pages stay stable.
func (r *activityLogRepository) List(ctx context.Context, filter ActivityLogFilter) ([]models.ActivityLog, int64, error) {
	base := filter.apply(r.db.WithContext(ctx).Model(&models.ActivityLog{}))

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := base.Order("created_at DESC").Order("id")
	if filter.PageSize > 0 {
		offset := 0
		if filter.Page > 1 {
			offset = (filter.Page - 1) * filter.PageSize
		}
		page = page.Offset(offset).Limit(filter.PageSize)
	}

	entries := make([]models.ActivityLog, 0)
	if err := page.Find(&entries).Error; err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}
