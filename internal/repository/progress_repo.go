package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/noah-isme/therapy-api/internal/models"
)

// ProgressRepository persists tracked metrics.
type ProgressRepository interface {
	Create(ctx context.Context, record *models.ProgressRecord) error
	ListByStudent(ctx context.Context, studentID uuid.UUID, limit int) ([]models.ProgressRecord, error)
	AverageSince(ctx context.Context, studentID uuid.UUID, since time.Time) (float64, error)
}

type progressRepository struct {
	db *gorm.DB
}

// NewProgressRepository constructs the progress repository.
func NewProgressRepository(db *gorm.DB) ProgressRepository {
	return &progressRepository{db: db}
}

func (r *progressRepository) Create(ctx context.Context, record *models.ProgressRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *progressRepository) ListByStudent(ctx context.Context, studentID uuid.UUID, limit int) ([]models.ProgressRecord, error) {
	query := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("tracking_date DESC").
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var records []models.ProgressRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// AverageSince returns the mean metric value since the given day, or zero.
func (r *progressRepository) AverageSince(ctx context.Context, studentID uuid.UUID, since time.Time) (float64, error) {
	var result struct {
		Average float64
	}
	if err := r.db.WithContext(ctx).
		Model(&models.ProgressRecord{}).
		Select("COALESCE(AVG(metric_value), 0) AS average").
		Where("student_id = ? AND tracking_date >= ?", studentID, since).
		Scan(&result).Error; err != nil {
		return 0, err
	}
	return result.Average, nil
}
