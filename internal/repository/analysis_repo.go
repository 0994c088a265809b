package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/noah-isme/therapy-api/internal/models"
)

// AnalysisRepository persists inference results. Rows are never updated.
type AnalysisRepository interface {
	Create(ctx context.Context, result *models.AIAnalysisResult) error
	ListByStudent(ctx context.Context, studentID uuid.UUID, analysisType models.AnalysisType, limit int) ([]models.AIAnalysisResult, error)
}

type analysisRepository struct {
	db *gorm.DB
}

// NewAnalysisRepository constructs the analysis repository.
func NewAnalysisRepository(db *gorm.DB) AnalysisRepository {
	return &analysisRepository{db: db}
}

func (r *analysisRepository) Create(ctx context.Context, result *models.AIAnalysisResult) error {
	return r.db.WithContext(ctx).Create(result).Error
}

// ListByStudent returns newest results first. An empty type matches every modality.
func (r *analysisRepository) ListByStudent(ctx context.Context, studentID uuid.UUID, analysisType models.AnalysisType, limit int) ([]models.AIAnalysisResult, error) {
	query := r.db.WithContext(ctx).Where("student_id = ?", studentID)
	if analysisType != "" {
		query = query.Where("analysis_type = ?", analysisType)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var results []models.AIAnalysisResult
	if err := query.Order("analysis_date DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
