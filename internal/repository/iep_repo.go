package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/noah-isme/therapy-api/internal/access"
	"github.com/noah-isme/therapy-api/internal/models"
)

const planViewColumns = "iep_plans.*, students.full_name AS student_name, students.parent_id AS parent_id, students.primary_therapist_id AS primary_therapist_id"

// IEPRepository persists IEP plans.
type IEPRepository interface {
	List(ctx context.Context, scope access.Scope) ([]models.IEPPlanView, error)
	GetView(ctx context.Context, id uuid.UUID) (models.IEPPlanView, error)
	GetByID(ctx context.Context, id uuid.UUID) (models.IEPPlan, error)
	Create(ctx context.Context, plan *models.IEPPlan) error
	Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) (models.IEPPlan, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListActiveByStudent(ctx context.Context, studentID uuid.UUID) ([]models.IEPPlan, error)
}

type iepRepository struct {
	db *gorm.DB
}

// NewIEPRepository constructs the IEP plan repository.
func NewIEPRepository(db *gorm.DB) IEPRepository {
	return &iepRepository{db: db}
}

func (r *iepRepository) viewQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("iep_plans").
		Select(planViewColumns).
		Joins("JOIN students ON students.id = iep_plans.student_id")
}

func (r *iepRepository) List(ctx context.Context, scope access.Scope) ([]models.IEPPlanView, error) {
	var views []models.IEPPlanView
	if err := r.viewQuery(ctx).
		Scopes(visiblePlans(scope)).
		Order("iep_plans.created_at DESC").
		Scan(&views).Error; err != nil {
		return nil, err
	}
	return views, nil
}

func (r *iepRepository) GetView(ctx context.Context, id uuid.UUID) (models.IEPPlanView, error) {
	var views []models.IEPPlanView
	if err := r.viewQuery(ctx).
		Where("iep_plans.id = ?", id).
		Limit(1).
		Scan(&views).Error; err != nil {
		return models.IEPPlanView{}, err
	}
	if len(views) == 0 {
		return models.IEPPlanView{}, gorm.ErrRecordNotFound
	}
	return views[0], nil
}

func (r *iepRepository) GetByID(ctx context.Context, id uuid.UUID) (models.IEPPlan, error) {
	var plan models.IEPPlan
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&plan).Error; err != nil {
		return models.IEPPlan{}, err
	}
	return plan, nil
}

func (r *iepRepository) Create(ctx context.Context, plan *models.IEPPlan) error {
	return r.db.WithContext(ctx).Create(plan).Error
}

func (r *iepRepository) Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) (models.IEPPlan, error) {
	result := r.db.WithContext(ctx).Model(&models.IEPPlan{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return models.IEPPlan{}, result.Error
	}
	if result.RowsAffected == 0 {
		return models.IEPPlan{}, gorm.ErrRecordNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *iepRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.IEPPlan{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *iepRepository) ListActiveByStudent(ctx context.Context, studentID uuid.UUID) ([]models.IEPPlan, error) {
	var plans []models.IEPPlan
	if err := r.db.WithContext(ctx).
		Where("student_id = ? AND status = ?", studentID, models.PlanActive).
		Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}
