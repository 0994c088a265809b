package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/noah-isme/therapy-api/internal/access"
	"github.com/noah-isme/therapy-api/internal/models"
)

// StudentRepository exposes persistence helpers for students.
type StudentRepository interface {
	List(ctx context.Context, scope access.Scope) ([]models.Student, error)
	GetByID(ctx context.Context, id uuid.UUID) (models.Student, error)
	Visible(ctx context.Context, scope access.Scope, id uuid.UUID) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) (models.Student, error)
}

type studentRepository struct {
	db *gorm.DB
}

// NewStudentRepository constructs the student repository.
func NewStudentRepository(db *gorm.DB) StudentRepository {
	return &studentRepository{db: db}
}

func (r *studentRepository) List(ctx context.Context, scope access.Scope) ([]models.Student, error) {
	var students []models.Student
	if err := r.db.WithContext(ctx).
		Model(&models.Student{}).
		Scopes(visibleStudents(scope, "students.id")).
		Order("students.created_at DESC").
		Find(&students).Error; err != nil {
		return nil, err
	}
	return students, nil
}

func (r *studentRepository) GetByID(ctx context.Context, id uuid.UUID) (models.Student, error) {
	var student models.Student
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&student).Error; err != nil {
		return models.Student{}, err
	}
	return student, nil
}

// Visible evaluates the listing scope for a single student id.
func (r *studentRepository) Visible(ctx context.Context, scope access.Scope, id uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Student{}).
		Where("students.id = ?", id).
		Scopes(visibleStudents(scope, "students.id")).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *studentRepository) Create(ctx context.Context, student *models.Student) error {
	return r.db.WithContext(ctx).Create(student).Error
}

func (r *studentRepository) Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) (models.Student, error) {
	result := r.db.WithContext(ctx).Model(&models.Student{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return models.Student{}, result.Error
	}
	if result.RowsAffected == 0 {
		return models.Student{}, gorm.ErrRecordNotFound
	}

	return r.GetByID(ctx, id)
}
