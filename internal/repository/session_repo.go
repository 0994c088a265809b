package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/noah-isme/therapy-api/internal/access"
	"github.com/noah-isme/therapy-api/internal/models"
)

// SessionRepository persists therapy sessions.
type SessionRepository interface {
	List(ctx context.Context, scope access.Scope) ([]models.SessionView, error)
	GetByID(ctx context.Context, id uuid.UUID) (models.TherapySession, error)
	Create(ctx context.Context, session *models.TherapySession) error
	UpdateOwned(ctx context.Context, id, therapistID uuid.UUID, updates map[string]interface{}) (models.TherapySession, error)
	CountCompleted(ctx context.Context, studentID uuid.UUID) (int64, error)
}

type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository constructs the session repository.
func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) List(ctx context.Context, scope access.Scope) ([]models.SessionView, error) {
	var views []models.SessionView
	if err := r.db.WithContext(ctx).
		Table("therapy_sessions").
		Select("therapy_sessions.*, students.full_name AS student_name, profiles.full_name AS therapist_name").
		Joins("JOIN students ON students.id = therapy_sessions.student_id").
		Joins("LEFT JOIN profiles ON profiles.id = therapy_sessions.therapist_id").
		Scopes(visibleSessions(scope)).
		Order("therapy_sessions.session_date DESC").
		Scan(&views).Error; err != nil {
		return nil, err
	}
	return views, nil
}

func (r *sessionRepository) GetByID(ctx context.Context, id uuid.UUID) (models.TherapySession, error) {
	var session models.TherapySession
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&session).Error; err != nil {
		return models.TherapySession{}, err
	}
	return session, nil
}

func (r *sessionRepository) Create(ctx context.Context, session *models.TherapySession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

// UpdateOwned applies updates only when the session belongs to the therapist.
// gorm.ErrRecordNotFound is returned when no row matches the pair.
func (r *sessionRepository) UpdateOwned(ctx context.Context, id, therapistID uuid.UUID, updates map[string]interface{}) (models.TherapySession, error) {
	var session models.TherapySession
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.TherapySession{}).
			Where("id = ? AND therapist_id = ?", id, therapistID).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		return tx.Where("id = ?", id).First(&session).Error
	})
	if err != nil {
		return models.TherapySession{}, err
	}
	return session, nil
}

func (r *sessionRepository) CountCompleted(ctx context.Context, studentID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.TherapySession{}).
		Where("student_id = ? AND status = ?", studentID, models.SessionCompleted).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
