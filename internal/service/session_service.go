package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/therapy-api/internal/access"
	"github.com/noah-isme/therapy-api/internal/dto"
	"github.com/noah-isme/therapy-api/internal/models"
	"github.com/noah-isme/therapy-api/internal/repository"
	"github.com/noah-isme/therapy-api/internal/validation"
)

// ErrSessionNotFound is returned when no session matches the id for the
// calling therapist. Absence and foreign ownership are not distinguished.
var ErrSessionNotFound = errors.New("session not found or unauthorized")

// SessionService orchestrates therapy session use cases.
type SessionService interface {
	List(ctx context.Context, principal access.Principal) ([]dto.SessionResponse, error)
	Create(ctx context.Context, principal access.Principal, payload dto.SessionCreateRequest) (dto.SessionResponse, error)
	Update(ctx context.Context, principal access.Principal, id uuid.UUID, payload dto.SessionUpdateRequest) (dto.SessionResponse, error)
}

type sessionService struct {
	repo      repository.SessionRepository
	gate      studentGate
	validator *validation.Validator
	activity  ActivityRecorder
	stats     *StatsCache
	logger    zerolog.Logger
}

// NewSessionService constructs the session service.
func NewSessionService(repo repository.SessionRepository, students repository.StudentRepository, validator *validation.Validator, activity ActivityRecorder, stats *StatsCache, logger zerolog.Logger) SessionService {
	return &sessionService{
		repo:      repo,
		gate:      studentGate{students: students},
		validator: validator,
		activity:  activity,
		stats:     stats,
		logger:    logger.With().Str("component", "session_service").Logger(),
	}
}

func (s *sessionService) List(ctx context.Context, principal access.Principal) ([]dto.SessionResponse, error) {
	views, err := s.repo.List(ctx, access.ScopeFor(principal))
	if err != nil {
		return nil, err
	}
	return dto.NewSessionViewResponses(views), nil
}

func (s *sessionService) Create(ctx context.Context, principal access.Principal, payload dto.SessionCreateRequest) (dto.SessionResponse, error) {
	if !access.CanMutate(principal.Role) {
		return dto.SessionResponse{}, ErrForbidden
	}

	if err := s.validator.Struct(payload); err != nil {
		return dto.SessionResponse{}, err
	}

	studentID, err := parseUUID("studentId", payload.StudentID)
	if err != nil {
		return dto.SessionResponse{}, err
	}

	sessionDate, err := time.Parse(time.RFC3339, strings.TrimSpace(payload.SessionDate))
	if err != nil {
		return dto.SessionResponse{}, validation.FieldError("sessionDate", "sessionDate must be an RFC3339 timestamp")
	}

	if _, err := s.gate.readable(ctx, principal, studentID); err != nil {
		return dto.SessionResponse{}, err
	}

	session := models.TherapySession{
		StudentID:       studentID,
		TherapistID:     principal.UserID,
		SessionDate:     sessionDate.UTC(),
		DurationMinutes: payload.DurationMinutes,
		FocusArea:       focusAreaPtr(payload.FocusArea),
		Status:          models.SessionScheduled,
		Notes:           trimmed(payload.Notes),
	}

	if err := s.repo.Create(ctx, &session); err != nil {
		s.logger.Error().Err(err).Msg("failed to create session")
		return dto.SessionResponse{}, err
	}

	s.stats.Invalidate(ctx, studentID)
	record(ctx, s.activity, ActivityEntry{
		Actor:      principal,
		Action:     "session.created",
		EntityType: "session",
		EntityID:   &session.ID,
		StudentID:  &studentID,
		Metadata: map[string]interface{}{
			"student_id": studentID.String(),
		},
	})

	return dto.NewSessionResponse(session), nil
}

func (s *sessionService) Update(ctx context.Context, principal access.Principal, id uuid.UUID, payload dto.SessionUpdateRequest) (dto.SessionResponse, error) {
	if !access.CanMutate(principal.Role) {
		return dto.SessionResponse{}, ErrForbidden
	}

	if err := s.validator.Struct(payload); err != nil {
		return dto.SessionResponse{}, err
	}

	updates := make(map[string]interface{})
	changedFields := make([]string, 0)

	if payload.Status != nil {
		updates["status"] = models.SessionStatus(strings.TrimSpace(*payload.Status))
		changedFields = append(changedFields, "status")
	}
	if payload.DurationMinutes != nil {
		updates["duration_minutes"] = *payload.DurationMinutes
		changedFields = append(changedFields, "duration_minutes")
	}
	if payload.FocusArea != nil {
		updates["focus_area"] = models.FocusArea(strings.TrimSpace(*payload.FocusArea))
		changedFields = append(changedFields, "focus_area")
	}
	if payload.VideoURL != nil {
		updates["video_url"] = strings.TrimSpace(*payload.VideoURL)
		changedFields = append(changedFields, "video_url")
	}
	if payload.Notes != nil {
		updates["notes"] = strings.TrimSpace(*payload.Notes)
		changedFields = append(changedFields, "notes")
	}

	if len(updates) == 0 {
		session, err := s.repo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.SessionResponse{}, ErrSessionNotFound
			}
			return dto.SessionResponse{}, err
		}
		if session.TherapistID != principal.UserID {
			return dto.SessionResponse{}, ErrSessionNotFound
		}
		return dto.NewSessionResponse(session), nil
	}

	session, err := s.repo.UpdateOwned(ctx, id, principal.UserID, updates)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SessionResponse{}, ErrSessionNotFound
		}
		return dto.SessionResponse{}, err
	}

	s.stats.Invalidate(ctx, session.StudentID)
	record(ctx, s.activity, ActivityEntry{
		Actor:      principal,
		Action:     "session.updated",
		EntityType: "session",
		EntityID:   &id,
		StudentID:  &session.StudentID,
		Metadata: map[string]interface{}{
			"fields": changedFields,
		},
	})

	return dto.NewSessionResponse(session), nil
}

func focusAreaPtr(value *string) *models.FocusArea {
	if value == nil {
		return nil
	}
	area := models.FocusArea(strings.TrimSpace(*value))
	if area == "" {
		return nil
	}
	return &area
}
