package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/therapy-api/internal/access"
	"github.com/noah-isme/therapy-api/internal/dto"
	"github.com/noah-isme/therapy-api/internal/models"
	"github.com/noah-isme/therapy-api/internal/repository"
	"github.com/noah-isme/therapy-api/internal/validation"
)

// progressHistoryLimit caps how many records are returned or forwarded for prediction.
const progressHistoryLimit = 100

// ProgressService records and lists tracked metrics.
type ProgressService interface {
	List(ctx context.Context, principal access.Principal, studentID uuid.UUID) ([]dto.ProgressResponse, error)
	Record(ctx context.Context, principal access.Principal, studentID uuid.UUID, payload dto.ProgressCreateRequest) (dto.ProgressResponse, error)
}

type progressService struct {
	repo      repository.ProgressRepository
	gate      studentGate
	validator *validation.Validator
	activity  ActivityRecorder
	stats     *StatsCache
	logger    zerolog.Logger
	now       func() time.Time
}

// NewProgressService constructs the progress service.
func NewProgressService(repo repository.ProgressRepository, students repository.StudentRepository, validator *validation.Validator, activity ActivityRecorder, stats *StatsCache, logger zerolog.Logger) ProgressService {
	return &progressService{
		repo:      repo,
		gate:      studentGate{students: students},
		validator: validator,
		activity:  activity,
		stats:     stats,
		logger:    logger.With().Str("component", "progress_service").Logger(),
		now:       time.Now,
	}
}

func (s *progressService) List(ctx context.Context, principal access.Principal, studentID uuid.UUID) ([]dto.ProgressResponse, error) {
	if _, err := s.gate.readable(ctx, principal, studentID); err != nil {
		return nil, err
	}

	records, err := s.repo.ListByStudent(ctx, studentID, progressHistoryLimit)
	if err != nil {
		return nil, err
	}
	return dto.NewProgressResponses(records), nil
}

func (s *progressService) Record(ctx context.Context, principal access.Principal, studentID uuid.UUID, payload dto.ProgressCreateRequest) (dto.ProgressResponse, error) {
	if !access.CanMutate(principal.Role) {
		return dto.ProgressResponse{}, ErrForbidden
	}

	payload.MetricName = strings.TrimSpace(payload.MetricName)
	if err := s.validator.Struct(payload); err != nil {
		return dto.ProgressResponse{}, err
	}

	now := s.now().UTC()
	trackingDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if payload.TrackingDate != nil {
		parsed, err := parseDate("trackingDate", *payload.TrackingDate)
		if err != nil {
			return dto.ProgressResponse{}, err
		}
		trackingDate = parsed
	}

	if _, err := s.gate.readable(ctx, principal, studentID); err != nil {
		return dto.ProgressResponse{}, err
	}

	recordedBy := principal.UserID
	progress := models.ProgressRecord{
		StudentID:    studentID,
		TrackingDate: trackingDate,
		FocusArea:    models.FocusArea(strings.TrimSpace(payload.FocusArea)),
		MetricName:   payload.MetricName,
		MetricValue:  payload.MetricValue,
		Notes:        trimmed(payload.Notes),
		RecordedBy:   &recordedBy,
	}

	if err := s.repo.Create(ctx, &progress); err != nil {
		s.logger.Error().Err(err).Msg("failed to record progress")
		return dto.ProgressResponse{}, err
	}

	s.stats.Invalidate(ctx, studentID)
	record(ctx, s.activity, ActivityEntry{
		Actor:      principal,
		Action:     "progress.recorded",
		EntityType: "progress",
		EntityID:   &progress.ID,
		StudentID:  &studentID,
		Metadata: map[string]interface{}{
			"student_id": studentID.String(),
			"metric":     progress.MetricName,
		},
	})

	return dto.NewProgressResponse(progress), nil
}
