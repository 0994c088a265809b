package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/noah-isme/therapy-api/internal/access"
	"github.com/noah-isme/therapy-api/internal/dto"
	"github.com/noah-isme/therapy-api/internal/models"
	"github.com/noah-isme/therapy-api/internal/observability"
	"github.com/noah-isme/therapy-api/internal/repository"
)

const (
	defaultActivityPageSize = 25
	maxActivityPageSize     = 200

	// correlationMetadataKey links an audit entry to the request that wrote it.
	correlationMetadataKey = "correlation_id"
)

// ActivityEntry captures the details required to persist an audit entry.
// StudentID ties the entry to a student's audit trail whatever the entity.
type ActivityEntry struct {
	Actor      access.Principal
	Action     string
	EntityType string
	EntityID   *uuid.UUID
	StudentID  *uuid.UUID
	Metadata   map[string]interface{}
}

// ActivityRecorder defines behaviour for recording activity logs.
type ActivityRecorder interface {
	Record(ctx context.Context, entry ActivityEntry) error
}

// ActivityService exposes methods to query and persist activity logs.
type ActivityService interface {
	ActivityRecorder
	List(ctx context.Context, principal access.Principal, req dto.ActivityListRequest) (dto.ActivityListResponse, error)
}

type activityService struct {
	repo   repository.ActivityLogRepository
	logger zerolog.Logger
}

// NewActivityService constructs the activity log service.
func NewActivityService(repo repository.ActivityLogRepository, logger zerolog.Logger) ActivityService {
	return &activityService{
		repo:   repo,
		logger: logger.With().Str("component", "activity_service").Logger(),
	}
}

func (s *activityService) Record(ctx context.Context, entry ActivityEntry) error {
	if strings.TrimSpace(entry.Action) == "" {
		return fmt.Errorf("action is required")
	}
	if strings.TrimSpace(entry.EntityType) == "" {
		return fmt.Errorf("entity type is required")
	}

	metadata := sanitizeMetadata(entry.Metadata)
	if correlation := observability.CorrelationFrom(ctx); correlation != "" {
		metadata[correlationMetadataKey] = correlation
	}

	model := models.ActivityLog{
		ActorID:    entry.Actor.UserID,
		ActorRole:  entry.Actor.Role.String(),
		Action:     strings.ToLower(strings.TrimSpace(entry.Action)),
		EntityType: strings.ToLower(strings.TrimSpace(entry.EntityType)),
		EntityID:   entry.EntityID,
		StudentID:  entry.StudentID,
		Metadata:   metadata,
	}

	if err := s.repo.Create(ctx, &model); err != nil {
		observability.ActivityFailures().Inc()
		s.logger.Error().Err(err).Str("action", model.Action).Msg("failed to persist activity log")
		return err
	}

	return nil
}

func (s *activityService) List(ctx context.Context, principal access.Principal, req dto.ActivityListRequest) (dto.ActivityListResponse, error) {
	if principal.Role != access.RoleSystemAdmin {
		return dto.ActivityListResponse{}, ErrForbidden
	}

	if req.Page <= 0 {
		req.Page = 1
	}
	switch {
	case req.PageSize <= 0:
		req.PageSize = defaultActivityPageSize
	case req.PageSize > maxActivityPageSize:
		req.PageSize = maxActivityPageSize
	}

	filter := repository.ActivityLogFilter{
		Page:       req.Page,
		PageSize:   req.PageSize,
		ActorID:    req.ActorID,
		EntityID:   req.EntityID,
		StudentID:  req.StudentID,
		Action:     strings.ToLower(strings.TrimSpace(req.Action)),
		EntityType: strings.ToLower(strings.TrimSpace(req.EntityType)),
	}

	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return dto.ActivityListResponse{}, err
	}

	responses := make([]dto.ActivityResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, dto.NewActivityResponse(entry))
	}

	pagination := dto.PaginationMeta{
		Page:       req.Page,
		PageSize:   req.PageSize,
		TotalItems: total,
		TotalPages: int(math.Ceil(float64(total) / float64(req.PageSize))),
	}

	return dto.ActivityListResponse{Items: responses, Pagination: pagination}, nil
}

// record writes an activity entry when a recorder is configured. Failures are
// logged by the recorder and never fail the originating mutation.
func record(ctx context.Context, recorder ActivityRecorder, entry ActivityEntry) {
	if recorder == nil {
		return
	}
	_ = recorder.Record(ctx, entry)
}

// sanitizeMetadata masks values that may carry personal or medical data.
func sanitizeMetadata(metadata map[string]interface{}) datatypes.JSONMap {
	if metadata == nil {
		return datatypes.JSONMap{}
	}

	sanitized := datatypes.JSONMap{}
	for key, value := range metadata {
		lower := strings.ToLower(key)
		if strings.Contains(lower, "email") || strings.Contains(lower, "token") ||
			strings.Contains(lower, "password") || strings.Contains(lower, "medical") {
			sanitized[key] = "***"
			continue
		}
		sanitized[key] = value
	}
	return sanitized
}
