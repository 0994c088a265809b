package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/therapy-api/internal/access"
	"github.com/noah-isme/therapy-api/internal/dto"
	"github.com/noah-isme/therapy-api/internal/models"
	"github.com/noah-isme/therapy-api/internal/repository"
	"github.com/noah-isme/therapy-api/internal/validation"
)

// ErrPlanNotFound indicates the IEP plan does not exist.
var ErrPlanNotFound = errors.New("iep plan not found")

// IEPService orchestrates IEP plan use cases.
type IEPService interface {
	List(ctx context.Context, principal access.Principal) ([]dto.IEPPlanResponse, error)
	Get(ctx context.Context, principal access.Principal, id uuid.UUID) (dto.IEPPlanResponse, error)
	Create(ctx context.Context, principal access.Principal, payload dto.IEPPlanCreateRequest) (dto.IEPPlanResponse, error)
	Update(ctx context.Context, principal access.Principal, id uuid.UUID, payload dto.IEPPlanUpdateRequest) (dto.IEPPlanResponse, error)
	Delete(ctx context.Context, principal access.Principal, id uuid.UUID) error
}

type iepService struct {
	repo      repository.IEPRepository
	gate      studentGate
	validator *validation.Validator
	activity  ActivityRecorder
	stats     *StatsCache
	logger    zerolog.Logger
}

// NewIEPService constructs the IEP plan service.
func NewIEPService(repo repository.IEPRepository, students repository.StudentRepository, validator *validation.Validator, activity ActivityRecorder, stats *StatsCache, logger zerolog.Logger) IEPService {
	return &iepService{
		repo:      repo,
		gate:      studentGate{students: students},
		validator: validator,
		activity:  activity,
		stats:     stats,
		logger:    logger.With().Str("component", "iep_service").Logger(),
	}
}

func (s *iepService) List(ctx context.Context, principal access.Principal) ([]dto.IEPPlanResponse, error) {
	views, err := s.repo.List(ctx, access.ScopeFor(principal))
	if err != nil {
		return nil, err
	}
	return dto.NewIEPPlanViewResponses(views), nil
}

func (s *iepService) Get(ctx context.Context, principal access.Principal, id uuid.UUID) (dto.IEPPlanResponse, error) {
	view, err := s.repo.GetView(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.IEPPlanResponse{}, ErrPlanNotFound
		}
		return dto.IEPPlanResponse{}, err
	}

	ref := access.StudentRef{ParentID: view.ParentID, PrimaryTherapistID: view.PrimaryTherapistID}
	if err := s.gate.authorize(ctx, principal, access.PlanRead(principal, view.CreatedBy, ref), view.StudentID); err != nil {
		return dto.IEPPlanResponse{}, err
	}

	return dto.NewIEPPlanViewResponse(view), nil
}

func (s *iepService) Create(ctx context.Context, principal access.Principal, payload dto.IEPPlanCreateRequest) (dto.IEPPlanResponse, error) {
	if !access.CanMutate(principal.Role) {
		return dto.IEPPlanResponse{}, ErrForbidden
	}

	if err := s.validator.Struct(payload); err != nil {
		return dto.IEPPlanResponse{}, err
	}

	studentID, err := parseUUID("studentId", payload.StudentID)
	if err != nil {
		return dto.IEPPlanResponse{}, err
	}

	startDate, endDate, err := planWindow(payload.StartDate, payload.EndDate)
	if err != nil {
		return dto.IEPPlanResponse{}, err
	}

	student, err := s.gate.fetch(ctx, studentID)
	if err != nil {
		return dto.IEPPlanResponse{}, err
	}

	if !access.PlanCreate(principal, student.Ref()) {
		return dto.IEPPlanResponse{}, ErrForbidden
	}

	status := models.PlanActive
	if payload.Status != nil && models.PlanStatus(*payload.Status) == models.PlanDraft {
		status = models.PlanDraft
	}

	plan := models.IEPPlan{
		StudentID:      studentID,
		CreatedBy:      principal.UserID,
		StartDate:      startDate,
		EndDate:        endDate,
		Goals:          datatypes.JSONSlice[models.IEPGoal](goalsFromRequest(payload.Goals)),
		Accommodations: datatypes.JSONSlice[string](cleanList(payload.Accommodations)),
		Status:         status,
	}

	if err := s.repo.Create(ctx, &plan); err != nil {
		s.logger.Error().Err(err).Msg("failed to create iep plan")
		return dto.IEPPlanResponse{}, err
	}

	s.stats.Invalidate(ctx, studentID)
	record(ctx, s.activity, ActivityEntry{
		Actor:      principal,
		Action:     "iep_plan.created",
		EntityType: "iep_plan",
		EntityID:   &plan.ID,
		StudentID:  &studentID,
		Metadata: map[string]interface{}{
			"student_id": studentID.String(),
			"goals":      len(plan.Goals),
		},
	})

	response := dto.NewIEPPlanResponse(plan)
	response.StudentName = student.FullName
	return response, nil
}

func (s *iepService) Update(ctx context.Context, principal access.Principal, id uuid.UUID, payload dto.IEPPlanUpdateRequest) (dto.IEPPlanResponse, error) {
	if !access.CanMutate(principal.Role) {
		return dto.IEPPlanResponse{}, ErrForbidden
	}

	if err := s.validator.Struct(payload); err != nil {
		return dto.IEPPlanResponse{}, err
	}

	plan, err := s.owned(ctx, principal, id)
	if err != nil {
		return dto.IEPPlanResponse{}, err
	}

	updates := make(map[string]interface{})
	changedFields := make([]string, 0)

	startDate, endDate := plan.StartDate, plan.EndDate
	if payload.StartDate != nil {
		if startDate, err = parseDate("startDate", *payload.StartDate); err != nil {
			return dto.IEPPlanResponse{}, err
		}
		updates["start_date"] = startDate
		changedFields = append(changedFields, "start_date")
	}
	if payload.EndDate != nil {
		if endDate, err = parseDate("endDate", *payload.EndDate); err != nil {
			return dto.IEPPlanResponse{}, err
		}
		updates["end_date"] = endDate
		changedFields = append(changedFields, "end_date")
	}
	if endDate.Before(startDate) {
		return dto.IEPPlanResponse{}, validation.FieldError("endDate", "endDate must not be before startDate")
	}

	if payload.Goals != nil {
		updates["goals"] = datatypes.JSONSlice[models.IEPGoal](goalsFromRequest(payload.Goals))
		changedFields = append(changedFields, "goals")
	}
	if payload.Accommodations != nil {
		updates["accommodations"] = datatypes.JSONSlice[string](cleanList(payload.Accommodations))
		changedFields = append(changedFields, "accommodations")
	}
	if payload.Status != nil {
		updates["status"] = models.PlanStatus(strings.TrimSpace(*payload.Status))
		changedFields = append(changedFields, "status")
	}

	if len(updates) == 0 {
		return dto.NewIEPPlanResponse(plan), nil
	}

	updated, err := s.repo.Update(ctx, id, updates)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.IEPPlanResponse{}, ErrPlanNotFound
		}
		return dto.IEPPlanResponse{}, err
	}

	s.stats.Invalidate(ctx, plan.StudentID)
	record(ctx, s.activity, ActivityEntry{
		Actor:      principal,
		Action:     "iep_plan.updated",
		EntityType: "iep_plan",
		EntityID:   &id,
		StudentID:  &plan.StudentID,
		Metadata: map[string]interface{}{
			"fields": changedFields,
		},
	})

	return dto.NewIEPPlanResponse(updated), nil
}

func (s *iepService) Delete(ctx context.Context, principal access.Principal, id uuid.UUID) error {
	if !access.CanMutate(principal.Role) {
		return ErrForbidden
	}

	plan, err := s.owned(ctx, principal, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPlanNotFound
		}
		return err
	}

	s.stats.Invalidate(ctx, plan.StudentID)
	record(ctx, s.activity, ActivityEntry{
		Actor:      principal,
		Action:     "iep_plan.deleted",
		EntityType: "iep_plan",
		EntityID:   &id,
		StudentID:  &plan.StudentID,
		Metadata: map[string]interface{}{
			"student_id": plan.StudentID.String(),
		},
	})

	return nil
}

// owned fetches the plan (404) and then checks it may be modified (403).
func (s *iepService) owned(ctx context.Context, principal access.Principal, id uuid.UUID) (models.IEPPlan, error) {
	plan, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.IEPPlan{}, ErrPlanNotFound
		}
		return models.IEPPlan{}, err
	}

	if !access.PlanModify(principal, plan.CreatedBy) {
		return models.IEPPlan{}, ErrForbidden
	}
	return plan, nil
}

func planWindow(start, end string) (time.Time, time.Time, error) {
	startDate, err := parseDate("startDate", start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	endDate, err := parseDate("endDate", end)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if endDate.Before(startDate) {
		return time.Time{}, time.Time{}, validation.FieldError("endDate", "endDate must not be before startDate")
	}
	return startDate, endDate, nil
}

func goalsFromRequest(goals []dto.IEPGoalRequest) []models.IEPGoal {
	result := make([]models.IEPGoal, 0, len(goals))
	for _, goal := range goals {
		status := models.GoalStatus(strings.TrimSpace(goal.Status))
		if status == "" {
			status = models.GoalActive
		}
		result = append(result, models.IEPGoal{
			Area:       models.FocusArea(strings.TrimSpace(goal.Area)),
			Goal:       strings.TrimSpace(goal.Goal),
			Baseline:   strings.TrimSpace(goal.Baseline),
			TargetDate: strings.TrimSpace(goal.TargetDate),
			Strategies: cleanList(goal.Strategies),
			Status:     status,
		})
	}
	return result
}

func cleanList(values []string) []string {
	result := make([]string, 0, len(values))
	for _, value := range values {
		if item := strings.TrimSpace(value); item != "" {
			result = append(result, item)
		}
	}
	return result
}
