package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/noah-isme/therapy-api/internal/access"
	"github.com/noah-isme/therapy-api/internal/dto"
	"github.com/noah-isme/therapy-api/internal/models"
	"github.com/noah-isme/therapy-api/internal/repository"
	"github.com/noah-isme/therapy-api/internal/validation"
)

// ErrStudentNotFound indicates the student does not exist.
var ErrStudentNotFound = errors.New("student not found")

const statsWindow = 30 * 24 * time.Hour

// StudentService orchestrates student use cases.
type StudentService interface {
	List(ctx context.Context, principal access.Principal) ([]dto.StudentResponse, error)
	ListParents(ctx context.Context, principal access.Principal) ([]dto.ParentResponse, error)
	Get(ctx context.Context, principal access.Principal, id uuid.UUID) (dto.StudentResponse, error)
	Stats(ctx context.Context, principal access.Principal, id uuid.UUID) (dto.StudentStatsResponse, error)
	Create(ctx context.Context, principal access.Principal, payload dto.StudentCreateRequest) (dto.StudentResponse, error)
	Update(ctx context.Context, principal access.Principal, id uuid.UUID, payload dto.StudentUpdateRequest) (dto.StudentResponse, error)
}

// StudentStatsSources groups the repositories the stats aggregation reads from.
type StudentStatsSources struct {
	Progress repository.ProgressRepository
	Plans    repository.IEPRepository
	Sessions repository.SessionRepository
}

// StudentServiceConfig configures optional behaviour of the student service.
type StudentServiceConfig struct {
	Stats *StatsCache
}

type studentService struct {
	gate      studentGate
	users     repository.UserRepository
	stats     StudentStatsSources
	validator *validation.Validator
	activity  ActivityRecorder
	cache     *StatsCache
	tracer    trace.Tracer
	logger    zerolog.Logger
	now       func() time.Time
}

// NewStudentService constructs the student service.
func NewStudentService(students repository.StudentRepository, users repository.UserRepository, stats StudentStatsSources, validator *validation.Validator, activity ActivityRecorder, cfg StudentServiceConfig, logger zerolog.Logger) StudentService {
	return &studentService{
		gate:      studentGate{students: students},
		users:     users,
		stats:     stats,
		validator: validator,
		activity:  activity,
		cache:     cfg.Stats,
		tracer:    otel.Tracer("github.com/noah-isme/therapy-api/internal/service/student"),
		logger:    logger.With().Str("component", "student_service").Logger(),
		now:       time.Now,
	}
}

func (s *studentService) List(ctx context.Context, principal access.Principal) ([]dto.StudentResponse, error) {
	students, err := s.gate.students.List(ctx, access.ScopeFor(principal))
	if err != nil {
		return nil, err
	}
	return dto.NewStudentResponses(students), nil
}

func (s *studentService) ListParents(ctx context.Context, principal access.Principal) ([]dto.ParentResponse, error) {
	if !access.CanMutate(principal.Role) {
		return nil, ErrForbidden
	}

	profiles, err := s.users.ListProfilesByRole(ctx, access.RoleParent)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.ParentResponse, 0, len(profiles))
	for _, profile := range profiles {
		responses = append(responses, dto.NewParentResponse(profile))
	}
	return responses, nil
}

func (s *studentService) Get(ctx context.Context, principal access.Principal, id uuid.UUID) (dto.StudentResponse, error) {
	student, err := s.gate.readable(ctx, principal, id)
	if err != nil {
		return dto.StudentResponse{}, err
	}
	return dto.NewStudentResponse(student), nil
}

func (s *studentService) Stats(ctx context.Context, principal access.Principal, id uuid.UUID) (dto.StudentStatsResponse, error) {
	if _, err := s.gate.readable(ctx, principal, id); err != nil {
		return dto.StudentStatsResponse{}, err
	}

	if cached, ok := s.cache.get(ctx, id); ok {
		return cached, nil
	}

	ctx, span := s.tracer.Start(ctx, "student.stats", trace.WithAttributes(attribute.String("student_id", id.String())))
	defer span.End()

	now := s.now().UTC()
	since := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).Add(-statsWindow)

	var stats dto.StudentStatsResponse
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		average, err := s.stats.Progress.AverageSince(groupCtx, id, since)
		if err != nil {
			return fmt.Errorf("average progress: %w", err)
		}
		stats.OverallProgress = average
		return nil
	})

	group.Go(func() error {
		plans, err := s.stats.Plans.ListActiveByStudent(groupCtx, id)
		if err != nil {
			return fmt.Errorf("active plans: %w", err)
		}
		for _, plan := range plans {
			for _, goal := range plan.Goals {
				if goal.Completed() {
					stats.CompletedGoals++
				} else {
					stats.ActiveGoals++
				}
			}
		}
		return nil
	})

	group.Go(func() error {
		count, err := s.stats.Sessions.CountCompleted(groupCtx, id)
		if err != nil {
			return fmt.Errorf("completed sessions: %w", err)
		}
		stats.TotalSessions = count
		return nil
	})

	if err := group.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return dto.StudentStatsResponse{}, err
	}

	s.cache.put(ctx, id, stats)

	return stats, nil
}

func (s *studentService) Create(ctx context.Context, principal access.Principal, payload dto.StudentCreateRequest) (dto.StudentResponse, error) {
	if !access.CanMutate(principal.Role) {
		return dto.StudentResponse{}, ErrForbidden
	}

	payload.FullName = strings.TrimSpace(payload.FullName)
	if err := s.validator.Struct(payload); err != nil {
		return dto.StudentResponse{}, err
	}

	dateOfBirth, err := parseDate("dateOfBirth", payload.DateOfBirth)
	if err != nil {
		return dto.StudentResponse{}, err
	}

	parentID, err := parseUUID("parentId", payload.ParentID)
	if err != nil {
		return dto.StudentResponse{}, err
	}
	if err := s.requireRole(ctx, parentID, access.RoleParent, "parentId"); err != nil {
		return dto.StudentResponse{}, err
	}

	primaryTherapistID, err := s.primaryTherapist(ctx, principal, payload.PrimaryTherapistID)
	if err != nil {
		return dto.StudentResponse{}, err
	}

	student := models.Student{
		FullName:           payload.FullName,
		DateOfBirth:        dateOfBirth,
		Gender:             trimmed(payload.Gender),
		ParentID:           parentID,
		PrimaryTherapistID: primaryTherapistID,
		AvatarURL:          trimmed(payload.AvatarURL),
		EmergencyContact:   trimmed(payload.EmergencyContact),
		MedicalNotes:       trimmed(payload.MedicalNotes),
	}

	if err := s.gate.students.Create(ctx, &student); err != nil {
		s.logger.Error().Err(err).Msg("failed to create student")
		return dto.StudentResponse{}, err
	}

	record(ctx, s.activity, ActivityEntry{
		Actor:      principal,
		Action:     "student.created",
		EntityType: "student",
		EntityID:   &student.ID,
		StudentID:  &student.ID,
		Metadata: map[string]interface{}{
			"parent_id": parentID.String(),
		},
	})

	return dto.NewStudentResponse(student), nil
}

func (s *studentService) Update(ctx context.Context, principal access.Principal, id uuid.UUID, payload dto.StudentUpdateRequest) (dto.StudentResponse, error) {
	if !access.CanMutate(principal.Role) {
		return dto.StudentResponse{}, ErrForbidden
	}

	if err := s.validator.Struct(payload); err != nil {
		return dto.StudentResponse{}, err
	}

	student, err := s.gate.fetch(ctx, id)
	if err != nil {
		return dto.StudentResponse{}, err
	}

	if err := s.gate.authorize(ctx, principal, access.StudentWrite(principal, student.Ref()), id); err != nil {
		return dto.StudentResponse{}, err
	}

	updates := make(map[string]interface{})
	changedFields := make([]string, 0)

	if payload.FullName != nil {
		name := strings.TrimSpace(*payload.FullName)
		if name == "" {
			return dto.StudentResponse{}, validation.FieldError("fullName", "fullName cannot be blank")
		}
		updates["full_name"] = name
		changedFields = append(changedFields, "full_name")
	}
	if payload.DateOfBirth != nil {
		dateOfBirth, err := parseDate("dateOfBirth", *payload.DateOfBirth)
		if err != nil {
			return dto.StudentResponse{}, err
		}
		updates["date_of_birth"] = dateOfBirth
		changedFields = append(changedFields, "date_of_birth")
	}
	if payload.Gender != nil {
		updates["gender"] = strings.TrimSpace(*payload.Gender)
		changedFields = append(changedFields, "gender")
	}
	if payload.AvatarURL != nil {
		updates["avatar_url"] = strings.TrimSpace(*payload.AvatarURL)
		changedFields = append(changedFields, "avatar_url")
	}
	if payload.EmergencyContact != nil {
		updates["emergency_contact"] = strings.TrimSpace(*payload.EmergencyContact)
		changedFields = append(changedFields, "emergency_contact")
	}
	if payload.MedicalNotes != nil {
		updates["medical_notes"] = strings.TrimSpace(*payload.MedicalNotes)
		changedFields = append(changedFields, "medical_notes")
	}

	if len(updates) == 0 {
		return dto.NewStudentResponse(student), nil
	}

	updated, err := s.gate.students.Update(ctx, id, updates)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.StudentResponse{}, ErrStudentNotFound
		}
		return dto.StudentResponse{}, err
	}

	record(ctx, s.activity, ActivityEntry{
		Actor:      principal,
		Action:     "student.updated",
		EntityType: "student",
		EntityID:   &id,
		StudentID:  &id,
		Metadata: map[string]interface{}{
			"fields": changedFields,
		},
	})

	return dto.NewStudentResponse(updated), nil
}

// primaryTherapist decides the primary therapist of a new student. A creating
// therapist is always stamped; admins may name a therapist explicitly.
func (s *studentService) primaryTherapist(ctx context.Context, principal access.Principal, requested *string) (*uuid.UUID, error) {
	if principal.Role == access.RoleTherapist {
		id := principal.UserID
		return &id, nil
	}

	if requested == nil || strings.TrimSpace(*requested) == "" {
		return nil, nil
	}

	id, err := parseUUID("primaryTherapistId", *requested)
	if err != nil {
		return nil, err
	}
	if err := s.requireRole(ctx, id, access.RoleTherapist, "primaryTherapistId"); err != nil {
		return nil, err
	}
	return &id, nil
}

func (s *studentService) requireRole(ctx context.Context, id uuid.UUID, role access.Role, field string) error {
	profile, err := s.users.FindProfile(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return validation.FieldError(field, fmt.Sprintf("%s must reference an existing %s", field, role))
		}
		return err
	}
	if profile.Role != role {
		return validation.FieldError(field, fmt.Sprintf("%s must reference a %s", field, role))
	}
	return nil
}

// studentGate applies the student access policy shared by every service that
// hangs data off a student.
type studentGate struct {
	students repository.StudentRepository
}

func (g studentGate) fetch(ctx context.Context, id uuid.UUID) (models.Student, error) {
	student, err := g.students.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Student{}, ErrStudentNotFound
		}
		return models.Student{}, err
	}
	return student, nil
}

// readable fetches the student (404) and then checks read access (403).
func (g studentGate) readable(ctx context.Context, principal access.Principal, id uuid.UUID) (models.Student, error) {
	student, err := g.fetch(ctx, id)
	if err != nil {
		return models.Student{}, err
	}
	if err := g.authorize(ctx, principal, access.StudentRead(principal, student.Ref()), id); err != nil {
		return models.Student{}, err
	}
	return student, nil
}

func (g studentGate) authorize(ctx context.Context, principal access.Principal, grant access.Grant, id uuid.UUID) error {
	switch grant {
	case access.Allow:
		return nil
	case access.AllowIfVisible:
		visible, err := g.students.Visible(ctx, access.ScopeFor(principal), id)
		if err != nil {
			return err
		}
		if !visible {
			return ErrForbidden
		}
		return nil
	case access.Deny:
		return ErrForbidden
	default:
		return ErrForbidden
	}
}

func parseDate(field, value string) (time.Time, error) {
	parsed, err := time.Parse(dto.DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, validation.FieldError(field, field+" must be a date in YYYY-MM-DD format")
	}
	return parsed.UTC(), nil
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	result := strings.TrimSpace(*value)
	if result == "" {
		return nil
	}
	return &result
}
