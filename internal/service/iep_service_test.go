package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/therapy-api/internal/access"
	"github.com/noah-isme/therapy-api/internal/dto"
	"github.com/noah-isme/therapy-api/internal/models"
	"github.com/noah-isme/therapy-api/internal/validation"
)

func planRequest(studentID uuid.UUID) dto.IEPPlanCreateRequest {
	return dto.IEPPlanCreateRequest{
		StudentID: studentID.String(),
		StartDate: "2026-01-05",
		EndDate:   "2026-06-30",
		Goals: []dto.IEPGoalRequest{
			{Area: "linguistic", Goal: " Use two word phrases ", Strategies: []string{"modelling", " "}},
			{Area: "sensory", Goal: "Tolerate classroom noise", Status: "completed"},
		},
		Accommodations: []string{"quiet corner", "  visual schedule "},
	}
}

func TestIEPServiceCreateRequiresPrimaryTherapist(t *testing.T) {
	env := newTestEnv(t)
	recorder := &stubActivityRecorder{}
	svc := NewIEPService(env.plans, env.students, env.validator, recorder, nil, testLogger())

	parent := env.principal(t, access.RoleParent)
	primary := env.principal(t, access.RoleTherapist)
	visiting := env.principal(t, access.RoleTherapist)
	student := env.student(t, parent, &primary)
	env.session(t, student.ID, visiting, models.SessionCompleted)

	_, err := svc.Create(context.Background(), visiting, planRequest(student.ID))
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Create(context.Background(), parent, dto.IEPPlanCreateRequest{})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Create(context.Background(), primary, planRequest(uuid.New()))
	require.ErrorIs(t, err, ErrStudentNotFound)

	created, err := svc.Create(context.Background(), primary, planRequest(student.ID))
	require.NoError(t, err)
	require.Equal(t, primary.UserID, created.CreatedBy)
	require.Equal(t, string(models.PlanActive), created.Status)
	require.Equal(t, student.FullName, created.StudentName)
	require.Len(t, created.Goals, 2)
	require.Equal(t, "Use two word phrases", created.Goals[0].Goal)
	require.Equal(t, []string{"modelling"}, created.Goals[0].Strategies)
	require.Equal(t, models.GoalActive, created.Goals[0].Status)
	require.Equal(t, models.GoalCompleted, created.Goals[1].Status)
	require.Equal(t, []string{"quiet corner", "visual schedule"}, created.Accommodations)
	require.Equal(t, []string{"iep_plan.created"}, recorder.actions())

	admin := env.principal(t, access.RoleSystemAdmin)
	draft := planRequest(student.ID)
	draft.Status = strPtr("draft")
	drafted, err := svc.Create(context.Background(), admin, draft)
	require.NoError(t, err)
	require.Equal(t, string(models.PlanDraft), drafted.Status)
}

func TestIEPServiceCreateValidatesWindow(t *testing.T) {
	env := newTestEnv(t)
	svc := NewIEPService(env.plans, env.students, env.validator, nil, nil, testLogger())

	parent := env.principal(t, access.RoleParent)
	primary := env.principal(t, access.RoleTherapist)
	student := env.student(t, parent, &primary)

	inverted := planRequest(student.ID)
	inverted.StartDate, inverted.EndDate = "2026-06-30", "2026-01-05"
	_, err := svc.Create(context.Background(), primary, inverted)
	var validationErr *validation.Error
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Fields, "endDate")

	empty := planRequest(student.ID)
	empty.Goals = nil
	_, err = svc.Create(context.Background(), primary, empty)
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Fields, "goals")
}

func TestIEPServiceGetAndList(t *testing.T) {
	env := newTestEnv(t)
	svc := NewIEPService(env.plans, env.students, env.validator, nil, nil, testLogger())

	parent := env.principal(t, access.RoleParent)
	stranger := env.principal(t, access.RoleParent)
	primary := env.principal(t, access.RoleTherapist)
	other := env.principal(t, access.RoleTherapist)
	student := env.student(t, parent, &primary)

	created, err := svc.Create(context.Background(), primary, planRequest(student.ID))
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), parent, created.ID)
	require.NoError(t, err)
	require.Equal(t, student.FullName, got.StudentName)
	require.Len(t, got.Goals, 2)

	_, err = svc.Get(context.Background(), stranger, created.ID)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Get(context.Background(), other, created.ID)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Get(context.Background(), parent, uuid.New())
	require.ErrorIs(t, err, ErrPlanNotFound)

	plans, err := svc.List(context.Background(), parent)
	require.NoError(t, err)
	require.Len(t, plans, 1)

	plans, err = svc.List(context.Background(), stranger)
	require.NoError(t, err)
	require.Empty(t, plans)

	plans, err = svc.List(context.Background(), other)
	require.NoError(t, err)
	require.Empty(t, plans)

	// Session history makes the student visible, not the student's plans.
	visiting := env.principal(t, access.RoleTherapist)
	env.session(t, student.ID, visiting, models.SessionCompleted)

	plans, err = svc.List(context.Background(), visiting)
	require.NoError(t, err)
	require.Empty(t, plans)
	_, err = svc.Get(context.Background(), visiting, created.ID)
	require.ErrorIs(t, err, ErrForbidden)

	schoolAdmin := env.principal(t, access.RoleSchoolAdmin)
	_, err = svc.Get(context.Background(), schoolAdmin, created.ID)
	require.ErrorIs(t, err, ErrForbidden)
	plans, err = svc.List(context.Background(), schoolAdmin)
	require.NoError(t, err)
	require.Empty(t, plans)

	env.enroll(t, student.ID, schoolAdmin)
	_, err = svc.Get(context.Background(), schoolAdmin, created.ID)
	require.NoError(t, err)
	plans, err = svc.List(context.Background(), schoolAdmin)
	require.NoError(t, err)
	require.Len(t, plans, 1)

	_, err = svc.Get(context.Background(), env.principal(t, access.RoleSystemAdmin), created.ID)
	require.NoError(t, err)
}

func TestIEPServiceUpdateReplacesLists(t *testing.T) {
	env := newTestEnv(t)
	recorder := &stubActivityRecorder{}
	svc := NewIEPService(env.plans, env.students, env.validator, recorder, nil, testLogger())

	parent := env.principal(t, access.RoleParent)
	primary := env.principal(t, access.RoleTherapist)
	student := env.student(t, parent, &primary)
	created, err := svc.Create(context.Background(), primary, planRequest(student.ID))
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), primary, created.ID, dto.IEPPlanUpdateRequest{
		Goals:  []dto.IEPGoalRequest{{Area: "behavioral", Goal: "Wait for a turn"}},
		Status: strPtr("expired"),
	})
	require.NoError(t, err)
	require.Len(t, updated.Goals, 1)
	require.Equal(t, "Wait for a turn", updated.Goals[0].Goal)
	require.Equal(t, []string{"quiet corner", "visual schedule"}, updated.Accommodations)
	require.Equal(t, string(models.PlanExpired), updated.Status)
	require.Equal(t, "2026-01-05", updated.StartDate)

	_, err = svc.Update(context.Background(), primary, created.ID, dto.IEPPlanUpdateRequest{EndDate: strPtr("2025-12-31")})
	var validationErr *validation.Error
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Fields, "endDate")

	require.Equal(t, []string{"iep_plan.created", "iep_plan.updated"}, recorder.actions())
}

func TestIEPServiceModifyRequiresCreator(t *testing.T) {
	env := newTestEnv(t)
	svc := NewIEPService(env.plans, env.students, env.validator, nil, nil, testLogger())

	parent := env.principal(t, access.RoleParent)
	primary := env.principal(t, access.RoleTherapist)
	other := env.principal(t, access.RoleTherapist)
	schoolAdmin := env.principal(t, access.RoleSchoolAdmin)
	admin := env.principal(t, access.RoleSystemAdmin)
	student := env.student(t, parent, &primary)
	env.enroll(t, student.ID, schoolAdmin)

	created, err := svc.Create(context.Background(), primary, planRequest(student.ID))
	require.NoError(t, err)

	require.ErrorIs(t, svc.Delete(context.Background(), other, created.ID), ErrForbidden)
	require.ErrorIs(t, svc.Delete(context.Background(), schoolAdmin, created.ID), ErrForbidden)
	require.ErrorIs(t, svc.Delete(context.Background(), parent, created.ID), ErrForbidden)
	require.ErrorIs(t, svc.Delete(context.Background(), other, uuid.New()), ErrPlanNotFound)

	_, err = svc.Update(context.Background(), other, created.ID, dto.IEPPlanUpdateRequest{Status: strPtr("expired")})
	require.ErrorIs(t, err, ErrForbidden)

	stored, err := env.plans.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, models.PlanActive, stored.Status)

	require.NoError(t, svc.Delete(context.Background(), admin, created.ID))
	_, err = svc.Get(context.Background(), admin, created.ID)
	require.ErrorIs(t, err, ErrPlanNotFound)
}
