package access_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/therapy-api/internal/access"
)

func TestParseRole(t *testing.T) {
	role, err := access.ParseRole(" School_Admin ")
	require.NoError(t, err)
	require.Equal(t, access.RoleSchoolAdmin, role)

	_, err = access.ParseRole("teacher")
	require.Error(t, err)
}

func TestScopeForCoversEveryRole(t *testing.T) {
	id := uuid.New()
	expected := map[access.Role]access.ScopeKind{
		access.RoleParent:      access.ScopeOwnChildren,
		access.RoleTherapist:   access.ScopeTherapistCaseload,
		access.RoleSchoolAdmin: access.ScopeSchoolStaff,
		access.RoleSystemAdmin: access.ScopeAll,
	}
	for _, role := range access.Roles() {
		scope := access.ScopeFor(access.Principal{UserID: id, Role: role})
		require.Equal(t, expected[role], scope.Kind, role.String())
		require.Equal(t, id, scope.UserID)
	}

	require.Equal(t, access.ScopeNone, access.ScopeFor(access.Principal{UserID: id, Role: "guest"}).Kind)
}

func TestCanMutate(t *testing.T) {
	require.False(t, access.CanMutate(access.RoleParent))
	require.True(t, access.CanMutate(access.RoleTherapist))
	require.True(t, access.CanMutate(access.RoleSchoolAdmin))
	require.True(t, access.CanMutate(access.RoleSystemAdmin))
	require.False(t, access.CanMutate("guest"))
}

func TestStudentRead(t *testing.T) {
	parent := uuid.New()
	therapist := uuid.New()
	ref := access.StudentRef{ParentID: parent, PrimaryTherapistID: &therapist}

	require.Equal(t, access.Allow, access.StudentRead(access.Principal{UserID: parent, Role: access.RoleParent}, ref))
	require.Equal(t, access.Deny, access.StudentRead(access.Principal{UserID: uuid.New(), Role: access.RoleParent}, ref))
	require.Equal(t, access.Allow, access.StudentRead(access.Principal{UserID: therapist, Role: access.RoleTherapist}, ref))
	require.Equal(t, access.AllowIfVisible, access.StudentRead(access.Principal{UserID: uuid.New(), Role: access.RoleTherapist}, ref))
	require.Equal(t, access.AllowIfVisible, access.StudentRead(access.Principal{UserID: uuid.New(), Role: access.RoleSchoolAdmin}, ref))
	require.Equal(t, access.Allow, access.StudentRead(access.Principal{UserID: uuid.New(), Role: access.RoleSystemAdmin}, ref))
}

func TestStudentWriteRequiresPrimaryTherapist(t *testing.T) {
	therapist := uuid.New()
	ref := access.StudentRef{ParentID: uuid.New(), PrimaryTherapistID: &therapist}

	require.Equal(t, access.Allow, access.StudentWrite(access.Principal{UserID: therapist, Role: access.RoleTherapist}, ref))
	require.Equal(t, access.Deny, access.StudentWrite(access.Principal{UserID: uuid.New(), Role: access.RoleTherapist}, ref))
	require.Equal(t, access.Deny, access.StudentWrite(access.Principal{UserID: ref.ParentID, Role: access.RoleParent}, ref))
	require.Equal(t, access.AllowIfVisible, access.StudentWrite(access.Principal{UserID: uuid.New(), Role: access.RoleSchoolAdmin}, ref))
}

func TestPlanDecisions(t *testing.T) {
	creator := uuid.New()
	other := uuid.New()
	ref := access.StudentRef{ParentID: uuid.New(), PrimaryTherapistID: &creator}

	require.True(t, access.PlanModify(access.Principal{UserID: creator, Role: access.RoleTherapist}, creator))
	require.False(t, access.PlanModify(access.Principal{UserID: other, Role: access.RoleTherapist}, creator))
	require.True(t, access.PlanModify(access.Principal{UserID: other, Role: access.RoleSystemAdmin}, creator))
	require.False(t, access.PlanModify(access.Principal{UserID: creator, Role: access.RoleParent}, creator))

	require.True(t, access.PlanCreate(access.Principal{UserID: creator, Role: access.RoleTherapist}, ref))
	require.False(t, access.PlanCreate(access.Principal{UserID: other, Role: access.RoleTherapist}, ref))
	require.True(t, access.PlanCreate(access.Principal{UserID: other, Role: access.RoleSystemAdmin}, ref))

	require.Equal(t, access.Allow, access.PlanRead(access.Principal{UserID: other, Role: access.RoleTherapist}, other, ref))
	require.Equal(t, access.Allow, access.PlanRead(access.Principal{UserID: ref.ParentID, Role: access.RoleParent}, creator, ref))
	require.Equal(t, access.Deny, access.PlanRead(access.Principal{UserID: other, Role: access.RoleParent}, creator, ref))
	require.Equal(t, access.Allow, access.PlanRead(access.Principal{UserID: creator, Role: access.RoleTherapist}, other, ref))
	require.Equal(t, access.Deny, access.PlanRead(access.Principal{UserID: uuid.New(), Role: access.RoleTherapist}, creator, ref))
	require.Equal(t, access.Allow, access.PlanRead(access.Principal{UserID: other, Role: access.RoleSchoolAdmin}, other, ref))
	require.Equal(t, access.AllowIfVisible, access.PlanRead(access.Principal{UserID: uuid.New(), Role: access.RoleSchoolAdmin}, creator, ref))
	require.Equal(t, access.Allow, access.PlanRead(access.Principal{UserID: uuid.New(), Role: access.RoleSystemAdmin}, creator, ref))
}
