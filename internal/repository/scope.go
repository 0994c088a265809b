package repository

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/noah-isme/therapy-api/internal/access"
)

// visibleStudents restricts a query to rows whose student id column points at
// a student the scope may see.
func visibleStudents(scope access.Scope, column string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		switch scope.Kind {
		case access.ScopeAll:
			return db
		case access.ScopeOwnChildren:
			return db.Where(fmt.Sprintf("%s IN (SELECT id FROM students WHERE parent_id = ?)", column), scope.UserID)
		case access.ScopeTherapistCaseload:
			return db.Where(fmt.Sprintf(
				"(%[1]s IN (SELECT id FROM students WHERE primary_therapist_id = ?) OR %[1]s IN (SELECT student_id FROM therapy_sessions WHERE therapist_id = ?))",
				column,
			), scope.UserID, scope.UserID)
		case access.ScopeSchoolStaff:
			return db.Where(fmt.Sprintf(
				"%s IN (SELECT sse.student_id FROM student_school_enrollment sse JOIN school_staff ss ON ss.school_id = sse.school_id WHERE ss.user_id = ?)",
				column,
			), scope.UserID)
		case access.ScopeNone:
			return db.Where("1 = 0")
		default:
			return db.Where("1 = 0")
		}
	}
}

// visibleSessions narrows the caseload scope to the therapist's own sessions.
func visibleSessions(scope access.Scope) func(*gorm.DB) *gorm.DB {
	if scope.Kind == access.ScopeTherapistCaseload {
		return func(db *gorm.DB) *gorm.DB {
			return db.Where("therapy_sessions.therapist_id = ?", scope.UserID)
		}
	}
	return visibleStudents(scope, "therapy_sessions.student_id")
}

// visiblePlans narrows the caseload scope to plans the therapist wrote or
// whose student they are primary therapist for. School staff also see plans
// they wrote themselves.
func visiblePlans(scope access.Scope) func(*gorm.DB) *gorm.DB {
	switch scope.Kind {
	case access.ScopeTherapistCaseload:
		return func(db *gorm.DB) *gorm.DB {
			return db.Where(
				"(iep_plans.created_by = ? OR iep_plans.student_id IN (SELECT id FROM students WHERE primary_therapist_id = ?))",
				scope.UserID, scope.UserID,
			)
		}
	case access.ScopeSchoolStaff:
		return func(db *gorm.DB) *gorm.DB {
			return db.Where(
				"(iep_plans.created_by = ? OR iep_plans.student_id IN (SELECT sse.student_id FROM student_school_enrollment sse JOIN school_staff ss ON ss.school_id = sse.school_id WHERE ss.user_id = ?))",
				scope.UserID, scope.UserID,
			)
		}
	default:
		return visibleStudents(scope, "iep_plans.student_id")
	}
}
