package access

import "github.com/google/uuid"

// Principal is the authenticated caller as resolved from a bearer token.
type Principal struct {
	UserID uuid.UUID
	Role   Role
}

// IsZero reports whether the principal carries no identity.
func (p Principal) IsZero() bool {
	return p.UserID == uuid.Nil
}

// ScopeKind tags which visibility predicate a listing query must apply.
type ScopeKind int

const (
	// ScopeNone matches nothing.
	ScopeNone ScopeKind = iota
	// ScopeOwnChildren matches rows of students whose parent is the caller.
	ScopeOwnChildren
	// ScopeTherapistCaseload matches rows the caller treats. For students this
	// is primary therapist or any session history; repositories of other
	// entities narrow it to their own ownership column.
	ScopeTherapistCaseload
	// ScopeSchoolStaff matches rows of students enrolled at a school where the
	// caller is staff.
	ScopeSchoolStaff
	// ScopeAll matches every row.
	ScopeAll
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeNone:
		return "none"
	case ScopeOwnChildren:
		return "own_children"
	case ScopeTherapistCaseload:
		return "therapist_caseload"
	case ScopeSchoolStaff:
		return "school_staff"
	case ScopeAll:
		return "all"
	default:
		return "unknown"
	}
}

// Scope is a visibility filter bound to a user.
type Scope struct {
	Kind   ScopeKind
	UserID uuid.UUID
}

// ScopeFor derives the listing scope of a principal.
func ScopeFor(p Principal) Scope {
	switch p.Role {
	case RoleParent:
		return Scope{Kind: ScopeOwnChildren, UserID: p.UserID}
	case RoleTherapist:
		return Scope{Kind: ScopeTherapistCaseload, UserID: p.UserID}
	case RoleSchoolAdmin:
		return Scope{Kind: ScopeSchoolStaff, UserID: p.UserID}
	case RoleSystemAdmin:
		return Scope{Kind: ScopeAll, UserID: p.UserID}
	default:
		return Scope{Kind: ScopeNone, UserID: p.UserID}
	}
}

// Grant is the outcome of a single-resource decision.
type Grant int

const (
	Deny Grant = iota
	Allow
	// AllowIfVisible defers to the caller's listing scope evaluated against
	// the resource's student.
	AllowIfVisible
)

// StudentRef carries the ownership columns of a student.
type StudentRef struct {
	ParentID           uuid.UUID
	PrimaryTherapistID *uuid.UUID
}

func (s StudentRef) primaryIs(id uuid.UUID) bool {
	return s.PrimaryTherapistID != nil && *s.PrimaryTherapistID == id
}

// CanMutate reports whether the role may create or modify records at all.
// It is checked before any lookup takes place.
func CanMutate(role Role) bool {
	switch role {
	case RoleTherapist, RoleSchoolAdmin, RoleSystemAdmin:
		return true
	case RoleParent:
		return false
	default:
		return false
	}
}

// StudentRead decides read access to a student and everything hanging off it
// (stats, progress, analysis results).
func StudentRead(p Principal, s StudentRef) Grant {
	switch p.Role {
	case RoleSystemAdmin:
		return Allow
	case RoleParent:
		if s.ParentID == p.UserID {
			return Allow
		}
		return Deny
	case RoleTherapist:
		if s.primaryIs(p.UserID) {
			return Allow
		}
		return AllowIfVisible
	case RoleSchoolAdmin:
		return AllowIfVisible
	default:
		return Deny
	}
}

// StudentWrite decides update access to a student record.
func StudentWrite(p Principal, s StudentRef) Grant {
	switch p.Role {
	case RoleSystemAdmin:
		return Allow
	case RoleTherapist:
		if s.primaryIs(p.UserID) {
			return Allow
		}
		return Deny
	case RoleSchoolAdmin:
		return AllowIfVisible
	case RoleParent:
		return Deny
	default:
		return Deny
	}
}

// PlanRead decides read access to an IEP plan. Unlike StudentRead, session
// history does not open a plan to a therapist; only authorship or being the
// primary therapist does. School admins stay bound to their schools' scope so
// reads match plan listing.
func PlanRead(p Principal, createdBy uuid.UUID, s StudentRef) Grant {
	switch p.Role {
	case RoleSystemAdmin:
		return Allow
	case RoleParent:
		if s.ParentID == p.UserID {
			return Allow
		}
		return Deny
	case RoleTherapist:
		if createdBy == p.UserID || s.primaryIs(p.UserID) {
			return Allow
		}
		return Deny
	case RoleSchoolAdmin:
		if createdBy == p.UserID {
			return Allow
		}
		return AllowIfVisible
	default:
		return Deny
	}
}

// PlanCreate decides whether the caller may open a plan for the student.
// Ownership is tied to the student's primary therapist.
func PlanCreate(p Principal, s StudentRef) bool {
	switch p.Role {
	case RoleSystemAdmin:
		return true
	case RoleTherapist, RoleSchoolAdmin:
		return s.primaryIs(p.UserID)
	case RoleParent:
		return false
	default:
		return false
	}
}

// PlanModify decides update and delete access to an existing plan.
func PlanModify(p Principal, createdBy uuid.UUID) bool {
	if !CanMutate(p.Role) {
		return false
	}
	return p.Role == RoleSystemAdmin || createdBy == p.UserID
}
