package access

import (
	"fmt"
	"strings"
)

// Role is the closed set of account roles. Every switch over Role in this
// module lists all four values; adding a role means revisiting each of them.
type Role string

const (
	RoleParent      Role = "parent"
	RoleTherapist   Role = "therapist"
	RoleSchoolAdmin Role = "school_admin"
	RoleSystemAdmin Role = "system_admin"
)

// Roles lists every role in a stable order.
func Roles() []Role {
	return []Role{RoleParent, RoleTherapist, RoleSchoolAdmin, RoleSystemAdmin}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleParent, RoleTherapist, RoleSchoolAdmin, RoleSystemAdmin:
		return true
	default:
		return false
	}
}

func (r Role) String() string {
	return string(r)
}

// ParseRole normalises and validates a role string.
func ParseRole(value string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	if !role.Valid() {
		return "", fmt.Errorf("unknown role %q", value)
	}
	return role, nil
}
