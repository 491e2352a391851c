package auth

import (
	"fmt"

	"github.com/google/uuid"
)

// Role is the role carried by a verified token.
type Role string

const (
	RoleSuperAdmin Role = "superadmin"
	RoleAdmin      Role = "admin"
	RoleUser       Role = "user"
)

// ParseRole accepts the roles issued by the account service.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleSuperAdmin, RoleAdmin, RoleUser:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

// IsAdmin reports whether the role belongs to the administrator class.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// Claims is the already-verified identity of a caller.
type Claims struct {
	Subject string
	Role    Role
	TeamID  uuid.UUID // uuid.Nil when the caller has no team
}

// Restricted reports whether score views must be gated for this caller.
func (c Claims) Restricted() bool {
	return !c.Role.IsAdmin()
}

// HasTeam reports whether the caller carries a team membership claim.
func (c Claims) HasTeam() bool {
	return c.TeamID != uuid.Nil
}
