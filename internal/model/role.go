package model

import (
	"fmt"
	"strings"
)

// Role is a membership role. Ownership is a separate flag on the community;
// RoleOwner only appears on the wire for the owner's roster row.
type Role string

const (
	RoleMember    Role = "member"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
	RoleOwner     Role = "owner"
)

// AssignableRoles lists the roles a role change may set, lowest first.
var AssignableRoles = []Role{RoleMember, RoleModerator, RoleAdmin}

// Rank orders roles: member < moderator < admin < owner. Unknown roles rank 0.
func (r Role) Rank() int {
	switch r {
	case RoleMember:
		return 1
	case RoleModerator:
		return 2
	case RoleAdmin:
		return 3
	case RoleOwner:
		return 4
	}
	return 0
}

// Valid reports whether r can be assigned through a role change.
func (r Role) Valid() bool {
	return r == RoleMember || r == RoleModerator || r == RoleAdmin
}

// ParseRole normalizes user input into an assignable role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q (want member, moderator or admin)", s)
	}
	return r, nil
}
