package domain

import "fmt"

// Role is the closed privilege set attached to every identity. Route groups
// declare the roles they admit; unknown role strings are rejected at the
// boundary, never stored.
type Role string

const (
	// RoleFarmer is the lowest-privilege default for public registration.
	RoleFarmer Role = "farmer"
	// RoleExpert is the mid-tier domain-expert role.
	RoleExpert Role = "expert"
	// RoleAdmin is the highest privilege; admin route groups require it exactly.
	RoleAdmin Role = "admin"
)

// ParseRole validates a role string against the closed set.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleFarmer, RoleExpert, RoleAdmin:
		return Role(s), nil
	}
	return "", fmt.Errorf("invalid role %q: must be farmer, expert, or admin", s)
}

// Valid reports whether r is a member of the closed set.
func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

func (r Role) String() string { return string(r) }
