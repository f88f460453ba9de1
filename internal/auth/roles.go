package auth

import "fmt"

// RoleName is the closed set of roles a clinic can grant. Unknown role
// strings are rejected at token decode time rather than passed through.
type RoleName string

const (
	RoleDoctor       RoleName = "DOCTOR"
	RoleReceptionist RoleName = "RECEPTIONIST"
	RoleAdmin        RoleName = "ADMIN"
	RoleSuperAdmin   RoleName = "SUPER_ADMIN"
)

func ParseRoleName(s string) (RoleName, error) {
	switch RoleName(s) {
	case RoleDoctor, RoleReceptionist, RoleAdmin, RoleSuperAdmin:
		return RoleName(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

func ParseRoleNames(ss []string) ([]RoleName, error) {
	out := make([]RoleName, 0, len(ss))
	for _, s := range ss {
		r, err := ParseRoleName(s)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func RoleStrings(roles []RoleName) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, string(r))
	}
	return out
}
