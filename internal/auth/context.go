package auth

import (
	"context"
)

type ctxKey string

const principalKey ctxKey = "principal"

// Principal is the authenticated identity for one request: user, active
// clinic context, and the role set the session token carried.
type Principal struct {
	UserID   string
	ClinicID string
	Roles    []RoleName
}

func (p Principal) HasRole(role RoleName) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (p Principal) IsSuperAdmin() bool {
	return p.HasRole(RoleSuperAdmin)
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func FromContext(ctx context.Context) Principal {
	if v, ok := ctx.Value(principalKey).(Principal); ok {
		return v
	}
	return Principal{}
}

func Subject(ctx context.Context) string {
	return FromContext(ctx).UserID
}
