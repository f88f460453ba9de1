package auth

// Decision is the outcome of evaluating requirements against a principal.
// Denials carry the required and held roles so clients can render a useful
// prompt; role names are not secrets to the user who holds them.
type Decision struct {
	Allowed  bool       `json:"allowed"`
	Code     string     `json:"code,omitempty"`
	Message  string     `json:"message,omitempty"`
	Required []RoleName `json:"required,omitempty"`
	Held     []RoleName `json:"current,omitempty"`
}

var allow = Decision{Allowed: true}

// Requirement is one check against a principal. Handlers declare an ordered
// list; all must pass.
type Requirement func(Principal) Decision

// AnyOf allows when the principal holds at least one of the given roles.
// SUPER_ADMIN blanket-allows; there is no other role hierarchy.
func AnyOf(roles ...RoleName) Requirement {
	return func(p Principal) Decision {
		if p.IsSuperAdmin() {
			return allow
		}
		for _, r := range roles {
			if p.HasRole(r) {
				return allow
			}
		}
		return Decision{
			Code:     "forbidden",
			Message:  "insufficient permissions",
			Required: roles,
			Held:     p.Roles,
		}
	}
}

func SuperAdminOnly() Requirement {
	return func(p Principal) Decision {
		if p.IsSuperAdmin() {
			return allow
		}
		return Decision{
			Code:     "super_admin_required",
			Message:  "super admin access required",
			Required: []RoleName{RoleSuperAdmin},
			Held:     p.Roles,
		}
	}
}

// ClinicContextPresent denies principals without an active clinic, which
// only malformed or legacy tokens can produce.
func ClinicContextPresent() Requirement {
	return func(p Principal) Decision {
		if p.ClinicID != "" {
			return allow
		}
		return Decision{
			Code:    "clinic_context_required",
			Message: "no clinic context found",
			Held:    p.Roles,
		}
	}
}

// Authorize evaluates requirements in order; the first denial wins.
func Authorize(p Principal, reqs ...Requirement) Decision {
	for _, req := range reqs {
		if d := req(p); !d.Allowed {
			return d
		}
	}
	return allow
}
