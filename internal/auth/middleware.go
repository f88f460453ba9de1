package auth

import (
	"encoding/json"
	"net/http"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeUnauthenticated(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
		"code":    "unauthenticated",
		"message": "authentication required",
	})
}

func writeDeny(w http.ResponseWriter, d Decision) {
	writeJSON(w, http.StatusForbidden, d)
}

// RequireAuth resolves the session token into a Principal on the request
// context. Every failure maps to the same 401 body.
func RequireAuth(res *Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := res.Resolve(r)
			if err != nil {
				writeUnauthenticated(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// Require applies authorization requirements to every request in a route
// group. Must sit after RequireAuth.
func Require(reqs ...Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := FromContext(r.Context())
			if p.UserID == "" {
				writeUnauthenticated(w)
				return
			}
			if d := Authorize(p, reqs...); !d.Allowed {
				writeDeny(w, d)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func RequireAnyRole(roles ...RoleName) func(http.Handler) http.Handler {
	return Require(AnyOf(roles...))
}

func RequireSuperAdmin() func(http.Handler) http.Handler {
	return Require(SuperAdminOnly())
}

func RequireClinicContext() func(http.Handler) http.Handler {
	return Require(ClinicContextPresent())
}
