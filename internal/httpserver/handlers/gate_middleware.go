package handlers

import (
	"net/http"

	"cliniccore/internal/auth"
	"cliniccore/internal/billing"
)

// RequireActiveSubscription blocks the request unless the principal's
// clinic carries a subscription in trialing or active status. Trial
// expiry detected here is persisted before the request is rejected.
func RequireActiveSubscription(gate *billing.Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := auth.FromContext(r.Context())
			if p.ClinicID == "" {
				respondError(w, http.StatusForbidden, "clinic_context_required", "clinic context required", nil)
				return
			}
			if _, err := gate.RequireActiveSubscription(r.Context(), p.ClinicID); err != nil {
				respondGateError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
