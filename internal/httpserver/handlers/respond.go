package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"cliniccore/internal/auth"
	"cliniccore/internal/billing"
)

func respondJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func respondStatus(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// respondError emits the machine-readable reason code plus a human
// message. extra carries upgrade-prompt detail for subscription denials.
func respondError(w http.ResponseWriter, status int, code, message string, extra map[string]interface{}) {
	body := map[string]interface{}{"code": code, "message": message}
	for k, v := range extra {
		body[k] = v
	}
	respondStatus(w, status, body)
}

// respondGateError maps subscription-gate denials onto HTTP responses.
// Internal errors stay generic.
func respondGateError(w http.ResponseWriter, err error) {
	var featErr *billing.FeatureError
	var seatErr *billing.SeatLimitError
	switch {
	case errors.Is(err, billing.ErrNoSubscription):
		respondError(w, http.StatusForbidden, "no_subscription", "no active subscription found",
			map[string]interface{}{"requiresUpgrade": true})
	case errors.Is(err, billing.ErrSubscriptionNotActive):
		respondError(w, http.StatusForbidden, "subscription_not_active",
			"your subscription is not active, please update your billing information",
			map[string]interface{}{"requiresUpgrade": true})
	case errors.Is(err, billing.ErrTrialExpired):
		respondError(w, http.StatusForbidden, "trial_expired", "your trial has expired, please upgrade to continue",
			map[string]interface{}{"requiresUpgrade": true, "trialExpired": true})
	case errors.Is(err, billing.ErrInvalidRole):
		respondError(w, http.StatusBadRequest, "invalid_role", "invalid role type", nil)
	case errors.As(err, &featErr):
		respondError(w, http.StatusForbidden, "feature_not_in_plan", "this feature requires a higher plan",
			map[string]interface{}{"requiresUpgrade": true, "feature": featErr.Feature, "currentPlan": featErr.Plan})
	case errors.As(err, &seatErr):
		respondError(w, http.StatusForbidden, "seat_limit_exceeded", seatErr.Error(),
			map[string]interface{}{"requiresUpgrade": true, "current": seatErr.Current, "limit": seatErr.Limit})
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
	}
}

func setSessionCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(ttl.Seconds()),
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}
