package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"cliniccore/internal/auth"
	"cliniccore/internal/billing"
	"cliniccore/internal/models"
)

const cancelGraceDays = 30

// GetSubscription returns the clinic's subscription, plan and current seat
// usage for the billing page.
func GetSubscription(gate *billing.Gate, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		summary, err := gate.Summarize(r.Context(), p.ClinicID)
		if err != nil {
			if errors.Is(err, billing.ErrNoSubscription) {
				respondError(w, http.StatusNotFound, "no_subscription", "no subscription found for this clinic", nil)
				return
			}
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		respondJSON(w, summary)
	}
}

func ListPlans(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var plans []models.Plan
		if err := db.Order("price_monthly asc").Find(&plans).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		respondJSON(w, map[string]interface{}{"plans": plans})
	}
}

type planChangeReq struct {
	PlanName     string `json:"planName"`
	BillingCycle string `json:"billingCycle"`
}

// Upgrade moves the clinic to a higher-priced plan and activates the
// subscription. Payment is out of scope; the provider call site is here.
func Upgrade(db *gorm.DB, gate *billing.Gate, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var req planChangeReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlanName == "" || req.BillingCycle == "" {
			respondError(w, http.StatusBadRequest, "missing_fields", "plan name and billing cycle are required", nil)
			return
		}
		if req.BillingCycle != "monthly" && req.BillingCycle != "yearly" {
			respondError(w, http.StatusBadRequest, "bad_request", "billing cycle must be monthly or yearly", nil)
			return
		}
		var newPlan models.Plan
		if err := db.First(&newPlan, "name = ?", req.PlanName).Error; err != nil {
			respondError(w, http.StatusNotFound, "not_found", "plan not found", nil)
			return
		}
		var sub models.Subscription
		if err := db.Preload("Plan").First(&sub, "clinic_id = ?", p.ClinicID).Error; err != nil {
			respondError(w, http.StatusNotFound, "no_subscription", "no subscription found", nil)
			return
		}
		if newPlan.PriceMonthly <= sub.Plan.PriceMonthly {
			respondError(w, http.StatusBadRequest, "bad_request", "use the downgrade endpoint to switch to a lower plan", nil)
			return
		}
		if !billing.CanTransition(sub.Status, models.StatusActive) && sub.Status != models.StatusActive {
			respondError(w, http.StatusBadRequest, "invalid_status", "subscription cannot be activated from its current status", nil)
			return
		}

		lg.Infow("processing upgrade", "clinic_id", p.ClinicID, "plan", req.PlanName, "cycle", req.BillingCycle)
		err := db.Model(&models.Subscription{}).Where("clinic_id = ?", p.ClinicID).
			Updates(map[string]interface{}{
				"plan_id":       newPlan.ID,
				"status":        models.StatusActive,
				"trial_ends_at": nil,
			}).Error
		if err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		summary, err := gate.Summarize(r.Context(), p.ClinicID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		respondJSON(w, map[string]interface{}{"message": "subscription upgraded", "subscription": summary})
	}
}

// Downgrade fails closed: current seat usage is checked against the target
// plan before the single UPDATE, so a rejected downgrade writes nothing.
func Downgrade(db *gorm.DB, gate *billing.Gate, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var req planChangeReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlanName == "" {
			respondError(w, http.StatusBadRequest, "missing_fields", "plan name is required", nil)
			return
		}
		var newPlan models.Plan
		if err := db.First(&newPlan, "name = ?", req.PlanName).Error; err != nil {
			respondError(w, http.StatusNotFound, "not_found", "plan not found", nil)
			return
		}
		var sub models.Subscription
		if err := db.Preload("Plan").First(&sub, "clinic_id = ?", p.ClinicID).Error; err != nil {
			respondError(w, http.StatusNotFound, "no_subscription", "no subscription found", nil)
			return
		}
		if newPlan.PriceMonthly >= sub.Plan.PriceMonthly {
			respondError(w, http.StatusBadRequest, "bad_request", "use the upgrade endpoint to switch to a higher plan", nil)
			return
		}
		if err := gate.CheckDowngrade(r.Context(), p.ClinicID, &newPlan); err != nil {
			var seatErr *billing.SeatLimitError
			if errors.As(err, &seatErr) {
				respondError(w, http.StatusBadRequest, "downgrade_blocked", seatErr.Error(),
					map[string]interface{}{"current": seatErr.Current, "planLimit": seatErr.Limit})
				return
			}
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		err := db.Model(&models.Subscription{}).Where("clinic_id = ?", p.ClinicID).
			Update("plan_id", newPlan.ID).Error
		if err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		summary, err := gate.Summarize(r.Context(), p.ClinicID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		respondJSON(w, map[string]interface{}{"message": "subscription downgraded", "subscription": summary})
	}
}

// CancelSubscription marks the row canceled with a grace period; the row
// itself is kept as a historical record.
func CancelSubscription(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var sub models.Subscription
		if err := db.First(&sub, "clinic_id = ?", p.ClinicID).Error; err != nil {
			respondError(w, http.StatusNotFound, "no_subscription", "no subscription found", nil)
			return
		}
		if sub.Status == models.StatusCanceled {
			respondError(w, http.StatusBadRequest, "already_canceled", "subscription is already canceled", nil)
			return
		}
		endsAt := time.Now().AddDate(0, 0, cancelGraceDays)
		err := db.Model(&sub).Updates(map[string]interface{}{
			"status":  models.StatusCanceled,
			"ends_at": endsAt,
		}).Error
		if err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		respondJSON(w, map[string]interface{}{
			"message": "subscription canceled, access continues until the end of the billing period",
			"endsAt":  endsAt,
		})
	}
}
