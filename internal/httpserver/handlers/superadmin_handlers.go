package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cliniccore/internal/auth"
	"cliniccore/internal/models"
	"cliniccore/internal/store"
)

// SuperListClinics returns every clinic with its staff, one entry per user
// with joined role names. SUPER_ADMIN associations are excluded from the
// listing.
func SuperListClinics(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var clinics []models.Clinic
		if err := db.Order("created_at asc").Find(&clinics).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		var rows []models.ClinicUserRole
		if err := db.Preload("User").Preload("Role").Find(&rows).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		type staffEntry struct {
			ID       string `json:"id"`
			FullName string `json:"fullName"`
			Email    string `json:"email"`
			Role     string `json:"role"`
			roles    []string
		}
		staffByClinic := make(map[string]map[string]*staffEntry)
		orderByClinic := make(map[string][]string)
		for _, row := range rows {
			if row.Role.Name == string(auth.RoleSuperAdmin) {
				continue
			}
			if staffByClinic[row.ClinicID] == nil {
				staffByClinic[row.ClinicID] = make(map[string]*staffEntry)
			}
			e, ok := staffByClinic[row.ClinicID][row.UserID]
			if !ok {
				e = &staffEntry{ID: row.User.ID, FullName: row.User.FullName, Email: row.User.Email}
				staffByClinic[row.ClinicID][row.UserID] = e
				orderByClinic[row.ClinicID] = append(orderByClinic[row.ClinicID], row.UserID)
			}
			e.roles = append(e.roles, row.Role.Name)
		}
		out := make([]map[string]interface{}, 0, len(clinics))
		for _, c := range clinics {
			staff := make([]staffEntry, 0)
			for _, uid := range orderByClinic[c.ID] {
				e := staffByClinic[c.ID][uid]
				e.Role = strings.Join(e.roles, ", ")
				staff = append(staff, *e)
			}
			out = append(out, map[string]interface{}{
				"id": c.ID, "name": c.Name, "address": c.Address, "phone": c.Phone,
				"email": c.Email, "createdAt": c.CreatedAt, "staff": staff,
			})
		}
		respondJSON(w, out)
	}
}

func SuperUpdateClinic(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicID := chi.URLParam(r, "clinicID")
		var req struct {
			Name    *string `json:"name"`
			Address *string `json:"address"`
			Phone   *string `json:"phone"`
			Email   *string `json:"email"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "bad_request", err.Error(), nil)
			return
		}
		updates := map[string]interface{}{}
		if req.Name != nil {
			updates["name"] = *req.Name
		}
		if req.Address != nil {
			updates["address"] = *req.Address
		}
		if req.Phone != nil {
			updates["phone"] = *req.Phone
		}
		if req.Email != nil {
			updates["email"] = *req.Email
		}
		if len(updates) > 0 {
			if err := db.Model(&models.Clinic{}).Where("id = ?", clinicID).Updates(updates).Error; err != nil {
				respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
				return
			}
		}
		respondJSON(w, map[string]interface{}{"message": "clinic updated"})
	}
}

func SuperDeleteClinic(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicID := chi.URLParam(r, "clinicID")
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("clinic_id = ?", clinicID).Delete(&models.ClinicUserRole{}).Error; err != nil {
				return err
			}
			return tx.Delete(&models.Clinic{}, "id = ?", clinicID).Error
		})
		if err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		respondJSON(w, map[string]interface{}{"message": "clinic removed"})
	}
}

// SuperListUsers returns every user with per-clinic role and plan info.
func SuperListUsers(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var users []models.User
		if err := db.Order("created_at desc").Find(&users).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		var rows []models.ClinicUserRole
		if err := db.Preload("Clinic").Preload("Role").Find(&rows).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		var subs []models.Subscription
		if err := db.Preload("Plan").Find(&subs).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		subByClinic := make(map[string]*models.Subscription, len(subs))
		for i := range subs {
			subByClinic[subs[i].ClinicID] = &subs[i]
		}

		type association struct {
			ClinicID           string  `json:"clinicId"`
			ClinicName         string  `json:"clinicName"`
			Role               string  `json:"role"`
			PlanName           *string `json:"planName"`
			SubscriptionStatus *string `json:"subscriptionStatus"`
			roles              []string
		}
		assocByUser := make(map[string]map[string]*association)
		orderByUser := make(map[string][]string)
		for _, row := range rows {
			if row.Role.Name == string(auth.RoleSuperAdmin) {
				continue
			}
			if assocByUser[row.UserID] == nil {
				assocByUser[row.UserID] = make(map[string]*association)
			}
			a, ok := assocByUser[row.UserID][row.ClinicID]
			if !ok {
				a = &association{ClinicID: row.ClinicID, ClinicName: row.Clinic.Name}
				if sub := subByClinic[row.ClinicID]; sub != nil {
					a.PlanName = &sub.Plan.Name
					a.SubscriptionStatus = &sub.Status
				}
				assocByUser[row.UserID][row.ClinicID] = a
				orderByUser[row.UserID] = append(orderByUser[row.UserID], row.ClinicID)
			}
			a.roles = append(a.roles, row.Role.Name)
		}

		out := make([]map[string]interface{}, 0, len(users))
		for _, u := range users {
			assocs := make([]association, 0)
			for _, cid := range orderByUser[u.ID] {
				a := assocByUser[u.ID][cid]
				a.Role = strings.Join(a.roles, ", ")
				assocs = append(assocs, *a)
			}
			out = append(out, map[string]interface{}{
				"id": u.ID, "email": u.Email, "fullName": u.FullName,
				"emailVerified": u.EmailVerified, "createdAt": u.CreatedAt,
				"lastLogin": u.LastLogin, "associations": assocs,
			})
		}
		respondJSON(w, out)
	}
}

func SuperUpdateUser(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		var req struct {
			FullName *string `json:"fullName"`
			Email    *string `json:"email"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "bad_request", err.Error(), nil)
			return
		}
		updates := map[string]interface{}{}
		if req.FullName != nil && *req.FullName != "" {
			updates["full_name"] = *req.FullName
		}
		if req.Email != nil && *req.Email != "" {
			updates["email"] = strings.ToLower(*req.Email)
		}
		if len(updates) > 0 {
			if err := db.Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
				respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
				return
			}
		}
		respondJSON(w, map[string]interface{}{"message": "user updated"})
	}
}

func SuperVerifyUserEmail(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		if err := db.Model(&models.User{}).Where("id = ?", userID).
			Update("email_verified", true).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		respondJSON(w, map[string]interface{}{"message": "user email verified"})
	}
}

func SuperDeleteUser(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("user_id = ?", userID).Delete(&models.ClinicUserRole{}).Error; err != nil {
				return err
			}
			return tx.Delete(&models.User{}, "id = ?", userID).Error
		})
		if err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		respondJSON(w, map[string]interface{}{"message": "user removed"})
	}
}

// MakeSuperAdmin grants SUPER_ADMIN against the System clinic, creating
// the clinic if it does not exist yet. The grant is idempotent.
func MakeSuperAdmin(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID string `json:"userId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
			respondError(w, http.StatusBadRequest, "missing_fields", "user ID is required", nil)
			return
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			role, err := store.FindRole(tx, auth.RoleSuperAdmin)
			if err != nil {
				return err
			}
			systemID, err := store.EnsureSystemClinic(tx)
			if err != nil {
				return err
			}
			return store.GrantRole(tx, req.UserID, systemID, role.ID)
		})
		if err != nil {
			lg.Errorw("make superadmin failed", "user_id", req.UserID, "error", err)
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		respondJSON(w, map[string]interface{}{"message": "user is now a super admin"})
	}
}

func SuperAssociateUser(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		var req struct {
			ClinicID string `json:"clinicId"`
			Role     string `json:"role"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ClinicID == "" || req.Role == "" {
			respondError(w, http.StatusBadRequest, "missing_fields", "clinic ID and role are required", nil)
			return
		}
		roleName, err := auth.ParseRoleName(req.Role)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_role", "invalid role", nil)
			return
		}
		role, err := store.FindRole(db, roleName)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_role", "invalid role", nil)
			return
		}
		if err := store.GrantRole(db, userID, req.ClinicID, role.ID); err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		respondJSON(w, map[string]interface{}{"message": "user associated with clinic"})
	}
}

func SuperRemoveAssociation(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		clinicID := chi.URLParam(r, "clinicID")
		err := db.Where("user_id = ? AND clinic_id = ?", userID, clinicID).
			Delete(&models.ClinicUserRole{}).Error
		if err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		respondJSON(w, map[string]interface{}{"message": "user association removed"})
	}
}

// SuperOverrideSubscription upserts a clinic's subscription to the given
// plan with status active, honoring the status machine for existing rows.
func SuperOverrideSubscription(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicID := chi.URLParam(r, "clinicID")
		var req struct {
			PlanID int `json:"planId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlanID == 0 {
			respondError(w, http.StatusBadRequest, "missing_fields", "plan ID is required", nil)
			return
		}
		var plan models.Plan
		if err := db.First(&plan, "id = ?", req.PlanID).Error; err != nil {
			respondError(w, http.StatusNotFound, "not_found", "plan not found", nil)
			return
		}
		sub := models.Subscription{ClinicID: clinicID, PlanID: plan.ID, Status: models.StatusActive}
		err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "clinic_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"plan_id": plan.ID, "status": models.StatusActive, "trial_ends_at": nil}),
		}).Create(&sub).Error
		if err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		respondJSON(w, map[string]interface{}{"message": "subscription plan updated"})
	}
}
