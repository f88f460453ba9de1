package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"cliniccore/internal/auth"
	"cliniccore/internal/models"
)

// ListDoctors returns the doctors of the caller's current clinic. Booking
// and prescription forms use it to pick a doctor without needing the
// admin-only staff endpoints.
func ListDoctors(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		type doctorEntry struct {
			ID       string `json:"id"`
			FullName string `json:"fullName"`
			Email    string `json:"email"`
		}
		var doctors []doctorEntry
		err := db.Model(&models.ClinicUserRole{}).
			Select("users.id, users.full_name, users.email").
			Joins("JOIN users ON users.id = clinic_user_roles.user_id").
			Joins("JOIN roles ON roles.id = clinic_user_roles.role_id").
			Where("clinic_user_roles.clinic_id = ? AND roles.name = ?", p.ClinicID, string(auth.RoleDoctor)).
			Order("users.full_name asc").
			Scan(&doctors).Error
		if err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "error fetching doctors", nil)
			return
		}
		respondJSON(w, doctors)
	}
}

func ListMedicines(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var medicines []models.Medicine
		q := db.Where("clinic_id = ?", p.ClinicID).Order("name asc")
		if search := r.URL.Query().Get("search"); search != "" {
			q = q.Where("name LIKE ? OR category LIKE ?", "%"+search+"%", "%"+search+"%")
		}
		if err := q.Find(&medicines).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		respondJSON(w, medicines)
	}
}

type medicineRequest struct {
	Name                *string `json:"name"`
	Category            *string `json:"category"`
	Strength            *string `json:"strength"`
	Form                *string `json:"form"`
	Manufacturer        *string `json:"manufacturer"`
	Description         *string `json:"description"`
	SideEffects         *string `json:"sideEffects"`
	Contraindications   *string `json:"contraindications"`
	DosageInstructions  *string `json:"dosageInstructions"`
	StorageInstructions *string `json:"storageInstructions"`
	PriceCents          *int    `json:"priceCents"`
	StockQuantity       *int    `json:"stockQuantity"`
	ReorderLevel        *int    `json:"reorderLevel"`
	IsActive            *bool   `json:"isActive"`
}

func (req *medicineRequest) apply(m *models.Medicine) {
	if req.Name != nil {
		m.Name = *req.Name
	}
	if req.Category != nil {
		m.Category = *req.Category
	}
	if req.Strength != nil {
		m.Strength = *req.Strength
	}
	if req.Form != nil {
		m.Form = *req.Form
	}
	if req.Manufacturer != nil {
		m.Manufacturer = *req.Manufacturer
	}
	if req.Description != nil {
		m.Description = *req.Description
	}
	if req.SideEffects != nil {
		m.SideEffects = *req.SideEffects
	}
	if req.Contraindications != nil {
		m.Contraindications = *req.Contraindications
	}
	if req.DosageInstructions != nil {
		m.DosageInstructions = *req.DosageInstructions
	}
	if req.StorageInstructions != nil {
		m.StorageInstructions = *req.StorageInstructions
	}
	if req.PriceCents != nil {
		m.PriceCents = *req.PriceCents
	}
	if req.StockQuantity != nil {
		m.StockQuantity = *req.StockQuantity
	}
	if req.ReorderLevel != nil {
		m.ReorderLevel = *req.ReorderLevel
	}
	if req.IsActive != nil {
		m.IsActive = *req.IsActive
	}
}

func CreateMedicine(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var req medicineRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == nil || *req.Name == "" {
			respondError(w, http.StatusBadRequest, "missing_fields", "name is required", nil)
			return
		}
		med := models.Medicine{
			ClinicID:  p.ClinicID,
			IsActive:  true,
			CreatedBy: p.UserID,
		}
		req.apply(&med)
		if err := db.Create(&med).Error; err != nil {
			lg.Errorw("create medicine failed", "clinic_id", p.ClinicID, "error", err)
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		respondStatus(w, http.StatusCreated, med)
	}
}

func UpdateMedicine(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var med models.Medicine
		if !clinicScoped(db, w, p.ClinicID, chi.URLParam(r, "medicineID"), &med) {
			return
		}
		var req medicineRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "bad_request", err.Error(), nil)
			return
		}
		if req.Name != nil && *req.Name == "" {
			respondError(w, http.StatusBadRequest, "missing_fields", "name cannot be empty", nil)
			return
		}
		req.apply(&med)
		if err := db.Save(&med).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		respondJSON(w, med)
	}
}

func DeleteMedicine(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		res := db.Where("id = ? AND clinic_id = ?", chi.URLParam(r, "medicineID"), p.ClinicID).
			Delete(&models.Medicine{})
		if res.Error != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		if res.RowsAffected == 0 {
			respondError(w, http.StatusNotFound, "not_found", "medicine not found", nil)
			return
		}
		respondJSON(w, map[string]interface{}{"message": "medicine removed"})
	}
}
