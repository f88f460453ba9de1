package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"cliniccore/internal/auth"
	"cliniccore/internal/billing"
	"cliniccore/internal/models"
)

func ListPatients(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var patients []models.Patient
		q := db.Where("clinic_id = ?", p.ClinicID).Order("full_name asc")
		if search := r.URL.Query().Get("search"); search != "" {
			q = q.Where("full_name LIKE ? OR phone LIKE ?", "%"+search+"%", "%"+search+"%")
		}
		if err := q.Find(&patients).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		respondJSON(w, patients)
	}
}

func GetPatient(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var patient models.Patient
		err := db.First(&patient, "id = ? AND clinic_id = ?", chi.URLParam(r, "patientID"), p.ClinicID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "patient not found", nil)
			return
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		respondJSON(w, patient)
	}
}

type patientRequest struct {
	FullName    string     `json:"fullName"`
	Phone       string     `json:"phone"`
	Email       string     `json:"email"`
	DateOfBirth *time.Time `json:"dateOfBirth"`
	Address     string     `json:"address"`
	Notes       string     `json:"notes"`
}

func CreatePatient(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var req patientRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FullName == "" {
			respondError(w, http.StatusBadRequest, "missing_fields", "full name is required", nil)
			return
		}
		patient := models.Patient{
			ClinicID:    p.ClinicID,
			FullName:    req.FullName,
			Phone:       req.Phone,
			Email:       req.Email,
			DateOfBirth: req.DateOfBirth,
			Address:     req.Address,
			Notes:       req.Notes,
		}
		if err := db.Create(&patient).Error; err != nil {
			lg.Errorw("create patient failed", "clinic_id", p.ClinicID, "error", err)
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		respondStatus(w, http.StatusCreated, patient)
	}
}

func UpdatePatient(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		patientID := chi.URLParam(r, "patientID")
		var patient models.Patient
		err := db.First(&patient, "id = ? AND clinic_id = ?", patientID, p.ClinicID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "patient not found", nil)
			return
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		var req patientRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "bad_request", err.Error(), nil)
			return
		}
		if req.FullName != "" {
			patient.FullName = req.FullName
		}
		patient.Phone = req.Phone
		patient.Email = req.Email
		patient.Address = req.Address
		patient.Notes = req.Notes
		if req.DateOfBirth != nil {
			patient.DateOfBirth = req.DateOfBirth
		}
		if err := db.Save(&patient).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		respondJSON(w, patient)
	}
}

func DeletePatient(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		res := db.Where("id = ? AND clinic_id = ?", chi.URLParam(r, "patientID"), p.ClinicID).
			Delete(&models.Patient{})
		if res.Error != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		if res.RowsAffected == 0 {
			respondError(w, http.StatusNotFound, "not_found", "patient not found", nil)
			return
		}
		respondJSON(w, map[string]interface{}{"message": "patient removed"})
	}
}

// PatientHistory aggregates a patient's appointments, prescriptions and
// invoices. Available only on plans carrying the patient_history feature.
func PatientHistory(db *gorm.DB, gate *billing.Gate, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		if err := gate.RequireFeature(r.Context(), p.ClinicID, "patient_history"); err != nil {
			respondGateError(w, err)
			return
		}
		patientID := chi.URLParam(r, "patientID")
		var patient models.Patient
		err := db.First(&patient, "id = ? AND clinic_id = ?", patientID, p.ClinicID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "patient not found", nil)
			return
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		var appointments []models.Appointment
		var prescriptions []models.Prescription
		var invoices []models.Invoice
		if err := db.Where("patient_id = ? AND clinic_id = ?", patientID, p.ClinicID).
			Order("scheduled_at desc").Find(&appointments).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		if err := db.Where("patient_id = ? AND clinic_id = ?", patientID, p.ClinicID).
			Order("created_at desc").Find(&prescriptions).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		if err := db.Where("patient_id = ? AND clinic_id = ?", patientID, p.ClinicID).
			Order("created_at desc").Find(&invoices).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		respondJSON(w, map[string]interface{}{
			"patient":       patient,
			"appointments":  appointments,
			"prescriptions": prescriptions,
			"invoices":      invoices,
		})
	}
}
