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
	"cliniccore/internal/models"
)

// clinicScoped loads a record by id within the principal's clinic,
// writing the 404 itself when the row is missing.
func clinicScoped(db *gorm.DB, w http.ResponseWriter, clinicID, id string, out interface{}) bool {
	err := db.First(out, "id = ? AND clinic_id = ?", id, clinicID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(w, http.StatusNotFound, "not_found", "record not found", nil)
		return false
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
		return false
	}
	return true
}

func ListAppointments(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var appointments []models.Appointment
		q := db.Where("clinic_id = ?", p.ClinicID).Order("scheduled_at asc")
		if doctorID := r.URL.Query().Get("doctorId"); doctorID != "" {
			q = q.Where("doctor_id = ?", doctorID)
		}
		if patientID := r.URL.Query().Get("patientId"); patientID != "" {
			q = q.Where("patient_id = ?", patientID)
		}
		if err := q.Find(&appointments).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		respondJSON(w, appointments)
	}
}

func CreateAppointment(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var req struct {
			PatientID   string    `json:"patientId"`
			DoctorID    string    `json:"doctorId"`
			ScheduledAt time.Time `json:"scheduledAt"`
			Reason      string    `json:"reason"`
			Notes       string    `json:"notes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
			req.PatientID == "" || req.DoctorID == "" || req.ScheduledAt.IsZero() {
			respondError(w, http.StatusBadRequest, "missing_fields", "patient, doctor and time are required", nil)
			return
		}
		var patient models.Patient
		if !clinicScoped(db, w, p.ClinicID, req.PatientID, &patient) {
			return
		}
		appt := models.Appointment{
			ClinicID:    p.ClinicID,
			PatientID:   req.PatientID,
			DoctorID:    req.DoctorID,
			ScheduledAt: req.ScheduledAt,
			Status:      "scheduled",
			Reason:      req.Reason,
			Notes:       req.Notes,
		}
		if err := db.Create(&appt).Error; err != nil {
			lg.Errorw("create appointment failed", "clinic_id", p.ClinicID, "error", err)
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		respondStatus(w, http.StatusCreated, appt)
	}
}

func UpdateAppointment(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var appt models.Appointment
		if !clinicScoped(db, w, p.ClinicID, chi.URLParam(r, "appointmentID"), &appt) {
			return
		}
		var req struct {
			ScheduledAt *time.Time `json:"scheduledAt"`
			Status      *string    `json:"status"`
			Reason      *string    `json:"reason"`
			Notes       *string    `json:"notes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "bad_request", err.Error(), nil)
			return
		}
		if req.ScheduledAt != nil {
			appt.ScheduledAt = *req.ScheduledAt
		}
		if req.Status != nil {
			appt.Status = *req.Status
		}
		if req.Reason != nil {
			appt.Reason = *req.Reason
		}
		if req.Notes != nil {
			appt.Notes = *req.Notes
		}
		if err := db.Save(&appt).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		respondJSON(w, appt)
	}
}

func DeleteAppointment(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		res := db.Where("id = ? AND clinic_id = ?", chi.URLParam(r, "appointmentID"), p.ClinicID).
			Delete(&models.Appointment{})
		if res.Error != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		if res.RowsAffected == 0 {
			respondError(w, http.StatusNotFound, "not_found", "record not found", nil)
			return
		}
		respondJSON(w, map[string]interface{}{"message": "appointment removed"})
	}
}

func ListPrescriptions(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var prescriptions []models.Prescription
		q := db.Where("clinic_id = ?", p.ClinicID).Order("created_at desc")
		if patientID := r.URL.Query().Get("patientId"); patientID != "" {
			q = q.Where("patient_id = ?", patientID)
		}
		if err := q.Find(&prescriptions).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		respondJSON(w, prescriptions)
	}
}

// CreatePrescription records a prescription authored by the requesting
// doctor. The doctor id always comes from the session, never the body.
func CreatePrescription(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var req struct {
			PatientID     string  `json:"patientId"`
			AppointmentID *string `json:"appointmentId"`
			Medication    string  `json:"medication"`
			Dosage        string  `json:"dosage"`
			Instructions  string  `json:"instructions"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
			req.PatientID == "" || req.Medication == "" {
			respondError(w, http.StatusBadRequest, "missing_fields", "patient and medication are required", nil)
			return
		}
		var patient models.Patient
		if !clinicScoped(db, w, p.ClinicID, req.PatientID, &patient) {
			return
		}
		rx := models.Prescription{
			ClinicID:      p.ClinicID,
			PatientID:     req.PatientID,
			DoctorID:      p.UserID,
			AppointmentID: req.AppointmentID,
			Medication:    req.Medication,
			Dosage:        req.Dosage,
			Instructions:  req.Instructions,
		}
		if err := db.Create(&rx).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		respondStatus(w, http.StatusCreated, rx)
	}
}

func UpdatePrescription(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var rx models.Prescription
		if !clinicScoped(db, w, p.ClinicID, chi.URLParam(r, "prescriptionID"), &rx) {
			return
		}
		var req struct {
			Medication   *string `json:"medication"`
			Dosage       *string `json:"dosage"`
			Instructions *string `json:"instructions"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "bad_request", err.Error(), nil)
			return
		}
		if req.Medication != nil && *req.Medication != "" {
			rx.Medication = *req.Medication
		}
		if req.Dosage != nil {
			rx.Dosage = *req.Dosage
		}
		if req.Instructions != nil {
			rx.Instructions = *req.Instructions
		}
		if err := db.Save(&rx).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		respondJSON(w, rx)
	}
}

func DeletePrescription(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		res := db.Where("id = ? AND clinic_id = ?", chi.URLParam(r, "prescriptionID"), p.ClinicID).
			Delete(&models.Prescription{})
		if res.Error != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		if res.RowsAffected == 0 {
			respondError(w, http.StatusNotFound, "not_found", "record not found", nil)
			return
		}
		respondJSON(w, map[string]interface{}{"message": "prescription removed"})
	}
}

func ListInvoices(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var invoices []models.Invoice
		q := db.Where("clinic_id = ?", p.ClinicID).Order("created_at desc")
		if patientID := r.URL.Query().Get("patientId"); patientID != "" {
			q = q.Where("patient_id = ?", patientID)
		}
		if status := r.URL.Query().Get("status"); status != "" {
			q = q.Where("status = ?", status)
		}
		if err := q.Find(&invoices).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		respondJSON(w, invoices)
	}
}

func CreateInvoice(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var req struct {
			PatientID     string     `json:"patientId"`
			AppointmentID *string    `json:"appointmentId"`
			AmountCents   int        `json:"amountCents"`
			DueAt         *time.Time `json:"dueAt"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
			req.PatientID == "" || req.AmountCents <= 0 {
			respondError(w, http.StatusBadRequest, "missing_fields", "patient and a positive amount are required", nil)
			return
		}
		var patient models.Patient
		if !clinicScoped(db, w, p.ClinicID, req.PatientID, &patient) {
			return
		}
		now := time.Now()
		inv := models.Invoice{
			ClinicID:      p.ClinicID,
			PatientID:     req.PatientID,
			AppointmentID: req.AppointmentID,
			AmountCents:   req.AmountCents,
			Status:        "issued",
			IssuedAt:      &now,
			DueAt:         req.DueAt,
		}
		if err := db.Create(&inv).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		respondStatus(w, http.StatusCreated, inv)
	}
}

func UpdateInvoice(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var inv models.Invoice
		if !clinicScoped(db, w, p.ClinicID, chi.URLParam(r, "invoiceID"), &inv) {
			return
		}
		var req struct {
			Status *string    `json:"status"`
			DueAt  *time.Time `json:"dueAt"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "bad_request", err.Error(), nil)
			return
		}
		if req.Status != nil {
			switch *req.Status {
			case "issued", "void":
			default:
				respondError(w, http.StatusBadRequest, "invalid_status", "status must be issued or void", nil)
				return
			}
			if inv.Status == "paid" {
				respondError(w, http.StatusBadRequest, "invalid_status", "paid invoices cannot be changed", nil)
				return
			}
			inv.Status = *req.Status
		}
		if req.DueAt != nil {
			inv.DueAt = req.DueAt
		}
		if err := db.Save(&inv).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		respondJSON(w, inv)
	}
}

// RecordPayment appends a payment against an invoice and marks the
// invoice paid once the recorded total covers its amount.
func RecordPayment(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		invoiceID := chi.URLParam(r, "invoiceID")
		var req struct {
			AmountCents int    `json:"amountCents"`
			Method      string `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
			req.AmountCents <= 0 || req.Method == "" {
			respondError(w, http.StatusBadRequest, "missing_fields", "a positive amount and method are required", nil)
			return
		}
		var payment models.Payment
		err := db.Transaction(func(tx *gorm.DB) error {
			var inv models.Invoice
			if err := tx.First(&inv, "id = ? AND clinic_id = ?", invoiceID, p.ClinicID).Error; err != nil {
				return err
			}
			payment = models.Payment{
				InvoiceID:   inv.ID,
				AmountCents: req.AmountCents,
				Method:      req.Method,
				PaidAt:      time.Now(),
			}
			if err := tx.Create(&payment).Error; err != nil {
				return err
			}
			var paid int64
			if err := tx.Model(&models.Payment{}).Where("invoice_id = ?", inv.ID).
				Select("COALESCE(SUM(amount_cents), 0)").Scan(&paid).Error; err != nil {
				return err
			}
			if paid >= int64(inv.AmountCents) && inv.Status != "paid" {
				return tx.Model(&inv).Update("status", "paid").Error
			}
			return nil
		})
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "record not found", nil)
			return
		}
		if err != nil {
			lg.Errorw("record payment failed", "invoice_id", invoiceID, "error", err)
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		respondStatus(w, http.StatusCreated, payment)
	}
}

func ListPayments(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		invoiceID := chi.URLParam(r, "invoiceID")
		var inv models.Invoice
		if !clinicScoped(db, w, p.ClinicID, invoiceID, &inv) {
			return
		}
		var payments []models.Payment
		if err := db.Where("invoice_id = ?", invoiceID).Order("paid_at asc").Find(&payments).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		respondJSON(w, payments)
	}
}
