package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Clinic-scoped patient-care records. These carry no invariants of their
// own; every route touching them goes through the auth middleware and the
// subscription gate.

type Patient struct {
	ID          string     `gorm:"type:uuid;primaryKey" json:"id"`
	ClinicID    string     `gorm:"type:uuid;not null;index" json:"clinic_id"`
	FullName    string     `gorm:"not null;index" json:"full_name"`
	Phone       string     `gorm:"index" json:"phone"`
	Email       string     `json:"email"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Address     string     `json:"address"`
	Notes       string     `json:"notes"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (p *Patient) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

type Appointment struct {
	ID          string    `gorm:"type:uuid;primaryKey" json:"id"`
	ClinicID    string    `gorm:"type:uuid;not null;index" json:"clinic_id"`
	PatientID   string    `gorm:"type:uuid;not null;index" json:"patient_id"`
	DoctorID    string    `gorm:"type:uuid;not null;index" json:"doctor_id"`
	ScheduledAt time.Time `gorm:"not null" json:"scheduled_at"`
	Status      string    `gorm:"not null;default:scheduled" json:"status"`
	Reason      string    `json:"reason"`
	Notes       string    `json:"notes"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Patient Patient `gorm:"foreignKey:PatientID" json:"-"`
}

func (a *Appointment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

type Prescription struct {
	ID            string    `gorm:"type:uuid;primaryKey" json:"id"`
	ClinicID      string    `gorm:"type:uuid;not null;index" json:"clinic_id"`
	PatientID     string    `gorm:"type:uuid;not null;index" json:"patient_id"`
	DoctorID      string    `gorm:"type:uuid;not null" json:"doctor_id"`
	AppointmentID *string   `gorm:"type:uuid" json:"appointment_id,omitempty"`
	Medication    string    `gorm:"not null" json:"medication"`
	Dosage        string    `json:"dosage"`
	Instructions  string    `json:"instructions"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (p *Prescription) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

type Invoice struct {
	ID            string     `gorm:"type:uuid;primaryKey" json:"id"`
	ClinicID      string     `gorm:"type:uuid;not null;index" json:"clinic_id"`
	PatientID     string     `gorm:"type:uuid;not null;index" json:"patient_id"`
	AppointmentID *string    `gorm:"type:uuid" json:"appointment_id,omitempty"`
	AmountCents   int        `gorm:"not null" json:"amount_cents"`
	Status        string     `gorm:"not null;default:draft" json:"status"`
	IssuedAt      *time.Time `json:"issued_at,omitempty"`
	DueAt         *time.Time `json:"due_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (i *Invoice) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

// Medicine is a clinic's drug catalog entry. Prescriptions reference it
// informally through their medication text so catalog rows can be removed
// without breaking historic records.
type Medicine struct {
	ID                  string    `gorm:"type:uuid;primaryKey" json:"id"`
	ClinicID            string    `gorm:"type:uuid;not null;index" json:"clinic_id"`
	Name                string    `gorm:"not null;index" json:"name"`
	Category            string    `json:"category"`
	Strength            string    `json:"strength"`
	Form                string    `json:"form"`
	Manufacturer        string    `json:"manufacturer"`
	Description         string    `json:"description"`
	SideEffects         string    `json:"side_effects"`
	Contraindications   string    `json:"contraindications"`
	DosageInstructions  string    `json:"dosage_instructions"`
	StorageInstructions string    `json:"storage_instructions"`
	PriceCents          int       `json:"price_cents"`
	StockQuantity       int       `json:"stock_quantity"`
	ReorderLevel        int       `json:"reorder_level"`
	IsActive            bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedBy           string    `gorm:"type:uuid" json:"created_by"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func (m *Medicine) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

type Payment struct {
	ID          string    `gorm:"type:uuid;primaryKey" json:"id"`
	InvoiceID   string    `gorm:"type:uuid;not null;index" json:"invoice_id"`
	AmountCents int       `gorm:"not null" json:"amount_cents"`
	Method      string    `gorm:"not null" json:"method"`
	PaidAt      time.Time `gorm:"not null" json:"paid_at"`
	CreatedAt   time.Time `json:"created_at"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
