package store

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cliniccore/internal/auth"
	"cliniccore/internal/models"
)

// SystemClinicName is the reserved clinic holding super-admin
// associations. It is found or created by name, never by a fixed id.
const SystemClinicName = "System"

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Role{},
		&models.User{},
		&models.Clinic{},
		&models.ClinicUserRole{},
		&models.Invite{},
		&models.Plan{},
		&models.Subscription{},
		&models.Patient{},
		&models.Appointment{},
		&models.Prescription{},
		&models.Invoice{},
		&models.Payment{},
		&models.Medicine{},
	)
}

func intp(v int) *int { return &v }

// Seed inserts the fixed role enumeration and the plan catalog. Idempotent
// by unique name.
func Seed(db *gorm.DB) error {
	roles := []models.Role{
		{Name: string(auth.RoleDoctor)},
		{Name: string(auth.RoleReceptionist)},
		{Name: string(auth.RoleAdmin)},
		{Name: string(auth.RoleSuperAdmin)},
	}
	for _, r := range roles {
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&r).Error; err != nil {
			return err
		}
	}

	plans := []models.Plan{
		{
			Name: "STARTER", PriceMonthly: 0, PriceYearly: 0,
			MaxDoctors: intp(1), MaxStaff: intp(2),
			Features: models.FeatureTags{"basic_appointments", "basic_prescriptions", "basic_invoicing"},
		},
		{
			Name: "GROWTH", PriceMonthly: 2900, PriceYearly: 29000,
			MaxDoctors: intp(3), MaxStaff: intp(10),
			Features: models.FeatureTags{"basic_appointments", "basic_prescriptions", "basic_invoicing", "patient_history", "reports"},
		},
		{
			Name: "PRO", PriceMonthly: 7900, PriceYearly: 79000,
			MultiClinic: true,
			Features:    models.FeatureTags{"basic_appointments", "basic_prescriptions", "basic_invoicing", "patient_history", "reports", "multi_clinic", "api_access", "priority_support"},
		},
	}
	for _, p := range plans {
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&p).Error; err != nil {
			return err
		}
	}
	return nil
}

// EnsureSystemClinic finds or creates the System clinic and returns its id.
func EnsureSystemClinic(db *gorm.DB) (string, error) {
	var c models.Clinic
	err := db.First(&c, "name = ?", SystemClinicName).Error
	if err == nil {
		return c.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}
	c = models.Clinic{Name: SystemClinicName}
	if err := db.Create(&c).Error; err != nil {
		return "", err
	}
	return c.ID, nil
}

func FindRole(db *gorm.DB, name auth.RoleName) (models.Role, error) {
	var r models.Role
	err := db.First(&r, "name = ?", string(name)).Error
	return r, err
}

// GrantRole inserts a clinic-user-role association, ignoring the write if
// it already exists. The conflict target is the composite primary key.
func GrantRole(tx *gorm.DB, userID, clinicID string, roleID int) error {
	row := models.ClinicUserRole{UserID: userID, ClinicID: clinicID, RoleID: roleID}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "clinic_id"}, {Name: "role_id"}},
		DoNothing: true,
	}).Create(&row).Error
}
