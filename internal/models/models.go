package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Subscription status values. Rows are never deleted; canceled is terminal.
const (
	StatusTrialing = "trialing"
	StatusActive   = "active"
	StatusPastDue  = "past_due"
	StatusCanceled = "canceled"
)

type Role struct {
	ID   int    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"uniqueIndex;not null" json:"name"`
}

type User struct {
	ID                  string     `gorm:"type:uuid;primaryKey" json:"id"`
	Email               string     `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash        string     `gorm:"not null" json:"-"`
	FullName            string     `gorm:"not null" json:"full_name"`
	EmailVerified       bool       `gorm:"not null;default:false" json:"email_verified"`
	VerificationToken   *string    `gorm:"index" json:"-"`
	VerificationExpires *time.Time `json:"-"`
	TempPassword        *string    `json:"-"`
	ProfileImage        *string    `json:"profile_image,omitempty"`
	LastLogin           *time.Time `json:"last_login,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

type Clinic struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Address   string    `json:"address"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Clinic) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// ClinicUserRole is the unit of authorization: one role held by one user in
// one clinic. The composite primary key doubles as the uniqueness backstop
// for concurrent seat-limit checks.
type ClinicUserRole struct {
	UserID    string    `gorm:"type:uuid;primaryKey" json:"user_id"`
	ClinicID  string    `gorm:"type:uuid;primaryKey;index" json:"clinic_id"`
	RoleID    int       `gorm:"primaryKey" json:"role_id"`
	CreatedAt time.Time `json:"created_at"`

	User   User   `gorm:"foreignKey:UserID" json:"-"`
	Clinic Clinic `gorm:"foreignKey:ClinicID" json:"-"`
	Role   Role   `gorm:"foreignKey:RoleID" json:"-"`
}

// Invite stores only the SHA-256 of the handed-out token.
type Invite struct {
	ID         string     `gorm:"type:uuid;primaryKey" json:"id"`
	Email      string     `gorm:"not null;index" json:"email"`
	ClinicID   string     `gorm:"type:uuid;not null;index" json:"clinic_id"`
	RoleID     int        `gorm:"not null" json:"role_id"`
	TokenHash  string     `gorm:"uniqueIndex;not null" json:"-"`
	ExpiresAt  time.Time  `gorm:"not null" json:"expires_at"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
	CreatedBy  string     `gorm:"type:uuid" json:"created_by"`
	CreatedAt  time.Time  `json:"created_at"`

	Clinic Clinic `gorm:"foreignKey:ClinicID" json:"-"`
	Role   Role   `gorm:"foreignKey:RoleID" json:"-"`
}

func (i *Invite) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

// Plan limits are nullable; nil means unlimited. Prices are cents.
type Plan struct {
	ID           int         `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string      `gorm:"uniqueIndex;not null" json:"name"`
	PriceMonthly int         `gorm:"not null" json:"price_monthly"`
	PriceYearly  int         `gorm:"not null" json:"price_yearly"`
	MaxDoctors   *int        `json:"max_doctors"`
	MaxStaff     *int        `json:"max_staff"`
	MultiClinic  bool        `gorm:"not null;default:false" json:"multi_clinic"`
	Features     FeatureTags `gorm:"type:text" json:"features"`
	CreatedAt    time.Time   `json:"created_at"`
}

type Subscription struct {
	ID                 string     `gorm:"type:uuid;primaryKey" json:"id"`
	ClinicID           string     `gorm:"type:uuid;uniqueIndex;not null" json:"clinic_id"`
	PlanID             int        `gorm:"not null" json:"plan_id"`
	Status             string     `gorm:"not null;index" json:"status"`
	TrialEndsAt        *time.Time `json:"trial_ends_at,omitempty"`
	CurrentPeriodStart *time.Time `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end,omitempty"`
	EndsAt             *time.Time `json:"ends_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`

	Plan Plan `gorm:"foreignKey:PlanID" json:"plan"`
}

func (s *Subscription) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
