package billing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"cliniccore/internal/auth"
	"cliniccore/internal/models"
)

var (
	ErrNoSubscription        = errors.New("no subscription found")
	ErrSubscriptionNotActive = errors.New("subscription is not active")
	ErrTrialExpired          = errors.New("trial has expired")
	ErrInvalidRole           = errors.New("invalid role type")
)

// FeatureError denies a feature the clinic's plan does not include.
type FeatureError struct {
	Feature string
	Plan    string
}

func (e *FeatureError) Error() string {
	return fmt.Sprintf("feature %q not included in plan %s", e.Feature, e.Plan)
}

// SeatLimitError denies a staff addition that would exceed a plan limit.
type SeatLimitError struct {
	Role    auth.RoleName
	Plan    string
	Current int
	Limit   int
}

func (e *SeatLimitError) Error() string {
	return fmt.Sprintf("plan %s allows up to %d seat(s) for %s, %d in use", e.Plan, e.Limit, e.Role, e.Current)
}

// Gate enforces subscription status, feature membership and seat limits
// for one clinic before any gated mutation.
type Gate struct {
	db *gorm.DB
	lg *zap.SugaredLogger
}

func NewGate(db *gorm.DB, lg *zap.SugaredLogger) *Gate {
	return &Gate{db: db, lg: lg}
}

func (g *Gate) find(ctx context.Context, tx *gorm.DB, clinicID string) (*models.Subscription, error) {
	if tx == nil {
		tx = g.db
	}
	var sub models.Subscription
	err := tx.WithContext(ctx).Preload("Plan").First(&sub, "clinic_id = ?", clinicID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoSubscription
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// RequireActiveSubscription allows trialing and active subscriptions. An
// expired trial is written through to past_due before denying, so the next
// check (and anything else reading status) sees past_due, not trialing.
func (g *Gate) RequireActiveSubscription(ctx context.Context, clinicID string) (*models.Subscription, error) {
	sub, err := g.find(ctx, nil, clinicID)
	if err != nil {
		return nil, err
	}
	switch sub.Status {
	case models.StatusCanceled, models.StatusPastDue:
		return nil, ErrSubscriptionNotActive
	case models.StatusTrialing:
		if sub.TrialEndsAt != nil && time.Now().After(*sub.TrialEndsAt) {
			if err := g.db.WithContext(ctx).Model(&models.Subscription{}).
				Where("id = ? AND status = ?", sub.ID, models.StatusTrialing).
				Update("status", models.StatusPastDue).Error; err != nil {
				return nil, err
			}
			g.lg.Infow("trial expired", "clinic_id", clinicID, "subscription_id", sub.ID)
			return nil, ErrTrialExpired
		}
	}
	return sub, nil
}

// RequireFeature checks exact membership of the tag in the plan's feature
// set.
func (g *Gate) RequireFeature(ctx context.Context, clinicID, feature string) error {
	sub, err := g.find(ctx, nil, clinicID)
	if err != nil {
		return err
	}
	if !sub.Plan.Features.Contains(feature) {
		return &FeatureError{Feature: feature, Plan: sub.Plan.Name}
	}
	return nil
}

// CheckSeatLimit counts occupied seats for the role class inside the
// caller's transaction, so the count and the subsequent insert are atomic.
// DOCTOR counts against MaxDoctors; RECEPTIONIST and other non-admin roles
// pool against MaxStaff; ADMIN and SUPER_ADMIN occupy no seat. A nil limit
// is unlimited.
func (g *Gate) CheckSeatLimit(ctx context.Context, tx *gorm.DB, clinicID string, role auth.RoleName) error {
	if _, err := auth.ParseRoleName(string(role)); err != nil {
		return ErrInvalidRole
	}
	sub, err := g.find(ctx, tx, clinicID)
	if err != nil {
		return err
	}
	if tx == nil {
		tx = g.db
	}
	switch role {
	case auth.RoleAdmin, auth.RoleSuperAdmin:
		return nil
	case auth.RoleDoctor:
		if sub.Plan.MaxDoctors == nil {
			return nil
		}
		n, err := countSeats(ctx, tx, clinicID, "roles.name = ?", string(auth.RoleDoctor))
		if err != nil {
			return err
		}
		if n >= *sub.Plan.MaxDoctors {
			return &SeatLimitError{Role: role, Plan: sub.Plan.Name, Current: n, Limit: *sub.Plan.MaxDoctors}
		}
	default:
		if sub.Plan.MaxStaff == nil {
			return nil
		}
		n, err := countSeats(ctx, tx, clinicID, "roles.name NOT IN ?", []string{string(auth.RoleAdmin), string(auth.RoleSuperAdmin)})
		if err != nil {
			return err
		}
		if n >= *sub.Plan.MaxStaff {
			return &SeatLimitError{Role: role, Plan: sub.Plan.Name, Current: n, Limit: *sub.Plan.MaxStaff}
		}
	}
	return nil
}

func countSeats(ctx context.Context, tx *gorm.DB, clinicID, cond string, arg interface{}) (int, error) {
	var n int64
	err := tx.WithContext(ctx).Model(&models.ClinicUserRole{}).
		Joins("JOIN roles ON roles.id = clinic_user_roles.role_id").
		Where("clinic_user_roles.clinic_id = ?", clinicID).
		Where(cond, arg).
		Count(&n).Error
	return int(n), err
}

// CheckDowngrade fails closed: if current usage exceeds the target plan's
// limits the downgrade is rejected before any write.
func (g *Gate) CheckDowngrade(ctx context.Context, clinicID string, target *models.Plan) error {
	if target.MaxDoctors != nil {
		n, err := countSeats(ctx, g.db, clinicID, "roles.name = ?", string(auth.RoleDoctor))
		if err != nil {
			return err
		}
		if n > *target.MaxDoctors {
			return &SeatLimitError{Role: auth.RoleDoctor, Plan: target.Name, Current: n, Limit: *target.MaxDoctors}
		}
	}
	if target.MaxStaff != nil {
		n, err := countSeats(ctx, g.db, clinicID, "roles.name NOT IN ?", []string{string(auth.RoleAdmin), string(auth.RoleSuperAdmin)})
		if err != nil {
			return err
		}
		if n > *target.MaxStaff {
			return &SeatLimitError{Role: auth.RoleReceptionist, Plan: target.Name, Current: n, Limit: *target.MaxStaff}
		}
	}
	return nil
}

// CanTransition encodes the subscription status machine. Canceled rows are
// terminal but never deleted.
func CanTransition(from, to string) bool {
	switch from {
	case models.StatusTrialing:
		return to == models.StatusActive || to == models.StatusPastDue || to == models.StatusCanceled
	case models.StatusActive:
		return to == models.StatusPastDue || to == models.StatusCanceled
	case models.StatusPastDue:
		return to == models.StatusActive || to == models.StatusCanceled
	}
	return false
}

// Usage is the current seat consumption of a clinic.
type Usage struct {
	Doctors    int `json:"doctors"`
	TotalStaff int `json:"totalStaff"`
}

// Summary bundles subscription, plan and usage for the billing endpoints.
type Summary struct {
	Subscription  *models.Subscription `json:"subscription"`
	Plan          models.Plan          `json:"plan"`
	Usage         Usage                `json:"usage"`
	TrialDaysLeft *int                 `json:"trialDaysLeft,omitempty"`
}

func (g *Gate) Summarize(ctx context.Context, clinicID string) (*Summary, error) {
	sub, err := g.find(ctx, nil, clinicID)
	if err != nil {
		return nil, err
	}
	doctors, err := countSeats(ctx, g.db, clinicID, "roles.name = ?", string(auth.RoleDoctor))
	if err != nil {
		return nil, err
	}
	staff, err := countSeats(ctx, g.db, clinicID, "roles.name NOT IN ?", []string{string(auth.RoleAdmin), string(auth.RoleSuperAdmin)})
	if err != nil {
		return nil, err
	}
	s := &Summary{Subscription: sub, Plan: sub.Plan, Usage: Usage{Doctors: doctors, TotalStaff: staff}}
	if sub.Status == models.StatusTrialing && sub.TrialEndsAt != nil {
		days := int(math.Ceil(time.Until(*sub.TrialEndsAt).Hours() / 24))
		if days < 0 {
			days = 0
		}
		s.TrialDaysLeft = &days
	}
	return s, nil
}
