package billing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"cliniccore/internal/auth"
	"cliniccore/internal/models"
	"cliniccore/internal/store"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard, TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, store.AutoMigrate(db))
	require.NoError(t, store.Seed(db))
	return db
}

func testGate(t *testing.T) (*Gate, *gorm.DB) {
	t.Helper()
	db := testDB(t)
	return NewGate(db, zap.NewNop().Sugar()), db
}

func planByName(t *testing.T, db *gorm.DB, name string) models.Plan {
	t.Helper()
	var p models.Plan
	require.NoError(t, db.First(&p, "name = ?", name).Error)
	return p
}

func subscribe(t *testing.T, db *gorm.DB, clinicID, planName, status string, trialEnds *time.Time) models.Subscription {
	t.Helper()
	p := planByName(t, db, planName)
	sub := models.Subscription{ClinicID: clinicID, PlanID: p.ID, Status: status, TrialEndsAt: trialEnds}
	require.NoError(t, db.Create(&sub).Error)
	return sub
}

func grantRole(t *testing.T, db *gorm.DB, userID, clinicID string, role auth.RoleName) {
	t.Helper()
	r, err := store.FindRole(db, role)
	require.NoError(t, err)
	require.NoError(t, store.GrantRole(db, userID, clinicID, r.ID))
}

func newClinic(t *testing.T, db *gorm.DB) string {
	t.Helper()
	c := models.Clinic{Name: "Test Clinic"}
	require.NoError(t, db.Create(&c).Error)
	return c.ID
}

func newUser(t *testing.T, db *gorm.DB, email string) string {
	t.Helper()
	u := models.User{Email: email, PasswordHash: "x", FullName: "Staff"}
	require.NoError(t, db.Create(&u).Error)
	return u.ID
}

func TestRequireActiveSubscription(t *testing.T) {
	ctx := context.Background()

	t.Run("no subscription", func(t *testing.T) {
		gate, db := testGate(t)
		_, err := gate.RequireActiveSubscription(ctx, newClinic(t, db))
		assert.ErrorIs(t, err, ErrNoSubscription)
	})

	t.Run("active passes", func(t *testing.T) {
		gate, db := testGate(t)
		clinicID := newClinic(t, db)
		subscribe(t, db, clinicID, "GROWTH", models.StatusActive, nil)
		sub, err := gate.RequireActiveSubscription(ctx, clinicID)
		require.NoError(t, err)
		assert.Equal(t, "GROWTH", sub.Plan.Name)
	})

	t.Run("trialing within window passes", func(t *testing.T) {
		gate, db := testGate(t)
		clinicID := newClinic(t, db)
		ends := time.Now().Add(24 * time.Hour)
		subscribe(t, db, clinicID, "STARTER", models.StatusTrialing, &ends)
		_, err := gate.RequireActiveSubscription(ctx, clinicID)
		assert.NoError(t, err)
	})

	t.Run("past_due and canceled deny", func(t *testing.T) {
		gate, db := testGate(t)
		for _, status := range []string{models.StatusPastDue, models.StatusCanceled} {
			clinicID := newClinic(t, db)
			subscribe(t, db, clinicID, "STARTER", status, nil)
			_, err := gate.RequireActiveSubscription(ctx, clinicID)
			assert.ErrorIs(t, err, ErrSubscriptionNotActive, status)
		}
	})
}

func TestTrialExpiryWriteThrough(t *testing.T) {
	ctx := context.Background()
	gate, db := testGate(t)
	clinicID := newClinic(t, db)
	ended := time.Now().Add(-time.Hour)
	sub := subscribe(t, db, clinicID, "STARTER", models.StatusTrialing, &ended)

	// first check detects the expiry and persists past_due
	_, err := gate.RequireActiveSubscription(ctx, clinicID)
	assert.ErrorIs(t, err, ErrTrialExpired)

	var stored models.Subscription
	require.NoError(t, db.First(&stored, "id = ?", sub.ID).Error)
	assert.Equal(t, models.StatusPastDue, stored.Status)

	// second check sees past_due, not trialing
	_, err = gate.RequireActiveSubscription(ctx, clinicID)
	assert.ErrorIs(t, err, ErrSubscriptionNotActive)
}

func TestRequireFeature(t *testing.T) {
	ctx := context.Background()
	gate, db := testGate(t)
	clinicID := newClinic(t, db)
	subscribe(t, db, clinicID, "STARTER", models.StatusActive, nil)

	assert.NoError(t, gate.RequireFeature(ctx, clinicID, "basic_appointments"))

	err := gate.RequireFeature(ctx, clinicID, "patient_history")
	var fe *FeatureError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "patient_history", fe.Feature)
	assert.Equal(t, "STARTER", fe.Plan)

	// prefix or partial tags never match
	assert.Error(t, gate.RequireFeature(ctx, clinicID, "basic"))
}

func TestCheckSeatLimit(t *testing.T) {
	ctx := context.Background()

	t.Run("doctor seat boundary", func(t *testing.T) {
		gate, db := testGate(t)
		clinicID := newClinic(t, db)
		subscribe(t, db, clinicID, "STARTER", models.StatusActive, nil)

		// STARTER allows one doctor
		require.NoError(t, gate.CheckSeatLimit(ctx, nil, clinicID, auth.RoleDoctor))
		grantRole(t, db, newUser(t, db, "d1@x.com"), clinicID, auth.RoleDoctor)

		err := gate.CheckSeatLimit(ctx, nil, clinicID, auth.RoleDoctor)
		var se *SeatLimitError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, 1, se.Current)
		assert.Equal(t, 1, se.Limit)
	})

	t.Run("staff pool includes doctors but not admins", func(t *testing.T) {
		gate, db := testGate(t)
		clinicID := newClinic(t, db)
		subscribe(t, db, clinicID, "STARTER", models.StatusActive, nil)

		// STARTER allows two pooled staff
		grantRole(t, db, newUser(t, db, "d1@x.com"), clinicID, auth.RoleDoctor)
		grantRole(t, db, newUser(t, db, "a1@x.com"), clinicID, auth.RoleAdmin)
		require.NoError(t, gate.CheckSeatLimit(ctx, nil, clinicID, auth.RoleReceptionist))

		grantRole(t, db, newUser(t, db, "r1@x.com"), clinicID, auth.RoleReceptionist)
		err := gate.CheckSeatLimit(ctx, nil, clinicID, auth.RoleReceptionist)
		var se *SeatLimitError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, 2, se.Current)
	})

	t.Run("admin roles occupy no seat", func(t *testing.T) {
		gate, db := testGate(t)
		clinicID := newClinic(t, db)
		subscribe(t, db, clinicID, "STARTER", models.StatusActive, nil)
		for i := 0; i < 5; i++ {
			grantRole(t, db, newUser(t, db, fmt.Sprintf("a%d@x.com", i)), clinicID, auth.RoleAdmin)
		}
		assert.NoError(t, gate.CheckSeatLimit(ctx, nil, clinicID, auth.RoleAdmin))
	})

	t.Run("nil limit is unlimited", func(t *testing.T) {
		gate, db := testGate(t)
		clinicID := newClinic(t, db)
		subscribe(t, db, clinicID, "PRO", models.StatusActive, nil)
		for i := 0; i < 10; i++ {
			grantRole(t, db, newUser(t, db, fmt.Sprintf("d%d@x.com", i)), clinicID, auth.RoleDoctor)
		}
		assert.NoError(t, gate.CheckSeatLimit(ctx, nil, clinicID, auth.RoleDoctor))
	})

	t.Run("unknown role rejected", func(t *testing.T) {
		gate, db := testGate(t)
		clinicID := newClinic(t, db)
		subscribe(t, db, clinicID, "STARTER", models.StatusActive, nil)
		err := gate.CheckSeatLimit(ctx, nil, clinicID, auth.RoleName("OWNER"))
		assert.ErrorIs(t, err, ErrInvalidRole)
	})
}

func TestCheckDowngrade(t *testing.T) {
	ctx := context.Background()
	gate, db := testGate(t)
	clinicID := newClinic(t, db)
	subscribe(t, db, clinicID, "GROWTH", models.StatusActive, nil)

	grantRole(t, db, newUser(t, db, "d1@x.com"), clinicID, auth.RoleDoctor)
	grantRole(t, db, newUser(t, db, "d2@x.com"), clinicID, auth.RoleDoctor)

	starter := planByName(t, db, "STARTER")
	err := gate.CheckDowngrade(ctx, clinicID, &starter)
	var se *SeatLimitError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, auth.RoleDoctor, se.Role)
	assert.Equal(t, 2, se.Current)
	assert.Equal(t, 1, se.Limit)

	// usage exactly at the limit is allowed
	require.NoError(t, db.Exec("DELETE FROM clinic_user_roles WHERE clinic_id = ?", clinicID).Error)
	grantRole(t, db, newUser(t, db, "d3@x.com"), clinicID, auth.RoleDoctor)
	assert.NoError(t, gate.CheckDowngrade(ctx, clinicID, &starter))
}

func TestCanTransition(t *testing.T) {
	allowed := map[string][]string{
		models.StatusTrialing: {models.StatusActive, models.StatusPastDue, models.StatusCanceled},
		models.StatusActive:   {models.StatusPastDue, models.StatusCanceled},
		models.StatusPastDue:  {models.StatusActive, models.StatusCanceled},
		models.StatusCanceled: {},
	}
	statuses := []string{models.StatusTrialing, models.StatusActive, models.StatusPastDue, models.StatusCanceled}
	for from, tos := range allowed {
		ok := make(map[string]bool)
		for _, to := range tos {
			ok[to] = true
		}
		for _, to := range statuses {
			assert.Equal(t, ok[to], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestSummarize(t *testing.T) {
	ctx := context.Background()
	gate, db := testGate(t)
	clinicID := newClinic(t, db)
	ends := time.Now().Add(5 * 24 * time.Hour)
	subscribe(t, db, clinicID, "STARTER", models.StatusTrialing, &ends)
	grantRole(t, db, newUser(t, db, "d1@x.com"), clinicID, auth.RoleDoctor)
	grantRole(t, db, newUser(t, db, "a1@x.com"), clinicID, auth.RoleAdmin)

	s, err := gate.Summarize(ctx, clinicID)
	require.NoError(t, err)
	assert.Equal(t, "STARTER", s.Plan.Name)
	assert.Equal(t, 1, s.Usage.Doctors)
	assert.Equal(t, 1, s.Usage.TotalStaff)
	require.NotNil(t, s.TrialDaysLeft)
	assert.Equal(t, 5, *s.TrialDaysLeft)
}
