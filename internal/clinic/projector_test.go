package clinic

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

func grant(t *testing.T, db *gorm.DB, userID, clinicID string, role auth.RoleName) {
	t.Helper()
	r, err := store.FindRole(db, role)
	require.NoError(t, err)
	require.NoError(t, store.GrantRole(db, userID, clinicID, r.ID))
}

func createClinic(t *testing.T, db *gorm.DB, name string) string {
	t.Helper()
	c := models.Clinic{Name: name}
	require.NoError(t, db.Create(&c).Error)
	return c.ID
}

func createUser(t *testing.T, db *gorm.DB, email string) string {
	t.Helper()
	u := models.User{Email: email, PasswordHash: "x", FullName: "Test User"}
	require.NoError(t, db.Create(&u).Error)
	return u.ID
}

func TestProjectGroupsAndDedupes(t *testing.T) {
	db := testDB(t)
	systemID, err := store.EnsureSystemClinic(db)
	require.NoError(t, err)
	proj := NewProjector(db, systemID)

	userID := createUser(t, db, "doc@example.com")
	c1 := createClinic(t, db, "Alpha Clinic")
	c2 := createClinic(t, db, "Beta Clinic")

	grant(t, db, userID, c1, auth.RoleDoctor)
	grant(t, db, userID, c1, auth.RoleAdmin)
	grant(t, db, userID, c1, auth.RoleDoctor)
	grant(t, db, userID, c2, auth.RoleReceptionist)

	pr, err := proj.Project(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, pr.Clinics, 2)
	assert.False(t, pr.IsSuperAdmin)

	got, ok := pr.Find(c1)
	require.True(t, ok)
	assert.Equal(t, "Alpha Clinic", got.ClinicName)
	assert.Equal(t, []auth.RoleName{auth.RoleAdmin, auth.RoleDoctor}, got.Roles)

	got, ok = pr.Find(c2)
	require.True(t, ok)
	assert.Equal(t, []auth.RoleName{auth.RoleReceptionist}, got.Roles)
}

func TestProjectDeterministicOrder(t *testing.T) {
	db := testDB(t)
	systemID, err := store.EnsureSystemClinic(db)
	require.NoError(t, err)
	proj := NewProjector(db, systemID)

	userID := createUser(t, db, "doc@example.com")
	for _, name := range []string{"C1", "C2", "C3"} {
		grant(t, db, userID, createClinic(t, db, name), auth.RoleDoctor)
	}

	first, err := proj.Project(context.Background(), userID)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := proj.Project(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, first.Clinics, again.Clinics)
	}
}

func TestProjectNoAssociation(t *testing.T) {
	db := testDB(t)
	systemID, err := store.EnsureSystemClinic(db)
	require.NoError(t, err)
	proj := NewProjector(db, systemID)

	userID := createUser(t, db, "lonely@example.com")
	_, err = proj.Project(context.Background(), userID)
	assert.ErrorIs(t, err, ErrNoClinicAssociation)
}

func TestDefaultClinicSkipsSystem(t *testing.T) {
	db := testDB(t)
	systemID, err := store.EnsureSystemClinic(db)
	require.NoError(t, err)
	proj := NewProjector(db, systemID)

	userID := createUser(t, db, "root@example.com")
	grant(t, db, userID, systemID, auth.RoleSuperAdmin)
	real := createClinic(t, db, "Real Clinic")
	grant(t, db, userID, real, auth.RoleAdmin)

	pr, err := proj.Project(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, pr.IsSuperAdmin)
	assert.Equal(t, real, proj.DefaultClinic(pr).ClinicID)
}

func TestDefaultClinicSystemOnly(t *testing.T) {
	db := testDB(t)
	systemID, err := store.EnsureSystemClinic(db)
	require.NoError(t, err)
	proj := NewProjector(db, systemID)

	userID := createUser(t, db, "root@example.com")
	grant(t, db, userID, systemID, auth.RoleSuperAdmin)

	pr, err := proj.Project(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, systemID, proj.DefaultClinic(pr).ClinicID)
}

func TestTokenRolesAppendsSuperAdmin(t *testing.T) {
	pr := Projection{IsSuperAdmin: true}
	c := ClinicRoles{ClinicID: "c1", Roles: []auth.RoleName{auth.RoleAdmin}}

	roles := pr.TokenRoles(c)
	assert.Equal(t, []auth.RoleName{auth.RoleAdmin, auth.RoleSuperAdmin}, roles)
	// input untouched
	assert.Equal(t, []auth.RoleName{auth.RoleAdmin}, c.Roles)

	// no duplicate when already present
	c.Roles = []auth.RoleName{auth.RoleSuperAdmin}
	assert.Equal(t, []auth.RoleName{auth.RoleSuperAdmin}, pr.TokenRoles(c))
}
