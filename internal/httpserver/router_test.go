package httpserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"cliniccore/internal/auth"
	"cliniccore/internal/billing"
	"cliniccore/internal/clinic"
	"cliniccore/internal/mailer"
	"cliniccore/internal/models"
	"cliniccore/internal/store"
)

type testEnv struct {
	router http.Handler
	db     *gorm.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard, TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, store.AutoMigrate(db))
	require.NoError(t, store.Seed(db))
	systemID, err := store.EnsureSystemClinic(db)
	require.NoError(t, err)

	lg := zap.NewNop().Sugar()
	codec := auth.NewCodec("test-secret", time.Hour)
	router := NewRouter(Deps{
		DB:          db,
		Codec:       codec,
		Resolver:    auth.NewResolver(codec),
		Projector:   clinic.NewProjector(db, systemID),
		Gate:        billing.NewGate(db, lg),
		Mailer:      mailer.NewLogMailer(lg),
		FrontendURL: "http://localhost:3000",
		Logger:      lg,
	})
	return &testEnv{router: router, db: db}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var r *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = httptest.NewRequest(method, path, bytes.NewReader(b))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, r)
	var decoded map[string]interface{}
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &decoded)
	}
	return w, decoded
}

// signup runs the signup flow and returns the session token and clinic id.
func (e *testEnv) signup(t *testing.T, email, fullName string) (string, string) {
	t.Helper()
	w, body := e.do(t, "POST", "/v1/auth/signup", "", map[string]string{
		"email": email, "password": "secret123", "fullName": fullName,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	token := body["token"].(string)
	clinicID := body["clinic"].(map[string]interface{})["id"].(string)
	return token, clinicID
}

func TestSignupCreatesClinicAndTrial(t *testing.T) {
	e := newTestEnv(t)
	w, body := e.do(t, "POST", "/v1/auth/signup", "", map[string]string{
		"email": "jane@example.com", "password": "secret123", "fullName": "Jane Doe",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	clinicInfo := body["clinic"].(map[string]interface{})
	assert.Equal(t, "Jane Doe's Clinic", clinicInfo["name"])
	assert.ElementsMatch(t, []interface{}{"DOCTOR", "ADMIN"}, body["roles"])
	assert.NotEmpty(t, body["token"])

	var sub models.Subscription
	require.NoError(t, e.db.Preload("Plan").First(&sub, "clinic_id = ?", clinicInfo["id"]).Error)
	assert.Equal(t, models.StatusTrialing, sub.Status)
	assert.Equal(t, "STARTER", sub.Plan.Name)
	require.NotNil(t, sub.TrialEndsAt)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 14), *sub.TrialEndsAt, time.Minute)
}

// newClinicWithPlan creates a clinic with an active subscription on the
// named plan, bypassing the signup flow.
func (e *testEnv) newClinicWithPlan(t *testing.T, name, planName string) string {
	t.Helper()
	c := models.Clinic{Name: name}
	require.NoError(t, e.db.Create(&c).Error)
	var plan models.Plan
	require.NoError(t, e.db.First(&plan, "name = ?", planName).Error)
	sub := models.Subscription{ClinicID: c.ID, PlanID: plan.ID, Status: models.StatusActive}
	require.NoError(t, e.db.Create(&sub).Error)
	return c.ID
}

func (e *testEnv) grant(t *testing.T, email, clinicID string, role auth.RoleName) {
	t.Helper()
	var u models.User
	require.NoError(t, e.db.First(&u, "email = ?", email).Error)
	rr, err := store.FindRole(e.db, role)
	require.NoError(t, err)
	require.NoError(t, store.GrantRole(e.db, u.ID, clinicID, rr.ID))
}

func TestSignupDuplicateEmail(t *testing.T) {
	e := newTestEnv(t)
	e.signup(t, "jane@example.com", "Jane Doe")
	w, body := e.do(t, "POST", "/v1/auth/signup", "", map[string]string{
		"email": "jane@example.com", "password": "other", "fullName": "Jane Again",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "user_exists", body["code"])
}

func TestLoginAndMe(t *testing.T) {
	e := newTestEnv(t)
	e.signup(t, "jane@example.com", "Jane Doe")

	w, body := e.do(t, "POST", "/v1/auth/login", "", map[string]string{
		"email": "jane@example.com", "password": "secret123",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	token := body["token"].(string)
	require.NotEmpty(t, token)

	w, body = e.do(t, "GET", "/v1/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	user := body["user"].(map[string]interface{})
	assert.Equal(t, "jane@example.com", user["email"])
}

func TestLoginBadPassword(t *testing.T) {
	e := newTestEnv(t)
	e.signup(t, "jane@example.com", "Jane Doe")
	w, body := e.do(t, "POST", "/v1/auth/login", "", map[string]string{
		"email": "jane@example.com", "password": "wrong",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_credentials", body["code"])
}

func TestLoginWithoutClinicAssociation(t *testing.T) {
	e := newTestEnv(t)
	hash, err := auth.HashPassword("secret123")
	require.NoError(t, err)
	u := models.User{Email: "orphan@example.com", PasswordHash: hash, FullName: "Orphan"}
	require.NoError(t, e.db.Create(&u).Error)

	w, body := e.do(t, "POST", "/v1/auth/login", "", map[string]string{
		"email": "orphan@example.com", "password": "secret123",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "no_clinic_association", body["code"])
}

func TestUnauthenticatedRequest(t *testing.T) {
	e := newTestEnv(t)
	w, body := e.do(t, "GET", "/v1/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthenticated", body["code"])

	w, body = e.do(t, "GET", "/v1/me", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthenticated", body["code"])
}

func TestAddStaffSeatLimits(t *testing.T) {
	e := newTestEnv(t)
	token, clinicID := e.signup(t, "owner@example.com", "Owner")
	staffPath := "/v1/clinics/" + clinicID + "/staff"

	// the owner already fills STARTER's single doctor seat
	w, body := e.do(t, "POST", staffPath, token, map[string]interface{}{
		"email": "doc2@example.com", "role": "DOCTOR", "fullName": "Second Doctor",
	})
	assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
	assert.Equal(t, "seat_limit_exceeded", body["code"])
	assert.Equal(t, true, body["requiresUpgrade"])

	// one receptionist still fits in the staff pool
	w, body = e.do(t, "POST", staffPath, token, map[string]interface{}{
		"email": "rec1@example.com", "role": "RECEPTIONIST", "fullName": "Front Desk",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotEmpty(t, body["temporaryPassword"])

	// the pool is now full
	w, body = e.do(t, "POST", staffPath, token, map[string]interface{}{
		"email": "rec2@example.com", "role": "RECEPTIONIST", "fullName": "Front Desk Two",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "seat_limit_exceeded", body["code"])

	// admins take no seat
	w, _ = e.do(t, "POST", staffPath, token, map[string]interface{}{
		"email": "admin2@example.com", "role": "ADMIN", "fullName": "Office Manager",
	})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestInviteSingleUse(t *testing.T) {
	e := newTestEnv(t)
	token, clinicID := e.signup(t, "owner@example.com", "Owner")

	w, body := e.do(t, "POST", "/v1/clinics/"+clinicID+"/invites", token, map[string]string{
		"email": "invitee@example.com", "role": "RECEPTIONIST",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	link := body["invite"].(map[string]interface{})["inviteLink"].(string)
	inviteToken := link[strings.Index(link, "token=")+len("token="):]

	w, body = e.do(t, "POST", "/v1/auth/accept-invite", "", map[string]string{
		"token": inviteToken, "password": "welcome123", "fullName": "New Hire",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "RECEPTIONIST", body["role"])

	// second use of the same token is rejected like an unknown one
	w, body = e.do(t, "POST", "/v1/auth/accept-invite", "", map[string]string{
		"token": inviteToken, "password": "welcome123", "fullName": "New Hire",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_invite", body["code"])
}

func TestInviteRejectsSuperAdminRole(t *testing.T) {
	e := newTestEnv(t)
	token, clinicID := e.signup(t, "owner@example.com", "Owner")
	w, body := e.do(t, "POST", "/v1/clinics/"+clinicID+"/invites", token, map[string]string{
		"email": "root@example.com", "role": "SUPER_ADMIN",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", body["code"])
}

func TestTrialExpiryBlocksGatedRoutes(t *testing.T) {
	e := newTestEnv(t)
	token, clinicID := e.signup(t, "owner@example.com", "Owner")

	past := time.Now().Add(-time.Hour)
	require.NoError(t, e.db.Model(&models.Subscription{}).
		Where("clinic_id = ?", clinicID).Update("trial_ends_at", past).Error)

	w, body := e.do(t, "GET", "/v1/patients", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "trial_expired", body["code"])
	assert.Equal(t, true, body["trialExpired"])

	// the expiry was written through, so the next denial is not trial-specific
	w, body = e.do(t, "GET", "/v1/patients", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "subscription_not_active", body["code"])
}

func TestPrescriptionRequiresDoctorRole(t *testing.T) {
	e := newTestEnv(t)
	ownerToken, clinicID := e.signup(t, "owner@example.com", "Owner")

	w, body := e.do(t, "POST", "/v1/clinics/"+clinicID+"/staff", ownerToken, map[string]interface{}{
		"email": "rec@example.com", "role": "RECEPTIONIST", "fullName": "Front Desk",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	tempPassword := body["temporaryPassword"].(string)

	w, body = e.do(t, "POST", "/v1/auth/login", "", map[string]string{
		"email": "rec@example.com", "password": tempPassword,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	recToken := body["token"].(string)

	// receptionists can register patients
	w, body = e.do(t, "POST", "/v1/patients", recToken, map[string]string{
		"fullName": "Pat Patient",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	patientID := body["id"].(string)

	// but not write prescriptions
	w, body = e.do(t, "POST", "/v1/prescriptions", recToken, map[string]string{
		"patientId": patientID, "medication": "Amoxicillin",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden", body["code"])

	// the owner holds DOCTOR and can
	w, _ = e.do(t, "POST", "/v1/prescriptions", ownerToken, map[string]string{
		"patientId": patientID, "medication": "Amoxicillin",
	})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestSuperAdminRoutesRequireSuperAdmin(t *testing.T) {
	e := newTestEnv(t)
	token, _ := e.signup(t, "owner@example.com", "Owner")

	w, body := e.do(t, "GET", "/v1/superadmin/clinics", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "super_admin_required", body["code"])

	// grant SUPER_ADMIN against the System clinic and retry with a fresh session
	var u models.User
	require.NoError(t, e.db.First(&u, "email = ?", "owner@example.com").Error)
	systemID, err := store.EnsureSystemClinic(e.db)
	require.NoError(t, err)
	role, err := store.FindRole(e.db, auth.RoleSuperAdmin)
	require.NoError(t, err)
	require.NoError(t, store.GrantRole(e.db, u.ID, systemID, role.ID))

	w, body = e.do(t, "POST", "/v1/auth/login", "", map[string]string{
		"email": "owner@example.com", "password": "secret123",
	})
	require.Equal(t, http.StatusOK, w.Code)
	freshToken := body["token"].(string)

	w, _ = e.do(t, "GET", "/v1/superadmin/clinics", freshToken, nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestBillingUpgradeAndDowngrade(t *testing.T) {
	e := newTestEnv(t)
	token, clinicID := e.signup(t, "owner@example.com", "Owner")

	w, body := e.do(t, "POST", "/v1/billing/upgrade", token, map[string]string{
		"planName": "GROWTH", "billingCycle": "monthly",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var sub models.Subscription
	require.NoError(t, e.db.Preload("Plan").First(&sub, "clinic_id = ?", clinicID).Error)
	assert.Equal(t, models.StatusActive, sub.Status)
	assert.Equal(t, "GROWTH", sub.Plan.Name)
	assert.Nil(t, sub.TrialEndsAt)

	// grow usage past STARTER's doctor limit, then try to downgrade
	w, _ = e.do(t, "POST", "/v1/clinics/"+clinicID+"/staff", token, map[string]interface{}{
		"email": "doc2@example.com", "role": "DOCTOR", "fullName": "Second Doctor",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, body = e.do(t, "POST", "/v1/billing/downgrade", token, map[string]string{
		"planName": "STARTER",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Equal(t, "downgrade_blocked", body["code"])

	// nothing was written
	require.NoError(t, e.db.Preload("Plan").First(&sub, "clinic_id = ?", clinicID).Error)
	assert.Equal(t, "GROWTH", sub.Plan.Name)
}

func TestCancelIsTerminal(t *testing.T) {
	e := newTestEnv(t)
	token, clinicID := e.signup(t, "owner@example.com", "Owner")

	w, _ := e.do(t, "POST", "/v1/billing/cancel", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var sub models.Subscription
	require.NoError(t, e.db.First(&sub, "clinic_id = ?", clinicID).Error)
	assert.Equal(t, models.StatusCanceled, sub.Status)
	require.NotNil(t, sub.EndsAt)

	w, body := e.do(t, "POST", "/v1/billing/cancel", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "already_canceled", body["code"])
}

func TestSignupDuplicateEmailRace(t *testing.T) {
	e := newTestEnv(t)

	// plant a conflicting user after the duplicate pre-check has passed,
	// right before the signup transaction inserts its own row
	planted := false
	require.NoError(t, e.db.Callback().Create().Before("gorm:create").
		Register("plant_concurrent_signup", func(tx *gorm.DB) {
			if planted {
				return
			}
			if _, ok := tx.Statement.Dest.(*models.User); !ok {
				return
			}
			planted = true
			other := models.User{Email: "jane@example.com", PasswordHash: "x", FullName: "Jane First"}
			require.NoError(t, e.db.Session(&gorm.Session{NewDB: true}).Create(&other).Error)
		}))
	t.Cleanup(func() { _ = e.db.Callback().Create().Remove("plant_concurrent_signup") })

	w, body := e.do(t, "POST", "/v1/auth/signup", "", map[string]string{
		"email": "jane@example.com", "password": "secret123", "fullName": "Jane Doe",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Equal(t, "user_exists", body["code"])
	assert.True(t, planted)
}

func TestSwitchClinicGatedOnTargetPlan(t *testing.T) {
	e := newTestEnv(t)
	token, clinicA := e.signup(t, "owner@example.com", "Owner")
	clinicB := e.newClinicWithPlan(t, "Second Practice", "STARTER")
	e.grant(t, "owner@example.com", clinicB, auth.RoleDoctor)

	// the target clinic's plan does not carry multi_clinic
	w, body := e.do(t, "POST", "/v1/clinic/switch", token, map[string]string{"clinicId": clinicB})
	assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
	assert.Equal(t, "feature_not_in_plan", body["code"])
	assert.Equal(t, "multi_clinic", body["feature"])
	assert.Equal(t, "STARTER", body["currentPlan"])

	// re-selecting the current clinic is never gated
	w, _ = e.do(t, "POST", "/v1/clinic/switch", token, map[string]string{"clinicId": clinicA})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// PRO carries multi_clinic, so the switch goes through
	var pro models.Plan
	require.NoError(t, e.db.First(&pro, "name = ?", "PRO").Error)
	require.NoError(t, e.db.Model(&models.Subscription{}).
		Where("clinic_id = ?", clinicB).Update("plan_id", pro.ID).Error)

	w, body = e.do(t, "POST", "/v1/clinic/switch", token, map[string]string{"clinicId": clinicB})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, clinicB, body["clinic"].(map[string]interface{})["id"])
	assert.Contains(t, body["roles"], "DOCTOR")
	assert.NotEmpty(t, body["token"])
}

func TestSwitchClinicSuperAdminBypass(t *testing.T) {
	e := newTestEnv(t)
	hash, err := auth.HashPassword("secret123")
	require.NoError(t, err)
	require.NoError(t, e.db.Create(&models.User{
		Email: "root@example.com", PasswordHash: hash, FullName: "Root",
	}).Error)
	systemID, err := store.EnsureSystemClinic(e.db)
	require.NoError(t, err)
	e.grant(t, "root@example.com", systemID, auth.RoleSuperAdmin)
	branch1 := e.newClinicWithPlan(t, "Branch One", "STARTER")
	branch2 := e.newClinicWithPlan(t, "Branch Two", "STARTER")
	e.grant(t, "root@example.com", branch1, auth.RoleAdmin)
	e.grant(t, "root@example.com", branch2, auth.RoleAdmin)

	w, body := e.do(t, "POST", "/v1/auth/login", "", map[string]string{
		"email": "root@example.com", "password": "secret123",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	token := body["token"].(string)
	target := branch1
	if body["selectedClinic"].(map[string]interface{})["clinicId"] == branch1 {
		target = branch2
	}

	// plan gating does not apply to super admins, even between clinics
	// whose plans lack multi_clinic
	w, body = e.do(t, "POST", "/v1/clinic/switch", token, map[string]string{"clinicId": target})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, target, body["clinic"].(map[string]interface{})["id"])
	assert.Contains(t, body["roles"], "SUPER_ADMIN")
}

func TestSwitchClinicRequiresMembership(t *testing.T) {
	e := newTestEnv(t)
	token, _ := e.signup(t, "owner@example.com", "Owner")
	_, other := e.signup(t, "stranger@example.com", "Stranger")

	w, body := e.do(t, "POST", "/v1/clinic/switch", token, map[string]string{"clinicId": other})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden", body["code"])
}

func TestListDoctorsScopedToClinic(t *testing.T) {
	e := newTestEnv(t)
	token, clinicID := e.signup(t, "owner@example.com", "Owner")
	w, _ := e.do(t, "POST", "/v1/clinics/"+clinicID+"/staff", token, map[string]interface{}{
		"email": "rec@example.com", "role": "RECEPTIONIST", "fullName": "Front Desk",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// a doctor in another clinic never shows up
	e.signup(t, "other@example.com", "Other Owner")

	w, _ = e.do(t, "GET", "/v1/doctors", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var doctors []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doctors))
	require.Len(t, doctors, 1)
	assert.Equal(t, "Owner", doctors[0]["fullName"])
	assert.Equal(t, "owner@example.com", doctors[0]["email"])
}

func TestMedicineCatalog(t *testing.T) {
	e := newTestEnv(t)
	token, _ := e.signup(t, "owner@example.com", "Owner")

	w, body := e.do(t, "POST", "/v1/medicines", token, map[string]interface{}{
		"name": "Amoxicillin", "category": "Antibiotic", "strength": "500mg",
		"form": "capsule", "priceCents": 1200, "stockQuantity": 40, "reorderLevel": 10,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	medID := body["id"].(string)
	assert.Equal(t, true, body["is_active"])

	w, _ = e.do(t, "POST", "/v1/medicines", token, map[string]string{"category": "Antibiotic"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = e.do(t, "PATCH", "/v1/medicines/"+medID, token, map[string]interface{}{
		"stockQuantity": 25, "description": "broad-spectrum antibiotic",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(25), body["stock_quantity"])
	assert.Equal(t, "Amoxicillin", body["name"])

	// the catalog is clinic-scoped
	otherToken, _ := e.signup(t, "other@example.com", "Other Owner")
	w, _ = e.do(t, "GET", "/v1/medicines", otherToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var medicines []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &medicines))
	assert.Empty(t, medicines)

	w, body = e.do(t, "PATCH", "/v1/medicines/"+medID, otherToken, map[string]interface{}{"stockQuantity": 0})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", body["code"])

	w, _ = e.do(t, "DELETE", "/v1/medicines/"+medID, token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w, _ = e.do(t, "GET", "/v1/medicines", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &medicines))
	assert.Empty(t, medicines)
}
