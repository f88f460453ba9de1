package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"cliniccore/internal/auth"
	"cliniccore/internal/clinic"
	"cliniccore/internal/mailer"
	"cliniccore/internal/models"
	"cliniccore/internal/store"
)

const (
	trialDays          = 14
	verificationExpiry = 24 * time.Hour
)

type signupReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
}

// Signup creates the user, their clinic, the DOCTOR+ADMIN associations and
// a trialing STARTER subscription in one transaction, then issues a
// session for the new clinic.
func Signup(db *gorm.DB, codec *auth.Codec, ml mailer.Mailer, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req signupReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "bad_request", err.Error(), nil)
			return
		}
		req.Email = strings.TrimSpace(strings.ToLower(req.Email))
		req.FullName = strings.TrimSpace(req.FullName)
		if req.Email == "" || req.Password == "" || req.FullName == "" {
			respondError(w, http.StatusBadRequest, "missing_fields", "email, password, and full name are required",
				map[string]interface{}{"missingFields": map[string]bool{
					"email": req.Email == "", "password": req.Password == "", "fullName": req.FullName == "",
				}})
			return
		}

		var count int64
		db.Model(&models.User{}).Where("email = ?", req.Email).Count(&count)
		if count > 0 {
			respondError(w, http.StatusBadRequest, "user_exists", "user already exists", nil)
			return
		}

		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		verifyToken, err := newSecureToken()
		if err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		verifyExpires := time.Now().Add(verificationExpiry)

		user := models.User{
			Email:               req.Email,
			PasswordHash:        hash,
			FullName:            req.FullName,
			VerificationToken:   &verifyToken,
			VerificationExpires: &verifyExpires,
		}
		newClinic := models.Clinic{Name: req.FullName + "'s Clinic"}

		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&user).Error; err != nil {
				return err
			}
			if err := tx.Create(&newClinic).Error; err != nil {
				return err
			}
			doctorRole, err := store.FindRole(tx, auth.RoleDoctor)
			if err != nil {
				return err
			}
			adminRole, err := store.FindRole(tx, auth.RoleAdmin)
			if err != nil {
				return err
			}
			if err := store.GrantRole(tx, user.ID, newClinic.ID, doctorRole.ID); err != nil {
				return err
			}
			if err := store.GrantRole(tx, user.ID, newClinic.ID, adminRole.ID); err != nil {
				return err
			}
			var starter models.Plan
			if err := tx.First(&starter, "name = ?", "STARTER").Error; err != nil {
				return err
			}
			now := time.Now()
			trialEnd := now.AddDate(0, 0, trialDays)
			sub := models.Subscription{
				ClinicID:           newClinic.ID,
				PlanID:             starter.ID,
				Status:             models.StatusTrialing,
				TrialEndsAt:        &trialEnd,
				CurrentPeriodStart: &now,
				CurrentPeriodEnd:   &trialEnd,
			}
			return tx.Create(&sub).Error
		})
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost a race with a concurrent signup for the same email.
			respondError(w, http.StatusBadRequest, "user_exists", "user already exists", nil)
			return
		}
		if err != nil {
			lg.Errorw("signup failed", "email", req.Email, "error", err)
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}

		if err := ml.SendVerification(user.Email, user.FullName, verifyToken); err != nil {
			lg.Warnw("verification email failed", "email", user.Email, "error", err)
		}
		if err := ml.SendWelcome(user.Email, user.FullName, newClinic.Name); err != nil {
			lg.Warnw("welcome email failed", "email", user.Email, "error", err)
		}

		roles := []auth.RoleName{auth.RoleDoctor, auth.RoleAdmin}
		token, err := codec.Issue(user.ID, newClinic.ID, roles)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "token error", nil)
			return
		}
		setSessionCookie(w, token, codec.TTL())
		respondStatus(w, http.StatusCreated, map[string]interface{}{
			"user":   map[string]interface{}{"id": user.ID, "email": user.Email, "fullName": user.FullName},
			"clinic": map[string]interface{}{"id": newClinic.ID, "name": newClinic.Name},
			"roles":  roles,
			"token":  token,
		})
	}
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates credentials, projects clinic roles fresh from the
// store, and issues a session for the default clinic.
func Login(db *gorm.DB, codec *auth.Codec, proj *clinic.Projector, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "bad_request", err.Error(), nil)
			return
		}
		var user models.User
		if err := db.First(&user, "email = ?", strings.ToLower(strings.TrimSpace(req.Email))).Error; err != nil {
			respondError(w, http.StatusBadRequest, "invalid_credentials", "invalid credentials", nil)
			return
		}
		if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_credentials", "invalid credentials", nil)
			return
		}
		now := time.Now()
		db.Model(&user).Update("last_login", now)

		projection, err := proj.Project(r.Context(), user.ID)
		if err != nil {
			if errors.Is(err, clinic.ErrNoClinicAssociation) {
				lg.Errorw("login without clinic association", "user_id", user.ID, "email", user.Email)
				respondError(w, http.StatusForbidden, "no_clinic_association",
					"your account is not associated with any clinic, please contact your system administrator", nil)
				return
			}
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}

		selected := proj.DefaultClinic(projection)
		roles := projection.TokenRoles(selected)
		token, err := codec.Issue(user.ID, selected.ClinicID, roles)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "token error", nil)
			return
		}
		setSessionCookie(w, token, codec.TTL())
		respondJSON(w, map[string]interface{}{
			"user":           map[string]interface{}{"id": user.ID, "email": user.Email, "fullName": user.FullName},
			"clinics":        projection.Clinics,
			"selectedClinic": selected,
			"roles":          roles,
			"token":          token,
		})
	}
}

// Me re-derives roles from the store and re-issues a refreshed token, so a
// role revoked mid-session takes effect here rather than at token expiry.
func Me(db *gorm.DB, codec *auth.Codec, proj *clinic.Projector, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var user models.User
		if err := db.First(&user, "id = ?", p.UserID).Error; err != nil {
			respondError(w, http.StatusNotFound, "not_found", "user not found", nil)
			return
		}
		projection, err := proj.Project(r.Context(), p.UserID)
		if err != nil {
			if errors.Is(err, clinic.ErrNoClinicAssociation) {
				respondError(w, http.StatusForbidden, "no_clinic_association",
					"your account is not associated with any clinic, please contact your system administrator", nil)
				return
			}
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		current, ok := projection.Find(p.ClinicID)
		if !ok {
			current = proj.DefaultClinic(projection)
		}
		roles := projection.TokenRoles(current)
		token, err := codec.Issue(user.ID, current.ClinicID, roles)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "token error", nil)
			return
		}
		setSessionCookie(w, token, codec.TTL())
		respondJSON(w, map[string]interface{}{
			"user": map[string]interface{}{
				"id": user.ID, "email": user.Email, "fullName": user.FullName,
				"emailVerified": user.EmailVerified,
			},
			"clinics":       projection.Clinics,
			"currentClinic": map[string]interface{}{"clinicId": current.ClinicID, "roles": roles},
		})
	}
}

func Logout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clearSessionCookie(w)
		respondJSON(w, map[string]interface{}{"message": "logged out"})
	}
}

// VerifyEmail consumes a verification token once and redirects to the
// frontend login page.
func VerifyEmail(db *gorm.DB, frontendURL string, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			respondError(w, http.StatusBadRequest, "missing_token", "token is required", nil)
			return
		}
		var user models.User
		if err := db.First(&user, "verification_token = ?", token).Error; err != nil {
			respondError(w, http.StatusBadRequest, "invalid_token", "invalid or expired verification token", nil)
			return
		}
		if user.VerificationExpires == nil || time.Now().After(*user.VerificationExpires) {
			respondError(w, http.StatusBadRequest, "invalid_token", "invalid or expired verification token", nil)
			return
		}
		err := db.Model(&user).Updates(map[string]interface{}{
			"email_verified":       true,
			"verification_token":   nil,
			"verification_expires": nil,
		}).Error
		if err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		http.Redirect(w, r, frontendURL+"/login?verified=true", http.StatusFound)
	}
}

func ResendVerification(db *gorm.DB, ml mailer.Mailer, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email string `json:"email"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
			respondError(w, http.StatusBadRequest, "bad_request", "email is required", nil)
			return
		}
		var user models.User
		if err := db.First(&user, "email = ?", strings.ToLower(req.Email)).Error; err != nil {
			respondError(w, http.StatusNotFound, "not_found", "user not found", nil)
			return
		}
		if user.EmailVerified {
			respondError(w, http.StatusBadRequest, "already_verified", "email is already verified", nil)
			return
		}
		token, err := newSecureToken()
		if err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		expires := time.Now().Add(verificationExpiry)
		err = db.Model(&user).Updates(map[string]interface{}{
			"verification_token":   token,
			"verification_expires": expires,
		}).Error
		if err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		if err := ml.SendVerification(user.Email, user.FullName, token); err != nil {
			lg.Warnw("verification email failed", "email", user.Email, "error", err)
		}
		respondJSON(w, map[string]interface{}{"message": "verification email resent"})
	}
}

type acceptInviteReq struct {
	Token    string `json:"token"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
}

// AcceptInvite consumes an invite token exactly once. Expired, already
// accepted and unknown tokens all get the same rejection so the endpoint
// is not a token-guessing oracle.
func AcceptInvite(db *gorm.DB, codec *auth.Codec, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req acceptInviteReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
			respondError(w, http.StatusBadRequest, "bad_request", "invitation token is required", nil)
			return
		}
		hashed := sha256Hex(req.Token)

		var invite models.Invite
		var user models.User
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Preload("Clinic").Preload("Role").
				First(&invite, "token_hash = ? AND accepted_at IS NULL", hashed).Error; err != nil {
				return errInvalidInvite
			}
			if time.Now().After(invite.ExpiresAt) {
				return errInvalidInvite
			}

			err := tx.First(&user, "email = ?", invite.Email).Error
			switch {
			case err == nil:
				var existing int64
				tx.Model(&models.ClinicUserRole{}).
					Where("user_id = ? AND clinic_id = ? AND role_id = ?", user.ID, invite.ClinicID, invite.RoleID).
					Count(&existing)
				if existing > 0 {
					return errRoleExists
				}
				if err := store.GrantRole(tx, user.ID, invite.ClinicID, invite.RoleID); err != nil {
					return err
				}
			case errors.Is(err, gorm.ErrRecordNotFound):
				if req.Password == "" || req.FullName == "" {
					return errNewUserFields
				}
				hash, err := auth.HashPassword(req.Password)
				if err != nil {
					return err
				}
				user = models.User{Email: invite.Email, PasswordHash: hash, FullName: req.FullName}
				if err := tx.Create(&user).Error; err != nil {
					return err
				}
				if err := store.GrantRole(tx, user.ID, invite.ClinicID, invite.RoleID); err != nil {
					return err
				}
			default:
				return err
			}

			now := time.Now()
			return tx.Model(&invite).Update("accepted_at", now).Error
		})
		switch {
		case errors.Is(err, errInvalidInvite):
			respondError(w, http.StatusBadRequest, "invalid_invite", "invalid or expired invitation", nil)
			return
		case errors.Is(err, errRoleExists):
			respondError(w, http.StatusBadRequest, "role_exists", "you already have this role in this clinic", nil)
			return
		case errors.Is(err, errNewUserFields):
			respondError(w, http.StatusBadRequest, "missing_fields", "password and full name are required for new users", nil)
			return
		case err != nil:
			lg.Errorw("accept invite failed", "error", err)
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}

		role, err := auth.ParseRoleName(invite.Role.Name)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		token, err := codec.Issue(user.ID, invite.ClinicID, []auth.RoleName{role})
		if err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "token error", nil)
			return
		}
		setSessionCookie(w, token, codec.TTL())
		respondJSON(w, map[string]interface{}{
			"message": "invitation accepted",
			"user":    map[string]interface{}{"id": user.ID, "email": user.Email, "fullName": user.FullName},
			"clinic":  map[string]interface{}{"id": invite.ClinicID, "name": invite.Clinic.Name},
			"role":    role,
			"token":   token,
		})
	}
}

var (
	errInvalidInvite = errors.New("invalid invite")
	errRoleExists    = errors.New("role already held")
	errNewUserFields = errors.New("new user fields missing")
)

func GetProfile(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var user models.User
		if err := db.First(&user, "id = ?", p.UserID).Error; err != nil {
			respondError(w, http.StatusNotFound, "not_found", "user not found", nil)
			return
		}
		respondJSON(w, map[string]interface{}{"user": user})
	}
}

func UpdateProfile(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var req struct {
			FullName     string  `json:"fullName"`
			Email        string  `json:"email"`
			ProfileImage *string `json:"profileImage"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "bad_request", err.Error(), nil)
			return
		}
		if req.FullName == "" || req.Email == "" {
			respondError(w, http.StatusBadRequest, "missing_fields", "full name and email are required", nil)
			return
		}
		var user models.User
		if err := db.First(&user, "id = ?", p.UserID).Error; err != nil {
			respondError(w, http.StatusNotFound, "not_found", "user not found", nil)
			return
		}
		user.FullName = req.FullName
		user.Email = strings.ToLower(strings.TrimSpace(req.Email))
		user.ProfileImage = req.ProfileImage
		if err := db.Save(&user).Error; err != nil {
			respondError(w, http.StatusBadRequest, "email_in_use", "email already in use or constraint violation", nil)
			return
		}
		respondJSON(w, map[string]interface{}{"message": "profile updated"})
	}
}
