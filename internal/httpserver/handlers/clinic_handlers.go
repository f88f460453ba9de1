package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"cliniccore/internal/auth"
	"cliniccore/internal/billing"
	"cliniccore/internal/clinic"
	"cliniccore/internal/mailer"
	"cliniccore/internal/models"
	"cliniccore/internal/store"
)

const inviteExpiryDays = 7

// isMember reports whether the user holds any role in the clinic. Super
// admins pass everywhere.
func isMember(db *gorm.DB, p auth.Principal, clinicID string) bool {
	if p.IsSuperAdmin() {
		return true
	}
	var n int64
	db.Model(&models.ClinicUserRole{}).
		Where("user_id = ? AND clinic_id = ?", p.UserID, clinicID).
		Count(&n)
	return n > 0
}

func requireMembership(w http.ResponseWriter, db *gorm.DB, p auth.Principal, clinicID string) bool {
	if !isMember(db, p, clinicID) {
		respondError(w, http.StatusForbidden, "forbidden", "you do not have access to this clinic", nil)
		return false
	}
	return true
}

// CreateInvite mints a 32-byte invite token, stores only its sha256, and
// returns the link exactly once.
func CreateInvite(db *gorm.DB, ml mailer.Mailer, frontendURL string, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		clinicID := chi.URLParam(r, "clinicID")
		if !requireMembership(w, db, p, clinicID) {
			return
		}
		var req struct {
			Email string `json:"email"`
			Role  string `json:"role"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Role == "" {
			respondError(w, http.StatusBadRequest, "missing_fields", "email and role are required", nil)
			return
		}
		var target models.Clinic
		if err := db.First(&target, "id = ?", clinicID).Error; err != nil {
			respondError(w, http.StatusNotFound, "not_found", "clinic not found", nil)
			return
		}
		roleName, err := auth.ParseRoleName(req.Role)
		if err != nil || roleName == auth.RoleSuperAdmin {
			respondError(w, http.StatusNotFound, "not_found", "role not found", nil)
			return
		}
		role, err := store.FindRole(db, roleName)
		if err != nil {
			respondError(w, http.StatusNotFound, "not_found", "role not found", nil)
			return
		}

		token, err := newSecureToken()
		if err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		invite := models.Invite{
			Email:     strings.ToLower(strings.TrimSpace(req.Email)),
			ClinicID:  clinicID,
			RoleID:    role.ID,
			TokenHash: sha256Hex(token),
			ExpiresAt: time.Now().AddDate(0, 0, inviteExpiryDays),
			CreatedBy: p.UserID,
		}
		if err := db.Create(&invite).Error; err != nil {
			lg.Errorw("create invite failed", "clinic_id", clinicID, "error", err)
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		inviteLink := frontendURL + "/accept-invite?token=" + token
		if err := ml.SendInvite(invite.Email, target.Name, inviteLink); err != nil {
			lg.Warnw("invite email failed", "email", invite.Email, "error", err)
		}
		respondStatus(w, http.StatusCreated, map[string]interface{}{
			"message": "invitation created",
			"invite": map[string]interface{}{
				"id": invite.ID, "email": invite.Email, "clinicName": target.Name,
				"roleName": role.Name, "expiresAt": invite.ExpiresAt, "inviteLink": inviteLink,
			},
		})
	}
}

func ListInvites(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		clinicID := chi.URLParam(r, "clinicID")
		if !requireMembership(w, db, p, clinicID) {
			return
		}
		var invites []models.Invite
		if err := db.Preload("Role").Where("clinic_id = ?", clinicID).
			Order("created_at desc").Find(&invites).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		out := make([]map[string]interface{}, 0, len(invites))
		for _, inv := range invites {
			out = append(out, map[string]interface{}{
				"id": inv.ID, "email": inv.Email, "roleName": inv.Role.Name,
				"expiresAt": inv.ExpiresAt, "acceptedAt": inv.AcceptedAt, "createdAt": inv.CreatedAt,
			})
		}
		respondJSON(w, out)
	}
}

type addStaffReq struct {
	Email         string `json:"email"`
	Role          string `json:"role"`
	FullName      string `json:"fullName"`
	AlsoMakeAdmin bool   `json:"alsoMakeAdmin"`
}

// AddStaff creates the user if needed and grants the role, with the
// seat-limit count and the insert in one transaction so two concurrent
// additions cannot both slip under the limit.
func AddStaff(db *gorm.DB, gate *billing.Gate, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		clinicID := chi.URLParam(r, "clinicID")
		if !requireMembership(w, db, p, clinicID) {
			return
		}
		var req addStaffReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Role == "" || req.FullName == "" {
			respondError(w, http.StatusBadRequest, "missing_fields", "email, role, and full name are required", nil)
			return
		}
		roleName, err := auth.ParseRoleName(req.Role)
		if err != nil || roleName == auth.RoleSuperAdmin {
			respondError(w, http.StatusNotFound, "not_found", "role not found", nil)
			return
		}
		if _, err := gate.RequireActiveSubscription(r.Context(), clinicID); err != nil {
			respondGateError(w, err)
			return
		}

		var user models.User
		var tempPassword *string
		err = db.Transaction(func(tx *gorm.DB) error {
			role, err := store.FindRole(tx, roleName)
			if err != nil {
				return err
			}
			email := strings.ToLower(strings.TrimSpace(req.Email))
			err = tx.First(&user, "email = ?", email).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				pw, err := newSecureToken()
				if err != nil {
					return err
				}
				pw = pw[:12]
				hash, err := auth.HashPassword(pw)
				if err != nil {
					return err
				}
				user = models.User{Email: email, PasswordHash: hash, FullName: req.FullName, TempPassword: &pw}
				if err := tx.Create(&user).Error; err != nil {
					return err
				}
				tempPassword = &pw
			} else if err != nil {
				return err
			}

			var existing int64
			tx.Model(&models.ClinicUserRole{}).
				Where("user_id = ? AND clinic_id = ? AND role_id = ?", user.ID, clinicID, role.ID).
				Count(&existing)
			if existing > 0 {
				return errRoleExists
			}
			if err := gate.CheckSeatLimit(r.Context(), tx, clinicID, roleName); err != nil {
				return err
			}
			if err := store.GrantRole(tx, user.ID, clinicID, role.ID); err != nil {
				return err
			}
			if req.AlsoMakeAdmin && roleName != auth.RoleAdmin {
				adminRole, err := store.FindRole(tx, auth.RoleAdmin)
				if err != nil {
					return err
				}
				if err := store.GrantRole(tx, user.ID, clinicID, adminRole.ID); err != nil {
					return err
				}
			}
			return nil
		})
		if errors.Is(err, errRoleExists) {
			respondError(w, http.StatusBadRequest, "role_exists", "staff member already exists in this clinic with this role", nil)
			return
		}
		if err != nil {
			var seatErr *billing.SeatLimitError
			if errors.As(err, &seatErr) || errors.Is(err, billing.ErrNoSubscription) {
				respondGateError(w, err)
				return
			}
			lg.Errorw("add staff failed", "clinic_id", clinicID, "error", err)
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}

		resp := map[string]interface{}{
			"message": "staff member added",
			"user": map[string]interface{}{
				"id": user.ID, "email": user.Email, "fullName": user.FullName, "role": roleName,
			},
		}
		if tempPassword != nil {
			resp["temporaryPassword"] = *tempPassword
		}
		respondStatus(w, http.StatusCreated, resp)
	}
}

// ListStaff groups a clinic's association rows into one entry per user
// with a joined role list.
func ListStaff(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		clinicID := chi.URLParam(r, "clinicID")
		if !requireMembership(w, db, p, clinicID) {
			return
		}
		var rows []models.ClinicUserRole
		if err := db.Preload("User").Preload("Role").
			Where("clinic_id = ?", clinicID).Find(&rows).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "error fetching staff", nil)
			return
		}
		type staffEntry struct {
			ID           string  `json:"id"`
			Email        string  `json:"email"`
			FullName     string  `json:"fullName"`
			TempPassword *string `json:"tempPassword,omitempty"`
			ProfileImage *string `json:"profileImage,omitempty"`
			RoleName     string  `json:"roleName"`
			roles        []string
		}
		order := make([]string, 0)
		byUser := make(map[string]*staffEntry)
		for _, row := range rows {
			e, ok := byUser[row.UserID]
			if !ok {
				e = &staffEntry{
					ID: row.User.ID, Email: row.User.Email, FullName: row.User.FullName,
					TempPassword: row.User.TempPassword, ProfileImage: row.User.ProfileImage,
				}
				byUser[row.UserID] = e
				order = append(order, row.UserID)
			}
			e.roles = append(e.roles, row.Role.Name)
		}
		out := make([]staffEntry, 0, len(order))
		for _, id := range order {
			e := byUser[id]
			e.RoleName = strings.Join(e.roles, ", ")
			out = append(out, *e)
		}
		respondJSON(w, out)
	}
}

type updateStaffReq struct {
	FullName      string  `json:"fullName"`
	Email         string  `json:"email"`
	Role          string  `json:"role"`
	AlsoMakeAdmin *bool   `json:"alsoMakeAdmin"`
	ProfileImage  *string `json:"profileImage"`
}

// UpdateStaff swaps the member's primary role and toggles the extra ADMIN
// grant in one transaction. A swap that adds a doctor seat is seat-checked
// after the old primary roles are removed.
func UpdateStaff(db *gorm.DB, gate *billing.Gate, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		clinicID := chi.URLParam(r, "clinicID")
		userID := chi.URLParam(r, "userID")
		if !requireMembership(w, db, p, clinicID) {
			return
		}
		var req updateStaffReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "bad_request", err.Error(), nil)
			return
		}

		err := db.Transaction(func(tx *gorm.DB) error {
			if req.FullName != "" || req.Email != "" || req.ProfileImage != nil {
				updates := map[string]interface{}{}
				if req.FullName != "" {
					updates["full_name"] = req.FullName
				}
				if req.Email != "" {
					updates["email"] = strings.ToLower(strings.TrimSpace(req.Email))
				}
				if req.ProfileImage != nil {
					updates["profile_image"] = *req.ProfileImage
				}
				if err := tx.Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
					return err
				}
			}

			if req.Role != "" {
				roleName, err := auth.ParseRoleName(req.Role)
				if err != nil || roleName == auth.RoleSuperAdmin {
					return errRoleNotFound
				}
				role, err := store.FindRole(tx, roleName)
				if err != nil {
					return errRoleNotFound
				}
				if roleName != auth.RoleAdmin {
					err = tx.Where(
						"user_id = ? AND clinic_id = ? AND role_id IN (?)",
						userID, clinicID,
						tx.Model(&models.Role{}).Select("id").
							Where("name IN ?", []string{string(auth.RoleDoctor), string(auth.RoleReceptionist)}),
					).Delete(&models.ClinicUserRole{}).Error
					if err != nil {
						return err
					}
					if err := gate.CheckSeatLimit(r.Context(), tx, clinicID, roleName); err != nil {
						return err
					}
				}
				if err := store.GrantRole(tx, userID, clinicID, role.ID); err != nil {
					return err
				}
			}

			if req.AlsoMakeAdmin != nil {
				adminRole, err := store.FindRole(tx, auth.RoleAdmin)
				if err != nil {
					return err
				}
				if *req.AlsoMakeAdmin {
					if err := store.GrantRole(tx, userID, clinicID, adminRole.ID); err != nil {
						return err
					}
				} else {
					err = tx.Where("user_id = ? AND clinic_id = ? AND role_id = ?", userID, clinicID, adminRole.ID).
						Delete(&models.ClinicUserRole{}).Error
					if err != nil {
						return err
					}
				}
			}
			return nil
		})
		if errors.Is(err, errRoleNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "role not found", nil)
			return
		}
		if err != nil {
			var seatErr *billing.SeatLimitError
			if errors.As(err, &seatErr) || errors.Is(err, billing.ErrNoSubscription) {
				respondGateError(w, err)
				return
			}
			lg.Errorw("update staff failed", "clinic_id", clinicID, "user_id", userID, "error", err)
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		respondJSON(w, map[string]interface{}{"message": "staff member updated"})
	}
}

var errRoleNotFound = errors.New("role not found")

func RemoveStaff(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		clinicID := chi.URLParam(r, "clinicID")
		userID := chi.URLParam(r, "userID")
		if !requireMembership(w, db, p, clinicID) {
			return
		}
		err := db.Where("user_id = ? AND clinic_id = ?", userID, clinicID).
			Delete(&models.ClinicUserRole{}).Error
		if err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		respondJSON(w, map[string]interface{}{"message": "staff member removed from clinic"})
	}
}

func ResetStaffPassword(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		clinicID := chi.URLParam(r, "clinicID")
		userID := chi.URLParam(r, "userID")
		if !requireMembership(w, db, p, clinicID) {
			return
		}
		var n int64
		db.Model(&models.ClinicUserRole{}).
			Where("user_id = ? AND clinic_id = ?", userID, clinicID).Count(&n)
		if n == 0 {
			respondError(w, http.StatusNotFound, "not_found", "staff member not found in this clinic", nil)
			return
		}
		pw, err := newSecureToken()
		if err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		pw = pw[:12]
		hash, err := auth.HashPassword(pw)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		err = db.Model(&models.User{}).Where("id = ?", userID).
			Updates(map[string]interface{}{"password_hash": hash, "temp_password": pw}).Error
		if err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			return
		}
		respondJSON(w, map[string]interface{}{"message": "password reset", "temporaryPassword": pw})
	}
}

// SwitchClinic re-derives roles for the target clinic and issues a fresh
// token. Operating across several clinics is gated on the target plan's
// multi_clinic feature, except for super admins.
func SwitchClinic(db *gorm.DB, codec *auth.Codec, proj *clinic.Projector, gate *billing.Gate, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var req struct {
			ClinicID string `json:"clinicId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ClinicID == "" {
			respondError(w, http.StatusBadRequest, "missing_fields", "clinic ID is required", nil)
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
		target, ok := projection.Find(req.ClinicID)
		if !ok {
			respondError(w, http.StatusForbidden, "forbidden", "you do not have access to this clinic", nil)
			return
		}
		if !projection.IsSuperAdmin && len(projection.Clinics) > 1 && req.ClinicID != p.ClinicID {
			if err := gate.RequireFeature(r.Context(), req.ClinicID, "multi_clinic"); err != nil {
				var featErr *billing.FeatureError
				if errors.As(err, &featErr) || errors.Is(err, billing.ErrNoSubscription) {
					respondGateError(w, err)
					return
				}
				respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
				return
			}
		}

		var target2 models.Clinic
		if err := db.First(&target2, "id = ?", req.ClinicID).Error; err != nil {
			respondError(w, http.StatusNotFound, "not_found", "clinic not found", nil)
			return
		}
		roles := projection.TokenRoles(target)
		token, err := codec.Issue(p.UserID, req.ClinicID, roles)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "token error", nil)
			return
		}
		setSessionCookie(w, token, codec.TTL())
		respondJSON(w, map[string]interface{}{
			"message": "clinic switched",
			"clinic":  map[string]interface{}{"id": target2.ID, "name": target2.Name},
			"roles":   roles,
			"token":   token,
		})
	}
}

func GetClinic(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		clinicID := chi.URLParam(r, "clinicID")
		if !requireMembership(w, db, p, clinicID) {
			return
		}
		var c models.Clinic
		if err := db.First(&c, "id = ?", clinicID).Error; err != nil {
			respondError(w, http.StatusNotFound, "not_found", "clinic not found", nil)
			return
		}
		respondJSON(w, c)
	}
}

func UpdateClinic(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		clinicID := chi.URLParam(r, "clinicID")
		if !requireMembership(w, db, p, clinicID) {
			return
		}
		var req struct {
			Name    *string `json:"name"`
			Address *string `json:"address"`
			Phone   *string `json:"phone"`
			Email   *string `json:"email"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "bad_request", err.Error(), nil)
			return
		}
		updates := map[string]interface{}{}
		if req.Name != nil {
			updates["name"] = *req.Name
		}
		if req.Address != nil {
			updates["address"] = *req.Address
		}
		if req.Phone != nil {
			updates["phone"] = *req.Phone
		}
		if req.Email != nil {
			updates["email"] = *req.Email
		}
		if len(updates) > 0 {
			if err := db.Model(&models.Clinic{}).Where("id = ?", clinicID).Updates(updates).Error; err != nil {
				respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
				return
			}
		}
		respondJSON(w, map[string]interface{}{"message": "clinic updated"})
	}
}
