package clinic

import (
	"context"
	"errors"
	"sort"

	"gorm.io/gorm"

	"cliniccore/internal/auth"
	"cliniccore/internal/models"
)

// ErrNoClinicAssociation means the user has zero clinic-role rows. Login
// and token refresh must reject rather than issue a roleless session.
var ErrNoClinicAssociation = errors.New("user has no clinic association")

// ClinicRoles is one clinic's projected role set for a user.
type ClinicRoles struct {
	ClinicID   string          `json:"clinicId"`
	ClinicName string          `json:"clinicName"`
	Roles      []auth.RoleName `json:"roles"`
}

// Projection aggregates a user's clinic-role rows. IsSuperAdmin is a
// user-global property, independent of which clinic is active.
type Projection struct {
	Clinics      []ClinicRoles
	IsSuperAdmin bool
}

// Projector is the single place that derives per-clinic role lists. Every
// entry point that issues or refreshes a session goes through it.
type Projector struct {
	db             *gorm.DB
	systemClinicID string
}

func NewProjector(db *gorm.DB, systemClinicID string) *Projector {
	return &Projector{db: db, systemClinicID: systemClinicID}
}

// Project fetches all of the user's clinic-role rows and groups them by
// clinic with deduplicated role sets, in a stable order. An empty result
// is ErrNoClinicAssociation.
func (p *Projector) Project(ctx context.Context, userID string) (Projection, error) {
	var rows []models.ClinicUserRole
	err := p.db.WithContext(ctx).
		Preload("Clinic").Preload("Role").
		Where("user_id = ?", userID).
		Find(&rows).Error
	if err != nil {
		return Projection{}, err
	}
	if len(rows) == 0 {
		return Projection{}, ErrNoClinicAssociation
	}

	byClinic := make(map[string]map[auth.RoleName]bool)
	names := make(map[string]string)
	super := false
	for _, row := range rows {
		role, err := auth.ParseRoleName(row.Role.Name)
		if err != nil {
			// storage holds a role outside the closed set
			return Projection{}, err
		}
		if role == auth.RoleSuperAdmin {
			super = true
		}
		if byClinic[row.ClinicID] == nil {
			byClinic[row.ClinicID] = make(map[auth.RoleName]bool)
		}
		byClinic[row.ClinicID][role] = true
		names[row.ClinicID] = row.Clinic.Name
	}

	clinics := make([]ClinicRoles, 0, len(byClinic))
	for id, set := range byClinic {
		roles := make([]auth.RoleName, 0, len(set))
		for r := range set {
			roles = append(roles, r)
		}
		sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
		clinics = append(clinics, ClinicRoles{ClinicID: id, ClinicName: names[id], Roles: roles})
	}
	sort.Slice(clinics, func(i, j int) bool { return clinics[i].ClinicID < clinics[j].ClinicID })

	return Projection{Clinics: clinics, IsSuperAdmin: super}, nil
}

// DefaultClinic picks the login clinic: any clinic other than the reserved
// System clinic, else the first by stable order.
func (p *Projector) DefaultClinic(pr Projection) ClinicRoles {
	for _, c := range pr.Clinics {
		if c.ClinicID != p.systemClinicID {
			return c
		}
	}
	return pr.Clinics[0]
}

// Find returns the projected roles for one clinic, if the user has any.
func (pr Projection) Find(clinicID string) (ClinicRoles, bool) {
	for _, c := range pr.Clinics {
		if c.ClinicID == clinicID {
			return c, true
		}
	}
	return ClinicRoles{}, false
}

// TokenRoles is the role list embedded in a session token for the given
// clinic. Super admins carry SUPER_ADMIN regardless of the active clinic,
// even though the association is stored against the System clinic.
func (pr Projection) TokenRoles(c ClinicRoles) []auth.RoleName {
	roles := make([]auth.RoleName, len(c.Roles))
	copy(roles, c.Roles)
	if pr.IsSuperAdmin {
		found := false
		for _, r := range roles {
			if r == auth.RoleSuperAdmin {
				found = true
				break
			}
		}
		if !found {
			roles = append(roles, auth.RoleSuperAdmin)
		}
	}
	return roles
}
