package types

import (
	"time"

	"github.com/google/uuid"
)

// Role is the administrative role carried by a permission grant.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleModerator  Role = "moderator"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleModerator:
		return true
	}
	return false
}

// Capability names a single permission flag.
type Capability string

const (
	CapManageUsers      Capability = "manageUsers"
	CapDeleteUsers      Capability = "deleteUsers"
	CapManageImages     Capability = "manageImages"
	CapDeleteImages     Capability = "deleteImages"
	CapManageCategories Capability = "manageCategories"
	CapManageAdmins     Capability = "manageAdmins"
	CapViewDashboard    Capability = "viewDashboard"
)

// Capabilities lists every capability in a stable order.
var Capabilities = []Capability{
	CapManageUsers,
	CapDeleteUsers,
	CapManageImages,
	CapDeleteImages,
	CapManageCategories,
	CapManageAdmins,
	CapViewDashboard,
}

// Permissions is the fixed set of capability flags stored on a grant.
type Permissions struct {
	ManageUsers      bool `json:"manageUsers" db:"manage_users"`
	DeleteUsers      bool `json:"deleteUsers" db:"delete_users"`
	ManageImages     bool `json:"manageImages" db:"manage_images"`
	DeleteImages     bool `json:"deleteImages" db:"delete_images"`
	ManageCategories bool `json:"manageCategories" db:"manage_categories"`
	ManageAdmins     bool `json:"manageAdmins" db:"manage_admins"`
	ViewDashboard    bool `json:"viewDashboard" db:"view_dashboard"`
}

// Has reports the stored flag for c. Unknown capabilities are never set.
func (p Permissions) Has(c Capability) bool {
	switch c {
	case CapManageUsers:
		return p.ManageUsers
	case CapDeleteUsers:
		return p.DeleteUsers
	case CapManageImages:
		return p.ManageImages
	case CapDeleteImages:
		return p.DeleteImages
	case CapManageCategories:
		return p.ManageCategories
	case CapManageAdmins:
		return p.ManageAdmins
	case CapViewDashboard:
		return p.ViewDashboard
	}
	return false
}

// AllPermissions returns a set with every flag enabled.
func AllPermissions() Permissions {
	return Permissions{
		ManageUsers:      true,
		DeleteUsers:      true,
		ManageImages:     true,
		DeleteImages:     true,
		ManageCategories: true,
		ManageAdmins:     true,
		ViewDashboard:    true,
	}
}

// DefaultPermissions returns the flags a new grant for role receives
// when the caller does not specify any.
func DefaultPermissions(role Role) Permissions {
	switch role {
	case RoleSuperAdmin:
		return AllPermissions()
	case RoleAdmin:
		p := AllPermissions()
		p.ManageAdmins = false
		return p
	case RoleModerator:
		return Permissions{ManageImages: true, DeleteImages: true, ViewDashboard: true}
	}
	return Permissions{}
}

// PermissionGrant records an account's administrative role and capabilities.
// There is at most one grant per account.
type PermissionGrant struct {
	// UserID is the account the grant belongs to and the grant's identity.
	UserID uuid.UUID `json:"userId" db:"user_id"`

	// Role supersedes the flags when it is super_admin.
	Role Role `json:"role" db:"role"`

	Permissions Permissions `json:"permissions"`

	// GrantedBy references the super-admin who created the grant.
	GrantedBy *uuid.UUID `json:"grantedBy,omitempty" db:"granted_by"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Allows reports whether the grant permits c.
func (g PermissionGrant) Allows(c Capability) bool {
	if g.Role == RoleSuperAdmin {
		return true
	}
	return g.Permissions.Has(c)
}

// AdminEntry pairs a grant with the account it belongs to.
type AdminEntry struct {
	User  UserSummary     `json:"user"`
	Grant PermissionGrant `json:"grant"`
}
