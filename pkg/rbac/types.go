package rbac

import (
	"time"
)

// Role is a user's position in the organization
type Role string

const (
	RoleOwner        Role = "owner"
	RoleAdmin        Role = "admin"
	RoleEditor       Role = "editor"
	RoleContributor  Role = "contributor"
	RoleClient       Role = "client"
	RoleParent       Role = "parent"
	RoleProfessional Role = "professional"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	_, ok := roleDefaults[r]
	return ok
}

// Permission is a single capability token
type Permission string

const (
	PermViewContent      Permission = "VIEW_CONTENT"
	PermViewAllContent   Permission = "VIEW_ALL_CONTENT"
	PermCreateContent    Permission = "CREATE_CONTENT"
	PermEditContent      Permission = "EDIT_CONTENT"
	PermEditOwnContent   Permission = "EDIT_OWN_CONTENT"
	PermSubmitContent    Permission = "SUBMIT_CONTENT"
	PermSubmitOwnContent Permission = "SUBMIT_OWN_CONTENT"
	PermReviewContent    Permission = "REVIEW_CONTENT"
	PermUnpublishContent Permission = "UNPUBLISH_CONTENT"
	PermDeleteContent    Permission = "DELETE_CONTENT"
	PermDeleteOwnContent Permission = "DELETE_OWN_CONTENT"
	PermViewVersions     Permission = "VIEW_VERSIONS"
	PermRevertVersions   Permission = "REVERT_VERSIONS"
	PermUploadFiles      Permission = "UPLOAD_FILES"
	PermManageAccess     Permission = "MANAGE_ACCESS"
	PermShareContent     Permission = "SHARE_CONTENT"
	PermManageGroups     Permission = "MANAGE_GROUPS"
	PermManageBundles    Permission = "MANAGE_BUNDLES"
	PermManagePricing    Permission = "MANAGE_PRICING"
	PermViewOrders       Permission = "VIEW_ORDERS"
	PermPurchaseContent  Permission = "PURCHASE_CONTENT"
	PermManageInvites    Permission = "MANAGE_INVITES"
	PermManageUsers      Permission = "MANAGE_USERS"
	PermEditPermissions  Permission = "EDIT_PERMISSIONS"
	PermPromoteToAdmin   Permission = "PROMOTE_TO_ADMIN"
)

// Valid reports whether p is in the permission catalog
func (p Permission) Valid() bool {
	_, ok := catalogIndex[p]
	return ok
}

// String returns the permission token
func (p Permission) String() string {
	return string(p)
}

// Profile is the authorization record for one identity
type Profile struct {
	UserID      string       `json:"user_id"`
	Email       string       `json:"email,omitempty"`
	DisplayName string       `json:"display_name,omitempty"`
	Role        Role         `json:"role"`
	Permissions []Permission `json:"permissions,omitempty"` // override, replaces role defaults when non-empty
	Active      bool         `json:"active"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// HasOverride reports whether the profile carries a custom permission set
func (p *Profile) HasOverride() bool {
	return p != nil && len(p.Permissions) > 0
}

// PermissionCheckResult represents the result of a permission check
type PermissionCheckResult struct {
	Allowed   bool       `json:"allowed"`
	Reason    string     `json:"reason,omitempty"`
	Role      Role       `json:"role,omitempty"`
	Missing   Permission `json:"missing,omitempty"`
	CheckedAt time.Time  `json:"checked_at"`
}
