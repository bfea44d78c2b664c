package rbac

import (
	"fmt"
	"sort"
	"time"
)

// catalog lists every permission in a stable order
var catalog = []Permission{
	PermViewContent,
	PermViewAllContent,
	PermCreateContent,
	PermEditContent,
	PermEditOwnContent,
	PermSubmitContent,
	PermSubmitOwnContent,
	PermReviewContent,
	PermUnpublishContent,
	PermDeleteContent,
	PermDeleteOwnContent,
	PermViewVersions,
	PermRevertVersions,
	PermUploadFiles,
	PermManageAccess,
	PermShareContent,
	PermManageGroups,
	PermManageBundles,
	PermManagePricing,
	PermViewOrders,
	PermPurchaseContent,
	PermManageInvites,
	PermManageUsers,
	PermEditPermissions,
	PermPromoteToAdmin,
}

var catalogIndex = func() map[Permission]struct{} {
	idx := make(map[Permission]struct{}, len(catalog))
	for _, p := range catalog {
		idx[p] = struct{}{}
	}
	return idx
}()

var viewerPermissions = []Permission{
	PermViewContent,
	PermShareContent,
	PermPurchaseContent,
}

// roleDefaults is built once and never mutated
var roleDefaults = map[Role]PermissionSet{
	RoleOwner: NewPermissionSet(catalog...),
	RoleAdmin: NewPermissionSet(catalog...).without(PermPromoteToAdmin),
	RoleEditor: NewPermissionSet(
		PermViewContent,
		PermViewAllContent,
		PermCreateContent,
		PermEditContent,
		PermEditOwnContent,
		PermReviewContent,
		PermDeleteOwnContent,
		PermViewVersions,
		PermRevertVersions,
		PermUploadFiles,
		PermManageAccess,
		PermShareContent,
		PermManageBundles,
		PermPurchaseContent,
	),
	RoleContributor: NewPermissionSet(
		PermViewContent,
		PermCreateContent,
		PermEditOwnContent,
		PermSubmitOwnContent,
		PermDeleteOwnContent,
		PermViewVersions,
		PermUploadFiles,
		PermShareContent,
		PermPurchaseContent,
	),
	RoleClient:       NewPermissionSet(viewerPermissions...),
	RoleParent:       NewPermissionSet(viewerPermissions...),
	RoleProfessional: NewPermissionSet(viewerPermissions...),
}

// Catalog returns every known permission
func Catalog() []Permission {
	out := make([]Permission, len(catalog))
	copy(out, catalog)
	return out
}

// Roles returns every known role, most privileged first
func Roles() []Role {
	return []Role{RoleOwner, RoleAdmin, RoleEditor, RoleContributor, RoleClient, RoleParent, RoleProfessional}
}

// DefaultPermissions returns a copy of the default permission set for a role
func DefaultPermissions(role Role) PermissionSet {
	defaults, ok := roleDefaults[role]
	if !ok {
		return PermissionSet{}
	}
	return defaults.clone()
}

// PermissionSet is an unordered set of permissions
type PermissionSet map[Permission]struct{}

// NewPermissionSet builds a set from a list of permissions
func NewPermissionSet(perms ...Permission) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// Has reports whether the set contains p
func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// HasAll reports whether the set contains every permission in perms
func (s PermissionSet) HasAll(perms ...Permission) bool {
	for _, p := range perms {
		if !s.Has(p) {
			return false
		}
	}
	return true
}

// HasAny reports whether the set contains at least one permission in perms
func (s PermissionSet) HasAny(perms ...Permission) bool {
	for _, p := range perms {
		if s.Has(p) {
			return true
		}
	}
	return false
}

// List returns the permissions sorted by token
func (s PermissionSet) List() []Permission {
	out := make([]Permission, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s PermissionSet) clone() PermissionSet {
	out := make(PermissionSet, len(s))
	for p := range s {
		out[p] = struct{}{}
	}
	return out
}

func (s PermissionSet) without(p Permission) PermissionSet {
	delete(s, p)
	return s
}

// EffectivePermissions returns the permissions applied to a profile.
// A non-empty override is returned verbatim; otherwise the role defaults apply.
// The owner always gets the owner defaults.
func EffectivePermissions(profile *Profile) PermissionSet {
	if profile == nil || !profile.Active || !profile.Role.Valid() {
		return PermissionSet{}
	}
	if profile.Role == RoleOwner || !profile.HasOverride() {
		return DefaultPermissions(profile.Role)
	}
	// unknown tokens in an override are ignored
	set := make(PermissionSet, len(profile.Permissions))
	for _, p := range profile.Permissions {
		if p.Valid() {
			set[p] = struct{}{}
		}
	}
	return set
}

// HasPermission reports whether the profile's effective permissions contain p
func HasPermission(profile *Profile, p Permission) bool {
	return EffectivePermissions(profile).Has(p)
}

// Check evaluates a permission for a profile and explains the outcome
func Check(profile *Profile, p Permission) *PermissionCheckResult {
	result := &PermissionCheckResult{CheckedAt: time.Now()}
	if profile == nil {
		result.Reason = "no profile"
		result.Missing = p
		return result
	}
	result.Role = profile.Role

	switch {
	case !profile.Active:
		result.Reason = "profile inactive"
	case !profile.Role.Valid():
		result.Reason = fmt.Sprintf("unknown role %q", profile.Role)
	case EffectivePermissions(profile).Has(p):
		result.Allowed = true
		if profile.HasOverride() && profile.Role != RoleOwner {
			result.Reason = "granted by custom permissions"
		} else {
			result.Reason = fmt.Sprintf("granted by role %s", profile.Role)
		}
	case profile.HasOverride() && profile.Role != RoleOwner:
		result.Reason = "not in custom permissions"
	default:
		result.Reason = fmt.Sprintf("not granted to role %s", profile.Role)
	}
	if !result.Allowed {
		result.Missing = p
	}
	return result
}
