// Package rbac is the permission registry for mediagate.
//
// # Overview
//
// Every user has exactly one Profile holding a Role and, optionally, a custom
// permission override. The permissions actually applied to a user, their
// effective permissions, are either the override verbatim or the role's
// default set. The two are never merged:
//
//	perms := rbac.EffectivePermissions(profile)
//	if !perms.Has(rbac.PermEditContent) {
//		return apperr.Forbidden("role %s may not edit content", profile.Role)
//	}
//
// # Roles
//
//	owner        - unique, immutable, ignores overrides, holds every permission
//	admin        - every permission except PROMOTE_TO_ADMIN
//	editor       - reviews, publishes and edits any content, manages access
//	contributor  - creates content and edits/submits their own
//	client       - external viewer
//	parent       - external viewer
//	professional - external viewer
//
// The role defaults are an immutable table built once at package init;
// DefaultPermissions returns a copy.
//
// # Fail closed
//
// A nil profile, an unknown role or an inactive profile yields an empty
// permission set.
//
// # Editing profiles
//
// Manager applies role and override changes. Granting PROMOTE_TO_ADMIN, either
// through an override or by promoting someone to admin, requires the editor
// to hold PROMOTE_TO_ADMIN. Nobody can assign the owner role or touch the
// owner's profile.
package rbac
