package rbac

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/mediagate/pkg/apperr"
	"github.com/platinummonkey/mediagate/pkg/audit"
	"github.com/platinummonkey/mediagate/pkg/storage"
)

var (
	ErrProfileNotFound = fmt.Errorf("%w: profile", apperr.ErrNotFound)
	ErrOwnerImmutable  = fmt.Errorf("%w: the owner profile cannot be changed", apperr.ErrForbidden)
	ErrOwnerExists     = fmt.Errorf("%w: an owner already exists", apperr.ErrPrecondition)
	ErrInvalidRole     = fmt.Errorf("%w: unknown role", apperr.ErrInvalid)
	ErrRoleConflict    = fmt.Errorf("%w: user already holds another role", apperr.ErrPrecondition)
)

// ProfileStore persists profiles
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	CreateProfile(ctx context.Context, profile *Profile) error
	UpdateProfile(ctx context.Context, profile *Profile) error
	// ListProfiles lists profiles with the given role, or all profiles when role is empty
	ListProfiles(ctx context.Context, role Role) ([]*Profile, error)
}

// Manager applies profile changes on behalf of an acting user
type Manager struct {
	store ProfileStore
	audit audit.Logger
	now   func() time.Time
}

// NewManager creates a new profile manager
func NewManager(store ProfileStore, auditLogger audit.Logger) *Manager {
	if auditLogger == nil {
		auditLogger = audit.Nop()
	}
	return &Manager{store: store, audit: auditLogger, now: time.Now}
}

// WithClock overrides the time source
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// GetProfile loads a profile by user id
func (m *Manager) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	profile, err := m.store.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, userID)
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return profile, nil
}

// EnsureProfile returns the user's profile, creating an active client profile on first sight
func (m *Manager) EnsureProfile(ctx context.Context, userID, email, displayName string) (*Profile, error) {
	profile, err := m.GetProfile(ctx, userID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, ErrProfileNotFound) {
		return nil, err
	}

	now := m.now()
	profile = &Profile{
		UserID:      userID,
		Email:       email,
		DisplayName: displayName,
		Role:        RoleClient,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.store.CreateProfile(ctx, profile); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			// created concurrently
			return m.GetProfile(ctx, userID)
		}
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	return profile, nil
}

// BootstrapOwner makes userID the single owner. It fails with ErrOwnerExists
// once an owner exists, including when a concurrent bootstrap wins the race.
func (m *Manager) BootstrapOwner(ctx context.Context, userID, email string) (*Profile, error) {
	owners, err := m.store.ListProfiles(ctx, RoleOwner)
	if err != nil {
		return nil, fmt.Errorf("failed to list owners: %w", err)
	}
	if len(owners) > 0 {
		return nil, ErrOwnerExists
	}

	profile, err := m.EnsureProfile(ctx, userID, email, "")
	if err != nil {
		return nil, err
	}
	profile.Role = RoleOwner
	profile.Permissions = nil
	profile.Active = true
	profile.UpdatedAt = m.now()
	if err := m.store.UpdateProfile(ctx, profile); err != nil {
		// the store enforces a single owner; a concurrent bootstrap won
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, ErrOwnerExists
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	m.record(ctx, audit.EventTypeRoleChange, userID, userID, "owner bootstrapped")
	return profile, nil
}

// CanAssignRole checks whether actor may give role to target
func CanAssignRole(actor, target *Profile, role Role) error {
	perms := EffectivePermissions(actor)
	if !perms.Has(PermManageUsers) {
		return apperr.Forbidden("%s required to change roles", PermManageUsers)
	}
	if target != nil && target.Role == RoleOwner {
		return ErrOwnerImmutable
	}
	if !role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if role == RoleOwner {
		return apperr.Forbidden("the owner role cannot be assigned")
	}
	if role == RoleAdmin && !perms.Has(PermPromoteToAdmin) {
		return apperr.Forbidden("%s required to assign the admin role", PermPromoteToAdmin)
	}
	return nil
}

// CanEditPermissions checks whether actor may set perms as target's override
func CanEditPermissions(actor, target *Profile, perms []Permission) error {
	actorPerms := EffectivePermissions(actor)
	if !actorPerms.Has(PermEditPermissions) {
		return apperr.Forbidden("%s required to edit permissions", PermEditPermissions)
	}
	if target != nil && target.Role == RoleOwner {
		return ErrOwnerImmutable
	}
	for _, p := range perms {
		if !p.Valid() {
			return apperr.Invalid("unknown permission %q", p)
		}
		if p == PermPromoteToAdmin && !actorPerms.Has(PermPromoteToAdmin) {
			return apperr.Forbidden("%s can only be granted by a holder", PermPromoteToAdmin)
		}
	}
	return nil
}

// SetRole changes the target's role
func (m *Manager) SetRole(ctx context.Context, actor *Profile, targetID string, role Role) (*Profile, error) {
	target, err := m.GetProfile(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if err := CanAssignRole(actor, target, role); err != nil {
		return nil, err
	}

	previous := target.Role
	target.Role = role
	target.UpdatedAt = m.now()
	if err := m.store.UpdateProfile(ctx, target); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	m.audit.Log(ctx, audit.NewEvent(audit.EventTypeRoleChange, actor.UserID, audit.ResourceTypeProfile, targetID).
		With("from", string(previous)).
		With("to", string(role)))
	return target, nil
}

// SetPermissions replaces the target's override. An empty list clears it.
func (m *Manager) SetPermissions(ctx context.Context, actor *Profile, targetID string, perms []Permission) (*Profile, error) {
	target, err := m.GetProfile(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if err := CanEditPermissions(actor, target, perms); err != nil {
		return nil, err
	}

	target.Permissions = dedupe(perms)
	target.UpdatedAt = m.now()
	if err := m.store.UpdateProfile(ctx, target); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	m.audit.Log(ctx, audit.NewEvent(audit.EventTypePermissionChange, actor.UserID, audit.ResourceTypeProfile, targetID).
		With("permissions", len(target.Permissions)))
	return target, nil
}

// SetActive activates or deactivates the target
func (m *Manager) SetActive(ctx context.Context, actor *Profile, targetID string, active bool) (*Profile, error) {
	if !HasPermission(actor, PermManageUsers) {
		return nil, apperr.Forbidden("%s required to change activation", PermManageUsers)
	}
	target, err := m.GetProfile(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if target.Role == RoleOwner {
		return nil, ErrOwnerImmutable
	}

	target.Active = active
	target.UpdatedAt = m.now()
	if err := m.store.UpdateProfile(ctx, target); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	m.audit.Log(ctx, audit.NewEvent(audit.EventTypeProfileActivate, actor.UserID, audit.ResourceTypeProfile, targetID).
		With("active", active))
	return target, nil
}

// AssignRole gives userID a role on behalf of an already-authorized flow such as
// invite redemption. It creates the profile when missing. Only profiles still on
// the default client role are changed; anyone else gets ErrRoleConflict unless
// they already hold role.
func (m *Manager) AssignRole(ctx context.Context, userID string, role Role) (*Profile, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if role == RoleOwner {
		return nil, apperr.Forbidden("the owner role cannot be assigned")
	}

	profile, err := m.EnsureProfile(ctx, userID, "", "")
	if err != nil {
		return nil, err
	}
	if profile.Role == RoleOwner {
		return nil, ErrOwnerImmutable
	}
	if profile.Role == role {
		return profile, nil
	}
	if profile.Role != RoleClient {
		return nil, fmt.Errorf("%w: %s holds %s", ErrRoleConflict, userID, profile.Role)
	}

	previous := profile.Role
	profile.Role = role
	profile.UpdatedAt = m.now()
	if err := m.store.UpdateProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	m.audit.Log(ctx, audit.NewEvent(audit.EventTypeRoleChange, userID, audit.ResourceTypeProfile, userID).
		With("from", string(previous)).
		With("to", string(role)))
	return profile, nil
}

// ListProfiles lists profiles, optionally filtered by role
func (m *Manager) ListProfiles(ctx context.Context, actor *Profile, role Role) ([]*Profile, error) {
	if !HasPermission(actor, PermManageUsers) {
		return nil, apperr.Forbidden("%s required to list users", PermManageUsers)
	}
	profiles, err := m.store.ListProfiles(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	return profiles, nil
}

func (m *Manager) record(ctx context.Context, eventType audit.EventType, actorID, targetID, message string) {
	event := audit.NewEvent(eventType, actorID, audit.ResourceTypeProfile, targetID)
	event.Message = message
	m.audit.Log(ctx, event)
}

func dedupe(perms []Permission) []Permission {
	if len(perms) == 0 {
		return nil
	}
	seen := make(map[Permission]struct{}, len(perms))
	out := make([]Permission, 0, len(perms))
	for _, p := range perms {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
