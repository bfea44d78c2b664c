package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/mediagate/pkg/apperr"
	"github.com/platinummonkey/mediagate/pkg/audit"
	"github.com/platinummonkey/mediagate/pkg/groups"
	"github.com/platinummonkey/mediagate/pkg/rbac"
	"github.com/platinummonkey/mediagate/pkg/storage"
)

// ProfileLookup loads user profiles
type ProfileLookup interface {
	GetProfile(ctx context.Context, userID string) (*rbac.Profile, error)
}

// GroupGetter loads groups
type GroupGetter interface {
	Get(ctx context.Context, id string) (*groups.Group, error)
}

// GrantRequest describes a manual grant
type GrantRequest struct {
	SubjectKind SubjectKind `json:"subject_kind"`
	SubjectID   string      `json:"subject_id"`
	UserID      string      `json:"user_id,omitempty"`
	Role        rbac.Role   `json:"role,omitempty"`
	GroupID     string      `json:"group_id,omitempty"`
	ExpiresAt   *time.Time  `json:"expires_at,omitempty"`
	CanShare    bool        `json:"can_share"`
}

// GrantService creates and revokes access grants
type GrantService struct {
	store    Store
	content  ContentLoader
	bundles  BundleLookup
	profiles ProfileLookup
	groups   GroupGetter
	audit    audit.Logger
	now      func() time.Time
}

// NewGrantService creates a grant service
func NewGrantService(store Store, contentLoader ContentLoader, bundleLookup BundleLookup, profiles ProfileLookup, groupGetter GroupGetter, auditLogger audit.Logger) *GrantService {
	if auditLogger == nil {
		auditLogger = audit.Nop()
	}
	return &GrantService{
		store:    store,
		content:  contentLoader,
		bundles:  bundleLookup,
		profiles: profiles,
		groups:   groupGetter,
		audit:    auditLogger,
		now:      time.Now,
	}
}

// WithClock overrides the time source
func (s *GrantService) WithClock(now func() time.Time) *GrantService {
	s.now = now
	return s
}

func requireManageAccess(actor *rbac.Profile) error {
	if actor == nil {
		return apperr.ErrUnauthenticated
	}
	if !rbac.HasPermission(actor, rbac.PermManageAccess) {
		return apperr.Forbidden("role %s may not manage access", actor.Role)
	}
	return nil
}

// Create grants access to a content item or bundle
func (s *GrantService) Create(ctx context.Context, actor *rbac.Profile, req GrantRequest) (*Grant, error) {
	if err := requireManageAccess(actor); err != nil {
		return nil, err
	}

	g := &Grant{
		SubjectKind: req.SubjectKind,
		SubjectID:   req.SubjectID,
		UserID:      req.UserID,
		Role:        req.Role,
		GroupID:     req.GroupID,
		ExpiresAt:   req.ExpiresAt,
		CanShare:    req.CanShare,
		GrantedBy:   actor.UserID,
		Source:      SourceManual,
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	now := s.now()
	if g.ExpiresAt != nil && !g.ExpiresAt.After(now) {
		return nil, apperr.Invalid("expiry must be in the future")
	}
	if err := s.CheckSubject(ctx, g.Subject()); err != nil {
		return nil, err
	}
	if err := s.checkTarget(ctx, g); err != nil {
		return nil, err
	}

	existing, err := s.store.ListGrantsForSubject(ctx, g.SubjectKind, g.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	for _, e := range existing {
		if e.ActiveAt(now) && e.sameTarget(g) {
			kind, id := g.Target()
			return nil, fmt.Errorf("%w: %s %s on %s", ErrAlreadyHasAccess, kind, id, g.Subject())
		}
	}

	if err := s.insert(ctx, g, now); err != nil {
		return nil, err
	}
	kind, id := g.Target()
	s.audit.Log(ctx, audit.NewEvent(audit.EventTypeGrantCreate, actor.UserID, audit.ResourceTypeGrant, g.ID).
		With("subject", g.Subject().String()).
		With("target_kind", string(kind)).
		With("target_id", id))
	return g, nil
}

// Mint stores a grant produced by an already-authorized flow such as a purchase
func (s *GrantService) Mint(ctx context.Context, g *Grant) error {
	if err := g.Validate(); err != nil {
		return err
	}
	return s.insert(ctx, g, s.now())
}

func (s *GrantService) insert(ctx context.Context, g *Grant, now time.Time) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
	}
	if err := s.store.CreateGrant(ctx, g); err != nil {
		return fmt.Errorf("failed to create grant: %w", err)
	}
	return nil
}

// CheckSubject verifies that a content item or bundle exists
func (s *GrantService) CheckSubject(ctx context.Context, subject Subject) error {
	switch subject.Kind {
	case SubjectContent:
		_, err := s.content.Load(ctx, subject.ID)
		return err
	case SubjectBundle:
		_, err := s.bundles.Get(ctx, subject.ID)
		return err
	}
	return apperr.Invalid("unknown subject kind %q", subject.Kind)
}

func (s *GrantService) checkTarget(ctx context.Context, g *Grant) error {
	switch {
	case g.UserID != "":
		if _, err := s.profiles.GetProfile(ctx, g.UserID); err != nil {
			return err
		}
	case g.GroupID != "":
		if _, err := s.groups.Get(ctx, g.GroupID); err != nil {
			return err
		}
	}
	return nil
}

// Get returns a grant
func (s *GrantService) Get(ctx context.Context, id string) (*Grant, error) {
	g, err := s.store.GetGrant(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrGrantNotFound, id)
		}
		return nil, fmt.Errorf("failed to get grant: %w", err)
	}
	return g, nil
}

// Revoke deletes a grant
func (s *GrantService) Revoke(ctx context.Context, actor *rbac.Profile, id string) error {
	if err := requireManageAccess(actor); err != nil {
		return err
	}
	g, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteGrant(ctx, id); err != nil {
		return fmt.Errorf("failed to delete grant: %w", err)
	}
	s.audit.Log(ctx, audit.NewEvent(audit.EventTypeGrantRevoke, actor.UserID, audit.ResourceTypeGrant, id).
		With("subject", g.Subject().String()))
	return nil
}

// Expire makes a grant inert from at onwards without deleting it
func (s *GrantService) Expire(ctx context.Context, id string, at time.Time) error {
	g, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if g.ExpiresAt != nil && !g.ExpiresAt.After(at) {
		return nil
	}
	g.ExpiresAt = &at
	if err := s.store.UpdateGrant(ctx, g); err != nil {
		return fmt.Errorf("failed to expire grant: %w", err)
	}
	return nil
}

// ListForSubject lists every grant on a content item or bundle, expired ones included
func (s *GrantService) ListForSubject(ctx context.Context, actor *rbac.Profile, subject Subject) ([]*Grant, error) {
	if err := requireManageAccess(actor); err != nil {
		return nil, err
	}
	grants, err := s.store.ListGrantsForSubject(ctx, subject.Kind, subject.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	return grants, nil
}

// ListForUser lists a user's direct grants. Users may list their own.
func (s *GrantService) ListForUser(ctx context.Context, actor *rbac.Profile, userID string) ([]*Grant, error) {
	if actor == nil {
		return nil, apperr.ErrUnauthenticated
	}
	if actor.UserID != userID && !rbac.HasPermission(actor, rbac.PermManageAccess) {
		return nil, apperr.Forbidden("may not list grants of another user")
	}
	grants, err := s.store.ListGrantsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	return grants, nil
}

// HasActiveUserGrant reports whether userID holds an active direct grant on subject
func (s *GrantService) HasActiveUserGrant(ctx context.Context, subject Subject, userID string) (bool, error) {
	grants, err := s.store.ListGrantsForSubject(ctx, subject.Kind, subject.ID)
	if err != nil {
		return false, fmt.Errorf("failed to list grants: %w", err)
	}
	now := s.now()
	for _, g := range grants {
		if g.UserID == userID && g.ActiveAt(now) {
			return true, nil
		}
	}
	return false, nil
}
