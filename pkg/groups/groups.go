// Package groups manages named collections of users. Access grants may target
// a group; every current member inherits the grant.
package groups

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/mediagate/pkg/apperr"
	"github.com/platinummonkey/mediagate/pkg/rbac"
	"github.com/platinummonkey/mediagate/pkg/storage"
)

var (
	ErrGroupNotFound  = fmt.Errorf("%w: group", apperr.ErrNotFound)
	ErrNotMember      = fmt.Errorf("%w: membership", apperr.ErrNotFound)
	ErrAlreadyMember  = fmt.Errorf("%w: user is already a member", apperr.ErrPrecondition)
	ErrDuplicateGroup = fmt.Errorf("%w: a group with this name exists", apperr.ErrPrecondition)
)

// Group is a named collection of users
type Group struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// Membership joins a user to a group
type Membership struct {
	ID      string    `json:"id"`
	GroupID string    `json:"group_id"`
	UserID  string    `json:"user_id"`
	AddedBy string    `json:"added_by"`
	AddedAt time.Time `json:"added_at"`
}

// Store persists groups and memberships
type Store interface {
	CreateGroup(ctx context.Context, group *Group) error
	GetGroup(ctx context.Context, id string) (*Group, error)
	ListGroups(ctx context.Context) ([]*Group, error)
	// DeleteGroup removes the group, its memberships and grants targeting it
	DeleteGroup(ctx context.Context, id string) error
	AddMembership(ctx context.Context, m *Membership) error
	RemoveMembership(ctx context.Context, groupID, userID string) error
	ListMemberships(ctx context.Context, groupID string) ([]*Membership, error)
	ListGroupIDsForUser(ctx context.Context, userID string) ([]string, error)
}

// Service manages groups
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates a group service
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

func authorize(actor *rbac.Profile) error {
	if actor == nil {
		return apperr.ErrUnauthenticated
	}
	if !rbac.HasPermission(actor, rbac.PermManageGroups) {
		return apperr.Forbidden("role %s may not manage groups", actor.Role)
	}
	return nil
}

// Create creates a group
func (s *Service) Create(ctx context.Context, actor *rbac.Profile, name, description string) (*Group, error) {
	if err := authorize(actor); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Invalid("group name is required")
	}

	g := &Group{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		CreatedBy:   actor.UserID,
		CreatedAt:   s.now(),
	}
	if err := s.store.CreateGroup(ctx, g); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateGroup, name)
		}
		return nil, fmt.Errorf("failed to create group: %w", err)
	}
	return g, nil
}

// Get returns a group
func (s *Service) Get(ctx context.Context, id string) (*Group, error) {
	g, err := s.store.GetGroup(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrGroupNotFound, id)
		}
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return g, nil
}

// List returns every group
func (s *Service) List(ctx context.Context, actor *rbac.Profile) ([]*Group, error) {
	if err := authorize(actor); err != nil {
		return nil, err
	}
	groups, err := s.store.ListGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	return groups, nil
}

// Delete removes a group and its memberships
func (s *Service) Delete(ctx context.Context, actor *rbac.Profile, id string) error {
	if err := authorize(actor); err != nil {
		return err
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.store.DeleteGroup(ctx, id); err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	return nil
}

// AddMember adds a user to a group
func (s *Service) AddMember(ctx context.Context, actor *rbac.Profile, groupID, userID string) (*Membership, error) {
	if err := authorize(actor); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, apperr.Invalid("user id is required")
	}
	if _, err := s.Get(ctx, groupID); err != nil {
		return nil, err
	}

	m := &Membership{
		ID:      uuid.NewString(),
		GroupID: groupID,
		UserID:  userID,
		AddedBy: actor.UserID,
		AddedAt: s.now(),
	}
	if err := s.store.AddMembership(ctx, m); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, ErrAlreadyMember
		}
		return nil, fmt.Errorf("failed to add member: %w", err)
	}
	return m, nil
}

// RemoveMember removes a user from a group
func (s *Service) RemoveMember(ctx context.Context, actor *rbac.Profile, groupID, userID string) error {
	if err := authorize(actor); err != nil {
		return err
	}
	if err := s.store.RemoveMembership(ctx, groupID, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %s in %s", ErrNotMember, userID, groupID)
		}
		return fmt.Errorf("failed to remove member: %w", err)
	}
	return nil
}

// Members lists a group's memberships
func (s *Service) Members(ctx context.Context, actor *rbac.Profile, groupID string) ([]*Membership, error) {
	if err := authorize(actor); err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, groupID); err != nil {
		return nil, err
	}
	members, err := s.store.ListMemberships(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}

// GroupIDsForUser returns the ids of every group the user currently belongs to
func (s *Service) GroupIDsForUser(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.store.ListGroupIDsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user groups: %w", err)
	}
	return ids, nil
}
