// Package bundles manages ordered collections of content items. A bundle can
// carry its own pricing and access grants independent of its items.
package bundles

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
	ErrBundleNotFound  = fmt.Errorf("%w: bundle", apperr.ErrNotFound)
	ErrItemNotInBundle = fmt.Errorf("%w: bundle item", apperr.ErrNotFound)
	ErrAlreadyInBundle = fmt.Errorf("%w: content is already in the bundle", apperr.ErrPrecondition)
)

// Bundle is a named ordered collection of content items
type Bundle struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Item places a content item at a position inside a bundle
type Item struct {
	BundleID  string    `json:"bundle_id"`
	ContentID string    `json:"content_id"`
	Position  int       `json:"position"`
	AddedAt   time.Time `json:"added_at"`
}

// Store persists bundles and their items
type Store interface {
	CreateBundle(ctx context.Context, b *Bundle) error
	GetBundle(ctx context.Context, id string) (*Bundle, error)
	UpdateBundle(ctx context.Context, b *Bundle) error
	ListBundles(ctx context.Context) ([]*Bundle, error)
	// DeleteBundle removes the bundle, its items and grants on it
	DeleteBundle(ctx context.Context, id string) error
	AddBundleItem(ctx context.Context, item *Item) error
	RemoveBundleItem(ctx context.Context, bundleID, contentID string) error
	// ListBundleItems returns items ordered by position
	ListBundleItems(ctx context.Context, bundleID string) ([]*Item, error)
	// SetBundleItemPositions renumbers items in the given order starting at 1
	SetBundleItemPositions(ctx context.Context, bundleID string, contentIDs []string) error
	ListBundleIDsForContent(ctx context.Context, contentID string) ([]string, error)
}

// ContentChecker confirms content exists before it is bundled
type ContentChecker interface {
	ContentExists(ctx context.Context, id string) (bool, error)
}

// Service manages bundles
type Service struct {
	store   Store
	content ContentChecker
	now     func() time.Time
}

// NewService creates a bundle service
func NewService(store Store, content ContentChecker) *Service {
	return &Service{store: store, content: content, now: time.Now}
}

func authorize(actor *rbac.Profile) error {
	if actor == nil {
		return apperr.ErrUnauthenticated
	}
	if !rbac.HasPermission(actor, rbac.PermManageBundles) {
		return apperr.Forbidden("role %s may not manage bundles", actor.Role)
	}
	return nil
}

// Create creates an empty bundle
func (s *Service) Create(ctx context.Context, actor *rbac.Profile, name, description string) (*Bundle, error) {
	if err := authorize(actor); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Invalid("bundle name is required")
	}

	now := s.now()
	b := &Bundle{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		CreatedBy:   actor.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateBundle(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to create bundle: %w", err)
	}
	return b, nil
}

// Get returns a bundle
func (s *Service) Get(ctx context.Context, id string) (*Bundle, error) {
	b, err := s.store.GetBundle(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrBundleNotFound, id)
		}
		return nil, fmt.Errorf("failed to get bundle: %w", err)
	}
	return b, nil
}

// List returns every bundle
func (s *Service) List(ctx context.Context) ([]*Bundle, error) {
	bundles, err := s.store.ListBundles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list bundles: %w", err)
	}
	return bundles, nil
}

// Rename updates a bundle's name and description
func (s *Service) Rename(ctx context.Context, actor *rbac.Profile, id, name, description string) (*Bundle, error) {
	if err := authorize(actor); err != nil {
		return nil, err
	}
	b, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if name = strings.TrimSpace(name); name != "" {
		b.Name = name
	}
	b.Description = description
	b.UpdatedAt = s.now()
	if err := s.store.UpdateBundle(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to update bundle: %w", err)
	}
	return b, nil
}

// Delete removes a bundle. The bundled content items are untouched.
func (s *Service) Delete(ctx context.Context, actor *rbac.Profile, id string) error {
	if err := authorize(actor); err != nil {
		return err
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.store.DeleteBundle(ctx, id); err != nil {
		return fmt.Errorf("failed to delete bundle: %w", err)
	}
	return nil
}

// AddItem appends a content item to the end of a bundle
func (s *Service) AddItem(ctx context.Context, actor *rbac.Profile, bundleID, contentID string) (*Item, error) {
	if err := authorize(actor); err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, bundleID); err != nil {
		return nil, err
	}
	exists, err := s.content.ContentExists(ctx, contentID)
	if err != nil {
		return nil, fmt.Errorf("failed to check content: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: content %s", apperr.ErrNotFound, contentID)
	}

	items, err := s.store.ListBundleItems(ctx, bundleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bundle items: %w", err)
	}
	position := 1
	for _, it := range items {
		if it.ContentID == contentID {
			return nil, ErrAlreadyInBundle
		}
		if it.Position >= position {
			position = it.Position + 1
		}
	}

	item := &Item{BundleID: bundleID, ContentID: contentID, Position: position, AddedAt: s.now()}
	if err := s.store.AddBundleItem(ctx, item); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, ErrAlreadyInBundle
		}
		return nil, fmt.Errorf("failed to add bundle item: %w", err)
	}
	return item, nil
}

// RemoveItem removes a content item from a bundle
func (s *Service) RemoveItem(ctx context.Context, actor *rbac.Profile, bundleID, contentID string) error {
	if err := authorize(actor); err != nil {
		return err
	}
	if err := s.store.RemoveBundleItem(ctx, bundleID, contentID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %s in %s", ErrItemNotInBundle, contentID, bundleID)
		}
		return fmt.Errorf("failed to remove bundle item: %w", err)
	}
	return nil
}

// Reorder sets the item order. contentIDs must be a permutation of the bundle's items.
func (s *Service) Reorder(ctx context.Context, actor *rbac.Profile, bundleID string, contentIDs []string) ([]*Item, error) {
	if err := authorize(actor); err != nil {
		return nil, err
	}
	items, err := s.Items(ctx, bundleID)
	if err != nil {
		return nil, err
	}
	if len(items) != len(contentIDs) {
		return nil, apperr.Invalid("expected %d content ids, got %d", len(items), len(contentIDs))
	}
	present := make(map[string]bool, len(items))
	for _, it := range items {
		present[it.ContentID] = true
	}
	for _, id := range contentIDs {
		if !present[id] {
			return nil, apperr.Invalid("content %s is not in the bundle or is repeated", id)
		}
		delete(present, id)
	}

	if err := s.store.SetBundleItemPositions(ctx, bundleID, contentIDs); err != nil {
		return nil, fmt.Errorf("failed to reorder bundle: %w", err)
	}
	return s.Items(ctx, bundleID)
}

// Items returns a bundle's items in order
func (s *Service) Items(ctx context.Context, bundleID string) ([]*Item, error) {
	if _, err := s.Get(ctx, bundleID); err != nil {
		return nil, err
	}
	items, err := s.store.ListBundleItems(ctx, bundleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bundle items: %w", err)
	}
	return items, nil
}

// BundleIDsForContent returns the bundles containing a content item
func (s *Service) BundleIDsForContent(ctx context.Context, contentID string) ([]string, error) {
	ids, err := s.store.ListBundleIDsForContent(ctx, contentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bundles for content: %w", err)
	}
	return ids, nil
}
