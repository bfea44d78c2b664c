package content

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/mediagate/pkg/apperr"
	"github.com/platinummonkey/mediagate/pkg/audit"
	"github.com/platinummonkey/mediagate/pkg/rbac"
	"github.com/platinummonkey/mediagate/pkg/storage"
	"github.com/platinummonkey/mediagate/pkg/workflow"
)

// CreateInput describes a new content item
type CreateInput struct {
	Fields
	Password string `json:"password,omitempty"`
}

// Service runs editorial operations on content items
type Service struct {
	store    Store
	versions *VersionLog
	audit    audit.Logger
	now      func() time.Time
}

// NewService creates a content service
func NewService(store Store, auditLogger audit.Logger) *Service {
	if auditLogger == nil {
		auditLogger = audit.Nop()
	}
	return &Service{
		store:    store,
		versions: NewVersionLog(store, store),
		audit:    auditLogger,
		now:      time.Now,
	}
}

// WithClock overrides the time source
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	s.versions.now = now
	return s
}

// Versions exposes the version log
func (s *Service) Versions() *VersionLog {
	return s.versions
}

func actorFor(profile *rbac.Profile, item *Item) workflow.Actor {
	actor := workflow.Actor{Permissions: rbac.EffectivePermissions(profile)}
	if item != nil {
		actor.Unowned = item.CreatedBy == ""
		actor.IsCreator = profile != nil && item.CreatedBy != "" && item.CreatedBy == profile.UserID
	}
	return actor
}

func requireProfile(profile *rbac.Profile) error {
	if profile == nil {
		return apperr.ErrUnauthenticated
	}
	return nil
}

// Create stores a new draft and takes its first snapshot
func (s *Service) Create(ctx context.Context, actor *rbac.Profile, in CreateInput) (*Item, error) {
	if err := requireProfile(actor); err != nil {
		return nil, err
	}
	if !rbac.HasPermission(actor, rbac.PermCreateContent) {
		return nil, apperr.Forbidden("role %s may not create content", actor.Role)
	}

	fields := in.Fields
	fields.Normalize()
	if err := fields.Validate(); err != nil {
		return nil, err
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	item := &Item{
		ID:           uuid.NewString(),
		Fields:       fields,
		Status:       workflow.StatusDraft,
		PasswordHash: hash,
		CreatedBy:    actor.UserID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create content: %w", err)
	}
	if _, err := s.versions.Snapshot(ctx, item, actor.UserID, "created"); err != nil {
		return nil, err
	}

	s.audit.Log(ctx, audit.NewEvent(audit.EventTypeContentCreate, actor.UserID, audit.ResourceTypeContent, item.ID).
		With("type", string(item.Type)))
	return item, nil
}

// Load fetches an item without any authorization check
func (s *Service) Load(ctx context.Context, id string) (*Item, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.Invalid("malformed content id %q", id)
	}
	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrContentNotFound, id)
		}
		return nil, fmt.Errorf("failed to get content: %w", err)
	}
	return item, nil
}

// ContentExists reports whether an item exists
func (s *Service) ContentExists(ctx context.Context, id string) (bool, error) {
	_, err := s.Load(ctx, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrContentNotFound), errors.Is(err, apperr.ErrInvalid):
		return false, nil
	}
	return false, err
}

// Get returns the management view of an item: privileged viewers see any item,
// creators see their own.
func (s *Service) Get(ctx context.Context, actor *rbac.Profile, id string) (*Item, error) {
	if err := requireProfile(actor); err != nil {
		return nil, err
	}
	item, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	a := actorFor(actor, item)
	if !a.Permissions.Has(rbac.PermViewAllContent) && !(a.IsCreator && a.Permissions.Has(rbac.PermCreateContent)) {
		return nil, apperr.Forbidden("may not manage content %s", id)
	}
	return item, nil
}

// List returns items for the management UI. Without VIEW_ALL_CONTENT the list
// is limited to the actor's own items.
func (s *Service) List(ctx context.Context, actor *rbac.Profile, filter ListFilter) ([]*Item, error) {
	if err := requireProfile(actor); err != nil {
		return nil, err
	}
	perms := rbac.EffectivePermissions(actor)
	switch {
	case perms.Has(rbac.PermViewAllContent):
	case perms.Has(rbac.PermCreateContent):
		filter.CreatedBy = actor.UserID
	default:
		return nil, apperr.Forbidden("role %s may not list content", actor.Role)
	}
	items, err := s.store.ListItems(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list content: %w", err)
	}
	return items, nil
}

// ListPublished returns every published item, for catalog filtering
func (s *Service) ListPublished(ctx context.Context) ([]*Item, error) {
	items, err := s.store.ListItems(ctx, ListFilter{Status: workflow.StatusPublished})
	if err != nil {
		return nil, fmt.Errorf("failed to list content: %w", err)
	}
	return items, nil
}

// Update applies a patch. The pre-change state is snapshotted before the patch is saved.
func (s *Service) Update(ctx context.Context, actor *rbac.Profile, id string, patch Patch, description string) (*Item, error) {
	if err := requireProfile(actor); err != nil {
		return nil, err
	}
	item, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := workflow.CanEdit(item.Status, actorFor(actor, item)); err != nil {
		return nil, err
	}

	updated := item.Clone()
	changed := patch.apply(&updated.Fields)
	if err := updated.Validate(); err != nil {
		return nil, err
	}
	if patch.Password != nil {
		hash, err := HashPassword(*patch.Password)
		if err != nil {
			return nil, err
		}
		changed = changed || hash != "" || item.PasswordHash != ""
		updated.PasswordHash = hash
	}
	if !changed {
		return item, nil
	}

	n, err := s.versions.Snapshot(ctx, item, actor.UserID, description)
	if err != nil {
		return nil, err
	}
	updated.CurrentVersion = n
	updated.UpdatedAt = s.now()
	if err := s.save(ctx, updated, item.Status); err != nil {
		return nil, err
	}

	s.audit.Log(ctx, audit.NewEvent(audit.EventTypeContentUpdate, actor.UserID, audit.ResourceTypeContent, id).
		With("version", n))
	return updated, nil
}

// Submit moves an item into review
func (s *Service) Submit(ctx context.Context, actor *rbac.Profile, id string) (*Item, error) {
	return s.Transition(ctx, actor, id, workflow.ActionSubmit, "")
}

// Approve publishes an item under review
func (s *Service) Approve(ctx context.Context, actor *rbac.Profile, id string) (*Item, error) {
	return s.Transition(ctx, actor, id, workflow.ActionApprove, "")
}

// Reject rejects an item under review
func (s *Service) Reject(ctx context.Context, actor *rbac.Profile, id, note string) (*Item, error) {
	return s.Transition(ctx, actor, id, workflow.ActionReject, note)
}

// RequestChanges sends an item under review back to its creator
func (s *Service) RequestChanges(ctx context.Context, actor *rbac.Profile, id, note string) (*Item, error) {
	return s.Transition(ctx, actor, id, workflow.ActionRequestChanges, note)
}

// Unpublish returns a published item to draft
func (s *Service) Unpublish(ctx context.Context, actor *rbac.Profile, id string) (*Item, error) {
	return s.Transition(ctx, actor, id, workflow.ActionUnpublish, "")
}

// Transition applies a workflow action and stamps the review metadata
func (s *Service) Transition(ctx context.Context, actor *rbac.Profile, id string, action workflow.Action, note string) (*Item, error) {
	if err := requireProfile(actor); err != nil {
		return nil, err
	}
	item, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	next, err := workflow.Transition(item.Status, action, actorFor(actor, item), note)
	if err != nil {
		return nil, err
	}

	now := s.now()
	updated := item.Clone()
	updated.Status = next
	updated.UpdatedAt = now
	switch action {
	case workflow.ActionSubmit:
		updated.SubmittedAt = &now
	case workflow.ActionApprove:
		updated.ReviewedBy = actor.UserID
		updated.ReviewedAt = &now
		updated.PublishedAt = &now
		updated.ReviewNotes = ""
	case workflow.ActionReject, workflow.ActionRequestChanges:
		updated.ReviewedBy = actor.UserID
		updated.ReviewedAt = &now
		updated.ReviewNotes = note
	case workflow.ActionUnpublish:
		updated.PublishedAt = nil
	}

	if err := s.save(ctx, updated, item.Status); err != nil {
		return nil, err
	}

	s.audit.Log(ctx, audit.NewEvent(audit.EventTypeContentTransition, actor.UserID, audit.ResourceTypeContent, id).
		With("action", string(action)).
		With("from", string(item.Status)).
		With("to", string(next)))
	return updated, nil
}

// Delete removes an item and everything hanging off it
func (s *Service) Delete(ctx context.Context, actor *rbac.Profile, id string) error {
	if err := requireProfile(actor); err != nil {
		return err
	}
	item, err := s.Load(ctx, id)
	if err != nil {
		return err
	}
	if err := workflow.CanDelete(item.Status, actorFor(actor, item)); err != nil {
		return err
	}
	if err := s.store.DeleteItem(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrContentNotFound, id)
		}
		return fmt.Errorf("failed to delete content: %w", err)
	}

	s.audit.Log(ctx, audit.NewEvent(audit.EventTypeContentDelete, actor.UserID, audit.ResourceTypeContent, id))
	return nil
}

// ListVersions returns an item's history
func (s *Service) ListVersions(ctx context.Context, actor *rbac.Profile, id string) ([]*Version, error) {
	if _, err := s.versionReader(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.versions.List(ctx, id)
}

// GetVersion returns one snapshot of an item
func (s *Service) GetVersion(ctx context.Context, actor *rbac.Profile, id string, number int) (*Version, error) {
	if _, err := s.versionReader(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.versions.Get(ctx, id, number)
}

func (s *Service) versionReader(ctx context.Context, actor *rbac.Profile, id string) (*Item, error) {
	item, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !rbac.HasPermission(actor, rbac.PermViewVersions) {
		return nil, apperr.Forbidden("role %s may not view versions", actor.Role)
	}
	return item, nil
}

// Revert restores the fields of a stored version. Reverting is an edit: it
// follows the same status rules and leaves the workflow status untouched.
func (s *Service) Revert(ctx context.Context, actor *rbac.Profile, id string, number int) (*RevertResult, error) {
	if err := requireProfile(actor); err != nil {
		return nil, err
	}
	item, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	a := actorFor(actor, item)
	if !a.Permissions.Has(rbac.PermRevertVersions) {
		return nil, apperr.Forbidden("role %s may not revert content", actor.Role)
	}
	if err := workflow.CanEdit(item.Status, a); err != nil {
		return nil, err
	}

	res, err := s.versions.Revert(ctx, item, number, actor.UserID)
	if err != nil {
		return nil, err
	}

	s.audit.Log(ctx, audit.NewEvent(audit.EventTypeContentRevert, actor.UserID, audit.ResourceTypeContent, id).
		With("target", number).
		With("version", res.Version))
	return res, nil
}

func (s *Service) save(ctx context.Context, item *Item, expected workflow.Status) error {
	if err := s.store.SaveItem(ctx, item, expected); err != nil {
		switch {
		case errors.Is(err, storage.ErrConflict):
			return fmt.Errorf("%w: %s", ErrConcurrentEdit, item.ID)
		case errors.Is(err, storage.ErrNotFound):
			return fmt.Errorf("%w: %s", ErrContentNotFound, item.ID)
		}
		return fmt.Errorf("failed to save content: %w", err)
	}
	return nil
}
