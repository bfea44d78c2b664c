package content

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/mediagate/pkg/storage"
)

// VersionLog appends snapshots of content items and replays them on revert
type VersionLog struct {
	items    ItemStore
	versions VersionStore
	now      func() time.Time
}

// NewVersionLog creates a version log
func NewVersionLog(items ItemStore, versions VersionStore) *VersionLog {
	return &VersionLog{items: items, versions: versions, now: time.Now}
}

// RevertResult reports the two snapshots a revert appends
type RevertResult struct {
	Item *Item `json:"item"`
	// PreRevertVersion snapshots the state the revert replaced
	PreRevertVersion int `json:"pre_revert_version"`
	// Version snapshots the state after the revert and is the new current version
	Version int `json:"version"`
}

// Snapshot records item's current fields as the next version and moves
// the item's current version pointer to it.
func (l *VersionLog) Snapshot(ctx context.Context, item *Item, authorID, description string) (int, error) {
	count, err := l.versions.CountVersions(ctx, item.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to count versions: %w", err)
	}

	v := &Version{
		ID:                uuid.NewString(),
		ContentID:         item.ID,
		VersionNumber:     count + 1,
		Fields:            item.Clone().Fields,
		AuthorID:          authorID,
		ChangeDescription: description,
		CreatedAt:         l.now(),
	}
	if err := l.versions.InsertVersion(ctx, v); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return 0, fmt.Errorf("%w: version %d of %s already exists", ErrConcurrentEdit, v.VersionNumber, item.ID)
		}
		return 0, fmt.Errorf("failed to insert version: %w", err)
	}

	if err := l.items.SetCurrentVersion(ctx, item.ID, v.VersionNumber); err != nil {
		return 0, fmt.Errorf("failed to update current version: %w", err)
	}
	item.CurrentVersion = v.VersionNumber
	return v.VersionNumber, nil
}

// Revert snapshots the current state, copies the target version's fields onto
// the item and snapshots again. History is only ever appended to.
func (l *VersionLog) Revert(ctx context.Context, item *Item, target int, authorID string) (*RevertResult, error) {
	v, err := l.Get(ctx, item.ID, target)
	if err != nil {
		return nil, err
	}

	expected := item.Status
	pre, err := l.Snapshot(ctx, item, authorID, fmt.Sprintf("before revert to version %d", target))
	if err != nil {
		return nil, err
	}

	reverted := item.Clone()
	reverted.Fields = v.Fields
	reverted.Normalize()
	reverted.UpdatedAt = l.now()
	if err := l.items.SaveItem(ctx, reverted, expected); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, ErrConcurrentEdit
		}
		return nil, fmt.Errorf("failed to save reverted content: %w", err)
	}

	post, err := l.Snapshot(ctx, reverted, authorID, fmt.Sprintf("reverted to version %d", target))
	if err != nil {
		return nil, err
	}
	return &RevertResult{Item: reverted, PreRevertVersion: pre, Version: post}, nil
}

// Get returns one version
func (l *VersionLog) Get(ctx context.Context, contentID string, number int) (*Version, error) {
	v, err := l.versions.GetVersion(ctx, contentID, number)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s@%d", ErrVersionNotFound, contentID, number)
		}
		return nil, fmt.Errorf("failed to get version: %w", err)
	}
	return v, nil
}

// List returns every version of an item in ascending order
func (l *VersionLog) List(ctx context.Context, contentID string) ([]*Version, error) {
	versions, err := l.versions.ListVersions(ctx, contentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	return versions, nil
}
