package content

import (
	"context"

	"github.com/platinummonkey/mediagate/pkg/workflow"
)

// ItemStore persists content items
type ItemStore interface {
	CreateItem(ctx context.Context, item *Item) error
	GetItem(ctx context.Context, id string) (*Item, error)
	// SaveItem overwrites the item only while its stored status still equals expected.
	// It returns storage.ErrConflict otherwise.
	SaveItem(ctx context.Context, item *Item, expected workflow.Status) error
	SetCurrentVersion(ctx context.Context, id string, version int) error
	// DeleteItem removes the item together with its versions, access grants,
	// bundle memberships and shares. File blobs are left alone.
	DeleteItem(ctx context.Context, id string) error
	ListItems(ctx context.Context, filter ListFilter) ([]*Item, error)
}

// VersionStore persists version snapshots
type VersionStore interface {
	CountVersions(ctx context.Context, contentID string) (int, error)
	// InsertVersion returns storage.ErrDuplicate if the version number is taken
	InsertVersion(ctx context.Context, version *Version) error
	GetVersion(ctx context.Context, contentID string, number int) (*Version, error)
	ListVersions(ctx context.Context, contentID string) ([]*Version, error)
}

// Store is everything the content service persists
type Store interface {
	ItemStore
	VersionStore
}
