package sqlstore

import (
	"context"
	"database/sql"

	"github.com/platinummonkey/mediagate/pkg/access"
	"github.com/platinummonkey/mediagate/pkg/bundles"
	"github.com/platinummonkey/mediagate/pkg/storage"
)

const bundleColumns = `id, name, description, created_by, created_at, updated_at`

func scanBundle(scan func(...interface{}) error) (*bundles.Bundle, error) {
	var b bundles.Bundle
	if err := scan(&b.ID, &b.Name, &b.Description, &b.CreatedBy, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Store) CreateBundle(ctx context.Context, b *bundles.Bundle) error {
	_, err := s.exec(ctx, "CreateBundle",
		`INSERT INTO bundles (`+bundleColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		b.ID, b.Name, b.Description, b.CreatedBy, utc(b.CreatedAt), utc(b.UpdatedAt))
	return err
}

func (s *Store) GetBundle(ctx context.Context, id string) (b *bundles.Bundle, err error) {
	err = s.get(ctx, "GetBundle", `SELECT `+bundleColumns+` FROM bundles WHERE id = ?`, []interface{}{id},
		func(scan func(...interface{}) error) (err error) {
			b, err = scanBundle(scan)
			return err
		})
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Store) UpdateBundle(ctx context.Context, b *bundles.Bundle) error {
	return s.execOne(ctx, "UpdateBundle",
		`UPDATE bundles SET name = ?, description = ?, updated_at = ? WHERE id = ?`,
		b.Name, b.Description, utc(b.UpdatedAt), b.ID)
}

func (s *Store) ListBundles(ctx context.Context) ([]*bundles.Bundle, error) {
	out := make([]*bundles.Bundle, 0)
	err := s.query(ctx, "ListBundles", `SELECT `+bundleColumns+` FROM bundles ORDER BY name`, nil,
		func(rows *sql.Rows) error {
			b, err := scanBundle(rows.Scan)
			if err != nil {
				return err
			}
			out = append(out, b)
			return nil
		})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteBundle removes the bundle with its item placements and grants
func (s *Store) DeleteBundle(ctx context.Context, id string) error {
	return s.withTx(ctx, "DeleteBundle", func(tx *sql.Tx) error {
		res, err := s.txExec(ctx, tx, `DELETE FROM bundles WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if err := requireOne(res); err != nil {
			return err
		}
		if _, err := s.txExec(ctx, tx, `DELETE FROM bundle_items WHERE bundle_id = ?`, id); err != nil {
			return err
		}
		_, err = s.txExec(ctx, tx, `DELETE FROM access_grants WHERE subject_kind = ? AND subject_id = ?`,
			string(access.SubjectBundle), id)
		return err
	})
}

func (s *Store) AddBundleItem(ctx context.Context, item *bundles.Item) error {
	return s.withTx(ctx, "AddBundleItem", func(tx *sql.Tx) error {
		ok, err := s.txExists(ctx, tx, `SELECT 1 FROM bundles WHERE id = ?`, item.BundleID)
		if err != nil {
			return err
		}
		if !ok {
			return storage.ErrNotFound
		}
		_, err = s.txExec(ctx, tx,
			`INSERT INTO bundle_items (bundle_id, content_id, position, added_at) VALUES (?, ?, ?, ?)`,
			item.BundleID, item.ContentID, item.Position, utc(item.AddedAt))
		return err
	})
}

func (s *Store) RemoveBundleItem(ctx context.Context, bundleID, contentID string) error {
	return s.execOne(ctx, "RemoveBundleItem",
		`DELETE FROM bundle_items WHERE bundle_id = ? AND content_id = ?`, bundleID, contentID)
}

func (s *Store) ListBundleItems(ctx context.Context, bundleID string) ([]*bundles.Item, error) {
	out := make([]*bundles.Item, 0)
	err := s.query(ctx, "ListBundleItems",
		`SELECT bundle_id, content_id, position, added_at FROM bundle_items
		 WHERE bundle_id = ? ORDER BY position, added_at`,
		[]interface{}{bundleID},
		func(rows *sql.Rows) error {
			var it bundles.Item
			if err := rows.Scan(&it.BundleID, &it.ContentID, &it.Position, &it.AddedAt); err != nil {
				return err
			}
			out = append(out, &it)
			return nil
		})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetBundleItemPositions numbers the listed items from 1 in the given order.
// Every id must already be in the bundle.
func (s *Store) SetBundleItemPositions(ctx context.Context, bundleID string, contentIDs []string) error {
	return s.withTx(ctx, "SetBundleItemPositions", func(tx *sql.Tx) error {
		for i, id := range contentIDs {
			res, err := s.txExec(ctx, tx,
				`UPDATE bundle_items SET position = ? WHERE bundle_id = ? AND content_id = ?`,
				i+1, bundleID, id)
			if err != nil {
				return err
			}
			if err := requireOne(res); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) ListBundleIDsForContent(ctx context.Context, contentID string) ([]string, error) {
	return s.listIDs(ctx, "ListBundleIDsForContent",
		`SELECT bundle_id FROM bundle_items WHERE content_id = ? ORDER BY bundle_id`, contentID)
}
