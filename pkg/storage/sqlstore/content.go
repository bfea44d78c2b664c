package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/platinummonkey/mediagate/pkg/access"
	"github.com/platinummonkey/mediagate/pkg/content"
	"github.com/platinummonkey/mediagate/pkg/storage"
	"github.com/platinummonkey/mediagate/pkg/workflow"
)

const itemColumns = `id, title, description, type, body, rich_text_content, external_url, file_ref, thumbnail_ref,
	is_public, active, start_date, end_date, status, current_version, password_hash, created_by,
	reviewed_by, review_notes, submitted_at, reviewed_at, published_at, created_at, updated_at`

func scanItem(scan func(...interface{}) error) (*content.Item, error) {
	var (
		item                                     content.Item
		start, end, submitted, reviewed, publish sql.NullTime
	)
	err := scan(&item.ID, &item.Title, &item.Description, &item.Type, &item.Body, &item.RichTextContent,
		&item.ExternalURL, &item.FileRef, &item.ThumbnailRef, &item.IsPublic, &item.Active, &start, &end,
		&item.Status, &item.CurrentVersion, &item.PasswordHash, &item.CreatedBy,
		&item.ReviewedBy, &item.ReviewNotes, &submitted, &reviewed, &publish, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	item.StartDate = timePtr(start)
	item.EndDate = timePtr(end)
	item.SubmittedAt = timePtr(submitted)
	item.ReviewedAt = timePtr(reviewed)
	item.PublishedAt = timePtr(publish)
	return &item, nil
}

func (s *Store) CreateItem(ctx context.Context, item *content.Item) error {
	_, err := s.exec(ctx, "CreateItem",
		`INSERT INTO content_items (`+itemColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Title, item.Description, string(item.Type), item.Body, item.RichTextContent,
		item.ExternalURL, item.FileRef, item.ThumbnailRef, item.IsPublic, item.Active,
		nullTime(item.StartDate), nullTime(item.EndDate), string(item.Status), item.CurrentVersion,
		item.PasswordHash, item.CreatedBy, item.ReviewedBy, item.ReviewNotes,
		nullTime(item.SubmittedAt), nullTime(item.ReviewedAt), nullTime(item.PublishedAt),
		utc(item.CreatedAt), utc(item.UpdatedAt))
	return err
}

func (s *Store) GetItem(ctx context.Context, id string) (item *content.Item, err error) {
	err = s.get(ctx, "GetItem", `SELECT `+itemColumns+` FROM content_items WHERE id = ?`, []interface{}{id},
		func(scan func(...interface{}) error) (err error) {
			item, err = scanItem(scan)
			return err
		})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// SaveItem overwrites everything except the version counter while the stored
// status still equals expected
func (s *Store) SaveItem(ctx context.Context, item *content.Item, expected workflow.Status) error {
	res, err := s.exec(ctx, "SaveItem",
		`UPDATE content_items SET
			title = ?, description = ?, type = ?, body = ?, rich_text_content = ?, external_url = ?,
			file_ref = ?, thumbnail_ref = ?, is_public = ?, active = ?, start_date = ?, end_date = ?,
			status = ?, password_hash = ?, created_by = ?, reviewed_by = ?, review_notes = ?,
			submitted_at = ?, reviewed_at = ?, published_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		item.Title, item.Description, string(item.Type), item.Body, item.RichTextContent, item.ExternalURL,
		item.FileRef, item.ThumbnailRef, item.IsPublic, item.Active,
		nullTime(item.StartDate), nullTime(item.EndDate),
		string(item.Status), item.PasswordHash, item.CreatedBy, item.ReviewedBy, item.ReviewNotes,
		nullTime(item.SubmittedAt), nullTime(item.ReviewedAt), nullTime(item.PublishedAt), utc(item.UpdatedAt),
		item.ID, string(expected))
	if err != nil {
		return err
	}
	return s.casResult(ctx, res, `SELECT 1 FROM content_items WHERE id = ?`, item.ID)
}

// casResult distinguishes a missing row from a lost compare-and-set
func (s *Store) casResult(ctx context.Context, res sql.Result, existsQuery string, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n > 0 {
		return nil
	}
	var one int
	err = s.db.QueryRowContext(ctx, s.rebind(existsQuery), id).Scan(&one)
	if err != nil {
		return mapError(err)
	}
	return storage.ErrConflict
}

func (s *Store) SetCurrentVersion(ctx context.Context, id string, version int) error {
	return s.execOne(ctx, "SetCurrentVersion",
		`UPDATE content_items SET current_version = ? WHERE id = ?`, version, id)
}

// DeleteItem removes the item with its versions, grants, bundle placements and shares
func (s *Store) DeleteItem(ctx context.Context, id string) error {
	return s.withTx(ctx, "DeleteItem", func(tx *sql.Tx) error {
		res, err := s.txExec(ctx, tx, `DELETE FROM content_items WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if err := requireOne(res); err != nil {
			return err
		}
		cascade := []struct {
			query string
			args  []interface{}
		}{
			{`DELETE FROM content_versions WHERE content_id = ?`, []interface{}{id}},
			{`DELETE FROM access_grants WHERE subject_kind = ? AND subject_id = ?`, []interface{}{string(access.SubjectContent), id}},
			{`DELETE FROM bundle_items WHERE content_id = ?`, []interface{}{id}},
			{`DELETE FROM shares WHERE content_id = ?`, []interface{}{id}},
		}
		for _, c := range cascade {
			if _, err := s.txExec(ctx, tx, c.query, c.args...); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) ListItems(ctx context.Context, filter content.ListFilter) ([]*content.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM content_items WHERE 1 = 1`
	var args []interface{}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Type != "" {
		query += ` AND type = ?`
		args = append(args, string(filter.Type))
	}
	if filter.CreatedBy != "" {
		query += ` AND created_by = ?`
		args = append(args, filter.CreatedBy)
	}
	query += ` ORDER BY created_at DESC`

	out := make([]*content.Item, 0)
	err := s.query(ctx, "ListItems", query, args, func(rows *sql.Rows) error {
		item, err := scanItem(rows.Scan)
		if err != nil {
			return err
		}
		out = append(out, item)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) CountVersions(ctx context.Context, contentID string) (n int, err error) {
	err = s.get(ctx, "CountVersions", `SELECT COUNT(*) FROM content_versions WHERE content_id = ?`,
		[]interface{}{contentID},
		func(scan func(...interface{}) error) error { return scan(&n) })
	return n, err
}

func (s *Store) InsertVersion(ctx context.Context, v *content.Version) error {
	fields, err := json.Marshal(v.Fields)
	if err != nil {
		return fmt.Errorf("failed to encode version fields: %w", err)
	}
	_, err = s.exec(ctx, "InsertVersion",
		`INSERT INTO content_versions (id, content_id, version_number, fields, author_id, change_description, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.ContentID, v.VersionNumber, string(fields), v.AuthorID, v.ChangeDescription, utc(v.CreatedAt))
	return err
}

const versionColumns = `id, content_id, version_number, fields, author_id, change_description, created_at`

func scanVersion(scan func(...interface{}) error) (*content.Version, error) {
	var (
		v      content.Version
		fields string
	)
	if err := scan(&v.ID, &v.ContentID, &v.VersionNumber, &fields, &v.AuthorID, &v.ChangeDescription, &v.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(fields), &v.Fields); err != nil {
		return nil, fmt.Errorf("failed to decode fields of version %d: %w", v.VersionNumber, err)
	}
	return &v, nil
}

func (s *Store) GetVersion(ctx context.Context, contentID string, number int) (v *content.Version, err error) {
	err = s.get(ctx, "GetVersion",
		`SELECT `+versionColumns+` FROM content_versions WHERE content_id = ? AND version_number = ?`,
		[]interface{}{contentID, number},
		func(scan func(...interface{}) error) (err error) {
			v, err = scanVersion(scan)
			return err
		})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (s *Store) ListVersions(ctx context.Context, contentID string) ([]*content.Version, error) {
	out := make([]*content.Version, 0)
	err := s.query(ctx, "ListVersions",
		`SELECT `+versionColumns+` FROM content_versions WHERE content_id = ? ORDER BY version_number`,
		[]interface{}{contentID},
		func(rows *sql.Rows) error {
			v, err := scanVersion(rows.Scan)
			if err != nil {
				return err
			}
			out = append(out, v)
			return nil
		})
	if err != nil {
		return nil, err
	}
	return out, nil
}
