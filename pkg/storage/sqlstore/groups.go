package sqlstore

import (
	"context"
	"database/sql"

	"github.com/platinummonkey/mediagate/pkg/groups"
	"github.com/platinummonkey/mediagate/pkg/storage"
)

func (s *Store) CreateGroup(ctx context.Context, g *groups.Group) error {
	_, err := s.exec(ctx, "CreateGroup",
		`INSERT INTO user_groups (id, name, description, created_by, created_at) VALUES (?, ?, ?, ?, ?)`,
		g.ID, g.Name, g.Description, g.CreatedBy, utc(g.CreatedAt))
	return err
}

func (s *Store) GetGroup(ctx context.Context, id string) (*groups.Group, error) {
	var g groups.Group
	err := s.get(ctx, "GetGroup",
		`SELECT id, name, description, created_by, created_at FROM user_groups WHERE id = ?`,
		[]interface{}{id},
		func(scan func(...interface{}) error) error {
			return scan(&g.ID, &g.Name, &g.Description, &g.CreatedBy, &g.CreatedAt)
		})
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *Store) ListGroups(ctx context.Context) ([]*groups.Group, error) {
	out := make([]*groups.Group, 0)
	err := s.query(ctx, "ListGroups",
		`SELECT id, name, description, created_by, created_at FROM user_groups ORDER BY name`, nil,
		func(rows *sql.Rows) error {
			var g groups.Group
			if err := rows.Scan(&g.ID, &g.Name, &g.Description, &g.CreatedBy, &g.CreatedAt); err != nil {
				return err
			}
			out = append(out, &g)
			return nil
		})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteGroup removes the group, its memberships and every grant targeting it
func (s *Store) DeleteGroup(ctx context.Context, id string) error {
	return s.withTx(ctx, "DeleteGroup", func(tx *sql.Tx) error {
		res, err := s.txExec(ctx, tx, `DELETE FROM user_groups WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if err := requireOne(res); err != nil {
			return err
		}
		if _, err := s.txExec(ctx, tx, `DELETE FROM group_memberships WHERE group_id = ?`, id); err != nil {
			return err
		}
		_, err = s.txExec(ctx, tx, `DELETE FROM access_grants WHERE group_id = ?`, id)
		return err
	})
}

func (s *Store) AddMembership(ctx context.Context, m *groups.Membership) error {
	return s.withTx(ctx, "AddMembership", func(tx *sql.Tx) error {
		ok, err := s.txExists(ctx, tx, `SELECT 1 FROM user_groups WHERE id = ?`, m.GroupID)
		if err != nil {
			return err
		}
		if !ok {
			return storage.ErrNotFound
		}
		_, err = s.txExec(ctx, tx,
			`INSERT INTO group_memberships (id, group_id, user_id, added_by, added_at) VALUES (?, ?, ?, ?, ?)`,
			m.ID, m.GroupID, m.UserID, m.AddedBy, utc(m.AddedAt))
		return err
	})
}

func (s *Store) RemoveMembership(ctx context.Context, groupID, userID string) error {
	return s.execOne(ctx, "RemoveMembership",
		`DELETE FROM group_memberships WHERE group_id = ? AND user_id = ?`, groupID, userID)
}

func (s *Store) ListMemberships(ctx context.Context, groupID string) ([]*groups.Membership, error) {
	out := make([]*groups.Membership, 0)
	err := s.query(ctx, "ListMemberships",
		`SELECT id, group_id, user_id, added_by, added_at FROM group_memberships WHERE group_id = ? ORDER BY added_at`,
		[]interface{}{groupID},
		func(rows *sql.Rows) error {
			var m groups.Membership
			if err := rows.Scan(&m.ID, &m.GroupID, &m.UserID, &m.AddedBy, &m.AddedAt); err != nil {
				return err
			}
			out = append(out, &m)
			return nil
		})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ListGroupIDsForUser(ctx context.Context, userID string) ([]string, error) {
	return s.listIDs(ctx, "ListGroupIDsForUser",
		`SELECT group_id FROM group_memberships WHERE user_id = ? ORDER BY group_id`, userID)
}

func (s *Store) listIDs(ctx context.Context, op, query string, args ...interface{}) ([]string, error) {
	var ids []string
	err := s.query(ctx, op, query, args, func(rows *sql.Rows) error {
		var id string
		if err := rows.Scan(&id); err != nil {
			return err
		}
		ids = append(ids, id)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}
