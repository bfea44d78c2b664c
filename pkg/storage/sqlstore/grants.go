package sqlstore

import (
	"context"
	"database/sql"

	"github.com/platinummonkey/mediagate/pkg/access"
)

const grantColumns = `id, subject_kind, subject_id, user_id, role, group_id, expires_at, can_share,
	granted_by, source, order_id, created_at`

func scanGrant(scan func(...interface{}) error) (*access.Grant, error) {
	var (
		g       access.Grant
		expires sql.NullTime
	)
	err := scan(&g.ID, &g.SubjectKind, &g.SubjectID, &g.UserID, &g.Role, &g.GroupID, &expires, &g.CanShare,
		&g.GrantedBy, &g.Source, &g.OrderID, &g.CreatedAt)
	if err != nil {
		return nil, err
	}
	g.ExpiresAt = timePtr(expires)
	return &g, nil
}

func (s *Store) CreateGrant(ctx context.Context, g *access.Grant) error {
	_, err := s.exec(ctx, "CreateGrant",
		`INSERT INTO access_grants (`+grantColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, string(g.SubjectKind), g.SubjectID, g.UserID, string(g.Role), g.GroupID, nullTime(g.ExpiresAt),
		g.CanShare, g.GrantedBy, string(g.Source), g.OrderID, utc(g.CreatedAt))
	return err
}

func (s *Store) GetGrant(ctx context.Context, id string) (g *access.Grant, err error) {
	err = s.get(ctx, "GetGrant", `SELECT `+grantColumns+` FROM access_grants WHERE id = ?`, []interface{}{id},
		func(scan func(...interface{}) error) (err error) {
			g, err = scanGrant(scan)
			return err
		})
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (s *Store) UpdateGrant(ctx context.Context, g *access.Grant) error {
	return s.execOne(ctx, "UpdateGrant",
		`UPDATE access_grants SET user_id = ?, role = ?, group_id = ?, expires_at = ?, can_share = ?,
			source = ?, order_id = ?
		 WHERE id = ?`,
		g.UserID, string(g.Role), g.GroupID, nullTime(g.ExpiresAt), g.CanShare, string(g.Source), g.OrderID, g.ID)
}

func (s *Store) DeleteGrant(ctx context.Context, id string) error {
	return s.execOne(ctx, "DeleteGrant", `DELETE FROM access_grants WHERE id = ?`, id)
}

func (s *Store) ListGrantsForSubject(ctx context.Context, kind access.SubjectKind, subjectID string) ([]*access.Grant, error) {
	return s.listGrants(ctx, "ListGrantsForSubject",
		`SELECT `+grantColumns+` FROM access_grants WHERE subject_kind = ? AND subject_id = ? ORDER BY created_at`,
		string(kind), subjectID)
}

func (s *Store) ListGrantsForUser(ctx context.Context, userID string) ([]*access.Grant, error) {
	return s.listGrants(ctx, "ListGrantsForUser",
		`SELECT `+grantColumns+` FROM access_grants WHERE user_id = ? ORDER BY created_at`, userID)
}

func (s *Store) listGrants(ctx context.Context, op, query string, args ...interface{}) ([]*access.Grant, error) {
	var out []*access.Grant
	err := s.query(ctx, op, query, args, func(rows *sql.Rows) error {
		g, err := scanGrant(rows.Scan)
		if err != nil {
			return err
		}
		out = append(out, g)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
