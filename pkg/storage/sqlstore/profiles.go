package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/platinummonkey/mediagate/pkg/rbac"
)

const profileColumns = `user_id, email, display_name, role, permissions, active, created_at, updated_at`

func encodePermissions(perms []rbac.Permission) (string, error) {
	if perms == nil {
		perms = []rbac.Permission{}
	}
	b, err := json.Marshal(perms)
	if err != nil {
		return "", fmt.Errorf("failed to encode permissions: %w", err)
	}
	return string(b), nil
}

func scanProfile(scan func(...interface{}) error) (*rbac.Profile, error) {
	var (
		p     rbac.Profile
		perms string
	)
	if err := scan(&p.UserID, &p.Email, &p.DisplayName, &p.Role, &perms, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(perms), &p.Permissions); err != nil {
		return nil, fmt.Errorf("failed to decode permissions for %s: %w", p.UserID, err)
	}
	if len(p.Permissions) == 0 {
		p.Permissions = nil
	}
	return &p, nil
}

func (s *Store) GetProfile(ctx context.Context, userID string) (p *rbac.Profile, err error) {
	err = s.get(ctx, "GetProfile",
		`SELECT `+profileColumns+` FROM profiles WHERE user_id = ?`,
		[]interface{}{userID},
		func(scan func(...interface{}) error) (err error) {
			p, err = scanProfile(scan)
			return err
		})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) CreateProfile(ctx context.Context, profile *rbac.Profile) error {
	perms, err := encodePermissions(profile.Permissions)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, "CreateProfile",
		`INSERT INTO profiles (`+profileColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		profile.UserID, profile.Email, profile.DisplayName, string(profile.Role), perms, profile.Active,
		utc(profile.CreatedAt), utc(profile.UpdatedAt))
	return err
}

func (s *Store) UpdateProfile(ctx context.Context, profile *rbac.Profile) error {
	perms, err := encodePermissions(profile.Permissions)
	if err != nil {
		return err
	}
	return s.execOne(ctx, "UpdateProfile",
		`UPDATE profiles SET email = ?, display_name = ?, role = ?, permissions = ?, active = ?, updated_at = ?
		 WHERE user_id = ?`,
		profile.Email, profile.DisplayName, string(profile.Role), perms, profile.Active, utc(profile.UpdatedAt),
		profile.UserID)
}

func (s *Store) ListProfiles(ctx context.Context, role rbac.Role) ([]*rbac.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles`
	var args []interface{}
	if role != "" {
		query += ` WHERE role = ?`
		args = append(args, string(role))
	}
	query += ` ORDER BY user_id`

	out := make([]*rbac.Profile, 0)
	err := s.query(ctx, "ListProfiles", query, args, func(rows *sql.Rows) error {
		p, err := scanProfile(rows.Scan)
		if err != nil {
			return err
		}
		out = append(out, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
