package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/platinummonkey/mediagate/pkg/sharing"
)

const inviteCodeColumns = `id, code, role, note, created_by, expires_at, active, use_count, created_at, updated_at`

func scanInviteCode(scan func(...interface{}) error) (*sharing.InviteCode, error) {
	var (
		c       sharing.InviteCode
		expires sql.NullTime
	)
	err := scan(&c.ID, &c.Code, &c.Role, &c.Note, &c.CreatedBy, &expires, &c.Active, &c.UseCount,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.ExpiresAt = timePtr(expires)
	return &c, nil
}

func (s *Store) CreateInviteCode(ctx context.Context, c *sharing.InviteCode) error {
	_, err := s.exec(ctx, "CreateInviteCode",
		`INSERT INTO invite_codes (`+inviteCodeColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Code, string(c.Role), c.Note, c.CreatedBy, nullTime(c.ExpiresAt), c.Active, c.UseCount,
		utc(c.CreatedAt), utc(c.UpdatedAt))
	return err
}

func (s *Store) getInviteCode(ctx context.Context, op, where string, arg interface{}) (c *sharing.InviteCode, err error) {
	err = s.get(ctx, op, `SELECT `+inviteCodeColumns+` FROM invite_codes WHERE `+where+` = ?`, []interface{}{arg},
		func(scan func(...interface{}) error) (err error) {
			c, err = scanInviteCode(scan)
			return err
		})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) GetInviteCode(ctx context.Context, id string) (*sharing.InviteCode, error) {
	return s.getInviteCode(ctx, "GetInviteCode", "id", id)
}

func (s *Store) GetInviteCodeByCode(ctx context.Context, code string) (*sharing.InviteCode, error) {
	return s.getInviteCode(ctx, "GetInviteCodeByCode", "code", code)
}

// UpdateInviteCode leaves use_count alone; IncrementInviteUses owns it
func (s *Store) UpdateInviteCode(ctx context.Context, c *sharing.InviteCode) error {
	return s.execOne(ctx, "UpdateInviteCode",
		`UPDATE invite_codes SET role = ?, note = ?, expires_at = ?, active = ?, updated_at = ? WHERE id = ?`,
		string(c.Role), c.Note, nullTime(c.ExpiresAt), c.Active, utc(c.UpdatedAt), c.ID)
}

func (s *Store) IncrementInviteUses(ctx context.Context, id string) error {
	return s.execOne(ctx, "IncrementInviteUses",
		`UPDATE invite_codes SET use_count = use_count + 1 WHERE id = ?`, id)
}

func (s *Store) ListInviteCodes(ctx context.Context) ([]*sharing.InviteCode, error) {
	out := make([]*sharing.InviteCode, 0)
	err := s.query(ctx, "ListInviteCodes",
		`SELECT `+inviteCodeColumns+` FROM invite_codes ORDER BY created_at DESC`, nil,
		func(rows *sql.Rows) error {
			c, err := scanInviteCode(rows.Scan)
			if err != nil {
				return err
			}
			out = append(out, c)
			return nil
		})
	if err != nil {
		return nil, err
	}
	return out, nil
}

const clientInviteColumns = `id, code, email, phone, name, role, created_by, expires_at, active, used_by, used_at, created_at`

func scanClientInvite(scan func(...interface{}) error) (*sharing.ClientInvite, error) {
	var (
		inv           sharing.ClientInvite
		expires, used sql.NullTime
	)
	err := scan(&inv.ID, &inv.Code, &inv.Email, &inv.Phone, &inv.Name, &inv.Role, &inv.CreatedBy, &expires,
		&inv.Active, &inv.UsedBy, &used, &inv.CreatedAt)
	if err != nil {
		return nil, err
	}
	inv.ExpiresAt = timePtr(expires)
	inv.UsedAt = timePtr(used)
	return &inv, nil
}

func (s *Store) CreateClientInvite(ctx context.Context, inv *sharing.ClientInvite) error {
	_, err := s.exec(ctx, "CreateClientInvite",
		`INSERT INTO client_invites (`+clientInviteColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.Code, inv.Email, inv.Phone, inv.Name, string(inv.Role), inv.CreatedBy,
		nullTime(inv.ExpiresAt), inv.Active, inv.UsedBy, nullTime(inv.UsedAt), utc(inv.CreatedAt))
	return err
}

func (s *Store) GetClientInviteByCode(ctx context.Context, code string) (inv *sharing.ClientInvite, err error) {
	err = s.get(ctx, "GetClientInviteByCode",
		`SELECT `+clientInviteColumns+` FROM client_invites WHERE code = ?`, []interface{}{code},
		func(scan func(...interface{}) error) (err error) {
			inv, err = scanClientInvite(scan)
			return err
		})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *Store) ListClientInvites(ctx context.Context) ([]*sharing.ClientInvite, error) {
	out := make([]*sharing.ClientInvite, 0)
	err := s.query(ctx, "ListClientInvites",
		`SELECT `+clientInviteColumns+` FROM client_invites ORDER BY created_at DESC`, nil,
		func(rows *sql.Rows) error {
			inv, err := scanClientInvite(rows.Scan)
			if err != nil {
				return err
			}
			out = append(out, inv)
			return nil
		})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ConsumeClientInvite(ctx context.Context, id, userID string, at time.Time) error {
	res, err := s.exec(ctx, "ConsumeClientInvite",
		`UPDATE client_invites SET used_by = ?, used_at = ?, active = ? WHERE id = ? AND used_at IS NULL`,
		userID, utc(at), false, id)
	if err != nil {
		return err
	}
	return s.casResult(ctx, res, `SELECT 1 FROM client_invites WHERE id = ?`, id)
}

const shareColumns = `id, token, content_id, shared_by, recipient_email, recipient_name, message, expires_at,
	revoked, view_count, last_viewed_at, created_at`

func scanShare(scan func(...interface{}) error) (*sharing.Share, error) {
	var (
		sh                  sharing.Share
		expires, lastViewed sql.NullTime
	)
	err := scan(&sh.ID, &sh.Token, &sh.ContentID, &sh.SharedBy, &sh.RecipientEmail, &sh.RecipientName,
		&sh.Message, &expires, &sh.Revoked, &sh.ViewCount, &lastViewed, &sh.CreatedAt)
	if err != nil {
		return nil, err
	}
	sh.ExpiresAt = timePtr(expires)
	sh.LastViewedAt = timePtr(lastViewed)
	return &sh, nil
}

func (s *Store) CreateShare(ctx context.Context, sh *sharing.Share) error {
	_, err := s.exec(ctx, "CreateShare",
		`INSERT INTO shares (`+shareColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sh.ID, sh.Token, sh.ContentID, sh.SharedBy, sh.RecipientEmail, sh.RecipientName, sh.Message,
		nullTime(sh.ExpiresAt), sh.Revoked, sh.ViewCount, nullTime(sh.LastViewedAt), utc(sh.CreatedAt))
	return err
}

func (s *Store) getShare(ctx context.Context, op, where string, arg interface{}) (sh *sharing.Share, err error) {
	err = s.get(ctx, op, `SELECT `+shareColumns+` FROM shares WHERE `+where+` = ?`, []interface{}{arg},
		func(scan func(...interface{}) error) (err error) {
			sh, err = scanShare(scan)
			return err
		})
	if err != nil {
		return nil, err
	}
	return sh, nil
}

func (s *Store) GetShare(ctx context.Context, id string) (*sharing.Share, error) {
	return s.getShare(ctx, "GetShare", "id", id)
}

func (s *Store) GetShareByToken(ctx context.Context, token string) (*sharing.Share, error) {
	return s.getShare(ctx, "GetShareByToken", "token", token)
}

// UpdateShare leaves the view counters alone; RecordShareView owns them
func (s *Store) UpdateShare(ctx context.Context, sh *sharing.Share) error {
	return s.execOne(ctx, "UpdateShare",
		`UPDATE shares SET recipient_email = ?, recipient_name = ?, message = ?, expires_at = ?, revoked = ?
		 WHERE id = ?`,
		sh.RecipientEmail, sh.RecipientName, sh.Message, nullTime(sh.ExpiresAt), sh.Revoked, sh.ID)
}

func (s *Store) RecordShareView(ctx context.Context, id string, at time.Time) error {
	return s.execOne(ctx, "RecordShareView",
		`UPDATE shares SET view_count = view_count + 1, last_viewed_at = ? WHERE id = ?`, utc(at), id)
}

func (s *Store) ListSharesForContent(ctx context.Context, contentID string) ([]*sharing.Share, error) {
	return s.listShares(ctx, "ListSharesForContent",
		`SELECT `+shareColumns+` FROM shares WHERE content_id = ? ORDER BY created_at DESC`, contentID)
}

func (s *Store) ListSharesBySharer(ctx context.Context, userID string) ([]*sharing.Share, error) {
	return s.listShares(ctx, "ListSharesBySharer",
		`SELECT `+shareColumns+` FROM shares WHERE shared_by = ? ORDER BY created_at DESC`, userID)
}

func (s *Store) listShares(ctx context.Context, op, query string, args ...interface{}) ([]*sharing.Share, error) {
	var out []*sharing.Share
	err := s.query(ctx, op, query, args, func(rows *sql.Rows) error {
		sh, err := scanShare(rows.Scan)
		if err != nil {
			return err
		}
		out = append(out, sh)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) CountActiveShares(ctx context.Context, now time.Time) (n int, err error) {
	err = s.get(ctx, "CountActiveShares",
		`SELECT COUNT(*) FROM shares WHERE revoked = ? AND (expires_at IS NULL OR expires_at > ?)`,
		[]interface{}{false, utc(now)},
		func(scan func(...interface{}) error) error { return scan(&n) })
	if err != nil {
		return 0, err
	}
	return n, nil
}
