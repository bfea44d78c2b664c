package memory

import (
	"context"
	"sort"
	"time"

	"github.com/platinummonkey/mediagate/pkg/sharing"
	"github.com/platinummonkey/mediagate/pkg/storage"
)

func copyInviteCode(c *sharing.InviteCode) *sharing.InviteCode {
	cp := *c
	cp.ExpiresAt = copyTime(c.ExpiresAt)
	return &cp
}

func copyClientInvite(inv *sharing.ClientInvite) *sharing.ClientInvite {
	cp := *inv
	cp.ExpiresAt = copyTime(inv.ExpiresAt)
	cp.UsedAt = copyTime(inv.UsedAt)
	return &cp
}

func copyShare(sh *sharing.Share) *sharing.Share {
	cp := *sh
	cp.ExpiresAt = copyTime(sh.ExpiresAt)
	cp.LastViewedAt = copyTime(sh.LastViewedAt)
	return &cp
}

func (s *Store) CreateInviteCode(ctx context.Context, c *sharing.InviteCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.inviteCodes {
		if existing.ID == c.ID || existing.Code == c.Code {
			return storage.ErrDuplicate
		}
	}
	s.inviteCodes[c.ID] = copyInviteCode(c)
	return nil
}

func (s *Store) GetInviteCode(ctx context.Context, id string) (*sharing.InviteCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.inviteCodes[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyInviteCode(c), nil
}

func (s *Store) GetInviteCodeByCode(ctx context.Context, code string) (*sharing.InviteCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.inviteCodes {
		if c.Code == code {
			return copyInviteCode(c), nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) UpdateInviteCode(ctx context.Context, c *sharing.InviteCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.inviteCodes[c.ID]
	if !ok {
		return storage.ErrNotFound
	}
	cp := copyInviteCode(c)
	cp.UseCount = stored.UseCount
	s.inviteCodes[c.ID] = cp
	return nil
}

func (s *Store) IncrementInviteUses(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.inviteCodes[id]
	if !ok {
		return storage.ErrNotFound
	}
	c.UseCount++
	return nil
}

func (s *Store) ListInviteCodes(ctx context.Context) ([]*sharing.InviteCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*sharing.InviteCode, 0, len(s.inviteCodes))
	for _, c := range s.inviteCodes {
		out = append(out, copyInviteCode(c))
	}
	return out, nil
}

func (s *Store) CreateClientInvite(ctx context.Context, inv *sharing.ClientInvite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.clientInvites {
		if existing.ID == inv.ID || existing.Code == inv.Code {
			return storage.ErrDuplicate
		}
	}
	s.clientInvites[inv.ID] = copyClientInvite(inv)
	return nil
}

func (s *Store) GetClientInviteByCode(ctx context.Context, code string) (*sharing.ClientInvite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, inv := range s.clientInvites {
		if inv.Code == code {
			return copyClientInvite(inv), nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) ListClientInvites(ctx context.Context) ([]*sharing.ClientInvite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*sharing.ClientInvite, 0, len(s.clientInvites))
	for _, inv := range s.clientInvites {
		out = append(out, copyClientInvite(inv))
	}
	return out, nil
}

func (s *Store) ConsumeClientInvite(ctx context.Context, id, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.clientInvites[id]
	if !ok {
		return storage.ErrNotFound
	}
	if inv.UsedAt != nil {
		return storage.ErrConflict
	}
	inv.UsedBy = userID
	inv.UsedAt = &at
	inv.Active = false
	return nil
}

func (s *Store) CreateShare(ctx context.Context, sh *sharing.Share) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.shares {
		if existing.ID == sh.ID || existing.Token == sh.Token {
			return storage.ErrDuplicate
		}
	}
	s.shares[sh.ID] = copyShare(sh)
	return nil
}

func (s *Store) GetShare(ctx context.Context, id string) (*sharing.Share, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sh, ok := s.shares[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyShare(sh), nil
}

func (s *Store) GetShareByToken(ctx context.Context, token string) (*sharing.Share, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sh := range s.shares {
		if sh.Token == token {
			return copyShare(sh), nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) UpdateShare(ctx context.Context, sh *sharing.Share) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.shares[sh.ID]
	if !ok {
		return storage.ErrNotFound
	}
	cp := copyShare(sh)
	cp.ViewCount = stored.ViewCount
	cp.LastViewedAt = copyTime(stored.LastViewedAt)
	s.shares[sh.ID] = cp
	return nil
}

func (s *Store) RecordShareView(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, ok := s.shares[id]
	if !ok {
		return storage.ErrNotFound
	}
	sh.ViewCount++
	sh.LastViewedAt = &at
	return nil
}

func (s *Store) listShares(match func(*sharing.Share) bool) []*sharing.Share {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*sharing.Share
	for _, sh := range s.shares {
		if match(sh) {
			out = append(out, copyShare(sh))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *Store) ListSharesForContent(ctx context.Context, contentID string) ([]*sharing.Share, error) {
	return s.listShares(func(sh *sharing.Share) bool { return sh.ContentID == contentID }), nil
}

func (s *Store) ListSharesBySharer(ctx context.Context, userID string) ([]*sharing.Share, error) {
	return s.listShares(func(sh *sharing.Share) bool { return sh.SharedBy == userID }), nil
}

func (s *Store) CountActiveShares(ctx context.Context, now time.Time) (int, error) {
	active := s.listShares(func(sh *sharing.Share) bool {
		return !sh.Revoked && (sh.ExpiresAt == nil || sh.ExpiresAt.After(now))
	})
	return len(active), nil
}
