package memory

import (
	"context"
	"sort"

	"github.com/platinummonkey/mediagate/pkg/access"
	"github.com/platinummonkey/mediagate/pkg/storage"
)

func copyGrant(g *access.Grant) *access.Grant {
	cp := *g
	cp.ExpiresAt = copyTime(g.ExpiresAt)
	return &cp
}

func sortGrants(grants []*access.Grant) {
	sort.Slice(grants, func(i, j int) bool { return grants[i].CreatedAt.Before(grants[j].CreatedAt) })
}

func (s *Store) CreateGrant(ctx context.Context, g *access.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.grants[g.ID]; ok {
		return storage.ErrDuplicate
	}
	s.grants[g.ID] = copyGrant(g)
	return nil
}

func (s *Store) GetGrant(ctx context.Context, id string) (*access.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.grants[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyGrant(g), nil
}

func (s *Store) UpdateGrant(ctx context.Context, g *access.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.grants[g.ID]; !ok {
		return storage.ErrNotFound
	}
	s.grants[g.ID] = copyGrant(g)
	return nil
}

func (s *Store) DeleteGrant(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.grants[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.grants, id)
	return nil
}

func (s *Store) ListGrantsForSubject(ctx context.Context, kind access.SubjectKind, subjectID string) ([]*access.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*access.Grant
	for _, g := range s.grants {
		if g.SubjectKind == kind && g.SubjectID == subjectID {
			out = append(out, copyGrant(g))
		}
	}
	sortGrants(out)
	return out, nil
}

func (s *Store) ListGrantsForUser(ctx context.Context, userID string) ([]*access.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*access.Grant
	for _, g := range s.grants {
		if g.UserID == userID {
			out = append(out, copyGrant(g))
		}
	}
	sortGrants(out)
	return out, nil
}
