package memory

import (
	"context"
	"sort"

	"github.com/platinummonkey/mediagate/pkg/groups"
	"github.com/platinummonkey/mediagate/pkg/storage"
)

func (s *Store) CreateGroup(ctx context.Context, group *groups.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.groups {
		if g.ID == group.ID || g.Name == group.Name {
			return storage.ErrDuplicate
		}
	}
	cp := *group
	s.groups[group.ID] = &cp
	return nil
}

func (s *Store) GetGroup(ctx context.Context, id string) (*groups.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (s *Store) ListGroups(ctx context.Context) ([]*groups.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*groups.Group, 0, len(s.groups))
	for _, g := range s.groups {
		cp := *g
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) DeleteGroup(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.groups, id)
	delete(s.memberships, id)
	for gid, g := range s.grants {
		if g.GroupID == id {
			delete(s.grants, gid)
		}
	}
	return nil
}

func (s *Store) AddMembership(ctx context.Context, m *groups.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[m.GroupID]; !ok {
		return storage.ErrNotFound
	}
	members, ok := s.memberships[m.GroupID]
	if !ok {
		members = make(map[string]*groups.Membership)
		s.memberships[m.GroupID] = members
	}
	if _, ok := members[m.UserID]; ok {
		return storage.ErrDuplicate
	}
	cp := *m
	members[m.UserID] = &cp
	return nil
}

func (s *Store) RemoveMembership(ctx context.Context, groupID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	members := s.memberships[groupID]
	if _, ok := members[userID]; !ok {
		return storage.ErrNotFound
	}
	delete(members, userID)
	return nil
}

func (s *Store) ListMemberships(ctx context.Context, groupID string) ([]*groups.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*groups.Membership, 0, len(s.memberships[groupID]))
	for _, m := range s.memberships[groupID] {
		cp := *m
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AddedAt.Before(out[j].AddedAt) })
	return out, nil
}

func (s *Store) ListGroupIDsForUser(ctx context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for gid, members := range s.memberships {
		if _, ok := members[userID]; ok {
			ids = append(ids, gid)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
