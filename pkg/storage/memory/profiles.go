package memory

import (
	"context"
	"sort"

	"github.com/platinummonkey/mediagate/pkg/rbac"
	"github.com/platinummonkey/mediagate/pkg/storage"
)

func copyProfile(p *rbac.Profile) *rbac.Profile {
	cp := *p
	if p.Permissions != nil {
		cp.Permissions = append([]rbac.Permission(nil), p.Permissions...)
	}
	return &cp
}

func (s *Store) GetProfile(ctx context.Context, userID string) (*rbac.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyProfile(p), nil
}

func (s *Store) CreateProfile(ctx context.Context, profile *rbac.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[profile.UserID]; ok {
		return storage.ErrDuplicate
	}
	if profile.Role == rbac.RoleOwner {
		for _, p := range s.profiles {
			if p.Role == rbac.RoleOwner {
				return storage.ErrDuplicate
			}
		}
	}
	s.profiles[profile.UserID] = copyProfile(profile)
	return nil
}

func (s *Store) UpdateProfile(ctx context.Context, profile *rbac.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[profile.UserID]; !ok {
		return storage.ErrNotFound
	}
	if profile.Role == rbac.RoleOwner {
		for id, p := range s.profiles {
			if id != profile.UserID && p.Role == rbac.RoleOwner {
				return storage.ErrDuplicate
			}
		}
	}
	s.profiles[profile.UserID] = copyProfile(profile)
	return nil
}

func (s *Store) ListProfiles(ctx context.Context, role rbac.Role) ([]*rbac.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*rbac.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		if role != "" && p.Role != role {
			continue
		}
		out = append(out, copyProfile(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}
