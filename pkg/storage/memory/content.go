package memory

import (
	"context"
	"sort"

	"github.com/platinummonkey/mediagate/pkg/access"
	"github.com/platinummonkey/mediagate/pkg/content"
	"github.com/platinummonkey/mediagate/pkg/storage"
	"github.com/platinummonkey/mediagate/pkg/workflow"
)

func copyVersion(v *content.Version) *content.Version {
	cp := *v
	cp.Fields.StartDate = copyTime(v.Fields.StartDate)
	cp.Fields.EndDate = copyTime(v.Fields.EndDate)
	return &cp
}

func (s *Store) CreateItem(ctx context.Context, item *content.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[item.ID]; ok {
		return storage.ErrDuplicate
	}
	s.items[item.ID] = item.Clone()
	return nil
}

func (s *Store) GetItem(ctx context.Context, id string) (*content.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return item.Clone(), nil
}

func (s *Store) SaveItem(ctx context.Context, item *content.Item, expected workflow.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.items[item.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if stored.Status != expected {
		return storage.ErrConflict
	}
	cp := item.Clone()
	// the version counter is owned by SetCurrentVersion
	cp.CurrentVersion = stored.CurrentVersion
	s.items[item.ID] = cp
	return nil
}

func (s *Store) SetCurrentVersion(ctx context.Context, id string, version int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return storage.ErrNotFound
	}
	item.CurrentVersion = version
	return nil
}

func (s *Store) DeleteItem(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.items, id)
	delete(s.versions, id)
	for gid, g := range s.grants {
		if g.SubjectKind == access.SubjectContent && g.SubjectID == id {
			delete(s.grants, gid)
		}
	}
	for bid, items := range s.bundleItems {
		kept := items[:0]
		for _, it := range items {
			if it.ContentID != id {
				kept = append(kept, it)
			}
		}
		s.bundleItems[bid] = kept
	}
	for sid, sh := range s.shares {
		if sh.ContentID == id {
			delete(s.shares, sid)
		}
	}
	return nil
}

func (s *Store) ListItems(ctx context.Context, filter content.ListFilter) ([]*content.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*content.Item, 0)
	for _, item := range s.items {
		if filter.Status != "" && item.Status != filter.Status {
			continue
		}
		if filter.Type != "" && item.Type != filter.Type {
			continue
		}
		if filter.CreatedBy != "" && item.CreatedBy != filter.CreatedBy {
			continue
		}
		out = append(out, item.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) CountVersions(ctx context.Context, contentID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.versions[contentID]), nil
}

func (s *Store) InsertVersion(ctx context.Context, version *content.Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.versions[version.ContentID] {
		if v.VersionNumber == version.VersionNumber {
			return storage.ErrDuplicate
		}
	}
	s.versions[version.ContentID] = append(s.versions[version.ContentID], copyVersion(version))
	return nil
}

func (s *Store) GetVersion(ctx context.Context, contentID string, number int) (*content.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.versions[contentID] {
		if v.VersionNumber == number {
			return copyVersion(v), nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) ListVersions(ctx context.Context, contentID string) ([]*content.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*content.Version, 0, len(s.versions[contentID]))
	for _, v := range s.versions[contentID] {
		out = append(out, copyVersion(v))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VersionNumber < out[j].VersionNumber })
	return out, nil
}
