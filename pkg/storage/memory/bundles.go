package memory

import (
	"context"
	"sort"

	"github.com/platinummonkey/mediagate/pkg/access"
	"github.com/platinummonkey/mediagate/pkg/bundles"
	"github.com/platinummonkey/mediagate/pkg/storage"
)

func (s *Store) CreateBundle(ctx context.Context, b *bundles.Bundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bundles[b.ID]; ok {
		return storage.ErrDuplicate
	}
	cp := *b
	s.bundles[b.ID] = &cp
	return nil
}

func (s *Store) GetBundle(ctx context.Context, id string) (*bundles.Bundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bundles[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *Store) UpdateBundle(ctx context.Context, b *bundles.Bundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bundles[b.ID]; !ok {
		return storage.ErrNotFound
	}
	cp := *b
	s.bundles[b.ID] = &cp
	return nil
}

func (s *Store) ListBundles(ctx context.Context) ([]*bundles.Bundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*bundles.Bundle, 0, len(s.bundles))
	for _, b := range s.bundles {
		cp := *b
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) DeleteBundle(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bundles[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.bundles, id)
	delete(s.bundleItems, id)
	for gid, g := range s.grants {
		if g.SubjectKind == access.SubjectBundle && g.SubjectID == id {
			delete(s.grants, gid)
		}
	}
	return nil
}

func (s *Store) AddBundleItem(ctx context.Context, item *bundles.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bundles[item.BundleID]; !ok {
		return storage.ErrNotFound
	}
	for _, it := range s.bundleItems[item.BundleID] {
		if it.ContentID == item.ContentID {
			return storage.ErrDuplicate
		}
	}
	cp := *item
	s.bundleItems[item.BundleID] = append(s.bundleItems[item.BundleID], &cp)
	return nil
}

func (s *Store) RemoveBundleItem(ctx context.Context, bundleID, contentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.bundleItems[bundleID]
	for i, it := range items {
		if it.ContentID == contentID {
			s.bundleItems[bundleID] = append(items[:i:i], items[i+1:]...)
			return nil
		}
	}
	return storage.ErrNotFound
}

func (s *Store) ListBundleItems(ctx context.Context, bundleID string) ([]*bundles.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*bundles.Item, 0, len(s.bundleItems[bundleID]))
	for _, it := range s.bundleItems[bundleID] {
		cp := *it
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (s *Store) SetBundleItemPositions(ctx context.Context, bundleID string, contentIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byContent := make(map[string]*bundles.Item, len(s.bundleItems[bundleID]))
	for _, it := range s.bundleItems[bundleID] {
		byContent[it.ContentID] = it
	}
	for i, id := range contentIDs {
		it, ok := byContent[id]
		if !ok {
			return storage.ErrNotFound
		}
		it.Position = i + 1
	}
	return nil
}

func (s *Store) ListBundleIDsForContent(ctx context.Context, contentID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for bid, items := range s.bundleItems {
		for _, it := range items {
			if it.ContentID == contentID {
				ids = append(ids, bid)
				break
			}
		}
	}
	sort.Strings(ids)
	return ids, nil
}
