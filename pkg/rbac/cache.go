package rbac

import (
	"context"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// CachedProfileStore keeps recently read profiles in an expiring LRU.
// Writes through it invalidate the written profile.
type CachedProfileStore struct {
	next   ProfileStore
	cache  *lru.LRU[string, *Profile]
	hits   atomic.Int64
	misses atomic.Int64
}

// NewCachedProfileStore wraps next with a cache of up to size profiles kept for ttl
func NewCachedProfileStore(next ProfileStore, size int, ttl time.Duration) *CachedProfileStore {
	if size < 10 {
		size = 10
	}
	return &CachedProfileStore{
		next:  next,
		cache: lru.NewLRU[string, *Profile](size, nil, ttl),
	}
}

// GetProfile returns a copy of the cached profile, loading it on a miss
func (c *CachedProfileStore) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	if p, ok := c.cache.Get(userID); ok {
		c.hits.Add(1)
		return copyProfile(p), nil
	}
	c.misses.Add(1)

	p, err := c.next.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.cache.Add(userID, copyProfile(p))
	return p, nil
}

func (c *CachedProfileStore) CreateProfile(ctx context.Context, profile *Profile) error {
	c.cache.Remove(profile.UserID)
	return c.next.CreateProfile(ctx, profile)
}

func (c *CachedProfileStore) UpdateProfile(ctx context.Context, profile *Profile) error {
	defer c.cache.Remove(profile.UserID)
	return c.next.UpdateProfile(ctx, profile)
}

func (c *CachedProfileStore) ListProfiles(ctx context.Context, role Role) ([]*Profile, error) {
	return c.next.ListProfiles(ctx, role)
}

// Stats returns cache hits and misses
func (c *CachedProfileStore) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func copyProfile(p *Profile) *Profile {
	cp := *p
	if p.Permissions != nil {
		cp.Permissions = append([]Permission(nil), p.Permissions...)
	}
	return &cp
}
