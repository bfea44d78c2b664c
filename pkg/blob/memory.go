package blob

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore hands out URLs under a base URL and remembers which references
// it issued. It backs development setups without a bucket.
type MemoryStore struct {
	baseURL string
	ttl     time.Duration
	now     func() time.Time

	mu   sync.RWMutex
	refs map[string]struct{}
}

// NewMemoryStore serves URLs of the form baseURL/<ref>
func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		ttl:     15 * time.Minute,
		now:     time.Now,
		refs:    make(map[string]struct{}),
	}
}

// UploadURL implements Store
func (m *MemoryStore) UploadURL(_ context.Context, _ string) (*Upload, error) {
	ref := refPrefix + uuid.NewString()

	m.mu.Lock()
	m.refs[ref] = struct{}{}
	m.mu.Unlock()

	return &Upload{Ref: ref, URL: m.baseURL + "/" + ref, ExpiresAt: m.now().Add(m.ttl)}, nil
}

// URL implements Store
func (m *MemoryStore) URL(_ context.Context, ref string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.refs[ref]; !ok {
		return "", nil
	}
	return m.baseURL + "/" + ref, nil
}
