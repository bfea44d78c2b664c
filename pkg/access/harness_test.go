package access_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/mediagate/pkg/access"
	"github.com/platinummonkey/mediagate/pkg/audit"
	"github.com/platinummonkey/mediagate/pkg/billing"
	"github.com/platinummonkey/mediagate/pkg/bundles"
	"github.com/platinummonkey/mediagate/pkg/content"
	"github.com/platinummonkey/mediagate/pkg/groups"
	"github.com/platinummonkey/mediagate/pkg/rbac"
	"github.com/platinummonkey/mediagate/pkg/storage/memory"
)

var (
	admin        = &rbac.Profile{UserID: "admin-1", Role: rbac.RoleAdmin, Active: true}
	editor       = &rbac.Profile{UserID: "editor-1", Role: rbac.RoleEditor, Active: true}
	contributor  = &rbac.Profile{UserID: "contrib-1", Role: rbac.RoleContributor, Active: true}
	client       = &rbac.Profile{UserID: "client-1", Role: rbac.RoleClient, Active: true}
	parent       = &rbac.Profile{UserID: "parent-1", Role: rbac.RoleParent, Active: true}
	professional = &rbac.Profile{UserID: "pro-1", Role: rbac.RoleProfessional, Active: true}
)

func init() {
	content.PasswordCost = 4
}

type harness struct {
	now      time.Time
	store    *memory.Store
	audit    *audit.MemoryLogger
	content  *content.Service
	groups   *groups.Service
	bundles  *bundles.Service
	grants   *access.GrantService
	billing  *billing.Service
	resolver *access.Resolver
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		now:   time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC),
		store: memory.New(),
		audit: audit.NewMemoryLogger(),
	}
	clock := func() time.Time { return h.now }

	h.content = content.NewService(h.store, h.audit).WithClock(clock)
	h.groups = groups.NewService(h.store)
	h.bundles = bundles.NewService(h.store, h.content)
	h.grants = access.NewGrantService(h.store, h.content, h.bundles, h.store, h.groups, h.audit).WithClock(clock)
	h.billing = billing.NewService(h.store, h.grants, billing.MockProcessor{}, h.audit).WithClock(clock)
	h.resolver = access.NewResolver(h.content, h.store, h.groups, h.bundles, h.billing).
		WithClock(clock).
		WithAudit(h.audit)

	ctx := context.Background()
	for _, p := range []*rbac.Profile{admin, editor, contributor, client, parent, professional} {
		require.NoError(t, h.store.CreateProfile(ctx, p))
	}
	return h
}

func (h *harness) advance(d time.Duration) {
	h.now = h.now.Add(d)
}

type itemSpec struct {
	public   bool
	password string
	creator  *rbac.Profile
	start    *time.Time
	end      *time.Time
	draft    bool
}

// publish creates an item and walks it through review to published
func (h *harness) publish(t *testing.T, spec itemSpec) *content.Item {
	t.Helper()
	ctx := context.Background()
	creator := spec.creator
	if creator == nil {
		creator = admin
	}
	item, err := h.content.Create(ctx, creator, content.CreateInput{
		Fields: content.Fields{
			Title:     "lesson",
			Type:      content.TypeVideo,
			IsPublic:  spec.public,
			Active:    true,
			StartDate: spec.start,
			EndDate:   spec.end,
		},
		Password: spec.password,
	})
	require.NoError(t, err)
	if spec.draft {
		return item
	}
	_, err = h.content.Submit(ctx, admin, item.ID)
	require.NoError(t, err)
	item, err = h.content.Approve(ctx, admin, item.ID)
	require.NoError(t, err)
	return item
}

func (h *harness) grant(t *testing.T, req access.GrantRequest) *access.Grant {
	t.Helper()
	g, err := h.grants.Create(context.Background(), admin, req)
	require.NoError(t, err)
	return g
}

func (h *harness) resolve(t *testing.T, contentID string, profile *rbac.Profile, opts access.ResolveOptions) *access.Decision {
	t.Helper()
	d, err := h.resolver.Resolve(context.Background(), contentID, profile, opts)
	require.NoError(t, err)
	return d
}

func at(t time.Time) *time.Time { return &t }

type denyLimiter struct{ calls int }

func (l *denyLimiter) Allow(ctx context.Context, key string) (bool, error) {
	l.calls++
	return false, nil
}
