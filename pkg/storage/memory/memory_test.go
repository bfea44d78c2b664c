package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/mediagate/pkg/access"
	"github.com/platinummonkey/mediagate/pkg/bundles"
	"github.com/platinummonkey/mediagate/pkg/content"
	"github.com/platinummonkey/mediagate/pkg/rbac"
	"github.com/platinummonkey/mediagate/pkg/sharing"
	"github.com/platinummonkey/mediagate/pkg/storage"
	"github.com/platinummonkey/mediagate/pkg/workflow"
)

func TestSaveItemCompareAndSet(t *testing.T) {
	ctx := context.Background()
	s := New()
	item := &content.Item{ID: "c1", Status: workflow.StatusDraft}
	require.NoError(t, s.CreateItem(ctx, item))

	item.Status = workflow.StatusReview
	require.NoError(t, s.SaveItem(ctx, item, workflow.StatusDraft))

	item.Status = workflow.StatusPublished
	err := s.SaveItem(ctx, item, workflow.StatusDraft)
	assert.ErrorIs(t, err, storage.ErrConflict)

	stored, err := s.GetItem(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusReview, stored.Status)
}

func TestCopiesDoNotAlias(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateProfile(ctx, &rbac.Profile{UserID: "u1", Role: rbac.RoleEditor}))

	p, err := s.GetProfile(ctx, "u1")
	require.NoError(t, err)
	p.Role = rbac.RoleAdmin

	again, err := s.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleEditor, again.Role)
}

func TestSingleOwner(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateProfile(ctx, &rbac.Profile{UserID: "o1", Role: rbac.RoleOwner}))
	err := s.CreateProfile(ctx, &rbac.Profile{UserID: "o2", Role: rbac.RoleOwner})
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	require.NoError(t, s.CreateProfile(ctx, &rbac.Profile{UserID: "e1", Role: rbac.RoleEditor}))
	err = s.UpdateProfile(ctx, &rbac.Profile{UserID: "e1", Role: rbac.RoleOwner})
	assert.ErrorIs(t, err, storage.ErrDuplicate)
	require.NoError(t, s.UpdateProfile(ctx, &rbac.Profile{UserID: "o1", Role: rbac.RoleOwner, Active: true}))
}

// staleOwnerList hides existing owners, as a bootstrap that listed before
// another one committed would see them
type staleOwnerList struct {
	*Store
}

func (s staleOwnerList) ListProfiles(ctx context.Context, role rbac.Role) ([]*rbac.Profile, error) {
	return nil, nil
}

func TestBootstrapOwnerLosingRaceReportsOwnerExists(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := rbac.NewManager(s, nil).BootstrapOwner(ctx, "first", "")
	require.NoError(t, err)

	_, err = rbac.NewManager(staleOwnerList{s}, nil).BootstrapOwner(ctx, "second", "")
	assert.ErrorIs(t, err, rbac.ErrOwnerExists)

	owners, err := s.ListProfiles(ctx, rbac.RoleOwner)
	require.NoError(t, err)
	require.Len(t, owners, 1)
	assert.Equal(t, "first", owners[0].UserID)
}

func TestConcurrentBootstrapCreatesOneOwner(t *testing.T) {
	ctx := context.Background()
	s := New()
	m := rbac.NewManager(s, nil)

	const callers = 16
	var (
		wg   sync.WaitGroup
		wins int32
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := m.BootstrapOwner(ctx, fmt.Sprintf("user-%d", i), "")
			if err == nil {
				atomic.AddInt32(&wins, 1)
				return
			}
			assert.ErrorIs(t, err, rbac.ErrOwnerExists)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
	owners, err := s.ListProfiles(ctx, rbac.RoleOwner)
	require.NoError(t, err)
	assert.Len(t, owners, 1)
}

func TestVersionNumbersUnique(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.InsertVersion(ctx, &content.Version{ID: "v1", ContentID: "c1", VersionNumber: 1}))
	err := s.InsertVersion(ctx, &content.Version{ID: "v2", ContentID: "c1", VersionNumber: 1})
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	require.NoError(t, s.InsertVersion(ctx, &content.Version{ID: "v3", ContentID: "c1", VersionNumber: 2}))
	versions, err := s.ListVersions(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 1, versions[0].VersionNumber)
	assert.Equal(t, 2, versions[1].VersionNumber)
}

func TestDeleteItemCascades(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now()

	require.NoError(t, s.CreateItem(ctx, &content.Item{ID: "c1"}))
	require.NoError(t, s.InsertVersion(ctx, &content.Version{ID: "v1", ContentID: "c1", VersionNumber: 1}))
	require.NoError(t, s.CreateGrant(ctx, &access.Grant{ID: "g1", SubjectKind: access.SubjectContent, SubjectID: "c1", UserID: "u1"}))
	require.NoError(t, s.CreateGrant(ctx, &access.Grant{ID: "g2", SubjectKind: access.SubjectBundle, SubjectID: "c1", UserID: "u1"}))
	require.NoError(t, s.CreateBundle(ctx, &bundles.Bundle{ID: "b1", Name: "pack"}))
	require.NoError(t, s.AddBundleItem(ctx, &bundles.Item{BundleID: "b1", ContentID: "c1", Position: 1}))
	require.NoError(t, s.CreateShare(ctx, &sharing.Share{ID: "s1", Token: "tok", ContentID: "c1", CreatedAt: now}))

	require.NoError(t, s.DeleteItem(ctx, "c1"))

	n, err := s.CountVersions(ctx, "c1")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = s.GetGrant(ctx, "g1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.GetGrant(ctx, "g2")
	assert.NoError(t, err, "a bundle grant sharing the id is untouched")

	items, err := s.ListBundleItems(ctx, "b1")
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = s.GetShareByToken(ctx, "tok")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestConsumeClientInviteOnce(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateClientInvite(ctx, &sharing.ClientInvite{ID: "i1", Code: "ABC", Active: true}))

	require.NoError(t, s.ConsumeClientInvite(ctx, "i1", "u1", time.Now()))
	err := s.ConsumeClientInvite(ctx, "i1", "u2", time.Now())
	assert.ErrorIs(t, err, storage.ErrConflict)

	inv, err := s.GetClientInviteByCode(ctx, "ABC")
	require.NoError(t, err)
	assert.Equal(t, "u1", inv.UsedBy)
	assert.False(t, inv.Active)
}

func TestShareViewsAndCount(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now()
	past := now.Add(-time.Hour)

	require.NoError(t, s.CreateShare(ctx, &sharing.Share{ID: "s1", Token: "a", CreatedAt: now}))
	require.NoError(t, s.CreateShare(ctx, &sharing.Share{ID: "s2", Token: "b", ExpiresAt: &past, CreatedAt: now}))
	require.NoError(t, s.CreateShare(ctx, &sharing.Share{ID: "s3", Token: "c", Revoked: true, CreatedAt: now}))
	assert.ErrorIs(t, s.CreateShare(ctx, &sharing.Share{ID: "s4", Token: "a"}), storage.ErrDuplicate)

	require.NoError(t, s.RecordShareView(ctx, "s1", now))
	require.NoError(t, s.RecordShareView(ctx, "s1", now))
	sh, err := s.GetShare(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), sh.ViewCount)

	n, err := s.CountActiveShares(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
