package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/mediagate/pkg/access"
	"github.com/platinummonkey/mediagate/pkg/billing"
	"github.com/platinummonkey/mediagate/pkg/bundles"
	"github.com/platinummonkey/mediagate/pkg/content"
	"github.com/platinummonkey/mediagate/pkg/groups"
	"github.com/platinummonkey/mediagate/pkg/rbac"
	"github.com/platinummonkey/mediagate/pkg/sharing"
	"github.com/platinummonkey/mediagate/pkg/storage"
	"github.com/platinummonkey/mediagate/pkg/workflow"
)

// storeCases runs against every SQL backend. Each case gets an empty store.
var storeCases = map[string]func(t *testing.T, s *Store){
	"item round trip":            testItemRoundTrip,
	"save item compare and set":  testSaveItemCompareAndSet,
	"versions":                   testVersions,
	"delete item cascades":       testDeleteItemCascades,
	"profiles":                   testProfiles,
	"groups":                     testGroups,
	"bundle items":               testBundleItems,
	"pricing and orders":         testPricingAndOrders,
	"invite codes":               testInviteCodes,
	"consume client invite once": testConsumeClientInviteOnce,
	"shares":                     testShares,
}

// ts truncates to microseconds, the resolution postgres keeps
func ts(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func testItemRoundTrip(t *testing.T, s *Store) {
	ctx := context.Background()
	now := ts(time.Now())
	start := now.Add(-time.Hour)

	item := &content.Item{
		ID: "c1",
		Fields: content.Fields{
			Title:     "Breathing basics",
			Type:      content.TypeVideo,
			FileRef:   "media/abc",
			IsPublic:  true,
			Active:    true,
			StartDate: &start,
		},
		Status:       workflow.StatusDraft,
		PasswordHash: "hash",
		CreatedBy:    "u1",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, s.CreateItem(ctx, item))
	assert.ErrorIs(t, s.CreateItem(ctx, item), storage.ErrDuplicate)

	got, err := s.GetItem(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Breathing basics", got.Title)
	assert.Equal(t, content.TypeVideo, got.Type)
	assert.True(t, got.IsPublic)
	assert.Equal(t, "hash", got.PasswordHash)
	require.NotNil(t, got.StartDate)
	assert.True(t, start.Equal(*got.StartDate))
	assert.Nil(t, got.EndDate)
	assert.Nil(t, got.PublishedAt)
	assert.True(t, now.Equal(got.CreatedAt))

	_, err = s.GetItem(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.CreateItem(ctx, &content.Item{ID: "c2", Fields: content.Fields{Type: content.TypeArticle},
		Status: workflow.StatusPublished, CreatedBy: "u2", CreatedAt: now.Add(time.Minute), UpdatedAt: now}))

	all, err := s.ListItems(ctx, content.ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "c2", all[0].ID, "newest first")

	published, err := s.ListItems(ctx, content.ListFilter{Status: workflow.StatusPublished})
	require.NoError(t, err)
	require.Len(t, published, 1)
	assert.Equal(t, "c2", published[0].ID)

	mine, err := s.ListItems(ctx, content.ListFilter{CreatedBy: "u1", Type: content.TypeVideo})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "c1", mine[0].ID)
}

func testSaveItemCompareAndSet(t *testing.T, s *Store) {
	ctx := context.Background()
	now := ts(time.Now())
	item := &content.Item{ID: "c1", Status: workflow.StatusDraft, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.CreateItem(ctx, item))
	require.NoError(t, s.SetCurrentVersion(ctx, "c1", 3))

	item.Status = workflow.StatusReview
	item.CurrentVersion = 99
	require.NoError(t, s.SaveItem(ctx, item, workflow.StatusDraft))

	item.Status = workflow.StatusPublished
	assert.ErrorIs(t, s.SaveItem(ctx, item, workflow.StatusDraft), storage.ErrConflict)

	stored, err := s.GetItem(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusReview, stored.Status)
	assert.Equal(t, 3, stored.CurrentVersion, "the version counter is not overwritten by saves")

	missing := &content.Item{ID: "nope", Status: workflow.StatusReview}
	assert.ErrorIs(t, s.SaveItem(ctx, missing, workflow.StatusDraft), storage.ErrNotFound)
	assert.ErrorIs(t, s.SetCurrentVersion(ctx, "nope", 1), storage.ErrNotFound)
}

func testVersions(t *testing.T, s *Store) {
	ctx := context.Background()
	now := ts(time.Now())
	end := now.Add(24 * time.Hour)

	v1 := &content.Version{ID: "v1", ContentID: "c1", VersionNumber: 1, AuthorID: "u1",
		Fields: content.Fields{Title: "first", Type: content.TypeDocument, EndDate: &end}, CreatedAt: now}
	require.NoError(t, s.InsertVersion(ctx, v1))
	err := s.InsertVersion(ctx, &content.Version{ID: "v2", ContentID: "c1", VersionNumber: 1, CreatedAt: now})
	assert.ErrorIs(t, err, storage.ErrDuplicate)
	require.NoError(t, s.InsertVersion(ctx, &content.Version{ID: "v3", ContentID: "c1", VersionNumber: 2,
		Fields: content.Fields{Title: "second"}, ChangeDescription: "retitle", CreatedAt: now}))

	n, err := s.CountVersions(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := s.GetVersion(ctx, "c1", 1)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Fields.Title)
	require.NotNil(t, got.Fields.EndDate)
	assert.True(t, end.Equal(*got.Fields.EndDate))

	_, err = s.GetVersion(ctx, "c1", 7)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	versions, err := s.ListVersions(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 1, versions[0].VersionNumber)
	assert.Equal(t, "retitle", versions[1].ChangeDescription)
}

func testDeleteItemCascades(t *testing.T, s *Store) {
	ctx := context.Background()
	now := ts(time.Now())

	require.NoError(t, s.CreateItem(ctx, &content.Item{ID: "c1", CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, s.InsertVersion(ctx, &content.Version{ID: "v1", ContentID: "c1", VersionNumber: 1, CreatedAt: now}))
	require.NoError(t, s.CreateGrant(ctx, &access.Grant{ID: "g1", SubjectKind: access.SubjectContent, SubjectID: "c1",
		UserID: "u1", Source: access.SourceManual, CreatedAt: now}))
	require.NoError(t, s.CreateGrant(ctx, &access.Grant{ID: "g2", SubjectKind: access.SubjectBundle, SubjectID: "c1",
		UserID: "u1", Source: access.SourceManual, CreatedAt: now}))
	require.NoError(t, s.CreateBundle(ctx, &bundles.Bundle{ID: "b1", Name: "pack", CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, s.AddBundleItem(ctx, &bundles.Item{BundleID: "b1", ContentID: "c1", Position: 1, AddedAt: now}))
	require.NoError(t, s.CreateShare(ctx, &sharing.Share{ID: "s1", Token: "tok", ContentID: "c1", SharedBy: "u1", CreatedAt: now}))

	require.NoError(t, s.DeleteItem(ctx, "c1"))
	assert.ErrorIs(t, s.DeleteItem(ctx, "c1"), storage.ErrNotFound)

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

func testProfiles(t *testing.T, s *Store) {
	ctx := context.Background()
	now := ts(time.Now())

	require.NoError(t, s.CreateProfile(ctx, &rbac.Profile{UserID: "o1", Role: rbac.RoleOwner, Active: true, CreatedAt: now, UpdatedAt: now}))
	err := s.CreateProfile(ctx, &rbac.Profile{UserID: "o2", Role: rbac.RoleOwner, CreatedAt: now, UpdatedAt: now})
	assert.ErrorIs(t, err, storage.ErrDuplicate, "only one owner")

	p := &rbac.Profile{UserID: "e1", Email: "e1@example.com", Role: rbac.RoleEditor, Active: true,
		Permissions: []rbac.Permission{rbac.PermViewContent, rbac.PermShareContent}, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.CreateProfile(ctx, p))

	got, err := s.GetProfile(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, []rbac.Permission{rbac.PermViewContent, rbac.PermShareContent}, got.Permissions)
	assert.Equal(t, "e1@example.com", got.Email)

	got.Role = rbac.RoleOwner
	assert.ErrorIs(t, s.UpdateProfile(ctx, got), storage.ErrDuplicate, "promotion to a second owner")
	got.Role = rbac.RoleEditor

	got.Permissions = nil
	got.Active = false
	require.NoError(t, s.UpdateProfile(ctx, got))
	again, err := s.GetProfile(ctx, "e1")
	require.NoError(t, err)
	assert.Nil(t, again.Permissions)
	assert.False(t, again.Active)

	assert.ErrorIs(t, s.UpdateProfile(ctx, &rbac.Profile{UserID: "ghost"}), storage.ErrNotFound)

	editors, err := s.ListProfiles(ctx, rbac.RoleEditor)
	require.NoError(t, err)
	require.Len(t, editors, 1)
	all, err := s.ListProfiles(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func testGroups(t *testing.T, s *Store) {
	ctx := context.Background()
	now := ts(time.Now())

	require.NoError(t, s.CreateGroup(ctx, &groups.Group{ID: "g1", Name: "Clinic A", CreatedAt: now}))
	assert.ErrorIs(t, s.CreateGroup(ctx, &groups.Group{ID: "g2", Name: "Clinic A", CreatedAt: now}), storage.ErrDuplicate)

	require.NoError(t, s.AddMembership(ctx, &groups.Membership{ID: "m1", GroupID: "g1", UserID: "u1", AddedAt: now}))
	assert.ErrorIs(t, s.AddMembership(ctx, &groups.Membership{ID: "m2", GroupID: "g1", UserID: "u1", AddedAt: now}), storage.ErrDuplicate)
	assert.ErrorIs(t, s.AddMembership(ctx, &groups.Membership{ID: "m3", GroupID: "nope", UserID: "u1", AddedAt: now}), storage.ErrNotFound)

	ids, err := s.ListGroupIDsForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"g1"}, ids)

	require.NoError(t, s.CreateGrant(ctx, &access.Grant{ID: "gr1", SubjectKind: access.SubjectContent, SubjectID: "c1",
		GroupID: "g1", Source: access.SourceManual, CreatedAt: now}))

	require.NoError(t, s.DeleteGroup(ctx, "g1"))
	_, err = s.GetGrant(ctx, "gr1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	members, err := s.ListMemberships(ctx, "g1")
	require.NoError(t, err)
	assert.Empty(t, members)
	assert.ErrorIs(t, s.RemoveMembership(ctx, "g1", "u1"), storage.ErrNotFound)
}

func testBundleItems(t *testing.T, s *Store) {
	ctx := context.Background()
	now := ts(time.Now())

	require.NoError(t, s.CreateBundle(ctx, &bundles.Bundle{ID: "b1", Name: "starter", CreatedAt: now, UpdatedAt: now}))
	for i, id := range []string{"c1", "c2", "c3"} {
		require.NoError(t, s.AddBundleItem(ctx, &bundles.Item{BundleID: "b1", ContentID: id, Position: i + 1, AddedAt: now}))
	}
	assert.ErrorIs(t, s.AddBundleItem(ctx, &bundles.Item{BundleID: "b1", ContentID: "c1", AddedAt: now}), storage.ErrDuplicate)
	assert.ErrorIs(t, s.AddBundleItem(ctx, &bundles.Item{BundleID: "nope", ContentID: "c1", AddedAt: now}), storage.ErrNotFound)

	require.NoError(t, s.SetBundleItemPositions(ctx, "b1", []string{"c3", "c1", "c2"}))
	items, err := s.ListBundleItems(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "c3", items[0].ContentID)
	assert.Equal(t, 1, items[0].Position)

	assert.ErrorIs(t, s.SetBundleItemPositions(ctx, "b1", []string{"c1", "zz"}), storage.ErrNotFound)
	items, err = s.ListBundleItems(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "c3", items[0].ContentID, "a failed reorder rolls back")

	ids, err := s.ListBundleIDsForContent(ctx, "c2")
	require.NoError(t, err)
	assert.Equal(t, []string{"b1"}, ids)

	require.NoError(t, s.RemoveBundleItem(ctx, "b1", "c2"))
	assert.ErrorIs(t, s.RemoveBundleItem(ctx, "b1", "c2"), storage.ErrNotFound)

	b, err := s.GetBundle(ctx, "b1")
	require.NoError(t, err)
	b.Description = "updated"
	require.NoError(t, s.UpdateBundle(ctx, b))

	require.NoError(t, s.DeleteBundle(ctx, "b1"))
	_, err = s.GetBundle(ctx, "b1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testPricingAndOrders(t *testing.T, s *Store) {
	ctx := context.Background()
	now := ts(time.Now())

	_, err := s.GetActivePricing(ctx, access.SubjectContent, "c1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.CreatePricing(ctx, &billing.Pricing{ID: "p1", SubjectKind: access.SubjectContent, SubjectID: "c1",
		PriceCents: 500, Currency: "USD", Active: true, CreatedAt: now}))
	require.NoError(t, s.CreatePricing(ctx, &billing.Pricing{ID: "p2", SubjectKind: access.SubjectContent, SubjectID: "c1",
		PriceCents: 900, Currency: "USD", AccessDays: 30, Active: true, CreatedAt: now.Add(time.Second)}))

	active, err := s.GetActivePricing(ctx, access.SubjectContent, "c1")
	require.NoError(t, err)
	assert.Equal(t, "p2", active.ID)

	active.Active = false
	require.NoError(t, s.UpdatePricing(ctx, active))
	active, err = s.GetActivePricing(ctx, access.SubjectContent, "c1")
	require.NoError(t, err)
	assert.Equal(t, "p1", active.ID)

	prices, err := s.ListPricing(ctx, access.SubjectContent, "c1")
	require.NoError(t, err)
	assert.Len(t, prices, 2)

	order := &billing.Order{ID: "o1", BuyerID: "u1", SubjectKind: access.SubjectContent, SubjectID: "c1",
		PricingID: "p1", AmountCents: 500, Currency: "USD", Status: billing.OrderStatusPending,
		PaymentMethod: "card", CreatedAt: now}
	require.NoError(t, s.CreateOrder(ctx, order))

	completed := now.Add(time.Minute)
	order.Status = billing.OrderStatusCompleted
	order.CompletedAt = &completed
	order.GrantID = "gr1"
	require.NoError(t, s.SaveOrder(ctx, order, billing.OrderStatusPending))
	assert.ErrorIs(t, s.SaveOrder(ctx, order, billing.OrderStatusPending), storage.ErrConflict)

	got, err := s.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, billing.OrderStatusCompleted, got.Status)
	assert.Equal(t, "gr1", got.GrantID)
	require.NotNil(t, got.CompletedAt)
	assert.Nil(t, got.RefundedAt)

	mine, err := s.ListOrdersByBuyer(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	pending, err := s.ListOrdersByStatus(ctx, billing.OrderStatusPending)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func testInviteCodes(t *testing.T, s *Store) {
	ctx := context.Background()
	now := ts(time.Now())

	c := &sharing.InviteCode{ID: "i1", Code: "JOINUS12", Role: rbac.RoleClient, Active: true, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.CreateInviteCode(ctx, c))
	assert.ErrorIs(t, s.CreateInviteCode(ctx, &sharing.InviteCode{ID: "i2", Code: "JOINUS12", Role: rbac.RoleClient,
		CreatedAt: now, UpdatedAt: now}), storage.ErrDuplicate)

	require.NoError(t, s.IncrementInviteUses(ctx, "i1"))
	require.NoError(t, s.IncrementInviteUses(ctx, "i1"))

	c.Note = "spring cohort"
	c.UseCount = 0
	require.NoError(t, s.UpdateInviteCode(ctx, c))

	got, err := s.GetInviteCodeByCode(ctx, "JOINUS12")
	require.NoError(t, err)
	assert.Equal(t, 2, got.UseCount, "updates keep the use counter")
	assert.Equal(t, "spring cohort", got.Note)

	all, err := s.ListInviteCodes(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func testConsumeClientInviteOnce(t *testing.T, s *Store) {
	ctx := context.Background()
	now := ts(time.Now())
	require.NoError(t, s.CreateClientInvite(ctx, &sharing.ClientInvite{ID: "i1", Code: "ABC", Role: rbac.RoleClient,
		Email: "pat@example.com", Active: true, CreatedAt: now}))

	require.NoError(t, s.ConsumeClientInvite(ctx, "i1", "u1", now))
	assert.ErrorIs(t, s.ConsumeClientInvite(ctx, "i1", "u2", now), storage.ErrConflict)
	assert.ErrorIs(t, s.ConsumeClientInvite(ctx, "nope", "u2", now), storage.ErrNotFound)

	inv, err := s.GetClientInviteByCode(ctx, "ABC")
	require.NoError(t, err)
	assert.Equal(t, "u1", inv.UsedBy)
	assert.False(t, inv.Active)
	require.NotNil(t, inv.UsedAt)

	all, err := s.ListClientInvites(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func testShares(t *testing.T, s *Store) {
	ctx := context.Background()
	now := ts(time.Now())
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	require.NoError(t, s.CreateShare(ctx, &sharing.Share{ID: "s1", Token: "a", ContentID: "c1", SharedBy: "u1", ExpiresAt: &future, CreatedAt: now}))
	require.NoError(t, s.CreateShare(ctx, &sharing.Share{ID: "s2", Token: "b", ContentID: "c1", SharedBy: "u1", ExpiresAt: &past, CreatedAt: now}))
	require.NoError(t, s.CreateShare(ctx, &sharing.Share{ID: "s3", Token: "c", ContentID: "c2", SharedBy: "u2", Revoked: true, CreatedAt: now}))
	require.NoError(t, s.CreateShare(ctx, &sharing.Share{ID: "s4", Token: "d", ContentID: "c2", SharedBy: "u2", CreatedAt: now}))
	assert.ErrorIs(t, s.CreateShare(ctx, &sharing.Share{ID: "s5", Token: "a", CreatedAt: now}), storage.ErrDuplicate)

	require.NoError(t, s.RecordShareView(ctx, "s1", now))
	require.NoError(t, s.RecordShareView(ctx, "s1", now))
	sh, err := s.GetShare(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), sh.ViewCount)
	require.NotNil(t, sh.LastViewedAt)

	sh.Revoked = true
	sh.ViewCount = 0
	require.NoError(t, s.UpdateShare(ctx, sh))
	sh, err = s.GetShareByToken(ctx, "a")
	require.NoError(t, err)
	assert.True(t, sh.Revoked)
	assert.Equal(t, int64(2), sh.ViewCount, "updates keep the view counter")

	n, err := s.CountActiveShares(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	forContent, err := s.ListSharesForContent(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, forContent, 2)
	bySharer, err := s.ListSharesBySharer(ctx, "u2")
	require.NoError(t, err)
	assert.Len(t, bySharer, 2)
}
