package billing_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/mediagate/pkg/access"
	"github.com/platinummonkey/mediagate/pkg/apperr"
	"github.com/platinummonkey/mediagate/pkg/audit"
	"github.com/platinummonkey/mediagate/pkg/billing"
	"github.com/platinummonkey/mediagate/pkg/bundles"
	"github.com/platinummonkey/mediagate/pkg/content"
	"github.com/platinummonkey/mediagate/pkg/groups"
	"github.com/platinummonkey/mediagate/pkg/rbac"
	"github.com/platinummonkey/mediagate/pkg/storage/memory"
)

var (
	admin  = &rbac.Profile{UserID: "admin-1", Role: rbac.RoleAdmin, Active: true}
	editor = &rbac.Profile{UserID: "editor-1", Role: rbac.RoleEditor, Active: true}
	buyer  = &rbac.Profile{UserID: "client-1", Role: rbac.RoleClient, Active: true}
	other  = &rbac.Profile{UserID: "client-2", Role: rbac.RoleClient, Active: true}
)

type fixture struct {
	now      time.Time
	store    *memory.Store
	audit    *audit.MemoryLogger
	content  *content.Service
	bundles  *bundles.Service
	grants   *access.GrantService
	svc      *billing.Service
	resolver *access.Resolver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		now:   time.Date(2026, 2, 10, 15, 30, 0, 0, time.UTC),
		store: memory.New(),
		audit: audit.NewMemoryLogger(),
	}
	clock := func() time.Time { return f.now }
	f.content = content.NewService(f.store, nil).WithClock(clock)
	groupSvc := groups.NewService(f.store)
	f.bundles = bundles.NewService(f.store, f.content)
	f.grants = access.NewGrantService(f.store, f.content, f.bundles, f.store, groupSvc, nil).WithClock(clock)
	f.svc = billing.NewService(f.store, f.grants, nil, f.audit).WithClock(clock)
	f.resolver = access.NewResolver(f.content, f.store, groupSvc, f.bundles, f.svc).WithClock(clock)

	for _, p := range []*rbac.Profile{admin, editor, buyer, other} {
		require.NoError(t, f.store.CreateProfile(context.Background(), p))
	}
	return f
}

func (f *fixture) publishedItem(t *testing.T) *content.Item {
	t.Helper()
	ctx := context.Background()
	item, err := f.content.Create(ctx, admin, content.CreateInput{
		Fields: content.Fields{Title: "phonics", Type: content.TypeVideo, Active: true},
	})
	require.NoError(t, err)
	_, err = f.content.Submit(ctx, admin, item.ID)
	require.NoError(t, err)
	item, err = f.content.Approve(ctx, admin, item.ID)
	require.NoError(t, err)
	return item
}

func (f *fixture) bundle(t *testing.T, items ...*content.Item) *bundles.Bundle {
	t.Helper()
	ctx := context.Background()
	b, err := f.bundles.Create(ctx, admin, "Reading year one", "")
	require.NoError(t, err)
	for _, item := range items {
		_, err := f.bundles.AddItem(ctx, admin, b.ID, item.ID)
		require.NoError(t, err)
	}
	return b
}

func (f *fixture) price(t *testing.T, subject access.Subject, cents int64, days int) *billing.Pricing {
	t.Helper()
	p, err := f.svc.SetPricing(context.Background(), admin, billing.PricingRequest{
		SubjectKind: subject.Kind,
		SubjectID:   subject.ID,
		PriceCents:  cents,
		Currency:    "USD",
		AccessDays:  days,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) canView(t *testing.T, item *content.Item, p *rbac.Profile) bool {
	t.Helper()
	ok, err := f.resolver.CanView(context.Background(), item.ID, p)
	require.NoError(t, err)
	return ok
}

// Buying a bundle priced at 1999 USD for 30 days grants access to its items
// until exactly 30 days after completion.
func TestBundlePurchaseGrantsTimedAccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	first, second := f.publishedItem(t), f.publishedItem(t)
	b := f.bundle(t, first, second)
	subject := access.Subject{Kind: access.SubjectBundle, ID: b.ID}
	f.price(t, subject, 1999, 30)

	assert.False(t, f.canView(t, first, buyer))

	order, err := f.svc.CreateOrder(ctx, buyer, subject)
	require.NoError(t, err)
	assert.Equal(t, billing.OrderStatusPending, order.Status)
	assert.Equal(t, int64(1999), order.AmountCents)
	assert.Equal(t, "USD", order.Currency)
	assert.Equal(t, "mock", order.PaymentMethod)

	f.now = f.now.Add(5 * time.Minute)
	completed, err := f.svc.CompleteOrder(ctx, buyer, order.ID, "tok_visa")
	require.NoError(t, err)
	assert.Equal(t, billing.OrderStatusCompleted, completed.Status)
	assert.Equal(t, "mock_"+order.ID, completed.PaymentReference)
	require.NotNil(t, completed.CompletedAt)
	want := completed.CompletedAt.AddDate(0, 0, 30)
	require.NotNil(t, completed.AccessExpiresAt)
	assert.True(t, completed.AccessExpiresAt.Equal(want))

	g, err := f.grants.Get(ctx, completed.GrantID)
	require.NoError(t, err)
	assert.Equal(t, access.SourcePurchase, g.Source)
	assert.Equal(t, order.ID, g.OrderID)
	assert.Equal(t, buyer.UserID, g.UserID)
	require.NotNil(t, g.ExpiresAt)
	assert.True(t, g.ExpiresAt.Equal(want))

	assert.True(t, f.canView(t, first, buyer))
	assert.True(t, f.canView(t, second, buyer))
	assert.False(t, f.canView(t, first, other))

	f.now = want.Add(-time.Second)
	assert.True(t, f.canView(t, second, buyer))
	f.now = want
	assert.False(t, f.canView(t, first, buyer))
	assert.False(t, f.canView(t, second, buyer))

	assert.Len(t, f.audit.OfType(audit.EventTypeOrderComplete), 1)
}

func TestPermanentPurchase(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item := f.publishedItem(t)
	subject := access.Subject{Kind: access.SubjectContent, ID: item.ID}
	f.price(t, subject, 500, 0)

	order, err := f.svc.CreateOrder(ctx, buyer, subject)
	require.NoError(t, err)
	completed, err := f.svc.CompleteOrder(ctx, buyer, order.ID, "tok")
	require.NoError(t, err)
	assert.Nil(t, completed.AccessExpiresAt)

	f.now = f.now.AddDate(5, 0, 0)
	assert.True(t, f.canView(t, item, buyer))

	_, err = f.svc.CreateOrder(ctx, buyer, subject)
	assert.ErrorIs(t, err, access.ErrAlreadyHasAccess)
}

func TestCompleteOrderRules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item := f.publishedItem(t)
	subject := access.Subject{Kind: access.SubjectContent, ID: item.ID}
	f.price(t, subject, 500, 7)

	order, err := f.svc.CreateOrder(ctx, buyer, subject)
	require.NoError(t, err)

	_, err = f.svc.CompleteOrder(ctx, nil, order.ID, "tok")
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
	_, err = f.svc.CompleteOrder(ctx, other, order.ID, "tok")
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = f.svc.CompleteOrder(ctx, buyer, "missing", "tok")
	assert.ErrorIs(t, err, billing.ErrOrderNotFound)

	_, err = f.svc.CompleteOrder(ctx, buyer, order.ID, "tok")
	require.NoError(t, err)
	_, err = f.svc.CompleteOrder(ctx, buyer, order.ID, "tok")
	assert.ErrorIs(t, err, billing.ErrInvalidOrderState)

	grants, err := f.grants.ListForUser(ctx, buyer, buyer.UserID)
	require.NoError(t, err)
	assert.Len(t, grants, 1, "a second completion must not mint again")
}

func TestDeclinedPaymentFailsOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item := f.publishedItem(t)
	subject := access.Subject{Kind: access.SubjectContent, ID: item.ID}
	f.price(t, subject, 500, 7)

	order, err := f.svc.CreateOrder(ctx, buyer, subject)
	require.NoError(t, err)
	_, err = f.svc.CompleteOrder(ctx, buyer, order.ID, billing.DeclineToken)
	assert.ErrorIs(t, err, billing.ErrPaymentDeclined)
	assert.ErrorIs(t, err, apperr.ErrPrecondition)

	stored, err := f.svc.GetOrder(ctx, buyer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.OrderStatusFailed, stored.Status)
	assert.Empty(t, stored.GrantID)
	assert.False(t, f.canView(t, item, buyer))
	assert.Len(t, f.audit.OfType(audit.EventTypeOrderFail), 1)
}

func TestRefundEndsAccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item := f.publishedItem(t)
	subject := access.Subject{Kind: access.SubjectContent, ID: item.ID}
	f.price(t, subject, 500, 0)

	order, err := f.svc.CreateOrder(ctx, buyer, subject)
	require.NoError(t, err)
	_, err = f.svc.RefundOrder(ctx, admin, order.ID)
	assert.ErrorIs(t, err, billing.ErrInvalidOrderState, "pending orders cannot be refunded")

	_, err = f.svc.CompleteOrder(ctx, buyer, order.ID, "tok")
	require.NoError(t, err)
	require.True(t, f.canView(t, item, buyer))

	_, err = f.svc.RefundOrder(ctx, buyer, order.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	f.now = f.now.Add(time.Hour)
	refunded, err := f.svc.RefundOrder(ctx, admin, order.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.OrderStatusRefunded, refunded.Status)
	assert.False(t, f.canView(t, item, buyer))

	g, err := f.grants.Get(ctx, refunded.GrantID)
	require.NoError(t, err)
	require.NotNil(t, g.ExpiresAt)
	assert.True(t, g.ExpiresAt.Equal(f.now))
}

func TestSetPricingKeepsOneActive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item := f.publishedItem(t)
	subject := access.Subject{Kind: access.SubjectContent, ID: item.ID}

	f.price(t, subject, 500, 0)
	f.now = f.now.Add(time.Minute)
	latest := f.price(t, subject, 800, 14)

	active, err := f.svc.ActivePricing(ctx, subject)
	require.NoError(t, err)
	assert.Equal(t, latest.ID, active.ID)

	history, err := f.svc.PricingHistory(ctx, admin, subject)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, latest.ID, history[0].ID)
	assert.False(t, history[1].Active)

	require.NoError(t, f.svc.ClearPricing(ctx, admin, subject))
	ok, err := f.svc.HasActivePricing(ctx, subject)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.svc.CreateOrder(ctx, buyer, subject)
	assert.ErrorIs(t, err, billing.ErrNoActivePricing)
}

func TestSetPricingValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item := f.publishedItem(t)

	tests := []struct {
		name  string
		actor *rbac.Profile
		req   billing.PricingRequest
		err   error
	}{
		{"editor lacks permission", editor, billing.PricingRequest{SubjectKind: access.SubjectContent, SubjectID: item.ID, PriceCents: 100, Currency: "USD"}, apperr.ErrForbidden},
		{"zero price", admin, billing.PricingRequest{SubjectKind: access.SubjectContent, SubjectID: item.ID, Currency: "USD"}, apperr.ErrInvalid},
		{"lowercase currency", admin, billing.PricingRequest{SubjectKind: access.SubjectContent, SubjectID: item.ID, PriceCents: 100, Currency: "usd"}, apperr.ErrInvalid},
		{"negative days", admin, billing.PricingRequest{SubjectKind: access.SubjectContent, SubjectID: item.ID, PriceCents: 100, Currency: "USD", AccessDays: -1}, apperr.ErrInvalid},
		{"unknown bundle", admin, billing.PricingRequest{SubjectKind: access.SubjectBundle, SubjectID: "6f9d2b1a-0c4e-4f7b-9a55-3e1d2c7b8a90", PriceCents: 100, Currency: "USD"}, apperr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.SetPricing(ctx, tt.actor, tt.req)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestOrderVisibility(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item := f.publishedItem(t)
	subject := access.Subject{Kind: access.SubjectContent, ID: item.ID}
	f.price(t, subject, 500, 0)

	order, err := f.svc.CreateOrder(ctx, buyer, subject)
	require.NoError(t, err)

	_, err = f.svc.GetOrder(ctx, other, order.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = f.svc.GetOrder(ctx, admin, order.ID)
	assert.NoError(t, err)

	mine, err := f.svc.ListOrders(ctx, buyer, buyer.UserID)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	_, err = f.svc.ListOrders(ctx, other, buyer.UserID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	pending, err := f.svc.ListOrdersByStatus(ctx, admin, billing.OrderStatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	_, err = f.svc.ListOrdersByStatus(ctx, buyer, billing.OrderStatusPending)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestFailStalePending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item := f.publishedItem(t)
	subject := access.Subject{Kind: access.SubjectContent, ID: item.ID}
	f.price(t, subject, 500, 0)

	stale, err := f.svc.CreateOrder(ctx, buyer, subject)
	require.NoError(t, err)
	f.now = f.now.Add(2 * time.Hour)
	fresh, err := f.svc.CreateOrder(ctx, other, subject)
	require.NoError(t, err)
	f.now = f.now.Add(30 * time.Minute)

	n, err := f.svc.FailStalePending(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.svc.GetOrder(ctx, admin, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.OrderStatusFailed, got.Status)
	got, err = f.svc.GetOrder(ctx, admin, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.OrderStatusPending, got.Status)

	_, err = f.svc.CompleteOrder(ctx, buyer, stale.ID, "tok")
	assert.ErrorIs(t, err, billing.ErrInvalidOrderState)
}

func TestMockProcessor(t *testing.T) {
	p := billing.MockProcessor{}
	ref, err := p.Charge(context.Background(), billing.ChargeRequest{OrderID: "o1", AmountCents: 100, Token: "tok"})
	require.NoError(t, err)
	assert.Equal(t, "mock_o1", ref)

	_, err = p.Charge(context.Background(), billing.ChargeRequest{OrderID: "o1", AmountCents: 0, Token: "tok"})
	assert.ErrorIs(t, err, billing.ErrPaymentDeclined)
}
