package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/mediagate/pkg/access"
	"github.com/platinummonkey/mediagate/pkg/api"
	"github.com/platinummonkey/mediagate/pkg/billing"
	"github.com/platinummonkey/mediagate/pkg/observability"
	"github.com/platinummonkey/mediagate/pkg/sharing"
	"github.com/platinummonkey/mediagate/pkg/storage/memory"
)

func TestSweepFailsStaleOrdersAndSetsGauges(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := memory.New()

	order := func(id string, age time.Duration) {
		require.NoError(t, store.CreateOrder(ctx, &billing.Order{
			ID:          id,
			BuyerID:     "buyer-1",
			SubjectKind: access.SubjectContent,
			SubjectID:   "content-1",
			AmountCents: 500,
			Currency:    "USD",
			Status:      billing.OrderStatusPending,
			CreatedAt:   now.Add(-age),
		}))
	}
	order("stale", 48*time.Hour)
	order("fresh", time.Hour)

	expired := now.Add(-time.Minute)
	require.NoError(t, store.CreateShare(ctx, &sharing.Share{ID: "s1", Token: "t1", ContentID: "content-1", SharedBy: "u1", CreatedAt: now}))
	require.NoError(t, store.CreateShare(ctx, &sharing.Share{ID: "s2", Token: "t2", ContentID: "content-1", SharedBy: "u1", CreatedAt: now, ExpiresAt: &expired}))

	svc := api.NewServices(api.Deps{Store: store, Clock: func() time.Time { return now }})
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	sw := &sweeper{
		billing: svc.Billing,
		sharing: svc.Sharing,
		orders:  store,
		metrics: metrics,
		logger:  observability.NewLogger(observability.DebugLevel, &bytes.Buffer{}),
		ttl:     24 * time.Hour,
	}

	require.NoError(t, sw.run(ctx))

	stale, err := store.GetOrder(ctx, "stale")
	require.NoError(t, err)
	assert.Equal(t, billing.OrderStatusFailed, stale.Status)
	fresh, err := store.GetOrder(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, billing.OrderStatusPending, fresh.Status)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.PendingOrders))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ActiveShares))
}
