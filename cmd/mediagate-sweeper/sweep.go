package main

import (
	"context"
	"fmt"
	"time"

	"github.com/platinummonkey/mediagate/pkg/billing"
	"github.com/platinummonkey/mediagate/pkg/observability"
	"github.com/platinummonkey/mediagate/pkg/sharing"
)

type sweeper struct {
	billing *billing.Service
	sharing *sharing.Service
	orders  billing.Store
	metrics *observability.Metrics
	logger  *observability.Logger
	ttl     time.Duration
}

// run fails stale pending orders and refreshes the order and share gauges
func (s *sweeper) run(ctx context.Context) error {
	failed, err := s.billing.FailStalePending(ctx, s.ttl)
	if err != nil {
		return fmt.Errorf("failed to expire pending orders: %w", err)
	}
	if failed > 0 {
		s.logger.WithField("failed", failed).Info("expired stale pending orders")
	}

	pending, err := s.orders.ListOrdersByStatus(ctx, billing.OrderStatusPending)
	if err != nil {
		return fmt.Errorf("failed to count pending orders: %w", err)
	}
	s.metrics.PendingOrders.Set(float64(len(pending)))

	active, err := s.sharing.ActiveShareCount(ctx)
	if err != nil {
		return err
	}
	s.metrics.ActiveShares.Set(float64(active))

	s.logger.WithFields(map[string]interface{}{
		"pending_orders": len(pending),
		"active_shares":  active,
	}).Debug("sweep complete")
	return nil
}
