package memory

import (
	"context"

	"github.com/platinummonkey/mediagate/pkg/access"
	"github.com/platinummonkey/mediagate/pkg/billing"
	"github.com/platinummonkey/mediagate/pkg/storage"
)

func copyOrder(o *billing.Order) *billing.Order {
	cp := *o
	cp.AccessExpiresAt = copyTime(o.AccessExpiresAt)
	cp.CompletedAt = copyTime(o.CompletedAt)
	cp.RefundedAt = copyTime(o.RefundedAt)
	return &cp
}

func (s *Store) CreatePricing(ctx context.Context, p *billing.Pricing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pricing[p.ID]; ok {
		return storage.ErrDuplicate
	}
	cp := *p
	s.pricing[p.ID] = &cp
	return nil
}

func (s *Store) UpdatePricing(ctx context.Context, p *billing.Pricing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pricing[p.ID]; !ok {
		return storage.ErrNotFound
	}
	cp := *p
	s.pricing[p.ID] = &cp
	return nil
}

func (s *Store) GetActivePricing(ctx context.Context, kind access.SubjectKind, subjectID string) (*billing.Pricing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var newest *billing.Pricing
	for _, p := range s.pricing {
		if !p.Active || p.SubjectKind != kind || p.SubjectID != subjectID {
			continue
		}
		if newest == nil || p.CreatedAt.After(newest.CreatedAt) {
			newest = p
		}
	}
	if newest == nil {
		return nil, storage.ErrNotFound
	}
	cp := *newest
	return &cp, nil
}

func (s *Store) ListPricing(ctx context.Context, kind access.SubjectKind, subjectID string) ([]*billing.Pricing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*billing.Pricing
	for _, p := range s.pricing {
		if p.SubjectKind == kind && p.SubjectID == subjectID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) CreateOrder(ctx context.Context, o *billing.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; ok {
		return storage.ErrDuplicate
	}
	s.orders[o.ID] = copyOrder(o)
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*billing.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyOrder(o), nil
}

func (s *Store) SaveOrder(ctx context.Context, o *billing.Order, expected billing.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.orders[o.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if stored.Status != expected {
		return storage.ErrConflict
	}
	s.orders[o.ID] = copyOrder(o)
	return nil
}

func (s *Store) ListOrdersByBuyer(ctx context.Context, buyerID string) ([]*billing.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*billing.Order
	for _, o := range s.orders {
		if o.BuyerID == buyerID {
			out = append(out, copyOrder(o))
		}
	}
	return out, nil
}

func (s *Store) ListOrdersByStatus(ctx context.Context, status billing.OrderStatus) ([]*billing.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*billing.Order
	for _, o := range s.orders {
		if o.Status == status {
			out = append(out, copyOrder(o))
		}
	}
	return out, nil
}
