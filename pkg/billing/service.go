package billing

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/mediagate/pkg/access"
	"github.com/platinummonkey/mediagate/pkg/apperr"
	"github.com/platinummonkey/mediagate/pkg/audit"
	"github.com/platinummonkey/mediagate/pkg/rbac"
	"github.com/platinummonkey/mediagate/pkg/storage"
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// Grants is the part of the access grant service the ledger needs
type Grants interface {
	CheckSubject(ctx context.Context, subject access.Subject) error
	Mint(ctx context.Context, g *access.Grant) error
	Expire(ctx context.Context, id string, at time.Time) error
	HasActiveUserGrant(ctx context.Context, subject access.Subject, userID string) (bool, error)
}

// Service manages prices and orders
type Service struct {
	store    Store
	grants   Grants
	payments PaymentProcessor
	audit    audit.Logger
	now      func() time.Time
}

// NewService creates a billing service. A nil processor means MockProcessor.
func NewService(store Store, grants Grants, payments PaymentProcessor, auditLogger audit.Logger) *Service {
	if payments == nil {
		payments = MockProcessor{}
	}
	if auditLogger == nil {
		auditLogger = audit.Nop()
	}
	return &Service{
		store:    store,
		grants:   grants,
		payments: payments,
		audit:    auditLogger,
		now:      time.Now,
	}
}

// WithClock overrides the time source
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func requirePermission(actor *rbac.Profile, perm rbac.Permission) error {
	if actor == nil {
		return apperr.ErrUnauthenticated
	}
	if !rbac.HasPermission(actor, perm) {
		return apperr.Forbidden("missing permission %s", perm)
	}
	return nil
}

// Validate checks a pricing request
func (r PricingRequest) Validate() error {
	if !r.SubjectKind.Valid() || r.SubjectID == "" {
		return apperr.Invalid("pricing needs a content item or bundle")
	}
	if r.PriceCents <= 0 {
		return apperr.Invalid("price must be positive")
	}
	if !currencyPattern.MatchString(r.Currency) {
		return apperr.Invalid("currency must be a 3-letter ISO code, got %q", r.Currency)
	}
	if r.AccessDays < 0 {
		return apperr.Invalid("access days cannot be negative")
	}
	return nil
}

// SetPricing makes req the active price of its subject, deactivating the previous one
func (s *Service) SetPricing(ctx context.Context, actor *rbac.Profile, req PricingRequest) (*Pricing, error) {
	if err := requirePermission(actor, rbac.PermManagePricing); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	subject := access.Subject{Kind: req.SubjectKind, ID: req.SubjectID}
	if err := s.grants.CheckSubject(ctx, subject); err != nil {
		return nil, err
	}

	if err := s.deactivate(ctx, subject); err != nil {
		return nil, err
	}

	p := &Pricing{
		ID:          uuid.NewString(),
		SubjectKind: req.SubjectKind,
		SubjectID:   req.SubjectID,
		PriceCents:  req.PriceCents,
		Currency:    req.Currency,
		AccessDays:  req.AccessDays,
		Active:      true,
		CreatedBy:   actor.UserID,
		CreatedAt:   s.now(),
	}
	if err := s.store.CreatePricing(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create pricing: %w", err)
	}
	s.audit.Log(ctx, audit.NewEvent(audit.EventTypePricingSet, actor.UserID, audit.ResourceTypePricing, p.ID).
		With("subject", subject.String()).
		With("price_cents", p.PriceCents).
		With("currency", p.Currency))
	return p, nil
}

// ClearPricing deactivates the active price so the subject is no longer for sale
func (s *Service) ClearPricing(ctx context.Context, actor *rbac.Profile, subject access.Subject) error {
	if err := requirePermission(actor, rbac.PermManagePricing); err != nil {
		return err
	}
	if err := s.deactivate(ctx, subject); err != nil {
		return err
	}
	s.audit.Log(ctx, audit.NewEvent(audit.EventTypePricingSet, actor.UserID, audit.ResourceTypePricing, "").
		With("subject", subject.String()).
		With("cleared", true))
	return nil
}

func (s *Service) deactivate(ctx context.Context, subject access.Subject) error {
	history, err := s.store.ListPricing(ctx, subject.Kind, subject.ID)
	if err != nil {
		return fmt.Errorf("failed to list pricing: %w", err)
	}
	for _, p := range history {
		if !p.Active {
			continue
		}
		p.Active = false
		if err := s.store.UpdatePricing(ctx, p); err != nil {
			return fmt.Errorf("failed to deactivate pricing %s: %w", p.ID, err)
		}
	}
	return nil
}

// ActivePricing returns the current price of a subject
func (s *Service) ActivePricing(ctx context.Context, subject access.Subject) (*Pricing, error) {
	p, err := s.store.GetActivePricing(ctx, subject.Kind, subject.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNoActivePricing, subject)
		}
		return nil, fmt.Errorf("failed to get pricing: %w", err)
	}
	return p, nil
}

// HasActivePricing reports whether a subject is currently for sale
func (s *Service) HasActivePricing(ctx context.Context, subject access.Subject) (bool, error) {
	_, err := s.ActivePricing(ctx, subject)
	if errors.Is(err, ErrNoActivePricing) {
		return false, nil
	}
	return err == nil, err
}

// PricingHistory lists every price a subject has had, newest first
func (s *Service) PricingHistory(ctx context.Context, actor *rbac.Profile, subject access.Subject) ([]*Pricing, error) {
	if err := requirePermission(actor, rbac.PermManagePricing); err != nil {
		return nil, err
	}
	history, err := s.store.ListPricing(ctx, subject.Kind, subject.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pricing: %w", err)
	}
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].CreatedAt.After(history[j].CreatedAt)
	})
	return history, nil
}

// CreateOrder opens a pending order for subject at its active price
func (s *Service) CreateOrder(ctx context.Context, buyer *rbac.Profile, subject access.Subject) (*Order, error) {
	if err := requirePermission(buyer, rbac.PermPurchaseContent); err != nil {
		return nil, err
	}
	p, err := s.ActivePricing(ctx, subject)
	if err != nil {
		return nil, err
	}
	owned, err := s.grants.HasActiveUserGrant(ctx, subject, buyer.UserID)
	if err != nil {
		return nil, err
	}
	if owned {
		return nil, fmt.Errorf("%w: %s", access.ErrAlreadyHasAccess, subject)
	}

	o := &Order{
		ID:            uuid.NewString(),
		BuyerID:       buyer.UserID,
		SubjectKind:   subject.Kind,
		SubjectID:     subject.ID,
		PricingID:     p.ID,
		AmountCents:   p.PriceCents,
		Currency:      p.Currency,
		AccessDays:    p.AccessDays,
		Status:        OrderStatusPending,
		PaymentMethod: s.payments.Name(),
		CreatedAt:     s.now(),
	}
	if err := s.store.CreateOrder(ctx, o); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	return o, nil
}

// GetOrder returns an order. Buyers may read their own; others need VIEW_ORDERS.
func (s *Service) GetOrder(ctx context.Context, actor *rbac.Profile, id string) (*Order, error) {
	if actor == nil {
		return nil, apperr.ErrUnauthenticated
	}
	o, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.BuyerID != actor.UserID && !rbac.HasPermission(actor, rbac.PermViewOrders) {
		return nil, apperr.Forbidden("may not view another user's order")
	}
	return o, nil
}

func (s *Service) load(ctx context.Context, id string) (*Order, error) {
	o, err := s.store.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return o, nil
}

// CompleteOrder charges a pending order and mints the purchase grant.
// Only the buyer may complete their order.
func (s *Service) CompleteOrder(ctx context.Context, buyer *rbac.Profile, orderID, paymentToken string) (*Order, error) {
	if buyer == nil {
		return nil, apperr.ErrUnauthenticated
	}
	o, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.BuyerID != buyer.UserID {
		return nil, apperr.Forbidden("order belongs to another user")
	}
	if o.Status != OrderStatusPending {
		return nil, fmt.Errorf("%w: order %s is %s", ErrInvalidOrderState, o.ID, o.Status)
	}

	ref, chargeErr := s.payments.Charge(ctx, ChargeRequest{
		OrderID:     o.ID,
		BuyerID:     o.BuyerID,
		AmountCents: o.AmountCents,
		Currency:    o.Currency,
		Token:       paymentToken,
	})
	if chargeErr != nil {
		o.Status = OrderStatusFailed
		if err := s.saveOrder(ctx, o, OrderStatusPending); err != nil {
			return nil, err
		}
		s.audit.Log(ctx, audit.NewEvent(audit.EventTypeOrderFail, buyer.UserID, audit.ResourceTypeOrder, o.ID).
			WithStatus(audit.EventStatusFailure).
			With("error", chargeErr.Error()))
		return nil, chargeErr
	}

	completedAt := s.now()
	o.Status = OrderStatusCompleted
	o.PaymentReference = ref
	o.CompletedAt = &completedAt
	if o.AccessDays > 0 {
		expires := completedAt.AddDate(0, 0, o.AccessDays)
		o.AccessExpiresAt = &expires
	}
	o.GrantID = uuid.NewString()

	// the status swap wins the order before any grant exists
	if err := s.saveOrder(ctx, o, OrderStatusPending); err != nil {
		return nil, err
	}

	grant := &access.Grant{
		ID:          o.GrantID,
		SubjectKind: o.SubjectKind,
		SubjectID:   o.SubjectID,
		UserID:      o.BuyerID,
		ExpiresAt:   o.AccessExpiresAt,
		GrantedBy:   o.BuyerID,
		Source:      access.SourcePurchase,
		OrderID:     o.ID,
		CreatedAt:   completedAt,
	}
	if err := s.grants.Mint(ctx, grant); err != nil {
		return nil, fmt.Errorf("order %s completed but grant failed: %w", o.ID, err)
	}

	s.audit.Log(ctx, audit.NewEvent(audit.EventTypeOrderComplete, buyer.UserID, audit.ResourceTypeOrder, o.ID).
		With("subject", o.Subject().String()).
		With("grant_id", o.GrantID).
		With("amount_cents", o.AmountCents))
	return o, nil
}

// RefundOrder marks a completed order refunded and ends its grant now
func (s *Service) RefundOrder(ctx context.Context, actor *rbac.Profile, orderID string) (*Order, error) {
	if err := requirePermission(actor, rbac.PermManagePricing); err != nil {
		return nil, err
	}
	o, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != OrderStatusCompleted {
		return nil, fmt.Errorf("%w: order %s is %s", ErrInvalidOrderState, o.ID, o.Status)
	}

	refundedAt := s.now()
	o.Status = OrderStatusRefunded
	o.RefundedAt = &refundedAt
	if err := s.saveOrder(ctx, o, OrderStatusCompleted); err != nil {
		return nil, err
	}
	if o.GrantID != "" {
		if err := s.grants.Expire(ctx, o.GrantID, refundedAt); err != nil && !errors.Is(err, access.ErrGrantNotFound) {
			return nil, fmt.Errorf("failed to expire grant of order %s: %w", o.ID, err)
		}
	}

	s.audit.Log(ctx, audit.NewEvent(audit.EventTypeOrderRefund, actor.UserID, audit.ResourceTypeOrder, o.ID).
		With("grant_id", o.GrantID))
	return o, nil
}

// ListOrders lists a buyer's orders, newest first
func (s *Service) ListOrders(ctx context.Context, actor *rbac.Profile, buyerID string) ([]*Order, error) {
	if actor == nil {
		return nil, apperr.ErrUnauthenticated
	}
	if buyerID != actor.UserID && !rbac.HasPermission(actor, rbac.PermViewOrders) {
		return nil, apperr.Forbidden("may not list another user's orders")
	}
	orders, err := s.store.ListOrdersByBuyer(ctx, buyerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	sortNewestFirst(orders)
	return orders, nil
}

// ListOrdersByStatus lists every order in status
func (s *Service) ListOrdersByStatus(ctx context.Context, actor *rbac.Profile, status OrderStatus) ([]*Order, error) {
	if err := requirePermission(actor, rbac.PermViewOrders); err != nil {
		return nil, err
	}
	orders, err := s.store.ListOrdersByStatus(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	sortNewestFirst(orders)
	return orders, nil
}

// FailStalePending fails pending orders older than maxAge and returns how many it failed
func (s *Service) FailStalePending(ctx context.Context, maxAge time.Duration) (int, error) {
	pending, err := s.store.ListOrdersByStatus(ctx, OrderStatusPending)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending orders: %w", err)
	}
	cutoff := s.now().Add(-maxAge)
	failed := 0
	for _, o := range pending {
		if o.CreatedAt.After(cutoff) {
			continue
		}
		o.Status = OrderStatusFailed
		if err := s.saveOrder(ctx, o, OrderStatusPending); err != nil {
			if errors.Is(err, apperr.ErrConflict) {
				continue
			}
			return failed, err
		}
		failed++
		s.audit.Log(ctx, audit.NewEvent(audit.EventTypeOrderFail, "system", audit.ResourceTypeOrder, o.ID).
			WithStatus(audit.EventStatusFailure).
			With("reason", "stale"))
	}
	return failed, nil
}

func (s *Service) saveOrder(ctx context.Context, o *Order, expected OrderStatus) error {
	if err := s.store.SaveOrder(ctx, o, expected); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return fmt.Errorf("%w: order %s changed concurrently", apperr.ErrConflict, o.ID)
		}
		return fmt.Errorf("failed to save order: %w", err)
	}
	return nil
}

func sortNewestFirst(orders []*Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}
