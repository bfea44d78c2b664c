package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/platinummonkey/mediagate/pkg/access"
	"github.com/platinummonkey/mediagate/pkg/apperr"
)

var (
	ErrNoActivePricing   = fmt.Errorf("%w: no active pricing", apperr.ErrNotFound)
	ErrOrderNotFound     = fmt.Errorf("%w: order", apperr.ErrNotFound)
	ErrInvalidOrderState = fmt.Errorf("%w: order is not in the required state", apperr.ErrPrecondition)
	ErrPaymentDeclined   = fmt.Errorf("%w: payment declined", apperr.ErrPrecondition)
)

// Pricing is the price of a content item or bundle
type Pricing struct {
	ID          string             `json:"id"`
	SubjectKind access.SubjectKind `json:"subject_kind"`
	SubjectID   string             `json:"subject_id"`
	PriceCents  int64              `json:"price_cents"`
	Currency    string             `json:"currency"`
	// AccessDays limits purchased access; zero means unlimited
	AccessDays int       `json:"access_days,omitempty"`
	Active     bool      `json:"active"`
	CreatedBy  string    `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
}

// Subject returns what the price applies to
func (p *Pricing) Subject() access.Subject {
	return access.Subject{Kind: p.SubjectKind, ID: p.SubjectID}
}

// OrderStatus represents the status of an order
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusFailed    OrderStatus = "failed"
	OrderStatusRefunded  OrderStatus = "refunded"
)

// Order is a purchase of access to a content item or bundle
type Order struct {
	ID               string             `json:"id"`
	BuyerID          string             `json:"buyer_id"`
	SubjectKind      access.SubjectKind `json:"subject_kind"`
	SubjectID        string             `json:"subject_id"`
	PricingID        string             `json:"pricing_id"`
	AmountCents      int64              `json:"amount_cents"`
	Currency         string             `json:"currency"`
	AccessDays       int                `json:"access_days,omitempty"`
	Status           OrderStatus        `json:"status"`
	PaymentMethod    string             `json:"payment_method"`
	PaymentReference string             `json:"payment_reference,omitempty"`
	AccessExpiresAt  *time.Time         `json:"access_expires_at,omitempty"`
	GrantID          string             `json:"grant_id,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	CompletedAt      *time.Time         `json:"completed_at,omitempty"`
	RefundedAt       *time.Time         `json:"refunded_at,omitempty"`
}

// Subject returns what the order buys
func (o *Order) Subject() access.Subject {
	return access.Subject{Kind: o.SubjectKind, ID: o.SubjectID}
}

// PricingRequest sets the price of a subject
type PricingRequest struct {
	SubjectKind access.SubjectKind `json:"subject_kind"`
	SubjectID   string             `json:"subject_id"`
	PriceCents  int64              `json:"price_cents"`
	Currency    string             `json:"currency"`
	AccessDays  int                `json:"access_days,omitempty"`
}

// Store persists prices and orders
type Store interface {
	CreatePricing(ctx context.Context, p *Pricing) error
	UpdatePricing(ctx context.Context, p *Pricing) error
	// GetActivePricing returns the newest active price, or storage.ErrNotFound
	GetActivePricing(ctx context.Context, kind access.SubjectKind, subjectID string) (*Pricing, error)
	ListPricing(ctx context.Context, kind access.SubjectKind, subjectID string) ([]*Pricing, error)

	CreateOrder(ctx context.Context, o *Order) error
	GetOrder(ctx context.Context, id string) (*Order, error)
	// SaveOrder overwrites the order only while its stored status equals expected
	SaveOrder(ctx context.Context, o *Order, expected OrderStatus) error
	ListOrdersByBuyer(ctx context.Context, buyerID string) ([]*Order, error)
	ListOrdersByStatus(ctx context.Context, status OrderStatus) ([]*Order, error)
}
