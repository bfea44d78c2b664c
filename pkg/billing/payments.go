package billing

import (
	"context"
	"fmt"
)

// ChargeRequest asks a processor to take a payment
type ChargeRequest struct {
	OrderID     string
	BuyerID     string
	AmountCents int64
	Currency    string
	// Token is the opaque payment token supplied by the buyer
	Token string
}

// PaymentProcessor takes payments
type PaymentProcessor interface {
	Name() string
	Charge(ctx context.Context, req ChargeRequest) (reference string, err error)
}

// DeclineToken makes MockProcessor decline a charge
const DeclineToken = "decline"

// MockProcessor approves every charge except those paid with DeclineToken
type MockProcessor struct{}

func (MockProcessor) Name() string { return "mock" }

// Charge returns a mock reference derived from the order id
func (MockProcessor) Charge(ctx context.Context, req ChargeRequest) (string, error) {
	if req.Token == DeclineToken {
		return "", ErrPaymentDeclined
	}
	if req.AmountCents <= 0 {
		return "", fmt.Errorf("%w: non-positive amount", ErrPaymentDeclined)
	}
	return fmt.Sprintf("mock_%s", req.OrderID), nil
}
