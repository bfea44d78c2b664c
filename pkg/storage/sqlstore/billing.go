package sqlstore

import (
	"context"
	"database/sql"

	"github.com/platinummonkey/mediagate/pkg/access"
	"github.com/platinummonkey/mediagate/pkg/billing"
)

const pricingColumns = `id, subject_kind, subject_id, price_cents, currency, access_days, active, created_by, created_at`

func scanPricing(scan func(...interface{}) error) (*billing.Pricing, error) {
	var p billing.Pricing
	err := scan(&p.ID, &p.SubjectKind, &p.SubjectID, &p.PriceCents, &p.Currency, &p.AccessDays, &p.Active,
		&p.CreatedBy, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreatePricing(ctx context.Context, p *billing.Pricing) error {
	_, err := s.exec(ctx, "CreatePricing",
		`INSERT INTO pricing (`+pricingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, string(p.SubjectKind), p.SubjectID, p.PriceCents, p.Currency, p.AccessDays, p.Active,
		p.CreatedBy, utc(p.CreatedAt))
	return err
}

func (s *Store) UpdatePricing(ctx context.Context, p *billing.Pricing) error {
	return s.execOne(ctx, "UpdatePricing",
		`UPDATE pricing SET price_cents = ?, currency = ?, access_days = ?, active = ? WHERE id = ?`,
		p.PriceCents, p.Currency, p.AccessDays, p.Active, p.ID)
}

func (s *Store) GetActivePricing(ctx context.Context, kind access.SubjectKind, subjectID string) (p *billing.Pricing, err error) {
	err = s.get(ctx, "GetActivePricing",
		`SELECT `+pricingColumns+` FROM pricing
		 WHERE subject_kind = ? AND subject_id = ? AND active = ?
		 ORDER BY created_at DESC LIMIT 1`,
		[]interface{}{string(kind), subjectID, true},
		func(scan func(...interface{}) error) (err error) {
			p, err = scanPricing(scan)
			return err
		})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) ListPricing(ctx context.Context, kind access.SubjectKind, subjectID string) ([]*billing.Pricing, error) {
	var out []*billing.Pricing
	err := s.query(ctx, "ListPricing",
		`SELECT `+pricingColumns+` FROM pricing WHERE subject_kind = ? AND subject_id = ? ORDER BY created_at DESC`,
		[]interface{}{string(kind), subjectID},
		func(rows *sql.Rows) error {
			p, err := scanPricing(rows.Scan)
			if err != nil {
				return err
			}
			out = append(out, p)
			return nil
		})
	if err != nil {
		return nil, err
	}
	return out, nil
}

const orderColumns = `id, buyer_id, subject_kind, subject_id, pricing_id, amount_cents, currency, access_days,
	status, payment_method, payment_reference, access_expires_at, grant_id, created_at, completed_at, refunded_at`

func scanOrder(scan func(...interface{}) error) (*billing.Order, error) {
	var (
		o                            billing.Order
		expires, completed, refunded sql.NullTime
	)
	err := scan(&o.ID, &o.BuyerID, &o.SubjectKind, &o.SubjectID, &o.PricingID, &o.AmountCents, &o.Currency,
		&o.AccessDays, &o.Status, &o.PaymentMethod, &o.PaymentReference, &expires, &o.GrantID, &o.CreatedAt,
		&completed, &refunded)
	if err != nil {
		return nil, err
	}
	o.AccessExpiresAt = timePtr(expires)
	o.CompletedAt = timePtr(completed)
	o.RefundedAt = timePtr(refunded)
	return &o, nil
}

func (s *Store) CreateOrder(ctx context.Context, o *billing.Order) error {
	_, err := s.exec(ctx, "CreateOrder",
		`INSERT INTO orders (`+orderColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.BuyerID, string(o.SubjectKind), o.SubjectID, o.PricingID, o.AmountCents, o.Currency,
		o.AccessDays, string(o.Status), o.PaymentMethod, o.PaymentReference, nullTime(o.AccessExpiresAt),
		o.GrantID, utc(o.CreatedAt), nullTime(o.CompletedAt), nullTime(o.RefundedAt))
	return err
}

func (s *Store) GetOrder(ctx context.Context, id string) (o *billing.Order, err error) {
	err = s.get(ctx, "GetOrder", `SELECT `+orderColumns+` FROM orders WHERE id = ?`, []interface{}{id},
		func(scan func(...interface{}) error) (err error) {
			o, err = scanOrder(scan)
			return err
		})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// SaveOrder overwrites the mutable order fields while the stored status equals expected
func (s *Store) SaveOrder(ctx context.Context, o *billing.Order, expected billing.OrderStatus) error {
	res, err := s.exec(ctx, "SaveOrder",
		`UPDATE orders SET status = ?, payment_reference = ?, access_expires_at = ?, grant_id = ?,
			completed_at = ?, refunded_at = ?
		 WHERE id = ? AND status = ?`,
		string(o.Status), o.PaymentReference, nullTime(o.AccessExpiresAt), o.GrantID,
		nullTime(o.CompletedAt), nullTime(o.RefundedAt), o.ID, string(expected))
	if err != nil {
		return err
	}
	return s.casResult(ctx, res, `SELECT 1 FROM orders WHERE id = ?`, o.ID)
}

func (s *Store) ListOrdersByBuyer(ctx context.Context, buyerID string) ([]*billing.Order, error) {
	return s.listOrders(ctx, "ListOrdersByBuyer",
		`SELECT `+orderColumns+` FROM orders WHERE buyer_id = ? ORDER BY created_at DESC`, buyerID)
}

func (s *Store) ListOrdersByStatus(ctx context.Context, status billing.OrderStatus) ([]*billing.Order, error) {
	return s.listOrders(ctx, "ListOrdersByStatus",
		`SELECT `+orderColumns+` FROM orders WHERE status = ? ORDER BY created_at`, string(status))
}

func (s *Store) listOrders(ctx context.Context, op, query string, args ...interface{}) ([]*billing.Order, error) {
	var out []*billing.Order
	err := s.query(ctx, op, query, args, func(rows *sql.Rows) error {
		o, err := scanOrder(rows.Scan)
		if err != nil {
			return err
		}
		out = append(out, o)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
