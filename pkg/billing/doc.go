// Package billing is the commerce ledger: prices for content items and
// bundles, and the orders that buy access to them.
//
// Each subject has at most one active Pricing. Setting a new price
// deactivates the previous one, which stays on record.
//
// An order moves pending -> completed | failed, and completed -> refunded.
// Completing an order is the only way a purchase produces an access grant;
// the grant expires AccessDays after completion, or never when AccessDays is
// zero. Refunding expires that grant at the refund time without deleting it.
//
// Payment goes through a PaymentProcessor. The only implementation is
// MockProcessor; no payment gateway is integrated.
package billing
