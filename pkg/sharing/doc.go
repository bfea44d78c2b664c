// Package sharing issues unguessable codes and tokens.
//
// Three record kinds carry them:
//
//   - InviteCode: role-scoped and reusable until deactivated or expired.
//   - ClientInvite: single use. The first redemption stamps UsedBy/UsedAt
//     and every later one fails with ErrAlreadyUsed, whatever Active says.
//   - Share: a tokenized link letting anyone view one content item until
//     ExpiresAt. Each successful view bumps ViewCount. Expired shares are
//     kept for audit.
//
// Codes are drawn uniformly from a charset with crypto/rand. Collisions are
// retried, both against a pre-insert lookup and against the store's unique
// index, at most MaxCodeAttempts times before ErrCodeSpaceExhausted.
package sharing
