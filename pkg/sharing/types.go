package sharing

import (
	"context"
	"fmt"
	"time"

	"github.com/platinummonkey/mediagate/pkg/apperr"
	"github.com/platinummonkey/mediagate/pkg/rbac"
)

var (
	ErrInviteNotFound = fmt.Errorf("%w: invite code", apperr.ErrNotFound)
	ErrShareNotFound  = fmt.Errorf("%w: share", apperr.ErrNotFound)
	// ErrExpired is a not-found variant so expired and unknown codes look alike to callers
	ErrExpired        = fmt.Errorf("%w: code expired", apperr.ErrNotFound)
	ErrAlreadyUsed    = fmt.Errorf("%w: invite already used", apperr.ErrPrecondition)
	ErrInactive       = fmt.Errorf("%w: invite is not active", apperr.ErrPrecondition)
	ErrNotShareable   = fmt.Errorf("%w: content cannot be shared", apperr.ErrForbidden)
	ErrInvalidRole    = apperr.Invalid("invites cannot grant this role")
	ErrShareRevoked   = fmt.Errorf("%w: share revoked", apperr.ErrNotFound)
	ErrNoContactInfo  = apperr.Invalid("an email or phone number is required")
)

// InviteCode lets anyone holding it sign up with Role
type InviteCode struct {
	ID        string     `json:"id"`
	Code      string     `json:"code"`
	Role      rbac.Role  `json:"role"`
	Note      string     `json:"note,omitempty"`
	CreatedBy string     `json:"created_by"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Active    bool       `json:"active"`
	UseCount  int        `json:"use_count"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ClientInvite invites one external person. It can be redeemed once.
type ClientInvite struct {
	ID        string     `json:"id"`
	Code      string     `json:"code"`
	Email     string     `json:"email,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	Name      string     `json:"name,omitempty"`
	Role      rbac.Role  `json:"role"`
	CreatedBy string     `json:"created_by"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Active    bool       `json:"active"`
	UsedBy    string     `json:"used_by,omitempty"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Share is a tokenized link to one content item
type Share struct {
	ID             string     `json:"id"`
	Token          string     `json:"token"`
	ContentID      string     `json:"content_id"`
	SharedBy       string     `json:"shared_by"`
	RecipientEmail string     `json:"recipient_email,omitempty"`
	RecipientName  string     `json:"recipient_name,omitempty"`
	Message        string     `json:"message,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	Revoked        bool       `json:"revoked"`
	ViewCount      int64      `json:"view_count"`
	LastViewedAt   *time.Time `json:"last_viewed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func expired(expiresAt *time.Time, now time.Time) bool {
	return expiresAt != nil && !expiresAt.After(now)
}

// Store persists codes and shares. Codes and tokens are unique; inserting a
// taken one fails with storage.ErrDuplicate.
type Store interface {
	CreateInviteCode(ctx context.Context, c *InviteCode) error
	GetInviteCode(ctx context.Context, id string) (*InviteCode, error)
	GetInviteCodeByCode(ctx context.Context, code string) (*InviteCode, error)
	UpdateInviteCode(ctx context.Context, c *InviteCode) error
	// IncrementInviteUses atomically bumps UseCount
	IncrementInviteUses(ctx context.Context, id string) error
	ListInviteCodes(ctx context.Context) ([]*InviteCode, error)

	CreateClientInvite(ctx context.Context, inv *ClientInvite) error
	GetClientInviteByCode(ctx context.Context, code string) (*ClientInvite, error)
	ListClientInvites(ctx context.Context) ([]*ClientInvite, error)
	// ConsumeClientInvite stamps UsedBy/UsedAt and clears Active only while
	// UsedAt is unset; otherwise it returns storage.ErrConflict.
	ConsumeClientInvite(ctx context.Context, id, userID string, at time.Time) error

	CreateShare(ctx context.Context, s *Share) error
	GetShare(ctx context.Context, id string) (*Share, error)
	GetShareByToken(ctx context.Context, token string) (*Share, error)
	UpdateShare(ctx context.Context, s *Share) error
	// RecordShareView atomically increments ViewCount and sets LastViewedAt
	RecordShareView(ctx context.Context, id string, at time.Time) error
	ListSharesForContent(ctx context.Context, contentID string) ([]*Share, error)
	ListSharesBySharer(ctx context.Context, userID string) ([]*Share, error)
	CountActiveShares(ctx context.Context, now time.Time) (int, error)
}
