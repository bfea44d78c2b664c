package sharing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/mediagate/pkg/apperr"
	"github.com/platinummonkey/mediagate/pkg/audit"
	"github.com/platinummonkey/mediagate/pkg/content"
	"github.com/platinummonkey/mediagate/pkg/notify"
	"github.com/platinummonkey/mediagate/pkg/rbac"
	"github.com/platinummonkey/mediagate/pkg/storage"
)

// ErrTooManyAttempts is returned when share lookups from one client are throttled
var ErrTooManyAttempts = fmt.Errorf("%w: share lookups", apperr.ErrRateLimited)

// Config tunes code generation
type Config struct {
	InviteCodeLength   int `yaml:"invite_code_length"`
	ClientInviteLength int `yaml:"client_invite_length"`
	ShareTokenLength   int `yaml:"share_token_length"`
	MaxCodeAttempts    int `yaml:"max_code_attempts"`
	// DefaultShareTTL applies when a share request has no expiry; zero means no expiry
	DefaultShareTTL time.Duration `yaml:"default_share_ttl"`
	// BaseURL prefixes links placed in notifications
	BaseURL string `yaml:"base_url"`
}

// DefaultConfig returns the default code settings
func DefaultConfig() Config {
	return Config{
		InviteCodeLength:   8,
		ClientInviteLength: 8,
		ShareTokenLength:   32,
		MaxCodeAttempts:    10,
		DefaultShareTTL:    7 * 24 * time.Hour,
	}
}

// ShareChecker decides whether a profile may share a content item
type ShareChecker interface {
	CanShareContent(ctx context.Context, contentID string, profile *rbac.Profile) (bool, error)
}

// ContentLoader loads content items
type ContentLoader interface {
	Load(ctx context.Context, id string) (*content.Item, error)
}

// RoleAssigner gives a user a role after a successful redemption
type RoleAssigner interface {
	AssignRole(ctx context.Context, userID string, role rbac.Role) (*rbac.Profile, error)
}

// Sender delivers notifications without blocking. notify.Dispatcher satisfies it.
type Sender interface {
	Send(ctx context.Context, msg *notify.Message)
}

// AttemptLimiter throttles share-token lookups per client
type AttemptLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Service issues and redeems invite codes, client invites and shares
type Service struct {
	store   Store
	checker ShareChecker
	content ContentLoader
	roles   RoleAssigner
	sender  Sender
	limiter AttemptLimiter
	audit   audit.Logger
	cfg     Config
	now     func() time.Time
}

// NewService creates a sharing service
func NewService(store Store, checker ShareChecker, contentLoader ContentLoader, roles RoleAssigner, sender Sender, auditLogger audit.Logger, cfg Config) *Service {
	def := DefaultConfig()
	if cfg.InviteCodeLength <= 0 {
		cfg.InviteCodeLength = def.InviteCodeLength
	}
	if cfg.ClientInviteLength <= 0 {
		cfg.ClientInviteLength = def.ClientInviteLength
	}
	if cfg.ShareTokenLength <= 0 {
		cfg.ShareTokenLength = def.ShareTokenLength
	}
	if cfg.MaxCodeAttempts <= 0 {
		cfg.MaxCodeAttempts = def.MaxCodeAttempts
	}
	if auditLogger == nil {
		auditLogger = audit.Nop()
	}
	return &Service{
		store:   store,
		checker: checker,
		content: contentLoader,
		roles:   roles,
		sender:  sender,
		audit:   auditLogger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// WithClock overrides the time source
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithLimiter throttles ResolveShare per client key
func (s *Service) WithLimiter(l AttemptLimiter) *Service {
	s.limiter = l
	return s
}

func (s *Service) notify(ctx context.Context, msg *notify.Message) {
	if s.sender != nil {
		s.sender.Send(ctx, msg)
	}
}

func (s *Service) link(path string) string {
	return strings.TrimRight(s.cfg.BaseURL, "/") + path
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func requireManageInvites(actor *rbac.Profile) error {
	if actor == nil {
		return apperr.ErrUnauthenticated
	}
	if !rbac.HasPermission(actor, rbac.PermManageInvites) {
		return apperr.Forbidden("%s required", rbac.PermManageInvites)
	}
	return nil
}

func (s *Service) checkExpiry(expiresAt *time.Time) error {
	if expiresAt != nil && !expiresAt.After(s.now()) {
		return apperr.Invalid("expiry must be in the future")
	}
	return nil
}

// InviteCodeRequest creates a reusable invite code
type InviteCodeRequest struct {
	Role      rbac.Role  `json:"role"`
	Note      string     `json:"note,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// CreateInviteCode issues a reusable code that signs holders up with req.Role
func (s *Service) CreateInviteCode(ctx context.Context, actor *rbac.Profile, req InviteCodeRequest) (*InviteCode, error) {
	if err := requireManageInvites(actor); err != nil {
		return nil, err
	}
	if !req.Role.Valid() || req.Role == rbac.RoleOwner {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, req.Role)
	}
	if req.Role == rbac.RoleAdmin && !rbac.HasPermission(actor, rbac.PermPromoteToAdmin) {
		return nil, apperr.Forbidden("%s required to invite admins", rbac.PermPromoteToAdmin)
	}
	if err := s.checkExpiry(req.ExpiresAt); err != nil {
		return nil, err
	}

	now := s.now()
	inv := &InviteCode{
		ID:        uuid.NewString(),
		Role:      req.Role,
		Note:      req.Note,
		CreatedBy: actor.UserID,
		ExpiresAt: req.ExpiresAt,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := issueUnique(ctx, codeSpec{
		charset:     CharsetInvite,
		length:      s.cfg.InviteCodeLength,
		maxAttempts: s.cfg.MaxCodeAttempts,
		exists: func(ctx context.Context, code string) (bool, error) {
			return taken(s.store.GetInviteCodeByCode(ctx, code))
		},
	}, func(code string) error {
		inv.Code = code
		return s.store.CreateInviteCode(ctx, inv)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create invite code: %w", err)
	}

	s.audit.Log(ctx, audit.NewEvent(audit.EventTypeInviteCreate, actor.UserID, audit.ResourceTypeInvite, inv.ID).
		With("role", string(inv.Role)))
	return inv, nil
}

func taken(_ any, err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	return false, err
}

// SetInviteCodeActive deactivates or reactivates an invite code
func (s *Service) SetInviteCodeActive(ctx context.Context, actor *rbac.Profile, id string, active bool) (*InviteCode, error) {
	if err := requireManageInvites(actor); err != nil {
		return nil, err
	}
	inv, err := s.store.GetInviteCode(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrInviteNotFound, id)
		}
		return nil, fmt.Errorf("failed to get invite code: %w", err)
	}
	inv.Active = active
	inv.UpdatedAt = s.now()
	if err := s.store.UpdateInviteCode(ctx, inv); err != nil {
		return nil, fmt.Errorf("failed to update invite code: %w", err)
	}
	s.audit.Log(ctx, audit.NewEvent(audit.EventTypeInviteToggle, actor.UserID, audit.ResourceTypeInvite, id).
		With("active", active))
	return inv, nil
}

// ListInviteCodes lists every invite code, newest first
func (s *Service) ListInviteCodes(ctx context.Context, actor *rbac.Profile) ([]*InviteCode, error) {
	if err := requireManageInvites(actor); err != nil {
		return nil, err
	}
	codes, err := s.store.ListInviteCodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list invite codes: %w", err)
	}
	sort.SliceStable(codes, func(i, j int) bool { return codes[i].CreatedAt.After(codes[j].CreatedAt) })
	return codes, nil
}

// RedeemInviteCode gives userID the role carried by code
func (s *Service) RedeemInviteCode(ctx context.Context, userID, code string) (*rbac.Profile, error) {
	if userID == "" {
		return nil, apperr.ErrUnauthenticated
	}
	inv, err := s.store.GetInviteCodeByCode(ctx, normalizeCode(code))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInviteNotFound
		}
		return nil, fmt.Errorf("failed to get invite code: %w", err)
	}
	if !inv.Active {
		return nil, ErrInactive
	}
	if expired(inv.ExpiresAt, s.now()) {
		return nil, ErrExpired
	}

	profile, err := s.roles.AssignRole(ctx, userID, inv.Role)
	if err != nil {
		return nil, err
	}
	if err := s.store.IncrementInviteUses(ctx, inv.ID); err != nil {
		return nil, fmt.Errorf("failed to record invite use: %w", err)
	}
	s.audit.Log(ctx, audit.NewEvent(audit.EventTypeInviteRedeem, userID, audit.ResourceTypeInvite, inv.ID).
		With("role", string(inv.Role)))
	return profile, nil
}

// ClientInviteRequest invites one external person
type ClientInviteRequest struct {
	Email     string     `json:"email,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	Name      string     `json:"name,omitempty"`
	Role      rbac.Role  `json:"role"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func clientRole(role rbac.Role) bool {
	return role == rbac.RoleClient || role == rbac.RoleParent || role == rbac.RoleProfessional
}

// CreateClientInvite issues a single-use invite and notifies the recipient.
// Notification failures do not fail the call.
func (s *Service) CreateClientInvite(ctx context.Context, actor *rbac.Profile, req ClientInviteRequest) (*ClientInvite, error) {
	if err := requireManageInvites(actor); err != nil {
		return nil, err
	}
	if req.Role == "" {
		req.Role = rbac.RoleClient
	}
	if !clientRole(req.Role) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, req.Role)
	}
	if req.Email == "" && req.Phone == "" {
		return nil, ErrNoContactInfo
	}
	if err := s.checkExpiry(req.ExpiresAt); err != nil {
		return nil, err
	}

	inv := &ClientInvite{
		ID:        uuid.NewString(),
		Email:     strings.TrimSpace(req.Email),
		Phone:     strings.TrimSpace(req.Phone),
		Name:      req.Name,
		Role:      req.Role,
		CreatedBy: actor.UserID,
		ExpiresAt: req.ExpiresAt,
		Active:    true,
		CreatedAt: s.now(),
	}
	_, err := issueUnique(ctx, codeSpec{
		charset:     CharsetInvite,
		length:      s.cfg.ClientInviteLength,
		maxAttempts: s.cfg.MaxCodeAttempts,
		exists: func(ctx context.Context, code string) (bool, error) {
			return taken(s.store.GetClientInviteByCode(ctx, code))
		},
	}, func(code string) error {
		inv.Code = code
		return s.store.CreateClientInvite(ctx, inv)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client invite: %w", err)
	}

	s.audit.Log(ctx, audit.NewEvent(audit.EventTypeInviteCreate, actor.UserID, audit.ResourceTypeInvite, inv.ID).
		With("role", string(inv.Role)).
		With("single_use", true))

	data := map[string]string{
		"name": inv.Name,
		"code": inv.Code,
		"role": string(inv.Role),
		"link": s.link("/signup?invite=" + inv.Code),
	}
	if inv.Email != "" {
		s.notify(ctx, notify.Email(inv.Email, "You're invited", notify.TemplateClientInvite, data))
	}
	if inv.Phone != "" {
		s.notify(ctx, notify.SMS(inv.Phone, fmt.Sprintf("You're invited. Sign up with code %s: %s", inv.Code, data["link"])))
	}
	return inv, nil
}

// ListClientInvites lists client invites, newest first
func (s *Service) ListClientInvites(ctx context.Context, actor *rbac.Profile) ([]*ClientInvite, error) {
	if err := requireManageInvites(actor); err != nil {
		return nil, err
	}
	invites, err := s.store.ListClientInvites(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list client invites: %w", err)
	}
	sort.SliceStable(invites, func(i, j int) bool { return invites[i].CreatedAt.After(invites[j].CreatedAt) })
	return invites, nil
}

// UseClientInvite consumes a client invite for userID and assigns its role.
// Only the first call for a code succeeds.
func (s *Service) UseClientInvite(ctx context.Context, userID, code string) (*rbac.Profile, error) {
	if userID == "" {
		return nil, apperr.ErrUnauthenticated
	}
	inv, err := s.store.GetClientInviteByCode(ctx, normalizeCode(code))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInviteNotFound
		}
		return nil, fmt.Errorf("failed to get client invite: %w", err)
	}
	if inv.UsedAt != nil {
		return nil, ErrAlreadyUsed
	}
	if !inv.Active {
		return nil, ErrInactive
	}
	now := s.now()
	if expired(inv.ExpiresAt, now) {
		return nil, ErrExpired
	}

	if err := s.store.ConsumeClientInvite(ctx, inv.ID, userID, now); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, ErrAlreadyUsed
		}
		return nil, fmt.Errorf("failed to consume client invite: %w", err)
	}

	profile, err := s.roles.AssignRole(ctx, userID, inv.Role)
	if err != nil {
		return nil, err
	}
	s.audit.Log(ctx, audit.NewEvent(audit.EventTypeInviteRedeem, userID, audit.ResourceTypeInvite, inv.ID).
		With("role", string(inv.Role)).
		With("single_use", true))
	return profile, nil
}

// ShareRequest creates a share link for one content item
type ShareRequest struct {
	ContentID      string     `json:"content_id"`
	RecipientEmail string     `json:"recipient_email,omitempty"`
	RecipientName  string     `json:"recipient_name,omitempty"`
	Message        string     `json:"message,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}

// ShareContent mints a share link after checking the actor may share the item
func (s *Service) ShareContent(ctx context.Context, actor *rbac.Profile, req ShareRequest) (*Share, error) {
	if actor == nil {
		return nil, apperr.ErrUnauthenticated
	}
	ok, err := s.checker.CanShareContent(ctx, req.ContentID, actor)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotShareable
	}
	if err := s.checkExpiry(req.ExpiresAt); err != nil {
		return nil, err
	}

	now := s.now()
	expiresAt := req.ExpiresAt
	if expiresAt == nil && s.cfg.DefaultShareTTL > 0 {
		t := now.Add(s.cfg.DefaultShareTTL)
		expiresAt = &t
	}
	share := &Share{
		ID:             uuid.NewString(),
		ContentID:      req.ContentID,
		SharedBy:       actor.UserID,
		RecipientEmail: strings.TrimSpace(req.RecipientEmail),
		RecipientName:  req.RecipientName,
		Message:        req.Message,
		ExpiresAt:      expiresAt,
		CreatedAt:      now,
	}
	_, err = issueUnique(ctx, codeSpec{
		charset:     CharsetToken,
		length:      s.cfg.ShareTokenLength,
		maxAttempts: s.cfg.MaxCodeAttempts,
		exists: func(ctx context.Context, token string) (bool, error) {
			return taken(s.store.GetShareByToken(ctx, token))
		},
	}, func(token string) error {
		share.Token = token
		return s.store.CreateShare(ctx, share)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create share: %w", err)
	}

	s.audit.Log(ctx, audit.NewEvent(audit.EventTypeShareCreate, actor.UserID, audit.ResourceTypeShare, share.ID).
		With("content_id", share.ContentID))

	if share.RecipientEmail != "" {
		s.notify(ctx, notify.Email(share.RecipientEmail, "Content shared with you", notify.TemplateContentShare, map[string]string{
			"name":    share.RecipientName,
			"message": share.Message,
			"link":    s.link("/shared/" + share.Token),
		}))
	}
	return share, nil
}

// ResolveShare returns the share and its content item, recording a view.
// clientKey identifies the caller for throttling.
func (s *Service) ResolveShare(ctx context.Context, token, clientKey string) (*Share, *content.Item, error) {
	if s.limiter != nil && clientKey != "" {
		ok, err := s.limiter.Allow(ctx, "share:"+clientKey)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			return nil, nil, ErrTooManyAttempts
		}
	}

	share, err := s.store.GetShareByToken(ctx, token)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, ErrShareNotFound
		}
		return nil, nil, fmt.Errorf("failed to get share: %w", err)
	}
	if share.Revoked {
		return nil, nil, ErrShareRevoked
	}
	now := s.now()
	if expired(share.ExpiresAt, now) {
		return nil, nil, ErrExpired
	}

	item, err := s.content.Load(ctx, share.ContentID)
	if err != nil {
		if errors.Is(err, content.ErrContentNotFound) {
			return nil, nil, ErrShareNotFound
		}
		return nil, nil, err
	}
	if !item.Available(now) {
		return nil, nil, fmt.Errorf("%w: content is not available", ErrShareNotFound)
	}

	if err := s.store.RecordShareView(ctx, share.ID, now); err != nil {
		return nil, nil, fmt.Errorf("failed to record share view: %w", err)
	}
	share.ViewCount++
	share.LastViewedAt = &now
	return share, item, nil
}

// RevokeShare disables a share link. The sharer or an access manager may revoke.
func (s *Service) RevokeShare(ctx context.Context, actor *rbac.Profile, id string) (*Share, error) {
	if actor == nil {
		return nil, apperr.ErrUnauthenticated
	}
	share, err := s.store.GetShare(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrShareNotFound, id)
		}
		return nil, fmt.Errorf("failed to get share: %w", err)
	}
	if share.SharedBy != actor.UserID && !rbac.HasPermission(actor, rbac.PermManageAccess) {
		return nil, apperr.Forbidden("may not revoke another user's share")
	}
	if share.Revoked {
		return share, nil
	}
	share.Revoked = true
	if err := s.store.UpdateShare(ctx, share); err != nil {
		return nil, fmt.Errorf("failed to revoke share: %w", err)
	}
	s.audit.Log(ctx, audit.NewEvent(audit.EventTypeShareRevoke, actor.UserID, audit.ResourceTypeShare, id))
	return share, nil
}

// ListSharesForContent lists every share of a content item
func (s *Service) ListSharesForContent(ctx context.Context, actor *rbac.Profile, contentID string) ([]*Share, error) {
	if actor == nil {
		return nil, apperr.ErrUnauthenticated
	}
	if !rbac.HasPermission(actor, rbac.PermManageAccess) {
		return nil, apperr.Forbidden("%s required", rbac.PermManageAccess)
	}
	shares, err := s.store.ListSharesForContent(ctx, contentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list shares: %w", err)
	}
	return shares, nil
}

// ListMyShares lists the shares actor created
func (s *Service) ListMyShares(ctx context.Context, actor *rbac.Profile) ([]*Share, error) {
	if actor == nil {
		return nil, apperr.ErrUnauthenticated
	}
	shares, err := s.store.ListSharesBySharer(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list shares: %w", err)
	}
	return shares, nil
}

// ActiveShareCount counts shares that are neither revoked nor expired
func (s *Service) ActiveShareCount(ctx context.Context) (int, error) {
	n, err := s.store.CountActiveShares(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to count shares: %w", err)
	}
	return n, nil
}
