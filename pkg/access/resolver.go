package access

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/mediagate/pkg/audit"
	"github.com/platinummonkey/mediagate/pkg/bundles"
	"github.com/platinummonkey/mediagate/pkg/content"
	"github.com/platinummonkey/mediagate/pkg/rbac"
)

var tracer = otel.Tracer("mediagate/access")

// Reason explains a Decision
type Reason string

const (
	ReasonNotAvailable     Reason = "not_available"
	ReasonPrivileged       Reason = "privileged"
	ReasonCreator          Reason = "creator"
	ReasonPublic           Reason = "public"
	ReasonDirectGrant      Reason = "direct_grant"
	ReasonRoleGrant        Reason = "role_grant"
	ReasonGroupGrant       Reason = "group_grant"
	ReasonPassword         Reason = "password"
	ReasonPasswordRequired Reason = "password_required"
	ReasonInvalidPassword  Reason = "invalid_password"
	ReasonTooManyAttempts  Reason = "too_many_attempts"
	ReasonAuthRequired     Reason = "auth_required"
	ReasonNoPermission     Reason = "no_permission"
)

// Decision is the outcome of a resolution
type Decision struct {
	Allowed          bool          `json:"allowed"`
	RequiresPassword bool          `json:"requires_password"`
	RequiresAuth     bool          `json:"requires_auth"`
	Reason           Reason        `json:"reason"`
	GrantID          string        `json:"grant_id,omitempty"`
	Content          *content.Item `json:"content"`
}

// ResolveOptions tune a single resolution
type ResolveOptions struct {
	// Password is the viewing password supplied by the requester, if any
	Password string
	// ClientKey identifies an anonymous requester for attempt limiting, e.g. its IP
	ClientKey string
}

// ContentLoader loads content items by id
type ContentLoader interface {
	Load(ctx context.Context, id string) (*content.Item, error)
}

// GroupLookup lists a user's groups
type GroupLookup interface {
	GroupIDsForUser(ctx context.Context, userID string) ([]string, error)
}

// BundleLookup finds bundles
type BundleLookup interface {
	Get(ctx context.Context, id string) (*bundles.Bundle, error)
	BundleIDsForContent(ctx context.Context, contentID string) ([]string, error)
}

// PricingLookup reports whether a subject is currently for sale
type PricingLookup interface {
	HasActivePricing(ctx context.Context, subject Subject) (bool, error)
}

// AttemptLimiter throttles password guesses
type AttemptLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Resolver evaluates access to content items and bundles
type Resolver struct {
	content ContentLoader
	grants  Store
	groups  GroupLookup
	bundles BundleLookup
	pricing PricingLookup
	limiter AttemptLimiter
	audit   audit.Logger
	now     func() time.Time

	// FilterConcurrency bounds FilterVisible's fan-out
	FilterConcurrency int
}

// NewResolver creates a resolver
func NewResolver(contentLoader ContentLoader, grants Store, groups GroupLookup, bundleLookup BundleLookup, pricing PricingLookup) *Resolver {
	return &Resolver{
		content:           contentLoader,
		grants:            grants,
		groups:            groups,
		bundles:           bundleLookup,
		pricing:           pricing,
		audit:             audit.Nop(),
		now:               time.Now,
		FilterConcurrency: 8,
	}
}

// WithClock overrides the time source
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

// WithLimiter enables password attempt limiting
func (r *Resolver) WithLimiter(l AttemptLimiter) *Resolver {
	r.limiter = l
	return r
}

// WithAudit records minted password grants
func (r *Resolver) WithAudit(l audit.Logger) *Resolver {
	if l != nil {
		r.audit = l
	}
	return r
}

// requester is the caller as the resolver sees it. An inactive profile is anonymous.
type requester struct {
	profile *rbac.Profile
	perms   rbac.PermissionSet
}

func newRequester(profile *rbac.Profile) requester {
	if profile == nil || !profile.Active {
		return requester{perms: rbac.PermissionSet{}}
	}
	return requester{profile: profile, perms: rbac.EffectivePermissions(profile)}
}

func (q requester) anonymous() bool { return q.profile == nil }

func (q requester) userID() string {
	if q.profile == nil {
		return ""
	}
	return q.profile.UserID
}

// CanView reports whether profile may view the item without a password
func (r *Resolver) CanView(ctx context.Context, contentID string, profile *rbac.Profile) (bool, error) {
	d, err := r.Resolve(ctx, contentID, profile, ResolveOptions{})
	if err != nil {
		return false, err
	}
	return d.Allowed, nil
}

// Resolve decides whether profile (nil for anonymous) may view a content item
func (r *Resolver) Resolve(ctx context.Context, contentID string, profile *rbac.Profile, opts ResolveOptions) (*Decision, error) {
	ctx, span := tracer.Start(ctx, "access.Resolve",
		trace.WithAttributes(attribute.String("content.id", contentID)),
	)
	defer span.End()

	item, err := r.content.Load(ctx, contentID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load content")
		return nil, err
	}

	d, err := r.resolveItem(ctx, item, newRequester(profile), opts, r.now())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolution failed")
		return nil, err
	}
	span.SetAttributes(
		attribute.Bool("access.allowed", d.Allowed),
		attribute.String("access.reason", string(d.Reason)),
	)
	return d, nil
}

func allow(item *content.Item, reason Reason, grantID string) *Decision {
	return &Decision{Allowed: true, Reason: reason, GrantID: grantID, Content: item}
}

func (r *Resolver) resolveItem(ctx context.Context, item *content.Item, q requester, opts ResolveOptions, now time.Time) (*Decision, error) {
	privileged := q.perms.Has(rbac.PermViewAllContent)

	if !privileged && !item.Available(now) {
		return &Decision{Reason: ReasonNotAvailable}, nil
	}
	if privileged {
		return allow(item, ReasonPrivileged, ""), nil
	}
	if !q.anonymous() && item.CreatedBy != "" && item.CreatedBy == q.userID() {
		return allow(item, ReasonCreator, ""), nil
	}
	if item.IsPublic {
		return allow(item, ReasonPublic, ""), nil
	}

	if !q.anonymous() {
		grants, err := r.grantsForContent(ctx, item.ID)
		if err != nil {
			return nil, err
		}
		g, reason, err := r.matchGrant(ctx, grants, q, now)
		if err != nil {
			return nil, err
		}
		if g != nil {
			return allow(item, reason, g.ID), nil
		}
	}

	if item.HasPassword() {
		return r.resolvePassword(ctx, item, q, opts, now)
	}
	if q.anonymous() {
		return &Decision{RequiresAuth: true, Reason: ReasonAuthRequired}, nil
	}
	return &Decision{Reason: ReasonNoPermission}, nil
}

func (r *Resolver) resolvePassword(ctx context.Context, item *content.Item, q requester, opts ResolveOptions, now time.Time) (*Decision, error) {
	if opts.Password == "" {
		return &Decision{RequiresPassword: true, Reason: ReasonPasswordRequired}, nil
	}

	if r.limiter != nil {
		who := q.userID()
		if who == "" {
			who = opts.ClientKey
		}
		ok, err := r.limiter.Allow(ctx, "password:"+item.ID+":"+who)
		if err != nil {
			return nil, fmt.Errorf("failed to check password attempts: %w", err)
		}
		if !ok {
			return &Decision{RequiresPassword: true, Reason: ReasonTooManyAttempts}, nil
		}
	}

	if !item.CheckPassword(opts.Password) {
		return &Decision{RequiresPassword: true, Reason: ReasonInvalidPassword}, nil
	}

	// signed-in requesters keep access through a permanent direct grant
	d := allow(item, ReasonPassword, "")
	if q.anonymous() {
		return d, nil
	}

	g := &Grant{
		ID:          uuid.NewString(),
		SubjectKind: SubjectContent,
		SubjectID:   item.ID,
		UserID:      q.userID(),
		CanShare:    false,
		GrantedBy:   q.userID(),
		Source:      SourcePassword,
		CreatedAt:   now,
	}
	if err := r.grants.CreateGrant(ctx, g); err != nil {
		return nil, fmt.Errorf("failed to record password grant: %w", err)
	}
	d.GrantID = g.ID
	r.audit.Log(ctx, audit.NewEvent(audit.EventTypePasswordGrant, q.userID(), audit.ResourceTypeGrant, g.ID).
		With("content_id", item.ID))
	return d, nil
}

// grantsForContent returns grants on the item and on every bundle containing it
func (r *Resolver) grantsForContent(ctx context.Context, contentID string) ([]*Grant, error) {
	grants, err := r.grants.ListGrantsForSubject(ctx, SubjectContent, contentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	bundleIDs, err := r.bundles.BundleIDsForContent(ctx, contentID)
	if err != nil {
		return nil, err
	}
	for _, id := range bundleIDs {
		bg, err := r.grants.ListGrantsForSubject(ctx, SubjectBundle, id)
		if err != nil {
			return nil, fmt.Errorf("failed to list bundle grants: %w", err)
		}
		grants = append(grants, bg...)
	}
	return grants, nil
}

// matchGrant returns the first active grant matching q, trying direct,
// role and group grants in that order.
func (r *Resolver) matchGrant(ctx context.Context, grants []*Grant, q requester, now time.Time) (*Grant, Reason, error) {
	var active []*Grant
	for _, g := range grants {
		if g.ActiveAt(now) {
			active = append(active, g)
		}
	}

	for _, g := range active {
		if g.UserID != "" && g.UserID == q.userID() {
			return g, ReasonDirectGrant, nil
		}
	}
	for _, g := range active {
		if g.Role != "" && g.Role == q.profile.Role {
			return g, ReasonRoleGrant, nil
		}
	}

	var groupGrants []*Grant
	for _, g := range active {
		if g.GroupID != "" {
			groupGrants = append(groupGrants, g)
		}
	}
	if len(groupGrants) == 0 {
		return nil, "", nil
	}
	groupIDs, err := r.groups.GroupIDsForUser(ctx, q.userID())
	if err != nil {
		return nil, "", err
	}
	member := make(map[string]bool, len(groupIDs))
	for _, id := range groupIDs {
		member[id] = true
	}
	for _, g := range groupGrants {
		if member[g.GroupID] {
			return g, ReasonGroupGrant, nil
		}
	}
	return nil, "", nil
}

// ResolveBundle decides whether profile may view a bundle as a whole
func (r *Resolver) ResolveBundle(ctx context.Context, bundleID string, profile *rbac.Profile) (*Decision, error) {
	if _, err := r.bundles.Get(ctx, bundleID); err != nil {
		return nil, err
	}
	q := newRequester(profile)
	if q.perms.Has(rbac.PermViewAllContent) {
		return &Decision{Allowed: true, Reason: ReasonPrivileged}, nil
	}
	if q.anonymous() {
		return &Decision{RequiresAuth: true, Reason: ReasonAuthRequired}, nil
	}

	grants, err := r.grants.ListGrantsForSubject(ctx, SubjectBundle, bundleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bundle grants: %w", err)
	}
	g, reason, err := r.matchGrant(ctx, grants, q, r.now())
	if err != nil {
		return nil, err
	}
	if g != nil {
		return &Decision{Allowed: true, Reason: reason, GrantID: g.ID}, nil
	}
	return &Decision{Reason: ReasonNoPermission}, nil
}

// CanShareContent reports whether profile may mint a share link for the item.
// Privileged viewers, the creator and holders of an active shareable grant may
// share anything they can see. Anyone else may share only public, published
// content that is not for sale.
func (r *Resolver) CanShareContent(ctx context.Context, contentID string, profile *rbac.Profile) (bool, error) {
	q := newRequester(profile)
	if q.anonymous() || !q.perms.Has(rbac.PermShareContent) {
		return false, nil
	}
	item, err := r.content.Load(ctx, contentID)
	if err != nil {
		return false, err
	}
	now := r.now()

	if q.perms.Has(rbac.PermViewAllContent) {
		return true, nil
	}
	if item.CreatedBy != "" && item.CreatedBy == q.userID() {
		return true, nil
	}
	if !item.Available(now) {
		return false, nil
	}

	grants, err := r.grantsForContent(ctx, item.ID)
	if err != nil {
		return false, err
	}
	var shareable []*Grant
	for _, g := range grants {
		if g.CanShare {
			shareable = append(shareable, g)
		}
	}
	g, _, err := r.matchGrant(ctx, shareable, q, now)
	if err != nil {
		return false, err
	}
	if g != nil {
		return true, nil
	}

	if !item.IsPublic {
		return false, nil
	}
	forSale, err := r.pricing.HasActivePricing(ctx, Subject{Kind: SubjectContent, ID: item.ID})
	if err != nil {
		return false, fmt.Errorf("failed to check pricing: %w", err)
	}
	return !forSale, nil
}

// FilterVisible returns the items profile may view without a password, in input order
func (r *Resolver) FilterVisible(ctx context.Context, items []*content.Item, profile *rbac.Profile) ([]*content.Item, error) {
	q := newRequester(profile)
	now := r.now()
	allowed := make([]bool, len(items))

	g, gctx := errgroup.WithContext(ctx)
	if r.FilterConcurrency > 0 {
		g.SetLimit(r.FilterConcurrency)
	}
	for i, item := range items {
		g.Go(func() error {
			d, err := r.resolveItem(gctx, item, q, ResolveOptions{}, now)
			if err != nil {
				return err
			}
			allowed[i] = d.Allowed
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	visible := make([]*content.Item, 0, len(items))
	for i, item := range items {
		if allowed[i] {
			visible = append(visible, item)
		}
	}
	return visible, nil
}
