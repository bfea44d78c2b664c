package api

import (
	"time"

	"github.com/platinummonkey/mediagate/pkg/access"
	"github.com/platinummonkey/mediagate/pkg/audit"
	"github.com/platinummonkey/mediagate/pkg/billing"
	"github.com/platinummonkey/mediagate/pkg/blob"
	"github.com/platinummonkey/mediagate/pkg/bundles"
	"github.com/platinummonkey/mediagate/pkg/content"
	"github.com/platinummonkey/mediagate/pkg/groups"
	"github.com/platinummonkey/mediagate/pkg/rbac"
	"github.com/platinummonkey/mediagate/pkg/sharing"
)

// Store is every persistence interface the services need. Both
// storage/memory and storage/sqlstore satisfy it.
type Store interface {
	rbac.ProfileStore
	content.Store
	groups.Store
	bundles.Store
	access.Store
	billing.Store
	sharing.Store
}

// Deps are the collaborators NewServices wires together
type Deps struct {
	Store Store
	// Profiles overrides Store for profile reads, e.g. with a cache. Optional.
	Profiles rbac.ProfileStore
	Audit    audit.Logger
	// Payments defaults to billing.MockProcessor
	Payments billing.PaymentProcessor
	Sender   sharing.Sender
	Blobs    blob.Store
	Sharing  sharing.Config
	// PasswordLimiter throttles viewing-password attempts. Optional.
	PasswordLimiter access.AttemptLimiter
	// ShareLimiter throttles share-token lookups. Optional.
	ShareLimiter sharing.AttemptLimiter
	// Clock overrides time.Now in every service. Optional.
	Clock func() time.Time
}

// NewServices builds the service graph over one store
func NewServices(d Deps) Services {
	clock := d.Clock
	if clock == nil {
		clock = time.Now
	}
	profileStore := d.Profiles
	if profileStore == nil {
		profileStore = d.Store
	}

	profiles := rbac.NewManager(profileStore, d.Audit).WithClock(clock)
	contentSvc := content.NewService(d.Store, d.Audit).WithClock(clock)
	groupSvc := groups.NewService(d.Store)
	bundleSvc := bundles.NewService(d.Store, contentSvc)
	grants := access.NewGrantService(d.Store, contentSvc, bundleSvc, profileStore, groupSvc, d.Audit).WithClock(clock)
	billingSvc := billing.NewService(d.Store, grants, d.Payments, d.Audit).WithClock(clock)

	resolver := access.NewResolver(contentSvc, d.Store, groupSvc, bundleSvc, billingSvc).
		WithClock(clock).
		WithAudit(d.Audit)
	if d.PasswordLimiter != nil {
		resolver = resolver.WithLimiter(d.PasswordLimiter)
	}

	sharingSvc := sharing.NewService(d.Store, resolver, contentSvc, profiles, d.Sender, d.Audit, d.Sharing).WithClock(clock)
	if d.ShareLimiter != nil {
		sharingSvc = sharingSvc.WithLimiter(d.ShareLimiter)
	}

	return Services{
		Profiles: profiles,
		Content:  contentSvc,
		Resolver: resolver,
		Grants:   grants,
		Groups:   groupSvc,
		Bundles:  bundleSvc,
		Billing:  billingSvc,
		Sharing:  sharingSvc,
		Blobs:    d.Blobs,
	}
}
