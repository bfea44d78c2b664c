// Package memory is an in-process implementation of every mediagate store.
// It backs the default configuration and the service tests. Records are
// copied on the way in and out so callers never share memory with the store.
package memory

import (
	"sync"
	"time"

	"github.com/platinummonkey/mediagate/pkg/access"
	"github.com/platinummonkey/mediagate/pkg/billing"
	"github.com/platinummonkey/mediagate/pkg/bundles"
	"github.com/platinummonkey/mediagate/pkg/content"
	"github.com/platinummonkey/mediagate/pkg/groups"
	"github.com/platinummonkey/mediagate/pkg/rbac"
	"github.com/platinummonkey/mediagate/pkg/sharing"
)

var (
	_ rbac.ProfileStore = (*Store)(nil)
	_ content.Store     = (*Store)(nil)
	_ groups.Store      = (*Store)(nil)
	_ bundles.Store     = (*Store)(nil)
	_ access.Store      = (*Store)(nil)
	_ billing.Store     = (*Store)(nil)
	_ sharing.Store     = (*Store)(nil)
)

// Store holds every record in maps guarded by one lock
type Store struct {
	mu sync.RWMutex

	profiles map[string]*rbac.Profile

	items    map[string]*content.Item
	versions map[string][]*content.Version

	groups      map[string]*groups.Group
	memberships map[string]map[string]*groups.Membership

	bundles     map[string]*bundles.Bundle
	bundleItems map[string][]*bundles.Item

	grants map[string]*access.Grant

	pricing map[string]*billing.Pricing
	orders  map[string]*billing.Order

	inviteCodes   map[string]*sharing.InviteCode
	clientInvites map[string]*sharing.ClientInvite
	shares        map[string]*sharing.Share
}

// New creates an empty store
func New() *Store {
	return &Store{
		profiles:      make(map[string]*rbac.Profile),
		items:         make(map[string]*content.Item),
		versions:      make(map[string][]*content.Version),
		groups:        make(map[string]*groups.Group),
		memberships:   make(map[string]map[string]*groups.Membership),
		bundles:       make(map[string]*bundles.Bundle),
		bundleItems:   make(map[string][]*bundles.Item),
		grants:        make(map[string]*access.Grant),
		pricing:       make(map[string]*billing.Pricing),
		orders:        make(map[string]*billing.Order),
		inviteCodes:   make(map[string]*sharing.InviteCode),
		clientInvites: make(map[string]*sharing.ClientInvite),
		shares:        make(map[string]*sharing.Share),
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}
