package access

import (
	"context"
	"fmt"
	"time"

	"github.com/platinummonkey/mediagate/pkg/apperr"
	"github.com/platinummonkey/mediagate/pkg/rbac"
)

var (
	ErrGrantNotFound      = fmt.Errorf("%w: access grant", apperr.ErrNotFound)
	ErrAlreadyHasAccess   = fmt.Errorf("%w: already has access", apperr.ErrPrecondition)
	ErrInvalidGrantTarget = apperr.Invalid("a grant targets exactly one of user, role or group")
)

// SubjectKind is what a grant or price applies to
type SubjectKind string

const (
	SubjectContent SubjectKind = "content"
	SubjectBundle  SubjectKind = "bundle"
)

// Valid reports whether k is a known subject kind
func (k SubjectKind) Valid() bool {
	return k == SubjectContent || k == SubjectBundle
}

// Subject identifies a content item or bundle
type Subject struct {
	Kind SubjectKind `json:"kind"`
	ID   string      `json:"id"`
}

func (s Subject) String() string {
	return string(s.Kind) + ":" + s.ID
}

// TargetKind is who a grant applies to
type TargetKind string

const (
	TargetUser  TargetKind = "user"
	TargetRole  TargetKind = "role"
	TargetGroup TargetKind = "group"
)

// Source records how a grant came to exist
type Source string

const (
	SourceManual   Source = "manual"
	SourcePassword Source = "password"
	SourcePurchase Source = "purchase"
)

// Grant authorizes one user, role or group to view one content item or bundle
type Grant struct {
	ID          string      `json:"id"`
	SubjectKind SubjectKind `json:"subject_kind"`
	SubjectID   string      `json:"subject_id"`
	UserID      string      `json:"user_id,omitempty"`
	Role        rbac.Role   `json:"role,omitempty"`
	GroupID     string      `json:"group_id,omitempty"`
	ExpiresAt   *time.Time  `json:"expires_at,omitempty"`
	CanShare    bool        `json:"can_share"`
	GrantedBy   string      `json:"granted_by"`
	Source      Source      `json:"source"`
	OrderID     string      `json:"order_id,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Subject returns what the grant applies to
func (g *Grant) Subject() Subject {
	return Subject{Kind: g.SubjectKind, ID: g.SubjectID}
}

// Target returns who the grant applies to
func (g *Grant) Target() (TargetKind, string) {
	switch {
	case g.UserID != "":
		return TargetUser, g.UserID
	case g.Role != "":
		return TargetRole, string(g.Role)
	default:
		return TargetGroup, g.GroupID
	}
}

// Validate checks that exactly one target is set and the subject is well formed
func (g *Grant) Validate() error {
	targets := 0
	for _, set := range []bool{g.UserID != "", g.Role != "", g.GroupID != ""} {
		if set {
			targets++
		}
	}
	if targets != 1 {
		return ErrInvalidGrantTarget
	}
	if g.Role != "" && !g.Role.Valid() {
		return apperr.Invalid("unknown role %q", g.Role)
	}
	if !g.SubjectKind.Valid() || g.SubjectID == "" {
		return apperr.Invalid("grant subject is required")
	}
	return nil
}

// ActiveAt reports whether the grant is in force at now. Expiry is strict:
// a grant expiring exactly at now is already inert.
func (g *Grant) ActiveAt(now time.Time) bool {
	return g.ExpiresAt == nil || g.ExpiresAt.After(now)
}

// sameTarget reports whether two grants name the same user, role or group
func (g *Grant) sameTarget(o *Grant) bool {
	k1, id1 := g.Target()
	k2, id2 := o.Target()
	return k1 == k2 && id1 == id2
}

// Store persists access grants
type Store interface {
	CreateGrant(ctx context.Context, g *Grant) error
	GetGrant(ctx context.Context, id string) (*Grant, error)
	UpdateGrant(ctx context.Context, g *Grant) error
	DeleteGrant(ctx context.Context, id string) error
	ListGrantsForSubject(ctx context.Context, kind SubjectKind, subjectID string) ([]*Grant, error)
	ListGrantsForUser(ctx context.Context, userID string) ([]*Grant, error)
}
