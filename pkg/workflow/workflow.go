// Package workflow is the editorial state machine for content items.
//
// Transitions are data: a table maps each Action to its allowed source
// statuses, its target status and the permissions that may trigger it.
// Transition is pure and never touches storage.
package workflow

import (
	"fmt"
	"strings"

	"github.com/platinummonkey/mediagate/pkg/apperr"
	"github.com/platinummonkey/mediagate/pkg/rbac"
)

// Status is the editorial lifecycle stage of a content item
type Status string

const (
	StatusDraft            Status = "draft"
	StatusReview           Status = "review"
	StatusRejected         Status = "rejected"
	StatusChangesRequested Status = "changes_requested"
	StatusPublished        Status = "published"
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusReview, StatusRejected, StatusChangesRequested, StatusPublished:
		return true
	}
	return false
}

// Action is a transition trigger
type Action string

const (
	ActionSubmit         Action = "submit"
	ActionApprove        Action = "approve"
	ActionReject         Action = "reject"
	ActionRequestChanges Action = "request_changes"
	ActionUnpublish      Action = "unpublish"
)

var (
	ErrInvalidTransition = fmt.Errorf("%w: invalid transition", apperr.ErrPrecondition)
	ErrNoteRequired      = apperr.Invalid("a note is required")
	ErrUnknownAction     = apperr.Invalid("unknown workflow action")
)

// InvalidTransitionError names the action, the current status and the statuses it requires
type InvalidTransitionError struct {
	Action  Action
	Current Status
	From    []Status
}

func (e *InvalidTransitionError) Error() string {
	from := make([]string, len(e.From))
	for i, s := range e.From {
		from[i] = string(s)
	}
	return fmt.Sprintf("cannot %s content in status %s: requires %s", e.Action, e.Current, strings.Join(from, " or "))
}

func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// Actor is the capability view of whoever triggers a transition
type Actor struct {
	Permissions rbac.PermissionSet
	// IsCreator is true when the actor created the content item
	IsCreator bool
	// Unowned is true when the content item has no recorded creator
	Unowned bool
}

// Rule describes one transition
type Rule struct {
	Action       Action
	From         []Status
	To           Status
	RequiresNote bool
	// Any of these permissions allows the transition
	Permissions []rbac.Permission
	// OwnPermissions allow the transition only for the creator
	OwnPermissions []rbac.Permission
}

var rules = map[Action]Rule{
	ActionSubmit: {
		Action:         ActionSubmit,
		From:           []Status{StatusDraft, StatusRejected, StatusChangesRequested},
		To:             StatusReview,
		Permissions:    []rbac.Permission{rbac.PermSubmitContent},
		OwnPermissions: []rbac.Permission{rbac.PermSubmitOwnContent},
	},
	ActionApprove: {
		Action:      ActionApprove,
		From:        []Status{StatusReview},
		To:          StatusPublished,
		Permissions: []rbac.Permission{rbac.PermReviewContent},
	},
	ActionReject: {
		Action:       ActionReject,
		From:         []Status{StatusReview},
		To:           StatusRejected,
		RequiresNote: true,
		Permissions:  []rbac.Permission{rbac.PermReviewContent},
	},
	ActionRequestChanges: {
		Action:       ActionRequestChanges,
		From:         []Status{StatusReview},
		To:           StatusChangesRequested,
		RequiresNote: true,
		Permissions:  []rbac.Permission{rbac.PermReviewContent},
	},
	ActionUnpublish: {
		Action:      ActionUnpublish,
		From:        []Status{StatusPublished},
		To:          StatusDraft,
		Permissions: []rbac.Permission{rbac.PermUnpublishContent},
	},
}

// Rules returns the transition table
func Rules() []Rule {
	out := make([]Rule, 0, len(rules))
	for _, a := range []Action{ActionSubmit, ActionApprove, ActionReject, ActionRequestChanges, ActionUnpublish} {
		out = append(out, rules[a])
	}
	return out
}

// RuleFor returns the rule for an action
func RuleFor(action Action) (Rule, bool) {
	r, ok := rules[action]
	return r, ok
}

// Transition returns the status reached by applying action to current.
// Authorization is checked before state, so an unauthorized actor always
// gets ErrForbidden regardless of the item's status.
func Transition(current Status, action Action, actor Actor, note string) (Status, error) {
	rule, ok := rules[action]
	if !ok {
		return current, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	if !rule.allows(actor) {
		return current, apperr.Forbidden("may not %s this content", action)
	}
	if !rule.from(current) {
		return current, &InvalidTransitionError{Action: action, Current: current, From: rule.From}
	}
	if rule.RequiresNote && strings.TrimSpace(note) == "" {
		return current, fmt.Errorf("%w to %s", ErrNoteRequired, action)
	}
	return rule.To, nil
}

func (r Rule) allows(actor Actor) bool {
	if actor.Permissions.HasAny(r.Permissions...) {
		return true
	}
	return actor.IsCreator && actor.Permissions.HasAny(r.OwnPermissions...)
}

func (r Rule) from(s Status) bool {
	return contains(r.From, s)
}

// ownEditable are the statuses in which a creator without EDIT_CONTENT may still edit
var ownEditable = []Status{StatusDraft, StatusRejected, StatusChangesRequested}

// ownDeletable are the statuses in which content may be deleted without DELETE_CONTENT
var ownDeletable = []Status{StatusDraft, StatusRejected}

// CanEdit checks whether actor may change the fields of content in status
func CanEdit(status Status, actor Actor) error {
	if actor.Permissions.Has(rbac.PermEditContent) {
		return nil
	}
	if !actor.IsCreator || !actor.Permissions.Has(rbac.PermEditOwnContent) {
		return apperr.Forbidden("may not edit this content")
	}
	if !contains(ownEditable, status) {
		return &InvalidTransitionError{Action: "edit", Current: status, From: ownEditable}
	}
	return nil
}

// CanDelete checks whether actor may delete content in status
func CanDelete(status Status, actor Actor) error {
	if actor.Permissions.Has(rbac.PermDeleteContent) {
		return nil
	}
	if !actor.Permissions.Has(rbac.PermDeleteOwnContent) || !(actor.IsCreator || actor.Unowned) {
		return apperr.Forbidden("may not delete this content")
	}
	if !contains(ownDeletable, status) {
		return &InvalidTransitionError{Action: "delete", Current: status, From: ownDeletable}
	}
	return nil
}

func contains(statuses []Status, s Status) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}
