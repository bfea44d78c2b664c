package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/mediagate/pkg/apperr"
	"github.com/platinummonkey/mediagate/pkg/rbac"
)

func actorFor(role rbac.Role, creator bool) Actor {
	return Actor{
		Permissions: rbac.DefaultPermissions(role),
		IsCreator:   creator,
	}
}

func TestTransition_Table(t *testing.T) {
	admin := actorFor(rbac.RoleAdmin, false)
	editor := actorFor(rbac.RoleEditor, false)
	owningContributor := actorFor(rbac.RoleContributor, true)
	otherContributor := actorFor(rbac.RoleContributor, false)
	client := actorFor(rbac.RoleClient, false)

	tests := []struct {
		name    string
		current Status
		action  Action
		actor   Actor
		note    string
		want    Status
		wantErr error
	}{
		{"creator submits draft", StatusDraft, ActionSubmit, owningContributor, "", StatusReview, nil},
		{"creator resubmits rejected", StatusRejected, ActionSubmit, owningContributor, "", StatusReview, nil},
		{"creator resubmits changes requested", StatusChangesRequested, ActionSubmit, owningContributor, "", StatusReview, nil},
		{"admin submits anyone's draft", StatusDraft, ActionSubmit, admin, "", StatusReview, nil},
		{"other contributor cannot submit", StatusDraft, ActionSubmit, otherContributor, "", StatusDraft, apperr.ErrForbidden},
		{"editor cannot submit", StatusDraft, ActionSubmit, editor, "", StatusDraft, apperr.ErrForbidden},
		{"submit twice fails", StatusReview, ActionSubmit, owningContributor, "", StatusReview, ErrInvalidTransition},
		{"editor approves", StatusReview, ActionApprove, editor, "", StatusPublished, nil},
		{"admin approves", StatusReview, ActionApprove, admin, "", StatusPublished, nil},
		{"approve outside review", StatusDraft, ActionApprove, editor, "", StatusDraft, ErrInvalidTransition},
		{"contributor cannot approve", StatusReview, ActionApprove, owningContributor, "", StatusReview, apperr.ErrForbidden},
		{"editor rejects with note", StatusReview, ActionReject, editor, "off topic", StatusRejected, nil},
		{"reject needs note", StatusReview, ActionReject, editor, "  ", StatusReview, ErrNoteRequired},
		{"editor requests changes", StatusReview, ActionRequestChanges, editor, "fix title", StatusChangesRequested, nil},
		{"request changes needs note", StatusReview, ActionRequestChanges, admin, "", StatusReview, ErrNoteRequired},
		{"admin unpublishes", StatusPublished, ActionUnpublish, admin, "", StatusDraft, nil},
		{"editor cannot unpublish", StatusPublished, ActionUnpublish, editor, "", StatusPublished, apperr.ErrForbidden},
		{"unpublish draft fails", StatusDraft, ActionUnpublish, admin, "", StatusDraft, ErrInvalidTransition},
		{"client can do nothing", StatusReview, ActionApprove, client, "", StatusReview, apperr.ErrForbidden},
		{"unknown action", StatusDraft, Action("archive"), admin, "", StatusDraft, ErrUnknownAction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Transition(tt.current, tt.action, tt.actor, tt.note)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInvalidTransitionError(t *testing.T) {
	_, err := Transition(StatusPublished, ActionApprove, actorFor(rbac.RoleEditor, false), "")

	var ite *InvalidTransitionError
	require.True(t, errors.As(err, &ite))
	assert.Equal(t, ActionApprove, ite.Action)
	assert.Equal(t, StatusPublished, ite.Current)
	assert.Equal(t, []Status{StatusReview}, ite.From)
	assert.Equal(t, "cannot approve content in status published: requires review", err.Error())
	assert.True(t, errors.Is(err, apperr.ErrPrecondition))
}

func TestOverrideWithoutReviewPermission(t *testing.T) {
	editor := Actor{Permissions: rbac.NewPermissionSet(rbac.PermViewContent, rbac.PermEditContent)}
	_, err := Transition(StatusReview, ActionApprove, editor, "")
	assert.True(t, errors.Is(err, apperr.ErrForbidden))
}

func TestCanEdit(t *testing.T) {
	tests := []struct {
		name    string
		status  Status
		actor   Actor
		wantErr error
	}{
		{"editor edits published", StatusPublished, actorFor(rbac.RoleEditor, false), nil},
		{"editor edits review", StatusReview, actorFor(rbac.RoleEditor, false), nil},
		{"creator edits draft", StatusDraft, actorFor(rbac.RoleContributor, true), nil},
		{"creator edits rejected", StatusRejected, actorFor(rbac.RoleContributor, true), nil},
		{"creator edits changes requested", StatusChangesRequested, actorFor(rbac.RoleContributor, true), nil},
		{"creator cannot edit review", StatusReview, actorFor(rbac.RoleContributor, true), ErrInvalidTransition},
		{"creator cannot edit published", StatusPublished, actorFor(rbac.RoleContributor, true), ErrInvalidTransition},
		{"other contributor", StatusDraft, actorFor(rbac.RoleContributor, false), apperr.ErrForbidden},
		{"editor whose override omits EDIT_CONTENT", StatusDraft, Actor{Permissions: rbac.NewPermissionSet(rbac.PermReviewContent)}, apperr.ErrForbidden},
		{"client", StatusDraft, actorFor(rbac.RoleClient, true), apperr.ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CanEdit(tt.status, tt.actor)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestCanDelete(t *testing.T) {
	unownedEditor := actorFor(rbac.RoleEditor, false)
	unownedEditor.Unowned = true

	tests := []struct {
		name    string
		status  Status
		actor   Actor
		wantErr error
	}{
		{"admin deletes published", StatusPublished, actorFor(rbac.RoleAdmin, false), nil},
		{"admin deletes review", StatusReview, actorFor(rbac.RoleAdmin, false), nil},
		{"contributor deletes own draft", StatusDraft, actorFor(rbac.RoleContributor, true), nil},
		{"editor deletes own rejected", StatusRejected, actorFor(rbac.RoleEditor, true), nil},
		{"editor deletes unowned draft", StatusDraft, unownedEditor, nil},
		{"editor cannot delete someone's draft", StatusDraft, actorFor(rbac.RoleEditor, false), apperr.ErrForbidden},
		{"contributor cannot delete own published", StatusPublished, actorFor(rbac.RoleContributor, true), ErrInvalidTransition},
		{"contributor cannot delete own changes requested", StatusChangesRequested, actorFor(rbac.RoleContributor, true), ErrInvalidTransition},
		{"client forbidden", StatusDraft, actorFor(rbac.RoleClient, true), apperr.ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CanDelete(tt.status, tt.actor)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestRules(t *testing.T) {
	for _, r := range Rules() {
		assert.True(t, r.To.Valid(), r.Action)
		for _, f := range r.From {
			assert.True(t, f.Valid(), r.Action)
		}
		got, ok := RuleFor(r.Action)
		assert.True(t, ok)
		assert.Equal(t, r.To, got.To)
	}
}
