package content_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/mediagate/pkg/apperr"
	"github.com/platinummonkey/mediagate/pkg/audit"
	"github.com/platinummonkey/mediagate/pkg/content"
	"github.com/platinummonkey/mediagate/pkg/rbac"
	"github.com/platinummonkey/mediagate/pkg/storage/memory"
	"github.com/platinummonkey/mediagate/pkg/workflow"
)

var (
	admin       = &rbac.Profile{UserID: "admin-1", Role: rbac.RoleAdmin, Active: true}
	editor      = &rbac.Profile{UserID: "editor-1", Role: rbac.RoleEditor, Active: true}
	contributor = &rbac.Profile{UserID: "contrib-1", Role: rbac.RoleContributor, Active: true}
	other       = &rbac.Profile{UserID: "contrib-2", Role: rbac.RoleContributor, Active: true}
	client      = &rbac.Profile{UserID: "client-1", Role: rbac.RoleClient, Active: true}
)

type fixture struct {
	svc   *content.Service
	store *memory.Store
	audit *audit.MemoryLogger
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: memory.New(),
		audit: audit.NewMemoryLogger(),
		now:   time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	f.svc = content.NewService(f.store, f.audit).WithClock(func() time.Time { return f.now })
	return f
}

func ptr[T any](v T) *T { return &v }

func (f *fixture) create(t *testing.T, actor *rbac.Profile, title string) *content.Item {
	t.Helper()
	item, err := f.svc.Create(context.Background(), actor, content.CreateInput{
		Fields: content.Fields{Title: title, Type: content.TypeVideo, Active: true},
	})
	require.NoError(t, err)
	return item
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item := f.create(t, contributor, "Intro")
	assert.Equal(t, workflow.StatusDraft, item.Status)
	assert.Equal(t, 1, item.CurrentVersion)
	assert.Equal(t, contributor.UserID, item.CreatedBy)

	_, err := f.svc.Create(ctx, client, content.CreateInput{Fields: content.Fields{Title: "x", Type: content.TypeVideo}})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.svc.Create(ctx, nil, content.CreateInput{})
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

	_, err = f.svc.Create(ctx, editor, content.CreateInput{Fields: content.Fields{Type: content.TypeVideo}})
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	assert.Len(t, f.audit.OfType(audit.EventTypeContentCreate), 1)
}

func TestCreateArticleNormalizesRichText(t *testing.T) {
	f := newFixture(t)
	item, err := f.svc.Create(context.Background(), editor, content.CreateInput{
		Fields: content.Fields{Title: "Reading", Type: content.TypeArticle, RichTextContent: "<p>hi</p>"},
	})
	require.NoError(t, err)
	assert.Equal(t, "<p>hi</p>", item.Body)
	assert.Empty(t, item.RichTextContent)
}

func TestCreateArticleRichTextReplacesBody(t *testing.T) {
	f := newFixture(t)
	item, err := f.svc.Create(context.Background(), editor, content.CreateInput{
		Fields: content.Fields{Title: "Reading", Type: content.TypeArticle, Body: "plain", RichTextContent: "<p>rich</p>"},
	})
	require.NoError(t, err)
	assert.Equal(t, "<p>rich</p>", item.Body)
	assert.Empty(t, item.RichTextContent)
}

func TestRichTextEditOnArticleUpdatesBody(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item, err := f.svc.Create(ctx, editor, content.CreateInput{
		Fields: content.Fields{Title: "Reading", Type: content.TypeArticle, Body: "old body", Active: true},
	})
	require.NoError(t, err)

	updated, err := f.svc.Update(ctx, editor, item.ID, content.Patch{RichTextContent: ptr("<p>new body</p>")}, "rich edit")
	require.NoError(t, err)
	assert.Equal(t, "<p>new body</p>", updated.Body)
	assert.Empty(t, updated.RichTextContent)
	assert.Equal(t, 2, updated.CurrentVersion)

	stored, err := f.svc.Load(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "<p>new body</p>", stored.Body)

	v2, err := f.svc.GetVersion(ctx, editor, item.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, "old body", v2.Fields.Body)
}

func TestLoad(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Load(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	_, err = f.svc.Load(ctx, "4b1d1a3e-8f0c-4d7e-9a55-2f5d3f1b7c10")
	assert.ErrorIs(t, err, content.ErrContentNotFound)

	exists, err := f.svc.ContentExists(ctx, "4b1d1a3e-8f0c-4d7e-9a55-2f5d3f1b7c10")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestVersionNumbersAreContiguous(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.create(t, editor, "v0")

	const edits = 6
	for i := 1; i <= edits; i++ {
		f.now = f.now.Add(time.Minute)
		title := "v" + string(rune('0'+i))
		var err error
		item, err = f.svc.Update(ctx, editor, item.ID, content.Patch{Title: &title}, "")
		require.NoError(t, err)
	}

	versions, err := f.svc.ListVersions(ctx, editor, item.ID)
	require.NoError(t, err)
	require.Len(t, versions, edits+1)
	for i, v := range versions {
		assert.Equal(t, i+1, v.VersionNumber)
	}

	stored, err := f.svc.Load(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, edits+1, stored.CurrentVersion)
}

func TestUpdateSnapshotsPreChangeState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.create(t, editor, "before")

	_, err := f.svc.Update(ctx, editor, item.ID, content.Patch{Title: ptr("after")}, "retitle")
	require.NoError(t, err)

	v2, err := f.svc.GetVersion(ctx, editor, item.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, "before", v2.Fields.Title)
	assert.Equal(t, "retitle", v2.ChangeDescription)
}

func TestUpdateWithoutChangesTakesNoSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.create(t, editor, "same")

	updated, err := f.svc.Update(ctx, editor, item.ID, content.Patch{Title: ptr("same")}, "")
	require.NoError(t, err)
	assert.Equal(t, 1, updated.CurrentVersion)
}

func TestPermissionOverrideNeverFallsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.create(t, admin, "owned by admin")

	restricted := &rbac.Profile{
		UserID:      "editor-2",
		Role:        rbac.RoleEditor,
		Active:      true,
		Permissions: []rbac.Permission{rbac.PermViewContent, rbac.PermViewAllContent},
	}
	_, err := f.svc.Update(ctx, restricted, item.ID, content.Patch{Title: ptr("nope")}, "")
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestContributorEditsOnlyOwnDrafts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.create(t, contributor, "mine")

	_, err := f.svc.Update(ctx, other, item.ID, content.Patch{Title: ptr("theirs")}, "")
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.svc.Submit(ctx, contributor, item.ID)
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, contributor, item.ID, content.Patch{Title: ptr("in review")}, "")
	assert.Error(t, err)
}

func TestEditorialFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.create(t, contributor, "Lesson one")

	item, err := f.svc.Submit(ctx, contributor, item.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusReview, item.Status)
	assert.NotNil(t, item.SubmittedAt)

	_, err = f.svc.RequestChanges(ctx, editor, item.ID, "")
	assert.ErrorIs(t, err, workflow.ErrNoteRequired)

	item, err = f.svc.RequestChanges(ctx, editor, item.ID, "fix title")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusChangesRequested, item.Status)
	assert.Equal(t, "fix title", item.ReviewNotes)
	assert.Equal(t, editor.UserID, item.ReviewedBy)

	item, err = f.svc.Update(ctx, contributor, item.ID, content.Patch{Title: ptr("Lesson 1")}, "fixed title")
	require.NoError(t, err)

	item, err = f.svc.Submit(ctx, contributor, item.ID)
	require.NoError(t, err)

	f.now = f.now.Add(time.Hour)
	item, err = f.svc.Approve(ctx, admin, item.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusPublished, item.Status)
	require.NotNil(t, item.PublishedAt)
	assert.True(t, item.PublishedAt.Equal(f.now))
	assert.Empty(t, item.ReviewNotes)

	versions, err := f.svc.ListVersions(ctx, admin, item.ID)
	require.NoError(t, err)
	assert.Len(t, versions, 2)

	item, err = f.svc.Unpublish(ctx, admin, item.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusDraft, item.Status)
	assert.Nil(t, item.PublishedAt)
}

func TestIllegalTransitionLeavesStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.create(t, contributor, "draft")

	_, err := f.svc.Approve(ctx, admin, item.ID)
	require.ErrorIs(t, err, workflow.ErrInvalidTransition)

	_, err = f.svc.Submit(ctx, contributor, item.ID)
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, contributor, item.ID)
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)

	stored, err := f.svc.Load(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusReview, stored.Status)
}

func TestConcurrentSubmitHasOneWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.create(t, contributor, "race")

	const racers = 8
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Submit(ctx, contributor, item.ID)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, apperr.ErrPrecondition)
	}
	assert.Equal(t, 1, wins)
}

func TestRevertRestoresPreRevertValues(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.create(t, editor, "A")

	_, err := f.svc.Update(ctx, editor, item.ID, content.Patch{Title: ptr("B"), Description: ptr("second")}, "")
	require.NoError(t, err)
	current, err := f.svc.Update(ctx, editor, item.ID, content.Patch{Title: ptr("C")}, "")
	require.NoError(t, err)

	res, err := f.svc.Revert(ctx, editor, item.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, "A", res.Item.Title)
	assert.Equal(t, "", res.Item.Description)
	assert.Equal(t, 4, res.PreRevertVersion)
	assert.Equal(t, 5, res.Version)

	back, err := f.svc.Revert(ctx, editor, item.ID, res.PreRevertVersion)
	require.NoError(t, err)
	assert.Equal(t, current.Fields.Title, back.Item.Title)
	assert.Equal(t, current.Fields.Description, back.Item.Description)
	assert.Equal(t, 7, back.Version)
}

func TestRevertKeepsStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.create(t, editor, "A")
	_, err := f.svc.Update(ctx, editor, item.ID, content.Patch{Title: ptr("B")}, "")
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, admin, item.ID)
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, admin, item.ID)
	require.NoError(t, err)

	res, err := f.svc.Revert(ctx, editor, item.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusPublished, res.Item.Status)

	_, err = f.svc.Revert(ctx, contributor, item.ID, 1)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.svc.Revert(ctx, editor, item.ID, 99)
	assert.ErrorIs(t, err, content.ErrVersionNotFound)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.create(t, contributor, "to delete")

	assert.ErrorIs(t, f.svc.Delete(ctx, other, item.ID), apperr.ErrForbidden)
	require.NoError(t, f.svc.Delete(ctx, contributor, item.ID))

	_, err := f.svc.Load(ctx, item.ID)
	assert.ErrorIs(t, err, content.ErrContentNotFound)
	n, err := f.store.CountVersions(ctx, item.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestListScopesToCreator(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, contributor, "mine")
	f.create(t, other, "theirs")

	mine, err := f.svc.List(ctx, contributor, content.ListFilter{})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "mine", mine[0].Title)

	all, err := f.svc.List(ctx, editor, content.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.svc.List(ctx, client, content.ListFilter{})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestPasswordChangeIsAnEdit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.create(t, editor, "locked")

	updated, err := f.svc.Update(ctx, editor, item.ID, content.Patch{Password: ptr("sesame")}, "")
	require.NoError(t, err)
	assert.Equal(t, 2, updated.CurrentVersion)
	assert.True(t, updated.CheckPassword("sesame"))
	assert.False(t, updated.CheckPassword("open"))

	updated, err = f.svc.Update(ctx, editor, item.ID, content.Patch{Password: ptr("")}, "")
	require.NoError(t, err)
	assert.False(t, updated.HasPassword())
}
