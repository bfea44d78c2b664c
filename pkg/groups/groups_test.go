package groups_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/mediagate/pkg/apperr"
	"github.com/platinummonkey/mediagate/pkg/groups"
	"github.com/platinummonkey/mediagate/pkg/rbac"
	"github.com/platinummonkey/mediagate/pkg/storage/memory"
)

var (
	admin  = &rbac.Profile{UserID: "admin-1", Role: rbac.RoleAdmin, Active: true}
	editor = &rbac.Profile{UserID: "editor-1", Role: rbac.RoleEditor, Active: true}
)

func TestGroupMembership(t *testing.T) {
	ctx := context.Background()
	svc := groups.NewService(memory.New())

	g, err := svc.Create(ctx, admin, "  Tuesday class ", "")
	require.NoError(t, err)
	assert.Equal(t, "Tuesday class", g.Name)

	_, err = svc.AddMember(ctx, admin, g.ID, "u1")
	require.NoError(t, err)
	_, err = svc.AddMember(ctx, admin, g.ID, "u2")
	require.NoError(t, err)
	_, err = svc.AddMember(ctx, admin, g.ID, "u1")
	assert.ErrorIs(t, err, groups.ErrAlreadyMember)

	members, err := svc.Members(ctx, admin, g.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	ids, err := svc.GroupIDsForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{g.ID}, ids)

	require.NoError(t, svc.RemoveMember(ctx, admin, g.ID, "u1"))
	assert.ErrorIs(t, svc.RemoveMember(ctx, admin, g.ID, "u1"), groups.ErrNotMember)

	ids, err = svc.GroupIDsForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestGroupRules(t *testing.T) {
	ctx := context.Background()
	svc := groups.NewService(memory.New())

	_, err := svc.Create(ctx, nil, "x", "")
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
	_, err = svc.Create(ctx, editor, "x", "")
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = svc.Create(ctx, admin, "   ", "")
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	_, err = svc.Create(ctx, admin, "Staff", "")
	require.NoError(t, err)
	_, err = svc.Create(ctx, admin, "Staff", "again")
	assert.ErrorIs(t, err, groups.ErrDuplicateGroup)

	_, err = svc.AddMember(ctx, admin, "missing", "u1")
	assert.ErrorIs(t, err, groups.ErrGroupNotFound)
}

func TestDeleteGroupDropsMemberships(t *testing.T) {
	ctx := context.Background()
	svc := groups.NewService(memory.New())
	g, err := svc.Create(ctx, admin, "Temp", "")
	require.NoError(t, err)
	_, err = svc.AddMember(ctx, admin, g.ID, "u1")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, admin, g.ID))
	ids, err := svc.GroupIDsForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = svc.Get(ctx, g.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, admin, g.ID), groups.ErrGroupNotFound)
}
