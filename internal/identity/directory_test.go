package identity

import (
	"context"
	"testing"

	"fitbuddy/backend/internal/apperror"
	"fitbuddy/backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectory_Upsert(t *testing.T) {
	db := testutil.NewDB(t)
	dir := NewDirectory(db)
	ctx := context.Background()

	created, err := dir.Upsert(ctx, 42, Profile{DisplayName: "  Runner Rae ", AvatarURL: "https://cdn.test/rae.png"})
	require.NoError(t, err)
	assert.Equal(t, uint(42), created.ID)
	assert.Equal(t, "Runner Rae", created.DisplayName)

	updated, err := dir.Upsert(ctx, 42, Profile{DisplayName: "Rae"})
	require.NoError(t, err)
	assert.Equal(t, "Rae", updated.DisplayName)
	assert.Empty(t, updated.AvatarURL)

	_, err = dir.Upsert(ctx, 42, Profile{DisplayName: "   "})
	assert.True(t, apperror.Is(err, apperror.ErrEmptyDisplayName))
}

func TestDirectory_GetAndLookup(t *testing.T) {
	db := testutil.NewDB(t)
	dir := NewDirectory(db)
	ctx := context.Background()

	a := testutil.CreateUser(t, db, "alice")
	b := testutil.CreateUser(t, db, "bob")

	got, err := dir.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.DisplayName)

	_, err = dir.Get(ctx, 999)
	assert.True(t, apperror.Is(err, apperror.ErrUserNotFound))

	users, err := dir.Lookup(ctx, []uint{a.ID, b.ID, 999})
	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Equal(t, "bob", users[b.ID].DisplayName)

	empty, err := dir.Lookup(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRequireAll(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	a := testutil.CreateUser(t, db, "alice")
	b := testutil.CreateUser(t, db, "bob")

	assert.NoError(t, RequireAll(ctx, db, nil))
	assert.NoError(t, RequireAll(ctx, db, []uint{a.ID, b.ID}))
	assert.True(t, apperror.Is(RequireAll(ctx, db, []uint{a.ID, 999}), apperror.ErrUserNotFound))
}
