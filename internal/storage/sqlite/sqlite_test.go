package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutoElevate_DefaultsFalse(t *testing.T) {
	db, err := New(":memory:")
	require.NoError(t, err)
	defer db.Close()

	enabled, err := db.GetAutoElevate(context.Background(), "never-seen")
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestAutoElevate_SetAndGet(t *testing.T) {
	db, err := New(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, db.SetAutoElevate(ctx, "dev-1", true))

	enabled, err := db.GetAutoElevate(ctx, "dev-1")
	require.NoError(t, err)
	assert.True(t, enabled)

	// Toggling overwrites in place.
	require.NoError(t, db.SetAutoElevate(ctx, "dev-1", false))
	enabled, err = db.GetAutoElevate(ctx, "dev-1")
	require.NoError(t, err)
	assert.False(t, enabled)

	// Other devices are unaffected.
	enabled, err = db.GetAutoElevate(ctx, "dev-2")
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestAutoElevate_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.db")
	ctx := context.Background()

	db, err := New(path)
	require.NoError(t, err)
	require.NoError(t, db.SetAutoElevate(ctx, "dev-1", true))
	require.NoError(t, db.Close())

	db, err = New(path)
	require.NoError(t, err)
	defer db.Close()

	enabled, err := db.GetAutoElevate(ctx, "dev-1")
	require.NoError(t, err)
	assert.True(t, enabled)
}
