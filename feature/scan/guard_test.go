package scan_test

import (
	"context"
	"testing"

	"puzzle-ledger/core/database"
	"puzzle-ledger/feature/inventory"
	"puzzle-ledger/feature/inventory/models"
	"puzzle-ledger/feature/scan"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.Connect(database.Config{Driver: "sqlite", Name: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, externalID, displayName string) *models.User {
	t.Helper()

	store := inventory.NewStore(db, zap.NewNop())
	user, err := store.GetOrCreateUser(context.Background(), externalID, displayName)
	require.NoError(t, err)
	return user
}

func TestComputeHash(t *testing.T) {
	a := scan.ComputeHash([]byte("image-bytes"))
	b := scan.ComputeHash([]byte("image-bytes"))
	c := scan.ComputeHash([]byte("image-bytes!"))

	assert.Len(t, a, 64)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestGuard_LookupUnseen(t *testing.T) {
	guard := scan.NewGuard(setupTestDB(t), zap.NewNop())

	sighting, err := guard.Lookup(context.Background(), scan.ComputeHash([]byte("never seen")))
	require.NoError(t, err)
	assert.Nil(t, sighting)
}

func TestGuard_RecordAndLookup(t *testing.T) {
	db := setupTestDB(t)
	guard := scan.NewGuard(db, zap.NewNop())
	ctx := context.Background()

	alice := seedUser(t, db, "disc-a", "Alice")
	bob := seedUser(t, db, "disc-b", "Bob")
	hash := scan.ComputeHash([]byte("screenshot"))

	require.NoError(t, guard.Record(ctx, alice.ID, hash))

	sighting, err := guard.Lookup(ctx, hash)
	require.NoError(t, err)
	require.NotNil(t, sighting)
	assert.Equal(t, hash, sighting.Hash)
	assert.Equal(t, "Alice", sighting.FirstSeenBy)
	assert.Equal(t, 1, sighting.TimesAttempted)
	assert.False(t, sighting.FirstSeenAt.IsZero())

	// A repeat, even by another user, only bumps the attempt counter; the
	// first-seen owner is permanent.
	require.NoError(t, guard.Record(ctx, bob.ID, hash))

	sighting, err = guard.Lookup(ctx, hash)
	require.NoError(t, err)
	require.NotNil(t, sighting)
	assert.Equal(t, "Alice", sighting.FirstSeenBy)
	assert.Equal(t, 2, sighting.TimesAttempted)
}

func TestGuard_Clear(t *testing.T) {
	db := setupTestDB(t)
	guard := scan.NewGuard(db, zap.NewNop())
	ctx := context.Background()

	alice := seedUser(t, db, "disc-a", "Alice")
	hash := scan.ComputeHash([]byte("screenshot"))
	require.NoError(t, guard.Record(ctx, alice.ID, hash))

	require.NoError(t, guard.Clear(ctx, hash))

	sighting, err := guard.Lookup(ctx, hash)
	require.NoError(t, err)
	assert.Nil(t, sighting)

	// Clearing an unknown hash is a no-op, not an error.
	require.NoError(t, guard.Clear(ctx, hash))
}
