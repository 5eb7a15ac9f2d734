package scan_test

import (
	"context"
	"fmt"
	"testing"

	"puzzle-ledger/feature/inventory"
	"puzzle-ledger/feature/inventory/models"
	"puzzle-ledger/feature/scan"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLedger_RecordScanWithDeltas(t *testing.T) {
	db := setupTestDB(t)
	ledger := scan.NewLedger(db, zap.NewNop())
	ctx := context.Background()

	user := seedUser(t, db, "disc-1", "Alice")

	record, err := ledger.RecordScan(ctx, scan.RecordParams{
		UserID:        user.ID,
		ImageHash:     "abc123",
		ImageFilename: "screenshot.png",
		Scene:         "Ocean View",
		PiecesFound:   3,
		PiecesAdded:   2,
		PiecesUpdated: 1,
		Status:        models.ScanStatusSuccess,
	}, []inventory.Delta{
		{Scene: "Ocean View", SlotIndex: 1, AddedDuplicates: 2},
		{Scene: "Ocean View", SlotIndex: 2, AddedDuplicates: 3},
	})
	require.NoError(t, err)
	assert.NotZero(t, record.ID)
	assert.Nil(t, record.RolledBackAt)

	deltas, err := ledger.DeltasForScan(ctx, record.ID)
	require.NoError(t, err)
	require.Len(t, deltas, 2)
	assert.Equal(t, 1, deltas[0].SlotIndex)
	assert.Equal(t, 2, deltas[0].AddedDuplicates)
	assert.Equal(t, 2, deltas[1].SlotIndex)
	assert.Equal(t, 3, deltas[1].AddedDuplicates)
}

func TestLedger_GetScanIsUserScoped(t *testing.T) {
	db := setupTestDB(t)
	ledger := scan.NewLedger(db, zap.NewNop())
	ctx := context.Background()

	alice := seedUser(t, db, "disc-a", "Alice")
	bob := seedUser(t, db, "disc-b", "Bob")

	record, err := ledger.RecordScan(ctx, scan.RecordParams{
		UserID: alice.ID, ImageHash: "h1", Status: models.ScanStatusSuccess,
	}, nil)
	require.NoError(t, err)

	got, err := ledger.GetScan(ctx, alice.ID, record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.ID, got.ID)

	// Another user's scan is invisible, not forbidden.
	_, err = ledger.GetScan(ctx, bob.ID, record.ID)
	assert.ErrorIs(t, err, inventory.ErrNotFound)

	_, err = ledger.GetScan(ctx, alice.ID, 9999)
	assert.ErrorIs(t, err, inventory.ErrNotFound)
}

func TestLedger_GetLatestScanForScene(t *testing.T) {
	db := setupTestDB(t)
	ledger := scan.NewLedger(db, zap.NewNop())
	ctx := context.Background()

	user := seedUser(t, db, "disc-1", "Alice")

	first, err := ledger.RecordScan(ctx, scan.RecordParams{
		UserID: user.ID, ImageHash: "h1", Scene: "Ocean View", Status: models.ScanStatusSuccess,
	}, nil)
	require.NoError(t, err)

	second, err := ledger.RecordScan(ctx, scan.RecordParams{
		UserID: user.ID, ImageHash: "h2", Scene: "Ocean View", Status: models.ScanStatusPartial,
	}, nil)
	require.NoError(t, err)

	// Skipped and failed attempts never qualify as rollback targets.
	_, err = ledger.RecordScan(ctx, scan.RecordParams{
		UserID: user.ID, ImageHash: "h3", Scene: "Ocean View", Status: models.ScanStatusSkipped,
	}, nil)
	require.NoError(t, err)
	_, err = ledger.RecordScan(ctx, scan.RecordParams{
		UserID: user.ID, ImageHash: "h4", Scene: "Ocean View", Status: models.ScanStatusFailed,
	}, nil)
	require.NoError(t, err)

	id, err := ledger.GetLatestScanForScene(ctx, user.ID, "ocean view")
	require.NoError(t, err)
	assert.Equal(t, second.ID, id)

	// Voiding the latest exposes the one before it.
	require.NoError(t, ledger.MarkRolledBack(ctx, second.ID))
	id, err = ledger.GetLatestScanForScene(ctx, user.ID, "Ocean View")
	require.NoError(t, err)
	assert.Equal(t, first.ID, id)

	_, err = ledger.GetLatestScanForScene(ctx, user.ID, "Winter Cabin")
	assert.ErrorIs(t, err, inventory.ErrNotFound)
}

func TestLedger_MarkRolledBack(t *testing.T) {
	db := setupTestDB(t)
	ledger := scan.NewLedger(db, zap.NewNop())
	ctx := context.Background()

	user := seedUser(t, db, "disc-1", "Alice")
	record, err := ledger.RecordScan(ctx, scan.RecordParams{
		UserID: user.ID, ImageHash: "h1", Scene: "Ocean View", Status: models.ScanStatusSuccess,
	}, nil)
	require.NoError(t, err)

	require.NoError(t, ledger.MarkRolledBack(ctx, record.ID))

	// The record survives as a voided row, never deleted.
	got, err := ledger.GetScan(ctx, user.ID, record.ID)
	require.NoError(t, err)
	require.NotNil(t, got.RolledBackAt)
}

func TestLedger_ListScans(t *testing.T) {
	db := setupTestDB(t)
	ledger := scan.NewLedger(db, zap.NewNop())
	ctx := context.Background()

	user := seedUser(t, db, "disc-1", "Alice")
	for i := 0; i < 25; i++ {
		_, err := ledger.RecordScan(ctx, scan.RecordParams{
			UserID: user.ID, ImageHash: fmt.Sprintf("h%d", i), Status: models.ScanStatusSuccess,
		}, nil)
		require.NoError(t, err)
	}

	// Default limit when unset.
	records, err := ledger.ListScans(ctx, user.ID, 0)
	require.NoError(t, err)
	assert.Len(t, records, 20)

	// Newest first.
	records, err = ledger.ListScans(ctx, user.ID, 5)
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, "h24", records[0].ImageHash)

	// Oversized limits fall back to the default.
	records, err = ledger.ListScans(ctx, user.ID, 500)
	require.NoError(t, err)
	assert.Len(t, records, 20)
}
