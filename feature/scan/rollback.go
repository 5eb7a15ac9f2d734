package scan

import (
	"context"
	"fmt"

	"puzzle-ledger/feature/inventory"
	"puzzle-ledger/feature/inventory/models"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"

	"puzzle-ledger/core/storage"
)

// RollbackError reports a rollback that stopped partway. Adjustments made
// before the failure stay in place; rollback is best-effort per piece, not
// cross-piece transactional.
type RollbackError struct {
	ScanID   uint
	Adjusted int
	Err      error
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("rollback of scan %d failed after %d adjustments: %v", e.ScanID, e.Adjusted, e.Err)
}

func (e *RollbackError) Unwrap() error { return e.Err }

// scanLedger is the slice of the ledger the rollback engine needs.
type scanLedger interface {
	GetScan(ctx context.Context, userID, scanID uint) (*models.ScanRecord, error)
	DeltasForScan(ctx context.Context, scanID uint) ([]models.ScanDelta, error)
	MarkRolledBack(ctx context.Context, scanID uint) error
}

// hashGuard is the slice of the guard the rollback engine needs.
type hashGuard interface {
	Clear(ctx context.Context, hash string) error
}

// Rollbacker reverses exactly the inventory deltas one scan contributed.
type Rollbacker struct {
	ledger  scanLedger
	pieces  inventory.PieceStore
	guard   hashGuard
	archive storage.Client
	bucket  string
	logger  *zap.Logger
}

// NewRollbacker creates a rollback engine.
func NewRollbacker(ledger scanLedger, pieces inventory.PieceStore, guard hashGuard, archive storage.Client, bucket string, logger *zap.Logger) *Rollbacker {
	return &Rollbacker{
		ledger:  ledger,
		pieces:  pieces,
		guard:   guard,
		archive: archive,
		bucket:  bucket,
		logger:  logger,
	}
}

// Rollback undoes one scan for one user and returns the number of adjusted
// pieces. Each delta is reversed as max(0, current - added); a piece the scan
// purely created is reduced to zero duplicates, never deleted, so its slot
// and rarity stay known. The scan's image hash is cleared so the identical
// screenshot may be rescanned, and the record is voided, not removed.
func (r *Rollbacker) Rollback(ctx context.Context, userID, scanID uint) (int, error) {
	record, err := r.ledger.GetScan(ctx, userID, scanID)
	if err != nil {
		return 0, err
	}
	if record.RolledBackAt != nil {
		return 0, inventory.ErrNotFound
	}

	deltas, err := r.ledger.DeltasForScan(ctx, scanID)
	if err != nil {
		return 0, &RollbackError{ScanID: scanID, Err: err}
	}

	adjusted := 0
	for _, d := range deltas {
		piece, err := r.pieces.GetPiece(ctx, userID, d.Scene, d.SlotIndex)
		if err != nil {
			return adjusted, &RollbackError{ScanID: scanID, Adjusted: adjusted, Err: err}
		}
		if piece == nil {
			// Piece removed by a manual fix since the scan; nothing to reverse.
			r.logger.Warn("Rollback target piece missing",
				zap.Uint("scan_id", scanID),
				zap.String("scene", d.Scene),
				zap.Int("slot", d.SlotIndex),
			)
			continue
		}

		newValue := piece.Duplicates - d.AddedDuplicates
		if newValue < 0 {
			newValue = 0
		}
		if err := r.pieces.SetDuplicates(ctx, userID, d.Scene, d.SlotIndex, newValue); err != nil {
			return adjusted, &RollbackError{ScanID: scanID, Adjusted: adjusted, Err: err}
		}
		adjusted++
	}

	if err := r.guard.Clear(ctx, record.ImageHash); err != nil {
		return adjusted, &RollbackError{ScanID: scanID, Adjusted: adjusted, Err: err}
	}

	if err := r.ledger.MarkRolledBack(ctx, scanID); err != nil {
		return adjusted, &RollbackError{ScanID: scanID, Adjusted: adjusted, Err: err}
	}

	// The archived screenshot is best-effort cleanup; a leftover object is
	// harmless and the rollback already succeeded.
	if r.archive != nil {
		objectName := archiveObjectName(record.ImageHash)
		if err := r.archive.RemoveObject(ctx, r.bucket, objectName, minio.RemoveObjectOptions{}); err != nil {
			r.logger.Warn("Failed to remove archived screenshot",
				zap.String("object", objectName),
				zap.Error(err),
			)
		}
	}

	r.logger.Info("Rolled back scan",
		zap.Uint("scan_id", scanID),
		zap.Uint("user_id", userID),
		zap.Int("adjusted", adjusted),
	)
	return adjusted, nil
}
