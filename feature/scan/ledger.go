package scan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"puzzle-ledger/feature/inventory"
	"puzzle-ledger/feature/inventory/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RecordParams carries everything one scan attempt commits to the ledger.
type RecordParams struct {
	UserID         uint
	ImageHash      string
	ImageFilename  string
	Scene          string
	PiecesFound    int
	PiecesAdded    int
	PiecesUpdated  int
	ConflictsFound int
	Status         string
	ErrorMessage   string
}

// Ledger is the append-only record of scan attempts. Records are voided by
// rollback, never deleted, so history stays auditable; only an explicit
// inventory reset purges them.
type Ledger struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewLedger creates a scan ledger.
func NewLedger(db *gorm.DB, logger *zap.Logger) *Ledger {
	return &Ledger{db: db, logger: logger}
}

// RecordScan appends one scan record plus one delta row per piece the scan
// actually mutated. The deltas are the exact basis for rollback: they hold
// this scan's contribution, not the piece's full history.
func (l *Ledger) RecordScan(ctx context.Context, params RecordParams, deltas []inventory.Delta) (*models.ScanRecord, error) {
	record := models.ScanRecord{
		UserID:         params.UserID,
		ImageHash:      params.ImageHash,
		ImageFilename:  params.ImageFilename,
		Scene:          params.Scene,
		PiecesFound:    params.PiecesFound,
		PiecesAdded:    params.PiecesAdded,
		PiecesUpdated:  params.PiecesUpdated,
		ConflictsFound: params.ConflictsFound,
		Status:         params.Status,
		ErrorMessage:   params.ErrorMessage,
	}

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&record).Error; err != nil {
			return err
		}
		for _, d := range deltas {
			row := models.ScanDelta{
				ScanID:          record.ID,
				Scene:           d.Scene,
				SlotIndex:       d.SlotIndex,
				AddedDuplicates: d.AddedDuplicates,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record scan: %w", err)
	}

	l.logger.Info("Recorded scan",
		zap.Uint("scan_id", record.ID),
		zap.Uint("user_id", params.UserID),
		zap.String("status", params.Status),
		zap.Int("deltas", len(deltas)),
	)
	return &record, nil
}

// GetScan returns a scan record owned by the given user.
func (l *Ledger) GetScan(ctx context.Context, userID, scanID uint) (*models.ScanRecord, error) {
	var record models.ScanRecord
	err := l.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", scanID, userID).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, inventory.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan %d: %w", scanID, err)
	}
	return &record, nil
}

// GetLatestScanForScene returns the id of the most recent scan for a
// (user, scene) pair that is still reversible: not rolled back, not skipped,
// not failed. Used when the caller names a scene instead of a scan id.
func (l *Ledger) GetLatestScanForScene(ctx context.Context, userID uint, scene string) (uint, error) {
	scene = inventory.NormalizeScene(scene)

	var record models.ScanRecord
	err := l.db.WithContext(ctx).
		Where("user_id = ? AND scene = ? AND rolled_back_at IS NULL AND scan_status IN ?",
			userID, scene, []string{models.ScanStatusSuccess, models.ScanStatusPartial}).
		Order("id DESC").
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, inventory.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to find latest scan for %s: %w", scene, err)
	}
	return record.ID, nil
}

// DeltasForScan returns the per-piece contributions recorded for a scan.
func (l *Ledger) DeltasForScan(ctx context.Context, scanID uint) ([]models.ScanDelta, error) {
	var deltas []models.ScanDelta
	err := l.db.WithContext(ctx).
		Where("scan_id = ?", scanID).
		Order("id").
		Find(&deltas).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load deltas for scan %d: %w", scanID, err)
	}
	return deltas, nil
}

// MarkRolledBack logically voids a scan record. The row itself stays.
func (l *Ledger) MarkRolledBack(ctx context.Context, scanID uint) error {
	now := time.Now()
	err := l.db.WithContext(ctx).Model(&models.ScanRecord{}).
		Where("id = ?", scanID).
		Update("rolled_back_at", &now).Error
	if err != nil {
		return fmt.Errorf("failed to mark scan %d rolled back: %w", scanID, err)
	}
	return nil
}

// ListScans returns a user's scan history, newest first.
func (l *Ledger) ListScans(ctx context.Context, userID uint, limit int) ([]models.ScanRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var records []models.ScanRecord
	err := l.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}
	return records, nil
}
