package scan

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"puzzle-ledger/feature/inventory/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ComputeHash returns the content hash of raw image bytes. Dedup is exact:
// one flipped bit is a different image. The hash column is opaque to
// everything but equality, so a perceptual scheme could be swapped in here
// without touching the guard.
func ComputeHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Sighting is a prior record of an image hash, joined with the first-seen
// owner's name for user-facing messages.
type Sighting struct {
	Hash           string    `json:"hash"`
	FirstSeenBy    string    `json:"first_seen_by"`
	FirstSeenAt    time.Time `json:"first_seen_at"`
	TimesAttempted int       `json:"times_attempted"`
}

// Guard is the image-hash ledger. It must be consulted before the vision
// extractor runs; a hit short-circuits processing into a skipped scan.
type Guard struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewGuard creates an image-hash guard.
func NewGuard(db *gorm.DB, logger *zap.Logger) *Guard {
	return &Guard{db: db, logger: logger}
}

// Lookup returns the prior sighting of a hash, or nil when unseen.
func (g *Guard) Lookup(ctx context.Context, hash string) (*Sighting, error) {
	var sighting Sighting
	err := g.db.WithContext(ctx).
		Table("image_hashes").
		Select("image_hashes.hash, users.display_name AS first_seen_by, image_hashes.first_seen_at, image_hashes.times_attempted").
		Joins("JOIN users ON image_hashes.first_seen_by = users.id").
		Where("image_hashes.hash = ?", hash).
		Take(&sighting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up image hash: %w", err)
	}
	return &sighting, nil
}

// Record notes a sighting of a hash: the first inserts the record with the
// submitting user as the permanent first-seen owner, every later one only
// bumps the attempt counter. The owner is never reassigned.
func (g *Guard) Record(ctx context.Context, userID uint, hash string) error {
	record := models.ImageHash{
		Hash:           hash,
		FirstSeenBy:    userID,
		TimesAttempted: 1,
	}

	err := g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "hash"}},
		DoUpdates: clause.Assignments(map[string]any{
			"times_attempted": gorm.Expr("`image_hashes`.`times_attempted` + 1"),
		}),
	}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("failed to record image hash: %w", err)
	}
	return nil
}

// Clear forgets a hash so the identical image may legitimately be
// reprocessed after a rollback.
func (g *Guard) Clear(ctx context.Context, hash string) error {
	err := g.db.WithContext(ctx).Where("hash = ?", hash).Delete(&models.ImageHash{}).Error
	if err != nil {
		return fmt.Errorf("failed to clear image hash: %w", err)
	}

	g.logger.Info("Cleared image hash", zap.String("hash", hash))
	return nil
}
