package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"puzzle-ledger/feature/inventory/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store provides keyed access to users and inventory pieces over the shared
// database handle. All inventory mutation goes through UpsertPiece and
// SetDuplicates; both are single atomic statements at the store layer so
// concurrent merges commute instead of clobbering each other.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewStore creates an inventory store.
func NewStore(db *gorm.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// GetOrCreateUser resolves an external identity to a user row, creating it
// on first contact and refreshing the display name on every contact.
func (s *Store) GetOrCreateUser(ctx context.Context, externalID, displayName string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("external_id = ?", externalID).First(&user).Error

	switch {
	case err == nil:
		if user.DisplayName != displayName && displayName != "" {
			if err := s.db.WithContext(ctx).Model(&user).Update("display_name", displayName).Error; err != nil {
				return nil, fmt.Errorf("failed to refresh display name: %w", err)
			}
			user.DisplayName = displayName
		}
		return &user, nil

	case errors.Is(err, gorm.ErrRecordNotFound):
		user = models.User{ExternalID: externalID, DisplayName: displayName}
		if createErr := s.db.WithContext(ctx).Create(&user).Error; createErr != nil {
			// Another handler may have created the row between the lookup
			// and the insert; the unique index makes the retry safe.
			if retryErr := s.db.WithContext(ctx).Where("external_id = ?", externalID).First(&user).Error; retryErr != nil {
				return nil, fmt.Errorf("failed to create user %s: %w", externalID, createErr)
			}
			return &user, nil
		}
		s.logger.Info("Created new user",
			zap.String("external_id", externalID),
			zap.String("display_name", displayName),
		)
		return &user, nil

	default:
		return nil, fmt.Errorf("failed to look up user %s: %w", externalID, err)
	}
}

// GetPiece returns a piece by its natural key, or nil when absent.
func (s *Store) GetPiece(ctx context.Context, userID uint, scene string, slotIndex int) (*models.Piece, error) {
	scene = NormalizeScene(scene)

	var piece models.Piece
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND scene = ? AND slot_index = ?", userID, scene, slotIndex).
		First(&piece).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get piece %s/%d: %w", scene, slotIndex, err)
	}
	return &piece, nil
}

// UpsertPiece creates a piece, or raises its duplicate count to the supplied
// value when higher. Stars are written only on creation and never touched on
// conflict, and duplicates use GREATEST so replaying the same upsert, or
// racing another one, converges instead of double-counting.
func (s *Store) UpsertPiece(ctx context.Context, userID uint, scene string, slotIndex, stars, duplicates int) error {
	if err := ValidatePiece(scene, slotIndex, stars, duplicates); err != nil {
		return err
	}
	scene = NormalizeScene(scene)

	piece := models.Piece{
		UserID:     userID,
		Scene:      scene,
		SlotIndex:  slotIndex,
		Stars:      stars,
		Duplicates: duplicates,
	}

	// MySQL and sqlite spell the take-the-max assignment differently.
	dupExpr := gorm.Expr("GREATEST(`inventory`.`duplicates`, VALUES(`duplicates`))")
	if s.db.Dialector.Name() == "sqlite" {
		dupExpr = gorm.Expr("MAX(`inventory`.`duplicates`, `excluded`.`duplicates`)")
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "scene"}, {Name: "slot_index"}},
		DoUpdates: clause.Assignments(map[string]any{
			"duplicates": dupExpr,
			"updated_at": time.Now(),
		}),
	}).Create(&piece).Error
	if err != nil {
		return fmt.Errorf("failed to upsert piece %s/%d: %w", scene, slotIndex, err)
	}

	s.logger.Info("Upserted piece",
		zap.Uint("user_id", userID),
		zap.String("scene", scene),
		zap.Int("slot", slotIndex),
		zap.Int("stars", stars),
		zap.Int("duplicates", duplicates),
	)
	return nil
}

// SetDuplicates overwrites a piece's duplicate count unconditionally. This is
// the only sanctioned path for a decrease: trade reports, manual fixes, and
// rollback all land here.
func (s *Store) SetDuplicates(ctx context.Context, userID uint, scene string, slotIndex, value int) error {
	if err := ValidateDuplicates(value); err != nil {
		return err
	}
	scene = NormalizeScene(scene)

	err := s.db.WithContext(ctx).Model(&models.Piece{}).
		Where("user_id = ? AND scene = ? AND slot_index = ?", userID, scene, slotIndex).
		Updates(map[string]any{
			"duplicates": value,
			"updated_at": time.Now(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to set duplicates for %s/%d: %w", scene, slotIndex, err)
	}

	s.logger.Info("Set duplicates",
		zap.Uint("user_id", userID),
		zap.String("scene", scene),
		zap.Int("slot", slotIndex),
		zap.Int("duplicates", value),
	)
	return nil
}

// ListInventory returns a user's pieces ordered by scene then slot. An empty
// scene returns the full inventory.
func (s *Store) ListInventory(ctx context.Context, userID uint, scene string) ([]models.Piece, error) {
	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if scene != "" {
		query = query.Where("scene = ?", NormalizeScene(scene))
	}

	var pieces []models.Piece
	if err := query.Order("scene, slot_index").Find(&pieces).Error; err != nil {
		return nil, fmt.Errorf("failed to list inventory: %w", err)
	}
	return pieces, nil
}

// SpareOwner is one user holding a tradeable copy of a piece.
type SpareOwner struct {
	ExternalID  string `json:"external_id"`
	DisplayName string `json:"display_name"`
	Duplicates  int    `json:"duplicates"`
	Stars       int    `json:"stars"`
}

// FindOwnersWithSpare lists users holding spares of a piece, most duplicates
// first. Max-rarity pieces are non-tradeable and excluded.
func (s *Store) FindOwnersWithSpare(ctx context.Context, scene string, slotIndex int) ([]SpareOwner, error) {
	scene = NormalizeScene(scene)

	var owners []SpareOwner
	err := s.db.WithContext(ctx).
		Table("inventory").
		Select("users.external_id, users.display_name, inventory.duplicates, inventory.stars").
		Joins("JOIN users ON inventory.user_id = users.id").
		Where("inventory.scene = ? AND inventory.slot_index = ? AND inventory.duplicates > 0 AND inventory.stars < 5", scene, slotIndex).
		Order("inventory.duplicates DESC").
		Scan(&owners).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find owners for %s/%d: %w", scene, slotIndex, err)
	}
	return owners, nil
}

// MissingPiece is a slot known to exist in a scene that a user lacks.
type MissingPiece struct {
	SlotIndex int `json:"slot_index"`
	Stars     int `json:"stars"`
}

// FindMissing lists slots any user has observed in a scene that this user
// does not own, ordered by slot.
func (s *Store) FindMissing(ctx context.Context, userID uint, scene string) ([]MissingPiece, error) {
	scene = NormalizeScene(scene)

	var missing []MissingPiece
	err := s.db.WithContext(ctx).Raw(`
		SELECT DISTINCT i.slot_index, i.stars
		FROM inventory i
		WHERE i.scene = ?
		AND NOT EXISTS (
			SELECT 1 FROM inventory i2
			WHERE i2.user_id = ? AND i2.scene = i.scene AND i2.slot_index = i.slot_index
		)
		ORDER BY i.slot_index`, scene, userID).
		Scan(&missing).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find missing pieces in %s: %w", scene, err)
	}
	return missing, nil
}

// ClearUser deletes a user's pieces and scan history, optionally scoped to
// one scene. Purged scans take their hash-ledger entries with them so the
// same screenshots can be scanned again after a reset. Runs in a single
// transaction; returns the piece and scan row counts actually removed.
func (s *Store) ClearUser(ctx context.Context, userID uint, scene string) (piecesDeleted, scansDeleted int64, err error) {
	if scene != "" {
		scene = NormalizeScene(scene)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pieces := tx.Where("user_id = ?", userID)
		scans := tx.Where("user_id = ?", userID)
		if scene != "" {
			pieces = pieces.Where("scene = ?", scene)
			scans = scans.Where("scene = ?", scene)
		}

		var records []models.ScanRecord
		if err := scans.Find(&records).Error; err != nil {
			return err
		}

		scanIDs := make([]uint, 0, len(records))
		hashes := make([]string, 0, len(records))
		for _, r := range records {
			scanIDs = append(scanIDs, r.ID)
			if r.ImageHash != "" {
				hashes = append(hashes, r.ImageHash)
			}
		}

		if len(scanIDs) > 0 {
			if err := tx.Where("scan_id IN ?", scanIDs).Delete(&models.ScanDelta{}).Error; err != nil {
				return err
			}
			res := tx.Where("id IN ?", scanIDs).Delete(&models.ScanRecord{})
			if res.Error != nil {
				return res.Error
			}
			scansDeleted = res.RowsAffected
		}
		if len(hashes) > 0 {
			if err := tx.Where("hash IN ?", hashes).Delete(&models.ImageHash{}).Error; err != nil {
				return err
			}
		}

		res := pieces.Delete(&models.Piece{})
		if res.Error != nil {
			return res.Error
		}
		piecesDeleted = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to clear user %d: %w", userID, err)
	}

	s.logger.Info("Cleared user data",
		zap.Uint("user_id", userID),
		zap.String("scene", scene),
		zap.Int64("pieces_deleted", piecesDeleted),
		zap.Int64("scans_deleted", scansDeleted),
	)
	return piecesDeleted, scansDeleted, nil
}

// ListScenes returns every scene name present in any inventory, sorted. The
// front end uses it for scene autocompletion.
func (s *Store) ListScenes(ctx context.Context) ([]string, error) {
	var scenes []string
	err := s.db.WithContext(ctx).Model(&models.Piece{}).
		Distinct("scene").
		Order("scene").
		Pluck("scene", &scenes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list scenes: %w", err)
	}
	return scenes, nil
}
