package inventory

import (
	"context"

	"puzzle-ledger/feature/inventory/models"

	"go.uber.org/zap"
)

// Identity is the external identity the chat front end presents on every
// request; the service resolves it to a user row on each call.
type Identity struct {
	ExternalID  string `json:"external_id"`
	DisplayName string `json:"display_name"`
}

// TradeReceipt describes one recorded trade.
type TradeReceipt struct {
	Scene         string `json:"scene"`
	SlotIndex     int    `json:"slot_index"`
	Stars         int    `json:"stars"`
	OldDuplicates int    `json:"old_duplicates"`
	NewDuplicates int    `json:"new_duplicates"`
}

// Service implements the direct, merge-bypassing inventory operations:
// listings, manual corrections, and trade reports. These represent explicit
// user intent rather than scan evidence, so they go straight to the store.
type Service struct {
	store  *Store
	logger *zap.Logger
}

// NewService creates the inventory service.
func NewService(store *Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Inventory lists a user's pieces, optionally filtered by scene.
func (s *Service) Inventory(ctx context.Context, id Identity, scene string) ([]models.Piece, error) {
	user, err := s.store.GetOrCreateUser(ctx, id.ExternalID, id.DisplayName)
	if err != nil {
		return nil, err
	}
	return s.store.ListInventory(ctx, user.ID, scene)
}

// Piece returns one piece by scene and slot; ErrNotFound when absent.
func (s *Service) Piece(ctx context.Context, id Identity, scene string, slotIndex int) (*models.Piece, error) {
	user, err := s.store.GetOrCreateUser(ctx, id.ExternalID, id.DisplayName)
	if err != nil {
		return nil, err
	}

	piece, err := s.store.GetPiece(ctx, user.ID, scene, slotIndex)
	if err != nil {
		return nil, err
	}
	if piece == nil {
		return nil, ErrNotFound
	}
	return piece, nil
}

// OverrideDuplicates sets a piece's duplicate count to an explicit value.
// This is the manual-correction path; unlike merge it may decrease.
func (s *Service) OverrideDuplicates(ctx context.Context, id Identity, scene string, slotIndex, value int) (*models.Piece, error) {
	if err := ValidateDuplicates(value); err != nil {
		return nil, err
	}

	user, err := s.store.GetOrCreateUser(ctx, id.ExternalID, id.DisplayName)
	if err != nil {
		return nil, err
	}

	piece, err := s.store.GetPiece(ctx, user.ID, scene, slotIndex)
	if err != nil {
		return nil, err
	}
	if piece == nil {
		return nil, ErrNotFound
	}

	if err := s.store.SetDuplicates(ctx, user.ID, scene, slotIndex, value); err != nil {
		return nil, err
	}

	s.logger.Info("Manual duplicates override",
		zap.String("user", id.ExternalID),
		zap.String("scene", piece.Scene),
		zap.Int("slot", slotIndex),
		zap.Int("old", piece.Duplicates),
		zap.Int("new", value),
	)

	piece.Duplicates = value
	return piece, nil
}

// ReportTrade records one completed in-game trade by decrementing a piece's
// duplicate count. Fails with ErrNotFound when the piece is not owned and
// ErrNoDuplicates when the count is already zero.
func (s *Service) ReportTrade(ctx context.Context, id Identity, scene, slotRaw string) (*TradeReceipt, error) {
	slotIndex, ok := ParseSlot(slotRaw)
	if !ok {
		return nil, validationErrorf("slot_index", "cannot parse %q", slotRaw)
	}

	user, err := s.store.GetOrCreateUser(ctx, id.ExternalID, id.DisplayName)
	if err != nil {
		return nil, err
	}

	piece, err := s.store.GetPiece(ctx, user.ID, scene, slotIndex)
	if err != nil {
		return nil, err
	}
	if piece == nil {
		return nil, ErrNotFound
	}
	if piece.Duplicates <= 0 {
		return nil, ErrNoDuplicates
	}

	newCount := piece.Duplicates - 1
	if err := s.store.SetDuplicates(ctx, user.ID, scene, slotIndex, newCount); err != nil {
		return nil, err
	}

	s.logger.Info("Trade recorded",
		zap.String("user", id.ExternalID),
		zap.String("scene", piece.Scene),
		zap.Int("slot", slotIndex),
		zap.Int("old", piece.Duplicates),
		zap.Int("new", newCount),
	)

	return &TradeReceipt{
		Scene:         piece.Scene,
		SlotIndex:     slotIndex,
		Stars:         piece.Stars,
		OldDuplicates: piece.Duplicates,
		NewDuplicates: newCount,
	}, nil
}

// ClearReceipt summarizes one inventory reset.
type ClearReceipt struct {
	Scene            string `json:"scene,omitempty"`
	InventoryDeleted int64  `json:"inventory_deleted"`
	ScansDeleted     int64  `json:"scans_deleted"`
}

// Clear resets a user's inventory and scan history, optionally scoped to one
// scene. Irreversible; the front end is expected to confirm with the user
// before calling.
func (s *Service) Clear(ctx context.Context, id Identity, scene string) (*ClearReceipt, error) {
	if scene != "" {
		if err := ValidateScene(scene); err != nil {
			return nil, err
		}
		scene = NormalizeScene(scene)
	}

	user, err := s.store.GetOrCreateUser(ctx, id.ExternalID, id.DisplayName)
	if err != nil {
		return nil, err
	}

	piecesDeleted, scansDeleted, err := s.store.ClearUser(ctx, user.ID, scene)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Inventory cleared",
		zap.String("user", id.ExternalID),
		zap.String("scene", scene),
		zap.Int64("pieces_deleted", piecesDeleted),
		zap.Int64("scans_deleted", scansDeleted),
	)

	return &ClearReceipt{
		Scene:            scene,
		InventoryDeleted: piecesDeleted,
		ScansDeleted:     scansDeleted,
	}, nil
}

// Missing lists slots of a scene the user does not own yet.
func (s *Service) Missing(ctx context.Context, id Identity, scene string) ([]MissingPiece, error) {
	if err := ValidateScene(scene); err != nil {
		return nil, err
	}

	user, err := s.store.GetOrCreateUser(ctx, id.ExternalID, id.DisplayName)
	if err != nil {
		return nil, err
	}
	return s.store.FindMissing(ctx, user.ID, scene)
}

// OwnersWithSpare lists users holding tradeable copies of a piece.
func (s *Service) OwnersWithSpare(ctx context.Context, scene, slotRaw string) ([]SpareOwner, error) {
	if err := ValidateScene(scene); err != nil {
		return nil, err
	}
	slotIndex, ok := ParseSlot(slotRaw)
	if !ok {
		return nil, validationErrorf("slot_index", "cannot parse %q", slotRaw)
	}
	return s.store.FindOwnersWithSpare(ctx, scene, slotIndex)
}

// Scenes lists every known scene name.
func (s *Service) Scenes(ctx context.Context) ([]string, error) {
	return s.store.ListScenes(ctx)
}
