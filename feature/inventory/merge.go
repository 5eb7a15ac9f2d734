package inventory

import (
	"context"
	"fmt"
	"strings"

	"puzzle-ledger/feature/inventory/models"

	"go.uber.org/zap"
)

// Observation is one scanned piece as reported by the vision extractor.
type Observation struct {
	Scene      string `json:"scene"`
	SlotIndex  int    `json:"slot_index"`
	Stars      int    `json:"stars"`
	Duplicates int    `json:"duplicates"`
}

// AddedPiece is a merge outcome for a piece not previously in inventory.
type AddedPiece struct {
	Scene      string `json:"scene"`
	SlotIndex  int    `json:"slot_index"`
	Stars      int    `json:"stars"`
	Duplicates int    `json:"duplicates"`
}

// UpdatedPiece is a merge outcome raising a stored duplicate count.
type UpdatedPiece struct {
	Scene         string `json:"scene"`
	SlotIndex     int    `json:"slot_index"`
	Stars         int    `json:"stars"`
	OldDuplicates int    `json:"old_duplicates"`
	NewDuplicates int    `json:"new_duplicates"`
}

// Conflict is a merge outcome where the scan shows fewer duplicates than
// stored. Conflicts are never auto-applied in any mode; resolution belongs
// to the caller.
type Conflict struct {
	Scene             string `json:"scene"`
	SlotIndex         int    `json:"slot_index"`
	Stars             int    `json:"stars"`
	StoredDuplicates  int    `json:"stored_duplicates"`
	ScannedDuplicates int    `json:"scanned_duplicates"`
	Message           string `json:"message"`
}

// UnchangedPiece is a merge outcome matching stored state exactly.
type UnchangedPiece struct {
	Scene      string `json:"scene"`
	SlotIndex  int    `json:"slot_index"`
	Stars      int    `json:"stars"`
	Duplicates int    `json:"duplicates"`
}

// Delta is the duplicates contribution one applied change makes to one
// piece, recorded in the scan ledger as the exact basis for rollback.
type Delta struct {
	Scene           string `json:"scene"`
	SlotIndex       int    `json:"slot_index"`
	AddedDuplicates int    `json:"added_duplicates"`
}

// MergeResult categorizes a batch of observations against stored inventory.
type MergeResult struct {
	Added     []AddedPiece     `json:"added"`
	Updated   []UpdatedPiece   `json:"updated"`
	Conflicts []Conflict       `json:"conflicts"`
	Unchanged []UnchangedPiece `json:"unchanged"`
	Warnings  []string         `json:"warnings,omitempty"`
}

// HasConflicts reports whether any piece needs caller resolution.
func (r *MergeResult) HasConflicts() bool {
	return len(r.Conflicts) > 0
}

// TotalChanges is the count of pieces an apply would write.
func (r *MergeResult) TotalChanges() int {
	return len(r.Added) + len(r.Updated)
}

// Summary renders a human-readable digest for the front end.
func (r *MergeResult) Summary() string {
	var parts []string

	if len(r.Added) > 0 {
		parts = append(parts, fmt.Sprintf("%d new pieces added", len(r.Added)))
	}
	if len(r.Updated) > 0 {
		parts = append(parts, fmt.Sprintf("%d pieces updated", len(r.Updated)))
	}
	if len(r.Unchanged) > 0 {
		parts = append(parts, fmt.Sprintf("%d pieces unchanged", len(r.Unchanged)))
	}
	if len(r.Conflicts) > 0 {
		parts = append(parts, fmt.Sprintf("%d conflicts need review", len(r.Conflicts)))
	}

	if len(parts) == 0 {
		return "No changes detected"
	}
	return strings.Join(parts, ", ")
}

// Deltas returns the per-piece contributions an apply of this result makes,
// in result order. Conflicting and unchanged pieces contribute nothing.
func (r *MergeResult) Deltas() []Delta {
	deltas := make([]Delta, 0, r.TotalChanges())
	for _, p := range r.Added {
		deltas = append(deltas, Delta{Scene: p.Scene, SlotIndex: p.SlotIndex, AddedDuplicates: p.Duplicates})
	}
	for _, p := range r.Updated {
		deltas = append(deltas, Delta{Scene: p.Scene, SlotIndex: p.SlotIndex, AddedDuplicates: p.NewDuplicates - p.OldDuplicates})
	}
	return deltas
}

// PieceStore is the slice of the inventory store the merge engine needs.
type PieceStore interface {
	GetPiece(ctx context.Context, userID uint, scene string, slotIndex int) (*models.Piece, error)
	UpsertPiece(ctx context.Context, userID uint, scene string, slotIndex, stars, duplicates int) error
	SetDuplicates(ctx context.Context, userID uint, scene string, slotIndex, value int) error
}

// Engine reconciles scanned batches against stored inventory.
//
// Merge rules:
//  1. Stars are immutable once set.
//  2. Duplicates only increase automatically.
//  3. Scanned duplicates below stored is a conflict, left to the caller.
//  4. Direct user commands bypass the engine entirely.
type Engine struct {
	store  PieceStore
	logger *zap.Logger
}

// NewEngine creates a merge engine over the given store.
func NewEngine(store PieceStore, logger *zap.Logger) *Engine {
	return &Engine{store: store, logger: logger}
}

type batchKey struct {
	scene string
	slot  int
}

// Merge classifies a batch against stored inventory. With apply=false it is
// a pure dry run; with apply=true, non-conflicting changes are written as
// they are classified. Entries failing validation are dropped with a warning
// and the rest of the batch continues.
func (e *Engine) Merge(ctx context.Context, userID uint, batch []Observation, apply bool) (*MergeResult, error) {
	// Intra-batch dedup: when the same slot appears in several images of one
	// upload, the last detection in input order wins. Key order follows first
	// appearance so results are deterministic.
	deduped := make(map[batchKey]Observation, len(batch))
	order := make([]batchKey, 0, len(batch))

	for _, obs := range batch {
		obs.Scene = NormalizeScene(obs.Scene)
		key := batchKey{scene: obs.Scene, slot: obs.SlotIndex}
		if _, seen := deduped[key]; !seen {
			order = append(order, key)
		}
		deduped[key] = obs
	}

	result := &MergeResult{}

	for _, key := range order {
		obs := deduped[key]

		if err := ValidatePiece(obs.Scene, obs.SlotIndex, obs.Stars, obs.Duplicates); err != nil {
			e.logger.Warn("Dropping invalid observation", zap.Error(err),
				zap.String("scene", obs.Scene), zap.Int("slot", obs.SlotIndex))
			result.Warnings = append(result.Warnings, err.Error())
			continue
		}

		existing, err := e.store.GetPiece(ctx, userID, obs.Scene, obs.SlotIndex)
		if err != nil {
			return nil, err
		}

		if existing == nil {
			if apply {
				if err := e.store.UpsertPiece(ctx, userID, obs.Scene, obs.SlotIndex, obs.Stars, obs.Duplicates); err != nil {
					return nil, err
				}
			}
			result.Added = append(result.Added, AddedPiece(obs))
			continue
		}

		// Stars never mutate; a mismatch is worth a warning, nothing more.
		if obs.Stars != existing.Stars {
			e.logger.Warn("Star mismatch, keeping stored value",
				zap.String("scene", obs.Scene),
				zap.Int("slot", obs.SlotIndex),
				zap.Int("stored", existing.Stars),
				zap.Int("scanned", obs.Stars),
			)
		}

		switch {
		case obs.Duplicates > existing.Duplicates:
			if apply {
				if err := e.store.SetDuplicates(ctx, userID, obs.Scene, obs.SlotIndex, obs.Duplicates); err != nil {
					return nil, err
				}
			}
			result.Updated = append(result.Updated, UpdatedPiece{
				Scene:         obs.Scene,
				SlotIndex:     obs.SlotIndex,
				Stars:         existing.Stars,
				OldDuplicates: existing.Duplicates,
				NewDuplicates: obs.Duplicates,
			})

		case obs.Duplicates < existing.Duplicates:
			result.Conflicts = append(result.Conflicts, Conflict{
				Scene:             obs.Scene,
				SlotIndex:         obs.SlotIndex,
				Stars:             existing.Stars,
				StoredDuplicates:  existing.Duplicates,
				ScannedDuplicates: obs.Duplicates,
				Message: fmt.Sprintf(
					"%s slot %d: stored %d duplicates, scanned %d. "+
						"This could mean an unreported trade, an old or incomplete image, or a detection error.",
					obs.Scene, obs.SlotIndex, existing.Duplicates, obs.Duplicates),
			})
			e.logger.Warn("Merge conflict",
				zap.String("scene", obs.Scene),
				zap.Int("slot", obs.SlotIndex),
				zap.Int("stored", existing.Duplicates),
				zap.Int("scanned", obs.Duplicates),
			)

		default:
			result.Unchanged = append(result.Unchanged, UnchangedPiece{
				Scene:      obs.Scene,
				SlotIndex:  obs.SlotIndex,
				Stars:      existing.Stars,
				Duplicates: existing.Duplicates,
			})
		}
	}

	return result, nil
}

// Apply writes a previously returned merge result: additions through the
// max-upsert, updates as absolute values. Replaying an already-applied
// result converges to the same state; conflicts are never written.
func (e *Engine) Apply(ctx context.Context, userID uint, result *MergeResult) error {
	for _, p := range result.Added {
		if err := e.store.UpsertPiece(ctx, userID, p.Scene, p.SlotIndex, p.Stars, p.Duplicates); err != nil {
			return err
		}
	}
	for _, p := range result.Updated {
		if err := e.store.SetDuplicates(ctx, userID, p.Scene, p.SlotIndex, p.NewDuplicates); err != nil {
			return err
		}
	}

	e.logger.Info("Applied merge result",
		zap.Uint("user_id", userID),
		zap.Int("added", len(result.Added)),
		zap.Int("updated", len(result.Updated)),
	)
	return nil
}
