package scan

import (
	"bytes"
	"context"
	"fmt"

	"puzzle-ledger/core/storage"
	"puzzle-ledger/core/vision"
	"puzzle-ledger/feature/inventory"
	"puzzle-ledger/feature/inventory/models"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// Users resolves external identities to user rows.
type Users interface {
	GetOrCreateUser(ctx context.Context, externalID, displayName string) (*models.User, error)
}

// Merger reconciles a batch of observations against stored inventory.
type Merger interface {
	Merge(ctx context.Context, userID uint, batch []inventory.Observation, apply bool) (*inventory.MergeResult, error)
}

// HashGuard is the image-hash ledger consulted before any extraction.
type HashGuard interface {
	Lookup(ctx context.Context, hash string) (*Sighting, error)
	Record(ctx context.Context, userID uint, hash string) error
	Clear(ctx context.Context, hash string) error
}

// ScanLedger records scan attempts and answers history queries.
type ScanLedger interface {
	RecordScan(ctx context.Context, params RecordParams, deltas []inventory.Delta) (*models.ScanRecord, error)
	GetLatestScanForScene(ctx context.Context, userID uint, scene string) (uint, error)
	ListScans(ctx context.Context, userID uint, limit int) ([]models.ScanRecord, error)
}

// RollbackEngine reverses a committed scan.
type RollbackEngine interface {
	Rollback(ctx context.Context, userID, scanID uint) (int, error)
}

// Outcome is the result of one scan attempt, committed or previewed.
type Outcome struct {
	Status    string                 `json:"status"`
	ImageHash string                 `json:"image_hash"`
	Scene     string                 `json:"scene,omitempty"`
	Summary   string                 `json:"summary"`
	Applied   bool                   `json:"applied"`
	Merge     *inventory.MergeResult `json:"merge,omitempty"`
	Duplicate *Sighting              `json:"duplicate,omitempty"`
	Scan      *models.ScanRecord     `json:"scan,omitempty"`
}

// ConfirmRequest replays a previously previewed extraction so its changes
// can be committed without re-running the vision service.
type ConfirmRequest struct {
	ImageHash     string                  `json:"image_hash"`
	ImageFilename string                  `json:"image_filename"`
	Scene         string                  `json:"scene"`
	Pieces        []vision.ExtractedPiece `json:"pieces"`
}

// RollbackReceipt reports a completed rollback.
type RollbackReceipt struct {
	ScanID   uint `json:"scan_id"`
	Adjusted int  `json:"adjusted"`
}

// Service orchestrates the scan pipeline: hash, guard, extract, merge,
// record, archive.
type Service struct {
	users     Users
	extractor vision.Extractor
	merger    Merger
	guard     HashGuard
	ledger    ScanLedger
	rollback  RollbackEngine
	archive   storage.Client
	bucket    string
	logger    *zap.Logger
}

// NewService creates the scan service.
func NewService(users Users, extractor vision.Extractor, merger Merger, guard HashGuard, ledger ScanLedger, rollback RollbackEngine, archive storage.Client, bucket string, logger *zap.Logger) *Service {
	return &Service{
		users:     users,
		extractor: extractor,
		merger:    merger,
		guard:     guard,
		ledger:    ledger,
		rollback:  rollback,
		archive:   archive,
		bucket:    bucket,
		logger:    logger,
	}
}

func archiveObjectName(hash string) string {
	return "scans/" + hash
}

// ProcessImage runs a screenshot through the full pipeline. With applyNow
// false it is a pure preview: the merge is classified but nothing is
// persisted, not even the image hash, so the identical image can be
// resubmitted for confirmation. With applyNow true the merge is applied and
// the attempt is committed to the ledger whatever its outcome.
func (s *Service) ProcessImage(ctx context.Context, id inventory.Identity, filename string, data []byte, applyNow bool) (*Outcome, error) {
	user, err := s.users.GetOrCreateUser(ctx, id.ExternalID, id.DisplayName)
	if err != nil {
		return nil, err
	}

	hash := ComputeHash(data)
	log := s.logger.With(
		zap.Uint("user_id", user.ID),
		zap.String("image_hash", hash),
	)

	sighting, err := s.guard.Lookup(ctx, hash)
	if err != nil {
		return nil, err
	}
	if sighting != nil {
		return s.skip(ctx, user, hash, filename, sighting, applyNow, log)
	}

	extraction, extractErr := s.extractor.Extract(ctx, hash, data)
	if extractErr != nil || !extraction.Success {
		reason := "extraction failed"
		if extractErr != nil {
			reason = extractErr.Error()
		} else if extraction.Error != "" {
			reason = extraction.Error
		}
		return s.failScan(ctx, user, hash, filename, reason, applyNow, log)
	}

	scene := inventory.NormalizeScene(extraction.Scene)
	if err := inventory.ValidateScene(scene); err != nil {
		return s.failScan(ctx, user, hash, filename, fmt.Sprintf("unusable scene name: %v", err), applyNow, log)
	}

	batch := make([]inventory.Observation, 0, len(extraction.Pieces))
	for _, p := range extraction.Pieces {
		batch = append(batch, inventory.Observation{
			Scene:      scene,
			SlotIndex:  p.SlotIndex,
			Stars:      p.Stars,
			Duplicates: p.Duplicates,
		})
	}

	result, err := s.merger.Merge(ctx, user.ID, batch, applyNow)
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{
		Status:    models.ScanStatusSuccess,
		ImageHash: hash,
		Scene:     scene,
		Summary:   result.Summary(),
		Applied:   applyNow,
		Merge:     result,
	}
	if result.HasConflicts() {
		outcome.Status = models.ScanStatusPartial
	}
	if !applyNow {
		log.Info("Scan previewed", zap.String("scene", scene))
		return outcome, nil
	}

	record, err := s.commit(ctx, user, hash, filename, scene, result)
	if err != nil {
		return nil, err
	}
	outcome.Scan = record

	s.archiveImage(ctx, hash, data, log)

	log.Info("Scan applied",
		zap.String("scene", scene),
		zap.Int("added", len(result.Added)),
		zap.Int("updated", len(result.Updated)),
		zap.Int("conflicts", len(result.Conflicts)),
	)
	return outcome, nil
}

// ConfirmScan commits a previously previewed extraction. The guard is
// rechecked because another submission may have landed between the preview
// and the confirmation.
func (s *Service) ConfirmScan(ctx context.Context, id inventory.Identity, req ConfirmRequest) (*Outcome, error) {
	if req.ImageHash == "" {
		return nil, &inventory.ValidationError{Field: "image_hash", Reason: "is required"}
	}

	user, err := s.users.GetOrCreateUser(ctx, id.ExternalID, id.DisplayName)
	if err != nil {
		return nil, err
	}
	log := s.logger.With(
		zap.Uint("user_id", user.ID),
		zap.String("image_hash", req.ImageHash),
	)

	sighting, err := s.guard.Lookup(ctx, req.ImageHash)
	if err != nil {
		return nil, err
	}
	if sighting != nil {
		return s.skip(ctx, user, req.ImageHash, req.ImageFilename, sighting, true, log)
	}

	scene := inventory.NormalizeScene(req.Scene)
	if err := inventory.ValidateScene(scene); err != nil {
		return nil, err
	}

	batch := make([]inventory.Observation, 0, len(req.Pieces))
	for _, p := range req.Pieces {
		batch = append(batch, inventory.Observation{
			Scene:      scene,
			SlotIndex:  p.SlotIndex,
			Stars:      p.Stars,
			Duplicates: p.Duplicates,
		})
	}

	result, err := s.merger.Merge(ctx, user.ID, batch, true)
	if err != nil {
		return nil, err
	}

	record, err := s.commit(ctx, user, req.ImageHash, req.ImageFilename, scene, result)
	if err != nil {
		return nil, err
	}

	status := models.ScanStatusSuccess
	if result.HasConflicts() {
		status = models.ScanStatusPartial
	}
	log.Info("Scan confirmed", zap.String("scene", scene))
	return &Outcome{
		Status:    status,
		ImageHash: req.ImageHash,
		Scene:     scene,
		Summary:   result.Summary(),
		Applied:   true,
		Merge:     result,
		Scan:      record,
	}, nil
}

// RollbackScan reverses a scan named either by id or by scene; a scene
// resolves to that user's most recent committed scan of it.
func (s *Service) RollbackScan(ctx context.Context, id inventory.Identity, scanID uint, scene string) (*RollbackReceipt, error) {
	user, err := s.users.GetOrCreateUser(ctx, id.ExternalID, id.DisplayName)
	if err != nil {
		return nil, err
	}

	if scanID == 0 {
		if scene == "" {
			return nil, &inventory.ValidationError{Field: "scan_id", Reason: "scan_id or scene is required"}
		}
		scanID, err = s.ledger.GetLatestScanForScene(ctx, user.ID, inventory.NormalizeScene(scene))
		if err != nil {
			return nil, err
		}
	}

	adjusted, err := s.rollback.Rollback(ctx, user.ID, scanID)
	if err != nil {
		return nil, err
	}
	return &RollbackReceipt{ScanID: scanID, Adjusted: adjusted}, nil
}

// History returns the user's most recent scan attempts.
func (s *Service) History(ctx context.Context, id inventory.Identity, limit int) ([]models.ScanRecord, error) {
	user, err := s.users.GetOrCreateUser(ctx, id.ExternalID, id.DisplayName)
	if err != nil {
		return nil, err
	}
	return s.ledger.ListScans(ctx, user.ID, limit)
}

// skip handles a guard hit. When committing, the attempt is still recorded
// so the history shows the duplicate submission, and the sighting's attempt
// counter grows.
func (s *Service) skip(ctx context.Context, user *models.User, hash, filename string, sighting *Sighting, commit bool, log *zap.Logger) (*Outcome, error) {
	summary := fmt.Sprintf("This image was already scanned by %s on %s; inventory unchanged",
		sighting.FirstSeenBy, sighting.FirstSeenAt.Format("2006-01-02"))

	if commit {
		if _, err := s.ledger.RecordScan(ctx, RecordParams{
			UserID:        user.ID,
			ImageHash:     hash,
			ImageFilename: filename,
			Status:        models.ScanStatusSkipped,
			ErrorMessage:  summary,
		}, nil); err != nil {
			return nil, err
		}
		if err := s.guard.Record(ctx, user.ID, hash); err != nil {
			return nil, err
		}
	}

	log.Info("Scan skipped as duplicate image", zap.String("first_seen_by", sighting.FirstSeenBy))
	return &Outcome{
		Status:    models.ScanStatusSkipped,
		ImageHash: hash,
		Summary:   summary,
		Duplicate: sighting,
	}, nil
}

// failScan handles an extraction failure. The hash is deliberately not
// recorded: a transient vision outage must not block rescanning the image.
func (s *Service) failScan(ctx context.Context, user *models.User, hash, filename, reason string, commit bool, log *zap.Logger) (*Outcome, error) {
	if commit {
		if _, err := s.ledger.RecordScan(ctx, RecordParams{
			UserID:        user.ID,
			ImageHash:     hash,
			ImageFilename: filename,
			Status:        models.ScanStatusFailed,
			ErrorMessage:  reason,
		}, nil); err != nil {
			return nil, err
		}
	}

	log.Warn("Scan failed", zap.String("reason", reason))
	return &Outcome{
		Status:    models.ScanStatusFailed,
		ImageHash: hash,
		Summary:   reason,
	}, nil
}

// commit writes the scan record, its deltas, and the image hash in that
// order. A crash between the two leaves a recorded scan whose hash is
// unguarded, which at worst allows one redundant rescan.
func (s *Service) commit(ctx context.Context, user *models.User, hash, filename, scene string, result *inventory.MergeResult) (*models.ScanRecord, error) {
	status := models.ScanStatusSuccess
	if result.HasConflicts() {
		status = models.ScanStatusPartial
	}

	record, err := s.ledger.RecordScan(ctx, RecordParams{
		UserID:         user.ID,
		ImageHash:      hash,
		ImageFilename:  filename,
		Scene:          scene,
		PiecesFound:    result.TotalChanges() + len(result.Unchanged) + len(result.Conflicts),
		PiecesAdded:    len(result.Added),
		PiecesUpdated:  len(result.Updated),
		ConflictsFound: len(result.Conflicts),
		Status:         status,
	}, result.Deltas())
	if err != nil {
		return nil, err
	}

	if err := s.guard.Record(ctx, user.ID, hash); err != nil {
		return nil, err
	}
	return record, nil
}

// archiveImage uploads the screenshot bytes for later auditing. Failures are
// logged and swallowed: the scan already committed and the archive is not
// part of its contract.
func (s *Service) archiveImage(ctx context.Context, hash string, data []byte, log *zap.Logger) {
	if s.archive == nil {
		return
	}
	_, err := s.archive.PutObject(ctx, s.bucket, archiveObjectName(hash),
		bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{ContentType: "image/png"})
	if err != nil {
		log.Warn("Failed to archive screenshot", zap.Error(err))
	}
}
