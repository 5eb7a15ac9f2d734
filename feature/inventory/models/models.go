package models

import (
	"time"

	"gorm.io/gorm"
)

// User is an account known to the ledger. Users are created on first contact
// with any command; the display name is refreshed on every contact.
type User struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ExternalID  string    `gorm:"column:external_id;size:64;uniqueIndex;not null" json:"external_id"`
	DisplayName string    `gorm:"column:display_name;size:128" json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName maps User to the users table.
func (User) TableName() string { return "users" }

// Piece is one owned inventory slot. The natural key is
// (user_id, scene, slot_index); stars are fixed at creation and duplicates
// only move through the sanctioned store operations.
type Piece struct {
	ID         uint      `gorm:"primaryKey" json:"-"`
	UserID     uint      `gorm:"column:user_id;not null;uniqueIndex:idx_user_scene_slot,priority:1" json:"-"`
	Scene      string    `gorm:"size:100;not null;uniqueIndex:idx_user_scene_slot,priority:2" json:"scene"`
	SlotIndex  int       `gorm:"column:slot_index;not null;uniqueIndex:idx_user_scene_slot,priority:3" json:"slot_index"`
	Stars      int       `gorm:"not null" json:"stars"`
	Duplicates int       `gorm:"not null;default:0" json:"duplicates"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName maps Piece to the inventory table.
func (Piece) TableName() string { return "inventory" }

// Scan statuses.
const (
	ScanStatusSuccess = "success"
	ScanStatusPartial = "partial"
	ScanStatusFailed  = "failed"
	ScanStatusSkipped = "skipped"
)

// ScanRecord is one immutable row per processed image. Rollback voids a
// record by stamping RolledBackAt; rows are never deleted.
type ScanRecord struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	UserID         uint       `gorm:"column:user_id;not null;index" json:"-"`
	ImageHash      string     `gorm:"column:image_hash;size:64;not null;index" json:"image_hash"`
	ImageFilename  string     `gorm:"column:image_filename;size:255" json:"image_filename,omitempty"`
	Scene          string     `gorm:"size:100;index" json:"scene,omitempty"`
	PiecesFound    int        `gorm:"column:pieces_found;not null;default:0" json:"pieces_found"`
	PiecesAdded    int        `gorm:"column:pieces_added;not null;default:0" json:"pieces_added"`
	PiecesUpdated  int        `gorm:"column:pieces_updated;not null;default:0" json:"pieces_updated"`
	ConflictsFound int        `gorm:"column:conflicts_found;not null;default:0" json:"conflicts_found"`
	Status         string     `gorm:"column:scan_status;size:16;not null" json:"status"`
	ErrorMessage   string     `gorm:"column:error_message;size:512" json:"error_message,omitempty"`
	RolledBackAt   *time.Time `gorm:"column:rolled_back_at" json:"rolled_back_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// TableName maps ScanRecord to the scan_history table.
func (ScanRecord) TableName() string { return "scan_history" }

// ScanDelta records the exact duplicates contribution one scan made to one
// piece. Rollback reverses deltas, not piece history.
type ScanDelta struct {
	ID              uint   `gorm:"primaryKey" json:"-"`
	ScanID          uint   `gorm:"column:scan_id;not null;index" json:"scan_id"`
	Scene           string `gorm:"size:100;not null" json:"scene"`
	SlotIndex       int    `gorm:"column:slot_index;not null" json:"slot_index"`
	AddedDuplicates int    `gorm:"column:added_duplicates;not null" json:"added_duplicates"`
}

// TableName maps ScanDelta to the scan_details table.
func (ScanDelta) TableName() string { return "scan_details" }

// ImageHash is the dedup guard's record of an already-seen image. The
// first-seen owner is assigned once and never reassigned; repeats only bump
// the attempt counter.
type ImageHash struct {
	Hash           string    `gorm:"primaryKey;size:64" json:"hash"`
	FirstSeenBy    uint      `gorm:"column:first_seen_by;not null" json:"first_seen_by"`
	FirstSeenAt    time.Time `gorm:"column:first_seen_at;autoCreateTime" json:"first_seen_at"`
	TimesAttempted int       `gorm:"column:times_attempted;not null;default:1" json:"times_attempted"`
}

// TableName maps ImageHash to the image_hashes table.
func (ImageHash) TableName() string { return "image_hashes" }

// Migrate provisions the schema for every ledger table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Piece{},
		&ScanRecord{},
		&ScanDelta{},
		&ImageHash{},
	)
}

// Tables lists the table names Migrate provisions, in creation order.
func Tables() []string {
	return []string{"users", "inventory", "scan_history", "scan_details", "image_hashes"}
}
