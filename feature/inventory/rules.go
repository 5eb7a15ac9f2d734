package inventory

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MaxSceneLength is the longest accepted scene name after trimming, in
// characters.
const MaxSceneLength = 100

var sceneTitle = cases.Title(language.English)

// NormalizeScene canonicalizes a scene name: whitespace trimmed, words title
// cased. Names differing only in case or padding collide to one record, so
// normalization must run before any lookup or write.
func NormalizeScene(scene string) string {
	return sceneTitle.String(strings.TrimSpace(scene))
}

// ValidateScene checks a scene name before normalization-dependent use.
func ValidateScene(scene string) error {
	trimmed := strings.TrimSpace(scene)
	if trimmed == "" {
		return validationErrorf("scene", "name cannot be empty")
	}
	// The cap counts characters, not bytes, so multibyte names are not
	// penalized for their encoding.
	if n := utf8.RuneCountInString(trimmed); n > MaxSceneLength {
		return validationErrorf("scene", "name too long (max %d chars), got %d", MaxSceneLength, n)
	}
	return nil
}

// ValidateSlotIndex checks a slot position.
func ValidateSlotIndex(slotIndex int) error {
	if slotIndex < 1 {
		return validationErrorf("slot_index", "must be >= 1, got %d", slotIndex)
	}
	return nil
}

// ValidateStars checks a rarity value.
func ValidateStars(stars int) error {
	if stars < 1 || stars > 5 {
		return validationErrorf("stars", "must be between 1 and 5, got %d", stars)
	}
	return nil
}

// ValidateDuplicates checks a duplicate count.
func ValidateDuplicates(duplicates int) error {
	if duplicates < 0 {
		return validationErrorf("duplicates", "must be >= 0, got %d", duplicates)
	}
	return nil
}

// ValidatePiece checks all piece fields at once. Pure, no side effects.
func ValidatePiece(scene string, slotIndex, stars, duplicates int) error {
	if err := ValidateScene(scene); err != nil {
		return err
	}
	if err := ValidateSlotIndex(slotIndex); err != nil {
		return err
	}
	if err := ValidateStars(stars); err != nil {
		return err
	}
	return ValidateDuplicates(duplicates)
}

// ParseSlot extracts a slot index from user input. Accepts forms like "5",
// "slot 5", and "#5".
func ParseSlot(raw string) (int, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "slot", "")
	s = strings.ReplaceAll(s, "#", "")
	s = strings.TrimSpace(s)

	slot, err := strconv.Atoi(s)
	if err != nil || slot < 1 {
		return 0, false
	}
	return slot, true
}
