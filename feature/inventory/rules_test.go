package inventory_test

import (
	"strings"
	"testing"

	"puzzle-ledger/feature/inventory"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeScene(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Ocean View", "Ocean View"},
		{"ocean view", "Ocean View"},
		{"OCEAN VIEW", "Ocean View"},
		{"  ocean view  ", "Ocean View"},
		{"\tocean view\n", "Ocean View"},
		{"winter cabin", "Winter Cabin"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, inventory.NormalizeScene(tc.in), "input %q", tc.in)
	}
}

func TestNormalizeScene_CollidingVariantsAgree(t *testing.T) {
	// Variants of one name must land on the same record key.
	variants := []string{"ocean view", " Ocean View ", "OCEAN VIEW", "ocean VIEW"}
	want := inventory.NormalizeScene(variants[0])
	for _, v := range variants[1:] {
		assert.Equal(t, want, inventory.NormalizeScene(v))
	}
}

func TestValidateScene(t *testing.T) {
	assert.NoError(t, inventory.ValidateScene("Ocean View"))
	assert.NoError(t, inventory.ValidateScene(strings.Repeat("a", inventory.MaxSceneLength)))

	assert.Error(t, inventory.ValidateScene(""))
	assert.Error(t, inventory.ValidateScene("   "))
	assert.Error(t, inventory.ValidateScene(strings.Repeat("a", inventory.MaxSceneLength+1)))

	// Whitespace padding does not count against the limit
	assert.NoError(t, inventory.ValidateScene("  "+strings.Repeat("a", inventory.MaxSceneLength)+"  "))

	// The limit counts characters, not bytes
	assert.NoError(t, inventory.ValidateScene(strings.Repeat("é", inventory.MaxSceneLength)))
	assert.Error(t, inventory.ValidateScene(strings.Repeat("é", inventory.MaxSceneLength+1)))
}

func TestValidateSlotIndex(t *testing.T) {
	assert.NoError(t, inventory.ValidateSlotIndex(1))
	assert.NoError(t, inventory.ValidateSlotIndex(24))

	assert.Error(t, inventory.ValidateSlotIndex(0))
	assert.Error(t, inventory.ValidateSlotIndex(-5))
}

func TestValidateStars(t *testing.T) {
	for stars := 1; stars <= 5; stars++ {
		assert.NoError(t, inventory.ValidateStars(stars))
	}
	assert.Error(t, inventory.ValidateStars(0))
	assert.Error(t, inventory.ValidateStars(6))
	assert.Error(t, inventory.ValidateStars(-1))
}

func TestValidateDuplicates(t *testing.T) {
	assert.NoError(t, inventory.ValidateDuplicates(0))
	assert.NoError(t, inventory.ValidateDuplicates(99))
	assert.Error(t, inventory.ValidateDuplicates(-1))
}

func TestValidatePiece(t *testing.T) {
	assert.NoError(t, inventory.ValidatePiece("Ocean View", 3, 4, 2))

	err := inventory.ValidatePiece("", 3, 4, 2)
	assert.Error(t, err)
	assert.True(t, inventory.IsValidation(err))

	assert.Error(t, inventory.ValidatePiece("Ocean View", 0, 4, 2))
	assert.Error(t, inventory.ValidatePiece("Ocean View", 3, 7, 2))
	assert.Error(t, inventory.ValidatePiece("Ocean View", 3, 4, -2))
}

func TestParseSlot(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"5", 5, true},
		{"slot 5", 5, true},
		{"Slot 12", 12, true},
		{"#7", 7, true},
		{"  slot #3 ", 3, true},
		{"0", 0, false},
		{"-2", 0, false},
		{"abc", 0, false},
		{"", 0, false},
		{"slot", 0, false},
	}
	for _, tc := range cases {
		got, ok := inventory.ParseSlot(tc.in)
		assert.Equal(t, tc.ok, ok, "input %q", tc.in)
		assert.Equal(t, tc.want, got, "input %q", tc.in)
	}
}
