package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnect_InvalidConnection(t *testing.T) {
	cfg := Config{
		Host:           "localhost",
		Port:           9999, // Unused port
		User:           "root",
		Password:       "wrongpassword",
		Name:           "puzzle_ledger",
		TimeoutSeconds: 1,
	}

	// Connect should fail (timeout or refused)
	db, err := Connect(cfg)
	assert.Error(t, err)
	assert.Nil(t, db)
}

func TestConnect_SQLiteInMemory(t *testing.T) {
	db, err := Connect(Config{Driver: "sqlite", Name: ":memory:"})
	assert.NoError(t, err)
	assert.NotNil(t, db)
	assert.Equal(t, "sqlite", db.Dialector.Name())
}
