package database

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestGetTableColumns(t *testing.T) {
	db, mock := setupMockDB(t)

	rows := sqlmock.NewRows([]string{"Field", "Type", "Null", "Key", "Default", "Extra"}).
		AddRow("ID", "BIGINT UNSIGNED", "NO", "PRI", nil, "auto_increment").
		AddRow("Scene", "VARCHAR(100)", "NO", "MUL", nil, "")

	mock.ExpectQuery("SHOW COLUMNS FROM `pieces`").WillReturnRows(rows)

	columns, err := GetTableColumns(db, "pieces")
	assert.NoError(t, err)
	assert.Len(t, columns, 2)

	// Field and type names are normalized to lowercase
	assert.Equal(t, "id", columns[0].Field)
	assert.Equal(t, "bigint unsigned", columns[0].Type)
	assert.Equal(t, "scene", columns[1].Field)
	assert.Equal(t, "varchar(100)", columns[1].Type)
}

func TestGetTableColumns_QueryError(t *testing.T) {
	db, mock := setupMockDB(t)

	mock.ExpectQuery("SHOW COLUMNS FROM `missing`").WillReturnError(gorm.ErrInvalidDB)

	_, err := GetTableColumns(db, "missing")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}
