package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

type sample struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

func TestNewGormDB_SQLite(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "sample.db")
	gormDB, err := NewGormDB(Options{Type: TypeSQLite, DSN: dsn, LogLevel: logger.Silent})
	require.NoError(t, err)
	defer Close(gormDB)

	require.NoError(t, AutoMigrate(gormDB, &sample{}))
	require.NoError(t, gormDB.Create(&sample{Name: "x"}).Error)

	var got sample
	require.NoError(t, gormDB.First(&got).Error)
	assert.Equal(t, "x", got.Name)
}

func TestNewGormDB_UnsupportedType(t *testing.T) {
	_, err := NewGormDB(Options{Type: "oracle"})
	assert.Error(t, err)
	if err != nil { assert.Contains(t, err.Error(), "unsupported DB_TYPE") }
}

func TestClose_Nil(t *testing.T) {
	assert.NoError(t, Close(nil))
}
