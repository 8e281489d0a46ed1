// Package dbtest opens migrated in-memory databases for tests.
package dbtest

import (
	"fmt"
	"strings"
	"testing"

	"habitpact/config"
	"habitpact/internal/database"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// Open returns a fresh migrated sqlite database private to t.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.NewDB(&config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(db))
	return db
}
