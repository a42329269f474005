package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/invitegate/internal/database"
)

// TestDBOption customises the behaviour of MustOpenTestDB.
type TestDBOption func(*testDBConfig)

type testDBConfig struct {
	migrate bool
}

// WithMigrations applies the schema migrations after opening the test database.
func WithMigrations() TestDBOption {
	return func(cfg *testDBConfig) {
		cfg.migrate = true
	}
}

// MustOpenTestDB opens a private in-memory SQLite database for the test. Each
// call gets its own database so parallel tests never share rows.
// The returned connection is automatically closed via t.Cleanup.
func MustOpenTestDB(t *testing.T, opts ...TestDBOption) *gorm.DB {
	t.Helper()

	cfg := testDBConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := database.Open(database.Config{
		Driver:   "sqlite",
		DSN:      fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString()),
		LogLevel: "silent",
	})
	require.NoError(t, err)

	if cfg.migrate {
		require.NoError(t, database.Migrate(context.Background(), db))
	}

	t.Cleanup(func() {
		_ = database.Close(db)
	})

	return db
}
