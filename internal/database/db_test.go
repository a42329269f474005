package database

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestOpenSQLiteMemory(t *testing.T) {
	db, err := Open(Config{Driver: "sqlite", DSN: "file:open_memory?mode=memory&cache=shared", LogLevel: "silent"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	require.NoError(t, db.Exec("SELECT 1").Error)
	require.NoError(t, Ping(context.Background(), db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}

func TestOpenSQLiteFileCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "invites.db")

	db, err := Open(Config{Driver: "sqlite", Path: path, LogLevel: "silent"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	require.NoError(t, Ping(context.Background(), db))
	require.DirExists(t, filepath.Dir(path))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported database driver")
}

func TestBuildSQLiteDSN(t *testing.T) {
	dsn, err := buildSQLiteDSN(Config{Path: ":memory:"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(dsn, "file::memory:"))

	dsn, err = buildSQLiteDSN(Config{DSN: "file:custom.db"})
	require.NoError(t, err)
	require.Equal(t, "file:custom.db", dsn)
}

func TestBuildPostgresDSNDefaults(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{User: "invitegate", Name: "invitegate"})
	require.NoError(t, err)
	require.Equal(t, "postgres://invitegate@localhost:5432/invitegate?TimeZone=UTC&sslmode=disable", dsn)
}

func TestBuildPostgresDSNWithOptions(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{
		User:     "user",
		Name:     "db",
		Host:     "db.example.com",
		Port:     6543,
		Password: "p@ss",
		Options: map[string]string{
			"sslmode":     "disable",
			"search_path": "public",
		},
	})
	require.NoError(t, err)

	parsed, err := pgconn.ParseConfig(dsn)
	require.NoError(t, err)
	require.Equal(t, "db.example.com", parsed.Host)
	require.Equal(t, uint16(6543), parsed.Port)
	require.Equal(t, "user", parsed.User)
	require.Equal(t, "p@ss", parsed.Password)
	require.Equal(t, "db", parsed.Database)
	require.Equal(t, "public", parsed.RuntimeParams["search_path"])
	require.Equal(t, "UTC", parsed.RuntimeParams["TimeZone"])

	_, err = buildPostgresDSN(Config{})
	require.Error(t, err)
}

func TestBuildMySQLDSN(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{User: "root", Password: "pw", Name: "invites", Options: map[string]string{"timeout": "5s"}})
	require.NoError(t, err)

	parsed, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	require.Equal(t, "root", parsed.User)
	require.Equal(t, "pw", parsed.Passwd)
	require.Equal(t, "tcp", parsed.Net)
	require.Equal(t, "127.0.0.1:3306", parsed.Addr)
	require.Equal(t, "invites", parsed.DBName)
	require.True(t, parsed.ParseTime)
	require.Equal(t, time.UTC, parsed.Loc)
	require.Contains(t, dsn, "charset=utf8mb4")

	_, err = buildMySQLDSN(Config{Name: "invites"})
	require.Error(t, err)
}

func TestParseLogLevel(t *testing.T) {
	require.Equal(t, gormlogger.Silent, parseLogLevel("silent"))
	require.Equal(t, gormlogger.Info, parseLogLevel("INFO"))
	require.Equal(t, gormlogger.Warn, parseLogLevel(""))
}

func TestIsUniqueConstraintError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"gorm", gorm.ErrDuplicatedKey, true},
		{"postgres", &pgconn.PgError{Code: "23505"}, true},
		{"postgres other", &pgconn.PgError{Code: "23503"}, false},
		{"mysql", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, true},
		{"sqlite text", errors.New("UNIQUE constraint failed: invite_codes.code"), true},
		{"not null", errors.New("NOT NULL constraint failed: invite_codes.code"), false},
		{"other", errors.New("connection refused"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, IsUniqueConstraintError(tc.err))
		})
	}
}
