// Package itf sets up throwaway postgres databases for integration tests.
package itf

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"fmt"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/apdn7/AnalysisPlatformCloud-sub001/migrations"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/composables"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/configuration"
)

const (
	// PostgreSQL database name maximum length is 63 characters
	maxDBNameLength = 63
	// Reserve space for hash suffix when truncating (8 chars + underscore)
	hashSuffixLength = 9
)

// IsCI reports whether tests run on CI, where an unreachable database fails
// instead of skipping.
func IsCI() bool {
	return strings.TrimSpace(os.Getenv("CI")) != "" ||
		strings.EqualFold(strings.TrimSpace(os.Getenv("GITHUB_ACTIONS")), "true")
}

func CanDialPostgres(tb testing.TB) bool {
	tb.Helper()

	cfg := configuration.Use()
	host := strings.TrimSpace(cfg.Database.Host)
	if host == "" {
		host = "localhost"
	}
	port := strings.TrimSpace(cfg.Database.Port)
	if port == "" {
		port = "5432"
	}
	addr := net.JoinHostPort(host, port)

	dialer := &net.Dialer{Timeout: 250 * time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Setup creates a fresh migrated database named after the test and returns a
// context carrying its pool. It skips when postgres is not reachable.
func Setup(tb testing.TB) (context.Context, *pgxpool.Pool) {
	tb.Helper()

	if !CanDialPostgres(tb) {
		if IsCI() {
			tb.Fatalf("postgres is not reachable (DB_HOST/DB_PORT).")
		}
		tb.Skip("postgres is not reachable; skipping integration test")
	}

	name := tb.Name()
	require.NoError(tb, CreateDB(name))
	pool := NewPool(tb, DbOpts(name))
	tb.Cleanup(pool.Close)

	ctx := context.Background()
	require.NoError(tb, migrations.Up(ctx, pool))
	return composables.WithPool(ctx, pool), pool
}

func NewPool(tb testing.TB, dbOpts string) *pgxpool.Pool {
	tb.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	config, err := pgxpool.ParseConfig(dbOpts)
	require.NoError(tb, err)
	config.MaxConns = 4
	config.MinConns = 1
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, config)
	require.NoError(tb, err)
	return pool
}

func DbOpts(name string) string {
	c := configuration.Use()
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=disable",
		c.Database.Host, c.Database.Port, c.Database.User, sanitizeDBName(name), c.Database.Password,
	)
}

// CreateDB drops and recreates the database through the admin connection.
func CreateDB(name string) error {
	sanitized := sanitizeDBName(name)

	c := configuration.Use()
	adminConnStr := fmt.Sprintf(
		"host=%s port=%s user=%s dbname=postgres password=%s sslmode=disable",
		c.Database.Host, c.Database.Port, c.Database.User, c.Database.Password,
	)
	db, err := sql.Open("postgres", adminConnStr)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, fmt.Sprintf("DROP DATABASE IF EXISTS %s", sanitized)); err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE %s", sanitized))
	return err
}

// sanitizeDBName replaces special characters in database names with underscores
func sanitizeDBName(name string) string {
	sanitized := strings.ToLower(name)
	for _, ch := range []string{"/", " ", "-", ".", "(", ")", "[", "]", "#", "{", "}", ",", "'"} {
		sanitized = strings.ReplaceAll(sanitized, ch, "_")
	}
	for strings.Contains(sanitized, "__") {
		sanitized = strings.ReplaceAll(sanitized, "__", "_")
	}
	sanitized = strings.Trim(sanitized, "_")
	if sanitized == "" {
		sanitized = "test_db"
	}
	if len(sanitized) <= maxDBNameLength {
		return sanitized
	}
	return truncateWithHash(sanitized, name)
}

// truncateWithHash keeps the head of the name and appends a hash of the
// original for uniqueness.
func truncateWithHash(sanitized, original string) string {
	sum := sha256.Sum256([]byte(original))
	hash := fmt.Sprintf("%x", sum[:])[:8]
	return sanitized[:maxDBNameLength-hashSuffixLength] + "_" + hash
}
