// Package testutil holds helpers shared by integration tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/laissez/laissez/internal/model"
	"github.com/laissez/laissez/migrations"
	"github.com/redis/go-redis/v9"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 420420

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// schemaMigrations lists migration basenames in apply order.
var schemaMigrations = []string{
	"000001_agents",
	"000002_links",
}

// ResetSchema drops and recreates every table from the embedded migrations.
func ResetSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for i := len(schemaMigrations) - 1; i >= 0; i-- {
		if err := execMigration(ctx, pool, schemaMigrations[i]+".down.sql"); err != nil {
			return err
		}
	}
	for _, name := range schemaMigrations {
		if err := execMigration(ctx, pool, name+".up.sql"); err != nil {
			return err
		}
	}
	return nil
}

func execMigration(ctx context.Context, pool *pgxpool.Pool, file string) error {
	sql, err := migrations.FS.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", file, err)
	}
	if _, err := pool.Exec(ctx, string(sql)); err != nil {
		return fmt.Errorf("apply migration %s: %w", file, err)
	}
	return nil
}

// NewTestPool connects to DATABASE_URL, serializes on the advisory lock
// and resets the schema. Everything is released on test cleanup.
func NewTestPool(t testing.TB) (context.Context, *pgxpool.Pool) {
	t.Helper()

	dbURL := RequireEnv(t, "DATABASE_URL")
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	unlock, err := AcquireDBLock(ctx, pool)
	if err != nil {
		pool.Close()
		t.Fatalf("lock: %v", err)
	}
	t.Cleanup(func() {
		_ = unlock()
		pool.Close()
	})

	if err := ResetSchema(ctx, pool); err != nil {
		t.Fatalf("reset schema: %v", err)
	}
	return ctx, pool
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ============================================================================
// Test Data Factories
// ============================================================================

// NewTestAgent creates an agent configuration with sensible defaults.
func NewTestAgent(t testing.TB, ownerUserID string) *model.AgentConfig {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &model.AgentConfig{
		ID:            UniqueID("agent"),
		OwnerUserID:   ownerUserID,
		TargetURL:     "https://agent.example.com/run",
		BotCredential: UniqueID("123456789:bot"),
		MinimumPrice:  model.MinAgentPrice,
		CreatedAt:     now,
	}
}

// NewTestPendingLink creates a pending link expiring after ttl.
func NewTestPendingLink(t testing.TB, platformUserID string, ttl time.Duration) *model.PendingLink {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &model.PendingLink{
		Code:           UniqueID("code"),
		Platform:       model.PlatformTelegram,
		PlatformUserID: platformUserID,
		ExpiresAt:      now.Add(ttl),
		CreatedAt:      now,
	}
}

var idSeq atomic.Int64

// UniqueID generates a unique ID for tests.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d-%d", prefix, time.Now().UnixNano(), idSeq.Add(1))
}
