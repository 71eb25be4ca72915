//go:build integration

// Package containers manages shared test containers for integration tests.
// Containers are started once per test binary and reused across suites;
// the testcontainers reaper tears them down when the process exits.
package containers

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	bookingstore "inspekta/internal/booking/store"
	"inspekta/internal/creditpass"
	"inspekta/internal/ledger"
)

// Manager hands out shared container instances. Suites obtain it via
// GetManager and call GetPostgres / GetRedis from SetupSuite.
type Manager struct {
	pgOnce    sync.Once
	postgres  *PostgresContainer
	redisOnce sync.Once
	redis     *RedisContainer
}

var manager = &Manager{}

// GetManager returns the process-wide container manager.
func GetManager() *Manager {
	return manager
}

// GetPostgres returns the shared PostgreSQL container, starting it and
// applying all schemas on first use.
func (m *Manager) GetPostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	m.pgOnce.Do(func() {
		m.postgres = NewPostgresContainer(t)

		ctx := context.Background()
		for _, migrate := range []func(context.Context, *sql.DB) error{
			bookingstore.Migrate,
			ledger.Migrate,
			creditpass.Migrate,
		} {
			if err := migrate(ctx, m.postgres.DB); err != nil {
				t.Fatalf("failed to apply schema: %v", err)
			}
		}
	})
	if m.postgres == nil {
		t.Fatal("postgres container failed to start")
	}
	return m.postgres
}

// GetRedis returns the shared Redis container, starting it on first use.
func (m *Manager) GetRedis(t *testing.T) *RedisContainer {
	t.Helper()
	m.redisOnce.Do(func() {
		m.redis = NewRedisContainer(t)
	})
	if m.redis == nil {
		t.Fatal("redis container failed to start")
	}
	return m.redis
}
