// Package dbtest starts a throwaway Postgres container for store tests.
package dbtest

import (
	"fmt"
	"testing"
	"time"

	"github.com/irsalhamdi/raiseup/config"
	"github.com/irsalhamdi/raiseup/database"
	"github.com/jmoiron/sqlx"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
)

// NewDB returns a migrated database, or skips the test when docker is not
// reachable. The container is purged when the test ends.
func NewDB(t *testing.T) *sqlx.DB {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("docker not available: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker not reachable: %v", err)
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "15-alpine",
		Env: []string{
			"POSTGRES_USER=postgres",
			"POSTGRES_PASSWORD=postgres",
			"POSTGRES_DB=raiseup",
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := pool.Purge(resource); err != nil {
			t.Logf("purging postgres container: %v", err)
		}
	})
	_ = resource.Expire(120)

	cfg := config.DB{
		User:       "postgres",
		Password:   "postgres",
		Host:       resource.GetHostPort("5432/tcp"),
		Name:       "raiseup",
		DisableTLS: true,
	}

	var db *sqlx.DB
	pool.MaxWait = 60 * time.Second
	err = pool.Retry(func() error {
		var err error
		db, err = database.Open(cfg)
		if err != nil {
			return err
		}
		return db.Ping()
	})
	if err != nil {
		t.Fatalf("connecting to postgres: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.Migrate(database.URL(cfg)); err != nil {
		t.Fatalf("migrating: %v", err)
	}

	return db
}

// Seed runs raw statements, failing the test on the first error.
func Seed(t *testing.T, db *sqlx.DB, stmts ...string) {
	t.Helper()
	for i, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("seed statement %d: %v", i, fmt.Errorf("%s: %w", s, err))
		}
	}
}
