package dbbuilder

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	databaseutil "github.com/NYCU-SDC/summer/pkg/database"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"go.uber.org/zap"
)

type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

const (
	postgresImage = "postgres"
	postgresTag   = "16-alpine"
	postgresUser  = "postgres"
	postgresPass  = "password"
	postgresDB    = "questionnaire_test"
)

// SetupPostgres starts a throwaway Postgres container, applies the
// migrations and returns a pool connected to it. The test is skipped in
// -short mode or when no docker daemon is reachable.
func SetupPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("docker is not available: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker is not available: %v", err)
	}
	pool.MaxWait = 60 * time.Second

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: postgresImage,
		Tag:        postgresTag,
		Env: []string{
			"POSTGRES_USER=" + postgresUser,
			"POSTGRES_PASSWORD=" + postgresPass,
			"POSTGRES_DB=" + postgresDB,
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := pool.Purge(resource); err != nil {
			t.Logf("failed to purge postgres container: %v", err)
		}
	})
	_ = resource.Expire(300)

	databaseURL := fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable",
		postgresUser, postgresPass, resource.GetHostPort("5432/tcp"), postgresDB)

	var dbPool *pgxpool.Pool
	err = pool.Retry(func() error {
		var err error
		dbPool, err = pgxpool.New(context.Background(), databaseURL)
		if err != nil {
			return err
		}
		if err := dbPool.Ping(context.Background()); err != nil {
			dbPool.Close()
			return err
		}
		return nil
	})
	if err != nil {
		t.Fatalf("postgres did not become ready: %v", err)
	}
	t.Cleanup(dbPool.Close)

	err = databaseutil.MigrationUp(migrationSource(), databaseURL, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return dbPool
}

// migrationSource locates the migrations relative to this file so tests
// work from any package directory.
func migrationSource() string {
	_, current, _, _ := runtime.Caller(0)
	root := filepath.Join(filepath.Dir(current), "..", "..", "..")
	return "file://" + filepath.Join(root, "internal", "database", "migrations")
}
