// SPDX-License-Identifier: Apache-2.0

package testutils

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/db-tools-oss/reshape/pkg/engine"
	"github.com/db-tools-oss/reshape/pkg/state"
)

// defaultPostgresVersion is the version of Postgres started by SharedTestMain
// when the POSTGRES_VERSION environment variable is unset.
const defaultPostgresVersion = "15.3"

// tConnStr holds the connection string of the container started in
// SharedTestMain. Every test opens its own throwaway database against this
// server rather than starting a fresh container per test.
var tConnStr string

// SharedTestMain starts a single postgres container for all tests in a
// package. Each test then creates its own database inside that container.
func SharedTestMain(m *testing.M) {
	ctx := context.Background()

	waitForLogs := wait.
		ForLog("database system is ready to accept connections").
		WithOccurrence(2).
		WithStartupTimeout(5 * time.Second)

	pgVersion := os.Getenv("POSTGRES_VERSION")
	if pgVersion == "" {
		pgVersion = defaultPostgresVersion
	}

	ctr, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:"+pgVersion),
		testcontainers.WithWaitStrategy(waitForLogs),
	)
	if err != nil {
		log.Printf("Failed to start postgres container: %v", err)
		os.Exit(1)
	}

	tConnStr, err = ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		os.Exit(1)
	}

	db, err := sql.Open("postgres", tConnStr)
	if err != nil {
		os.Exit(1)
	}

	// a role of the same name as the reserved state schema, handy for
	// ownership/grant tests.
	if _, err := db.ExecContext(ctx, "CREATE ROLE reshape"); err != nil {
		os.Exit(1)
	}

	exitCode := m.Run()

	if err := ctr.Terminate(ctx); err != nil {
		log.Printf("Failed to terminate container: %v", err)
	}

	os.Exit(exitCode)
}

// TestSchema returns the schema that migrations are applied against in
// tests. Defaults to "public".
func TestSchema() string {
	if s := os.Getenv("RESHAPE_TEST_SCHEMA"); s != "" {
		return s
	}
	return "public"
}

// WithConnectionToContainer creates a throwaway database in the shared test
// container and passes a connection to it, and its connection string, to fn.
func WithConnectionToContainer(t *testing.T, fn func(*sql.DB, string)) {
	t.Helper()

	db, connStr, _ := setupTestDatabase(t)

	fn(db, connStr)
}

// WithStateInSchemaAndConnectionToContainer creates a throwaway database,
// initializes the reserved state schema under the given name, and passes the
// resulting state store and a raw connection to fn.
func WithStateInSchemaAndConnectionToContainer(t *testing.T, schema string, fn func(*state.State, *sql.DB)) {
	t.Helper()
	ctx := context.Background()

	db, connStr, _ := setupTestDatabase(t)

	st, err := state.New(ctx, connStr, schema, "development")
	if err != nil {
		t.Fatal(err)
	}

	if err := st.Init(ctx); err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Fatalf("Failed to close state connection: %v", err)
		}
	})

	fn(st, db)
}

// WithStateAndConnectionToContainer is WithStateInSchemaAndConnectionToContainer
// using the default "reshape" state schema name.
func WithStateAndConnectionToContainer(t *testing.T, fn func(*state.State, *sql.DB)) {
	WithStateInSchemaAndConnectionToContainer(t, "reshape", fn)
}

// WithUninitializedState passes a state store that has not had Init called
// on it, for testing bootstrap behaviour.
func WithUninitializedState(t *testing.T, fn func(*state.State)) {
	t.Helper()
	ctx := context.Background()

	_, connStr, _ := setupTestDatabase(t)

	st, err := state.New(ctx, connStr, "reshape", "development")
	if err != nil {
		t.Fatal(err)
	}

	fn(st)
}

// WithEngineInSchemaAndConnectionToContainerWithOptions builds an engine
// targeting the given application schema, with the given options, against a
// fresh throwaway database.
func WithEngineInSchemaAndConnectionToContainerWithOptions(t *testing.T, schema string, opts []engine.Option, fn func(e *engine.Engine, db *sql.DB)) {
	t.Helper()
	ctx := context.Background()

	db, connStr, dbName := setupTestDatabase(t)

	e, err := engine.New(ctx, connStr, schema, opts...)
	if err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() {
		if err := e.Close(); err != nil {
			t.Fatalf("Failed to close engine connection: %v", err)
		}
	})

	if _, err := db.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", pq.QuoteIdentifier(schema))); err != nil {
		t.Fatal(err)
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("GRANT ALL PRIVILEGES ON SCHEMA %s TO reshape", pq.QuoteIdentifier(schema))); err != nil {
		t.Fatal(err)
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("GRANT ALL PRIVILEGES ON DATABASE %s TO reshape", pq.QuoteIdentifier(dbName))); err != nil {
		t.Fatal(err)
	}

	fn(e, db)
}

// WithEngineInSchemaAndConnectionToContainer is
// WithEngineInSchemaAndConnectionToContainerWithOptions with a short lock
// timeout suitable for tests that exercise lock contention.
func WithEngineInSchemaAndConnectionToContainer(t *testing.T, schema string, fn func(e *engine.Engine, db *sql.DB)) {
	WithEngineInSchemaAndConnectionToContainerWithOptions(t, schema, []engine.Option{engine.WithLockTimeoutMs(500)}, fn)
}

// WithEngineAndConnectionToContainer targets the "public" schema.
func WithEngineAndConnectionToContainer(t *testing.T, fn func(e *engine.Engine, db *sql.DB)) {
	WithEngineInSchemaAndConnectionToContainerWithOptions(t, "public", []engine.Option{engine.WithLockTimeoutMs(500)}, fn)
}

// WithEngineAndConnectionToContainerWithOptions targets the "public" schema
// with caller supplied options.
func WithEngineAndConnectionToContainerWithOptions(t *testing.T, opts []engine.Option, fn func(e *engine.Engine, db *sql.DB)) {
	WithEngineInSchemaAndConnectionToContainerWithOptions(t, "public", opts, fn)
}

// setupTestDatabase creates a new database in the shared test container and
// returns a connection to it, its connection string, and its name.
func setupTestDatabase(t *testing.T) (*sql.DB, string, string) {
	t.Helper()
	ctx := context.Background()

	tDB, err := sql.Open("postgres", tConnStr)
	if err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() {
		if err := tDB.Close(); err != nil {
			t.Fatalf("Failed to close database connection: %v", err)
		}
	})

	dbName := randomDBName()

	if _, err := tDB.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE %s", pq.QuoteIdentifier(dbName))); err != nil {
		t.Fatal(err)
	}

	u, err := url.Parse(tConnStr)
	if err != nil {
		t.Fatal(err)
	}

	u.Path = "/" + dbName
	connStr := u.String()

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Fatalf("Failed to close database connection: %v", err)
		}
	})

	return db, connStr, dbName
}
