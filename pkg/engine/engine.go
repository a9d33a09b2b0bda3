// SPDX-License-Identifier: Apache-2.0

// Package engine is the lifecycle controller: it sequences action phase
// hooks against persisted state and the schema projector to carry out
// migrate, complete, abort, and remove.
package engine

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/db-tools-oss/reshape/internal/connstr"
	"github.com/db-tools-oss/reshape/pkg/action"
	"github.com/db-tools-oss/reshape/pkg/db"
	"github.com/db-tools-oss/reshape/pkg/project"
	"github.com/db-tools-oss/reshape/pkg/state"
)

func openDB(connStr string) (*sql.DB, error) {
	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening connection: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("pinging connection: %w", err)
	}
	return conn, nil
}

// reservedSchema is the namespace the state store lives in. It is never the
// application's own target schema.
const reservedSchema = "reshape"

// Engine is the public entry point for the migration lifecycle. One Engine
// owns one connection to one database and one target application schema.
type Engine struct {
	conn         db.DB
	state        *state.State
	projector    *project.Projector
	targetSchema string
	connStr      string

	logger          action.Logger
	lockTimeoutMs   int
	noWaitLock      bool
	pgMajorVersion  int
	pgVersionPinned bool
	engineVersion   string
}

// New opens a connection to the database at connStr and an Engine targeting
// targetSchema. The connection's search_path is pinned to targetSchema so
// that unqualified identifiers in action SQL resolve there.
func New(ctx context.Context, connStr, targetSchema string, opts ...Option) (*Engine, error) {
	e := &Engine{
		targetSchema:  targetSchema,
		connStr:       connStr,
		logger:        NewNoopLogger(),
		lockTimeoutMs: defaultLockTimeoutMs,
		engineVersion: "development",
	}
	for _, opt := range opts {
		opt(e)
	}

	scopedConnStr, err := connstr.AppendSearchPathOption(connStr, targetSchema)
	if err != nil {
		return nil, fmt.Errorf("scoping connection to schema %s: %w", targetSchema, err)
	}

	rawConn, err := openDB(scopedConnStr)
	if err != nil {
		return nil, err
	}
	e.conn = &db.RDB{DB: rawConn}

	if !e.pgVersionPinned {
		major, err := detectPGMajorVersion(ctx, e.conn)
		if err != nil {
			e.conn.Close()
			return nil, err
		}
		e.pgMajorVersion = major
	}
	e.projector = project.New(targetSchema, e.pgMajorVersion)

	st, err := state.New(ctx, connStr, reservedSchema, e.engineVersion)
	if err != nil {
		e.conn.Close()
		return nil, err
	}
	if err := st.Init(ctx); err != nil {
		e.conn.Close()
		st.Close()
		return nil, fmt.Errorf("initializing state store: %w", err)
	}
	e.state = st

	return e, nil
}

func detectPGMajorVersion(ctx context.Context, conn db.DB) (int, error) {
	rows, err := conn.QueryContext(ctx, "SHOW server_version_num")
	if err != nil {
		return 0, fmt.Errorf("detecting postgres version: %w", err)
	}
	defer rows.Close()

	var versionNum string
	if err := db.ScanFirstValue(rows, &versionNum); err != nil {
		return 0, fmt.Errorf("detecting postgres version: %w", err)
	}

	var n int
	if _, err := fmt.Sscanf(versionNum, "%d", &n); err != nil {
		return 0, fmt.Errorf("parsing server_version_num %q: %w", versionNum, err)
	}
	return n / 10000, nil
}

// VersionCompatibility and its values are re-exported from pkg/state so
// callers need not import it solely to interpret CheckVersionCompatibility.
type VersionCompatibility = state.VersionCompatibility

const (
	VersionCompatCheckSkipped = state.VersionCompatCheckSkipped
	VersionCompatEngineOlder  = state.VersionCompatEngineOlder
	VersionCompatEqual        = state.VersionCompatEqual
	VersionCompatEngineNewer  = state.VersionCompatEngineNewer
)

// CheckVersionCompatibility compares this engine's own version against the
// version stamped into the reserved schema when it was first initialized,
// surfacing state.VersionCompatEngineOlder so callers can warn before
// running a lifecycle call with a binary older than the one that wrote the
// schema's history.
func (e *Engine) CheckVersionCompatibility(ctx context.Context) (state.VersionCompatibility, error) {
	return e.state.VersionCompatibility(ctx)
}

// Close releases the engine's database connections.
func (e *Engine) Close() error {
	stateErr := e.state.Close()
	connErr := e.conn.Close()
	if connErr != nil {
		return connErr
	}
	return stateErr
}

// SchemaQueryForMigration returns the SQL a client session runs to adopt a
// migration's logical namespace: it points search_path at the migration's
// views and sets the session variable row-level triggers inspect to decide
// projection direction.
func (e *Engine) SchemaQueryForMigration(name string) string {
	ns := project.NamespaceName(name)
	return fmt.Sprintf(
		"SET search_path TO %s, %s; SELECT set_config(%s, %s, false);",
		pq.QuoteIdentifier(ns), pq.QuoteIdentifier(e.targetSchema),
		pq.QuoteLiteral(action.SchemaVersionSetting), pq.QuoteLiteral(name),
	)
}

func (e *Engine) executionContext(migrationName string) *action.ExecutionContext {
	return &action.ExecutionContext{
		Conn:          e.conn,
		MigrationName: migrationName,
		Logger:        e.logger,
		LockTimeoutMs: e.lockTimeoutMs,
	}
}

func (e *Engine) setLockTimeout(ctx context.Context) error {
	_, err := e.conn.ExecContext(ctx, fmt.Sprintf("SET lock_timeout = '%dms'", e.lockTimeoutMs))
	return err
}
