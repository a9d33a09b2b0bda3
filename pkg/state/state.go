// SPDX-License-Identifier: Apache-2.0

// Package state persists the migration engine's own progress in a reserved
// schema, guarded by a session-level advisory lock that serializes
// concurrent engine instances against the same database.
package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"hash/fnv"

	"github.com/lib/pq"
)

const tableName = "migrations_state"

// advisoryLockKey is a fixed key identifying the reshape state singleton,
// derived once from its name so that every engine instance against the
// same database contends for the same lock regardless of process.
var advisoryLockKey = int64(lockKey("reshape_migrations_state"))

func lockKey(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}

// sqlInitTemplate brings the reserved schema into existence. Idempotent.
const sqlInitTemplate = `
CREATE SCHEMA IF NOT EXISTS %[1]s;

CREATE TABLE IF NOT EXISTS %[1]s.%[2]s (
	id INTEGER PRIMARY KEY DEFAULT 1,
	version INTEGER NOT NULL,
	status TEXT NOT NULL,
	current_migration INTEGER NOT NULL,
	last_completed_migration INTEGER NOT NULL,
	engine_version TEXT NOT NULL,
	migrations JSONB NOT NULL,
	CONSTRAINT singleton CHECK (id = 1)
);
`

// State wraps a connection pool dedicated to the reserved schema.
type State struct {
	db            *sql.DB
	schema        string
	engineVersion string
}

// New opens a connection pool dedicated to the state store in the given
// reserved schema name. engineVersion is the running binary's own version,
// stamped into the schema on first Init and later compared against by
// VersionCompatibility; pass "development" to skip that check entirely.
func New(ctx context.Context, connStr, schemaName, engineVersion string) (*State, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening state connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging state connection: %w", err)
	}
	return &State{db: db, schema: schemaName, engineVersion: engineVersion}, nil
}

// Init creates the reserved schema and its singleton table if they do not
// already exist, and seeds the singleton row.
func (s *State) Init(ctx context.Context) error {
	ddl := fmt.Sprintf(sqlInitTemplate, pq.QuoteIdentifier(s.schema), tableName)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return err
	}

	zero := NewPersistedState(s.engineVersion)
	migrationsJSON, err := json.Marshal(zero.Migrations)
	if err != nil {
		return err
	}
	insert := fmt.Sprintf(`
		INSERT INTO %s.%s (id, version, status, current_migration, last_completed_migration, engine_version, migrations)
		VALUES (1, $1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`, pq.QuoteIdentifier(s.schema), tableName)
	_, err = s.db.ExecContext(ctx, insert, zero.Version, string(zero.Status), zero.CurrentMigration, zero.LastCompletedMigration, zero.EngineVersion, migrationsJSON)
	return err
}

// Close closes the dedicated connection pool.
func (s *State) Close() error {
	return s.db.Close()
}

// Remove drops the reserved schema and everything in it. Used by the
// remove() lifecycle operation; physical user tables are untouched.
func (s *State) Remove(ctx context.Context) error {
	sqlStr := fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", pq.QuoteIdentifier(s.schema))
	_, err := s.db.ExecContext(ctx, sqlStr)
	return err
}

// Lock holds the state singleton locked, via a session-scoped advisory
// lock, for the duration of a lifecycle call. A dedicated connection backs
// the lock so that Read/Write calls against the pool are never blocked by
// the engine's own lock.
type Lock struct {
	state  *State
	conn   *sql.Conn
	cached *PersistedState
}

// Acquire takes the reserved state's advisory lock, blocking until it is
// available unless nowait is set, in which case contention surfaces as
// ErrBusy.
func (s *State) Acquire(ctx context.Context, nowait bool) (*Lock, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, err
	}

	if nowait {
		var got bool
		if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", advisoryLockKey).Scan(&got); err != nil {
			conn.Close()
			return nil, err
		}
		if !got {
			conn.Close()
			return nil, ErrBusy
		}
	} else {
		if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock($1)", advisoryLockKey); err != nil {
			conn.Close()
			return nil, err
		}
	}

	l := &Lock{state: s, conn: conn}
	ps, err := l.reload(ctx)
	if err != nil {
		l.Release()
		return nil, err
	}
	l.cached = ps
	return l, nil
}

func (l *Lock) reload(ctx context.Context) (*PersistedState, error) {
	selectSQL := fmt.Sprintf(`
		SELECT version, status, current_migration, last_completed_migration, engine_version, migrations
		FROM %s.%s WHERE id = 1
	`, pq.QuoteIdentifier(l.state.schema), tableName)

	row := l.state.db.QueryRowContext(ctx, selectSQL)

	var ps PersistedState
	var status string
	var migrationsRaw []byte
	if err := row.Scan(&ps.Version, &status, &ps.CurrentMigration, &ps.LastCompletedMigration, &ps.EngineVersion, &migrationsRaw); err != nil {
		return nil, err
	}
	ps.Status = Status(status)
	if err := json.Unmarshal(migrationsRaw, &ps.Migrations); err != nil {
		return nil, err
	}
	return &ps, nil
}

// Read returns the state as of the last Acquire or Write call.
func (l *Lock) Read() *PersistedState {
	return l.cached
}

// Write durably persists newState in its own committed statement, so that
// a crash immediately afterwards leaves this step's progress intact.
func (l *Lock) Write(ctx context.Context, newState *PersistedState) error {
	migrationsJSON, err := json.Marshal(newState.Migrations)
	if err != nil {
		return err
	}

	sqlStr := fmt.Sprintf(`
		UPDATE %s.%s
		SET version = $1, status = $2, current_migration = $3, last_completed_migration = $4, engine_version = $5, migrations = $6
		WHERE id = 1
	`, pq.QuoteIdentifier(l.state.schema), tableName)

	if _, err := l.state.db.ExecContext(ctx, sqlStr, newState.Version, string(newState.Status), newState.CurrentMigration, newState.LastCompletedMigration, newState.EngineVersion, migrationsJSON); err != nil {
		return err
	}
	l.cached = newState
	return nil
}

// Release gives up the advisory lock and returns the dedicated connection
// to the pool.
func (l *Lock) Release() error {
	defer l.conn.Close()
	_, err := l.conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", advisoryLockKey)
	return err
}
