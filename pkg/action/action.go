// SPDX-License-Identifier: Apache-2.0

// Package action implements the closed set of schema-change primitives a
// migration is built from. Every action implements the same three-phase
// contract (Begin, Complete, Abort) plus Describe, which tells the schema
// projector what logical columns the action adds, removes, or renames.
package action

import (
	"context"

	"github.com/db-tools-oss/reshape/pkg/db"
	"github.com/db-tools-oss/reshape/pkg/schema"
)

// Logger is the minimal logging surface an action's phase hooks are given.
// Implementations are expected to attribute log lines to the migration and
// action currently executing.
type Logger interface {
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
}

// ExecutionContext is passed by reference into every phase hook. Actions
// must not reach outside of it for database access or state: this is what
// keeps phase hooks free of global engine state.
type ExecutionContext struct {
	Conn          db.DB
	MigrationName string
	Logger        Logger
	// LockTimeoutMs is the Postgres lock_timeout the engine sets once at the
	// start of each lifecycle call, before any hook runs, so that DDL
	// contending with application traffic fails fast and is retried by
	// db.RDB rather than blocking indefinitely. Hooks need not read it.
	LockTimeoutMs int
}

// Describe is what an action reports to the schema projector: the logical
// columns it adds, removes, or renames, keyed to the physical table it
// touches.
type Describe struct {
	AffectedTable string

	// AddsColumns lists logical columns introduced by this action, with
	// the physical column and default each should project.
	AddsColumns []LogicalColumn

	// RemovesColumns lists logical column names no longer visible after
	// this action.
	RemovesColumns []string

	// Renames maps an old logical column name to its new one, for
	// actions that relabel a column without otherwise touching it.
	Renames map[string]string

	// NewTableName is set by RenameTable; TableCreated and TableRemoved are
	// set by CreateTable and RemoveTable. Together they describe
	// table-level identity changes.
	NewTableName string
	TableRemoved bool
	TableCreated bool

	// PrimaryKey is set by CreateTable to the physical primary key
	// column names of the table it creates.
	PrimaryKey []string
}

// LogicalColumn is one column entry contributed by Describe.
type LogicalColumn struct {
	Name     string
	Physical string
	Default  *string
}

// Action is the contract every schema-change primitive implements.
type Action interface {
	// Begin performs the non-destructive forward step. Must be safe to
	// run while the previous migration's schema is still live, and
	// idempotent: re-invoking after a partial Begin converges silently.
	Begin(ctx context.Context, ec *ExecutionContext) error

	// Complete performs the destructive finalization. Idempotent.
	Complete(ctx context.Context, ec *ExecutionContext) error

	// Abort unwinds Begin. Idempotent.
	Abort(ctx context.Context, ec *ExecutionContext) error

	// Describe reports the logical schema delta this action makes,
	// relative to the schema it is applied on top of. migrationName is
	// needed by actions that derive migration-scoped physical names,
	// such as AlterColumn's shadow column.
	Describe(current *schema.Schema, migrationName string) (*Describe, error)

	// CompleteAutomatically reports whether this action has no
	// destructive step, letting the lifecycle controller skip the
	// manual completion gate.
	CompleteAutomatically() bool

	// Validate checks the action's parameters against the schema it
	// would apply to, returning an *InvalidActionError on violation.
	Validate(current *schema.Schema) error
}
