// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"errors"
	"fmt"
)

// ErrAbortInProgress is returned by Migrate when the engine's persisted
// state is Aborting: a previous Abort call did not run to completion, and
// the caller must call Abort again before migrating further.
var ErrAbortInProgress = errors.New("a previous abort did not complete; call Abort again before migrating")

// ErrBusy is returned when the state lock is held by another engine
// instance and the engine was constructed with WithNoWait.
var ErrBusy = errors.New("another engine instance holds the state lock")

// ErrNothingToComplete is returned by Complete when no migration is in
// progress.
var ErrNothingToComplete = errors.New("no migration is in progress to complete")

// ErrNothingToAbort is returned by Abort when no migration is in progress.
var ErrNothingToAbort = errors.New("no migration is in progress to abort")

// MigrationHistoryConflictError reports that the caller's migration list
// disagrees with persisted history, re-exported at the engine boundary so
// callers need not import pkg/plan to type-switch on it.
type MigrationHistoryConflictError struct {
	Err error
}

func (e *MigrationHistoryConflictError) Error() string {
	return e.Err.Error()
}

func (e *MigrationHistoryConflictError) Unwrap() error {
	return e.Err
}

// InvalidActionError reports that a migration's action failed Validate
// against the schema it would apply to.
type InvalidActionError struct {
	Migration string
	Err       error
}

func (e *InvalidActionError) Error() string {
	return fmt.Sprintf("migration %q: invalid action: %v", e.Migration, e.Err)
}

func (e *InvalidActionError) Unwrap() error {
	return e.Err
}

// UnknownMigrationError reports a migration name not present in persisted
// history. No operation in this package currently returns it.
type UnknownMigrationError struct {
	Name string
}

func (e *UnknownMigrationError) Error() string {
	return fmt.Sprintf("unknown migration %q", e.Name)
}

// DatabaseError wraps a failure from a specific phase hook with enough
// context (which migration, which action, which phase) to diagnose without
// re-deriving it from a bare driver error.
type DatabaseError struct {
	Migration string
	Action    string
	Phase     string
	Err       error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("migration %q: action %s: %s failed: %v", e.Migration, e.Action, e.Phase, e.Err)
}

func (e *DatabaseError) Unwrap() error {
	return e.Err
}
