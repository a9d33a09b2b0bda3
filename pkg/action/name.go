// SPDX-License-Identifier: Apache-2.0

package action

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
)

// maxIdentifierLength is Postgres's NAMEDATALEN - 1.
const maxIdentifierLength = 63

// identifierPattern is the grammar a user-supplied name (table, column,
// index, migration) must satisfy.
var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidateIdentifier reports whether name is a legal identifier for use as a
// table, column, index, or migration name.
func ValidateIdentifier(name string) error {
	if name == "" {
		return &FieldRequiredError{Name: "name"}
	}
	if !identifierPattern.MatchString(name) {
		return &InvalidIdentifierError{Name: name}
	}
	return nil
}

// TempColumnName derives the shadow column name for an in-flight alteration
// of column within migration. When the natural name would exceed
// Postgres's identifier length limit, it is truncated and a content hash
// suffix is appended so that two overflowing names never collide.
func TempColumnName(column, migration string) string {
	return deriveName(fmt.Sprintf("__reshape_tmp_%s_%s", column, migration))
}

// TempIndexName derives a transient index name used while rebuilding an
// index under its original name during AlterColumn's complete phase.
func TempIndexName(index, migration string) string {
	return deriveName(fmt.Sprintf("__reshape_tmp_idx_%s_%s", index, migration))
}

// TriggerName derives the name of the row-level trigger pair installed for
// an altered column.
func TriggerName(table, column, migration string) string {
	return deriveName(fmt.Sprintf("__reshape_trigger_%s_%s_%s", table, column, migration))
}

// deriveName returns name unchanged if it fits within Postgres's identifier
// length limit. Otherwise it truncates the name and appends an 8 character
// hash suffix derived from the full, untruncated name, so that two distinct
// long names never collide after truncation.
func deriveName(name string) string {
	if len(name) <= maxIdentifierLength {
		return name
	}

	sum := sha256.Sum256([]byte(name))
	suffix := "_" + hex.EncodeToString(sum[:])[:8]

	keep := maxIdentifierLength - len(suffix)
	return name[:keep] + suffix
}
