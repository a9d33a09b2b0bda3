// SPDX-License-Identifier: Apache-2.0

package state

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"golang.org/x/mod/semver"
)

// VersionCompatibility is the result of comparing the running engine
// binary's version against the version stamped into the reserved schema
// when it was first initialized.
type VersionCompatibility int

const (
	VersionCompatCheckSkipped VersionCompatibility = iota
	VersionCompatEngineOlder
	VersionCompatEqual
	VersionCompatEngineNewer
)

// VersionCompatibility compares s's engine binary version against the
// version recorded in the reserved schema. A schema initialized by a newer
// engine than the one now running is a signal the caller should surface: an
// older binary may not understand every action kind a newer one persisted.
//
// Development builds are never checked, on either side of the comparison,
// since there is no meaningful ordering between them.
func (s *State) VersionCompatibility(ctx context.Context) (VersionCompatibility, error) {
	if s.engineVersion == "development" {
		return VersionCompatCheckSkipped, nil
	}

	storedVersion, err := s.storedEngineVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading stored engine version: %w", err)
	}
	if storedVersion == "" || storedVersion == "development" {
		return VersionCompatCheckSkipped, nil
	}

	running := ensureVPrefix(s.engineVersion)
	stored := ensureVPrefix(storedVersion)
	if !semver.IsValid(running) || !semver.IsValid(stored) {
		return VersionCompatCheckSkipped, nil
	}

	switch semver.Compare(semver.Canonical(running), semver.Canonical(stored)) {
	case -1:
		return VersionCompatEngineOlder, nil
	case 1:
		return VersionCompatEngineNewer, nil
	default:
		return VersionCompatEqual, nil
	}
}

func (s *State) storedEngineVersion(ctx context.Context) (string, error) {
	query := fmt.Sprintf("SELECT engine_version FROM %s.%s WHERE id = 1", pq.QuoteIdentifier(s.schema), tableName)
	var version string
	err := s.db.QueryRowContext(ctx, query).Scan(&version)
	return version, err
}

// ensureVPrefix prefixes version with "v" if it lacks one, the form
// golang.org/x/mod/semver requires.
func ensureVPrefix(version string) string {
	if len(version) > 0 && version[0] != 'v' {
		return "v" + version
	}
	return version
}
