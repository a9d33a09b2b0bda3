// SPDX-License-Identifier: Apache-2.0

package engine

import "github.com/db-tools-oss/reshape/pkg/action"

const defaultLockTimeoutMs = 3000

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithLockTimeoutMs sets the Postgres lock_timeout applied for the
// duration of every phase hook. DDL that would otherwise block on
// application traffic fails fast with a retryable 55P03 instead.
func WithLockTimeoutMs(ms int) Option {
	return func(e *Engine) {
		e.lockTimeoutMs = ms
	}
}

// WithLogger overrides the engine's logger, which is the no-op logger by
// default.
func WithLogger(l action.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithNoWait makes lifecycle calls fail immediately with ErrBusy when
// another engine instance holds the state lock, instead of blocking until
// it is released.
func WithNoWait() Option {
	return func(e *Engine) {
		e.noWaitLock = true
	}
}

// WithPGMajorVersion overrides the Postgres major version the engine
// detects by querying server_version_num, primarily for tests that need to
// pin behaviour (e.g. security_invoker views) independent of the test
// container's actual version.
func WithPGMajorVersion(v int) Option {
	return func(e *Engine) {
		e.pgMajorVersion = v
		e.pgVersionPinned = true
	}
}

// WithEngineVersion stamps the engine binary's own version into the
// reserved schema on first Init, and is later compared against on
// subsequent opens by CheckVersionCompatibility. Defaults to "development",
// which disables the check entirely.
func WithEngineVersion(v string) Option {
	return func(e *Engine) {
		e.engineVersion = v
	}
}
