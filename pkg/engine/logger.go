// SPDX-License-Identifier: Apache-2.0

package engine

import "github.com/pterm/pterm"

// ptermLogger adapts pterm's structured logger to action.Logger.
type ptermLogger struct {
	logger pterm.Logger
}

// NewLogger returns an action.Logger backed by pterm's default logger.
func NewLogger() *ptermLogger {
	return &ptermLogger{logger: pterm.DefaultLogger}
}

func (l *ptermLogger) Info(msg string, args ...interface{}) {
	l.logger.Info(msg, l.logger.Args(args))
}

func (l *ptermLogger) Warn(msg string, args ...interface{}) {
	l.logger.Warn(msg, l.logger.Args(args))
}

type noopLogger struct{}

// NewNoopLogger returns an action.Logger that discards everything, the
// default for engines constructed without WithLogger.
func NewNoopLogger() *noopLogger {
	return &noopLogger{}
}

func (noopLogger) Info(msg string, args ...interface{}) {}
func (noopLogger) Warn(msg string, args ...interface{}) {}
