// SPDX-License-Identifier: Apache-2.0

package action

import (
	"context"

	"github.com/db-tools-oss/reshape/pkg/schema"
)

// Custom runs operator-supplied raw SQL for each phase. It is an escape
// hatch for schema changes the closed action taxonomy cannot express; the
// operator is responsible for idempotency of each fragment.
type Custom struct {
	Up           string `json:"up,omitempty"`
	Down         string `json:"down,omitempty"`
	OnComplete   string `json:"on_complete,omitempty"`
	AutoComplete bool   `json:"auto_complete,omitempty"`
}

func (a *Custom) Validate(current *schema.Schema) error {
	if a.Up == "" {
		return &FieldRequiredError{Name: "up"}
	}
	return nil
}

func (a *Custom) Begin(ctx context.Context, ec *ExecutionContext) error {
	_, err := ec.Conn.ExecContext(ctx, a.Up)
	return err
}

func (a *Custom) Complete(ctx context.Context, ec *ExecutionContext) error {
	if a.OnComplete == "" {
		return nil
	}
	_, err := ec.Conn.ExecContext(ctx, a.OnComplete)
	return err
}

func (a *Custom) Abort(ctx context.Context, ec *ExecutionContext) error {
	if a.Down == "" {
		return nil
	}
	_, err := ec.Conn.ExecContext(ctx, a.Down)
	return err
}

func (a *Custom) Describe(current *schema.Schema, migrationName string) (*Describe, error) {
	return &Describe{}, nil
}

func (a *Custom) CompleteAutomatically() bool { return a.AutoComplete }
