// SPDX-License-Identifier: Apache-2.0

package action_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/db-tools-oss/reshape/pkg/action"
)

func TestNewColumnDefaultsToNullable(t *testing.T) {
	t.Parallel()

	c := action.NewColumn("name", "text")
	assert.True(t, c.Nullable)
}

func TestColumnValidateRequiresType(t *testing.T) {
	t.Parallel()

	c := action.Column{Name: "name"}
	err := c.Validate()
	require.Error(t, err)
	var fieldErr *action.FieldRequiredError
	assert.ErrorAs(t, err, &fieldErr)
}

func TestColumnDefinitionSQL(t *testing.T) {
	t.Parallel()

	c := action.NewColumn("name", "text").WithNotNull().WithDefault("'unknown'")
	sql := c.ColumnDefinitionSQL(`"name"`)
	assert.Equal(t, `"name" text NOT NULL DEFAULT 'unknown'`, sql)
}

func TestColumnChangesIsRenameOnly(t *testing.T) {
	t.Parallel()

	name := "full_name"
	changes := action.ColumnChanges{Name: &name}
	assert.True(t, changes.IsRenameOnly())
	assert.False(t, changes.IsEmpty())
	assert.False(t, changes.RequiresUpDown())
}

func TestColumnChangesDefaultOnlyDoesNotRequireUpDown(t *testing.T) {
	t.Parallel()

	def := "'NEW DEFAULT'"
	changes := action.ColumnChanges{Default: &def}
	assert.False(t, changes.RequiresUpDown())
	assert.False(t, changes.IsRenameOnly())
	assert.True(t, changes.IsDefaultOnly())
}

func TestColumnChangesTypeChangeRequiresUpDown(t *testing.T) {
	t.Parallel()

	typ := "bigint"
	changes := action.ColumnChanges{Type: &typ}
	assert.True(t, changes.RequiresUpDown())
}
