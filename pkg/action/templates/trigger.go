// SPDX-License-Identifier: Apache-2.0

// Package templates renders the SQL fragments that trigger.go's trigger
// machinery installs: the projection function body and the trigger that
// binds it to a table.
package templates

import (
	"bytes"
	"text/template"

	"github.com/lib/pq"
)

var funcMap = template.FuncMap{
	"qi": pq.QuoteIdentifier,
	"ql": pq.QuoteLiteral,
}

// TriggerFunctionParams parameterizes the projection function generated for
// an in-flight AlterColumn.
type TriggerFunctionParams struct {
	Function      string
	Table         string
	Original      string
	Shadow        string
	Up            string
	Down          string
	Migration     string
	VersionVar    string
}

// The up/down SQL a caller supplies references the altered column by its
// own bare identifier in both directions (e.g. "LOWER(name)" for down,
// "UPPER(name)" for up) - the same textual placeholder regardless of which
// physical column actually holds the value at that point. Relying on
// (NEW).* to bind that bare identifier gets the direction wrong: it always
// resolves to the physical original column, which is exactly backwards for
// the down branch once a write has landed only in the shadow column. Each
// branch instead declares its own local variable named after the original
// column, bound explicitly to the physical column holding the value for
// that direction, so the bare identifier in .Up/.Down resolves correctly
// regardless of which physical column actually backs it.
var triggerFunctionTmpl = template.Must(template.New("trigger_function").Funcs(funcMap).Parse(`
CREATE OR REPLACE FUNCTION {{qi .Function}}()
RETURNS TRIGGER AS $$
BEGIN
  IF current_setting({{ql .VersionVar}}, TRUE) = {{ql .Migration}} THEN
    DECLARE
      {{qi .Original}} {{qi .Table}}.{{qi .Shadow}}%TYPE := NEW.{{qi .Shadow}};
    BEGIN
      NEW.{{qi .Original}} = {{.Down}};
    END;
  ELSE
    DECLARE
      {{qi .Original}} {{qi .Table}}.{{qi .Original}}%TYPE := NEW.{{qi .Original}};
    BEGIN
      NEW.{{qi .Shadow}} = {{.Up}};
    END;
  END IF;
  RETURN NEW;
END;
$$ LANGUAGE plpgsql;
`))

// RenderTriggerFunction renders the CREATE OR REPLACE FUNCTION statement
// for an AlterColumn's projection trigger.
func RenderTriggerFunction(p TriggerFunctionParams) (string, error) {
	var buf bytes.Buffer
	if err := triggerFunctionTmpl.Execute(&buf, p); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// TriggerParams parameterizes the CREATE TRIGGER statement binding a
// projection function to its table.
type TriggerParams struct {
	Trigger  string
	Function string
	Table    string
}

var triggerTmpl = template.Must(template.New("trigger").Funcs(funcMap).Parse(`
CREATE TRIGGER {{qi .Trigger}}
BEFORE INSERT OR UPDATE ON {{qi .Table}}
FOR EACH ROW
EXECUTE PROCEDURE {{qi .Function}}();
`))

// RenderTrigger renders the CREATE TRIGGER statement for p.
func RenderTrigger(p TriggerParams) (string, error) {
	var buf bytes.Buffer
	if err := triggerTmpl.Execute(&buf, p); err != nil {
		return "", err
	}
	return buf.String(), nil
}
