// SPDX-License-Identifier: Apache-2.0

package project

import (
	"bytes"
	"text/template"

	"github.com/lib/pq"
)

var funcMap = template.FuncMap{
	"qi": pq.QuoteIdentifier,
	"ql": pq.QuoteLiteral,
}

// ColumnMapping is one logical-to-physical column projection within a
// migration's view of a table.
type ColumnMapping struct {
	Logical  string
	Physical string
	Default  *string
}

// ViewParams parameterizes the CREATE VIEW statement for one table within
// one migration's namespace.
type ViewParams struct {
	Namespace     string
	TargetSchema  string
	View          string
	Table         string
	Columns       []ColumnMapping
	SecurityInvoker bool
}

var viewTmpl = template.Must(template.New("view").Funcs(funcMap).Parse(`
CREATE OR REPLACE VIEW {{qi .Namespace}}.{{qi .View}} AS
SELECT
{{range $i, $c := .Columns}}{{if $i}},
{{end}}  {{qi $c.Physical}} AS {{qi $c.Logical}}{{end}}
FROM {{qi .TargetSchema}}.{{qi .Table}};
{{range .Columns}}{{if .Default}}
ALTER VIEW {{qi $.Namespace}}.{{qi $.View}} ALTER COLUMN {{qi .Logical}} SET DEFAULT {{.Default}};
{{end}}{{end}}
{{if .SecurityInvoker}}
ALTER VIEW {{qi .Namespace}}.{{qi .View}} SET (security_invoker = true);
{{end}}
`))

// RenderView renders the CREATE VIEW (and follow-up ALTER VIEW) statements
// for p.
func RenderView(p ViewParams) (string, error) {
	var buf bytes.Buffer
	if err := viewTmpl.Execute(&buf, p); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// InsteadOfParams parameterizes the three INSTEAD OF trigger functions
// (insert/update/delete) generated for one view.
type InsteadOfParams struct {
	Namespace    string
	TargetSchema string
	View         string
	Table        string
	Columns      []ColumnMapping
	PrimaryKey   []string // physical column names
}

var insteadOfInsertTmpl = template.Must(template.New("instead_of_insert").Funcs(funcMap).Parse(`
CREATE OR REPLACE FUNCTION {{qi .Namespace}}.{{.View}}_insert() RETURNS TRIGGER AS $$
BEGIN
  INSERT INTO {{qi .TargetSchema}}.{{qi .Table}} (
    {{range $i, $c := .Columns}}{{if $i}}, {{end}}{{qi $c.Physical}}{{end}}
  ) VALUES (
    {{range $i, $c := .Columns}}{{if $i}}, {{end}}NEW.{{qi $c.Logical}}{{end}}
  );
  RETURN NEW;
END;
$$ LANGUAGE plpgsql;

CREATE TRIGGER {{.View}}_insert
INSTEAD OF INSERT ON {{qi .Namespace}}.{{qi .View}}
FOR EACH ROW EXECUTE PROCEDURE {{qi .Namespace}}.{{.View}}_insert();
`))

var insteadOfUpdateTmpl = template.Must(template.New("instead_of_update").Funcs(funcMap).Parse(`
CREATE OR REPLACE FUNCTION {{qi .Namespace}}.{{.View}}_update() RETURNS TRIGGER AS $$
BEGIN
  UPDATE {{qi .TargetSchema}}.{{qi .Table}} SET
    {{range $i, $c := .Columns}}{{if $i}},
    {{end}}{{qi $c.Physical}} = NEW.{{qi $c.Logical}}{{end}}
  WHERE {{range $i, $pk := .PrimaryKey}}{{if $i}} AND {{end}}{{qi $pk}} = OLD.{{qi $pk}}{{end}};
  RETURN NEW;
END;
$$ LANGUAGE plpgsql;

CREATE TRIGGER {{.View}}_update
INSTEAD OF UPDATE ON {{qi .Namespace}}.{{qi .View}}
FOR EACH ROW EXECUTE PROCEDURE {{qi .Namespace}}.{{.View}}_update();
`))

var insteadOfDeleteTmpl = template.Must(template.New("instead_of_delete").Funcs(funcMap).Parse(`
CREATE OR REPLACE FUNCTION {{qi .Namespace}}.{{.View}}_delete() RETURNS TRIGGER AS $$
BEGIN
  DELETE FROM {{qi .TargetSchema}}.{{qi .Table}}
  WHERE {{range $i, $pk := .PrimaryKey}}{{if $i}} AND {{end}}{{qi $pk}} = OLD.{{qi $pk}}{{end}};
  RETURN OLD;
END;
$$ LANGUAGE plpgsql;

CREATE TRIGGER {{.View}}_delete
INSTEAD OF DELETE ON {{qi .Namespace}}.{{qi .View}}
FOR EACH ROW EXECUTE PROCEDURE {{qi .Namespace}}.{{.View}}_delete();
`))

// RenderInsteadOfTriggers renders the insert/update/delete INSTEAD OF
// trigger functions and triggers for p.
func RenderInsteadOfTriggers(p InsteadOfParams) (string, error) {
	var buf bytes.Buffer
	for _, t := range []*template.Template{insteadOfInsertTmpl, insteadOfUpdateTmpl, insteadOfDeleteTmpl} {
		if len(p.PrimaryKey) == 0 && t != insteadOfInsertTmpl {
			continue
		}
		if err := t.Execute(&buf, p); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}
