// Package ddl renders CREATE TABLE statements from a dialect-neutral model.
//
// Names and types are emitted verbatim: quoting and type mapping belong to
// the storage backend that builds the TableDef.
package ddl

import (
	"fmt"
	"strings"
)

// ColumnDef is one column of a TableDef.
type ColumnDef struct {
	Name     string
	SQLType  string
	Nullable bool
}

// TableDef is a table name plus its ordered columns.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// BuildCreateTableSQL renders
//
//	CREATE TABLE <FQN> (
//	  <name> <type> [NOT NULL],
//	  ...
//	);
func BuildCreateTableSQL(t TableDef) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}

	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("ddl: column %s missing SQLType", name)
		}
		cols[i] = name + " " + typ
		if !c.Nullable {
			cols[i] += " NOT NULL"
		}
	}
	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n);", fqn, strings.Join(cols, ",\n  ")), nil
}
