// Package schema describes the cache's tables as data: ordered column
// descriptors for every table at the current version, and the ordered list of
// steps that carried older stores forward to it.
//
// Nothing here touches a database. The migration engine turns these
// descriptors into SQL, and [ShapeAt] replays the steps over descriptors alone
// so the CREATE path and the upgrade path can be compared mechanically.
package schema

import (
	"fmt"
	"slices"
	"strings"
)

// Column is one column of a table.
type Column struct {
	Name string
	// Type is the declared SQLite type (INTEGER, VARCHAR, FLOAT, DOUBLE, BOOLEAN).
	Type string
	// PrimaryKey marks the surrogate INTEGER PRIMARY KEY AUTOINCREMENT column.
	PrimaryKey bool
	Unique     bool
	NotNull    bool
	// Default is a SQL literal; empty means no default.
	Default string
}

// Definition renders the column as it appears inside CREATE TABLE.
func (c Column) Definition() string {
	var b strings.Builder
	b.WriteString(c.Name)
	b.WriteString(" ")
	b.WriteString(c.Type)
	if c.PrimaryKey {
		b.WriteString(" PRIMARY KEY AUTOINCREMENT")
	}
	if c.Unique {
		b.WriteString(" UNIQUE")
	}
	if c.NotNull {
		b.WriteString(" NOT NULL")
	}
	if c.Default != "" {
		b.WriteString(" DEFAULT ")
		b.WriteString(c.Default)
	}
	return b.String()
}

// Table is a named, ordered column set.
type Table struct {
	Name    string
	Columns []Column
}

// CreateStatement renders the CREATE TABLE statement for t.
func (t Table) CreateStatement() string {
	defs := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		defs[i] = c.Definition()
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", t.Name, strings.Join(defs, ", "))
}

// ColumnNames returns the column names in declaration order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Column looks up a column by name.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Has reports whether t declares a column called name.
func (t Table) Has(name string) bool {
	_, ok := t.Column(name)
	return ok
}

// NaturalKey returns the first UNIQUE column, or "" if the table has none.
func (t Table) NaturalKey() string {
	for _, c := range t.Columns {
		if c.Unique {
			return c.Name
		}
	}
	return ""
}

// Equal reports whether two tables have the same name and identical columns in the same order.
func (t Table) Equal(o Table) bool {
	return t.Name == o.Name && slices.Equal(t.Columns, o.Columns)
}

// With returns a copy of t with cols appended.
func (t Table) With(cols ...Column) Table {
	out := t.clone()
	out.Columns = append(out.Columns, cols...)
	return out
}

// Replace returns a copy of t where each column in cols replaces the
// same-named column in place. Unknown names panic; catalog definitions are
// static, so a typo is a programming error.
func (t Table) Replace(cols ...Column) Table {
	out := t.clone()
	for _, c := range cols {
		i := slices.IndexFunc(out.Columns, func(x Column) bool { return x.Name == c.Name })
		if i < 0 {
			panic(fmt.Sprintf("schema: table %s has no column %s", t.Name, c.Name))
		}
		out.Columns[i] = c
	}
	return out
}

// Without returns a copy of t minus the named columns.
func (t Table) Without(names ...string) Table {
	out := t.clone()
	out.Columns = slices.DeleteFunc(out.Columns, func(c Column) bool {
		return slices.Contains(names, c.Name)
	})
	return out
}

func (t Table) clone() Table {
	return Table{Name: t.Name, Columns: slices.Clone(t.Columns)}
}
