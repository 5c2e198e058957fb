package schema

import (
	"fmt"
	"slices"
)

// Action is one change a [Step] makes. The concrete variants are
// [CreateTable], [AddColumn] and [RebuildTable].
type Action interface {
	// TableName is the table the action touches.
	TableName() string
	// String describes the action for logs.
	String() string

	fold(shapes map[string]Table) error
}

// CreateTable adds a table that did not exist before.
type CreateTable struct {
	Table Table
}

func (a CreateTable) TableName() string { return a.Table.Name }
func (a CreateTable) String() string    { return "create table " + a.Table.Name }

func (a CreateTable) fold(shapes map[string]Table) error {
	if _, ok := shapes[a.Table.Name]; ok {
		return fmt.Errorf("create table %s: already exists", a.Table.Name)
	}
	shapes[a.Table.Name] = a.Table
	return nil
}

// AddColumn appends a column to an existing table. Existing rows receive the
// column's default, so a NOT NULL column must carry one.
type AddColumn struct {
	Table  string
	Column Column
}

func (a AddColumn) TableName() string { return a.Table }
func (a AddColumn) String() string    { return fmt.Sprintf("add column %s.%s", a.Table, a.Column.Name) }

// Statement renders the ALTER TABLE statement.
func (a AddColumn) Statement() string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", a.Table, a.Column.Definition())
}

func (a AddColumn) fold(shapes map[string]Table) error {
	t, ok := shapes[a.Table]
	if !ok {
		return fmt.Errorf("add column %s.%s: no such table", a.Table, a.Column.Name)
	}
	if t.Has(a.Column.Name) {
		return fmt.Errorf("add column %s.%s: already exists", a.Table, a.Column.Name)
	}
	if a.Column.NotNull && a.Column.Default == "" {
		return fmt.Errorf("add column %s.%s: NOT NULL column needs a default", a.Table, a.Column.Name)
	}
	if a.Column.PrimaryKey || a.Column.Unique {
		return fmt.Errorf("add column %s.%s: constrained columns need a rebuild", a.Table, a.Column.Name)
	}
	shapes[a.Table] = t.With(a.Column)
	return nil
}

// RebuildTable recreates a table under a new shape by staging its rows in a
// holding table. Old must describe exactly what is on disk before the step.
type RebuildTable struct {
	Old Table
	New Table
}

func (a RebuildTable) TableName() string { return a.New.Name }
func (a RebuildTable) String() string    { return "rebuild table " + a.New.Name }

// Carried lists the columns copied across the rebuild: those present in both
// shapes, in the old shape's order. Columns only in Old are dropped; columns
// only in New take their default.
func (a RebuildTable) Carried() []string {
	var cols []string
	for _, c := range a.Old.Columns {
		if a.New.Has(c.Name) {
			cols = append(cols, c.Name)
		}
	}
	return cols
}

// Dropped lists the columns of Old that New no longer has.
func (a RebuildTable) Dropped() []string {
	var cols []string
	for _, c := range a.Old.Columns {
		if !a.New.Has(c.Name) {
			cols = append(cols, c.Name)
		}
	}
	return cols
}

func (a RebuildTable) fold(shapes map[string]Table) error {
	if a.Old.Name != a.New.Name {
		return fmt.Errorf("rebuild %s: renaming to %s is not supported", a.Old.Name, a.New.Name)
	}
	t, ok := shapes[a.Old.Name]
	if !ok {
		return fmt.Errorf("rebuild %s: no such table", a.Old.Name)
	}
	if !t.Equal(a.Old) {
		return fmt.Errorf("rebuild %s: old shape does not match the shape on disk at this version", a.Old.Name)
	}
	if len(a.Carried()) == 0 {
		return fmt.Errorf("rebuild %s: no columns carried over", a.Old.Name)
	}
	for _, c := range a.New.Columns {
		if a.Old.Has(c.Name) || c.PrimaryKey {
			continue
		}
		if c.NotNull && c.Default == "" {
			return fmt.Errorf("rebuild %s: new NOT NULL column %s needs a default", a.Old.Name, c.Name)
		}
	}
	shapes[a.New.Name] = a.New
	return nil
}

// Step is every action that brings a store to Version. A store whose version
// is below Version runs the step; steps are cumulative.
type Step struct {
	Version     int64
	Description string
	Actions     []Action
}

// Pending returns the steps a store at version from must run to reach to, in
// increasing version order.
func Pending(from, to int64) []Step {
	var out []Step
	for _, s := range Steps() {
		if s.Version > from && s.Version <= to {
			out = append(out, s)
		}
	}
	return out
}

// ShapeAt replays the steps up to and including version over an empty schema
// and returns the resulting tables keyed by name.
func ShapeAt(version int64) (map[string]Table, error) {
	if version < 0 || version > CurrentVersion {
		return nil, fmt.Errorf("schema version %d outside 0..%d", version, CurrentVersion)
	}
	shapes := make(map[string]Table)
	for _, s := range Pending(0, version) {
		for _, a := range s.Actions {
			if err := a.fold(shapes); err != nil {
				return nil, fmt.Errorf("version %d: %w", s.Version, err)
			}
		}
	}
	return shapes, nil
}

// Validate checks that the step list is contiguous from 1 to CurrentVersion
// and that replaying it produces exactly the current table descriptors.
func Validate() error {
	steps := Steps()
	for i, s := range steps {
		if s.Version != int64(i+1) {
			return fmt.Errorf("step %d has version %d, want %d", i, s.Version, i+1)
		}
		if len(s.Actions) == 0 {
			return fmt.Errorf("step %d has no actions", s.Version)
		}
	}
	if len(steps) == 0 || steps[len(steps)-1].Version != CurrentVersion {
		return fmt.Errorf("steps do not end at current version %d", CurrentVersion)
	}

	shapes, err := ShapeAt(CurrentVersion)
	if err != nil {
		return err
	}
	current := Tables()
	if len(shapes) != len(current) {
		return fmt.Errorf("steps produce %d tables, current schema has %d", len(shapes), len(current))
	}
	for _, t := range current {
		got, ok := shapes[t.Name]
		if !ok {
			return fmt.Errorf("steps never create table %s", t.Name)
		}
		if !got.Equal(t) {
			return fmt.Errorf("steps produce a different shape for table %s", t.Name)
		}
	}
	return nil
}

// TableNames returns the names of the current tables in creation order.
func TableNames() []string {
	tables := Tables()
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.Name
	}
	return slices.Clip(names)
}
