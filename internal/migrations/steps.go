package migrations

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/malsync/internal/dbx"
	"github.com/desertthunder/malsync/internal/schema"
)

// holdingPrefix names the table rows are staged in during a rebuild.
const holdingPrefix = "temp_"

// ApplyStep runs every action of step against q, which is expected to be a
// transaction: a failing action leaves earlier actions of the same step
// applied until the caller rolls back.
func ApplyStep(ctx context.Context, q dbx.DBTX, step schema.Step, logger *log.Logger) error {
	for _, action := range step.Actions {
		if err := applyAction(ctx, q, step.Version, action, logger); err != nil {
			return fmt.Errorf("%s: %w", action, err)
		}
	}
	return nil
}

func applyAction(ctx context.Context, q dbx.DBTX, version int64, action schema.Action, logger *log.Logger) error {
	switch a := action.(type) {
	case schema.CreateTable:
		return createTable(ctx, q, a, logger)
	case schema.AddColumn:
		return addColumn(ctx, q, a, logger)
	case schema.RebuildTable:
		return rebuildTable(ctx, q, version, a, logger)
	default:
		return fmt.Errorf("unknown action %T", action)
	}
}

// createTable creates the table, or skips it when a table of that name already
// holds every column the step declares.
func createTable(ctx context.Context, q dbx.DBTX, a schema.CreateTable, logger *log.Logger) error {
	existing, ok, err := Inspect(ctx, q, a.Table.Name)
	if err != nil {
		return err
	}
	if ok {
		if !knownShape(existing) {
			for _, name := range a.Table.ColumnNames() {
				if !existing.Has(name) {
					return fmt.Errorf("table %s already exists without column %s", a.Table.Name, name)
				}
			}
		}
		logger.Warn("table already present, skipping create", "table", a.Table.Name)
		return nil
	}

	if _, err := q.ExecContext(ctx, a.Table.CreateStatement()); err != nil {
		return fmt.Errorf("failed to create table %s: %w", a.Table.Name, err)
	}
	logger.Debug("created table", "table", a.Table.Name)
	return nil
}

// addColumn appends the column; existing rows take its default. A column that
// is already there is left alone.
func addColumn(ctx context.Context, q dbx.DBTX, a schema.AddColumn, logger *log.Logger) error {
	existing, ok, err := Inspect(ctx, q, a.Table)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("table %s does not exist", a.Table)
	}
	if existing.Has(a.Column.Name) {
		logger.Warn("column already present, skipping add", "table", a.Table, "column", a.Column.Name)
		return nil
	}

	if _, err := q.ExecContext(ctx, a.Statement()); err != nil {
		return fmt.Errorf("failed to add column %s.%s: %w", a.Table, a.Column.Name, err)
	}
	logger.Debug("added column", "table", a.Table, "column", a.Column.Name)
	return nil
}

// rebuildTable recreates the table at the new shape. Only the columns both
// shapes share are copied, named explicitly in old order, so a column the new
// shape drops cannot leak through. Row counts must match across the copy.
// A table already at the shape of version or any later one is left alone.
func rebuildTable(ctx context.Context, q dbx.DBTX, version int64, a schema.RebuildTable, logger *log.Logger) error {
	name := a.New.Name
	existing, ok, err := Inspect(ctx, q, name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("table %s does not exist", name)
	}
	if existing.Equal(a.New) || shapeSince(existing, version) {
		logger.Warn("table already at or past this shape, skipping rebuild", "table", name, "version", version)
		return nil
	}

	carried := a.Carried()
	for _, c := range carried {
		if !existing.Has(c) {
			return fmt.Errorf("table %s has no column %s to carry over", name, c)
		}
	}
	cols := strings.Join(carried, ", ")
	holding := holdingPrefix + name

	before, err := CountRows(ctx, q, name)
	if err != nil {
		return err
	}

	stmts := []string{
		fmt.Sprintf("DROP TABLE IF EXISTS %s", holding),
		fmt.Sprintf("CREATE TABLE %s AS SELECT %s FROM %s", holding, cols, name),
		fmt.Sprintf("DROP TABLE %s", name),
		a.New.CreateStatement(),
		fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s", name, cols, cols, holding),
		fmt.Sprintf("DROP TABLE %s", holding),
	}
	for _, stmt := range stmts {
		if _, err := q.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to rebuild %s: %w", name, err)
		}
	}

	after, err := CountRows(ctx, q, name)
	if err != nil {
		return err
	}
	if before != after {
		return fmt.Errorf("rebuild of %s changed row count from %d to %d", name, before, after)
	}

	logger.Debug("rebuilt table", "table", name, "rows", after, "dropped", a.Dropped())
	return nil
}

// knownShape reports whether t matches the catalog's shape for that table at
// some version, which means a later step already replaced what this step
// would create.
func knownShape(t schema.Table) bool {
	return shapeSince(t, 1)
}

// shapeSince reports whether t matches the catalog's shape for that table at
// version from or any later one.
func shapeSince(t schema.Table, from int64) bool {
	if current, ok := schema.Lookup(t.Name); ok && current.Equal(t) {
		return true
	}
	for v := max(from, 1); v < schema.CurrentVersion; v++ {
		shapes, err := schema.ShapeAt(v)
		if err != nil {
			return false
		}
		if s, ok := shapes[t.Name]; ok && s.Equal(t) {
			return true
		}
	}
	return false
}
