package migrations

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/desertthunder/malsync/internal/dbx"
	"github.com/desertthunder/malsync/internal/schema"
)

// TableExists reports whether name is a table in the open store.
func TableExists(ctx context.Context, q dbx.DBTX, name string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to look up table %s: %w", name, err)
	}
	return n > 0, nil
}

// Inspect reads the on-disk shape of a table back into a descriptor, so it can
// be compared against the catalog. The second return is false when the table
// does not exist.
func Inspect(ctx context.Context, q dbx.DBTX, name string) (schema.Table, bool, error) {
	exists, err := TableExists(ctx, q, name)
	if err != nil || !exists {
		return schema.Table{}, false, err
	}

	rows, err := q.QueryContext(ctx,
		`SELECT name, type, "notnull", dflt_value, pk FROM pragma_table_info(?) ORDER BY cid`, name)
	if err != nil {
		return schema.Table{}, false, fmt.Errorf("failed to read columns of %s: %w", name, err)
	}
	defer rows.Close()

	t := schema.Table{Name: name}
	for rows.Next() {
		var (
			c       schema.Column
			notNull int
			pk      int
			dflt    sql.NullString
		)
		if err := rows.Scan(&c.Name, &c.Type, &notNull, &dflt, &pk); err != nil {
			return schema.Table{}, false, fmt.Errorf("failed to scan column of %s: %w", name, err)
		}
		c.NotNull = notNull != 0
		c.PrimaryKey = pk > 0
		c.Default = dflt.String
		t.Columns = append(t.Columns, c)
	}
	if err := rows.Err(); err != nil {
		return schema.Table{}, false, err
	}
	if err := rows.Close(); err != nil {
		return schema.Table{}, false, err
	}

	uniques, err := uniqueColumns(ctx, q, name)
	if err != nil {
		return schema.Table{}, false, err
	}
	for i := range t.Columns {
		if uniques[t.Columns[i].Name] {
			t.Columns[i].Unique = true
		}
	}
	return t, true, nil
}

// uniqueColumns returns the columns covered by a single-column UNIQUE
// constraint declared in the table definition.
func uniqueColumns(ctx context.Context, q dbx.DBTX, table string) (map[string]bool, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT name FROM pragma_index_list(?) WHERE "unique" = 1 AND origin = 'u'`, table)
	if err != nil {
		return nil, fmt.Errorf("failed to read indexes of %s: %w", table, err)
	}
	var indexes []string
	for rows.Next() {
		var idx string
		if err := rows.Scan(&idx); err != nil {
			rows.Close()
			return nil, err
		}
		indexes = append(indexes, idx)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make(map[string]bool)
	for _, idx := range indexes {
		var cols []string
		rows, err := q.QueryContext(ctx, `SELECT name FROM pragma_index_info(?)`, idx)
		if err != nil {
			return nil, fmt.Errorf("failed to read index %s: %w", idx, err)
		}
		for rows.Next() {
			var col string
			if err := rows.Scan(&col); err != nil {
				rows.Close()
				return nil, err
			}
			cols = append(cols, col)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
		if len(cols) == 1 {
			out[cols[0]] = true
		}
	}
	return out, nil
}

// CountRows returns the number of rows in table.
func CountRows(ctx context.Context, q dbx.DBTX, table string) (int64, error) {
	var n int64
	if err := q.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rows in %s: %w", table, err)
	}
	return n, nil
}
