package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
)

// Canonical contributions columns.
const (
	colID        = "id"
	colCreatedAt = "created_at"
	colEnteredBy = "entered_by"
	colCategory  = "category"
	colCount     = "count"
	colAmount    = "amount"
	colNote      = "note"
)

// writableColumns is the insert order; each column is written only if the
// table has it. Legacy columns mirror their canonical counterparts.
var writableColumns = []string{
	colCreatedAt,
	colEnteredBy,
	colCategory,
	colCount,
	colAmount,
	colNote,
	legacyMember,
	legacyType,
	legacyAmountPKR,
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// tableColumns returns the live column names of table. A missing table
// yields an empty set.
func tableColumns(ctx context.Context, q queryer, table string) (map[string]bool, error) {
	rows, err := q.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return nil, fmt.Errorf("inspect %s columns: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan %s column: %w", table, err)
		}
		cols[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s columns: %w", table, err)
	}
	return cols, nil
}

// Capabilities describes the contributions column set as found at open. It
// carries the prepared insert statement so writes never re-inspect the table.
type Capabilities struct {
	columns   map[string]bool
	insertCol []string
	insertSQL string
}

func newCapabilities(cols map[string]bool) Capabilities {
	c := Capabilities{columns: cols}
	for _, name := range writableColumns {
		if cols[name] {
			c.insertCol = append(c.insertCol, name)
		}
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(c.insertCol)), ", ")
	c.insertSQL = fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		contributionsTable, strings.Join(c.insertCol, ", "), placeholders)
	return c
}

func loadCapabilities(ctx context.Context, q queryer) (Capabilities, error) {
	cols, err := tableColumns(ctx, q, contributionsTable)
	if err != nil {
		return Capabilities{}, err
	}
	if len(cols) == 0 {
		return Capabilities{}, fmt.Errorf("table %s does not exist", contributionsTable)
	}
	return newCapabilities(cols), nil
}

// Columns returns the column names in sorted order.
func (c Capabilities) Columns() []string {
	out := make([]string, 0, len(c.columns))
	for name := range c.columns {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// InsertColumns returns the columns the writer fills, in statement order.
func (c Capabilities) InsertColumns() []string {
	return append([]string(nil), c.insertCol...)
}

// HasLegacyColumns reports whether any legacy column is still present.
func (c Capabilities) HasLegacyColumns() bool {
	return c.columns[legacyMember] || c.columns[legacyType] || c.columns[legacyAmountPKR]
}
