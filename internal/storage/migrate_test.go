package storage

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasbeeh/internal/core"
)

type tableSnapshot struct {
	columns []string
	rows    [][]any
}

func snapshot(t *testing.T, db *sql.DB) tableSnapshot {
	t.Helper()
	rows, err := db.Query(`SELECT * FROM contributions ORDER BY id`)
	require.NoError(t, err)
	defer rows.Close()

	cols, err := rows.Columns()
	require.NoError(t, err)

	var out tableSnapshot
	out.columns = append([]string(nil), cols...)
	sort.Strings(out.columns)
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		require.NoError(t, rows.Scan(ptrs...))
		out.rows = append(out.rows, vals)
	}
	require.NoError(t, rows.Err())
	return out
}

type legacyRow struct {
	enteredBy string
	category  string
	count     int64
	amount    int64
}

func readCanonical(t *testing.T, db *sql.DB) []legacyRow {
	t.Helper()
	rows, err := db.Query(`SELECT entered_by, category, count, amount FROM contributions ORDER BY id`)
	require.NoError(t, err)
	defer rows.Close()

	var out []legacyRow
	for rows.Next() {
		var r legacyRow
		require.NoError(t, rows.Scan(&r.enteredBy, &r.category, &r.count, &r.amount))
		out = append(out, r)
	}
	require.NoError(t, rows.Err())
	return out
}

func TestMigrateLegacyMemberTypeTable(t *testing.T) {
	s, path := newTestStore(t)
	seed := rawDB(t, path)
	_, err := seed.Exec(`
		CREATE TABLE contributions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at TEXT NOT NULL,
			member TEXT,
			type TEXT,
			note TEXT
		);
		INSERT INTO contributions (created_at, member, type, note) VALUES
			('2024-12-01T10:00:00.000000', 'Aisha', 'Zikr', NULL),
			('2024-12-01T11:00:00.000000', NULL, NULL, 'old'),
			('2024-12-02T09:00:00.000000', '   ', 'Sadaqah', NULL),
			('2024-12-02T09:30:00.000000', 'Omar', 'recitation', NULL);
	`)
	require.NoError(t, err)
	seed.Close()

	db, err := s.Open(context.Background())
	require.NoError(t, err)

	got := readCanonical(t, db)
	assert.Equal(t, []legacyRow{
		{"Aisha", core.CategoryZikr, 1, 0},
		{core.DefaultMember, core.DefaultCategory, 1, 0},
		{core.DefaultMember, core.CategorySadaqah, 1, 0},
		{"Omar", "recitation", 1, 0},
	}, got)

	caps, err := s.Capabilities(context.Background())
	require.NoError(t, err)
	assert.True(t, caps.HasLegacyColumns())
}

func TestMigrateWithoutLegacySources(t *testing.T) {
	s, path := newTestStore(t)
	seed := rawDB(t, path)
	_, err := seed.Exec(`
		CREATE TABLE contributions (id INTEGER PRIMARY KEY AUTOINCREMENT, created_at TEXT NOT NULL, note TEXT);
		INSERT INTO contributions (created_at) VALUES ('2024-01-01T00:00:00'), ('2024-01-02T00:00:00');
	`)
	require.NoError(t, err)
	seed.Close()

	db, err := s.Open(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []legacyRow{
		{core.DefaultMember, core.DefaultCategory, 1, 0},
		{core.DefaultMember, core.DefaultCategory, 1, 0},
	}, readCanonical(t, db))
}

func TestMigrateBackfillsAmountFromAmountPKR(t *testing.T) {
	s, path := newTestStore(t)
	seed := rawDB(t, path)
	_, err := seed.Exec(`
		CREATE TABLE contributions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at TEXT NOT NULL,
			entered_by TEXT NOT NULL,
			category TEXT NOT NULL,
			count INTEGER NOT NULL,
			amount_pkr INTEGER NOT NULL DEFAULT 0,
			note TEXT
		);
		INSERT INTO contributions (created_at, entered_by, category, count, amount_pkr) VALUES
			('2025-02-01T08:00:00.000000', 'Bilal', 'Sadaqah', 1, 500),
			('2025-02-01T09:00:00.000000', 'Bilal', 'Zikr', 33, 0);
	`)
	require.NoError(t, err)
	seed.Close()

	db, err := s.Open(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []legacyRow{
		{"Bilal", core.CategorySadaqah, 1, 500},
		{"Bilal", core.CategoryZikr, 33, 0},
	}, readCanonical(t, db))

	rows, err := s.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(500), core.MonetaryTotal(rows, core.CategorySadaqah))
}

func TestMigrateExistingCanonicalColumnIgnoresLegacy(t *testing.T) {
	s, path := newTestStore(t)
	seed := rawDB(t, path)
	_, err := seed.Exec(`
		CREATE TABLE contributions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at TEXT NOT NULL,
			entered_by TEXT,
			member TEXT,
			type TEXT
		);
		INSERT INTO contributions (created_at, entered_by, member, type) VALUES
			('2025-01-01T00:00:00', 'Bilal', 'Old Name', 'Zikr'),
			('2025-01-01T00:00:01', NULL, 'Fatima', 'Ahadith'),
			('2025-01-01T00:00:02', '  ', '', NULL);
	`)
	require.NoError(t, err)
	seed.Close()

	db, err := s.Open(context.Background())
	require.NoError(t, err)
	got := readCanonical(t, db)
	require.Len(t, got, 3)
	assert.Equal(t, "Bilal", got[0].enteredBy)
	// entered_by already existed, so a blank value takes the default even
	// when member holds a name.
	assert.Equal(t, core.DefaultMember, got[1].enteredBy)
	assert.Equal(t, core.DefaultMember, got[2].enteredBy)
	// category was added during convergence and is seeded from type.
	assert.Equal(t, core.CategoryAhadith, got[1].category)
	assert.Equal(t, core.DefaultCategory, got[2].category)
}

func TestMigrateBlankCanonicalValuesTakeDefaults(t *testing.T) {
	s, path := newTestStore(t)
	seed := rawDB(t, path)
	_, err := seed.Exec(`
		CREATE TABLE contributions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at TEXT NOT NULL,
			entered_by TEXT,
			category TEXT,
			member TEXT,
			type TEXT
		);
		INSERT INTO contributions (created_at, entered_by, category, member, type) VALUES
			('2025-02-01T00:00:00', '  ', NULL, 'Fatima', 'Ahadith'),
			('2025-02-01T00:00:01', 'Omar', 'Quran', 'Someone', 'Zikr');
	`)
	require.NoError(t, err)
	seed.Close()

	db, err := s.Open(context.Background())
	require.NoError(t, err)
	got := readCanonical(t, db)
	require.Len(t, got, 2)
	assert.Equal(t, core.DefaultMember, got[0].enteredBy)
	assert.Equal(t, core.DefaultCategory, got[0].category)
	assert.Equal(t, "Omar", got[1].enteredBy)
	assert.Equal(t, core.CategoryQuran, got[1].category)
}

func TestMigrateIsIdempotent(t *testing.T) {
	s, path := newTestStore(t)
	seed := rawDB(t, path)
	_, err := seed.Exec(`
		CREATE TABLE contributions (id INTEGER PRIMARY KEY AUTOINCREMENT, created_at TEXT NOT NULL, member TEXT, type TEXT);
		INSERT INTO contributions (created_at, member, type) VALUES
			('2025-01-01T00:00:00', 'Aisha', 'Zikr'),
			('2025-01-01T00:00:01', NULL, '');
	`)
	require.NoError(t, err)
	seed.Close()

	ctx := context.Background()
	db, err := s.Open(ctx)
	require.NoError(t, err)
	before := snapshot(t, db)

	require.NoError(t, Migrate(ctx, db))
	after := snapshot(t, db)

	assert.Equal(t, before.columns, after.columns)
	assert.Equal(t, before.rows, after.rows)
	assert.Len(t, after.rows, 2)
}

func TestMigrateRollsBackOnFailure(t *testing.T) {
	s, path := newTestStore(t)
	seed := rawDB(t, path)
	_, err := seed.Exec(`
		CREATE TABLE contributions (id INTEGER PRIMARY KEY AUTOINCREMENT, created_at TEXT NOT NULL, member TEXT);
		INSERT INTO contributions (created_at, member) VALUES ('2025-01-01T00:00:00', 'Aisha');
		CREATE TRIGGER contributions_frozen BEFORE UPDATE ON contributions
		BEGIN
			SELECT RAISE(ABORT, 'frozen');
		END;
	`)
	require.NoError(t, err)

	_, err = s.Open(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrMigrationFailed), "got %v", err)

	cols, err := tableColumns(context.Background(), seed, contributionsTable)
	require.NoError(t, err)
	assert.False(t, cols[colEnteredBy], "partial column add must be rolled back")
	assert.False(t, cols[colCategory])

	// The failure is sticky: the store never becomes ready.
	_, again := s.Open(context.Background())
	assert.Equal(t, err, again)
	_, err = s.FetchAll(context.Background())
	assert.True(t, errors.Is(err, core.ErrMigrationFailed))
}

func TestMigrateOnClosedDatabase(t *testing.T) {
	_, path := newTestStore(t)
	db := rawDB(t, path)
	db.Close()

	err := Migrate(context.Background(), db)
	assert.True(t, errors.Is(err, core.ErrMigrationFailed), "got %v", err)
}

func TestBackfillAndNormalizeSQL(t *testing.T) {
	withLegacy := map[string]bool{legacyMember: true}
	assert.Equal(t,
		`UPDATE contributions SET entered_by = COALESCE(entered_by, member, 'Family')`,
		backfillSQL(colEnteredBy, legacyMember, core.DefaultMember, withLegacy))
	assert.Equal(t,
		`UPDATE contributions SET category = COALESCE(category, 'Other Good Deeds')`,
		backfillSQL(colCategory, legacyType, core.DefaultCategory, withLegacy))
	assert.Equal(t,
		`UPDATE contributions SET entered_by = COALESCE(NULLIF(TRIM(entered_by), ''), 'Family') WHERE entered_by IS NULL OR TRIM(entered_by) = ''`,
		normalizeSQL(colEnteredBy, core.DefaultMember))
	assert.Equal(t, `'it''s'`, quote("it's"))
}
