package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tasbeeh/internal/core"
)

// AddEntry validates and appends one contribution. Validation happens before
// any statement runs; the insert is a single row and durable on return.
// Only columns present at open are written, and legacy columns still on the
// table receive mirrored values so older readers stay consistent.
func (s *LedgerStore) AddEntry(ctx context.Context, in core.NewContribution) (core.Contribution, error) {
	if err := in.Validate(); err != nil {
		return core.Contribution{}, err
	}
	in = in.Normalized()

	db, err := s.Open(ctx)
	if err != nil {
		return core.Contribution{}, err
	}

	createdAt := s.now().UTC()
	note := in.NoteValue()
	values := map[string]any{
		colCreatedAt:    core.FormatTimestamp(createdAt),
		colEnteredBy:    in.EnteredBy,
		colCategory:     in.Category,
		colCount:        in.Count,
		colAmount:       in.Amount,
		colNote:         nullString(note),
		legacyMember:    in.EnteredBy,
		legacyType:      in.Category,
		legacyAmountPKR: in.Amount,
	}
	args := make([]any, len(s.caps.insertCol))
	for i, col := range s.caps.insertCol {
		args[i] = values[col]
	}

	res, err := db.ExecContext(ctx, s.caps.insertSQL, args...)
	if err != nil {
		return core.Contribution{}, fmt.Errorf("insert contribution: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Contribution{}, fmt.Errorf("read contribution id: %w", err)
	}

	c := core.Contribution{
		ID:        id,
		CreatedAt: createdAt,
		EnteredBy: in.EnteredBy,
		Category:  in.Category,
		Count:     in.Count,
		Amount:    in.Amount,
		Note:      note,
	}

	s.logger.InfoContext(ctx, "Contribution saved to SQLite",
		"id", c.ID,
		"entered_by", c.EnteredBy,
		"category", c.Category,
		"count", c.Count,
		"amount", c.Amount)

	return c, nil
}

// FetchAll returns every contribution, newest first. Rows written in the
// same instant are ordered by id.
func (s *LedgerStore) FetchAll(ctx context.Context) ([]core.Contribution, error) {
	db, err := s.Open(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf(
		`SELECT %s, %s, %s, %s, %s, %s, %s FROM %s ORDER BY %s DESC, %s DESC`,
		colID, colCreatedAt, colEnteredBy, colCategory, colCount, colAmount, colNote,
		contributionsTable, colCreatedAt, colID))
	if err != nil {
		return nil, fmt.Errorf("query contributions: %w", err)
	}
	defer rows.Close()

	var out []core.Contribution
	for rows.Next() {
		var (
			c         core.Contribution
			createdAt string
			enteredBy sql.NullString
			category  sql.NullString
			count     sql.NullInt64
			amount    sql.NullInt64
			note      sql.NullString
		)
		if err := rows.Scan(&c.ID, &createdAt, &enteredBy, &category, &count, &amount, &note); err != nil {
			return nil, fmt.Errorf("scan contribution: %w", err)
		}
		if t, err := core.ParseTimestamp(createdAt); err == nil {
			c.CreatedAt = t
		} else {
			s.logger.WarnContext(ctx, "Unparseable contribution timestamp",
				"id", c.ID, "created_at", createdAt, "error", err)
		}
		c.EnteredBy = core.NormalizeMember(enteredBy.String)
		c.Category = category.String
		if c.Category == "" {
			c.Category = core.DefaultCategory
		}
		c.Count = 1
		if count.Valid {
			c.Count = count.Int64
		}
		c.Amount = amount.Int64
		if note.Valid && note.String != "" {
			n := note.String
			c.Note = &n
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contributions: %w", err)
	}
	return out, nil
}

// LastEntryAt returns the newest created_at recorded for user. ok is false
// when the user has no contributions or the newest one has an unreadable
// timestamp.
func (s *LedgerStore) LastEntryAt(ctx context.Context, user string) (at time.Time, ok bool, err error) {
	db, err := s.Open(ctx)
	if err != nil {
		return time.Time{}, false, err
	}

	var raw string
	err = db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT %s FROM %s WHERE %s = ? ORDER BY %s DESC LIMIT 1`,
		colCreatedAt, contributionsTable, colEnteredBy, colCreatedAt), user).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("query last contribution for %s: %w", user, err)
	}

	at, err = core.ParseTimestamp(raw)
	if err != nil {
		s.logger.WarnContext(ctx, "Unparseable last contribution timestamp",
			"entered_by", user,
			"created_at", raw,
			"error", err)
		return time.Time{}, false, nil
	}
	return at, true, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
