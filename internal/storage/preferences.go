package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tasbeeh/internal/core"
)

// GetPreference returns the saved reminder settings for user, or the
// defaults when none were saved. It never fails: storage errors are logged
// and the defaults returned.
func (s *LedgerStore) GetPreference(ctx context.Context, user string) core.Preference {
	user = core.NormalizeMember(user)
	def := core.DefaultPreference(user)

	db, err := s.Open(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "Preference lookup fell back to defaults", "user", user, "error", err)
		return def
	}

	var p core.Preference
	err = db.QueryRowContext(ctx,
		`SELECT user_name, reminder_time, reminder_text FROM user_prefs WHERE user_name = ?`,
		user).Scan(&p.UserName, &p.ReminderTime, &p.ReminderText)
	if errors.Is(err, sql.ErrNoRows) {
		return def
	}
	if err != nil {
		s.logger.WarnContext(ctx, "Preference lookup fell back to defaults", "user", user, "error", err)
		return def
	}
	return p
}

// SavePreference upserts the reminder settings for user. Blank values are
// replaced by the defaults before storage.
func (s *LedgerStore) SavePreference(ctx context.Context, user, reminderTime, reminderText string) (core.Preference, error) {
	p := core.NewPreference(core.NormalizeMember(user), reminderTime, reminderText)

	db, err := s.Open(ctx)
	if err != nil {
		return core.Preference{}, err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO user_prefs (user_name, reminder_time, reminder_text)
		VALUES (?, ?, ?)
		ON CONFLICT(user_name) DO UPDATE SET
			reminder_time = excluded.reminder_time,
			reminder_text = excluded.reminder_text`,
		p.UserName, p.ReminderTime, p.ReminderText)
	if err != nil {
		return core.Preference{}, fmt.Errorf("save preference for %s: %w", p.UserName, err)
	}

	s.logger.InfoContext(ctx, "Preference saved", "user", p.UserName, "reminder_time", p.ReminderTime)
	return p, nil
}
