package services

import (
	"context"
	"fmt"
	"time"

	"tasbeeh/internal/core"
)

// Reminder is the reminder state for one member.
type Reminder struct {
	User       string          `json:"user"`
	Due        bool            `json:"due"`
	LastEntry  *time.Time      `json:"last_entry,omitempty"`
	Preference core.Preference `json:"preference"`
}

// dueToday reports whether nothing was logged on now's UTC date.
func dueToday(last time.Time, now time.Time) bool {
	if last.IsZero() {
		return true
	}
	return last.UTC().Format(time.DateOnly) < now.UTC().Format(time.DateOnly)
}

// ReminderDue is true when user has no contribution or the latest one falls
// on an earlier UTC date than now.
func (s *LedgerService) ReminderDue(ctx context.Context, user string, now time.Time) (bool, error) {
	last, ok, err := s.ledger.LastEntryAt(ctx, core.NormalizeMember(user))
	if err != nil {
		return false, fmt.Errorf("check reminder for %s: %w", user, err)
	}
	if !ok {
		return true, nil
	}
	return dueToday(last, now), nil
}

// Reminder combines dueness with the member's stored reminder settings.
func (s *LedgerService) Reminder(ctx context.Context, user string) (Reminder, error) {
	user = core.NormalizeMember(user)
	last, ok, err := s.ledger.LastEntryAt(ctx, user)
	if err != nil {
		return Reminder{}, fmt.Errorf("check reminder for %s: %w", user, err)
	}

	r := Reminder{
		User:       user,
		Due:        true,
		Preference: s.ledger.GetPreference(ctx, user),
	}
	if ok {
		r.LastEntry = &last
		r.Due = dueToday(last, s.now())
	}
	return r, nil
}
