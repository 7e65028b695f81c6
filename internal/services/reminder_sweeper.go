package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tasbeeh/internal/core"
)

// Notifier delivers a due reminder to one member.
type Notifier interface {
	Notify(ctx context.Context, r Reminder) error
}

// LogNotifier writes reminders to the structured log.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, r Reminder) error {
	slog.InfoContext(ctx, "Reminder due",
		"user", r.User,
		"reminder_time", r.Preference.ReminderTime,
		"reminder_text", r.Preference.ReminderText)
	return nil
}

// ReminderSweeper periodically checks every configured member and notifies
// those with nothing logged today once their reminder time has passed.
// Each member is notified at most once per UTC date.
type ReminderSweeper struct {
	service  *LedgerService
	notifier Notifier
	members  []string
	interval time.Duration

	mu       sync.Mutex
	running  bool
	stopping bool
	notified map[string]string // member -> UTC date handled
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func NewReminderSweeper(service *LedgerService, notifier Notifier, members []string, interval time.Duration) *ReminderSweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &ReminderSweeper{
		service:  service,
		notifier: notifier,
		members:  members,
		interval: interval,
		notified: make(map[string]string),
	}
}

// Start begins the sweep loop. Returns an error if already running.
func (w *ReminderSweeper) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("reminder sweeper is already running")
	}
	w.running = true
	w.stopping = false
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	stop, done := w.stopCh, w.doneCh
	w.mu.Unlock()

	go w.runLoop(ctx, stop, done)

	slog.InfoContext(ctx, "Reminder sweeper started",
		"interval", w.interval,
		"members", len(w.members))

	return nil
}

// Stop signals the loop and waits for it to finish. Concurrent calls are safe.
func (w *ReminderSweeper) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	if !w.stopping {
		w.stopping = true
		close(w.stopCh)
	}
	done := w.doneCh
	w.mu.Unlock()

	select {
	case <-done:
		slog.InfoContext(ctx, "Reminder sweeper stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Reminder sweeper stop timed out")
		return ctx.Err()
	}
	return nil
}

func (w *ReminderSweeper) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *ReminderSweeper) runLoop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer func() {
		w.mu.Lock()
		w.running = false
		w.stopping = false
		w.mu.Unlock()
		close(done)
	}()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.Sweep(ctx)

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs one pass over all members and returns how many were notified.
func (w *ReminderSweeper) Sweep(ctx context.Context) int {
	now := w.service.now().UTC()
	today := now.Format(time.DateOnly)
	clock := now.Sub(time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC))

	sent := 0
	for _, member := range w.members {
		if w.alreadyNotified(member, today) {
			continue
		}

		r, err := w.service.Reminder(ctx, member)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to evaluate reminder", "user", member, "error", err)
			continue
		}
		if !r.Due || clock < reminderOffset(ctx, r.Preference) {
			continue
		}

		if err := w.notifier.Notify(ctx, r); err != nil {
			slog.ErrorContext(ctx, "Failed to deliver reminder", "user", member, "error", err)
			continue
		}
		w.markNotified(member, today)
		sent++
	}

	if sent > 0 {
		slog.InfoContext(ctx, "Reminder sweep completed", "notified", sent)
	}
	return sent
}

// reminderOffset falls back to the default reminder time when the saved one
// cannot be read.
func reminderOffset(ctx context.Context, p core.Preference) time.Duration {
	if off, ok := core.ReminderOffset(p.ReminderTime); ok {
		return off
	}
	slog.DebugContext(ctx, "Unreadable reminder time, using default",
		"user", p.UserName,
		"reminder_time", p.ReminderTime)
	off, _ := core.ReminderOffset(core.DefaultReminderTime)
	return off
}

// Recorded marks user as handled for the UTC date of at, so sweeps on that
// date skip the member without reading the ledger.
func (w *ReminderSweeper) Recorded(user string, at time.Time) {
	day := at.UTC().Format(time.DateOnly)
	w.mu.Lock()
	defer w.mu.Unlock()
	if day > w.notified[user] {
		w.notified[user] = day
	}
}

func (w *ReminderSweeper) alreadyNotified(member, day string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.notified[member] == day
}

func (w *ReminderSweeper) markNotified(member, day string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.notified[member] = day
}
