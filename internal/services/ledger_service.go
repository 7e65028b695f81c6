// Package services orchestrates the ledger store, the aggregator and the
// optional event publisher.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tasbeeh/internal/core"
)

// Ledger is the storage surface the service depends on.
type Ledger interface {
	AddEntry(ctx context.Context, in core.NewContribution) (core.Contribution, error)
	FetchAll(ctx context.Context) ([]core.Contribution, error)
	LastEntryAt(ctx context.Context, user string) (time.Time, bool, error)
	GetPreference(ctx context.Context, user string) core.Preference
	SavePreference(ctx context.Context, user, reminderTime, reminderText string) (core.Preference, error)
	Ready(ctx context.Context) bool
}

// EventPublisher announces recorded contributions.
type EventPublisher interface {
	PublishContributionRecorded(ctx context.Context, c core.Contribution) error
}

// LedgerService orchestrates writes, reads and reminder checks
type LedgerService struct {
	ledger    Ledger
	publisher EventPublisher
	now       func() time.Time
}

// NewLedgerService builds the service. publisher may be nil.
func NewLedgerService(ledger Ledger, publisher EventPublisher) *LedgerService {
	return &LedgerService{
		ledger:    ledger,
		publisher: publisher,
		now:       time.Now,
	}
}

// AddEntry saves a contribution and publishes an event for it. The row is
// durable once the store returns, so publish failures are only logged.
func (s *LedgerService) AddEntry(ctx context.Context, in core.NewContribution) (core.Contribution, error) {
	c, err := s.ledger.AddEntry(ctx, in)
	if err != nil {
		return core.Contribution{}, fmt.Errorf("add entry: %w", err)
	}
	if !core.IsKnownCategory(c.Category) {
		slog.InfoContext(ctx, "Stored contribution with unrecognised category",
			"id", c.ID, "category", c.Category)
	}

	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP client not available, skipping contribution event", "id", c.ID)
		return c, nil
	}
	if err := s.publisher.PublishContributionRecorded(ctx, c); err != nil {
		slog.ErrorContext(ctx, "Failed to publish contribution event",
			"id", c.ID, "error", err)
	}

	return c, nil
}

// Entries returns the full ledger, newest first.
func (s *LedgerService) Entries(ctx context.Context) ([]core.Contribution, error) {
	rows, err := s.ledger.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch entries: %w", err)
	}
	return rows, nil
}

// Dashboard recomputes every summary from the current ledger.
func (s *LedgerService) Dashboard(ctx context.Context) (core.Dashboard, error) {
	rows, err := s.Entries(ctx)
	if err != nil {
		return core.Dashboard{}, err
	}
	return core.BuildDashboard(rows, s.now()), nil
}

func (s *LedgerService) Preference(ctx context.Context, user string) core.Preference {
	return s.ledger.GetPreference(ctx, core.NormalizeMember(user))
}

func (s *LedgerService) SavePreference(ctx context.Context, user, reminderTime, reminderText string) (core.Preference, error) {
	p, err := s.ledger.SavePreference(ctx, core.NormalizeMember(user), reminderTime, reminderText)
	if err != nil {
		return core.Preference{}, fmt.Errorf("save preference: %w", err)
	}
	return p, nil
}

// Ready reports whether the ledger opened and migrated successfully.
func (s *LedgerService) Ready(ctx context.Context) bool {
	return s.ledger.Ready(ctx)
}
