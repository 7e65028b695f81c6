package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasbeeh/internal/core"
)

// memLedger is an in-memory Ledger for service tests.
type memLedger struct {
	mu       sync.Mutex
	rows     []core.Contribution
	prefs    map[string]core.Preference
	now      func() time.Time
	fetchErr error
	addErr   error
}

func newMemLedger(now func() time.Time) *memLedger {
	return &memLedger{prefs: make(map[string]core.Preference), now: now}
}

func (m *memLedger) AddEntry(_ context.Context, in core.NewContribution) (core.Contribution, error) {
	if err := in.Validate(); err != nil {
		return core.Contribution{}, err
	}
	if m.addErr != nil {
		return core.Contribution{}, m.addErr
	}
	in = in.Normalized()
	m.mu.Lock()
	defer m.mu.Unlock()
	c := core.Contribution{
		ID:        int64(len(m.rows) + 1),
		CreatedAt: m.now().UTC(),
		EnteredBy: in.EnteredBy,
		Category:  in.Category,
		Count:     in.Count,
		Amount:    in.Amount,
		Note:      in.NoteValue(),
	}
	m.rows = append([]core.Contribution{c}, m.rows...)
	return c, nil
}

func (m *memLedger) FetchAll(context.Context) ([]core.Contribution, error) {
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.Contribution(nil), m.rows...), nil
}

func (m *memLedger) LastEntryAt(_ context.Context, user string) (time.Time, bool, error) {
	if m.fetchErr != nil {
		return time.Time{}, false, m.fetchErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.EnteredBy == user {
			return r.CreatedAt, true, nil
		}
	}
	return time.Time{}, false, nil
}

func (m *memLedger) GetPreference(_ context.Context, user string) core.Preference {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.prefs[user]; ok {
		return p
	}
	return core.DefaultPreference(user)
}

func (m *memLedger) SavePreference(_ context.Context, user, reminderTime, reminderText string) (core.Preference, error) {
	p := core.NewPreference(user, reminderTime, reminderText)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefs[user] = p
	return p, nil
}

func (m *memLedger) Ready(context.Context) bool { return m.fetchErr == nil }

type recordingPublisher struct {
	published []core.Contribution
	err       error
}

func (p *recordingPublisher) PublishContributionRecorded(_ context.Context, c core.Contribution) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, c)
	return nil
}

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestAddEntryPublishesEvent(t *testing.T) {
	now := time.Date(2025, 4, 2, 9, 0, 0, 0, time.UTC)
	pub := &recordingPublisher{}
	svc := NewLedgerService(newMemLedger(fixedClock(now)), pub)

	c, err := svc.AddEntry(context.Background(), core.NewContribution{EnteredBy: "Aisha", Category: core.CategoryZikr, Count: 33})
	require.NoError(t, err)
	require.Len(t, pub.published, 1)
	assert.Equal(t, c, pub.published[0])
}

func TestAddEntryPublishFailureDoesNotFailWrite(t *testing.T) {
	ledger := newMemLedger(time.Now)
	svc := NewLedgerService(ledger, &recordingPublisher{err: errors.New("broker down")})

	_, err := svc.AddEntry(context.Background(), core.NewContribution{EnteredBy: "Aisha", Category: core.CategoryZikr, Count: 1})
	require.NoError(t, err)

	rows, err := svc.Entries(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestAddEntryWithoutPublisher(t *testing.T) {
	svc := NewLedgerService(newMemLedger(time.Now), nil)
	_, err := svc.AddEntry(context.Background(), core.NewContribution{EnteredBy: "Omar", Category: core.CategoryQuran, Count: 2})
	assert.NoError(t, err)
}

func TestAddEntryInvalidIsNotPublished(t *testing.T) {
	pub := &recordingPublisher{}
	svc := NewLedgerService(newMemLedger(time.Now), pub)

	_, err := svc.AddEntry(context.Background(), core.NewContribution{EnteredBy: "Omar", Count: 0})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidEntry)

	var entryErr *core.EntryError
	require.ErrorAs(t, err, &entryErr)
	assert.Equal(t, "count", entryErr.Field)
	assert.Empty(t, pub.published)
}

func TestAddEntryWrapsStorageErrors(t *testing.T) {
	ledger := newMemLedger(time.Now)
	ledger.addErr = fmt.Errorf("open ledger: %w", core.ErrStorageUnavailable)
	svc := NewLedgerService(ledger, nil)

	_, err := svc.AddEntry(context.Background(), core.NewContribution{EnteredBy: "Omar", Category: core.CategoryZikr, Count: 1})
	assert.ErrorIs(t, err, core.ErrStorageUnavailable)
}

func TestDashboard(t *testing.T) {
	now := time.Date(2025, 4, 2, 12, 0, 0, 0, time.UTC)
	ledger := newMemLedger(fixedClock(now))
	svc := NewLedgerService(ledger, nil)
	svc.now = fixedClock(now)
	ctx := context.Background()

	for _, in := range []core.NewContribution{
		{EnteredBy: "Aisha", Category: core.CategoryZikr, Count: 33},
		{EnteredBy: "Omar", Category: core.CategoryZikr, Count: 10},
		{EnteredBy: "Omar", Category: core.CategorySadaqah, Count: 1, Amount: 500},
	} {
		_, err := svc.AddEntry(ctx, in)
		require.NoError(t, err)
	}

	d, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(43), d.TotalDeeds)
	assert.Equal(t, int64(44), d.AddedToday)
	assert.Equal(t, int64(500), d.SadaqahAmount)
	assert.Equal(t, 3, d.EntryCount)
	require.Len(t, d.Members.Rows, 2)
	assert.Equal(t, "Aisha", d.Members.Rows[0].Member)
}

func TestDashboardPropagatesFetchError(t *testing.T) {
	ledger := newMemLedger(time.Now)
	ledger.fetchErr = core.ErrMigrationFailed
	svc := NewLedgerService(ledger, nil)

	_, err := svc.Dashboard(context.Background())
	assert.ErrorIs(t, err, core.ErrMigrationFailed)
	assert.False(t, svc.Ready(context.Background()))
}

func TestPreferencesNormalizeUser(t *testing.T) {
	svc := NewLedgerService(newMemLedger(time.Now), nil)
	ctx := context.Background()

	_, err := svc.SavePreference(ctx, "  ", "06:00", "Morning adhkar")
	require.NoError(t, err)

	p := svc.Preference(ctx, "")
	assert.Equal(t, core.DefaultMember, p.UserName)
	assert.Equal(t, "06:00", p.ReminderTime)
}

func TestAddEntryLogsUnrecognisedCategory(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	svc := NewLedgerService(newMemLedger(time.Now), nil)
	ctx := context.Background()

	_, err := svc.AddEntry(ctx, core.NewContribution{EnteredBy: "Omar", Category: core.CategoryZikr, Count: 1})
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "unrecognised category")

	c, err := svc.AddEntry(ctx, core.NewContribution{EnteredBy: "Omar", Category: "Tahajjud", Count: 1})
	require.NoError(t, err)
	assert.Equal(t, "Tahajjud", c.Category, "unknown categories are stored as given")
	assert.Contains(t, buf.String(), "unrecognised category")
	assert.Contains(t, buf.String(), "category=Tahajjud")
}
