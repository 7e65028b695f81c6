package core

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewContributionValidate(t *testing.T) {
	good := NewContribution{EnteredBy: "Aisha", Category: CategoryZikr, Count: 1}
	require.NoError(t, good.Validate())

	cases := []struct {
		name  string
		in    NewContribution
		field string
	}{
		{"blank identity", NewContribution{EnteredBy: "   ", Category: CategoryZikr, Count: 1}, "entered_by"},
		{"zero count", NewContribution{EnteredBy: "a", Category: CategoryZikr, Count: 0}, "count"},
		{"negative count", NewContribution{EnteredBy: "a", Category: CategoryZikr, Count: -3}, "count"},
		{"negative amount", NewContribution{EnteredBy: "a", Category: CategorySadaqah, Count: 1, Amount: -1}, "amount"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.in.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidEntry))

			var entryErr *EntryError
			require.ErrorAs(t, err, &entryErr)
			assert.Equal(t, tc.field, entryErr.Field)
		})
	}
}

func TestNewContributionNormalized(t *testing.T) {
	n := NewContribution{EnteredBy: "  Omar ", Category: "  ", Count: 2, Note: "  "}.Normalized()
	assert.Equal(t, "Omar", n.EnteredBy)
	assert.Equal(t, DefaultCategory, n.Category)
	assert.Nil(t, n.NoteValue())

	n = NewContribution{EnteredBy: "Omar", Category: "Tahajjud", Count: 1, Note: " after fajr "}.Normalized()
	assert.Equal(t, "Tahajjud", n.Category, "unknown categories are preserved")
	require.NotNil(t, n.NoteValue())
	assert.Equal(t, "after fajr", *n.NoteValue())
}

func TestNewPreferenceDefaults(t *testing.T) {
	p := NewPreference("Family", " ", "")
	assert.Equal(t, DefaultReminderTime, p.ReminderTime)
	assert.Equal(t, DefaultReminderText, p.ReminderText)

	p = NewPreference("Family", "21:30", "Read Surah Mulk")
	assert.Equal(t, "21:30", p.ReminderTime)
	assert.Equal(t, "Read Surah Mulk", p.ReminderText)

	assert.Equal(t, "08:00", NewPreference("Family", "8:00", "").ReminderTime)
	assert.Equal(t, "20:15", NewPreference("Family", "20:15:30", "").ReminderTime)
	assert.Equal(t, "after isha", NewPreference("Family", " after isha ", "").ReminderTime,
		"unrecognised times are kept as text")
}

func TestReminderOffset(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"8:00", 8 * time.Hour, true},
		{"08:00", 8 * time.Hour, true},
		{" 21:45 ", 21*time.Hour + 45*time.Minute, true},
		{"20:00:30", 20*time.Hour + 30*time.Second, true},
		{"00:00", 0, true},
		{"24:00", 0, false},
		{"8pm", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ReminderOffset(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2025, 3, 1, 18, 4, 5, 123456000, time.UTC)
	for _, in := range []string{
		"2025-03-01T18:04:05.123456Z",
		"2025-03-01T18:04:05.123456",
		"2025-03-01T18:04:05.123456+00:00",
	} {
		got, err := ParseTimestamp(in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), "%s parsed as %v", in, got)
	}

	_, err := ParseTimestamp("yesterday")
	assert.Error(t, err)
}

func TestFormatTimestampSortsChronologically(t *testing.T) {
	a := FormatTimestamp(time.Date(2025, 1, 9, 23, 59, 59, 0, time.UTC))
	b := FormatTimestamp(time.Date(2025, 1, 10, 0, 0, 0, 1000, time.UTC))
	assert.Less(t, a, b)
	assert.Equal(t, "2025-01-10", b[:10])
}
