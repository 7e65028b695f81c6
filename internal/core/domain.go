package core

import (
	"fmt"
	"strings"
	"time"
)

// Known categories. The admissible set has changed across versions; values
// outside it are stored and reported as-is.
const (
	CategoryZikr           = "Zikr"
	CategoryQuran          = "Quran Recitation / Verses"
	CategoryAhadith        = "Ahadith"
	CategoryOtherGoodDeeds = "Other Good Deeds"
	CategorySadaqah        = "Sadaqah"
)

const (
	// DefaultMember is the identity used for legacy rows without one.
	DefaultMember = "Family"
	// DefaultCategory is the category used for legacy rows without one.
	DefaultCategory = CategoryOtherGoodDeeds

	DefaultReminderTime = "20:00"
	DefaultReminderText = "Take 5 minutes today for tasbeeh, zikr, or recitation."
)

// TimestampLayout is the on-disk format of created_at. Fixed width and
// UTC-anchored so lexical order matches chronological order and the first
// ten characters are the calendar date.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// DeedCategories are the counted (non-monetary) categories, in display order.
var DeedCategories = []string{
	CategoryZikr,
	CategoryQuran,
	CategoryAhadith,
	CategoryOtherGoodDeeds,
}

// AllCategories returns the deed categories followed by Sadaqah.
func AllCategories() []string {
	out := make([]string, 0, len(DeedCategories)+1)
	out = append(out, DeedCategories...)
	return append(out, CategorySadaqah)
}

// IsKnownCategory reports whether c belongs to the current enumeration.
func IsKnownCategory(c string) bool {
	for _, k := range AllCategories() {
		if k == c {
			return true
		}
	}
	return false
}

type (
	// Contribution is one immutable ledger row.
	Contribution struct {
		ID        int64     `json:"id"`
		CreatedAt time.Time `json:"created_at"`
		EnteredBy string    `json:"entered_by"`
		Category  string    `json:"category"`
		Count     int64     `json:"count"`
		Amount    int64     `json:"amount"`
		Note      *string   `json:"note,omitempty"`
	}

	// NewContribution is the caller-supplied part of a contribution.
	NewContribution struct {
		EnteredBy string
		Category  string
		Count     int64
		Amount    int64
		Note      string
	}

	// Preference holds a user's reminder settings.
	Preference struct {
		UserName     string `json:"user_name"`
		ReminderTime string `json:"reminder_time"`
		ReminderText string `json:"reminder_text"`
	}
)

// Validate checks the rules an entry must satisfy before it reaches storage.
func (n NewContribution) Validate() error {
	if strings.TrimSpace(n.EnteredBy) == "" {
		return InvalidEntry("entered_by", "identity cannot be empty")
	}
	if n.Count < 1 {
		return InvalidEntry("count", "count must be at least 1")
	}
	if n.Amount < 0 {
		return InvalidEntry("amount", "amount cannot be negative")
	}
	return nil
}

// Normalized returns a copy with trimmed identity and category. A blank
// category falls back to DefaultCategory; unknown categories are kept.
func (n NewContribution) Normalized() NewContribution {
	n.EnteredBy = strings.TrimSpace(n.EnteredBy)
	n.Category = strings.TrimSpace(n.Category)
	if n.Category == "" {
		n.Category = DefaultCategory
	}
	n.Note = strings.TrimSpace(n.Note)
	return n
}

// NoteValue returns the note as stored: nil when blank.
func (n NewContribution) NoteValue() *string {
	s := strings.TrimSpace(n.Note)
	if s == "" {
		return nil
	}
	return &s
}

// NormalizeMember maps a blank identity to DefaultMember.
func NormalizeMember(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return DefaultMember
	}
	return s
}

// NewPreference builds a preference with blank fields replaced by defaults.
func NewPreference(user, reminderTime, reminderText string) Preference {
	p := Preference{
		UserName:     strings.TrimSpace(user),
		ReminderTime: strings.TrimSpace(reminderTime),
		ReminderText: strings.TrimSpace(reminderText),
	}
	if p.ReminderTime == "" {
		p.ReminderTime = DefaultReminderTime
	} else if off, ok := ReminderOffset(p.ReminderTime); ok {
		p.ReminderTime = formatClock(off)
	}
	if p.ReminderText == "" {
		p.ReminderText = DefaultReminderText
	}
	return p
}

// reminderLayouts are the accepted reminder time spellings. A one-digit hour
// is accepted by the 15 verb.
var reminderLayouts = []string{"15:04", "15:04:05"}

// ReminderOffset parses a reminder time of day such as "8:00", "08:00" or
// "20:00:00" and returns it as an offset from midnight.
func ReminderOffset(s string) (time.Duration, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range reminderLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second, true
		}
	}
	return 0, false
}

func formatClock(off time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(off/time.Hour), int(off%time.Hour/time.Minute))
}

// DefaultPreference is returned for users who never saved settings.
func DefaultPreference(user string) Preference {
	return NewPreference(user, "", "")
}

// FormatTimestamp renders t in the created_at layout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp accepts the created_at layout and the ISO variants written
// by earlier versions (no zone suffix, optional fraction).
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range []string{TimestampLayout, time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05"} {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
