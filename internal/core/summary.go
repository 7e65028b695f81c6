package core

// CategoryTotal is a summed count for one category.
type CategoryTotal struct {
	Category string `json:"category"`
	Total    int64  `json:"total"`
}

// MemberRow is one member's line in a MemberPivot. Counts is aligned with
// MemberPivot.Columns.
type MemberRow struct {
	Member string  `json:"member"`
	Counts []int64 `json:"counts"`
	Total  int64   `json:"total"`
}

// MemberPivot sums counts per member and category.
type MemberPivot struct {
	Columns []string    `json:"columns"`
	Rows    []MemberRow `json:"rows"`
}

// Cell returns the summed count for member and category, 0 when absent.
func (p MemberPivot) Cell(member, category string) int64 {
	col := -1
	for i, c := range p.Columns {
		if c == category {
			col = i
			break
		}
	}
	if col < 0 {
		return 0
	}
	for _, r := range p.Rows {
		if r.Member == member {
			return r.Counts[col]
		}
	}
	return 0
}

// Dashboard is the read model rendered by the presentation layer.
type Dashboard struct {
	DeedTotals     []CategoryTotal `json:"deed_totals"`
	CategoryTotals []CategoryTotal `json:"category_totals"`
	TotalDeeds     int64           `json:"total_deeds"`
	AddedToday     int64           `json:"added_today"`
	SadaqahEntries int64           `json:"sadaqah_entries"`
	SadaqahAmount  int64           `json:"sadaqah_amount"`
	Members        MemberPivot     `json:"members"`
	EntryCount     int             `json:"entry_count"`
}
