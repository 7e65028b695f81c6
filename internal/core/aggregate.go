package core

import (
	"sort"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// TotalsByCategory sums Count per category over categories, in that order.
// Every listed category is reported, with 0 when it has no rows. Rows whose
// category is not listed do not contribute.
func TotalsByCategory(rows []Contribution, categories []string) []CategoryTotal {
	sums := make(map[string]int64, len(categories))
	for _, r := range rows {
		sums[categoryKey(r.Category)] += r.Count
	}
	out := make([]CategoryTotal, len(categories))
	for i, c := range categories {
		out[i] = CategoryTotal{Category: c, Total: sums[c]}
	}
	return out
}

// TotalsMap is TotalsByCategory keyed by category name.
func TotalsMap(rows []Contribution, categories []string) map[string]int64 {
	m := make(map[string]int64, len(categories))
	for _, t := range TotalsByCategory(rows, categories) {
		m[t.Category] = t.Total
	}
	return m
}

// GrandTotal sums Count over rows in any of categories.
func GrandTotal(rows []Contribution, categories []string) int64 {
	var total int64
	for _, t := range TotalsByCategory(rows, categories) {
		total += t.Total
	}
	return total
}

// TotalsByMemberAndCategory pivots rows into members x categories. Columns are
// categories followed by any other category seen in rows, in first-seen
// order. Members are sorted by row total descending; equal totals keep the
// order in which the member first appears in rows.
func TotalsByMemberAndCategory(rows []Contribution, categories []string) MemberPivot {
	columns := append([]string(nil), categories...)
	colIdx := make(map[string]int, len(columns))
	for i, c := range columns {
		colIdx[c] = i
	}
	for _, r := range rows {
		c := categoryKey(r.Category)
		if _, ok := colIdx[c]; !ok {
			colIdx[c] = len(columns)
			columns = append(columns, c)
		}
	}

	var members []*MemberRow
	byMember := make(map[string]*MemberRow)
	for _, r := range rows {
		name := NormalizeMember(r.EnteredBy)
		m, ok := byMember[name]
		if !ok {
			m = &MemberRow{Member: name, Counts: make([]int64, len(columns))}
			byMember[name] = m
			members = append(members, m)
		}
		m.Counts[colIdx[categoryKey(r.Category)]] += r.Count
		m.Total += r.Count
	}

	sort.SliceStable(members, func(i, j int) bool {
		return members[i].Total > members[j].Total
	})

	out := MemberPivot{Columns: columns, Rows: make([]MemberRow, len(members))}
	for i, m := range members {
		out.Rows[i] = *m
	}
	return out
}

// TodayTotal sums Count over rows created on the UTC calendar date of day.
func TodayTotal(rows []Contribution, day time.Time) int64 {
	prefix := day.UTC().Format(dateLayout)
	var total int64
	for _, r := range rows {
		if strings.HasPrefix(FormatTimestamp(r.CreatedAt), prefix) {
			total += r.Count
		}
	}
	return total
}

// MonetaryTotal sums Amount over rows of one category.
func MonetaryTotal(rows []Contribution, category string) int64 {
	var total int64
	for _, r := range rows {
		if categoryKey(r.Category) == category {
			total += r.Amount
		}
	}
	return total
}

// BuildDashboard assembles every aggregate the dashboards show.
func BuildDashboard(rows []Contribution, now time.Time) Dashboard {
	all := AllCategories()
	totals := TotalsMap(rows, all)
	return Dashboard{
		DeedTotals:     TotalsByCategory(rows, DeedCategories),
		CategoryTotals: TotalsByCategory(rows, all),
		TotalDeeds:     GrandTotal(rows, DeedCategories),
		AddedToday:     TodayTotal(rows, now),
		SadaqahEntries: totals[CategorySadaqah],
		SadaqahAmount:  MonetaryTotal(rows, CategorySadaqah),
		Members:        TotalsByMemberAndCategory(rows, all),
		EntryCount:     len(rows),
	}
}

func categoryKey(c string) string {
	if c = strings.TrimSpace(c); c == "" {
		return DefaultCategory
	}
	return c
}
