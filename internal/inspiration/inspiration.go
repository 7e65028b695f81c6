// Package inspiration picks the ayah and hadith shown for a calendar day.
package inspiration

import "time"

// Passage is a short quoted text with its reference.
type Passage struct {
	Ref  string `json:"ref"`
	Text string `json:"text"`
}

// Daily is the content for one day.
type Daily struct {
	Date     string   `json:"date"`
	Ayah     Passage  `json:"ayah"`
	Hadith   Passage  `json:"hadith"`
	Renowned []string `json:"renowned"`
}

var ayat = []Passage{
	{Ref: "Qur'an 2:286", Text: "Allah does not burden a soul beyond that it can bear."},
	{Ref: "Qur'an 13:28", Text: "Verily, in the remembrance of Allah do hearts find rest."},
	{Ref: "Qur'an 94:5-6", Text: "Indeed, with hardship comes ease. Indeed, with hardship comes ease."},
	{Ref: "Qur'an 14:7", Text: "If you are grateful, I will surely increase you."},
}

var ahadith = []Passage{
	{Ref: "Sahih Muslim", Text: "The most beloved deeds to Allah are those done regularly, even if small."},
	{Ref: "Sahih Bukhari", Text: "The believer's shade on the Day of Resurrection will be his charity."},
	{Ref: "Riyad as-Salihin", Text: "Whoever guides to good will have a reward like the doer of it."},
	{Ref: "Sahih Muslim", Text: "Supplication for your brother in his absence is answered."},
}

var renowned = []string{
	"Actions are judged by intentions.",
	"Whoever believes in Allah and the Last Day should speak good or remain silent.",
	"None of you truly believes until he loves for his brother what he loves for himself.",
	"The strong person is the one who controls himself when angry.",
}

// unixEpochOrdinal is the proleptic Gregorian ordinal of 1970-01-01, counting
// 0001-01-01 as day 1.
const unixEpochOrdinal = 719163

// Ordinal returns the day number of t's UTC date, with 0001-01-01 as 1.
func Ordinal(t time.Time) int64 {
	t = t.UTC()
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	days := midnight.Unix() / 86400
	if midnight.Unix()%86400 < 0 {
		days--
	}
	return days + unixEpochOrdinal
}

// For returns the content for t's UTC date. The ayah rotates daily and the
// hadith steps three entries per day.
func For(t time.Time) Daily {
	n := Ordinal(t)
	return Daily{
		Date:     t.UTC().Format(time.DateOnly),
		Ayah:     ayat[mod(n, len(ayat))],
		Hadith:   ahadith[mod(n*3, len(ahadith))],
		Renowned: append([]string(nil), renowned...),
	}
}

func mod(n int64, size int) int {
	m := n % int64(size)
	if m < 0 {
		m += int64(size)
	}
	return int(m)
}
