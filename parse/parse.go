// Package parse converts raw localized portal text into typed values.
// Every parser is a pure function: empty or unparseable input yields
// (zero, false), never an error and never a sentinel value.
package parse

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"immopipe/models"
)

var (
	numberRe    = regexp.MustCompile(`\d+(?:\.\d{1,2})?`)
	thousandsRe = regexp.MustCompile(`\b\d{1,3}(?:\.\d{3})+\b`)
	intRe       = regexp.MustCompile(`-?\d+`)
	areaRe      = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(?:m²|m2|qm)`)
	roomsRe     = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*-?\s*(?:Zimmer|Zi\.?)`)
	germanDate  = regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.(\d{4})$`)
	htmlTagRe   = regexp.MustCompile(`<[^>]+>`)
	spaceRe     = regexp.MustCompile(`\s+`)
)

// Price extracts a EUR amount from German-formatted text such as
// "1.234,56 €" or "85,50€". When both separators appear the dot is the
// thousands separator and the comma the decimal point; a lone comma is a
// decimal point. A lone dot grouping exactly 3 digits ("1.250",
// "250.000") is a thousands separator, any other lone dot ("1117.55") a
// decimal point.
func Price(text string) (float64, bool) {
	if text == "" {
		return 0, false
	}
	clean := strings.NewReplacer("€", "", "EUR", "", " ", "", " ", "").Replace(text)

	hasDot := strings.Contains(clean, ".")
	hasComma := strings.Contains(clean, ",")
	switch {
	case hasDot && hasComma:
		clean = strings.ReplaceAll(clean, ".", "")
		clean = strings.ReplaceAll(clean, ",", ".")
	case hasComma:
		clean = strings.ReplaceAll(clean, ",", ".")
	case hasDot:
		if m := thousandsRe.FindString(clean); m != "" {
			clean = strings.Replace(clean, m, strings.ReplaceAll(m, ".", ""), 1)
		}
	}

	match := numberRe.FindString(clean)
	if match == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Area extracts a living area in m² from text like "67,73 m²" or "120m2".
// The unit marker is required; "m²", "m2" and "qm" are all accepted
// (case-insensitive). A bare number without a unit yields no value.
func Area(text string) (float64, bool) {
	if text == "" {
		return 0, false
	}
	m := areaRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Rooms extracts a room count from text like "3 Zimmer" or "2,5 Zi.".
// Fractional counts are truncated toward zero, so "2.5 Zi." yields 2.
func Rooms(text string) (int, bool) {
	if text == "" {
		return 0, false
	}
	m := roomsRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil || v < 1 {
		return 0, false
	}
	return int(v), true
}

// Integer extracts the first integer from text like "3. OG" or "0".
// Zero and negative values are valid; German floor numbering starts at 0
// for the ground floor and goes below for basements.
func Integer(text string) (int, bool) {
	m := intRe.FindString(text)
	if m == "" {
		return 0, false
	}
	v, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return v, true
}

var propertyTypeVocab = []struct {
	keywords []string
	result   string
}{
	{[]string{"wohnung", "apartment", "etw", "eigentumswohnung"}, models.PropertyTypeApartment},
	{[]string{"haus", "einfamilienhaus", "reihenhaus", "villa", "doppelhaus"}, models.PropertyTypeHouse},
	{[]string{"grundstück", "bauland", "land"}, models.PropertyTypeLand},
	{[]string{"büro", "gewerbe", "laden", "praxis", "commercial"}, models.PropertyTypeCommercial},
}

// PropertyType classifies raw type text into the canonical vocabulary.
// First keyword match wins; unmatched non-empty text maps to "other".
func PropertyType(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return models.PropertyTypeUnknown
	}
	lower := strings.ToLower(strings.TrimSpace(raw))
	for _, entry := range propertyTypeVocab {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.result
			}
		}
	}
	return models.PropertyTypeOther
}

// DealType classifies raw deal text into rent, sale or unknown.
func DealType(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return models.DealTypeUnknown
	}
	lower := strings.ToLower(strings.TrimSpace(raw))
	for _, kw := range []string{"miete", "mieten", "rent", "vermietung"} {
		if strings.Contains(lower, kw) {
			return models.DealTypeRent
		}
	}
	for _, kw := range []string{"kauf", "kaufen", "verkauf", "verkaufen", "sale", "eigentum"} {
		if strings.Contains(lower, kw) {
			return models.DealTypeSale
		}
	}
	return models.DealTypeUnknown
}

var germanMonths = map[string]time.Month{
	"januar": time.January, "jan": time.January,
	"februar": time.February, "feb": time.February,
	"märz": time.March, "mär": time.March,
	"april": time.April, "apr": time.April,
	"mai": time.May,
	"juni": time.June, "jun": time.June,
	"juli": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September,
	"oktober": time.October, "okt": time.October,
	"november": time.November, "nov": time.November,
	"dezember": time.December, "dez": time.December,
}

// Date parses ISO (2024-03-01), German numeric (01.03.2024) and German
// month-name ("1. März 2024") forms into an ISO date string.
func Date(text string) (string, bool) {
	t, ok := DateTime(text)
	if !ok {
		return "", false
	}
	return t.Format("2006-01-02"), true
}

// DateTime is the time.Time form of Date, shared with the orchestrator's
// date-sort so both apply identical parsing rules.
func DateTime(text string) (time.Time, bool) {
	s := strings.TrimSpace(text)
	if s == "" {
		return time.Time{}, false
	}

	// ISO, with or without a time component.
	if idx := strings.IndexByte(s, 'T'); idx > 0 {
		if t, err := time.Parse("2006-01-02", s[:idx]); err == nil {
			return t, true
		}
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}

	// German numeric form DD.MM.YYYY.
	if m := germanDate.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if day >= 1 && day <= 31 && month >= 1 && month <= 12 {
			return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
		}
	}

	// German month-name form, e.g. "1. März 2024" or "1 Mär. 2024".
	fields := strings.Fields(strings.ToLower(s))
	if len(fields) == 3 {
		day, err := strconv.Atoi(strings.TrimSuffix(fields[0], "."))
		if err != nil {
			return time.Time{}, false
		}
		month, ok := germanMonths[strings.TrimSuffix(fields[1], ".")]
		if !ok {
			return time.Time{}, false
		}
		year, err := strconv.Atoi(fields[2])
		if err != nil {
			return time.Time{}, false
		}
		if day >= 1 && day <= 31 {
			return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), true
		}
	}

	return time.Time{}, false
}

// CleanText strips HTML tags and collapses whitespace.
func CleanText(text string) string {
	clean := htmlTagRe.ReplaceAllString(text, "")
	clean = spaceRe.ReplaceAllString(clean, " ")
	return strings.TrimSpace(clean)
}
