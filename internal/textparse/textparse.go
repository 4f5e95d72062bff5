// Package textparse turns short free-text replies into normalized slot values.
package textparse

import (
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const isoDate = "2006-01-02"

var (
	ordinalSuffix = regexp.MustCompile(`(?i)\b(\d{1,2})(st|nd|rd|th)\b`)
	isoPattern    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

var withYear = []string{
	isoDate,
	"2006/01/02",
	"Jan 2 2006",
	"January 2 2006",
	"2 Jan 2006",
	"2 January 2006",
	"Mon Jan 2 2006",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
}

var withoutYear = []string{
	"Jan 2",
	"January 2",
	"2 Jan",
	"2 January",
}

var cityAliases = map[string]string{
	"bombay":    "Mumbai",
	"mumbai":    "Mumbai",
	"delhi":     "Delhi",
	"new delhi": "Delhi",
	"bengaluru": "Bangalore",
	"madras":    "Chennai",
	"calcutta":  "Kolkata",
}

// DateParser parses calendar dates written the way travellers type them.
// Day-first is preferred for numeric dates.
type DateParser struct {
	now func() time.Time
}

func NewDateParser() *DateParser {
	return &DateParser{now: time.Now}
}

// ParseDate returns the ISO calendar date in text, or false when text is not a
// bare date.
func (p *DateParser) ParseDate(text string) (string, bool) {
	s := clean(text)
	if s == "" {
		return "", false
	}
	if isoPattern.MatchString(s) {
		if _, err := time.Parse(isoDate, s); err != nil {
			return "", false
		}
		return s, true
	}
	for _, layout := range withYear {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(isoDate), true
		}
	}
	now := p.now()
	for _, layout := range withoutYear {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(now.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Format(isoDate), true
		}
	}
	if !strings.ContainsAny(s, "0123456789") {
		return "", false
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return "", false
	}
	return t.Format(isoDate), true
}

// NormalizeCity maps known aliases to their canonical name and title-cases the
// rest. IATA-looking codes are upper-cased.
func NormalizeCity(text string) string {
	s := strings.Join(strings.Fields(text), " ")
	if s == "" {
		return ""
	}
	if canonical, ok := cityAliases[strings.ToLower(s)]; ok {
		return canonical
	}
	if len(s) == 3 && isLetters(s) && strings.ToUpper(s) == s {
		return s
	}
	return cases.Title(language.English).String(s)
}

func clean(text string) string {
	s := strings.TrimSpace(text)
	s = strings.TrimRight(s, ".!?")
	s = ordinalSuffix.ReplaceAllString(s, "$1")
	s = strings.ReplaceAll(s, ",", " ")
	return strings.Join(strings.Fields(s), " ")
}

func isLetters(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}
