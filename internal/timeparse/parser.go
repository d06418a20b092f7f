// Package timeparse resolves the fixed set of date and time phrasings the
// assistant understands into absolute instants.
package timeparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHour   = 9
	defaultMinute = 0
)

// timePatterns are tried in order of specificity; the first match wins.
var timePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d{1,2}):(\d{2})\s*(am|pm)`),
	regexp.MustCompile(`(\d{1,2})\s*(am|pm)`),
	regexp.MustCompile(`(\d{1,2}):(\d{2})`),
	regexp.MustCompile(`(\d{1,2})`),
}

var daysPattern = regexp.MustCompile(`(\d+)\s*days?`)

// Parser converts phrases relative to a reference clock.
type Parser struct {
	Now      func() time.Time
	Location *time.Location
}

// New returns a Parser on the wall clock in loc (time.Local when nil).
func New(loc *time.Location) *Parser {
	if loc == nil {
		loc = time.Local
	}
	return &Parser{Now: time.Now, Location: loc}
}

// Reference returns the current reference time in the parser's location.
func (p *Parser) Reference() time.Time { return p.now() }

func (p *Parser) now() time.Time {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	loc := p.Location
	if loc == nil {
		loc = time.Local
	}
	return now().In(loc)
}

// Parse resolves a date phrase and an optional time phrase (empty means absent).
//
// The date is chosen by substring, in order: "today", "tomorrow", "next week".
// Anything else resolves to today; callers that need to distinguish an
// unrecognised date must check Recognized. The time of day defaults to 09:00.
// ok is false when the resolved hour or minute is out of range.
func (p *Parser) Parse(datePhrase, timePhrase string) (t time.Time, ok bool) {
	now := p.now()
	combined := strings.ToLower(strings.TrimSpace(datePhrase + " " + timePhrase))
	base := resolveDate(combined, now)

	hour, minute := defaultHour, defaultMinute
	if timePhrase != "" {
		if h, m, found := resolveTime(strings.ToLower(timePhrase)); found {
			hour, minute = h, m
		}
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return time.Time{}, false
	}
	return time.Date(base.Year(), base.Month(), base.Day(), hour, minute, 0, 0, now.Location()), true
}

// Recognized reports whether phrase names one of the known relative dates.
func Recognized(phrase string) bool {
	lower := strings.ToLower(phrase)
	return strings.Contains(lower, "today") || strings.Contains(lower, "tomorrow") || strings.Contains(lower, "next week")
}

func resolveDate(phrase string, now time.Time) time.Time {
	switch {
	case strings.Contains(phrase, "today"):
		return now
	case strings.Contains(phrase, "tomorrow"):
		return now.AddDate(0, 0, 1)
	case strings.Contains(phrase, "next week"):
		return now.AddDate(0, 0, 7)
	default:
		return now
	}
}

func resolveTime(phrase string) (hour, minute int, found bool) {
	for _, re := range timePatterns {
		m := re.FindStringSubmatch(phrase)
		if m == nil {
			continue
		}
		hour, _ = strconv.Atoi(m[1])
		meridiem := ""
		switch len(m) {
		case 4:
			minute, _ = strconv.Atoi(m[2])
			meridiem = m[3]
		case 3:
			if m[2] == "am" || m[2] == "pm" {
				meridiem = m[2]
			} else {
				minute, _ = strconv.Atoi(m[2])
			}
		}
		switch {
		case meridiem == "pm" && hour != 12:
			hour += 12
		case meridiem == "am" && hour == 12:
			hour = 0
		}
		return hour, minute, true
	}
	return 0, 0, false
}

var dueDateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"02/01/2006",
	"2006-01-02 15:04",
	"01/02/2006 15:04",
}

// ParseDueDate resolves a task due-date clause. Relative phrases land on 23:59:59
// of the resolved day; absolute dates use the listed layouts.
func (p *Parser) ParseDueDate(phrase string) (time.Time, bool) {
	phrase = strings.ToLower(strings.TrimSpace(phrase))
	if phrase == "" {
		return time.Time{}, false
	}
	now := p.now()
	endOfDay := func(d time.Time) time.Time {
		return time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, 0, d.Location())
	}

	switch {
	case phrase == "today" || phrase == "now":
		return endOfDay(now), true
	case phrase == "tomorrow":
		return endOfDay(now.AddDate(0, 0, 1)), true
	case strings.Contains(phrase, "next week"):
		return endOfDay(now.AddDate(0, 0, 7)), true
	case strings.HasSuffix(phrase, "days") || strings.HasSuffix(phrase, "day"):
		if m := daysPattern.FindStringSubmatch(phrase); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				return endOfDay(now.AddDate(0, 0, n)), true
			}
		}
	}

	for _, layout := range dueDateLayouts {
		if t, err := time.ParseInLocation(layout, phrase, now.Location()); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
