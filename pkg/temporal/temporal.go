// Package temporal extracts due dates and times from natural-language task text.
package temporal

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the normalized date format.
const DateLayout = "2006-01-02"

// DateMatch is a resolved date plus the text that produced it.
type DateMatch struct {
	Date time.Time
	Span string
}

// String returns the date as YYYY-MM-DD.
func (m DateMatch) String() string {
	return m.Date.Format(DateLayout)
}

// TimeMatch is a resolved 24-hour time plus the text that produced it.
type TimeMatch struct {
	Hour   int
	Minute int
	Span   string
}

// String returns the time as HH:MM.
func (m TimeMatch) String() string {
	return fmt.Sprintf("%02d:%02d", m.Hour, m.Minute)
}

var (
	todayPattern    = regexp.MustCompile(`(?i)\btoday\b`)
	tomorrowPattern = regexp.MustCompile(`(?i)\btomorrow\b`)
	weekdayPattern  = regexp.MustCompile(`(?i)\b(?:(?:next|this)\s+)?(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`)
	inDaysPattern   = regexp.MustCompile(`(?i)\bin\s+(\d{1,3}|one|two|three|four|five)\s+days?\b`)
	nextWeekPattern = regexp.MustCompile(`(?i)\bnext\s+week\b`)

	clockPattern  = regexp.MustCompile(`(?i)\b(?:at\s+)?(\d{1,2}):(\d{2})\s*(am|pm)?\b`)
	atHourPattern = regexp.MustCompile(`(?i)\bat\s+(\d{1,2})\s*(am|pm)?\b`)
)

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

var spelledDays = map[string]int{
	"one":   1,
	"two":   2,
	"three": 3,
	"four":  4,
	"five":  5,
}

// Extractor resolves relative dates against Now. A nil Now uses time.Now.
// It holds no other state and is safe for concurrent use.
type Extractor struct {
	Now func() time.Time
}

// New returns an Extractor using the wall clock.
func New() *Extractor {
	return &Extractor{Now: time.Now}
}

func (e *Extractor) now() time.Time {
	if e == nil || e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

// DueDate extracts the first date expression in text.
func (e *Extractor) DueDate(text string) (DateMatch, bool) {
	return DueDateAt(text, e.now())
}

// DueTime extracts the first time-of-day expression in text.
func (e *Extractor) DueTime(text string) (TimeMatch, bool) {
	return DueTime(text)
}

// DueDateAt extracts a date relative to ref. Expressions are tried in a fixed
// order: today, tomorrow, weekday, "in N days", "next week". Weekdays always
// resolve forward; naming today's weekday means a week from today.
func DueDateAt(text string, ref time.Time) (DateMatch, bool) {
	midnight := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, ref.Location())

	if span := todayPattern.FindString(text); span != "" {
		return DateMatch{Date: midnight, Span: span}, true
	}
	if span := tomorrowPattern.FindString(text); span != "" {
		return DateMatch{Date: midnight.AddDate(0, 0, 1), Span: span}, true
	}
	if m := weekdayPattern.FindStringSubmatch(text); m != nil {
		target := weekdays[strings.ToLower(m[1])]
		delta := (int(target) - int(ref.Weekday()) + 7) % 7
		if delta == 0 {
			delta = 7
		}
		return DateMatch{Date: midnight.AddDate(0, 0, delta), Span: m[0]}, true
	}
	if m := inDaysPattern.FindStringSubmatch(text); m != nil {
		if n, ok := dayCount(m[1]); ok {
			return DateMatch{Date: midnight.AddDate(0, 0, n), Span: m[0]}, true
		}
	}
	if span := nextWeekPattern.FindString(text); span != "" {
		return DateMatch{Date: midnight.AddDate(0, 0, 7), Span: span}, true
	}
	return DateMatch{}, false
}

func dayCount(s string) (int, bool) {
	if n, ok := spelledDays[strings.ToLower(s)]; ok {
		return n, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// DueTime extracts a time of day, preferring H:MM forms over "at H".
// Out-of-range values are skipped.
func DueTime(text string) (TimeMatch, bool) {
	for _, m := range clockPattern.FindAllStringSubmatch(text, -1) {
		if tm, ok := resolveTime(m[1], m[2], m[3]); ok {
			tm.Span = strings.TrimSpace(m[0])
			return tm, true
		}
	}
	for _, loc := range atHourPattern.FindAllStringSubmatchIndex(text, -1) {
		// "at 9:75" is a malformed clock time, not "at 9".
		if loc[1] < len(text) && text[loc[1]] == ':' {
			continue
		}
		meridiem := ""
		if loc[4] >= 0 {
			meridiem = text[loc[4]:loc[5]]
		}
		if tm, ok := resolveTime(text[loc[2]:loc[3]], "00", meridiem); ok {
			tm.Span = strings.TrimSpace(text[loc[0]:loc[1]])
			return tm, true
		}
	}
	return TimeMatch{}, false
}

func resolveTime(hourText, minuteText, meridiem string) (TimeMatch, bool) {
	hour, err := strconv.Atoi(hourText)
	if err != nil {
		return TimeMatch{}, false
	}
	minute, err := strconv.Atoi(minuteText)
	if err != nil {
		return TimeMatch{}, false
	}

	switch strings.ToLower(meridiem) {
	case "pm":
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}

	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return TimeMatch{}, false
	}
	return TimeMatch{Hour: hour, Minute: minute}, true
}
