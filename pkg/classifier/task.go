package classifier

import (
	"regexp"
	"strings"

	"github.com/zen-systems/triage/pkg/schema"
)

var (
	danglingPattern   = regexp.MustCompile(`(?i)\s*\b(?:by|on|at|due|before)\b\s*([,.;:!?]|$)`)
	spacePattern      = regexp.MustCompile(`\s+`)
	punctSpacePattern = regexp.MustCompile(`\s+([,.;:!?])`)
)

// ParseTask classifies text and extracts its due date and time relative to
// the classifier's clock. The title is the text with the date and time phrases removed.
func (c *Classifier) ParseTask(text string) schema.ParsedTask {
	cls := c.Classify(text)
	task := schema.ParsedTask{
		Classification: cls,
		Confidence:     cls.Confidence,
	}

	var spans []string
	if d, ok := c.dates.DueDate(text); ok {
		task.DueDate = d.String()
		spans = append(spans, d.Span)
	}
	if t, ok := c.dates.DueTime(text); ok {
		task.DueTime = t.String()
		spans = append(spans, t.Span)
	}
	task.Title = cleanTitle(text, spans...)
	return task
}

// ExtractDueDate runs temporal extraction only.
func (c *Classifier) ExtractDueDate(text string) schema.DueDate {
	out := schema.DueDate{Confidence: DueDateMissingConfidence}
	if d, ok := c.dates.DueDate(text); ok {
		out.Found = true
		out.Date = d.String()
		out.DateSpan = d.Span
	}
	if t, ok := c.dates.DueTime(text); ok {
		out.Found = true
		out.Time = t.String()
		out.TimeSpan = t.Span
	}
	if out.Found {
		out.Confidence = DueDateFoundConfidence
	}
	return out
}

// cleanTitle removes spans from text, then drops prepositions left dangling
// at the end of a clause ("Submit report by" -> "Submit report").
func cleanTitle(text string, spans ...string) string {
	title := text
	removed := false
	for _, span := range spans {
		if span != "" && strings.Contains(title, span) {
			title = strings.Replace(title, span, "", 1)
			removed = true
		}
	}
	for removed {
		next := danglingPattern.ReplaceAllString(title, "$1")
		if next == title {
			break
		}
		title = next
	}
	title = spacePattern.ReplaceAllString(title, " ")
	title = punctSpacePattern.ReplaceAllString(title, "$1")
	title = strings.Trim(title, " ,;:-")
	if title == "" {
		return strings.TrimSpace(text)
	}
	return title
}
