package classifier

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/zen-systems/triage/pkg/schema"
)

// Goal timeframes.
const (
	TimeframeShortTerm = "short_term"
	TimeframeLongTerm  = "long_term"
)

// goalCategories are the importance labels that name a life domain.
var goalCategories = []string{"career", "health", "family", "financial", "legal", "learning", "business"}

var (
	goalPrefixPattern  = regexp.MustCompile(`(?i)^\s*(i\s+want\s+to|i['’]?d\s+like\s+to|i\s+need\s+to|my\s+goal\s+is\s+to|goal:)\s*`)
	measurablePattern  = regexp.MustCompile(`(?i)(\d|%|\$|\b(percent|kg|kilos?|lbs?|pounds|miles?|km|hours?|minutes?|times|pages|books|dollars|euros|steps|chapters|sessions)\b)`)
	milestoneSeparator = regexp.MustCompile(`(?i)\s*(?:;|,?\s+and\s+then\s+|,?\s+then\s+)\s*`)
)

// SuggestGoal turns free text into a structured goal. Confidence starts at
// GoalBaseConfidence and gains a bonus for each of category, measurability
// and timeframe that could be determined.
func (c *Classifier) SuggestGoal(text string) schema.GoalSuggestion {
	goal := schema.GoalSuggestion{Confidence: GoalBaseConfidence}
	if strings.TrimSpace(text) == "" {
		goal.Explanation = "empty goal description"
		return goal
	}

	var reasons []string
	confidence := GoalBaseConfidence

	labels := c.lib.Importance.Labels(text)
	for _, category := range goalCategories {
		if containsFold(labels, category) {
			goal.Category = category
			confidence += GoalCategoryBonus
			reasons = append(reasons, "category "+category)
			break
		}
	}

	if measurablePattern.MatchString(text) {
		goal.Measurable = true
		confidence += GoalMeasurableBonus
		reasons = append(reasons, "measurable target")
	}

	s := c.Analyze(text)
	switch {
	case s.NearDeadline:
		goal.Timeframe = TimeframeShortTerm
	case s.FarDeadline:
		goal.Timeframe = TimeframeLongTerm
	}

	var spans []string
	if d, ok := c.dates.DueDate(text); ok {
		goal.TargetDate = d.String()
		spans = append(spans, d.Span)
		if goal.Timeframe == "" {
			goal.Timeframe = TimeframeShortTerm
		}
	}
	if goal.Timeframe != "" {
		confidence += GoalTimeframeBonus
		reasons = append(reasons, "timeframe "+goal.Timeframe)
	}

	title := goalPrefixPattern.ReplaceAllString(text, "")
	title = cleanTitle(title, spans...)
	goal.Title = capitalize(title)

	if parts := milestoneSeparator.Split(goal.Title, -1); len(parts) > 1 {
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				goal.Milestones = append(goal.Milestones, capitalize(p))
			}
		}
	}

	goal.Confidence = round2(math.Min(confidence, MaxRuleConfidence))
	if len(reasons) == 0 {
		goal.Explanation = "no category, measure or timeframe detected"
	} else {
		goal.Explanation = fmt.Sprintf("detected %s", strings.Join(reasons, ", "))
	}
	return goal
}

func capitalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}
