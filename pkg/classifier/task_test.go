package classifier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/zen-systems/triage/pkg/schema"
)

// Wednesday.
var now = time.Date(2026, time.October, 14, 10, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

func TestParseTask(t *testing.T) {
	c := New(WithClock(clock))
	tests := []struct {
		text  string
		title string
		date  string
		time  string
	}{
		{"Submit report by Friday at 3pm", "Submit report", "2026-10-16", "15:00"},
		{"Call mom tomorrow about dinner", "Call mom about dinner", "2026-10-15", ""},
		{"Finish taxes due by tomorrow", "Finish taxes", "2026-10-15", ""},
		{"Pay rent by Friday, then relax", "Pay rent, then relax", "2026-10-16", ""},
		{"Dentist appointment at 9:30am", "Dentist appointment", "", "09:30"},
		{"Turn the lights on", "Turn the lights on", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := c.ParseTask(tt.text)
			assert.Equal(t, tt.title, got.Title)
			assert.Equal(t, tt.date, got.DueDate)
			assert.Equal(t, tt.time, got.DueTime)
			assert.Equal(t, got.Classification.Confidence, got.Confidence)
		})
	}
}

func TestParseTaskClassifiesFullText(t *testing.T) {
	c := New(WithClock(clock))
	got := c.ParseTask("Submit report by Friday at 3pm")
	assert.Equal(t, schema.QuadrantDoFirst, got.Classification.Quadrant)
	assert.True(t, got.Classification.IsUrgent)
	assert.Contains(t, got.Classification.UrgencySignals, "Friday")
}

func TestExtractDueDate(t *testing.T) {
	c := New(WithClock(clock))

	got := c.ExtractDueDate("Submit report by Friday at 3pm")
	assert.Equal(t, schema.DueDate{
		Found:      true,
		Date:       "2026-10-16",
		DateSpan:   "Friday",
		Time:       "15:00",
		TimeSpan:   "at 3pm",
		Confidence: DueDateFoundConfidence,
	}, got)

	none := c.ExtractDueDate("Clean the garage")
	assert.False(t, none.Found)
	assert.Equal(t, DueDateMissingConfidence, none.Confidence)
}

func TestSuggestGoal(t *testing.T) {
	c := New(WithClock(clock))
	tests := []struct {
		name       string
		text       string
		category   string
		measurable bool
		timeframe  string
		conf       float64
	}{
		{"all signals", "I want to run 100 miles for my health next month", "health", true, TimeframeLongTerm, 0.70},
		{"category only", "Get better at managing my finances", "financial", false, "", 0.60},
		{"measurable only", "Read 12 novels", "", true, "", 0.55},
		{"nothing", "Be nicer", "", false, "", 0.50},
		{"near deadline", "Finish the certification exam this week", "learning", false, TimeframeShortTerm, 0.65},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.SuggestGoal(tt.text)
			assert.Equal(t, tt.category, got.Category)
			assert.Equal(t, tt.measurable, got.Measurable)
			assert.Equal(t, tt.timeframe, got.Timeframe)
			assert.Equal(t, tt.conf, got.Confidence)
			assert.NotEmpty(t, got.Explanation)
		})
	}
}

func TestSuggestGoalTitleAndMilestones(t *testing.T) {
	c := New(WithClock(clock))
	got := c.SuggestGoal("I want to learn Spanish; pass the B1 exam in 3 days")
	assert.Equal(t, "Learn Spanish; pass the B1 exam", got.Title)
	assert.Equal(t, []string{"Learn Spanish", "Pass the B1 exam"}, got.Milestones)
	assert.Equal(t, "2026-10-17", got.TargetDate)
	assert.Equal(t, TimeframeShortTerm, got.Timeframe)
}

func TestSuggestGoalEmpty(t *testing.T) {
	got := New(WithClock(clock)).SuggestGoal("  ")
	assert.Equal(t, GoalBaseConfidence, got.Confidence)
	assert.Empty(t, got.Title)
}
