package classifier

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/zen-systems/triage/pkg/schema"
)

func TestClassifyScenarios(t *testing.T) {
	c := New()
	tests := []struct {
		name          string
		text          string
		wantQuadrant  schema.Quadrant
		wantConf      float64
		wantUrgent    bool
		wantImportant bool
	}{
		{
			name:          "outage with customers waiting",
			text:          "Server is down, customers can't access the app",
			wantQuadrant:  schema.QuadrantDoFirst,
			wantConf:      0.90,
			wantUrgent:    true,
			wantImportant: true,
		},
		{
			name:         "social media",
			text:         "Browse social media during lunch break",
			wantQuadrant: schema.QuadrantEliminate,
			wantConf:     0.85,
		},
		{
			name:         "office supplies",
			text:         "Order office supplies that are running low",
			wantQuadrant: schema.QuadrantDelegate,
			wantConf:     0.80,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.text)
			if got.Quadrant != tt.wantQuadrant {
				t.Fatalf("quadrant = %s, want %s (%s)", got.Quadrant, tt.wantQuadrant, got.Explanation)
			}
			if got.Confidence != tt.wantConf {
				t.Fatalf("confidence = %.2f, want %.2f", got.Confidence, tt.wantConf)
			}
			if got.IsUrgent != tt.wantUrgent || got.IsImportant != tt.wantImportant {
				t.Fatalf("flags urgent=%v important=%v", got.IsUrgent, got.IsImportant)
			}
			if got.ShouldEscalate {
				t.Fatalf("confident result should not escalate")
			}
		})
	}
}

func TestClassifyBranches(t *testing.T) {
	c := New()
	tests := []struct {
		name     string
		text     string
		quadrant schema.Quadrant
		conf     float64
		escalate bool
	}{
		{"two low-priority signals", "Watch Netflix and scroll Instagram", schema.QuadrantEliminate, 0.85, false},
		{"one low-priority signal", "Maybe repaint the fence", schema.QuadrantEliminate, 0.75, false},
		{"routine delegation", "Weekly status report", schema.QuadrantDelegate, 0.80, false},
		{"single delegation signal", "Book a flight to Denver", schema.QuadrantDelegate, 0.75, false},
		{"urgent and important capped", "Urgent: submit the proposal today", schema.QuadrantDoFirst, 0.95, false},
		{"important only", "Review retirement savings plan", schema.QuadrantSchedule, 0.75, false},
		{"urgent only", "Reply to the landlord today", schema.QuadrantDelegate, 0.70, false},
		{"near deadline only", "Water the plants tomorrow", schema.QuadrantDelegate, 0.65, false},
		{"far deadline", "Repaint the fence eventually", schema.QuadrantSchedule, 0.60, true},
		{"no signals", "Water the plants", schema.QuadrantSchedule, 0.55, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.text)
			if got.Quadrant != tt.quadrant || got.Confidence != tt.conf {
				t.Fatalf("got %s %.2f, want %s %.2f (%s)", got.Quadrant, got.Confidence, tt.quadrant, tt.conf, got.Explanation)
			}
			if got.ShouldEscalate != tt.escalate {
				t.Fatalf("ShouldEscalate = %v, want %v", got.ShouldEscalate, tt.escalate)
			}
		})
	}
}

func TestClassifyEmptyInput(t *testing.T) {
	c := New()
	for _, text := range []string{"", "   ", "\n\t"} {
		got := c.Classify(text)
		if got.Quadrant != schema.QuadrantSchedule {
			t.Fatalf("quadrant = %s, want SCHEDULE", got.Quadrant)
		}
		if got.Confidence != EmptyInputConfidence || !got.ShouldEscalate {
			t.Fatalf("unexpected empty result: %+v", got)
		}
		if !strings.Contains(got.Explanation, "empty") {
			t.Fatalf("explanation should mention empty input: %q", got.Explanation)
		}
	}
}

func TestLowPriorityPrecedence(t *testing.T) {
	c := New()
	text := "Maybe browse social media right now, it's urgent, the server is down"

	s := c.Analyze(text)
	if s.LowPriority < 2 || s.Urgency < 3 {
		t.Fatalf("fixture should carry 2+ low-priority and 3+ urgency signals: %+v", s)
	}

	got := c.Classify(text)
	if got.Quadrant != schema.QuadrantEliminate {
		t.Fatalf("quadrant = %s, want ELIMINATE", got.Quadrant)
	}
	if got.Confidence != EliminateStrongConfidence {
		t.Fatalf("confidence = %.2f", got.Confidence)
	}
}

func TestImportanceVetoedByDelegation(t *testing.T) {
	c := New()
	got := c.Classify("Important: weekly expense reports for the client")
	if got.IsImportant {
		t.Fatalf("delegation signals must veto importance")
	}
	if got.Quadrant != schema.QuadrantDelegate {
		t.Fatalf("quadrant = %s, want DELEGATE", got.Quadrant)
	}
	if len(got.ImportanceSignals) == 0 {
		t.Fatalf("importance phrases are still reported")
	}
}

func TestImportanceMonotonic(t *testing.T) {
	c := New()
	one := c.Classify("Plan my career")
	two := c.Classify("Plan my career and health")
	three := c.Classify("Plan my career, health and family budget")

	for _, r := range []schema.ClassificationResult{one, two, three} {
		if r.Quadrant != schema.QuadrantSchedule {
			t.Fatalf("expected SCHEDULE, got %s (%s)", r.Quadrant, r.Explanation)
		}
	}
	if !(one.Confidence <= two.Confidence && two.Confidence <= three.Confidence) {
		t.Fatalf("confidence decreased: %.2f %.2f %.2f", one.Confidence, two.Confidence, three.Confidence)
	}
	if one.Confidence != 0.75 || two.Confidence != 0.80 {
		t.Fatalf("unexpected confidences %.2f %.2f", one.Confidence, two.Confidence)
	}
}

func TestShouldEscalateBoundary(t *testing.T) {
	if !ShouldEscalate(0.64) {
		t.Fatalf("0.64 must escalate")
	}
	if ShouldEscalate(0.65) {
		t.Fatalf("0.65 must not escalate")
	}
	a, b := 0.35, 0.30
	if ShouldEscalate(a + b) {
		t.Fatalf("%v rounds to 0.65 and must not escalate", a+b)
	}
}

func TestSignalsAreOrdered(t *testing.T) {
	c := New()
	got := c.Classify("Urgent: the site is down today, deadline tomorrow")
	want := []string{"Urgent", "today", "deadline tomorrow", "site is down"}
	if diff := cmp.Diff(want, got.UrgencySignals); diff != "" {
		t.Fatalf("urgency signals mismatch (-want +got):\n%s", diff)
	}
}

func TestGroupScoreCountsDistinctPatterns(t *testing.T) {
	g := MustGroup("test", `\bfoo\b`, `\bbar\b`)
	if got := g.Score("foo foo foo"); got != 1 {
		t.Fatalf("score = %d, want 1", got)
	}
	if got := g.Score("bar then foo"); got != 2 {
		t.Fatalf("score = %d, want 2", got)
	}
	if diff := cmp.Diff([]string{"FOO", "bar"}, g.Matches("bar then FOO")); diff != "" {
		t.Fatalf("matches mismatch (-want +got):\n%s", diff)
	}
}

func TestNewGroupRejectsBadPattern(t *testing.T) {
	if _, err := NewGroup("bad", `(unclosed`); err == nil {
		t.Fatalf("expected compile error")
	}
}

func TestDefaultLibrarySizes(t *testing.T) {
	lib := DefaultLibrary()
	sizes := map[string][2]int{
		"urgency":      {lib.Urgency.Len(), 15},
		"importance":   {lib.Importance.Len(), 18},
		"delegation":   {lib.Delegation.Len(), 11},
		"low_priority": {lib.LowPriority.Len(), 10},
	}
	for name, s := range sizes {
		if s[0] != s[1] {
			t.Fatalf("%s has %d patterns, want %d", name, s[0], s[1])
		}
	}
}

var signalPhrases = []interface{}{
	"urgent", "asap", "today", "server is down", "customers are waiting",
	"important", "career", "health", "family", "revenue", "submit",
	"delegate", "weekly", "paperwork", "status report", "anyone can",
	"maybe", "netflix", "social media", "gaming", "browse",
	"tomorrow", "next month", "eventually", "no deadline", "",
}

func TestClassifyProperties(t *testing.T) {
	c := New()
	properties := gopter.NewProperties(nil)

	properties.Property("confidence stays within [0, 0.95] with one quadrant", prop.ForAll(
		func(text string) bool {
			r := c.Classify(text)
			return r.Quadrant.Valid() && r.Confidence >= 0 && r.Confidence <= MaxRuleConfidence
		},
		gen.AnyString(),
	))

	properties.Property("classification is deterministic", prop.ForAll(
		func(a, b, d string) bool {
			text := strings.Join([]string{a, b, d}, " ")
			return cmp.Equal(c.Classify(text), c.Classify(text))
		},
		gen.OneConstOf(signalPhrases...),
		gen.OneConstOf(signalPhrases...),
		gen.OneConstOf(signalPhrases...),
	))

	properties.Property("ShouldEscalate mirrors the threshold", prop.ForAll(
		func(a, b string) bool {
			r := c.Classify(a + " " + b)
			return r.ShouldEscalate == (r.Confidence < EscalationThreshold)
		},
		gen.OneConstOf(signalPhrases...),
		gen.OneConstOf(signalPhrases...),
	))

	properties.Property("two low-priority signals always eliminate", prop.ForAll(
		func(extra string) bool {
			r := c.Classify("maybe watch netflix " + extra)
			return r.Quadrant == schema.QuadrantEliminate && r.Confidence == EliminateStrongConfidence
		},
		gen.OneConstOf(signalPhrases...),
	))

	properties.Property("grid quadrants agree with flags", prop.ForAll(
		func(a, b string) bool {
			text := a + " " + b
			s := c.Analyze(text)
			r := c.Classify(text)
			if s.LowPriority > 0 || s.Delegation > 0 {
				return true
			}
			return r.Quadrant == schema.QuadrantFor(r.IsUrgent, r.IsImportant) ||
				(!r.IsUrgent && !r.IsImportant && r.Quadrant == schema.QuadrantSchedule)
		},
		gen.OneConstOf(signalPhrases...),
		gen.OneConstOf(signalPhrases...),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
