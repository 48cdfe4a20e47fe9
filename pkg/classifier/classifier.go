// Package classifier implements the rule-based priority classifier.
//
// Text is scored against the signal groups of a Library and mapped to a
// quadrant by a fixed precedence: strong low-priority signals first, then
// routine delegation, then the urgent/important grid, then the safe default.
// Classification is pure and never fails.
package classifier

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/zen-systems/triage/pkg/schema"
	"github.com/zen-systems/triage/pkg/temporal"
)

// Signals are the raw scores computed for a text.
type Signals struct {
	Urgency      int  `json:"urgency"`
	Importance   int  `json:"importance"`
	Delegation   int  `json:"delegation"`
	LowPriority  int  `json:"low_priority"`
	NearDeadline bool `json:"near_deadline"`
	FarDeadline  bool `json:"far_deadline"`
}

// Urgent reports whether any urgency signal or a near deadline is present.
func (s Signals) Urgent() bool {
	return s.Urgency >= 1 || s.NearDeadline
}

// Important reports whether importance survives the veto: any delegation or
// low-priority signal cancels it.
func (s Signals) Important() bool {
	return s.Importance >= 1 && s.LowPriority == 0 && s.Delegation == 0
}

// Classifier scores text against a Library. It is stateless and safe for
// concurrent use.
type Classifier struct {
	lib   *Library
	dates *temporal.Extractor
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithLibrary replaces the default signal library.
func WithLibrary(lib *Library) Option {
	return func(c *Classifier) {
		if lib != nil {
			c.lib = lib
		}
	}
}

// WithClock sets the reference time that relative dates resolve against.
func WithClock(now func() time.Time) Option {
	return func(c *Classifier) {
		if now != nil {
			c.dates = &temporal.Extractor{Now: now}
		}
	}
}

// New creates a classifier backed by DefaultLibrary and the wall clock unless
// overridden.
func New(opts ...Option) *Classifier {
	c := &Classifier{lib: DefaultLibrary(), dates: temporal.New()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Library returns the library in use.
func (c *Classifier) Library() *Library {
	return c.lib
}

// Analyze computes the group scores and deadline flags for text.
func (c *Classifier) Analyze(text string) Signals {
	return Signals{
		Urgency:      c.lib.Urgency.Score(text),
		Importance:   c.lib.Importance.Score(text),
		Delegation:   c.lib.Delegation.Score(text),
		LowPriority:  c.lib.LowPriority.Score(text),
		NearDeadline: c.lib.NearDeadline.Any(text),
		FarDeadline:  c.lib.FarDeadline.Any(text),
	}
}

// Classify assigns text to a quadrant with a confidence and explanation.
// Empty input degrades to a low-confidence Schedule result.
func (c *Classifier) Classify(text string) schema.ClassificationResult {
	if strings.TrimSpace(text) == "" {
		return schema.ClassificationResult{
			Quadrant:       schema.QuadrantSchedule,
			Confidence:     EmptyInputConfidence,
			Explanation:    "empty task description; scheduled for review",
			ShouldEscalate: ShouldEscalate(EmptyInputConfidence),
		}
	}

	s := c.Analyze(text)
	urgent, important := s.Urgent(), s.Important()
	urgencySignals := c.urgencySignals(text)
	importanceSignals := c.lib.Importance.Matches(text)

	var (
		quadrant    schema.Quadrant
		confidence  float64
		explanation string
	)

	switch {
	case s.LowPriority >= 2:
		low := c.lib.LowPriority.Matches(text)
		quadrant = schema.QuadrantEliminate
		confidence = EliminateStrongConfidence
		explanation = fmt.Sprintf("multiple low-priority signals (%s)", quote(low[:2]))
	case s.LowPriority >= 1 && s.Urgency == 0 && s.Importance == 0:
		quadrant = schema.QuadrantEliminate
		confidence = EliminateWeakConfidence
		explanation = fmt.Sprintf("low-priority signal (%s) with no urgency or importance", quote(c.lib.LowPriority.Matches(text)))
	case s.Delegation >= 1 && !important && !urgent:
		quadrant = schema.QuadrantDelegate
		confidence = DelegateRoutineBase + SignalIncrement*float64(min(s.Delegation, DelegationSignalCap))
		explanation = fmt.Sprintf("routine or administrative task (%s)", quote(c.lib.Delegation.Matches(text)))
	case urgent && important:
		quadrant = schema.QuadrantDoFirst
		confidence = DoFirstBase + SignalIncrement*float64(min(s.Urgency+s.Importance, DoFirstSignalCap))
		explanation = fmt.Sprintf("urgent (%s) and important (%s)", quote(urgencySignals), quote(importanceSignals))
	case important:
		quadrant = schema.QuadrantSchedule
		confidence = ScheduleBase + SignalIncrement*float64(min(s.Importance, ScheduleSignalCap))
		explanation = fmt.Sprintf("important (%s) but not time-critical", quote(importanceSignals))
	case urgent:
		quadrant = schema.QuadrantDelegate
		confidence = DelegateUrgentBase + SignalIncrement*float64(min(s.Urgency, UrgencySignalCap))
		explanation = fmt.Sprintf("time-critical (%s) but not important", quote(urgencySignals))
		if s.Importance >= 1 {
			explanation += "; importance vetoed by delegation or low-priority signals"
		}
	case s.Delegation >= 1:
		quadrant = schema.QuadrantDelegate
		confidence = DelegateResidualConfidence
		explanation = fmt.Sprintf("delegation signal (%s)", quote(c.lib.Delegation.Matches(text)))
	case s.FarDeadline:
		quadrant = schema.QuadrantSchedule
		confidence = FarDeadlineConfidence
		explanation = fmt.Sprintf("distant deadline (%s)", quote(c.lib.FarDeadline.Matches(text)))
	default:
		quadrant = schema.QuadrantSchedule
		confidence = DefaultConfidence
		explanation = "no strong signals; scheduled for review"
	}

	confidence = round2(math.Min(confidence, MaxRuleConfidence))

	return schema.ClassificationResult{
		Quadrant:          quadrant,
		Confidence:        confidence,
		Explanation:       explanation,
		UrgencySignals:    urgencySignals,
		ImportanceSignals: importanceSignals,
		IsUrgent:          urgent,
		IsImportant:       important,
		ShouldEscalate:    ShouldEscalate(confidence),
	}
}

// urgencySignals lists urgency phrases followed by near-deadline phrases not
// already reported.
func (c *Classifier) urgencySignals(text string) []string {
	signals := c.lib.Urgency.Matches(text)
	for _, near := range c.lib.NearDeadline.Matches(text) {
		if !containsFold(signals, near) {
			signals = append(signals, near)
		}
	}
	return signals
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func quote(phrases []string) string {
	if len(phrases) == 0 {
		return "none"
	}
	quoted := make([]string, len(phrases))
	for i, p := range phrases {
		quoted[i] = fmt.Sprintf("%q", p)
	}
	return strings.Join(quoted, ", ")
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
