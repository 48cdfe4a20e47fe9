package router

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zen-systems/triage/pkg/schema"
)

// Stats is a snapshot of routing counters.
type Stats struct {
	TotalRequests         int64 `json:"total_requests"`
	RuleBasedOnlyCount    int64 `json:"rule_based_only_count"`
	EscalatedCount        int64 `json:"escalated_count"`
	EscalationFailedCount int64 `json:"escalation_failed_count"`
	OverrideCount         int64 `json:"override_count"`
}

// EscalationRate returns the share of requests answered by a backend.
func (s Stats) EscalationRate() float64 {
	if s.TotalRequests == 0 {
		return 0
	}
	return float64(s.EscalatedCount) / float64(s.TotalRequests)
}

// Accuracy returns 1 - overrides/total, or 0 before any request.
func (s Stats) Accuracy() float64 {
	return accuracy(s.OverrideCount, s.TotalRequests)
}

func accuracy(overrides, total int64) float64 {
	if total <= 0 {
		return 0
	}
	a := 1 - float64(overrides)/float64(total)
	if a < 0 {
		return 0
	}
	if a > 1 {
		return 1
	}
	return a
}

// OverrideRecord is a user correction of a routed classification.
type OverrideRecord struct {
	RequestID         string          `json:"request_id"`
	OriginalQuadrant  schema.Quadrant `json:"original_quadrant"`
	CorrectedQuadrant schema.Quadrant `json:"corrected_quadrant"`
	WasEscalated      bool            `json:"was_escalated"`
	Timestamp         time.Time       `json:"timestamp"`
}

// PathAccuracy is accuracy restricted to one resolution path.
type PathAccuracy struct {
	Requests  int64   `json:"requests"`
	Overrides int64   `json:"overrides"`
	Accuracy  float64 `json:"accuracy"`
}

// AccuracyReport splits accuracy by rule-based and escalated answers.
type AccuracyReport struct {
	Overall   float64      `json:"overall"`
	RuleBased PathAccuracy `json:"rule_based"`
	Escalated PathAccuracy `json:"escalated"`
}

// statsRecorder holds the router's shared counters and override history.
type statsRecorder struct {
	total            atomic.Int64
	ruleBasedOnly    atomic.Int64
	escalated        atomic.Int64
	escalationFailed atomic.Int64
	overrides        atomic.Int64

	mu      sync.Mutex
	history []OverrideRecord
}

func (s *statsRecorder) snapshot() Stats {
	return Stats{
		TotalRequests:         s.total.Load(),
		RuleBasedOnlyCount:    s.ruleBasedOnly.Load(),
		EscalatedCount:        s.escalated.Load(),
		EscalationFailedCount: s.escalationFailed.Load(),
		OverrideCount:         s.overrides.Load(),
	}
}

func (s *statsRecorder) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total.Store(0)
	s.ruleBasedOnly.Store(0)
	s.escalated.Store(0)
	s.escalationFailed.Store(0)
	s.overrides.Store(0)
	s.history = nil
}

func (s *statsRecorder) addOverride(rec OverrideRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, rec)
	s.overrides.Add(1)
}

func (s *statsRecorder) overrideHistory() []OverrideRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]OverrideRecord, len(s.history))
	copy(out, s.history)
	return out
}

func (s *statsRecorder) report() AccuracyReport {
	st := s.snapshot()
	var escalatedOverrides int64
	for _, rec := range s.overrideHistory() {
		if rec.WasEscalated {
			escalatedOverrides++
		}
	}
	ruleOverrides := st.OverrideCount - escalatedOverrides
	return AccuracyReport{
		Overall: st.Accuracy(),
		RuleBased: PathAccuracy{
			Requests:  st.RuleBasedOnlyCount,
			Overrides: ruleOverrides,
			Accuracy:  accuracy(ruleOverrides, st.RuleBasedOnlyCount),
		},
		Escalated: PathAccuracy{
			Requests:  st.EscalatedCount,
			Overrides: escalatedOverrides,
			Accuracy:  accuracy(escalatedOverrides, st.EscalatedCount),
		},
	}
}

func validateOverride(rec OverrideRecord) error {
	switch {
	case strings.TrimSpace(rec.RequestID) == "":
		return ErrInvalidOverride
	case !rec.OriginalQuadrant.Valid():
		return &RouteError{RequestID: rec.RequestID, Op: "override", Err: ErrInvalidOverride}
	case !rec.CorrectedQuadrant.Valid():
		return &RouteError{RequestID: rec.RequestID, Op: "override", Err: ErrInvalidOverride}
	}
	return nil
}
