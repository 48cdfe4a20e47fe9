package classifier

// Confidence constants used by Classify and by the router's escalation policy.
// Every branch confidence is derived from this table.
const (
	// EscalationThreshold is the default confidence below which eligible
	// requests escalate to an inference backend.
	EscalationThreshold = 0.65

	// MaxRuleConfidence caps rule-based confidence. Values at or above it
	// are reserved for backend results.
	MaxRuleConfidence = 0.95

	EmptyInputConfidence = 0.50

	EliminateStrongConfidence  = 0.85 // two or more low-priority signals
	EliminateWeakConfidence    = 0.75 // one low-priority signal, nothing else
	DelegateRoutineBase        = 0.70
	DoFirstBase                = 0.75
	ScheduleBase               = 0.70
	DelegateUrgentBase         = 0.65
	DelegateResidualConfidence = 0.65
	FarDeadlineConfidence      = 0.60
	DefaultConfidence          = 0.55

	SignalIncrement = 0.05

	DelegationSignalCap = 2
	DoFirstSignalCap    = 4
	ScheduleSignalCap   = 3
	UrgencySignalCap    = 2
)

// Goal suggestion confidence.
const (
	GoalBaseConfidence       = 0.50
	GoalCategoryBonus        = 0.10
	GoalMeasurableBonus      = 0.05
	GoalTimeframeBonus       = 0.05
	DueDateFoundConfidence   = 0.90
	DueDateMissingConfidence = 0.50
)

// ShouldEscalate reports whether a confidence falls below the default
// escalation threshold.
func ShouldEscalate(confidence float64) bool {
	return round2(confidence) < EscalationThreshold
}
