package schema

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RequestType selects what the caller wants done with the text.
type RequestType string

const (
	RequestClassifyPriority RequestType = "CLASSIFY_PRIORITY"
	RequestParseTask        RequestType = "PARSE_TASK"
	RequestSuggestGoal      RequestType = "SUGGEST_STRUCTURED_GOAL"
	RequestExtractDueDate   RequestType = "EXTRACT_DUE_DATE"
)

// RequestTypes lists every request type the rule-based path supports.
var RequestTypes = []RequestType{
	RequestClassifyPriority,
	RequestParseTask,
	RequestSuggestGoal,
	RequestExtractDueDate,
}

// Supported reports whether the type is one the rule-based path can answer.
func (t RequestType) Supported() bool {
	for _, known := range RequestTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseRequestType accepts canonical names and their lowercase/dashed forms.
func ParseRequestType(s string) (RequestType, error) {
	t := RequestType(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")))
	switch t {
	case "CLASSIFY", "PRIORITY":
		t = RequestClassifyPriority
	case "PARSE":
		t = RequestParseTask
	case "GOAL":
		t = RequestSuggestGoal
	case "DUE", "DUE_DATE":
		t = RequestExtractDueDate
	}
	if !t.Supported() {
		return t, fmt.Errorf("unsupported request type %q", s)
	}
	return t, nil
}

// Options carries per-request routing preferences.
type Options struct {
	// UseEscalation permits escalation to inference backends. Nil means true.
	UseEscalation *bool `json:"use_escalation,omitempty"`
	// MinConfidenceOverride replaces the escalation threshold when positive.
	MinConfidenceOverride float64 `json:"min_confidence_override,omitempty"`
	MaxTokens             int     `json:"max_tokens,omitempty"`
	Temperature           float64 `json:"temperature,omitempty"`
}

// EscalationAllowed reports the effective UseEscalation value.
func (o Options) EscalationAllowed() bool {
	return o.UseEscalation == nil || *o.UseEscalation
}

// Request is a single classification request. The router never mutates it.
type Request struct {
	ID      string            `json:"id"`
	Type    RequestType       `json:"type"`
	Text    string            `json:"text"`
	Context map[string]string `json:"context,omitempty"`
	Options Options           `json:"options"`
}

// RequestOption configures a Request built by NewRequest.
type RequestOption func(*Request)

// WithContext attaches free-form key/value context.
func WithContext(ctx map[string]string) RequestOption {
	return func(r *Request) {
		r.Context = make(map[string]string, len(ctx))
		for k, v := range ctx {
			r.Context[k] = v
		}
	}
}

// WithEscalation sets UseEscalation explicitly.
func WithEscalation(enabled bool) RequestOption {
	return func(r *Request) {
		r.Options.UseEscalation = &enabled
	}
}

// WithMinConfidence overrides the escalation threshold for this request.
func WithMinConfidence(threshold float64) RequestOption {
	return func(r *Request) {
		r.Options.MinConfidenceOverride = threshold
	}
}

// WithGeneration sets the token budget and sampling temperature passed to backends.
func WithGeneration(maxTokens int, temperature float64) RequestOption {
	return func(r *Request) {
		r.Options.MaxTokens = maxTokens
		r.Options.Temperature = temperature
	}
}

// NewRequest builds a request with a fresh UUID. Escalation defaults to enabled.
func NewRequest(t RequestType, text string, opts ...RequestOption) *Request {
	enabled := true
	r := &Request{
		ID:      uuid.NewString(),
		Type:    t,
		Text:    text,
		Options: Options{UseEscalation: &enabled},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ClassificationResult is the outcome of priority classification.
type ClassificationResult struct {
	Quadrant          Quadrant `json:"quadrant"`
	Confidence        float64  `json:"confidence"`
	Explanation       string   `json:"explanation"`
	UrgencySignals    []string `json:"urgency_signals,omitempty"`
	ImportanceSignals []string `json:"importance_signals,omitempty"`
	IsUrgent          bool     `json:"is_urgent"`
	IsImportant       bool     `json:"is_important"`
	ShouldEscalate    bool     `json:"should_escalate"`
}

// ParsedTask is the outcome of task parsing.
type ParsedTask struct {
	Title          string               `json:"title"`
	DueDate        string               `json:"due_date,omitempty"` // YYYY-MM-DD
	DueTime        string               `json:"due_time,omitempty"` // HH:MM
	Classification ClassificationResult `json:"classification"`
	Confidence     float64              `json:"confidence"`
}

// GoalSuggestion is the outcome of structured-goal suggestion.
type GoalSuggestion struct {
	Title       string   `json:"title"`
	Category    string   `json:"category,omitempty"`
	Timeframe   string   `json:"timeframe,omitempty"`
	TargetDate  string   `json:"target_date,omitempty"`
	Measurable  bool     `json:"measurable"`
	Milestones  []string `json:"milestones,omitempty"`
	Confidence  float64  `json:"confidence"`
	Explanation string   `json:"explanation,omitempty"`
}

// DueDate is the outcome of due-date extraction.
type DueDate struct {
	Found      bool    `json:"found"`
	Date       string  `json:"date,omitempty"`
	DateSpan   string  `json:"date_span,omitempty"`
	Time       string  `json:"time,omitempty"`
	TimeSpan   string  `json:"time_span,omitempty"`
	Confidence float64 `json:"confidence"`
}

// Result holds exactly one result variant.
type Result struct {
	Classification *ClassificationResult `json:"classification,omitempty"`
	Task           *ParsedTask           `json:"task,omitempty"`
	Goal           *GoalSuggestion       `json:"goal,omitempty"`
	DueDate        *DueDate              `json:"due_date,omitempty"`
}

// Kind names the populated variant.
func (r Result) Kind() string {
	switch {
	case r.Classification != nil:
		return "classification"
	case r.Task != nil:
		return "task"
	case r.Goal != nil:
		return "goal"
	case r.DueDate != nil:
		return "due_date"
	default:
		return ""
	}
}

// Confidence returns the confidence of the populated variant.
func (r Result) Confidence() float64 {
	switch {
	case r.Classification != nil:
		return r.Classification.Confidence
	case r.Task != nil:
		return r.Task.Confidence
	case r.Goal != nil:
		return r.Goal.Confidence
	case r.DueDate != nil:
		return r.DueDate.Confidence
	default:
		return 0
	}
}

// Quadrant returns the classified quadrant when the variant carries one.
func (r Result) Quadrant() (Quadrant, bool) {
	switch {
	case r.Classification != nil:
		return r.Classification.Quadrant, true
	case r.Task != nil:
		return r.Task.Classification.Quadrant, true
	default:
		return "", false
	}
}

// Usage captures token usage of an escalated call.
type Usage struct {
	PromptTokens     int  `json:"prompt_tokens"`
	CompletionTokens int  `json:"completion_tokens"`
	TotalTokens      int  `json:"total_tokens"`
	Estimated        bool `json:"estimated,omitempty"`
}

// Cost captures the estimated cost of an escalated call.
type Cost struct {
	Currency     string  `json:"currency"`
	Amount       float64 `json:"amount"`
	IsEstimate   bool    `json:"is_estimate"`
	PricingModel string  `json:"pricing_model,omitempty"`
}

// Attempt records one backend attempt made while escalating.
type Attempt struct {
	Backend   string `json:"backend"`
	Model     string `json:"model,omitempty"`
	Skipped   bool   `json:"skipped,omitempty"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
}

// Provenance describes which component produced a response.
type Provenance struct {
	ProviderID          string    `json:"provider_id"`
	BackendID           string    `json:"backend_id,omitempty"`
	ModelID             string    `json:"model_id"`
	LatencyMs           int64     `json:"latency_ms"`
	RuleBasedLatencyMs  int64     `json:"rule_based_latency_ms"`
	EscalationLatencyMs int64     `json:"escalation_latency_ms"`
	WasRuleBased        bool      `json:"was_rule_based"`
	WasEscalated        bool      `json:"was_escalated"`
	ConfidenceScore     float64   `json:"confidence_score"`
	Attempts            []Attempt `json:"attempts,omitempty"`
	Usage               *Usage    `json:"usage,omitempty"`
	Cost                *Cost     `json:"cost,omitempty"`
	Mode                string    `json:"mode"`
	Timestamp           time.Time `json:"timestamp"`
}

// Response is what the router returns for a request.
type Response struct {
	RequestID  string      `json:"request_id"`
	Type       RequestType `json:"type"`
	Result     Result      `json:"result"`
	Provenance Provenance  `json:"provenance"`
}
