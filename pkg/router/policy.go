package router

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/zen-systems/triage/pkg/classifier"
	"github.com/zen-systems/triage/pkg/schema"
)

// DefaultEligible lists the request types that may be escalated. Due-date
// extraction is answered exhaustively by the temporal extractor.
var DefaultEligible = []schema.RequestType{
	schema.RequestClassifyPriority,
	schema.RequestParseTask,
	schema.RequestSuggestGoal,
}

// Policy decides whether a rule-based result should be escalated.
type Policy struct {
	Threshold float64
	Eligible  map[schema.RequestType]bool

	guard     *vm.Program
	guardExpr string
}

// Decision is the outcome of a policy check.
type Decision struct {
	Escalate  bool    `json:"escalate"`
	Threshold float64 `json:"threshold"`
	Reason    string  `json:"reason"`
}

// NewPolicy builds a policy with the default threshold and eligible set.
func NewPolicy() *Policy {
	p := &Policy{
		Threshold: classifier.EscalationThreshold,
		Eligible:  make(map[schema.RequestType]bool, len(DefaultEligible)),
	}
	for _, t := range DefaultEligible {
		p.Eligible[t] = true
	}
	return p
}

// guardEnv is the environment guard expressions are evaluated against.
func guardEnv(reqType schema.RequestType, confidence, threshold float64, text string) map[string]any {
	return map[string]any{
		"type":        string(reqType),
		"confidence":  confidence,
		"threshold":   threshold,
		"text_length": utf8.RuneCountInString(text),
	}
}

// SetGuard compiles an expression that must evaluate to true for escalation to
// proceed, e.g. `text_length > 10 && type != "SUGGEST_STRUCTURED_GOAL"`. An
// empty expression clears the guard.
func (p *Policy) SetGuard(src string) error {
	src = strings.TrimSpace(src)
	if src == "" || src == "true" {
		p.guard, p.guardExpr = nil, ""
		return nil
	}
	program, err := expr.Compile(src, expr.Env(guardEnv("", 0, 0, "")), expr.AsBool())
	if err != nil {
		return fmt.Errorf("compile escalation guard %q: %w", src, err)
	}
	p.guard, p.guardExpr = program, src
	return nil
}

// Guard returns the guard source, if any.
func (p *Policy) Guard() string {
	return p.guardExpr
}

// IsEligible reports whether the type may ever be escalated.
func (p *Policy) IsEligible(t schema.RequestType) bool {
	return p.Eligible[t]
}

// EffectiveThreshold returns the caller override when positive.
func (p *Policy) EffectiveThreshold(opts schema.Options) float64 {
	if opts.MinConfidenceOverride > 0 {
		return opts.MinConfidenceOverride
	}
	if p.Threshold > 0 {
		return p.Threshold
	}
	return classifier.EscalationThreshold
}

// Decide applies the escalation rules in order: type eligibility, caller
// opt-out, confidence threshold, then the guard.
func (p *Policy) Decide(req *schema.Request, confidence float64) Decision {
	return p.decide(req, confidence, checks{optOut: true, threshold: true})
}

// checks selects which rules a routing mode honors. Eligibility and the guard
// always apply.
type checks struct {
	optOut    bool
	threshold bool
}

func (p *Policy) decide(req *schema.Request, confidence float64, c checks) Decision {
	threshold := p.EffectiveThreshold(req.Options)
	d := Decision{Threshold: threshold}

	switch {
	case !p.IsEligible(req.Type):
		d.Reason = "request type not eligible"
	case c.optOut && !req.Options.EscalationAllowed():
		d.Reason = "escalation disabled by caller"
	case c.threshold && confidence >= threshold:
		d.Reason = fmt.Sprintf("confidence %.2f meets threshold %.2f", confidence, threshold)
	default:
		d.Escalate, d.Reason = p.checkGuard(req, confidence, threshold)
	}
	return d
}

// checkGuard returns true when there is no guard. Guard errors veto.
func (p *Policy) checkGuard(req *schema.Request, confidence, threshold float64) (bool, string) {
	reason := fmt.Sprintf("confidence %.2f below threshold %.2f", confidence, threshold)
	if p.guard == nil {
		return true, reason
	}
	out, err := expr.Run(p.guard, guardEnv(req.Type, confidence, threshold, req.Text))
	if err != nil {
		return false, fmt.Sprintf("guard error: %v", err)
	}
	if ok, _ := out.(bool); !ok {
		return false, "vetoed by guard"
	}
	return true, reason
}
