// Package router runs the rule-based classifier and escalates low-confidence
// results to inference backends.
package router

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zen-systems/triage/pkg/backend"
	"github.com/zen-systems/triage/pkg/classifier"
	"github.com/zen-systems/triage/pkg/schema"
)

const (
	// DefaultProviderID identifies the router in escalated provenance.
	DefaultProviderID = "triage-router"
	// RuleBasedProviderID identifies the rule-based classifier in provenance.
	RuleBasedProviderID = "rule-based"
	// RuleBasedModelID names the built-in pattern library.
	RuleBasedModelID = "patterns-v1"
)

// Router resolves requests. It is safe for concurrent use.
type Router struct {
	id         string
	library    *classifier.Library
	classifier *classifier.Classifier
	policy     *Policy
	backends   []backend.Backend
	log        logrus.FieldLogger
	now        func() time.Time

	mode  atomic.Value // Mode
	stats statsRecorder
}

// Option configures a Router.
type Option func(*Router)

// WithBackends sets the escalation backends in the order they are tried.
func WithBackends(backends ...backend.Backend) Option {
	return func(r *Router) {
		r.backends = append([]backend.Backend(nil), backends...)
	}
}

// WithPolicy replaces the default escalation policy.
func WithPolicy(p *Policy) Option {
	return func(r *Router) {
		if p != nil {
			r.policy = p
		}
	}
}

// WithClassifier uses the signal library of c. Relative dates always resolve
// against the router's clock.
func WithClassifier(c *classifier.Classifier) Option {
	return func(r *Router) {
		if c != nil {
			r.library = c.Library()
		}
	}
}

// WithMode sets the initial routing mode.
func WithMode(m Mode) Option {
	return func(r *Router) {
		if m.Valid() {
			r.mode.Store(m)
		}
	}
}

// WithProviderID sets the identity reported for escalated results.
func WithProviderID(id string) Option {
	return func(r *Router) {
		if id != "" {
			r.id = id
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(r *Router) {
		if l != nil {
			r.log = l
		}
	}
}

// WithClock overrides time.Now, used to anchor relative dates and latencies.
func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		if now != nil {
			r.now = now
		}
	}
}

// New creates a router in hybrid mode with no backends.
func New(opts ...Option) *Router {
	r := &Router{
		id:     DefaultProviderID,
		policy: NewPolicy(),
		log:    logrus.StandardLogger(),
		now:    time.Now,
	}
	r.mode.Store(ModeHybrid)
	for _, opt := range opts {
		opt(r)
	}
	r.classifier = classifier.New(classifier.WithLibrary(r.library), classifier.WithClock(r.now))
	return r
}

// Mode returns the current routing mode.
func (r *Router) Mode() Mode {
	return r.mode.Load().(Mode)
}

// SetMode changes the routing mode. Requests already in flight keep the mode
// they started with.
func (r *Router) SetMode(m Mode) error {
	if !m.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidMode, m)
	}
	if prev := r.mode.Swap(m); prev != m {
		r.log.WithFields(logrus.Fields{"mode": m, "previous": prev}).Info("routing mode changed")
	}
	return nil
}

// Backends returns the configured backends in escalation order.
func (r *Router) Backends() []backend.Backend {
	return append([]backend.Backend(nil), r.backends...)
}

// Policy returns the escalation policy.
func (r *Router) Policy() *Policy {
	return r.policy
}

// Stats returns a snapshot of the routing counters.
func (r *Router) Stats() Stats {
	return r.stats.snapshot()
}

// ResetStats zeroes all counters and clears the override history. Counters
// are only consistent with each other when no request is in flight during
// the reset.
func (r *Router) ResetStats() {
	r.stats.reset()
}

// Accuracy returns 1 - overrides/total, or 0 before any request.
func (r *Router) Accuracy() float64 {
	return r.stats.snapshot().Accuracy()
}

// AccuracyReport returns accuracy split by resolution path.
func (r *Router) AccuracyReport() AccuracyReport {
	return r.stats.report()
}

// RecordOverride stores a user correction of a routed classification and
// returns the stored record.
func (r *Router) RecordOverride(requestID string, original, corrected schema.Quadrant, wasEscalated bool) (OverrideRecord, error) {
	rec := OverrideRecord{
		RequestID:         requestID,
		OriginalQuadrant:  original,
		CorrectedQuadrant: corrected,
		WasEscalated:      wasEscalated,
		Timestamp:         r.now(),
	}
	if err := validateOverride(rec); err != nil {
		return OverrideRecord{}, err
	}
	r.stats.addOverride(rec)
	r.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"original":   original,
		"corrected":  corrected,
	}).Debug("override recorded")
	return rec, nil
}

// OverrideHistory returns a copy of the recorded overrides, oldest first.
func (r *Router) OverrideHistory() []OverrideRecord {
	return r.stats.overrideHistory()
}

// Classify runs only the rule-based classifier. It does not touch stats.
func (r *Router) Classify(text string) schema.ClassificationResult {
	return r.classifier.Classify(text)
}

// Route resolves a request. Rule-based classification always runs first;
// eligible low-confidence results are escalated to backends in order. The
// only caller-visible failures are unsupported request types and total
// backend failure in llm_only mode.
func (r *Router) Route(ctx context.Context, req *schema.Request) (*schema.Response, error) {
	if req == nil {
		return nil, &RouteError{Op: "route", Err: ErrInvalidRequest}
	}
	if !req.Type.Supported() {
		return nil, &RouteError{RequestID: req.ID, Op: "route", Err: fmt.Errorf("%w: %q", ErrUnsupportedRequestType, req.Type)}
	}

	mode := r.Mode()
	log := r.log.WithFields(logrus.Fields{"request_id": req.ID, "mode": mode})
	r.stats.total.Add(1)

	start := r.now()
	hint := r.ruleBased(req)
	ruleLatency := r.now().Sub(start)

	resp := &schema.Response{
		RequestID: req.ID,
		Type:      req.Type,
		Result:    hint,
		Provenance: schema.Provenance{
			ProviderID:         RuleBasedProviderID,
			ModelID:            RuleBasedModelID,
			LatencyMs:          ruleLatency.Milliseconds(),
			RuleBasedLatencyMs: ruleLatency.Milliseconds(),
			WasRuleBased:       true,
			ConfidenceScore:    hint.Confidence(),
			Mode:               string(mode),
			Timestamp:          start,
		},
	}

	decision := r.decide(mode, req, hint.Confidence())
	if !decision.Escalate {
		r.stats.ruleBasedOnly.Add(1)
		log.WithField("reason", decision.Reason).Debug("answered rule-based")
		return resp, nil
	}

	escStart := r.now()
	completion, chosen, attempts := r.escalate(ctx, log, r.escalationOrder(mode), req, hint, start)
	escLatency := r.now().Sub(escStart)

	resp.Provenance.Attempts = attempts
	resp.Provenance.EscalationLatencyMs = escLatency.Milliseconds()
	resp.Provenance.LatencyMs = r.now().Sub(start).Milliseconds()

	if completion == nil {
		r.stats.escalationFailed.Add(1)
		if mode == ModeLLMOnly {
			log.Warn("all backends failed")
			return nil, &RouteError{RequestID: req.ID, Op: "escalate", Err: ErrAllBackendsExhausted}
		}
		r.stats.ruleBasedOnly.Add(1)
		log.Info("escalation failed, returning rule-based result")
		return resp, nil
	}

	r.stats.escalated.Add(1)
	resp.Result = completion.Result
	resp.Provenance.ProviderID = r.id
	resp.Provenance.BackendID = chosen.ID()
	resp.Provenance.ModelID = completion.ModelID
	if resp.Provenance.ModelID == "" {
		resp.Provenance.ModelID = chosen.ModelID()
	}
	resp.Provenance.WasRuleBased = false
	resp.Provenance.WasEscalated = true
	resp.Provenance.ConfidenceScore = completion.Result.Confidence()
	resp.Provenance.Usage = completion.Usage
	resp.Provenance.Cost = completion.Cost
	log.WithField("backend", chosen.ID()).Debug("answered by backend")
	return resp, nil
}

func (r *Router) decide(mode Mode, req *schema.Request, confidence float64) Decision {
	switch mode {
	case ModeRuleBasedOnly:
		return Decision{Threshold: r.policy.EffectiveThreshold(req.Options), Reason: "rule_based_only mode"}
	case ModeLLMPreferred:
		return r.policy.decide(req, confidence, checks{optOut: true})
	case ModeLLMOnly:
		return r.policy.decide(req, confidence, checks{})
	default:
		return r.policy.Decide(req, confidence)
	}
}

func (r *Router) ruleBased(req *schema.Request) schema.Result {
	switch req.Type {
	case schema.RequestParseTask:
		task := r.classifier.ParseTask(req.Text)
		return schema.Result{Task: &task}
	case schema.RequestSuggestGoal:
		goal := r.classifier.SuggestGoal(req.Text)
		return schema.Result{Goal: &goal}
	case schema.RequestExtractDueDate:
		due := r.classifier.ExtractDueDate(req.Text)
		return schema.Result{DueDate: &due}
	default:
		cls := r.classifier.Classify(req.Text)
		return schema.Result{Classification: &cls}
	}
}

// escalationOrder returns the backends in configured order, cheapest first.
// llm_preferred tries the most capable tier first, keeping configured order
// within a tier.
func (r *Router) escalationOrder(mode Mode) []backend.Backend {
	if mode != ModeLLMPreferred {
		return r.backends
	}
	ordered := slices.Clone(r.backends)
	slices.SortStableFunc(ordered, func(a, b backend.Backend) int {
		return cmp.Compare(b.Tier().Rank(), a.Tier().Rank())
	})
	return ordered
}

// escalate tries each backend once, in order, until one succeeds.
func (r *Router) escalate(ctx context.Context, log *logrus.Entry, backends []backend.Backend, req *schema.Request, hint schema.Result, now time.Time) (*backend.Completion, backend.Backend, []schema.Attempt) {
	var attempts []schema.Attempt
	for _, b := range backends {
		blog := log.WithField("backend", b.ID())
		if err := ctx.Err(); err != nil {
			blog.WithError(err).Debug("context done, stopping escalation")
			break
		}
		if !b.Available() {
			attempts = append(attempts, schema.Attempt{Backend: b.ID(), Model: b.ModelID(), Skipped: true})
			blog.Debug("backend unavailable, skipping")
			continue
		}

		breq := &backend.Request{
			Request:     req,
			Hint:        cloneResult(hint),
			Now:         now,
			MaxTokens:   req.Options.MaxTokens,
			Temperature: req.Options.Temperature,
		}
		started := r.now()
		completion, err := complete(ctx, b, breq)
		if err == nil {
			err = checkCompletion(completion, hint)
		}
		attempt := schema.Attempt{Backend: b.ID(), Model: b.ModelID(), LatencyMs: r.now().Sub(started).Milliseconds()}
		if err != nil {
			attempt.Error = err.Error()
			attempts = append(attempts, attempt)
			blog.WithError(err).Warn("backend failed")
			continue
		}
		attempts = append(attempts, attempt)
		return completion, b, attempts
	}
	return nil, nil, attempts
}

// complete calls the backend and turns a panic into an error.
func complete(ctx context.Context, b backend.Backend, req *backend.Request) (c *backend.Completion, err error) {
	defer func() {
		if p := recover(); p != nil {
			c, err = nil, fmt.Errorf("backend panic: %v", p)
		}
	}()
	return b.Complete(ctx, req)
}

func checkCompletion(c *backend.Completion, hint schema.Result) error {
	if c == nil {
		return errors.New("backend returned no completion")
	}
	if got, want := c.Result.Kind(), hint.Kind(); got != want {
		return fmt.Errorf("%w: got %q result, want %q", backend.ErrInvalidOutput, got, want)
	}
	if conf := c.Result.Confidence(); conf < 0 || conf > 1 {
		return fmt.Errorf("%w: confidence %.3f out of range", backend.ErrInvalidOutput, conf)
	}
	return nil
}

// cloneResult copies the result so a backend cannot alter the value the
// router falls back to.
func cloneResult(r schema.Result) schema.Result {
	var out schema.Result
	if r.Classification != nil {
		c := cloneClassification(*r.Classification)
		out.Classification = &c
	}
	if r.Task != nil {
		t := *r.Task
		t.Classification = cloneClassification(t.Classification)
		out.Task = &t
	}
	if r.Goal != nil {
		g := *r.Goal
		g.Milestones = append([]string(nil), g.Milestones...)
		out.Goal = &g
	}
	if r.DueDate != nil {
		d := *r.DueDate
		out.DueDate = &d
	}
	return out
}

func cloneClassification(c schema.ClassificationResult) schema.ClassificationResult {
	c.UrgencySignals = append([]string(nil), c.UrgencySignals...)
	c.ImportanceSignals = append([]string(nil), c.ImportanceSignals...)
	return c
}
