package backend

import (
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/zen-systems/triage/pkg/schema"
)

// extractJSON finds the JSON object in model output. Code fences and prose
// around the object are tolerated.
func extractJSON(content string) (string, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	if gjson.Valid(content) && strings.HasPrefix(content, "{") {
		return content, nil
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("%w: no JSON object in output", ErrInvalidOutput)
	}
	candidate := content[start : end+1]
	if !gjson.Valid(candidate) {
		return "", fmt.Errorf("%w: malformed JSON", ErrInvalidOutput)
	}
	return candidate, nil
}

// ParseResult converts raw model output into a result of the request's kind.
// Fields the model omitted are filled from the rule-based hint where that is
// safe; quadrant and confidence are always required.
func ParseResult(reqType schema.RequestType, content string, hint schema.Result) (schema.Result, string, error) {
	raw, err := extractJSON(content)
	if err != nil {
		return schema.Result{}, "", err
	}
	doc := gjson.Parse(raw)
	reasoning := firstString(doc, "reasoning", "explanation", "reason")

	switch reqType {
	case schema.RequestClassifyPriority:
		cls, err := parseClassification(doc, reasoning, hintClassification(hint))
		if err != nil {
			return schema.Result{}, "", err
		}
		return schema.Result{Classification: &cls}, reasoning, nil

	case schema.RequestParseTask:
		task, err := parseTask(doc, reasoning, hint.Task)
		if err != nil {
			return schema.Result{}, "", err
		}
		return schema.Result{Task: &task}, reasoning, nil

	case schema.RequestSuggestGoal:
		goal, err := parseGoal(doc, reasoning, hint.Goal)
		if err != nil {
			return schema.Result{}, "", err
		}
		return schema.Result{Goal: &goal}, reasoning, nil
	}
	return schema.Result{}, "", fmt.Errorf("%w: %s", ErrUnsupportedType, reqType)
}

func parseClassification(doc gjson.Result, reasoning string, hint *schema.ClassificationResult) (schema.ClassificationResult, error) {
	// Some models nest the answer.
	if nested := doc.Get("classification"); nested.IsObject() {
		doc = nested
	}

	q := doc.Get("quadrant")
	if !q.Exists() {
		return schema.ClassificationResult{}, fmt.Errorf("%w: missing quadrant", ErrInvalidOutput)
	}
	quadrant, err := schema.ParseQuadrant(q.String())
	if err != nil {
		return schema.ClassificationResult{}, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	confidence, err := parseConfidence(doc)
	if err != nil {
		return schema.ClassificationResult{}, err
	}

	out := schema.ClassificationResult{
		Quadrant:    quadrant,
		Confidence:  confidence,
		Explanation: reasoning,
		IsUrgent:    quadrant.Urgent(),
		IsImportant: quadrant.Important(),
	}
	if hint != nil {
		out.UrgencySignals = append([]string(nil), hint.UrgencySignals...)
		out.ImportanceSignals = append([]string(nil), hint.ImportanceSignals...)
	}
	if out.Explanation == "" {
		out.Explanation = "classified by inference backend"
	}
	return out, nil
}

func parseTask(doc gjson.Result, reasoning string, hint *schema.ParsedTask) (schema.ParsedTask, error) {
	var hintCls *schema.ClassificationResult
	if hint != nil {
		hintCls = &hint.Classification
	}
	cls, err := parseClassification(doc, reasoning, hintCls)
	if err != nil {
		return schema.ParsedTask{}, err
	}

	task := schema.ParsedTask{
		Title:          strings.TrimSpace(doc.Get("title").String()),
		DueDate:        validDate(doc.Get("due_date").String()),
		DueTime:        validClock(doc.Get("due_time").String()),
		Classification: cls,
		Confidence:     cls.Confidence,
	}
	if hint != nil {
		if task.Title == "" {
			task.Title = hint.Title
		}
		if task.DueDate == "" && !doc.Get("due_date").Exists() {
			task.DueDate = hint.DueDate
		}
		if task.DueTime == "" && !doc.Get("due_time").Exists() {
			task.DueTime = hint.DueTime
		}
	}
	if task.Title == "" {
		return schema.ParsedTask{}, fmt.Errorf("%w: missing title", ErrInvalidOutput)
	}
	return task, nil
}

func parseGoal(doc gjson.Result, reasoning string, hint *schema.GoalSuggestion) (schema.GoalSuggestion, error) {
	confidence, err := parseConfidence(doc)
	if err != nil {
		return schema.GoalSuggestion{}, err
	}

	goal := schema.GoalSuggestion{
		Title:       strings.TrimSpace(doc.Get("title").String()),
		Category:    strings.ToLower(strings.TrimSpace(doc.Get("category").String())),
		Timeframe:   strings.ToLower(strings.TrimSpace(doc.Get("timeframe").String())),
		TargetDate:  validDate(doc.Get("target_date").String()),
		Measurable:  doc.Get("measurable").Bool(),
		Confidence:  confidence,
		Explanation: reasoning,
	}
	for _, m := range doc.Get("milestones").Array() {
		if s := strings.TrimSpace(m.String()); s != "" {
			goal.Milestones = append(goal.Milestones, s)
		}
	}
	if goal.Title == "" && hint != nil {
		goal.Title = hint.Title
	}
	if goal.Title == "" {
		return schema.GoalSuggestion{}, fmt.Errorf("%w: missing title", ErrInvalidOutput)
	}
	return goal, nil
}

func parseConfidence(doc gjson.Result) (float64, error) {
	c := doc.Get("confidence")
	if !c.Exists() || c.Type != gjson.Number {
		return 0, fmt.Errorf("%w: missing numeric confidence", ErrInvalidOutput)
	}
	v := c.Float()
	if v < 0 || v > 1 {
		return 0, fmt.Errorf("%w: confidence %.3f out of range", ErrInvalidOutput, v)
	}
	return v, nil
}

func hintClassification(hint schema.Result) *schema.ClassificationResult {
	if hint.Classification != nil {
		return hint.Classification
	}
	if hint.Task != nil {
		return &hint.Task.Classification
	}
	return nil
}

func firstString(doc gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := doc.Get(p); v.Exists() && v.Type == gjson.String {
			return strings.TrimSpace(v.String())
		}
	}
	return ""
}

func validDate(s string) string {
	s = strings.TrimSpace(s)
	if _, err := time.Parse("2006-01-02", s); err != nil {
		return ""
	}
	return s
}

func validClock(s string) string {
	s = strings.TrimSpace(s)
	t, err := time.Parse("15:04", s)
	if err != nil {
		return ""
	}
	return t.Format("15:04")
}
