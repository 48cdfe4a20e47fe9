package backend

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zen-systems/triage/pkg/schema"
)

const systemPrompt = "You are a task triage assistant using the Eisenhower matrix. " +
	"Reply with a single JSON object and nothing else."

const quadrantGuide = `Quadrants:
- DO_FIRST: urgent and important
- SCHEDULE: important, not urgent
- DELEGATE: urgent, not important
- ELIMINATE: neither urgent nor important
`

// BuildPrompt returns the system and user prompt for a request.
func BuildPrompt(req *Request) (string, string, error) {
	if req == nil || req.Request == nil {
		return "", "", fmt.Errorf("%w: empty request", ErrInvalidOutput)
	}

	var sb strings.Builder
	switch req.Request.Type {
	case schema.RequestClassifyPriority:
		sb.WriteString("Classify the task into exactly one quadrant.\n")
		sb.WriteString(quadrantGuide)
		writeTask(&sb, req)
		writeHint(&sb, req.Hint)
		sb.WriteString("\nReturn ONLY JSON: {\"quadrant\":\"DO_FIRST|SCHEDULE|DELEGATE|ELIMINATE\",\"confidence\":0-1,\"reasoning\":\"...\"}\n")
	case schema.RequestParseTask:
		sb.WriteString("Extract a task title, due date and due time, and classify the task.\n")
		sb.WriteString(quadrantGuide)
		writeToday(&sb, req)
		writeTask(&sb, req)
		writeHint(&sb, req.Hint)
		sb.WriteString("\nThe title must not repeat the date or time.\n")
		sb.WriteString("Return ONLY JSON: {\"title\":\"...\",\"due_date\":\"YYYY-MM-DD or null\",\"due_time\":\"HH:MM or null\",")
		sb.WriteString("\"quadrant\":\"...\",\"confidence\":0-1,\"reasoning\":\"...\"}\n")
	case schema.RequestSuggestGoal:
		sb.WriteString("Turn the text into a structured personal or professional goal.\n")
		writeToday(&sb, req)
		writeTask(&sb, req)
		writeHint(&sb, req.Hint)
		sb.WriteString("\nCategories: career, health, family, financial, legal, learning, business.\n")
		sb.WriteString("Return ONLY JSON: {\"title\":\"...\",\"category\":\"...\",\"timeframe\":\"short_term|long_term\",")
		sb.WriteString("\"target_date\":\"YYYY-MM-DD or null\",\"measurable\":true|false,\"milestones\":[\"...\"],")
		sb.WriteString("\"confidence\":0-1,\"reasoning\":\"...\"}\n")
	default:
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedType, req.Request.Type)
	}
	return systemPrompt, sb.String(), nil
}

func writeToday(sb *strings.Builder, req *Request) {
	if req.Now.IsZero() {
		return
	}
	fmt.Fprintf(sb, "Today is %s (%s).\n", req.Now.Format("2006-01-02"), req.Now.Weekday())
}

func writeTask(sb *strings.Builder, req *Request) {
	sb.WriteString("\nTask: ")
	sb.WriteString(strings.TrimSpace(req.Request.Text))
	sb.WriteString("\n")

	if len(req.Request.Context) == 0 {
		return
	}
	keys := make([]string, 0, len(req.Request.Context))
	for k := range req.Request.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	sb.WriteString("Context:\n")
	for _, k := range keys {
		fmt.Fprintf(sb, "- %s: %s\n", k, req.Request.Context[k])
	}
}

func writeHint(sb *strings.Builder, hint schema.Result) {
	var cls *schema.ClassificationResult
	switch {
	case hint.Classification != nil:
		cls = hint.Classification
	case hint.Task != nil:
		cls = &hint.Task.Classification
	case hint.Goal != nil:
		fmt.Fprintf(sb, "Rule-based guess: category=%q timeframe=%q (confidence %.2f)\n",
			hint.Goal.Category, hint.Goal.Timeframe, hint.Goal.Confidence)
		return
	default:
		return
	}

	fmt.Fprintf(sb, "Rule-based guess: %s (confidence %.2f): %s\n", cls.Quadrant, cls.Confidence, cls.Explanation)
	if len(cls.UrgencySignals) > 0 {
		fmt.Fprintf(sb, "Urgency signals: %s\n", strings.Join(cls.UrgencySignals, ", "))
	}
	if len(cls.ImportanceSignals) > 0 {
		fmt.Fprintf(sb, "Importance signals: %s\n", strings.Join(cls.ImportanceSignals, ", "))
	}
}
