package schema

import (
	"fmt"
	"strings"
)

// Quadrant is one of the four urgent/important priority buckets.
type Quadrant string

const (
	QuadrantDoFirst   Quadrant = "DO_FIRST"
	QuadrantSchedule  Quadrant = "SCHEDULE"
	QuadrantDelegate  Quadrant = "DELEGATE"
	QuadrantEliminate Quadrant = "ELIMINATE"
)

// Quadrants lists every quadrant in Q1..Q4 order.
var Quadrants = []Quadrant{QuadrantDoFirst, QuadrantSchedule, QuadrantDelegate, QuadrantEliminate}

// QuadrantFor maps urgency and importance flags to exactly one quadrant.
func QuadrantFor(urgent, important bool) Quadrant {
	switch {
	case urgent && important:
		return QuadrantDoFirst
	case important:
		return QuadrantSchedule
	case urgent:
		return QuadrantDelegate
	default:
		return QuadrantEliminate
	}
}

// Valid reports whether q is a known quadrant.
func (q Quadrant) Valid() bool {
	switch q {
	case QuadrantDoFirst, QuadrantSchedule, QuadrantDelegate, QuadrantEliminate:
		return true
	}
	return false
}

// Urgent reports whether the quadrant implies urgency.
func (q Quadrant) Urgent() bool {
	return q == QuadrantDoFirst || q == QuadrantDelegate
}

// Important reports whether the quadrant implies importance.
func (q Quadrant) Important() bool {
	return q == QuadrantDoFirst || q == QuadrantSchedule
}

// Label returns a human-readable name.
func (q Quadrant) Label() string {
	switch q {
	case QuadrantDoFirst:
		return "Do First"
	case QuadrantSchedule:
		return "Schedule"
	case QuadrantDelegate:
		return "Delegate"
	case QuadrantEliminate:
		return "Eliminate"
	default:
		return "Unknown"
	}
}

func (q Quadrant) String() string {
	return string(q)
}

// ParseQuadrant normalizes the many spellings models and users produce
// ("Q1", "do first", "urgent_important", "DO_FIRST") to a Quadrant.
func ParseQuadrant(s string) (Quadrant, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)

	switch key {
	case "do_first", "dofirst", "q1", "1", "urgent_important", "urgent_and_important", "do":
		return QuadrantDoFirst, nil
	case "schedule", "q2", "2", "important", "not_urgent_important", "important_not_urgent", "plan":
		return QuadrantSchedule, nil
	case "delegate", "q3", "3", "urgent", "urgent_not_important", "not_important_urgent":
		return QuadrantDelegate, nil
	case "eliminate", "q4", "4", "neither", "not_urgent_not_important", "delete", "drop":
		return QuadrantEliminate, nil
	}
	return "", fmt.Errorf("unknown quadrant %q", s)
}
