package classifier

import (
	"fmt"
	"regexp"
	"strings"
)

// Pattern is one labeled signal.
type Pattern struct {
	Label string
	re    *regexp.Regexp
}

// Group is a named, ordered set of case-insensitive signal patterns.
type Group struct {
	Name     string
	patterns []Pattern
}

// NewGroup compiles exprs into a group. Exprs are "label=regexp" or a bare
// regexp, in which case the group name is the label.
func NewGroup(name string, exprs ...string) (*Group, error) {
	g := &Group{Name: name}
	for _, e := range exprs {
		label, expr := name, e
		if i := strings.Index(e, "="); i > 0 && !strings.ContainsAny(e[:i], `\()[]|?*+`) {
			label, expr = e[:i], e[i+1:]
		}
		re, err := regexp.Compile("(?i)" + expr)
		if err != nil {
			return nil, fmt.Errorf("group %s: compile %q: %w", name, expr, err)
		}
		g.patterns = append(g.patterns, Pattern{Label: label, re: re})
	}
	return g, nil
}

// MustGroup is NewGroup that panics on a bad pattern.
func MustGroup(name string, exprs ...string) *Group {
	g, err := NewGroup(name, exprs...)
	if err != nil {
		panic(err)
	}
	return g
}

// Len returns the number of patterns.
func (g *Group) Len() int {
	if g == nil {
		return 0
	}
	return len(g.patterns)
}

// Score counts the distinct patterns that match text at least once.
func (g *Group) Score(text string) int {
	if g == nil {
		return 0
	}
	n := 0
	for _, p := range g.patterns {
		if p.re.MatchString(text) {
			n++
		}
	}
	return n
}

// Matches returns the first matched phrase of each matching pattern, in
// pattern order.
func (g *Group) Matches(text string) []string {
	if g == nil {
		return nil
	}
	var out []string
	for _, p := range g.patterns {
		if m := p.re.FindString(text); m != "" {
			out = append(out, m)
		}
	}
	return out
}

// Labels returns the labels of matching patterns, in pattern order, without
// duplicates.
func (g *Group) Labels(text string) []string {
	if g == nil {
		return nil
	}
	var out []string
	seen := map[string]bool{}
	for _, p := range g.patterns {
		if seen[p.Label] || !p.re.MatchString(text) {
			continue
		}
		seen[p.Label] = true
		out = append(out, p.Label)
	}
	return out
}

// Any reports whether any pattern matches.
func (g *Group) Any(text string) bool {
	if g == nil {
		return false
	}
	for _, p := range g.patterns {
		if p.re.MatchString(text) {
			return true
		}
	}
	return false
}

// Library holds the signal groups the classifier scores against.
// It is read-only after construction.
type Library struct {
	Urgency      *Group
	Importance   *Group
	Delegation   *Group
	LowPriority  *Group
	NearDeadline *Group
	FarDeadline  *Group
}

var defaultLibrary = &Library{
	Urgency: MustGroup("urgency",
		`\b(urgent(ly)?|asap|a\.s\.a\.p|as\s+soon\s+as\s+possible|immediately|emergency|critical)\b`,
		`\bright\s+(now|away)\b`,
		`\b(today|tonight|this\s+(morning|afternoon|evening))\b`,
		`\b(overdue|past\s+due|running\s+late|late\s+(payment|fee|notice))\b`,
		`\b(due|deadline)\s+(is\s+)?(today|tonight|tomorrow|soon|now)\b`,
		`\bwithin\s+(the\s+)?(next\s+)?(\d+|an?|one|two|few)\s+(minutes?|mins?|hours?|hrs?)\b`,
		`\bin\s+(\d+|an?|one|two|few)\s+(minutes?|mins?|hours?|hrs?)\b`,
		`\bby\s+(noon|eod|cob|end\s+of\s+(the\s+)?day|close\s+of\s+business)\b`,
		`\b(server|site|website|app|system|database|db|api|service|production|prod|network|email)\s+(is\s+|are\s+|went\s+|has\s+gone\s+)?(down|offline|crashed|broken|unreachable|not\s+working)\b`,
		`\b(outage|incident|sev[- ]?1|p0|breach|data\s+loss)\b`,
		`\b(customers?|clients?|users?)\s+(are\s+|is\s+)?(waiting|blocked|stuck|can[’']?t|cannot|unable|complaining)\b`,
		`\bwaiting\s+(on|for)\s+(me|us)\b`,
		`\b(meeting|call|interview|presentation|flight)\s+(starts|begins|is)\s+in\s+\d+\s*(minutes?|mins?)\b`,
		`\b(time[- ]sensitive|last\s+chance|final\s+notice|expires?\s+(today|tonight|soon))\b`,
		`\b(hurry|rush\s+(job|order|delivery)|before\s+it[’']?s\s+too\s+late)\b`,
	),
	Importance: MustGroup("importance",
		`explicit=\b(important|essential|crucial|vital|high[- ]priority|top\s+priority|must[- ]do)\b`,
		`career=\b(career|promotion|job\s+(interview|offer|application)|resume|performance\s+review)\b`,
		`health=\b(health|doctor|dentist|medical|medication|prescription|hospital|therapy|check[- ]?up|exercise|workout)\b`,
		`family=\b(family|kids?|children|son|daughter|wife|husband|spouse|parents?|mom|dad|mother|father|baby)\b`,
		`financial=\b(finances?|financial|budget|tax(es)?|invest(ment|ing)?|savings?|retirement|mortgage|loan|debt|rent|insurance)\b`,
		`legal=\b(legal|lawyer|attorney|contract|compliance|court|visa|passport|licen[cs]e|regulatory|regulations?)\b`,
		`learning=\b(learn(ing)?|study(ing)?|course|certification|exam|degree|training|skills?)\b`,
		`goals=\b(goals?|okrs?|objectives?|key\s+results?|milestones?|kpis?)\b`,
		`business=\b(strateg(y|ic)|roadmap|vision|planning)\b`,
		`business=\b(customers?|clients?|investors?|stakeholders?|board|ceo|executives?)\b`,
		`business=\b(revenue|sales|profit|growth|launch|funding|deal)\b`,
		`deliverable=\b(deliver|ship|complete|finish|submit|present|publish|release)\b`,
		`deliverable=\b(proposal|deliverables?|pitch|report|presentation|thesis|application)\b`,
		`family=\b(relationships?|mentor(ing|ship)?|friendship|anniversary|wedding|birthday)\b`,
		`business=\b(security|backups?|passwords?|vulnerabilit(y|ies)|disaster\s+recovery)\b`,
		`career=\b(hir(e|ing)|recruit(ing|ment)?|onboard(ing)?|team\s+members?|direct\s+reports?)\b`,
		`health=\b(well[- ]?being|mental\s+health|sleep|self[- ]care|meditat(e|ion)|stress)\b`,
		`explicit=\b(high[- ]impact|mission[- ]critical|business[- ]critical|significant|major)\b`,
	),
	Delegation: MustGroup("delegation",
		`\b(delegate|assign|outsource|hand\s+off|handoff)\b`,
		`\bask\s+(someone|somebody|an?\s+(assistant|intern|colleague|teammate)|the\s+team)\b`,
		`\b(routine|recurring|daily|weekly|monthly|every\s+(day|week|month))\b`,
		`\b(paperwork|expense\s+reports?|timesheets?|invoices?|filing)\b`,
		`\b(order|reorder|purchase|buy|restock)\s+(more\s+|new\s+|some\s+)?(office\s+)?(supplies|paper|toner|ink|snacks|coffee|groceries|stationery)\b`,
		`\b(office\s+supplies|printer|toner|stationery)\b`,
		`\bbook\s+(a\s+|the\s+)?(meeting\s+room|conference\s+room|room|travel|flights?|hotels?|tickets?|venue)\b`,
		`\b(status\s+(report|update)|progress\s+report)\b`,
		`\b(survey|data\s+entry|fill\s+(out|in)\s+(the\s+)?forms?)\b`,
		`\b(anyone|anybody|someone\s+else)\s+(can|could)\b`,
		`\b(calendar\s+invites?|reply\s+to\s+(routine\s+)?emails?|inbox|admin(istrative)?\s+tasks?|errands?)\b`,
	),
	LowPriority: MustGroup("low_priority",
		`\b(maybe|someday|some\s+day|perhaps|nice\s+to\s+have|no\s+rush|if\s+i\s+have\s+time|whenever)\b`,
		`\b(netflix|hulu|youtube|movies?|tv\s+shows?|binge|episodes?)\b`,
		`\b(social\s+media|facebook|instagram|tiktok|twitter|reddit|snapchat)\b`,
		`\b(gaming|video\s+games?|play\s+games?|xbox|playstation|fortnite)\b`,
		`\b(browse|browsing|scroll(ing)?|surf(ing)?\s+the\s+(web|internet))\b`,
		`\b(re-?organi[sz]e|tidy|declutter)\s+(my\s+|the\s+)?(desk|bookmarks|folders|icons|closet|drawers?|apps)\b`,
		`\b(again|double[- ]check|re-?check|one\s+more\s+time|yet\s+another)\b`,
		`\b(gossip|small\s+talk|chit[- ]?chat)\b`,
		`\b(online\s+shopping|window\s+shopping|wishlist)\b`,
		`\b(memes?|trivia|procrastinat(e|ing)|kill\s+time|waste\s+time)\b`,
	),
	NearDeadline: MustGroup("near_deadline",
		`\b(today|tonight|tomorrow)\b`,
		`\b(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`,
		`\bwithin\s+(\d+|a|one|two|three|few)\s+days?\b`,
		`\bin\s+(\d+|one|two|three|four|five|a\s+few)\s+days?\b`,
		`\bthis\s+week\b`,
		`\b(eod|cob|end\s+of\s+(the\s+)?(day|week)|close\s+of\s+business)\b`,
	),
	FarDeadline: MustGroup("far_deadline",
		`\bnext\s+(week|month|quarter|year|semester)\b`,
		`\bin\s+(\d+|a\s+few|a\s+couple\s+of|two|three|several)\s+(weeks?|months?|years?)\b`,
		`\b(q[1-4]|end\s+of\s+(the\s+)?(month|quarter|year))\b`,
		`\b(eventually|someday|some\s+day|long[- ]term)\b`,
		`\bno\s+(deadline|due\s+date|rush|hurry)\b`,
		`\bthis\s+(month|quarter|year)\b`,
	),
}

// DefaultLibrary returns the built-in signal library. The returned value is
// shared and must not be modified.
func DefaultLibrary() *Library {
	return defaultLibrary
}
