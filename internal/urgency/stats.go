package urgency

import (
	"maps"
	"sync"

	"github.com/edgard/jaiminho/internal/domain"
)

// Stats is a point-in-time view of engine activity.
type Stats struct {
	TotalEvaluations int            `json:"total_evaluations"`
	Urgent           int            `json:"urgent_decisions"`
	NotUrgent        int            `json:"not_urgent_decisions"`
	Undecided        int            `json:"undecided"`
	RulesTriggered   map[string]int `json:"rules_triggered"`
}

// Percent returns n as a percentage of all evaluations.
func (s Stats) Percent(n int) float64 {
	if s.TotalEvaluations == 0 {
		return 0
	}
	return float64(n) / float64(s.TotalEvaluations) * 100
}

// UndecidedRate is the share of messages that needed escalation.
func (s Stats) UndecidedRate() float64 {
	return s.Percent(s.Undecided)
}

type counters struct {
	mu    sync.Mutex
	stats Stats
}

func newCounters() *counters {
	return &counters{stats: Stats{RulesTriggered: make(map[string]int)}}
}

func (c *counters) record(m domain.RuleMatch) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.TotalEvaluations++
	switch m.Decision {
	case domain.DecisionUrgent:
		c.stats.Urgent++
	case domain.DecisionNotUrgent:
		c.stats.NotUrgent++
	default:
		c.stats.Undecided++
	}
	c.stats.RulesTriggered[m.RuleName]++
}

func (c *counters) snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := c.stats
	out.RulesTriggered = maps.Clone(c.stats.RulesTriggered)
	return out
}

func (c *counters) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats = Stats{RulesTriggered: make(map[string]int)}
}
