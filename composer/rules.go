package composer

import (
	"sort"
	"sync"
	"time"

	"github.com/skillsenselab/composekit/composition"
)

// ruleEngine evaluates adaptation rules against live metric snapshots and
// keeps per-rule cooldown timestamps. It lives on the composer instance so
// cooldowns span executions.
type ruleEngine struct {
	mu        sync.Mutex
	lastFired map[string]time.Time
}

func newRuleEngine() *ruleEngine {
	return &ruleEngine{lastFired: make(map[string]time.Time)}
}

// candidates returns the rules whose condition holds and whose cooldown has
// elapsed, ordered by descending priority. Ties keep declared order. Each
// rule is evaluated against the snapshot for its own Window, so a rule with
// Window set sees only the most recent samples. The caller applies the
// first rule that takes effect and confirms it with markFired.
func (e *ruleEngine) candidates(rules []composition.Rule, metricsFor func(window int) composition.LiveMetrics, now time.Time) []*composition.Rule {
	e.mu.Lock()
	defer e.mu.Unlock()

	var firing []*composition.Rule
	for i := range rules {
		rule := &rules[i]
		if rule.Cooldown > 0 {
			if last, ok := e.lastFired[rule.Name]; ok && now.Sub(last) < rule.Cooldown {
				continue
			}
		}
		if !rule.Holds(metricsFor(rule.Window)) {
			continue
		}
		firing = append(firing, rule)
	}
	sort.SliceStable(firing, func(i, j int) bool {
		return firing[i].Priority > firing[j].Priority
	})
	return firing
}

// markFired records the rule's firing time for cooldown bookkeeping.
func (e *ruleEngine) markFired(name string, now time.Time) {
	e.mu.Lock()
	e.lastFired[name] = now
	e.mu.Unlock()
}
