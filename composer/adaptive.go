package composer

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/skillsenselab/composekit/composition"
	"github.com/skillsenselab/composekit/config"
	enginerr "github.com/skillsenselab/composekit/errors"
	"github.com/skillsenselab/composekit/logger"
)

// Adaptive executes a composition repeatedly, switching execution pattern
// and tuning concurrency between iterations according to caller-supplied
// adaptation rules. Rule cooldowns, per-pattern performance counters, and
// the learned-pattern cache live on the composer instance and persist
// across executions.
type Adaptive struct {
	runner
	rules *ruleEngine
	cache *learnedCache

	mu   sync.Mutex
	perf map[composition.Pattern]*patternPerf
}

// patternPerf accumulates one pattern's outcomes across executions.
type patternPerf struct {
	runs      int
	successes int
	total     time.Duration
}

// NewAdaptive creates an adaptive composer.
func NewAdaptive(cfg config.EngineConfig, log *logger.Logger, rec Recorder) *Adaptive {
	return &Adaptive{
		runner: newRunner(cfg, log, rec, "adaptive"),
		rules:  newRuleEngine(),
		cache:  newLearnedCache(),
		perf:   make(map[composition.Pattern]*patternPerf),
	}
}

// Cancel requests cooperative cancellation of a running execution.
func (a *Adaptive) Cancel(executionID string) bool {
	return a.reg.Cancel(executionID)
}

// transition records one pattern change in the adaptation history.
type transition struct {
	From   composition.Pattern `json:"from"`
	To     composition.Pattern `json:"to"`
	Rule   string              `json:"rule,omitempty"`
	Reason string              `json:"reason"`
	At     time.Time           `json:"at"`
}

// Execute runs the adaptation loop and returns the final iteration's result.
func (a *Adaptive) Execute(ctx context.Context, comp *composition.Composition, input any) (*composition.CompositionResult, error) {
	if comp.Pattern != composition.PatternAdaptive {
		return nil, enginerr.InvalidComposition("adaptive composer requires an adaptive composition")
	}
	if err := comp.Validate(a.cfg.MaxLayerDepth); err != nil {
		return nil, err
	}

	execID, runCtx, cancel := a.reg.register(ctx)
	defer cancel()
	defer a.reg.deregister(execID)

	log := a.log.WithExecution(comp.ID, execID)

	opts := comp.Adaptive
	opts.ApplyDefaults()

	maxAdaptations := opts.MaxAdaptations
	if maxAdaptations <= 0 {
		maxAdaptations = a.cfg.MaxAdaptations
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = a.cfg.DefaultMaxConcurrency
	}

	current := normalizePattern(opts.InitialPattern)
	pipelines := make([]composition.PipelineRef, len(comp.Pipelines))
	copy(pipelines, comp.Pipelines)

	log.Debug("starting adaptive execution", logger.Fields(
		logger.FieldPattern, string(current),
		"max_adaptations", maxAdaptations,
		"pipelines", len(pipelines),
	))

	start := time.Now()
	var (
		history     []transition
		adaptations int
		iterations  int
		lastEC      *ExecutionContext
		lastErr     error
		cacheHit    bool
	)

	for {
		if err := runCtx.Err(); err != nil {
			lastErr = enginerr.ExecutionCancelled("").WithCause(err)
			break
		}

		ec := newExecutionContext()
		iterStart := time.Now()
		iterErr := a.runIteration(runCtx, ec, pipelines, opts, current, concurrency, input)
		iterElapsed := time.Since(iterStart)

		iterations++
		lastEC = ec
		lastErr = iterErr

		errs := ec.Errors()
		success := iterErr == nil && len(errs) == 0
		metrics := snapshotMetrics(ec, iterElapsed, len(pipelines), concurrency, len(errs))

		// metricsFor narrows the snapshot to a rule's evaluation window; a
		// zero window keeps the whole-iteration view.
		metricsFor := func(window int) composition.LiveMetrics {
			if window <= 0 {
				return metrics
			}
			m := metrics
			if avg, errRate, n := ec.RecentStats(window); n > 0 {
				m.AvgLatencyMS = float64(avg) / float64(time.Millisecond)
				m.ErrorRate = errRate
			}
			return m
		}

		a.observe(current, iterElapsed, success)

		// Look up the cache before learning from this iteration, so a hit
		// means the bucket was seen on an earlier iteration or run.
		var cachedBest composition.Pattern
		haveCached := false
		if opts.EnableLearning {
			cachedBest, haveCached = a.cache.best(metrics)
			successRate := 1 - metrics.ErrorRate
			a.cache.learn(metrics, current, successRate, metrics.AvgLatencyMS)
		}

		log.Debug("iteration finished", logger.Fields(
			logger.FieldPattern, string(current),
			logger.FieldStatus, success,
			logger.FieldDuration, iterElapsed.Milliseconds(),
			"error_rate", metrics.ErrorRate,
		))

		// Failed iterations switch to the fallback pattern, consuming an
		// adaptation slot.
		if iterErr != nil {
			fallback := normalizePattern(opts.FallbackPattern)
			if opts.FallbackPattern != "" && fallback != current && adaptations < maxAdaptations {
				history = append(history, transition{
					From: current, To: fallback, Reason: "fallback", At: time.Now(),
				})
				log.Warn("iteration failed, switching to fallback pattern", logger.Fields(
					logger.FieldPattern, string(fallback),
					logger.FieldError, iterErr.Error(),
				))
				current = fallback
				adaptations++
				continue
			}
			break
		}

		if adaptations >= maxAdaptations {
			break
		}

		// A cache hit short-circuits rule evaluation: repeat conditions
		// reuse the pattern that scored best last time.
		if haveCached {
			cacheHit = true
			if cachedBest != current {
				history = append(history, transition{
					From: current, To: cachedBest, Reason: "learned", At: time.Now(),
				})
				current = cachedBest
				adaptations++
				continue
			}
			break
		}

		var fired *composition.Rule
		var switched *transition
		for _, rule := range a.rules.candidates(opts.Rules, metricsFor, time.Now()) {
			applied, tr := a.applyRule(rule, metricsFor(rule.Window), &current, &concurrency, pipelines, ec, log)
			if !applied {
				continue
			}
			fired, switched = rule, tr
			break
		}
		if fired == nil {
			break
		}
		a.rules.markFired(fired.Name, time.Now())
		adaptations++
		if switched != nil {
			history = append(history, *switched)
		}
		if fired.Action == composition.ActionCustom {
			// Custom actions do not alter the loop's inputs; re-running
			// would repeat identical work.
			break
		}
	}

	elapsed := time.Since(start)

	var results []composition.Result
	var errs []composition.PipelineError
	if lastEC != nil {
		results = lastEC.Results()
		errs = lastEC.Errors()
	}
	success := lastErr == nil && len(errs) == 0
	a.record(composition.PatternAdaptive, elapsed, success)

	metadata := map[string]any{
		"finalPattern":      string(current),
		"iterations":        iterations,
		"adaptations":       adaptations,
		"concurrency":       concurrency,
		"adaptationHistory": history,
		"learnedCacheHit":   cacheHit,
	}

	result := newCompositionResult(comp, results, errs, elapsed, success, metadata)
	if lastErr != nil {
		log.Warn("adaptive execution aborted", logger.Fields(logger.FieldError, lastErr.Error()))
		return result, lastErr
	}

	log.Info("adaptive execution finished", logger.Fields(
		logger.FieldStatus, success,
		logger.FieldPattern, string(current),
		logger.FieldDuration, elapsed.Milliseconds(),
		"iterations", iterations,
	))
	return result, nil
}

// runIteration executes the pipelines once under the given pattern by
// delegating to the sequential or parallel core loop.
func (a *Adaptive) runIteration(ctx context.Context, ec *ExecutionContext, pipelines []composition.PipelineRef, opts composition.AdaptiveOptions, pattern composition.Pattern, concurrency int, input any) error {
	if pattern == composition.PatternParallel {
		popts := opts.Parallel
		popts.MaxConcurrency = concurrency
		outcome := a.runParallel(ctx, ec, pipelines, popts, input)
		return outcome.err
	}
	_, _, err := a.runSequential(ctx, ec, pipelines, opts.Sequential, input)
	return err
}

// applyRule performs the rule's action. Returns whether the action was
// applied and, for pattern switches, the transition record.
func (a *Adaptive) applyRule(rule *composition.Rule, metrics composition.LiveMetrics, current *composition.Pattern, concurrency *int, pipelines []composition.PipelineRef, ec *ExecutionContext, log *logger.Logger) (bool, *transition) {
	switch rule.Action {
	case composition.ActionSwitchPattern:
		target := normalizePattern(rule.TargetPattern)
		if rule.TargetPattern == "" || target == *current {
			return false, nil
		}
		tr := &transition{From: *current, To: target, Rule: rule.Name, Reason: "rule", At: time.Now()}
		log.Info("switching pattern", logger.Fields(
			"rule", rule.Name,
			logger.FieldPattern, string(target),
		))
		*current = target
		return true, tr

	case composition.ActionAdjustConcurrency:
		if rule.Delta == 0 {
			return false, nil
		}
		next := *concurrency + rule.Delta
		if next < 1 {
			next = 1
		}
		log.Info("adjusting concurrency", logger.Fields(
			"rule", rule.Name, "from", *concurrency, "to", next,
		))
		*concurrency = next
		return true, nil

	case composition.ActionScale:
		if rule.Factor <= 0 {
			return false, nil
		}
		next := int(float64(*concurrency) * rule.Factor)
		if next < 1 {
			next = 1
		}
		log.Info("scaling concurrency", logger.Fields(
			"rule", rule.Name, "from", *concurrency, "to", next,
		))
		*concurrency = next
		return true, nil

	case composition.ActionReorder:
		reorderByPerformance(pipelines, ec)
		log.Info("reordered pipelines by recent performance", logger.Fields("rule", rule.Name))
		return true, nil

	case composition.ActionCustom:
		if rule.Custom == nil {
			log.Warn("custom rule has no callback, skipping", logger.Fields("rule", rule.Name))
			return false, nil
		}
		if err := rule.Custom(metrics); err != nil {
			// Rule evaluation errors never abort the run.
			log.Warn("custom rule action failed", logger.Fields(
				"rule", rule.Name, logger.FieldError, err.Error(),
			))
			return false, nil
		}
		return true, nil

	default:
		return false, nil
	}
}

// reorderByPerformance sorts pipelines in place by descending recent score:
// success rate weighted by inverse observed latency.
func reorderByPerformance(pipelines []composition.PipelineRef, ec *ExecutionContext) {
	score := func(id string) float64 {
		avg, errCount, _ := ec.Stats(id)
		successRate := 1.0
		if errCount > 0 {
			successRate = 0.0
		}
		return successRate / (1 + avg.Seconds())
	}
	sort.SliceStable(pipelines, func(i, j int) bool {
		return score(pipelines[i].ID) > score(pipelines[j].ID)
	})
}

// snapshotMetrics derives the rule-evaluation snapshot from one iteration.
func snapshotMetrics(ec *ExecutionContext, elapsed time.Duration, pipelineCount, concurrency, failures int) composition.LiveMetrics {
	concluded := ec.ConcludedCount()
	m := composition.LiveMetrics{
		PipelineCount: pipelineCount,
		Concurrency:   concurrency,
	}
	if concluded > 0 {
		m.AvgLatencyMS = float64(elapsed.Milliseconds()) / float64(concluded)
		m.ErrorRate = float64(failures) / float64(concluded)
	}
	if secs := elapsed.Seconds(); secs > 0 {
		m.Throughput = float64(concluded) / secs
	}
	return m
}

// observe accumulates one iteration's outcome into the instance-level
// pattern counters.
func (a *Adaptive) observe(pattern composition.Pattern, d time.Duration, success bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	perf, ok := a.perf[pattern]
	if !ok {
		perf = &patternPerf{}
		a.perf[pattern] = perf
	}
	perf.runs++
	perf.total += d
	if success {
		perf.successes++
	}
}

// PatternPerformance returns the instance-level counters for a pattern:
// runs, successes, and average iteration time.
func (a *Adaptive) PatternPerformance(pattern composition.Pattern) (runs, successes int, avg time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	perf, ok := a.perf[pattern]
	if !ok {
		return 0, 0, 0
	}
	if perf.runs > 0 {
		avg = perf.total / time.Duration(perf.runs)
	}
	return perf.runs, perf.successes, avg
}

// normalizePattern maps the requested pattern onto one of the two delegate
// paths. Cascading-style behavior is approximated by the sequential path;
// unknown values default to sequential.
func normalizePattern(p composition.Pattern) composition.Pattern {
	if p == composition.PatternParallel {
		return composition.PatternParallel
	}
	return composition.PatternSequential
}
