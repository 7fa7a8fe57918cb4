package metrics

import (
	"sync"
	"time"

	"github.com/skillsenselab/composekit/composition"
)

const (
	// DefaultHistoryLimit bounds the retained sample FIFO.
	DefaultHistoryLimit = 1000
	// movingWindow is the moving-average window size.
	movingWindow = 10
	// movingSpan is how many recent samples moving averages look back over.
	movingSpan = 100
)

// Sample is one recorded execution.
type Sample struct {
	Pattern       composition.Pattern `json:"pattern"`
	ExecutionTime time.Duration       `json:"execution_time"`
	Success       bool                `json:"success"`
	Timestamp     time.Time           `json:"timestamp"`
}

// PatternSummary is the per-pattern slice of a Summary.
type PatternSummary struct {
	Executions  int           `json:"executions"`
	Successes   int           `json:"successes"`
	Errors      int           `json:"errors"`
	SuccessRate float64       `json:"success_rate"`
	AvgTime     time.Duration `json:"avg_time"`
	// Popularity is this pattern's share of all executions, 0..1.
	Popularity float64 `json:"popularity"`
	// MovingAvgTime averages execution time over the most recent samples.
	MovingAvgTime time.Duration `json:"moving_avg_time"`
	// MovingSuccessRate averages success over the same window.
	MovingSuccessRate float64 `json:"moving_success_rate"`
}

// Summary is a point-in-time view of everything recorded so far.
type Summary struct {
	TotalExecutions int                                    `json:"total_executions"`
	TotalSuccesses  int                                    `json:"total_successes"`
	TotalErrors     int                                    `json:"total_errors"`
	SuccessRate     float64                                `json:"success_rate"`
	ErrorRate       float64                                `json:"error_rate"`
	AvgTime         time.Duration                          `json:"avg_time"`
	Patterns        map[composition.Pattern]PatternSummary `json:"patterns"`
	GeneratedAt     time.Time                              `json:"generated_at"`
}

// patternTotals carries exact arithmetic per pattern; averages are derived
// at query time, never incrementally rounded.
type patternTotals struct {
	executions int
	successes  int
	totalTime  time.Duration
}

// Metrics aggregates execution records. Safe for concurrent use.
type Metrics struct {
	mu           sync.Mutex
	totals       map[composition.Pattern]*patternTotals
	history      []Sample
	historyLimit int
}

// New creates an aggregator with the given history limit. Zero or negative
// uses DefaultHistoryLimit.
func New(historyLimit int) *Metrics {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Metrics{
		totals:       make(map[composition.Pattern]*patternTotals),
		historyLimit: historyLimit,
	}
}

// RecordExecution records one composition execution. Implements the
// composer's Recorder contract.
func (m *Metrics) RecordExecution(pattern composition.Pattern, executionTime time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	totals, ok := m.totals[pattern]
	if !ok {
		totals = &patternTotals{}
		m.totals[pattern] = totals
	}
	totals.executions++
	totals.totalTime += executionTime
	if success {
		totals.successes++
	}

	m.history = append(m.history, Sample{
		Pattern:       pattern,
		ExecutionTime: executionTime,
		Success:       success,
		Timestamp:     time.Now(),
	})
	if len(m.history) > m.historyLimit {
		m.history = m.history[len(m.history)-m.historyLimit:]
	}
}

// History returns a copy of the retained samples, oldest first.
func (m *Metrics) History() []Sample {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Sample, len(m.history))
	copy(out, m.history)
	return out
}

// Reset discards all recorded data.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totals = make(map[composition.Pattern]*patternTotals)
	m.history = nil
}

// Summary computes the aggregate view.
func (m *Metrics) Summary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Summary{
		Patterns:    make(map[composition.Pattern]PatternSummary, len(m.totals)),
		GeneratedAt: time.Now(),
	}

	var totalTime time.Duration
	for _, totals := range m.totals {
		s.TotalExecutions += totals.executions
		s.TotalSuccesses += totals.successes
		totalTime += totals.totalTime
	}
	s.TotalErrors = s.TotalExecutions - s.TotalSuccesses
	if s.TotalExecutions > 0 {
		s.SuccessRate = float64(s.TotalSuccesses) / float64(s.TotalExecutions)
		s.ErrorRate = float64(s.TotalErrors) / float64(s.TotalExecutions)
		s.AvgTime = totalTime / time.Duration(s.TotalExecutions)
	}

	for pattern, totals := range m.totals {
		ps := PatternSummary{
			Executions: totals.executions,
			Successes:  totals.successes,
			Errors:     totals.executions - totals.successes,
		}
		if totals.executions > 0 {
			ps.SuccessRate = float64(totals.successes) / float64(totals.executions)
			ps.AvgTime = totals.totalTime / time.Duration(totals.executions)
		}
		if s.TotalExecutions > 0 {
			ps.Popularity = float64(totals.executions) / float64(s.TotalExecutions)
		}
		ps.MovingAvgTime, ps.MovingSuccessRate = m.movingStatsLocked(pattern)
		s.Patterns[pattern] = ps
	}

	return s
}

// movingStatsLocked averages execution time and success over the pattern's
// last movingWindow samples, looking back at most movingSpan samples.
func (m *Metrics) movingStatsLocked(pattern composition.Pattern) (time.Duration, float64) {
	span := m.history
	if len(span) > movingSpan {
		span = span[len(span)-movingSpan:]
	}

	var total time.Duration
	count, successes := 0, 0
	for i := len(span) - 1; i >= 0 && count < movingWindow; i-- {
		if span[i].Pattern != pattern {
			continue
		}
		total += span[i].ExecutionTime
		if span[i].Success {
			successes++
		}
		count++
	}
	if count == 0 {
		return 0, 0
	}
	return total / time.Duration(count), float64(successes) / float64(count)
}
