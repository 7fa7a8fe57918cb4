package composer

import (
	"sync"

	"github.com/skillsenselab/composekit/composition"
)

// cacheKey is a coarse bucketing of the current operating conditions. The
// buckets are deliberately wide so repeat conditions actually repeat.
type cacheKey struct {
	latencyBucket    int
	throughputBucket int
	sizeBucket       int
}

type cacheEntry struct {
	pattern composition.Pattern
	score   float64
}

// learnedCache remembers which pattern scored best under bucketed operating
// conditions. The score is the success rate weighted by inverse latency, so
// fast reliable patterns win the bucket.
type learnedCache struct {
	mu      sync.Mutex
	entries map[cacheKey]cacheEntry
}

func newLearnedCache() *learnedCache {
	return &learnedCache{entries: make(map[cacheKey]cacheEntry)}
}

func bucketOf(m composition.LiveMetrics) cacheKey {
	return cacheKey{
		latencyBucket:    bucketLatency(m.AvgLatencyMS),
		throughputBucket: bucketThroughput(m.Throughput),
		sizeBucket:       bucketSize(m.PipelineCount),
	}
}

func bucketLatency(ms float64) int {
	switch {
	case ms < 50:
		return 0
	case ms < 200:
		return 1
	case ms < 1000:
		return 2
	default:
		return 3
	}
}

func bucketThroughput(ops float64) int {
	switch {
	case ops < 1:
		return 0
	case ops < 10:
		return 1
	case ops < 100:
		return 2
	default:
		return 3
	}
}

func bucketSize(n int) int {
	switch {
	case n <= 3:
		return 0
	case n <= 10:
		return 1
	default:
		return 2
	}
}

// best returns the remembered pattern for the snapshot's bucket.
func (c *learnedCache) best(m composition.LiveMetrics) (composition.Pattern, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[bucketOf(m)]
	if !ok {
		return "", false
	}
	return entry.pattern, true
}

// learn records the pattern's score for the snapshot's bucket, keeping the
// highest-scoring pattern per bucket.
func (c *learnedCache) learn(m composition.LiveMetrics, pattern composition.Pattern, successRate, avgLatencyMS float64) {
	score := successRate / (1 + avgLatencyMS/1000)

	key := bucketOf(m)
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[key]; ok && existing.score >= score {
		return
	}
	c.entries[key] = cacheEntry{pattern: pattern, score: score}
}
