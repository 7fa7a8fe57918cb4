package composer

import (
	"sync"
	"time"

	"github.com/skillsenselab/composekit/composition"
)

// pipelineStats tracks one pipeline's rolling performance within a run.
type pipelineStats struct {
	samples      int
	totalLatency time.Duration
	errors       int
	inFlight     int
}

func (s *pipelineStats) avgLatency() time.Duration {
	if s.samples == 0 {
		return 0
	}
	return s.totalLatency / time.Duration(s.samples)
}

// settledOutcome is one concluded invocation, kept in settle order so
// windowed rule metrics can look at only the most recent samples.
type settledOutcome struct {
	duration time.Duration
	success  bool
}

// ExecutionContext is the per-run mutable state of one Execute call.
// It is created at the start of the run, mutated throughout, and discarded
// at the end; it is never shared between runs. Mutations are mutex-guarded
// because parallel pipelines settle concurrently.
type ExecutionContext struct {
	mu sync.Mutex

	completed map[string]composition.Result
	failed    map[string]error
	running   map[string]struct{}
	stats     map[string]*pipelineStats

	// completionOrder records pipeline ids in the order they settled.
	completionOrder []string

	// outcomes mirrors completionOrder with duration and success per settle.
	outcomes []settledOutcome

	// layerResults accumulates per-layer results (cascading only).
	layerResults map[int][]composition.Result

	// changed is closed and replaced whenever a pipeline settles, waking
	// dependency and synchronization waiters exactly on the event.
	changed chan struct{}
}

// newExecutionContext creates the empty state for one run.
func newExecutionContext() *ExecutionContext {
	return &ExecutionContext{
		completed:    make(map[string]composition.Result),
		failed:       make(map[string]error),
		running:      make(map[string]struct{}),
		stats:        make(map[string]*pipelineStats),
		layerResults: make(map[int][]composition.Result),
		changed:      make(chan struct{}),
	}
}

// MarkRunning adds the pipeline to the running set.
func (ec *ExecutionContext) MarkRunning(id string) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.running[id] = struct{}{}
	st := ec.statLocked(id)
	st.inFlight++
}

// Complete records a successful result. Recording is monotonic: the first
// outcome for an id wins and later attempts to overwrite are ignored,
// reported by the false return.
func (ec *ExecutionContext) Complete(res composition.Result) bool {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	if ec.concludedLocked(res.PipelineID) {
		return false
	}
	ec.completed[res.PipelineID] = res
	ec.settleLocked(res.PipelineID, res.Duration, true)
	return true
}

// Fail records a failure. Monotonic like Complete.
func (ec *ExecutionContext) Fail(id string, err error, duration time.Duration) bool {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	if ec.concludedLocked(id) {
		return false
	}
	ec.failed[id] = err
	ec.settleLocked(id, duration, false)
	return true
}

// Abandon removes a running pipeline without recording an outcome. Used
// when a synchronization strategy stops the run and in-flight pipelines are
// cancelled rather than failed.
func (ec *ExecutionContext) Abandon(id string) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	delete(ec.running, id)
	if st, ok := ec.stats[id]; ok && st.inFlight > 0 {
		st.inFlight--
	}
	close(ec.changed)
	ec.changed = make(chan struct{})
}

// Completed returns the recorded result for a pipeline id.
func (ec *ExecutionContext) Completed(id string) (composition.Result, bool) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	res, ok := ec.completed[id]
	return res, ok
}

// FailedErr returns the recorded error for a pipeline id.
func (ec *ExecutionContext) FailedErr(id string) (error, bool) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	err, ok := ec.failed[id]
	return err, ok
}

// Concluded reports whether the pipeline has completed or failed.
func (ec *ExecutionContext) Concluded(id string) bool {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return ec.concludedLocked(id)
}

// depState classifies a pipeline's dependency situation.
type depState int

const (
	depsMet depState = iota
	depsPending
	depsFailed
)

// DependencyState reports whether every id in deps is completed, still
// outstanding, or terminally failed (returning the failed id).
func (ec *ExecutionContext) DependencyState(deps []string) (depState, string) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	for _, dep := range deps {
		if _, ok := ec.completed[dep]; ok {
			continue
		}
		if _, ok := ec.failed[dep]; ok {
			return depsFailed, dep
		}
		return depsPending, dep
	}
	return depsMet, ""
}

// RunningCount returns the number of currently running pipelines.
func (ec *ExecutionContext) RunningCount() int {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return len(ec.running)
}

// ConcludedCount returns completed + failed.
func (ec *ExecutionContext) ConcludedCount() int {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return len(ec.completed) + len(ec.failed)
}

// Results returns completed results in completion order.
func (ec *ExecutionContext) Results() []composition.Result {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	out := make([]composition.Result, 0, len(ec.completed))
	for _, id := range ec.completionOrder {
		if res, ok := ec.completed[id]; ok {
			out = append(out, res)
		}
	}
	return out
}

// Errors returns the recorded failures in completion order.
func (ec *ExecutionContext) Errors() []composition.PipelineError {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	out := make([]composition.PipelineError, 0, len(ec.failed))
	for _, id := range ec.completionOrder {
		if err, ok := ec.failed[id]; ok {
			out = append(out, composition.PipelineError{
				PipelineID: id,
				Err:        err,
				Message:    err.Error(),
			})
		}
	}
	return out
}

// AddLayerResult accumulates a result under a cascading layer id.
func (ec *ExecutionContext) AddLayerResult(layer int, res composition.Result) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.layerResults[layer] = append(ec.layerResults[layer], res)
}

// LayerResults returns the accumulated results for a layer id.
func (ec *ExecutionContext) LayerResults(layer int) []composition.Result {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	src := ec.layerResults[layer]
	out := make([]composition.Result, len(src))
	copy(out, src)
	return out
}

// Stats returns a snapshot of one pipeline's rolling stats.
func (ec *ExecutionContext) Stats(id string) (avgLatency time.Duration, errors, inFlight int) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	st, ok := ec.stats[id]
	if !ok {
		return 0, 0, 0
	}
	return st.avgLatency(), st.errors, st.inFlight
}

// RecentStats returns average latency and error rate over the last window
// settled outcomes. A zero or negative window covers the whole run.
func (ec *ExecutionContext) RecentStats(window int) (avg time.Duration, errorRate float64, n int) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	out := ec.outcomes
	if window > 0 && len(out) > window {
		out = out[len(out)-window:]
	}
	if len(out) == 0 {
		return 0, 0, 0
	}
	var total time.Duration
	failures := 0
	for _, o := range out {
		total += o.duration
		if !o.success {
			failures++
		}
	}
	return total / time.Duration(len(out)), float64(failures) / float64(len(out)), len(out)
}

// changeSignal returns a channel closed on the next settle event.
func (ec *ExecutionContext) changeSignal() <-chan struct{} {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return ec.changed
}

// --- internal ---

func (ec *ExecutionContext) concludedLocked(id string) bool {
	if _, ok := ec.completed[id]; ok {
		return true
	}
	_, ok := ec.failed[id]
	return ok
}

func (ec *ExecutionContext) settleLocked(id string, d time.Duration, success bool) {
	delete(ec.running, id)
	ec.completionOrder = append(ec.completionOrder, id)
	ec.outcomes = append(ec.outcomes, settledOutcome{duration: d, success: success})

	st := ec.statLocked(id)
	if st.inFlight > 0 {
		st.inFlight--
	}
	st.samples++
	st.totalLatency += d
	if !success {
		st.errors++
	}

	close(ec.changed)
	ec.changed = make(chan struct{})
}

func (ec *ExecutionContext) statLocked(id string) *pipelineStats {
	st, ok := ec.stats[id]
	if !ok {
		st = &pipelineStats{}
		ec.stats[id] = st
	}
	return st
}
