package observability

import (
	"fmt"
	"slices"
	"sync"
	"time"
)

// Operations with default SLO targets.
const (
	OperationEvaluate = "governance.evaluate"
	OperationOracle   = "governance.oracle"
)

// SLOTarget is a latency and success objective for one operation.
type SLOTarget struct {
	Operation   string        `json:"operation"`
	LatencyP99  time.Duration `json:"latency_p99"`
	SuccessRate float64       `json:"success_rate"` // 0-1
	Window      time.Duration `json:"window"`
}

// DefaultSLOTargets covers evaluation and oracle consultation. The oracle
// target sits below its 20s timeout; timeouts and errors count as failures.
func DefaultSLOTargets() []*SLOTarget {
	return []*SLOTarget{
		{Operation: OperationEvaluate, LatencyP99: 25 * time.Second, SuccessRate: 0.999, Window: time.Hour},
		{Operation: OperationOracle, LatencyP99: 15 * time.Second, SuccessRate: 0.95, Window: time.Hour},
	}
}

// SLOObservation is a single data point.
type SLOObservation struct {
	Operation string
	Latency   time.Duration
	Success   bool
	Timestamp time.Time
}

// SLOStatus reports compliance over the target window.
type SLOStatus struct {
	Operation        string  `json:"operation"`
	CurrentP99Ms     float64 `json:"current_p99_ms"`
	CurrentSuccess   float64 `json:"current_success_rate"`
	InCompliance     bool    `json:"in_compliance"`
	BurnRate         float64 `json:"burn_rate"` // >1 burns budget faster than allowed
	ErrorBudgetLeft  float64 `json:"error_budget_left"`
	ObservationCount int     `json:"observation_count"`
}

// SLOTracker keeps a sliding window of observations per operation.
type SLOTracker struct {
	mu           sync.Mutex
	targets      map[string]*SLOTarget
	observations map[string][]SLOObservation
	clock        func() time.Time
}

func NewSLOTracker() *SLOTracker {
	return &SLOTracker{
		targets:      make(map[string]*SLOTarget),
		observations: make(map[string][]SLOObservation),
		clock:        time.Now,
	}
}

// WithClock overrides clock for testing.
func (t *SLOTracker) WithClock(clock func() time.Time) *SLOTracker {
	t.clock = clock
	return t
}

func (t *SLOTracker) SetTarget(target *SLOTarget) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.targets[target.Operation] = target
}

// Record stores an observation. Operations without a target are ignored.
func (t *SLOTracker) Record(obs SLOObservation) {
	t.mu.Lock()
	defer t.mu.Unlock()

	target, ok := t.targets[obs.Operation]
	if !ok {
		return
	}
	if obs.Timestamp.IsZero() {
		obs.Timestamp = t.clock()
	}
	t.observations[obs.Operation] = append(t.windowed(target), obs)
}

// windowed drops observations older than the target window. Callers hold mu.
func (t *SLOTracker) windowed(target *SLOTarget) []SLOObservation {
	cutoff := t.clock().Add(-target.Window)
	obs := t.observations[target.Operation]
	i := 0
	for i < len(obs) && !obs[i].Timestamp.After(cutoff) {
		i++
	}
	return obs[i:]
}

// Status computes current compliance for an operation.
func (t *SLOTracker) Status(operation string) (*SLOStatus, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	target, ok := t.targets[operation]
	if !ok {
		return nil, fmt.Errorf("no SLO target for operation %q", operation)
	}

	window := t.windowed(target)
	if len(window) == 0 {
		return &SLOStatus{Operation: operation, InCompliance: true, ErrorBudgetLeft: 100}, nil
	}

	success := 0
	latencies := make([]float64, len(window))
	for i, o := range window {
		if o.Success {
			success++
		}
		latencies[i] = float64(o.Latency.Milliseconds())
	}
	successRate := float64(success) / float64(len(window))

	slices.Sort(latencies)
	idx := int(float64(len(latencies)) * 0.99)
	if idx >= len(latencies) {
		idx = len(latencies) - 1
	}
	p99 := latencies[idx]

	errorBudget := 1 - target.SuccessRate
	errorRate := 1 - successRate
	var burn float64
	budgetLeft := 100.0
	if errorBudget > 0 {
		burn = errorRate / errorBudget
		budgetLeft = max(0, 100*(1-burn))
	} else if errorRate > 0 {
		budgetLeft = 0
	}

	return &SLOStatus{
		Operation:        operation,
		CurrentP99Ms:     p99,
		CurrentSuccess:   successRate,
		InCompliance:     p99 <= float64(target.LatencyP99.Milliseconds()) && successRate >= target.SuccessRate,
		BurnRate:         burn,
		ErrorBudgetLeft:  budgetLeft,
		ObservationCount: len(window),
	}, nil
}
