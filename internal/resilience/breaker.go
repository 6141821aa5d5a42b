package resilience

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// BreakerState is the circuit breaker state machine position.
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig mirrors the resilience configuration surface: a count-based
// sliding window evaluated on failure rate and slow-call rate.
type BreakerConfig struct {
	SlidingWindowSize         int
	MinimumNumberOfCalls      int
	FailureRateThreshold      float64 // percent
	SlowCallRateThreshold     float64 // percent
	SlowCallDurationThreshold time.Duration
	WaitDurationInOpenState   time.Duration
	PermittedCallsInHalfOpen  int
	// AutomaticTransition moves OPEN→HALF_OPEN once the wait elapses.
	// When false the transition requires an explicit TryHalfOpen call.
	AutomaticTransition bool
	OnStateChange       func(name string, from, to BreakerState)
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		SlidingWindowSize:         20,
		MinimumNumberOfCalls:      10,
		FailureRateThreshold:      50,
		SlowCallRateThreshold:     50,
		SlowCallDurationThreshold: 2 * time.Second,
		WaitDurationInOpenState:   10 * time.Second,
		PermittedCallsInHalfOpen:  5,
		AutomaticTransition:       true,
	}
}

// ErrOpen is returned by Allow while the breaker rejects calls. It carries
// the remaining wait so callers can surface a retry-after value.
type ErrOpen struct {
	Name          string
	RemainingWait time.Duration
}

func (e *ErrOpen) Error() string {
	return fmt.Sprintf("circuit breaker %q is open, retry in %v", e.Name, e.RemainingWait)
}

type callOutcome struct {
	failure bool
	slow    bool
}

// CircuitBreaker tracks a sliding window of call outcomes shared across all
// calls to the same named breaker. All state transitions happen under one
// mutex, so no two goroutines can independently flip OPEN→HALF_OPEN.
type CircuitBreaker struct {
	name string
	cfg  BreakerConfig

	mu       sync.Mutex
	state    BreakerState
	window   []callOutcome
	windowAt int
	windowN  int
	openedAt time.Time

	halfOpenIssued   int
	halfOpenOutcomes []callOutcome
}

func NewCircuitBreaker(name string, cfg BreakerConfig) *CircuitBreaker {
	if cfg.SlidingWindowSize < 1 {
		cfg.SlidingWindowSize = 1
	}
	if cfg.MinimumNumberOfCalls < 1 {
		cfg.MinimumNumberOfCalls = 1
	}
	if cfg.PermittedCallsInHalfOpen < 1 {
		cfg.PermittedCallsInHalfOpen = 1
	}
	return &CircuitBreaker{
		name:   name,
		cfg:    cfg,
		state:  StateClosed,
		window: make([]callOutcome, cfg.SlidingWindowSize),
	}
}

func (cb *CircuitBreaker) Name() string { return cb.name }

// Allow reports whether a call may proceed. While OPEN it rejects without
// any network attempt; once the open wait elapses (and automatic transition
// is enabled) it admits half-open trial calls, exactly
// PermittedCallsInHalfOpen of them.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil

	case StateOpen:
		elapsed := time.Since(cb.openedAt)
		if elapsed >= cb.cfg.WaitDurationInOpenState && cb.cfg.AutomaticTransition {
			cb.toHalfOpen()
			cb.halfOpenIssued++
			return nil
		}
		remaining := cb.cfg.WaitDurationInOpenState - elapsed
		if remaining < 0 {
			remaining = 0
		}
		return &ErrOpen{Name: cb.name, RemainingWait: remaining}

	case StateHalfOpen:
		if cb.halfOpenIssued >= cb.cfg.PermittedCallsInHalfOpen {
			return &ErrOpen{Name: cb.name, RemainingWait: 0}
		}
		cb.halfOpenIssued++
		return nil

	default:
		return fmt.Errorf("circuit breaker %q in unknown state", cb.name)
	}
}

// TryHalfOpen is the external trigger used when AutomaticTransition is
// disabled. It is a no-op unless the breaker is OPEN and the wait elapsed.
func (cb *CircuitBreaker) TryHalfOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state != StateOpen || time.Since(cb.openedAt) < cb.cfg.WaitDurationInOpenState {
		return false
	}
	cb.toHalfOpen()
	return true
}

// Record feeds one call outcome into the breaker. Pass the call duration
// and a nil error for success.
func (cb *CircuitBreaker) Record(duration time.Duration, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	outcome := callOutcome{
		failure: err != nil,
		slow:    duration > cb.cfg.SlowCallDurationThreshold,
	}

	switch cb.state {
	case StateClosed:
		cb.pushOutcome(outcome)
		if cb.windowN >= cb.cfg.MinimumNumberOfCalls {
			failRate, slowRate := cb.windowRates()
			if failRate >= cb.cfg.FailureRateThreshold || slowRate >= cb.cfg.SlowCallRateThreshold {
				cb.toOpen()
			}
		}

	case StateHalfOpen:
		cb.halfOpenOutcomes = append(cb.halfOpenOutcomes, outcome)
		if len(cb.halfOpenOutcomes) >= cb.cfg.PermittedCallsInHalfOpen {
			cb.evaluateHalfOpen()
		}

	case StateOpen:
		// A straggler from before the trip; the window is already reset
		// on transition, nothing to account.
	}
}

func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) pushOutcome(o callOutcome) {
	cb.window[cb.windowAt] = o
	cb.windowAt = (cb.windowAt + 1) % len(cb.window)
	if cb.windowN < len(cb.window) {
		cb.windowN++
	}
}

func (cb *CircuitBreaker) windowRates() (failRate, slowRate float64) {
	if cb.windowN == 0 {
		return 0, 0
	}
	var failures, slow int
	for i := 0; i < cb.windowN; i++ {
		idx := (cb.windowAt - 1 - i + len(cb.window)*2) % len(cb.window)
		if cb.window[idx].failure {
			failures++
		}
		if cb.window[idx].slow {
			slow++
		}
	}
	total := float64(cb.windowN)
	return float64(failures) / total * 100, float64(slow) / total * 100
}

func (cb *CircuitBreaker) evaluateHalfOpen() {
	var failures, slow int
	for _, o := range cb.halfOpenOutcomes {
		if o.failure {
			failures++
		}
		if o.slow {
			slow++
		}
	}
	total := float64(len(cb.halfOpenOutcomes))
	failRate := float64(failures) / total * 100
	slowRate := float64(slow) / total * 100
	if failRate >= cb.cfg.FailureRateThreshold || slowRate >= cb.cfg.SlowCallRateThreshold {
		cb.toOpen()
	} else {
		cb.toClosed()
	}
}

func (cb *CircuitBreaker) toOpen() {
	cb.setState(StateOpen)
	cb.openedAt = time.Now()
	cb.resetWindow()
}

func (cb *CircuitBreaker) toHalfOpen() {
	cb.setState(StateHalfOpen)
	cb.halfOpenIssued = 0
	cb.halfOpenOutcomes = cb.halfOpenOutcomes[:0]
}

func (cb *CircuitBreaker) toClosed() {
	cb.setState(StateClosed)
	cb.resetWindow()
}

func (cb *CircuitBreaker) resetWindow() {
	cb.windowAt = 0
	cb.windowN = 0
}

func (cb *CircuitBreaker) setState(to BreakerState) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	log.Printf("resilience: breaker=%s state %s -> %s", cb.name, from, to)
	if cb.cfg.OnStateChange != nil {
		go cb.cfg.OnStateChange(cb.name, from, to)
	}
}
