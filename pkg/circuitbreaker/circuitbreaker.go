// Package circuitbreaker stops calling a dependency after repeated failures
// and tries it again after a cool-down. The study-hours service wraps its
// Redis cache with one so an unreachable cache degrades to database reads.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is the breaker position.
type State int

const (
	StateClosed   State = iota // calls pass
	StateOpen                  // calls rejected until the cool-down ends
	StateHalfOpen              // a few trial calls pass
)

var stateNames = [...]string{"closed", "open", "half-open"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

var (
	// ErrCircuitOpen rejects calls during the cool-down.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrTooManyRequests rejects calls when every trial slot is busy.
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// IsRejection reports whether err came from the breaker rather than the call.
func IsRejection(err error) bool {
	return errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyRequests)
}

type settings struct {
	failureThreshold int
	successThreshold int
	coolDown         time.Duration
	trials           int
	onStateChange    func(name string, from, to State)
	isFailure        func(error) bool
}

// Option tunes a breaker. Non-positive numbers keep the default.
type Option func(*settings)

// WithFailureThreshold opens the circuit after n consecutive failures. Default 5.
func WithFailureThreshold(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.failureThreshold = n
		}
	}
}

// WithSuccessThreshold closes a half-open circuit after n consecutive
// successful trial calls. Default 1.
func WithSuccessThreshold(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.successThreshold = n
		}
	}
}

// WithTimeout is the cool-down spent open before probing. Default 30s.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.coolDown = d
		}
	}
}

// WithMaxHalfOpenRequests bounds concurrent trial calls. Default 1.
func WithMaxHalfOpenRequests(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.trials = n
		}
	}
}

// WithOnStateChange observes transitions. fn runs under the breaker lock and
// must not call back into it.
func WithOnStateChange(fn func(name string, from, to State)) Option {
	return func(s *settings) { s.onStateChange = fn }
}

// WithIsFailure decides which errors count against the dependency. Errors it
// rejects are recorded as successes. By default every error counts.
func WithIsFailure(fn func(error) bool) Option {
	return func(s *settings) { s.isFailure = fn }
}

// Counts are cumulative since construction or Reset, excluding calls that
// finished after a transition. The consecutive counters restart on every
// transition.
type Counts struct {
	Requests             int
	TotalSuccesses       int
	TotalFailures        int
	ConsecutiveSuccesses int
	ConsecutiveFailures  int
}

// CircuitBreaker is safe for concurrent use.
type CircuitBreaker struct {
	name string
	set  settings
	now  func() time.Time

	mu         sync.Mutex
	state      State
	generation uint64 // bumped on every transition and Reset
	counts     Counts
	until      time.Time // end of the current cool-down
	inFlight   int       // running half-open trial calls
}

// New returns a closed breaker.
func New(name string, opts ...Option) *CircuitBreaker {
	set := settings{
		failureThreshold: 5,
		successThreshold: 1,
		coolDown:         30 * time.Second,
		trials:           1,
	}
	for _, opt := range opts {
		opt(&set)
	}
	return &CircuitBreaker{name: name, set: set, now: time.Now}
}

// Name identifies the breaker in logs and health output.
func (cb *CircuitBreaker) Name() string { return cb.name }

// Execute runs fn unless the circuit rejects the call, and records whether
// fn failed. A rejection returns ErrCircuitOpen or ErrTooManyRequests
// without running fn. A call that finishes after the breaker has changed
// state is not recorded: only calls admitted in the current state decide
// the next transition.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	generation, err := cb.admit()
	if err != nil {
		return err
	}
	err = fn(ctx)
	cb.record(generation, err)
	return err
}

func (cb *CircuitBreaker) admit() (generation uint64, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if cb.now().Before(cb.until) {
			return 0, ErrCircuitOpen
		}
		cb.transition(StateHalfOpen)
	}
	if cb.state == StateHalfOpen {
		if cb.inFlight >= cb.set.trials {
			return 0, ErrTooManyRequests
		}
		cb.inFlight++
	}
	return cb.generation, nil
}

func (cb *CircuitBreaker) record(generation uint64, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if generation != cb.generation {
		return
	}
	if cb.state == StateHalfOpen {
		cb.inFlight--
	}

	c := &cb.counts
	c.Requests++
	if err != nil && (cb.set.isFailure == nil || cb.set.isFailure(err)) {
		c.TotalFailures++
		c.ConsecutiveFailures++
		c.ConsecutiveSuccesses = 0
		if cb.state == StateHalfOpen || c.ConsecutiveFailures >= cb.set.failureThreshold {
			cb.transition(StateOpen)
		}
		return
	}

	c.TotalSuccesses++
	c.ConsecutiveSuccesses++
	c.ConsecutiveFailures = 0
	if cb.state == StateHalfOpen && c.ConsecutiveSuccesses >= cb.set.successThreshold {
		cb.transition(StateClosed)
	}
}

// transition moves to next. Callers hold mu.
func (cb *CircuitBreaker) transition(next State) {
	prev := cb.state
	if prev == next {
		return
	}
	cb.state = next
	cb.generation++
	cb.counts.ConsecutiveSuccesses, cb.counts.ConsecutiveFailures = 0, 0
	cb.inFlight = 0
	if next == StateOpen {
		cb.until = cb.now().Add(cb.set.coolDown)
	}
	if cb.set.onStateChange != nil {
		cb.set.onStateChange(cb.name, prev, next)
	}
}

// State reports the position without advancing an expired cool-down; the
// next Execute does that.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Counts returns a snapshot.
func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.counts
}

// Reset closes the circuit and zeroes the counts without notifying
// the state-change hook.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.generation++
	cb.counts = Counts{}
	cb.inFlight = 0
	cb.until = time.Time{}
}
