// Package circuit provides a failure-budget state machine for call-sites that
// talk to fallible dependencies, and a generic executor that always hands the
// caller either the real result or a fallback.
package circuit

import (
	"errors"
	"sync"
	"time"
)

// State represents the breaker position.
type State int

const (
	StateClosed   State = iota // calls pass through, failures counted
	StateOpen                  // calls short-circuit to the fallback
	StateHalfOpen              // a single trial call is in flight
)

// String returns the state name used in logs and metric labels.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

var (
	// ErrOpen is handed to fallbacks when the breaker rejected the call.
	ErrOpen = errors.New("circuit open")
	// ErrTimeout is handed to fallbacks when the call exceeded the breaker timeout.
	ErrTimeout = errors.New("call timed out")
	// ErrPanic wraps a recovered panic from the protected call.
	ErrPanic = errors.New("call panicked")
)

const (
	defaultFailureThreshold = 5
	defaultCooldown         = 30 * time.Second
)

// StateChange reports whether a Record call moved the breaker.
type StateChange struct {
	Opened bool
	Closed bool
}

// Snapshot is a point-in-time view of a breaker, safe to log or serialize.
type Snapshot struct {
	Name             string        `json:"name"`
	State            string        `json:"state"`
	Failures         int           `json:"consecutive_failures"`
	LastTransition   time.Time     `json:"last_transition"`
	FailureThreshold int           `json:"failure_threshold"`
	Cooldown         time.Duration `json:"cooldown"`
}

// TransitionFunc observes state changes. It is invoked after the breaker lock
// is released, in the order transitions happened for a given caller.
type TransitionFunc func(name string, from, to State)

// Breaker guards one named call-site. All state transitions are serialized
// under mu so concurrent evaluations sharing the call-site see a consistent
// failure count.
type Breaker struct {
	mu sync.Mutex

	name             string
	failureThreshold int
	cooldown         time.Duration
	timeout          time.Duration
	now              func() time.Time
	onTransition     TransitionFunc

	state          State
	failures       int
	lastTransition time.Time
	trialInFlight  bool
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithFailureThreshold sets how many consecutive failures open the circuit.
func WithFailureThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.failureThreshold = n
		}
	}
}

// WithCooldown sets how long the circuit stays open before a trial call.
func WithCooldown(d time.Duration) Option {
	return func(b *Breaker) {
		if d > 0 {
			b.cooldown = d
		}
	}
}

// WithTimeout bounds every call made through Execute. Zero means the caller's
// context is the only deadline.
func WithTimeout(d time.Duration) Option {
	return func(b *Breaker) {
		if d >= 0 {
			b.timeout = d
		}
	}
}

// WithClock injects the time source, mainly for cooldown tests.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		if now != nil {
			b.now = now
		}
	}
}

// WithTransitionHook registers a callback for state changes.
func WithTransitionHook(fn TransitionFunc) Option {
	return func(b *Breaker) {
		b.onTransition = fn
	}
}

// New creates a closed breaker for the named call-site.
func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:             name,
		failureThreshold: defaultFailureThreshold,
		cooldown:         defaultCooldown,
		now:              time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	b.lastTransition = b.now()
	return b
}

// Name returns the call-site name.
func (b *Breaker) Name() string { return b.name }

// Timeout returns the per-call timeout applied by Execute.
func (b *Breaker) Timeout() time.Duration { return b.timeout }

// Allow reports whether a call may go to the dependency. An open breaker whose
// cooldown has elapsed moves to half-open and admits exactly one trial; every
// other caller keeps getting false until the trial is recorded.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	var (
		allowed bool
		moved   bool
		from    State
	)
	switch b.state {
	case StateClosed:
		allowed = true
	case StateOpen:
		if b.now().Sub(b.lastTransition) >= b.cooldown {
			from, moved = b.transitionLocked(StateHalfOpen)
			b.trialInFlight = true
			allowed = true
		}
	case StateHalfOpen:
		if !b.trialInFlight {
			b.trialInFlight = true
			allowed = true
		}
	}
	b.mu.Unlock()

	if moved {
		b.notify(from, StateHalfOpen)
	}
	return allowed
}

// RecordSuccess records a successful call. A successful half-open trial closes
// the circuit. usePrimary is false only when the breaker is open, i.e. the
// success came from a call admitted before the circuit tripped.
func (b *Breaker) RecordSuccess() (usePrimary bool, change StateChange) {
	b.mu.Lock()
	var (
		moved bool
		from  State
	)
	switch b.state {
	case StateClosed:
		b.failures = 0
		usePrimary = true
	case StateHalfOpen:
		b.failures = 0
		b.trialInFlight = false
		from, moved = b.transitionLocked(StateClosed)
		change.Closed = true
		usePrimary = true
	case StateOpen:
		usePrimary = false
	}
	b.mu.Unlock()

	if moved {
		b.notify(from, StateClosed)
	}
	return usePrimary, change
}

// RecordFailure records a failed call. Reaching the threshold while closed, or
// failing the half-open trial, opens the circuit. useFallback reports whether
// callers should now be served the fallback.
func (b *Breaker) RecordFailure() (useFallback bool, change StateChange) {
	b.mu.Lock()
	var (
		moved bool
		from  State
	)
	b.failures++
	switch b.state {
	case StateClosed:
		if b.failures >= b.failureThreshold {
			from, moved = b.transitionLocked(StateOpen)
			change.Opened = true
			useFallback = true
		}
	case StateHalfOpen:
		b.trialInFlight = false
		from, moved = b.transitionLocked(StateOpen)
		change.Opened = true
		useFallback = true
	case StateOpen:
		useFallback = true
	}
	b.mu.Unlock()

	if moved {
		b.notify(from, StateOpen)
	}
	return useFallback, change
}

// release gives back an admitted call that ended without an outcome for the
// dependency (caller cancelled), so a half-open breaker can admit a new trial.
func (b *Breaker) release() {
	b.mu.Lock()
	if b.state == StateHalfOpen {
		b.trialInFlight = false
	}
	b.mu.Unlock()
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// IsOpen returns true while calls are being short-circuited.
func (b *Breaker) IsOpen() bool {
	return b.State() == StateOpen
}

// Reset manually closes the circuit.
func (b *Breaker) Reset() {
	b.mu.Lock()
	b.failures = 0
	b.trialInFlight = false
	from, moved := b.transitionLocked(StateClosed)
	b.mu.Unlock()

	if moved {
		b.notify(from, StateClosed)
	}
}

// Snapshot returns the breaker's current bookkeeping.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		Name:             b.name,
		State:            b.state.String(),
		Failures:         b.failures,
		LastTransition:   b.lastTransition,
		FailureThreshold: b.failureThreshold,
		Cooldown:         b.cooldown,
	}
}

// transitionLocked changes state and stamps the transition time.
// Caller must hold b.mu.
func (b *Breaker) transitionLocked(to State) (State, bool) {
	from := b.state
	if from == to {
		return from, false
	}
	b.state = to
	b.lastTransition = b.now()
	return from, true
}

func (b *Breaker) notify(from, to State) {
	if b.onTransition != nil {
		b.onTransition(b.name, from, to)
	}
}
