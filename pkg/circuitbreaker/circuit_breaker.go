// Package circuitbreaker guards calls to the marketplace backend: after a run
// of transport failures the circuit opens and calls fail fast until a cooldown
// elapses, then a few probe calls decide whether to close it again.
package circuitbreaker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// State is the breaker phase.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// probeCalls is how many consecutive successes in half-open close the circuit.
const probeCalls = 3

// Breaker is a circuit breaker for one upstream.
type Breaker struct {
	name        string
	maxFailures int
	cooldown    time.Duration
	logger      *logrus.Logger

	mu          sync.Mutex
	state       State
	failures    int
	successes   int
	lastFailure time.Time
}

// New builds a closed breaker that trips after maxFailures consecutive
// failures and probes again after cooldown.
func New(name string, maxFailures int, cooldown time.Duration, logger *logrus.Logger) *Breaker {
	if logger == nil {
		logger = logrus.New()
	}
	return &Breaker{
		name:        name,
		maxFailures: maxFailures,
		cooldown:    cooldown,
		logger:      logger,
		state:       StateClosed,
	}
}

// Execute runs fn unless the circuit is open, in which case an *OpenError is
// returned without calling fn. fn's error is passed through unchanged.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if !b.allow() {
		return &OpenError{Name: b.name, State: b.State()}
	}

	if err := fn(ctx); err != nil {
		b.onFailure()
		return err
	}

	b.onSuccess()
	return nil
}

// State returns the current phase, promoting Open to HalfOpen once the
// cooldown has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen && time.Since(b.lastFailure) >= b.cooldown {
		b.state = StateHalfOpen
		b.successes = 0
		b.logger.WithField("breaker", b.name).Info("Circuit breaker half-open, probing upstream")
	}
	return b.state
}

func (b *Breaker) allow() bool {
	return b.State() != StateOpen
}

func (b *Breaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.successes++
		if b.successes >= probeCalls {
			b.state = StateClosed
			b.failures = 0
			b.successes = 0
			b.logger.WithField("breaker", b.name).Info("Circuit breaker closed after recovery")
		}
	case StateClosed:
		b.failures = 0
	}
}

func (b *Breaker) onFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = time.Now()

	if b.state == StateHalfOpen || (b.state == StateClosed && b.failures >= b.maxFailures) {
		b.state = StateOpen
		b.logger.WithFields(logrus.Fields{
			"breaker":  b.name,
			"failures": b.failures,
		}).Warn("Circuit breaker opened")
	}
}

// OpenError is returned when a call is refused because the circuit is open.
type OpenError struct {
	Name  string
	State State
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit breaker %q is %s", e.Name, e.State)
}

// IsOpenError reports whether err is a refusal from an open breaker.
func IsOpenError(err error) bool {
	_, ok := err.(*OpenError)
	return ok
}
