package control

import (
	"sync"
	"time"
)

type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half_open"
)

// CircuitBreaker counts failures per error class and opens once any class
// reaches Threshold. After Cooldown a single trial call is admitted; its
// outcome closes or reopens the circuit.
type CircuitBreaker struct {
	Threshold int
	Cooldown  time.Duration

	mu          sync.Mutex
	state       CircuitState
	failures    map[string]int
	openedAt    time.Time
	openedClass string
	trialing    bool
}

func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &CircuitBreaker{
		Threshold: threshold,
		Cooldown:  cooldown,
		state:     CircuitClosed,
		failures:  map[string]int{},
	}
}

func (c *CircuitBreaker) State() CircuitState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Allow reports whether a call may start at now. While half-open only the
// caller holding the trial slot is admitted.
func (c *CircuitBreaker) Allow(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case CircuitClosed:
		return true
	case CircuitOpen:
		if now.Sub(c.openedAt) < c.Cooldown {
			return false
		}
		c.state = CircuitHalfOpen
	}
	if c.trialing {
		return false
	}
	c.trialing = true
	return true
}

// RecordSuccess closes the circuit and clears all failure counts.
func (c *CircuitBreaker) RecordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = CircuitClosed
	c.openedClass = ""
	c.trialing = false
	c.failures = map[string]int{}
}

// RecordFailure counts an error in errClass. A failed trial call reopens the
// circuit immediately.
func (c *CircuitBreaker) RecordFailure(errClass string, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if errClass == "" {
		errClass = "unknown"
	}
	if c.state == CircuitHalfOpen {
		c.trip(errClass, now)
		return
	}
	c.failures[errClass]++
	if c.failures[errClass] >= c.Threshold {
		c.trip(errClass, now)
	}
}

// Release gives back the trial slot of a call that ended without a verdict
// on the backend, such as one cancelled by its caller.
func (c *CircuitBreaker) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trialing = false
}

// OpenedClass is the error class that last opened the circuit.
func (c *CircuitBreaker) OpenedClass() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.openedClass
}

func (c *CircuitBreaker) trip(errClass string, now time.Time) {
	c.state = CircuitOpen
	c.openedAt = now
	c.openedClass = errClass
	c.trialing = false
}
