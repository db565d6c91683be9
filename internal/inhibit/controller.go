package inhibit

import (
	"sync"
	"time"

	"gamepadd/internal/logging"
)

// State is the process-wide inhibition state.
type State int

const (
	// StateIdleAllowed means no inhibition is held.
	StateIdleAllowed State = iota
	// StateIdleInhibited means exactly one inhibition token is held.
	StateIdleInhibited
)

func (s State) String() string {
	if s == StateIdleInhibited {
		return "idle-inhibited"
	}
	return "idle-allowed"
}

// MarshalJSON encodes the state by name for status output.
func (s State) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON decodes a state name.
func (s *State) UnmarshalJSON(data []byte) error {
	if string(data) == `"idle-inhibited"` {
		*s = StateIdleInhibited
	} else {
		*s = StateIdleAllowed
	}
	return nil
}

// Status is a read-only snapshot of the controller for status
// reporting.
type Status struct {
	State        State     `json:"state"`
	Backend      string    `json:"backend"`
	Token        string    `json:"token,omitempty"`
	LastActivity time.Time `json:"last_activity,omitzero"`
	InhibitCalls uint64    `json:"inhibit_calls"`
	ReleaseCalls uint64    `json:"release_calls"`
}

// Controller holds the inhibition state machine.
//
// Transitions are driven exclusively by the daemon loop (Activity,
// HandleTimeout, Shutdown), so token issue and clear are serialized.
// The mutex exists only so the IPC handler can read a consistent
// snapshot concurrently.
//
// Invariant: token != nil exactly when state == StateIdleInhibited.
type Controller struct {
	backend Backend
	log     *logging.Logger
	appName string
	reason  string

	mu           sync.RWMutex
	timeout      time.Duration
	state        State
	token        Token
	lastActivity time.Time
	inhibitCalls uint64
	releaseCalls uint64

	// stale holds a token whose release failed; retried once at
	// shutdown so it never silently leaks.
	stale Token

	timer *time.Timer
}

// NewController creates a controller in StateIdleAllowed.
func NewController(backend Backend, appName, reason string, timeout time.Duration, log *logging.Logger) *Controller {
	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	return &Controller{
		backend: backend,
		log:     log,
		appName: appName,
		reason:  reason,
		timeout: timeout,
		timer:   timer,
	}
}

// TimerC exposes the inactivity timer's expiry channel for the daemon
// loop's select.
func (c *Controller) TimerC() <-chan time.Time {
	return c.timer.C
}

// Activity drives the activity transition. In StateIdleAllowed it
// issues one inhibit call; in StateIdleInhibited it only refreshes the
// last-activity timestamp. The inactivity timer is re-armed on every
// call that leaves the controller inhibited.
func (c *Controller) Activity(now time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateIdleInhibited {
		c.lastActivity = now
		c.timer.Reset(c.timeout)
		return nil
	}

	token, err := c.backend.Inhibit(c.appName, c.reason)
	if err != nil {
		// Stay in StateIdleAllowed; the next activity event retries.
		return err
	}
	c.inhibitCalls++
	c.state = StateIdleInhibited
	c.token = token
	c.lastActivity = now
	c.timer.Reset(c.timeout)
	c.log.Info("idle inhibited", "backend", c.backend.Name(), "token", token.String())
	return nil
}

// HandleTimeout drives the timeout transition after the inactivity
// timer fires. If activity arrived since the timer was armed the
// timer is simply re-armed for the remainder; otherwise the held
// inhibition is released.
func (c *Controller) HandleTimeout(now time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdleInhibited {
		return nil
	}

	if gap := now.Sub(c.lastActivity); gap < c.timeout {
		c.timer.Reset(c.timeout - gap)
		return nil
	}

	return c.releaseLocked()
}

// releaseLocked releases the held token. A failed uninhibit still
// clears local state so at most one stale token exists; it is retried
// once at shutdown. Caller holds the lock.
func (c *Controller) releaseLocked() error {
	token := c.token
	c.token = nil
	c.state = StateIdleAllowed

	err := c.backend.UnInhibit(token)
	if err != nil {
		c.stale = token
		return err
	}
	c.releaseCalls++
	c.log.Info("idle inhibition released", "backend", c.backend.Name(), "token", token.String())
	return nil
}

// SetTimeout updates the inactivity timeout, re-arming the timer
// relative to the last activity when currently inhibited. Used for
// config hot-reload.
func (c *Controller) SetTimeout(timeout time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.timeout = timeout
	if c.state == StateIdleInhibited {
		remaining := timeout - time.Since(c.lastActivity)
		if remaining < 0 {
			remaining = 0
		}
		c.timer.Reset(remaining)
	}
}

// Shutdown releases any held inhibition and retries a stale one. Runs
// on all exit paths, including signal-triggered shutdown.
func (c *Controller) Shutdown() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.timer.Stop()

	var firstErr error
	if c.state == StateIdleInhibited {
		if err := c.releaseLocked(); err != nil {
			c.log.Error("uninhibit failed at shutdown", "error", err)
			firstErr = err
		}
	}

	if c.stale != nil {
		if err := c.backend.UnInhibit(c.stale); err != nil {
			c.log.Error("stale token release failed at shutdown", "token", c.stale.String(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
		c.stale = nil
	}

	return firstErr
}

// Snapshot returns the current controller status.
func (c *Controller) Snapshot() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Status{
		State:        c.state,
		Backend:      c.backend.Name(),
		LastActivity: c.lastActivity,
		InhibitCalls: c.inhibitCalls,
		ReleaseCalls: c.releaseCalls,
	}
	if c.token != nil {
		s.Token = c.token.String()
	}
	return s
}
