// Package health provides component health aggregation for gamepadd.
//
// Each daemon component registers a check; the aggregate is surfaced
// in the IPC status response. The daemon has no network surface, so
// there is no HTTP endpoint.
package health

import (
	"context"
	"sync"
	"time"
)

// Status represents the health status of a component.
type Status string

const (
	// StatusHealthy indicates the component is healthy.
	StatusHealthy Status = "healthy"
	// StatusDegraded indicates the component is degraded but functional.
	StatusDegraded Status = "degraded"
	// StatusUnhealthy indicates the component is unhealthy.
	StatusUnhealthy Status = "unhealthy"
	// StatusUnknown indicates the component status is unknown.
	StatusUnknown Status = "unknown"
)

// CheckResult represents the result of a health check.
type CheckResult struct {
	Status      Status    `json:"status"`
	Message     string    `json:"message,omitempty"`
	LastChecked time.Time `json:"last_checked"`
}

// Check is a function that performs a health check.
type Check func(ctx context.Context) CheckResult

// Component represents a health-checkable component.
type Component struct {
	Name     string
	Critical bool // If true, failure makes overall status unhealthy.
	Check    Check
}

// Report aggregates all component results.
type Report struct {
	Status     Status                 `json:"status"`
	Components map[string]CheckResult `json:"components"`
	Uptime     time.Duration          `json:"uptime_ns"`
}

// Checker manages health checks.
type Checker struct {
	mu         sync.RWMutex
	components map[string]*Component
	startTime  time.Time
}

// NewChecker creates a checker.
func NewChecker() *Checker {
	return &Checker{
		components: make(map[string]*Component),
		startTime:  time.Now(),
	}
}

// Register adds a component check.
func (c *Checker) Register(comp *Component) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.components[comp.Name] = comp
}

// Run executes all checks and aggregates the result: any critical
// failure is unhealthy, any other failure degrades.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	comps := make([]*Component, 0, len(c.components))
	for _, comp := range c.components {
		comps = append(comps, comp)
	}
	start := c.startTime
	c.mu.RUnlock()

	report := Report{
		Status:     StatusHealthy,
		Components: make(map[string]CheckResult, len(comps)),
		Uptime:     time.Since(start),
	}

	for _, comp := range comps {
		result := comp.Check(ctx)
		result.LastChecked = time.Now()
		report.Components[comp.Name] = result

		switch result.Status {
		case StatusHealthy:
		case StatusUnhealthy:
			if comp.Critical {
				report.Status = StatusUnhealthy
			} else if report.Status == StatusHealthy {
				report.Status = StatusDegraded
			}
		default:
			if report.Status == StatusHealthy {
				report.Status = StatusDegraded
			}
		}
	}

	return report
}

// Healthy is a convenience constructor for a passing result.
func Healthy(msg string) CheckResult {
	return CheckResult{Status: StatusHealthy, Message: msg}
}

// Unhealthy is a convenience constructor for a failing result.
func Unhealthy(msg string) CheckResult {
	return CheckResult{Status: StatusUnhealthy, Message: msg}
}
