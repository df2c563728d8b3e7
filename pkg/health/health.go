// Package health grades the knowledge base and the process for the health,
// readiness and liveness endpoints.
package health

import (
	"sync"
	"time"
)

// Status grades a check or a whole response
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

func (s Status) rank() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// Worst returns the more severe of a and b. Unknown statuses count as
// unhealthy.
func Worst(a, b Status) Status {
	if b.rank() > a.rank() {
		return b
	}
	return a
}

// Scope selects the endpoints a check is served on
type Scope uint8

const (
	ScopeHealth Scope = 1 << iota
	ScopeReadiness
	ScopeLiveness
)

// Check is the result of one named check
type Check struct {
	Name        string         `json:"name"`
	Status      Status         `json:"status"`
	Message     string         `json:"message,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	LastChecked time.Time      `json:"last_checked"`
	DurationMS  float64        `json:"duration_ms"`
}

// CheckFunc runs a check
type CheckFunc func() Check

// Response is the body served by every endpoint
type Response struct {
	Status    Status           `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
	Uptime    float64          `json:"uptime_seconds"`
	Checks    map[string]Check `json:"checks"`
}

type registration struct {
	name   string
	fn     CheckFunc
	scopes Scope
}

// HealthChecker holds the registered checks. Checks run in registration
// order on every request.
type HealthChecker struct {
	mu      sync.RWMutex
	checks  []registration
	started time.Time
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{started: time.Now()}
}

// Register serves fn on every scope in scopes. A name already registered on
// one of those scopes is replaced there.
func (hc *HealthChecker) Register(name string, fn CheckFunc, scopes Scope) {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	kept := hc.checks[:0]
	for _, r := range hc.checks {
		if r.name == name {
			r.scopes &^= scopes
			if r.scopes == 0 {
				continue
			}
		}
		kept = append(kept, r)
	}
	hc.checks = append(kept, registration{name: name, fn: fn, scopes: scopes})
}

func (hc *HealthChecker) RegisterCheck(name string, fn CheckFunc) {
	hc.Register(name, fn, ScopeHealth)
}

func (hc *HealthChecker) RegisterReadinessCheck(name string, fn CheckFunc) {
	hc.Register(name, fn, ScopeReadiness)
}

func (hc *HealthChecker) RegisterLivenessCheck(name string, fn CheckFunc) {
	hc.Register(name, fn, ScopeLiveness)
}

// Run executes the checks registered on scope. The response status is the
// worst check status; no checks is healthy.
func (hc *HealthChecker) Run(scope Scope) Response {
	hc.mu.RLock()
	var selected []registration
	for _, r := range hc.checks {
		if r.scopes&scope != 0 {
			selected = append(selected, r)
		}
	}
	hc.mu.RUnlock()

	resp := Response{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Uptime:    time.Since(hc.started).Seconds(),
		Checks:    make(map[string]Check, len(selected)),
	}
	for _, r := range selected {
		start := time.Now()
		check := r.fn()
		if check.Name == "" {
			check.Name = r.name
		}
		check.LastChecked = start
		check.DurationMS = float64(time.Since(start).Microseconds()) / 1000

		resp.Checks[r.name] = check
		resp.Status = Worst(resp.Status, check.Status)
	}
	return resp
}

func (hc *HealthChecker) Check() Response          { return hc.Run(ScopeHealth) }
func (hc *HealthChecker) CheckReadiness() Response { return hc.Run(ScopeReadiness) }
func (hc *HealthChecker) CheckLiveness() Response  { return hc.Run(ScopeLiveness) }
