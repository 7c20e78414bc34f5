package health

import (
	"sync"
	"time"

	"github.com/storacha/silo/pkg/build"
)

// Status represents the health status
type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

// Response represents a health check response
type Response struct {
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Silo      string    `json:"silo,omitempty"`
	State     string    `json:"state,omitempty"`
	Checks    []Check   `json:"checks,omitempty"`
}

// Check represents an individual health check result
type Check struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
}

// Checker reports liveness and readiness of a silo. A silo is ready only
// while its host is Running.
type Checker struct {
	silo  string
	now   func() time.Time
	mu    sync.RWMutex
	state string
	ready bool
}

// NewChecker creates a checker for the silo with the given membership id.
// It starts not ready.
func NewChecker(silo string) *Checker {
	return &Checker{silo: silo, now: time.Now, state: "Created"}
}

// SetState records the host state and whether it counts as ready.
func (c *Checker) SetState(state string, ready bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
	c.ready = ready
}

func (c *Checker) IsReady() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

func (c *Checker) State() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// LivenessCheck succeeds as long as the process answers.
func (c *Checker) LivenessCheck() Response {
	return Response{
		Status:    StatusOK,
		Timestamp: c.now().UTC(),
		Version:   build.Version,
		Silo:      c.silo,
	}
}

func (c *Checker) ReadinessCheck() Response {
	c.mu.RLock()
	ready, state := c.ready, c.state
	c.mu.RUnlock()

	status := StatusOK
	if !ready {
		status = StatusFailed
	}
	return Response{
		Status:    status,
		Timestamp: c.now().UTC(),
		Version:   build.Version,
		Silo:      c.silo,
		State:     state,
	}
}

// HealthCheck combines liveness and readiness
func (c *Checker) HealthCheck() Response {
	liveness := c.LivenessCheck()
	readiness := c.ReadinessCheck()

	status := StatusOK
	if readiness.Status != StatusOK {
		status = StatusFailed
	}
	return Response{
		Status:    status,
		Timestamp: c.now().UTC(),
		Version:   build.Version,
		Silo:      c.silo,
		State:     readiness.State,
		Checks: []Check{
			{Name: "liveness", Status: liveness.Status},
			{Name: "readiness", Status: readiness.Status},
		},
	}
}
