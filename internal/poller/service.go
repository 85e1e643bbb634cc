package poller

import (
	"context"
	"time"
)

// State is the last observed outcome of a service's polling loop.
type State int

const (
	StateUnknown State = iota
	StateFailed
	StateCompleted
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateFailed:
		return "failed"
	case StateCompleted:
		return "completed"
	case StateRunning:
		return "running"
	default:
		return "unknown"
	}
}

// Service is the uniform contract every pipeline stage satisfies. The
// orchestrator holds a homogeneous collection of these for status reporting
// and lifecycle control.
type Service interface {
	Name() string
	Interval() time.Duration
	LastRun() time.Time
	State() State
	Running() bool
	Step(ctx context.Context) error
	Start(ctx context.Context) error
	Stop(timeout time.Duration) error
}

// Status is a point-in-time snapshot of a service for the frontend query.
type Status struct {
	Name    string
	LastRun time.Time
	State   State
	Running bool
}

// Snapshot captures a service's current status.
func Snapshot(s Service) Status {
	return Status{
		Name:    s.Name(),
		LastRun: s.LastRun(),
		State:   s.State(),
		Running: s.Running(),
	}
}
