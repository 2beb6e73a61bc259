package provider

import (
	"context"
	"time"
)

// Health statuses.
const (
	StatusHealthy     = "healthy"
	StatusUnavailable = "unavailable"
	StatusError       = "error"
)

// Health is the result of probing one provider.
type Health struct {
	Name         string        `json:"name"`
	Available    bool          `json:"available"`
	ResponseTime time.Duration `json:"response_time"`
	Status       string        `json:"status"`
	Error        string        `json:"error,omitempty"`
}

// Prober is the part of a Provider needed for health checks.
type Prober interface {
	Name() string
	Available(ctx context.Context) (bool, error)
}

// Probe runs p's availability check and times it.
func Probe(ctx context.Context, p Prober) Health {
	start := time.Now()
	ok, err := p.Available(ctx)
	h := Health{Name: p.Name(), ResponseTime: time.Since(start)}
	switch {
	case err != nil:
		h.Status = StatusError
		h.Error = err.Error()
	case ok:
		h.Available = true
		h.Status = StatusHealthy
	default:
		h.Status = StatusUnavailable
	}
	return h
}
