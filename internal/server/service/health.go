package service

import (
	"context"
	"sort"
	"time"

	"adgate/internal/version"

	"go.uber.org/zap"
)

// HealthStatus is the result of a health check
type HealthStatus struct {
	Healthy        bool              `json:"healthy"`
	Timestamp      time.Time         `json:"timestamp"`
	Version        string            `json:"version"`
	StartTime      time.Time         `json:"start_time"`
	Uptime         string            `json:"uptime"`
	ActiveSessions int               `json:"active_sessions"`
	Details        []ComponentStatus `json:"details,omitempty"`
}

// ComponentStatus is the health of one dependency
type ComponentStatus struct {
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	LastCheck time.Time `json:"last_check"`
}

// HealthCheck pings every registered component
func (s *Service) HealthCheck(ctx context.Context) *HealthStatus {
	now := s.now()
	status := &HealthStatus{
		Healthy:        true,
		Timestamp:      now,
		Version:        version.GetInfo().Version,
		StartTime:      s.startTime,
		Uptime:         now.Sub(s.startTime).Round(time.Second).String(),
		ActiveSessions: s.ActiveSessions(),
	}

	names := make([]string, 0, len(s.health))
	for name := range s.health {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		component := ComponentStatus{Name: name, Status: "healthy", LastCheck: now}
		if err := s.health[name].Ping(ctx); err != nil {
			status.Healthy = false
			component.Status = "unhealthy"
			component.Error = err.Error()
			s.logger.Warn("Unhealthy component detected", zap.String("component", name), zap.Error(err))
		}
		status.Details = append(status.Details, component)
	}

	return status
}
