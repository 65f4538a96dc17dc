// Package health provides liveness and readiness checks for the service.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Status represents the health status of a component.
type Status string

const (
	// StatusHealthy indicates the component is healthy.
	StatusHealthy Status = "healthy"

	// StatusUnhealthy indicates the component is unhealthy.
	StatusUnhealthy Status = "unhealthy"

	// StatusDegraded indicates the component is partially functional.
	StatusDegraded Status = "degraded"
)

// Check represents a health check result for a component.
type Check struct {
	Name     string         `json:"name"`
	Status   Status         `json:"status"`
	Message  string         `json:"message,omitempty"`
	Duration time.Duration  `json:"duration"`
	Details  map[string]any `json:"details,omitempty"`
}

// Report represents the overall health status.
type Report struct {
	Status    Status           `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
	Checks    map[string]Check `json:"checks"`
	Version   string           `json:"version,omitempty"`
}

// Checker defines the interface for health checks.
type Checker interface {
	Check(ctx context.Context) Check
}

// Service manages health checks for the application.
type Service struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	version  string
}

// NewService creates a new health check service.
func NewService(version string) *Service {
	return &Service{
		checkers: make(map[string]Checker),
		version:  version,
	}
}

// RegisterChecker adds a new health checker.
func (s *Service) RegisterChecker(name string, checker Checker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkers[name] = checker
}

// CheckHealth runs all registered checks and returns a report.
func (s *Service) CheckHealth(ctx context.Context) Report {
	s.mu.RLock()
	checkers := make(map[string]Checker, len(s.checkers))
	for name, checker := range s.checkers {
		checkers[name] = checker
	}
	s.mu.RUnlock()

	checks := make(map[string]Check, len(checkers))
	overallStatus := StatusHealthy

	for name, checker := range checkers {
		check := checker.Check(ctx)
		checks[name] = check

		if check.Status == StatusUnhealthy {
			overallStatus = StatusUnhealthy
		} else if check.Status == StatusDegraded && overallStatus != StatusUnhealthy {
			overallStatus = StatusDegraded
		}
	}

	return Report{
		Status:    overallStatus,
		Timestamp: time.Now(),
		Checks:    checks,
		Version:   s.version,
	}
}

// Liveness reports whether the process is alive. It never touches
// downstream dependencies.
func (s *Service) Liveness(ctx context.Context) Report {
	return Report{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Version:   s.version,
	}
}

// Readiness reports whether the service can serve traffic.
func (s *Service) Readiness(ctx context.Context) Report {
	return s.CheckHealth(ctx)
}

// PostgresChecker checks the health of a PostgreSQL database.
type PostgresChecker struct {
	pool *pgxpool.Pool
}

// NewPostgresChecker creates a new PostgreSQL health checker.
func NewPostgresChecker(pool *pgxpool.Pool) *PostgresChecker {
	return &PostgresChecker{pool: pool}
}

// Check performs a database health check.
func (c *PostgresChecker) Check(ctx context.Context) Check {
	start := time.Now()

	err := c.pool.Ping(ctx)
	duration := time.Since(start)

	if err != nil {
		return Check{
			Name:     "postgres",
			Status:   StatusUnhealthy,
			Message:  fmt.Sprintf("database ping failed: %v", err),
			Duration: duration,
		}
	}

	stats := c.pool.Stat()
	details := map[string]any{
		"max_conns":      stats.MaxConns(),
		"acquired_conns": stats.AcquiredConns(),
		"idle_conns":     stats.IdleConns(),
	}

	// More than 80% of connections in use means the pool is under pressure.
	if stats.MaxConns() > 0 && float64(stats.AcquiredConns())/float64(stats.MaxConns()) > 0.8 {
		return Check{
			Name:     "postgres",
			Status:   StatusDegraded,
			Message:  "connection pool near capacity",
			Duration: duration,
			Details:  details,
		}
	}

	return Check{
		Name:     "postgres",
		Status:   StatusHealthy,
		Duration: duration,
		Details:  details,
	}
}
