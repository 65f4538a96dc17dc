// Package jobs contains periodic background jobs.
package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// SubscriptionCounter defines the interface for expiry reporting queries.
type SubscriptionCounter interface {
	CountExpiringWithin(ctx context.Context, from, to time.Time) (int, error)
}

// ExpiryReport periodically logs how many subscriptions expire within
// the configured lookahead window. Operators use it to watch renewal
// volume without querying the database by hand.
type ExpiryReport struct {
	repo     SubscriptionCounter
	schedule time.Duration
	window   time.Duration
	timeout  time.Duration
	stopCh   chan struct{}
}

// Config holds configuration for the expiry report job.
type Config struct {
	Schedule time.Duration // How often to run the report
	Window   time.Duration // Lookahead for soon-to-expire subscriptions
	Timeout  time.Duration // Maximum time for one report query
}

// DefaultConfig returns sensible default configuration.
// Runs daily with a 72 hour lookahead.
func DefaultConfig() Config {
	return Config{
		Schedule: 24 * time.Hour,
		Window:   72 * time.Hour,
		Timeout:  time.Minute,
	}
}

// NewExpiryReport creates a new expiry report job with the specified configuration.
func NewExpiryReport(repo SubscriptionCounter, cfg Config) *ExpiryReport {
	return &ExpiryReport{
		repo:     repo,
		schedule: cfg.Schedule,
		window:   cfg.Window,
		timeout:  cfg.Timeout,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the report job background goroutine.
// It runs immediately on start, then continues on the configured schedule.
func (er *ExpiryReport) Start() {
	zap.L().Info("Starting subscription expiry report job",
		zap.Duration("schedule", er.schedule),
		zap.Duration("window", er.window))

	go er.reportLoop()
}

// Stop gracefully stops the report job.
func (er *ExpiryReport) Stop() {
	zap.L().Info("Stopping subscription expiry report job")
	close(er.stopCh)
}

func (er *ExpiryReport) reportLoop() {
	// Run immediately on startup
	er.report()

	ticker := time.NewTicker(er.schedule)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			er.report()
		case <-er.stopCh:
			zap.L().Info("Subscription expiry report job stopped")
			return
		}
	}
}

func (er *ExpiryReport) report() {
	ctx, cancel := context.WithTimeout(context.Background(), er.timeout)
	defer cancel()

	now := time.Now()
	deadline := now.Add(er.window)

	count, err := er.repo.CountExpiringWithin(ctx, now, deadline)
	if err != nil {
		zap.L().Error("Error during subscription expiry report", zap.Error(err))
		return
	}

	if count > 0 {
		zap.L().Info("Subscription expiry report",
			zap.Int("expiring_count", count),
			zap.String("deadline", deadline.Format(time.RFC3339)))
	} else {
		zap.L().Info("Subscription expiry report: no subscriptions expiring soon")
	}
}
