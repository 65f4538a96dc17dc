package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/rawgroundbeef/openfacilitator/internal/config"
	"github.com/rawgroundbeef/openfacilitator/internal/db"
	"github.com/rawgroundbeef/openfacilitator/internal/health"
	"github.com/rawgroundbeef/openfacilitator/internal/jobs"
	"github.com/rawgroundbeef/openfacilitator/internal/logger"
	"github.com/rawgroundbeef/openfacilitator/internal/repository/postgres"
	"github.com/rawgroundbeef/openfacilitator/internal/vault"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// Logger is not up yet.
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Initialize(cfg.Environment); err != nil {
		os.Stderr.WriteString("failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()

	zap.L().Info("Starting facilitator service",
		zap.String("version", version),
		zap.String("environment", cfg.Environment))

	// Construct the vault up front so a bad master secret or iteration
	// count fails the process before it touches the database.
	v, err := vault.New(vault.Config{
		MasterSecret: cfg.Vault.MasterSecret,
		Iterations:   cfg.Vault.Iterations,
	})
	if err != nil {
		zap.L().Fatal("Failed to initialize vault", zap.Error(err))
	}

	if err := vaultSelfCheck(v); err != nil {
		zap.L().Fatal("Vault self check failed", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	pool, err := db.NewPool(ctx, &db.Config{
		Host:              cfg.Database.Host,
		Port:              cfg.Database.Port,
		User:              cfg.Database.User,
		Password:          cfg.Database.Password,
		Database:          cfg.Database.Database,
		SSLMode:           cfg.Database.SSLMode,
		MaxConns:          cfg.Database.MaxConns,
		MinConns:          cfg.Database.MinConns,
		MaxConnLifetime:   time.Hour,
		MaxConnIdleTime:   30 * time.Minute,
		HealthCheckPeriod: time.Minute,
		SkipMigrations:    cfg.Database.SkipMigrations,
		MigrationsPath:    cfg.Database.MigrationsPath,
	})
	cancel()
	if err != nil {
		zap.L().Fatal("Failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	zap.L().Info("Database initialized successfully")

	healthService := health.NewService(version)
	healthService.RegisterChecker("postgres", health.NewPostgresChecker(pool.Pool))

	report := healthService.Readiness(context.Background())
	if report.Status == health.StatusUnhealthy {
		zap.L().Fatal("Service not ready", zap.Any("report", report))
	}

	subscriptionRepo := postgres.NewSubscriptionRepository(pool.Pool)

	expiryReport := jobs.NewExpiryReport(subscriptionRepo, jobs.Config{
		Schedule: cfg.ExpiryReport.Schedule,
		Window:   cfg.ExpiryReport.Window,
		Timeout:  time.Minute,
	})
	expiryReport.Start()

	zap.L().Info("Facilitator service started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zap.L().Info("Shutting down facilitator service")

	expiryReport.Stop()

	zap.L().Info("Facilitator service stopped gracefully")
}

// vaultSelfCheck round-trips a probe value through the vault so key
// derivation problems surface at startup instead of on the first
// wallet operation.
func vaultSelfCheck(v *vault.Vault) error {
	const probe = "startup-probe"

	sealed, err := v.Encrypt(probe)
	if err != nil {
		return err
	}

	opened, err := v.Decrypt(sealed)
	if err != nil {
		return err
	}

	if opened != probe {
		return vault.ErrAuthenticationFailed
	}

	return nil
}
