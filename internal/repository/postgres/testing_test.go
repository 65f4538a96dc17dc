package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rawgroundbeef/openfacilitator/internal/repository"
	"github.com/rawgroundbeef/openfacilitator/internal/testhelpers"
)

// setupTestDB starts a disposable PostgreSQL container with migrations
// applied and returns its pool. Requires Docker; skipped in short mode.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	tc := testhelpers.NewTestContainer(context.Background(), t)
	return tc.Pool()
}

// createTestSubscription inserts a subscription for payerID expiring at
// expiresAt with default test values for the remaining fields.
//
//nolint:revive // t *testing.T conventionally comes first in test helpers
func createTestSubscription(t *testing.T, ctx context.Context, repo *SubscriptionRepository, payerID uuid.UUID, expiresAt time.Time) *repository.Subscription {
	t.Helper()

	now := time.Now().UTC().Truncate(time.Millisecond)
	sub, err := repo.Create(ctx, &repository.Subscription{
		PayerID:          payerID,
		Tier:             repository.TierBasic,
		AmountPaid:       1000,
		PaymentReference: "ref-" + uuid.New().String(),
		StartedAt:        now,
		ExpiresAt:        expiresAt,
	})
	if err != nil {
		t.Fatalf("failed to create test subscription: %v", err)
	}

	return sub
}
