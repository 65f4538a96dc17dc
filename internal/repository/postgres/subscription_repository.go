package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rawgroundbeef/openfacilitator/internal/repository"
)

// SubscriptionRepository implements subscription data access using
// PostgreSQL. Applied payment references are recorded in a ledger table
// whose primary key provides the uniqueness guarantee the entitlement
// engine depends on; subscription mutation and ledger insert happen in
// one transaction.
type SubscriptionRepository struct {
	pool *pgxpool.Pool
	tx   *Transactor
}

// NewSubscriptionRepository creates a new SubscriptionRepository
// instance.
func NewSubscriptionRepository(pool *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{
		pool: pool,
		tx:   NewTransactor(pool),
	}
}

const subscriptionColumns = `id, payer_id, tier, amount_paid, payment_reference, started_at, expires_at, created_at`

// scanSubscription scans a database row into a Subscription struct.
func scanSubscription(scanner interface {
	Scan(dest ...any) error
},
) (*repository.Subscription, error) {
	var sub repository.Subscription
	var ref *string
	err := scanner.Scan(
		&sub.ID,
		&sub.PayerID,
		&sub.Tier,
		&sub.AmountPaid,
		&ref,
		&sub.StartedAt,
		&sub.ExpiresAt,
		&sub.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if ref != nil {
		sub.PaymentReference = *ref
	}
	return &sub, nil
}

// nullableRef maps the empty reference to NULL so the ledger and the
// subscriptions column never collide on "".
func nullableRef(ref string) *string {
	if ref == "" {
		return nil
	}
	return &ref
}

// FindByPaymentReference resolves an applied payment reference to the
// subscription it mutated. Returns repository.ErrNotFound when the
// reference was never applied.
func (r *SubscriptionRepository) FindByPaymentReference(ctx context.Context, ref string) (*repository.Subscription, error) {
	query := `
		SELECT s.id, s.payer_id, s.tier, s.amount_paid, s.payment_reference, s.started_at, s.expires_at, s.created_at
		FROM subscriptions s
		JOIN subscription_payments p ON p.subscription_id = s.id
		WHERE p.reference = $1
	`

	q := getQuerier(ctx, r.pool)
	sub, err := scanSubscription(q.QueryRow(ctx, query, ref))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find subscription by payment reference: %w", err)
	}

	return sub, nil
}

// FindLatestByPayer returns the payer's most-recently-expiring
// subscription, the authoritative row for entitlement resolution.
func (r *SubscriptionRepository) FindLatestByPayer(ctx context.Context, payerID uuid.UUID) (*repository.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE payer_id = $1
		ORDER BY expires_at DESC
		LIMIT 1
	`

	q := getQuerier(ctx, r.pool)
	sub, err := scanSubscription(q.QueryRow(ctx, query, payerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find latest subscription: %w", err)
	}

	return sub, nil
}

// Get retrieves a subscription by ID.
func (r *SubscriptionRepository) Get(ctx context.Context, id uuid.UUID) (*repository.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE id = $1
	`

	q := getQuerier(ctx, r.pool)
	sub, err := scanSubscription(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	return sub, nil
}

// Create inserts a new subscription and, when the payment carried a
// reference, records it in the payment ledger atomically. Returns
// repository.ErrDuplicate when the reference was already applied.
func (r *SubscriptionRepository) Create(ctx context.Context, sub *repository.Subscription) (*repository.Subscription, error) {
	query := `
		INSERT INTO subscriptions (payer_id, tier, amount_paid, payment_reference, started_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + subscriptionColumns

	var created *repository.Subscription
	err := r.tx.WithTransaction(ctx, func(ctx context.Context) error {
		q := getQuerier(ctx, r.pool)

		var err error
		created, err = scanSubscription(q.QueryRow(ctx, query,
			sub.PayerID,
			sub.Tier,
			sub.AmountPaid,
			nullableRef(sub.PaymentReference),
			sub.StartedAt,
			sub.ExpiresAt,
		))
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("payment reference %s: %w", sub.PaymentReference, repository.ErrDuplicate)
			}
			return fmt.Errorf("failed to create subscription: %w", err)
		}

		return r.recordPayment(ctx, q, sub.PaymentReference, created.ID, sub.AmountPaid)
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

// Extend applies an extension in a single UPDATE so a partial tier or
// expiry change is never observable, and records the payment reference
// in the same transaction. Returns repository.ErrNotFound when the
// subscription does not exist and repository.ErrDuplicate when the
// reference was already applied.
func (r *SubscriptionRepository) Extend(ctx context.Context, id uuid.UUID, expiresAt time.Time, tier repository.Tier, deltaAmount int64, paymentReference string) (*repository.Subscription, error) {
	query := `
		UPDATE subscriptions
		SET expires_at = $2,
		    tier = $3,
		    amount_paid = amount_paid + $4,
		    payment_reference = COALESCE($5, payment_reference)
		WHERE id = $1
		RETURNING ` + subscriptionColumns

	var updated *repository.Subscription
	err := r.tx.WithTransaction(ctx, func(ctx context.Context) error {
		q := getQuerier(ctx, r.pool)

		var err error
		updated, err = scanSubscription(q.QueryRow(ctx, query,
			id,
			expiresAt,
			tier,
			deltaAmount,
			nullableRef(paymentReference),
		))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return repository.ErrNotFound
			}
			return fmt.Errorf("failed to extend subscription: %w", err)
		}

		return r.recordPayment(ctx, q, paymentReference, id, deltaAmount)
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// CountExpiringWithin counts subscriptions whose expiry falls inside
// (from, to]. Used by the expiry report job.
func (r *SubscriptionRepository) CountExpiringWithin(ctx context.Context, from, to time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM subscriptions WHERE expires_at > $1 AND expires_at <= $2`

	q := getQuerier(ctx, r.pool)
	var count int
	if err := q.QueryRow(ctx, query, from, to).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count expiring subscriptions: %w", err)
	}

	return count, nil
}

// recordPayment appends an applied reference to the payment ledger. The
// primary key on reference is what turns a replayed payment into
// repository.ErrDuplicate and rolls the surrounding transaction back.
func (r *SubscriptionRepository) recordPayment(ctx context.Context, q querier, ref string, subscriptionID uuid.UUID, amount int64) error {
	if ref == "" {
		return nil
	}

	query := `
		INSERT INTO subscription_payments (reference, subscription_id, amount)
		VALUES ($1, $2, $3)
	`

	if _, err := q.Exec(ctx, query, ref, subscriptionID, amount); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("payment reference %s: %w", ref, repository.ErrDuplicate)
		}
		return fmt.Errorf("failed to record payment: %w", err)
	}

	return nil
}
