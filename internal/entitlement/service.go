// Package entitlement owns the subscription lifecycle: creation on the
// first confirmed payment, idempotent payment application, and tier-aware
// extension arithmetic. All state lives in persisted records; the service
// holds no mutable memory between calls.
package entitlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rawgroundbeef/openfacilitator/internal/repository"
)

var (
	// ErrNotFound is returned when a subscription ID does not resolve to
	// an existing record.
	ErrNotFound = errors.New("entitlement: subscription not found")

	// ErrDuplicatePayment is returned when storage reports a payment
	// reference collision that cannot be resolved to an already-applied
	// payment. A legitimate webhook retry never produces this error; it
	// indicates a storage-layer integrity problem.
	ErrDuplicatePayment = errors.New("entitlement: payment reference already used")

	// ErrInvalidDuration is returned when a payment or extension carries
	// a non-positive day count. Expiry only ever moves forward.
	ErrInvalidDuration = errors.New("entitlement: duration must be positive")

	// ErrInvalidAmount is returned when a payment carries a negative
	// amount. AmountPaid is cumulative and never decremented.
	ErrInvalidAmount = errors.New("entitlement: amount must not be negative")
)

// SubscriptionRepository defines the persistence port for subscription
// rows. Interfaces are defined at the point of use.
//
// Required guarantee: applied payment references carry a unique
// constraint, so two concurrent RecordPayment calls with the same
// reference result in exactly one applied mutation. Extend must be
// all-or-nothing; a partially applied tier/expiry update must never be
// observable.
type SubscriptionRepository interface {
	FindByPaymentReference(ctx context.Context, ref string) (*repository.Subscription, error)
	FindLatestByPayer(ctx context.Context, payerID uuid.UUID) (*repository.Subscription, error)
	Get(ctx context.Context, id uuid.UUID) (*repository.Subscription, error)
	Create(ctx context.Context, sub *repository.Subscription) (*repository.Subscription, error)
	Extend(ctx context.Context, id uuid.UUID, expiresAt time.Time, tier repository.Tier, deltaAmount int64, paymentReference string) (*repository.Subscription, error)
}

// Clock supplies the current time. Injected so lifecycle arithmetic is a
// pure function of stored data and the supplied now.
type Clock func() time.Time

// Entitlement is the externally observable (tier, expiresAt) pair for a
// payer. "Active" is always derived by comparing ExpiresAt against the
// caller-supplied now, never cached.
type Entitlement struct {
	Tier      repository.Tier
	ExpiresAt time.Time
}

// Service implements the entitlement engine over a persistence port.
type Service struct {
	repo  SubscriptionRepository
	clock Clock
}

// NewService creates the entitlement engine. A nil clock selects
// time.Now.
func NewService(repo SubscriptionRepository, clock Clock) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		repo:  repo,
		clock: clock,
	}
}

// RecordPayment applies a confirmed payment for a payer. Replaying an
// already-applied payment reference returns the existing record
// unchanged; the first payment for a payer creates the subscription; any
// later payment extends the payer's single subscription lineage.
func (s *Service) RecordPayment(ctx context.Context, payerID uuid.UUID, tier repository.Tier, paymentReference string, amount int64, durationDays int) (*repository.Subscription, error) {
	if durationDays <= 0 {
		return nil, ErrInvalidDuration
	}
	if amount < 0 {
		return nil, ErrInvalidAmount
	}

	if paymentReference != "" {
		existing, err := s.repo.FindByPaymentReference(ctx, paymentReference)
		switch {
		case err == nil:
			zap.L().Info("payment reference already applied, returning existing subscription",
				zap.String("payer_id", payerID.String()),
				zap.String("payment_reference", paymentReference))
			return existing, nil
		case errors.Is(err, repository.ErrNotFound):
			// First time we see this reference.
		default:
			return nil, fmt.Errorf("failed to look up payment reference: %w", err)
		}
	}

	latest, err := s.repo.FindLatestByPayer(ctx, payerID)
	switch {
	case err == nil:
		return s.extendRecord(ctx, latest, durationDays, tier, amount, paymentReference)
	case errors.Is(err, repository.ErrNotFound):
		// First confirmed payment for this payer.
	default:
		return nil, fmt.Errorf("failed to look up subscription for payer: %w", err)
	}

	now := s.clock()
	created, err := s.repo.Create(ctx, &repository.Subscription{
		PayerID:          payerID,
		Tier:             tier,
		AmountPaid:       amount,
		PaymentReference: paymentReference,
		StartedAt:        now,
		ExpiresAt:        now.AddDate(0, 0, durationDays),
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return s.resolveDuplicate(ctx, paymentReference)
		}
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}

	zap.L().Info("subscription created",
		zap.String("subscription_id", created.ID.String()),
		zap.String("payer_id", payerID.String()),
		zap.String("tier", string(created.Tier)),
		zap.Time("expires_at", created.ExpiresAt))

	return created, nil
}

// Extend lengthens an existing subscription. The new expiry anchors at
// max(currentExpiresAt, now): extending an expired subscription starts
// the new period from now, while extending an active one stacks on top
// of the remaining time. The tier never moves downward and the paid
// amount accumulates.
func (s *Service) Extend(ctx context.Context, subscriptionID uuid.UUID, additionalDays int, tier repository.Tier, amount int64, paymentReference string) (*repository.Subscription, error) {
	if additionalDays <= 0 {
		return nil, ErrInvalidDuration
	}
	if amount < 0 {
		return nil, ErrInvalidAmount
	}

	current, err := s.repo.Get(ctx, subscriptionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	return s.extendRecord(ctx, current, additionalDays, tier, amount, paymentReference)
}

func (s *Service) extendRecord(ctx context.Context, current *repository.Subscription, additionalDays int, tier repository.Tier, amount int64, paymentReference string) (*repository.Subscription, error) {
	now := s.clock()

	anchor := current.ExpiresAt
	if now.After(anchor) {
		anchor = now
	}

	newExpiry := anchor.AddDate(0, 0, additionalDays)
	newTier := maxTier(current.Tier, tier)

	updated, err := s.repo.Extend(ctx, current.ID, newExpiry, newTier, amount, paymentReference)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			// The unique constraint fired: either a concurrent call
			// already applied this reference or storage integrity is
			// broken. The failed mutation was rolled back either way.
			return s.resolveDuplicate(ctx, paymentReference)
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to extend subscription: %w", err)
	}

	zap.L().Info("subscription extended",
		zap.String("subscription_id", updated.ID.String()),
		zap.String("tier", string(updated.Tier)),
		zap.Time("expires_at", updated.ExpiresAt))

	return updated, nil
}

// GetEntitlement returns the payer's current (tier, expiresAt) pair, or
// nil when the payer has no subscription or it has expired at the
// supplied now.
func (s *Service) GetEntitlement(ctx context.Context, payerID uuid.UUID, now time.Time) (*Entitlement, error) {
	sub, err := s.repo.FindLatestByPayer(ctx, payerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up subscription for payer: %w", err)
	}

	if !sub.ExpiresAt.After(now) {
		return nil, nil
	}

	return &Entitlement{
		Tier:      sub.Tier,
		ExpiresAt: sub.ExpiresAt,
	}, nil
}

// resolveDuplicate distinguishes a legitimate concurrent replay from a
// storage integrity violation after a unique-constraint failure.
func (s *Service) resolveDuplicate(ctx context.Context, paymentReference string) (*repository.Subscription, error) {
	if paymentReference == "" {
		return nil, ErrDuplicatePayment
	}

	existing, err := s.repo.FindByPaymentReference(ctx, paymentReference)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDuplicatePayment
		}
		return nil, fmt.Errorf("failed to resolve duplicate payment: %w", err)
	}

	zap.L().Info("concurrent payment replay resolved to existing subscription",
		zap.String("payment_reference", paymentReference),
		zap.String("subscription_id", existing.ID.String()))

	return existing, nil
}
