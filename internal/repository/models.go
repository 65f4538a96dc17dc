package repository

import (
	"time"

	"github.com/google/uuid"
)

// Tier identifies the paid subscription level. Tiers are ordered,
// basic < pro, and a subscription's tier only ever moves upward.
type Tier string

const (
	TierBasic Tier = "basic"
	TierPro   Tier = "pro"
)

// WalletPurpose distinguishes the custodial wallet kinds a single owner
// may hold.
type WalletPurpose string

const (
	// WalletPurposePrimary is the owner's main custodial wallet.
	// At most one per owner across all networks.
	WalletPurposePrimary WalletPurpose = "primary"

	// WalletPurposeRefund receives refunds. At most one per
	// (owner, network) pair.
	WalletPurposeRefund WalletPurpose = "refund"
)

// Subscription represents a time-boxed entitlement row for one payer.
// A payer has a single logical subscription lineage extended in place;
// "active" is derived from ExpiresAt at read time, never stored.
type Subscription struct {
	ID      uuid.UUID
	PayerID uuid.UUID
	Tier    Tier

	// AmountPaid accumulates across extensions, in the smallest
	// currency unit.
	AmountPaid int64

	// PaymentReference is the external transaction identifier of the
	// most recent applied payment. Empty when the payment carried no
	// reference. Every applied reference is also recorded in the
	// payment ledger, which enforces global uniqueness.
	PaymentReference string

	StartedAt time.Time
	ExpiresAt time.Time
	CreatedAt time.Time
}

// WalletRecord associates an owner and network with a public address and
// the vault-encrypted private key. The plaintext key never reaches
// storage.
type WalletRecord struct {
	ID           uuid.UUID
	OwnerID      uuid.UUID
	Network      string
	Purpose      WalletPurpose
	Address      string
	EncryptedKey string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
