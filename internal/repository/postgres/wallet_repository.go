package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rawgroundbeef/openfacilitator/internal/repository"
)

// WalletRepository implements wallet record data access using
// PostgreSQL. Uniqueness is enforced by the schema: one refund wallet
// per (owner, network) and one primary wallet per owner.
type WalletRepository struct {
	pool *pgxpool.Pool
}

// NewWalletRepository creates a new WalletRepository instance.
func NewWalletRepository(pool *pgxpool.Pool) *WalletRepository {
	return &WalletRepository{pool: pool}
}

const walletColumns = `id, owner_id, network, purpose, address, encrypted_key, created_at, updated_at`

func scanWallet(scanner interface {
	Scan(dest ...any) error
},
) (*repository.WalletRecord, error) {
	var rec repository.WalletRecord
	err := scanner.Scan(
		&rec.ID,
		&rec.OwnerID,
		&rec.Network,
		&rec.Purpose,
		&rec.Address,
		&rec.EncryptedKey,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Create inserts a new wallet record. Returns repository.ErrDuplicate
// when a wallet already exists for the (owner, network, purpose)
// combination.
func (r *WalletRepository) Create(ctx context.Context, rec *repository.WalletRecord) (*repository.WalletRecord, error) {
	query := `
		INSERT INTO wallets (owner_id, network, purpose, address, encrypted_key)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + walletColumns

	q := getQuerier(ctx, r.pool)
	created, err := scanWallet(q.QueryRow(ctx, query,
		rec.OwnerID,
		rec.Network,
		rec.Purpose,
		rec.Address,
		rec.EncryptedKey,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("wallet for owner %s on %s: %w", rec.OwnerID, rec.Network, repository.ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}

	return created, nil
}

// FindByOwner retrieves the wallet for an owner, network, and purpose.
func (r *WalletRepository) FindByOwner(ctx context.Context, ownerID uuid.UUID, network string, purpose repository.WalletPurpose) (*repository.WalletRecord, error) {
	query := `
		SELECT ` + walletColumns + `
		FROM wallets
		WHERE owner_id = $1 AND network = $2 AND purpose = $3
	`

	q := getQuerier(ctx, r.pool)
	rec, err := scanWallet(q.QueryRow(ctx, query, ownerID, network, purpose))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find wallet: %w", err)
	}

	return rec, nil
}

// UpdateAddress changes the public address of an existing wallet. The
// encrypted key column is deliberately not touched.
func (r *WalletRepository) UpdateAddress(ctx context.Context, ownerID uuid.UUID, network string, purpose repository.WalletPurpose, address string) (*repository.WalletRecord, error) {
	query := `
		UPDATE wallets
		SET address = $4, updated_at = CURRENT_TIMESTAMP
		WHERE owner_id = $1 AND network = $2 AND purpose = $3
		RETURNING ` + walletColumns

	q := getQuerier(ctx, r.pool)
	rec, err := scanWallet(q.QueryRow(ctx, query, ownerID, network, purpose, address))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update wallet address: %w", err)
	}

	return rec, nil
}
