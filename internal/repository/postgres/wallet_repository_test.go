package postgres

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rawgroundbeef/openfacilitator/internal/repository"
)

func TestWalletRepository_Create(t *testing.T) {
	pool := setupTestDB(t)

	repo := NewWalletRepository(pool)
	ctx := context.Background()

	ownerID := uuid.New()

	rec, err := repo.Create(ctx, &repository.WalletRecord{
		OwnerID:      ownerID,
		Network:      "base",
		Purpose:      repository.WalletPurposePrimary,
		Address:      "0xabc123",
		EncryptedKey: "opaque-ciphertext",
	})
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.NotEqual(t, uuid.Nil, rec.ID)
	assert.Equal(t, ownerID, rec.OwnerID)
	assert.Equal(t, "base", rec.Network)
	assert.Equal(t, repository.WalletPurposePrimary, rec.Purpose)
	assert.Equal(t, "0xabc123", rec.Address)
	assert.Equal(t, "opaque-ciphertext", rec.EncryptedKey)
	assert.False(t, rec.CreatedAt.IsZero())
	assert.False(t, rec.UpdatedAt.IsZero())
}

func TestWalletRepository_Create_DuplicatePrimary(t *testing.T) {
	pool := setupTestDB(t)

	repo := NewWalletRepository(pool)
	ctx := context.Background()

	ownerID := uuid.New()

	_, err := repo.Create(ctx, &repository.WalletRecord{
		OwnerID:      ownerID,
		Network:      "base",
		Purpose:      repository.WalletPurposePrimary,
		Address:      "0xabc",
		EncryptedKey: "ct1",
	})
	require.NoError(t, err)

	// One primary wallet per owner, even across networks.
	_, err = repo.Create(ctx, &repository.WalletRecord{
		OwnerID:      ownerID,
		Network:      "solana",
		Purpose:      repository.WalletPurposePrimary,
		Address:      "sol123",
		EncryptedKey: "ct2",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestWalletRepository_Create_RefundPerNetwork(t *testing.T) {
	pool := setupTestDB(t)

	repo := NewWalletRepository(pool)
	ctx := context.Background()

	ownerID := uuid.New()

	// Refund wallets are scoped per network.
	_, err := repo.Create(ctx, &repository.WalletRecord{
		OwnerID:      ownerID,
		Network:      "base",
		Purpose:      repository.WalletPurposeRefund,
		Address:      "0xrefund1",
		EncryptedKey: "ct1",
	})
	require.NoError(t, err)

	_, err = repo.Create(ctx, &repository.WalletRecord{
		OwnerID:      ownerID,
		Network:      "solana",
		Purpose:      repository.WalletPurposeRefund,
		Address:      "solrefund",
		EncryptedKey: "ct2",
	})
	require.NoError(t, err)

	// Same network collides.
	_, err = repo.Create(ctx, &repository.WalletRecord{
		OwnerID:      ownerID,
		Network:      "base",
		Purpose:      repository.WalletPurposeRefund,
		Address:      "0xrefund2",
		EncryptedKey: "ct3",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestWalletRepository_FindByOwner(t *testing.T) {
	pool := setupTestDB(t)

	repo := NewWalletRepository(pool)
	ctx := context.Background()

	ownerID := uuid.New()

	created, err := repo.Create(ctx, &repository.WalletRecord{
		OwnerID:      ownerID,
		Network:      "base",
		Purpose:      repository.WalletPurposePrimary,
		Address:      "0xabc",
		EncryptedKey: "ct",
	})
	require.NoError(t, err)

	found, err := repo.FindByOwner(ctx, ownerID, "base", repository.WalletPurposePrimary)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, created.EncryptedKey, found.EncryptedKey)
}

func TestWalletRepository_FindByOwner_NotFound(t *testing.T) {
	pool := setupTestDB(t)

	repo := NewWalletRepository(pool)
	ctx := context.Background()

	_, err := repo.FindByOwner(ctx, uuid.New(), "base", repository.WalletPurposePrimary)
	require.Error(t, err)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestWalletRepository_UpdateAddress(t *testing.T) {
	pool := setupTestDB(t)

	repo := NewWalletRepository(pool)
	ctx := context.Background()

	ownerID := uuid.New()

	created, err := repo.Create(ctx, &repository.WalletRecord{
		OwnerID:      ownerID,
		Network:      "base",
		Purpose:      repository.WalletPurposeRefund,
		Address:      "0xold",
		EncryptedKey: "ct",
	})
	require.NoError(t, err)

	updated, err := repo.UpdateAddress(ctx, ownerID, "base", repository.WalletPurposeRefund, "0xnew")
	require.NoError(t, err)

	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "0xnew", updated.Address)
	// Key material stays untouched by address changes.
	assert.Equal(t, created.EncryptedKey, updated.EncryptedKey)
}

func TestWalletRepository_UpdateAddress_NotFound(t *testing.T) {
	pool := setupTestDB(t)

	repo := NewWalletRepository(pool)
	ctx := context.Background()

	_, err := repo.UpdateAddress(ctx, uuid.New(), "base", repository.WalletPurposeRefund, "0xnew")
	require.Error(t, err)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
