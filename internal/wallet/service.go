// Package wallet provisions custodial wallets: private keys are
// encrypted through the vault before they reach storage and decrypted
// only on an authorized read path.
package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rawgroundbeef/openfacilitator/internal/repository"
)

var (
	// ErrNotFound is returned when no wallet exists for the requested
	// owner, network, and purpose.
	ErrNotFound = errors.New("wallet: wallet not found")

	// ErrAlreadyProvisioned is returned when a wallet already exists for
	// the (owner, network, purpose) combination.
	ErrAlreadyProvisioned = errors.New("wallet: wallet already provisioned")
)

// Encryptor is the vault surface the wallet service needs.
type Encryptor interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(encoded string) (string, error)
}

// WalletRepository defines the persistence port for wallet records.
type WalletRepository interface {
	Create(ctx context.Context, rec *repository.WalletRecord) (*repository.WalletRecord, error)
	FindByOwner(ctx context.Context, ownerID uuid.UUID, network string, purpose repository.WalletPurpose) (*repository.WalletRecord, error)
	UpdateAddress(ctx context.Context, ownerID uuid.UUID, network string, purpose repository.WalletPurpose, address string) (*repository.WalletRecord, error)
}

// Service wires wallet provisioning to the vault and the persistence
// port.
type Service struct {
	repo  WalletRepository
	vault Encryptor
}

// NewService creates the wallet service.
func NewService(repo WalletRepository, vault Encryptor) *Service {
	return &Service{
		repo:  repo,
		vault: vault,
	}
}

// Provision encrypts the private key and persists the wallet record.
func (s *Service) Provision(ctx context.Context, ownerID uuid.UUID, network string, purpose repository.WalletPurpose, address, privateKey string) (*repository.WalletRecord, error) {
	encrypted, err := s.vault.Encrypt(privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt private key: %w", err)
	}

	created, err := s.repo.Create(ctx, &repository.WalletRecord{
		OwnerID:      ownerID,
		Network:      network,
		Purpose:      purpose,
		Address:      address,
		EncryptedKey: encrypted,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrAlreadyProvisioned
		}
		return nil, fmt.Errorf("failed to store wallet: %w", err)
	}

	zap.L().Info("wallet provisioned",
		zap.String("wallet_id", created.ID.String()),
		zap.String("owner_id", ownerID.String()),
		zap.String("network", network),
		zap.String("purpose", string(purpose)))

	return created, nil
}

// PrivateKey decrypts and returns the wallet's private key. Callers are
// responsible for authorization; a decryption failure is surfaced as-is
// and logged without any key material.
func (s *Service) PrivateKey(ctx context.Context, ownerID uuid.UUID, network string, purpose repository.WalletPurpose) (string, error) {
	rec, err := s.repo.FindByOwner(ctx, ownerID, network, purpose)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to load wallet: %w", err)
	}

	plaintext, err := s.vault.Decrypt(rec.EncryptedKey)
	if err != nil {
		zap.L().Error("wallet key decryption failed",
			zap.String("wallet_id", rec.ID.String()),
			zap.Error(err))
		return "", fmt.Errorf("failed to decrypt private key: %w", err)
	}

	return plaintext, nil
}

// ChangeRefundAddress updates the public address of the owner's refund
// wallet on the given network. The encrypted key is untouched.
func (s *Service) ChangeRefundAddress(ctx context.Context, ownerID uuid.UUID, network, newAddress string) (*repository.WalletRecord, error) {
	if newAddress == "" {
		return nil, errors.New("wallet: new address is required")
	}

	updated, err := s.repo.UpdateAddress(ctx, ownerID, network, repository.WalletPurposeRefund, newAddress)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update refund address: %w", err)
	}

	zap.L().Info("refund address changed",
		zap.String("wallet_id", updated.ID.String()),
		zap.String("owner_id", ownerID.String()),
		zap.String("network", network))

	return updated, nil
}
