// Package vault encrypts and decrypts custodial private key material at
// rest using a key derived from a process-wide master secret.
//
// Every call draws its own salt and nonce, so the derived key and the
// ciphertext differ per encryption even for identical plaintexts. All
// operations are pure CPU-bound transforms and safe for concurrent use.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// Encoded secret layout: salt || nonce || tag || ciphertext,
	// base64-encoded. Consumers must use these exact widths and order.
	SaltLength  = 32
	NonceLength = 16
	TagLength   = 16

	// KeyLength is 256 bits for AES-256.
	KeyLength = 32

	// PBKDF2-SHA256 iteration counts. The floor rejects configurations
	// weak enough to make bulk offline decryption cheap after a master
	// secret leak.
	DefaultIterations = 210_000
	MinIterations     = 100_000

	headerLength = SaltLength + NonceLength + TagLength
)

var (
	// ErrMasterSecretRequired indicates the vault was constructed
	// without a master secret. Fatal at startup; there is no fallback
	// key.
	ErrMasterSecretRequired = errors.New("vault: master secret is required")

	// ErrMalformedSecret indicates the encoded blob is not valid base64
	// or is shorter than the fixed header.
	ErrMalformedSecret = errors.New("vault: malformed encrypted secret")

	// ErrAuthenticationFailed indicates the GCM tag did not verify:
	// the blob was tampered with or encrypted under a different master
	// secret. Decryption fails closed.
	ErrAuthenticationFailed = errors.New("vault: authentication failed")
)

// Config holds the vault construction parameters.
type Config struct {
	// MasterSecret is the required key material, sourced from process
	// configuration.
	MasterSecret string

	// Iterations is the PBKDF2 iteration count. Zero selects
	// DefaultIterations; values below MinIterations are rejected.
	Iterations int

	// Rand is the entropy source for salts and nonces. Nil selects
	// crypto/rand.Reader.
	Rand io.Reader
}

// Vault transforms plaintext secrets to and from their at-rest form. It
// never touches storage itself.
type Vault struct {
	masterSecret []byte
	iterations   int
	rand         io.Reader
}

// New validates the configuration and returns a ready vault.
func New(cfg Config) (*Vault, error) {
	if cfg.MasterSecret == "" {
		return nil, ErrMasterSecretRequired
	}

	iterations := cfg.Iterations
	if iterations == 0 {
		iterations = DefaultIterations
	}
	if iterations < MinIterations {
		return nil, fmt.Errorf("vault: iterations must be at least %d, got %d", MinIterations, iterations)
	}

	rnd := cfg.Rand
	if rnd == nil {
		rnd = rand.Reader
	}

	return &Vault{
		masterSecret: []byte(cfg.MasterSecret),
		iterations:   iterations,
		rand:         rnd,
	}, nil
}

// Encrypt seals plaintext under a key derived from the master secret and
// a fresh salt, returning base64(salt || nonce || tag || ciphertext).
func (v *Vault) Encrypt(plaintext string) (string, error) {
	salt, err := v.readRand(SaltLength)
	if err != nil {
		return "", err
	}

	nonce, err := v.readRand(NonceLength)
	if err != nil {
		return "", err
	}

	aead, err := v.aead(salt)
	if err != nil {
		return "", err
	}

	// Seal appends the tag after the ciphertext; the wire format wants
	// it between the header and the ciphertext.
	sealed := aead.Seal(nil, nonce, []byte(plaintext), nil)
	ciphertext := sealed[:len(sealed)-TagLength]
	tag := sealed[len(sealed)-TagLength:]

	blob := make([]byte, 0, headerLength+len(ciphertext))
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	blob = append(blob, tag...)
	blob = append(blob, ciphertext...)

	return base64.StdEncoding.EncodeToString(blob), nil
}

// Decrypt parses the fixed-width header out of the encoded blob,
// re-derives the key from the embedded salt, and verifies the tag.
// Returns ErrAuthenticationFailed on any tag mismatch; the error never
// carries key or plaintext material.
func (v *Vault) Decrypt(encoded string) (string, error) {
	blob, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrMalformedSecret
	}
	if len(blob) < headerLength {
		return "", ErrMalformedSecret
	}

	salt := blob[:SaltLength]
	nonce := blob[SaltLength : SaltLength+NonceLength]
	tag := blob[SaltLength+NonceLength : headerLength]
	ciphertext := blob[headerLength:]

	aead, err := v.aead(salt)
	if err != nil {
		return "", err
	}

	sealed := make([]byte, 0, len(ciphertext)+TagLength)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrAuthenticationFailed
	}

	return string(plaintext), nil
}

// aead derives the per-record key and builds the AES-256-GCM cipher.
func (v *Vault) aead(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(v.masterSecret, salt, v.iterations, KeyLength, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vault: failed to create cipher: %w", err)
	}

	aead, err := cipher.NewGCMWithNonceSize(block, NonceLength)
	if err != nil {
		return nil, fmt.Errorf("vault: failed to create GCM: %w", err)
	}

	return aead, nil
}

func (v *Vault) readRand(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(v.rand, buf); err != nil {
		return nil, fmt.Errorf("vault: failed to read random bytes: %w", err)
	}
	return buf, nil
}
