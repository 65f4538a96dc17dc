package vault

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func newTestVault(t *testing.T) *Vault {
	t.Helper()

	v, err := New(Config{
		MasterSecret: "test-master-secret",
		Iterations:   MinIterations, // keep tests fast
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return v
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"missing master secret", Config{}, true},
		{"iterations below floor", Config{MasterSecret: "s", Iterations: 50_000}, true},
		{"default iterations", Config{MasterSecret: "s"}, false},
		{"explicit iterations", Config{MasterSecret: "s", Iterations: 150_000}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := New(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Error("New() should have returned an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if v == nil {
				t.Fatal("New() returned nil vault")
			}
		})
	}
}

func TestNewMissingMasterSecretError(t *testing.T) {
	_, err := New(Config{Iterations: MinIterations})
	if !errors.Is(err, ErrMasterSecretRequired) {
		t.Errorf("New() error = %v, want %v", err, ErrMasterSecretRequired)
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	v := newTestVault(t)

	tests := []struct {
		name      string
		plaintext string
	}{
		{"hex private key", "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"},
		{"empty string", ""},
		{"unicode", "ключ 🔑"},
		{"long input", strings.Repeat("deadbeef", 512)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := v.Encrypt(tt.plaintext)
			if err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}

			decrypted, err := v.Decrypt(encoded)
			if err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}

			if decrypted != tt.plaintext {
				t.Errorf("Decrypt() = %q, want %q", decrypted, tt.plaintext)
			}
		})
	}
}

func TestEncryptNonDeterministic(t *testing.T) {
	v := newTestVault(t)

	first, err := v.Encrypt("same plaintext")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	second, err := v.Encrypt("same plaintext")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	if first == second {
		t.Error("Encrypt() should produce different outputs for the same plaintext")
	}
}

func TestWireFormatLayout(t *testing.T) {
	v := newTestVault(t)

	plaintext := "wallet-private-key"
	encoded, err := v.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	blob, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("encoded secret is not valid base64: %v", err)
	}

	wantLen := SaltLength + NonceLength + TagLength + len(plaintext)
	if len(blob) != wantLen {
		t.Errorf("blob length = %d, want %d (32-byte salt, 16-byte nonce, 16-byte tag, ciphertext)", len(blob), wantLen)
	}
}

func TestDecryptTamperDetection(t *testing.T) {
	v := newTestVault(t)

	encoded, err := v.Encrypt("tamper target")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	blob, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("decode error = %v", err)
	}

	// Flip one byte in each region of the blob. Every mutation must be
	// rejected; none may yield a wrong-but-plausible plaintext.
	regions := map[string]int{
		"salt":       0,
		"nonce":      SaltLength,
		"tag":        SaltLength + NonceLength,
		"ciphertext": SaltLength + NonceLength + TagLength,
	}

	for name, offset := range regions {
		t.Run(name, func(t *testing.T) {
			tampered := make([]byte, len(blob))
			copy(tampered, blob)
			tampered[offset] ^= 0xFF

			_, err := v.Decrypt(base64.StdEncoding.EncodeToString(tampered))
			if !errors.Is(err, ErrAuthenticationFailed) {
				t.Errorf("Decrypt() after flipping %s byte: error = %v, want %v", name, err, ErrAuthenticationFailed)
			}
		})
	}
}

func TestDecryptMalformedInputs(t *testing.T) {
	v := newTestVault(t)

	tooShort := base64.StdEncoding.EncodeToString(make([]byte, headerLength-1))

	tests := []struct {
		name    string
		encoded string
	}{
		{"not base64", "!!! definitely not base64 !!!"},
		{"empty", ""},
		{"shorter than header", tooShort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Decrypt(tt.encoded)
			if !errors.Is(err, ErrMalformedSecret) {
				t.Errorf("Decrypt() error = %v, want %v", err, ErrMalformedSecret)
			}
		})
	}
}

func TestDecryptWrongMasterSecret(t *testing.T) {
	v := newTestVault(t)

	encoded, err := v.Encrypt("secret under the first master")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	other, err := New(Config{MasterSecret: "a-different-master-secret", Iterations: MinIterations})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = other.Decrypt(encoded)
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("Decrypt() with wrong master secret: error = %v, want %v", err, ErrAuthenticationFailed)
	}
}

func BenchmarkEncrypt(b *testing.B) {
	v, err := New(Config{MasterSecret: "bench-secret", Iterations: MinIterations})
	if err != nil {
		b.Fatalf("New() error = %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := v.Encrypt("4c0883a69102937d6231471b5dbb6204"); err != nil {
			b.Fatal(err)
		}
	}
}
