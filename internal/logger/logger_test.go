package logger

import (
	"testing"

	"go.uber.org/zap"
)

func TestInitialize(t *testing.T) {
	tests := []struct {
		name string
		env  string
	}{
		{
			name: "development environment",
			env:  "development",
		},
		{
			name: "production environment",
			env:  "production",
		},
		{
			name: "unknown environment falls back to development",
			env:  "staging",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Initialize(tt.env); err != nil {
				t.Fatalf("Initialize(%q) error = %v", tt.env, err)
			}

			if zap.L() == nil {
				t.Error("global logger not installed")
			}
		})
	}
}

func TestIsSensitiveField(t *testing.T) {
	tests := []struct {
		name      string
		fieldName string
		want      bool
	}{
		{
			name:      "master_secret field is sensitive",
			fieldName: "master_secret",
			want:      true,
		},
		{
			name:      "private_key field is sensitive",
			fieldName: "private_key",
			want:      true,
		},
		{
			name:      "encrypted_key field is sensitive",
			fieldName: "encrypted_key",
			want:      true,
		},
		{
			name:      "plaintext field is sensitive",
			fieldName: "plaintext",
			want:      true,
		},
		{
			name:      "password field is sensitive",
			fieldName: "password",
			want:      true,
		},
		{
			name:      "payer_id field is not sensitive",
			fieldName: "payer_id",
			want:      false,
		},
		{
			name:      "network field is not sensitive",
			fieldName: "network",
			want:      false,
		},
		{
			name:      "address field is not sensitive",
			fieldName: "address",
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsSensitiveField(tt.fieldName)
			if got != tt.want {
				t.Errorf("IsSensitiveField(%q) = %v, want %v", tt.fieldName, got, tt.want)
			}
		})
	}
}
