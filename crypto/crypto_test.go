package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
	"testing"
)

func testKey(t *testing.T) string {
	t.Helper()
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		t.Fatalf("rand: %v", err)
	}
	return base64.StdEncoding.EncodeToString(raw)
}

func TestNewAESEncryptorKeyValidation(t *testing.T) {
	tests := []struct {
		name string
		key  string
		ok   bool
	}{
		{"valid 32-byte key", testKey(t), true},
		{"empty key", "", false},
		{"not base64", "!!!not-base64!!!", false},
		{"wrong length", base64.StdEncoding.EncodeToString([]byte("short")), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAESEncryptor(tt.key)
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	enc, err := NewAESEncryptor(testKey(t))
	if err != nil {
		t.Fatalf("NewAESEncryptor: %v", err)
	}
	plain := "oauth:supersecrettoken"
	sealed, err := EncryptString(enc, plain)
	if err != nil {
		t.Fatalf("EncryptString: %v", err)
	}
	if sealed == plain || strings.Contains(sealed, "secret") {
		t.Error("ciphertext should not contain plaintext")
	}
	got, err := DecryptString(enc, sealed)
	if err != nil {
		t.Fatalf("DecryptString: %v", err)
	}
	if got != plain {
		t.Errorf("round trip = %q, want %q", got, plain)
	}
}

func TestEncryptStringEmptyPassesThrough(t *testing.T) {
	enc, _ := NewAESEncryptor(testKey(t))
	sealed, err := EncryptString(enc, "")
	if err != nil || sealed != "" {
		t.Errorf("empty input: got (%q, %v)", sealed, err)
	}
}

func TestDecryptRejectsTampering(t *testing.T) {
	enc, _ := NewAESEncryptor(testKey(t))
	sealed, err := enc.Encrypt([]byte("token"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	sealed[len(sealed)-1] ^= 0xff
	if _, err := enc.Decrypt(sealed); err == nil {
		t.Error("tampered ciphertext should fail authentication")
	}
}

func TestDecryptRejectsWrongKey(t *testing.T) {
	enc1, _ := NewAESEncryptor(testKey(t))
	enc2, _ := NewAESEncryptor(testKey(t))
	sealed, err := enc1.Encrypt([]byte("token"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := enc2.Decrypt(sealed); err == nil {
		t.Error("wrong key should fail authentication")
	}
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	enc, _ := NewAESEncryptor(testKey(t))
	a, _ := EncryptString(enc, "same input")
	b, _ := EncryptString(enc, "same input")
	if a == b {
		t.Error("two encryptions of the same plaintext should differ (random nonce)")
	}
}
