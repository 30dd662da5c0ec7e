package auth

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/courtledger/internal/models"
)

var testPair = models.Pair{
	A: models.Participant{Key: "aniketnayak", DisplayName: "Aniket"},
	B: models.Participant{Key: "souravssk", DisplayName: "Sourav"},
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	return string(h)
}

func newTestAuthenticator(t *testing.T) *PasswordAuthenticator {
	t.Helper()
	a, err := NewPasswordAuthenticator(testPair, map[models.ParticipantKey]string{
		"aniketnayak": mustHash(t, "shuttlecock"),
		"souravssk":   mustHash(t, "smash-and-drop"),
	})
	if err != nil {
		t.Fatalf("NewPasswordAuthenticator failed: %v", err)
	}
	return a
}

func TestAuthenticate(t *testing.T) {
	a := newTestAuthenticator(t)

	tests := []struct {
		name     string
		key      models.ParticipantKey
		password string
		wantErr  bool
	}{
		{"participant A", "aniketnayak", "shuttlecock", false},
		{"participant B", "souravssk", "smash-and-drop", false},
		{"wrong password", "aniketnayak", "smash-and-drop", true},
		{"unknown participant", "stranger", "shuttlecock", true},
		{"empty password", "souravssk", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := a.Authenticate(context.Background(), tt.key, tt.password)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidCredentials) {
					t.Errorf("err = %v, want ErrInvalidCredentials", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Authenticate failed: %v", err)
			}
			if p.Key != tt.key {
				t.Errorf("participant = %q, want %q", p.Key, tt.key)
			}
			if p.DisplayName == "" {
				t.Error("expected display name to be set")
			}
		})
	}
}

func TestNewPasswordAuthenticatorRequiresBothHashes(t *testing.T) {
	_, err := NewPasswordAuthenticator(testPair, map[models.ParticipantKey]string{
		"aniketnayak": mustHash(t, "shuttlecock"),
	})
	if err == nil {
		t.Fatal("expected error for a missing hash")
	}

	_, err = NewPasswordAuthenticator(testPair, map[models.ParticipantKey]string{
		"aniketnayak": mustHash(t, "shuttlecock"),
		"souravssk":   "plaintext-is-not-a-hash",
	})
	if err == nil {
		t.Fatal("expected error for a malformed hash")
	}
}

func TestHashPassword(t *testing.T) {
	if _, err := HashPassword("short"); !errors.Is(err, ErrWeakPassword) {
		t.Errorf("err = %v, want ErrWeakPassword", err)
	}

	hash, err := HashPassword("long-enough")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("long-enough")); err != nil {
		t.Errorf("hash does not match its password: %v", err)
	}
}
