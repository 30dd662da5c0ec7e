package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/courtledger/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid participant or password")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
)

// MinPasswordLength is the shortest password HashPassword accepts.
const MinPasswordLength = 8

// PasswordAuthenticator implements password-based authentication using bcrypt.
// The roster is fixed at construction: one bcrypt hash per participant.
type PasswordAuthenticator struct {
	pair   models.Pair
	hashes map[models.ParticipantKey][]byte
}

// NewPasswordAuthenticator creates a password authenticator for the pair.
// hashes must hold a bcrypt hash for both participants.
func NewPasswordAuthenticator(pair models.Pair, hashes map[models.ParticipantKey]string) (*PasswordAuthenticator, error) {
	a := &PasswordAuthenticator{
		pair:   pair,
		hashes: make(map[models.ParticipantKey][]byte, 2),
	}
	for _, key := range pair.Keys() {
		h := hashes[key]
		if h == "" {
			return nil, fmt.Errorf("missing password hash for participant %q", key)
		}
		if _, err := bcrypt.Cost([]byte(h)); err != nil {
			return nil, fmt.Errorf("invalid password hash for participant %q: %w", key, err)
		}
		a.hashes[key] = []byte(h)
	}
	return a, nil
}

// ValidateCredential checks if the password meets minimum requirements.
func ValidateCredential(credential string) error {
	if len(credential) < MinPasswordLength {
		return ErrWeakPassword
	}
	return nil
}

// HashPassword returns the bcrypt hash to put in the participant configuration.
func HashPassword(password string) (string, error) {
	if err := ValidateCredential(password); err != nil {
		return "", err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Authenticate verifies the key and password, returning the participant if valid.
func (a *PasswordAuthenticator) Authenticate(ctx context.Context, key models.ParticipantKey, credential string) (*models.Participant, error) {
	p, ok := a.pair.Get(key)
	if !ok {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword(a.hashes[key], []byte(credential)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return &p, nil
}
