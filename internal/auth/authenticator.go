package auth

import (
	"context"

	"github.com/mmynk/courtledger/internal/models"
)

// Authenticator checks a login against the configured participant roster.
// The service layer only sees the resolved participant.
type Authenticator interface {
	// Authenticate resolves a participant key and credential to one of the two
	// configured participants. Any mismatch returns ErrInvalidCredentials.
	Authenticate(ctx context.Context, key models.ParticipantKey, credential string) (*models.Participant, error)
}
