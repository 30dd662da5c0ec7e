package middleware

import (
	"context"
	"log/slog"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/courtledger/internal/auth"
	"github.com/mmynk/courtledger/internal/models"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// ParticipantKey is the context key for the authenticated participant's key.
	ParticipantKey contextKey = "participant"
	// ClaimsKey is the context key for the validated token claims.
	ClaimsKey contextKey = "claims"

	// participantSlotKey lets an outer interceptor learn who was authenticated further in.
	participantSlotKey contextKey = "participant_slot"
)

// GetParticipant extracts the participant key from the context.
// Returns empty string if not found.
func GetParticipant(ctx context.Context) models.ParticipantKey {
	key, _ := ctx.Value(ParticipantKey).(models.ParticipantKey)
	return key
}

// GetClaims extracts the validated claims from the context.
// Returns nil if not found.
func GetClaims(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(ClaimsKey).(*auth.Claims)
	return claims
}

// WithParticipant returns a context carrying the participant and claims,
// as RequireAuth would set them.
func WithParticipant(ctx context.Context, claims *auth.Claims) context.Context {
	if slot, ok := ctx.Value(participantSlotKey).(*models.ParticipantKey); ok {
		*slot = claims.ParticipantKey
	}
	ctx = context.WithValue(ctx, ParticipantKey, claims.ParticipantKey)
	return context.WithValue(ctx, ClaimsKey, claims)
}

// RequireAuth returns a middleware that validates JWT tokens and requires authentication.
// It extracts the token from the Authorization header, validates it, rejects
// revoked token ids, and adds the participant and claims to the request context.
// Procedures listed in public are passed through untouched.
func RequireAuth(jwtManager *auth.JWTManager, revoker auth.Revoker, public ...string) connect.UnaryInterceptorFunc {
	open := make(map[string]bool, len(public))
	for _, p := range public {
		open[p] = true
	}

	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if open[req.Spec().Procedure] {
				return next(ctx, req)
			}

			// Extract Authorization header
			authHeader := req.Header().Get("Authorization")
			if authHeader == "" {
				return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
			}

			// Parse Bearer token
			tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || tokenString == "" {
				return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrInvalidToken)
			}

			claims, err := jwtManager.Validate(tokenString)
			if err != nil {
				return nil, connect.NewError(connect.CodeUnauthenticated, err)
			}

			revoked, err := revoker.IsRevoked(ctx, claims.ID)
			if err != nil {
				slog.Error("Failed to check token revocation", "participant", claims.ParticipantKey, "error", err)
				return nil, connect.NewError(connect.CodeUnavailable, errUnavailable)
			}
			if revoked {
				return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrRevokedToken)
			}

			return next(WithParticipant(ctx, claims), req)
		}
	}
}
