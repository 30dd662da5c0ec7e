package service

import (
	"context"
	"log/slog"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/courtledger/internal/auth"
	"github.com/mmynk/courtledger/internal/middleware"
	"github.com/mmynk/courtledger/internal/models"
)

// AuthService implements the courtledger.v1.AuthService procedures.
type AuthService struct {
	authenticator auth.Authenticator
	jwtManager    *auth.JWTManager
	revoker       auth.Revoker
	pair          models.Pair
	logger        *slog.Logger
}

// NewAuthService creates a new authentication service.
func NewAuthService(authenticator auth.Authenticator, jwtManager *auth.JWTManager, revoker auth.Revoker, pair models.Pair, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		authenticator: authenticator,
		jwtManager:    jwtManager,
		revoker:       revoker,
		pair:          pair,
		logger:        logger,
	}
}

// ListParticipants returns both participants for the login picker.
func (s *AuthService) ListParticipants(ctx context.Context, req *connect.Request[ListParticipantsRequest]) (*connect.Response[ListParticipantsResponse], error) {
	return connect.NewResponse(&ListParticipantsResponse{
		Participants: []Participant{toParticipant(s.pair.A), toParticipant(s.pair.B)},
	}), nil
}

// Login authenticates a participant and returns a JWT token.
func (s *AuthService) Login(ctx context.Context, req *connect.Request[LoginRequest]) (*connect.Response[LoginResponse], error) {
	key := models.ParticipantKey(strings.TrimSpace(req.Msg.Participant))
	s.logger.Info("Login request", "participant", key)

	// Validate input
	if key == "" || req.Msg.Password == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, auth.ErrInvalidCredentials)
	}

	p, err := s.authenticator.Authenticate(ctx, key, req.Msg.Password)
	if err != nil {
		s.logger.Warn("Login failed", "participant", key, "error", err)
		return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrInvalidCredentials)
	}

	token, err := s.jwtManager.Generate(p)
	if err != nil {
		s.logger.Error("Failed to generate token", "participant", p.Key, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	claims, err := s.jwtManager.Validate(token)
	if err != nil {
		s.logger.Error("Freshly issued token did not validate", "participant", p.Key, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	s.logger.Info("Participant logged in", "participant", p.Key)
	return connect.NewResponse(&LoginResponse{
		Participant: toParticipant(*p),
		Token:       token,
		ExpiresAt:   claims.ExpiresAt.Time,
	}), nil
}

// Logout revokes the caller's token until it would have expired.
func (s *AuthService) Logout(ctx context.Context, req *connect.Request[LogoutRequest]) (*connect.Response[LogoutResponse], error) {
	claims := middleware.GetClaims(ctx)
	if claims == nil {
		return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}

	if err := s.revoker.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		s.logger.Error("Failed to revoke token", "participant", claims.ParticipantKey, "error", err)
		return nil, connect.NewError(connect.CodeUnavailable, errStorageUnavailable)
	}

	s.logger.Info("Participant logged out", "participant", claims.ParticipantKey)
	return connect.NewResponse(&LogoutResponse{}), nil
}

// WhoAmI returns the participant behind the caller's token.
func (s *AuthService) WhoAmI(ctx context.Context, req *connect.Request[WhoAmIRequest]) (*connect.Response[WhoAmIResponse], error) {
	claims := middleware.GetClaims(ctx)
	if claims == nil {
		return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}

	p, ok := s.pair.Get(claims.ParticipantKey)
	if !ok {
		return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrInvalidToken)
	}

	return connect.NewResponse(&WhoAmIResponse{
		Participant: toParticipant(p),
		ExpiresAt:   claims.ExpiresAt.Time,
	}), nil
}
