package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/courtledger/internal/models"
)

var errUnavailable = errors.New("service temporarily unavailable")

// LoggingInterceptor returns a Connect interceptor that logs every RPC call.
// It logs the procedure name, participant, duration, and any error codes/messages.
// Install it outside RequireAuth so rejected calls are logged too.
func LoggingInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			procedure := req.Spec().Procedure

			var participant models.ParticipantKey
			resp, err := next(context.WithValue(ctx, participantSlotKey, &participant), req)

			duration := time.Since(start).Milliseconds()
			if err != nil {
				var connectErr *connect.Error
				if errors.As(err, &connectErr) {
					slog.Warn("RPC error",
						"procedure", procedure,
						"code", connectErr.Code(),
						"error", connectErr.Message(),
						"participant", participant,
						"duration_ms", duration,
					)
				} else {
					slog.Error("RPC error",
						"procedure", procedure,
						"error", err,
						"participant", participant,
						"duration_ms", duration,
					)
				}
			} else {
				slog.Info("RPC ok",
					"procedure", procedure,
					"participant", participant,
					"duration_ms", duration,
				)
			}

			return resp, err
		}
	}
}
