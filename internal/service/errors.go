package service

import (
	"errors"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/courtledger/internal/auth"
	"github.com/mmynk/courtledger/internal/calculator"
	"github.com/mmynk/courtledger/internal/storage"
)

var errStorageUnavailable = errors.New("ledger storage is unavailable, please try again")

// toConnectError maps domain errors onto RPC codes. Persistence causes are
// logged and replaced with a generic message.
func toConnectError(op string, err error) error {
	switch {
	case errors.Is(err, calculator.ErrValidation):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrRevokedToken):
		return connect.NewError(connect.CodeUnauthenticated, err)
	case errors.Is(err, storage.ErrPersistence):
		slog.Error(op+" failed", "error", err)
		return connect.NewError(connect.CodeUnavailable, errStorageUnavailable)
	default:
		slog.Error(op+" failed", "error", err)
		return connect.NewError(connect.CodeInternal, errors.New("internal error"))
	}
}
