// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmynk/courtledger/internal/models"
)

// ErrPersistence is matched by every PersistenceError.
var ErrPersistence = errors.New("persistence failure")

// PersistenceError wraps a failure of the backing store.
// Callers surface it as a generic failure; the cause is for logs only.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrPersistence) true for every PersistenceError.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// Wrap returns nil for a nil err and a PersistenceError otherwise.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

// EntryFilter narrows ListEntries. Zero values mean "no constraint".
type EntryFilter struct {
	Kind  models.EntryKind
	From  time.Time // inclusive, on Entry.Date()
	To    time.Time // inclusive, on Entry.Date()
	Limit int
}

// Matches reports whether e passes the filter (ignoring Limit).
func (f EntryFilter) Matches(e models.Entry) bool {
	if f.Kind != "" && e.Kind != f.Kind {
		return false
	}
	d := e.Date()
	if !f.From.IsZero() && d.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && d.After(f.To) {
		return false
	}
	return true
}

// SettlementFilter narrows ListSettlements. Zero values mean "no constraint".
type SettlementFilter struct {
	From  time.Time
	To    time.Time
	Limit int
}

// Matches reports whether s passes the filter (ignoring Limit).
func (f SettlementFilter) Matches(s models.SettlementEvent) bool {
	if !f.From.IsZero() && s.OccurredAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && s.OccurredAt.After(f.To) {
		return false
	}
	return true
}

// Store defines the interface for ledger storage operations.
// This abstraction allows swapping storage backends (memory, SQLite, PostgreSQL)
// without changing the service layer.
//
// Implementations keep the per-participant totals projection in step with the
// logs: AppendEntry adds a fine's amount to its owner's total and
// AppendSettlement zeroes both, each in the same transaction as the insert.
type Store interface {
	// AppendEntry persists a fine or match. Entries are never updated or deleted.
	AppendEntry(ctx context.Context, entry models.Entry) error

	// ListEntries returns entries most-recent-first (by recording time).
	ListEntries(ctx context.Context, filter EntryFilter) ([]models.Entry, error)

	// AppendSettlement persists a settlement and resets every total to zero.
	AppendSettlement(ctx context.Context, settlement models.SettlementEvent) error

	// ListSettlements returns settlements most-recent-first.
	ListSettlements(ctx context.Context, filter SettlementFilter) ([]models.SettlementEvent, error)

	// GetTotals returns the stored totals projection.
	GetTotals(ctx context.Context) (models.Totals, error)

	// ReplaceTotals overwrites the stored totals, used when rebuilding the projection.
	ReplaceTotals(ctx context.Context, totals models.Totals) error

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}
