// Package memory provides a process-local implementation of storage.Store.
// Data is lost when the process exits; it backs tests and throwaway sessions.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mmynk/courtledger/internal/models"
	"github.com/mmynk/courtledger/internal/storage"
)

// Ensure Store implements storage.Store
var _ storage.Store = (*Store)(nil)

// Store keeps both logs and the totals projection in memory.
type Store struct {
	mu          sync.RWMutex
	entries     []models.Entry // insertion order, oldest first
	settlements []models.SettlementEvent
	totals      models.Totals
	closed      bool
}

// New creates an empty store.
func New() *Store {
	return &Store{totals: models.Totals{}}
}

func (s *Store) check() error {
	if s.closed {
		return fmt.Errorf("store is closed")
	}
	return nil
}

// AppendEntry stores the entry and bumps the owner's total for fines.
func (s *Store) AppendEntry(ctx context.Context, entry models.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(); err != nil {
		return storage.Wrap("append entry", err)
	}
	if entry.ID() == "" {
		return storage.Wrap("append entry", fmt.Errorf("entry has no id"))
	}
	for _, e := range s.entries {
		if e.ID() == entry.ID() {
			return storage.Wrap("append entry", fmt.Errorf("duplicate entry id: %s", entry.ID()))
		}
	}

	s.entries = append(s.entries, cloneEntry(entry))
	if entry.Kind == models.EntryFine && entry.Fine != nil {
		s.totals[entry.Fine.Owner] += entry.Fine.Amount
	}
	return nil
}

// ListEntries returns matching entries most-recent-first.
func (s *Store) ListEntries(ctx context.Context, filter storage.EntryFilter) ([]models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.check(); err != nil {
		return nil, storage.Wrap("list entries", err)
	}

	out := make([]models.Entry, 0, len(s.entries))
	for i := len(s.entries) - 1; i >= 0; i-- {
		if filter.Matches(s.entries[i]) {
			out = append(out, cloneEntry(s.entries[i]))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RecordedAt().After(out[j].RecordedAt())
	})

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// AppendSettlement stores the settlement and zeroes every total.
func (s *Store) AppendSettlement(ctx context.Context, settlement models.SettlementEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(); err != nil {
		return storage.Wrap("append settlement", err)
	}

	settlement.BalanceBefore = settlement.BalanceBefore.Clone()
	s.settlements = append(s.settlements, settlement)
	for k := range s.totals {
		s.totals[k] = 0
	}
	return nil
}

// ListSettlements returns matching settlements most-recent-first.
func (s *Store) ListSettlements(ctx context.Context, filter storage.SettlementFilter) ([]models.SettlementEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.check(); err != nil {
		return nil, storage.Wrap("list settlements", err)
	}

	out := make([]models.SettlementEvent, 0, len(s.settlements))
	for i := len(s.settlements) - 1; i >= 0; i-- {
		st := s.settlements[i]
		if filter.Matches(st) {
			st.BalanceBefore = st.BalanceBefore.Clone()
			out = append(out, st)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OccurredAt.After(out[j].OccurredAt)
	})

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// GetTotals returns a copy of the totals projection.
func (s *Store) GetTotals(ctx context.Context) (models.Totals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.check(); err != nil {
		return nil, storage.Wrap("get totals", err)
	}
	return s.totals.Clone(), nil
}

// ReplaceTotals overwrites the totals projection.
func (s *Store) ReplaceTotals(ctx context.Context, totals models.Totals) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(); err != nil {
		return storage.Wrap("replace totals", err)
	}
	s.totals = totals.Clone()
	return nil
}

// Ping reports whether the store is still open.
func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return storage.Wrap("ping", s.check())
}

// Close marks the store closed; further calls fail.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func cloneEntry(e models.Entry) models.Entry {
	out := models.Entry{Kind: e.Kind}
	if e.Fine != nil {
		f := *e.Fine
		out.Fine = &f
	}
	if e.Match != nil {
		m := *e.Match
		out.Match = &m
	}
	return out
}
