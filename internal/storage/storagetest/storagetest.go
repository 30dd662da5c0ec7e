// Package storagetest holds the behaviour every storage.Store must share.
// Backend packages call Run from their own tests.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mmynk/courtledger/internal/calculator"
	"github.com/mmynk/courtledger/internal/models"
	"github.com/mmynk/courtledger/internal/storage"
)

var (
	pair = models.Pair{
		A: models.Participant{Key: "aniketnayak", DisplayName: "Aniket"},
		B: models.Participant{Key: "souravssk", DisplayName: "Sourav"},
	}
	keyA = pair.A.Key
	keyB = pair.B.Key

	base = time.Date(2026, time.March, 10, 18, 0, 0, 0, time.UTC)
)

func fineAt(id string, owner models.ParticipantKey, amount int64, day, recorded time.Time) models.Entry {
	return models.FineEntry(models.FineEvent{
		ID: id, Owner: owner, Amount: amount, Reason: "reason " + id,
		OccurredAt: day, RecordedAt: recorded,
	})
}

func matchAt(id string, a, b int, recorded time.Time) models.Entry {
	winner, _ := calculator.Winner(pair, a, b)
	return models.MatchEntry(models.MatchEvent{ID: id, ScoreA: a, ScoreB: b, Winner: winner, RecordedAt: recorded})
}

// Run exercises a fresh store returned by newStore for every subtest.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	ctx := context.Background()

	t.Run("fines move the owner's total and matches do not", func(t *testing.T) {
		s := newStore(t)

		mustAppend(t, s, fineAt("f1", keyA, 30, base, base))
		mustAppend(t, s, fineAt("f2", keyA, 10, base, base.Add(time.Minute)))
		mustAppend(t, s, matchAt("m1", 21, 15, base.Add(2*time.Minute)))
		mustAppend(t, s, fineAt("f3", keyB, 5, base, base.Add(3*time.Minute)))

		totals, err := s.GetTotals(ctx)
		if err != nil {
			t.Fatalf("GetTotals failed: %v", err)
		}
		if totals[keyA] != 40 || totals[keyB] != 5 {
			t.Errorf("totals = %v, want {A:40 B:5}", totals)
		}
	})

	t.Run("entries come back most-recent-first with all fields", func(t *testing.T) {
		s := newStore(t)

		day := base.AddDate(0, 0, -2)
		mustAppend(t, s, fineAt("f1", keyA, 30, day, base))
		mustAppend(t, s, matchAt("m1", 19, 21, base.Add(time.Minute)))

		entries, err := s.ListEntries(ctx, storage.EntryFilter{})
		if err != nil {
			t.Fatalf("ListEntries failed: %v", err)
		}
		if len(entries) != 2 {
			t.Fatalf("len(entries) = %d, want 2", len(entries))
		}

		m := entries[0]
		if m.Kind != models.EntryMatch || m.Match == nil {
			t.Fatalf("first entry = %+v, want the match", m)
		}
		if m.Match.ScoreA != 19 || m.Match.ScoreB != 21 || m.Match.Winner != keyB {
			t.Errorf("match = %+v", *m.Match)
		}

		f := entries[1]
		if f.Kind != models.EntryFine || f.Fine == nil {
			t.Fatalf("second entry = %+v, want the fine", f)
		}
		if f.Fine.Owner != keyA || f.Fine.Amount != 30 || f.Fine.Reason != "reason f1" {
			t.Errorf("fine = %+v", *f.Fine)
		}
		if !f.Fine.OccurredAt.Equal(day) {
			t.Errorf("OccurredAt = %v, want %v", f.Fine.OccurredAt, day)
		}
		if !f.Fine.RecordedAt.Equal(base) {
			t.Errorf("RecordedAt = %v, want %v", f.Fine.RecordedAt, base)
		}
	})

	t.Run("entry filters", func(t *testing.T) {
		s := newStore(t)

		for i := 0; i < 6; i++ {
			at := base.AddDate(0, 0, i)
			if i%2 == 0 {
				mustAppend(t, s, matchAt("m"+string(rune('a'+i)), 21, i, at))
			} else {
				mustAppend(t, s, fineAt("f"+string(rune('a'+i)), keyB, int64(i), at, at))
			}
		}

		matches, err := s.ListEntries(ctx, storage.EntryFilter{Kind: models.EntryMatch})
		if err != nil {
			t.Fatalf("ListEntries failed: %v", err)
		}
		if len(matches) != 3 {
			t.Errorf("matches = %d, want 3", len(matches))
		}

		window, err := s.ListEntries(ctx, storage.EntryFilter{From: base.AddDate(0, 0, 1), To: base.AddDate(0, 0, 3)})
		if err != nil {
			t.Fatalf("ListEntries failed: %v", err)
		}
		if len(window) != 3 {
			t.Errorf("window = %d, want 3 (inclusive bounds)", len(window))
		}

		limited, err := s.ListEntries(ctx, storage.EntryFilter{Limit: 2})
		if err != nil {
			t.Fatalf("ListEntries failed: %v", err)
		}
		if len(limited) != 2 || limited[0].ID() != "ff" {
			t.Errorf("limited = %d entries starting at %q", len(limited), firstID(limited))
		}
	})

	t.Run("settlement zeroes totals and keeps its snapshot", func(t *testing.T) {
		s := newStore(t)

		mustAppend(t, s, fineAt("f1", keyA, 30, base, base))
		mustAppend(t, s, fineAt("f2", keyB, 10, base, base.Add(time.Minute)))

		totals, err := s.GetTotals(ctx)
		if err != nil {
			t.Fatalf("GetTotals failed: %v", err)
		}
		event, zeroed, err := calculator.Settle(totals, pair, "UPI/1", keyB, base.Add(2*time.Minute))
		if err != nil {
			t.Fatalf("Settle failed: %v", err)
		}
		if err := s.AppendSettlement(ctx, event); err != nil {
			t.Fatalf("AppendSettlement failed: %v", err)
		}

		after, err := s.GetTotals(ctx)
		if err != nil {
			t.Fatalf("GetTotals failed: %v", err)
		}
		if !after.Equal(zeroed, pair) {
			t.Errorf("totals after settlement = %v, want zeros", after)
		}

		settlements, err := s.ListSettlements(ctx, storage.SettlementFilter{})
		if err != nil {
			t.Fatalf("ListSettlements failed: %v", err)
		}
		if len(settlements) != 1 {
			t.Fatalf("len(settlements) = %d, want 1", len(settlements))
		}
		got := settlements[0]
		if got.ID != event.ID || got.Amount != 20 || got.Payer != keyA || got.Receiver != keyB {
			t.Errorf("settlement = %+v", got)
		}
		if got.TransactionRef != "UPI/1" || !got.Settled || got.SettledBy != keyB {
			t.Errorf("settlement metadata = %+v", got)
		}
		if got.BalanceBefore[keyA] != 30 || got.BalanceBefore[keyB] != 10 {
			t.Errorf("snapshot = %v, want {A:30 B:10}", got.BalanceBefore)
		}
		if !got.OccurredAt.Equal(base.Add(2 * time.Minute)) {
			t.Errorf("OccurredAt = %v", got.OccurredAt)
		}

		// Fines after the settlement count from zero again.
		mustAppend(t, s, fineAt("f3", keyA, 7, base, base.Add(3*time.Minute)))
		entries, err := s.ListEntries(ctx, storage.EntryFilter{})
		if err != nil {
			t.Fatalf("ListEntries failed: %v", err)
		}
		derived := calculator.DeriveTotals(entries, settlements, pair)
		stored, err := s.GetTotals(ctx)
		if err != nil {
			t.Fatalf("GetTotals failed: %v", err)
		}
		if !derived.Equal(stored, pair) || stored[keyA] != 7 {
			t.Errorf("derived %v, stored %v, want A:7", derived, stored)
		}
	})

	t.Run("settlement filters", func(t *testing.T) {
		s := newStore(t)

		for i := 0; i < 3; i++ {
			mustAppend(t, s, fineAt("f"+string(rune('a'+i)), keyA, 10, base, base.AddDate(0, i, 0)))
			totals, err := s.GetTotals(ctx)
			if err != nil {
				t.Fatalf("GetTotals failed: %v", err)
			}
			event, _, err := calculator.Settle(totals, pair, "ref", keyA, base.AddDate(0, i, 1))
			if err != nil {
				t.Fatalf("Settle failed: %v", err)
			}
			if err := s.AppendSettlement(ctx, event); err != nil {
				t.Fatalf("AppendSettlement failed: %v", err)
			}
		}

		all, err := s.ListSettlements(ctx, storage.SettlementFilter{})
		if err != nil {
			t.Fatalf("ListSettlements failed: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("len(all) = %d, want 3", len(all))
		}
		if !all[0].OccurredAt.After(all[1].OccurredAt) {
			t.Error("expected most-recent-first order")
		}

		second, err := s.ListSettlements(ctx, storage.SettlementFilter{From: base.AddDate(0, 1, 0), To: base.AddDate(0, 1, 5)})
		if err != nil {
			t.Fatalf("ListSettlements failed: %v", err)
		}
		if len(second) != 1 {
			t.Errorf("window = %d, want 1", len(second))
		}

		latest, err := s.ListSettlements(ctx, storage.SettlementFilter{Limit: 1})
		if err != nil {
			t.Fatalf("ListSettlements failed: %v", err)
		}
		if len(latest) != 1 || latest[0].ID != all[0].ID {
			t.Errorf("limit 1 returned %+v", latest)
		}
	})

	t.Run("replace totals", func(t *testing.T) {
		s := newStore(t)

		mustAppend(t, s, fineAt("f1", keyA, 30, base, base))
		if err := s.ReplaceTotals(ctx, models.Totals{keyA: 3, keyB: 4}); err != nil {
			t.Fatalf("ReplaceTotals failed: %v", err)
		}
		totals, err := s.GetTotals(ctx)
		if err != nil {
			t.Fatalf("GetTotals failed: %v", err)
		}
		if totals[keyA] != 3 || totals[keyB] != 4 {
			t.Errorf("totals = %v, want {A:3 B:4}", totals)
		}
	})

	t.Run("duplicate ids are rejected as persistence errors", func(t *testing.T) {
		s := newStore(t)

		mustAppend(t, s, fineAt("dup", keyA, 30, base, base))
		err := s.AppendEntry(ctx, fineAt("dup", keyA, 30, base, base))
		if !errors.Is(err, storage.ErrPersistence) {
			t.Fatalf("err = %v, want ErrPersistence", err)
		}

		totals, err := s.GetTotals(ctx)
		if err != nil {
			t.Fatalf("GetTotals failed: %v", err)
		}
		if totals[keyA] != 30 {
			t.Errorf("failed insert leaked into totals: %v", totals)
		}
	})

	t.Run("ping", func(t *testing.T) {
		s := newStore(t)
		if err := s.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})
}

func mustAppend(t *testing.T, s storage.Store, e models.Entry) {
	t.Helper()
	if err := s.AppendEntry(context.Background(), e); err != nil {
		t.Fatalf("AppendEntry(%s) failed: %v", e.ID(), err)
	}
}

func firstID(entries []models.Entry) string {
	if len(entries) == 0 {
		return ""
	}
	return entries[0].ID()
}
