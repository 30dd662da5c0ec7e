package calculator

import (
	"testing"
	"time"

	"github.com/mmynk/courtledger/internal/models"
)

func match(id string, a, b int, at time.Time) models.Entry {
	winner, _ := Winner(testPair, a, b)
	return models.MatchEntry(models.MatchEvent{ID: id, ScoreA: a, ScoreB: b, Winner: winner, RecordedAt: at})
}

func fine(id string, owner models.ParticipantKey, amount int64, day time.Time) models.Entry {
	return models.FineEntry(models.FineEvent{ID: id, Owner: owner, Amount: amount, Reason: "late", OccurredAt: day, RecordedAt: day})
}

func TestMonthlyReportScenario(t *testing.T) {
	march := func(day, hour int) time.Time {
		return time.Date(2026, time.March, day, hour, 0, 0, 0, ist)
	}

	entries := []models.Entry{
		match("m-april", 21, 3, time.Date(2026, time.April, 1, 0, 0, 0, 0, ist)),
		match("m2", 12, 21, march(20, 19)),
		fine("f1", keyA, 15, march(18, 0)),
		match("m1", 21, 17, march(2, 7)),
		fine("f-feb", keyB, 99, time.Date(2026, time.February, 28, 0, 0, 0, 0, ist)),
	}
	settlements := []models.SettlementEvent{
		{ID: "s-march", OccurredAt: march(31, 23), Amount: 40},
		{ID: "s-feb", OccurredAt: time.Date(2026, time.February, 10, 0, 0, 0, 0, ist), Amount: 12},
	}

	month, err := ParseYearMonth("2026-03", ist)
	if err != nil {
		t.Fatalf("ParseYearMonth failed: %v", err)
	}
	report := MonthlyReport(entries, settlements, testPair, month, ist)

	if got := report.Matches[keyA]; got.Wins != 1 || got.Losses != 1 {
		t.Errorf("A match data = %+v, want {1 1}", got)
	}
	if got := report.Matches[keyB]; got.Wins != 1 || got.Losses != 1 {
		t.Errorf("B match data = %+v, want {1 1}", got)
	}
	if report.Fines[keyA] != 15 {
		t.Errorf("A fines = %d, want 15", report.Fines[keyA])
	}
	if report.Fines[keyB] != 0 {
		t.Errorf("B fines = %d, want 0", report.Fines[keyB])
	}
	if len(report.Entries) != 3 {
		t.Errorf("len(Entries) = %d, want 3", len(report.Entries))
	}
	if len(report.Settlements) != 1 || report.Settlements[0].ID != "s-march" {
		t.Errorf("Settlements = %+v, want only s-march", report.Settlements)
	}
	if report.SettledAmount != 40 {
		t.Errorf("SettledAmount = %d, want 40", report.SettledAmount)
	}
	if report.Entries[0].ID() != "m2" {
		t.Errorf("expected most-recent-first order to be kept, first = %s", report.Entries[0].ID())
	}
}

func TestMonthBounds(t *testing.T) {
	tests := []struct {
		month     string
		wantStart time.Time
		wantEnd   time.Time
	}{
		{"2026-02", time.Date(2026, time.February, 1, 0, 0, 0, 0, ist), time.Date(2026, time.February, 28, 23, 59, 59, 0, ist)},
		{"2028-02", time.Date(2028, time.February, 1, 0, 0, 0, 0, ist), time.Date(2028, time.February, 29, 23, 59, 59, 0, ist)},
		{"2026-12", time.Date(2026, time.December, 1, 0, 0, 0, 0, ist), time.Date(2026, time.December, 31, 23, 59, 59, 0, ist)},
	}

	for _, tt := range tests {
		t.Run(tt.month, func(t *testing.T) {
			m, err := ParseYearMonth(tt.month, ist)
			if err != nil {
				t.Fatalf("ParseYearMonth failed: %v", err)
			}
			start, end := MonthBounds(m, ist)
			if !start.Equal(tt.wantStart) {
				t.Errorf("start = %v, want %v", start, tt.wantStart)
			}
			if !end.Equal(tt.wantEnd) {
				t.Errorf("end = %v, want %v", end, tt.wantEnd)
			}
		})
	}
}

func TestMonthlyReportBoundaries(t *testing.T) {
	start, end := MonthBounds(time.Date(2026, time.March, 10, 0, 0, 0, 0, ist), ist)
	entries := []models.Entry{
		match("after", 21, 5, end.Add(time.Second)),
		match("last", 21, 5, end),
		match("first", 5, 21, start),
		match("before", 5, 21, start.Add(-time.Second)),
	}

	report := MonthlyReport(entries, nil, testPair, start, ist)
	if len(report.Entries) != 2 {
		t.Fatalf("len(Entries) = %d, want 2 (both bounds inclusive)", len(report.Entries))
	}
	if report.Entries[0].ID() != "last" || report.Entries[1].ID() != "first" {
		t.Errorf("unexpected entries %s, %s", report.Entries[0].ID(), report.Entries[1].ID())
	}
	if report.Settlements == nil {
		t.Error("expected an empty, non-nil settlement list")
	}
}

func TestParseYearMonthRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "2026", "2026-13", "03-2026", "march"} {
		if _, err := ParseYearMonth(raw, ist); err == nil {
			t.Errorf("ParseYearMonth(%q) succeeded, want error", raw)
		}
	}
}

func TestRecent(t *testing.T) {
	entries := make([]models.Entry, 8)
	if got := len(Recent(entries, RecentLimit)); got != 5 {
		t.Errorf("len(Recent) = %d, want 5", got)
	}
	if got := len(Recent(entries[:3], RecentLimit)); got != 3 {
		t.Errorf("len(Recent) = %d, want 3", got)
	}
	if got := len(Recent(entries, 0)); got != 8 {
		t.Errorf("len(Recent(0)) = %d, want all 8", got)
	}
}
