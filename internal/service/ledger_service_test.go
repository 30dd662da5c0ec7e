package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/mmynk/courtledger/internal/metrics"
	"github.com/mmynk/courtledger/internal/models"
	"github.com/mmynk/courtledger/internal/notify"
	"github.com/mmynk/courtledger/internal/storage/memory"
)

const (
	keyA = models.ParticipantKey("aniketnayak")
	keyB = models.ParticipantKey("souravssk")
)

func recordFine(t *testing.T, env *testEnv, token string, amount int64, reason, date string) (*RecordFineResponse, error) {
	t.Helper()
	return call[RecordFineRequest, RecordFineResponse](t, env, LedgerRecordFineProcedure, token, &RecordFineRequest{
		Amount: amount, Reason: reason, Date: date,
	})
}

func recordMatch(t *testing.T, env *testEnv, token, a, b string) (*RecordMatchResponse, error) {
	t.Helper()
	return call[RecordMatchRequest, RecordMatchResponse](t, env, LedgerRecordMatchProcedure, token, &RecordMatchRequest{
		ScoreA: a, ScoreB: b,
	})
}

func getBalance(t *testing.T, env *testEnv, token string) *GetBalanceResponse {
	t.Helper()
	resp, err := call[GetBalanceRequest, GetBalanceResponse](t, env, LedgerGetBalanceProcedure, token, &GetBalanceRequest{})
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	return resp
}

func settle(t *testing.T, env *testEnv, token, ref string) (*SettleResponse, error) {
	t.Helper()
	return call[SettleRequest, SettleResponse](t, env, LedgerSettleProcedure, token, &SettleRequest{TransactionRef: ref})
}

func TestLedgerRequiresAuthentication(t *testing.T) {
	env := setupTestServer(t, newSQLiteStore(t))

	_, err := recordFine(t, env, "", 10, "late", "")
	wantCode(t, err, connect.CodeUnauthenticated)

	_, err = recordFine(t, env, "not-a-token", 10, "late", "")
	wantCode(t, err, connect.CodeUnauthenticated)

	entries, err := env.store.ListEntries(context.Background(), storageAll)
	if err != nil {
		t.Fatalf("ListEntries failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("rejected calls stored %d entries", len(entries))
	}
}

func TestFineAndSettleScenario(t *testing.T) {
	env := setupTestServer(t, newSQLiteStore(t))
	aniket := login(t, env, keyA)
	sourav := login(t, env, keyB)

	if _, err := recordFine(t, env, aniket, 30, "no-show", ""); err != nil {
		t.Fatalf("RecordFine failed: %v", err)
	}
	resp, err := recordFine(t, env, aniket, 10, "late", "")
	if err != nil {
		t.Fatalf("RecordFine failed: %v", err)
	}
	if resp.Fine.Owner != string(keyA) || resp.Fine.Date != "2026-03-20" {
		t.Errorf("fine = %+v, want owner A dated today", resp.Fine)
	}
	if resp.Balance.Amount != 40 {
		t.Errorf("balance after fines = %d, want 40", resp.Balance.Amount)
	}

	// Both views of the same ledger.
	a := getBalance(t, env, aniket)
	if a.Balance.Amount != 40 || a.Balance.Message != "You owe Sourav ₹40" {
		t.Errorf("A's balance = %+v", a.Balance)
	}
	if len(a.Recent) != 2 || a.Recent[0].Fine == nil || a.Recent[0].Fine.Reason != "late" {
		t.Errorf("recent = %+v, want the two fines, latest first", a.Recent)
	}
	b := getBalance(t, env, sourav)
	if b.Balance.Amount != -40 || b.Balance.Message != "Aniket owes you ₹40" {
		t.Errorf("B's balance = %+v", b.Balance)
	}

	_, err = settle(t, env, sourav, "  ")
	wantCode(t, err, connect.CodeInvalidArgument)

	settled, err := settle(t, env, sourav, "UPI/1")
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	if !settled.Settled || settled.Settlement == nil {
		t.Fatalf("settle response = %+v", settled)
	}
	st := settled.Settlement
	if st.Amount != 40 || st.Payer != string(keyA) || st.Receiver != string(keyB) || st.SettledBy != string(keyB) {
		t.Errorf("settlement = %+v", st)
	}
	if st.BalanceBefore[string(keyA)] != 40 || st.BalanceBefore[string(keyB)] != 0 {
		t.Errorf("snapshot = %v", st.BalanceBefore)
	}
	if settled.Balance.Totals[string(keyA)] != 0 || settled.Balance.Totals[string(keyB)] != 0 {
		t.Errorf("totals after settle = %v, want zeros", settled.Balance.Totals)
	}
	if got := getBalance(t, env, aniket).Balance; got.Amount != 0 || got.Message != "All settled" {
		t.Errorf("balance after settle = %+v", got)
	}

	again, err := settle(t, env, aniket, "UPI/2")
	if err != nil {
		t.Fatalf("second Settle failed: %v", err)
	}
	if again.Settled || again.Message != "nothing to settle" {
		t.Errorf("second settle = %+v, want nothing to settle", again)
	}

	list, err := call[ListSettlementsRequest, ListSettlementsResponse](t, env, LedgerListSettlementsProcedure, aniket, &ListSettlementsRequest{})
	if err != nil {
		t.Fatalf("ListSettlements failed: %v", err)
	}
	if len(list.Settlements) != 1 || list.Settlements[0].TransactionRef != "UPI/1" {
		t.Errorf("settlements = %+v", list.Settlements)
	}

	want := []notify.Type{notify.TypeFineRecorded, notify.TypeFineRecorded, notify.TypeSettlementRecorded}
	got := env.publisher.types()
	if len(got) != len(want) {
		t.Fatalf("notifications = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("notification %d = %s, want %s", i, got[i], want[i])
		}
	}
	if v := testutil.ToFloat64(env.metrics.SettledAmount); v != 40 {
		t.Errorf("settled amount metric = %v, want 40", v)
	}
	if v := testutil.ToFloat64(env.metrics.FineAmount.WithLabelValues(string(keyA))); v != 40 {
		t.Errorf("fine amount metric = %v, want 40", v)
	}
}

func TestRecordFineValidation(t *testing.T) {
	env := setupTestServer(t, newSQLiteStore(t))
	token := login(t, env, keyB)

	tests := []struct {
		name    string
		amount  int64
		reason  string
		date    string
		wantErr bool
	}{
		{"today by default", 10, "late", "", false},
		{"seven days back", 5, "forgot racket", "2026-03-13", false},
		{"eight days back", 5, "forgot racket", "2026-03-12", true},
		{"tomorrow", 5, "late", "2026-03-21", true},
		{"zero amount", 0, "late", "", true},
		{"negative amount", -5, "late", "", true},
		{"amount over the cap", math.MaxInt64, "late", "", true},
		{"blank reason", 5, "   ", "", true},
		{"malformed date", 5, "late", "20/03/2026", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := recordFine(t, env, token, tt.amount, tt.reason, tt.date)
			if tt.wantErr {
				wantCode(t, err, connect.CodeInvalidArgument)
				return
			}
			if err != nil {
				t.Fatalf("RecordFine failed: %v", err)
			}
			if resp.Fine.Owner != string(keyB) {
				t.Errorf("owner = %q, want the caller", resp.Fine.Owner)
			}
		})
	}

	// Only the two accepted fines count.
	if got := getBalance(t, env, token).Balance.Totals[string(keyB)]; got != 15 {
		t.Errorf("B total = %d, want 15", got)
	}
}

func TestRecordMatchAndStats(t *testing.T) {
	env := setupTestServer(t, newSQLiteStore(t))
	token := login(t, env, keyB)

	resp, err := recordMatch(t, env, token, "21", "15")
	if err != nil {
		t.Fatalf("RecordMatch failed: %v", err)
	}
	if resp.Match.Winner != string(keyA) || resp.Match.ScoreA != 21 {
		t.Errorf("match = %+v, want A winning 21-15", resp.Match)
	}

	rejected := []struct{ name, a, b string }{
		{"non-numeric", "abc", "15"},
		{"empty", "", "15"},
		{"negative", "21", "-3"},
		{"tie", "21", "21"},
	}
	for _, tt := range rejected {
		t.Run(tt.name, func(t *testing.T) {
			_, err := recordMatch(t, env, token, tt.a, tt.b)
			wantCode(t, err, connect.CodeInvalidArgument)
		})
	}

	stats, err := call[GetStatsRequest, GetStatsResponse](t, env, LedgerGetStatsProcedure, token, &GetStatsRequest{})
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.Matches != 1 || len(stats.Players) != 2 {
		t.Fatalf("stats = %+v", stats)
	}
	a, b := stats.Players[0], stats.Players[1]
	if a.Participant.Key != string(keyA) || a.Wins != 1 || a.Losses != 0 || a.TotalPoints != 21 {
		t.Errorf("A stats = %+v", a)
	}
	if b.Participant.Key != string(keyB) || b.Wins != 0 || b.Losses != 1 || b.TotalPoints != 15 {
		t.Errorf("B stats = %+v", b)
	}

	// Matches never move fine totals.
	if got := getBalance(t, env, token).Balance; got.Amount != 0 {
		t.Errorf("balance after a match = %+v, want 0", got)
	}
}

func TestMonthlyReport(t *testing.T) {
	env := setupTestServer(t, newSQLiteStore(t))
	aniket := login(t, env, keyA)

	env.clock.Set(time.Date(2026, time.March, 2, 7, 0, 0, 0, ist))
	if _, err := recordMatch(t, env, aniket, "21", "17"); err != nil {
		t.Fatalf("RecordMatch failed: %v", err)
	}
	env.clock.Set(time.Date(2026, time.March, 18, 8, 0, 0, 0, ist))
	if _, err := recordFine(t, env, aniket, 15, "late", ""); err != nil {
		t.Fatalf("RecordFine failed: %v", err)
	}
	env.clock.Set(time.Date(2026, time.March, 20, 19, 0, 0, 0, ist))
	if _, err := recordMatch(t, env, aniket, "12", "21"); err != nil {
		t.Fatalf("RecordMatch failed: %v", err)
	}
	env.clock.Set(time.Date(2026, time.April, 1, 0, 0, 0, 0, ist))
	if _, err := recordMatch(t, env, aniket, "21", "3"); err != nil {
		t.Fatalf("RecordMatch failed: %v", err)
	}

	resp, err := call[GetMonthlyReportRequest, GetMonthlyReportResponse](t, env, LedgerGetMonthlyReportProcedure, aniket, &GetMonthlyReportRequest{Month: "2026-03"})
	if err != nil {
		t.Fatalf("GetMonthlyReport failed: %v", err)
	}
	r := resp.Report
	if r.Month != "2026-03" {
		t.Errorf("month = %q", r.Month)
	}
	if r.Matches[string(keyA)] != (WinLoss{Wins: 1, Losses: 1}) || r.Matches[string(keyB)] != (WinLoss{Wins: 1, Losses: 1}) {
		t.Errorf("match data = %+v, want {1 1} each", r.Matches)
	}
	if r.Fines[string(keyA)] != 15 || r.Fines[string(keyB)] != 0 {
		t.Errorf("fine data = %v, want A=15", r.Fines)
	}
	if len(r.Entries) != 3 {
		t.Errorf("entries = %d, want 3", len(r.Entries))
	}

	// The default month follows the clock, now in April.
	current, err := call[GetMonthlyReportRequest, GetMonthlyReportResponse](t, env, LedgerGetMonthlyReportProcedure, aniket, &GetMonthlyReportRequest{})
	if err != nil {
		t.Fatalf("GetMonthlyReport failed: %v", err)
	}
	if current.Report.Month != "2026-04" || len(current.Report.Entries) != 1 {
		t.Errorf("current report = %s with %d entries, want 2026-04 with 1", current.Report.Month, len(current.Report.Entries))
	}

	_, err = call[GetMonthlyReportRequest, GetMonthlyReportResponse](t, env, LedgerGetMonthlyReportProcedure, aniket, &GetMonthlyReportRequest{Month: "2026-13"})
	wantCode(t, err, connect.CodeInvalidArgument)
}

func TestListHistory(t *testing.T) {
	env := setupTestServer(t, newSQLiteStore(t))
	token := login(t, env, keyA)

	for i := 0; i < 3; i++ {
		env.clock.Set(time.Date(2026, time.March, 20, 10+i, 0, 0, 0, ist))
		if _, err := recordFine(t, env, token, int64(i+1), "late", ""); err != nil {
			t.Fatalf("RecordFine failed: %v", err)
		}
		env.clock.Set(time.Date(2026, time.March, 20, 10+i, 30, 0, 0, ist))
		if _, err := recordMatch(t, env, token, "21", "10"); err != nil {
			t.Fatalf("RecordMatch failed: %v", err)
		}
	}

	history := func(kind string, limit int) []Entry {
		t.Helper()
		resp, err := call[ListHistoryRequest, ListHistoryResponse](t, env, LedgerListHistoryProcedure, token, &ListHistoryRequest{Kind: kind, Limit: limit})
		if err != nil {
			t.Fatalf("ListHistory failed: %v", err)
		}
		return resp.Entries
	}

	all := history("", 0)
	if len(all) != 6 {
		t.Fatalf("len(all) = %d, want 6", len(all))
	}
	if all[0].Kind != "match" || all[1].Kind != "fine" || all[1].Fine.Amount != 3 {
		t.Errorf("expected most-recent-first, got %+v then %+v", all[0], all[1])
	}

	fines := history("fine", 0)
	if len(fines) != 3 {
		t.Errorf("fines = %d, want 3", len(fines))
	}
	for _, e := range fines {
		if e.Fine == nil || e.Match != nil {
			t.Errorf("fine filter returned %+v", e)
		}
	}

	if got := history("", 4); len(got) != 4 {
		t.Errorf("limited = %d, want 4", len(got))
	}

	_, err := call[ListHistoryRequest, ListHistoryResponse](t, env, LedgerListHistoryProcedure, token, &ListHistoryRequest{Kind: "settlement"})
	wantCode(t, err, connect.CodeInvalidArgument)
	_, err = call[ListHistoryRequest, ListHistoryResponse](t, env, LedgerListHistoryProcedure, token, &ListHistoryRequest{Limit: -1})
	wantCode(t, err, connect.CodeInvalidArgument)
}

func TestStorageFailureIsUnavailable(t *testing.T) {
	store := memory.New()
	env := setupTestServer(t, store)
	token := login(t, env, keyA)
	store.Close()

	_, err := recordFine(t, env, token, 10, "late", "")
	wantCode(t, err, connect.CodeUnavailable)
	if strings.Contains(err.Error(), "closed") {
		t.Errorf("storage detail leaked to the client: %v", err)
	}
}

func TestPublishFailureDoesNotFailTheRequest(t *testing.T) {
	env := setupTestServer(t, memory.New())
	env.publisher.err = errors.New("broker unreachable")
	token := login(t, env, keyA)

	if _, err := recordMatch(t, env, token, "21", "19"); err != nil {
		t.Fatalf("RecordMatch failed: %v", err)
	}
	if v := testutil.ToFloat64(env.metrics.NotifyFailures.WithLabelValues(string(notify.TypeMatchRecorded))); v != 1 {
		t.Errorf("notify failures = %v, want 1", v)
	}

	entries, err := env.store.ListEntries(context.Background(), storageAll)
	if err != nil {
		t.Fatalf("ListEntries failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("entries = %d, want the match stored", len(entries))
	}
}

func TestReconcileRepairsDrift(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	m := metrics.New(prometheus.NewRegistry())
	svc := NewLedgerService(store, testPair, ist, nil, m)

	at := time.Date(2026, time.March, 20, 9, 0, 0, 0, ist)
	for i, amount := range []int64{30, 10} {
		fine := models.FineEvent{
			ID: string(rune('a' + i)), Owner: keyA, Amount: amount, Reason: "late",
			OccurredAt: at, RecordedAt: at.Add(time.Duration(i) * time.Minute),
		}
		if err := store.AppendEntry(ctx, models.FineEntry(fine)); err != nil {
			t.Fatalf("AppendEntry failed: %v", err)
		}
	}
	if err := store.ReplaceTotals(ctx, models.Totals{keyA: 7, keyB: 99}); err != nil {
		t.Fatalf("ReplaceTotals failed: %v", err)
	}

	derived, err := svc.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if derived[keyA] != 40 || derived[keyB] != 0 {
		t.Errorf("derived = %v, want {A:40 B:0}", derived)
	}
	stored, err := store.GetTotals(ctx)
	if err != nil {
		t.Fatalf("GetTotals failed: %v", err)
	}
	if !stored.Equal(derived, testPair) {
		t.Errorf("stored = %v, want it rebuilt to %v", stored, derived)
	}
	if v := testutil.ToFloat64(m.TotalsRepaired); v != 1 {
		t.Errorf("repairs = %v, want 1", v)
	}

	// A consistent projection is left alone.
	if _, err := svc.Reconcile(ctx); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if v := testutil.ToFloat64(m.TotalsRepaired); v != 1 {
		t.Errorf("repairs = %v, want still 1", v)
	}
}
