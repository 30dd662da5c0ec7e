package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"connectrpc.com/connect"
	"golang.org/x/sync/errgroup"

	"github.com/mmynk/courtledger/internal/auth"
	"github.com/mmynk/courtledger/internal/calculator"
	"github.com/mmynk/courtledger/internal/metrics"
	"github.com/mmynk/courtledger/internal/middleware"
	"github.com/mmynk/courtledger/internal/models"
	"github.com/mmynk/courtledger/internal/notify"
	"github.com/mmynk/courtledger/internal/storage"
)

// LedgerService implements the courtledger.v1.LedgerService procedures.
// Every call runs on behalf of the participant RequireAuth put in the context.
type LedgerService struct {
	store     storage.Store
	pair      models.Pair
	loc       *time.Location
	publisher notify.Publisher
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewLedgerService creates a LedgerService with the given storage backend.
// loc is the zone calendar days and months are counted in.
func NewLedgerService(store storage.Store, pair models.Pair, loc *time.Location, publisher notify.Publisher, m *metrics.Metrics) *LedgerService {
	if publisher == nil {
		publisher = notify.Noop{}
	}
	return &LedgerService{
		store:     store,
		pair:      pair,
		loc:       loc,
		publisher: publisher,
		metrics:   m,
		now:       time.Now,
	}
}

func (s *LedgerService) caller(ctx context.Context) (models.ParticipantKey, error) {
	key := middleware.GetParticipant(ctx)
	if key == "" {
		return "", connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}
	if !s.pair.Has(key) {
		return "", connect.NewError(connect.CodeUnauthenticated, auth.ErrInvalidToken)
	}
	return key, nil
}

// Reconcile derives the totals from both logs and overwrites the stored
// projection when they disagree. It returns the derived totals.
func (s *LedgerService) Reconcile(ctx context.Context) (models.Totals, error) {
	entries, err := s.store.ListEntries(ctx, storage.EntryFilter{Kind: models.EntryFine})
	if err != nil {
		return nil, err
	}
	settlements, err := s.store.ListSettlements(ctx, storage.SettlementFilter{})
	if err != nil {
		return nil, err
	}
	derived := calculator.DeriveTotals(entries, settlements, s.pair)

	stored, err := s.store.GetTotals(ctx)
	if err != nil {
		return nil, err
	}
	if !stored.Equal(derived, s.pair) {
		slog.Warn("Stored totals drifted from the event log, rebuilding",
			"stored", stored,
			"derived", derived,
		)
		if err := s.store.ReplaceTotals(ctx, derived); err != nil {
			return nil, err
		}
		s.metrics.TotalsRepaired.Inc()
	}
	return derived, nil
}

func (s *LedgerService) balance(totals models.Totals, self models.ParticipantKey) Balance {
	amount := calculator.ComputeBalance(totals, s.pair, self)
	return Balance{
		Totals:  toTotals(totals, s.pair),
		Amount:  amount,
		Message: calculator.BalanceMessage(s.pair, self, amount),
	}
}

// publish sends n without failing the request; the event is already stored.
func (s *LedgerService) publish(ctx context.Context, n *notify.Notification) {
	if err := s.publisher.Publish(ctx, n); err != nil {
		slog.Warn("Failed to publish notification", "type", n.Type, "id", n.ID, "error", err)
		s.metrics.NotifyFailures.WithLabelValues(string(n.Type)).Inc()
	}
}

// RecordFine records a fine against the caller.
func (s *LedgerService) RecordFine(ctx context.Context, req *connect.Request[RecordFineRequest]) (*connect.Response[RecordFineResponse], error) {
	owner, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("RecordFine request received",
		"participant", owner,
		"amount", req.Msg.Amount,
		"date", req.Msg.Date,
	)

	day, err := calculator.ParseFineDate(req.Msg.Date, s.loc)
	if err != nil {
		return nil, toConnectError("RecordFine", err)
	}

	totals, err := s.Reconcile(ctx)
	if err != nil {
		return nil, toConnectError("RecordFine", err)
	}

	_, newTotals, fine, err := calculator.RecordFine(nil, totals, s.pair, owner, req.Msg.Amount, req.Msg.Reason, day, s.now(), s.loc)
	if err != nil {
		slog.Warn("RecordFine rejected", "participant", owner, "error", err)
		return nil, toConnectError("RecordFine", err)
	}

	if err := s.store.AppendEntry(ctx, models.FineEntry(fine)); err != nil {
		return nil, toConnectError("RecordFine", err)
	}

	s.metrics.FinesRecorded.WithLabelValues(string(owner)).Inc()
	s.metrics.FineAmount.WithLabelValues(string(owner)).Add(float64(fine.Amount))
	s.publish(ctx, notify.FineRecorded(fine))

	slog.Info("Fine recorded", "fine_id", fine.ID, "participant", owner, "total", newTotals[owner])

	return connect.NewResponse(&RecordFineResponse{
		Fine:    toFine(fine, s.loc),
		Balance: s.balance(newTotals, owner),
	}), nil
}

// RecordMatch records a finished game. Either participant may record it.
func (s *LedgerService) RecordMatch(ctx context.Context, req *connect.Request[RecordMatchRequest]) (*connect.Response[RecordMatchResponse], error) {
	who, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("RecordMatch request received",
		"participant", who,
		"score_a", req.Msg.ScoreA,
		"score_b", req.Msg.ScoreB,
	)

	scoreA, err := calculator.ParseScore("score_a", req.Msg.ScoreA)
	if err != nil {
		return nil, toConnectError("RecordMatch", err)
	}
	scoreB, err := calculator.ParseScore("score_b", req.Msg.ScoreB)
	if err != nil {
		return nil, toConnectError("RecordMatch", err)
	}

	_, match, err := calculator.RecordMatch(nil, s.pair, scoreA, scoreB, s.now())
	if err != nil {
		slog.Warn("RecordMatch rejected", "participant", who, "error", err)
		return nil, toConnectError("RecordMatch", err)
	}

	if err := s.store.AppendEntry(ctx, models.MatchEntry(match)); err != nil {
		return nil, toConnectError("RecordMatch", err)
	}

	s.metrics.MatchesRecorded.WithLabelValues(string(match.Winner)).Inc()
	s.publish(ctx, notify.MatchRecorded(match))

	slog.Info("Match recorded", "match_id", match.ID, "winner", match.Winner)

	return connect.NewResponse(&RecordMatchResponse{Match: toMatch(match)}), nil
}

// Settle clears the balance. An even ledger is answered with settled=false.
func (s *LedgerService) Settle(ctx context.Context, req *connect.Request[SettleRequest]) (*connect.Response[SettleResponse], error) {
	who, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("Settle request received", "participant", who)

	totals, err := s.Reconcile(ctx)
	if err != nil {
		return nil, toConnectError("Settle", err)
	}

	event, zeroed, err := calculator.Settle(totals, s.pair, req.Msg.TransactionRef, who, s.now())
	if errors.Is(err, calculator.ErrNothingToSettle) {
		slog.Info("Nothing to settle", "participant", who)
		return connect.NewResponse(&SettleResponse{
			Settled: false,
			Message: err.Error(),
			Balance: s.balance(totals, who),
		}), nil
	}
	if err != nil {
		slog.Warn("Settle rejected", "participant", who, "error", err)
		return nil, toConnectError("Settle", err)
	}

	if err := s.store.AppendSettlement(ctx, event); err != nil {
		return nil, toConnectError("Settle", err)
	}

	s.metrics.Settlements.Inc()
	s.metrics.SettledAmount.Add(float64(event.Amount))
	s.publish(ctx, notify.SettlementRecorded(event))

	slog.Info("Balance settled",
		"settlement_id", event.ID,
		"payer", event.Payer,
		"receiver", event.Receiver,
		"amount", event.Amount,
	)

	settlement := toSettlement(event, s.pair)
	return connect.NewResponse(&SettleResponse{
		Settled:    true,
		Settlement: &settlement,
		Balance:    s.balance(zeroed, who),
	}), nil
}

// GetBalance returns the caller's view of the balance plus recent activity.
func (s *LedgerService) GetBalance(ctx context.Context, req *connect.Request[GetBalanceRequest]) (*connect.Response[GetBalanceResponse], error) {
	who, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}

	totals, err := s.Reconcile(ctx)
	if err != nil {
		return nil, toConnectError("GetBalance", err)
	}
	recent, err := s.store.ListEntries(ctx, storage.EntryFilter{Limit: calculator.RecentLimit})
	if err != nil {
		return nil, toConnectError("GetBalance", err)
	}

	return connect.NewResponse(&GetBalanceResponse{
		Balance: s.balance(totals, who),
		Recent:  toEntries(recent, s.loc),
	}), nil
}

// GetStats returns the all-time head-to-head record.
func (s *LedgerService) GetStats(ctx context.Context, req *connect.Request[GetStatsRequest]) (*connect.Response[GetStatsResponse], error) {
	if _, err := s.caller(ctx); err != nil {
		return nil, err
	}

	matches, err := s.store.ListEntries(ctx, storage.EntryFilter{Kind: models.EntryMatch})
	if err != nil {
		return nil, toConnectError("GetStats", err)
	}
	stats := calculator.ComputeStats(matches, s.pair)

	players := make([]PlayerStats, 0, 2)
	for _, p := range []models.Participant{s.pair.A, s.pair.B} {
		ps := stats.Players[p.Key]
		players = append(players, PlayerStats{
			Participant: toParticipant(p),
			Wins:        ps.Wins,
			Losses:      ps.Losses,
			TotalPoints: ps.TotalPoints,
		})
	}

	return connect.NewResponse(&GetStatsResponse{
		Matches: stats.Matches,
		Players: players,
	}), nil
}

// GetMonthlyReport summarises one calendar month, the current one by default.
func (s *LedgerService) GetMonthlyReport(ctx context.Context, req *connect.Request[GetMonthlyReportRequest]) (*connect.Response[GetMonthlyReportResponse], error) {
	who, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("GetMonthlyReport request received", "participant", who, "month", req.Msg.Month)

	month := calculator.StartOfDay(s.now(), s.loc)
	if raw := strings.TrimSpace(req.Msg.Month); raw != "" {
		month, err = calculator.ParseYearMonth(raw, s.loc)
		if err != nil {
			return nil, toConnectError("GetMonthlyReport", err)
		}
	}
	start, end := calculator.MonthBounds(month, s.loc)

	var (
		entries     []models.Entry
		settlements []models.SettlementEvent
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		entries, err = s.store.ListEntries(gctx, storage.EntryFilter{From: start, To: end})
		return err
	})
	g.Go(func() error {
		var err error
		settlements, err = s.store.ListSettlements(gctx, storage.SettlementFilter{From: start, To: end})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, toConnectError("GetMonthlyReport", err)
	}

	report := calculator.MonthlyReport(entries, settlements, s.pair, month, s.loc)
	return connect.NewResponse(&GetMonthlyReportResponse{
		Report: toReport(report, s.pair, s.loc),
	}), nil
}

// ListHistory returns fines and matches most-recent-first.
func (s *LedgerService) ListHistory(ctx context.Context, req *connect.Request[ListHistoryRequest]) (*connect.Response[ListHistoryResponse], error) {
	if _, err := s.caller(ctx); err != nil {
		return nil, err
	}

	kind := models.EntryKind(strings.TrimSpace(req.Msg.Kind))
	if kind != "" && !kind.Valid() {
		return nil, toConnectError("ListHistory", &calculator.ValidationError{Field: "kind", Message: "must be fine, match or empty"})
	}
	if req.Msg.Limit < 0 {
		return nil, toConnectError("ListHistory", &calculator.ValidationError{Field: "limit", Message: "must not be negative"})
	}

	entries, err := s.store.ListEntries(ctx, storage.EntryFilter{Kind: kind, Limit: req.Msg.Limit})
	if err != nil {
		return nil, toConnectError("ListHistory", err)
	}

	return connect.NewResponse(&ListHistoryResponse{Entries: toEntries(entries, s.loc)}), nil
}

// ListSettlements returns past settlements most-recent-first.
func (s *LedgerService) ListSettlements(ctx context.Context, req *connect.Request[ListSettlementsRequest]) (*connect.Response[ListSettlementsResponse], error) {
	if _, err := s.caller(ctx); err != nil {
		return nil, err
	}
	if req.Msg.Limit < 0 {
		return nil, toConnectError("ListSettlements", &calculator.ValidationError{Field: "limit", Message: "must not be negative"})
	}

	settlements, err := s.store.ListSettlements(ctx, storage.SettlementFilter{Limit: req.Msg.Limit})
	if err != nil {
		return nil, toConnectError("ListSettlements", err)
	}

	return connect.NewResponse(&ListSettlementsResponse{Settlements: toSettlements(settlements, s.pair)}), nil
}
