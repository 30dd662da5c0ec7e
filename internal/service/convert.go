package service

import (
	"time"

	"github.com/mmynk/courtledger/internal/models"
)

const dateLayout = "2006-01-02"

func toParticipant(p models.Participant) Participant {
	return Participant{Key: string(p.Key), Name: p.DisplayName}
}

func toTotals(t models.Totals, pair models.Pair) map[string]int64 {
	out := make(map[string]int64, 2)
	for _, k := range pair.Keys() {
		out[string(k)] = t[k]
	}
	return out
}

func toFine(f models.FineEvent, loc *time.Location) Fine {
	return Fine{
		ID:         f.ID,
		Owner:      string(f.Owner),
		Amount:     f.Amount,
		Reason:     f.Reason,
		Date:       f.OccurredAt.In(loc).Format(dateLayout),
		RecordedAt: f.RecordedAt,
	}
}

func toMatch(m models.MatchEvent) Match {
	return Match{
		ID:         m.ID,
		ScoreA:     m.ScoreA,
		ScoreB:     m.ScoreB,
		Winner:     string(m.Winner),
		RecordedAt: m.RecordedAt,
	}
}

func toEntries(entries []models.Entry, loc *time.Location) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		entry := Entry{Kind: string(e.Kind)}
		switch {
		case e.Fine != nil:
			f := toFine(*e.Fine, loc)
			entry.Fine = &f
		case e.Match != nil:
			m := toMatch(*e.Match)
			entry.Match = &m
		default:
			continue
		}
		out = append(out, entry)
	}
	return out
}

func toSettlement(s models.SettlementEvent, pair models.Pair) Settlement {
	return Settlement{
		ID:             s.ID,
		OccurredAt:     s.OccurredAt,
		BalanceBefore:  toTotals(s.BalanceBefore, pair),
		Amount:         s.Amount,
		Payer:          string(s.Payer),
		Receiver:       string(s.Receiver),
		TransactionRef: s.TransactionRef,
		Settled:        s.Settled,
		SettledBy:      string(s.SettledBy),
	}
}

func toSettlements(settlements []models.SettlementEvent, pair models.Pair) []Settlement {
	out := make([]Settlement, 0, len(settlements))
	for _, s := range settlements {
		out = append(out, toSettlement(s, pair))
	}
	return out
}

func toReport(r models.MonthlyReport, pair models.Pair, loc *time.Location) MonthlyReport {
	matches := make(map[string]WinLoss, 2)
	for _, k := range pair.Keys() {
		wl := r.Matches[k]
		matches[string(k)] = WinLoss{Wins: wl.Wins, Losses: wl.Losses}
	}
	return MonthlyReport{
		Month:         r.Month.In(loc).Format("2006-01"),
		Start:         r.Start,
		End:           r.End,
		Fines:         toTotals(r.Fines, pair),
		Matches:       matches,
		SettledAmount: r.SettledAmount,
		Entries:       toEntries(r.Entries, loc),
		Settlements:   toSettlements(r.Settlements, pair),
	}
}
