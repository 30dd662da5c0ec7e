package calculator

import (
	"time"

	"github.com/mmynk/courtledger/internal/models"
)

// RecentLimit is how many entries the home screen shows.
const RecentLimit = 5

// ParseYearMonth parses "YYYY-MM" into the first instant of that month in loc.
func ParseYearMonth(raw string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01", raw, loc)
	if err != nil {
		return time.Time{}, invalid("month", "%q is not in YYYY-MM form", raw)
	}
	return t, nil
}

// MonthBounds returns the inclusive window of the month containing t:
// the first day at 00:00:00 and the last day at 23:59:59.
func MonthBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	y, m, _ := t.In(loc).Date()
	start := time.Date(y, m, 1, 0, 0, 0, 0, loc)
	end := time.Date(y, m+1, 0, 23, 59, 59, 0, loc)
	return start, end
}

func within(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}

// MonthlyReport filters both logs to the month containing month and
// re-derives fine totals and win/loss counts inside that window.
// Global running totals are not consulted.
func MonthlyReport(entries []models.Entry, settlements []models.SettlementEvent, pair models.Pair, month time.Time, loc *time.Location) models.MonthlyReport {
	start, end := MonthBounds(month, loc)

	report := models.MonthlyReport{
		Month: start,
		Start: start,
		End:   end,
		Fines: models.NewTotals(pair),
		Matches: map[models.ParticipantKey]models.WinLoss{
			pair.A.Key: {},
			pair.B.Key: {},
		},
		Entries:     []models.Entry{},
		Settlements: []models.SettlementEvent{},
	}

	for _, e := range entries {
		if !within(e.Date(), start, end) {
			continue
		}
		report.Entries = append(report.Entries, e)

		switch e.Kind {
		case models.EntryFine:
			if e.Fine != nil && pair.Has(e.Fine.Owner) {
				report.Fines[e.Fine.Owner] += e.Fine.Amount
			}
		case models.EntryMatch:
			if e.Match == nil {
				continue
			}
			winner, err := Winner(pair, e.Match.ScoreA, e.Match.ScoreB)
			if err != nil {
				continue
			}
			loser := pair.Other(winner).Key
			w, l := report.Matches[winner], report.Matches[loser]
			w.Wins++
			l.Losses++
			report.Matches[winner], report.Matches[loser] = w, l
		}
	}

	for _, s := range settlements {
		if !within(s.OccurredAt, start, end) {
			continue
		}
		report.Settlements = append(report.Settlements, s)
		report.SettledAmount += s.Amount
	}

	return report
}

// Recent returns at most n entries from the front of the log.
func Recent(entries []models.Entry, n int) []models.Entry {
	if n <= 0 || n >= len(entries) {
		return entries
	}
	return entries[:n]
}
