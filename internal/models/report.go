package models

import "time"

// PlayerStats is one participant's head-to-head record.
type PlayerStats struct {
	Wins        int
	Losses      int
	TotalPoints int
}

// Stats is the head-to-head record for a pair over a set of matches.
type Stats struct {
	Matches int
	Players map[ParticipantKey]PlayerStats
}

// WinLoss is a win/loss count inside a report window.
type WinLoss struct {
	Wins   int
	Losses int
}

// MonthlyReport aggregates one calendar month of activity.
type MonthlyReport struct {
	// Month is the first instant of the month in the ledger's time zone.
	Month time.Time

	// Start and End bound the window inclusively (End is the last second of the month).
	Start time.Time
	End   time.Time

	// Fines is the sum of fines per participant dated inside the month.
	Fines Totals

	// Matches is the win/loss record per participant inside the month.
	Matches map[ParticipantKey]WinLoss

	// SettledAmount is the sum of settlement amounts recorded inside the month.
	SettledAmount int64

	// Entries and Settlements are the filtered logs, most-recent-first.
	Entries     []Entry
	Settlements []SettlementEvent
}
