package models

import "time"

// EntryKind tags an element of the unified entry log.
type EntryKind string

const (
	EntryFine  EntryKind = "fine"
	EntryMatch EntryKind = "match"
)

// Valid reports whether k is a known kind.
func (k EntryKind) Valid() bool {
	return k == EntryFine || k == EntryMatch
}

// FineEvent is a cash penalty a participant recorded against themselves.
type FineEvent struct {
	// ID is the unique identifier for the fine (UUID format).
	ID string

	// Owner is the participant who owes the fine.
	Owner ParticipantKey

	// Amount is always positive.
	Amount int64

	// Reason is a short free-text note (e.g. "no-show").
	Reason string

	// OccurredAt is the day the fine applies to, at most seven days back.
	OccurredAt time.Time

	// RecordedAt is when the fine was entered.
	RecordedAt time.Time
}

// MatchEvent is a recorded game between the two participants.
type MatchEvent struct {
	// ID is the unique identifier for the match (UUID format).
	ID string

	// ScoreA and ScoreB are the points of pair slot A and slot B.
	ScoreA int
	ScoreB int

	// Winner is derived from the scores; it is stored for listing convenience
	// but always recomputed when a match is recorded.
	Winner ParticipantKey

	// RecordedAt is when the match was logged.
	RecordedAt time.Time
}

// Entry is one element of the unified fine/match log.
// Exactly one of Fine and Match is set, according to Kind.
type Entry struct {
	Kind  EntryKind
	Fine  *FineEvent
	Match *MatchEvent
}

// FineEntry wraps a fine as a log entry.
func FineEntry(f FineEvent) Entry {
	return Entry{Kind: EntryFine, Fine: &f}
}

// MatchEntry wraps a match as a log entry.
func MatchEntry(m MatchEvent) Entry {
	return Entry{Kind: EntryMatch, Match: &m}
}

// ID returns the identifier of the wrapped event.
func (e Entry) ID() string {
	switch {
	case e.Fine != nil:
		return e.Fine.ID
	case e.Match != nil:
		return e.Match.ID
	}
	return ""
}

// Date returns the date the entry is filed under: the occurrence day for fines
// and the recording time for matches. Monthly reports bucket on this value.
func (e Entry) Date() time.Time {
	switch {
	case e.Fine != nil:
		return e.Fine.OccurredAt
	case e.Match != nil:
		return e.Match.RecordedAt
	}
	return time.Time{}
}

// RecordedAt returns when the entry was written.
func (e Entry) RecordedAt() time.Time {
	switch {
	case e.Fine != nil:
		return e.Fine.RecordedAt
	case e.Match != nil:
		return e.Match.RecordedAt
	}
	return time.Time{}
}

// SettlementEvent represents a payment that zeroed both running fine totals.
type SettlementEvent struct {
	// ID is the unique identifier for the settlement (UUID format).
	ID string

	// OccurredAt is when the settlement was recorded.
	OccurredAt time.Time

	// BalanceBefore is the snapshot of both totals right before they were zeroed.
	BalanceBefore Totals

	// Amount is |BalanceBefore[A] - BalanceBefore[B]|.
	Amount int64

	// Payer had the larger total; Receiver is the other participant.
	Payer    ParticipantKey
	Receiver ParticipantKey

	// TransactionRef identifies the real payment (e.g. a UPI reference).
	TransactionRef string

	// Settled is always true for recorded settlements.
	Settled bool

	// SettledBy is the participant who recorded the settlement.
	SettledBy ParticipantKey
}
