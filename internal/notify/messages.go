// Package notify publishes recorded ledger events to a message broker.
// Publication is best effort: the event is already persisted when it is sent.
package notify

import (
	"encoding/json"
	"time"

	"github.com/mmynk/courtledger/internal/models"
)

// Type names the kind of event a notification carries.
type Type string

const (
	TypeFineRecorded       Type = "fine.recorded"
	TypeMatchRecorded      Type = "match.recorded"
	TypeSettlementRecorded Type = "settlement.recorded"
)

// Notification is the message sent for every recorded event.
type Notification struct {
	Type        Type            `json:"type"`
	ID          string          `json:"id"`
	Participant string          `json:"participant"`
	Amount      int64           `json:"amount,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}

type finePayload struct {
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

type matchPayload struct {
	ScoreA int    `json:"score_a"`
	ScoreB int    `json:"score_b"`
	Winner string `json:"winner"`
}

type settlementPayload struct {
	Payer          string           `json:"payer"`
	Receiver       string           `json:"receiver"`
	TransactionRef string           `json:"transaction_ref"`
	BalanceBefore  map[string]int64 `json:"balance_before"`
}

// FineRecorded builds the notification for a new fine; Participant is the owner.
func FineRecorded(f models.FineEvent) *Notification {
	payload, _ := json.Marshal(finePayload{Reason: f.Reason, OccurredAt: f.OccurredAt})
	return &Notification{
		Type:        TypeFineRecorded,
		ID:          f.ID,
		Participant: string(f.Owner),
		Amount:      f.Amount,
		Payload:     payload,
		Timestamp:   f.RecordedAt,
	}
}

// MatchRecorded builds the notification for a new match; Participant is the winner.
func MatchRecorded(m models.MatchEvent) *Notification {
	payload, _ := json.Marshal(matchPayload{ScoreA: m.ScoreA, ScoreB: m.ScoreB, Winner: string(m.Winner)})
	return &Notification{
		Type:        TypeMatchRecorded,
		ID:          m.ID,
		Participant: string(m.Winner),
		Payload:     payload,
		Timestamp:   m.RecordedAt,
	}
}

// SettlementRecorded builds the notification for a settlement; Participant is
// whoever recorded it.
func SettlementRecorded(s models.SettlementEvent) *Notification {
	before := make(map[string]int64, len(s.BalanceBefore))
	for k, v := range s.BalanceBefore {
		before[string(k)] = v
	}
	payload, _ := json.Marshal(settlementPayload{
		Payer:          string(s.Payer),
		Receiver:       string(s.Receiver),
		TransactionRef: s.TransactionRef,
		BalanceBefore:  before,
	})
	return &Notification{
		Type:        TypeSettlementRecorded,
		ID:          s.ID,
		Participant: string(s.SettledBy),
		Amount:      s.Amount,
		Payload:     payload,
		Timestamp:   s.OccurredAt,
	}
}

// ToJSON converts the notification to JSON bytes
func (n *Notification) ToJSON() ([]byte, error) {
	return json.Marshal(n)
}

// FromJSON creates a notification from JSON bytes
func FromJSON(data []byte) (*Notification, error) {
	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, err
	}
	return &n, nil
}
