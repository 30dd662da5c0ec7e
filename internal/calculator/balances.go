package calculator

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmynk/courtledger/internal/models"
)

// ComputeBalance returns self's total minus the other participant's total.
// Positive = self owes the other participant, negative = the other owes self,
// zero = settled.
func ComputeBalance(totals models.Totals, pair models.Pair, self models.ParticipantKey) int64 {
	other := pair.Other(self).Key
	return totals[self] - totals[other]
}

// BalanceMessage phrases balance (as returned by ComputeBalance for self)
// from self's point of view.
func BalanceMessage(pair models.Pair, self models.ParticipantKey, balance int64) string {
	other := pair.Other(self).DisplayName
	switch {
	case balance > 0:
		return fmt.Sprintf("You owe %s ₹%d", other, balance)
	case balance < 0:
		return fmt.Sprintf("%s owes you ₹%d", other, -balance)
	default:
		return "All settled"
	}
}

// DeriveTotals rebuilds the running totals from the logs.
//
// Algorithm:
// - Every fine adds its amount to the owner's total
// - Every settlement subtracts the snapshot it zeroed from each participant
//
// Because a settlement stores exactly the totals it cleared, the result equals
// the sum of fines since the last settlement, whatever order the logs are in.
func DeriveTotals(entries []models.Entry, settlements []models.SettlementEvent, pair models.Pair) models.Totals {
	totals := models.NewTotals(pair)

	for _, e := range entries {
		if e.Kind != models.EntryFine || e.Fine == nil {
			continue
		}
		if !pair.Has(e.Fine.Owner) {
			continue
		}
		totals[e.Fine.Owner] += e.Fine.Amount
	}

	for _, s := range settlements {
		for _, k := range pair.Keys() {
			totals[k] -= s.BalanceBefore[k]
		}
	}

	return totals
}

// Settle clears the outstanding balance.
//
// It returns ErrNothingToSettle when the totals are already even, and a
// ValidationError when transactionRef is blank. On success the returned event
// carries the pre-settlement snapshot and the returned totals are zero for both
// participants, regardless of who initiated the settlement.
func Settle(totals models.Totals, pair models.Pair, transactionRef string, settledBy models.ParticipantKey, now time.Time) (models.SettlementEvent, models.Totals, error) {
	balance := ComputeBalance(totals, pair, pair.A.Key)
	if balance == 0 {
		return models.SettlementEvent{}, totals, ErrNothingToSettle
	}

	ref := strings.TrimSpace(transactionRef)
	if ref == "" {
		return models.SettlementEvent{}, totals, invalid("transaction_ref", "a transaction reference is required")
	}
	if !pair.Has(settledBy) {
		return models.SettlementEvent{}, totals, invalid("settled_by", "%q is not a participant", settledBy)
	}

	payer, receiver := pair.A.Key, pair.B.Key
	amount := balance
	if balance < 0 {
		payer, receiver = pair.B.Key, pair.A.Key
		amount = -balance
	}

	before := models.NewTotals(pair)
	for _, k := range pair.Keys() {
		before[k] = totals[k]
	}

	event := models.SettlementEvent{
		ID:             uuid.New().String(),
		OccurredAt:     now,
		BalanceBefore:  before,
		Amount:         amount,
		Payer:          payer,
		Receiver:       receiver,
		TransactionRef: ref,
		Settled:        true,
		SettledBy:      settledBy,
	}

	return event, models.NewTotals(pair), nil
}
