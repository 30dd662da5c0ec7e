package calculator

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmynk/courtledger/internal/models"
)

// FineLookbackDays is how far back a fine may be dated, inclusive.
const FineLookbackDays = 7

// MaxFineAmount caps a single fine.
const MaxFineAmount int64 = 100_000

// maxTotal keeps both totals small enough that their difference fits in an int64.
const maxTotal = math.MaxInt64 / 2

// DaysBack returns the number of calendar days between day and now in loc.
// Time of day is ignored; a future day yields a negative number.
func DaysBack(day, now time.Time, loc *time.Location) int {
	d := calendarDay(day, loc)
	today := calendarDay(now, loc)
	return int(today.Sub(d).Hours() / 24)
}

// StartOfDay returns midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// calendarDay maps t onto a UTC midnight so day arithmetic is immune to DST.
func calendarDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ValidateFineDate checks that day falls inside the lookback window ending today.
func ValidateFineDate(day, now time.Time, loc *time.Location) error {
	back := DaysBack(day, now, loc)
	if back < 0 || back > FineLookbackDays {
		return invalid("date", "fine date must be within the last %d days", FineLookbackDays)
	}
	return nil
}

// RecordFine validates a new fine and returns the log with the fine prepended
// and the totals with the owner's total increased. Inputs are left untouched.
// A zero occurredAt means today.
func RecordFine(
	entries []models.Entry,
	totals models.Totals,
	pair models.Pair,
	owner models.ParticipantKey,
	amount int64,
	reason string,
	occurredAt time.Time,
	now time.Time,
	loc *time.Location,
) ([]models.Entry, models.Totals, models.FineEvent, error) {
	if !pair.Has(owner) {
		return entries, totals, models.FineEvent{}, invalid("owner", "%q is not a participant", owner)
	}
	if amount <= 0 {
		return entries, totals, models.FineEvent{}, invalid("amount", "must be a positive whole number")
	}
	if amount > MaxFineAmount {
		return entries, totals, models.FineEvent{}, invalid("amount", "must not exceed %d", MaxFineAmount)
	}
	if totals[owner] > maxTotal-amount {
		return entries, totals, models.FineEvent{}, invalid("amount", "outstanding total for %s is too large, settle first", owner)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return entries, totals, models.FineEvent{}, invalid("reason", "must not be empty")
	}
	if occurredAt.IsZero() {
		occurredAt = now
	}
	if err := ValidateFineDate(occurredAt, now, loc); err != nil {
		return entries, totals, models.FineEvent{}, err
	}

	fine := models.FineEvent{
		ID:         uuid.New().String(),
		Owner:      owner,
		Amount:     amount,
		Reason:     reason,
		OccurredAt: StartOfDay(occurredAt, loc),
		RecordedAt: now,
	}

	newEntries := make([]models.Entry, 0, len(entries)+1)
	newEntries = append(newEntries, models.FineEntry(fine))
	newEntries = append(newEntries, entries...)

	newTotals := models.NewTotals(pair)
	for k, v := range totals {
		newTotals[k] = v
	}
	newTotals[owner] += amount

	return newEntries, newTotals, fine, nil
}

// ParseFineDate parses a "YYYY-MM-DD" form value in loc. An empty value
// yields the zero time, which RecordFine treats as today.
func ParseFineDate(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation("2006-01-02", raw, loc)
	if err != nil {
		return time.Time{}, invalid("date", "%q is not in YYYY-MM-DD form", raw)
	}
	return t, nil
}
