// Package sqldb implements storage.Store on top of database/sql.
// The SQLite and PostgreSQL backends open their own connections and run their
// own migrations, then share this implementation; queries are written with
// "?" placeholders and rebound for dialects that number them.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mmynk/courtledger/internal/models"
	"github.com/mmynk/courtledger/internal/storage"
)

// Ensure Store implements storage.Store
var _ storage.Store = (*Store)(nil)

// Placeholder selects how bind parameters are written.
type Placeholder int

const (
	// Question keeps "?" placeholders (SQLite).
	Question Placeholder = iota
	// Dollar rewrites them as $1, $2, ... (PostgreSQL).
	Dollar
)

// Store implements storage.Store using a *sql.DB.
type Store struct {
	db          *sql.DB
	placeholder Placeholder
}

// New wraps an already migrated database.
func New(db *sql.DB, placeholder Placeholder) *Store {
	return &Store{db: db, placeholder: placeholder}
}

// DB exposes the underlying pool.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return storage.Wrap("ping database", s.db.PingContext(ctx))
}

func (s *Store) rebind(query string) string {
	if s.placeholder != Dollar {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func toNanos(t time.Time) int64 {
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n)
}

const upsertTotal = `
	INSERT INTO participant_totals (participant, total) VALUES (?, ?)
	ON CONFLICT (participant) DO UPDATE SET total = participant_totals.total + excluded.total`

// AppendEntry inserts a fine or match; a fine also bumps its owner's total in the same transaction.
func (s *Store) AppendEntry(ctx context.Context, entry models.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storage.Wrap("begin transaction", err)
	}
	defer tx.Rollback()

	switch {
	case entry.Kind == models.EntryFine && entry.Fine != nil:
		f := entry.Fine
		_, err = tx.ExecContext(ctx, s.rebind(
			`INSERT INTO entries (id, kind, entry_date, recorded_at, owner, amount, reason)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`),
			f.ID, string(models.EntryFine), toNanos(f.OccurredAt), toNanos(f.RecordedAt),
			string(f.Owner), f.Amount, f.Reason,
		)
		if err != nil {
			return storage.Wrap("insert fine", err)
		}

		_, err = tx.ExecContext(ctx, s.rebind(upsertTotal), string(f.Owner), f.Amount)
		if err != nil {
			return storage.Wrap("update running total", err)
		}

	case entry.Kind == models.EntryMatch && entry.Match != nil:
		m := entry.Match
		_, err = tx.ExecContext(ctx, s.rebind(
			`INSERT INTO entries (id, kind, entry_date, recorded_at, score_a, score_b, winner)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`),
			m.ID, string(models.EntryMatch), toNanos(m.RecordedAt), toNanos(m.RecordedAt),
			m.ScoreA, m.ScoreB, string(m.Winner),
		)
		if err != nil {
			return storage.Wrap("insert match", err)
		}

	default:
		return storage.Wrap("append entry", fmt.Errorf("malformed entry of kind %q", entry.Kind))
	}

	if err := tx.Commit(); err != nil {
		return storage.Wrap("commit transaction", err)
	}
	return nil
}

// ListEntries retrieves entries most-recent-first.
func (s *Store) ListEntries(ctx context.Context, filter storage.EntryFilter) ([]models.Entry, error) {
	query := `SELECT id, kind, entry_date, recorded_at, owner, amount, reason, score_a, score_b, winner
		FROM entries WHERE 1=1`
	var args []any

	if filter.Kind != "" {
		query += " AND kind = ?"
		args = append(args, string(filter.Kind))
	}
	if !filter.From.IsZero() {
		query += " AND entry_date >= ?"
		args = append(args, toNanos(filter.From))
	}
	if !filter.To.IsZero() {
		query += " AND entry_date <= ?"
		args = append(args, toNanos(filter.To))
	}
	query += " ORDER BY recorded_at DESC, seq DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, storage.Wrap("list entries", err)
	}
	defer rows.Close()

	entries := []models.Entry{}
	for rows.Next() {
		var (
			id, kind              string
			entryDate, recorded   int64
			owner, reason, winner sql.NullString
			amount                sql.NullInt64
			scoreA, scoreB        sql.NullInt64
		)
		if err := rows.Scan(&id, &kind, &entryDate, &recorded, &owner, &amount, &reason, &scoreA, &scoreB, &winner); err != nil {
			return nil, storage.Wrap("scan entry", err)
		}

		switch models.EntryKind(kind) {
		case models.EntryFine:
			entries = append(entries, models.FineEntry(models.FineEvent{
				ID:         id,
				Owner:      models.ParticipantKey(owner.String),
				Amount:     amount.Int64,
				Reason:     reason.String,
				OccurredAt: fromNanos(entryDate),
				RecordedAt: fromNanos(recorded),
			}))
		case models.EntryMatch:
			entries = append(entries, models.MatchEntry(models.MatchEvent{
				ID:         id,
				ScoreA:     int(scoreA.Int64),
				ScoreB:     int(scoreB.Int64),
				Winner:     models.ParticipantKey(winner.String),
				RecordedAt: fromNanos(recorded),
			}))
		default:
			return nil, storage.Wrap("scan entry", fmt.Errorf("unknown entry kind %q for %s", kind, id))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Wrap("iterate entries", err)
	}

	return entries, nil
}

// AppendSettlement inserts the settlement with its snapshot and zeroes every total.
func (s *Store) AppendSettlement(ctx context.Context, settlement models.SettlementEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storage.Wrap("begin transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, s.rebind(
		`INSERT INTO settlements (id, occurred_at, amount, payer, receiver, transaction_ref, settled, settled_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		settlement.ID, toNanos(settlement.OccurredAt), settlement.Amount,
		string(settlement.Payer), string(settlement.Receiver), settlement.TransactionRef,
		settlement.Settled, string(settlement.SettledBy),
	)
	if err != nil {
		return storage.Wrap("insert settlement", err)
	}

	for participant, amount := range settlement.BalanceBefore {
		_, err = tx.ExecContext(ctx, s.rebind(
			`INSERT INTO settlement_balances (settlement_id, participant, amount) VALUES (?, ?, ?)`),
			settlement.ID, string(participant), amount,
		)
		if err != nil {
			return storage.Wrap("insert settlement balance", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE participant_totals SET total = 0`); err != nil {
		return storage.Wrap("reset running totals", err)
	}

	if err := tx.Commit(); err != nil {
		return storage.Wrap("commit transaction", err)
	}
	return nil
}

// ListSettlements retrieves settlements most-recent-first, with their snapshots.
func (s *Store) ListSettlements(ctx context.Context, filter storage.SettlementFilter) ([]models.SettlementEvent, error) {
	query := `SELECT id, occurred_at, amount, payer, receiver, transaction_ref, settled, settled_by
		FROM settlements WHERE 1=1`
	var args []any

	if !filter.From.IsZero() {
		query += " AND occurred_at >= ?"
		args = append(args, toNanos(filter.From))
	}
	if !filter.To.IsZero() {
		query += " AND occurred_at <= ?"
		args = append(args, toNanos(filter.To))
	}
	query += " ORDER BY occurred_at DESC, seq DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, storage.Wrap("list settlements", err)
	}
	defer rows.Close()

	settlements := []models.SettlementEvent{}
	index := make(map[string]int)
	for rows.Next() {
		var (
			st                         models.SettlementEvent
			occurred                   int64
			payer, receiver, settledBy string
		)
		if err := rows.Scan(&st.ID, &occurred, &st.Amount, &payer, &receiver, &st.TransactionRef, &st.Settled, &settledBy); err != nil {
			return nil, storage.Wrap("scan settlement", err)
		}
		st.OccurredAt = fromNanos(occurred)
		st.Payer = models.ParticipantKey(payer)
		st.Receiver = models.ParticipantKey(receiver)
		st.SettledBy = models.ParticipantKey(settledBy)
		st.BalanceBefore = models.Totals{}

		index[st.ID] = len(settlements)
		settlements = append(settlements, st)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Wrap("iterate settlements", err)
	}
	rows.Close()

	if len(settlements) == 0 {
		return settlements, nil
	}

	// Snapshots are small; load them in one pass rather than per settlement.
	balRows, err := s.db.QueryContext(ctx, `SELECT settlement_id, participant, amount FROM settlement_balances`)
	if err != nil {
		return nil, storage.Wrap("list settlement balances", err)
	}
	defer balRows.Close()

	for balRows.Next() {
		var id, participant string
		var amount int64
		if err := balRows.Scan(&id, &participant, &amount); err != nil {
			return nil, storage.Wrap("scan settlement balance", err)
		}
		if i, ok := index[id]; ok {
			settlements[i].BalanceBefore[models.ParticipantKey(participant)] = amount
		}
	}
	if err := balRows.Err(); err != nil {
		return nil, storage.Wrap("iterate settlement balances", err)
	}

	return settlements, nil
}

// GetTotals reads the totals projection.
func (s *Store) GetTotals(ctx context.Context) (models.Totals, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT participant, total FROM participant_totals`)
	if err != nil {
		return nil, storage.Wrap("get totals", err)
	}
	defer rows.Close()

	totals := models.Totals{}
	for rows.Next() {
		var participant string
		var total int64
		if err := rows.Scan(&participant, &total); err != nil {
			return nil, storage.Wrap("scan total", err)
		}
		totals[models.ParticipantKey(participant)] = total
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Wrap("iterate totals", err)
	}
	return totals, nil
}

// ReplaceTotals overwrites the totals projection in one transaction.
func (s *Store) ReplaceTotals(ctx context.Context, totals models.Totals) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storage.Wrap("begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM participant_totals`); err != nil {
		return storage.Wrap("clear totals", err)
	}
	for participant, total := range totals {
		_, err := tx.ExecContext(ctx, s.rebind(
			`INSERT INTO participant_totals (participant, total) VALUES (?, ?)`),
			string(participant), total,
		)
		if err != nil {
			return storage.Wrap("insert total", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storage.Wrap("commit transaction", err)
	}
	return nil
}
