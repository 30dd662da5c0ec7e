package calculator

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmynk/courtledger/internal/models"
)

// ParseScore converts form input into a score.
func ParseScore(field, raw string) (int, error) {
	score, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, invalid(field, "%q is not a whole number", raw)
	}
	return score, nil
}

// Winner returns the participant with the strictly higher score.
// Equal scores have no winner: badminton games cannot end level, so a tie
// is treated as a data-entry mistake rather than credited to either side.
func Winner(pair models.Pair, scoreA, scoreB int) (models.ParticipantKey, error) {
	switch {
	case scoreA > scoreB:
		return pair.A.Key, nil
	case scoreB > scoreA:
		return pair.B.Key, nil
	default:
		return "", invalid("score", "scores are tied at %d, a match needs a winner", scoreA)
	}
}

// RecordMatch validates the scores and returns the log with the match prepended.
// Fine totals are not affected.
func RecordMatch(entries []models.Entry, pair models.Pair, scoreA, scoreB int, now time.Time) ([]models.Entry, models.MatchEvent, error) {
	if scoreA < 0 {
		return entries, models.MatchEvent{}, invalid("score_a", "must not be negative")
	}
	if scoreB < 0 {
		return entries, models.MatchEvent{}, invalid("score_b", "must not be negative")
	}

	winner, err := Winner(pair, scoreA, scoreB)
	if err != nil {
		return entries, models.MatchEvent{}, err
	}

	match := models.MatchEvent{
		ID:         uuid.New().String(),
		ScoreA:     scoreA,
		ScoreB:     scoreB,
		Winner:     winner,
		RecordedAt: now,
	}

	newEntries := make([]models.Entry, 0, len(entries)+1)
	newEntries = append(newEntries, models.MatchEntry(match))
	newEntries = append(newEntries, entries...)

	return newEntries, match, nil
}

// ComputeStats tallies wins, losses and points over every match in entries.
// Each match credits one win and one loss, so wins of A equal losses of B.
func ComputeStats(entries []models.Entry, pair models.Pair) models.Stats {
	stats := models.Stats{
		Players: map[models.ParticipantKey]models.PlayerStats{
			pair.A.Key: {},
			pair.B.Key: {},
		},
	}

	for _, e := range entries {
		if e.Kind != models.EntryMatch || e.Match == nil {
			continue
		}
		m := e.Match
		a, b := stats.Players[pair.A.Key], stats.Players[pair.B.Key]

		// Re-derive rather than trust the stored winner.
		winner, err := Winner(pair, m.ScoreA, m.ScoreB)
		if err != nil {
			continue
		}
		if winner == pair.A.Key {
			a.Wins++
			b.Losses++
		} else {
			b.Wins++
			a.Losses++
		}
		a.TotalPoints += m.ScoreA
		b.TotalPoints += m.ScoreB

		stats.Players[pair.A.Key], stats.Players[pair.B.Key] = a, b
		stats.Matches++
	}

	return stats
}
