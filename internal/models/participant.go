package models

import "fmt"

// ParticipantKey is the stable identifier of a participant (e.g. "aniketnayak").
type ParticipantKey string

// Participant is one of the two people keeping the ledger.
type Participant struct {
	// Key is the login name and the identifier stored on every event.
	Key ParticipantKey

	// DisplayName is shown to the other participant (e.g. "Aniket").
	DisplayName string
}

// Pair is the fixed set of two participants a ledger is kept between.
// Slot A and slot B map to ScoreA and ScoreB on match events.
type Pair struct {
	A Participant
	B Participant
}

// NewPair builds a pair, rejecting empty or duplicate keys.
func NewPair(a, b Participant) (Pair, error) {
	if a.Key == "" || b.Key == "" {
		return Pair{}, fmt.Errorf("participant keys must not be empty")
	}
	if a.Key == b.Key {
		return Pair{}, fmt.Errorf("participant keys must differ, both are %q", a.Key)
	}
	return Pair{A: a, B: b}, nil
}

// Has reports whether key belongs to the pair.
func (p Pair) Has(key ParticipantKey) bool {
	return key == p.A.Key || key == p.B.Key
}

// Other returns the participant that is not key.
// The caller must make sure key is part of the pair.
func (p Pair) Other(key ParticipantKey) Participant {
	if key == p.A.Key {
		return p.B
	}
	return p.A
}

// Get returns the participant with the given key.
func (p Pair) Get(key ParticipantKey) (Participant, bool) {
	switch key {
	case p.A.Key:
		return p.A, true
	case p.B.Key:
		return p.B, true
	}
	return Participant{}, false
}

// Keys returns both keys, A first.
func (p Pair) Keys() []ParticipantKey {
	return []ParticipantKey{p.A.Key, p.B.Key}
}

// Totals is the running fine total per participant.
type Totals map[ParticipantKey]int64

// NewTotals returns zeroed totals for both members of the pair.
func NewTotals(p Pair) Totals {
	return Totals{p.A.Key: 0, p.B.Key: 0}
}

// Clone returns an independent copy.
func (t Totals) Clone() Totals {
	out := make(Totals, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Equal reports whether both totals hold the same amounts for every key in the pair.
func (t Totals) Equal(other Totals, p Pair) bool {
	for _, k := range p.Keys() {
		if t[k] != other[k] {
			return false
		}
	}
	return true
}
