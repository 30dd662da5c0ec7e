package service

import "time"

// Wire types for the courtledger.v1 services. Dates are "YYYY-MM-DD" and
// months "YYYY-MM" in the ledger time zone; instants are RFC 3339.

type Participant struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

type Fine struct {
	ID         string    `json:"id"`
	Owner      string    `json:"owner"`
	Amount     int64     `json:"amount"`
	Reason     string    `json:"reason"`
	Date       string    `json:"date"`
	RecordedAt time.Time `json:"recorded_at"`
}

type Match struct {
	ID         string    `json:"id"`
	ScoreA     int       `json:"score_a"`
	ScoreB     int       `json:"score_b"`
	Winner     string    `json:"winner"`
	RecordedAt time.Time `json:"recorded_at"`
}

type Entry struct {
	Kind  string `json:"kind"`
	Fine  *Fine  `json:"fine,omitempty"`
	Match *Match `json:"match,omitempty"`
}

type Settlement struct {
	ID             string           `json:"id"`
	OccurredAt     time.Time        `json:"occurred_at"`
	BalanceBefore  map[string]int64 `json:"balance_before"`
	Amount         int64            `json:"amount"`
	Payer          string           `json:"payer"`
	Receiver       string           `json:"receiver"`
	TransactionRef string           `json:"transaction_ref"`
	Settled        bool             `json:"settled"`
	SettledBy      string           `json:"settled_by"`
}

// Balance is the ledger state seen by the calling participant.
type Balance struct {
	Totals map[string]int64 `json:"totals"`
	// Amount > 0: the caller owes the other participant; < 0: the other owes the caller.
	Amount  int64  `json:"amount"`
	Message string `json:"message"`
}

type PlayerStats struct {
	Participant Participant `json:"participant"`
	Wins        int         `json:"wins"`
	Losses      int         `json:"losses"`
	TotalPoints int         `json:"total_points"`
}

type WinLoss struct {
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
}

type MonthlyReport struct {
	Month         string             `json:"month"`
	Start         time.Time          `json:"start"`
	End           time.Time          `json:"end"`
	Fines         map[string]int64   `json:"fines"`
	Matches       map[string]WinLoss `json:"matches"`
	SettledAmount int64              `json:"settled_amount"`
	Entries       []Entry            `json:"entries"`
	Settlements   []Settlement       `json:"settlements"`
}

type RecordFineRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
	// Date defaults to today.
	Date string `json:"date,omitempty"`
}

type RecordFineResponse struct {
	Fine    Fine    `json:"fine"`
	Balance Balance `json:"balance"`
}

// Scores arrive as typed into the form and are parsed server side.
type RecordMatchRequest struct {
	ScoreA string `json:"score_a"`
	ScoreB string `json:"score_b"`
}

type RecordMatchResponse struct {
	Match Match `json:"match"`
}

type SettleRequest struct {
	TransactionRef string `json:"transaction_ref"`
}

type SettleResponse struct {
	Settled    bool        `json:"settled"`
	Message    string      `json:"message,omitempty"`
	Settlement *Settlement `json:"settlement,omitempty"`
	Balance    Balance     `json:"balance"`
}

type GetBalanceRequest struct{}

type GetBalanceResponse struct {
	Balance Balance `json:"balance"`
	Recent  []Entry `json:"recent"`
}

type GetStatsRequest struct{}

type GetStatsResponse struct {
	Matches int           `json:"matches"`
	Players []PlayerStats `json:"players"`
}

type GetMonthlyReportRequest struct {
	// Month defaults to the current month.
	Month string `json:"month,omitempty"`
}

type GetMonthlyReportResponse struct {
	Report MonthlyReport `json:"report"`
}

type ListHistoryRequest struct {
	// Kind is "fine", "match" or empty for both.
	Kind string `json:"kind,omitempty"`
	// Limit of 0 returns everything.
	Limit int `json:"limit,omitempty"`
}

type ListHistoryResponse struct {
	Entries []Entry `json:"entries"`
}

type ListSettlementsRequest struct {
	Limit int `json:"limit,omitempty"`
}

type ListSettlementsResponse struct {
	Settlements []Settlement `json:"settlements"`
}

type ListParticipantsRequest struct{}

type ListParticipantsResponse struct {
	Participants []Participant `json:"participants"`
}

type LoginRequest struct {
	Participant string `json:"participant"`
	Password    string `json:"password"`
}

type LoginResponse struct {
	Participant Participant `json:"participant"`
	Token       string      `json:"token"`
	ExpiresAt   time.Time   `json:"expires_at"`
}

type LogoutRequest struct{}

type LogoutResponse struct{}

type WhoAmIRequest struct{}

type WhoAmIResponse struct {
	Participant Participant `json:"participant"`
	ExpiresAt   time.Time   `json:"expires_at"`
}
