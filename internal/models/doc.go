// Package models defines the core domain models for courtledger.
//
// # Participants
//
// The ledger is kept between exactly two participants, configured at startup
// as slot A and slot B. A Pair carries both and is handed to every ledger
// calculation; nothing reads the current participant from ambient state.
//
// # Event logs
//
//   - Entry: one element of the unified log; either a FineEvent or a MatchEvent
//   - SettlementEvent: a payment that cleared the outstanding fines
//
// Both logs are append-only. Entries are kept most-recent-first.
//
// # Totals
//
// Totals is the running fine total per participant since the last settlement.
// It is a projection of the logs: stores persist it for cheap reads, but the
// logs are the source of truth and the totals can always be rebuilt from them.
package models
