package service

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
)

const (
	// LedgerServiceName is the fully-qualified name of the ledger service.
	LedgerServiceName = "courtledger.v1.LedgerService"
	// AuthServiceName is the fully-qualified name of the auth service.
	AuthServiceName = "courtledger.v1.AuthService"
)

// Procedure paths, as Connect routes them.
const (
	LedgerRecordFineProcedure       = "/" + LedgerServiceName + "/RecordFine"
	LedgerRecordMatchProcedure      = "/" + LedgerServiceName + "/RecordMatch"
	LedgerSettleProcedure           = "/" + LedgerServiceName + "/Settle"
	LedgerGetBalanceProcedure       = "/" + LedgerServiceName + "/GetBalance"
	LedgerGetStatsProcedure         = "/" + LedgerServiceName + "/GetStats"
	LedgerGetMonthlyReportProcedure = "/" + LedgerServiceName + "/GetMonthlyReport"
	LedgerListHistoryProcedure      = "/" + LedgerServiceName + "/ListHistory"
	LedgerListSettlementsProcedure  = "/" + LedgerServiceName + "/ListSettlements"

	AuthListParticipantsProcedure = "/" + AuthServiceName + "/ListParticipants"
	AuthLoginProcedure            = "/" + AuthServiceName + "/Login"
	AuthLogoutProcedure           = "/" + AuthServiceName + "/Logout"
	AuthWhoAmIProcedure           = "/" + AuthServiceName + "/WhoAmI"
)

// PublicProcedures need no token.
var PublicProcedures = []string{
	AuthListParticipantsProcedure,
	AuthLoginProcedure,
}

// codecOption selects the JSON codec for handlers and clients alike.
func codecOption() connect.Option {
	return connect.WithCodec(jsonCodec{})
}

func unary[Req, Res any](mux *http.ServeMux, procedure string, fn func(context.Context, *connect.Request[Req]) (*connect.Response[Res], error), opts []connect.HandlerOption) {
	mux.Handle(procedure, connect.NewUnaryHandler(procedure, fn, opts...))
}

// NewLedgerServiceHandler builds an HTTP handler for the ledger procedures.
// It returns the path on which to mount the handler and the handler itself.
func NewLedgerServiceHandler(svc *LedgerService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{codecOption()}, opts...)

	mux := http.NewServeMux()
	unary(mux, LedgerRecordFineProcedure, svc.RecordFine, opts)
	unary(mux, LedgerRecordMatchProcedure, svc.RecordMatch, opts)
	unary(mux, LedgerSettleProcedure, svc.Settle, opts)
	unary(mux, LedgerGetBalanceProcedure, svc.GetBalance, opts)
	unary(mux, LedgerGetStatsProcedure, svc.GetStats, opts)
	unary(mux, LedgerGetMonthlyReportProcedure, svc.GetMonthlyReport, opts)
	unary(mux, LedgerListHistoryProcedure, svc.ListHistory, opts)
	unary(mux, LedgerListSettlementsProcedure, svc.ListSettlements, opts)

	return "/" + LedgerServiceName + "/", mux
}

// NewAuthServiceHandler builds an HTTP handler for the auth procedures.
func NewAuthServiceHandler(svc *AuthService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{codecOption()}, opts...)

	mux := http.NewServeMux()
	unary(mux, AuthListParticipantsProcedure, svc.ListParticipants, opts)
	unary(mux, AuthLoginProcedure, svc.Login, opts)
	unary(mux, AuthLogoutProcedure, svc.Logout, opts)
	unary(mux, AuthWhoAmIProcedure, svc.WhoAmI, opts)

	return "/" + AuthServiceName + "/", mux
}

// NewClient returns a unary client for one procedure on baseURL.
func NewClient[Req, Res any](httpClient connect.HTTPClient, baseURL, procedure string, opts ...connect.ClientOption) *connect.Client[Req, Res] {
	opts = append([]connect.ClientOption{codecOption()}, opts...)
	return connect.NewClient[Req, Res](httpClient, baseURL+procedure, opts...)
}
