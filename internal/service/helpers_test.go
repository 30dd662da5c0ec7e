package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/courtledger/internal/auth"
	"github.com/mmynk/courtledger/internal/metrics"
	"github.com/mmynk/courtledger/internal/middleware"
	"github.com/mmynk/courtledger/internal/models"
	"github.com/mmynk/courtledger/internal/notify"
	"github.com/mmynk/courtledger/internal/storage"
	"github.com/mmynk/courtledger/internal/storage/sqlite"
)

var (
	testPair = models.Pair{
		A: models.Participant{Key: "aniketnayak", DisplayName: "Aniket"},
		B: models.Participant{Key: "souravssk", DisplayName: "Sourav"},
	}
	passwords = map[models.ParticipantKey]string{
		"aniketnayak": "shuttlecock",
		"souravssk":   "smash-and-drop",
	}

	ist = time.FixedZone("IST", 5*3600+1800)
)

// clock is a settable time source shared between the test and the server.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// recordingPublisher keeps every notification; err makes Publish fail.
type recordingPublisher struct {
	mu   sync.Mutex
	sent []*notify.Notification
	err  error
}

func (p *recordingPublisher) Publish(ctx context.Context, n *notify.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, n)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []notify.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]notify.Type, 0, len(p.sent))
	for _, n := range p.sent {
		out = append(out, n.Type)
	}
	return out
}

// testEnv is a running server plus everything a test needs to poke at it.
type testEnv struct {
	url       string
	store     storage.Store
	ledger    *LedgerService
	metrics   *metrics.Metrics
	publisher *recordingPublisher
	clock     *clock
}

func newSQLiteStore(t *testing.T) storage.Store {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "courtledger-service-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := sqlite.New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// setupTestServer wires both services the way cmd/server does, on top of store.
func setupTestServer(t *testing.T, store storage.Store) *testEnv {
	t.Helper()

	hashes := make(map[models.ParticipantKey]string, 2)
	for key, pw := range passwords {
		h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
		if err != nil {
			t.Fatalf("failed to hash password: %v", err)
		}
		hashes[key] = string(h)
	}
	authenticator, err := auth.NewPasswordAuthenticator(testPair, hashes)
	if err != nil {
		t.Fatalf("failed to create authenticator: %v", err)
	}
	jwtManager := auth.NewJWTManager("service-test-secret", time.Hour)
	revoker := auth.NewMemoryRevoker()

	m := metrics.New(prometheus.NewRegistry())
	pub := &recordingPublisher{}
	clk := &clock{now: time.Date(2026, time.March, 20, 19, 0, 0, 0, ist)}

	ledger := NewLedgerService(store, testPair, ist, pub, m)
	ledger.now = clk.Now
	authSvc := NewAuthService(authenticator, jwtManager, revoker, testPair, nil)

	interceptors := connect.WithInterceptors(
		middleware.LoggingInterceptor(),
		middleware.MetricsInterceptor(m),
		middleware.RequireAuth(jwtManager, revoker, PublicProcedures...),
	)

	mux := http.NewServeMux()
	mux.Handle(NewLedgerServiceHandler(ledger, interceptors))
	mux.Handle(NewAuthServiceHandler(authSvc, interceptors))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &testEnv{
		url:       server.URL,
		store:     store,
		ledger:    ledger,
		metrics:   m,
		publisher: pub,
		clock:     clk,
	}
}

// call invokes procedure with msg, adding the bearer token when not empty.
func call[Req, Res any](t *testing.T, env *testEnv, procedure, token string, msg *Req) (*Res, error) {
	t.Helper()
	client := NewClient[Req, Res](http.DefaultClient, env.url, procedure)
	req := connect.NewRequest(msg)
	if token != "" {
		req.Header().Set("Authorization", "Bearer "+token)
	}
	resp, err := client.CallUnary(context.Background(), req)
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func login(t *testing.T, env *testEnv, key models.ParticipantKey) string {
	t.Helper()
	resp, err := call[LoginRequest, LoginResponse](t, env, AuthLoginProcedure, "", &LoginRequest{
		Participant: string(key),
		Password:    passwords[key],
	})
	if err != nil {
		t.Fatalf("Login(%s) failed: %v", key, err)
	}
	return resp.Token
}

func wantCode(t *testing.T, err error, code connect.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", code)
	}
	var connectErr *connect.Error
	if !errors.As(err, &connectErr) {
		t.Fatalf("expected a connect error, got %T: %v", err, err)
	}
	if connectErr.Code() != code {
		t.Fatalf("code = %v, want %v (%v)", connectErr.Code(), code, err)
	}
}

var storageAll = storage.EntryFilter{}
