package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestServerEndpoints(t *testing.T) {
	reg := NewRegistry()
	m := New(reg)
	m.FinesRecorded.WithLabelValues("aniketnayak").Inc()
	m.Settlements.Inc()

	var down atomic.Bool
	srv := NewServer(":0", reg, func(ctx context.Context) error {
		if down.Load() {
			return errors.New("database down")
		}
		return nil
	})
	ts := httptest.NewServer(srv.Handler)
	defer ts.Close()

	get := func(path string) (int, string) {
		t.Helper()
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s failed: %v", path, err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(body)
	}

	code, body := get("/metrics")
	if code != http.StatusOK {
		t.Fatalf("/metrics status = %d", code)
	}
	for _, want := range []string{
		`courtledger_fines_recorded_total{participant="aniketnayak"} 1`,
		"courtledger_settlements_total 1",
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("/metrics missing %q", want)
		}
	}

	if code, body := get("/healthz"); code != http.StatusOK || body != "ok" {
		t.Errorf("/healthz = %d %q, want 200 ok", code, body)
	}

	down.Store(true)
	if code, body := get("/healthz"); code != http.StatusServiceUnavailable || !strings.Contains(body, "database down") {
		t.Errorf("/healthz = %d %q, want 503 with cause", code, body)
	}
}

func TestNewPanicsOnDoubleRegistration(t *testing.T) {
	reg := NewRegistry()
	New(reg)

	defer func() {
		if recover() == nil {
			t.Error("expected duplicate registration to panic")
		}
	}()
	New(reg)
}
