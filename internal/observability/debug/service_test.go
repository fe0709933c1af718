package debug

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	logx "vmsched/pkg/logx"
)

func newTestService(ready error) *Service {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "vmsched_test_total", Help: "t"})
	reg.MustRegister(c)
	c.Inc()
	return New(Config{}, Probes{
		Ready:    func() error { return ready },
		Status:   func(context.Context) any { return map[string]int{"tags": 3} },
		Gatherer: reg,
	}, logx.Nop())
}

func get(t *testing.T, h http.Handler, path, token string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	body, _ := io.ReadAll(rec.Body)
	return rec.Code, string(body)
}

func TestHandlerEndpoints(t *testing.T) {
	t.Parallel()
	h := newTestService(nil).Handler(Config{})

	tests := []struct {
		path     string
		wantCode int
		contains string
	}{
		{"/healthz", http.StatusOK, "ok"},
		{"/readyz", http.StatusOK, "ready"},
		{"/status", http.StatusOK, `"tags": 3`},
		{"/metrics", http.StatusOK, "vmsched_test_total 1"},
		{"/debug/pprof/", http.StatusNotFound, ""},
	}
	for _, tc := range tests {
		code, body := get(t, h, tc.path, "")
		if code != tc.wantCode || !strings.Contains(body, tc.contains) {
			t.Errorf("%s: code=%d body=%q", tc.path, code, body)
		}
	}
}

func TestReadyzReportsNotReady(t *testing.T) {
	t.Parallel()
	h := newTestService(errors.New("no session yet")).Handler(Config{})
	code, body := get(t, h, "/readyz", "")
	if code != http.StatusServiceUnavailable || !strings.Contains(body, "no session yet") {
		t.Fatalf("code=%d body=%q", code, body)
	}
}

func TestTokenAuth(t *testing.T) {
	t.Parallel()
	h := newTestService(nil).Handler(Config{Token: "s3cret", Pprof: true})
	if code, _ := get(t, h, "/healthz", ""); code != http.StatusOK {
		t.Fatalf("healthz needs auth: %d", code)
	}
	if code, _ := get(t, h, "/status", ""); code != http.StatusUnauthorized {
		t.Fatalf("status without token: %d", code)
	}
	if code, _ := get(t, h, "/status", "s3cret"); code != http.StatusOK {
		t.Fatalf("status with token: %d", code)
	}
	if code, _ := get(t, h, "/debug/pprof/?token=s3cret", ""); code != http.StatusOK {
		t.Fatalf("pprof with query token: %d", code)
	}
}

func TestReconfigureStartsAndStops(t *testing.T) {
	t.Parallel()
	s := newTestService(nil)
	ctx := context.Background()
	s.Reconfigure(ctx, Config{Enabled: true, Addr: "127.0.0.1:0"})

	deadline := time.Now().Add(2 * time.Second)
	for s.Addr() == "" && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	addr := s.Addr()
	if addr == "" {
		t.Fatal("server did not start")
	}
	resp, err := http.Get("http://" + addr + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz = %d", resp.StatusCode)
	}

	s.Reconfigure(ctx, Config{Enabled: false})
	if s.Addr() != "" {
		t.Fatal("server still bound after disable")
	}
}

func TestIsLoopbackAddr(t *testing.T) {
	t.Parallel()
	for addr, want := range map[string]bool{
		"127.0.0.1:6060": true,
		"localhost:1":    true,
		"[::1]:80":       true,
		":6060":          false,
		"0.0.0.0:6060":   false,
		"10.0.0.1:6060":  false,
		"bad":            false,
	} {
		if got := isLoopbackAddr(addr); got != want {
			t.Errorf("%s: got %v want %v", addr, got, want)
		}
	}
}
