package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"vmsched/internal/cloud"
	logx "vmsched/pkg/logx"
)

func newTestClient(cfg Config) *Client {
	c := New(cfg, logx.Nop())
	c.sleep = func(context.Context, time.Duration) error { return nil }
	return c
}

func TestDoDecodesJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer abc" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("page") != "2" {
			t.Errorf("page = %q", r.URL.Query().Get("page"))
		}
		_, _ = w.Write([]byte(`{"total":3}`))
	}))
	defer srv.Close()

	var out struct {
		Total int `json:"total"`
	}
	c := newTestClient(Config{})
	_, err := c.Do(context.Background(), Request{URL: srv.URL, Header: BearerHeader("abc"), Query: map[string][]string{"page": {"2"}}}, &out)
	if err != nil {
		t.Fatal(err)
	}
	if out.Total != 3 {
		t.Fatalf("total = %d", out.Total)
	}
}

func TestUnauthorizedIsClassifiedAndNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(Config{RetryMax: 3})
	_, err := c.Do(context.Background(), Request{URL: srv.URL}, nil)
	if !cloud.IsUnauthorized(err) {
		t.Fatalf("err = %v, want unauthorized", err)
	}
	if StatusCode(err) != http.StatusUnauthorized {
		t.Fatalf("StatusCode = %d", StatusCode(err))
	}
	if hits.Load() != 1 {
		t.Fatalf("hits = %d, want 1", hits.Load())
	}
}

func TestRetriesServerErrorsOnGet(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(Config{RetryMax: 3})
	if _, err := c.Do(context.Background(), Request{URL: srv.URL}, nil); err != nil {
		t.Fatal(err)
	}
	if hits.Load() != 3 {
		t.Fatalf("hits = %d, want 3", hits.Load())
	}
}

func TestPostIsNotRetriedOnInternalError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(Config{RetryMax: 3})
	_, err := c.Do(context.Background(), Request{Method: http.MethodPost, URL: srv.URL}, nil)
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusInternalServerError {
		t.Fatalf("err = %v", err)
	}
	if cloud.IsUnauthorized(err) {
		t.Fatal("500 must not be unauthorized")
	}
	if hits.Load() != 1 {
		t.Fatalf("hits = %d, want 1", hits.Load())
	}
}

func TestFormBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Error(err)
		}
		if r.Header.Get("Content-Type") != "application/x-www-form-urlencoded" || r.PostForm.Get("apikey") != "k" {
			t.Errorf("unexpected form: %v %v", r.Header.Get("Content-Type"), r.PostForm)
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(Config{})
	if _, err := c.Do(context.Background(), Request{Method: http.MethodPost, URL: srv.URL, Form: map[string][]string{"apikey": {"k"}}}, nil); err != nil {
		t.Fatal(err)
	}
}

func TestRedact(t *testing.T) {
	got := redact("https://x.example/p?apikey=secret&a=1")
	if got != "https://x.example/p?a=1&apikey=REDACTED" {
		t.Fatalf("redact = %s", got)
	}
}
