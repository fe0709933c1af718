package iam

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"vmsched/internal/cloud"
	"vmsched/internal/cloud/httpx"
	logx "vmsched/pkg/logx"
)

func TestToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("grant_type") != grantTypeAPIKey {
			t.Errorf("grant_type = %q", r.PostForm.Get("grant_type"))
		}
		if r.PostForm.Get("apikey") != "good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"iam-tok","token_type":"Bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	c := New(httpx.New(httpx.Config{RetryMax: -1}, logx.Nop()), srv.URL)
	tok, err := c.Token(context.Background(), "good")
	if err != nil {
		t.Fatal(err)
	}
	if tok.AccessToken != "iam-tok" {
		t.Fatalf("token = %+v", tok)
	}
	if _, err := c.Token(context.Background(), "bad"); !cloud.IsUnauthorized(err) {
		t.Fatalf("err = %v, want unauthorized", err)
	}
	if _, err := c.Token(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty key")
	}
}
