package director

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"vmsched/internal/cloud"
	"vmsched/internal/cloud/httpx"
	logx "vmsched/pkg/logx"
)

func newClient() *Client {
	return New(httpx.New(httpx.Config{RetryMax: -1}, logx.Nop()))
}

func TestListVMsPaging(t *testing.T) {
	t.Parallel()
	const total = 130
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		start := (page - 1) * PageSize
		end := min(start+PageSize, total)
		fmt.Fprintf(w, `{"total":%d,"record":[`, total)
		for i := start; i < end; i++ {
			if i > start {
				fmt.Fprint(w, ",")
			}
			fmt.Fprintf(w, `{"href":"h%d","name":"vm%d","status":"POWERED_ON"}`, i, i)
		}
		fmt.Fprint(w, "]}")
	}))
	defer srv.Close()

	s := cloud.Session{AccessToken: "tok", Endpoint: srv.URL}
	vms, err := newClient().ListVMs(context.Background(), s, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(vms) != total {
		t.Fatalf("got %d vms, want %d", len(vms), total)
	}
	if vms[129].Name != "vm129" || vms[0].Status != cloud.StatusPoweredOn {
		t.Fatalf("unexpected records: %+v %+v", vms[0], vms[129])
	}

	s.AccessToken = "stale"
	if _, err := newClient().ListVMs(context.Background(), s, ""); !cloud.IsUnauthorized(err) {
		t.Fatalf("err = %v, want unauthorized", err)
	}
}

func TestListVMsFilter(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("filter"); got != "name==web-1" {
			t.Errorf("filter = %q", got)
		}
		_, _ = w.Write([]byte(`{"total":1,"record":[{"href":"h","name":"web-1","status":8,"isVAppTemplate":false}]}`))
	}))
	defer srv.Close()
	vms, err := newClient().ListVMs(context.Background(), cloud.Session{AccessToken: "t", Endpoint: srv.URL}, cloud.NameFilter("web-1"))
	if err != nil || len(vms) != 1 || vms[0].Status != cloud.StatusPoweredOff {
		t.Fatalf("vms = %+v, err = %v", vms, err)
	}
}

func TestMetadata(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/vm-1/metadata" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"metadataEntry":[{"key":"ibm.manage.up","typedValue":{"value":"0 8 * * 1-5"}},{"key":"n","typedValue":{"value":3}}]}`))
	}))
	defer srv.Close()
	s := cloud.Session{AccessToken: "t", Endpoint: srv.URL}
	md, err := newClient().Metadata(context.Background(), s, srv.URL+"/vm-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(md) != 2 || md[0].Value != "0 8 * * 1-5" || md[1].Value != "3" {
		t.Fatalf("metadata = %+v", md)
	}
}

func TestPower(t *testing.T) {
	t.Parallel()
	var on, off atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if r.Header.Get("Accept") != acceptPower {
			t.Errorf("accept = %s", r.Header.Get("Accept"))
		}
		switch r.URL.Path {
		case "/vm/power/action/powerOn":
			on.Add(1)
		case "/vm/power/action/powerOff":
			off.Add(1)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()
	s := cloud.Session{AccessToken: "t", Endpoint: srv.URL}
	c := newClient()
	if err := c.PowerOn(context.Background(), s, srv.URL+"/vm"); err != nil {
		t.Fatal(err)
	}
	if err := c.PowerOff(context.Background(), s, srv.URL+"/vm"); err != nil {
		t.Fatal(err)
	}
	if on.Load() != 1 || off.Load() != 1 {
		t.Fatalf("on=%d off=%d", on.Load(), off.Load())
	}
}
