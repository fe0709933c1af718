package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"vmsched/internal/scheduler"
	logx "vmsched/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, d := range []string{"", "none", " NONE "} {
		st, err := Open(Config{Driver: d}, logx.Nop())
		if err != nil || st != nil {
			t.Fatalf("driver %q: st=%v err=%v", d, st, err)
		}
	}
	if _, err := Open(Config{Driver: "postgres"}, logx.Nop()); err == nil {
		t.Fatal("unknown driver accepted")
	}
	if _, err := Open(Config{Driver: "file"}, logx.Nop()); err == nil {
		t.Fatal("file driver without path accepted")
	}
}

func TestFileStoreRecent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(dir, "audit", "vmsched.db")}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	ctx := context.Background()
	base := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	for i := range 5 {
		r := ActionRecord{At: base.Add(time.Duration(i) * time.Minute), VM: string(rune('a' + i)), Action: "power-up", Outcome: "executed"}
		if err := st.AppendAction(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	got, err := st.Recent(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0].VM != "e" || got[2].VM != "c" {
		t.Fatalf("recent = %+v", got)
	}
	if _, err := os.Stat(filepath.Join(dir, "audit", "vmsched.actions.jsonl")); err != nil {
		t.Fatal(err)
	}
}

func TestAuditorAppendsResults(t *testing.T) {
	t.Parallel()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(t.TempDir(), "a.log")}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	a := NewAuditor(st, logx.Nop())
	a.ActionDone(scheduler.ActionResult{VM: "web", Verb: "power-down", Outcome: scheduler.OutcomeFailed, Error: "boom", Took: 1500 * time.Millisecond})

	got, err := st.Recent(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Outcome != "failed" || got[0].Error != "boom" || got[0].TookMS != 1500 {
		t.Fatalf("records = %+v", got)
	}
}
