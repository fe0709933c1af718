package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"
)

func TestWriterLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "debug").With(String("comp", "test"))
	log.Info("hello", Int("n", 3), Err(errors.New("boom")), Secret("token"))

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if m["message"] != "hello" || m["comp"] != "test" || m["n"] != float64(3) || m["err"] != "boom" {
		t.Fatalf("unexpected line: %v", m)
	}
	if m["token"] != "<<secret>>" {
		t.Fatalf("secret leaked: %v", m["token"])
	}
	if !strings.HasPrefix(m["caller"].(string), "logx_test.go:") {
		t.Fatalf("caller = %v", m["caller"])
	}
}

func TestWriterLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "warn")
	log.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info written at warn level: %s", buf.String())
	}
	if log.Enabled(LevelInfo) {
		t.Fatal("info should be disabled")
	}
	log.Error("kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Fatalf("error not written: %s", buf.String())
	}
}

func TestZeroLoggerIsNop(t *testing.T) {
	var l Logger
	if !l.IsZero() {
		t.Fatal("zero logger should report IsZero")
	}
	l.Error("nothing happens")
	if Nop().IsZero() {
		t.Fatal("Nop should not be zero")
	}
}

type recordingSender struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recordingSender) SendText(_ context.Context, text string) error {
	r.mu.Lock()
	r.msgs = append(r.msgs, text)
	r.mu.Unlock()
	return nil
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

func TestServiceChatSinkForwardsWarnings(t *testing.T) {
	snd := &recordingSender{}
	svc, log := New(Config{Level: "debug", Console: false, File: FileConfig{Enabled: false}, Chat: ChatConfig{Enabled: true, MinLevel: "warn", RatePerSec: 100}}, snd)
	defer svc.Close()

	log.Info("quiet")
	log.Warn("loud", String("vm", "db01"))

	deadline := time.Now().Add(2 * time.Second)
	for snd.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	snd.mu.Lock()
	defer snd.mu.Unlock()
	if len(snd.msgs) != 1 {
		t.Fatalf("got %d chat messages: %v", len(snd.msgs), snd.msgs)
	}
	if !strings.HasPrefix(snd.msgs[0], "[WARN] loud") || !strings.Contains(snd.msgs[0], "- vm=db01") {
		t.Fatalf("unexpected chat line %q", snd.msgs[0])
	}
}

func TestValidLevel(t *testing.T) {
	for _, ok := range []string{"", "info", "DEBUG", "warning"} {
		if !ValidLevel(ok) {
			t.Fatalf("ValidLevel(%q) = false", ok)
		}
	}
	if ValidLevel("loud") {
		t.Fatal("ValidLevel(loud) = true")
	}
}

func TestApplySwitchesLogFile(t *testing.T) {
	dir := t.TempDir()
	first, second := filepath.Join(dir, "a.log"), filepath.Join(dir, "b.log")
	svc, log := New(Config{Level: "info", File: FileConfig{Enabled: true, Path: first}}, nil)
	defer svc.Close()

	log.Info("before")
	svc.Apply(Config{Level: "info", File: FileConfig{Enabled: true, Path: second}})
	log.Info("after")

	a, err := os.ReadFile(first)
	if err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(second)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(a), "before") || strings.Contains(string(a), "after") {
		t.Fatalf("first file = %q", a)
	}
	if !strings.Contains(string(b), "after") {
		t.Fatalf("second file = %q", b)
	}
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{in: "short", max: 10, want: "short"},
		{in: "abcdefghijklmnop", max: 10, want: "abcdefg..."},
		{in: "ééééééééé", max: 10, want: "ééé..."},
		{in: "日本語", max: 4, want: "日"},
	}
	for _, tt := range tests {
		got := truncate(tt.in, tt.max)
		if got != tt.want || !utf8.ValidString(got) {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
