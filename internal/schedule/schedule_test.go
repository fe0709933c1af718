package schedule

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"vmsched/internal/cloud"
	logx "vmsched/pkg/logx"
)

var vm1 = cloud.VM{Ref: "https://dir.example/api/vApp/vm-1", Name: "web01"}

func TestNewTag(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		key     string
		value   string
		action  Action
		wantErr error
		invalid bool
	}{
		{name: "up", key: KeyPowerUp, value: "0 7 * * 1-5", action: PowerUp},
		{name: "down", key: KeyPowerDown, value: "*/15 * * * *", action: PowerDown},
		{name: "descriptor", key: KeyPowerDown, value: "@daily", action: PowerDown},
		{name: "unrecognized", key: "owner", value: "alice", wantErr: ErrUnrecognizedKey},
		{name: "bad cron", key: KeyPowerUp, value: "not a cron", invalid: true},
		{name: "seconds field", key: KeyPowerUp, value: "0 0 7 * * *", invalid: true},
		{name: "every", key: KeyPowerUp, value: "@every 5m", invalid: true},
		{name: "tz prefix", key: KeyPowerUp, value: "CRON_TZ=UTC 0 7 * * *", invalid: true},
		{name: "empty", key: KeyPowerDown, value: " ", invalid: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			tag, err := NewTag(tt.key, tt.value, vm1)
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
			case tt.invalid:
				var ve *ValidationError
				if !errors.As(err, &ve) {
					t.Fatalf("err = %v, want *ValidationError", err)
				}
				if ve.VM != vm1.Name || ve.Key != tt.key {
					t.Fatalf("validation error fields: %+v", ve)
				}
			default:
				if err != nil {
					t.Fatalf("NewTag: %v", err)
				}
				if tag.Action != tt.action || tag.Ref != vm1.Ref || tag.Name != vm1.Name {
					t.Fatalf("tag = %+v", tag)
				}
				if tag.Cron() != strings.TrimSpace(tt.value) {
					t.Fatalf("Cron() = %q", tag.Cron())
				}
			}
		})
	}
}

func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("decode log line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestFromMetadataInvalidCronLogsOneError(t *testing.T) {
	var buf bytes.Buffer
	log := logx.NewWriter(&buf, "info")
	tags := FromMetadata([]cloud.MetadataEntry{{Key: KeyPowerUp, Value: "61 * * * *"}}, vm1, log)
	if len(tags) != 0 {
		t.Fatalf("got %d tags, want 0", len(tags))
	}
	lines := logLines(t, &buf)
	if len(lines) != 1 || lines[0]["level"] != "error" {
		t.Fatalf("log lines = %v, want one error", lines)
	}
}

func TestFromMetadataUnrecognizedKeyIsSilent(t *testing.T) {
	var buf bytes.Buffer
	log := logx.NewWriter(&buf, "info")
	tags := FromMetadata([]cloud.MetadataEntry{{Key: "cost-center", Value: "42"}}, vm1, log)
	if len(tags) != 0 {
		t.Fatalf("got %d tags, want 0", len(tags))
	}
	if buf.Len() != 0 {
		t.Fatalf("unexpected log output: %s", buf.String())
	}
}

func TestFromMetadataMixed(t *testing.T) {
	entries := []cloud.MetadataEntry{
		{Key: KeyPowerUp, Value: "0 8 * * *"},
		{Key: "team", Value: "infra"},
		{Key: KeyPowerDown, Value: "bogus"},
		{Key: KeyPowerDown, Value: "0 20 * * *"},
	}
	tags := FromMetadata(entries, vm1, logx.Nop())
	if len(tags) != 2 {
		t.Fatalf("got %d tags, want 2", len(tags))
	}
	if tags[0].Action != PowerUp || tags[1].Action != PowerDown {
		t.Fatalf("tags out of order: %v", tags)
	}
}

func TestNextIsStrictlyAfter(t *testing.T) {
	t.Parallel()
	exprs := []string{"* * * * *", "*/15 * * * *", "0 0 * * *", "30 12 1 * *", "0 7 * * 1-5", "@hourly", "5,10 3 * 2 0"}
	base := time.Date(2024, 2, 28, 23, 45, 0, 0, time.UTC)
	for _, raw := range exprs {
		e, err := ParseCron(raw)
		if err != nil {
			t.Fatalf("ParseCron(%q): %v", raw, err)
		}
		for i := 0; i < 500; i++ {
			now := base.Add(time.Duration(i*7) * time.Minute)
			next := e.Next(now)
			if !next.After(now) {
				t.Fatalf("%q: Next(%s) = %s not after now", raw, now, next)
			}
		}
	}
}

func TestNextNeverFires(t *testing.T) {
	t.Parallel()
	e, err := ParseCron("0 0 30 2 *")
	if err != nil {
		t.Fatal(err)
	}
	if nx := e.Next(time.Now()); !nx.IsZero() {
		t.Fatalf("Next = %s, want zero", nx)
	}
	if got := e.NextN(time.Now(), 3); len(got) != 0 {
		t.Fatalf("NextN = %v", got)
	}
}

func TestNextHonorsLocation(t *testing.T) {
	t.Parallel()
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatal(err)
	}
	e, _ := ParseCron("0 7 * * *")
	now := time.Date(2024, 5, 1, 6, 0, 0, 0, loc)
	want := time.Date(2024, 5, 1, 7, 0, 0, 0, loc)
	if got := e.Next(now); !got.Equal(want) {
		t.Fatalf("Next = %s, want %s", got, want)
	}
}

func mustTag(t *testing.T, key, cron string, vm cloud.VM) Tag {
	t.Helper()
	tag, err := NewTag(key, cron, vm)
	if err != nil {
		t.Fatal(err)
	}
	return tag
}

func TestDueQuarterHourEndToEnd(t *testing.T) {
	t.Parallel()
	tag := mustTag(t, KeyPowerUp, "*/15 * * * *", vm1)
	current := time.Date(2024, 3, 14, 12, 7, 0, 0, time.UTC)
	now := time.Date(2024, 3, 14, 12, 0, 0, 0, time.UTC)
	items := Due([]Tag{tag}, now, 15)
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1 (current %s)", len(items), current)
	}
	want := time.Date(2024, 3, 14, 12, 15, 0, 0, time.UTC)
	if !items[0].DueAt.Equal(want) {
		t.Fatalf("DueAt = %s, want %s", items[0].DueAt, want)
	}
}

func TestDueWindowBoundaries(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 3, 14, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		cron string
		r    int
		due  bool
	}{
		{cron: "2 12 * * *", r: 2, due: true},   // exactly now+r
		{cron: "1 12 * * *", r: 2, due: true},   // inside the window
		{cron: "3 12 * * *", r: 2, due: false},  // just past
		{cron: "0 12 * * *", r: 2, due: false},  // at now: next is tomorrow
		{cron: "30 12 * * *", r: 30, due: true}, // wide window
		{cron: "0 13 * * *", r: 60, due: true},
		{cron: "0 0 30 2 *", r: 60, due: false}, // never fires
	}
	for _, tt := range tests {
		tag := mustTag(t, KeyPowerDown, tt.cron, vm1)
		got := len(Due([]Tag{tag}, now, tt.r)) == 1
		if got != tt.due {
			t.Fatalf("cron %q r=%d: due=%v, want %v", tt.cron, tt.r, got, tt.due)
		}
	}
}

func TestDueMatchesWindowProperty(t *testing.T) {
	t.Parallel()
	tag := mustTag(t, KeyPowerUp, "*/7 9-17 * * *", vm1)
	base := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	for _, r := range []int{1, 2, 5, 15, 60} {
		for i := 0; i < 24*60; i += r {
			now := base.Add(time.Duration(i) * time.Minute)
			next := tag.Next(now)
			inWindow := next.After(now) && !next.After(now.Add(time.Duration(r)*time.Minute))
			got := len(Due([]Tag{tag}, now, r)) == 1
			if got != inWindow {
				t.Fatalf("r=%d now=%s next=%s: due=%v, want %v", r, now, next, got, inWindow)
			}
		}
	}
}

func TestActionSatisfied(t *testing.T) {
	t.Parallel()
	if !PowerUp.Satisfied(cloud.StatusPoweredOn) || PowerUp.Satisfied(cloud.StatusPoweredOff) {
		t.Fatal("PowerUp.Satisfied wrong")
	}
	if !PowerDown.Satisfied(cloud.StatusPoweredOff) || PowerDown.Satisfied(cloud.StatusPartiallySuspended) {
		t.Fatal("PowerDown.Satisfied wrong")
	}
	if a, ok := ActionForKey("ibm.manage.sideways"); ok || a != 0 {
		t.Fatal("unexpected action for unknown key")
	}
	if PowerUp.Key() != KeyPowerUp || PowerDown.Key() != KeyPowerDown {
		t.Fatal("Key() mismatch")
	}
}
