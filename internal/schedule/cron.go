package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Minute-granularity 5-field parser; descriptors like @daily are allowed.
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Expr is a parsed cron expression.
type Expr struct {
	raw   string
	sched cron.Schedule
}

// ParseCron validates and parses a cron expression.
//
// The evaluation timezone always comes from the caller's time, so TZ= and
// CRON_TZ= prefixes are rejected, as are @every intervals which have no
// wall-clock anchor.
func ParseCron(raw string) (Expr, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Expr{}, errors.New("empty cron expression")
	}
	up := strings.ToUpper(s)
	if strings.HasPrefix(up, "TZ=") || strings.HasPrefix(up, "CRON_TZ=") {
		return Expr{}, fmt.Errorf("cron %q: timezone prefix not allowed", raw)
	}
	if strings.HasPrefix(strings.ToLower(s), "@every") {
		return Expr{}, fmt.Errorf("cron %q: @every is not supported", raw)
	}
	sched, err := parser.Parse(s)
	if err != nil {
		return Expr{}, fmt.Errorf("cron %q: %w", raw, err)
	}
	return Expr{raw: s, sched: sched}, nil
}

// ValidCron reports whether raw parses.
func ValidCron(raw string) bool {
	_, err := ParseCron(raw)
	return err == nil
}

func (e Expr) String() string { return e.raw }

// Next returns the first occurrence strictly after t, in t's location.
// It returns the zero time when the expression never fires (e.g. Feb 30).
func (e Expr) Next(t time.Time) time.Time {
	if e.sched == nil {
		return time.Time{}
	}
	return e.sched.Next(t)
}

// NextN returns up to n upcoming occurrences after t.
func (e Expr) NextN(t time.Time, n int) []time.Time {
	out := make([]time.Time, 0, n)
	cur := t
	for i := 0; i < n; i++ {
		nx := e.Next(cur)
		if nx.IsZero() {
			break
		}
		out = append(out, nx)
		cur = nx
	}
	return out
}
