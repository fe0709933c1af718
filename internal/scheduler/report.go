package scheduler

import (
	"context"
	"time"

	"vmsched/internal/schedule"
)

type Outcome string

const (
	OutcomeExecuted Outcome = "executed"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeFailed   Outcome = "failed"
)

// ActionResult describes one attempted power action.
type ActionResult struct {
	VM      string          `json:"vm"`
	Ref     string          `json:"ref"`
	Action  schedule.Action `json:"-"`
	Verb    string          `json:"action"`
	Cron    string          `json:"cron"`
	DueAt   time.Time       `json:"due_at"`
	At      time.Time       `json:"at"`
	Took    time.Duration   `json:"took"`
	Outcome Outcome         `json:"outcome"`
	Error   string          `json:"error,omitempty"`
}

// Reporter observes worker activity. Implementations must be safe for
// concurrent use and must not block for long.
type Reporter interface {
	RefreshDone(tags int, took time.Duration)
	RefreshFailed(stage string, err error)
	Rehydrated(reason string, err error)
	ActionDone(res ActionResult)
}

// Reporters fans out to every member.
type Reporters []Reporter

func (rs Reporters) RefreshDone(tags int, took time.Duration) {
	for _, r := range rs {
		r.RefreshDone(tags, took)
	}
}

func (rs Reporters) RefreshFailed(stage string, err error) {
	for _, r := range rs {
		r.RefreshFailed(stage, err)
	}
}

func (rs Reporters) Rehydrated(reason string, err error) {
	for _, r := range rs {
		r.Rehydrated(reason, err)
	}
}

func (rs Reporters) ActionDone(res ActionResult) {
	for _, r := range rs {
		r.ActionDone(res)
	}
}

type nopReporter struct{}

func (nopReporter) RefreshDone(int, time.Duration) {}
func (nopReporter) RefreshFailed(string, error)    {}
func (nopReporter) Rehydrated(string, error)       {}
func (nopReporter) ActionDone(ActionResult)        {}

// Nop discards everything.
func Nop() Reporter { return nopReporter{} }

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
