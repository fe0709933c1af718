package storage

import (
	"context"
	"time"

	"vmsched/internal/scheduler"
	logx "vmsched/pkg/logx"
)

const appendTimeout = 2 * time.Second

// Auditor records every action result in a Store.
type Auditor struct {
	store Store
	log   logx.Logger
}

var _ scheduler.Reporter = (*Auditor)(nil)

func NewAuditor(store Store, log logx.Logger) *Auditor {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Auditor{store: store, log: log.With(logx.String("comp", "audit"))}
}

func (a *Auditor) ActionDone(res scheduler.ActionResult) {
	ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
	defer cancel()
	if err := a.store.AppendAction(ctx, RecordFrom(res)); err != nil {
		a.log.Warn("audit append failed", logx.String("vm", res.VM), logx.Err(err))
	}
}

func (a *Auditor) RefreshDone(int, time.Duration) {}
func (a *Auditor) RefreshFailed(string, error)    {}
func (a *Auditor) Rehydrated(string, error)       {}

// RecordFrom converts a scheduler result to its stored form.
func RecordFrom(res scheduler.ActionResult) ActionRecord {
	return ActionRecord{
		At:      res.At,
		DueAt:   res.DueAt,
		VM:      res.VM,
		Ref:     res.Ref,
		Action:  res.Verb,
		Cron:    res.Cron,
		Outcome: string(res.Outcome),
		Error:   res.Error,
		TookMS:  res.Took.Milliseconds(),
	}
}
