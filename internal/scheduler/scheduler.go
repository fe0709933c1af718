package scheduler

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"vmsched/internal/cloud"
	"vmsched/internal/registry"
	"vmsched/internal/schedule"
	"vmsched/internal/session"
	"vmsched/internal/timewindow"
	logx "vmsched/pkg/logx"
)

type Options struct {
	Inventory  cloud.InventoryClient
	Sessions   *session.Store
	Registry   *registry.Registry
	Location   *time.Location
	Resolution int
	Reporter   Reporter
	Log        logx.Logger

	// Now overrides the clock; nil uses time.Now.
	Now func() time.Time
}

// Scheduler executes due power actions once per resolution window.
type Scheduler struct {
	inv        cloud.InventoryClient
	sessions   *session.Store
	reg        *registry.Registry
	loc        *time.Location
	resolution int
	rep        Reporter
	log        logx.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func New(o Options) (*Scheduler, error) {
	if err := timewindow.ValidateResolution(o.Resolution); err != nil {
		return nil, err
	}
	if o.Inventory == nil || o.Sessions == nil || o.Registry == nil {
		return nil, errors.New("scheduler: inventory, sessions and registry are required")
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.Reporter == nil {
		o.Reporter = Nop()
	}
	if o.Log.IsZero() {
		o.Log = logx.Nop()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return &Scheduler{
		inv:        o.Inventory,
		sessions:   o.Sessions,
		reg:        o.Registry,
		loc:        o.Location,
		resolution: o.Resolution,
		rep:        o.Reporter,
		log:        o.Log.With(logx.String("comp", "scheduler")),
		now:        o.Now,
		sleep:      sleepCtx,
	}, nil
}

// Run loops until ctx is cancelled. It never returns on a runtime error.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("scheduler started", logx.Int("resolution", s.resolution), logx.String("tz", s.loc.String()))
	defer s.log.Info("scheduler stopped")
	for {
		if err := s.Cycle(ctx); err != nil {
			return nil
		}
	}
}

// Cycle plans the actions due in the current window, sleeps to the window
// boundary and executes them. It returns only ctx.Err().
func (s *Scheduler) Cycle(ctx context.Context) error {
	window := timewindow.RoundDown(s.now().In(s.loc), s.resolution)
	items := schedule.Due(s.reg.Snapshot(), window, s.resolution)

	// Sleep to the end of the planned window; if planning overran it, run now.
	boundary := window.Add(timewindow.Duration(s.resolution))
	wait := boundary.Sub(s.now())
	if wait < 0 {
		s.log.Warn("planning overran the window boundary, executing late", logx.Time("boundary", boundary), logx.Duration("late", -wait))
		wait = 0
	}
	s.log.Debug("window planned",
		logx.Time("window", window),
		logx.Int("actions", len(items)),
		logx.Duration("sleep", wait))
	if err := s.sleep(ctx, wait); err != nil {
		return err
	}

	if _, err := s.sessions.Refresh(context.WithoutCancel(ctx)); err != nil {
		s.log.Error("session refresh failed, skipping window", logx.Int("actions", len(items)), logx.Err(err))
		s.rep.Rehydrated("window refresh", err)
		return ctx.Err()
	}
	s.rep.Rehydrated("window refresh", nil)

	if len(items) > 0 {
		s.log.Info("executing actions", logx.Int("count", len(items)))
	}
	for _, it := range items {
		if ctx.Err() != nil {
			s.log.Info("shutdown requested, abandoning remaining actions")
			return ctx.Err()
		}
		s.rep.ActionDone(s.execute(context.WithoutCancel(ctx), it))
	}
	return ctx.Err()
}

func (s *Scheduler) execute(ctx context.Context, it schedule.ActionItem) ActionResult {
	start := time.Now()
	res := ActionResult{
		VM:     it.Tag.Name,
		Ref:    it.Tag.Ref,
		Action: it.Tag.Action,
		Verb:   it.Tag.Action.String(),
		Cron:   it.Tag.Cron(),
		DueAt:  it.DueAt,
		At:     s.now(),
	}
	log := s.log.With(logx.String("vm", it.Tag.Name), logx.String("action", res.Verb), logx.String("cron", res.Cron))

	outcome, err := s.apply(ctx, it.Tag)
	res.Outcome = outcome
	res.Took = time.Since(start)
	switch {
	case err != nil:
		res.Error = err.Error()
		log.Error("action failed", logx.Err(err))
	case outcome == OutcomeSkipped:
		log.Warn("vm already in desired state")
	default:
		log.Info("action executed", logx.Duration("took", res.Took))
	}
	return res
}

func (s *Scheduler) apply(ctx context.Context, tag schedule.Tag) (Outcome, error) {
	sess, err := s.sessions.Get()
	if err != nil {
		return OutcomeFailed, err
	}
	vms, err := s.inv.ListVMs(ctx, sess, cloud.NameFilter(tag.Name))
	if err != nil {
		return OutcomeFailed, fmt.Errorf("status query: %w", err)
	}
	// Names are only unique within a vApp; match the tagged record.
	idx := slices.IndexFunc(vms, func(vm cloud.VM) bool { return vm.Ref == tag.Ref })
	if idx < 0 {
		return OutcomeFailed, fmt.Errorf("status query: vm %q (%s) not found", tag.Name, tag.Ref)
	}
	if tag.Action.Satisfied(vms[idx].Status) {
		return OutcomeSkipped, nil
	}
	switch tag.Action {
	case schedule.PowerUp:
		err = s.inv.PowerOn(ctx, sess, tag.Ref)
	case schedule.PowerDown:
		err = s.inv.PowerOff(ctx, sess, tag.Ref)
	default:
		err = fmt.Errorf("unknown action %d", tag.Action)
	}
	if err != nil {
		return OutcomeFailed, err
	}
	return OutcomeExecuted, nil
}
