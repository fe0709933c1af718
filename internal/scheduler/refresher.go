package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vmsched/internal/cloud"
	"vmsched/internal/registry"
	"vmsched/internal/schedule"
	"vmsched/internal/session"
	logx "vmsched/pkg/logx"
)

const (
	DefaultRefreshInterval  = 60 * time.Second
	DefaultRehydrateBackoff = 5 * time.Second
)

// errRehydrated ends a pass that hit an auth rejection and rebuilt the session.
var errRehydrated = errors.New("session rehydrated")

type RefresherOptions struct {
	Inventory        cloud.InventoryClient
	Sessions         *session.Store
	Registry         *registry.Registry
	Interval         time.Duration
	RehydrateBackoff time.Duration
	Reporter         Reporter
	Log              logx.Logger
}

// Refresher periodically rebuilds the registry from VM metadata. It is the
// registry's only writer.
type Refresher struct {
	inv      cloud.InventoryClient
	sessions *session.Store
	reg      *registry.Registry
	interval time.Duration
	backoff  time.Duration
	rep      Reporter
	log      logx.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

func NewRefresher(o RefresherOptions) *Refresher {
	if o.Interval <= 0 {
		o.Interval = DefaultRefreshInterval
	}
	if o.RehydrateBackoff <= 0 {
		o.RehydrateBackoff = DefaultRehydrateBackoff
	}
	if o.Reporter == nil {
		o.Reporter = Nop()
	}
	if o.Log.IsZero() {
		o.Log = logx.Nop()
	}
	return &Refresher{
		inv:      o.Inventory,
		sessions: o.Sessions,
		reg:      o.Registry,
		interval: o.Interval,
		backoff:  o.RehydrateBackoff,
		rep:      o.Reporter,
		log:      o.Log.With(logx.String("comp", "refresher")),
		sleep:    sleepCtx,
	}
}

// Run loops until ctx is cancelled. It never returns on a runtime error.
func (r *Refresher) Run(ctx context.Context) error {
	r.log.Info("refresher started", logx.Duration("interval", r.interval))
	defer r.log.Info("refresher stopped")
	for {
		wait := r.interval
		if err := r.RunOnce(ctx); errors.Is(err, errRehydrated) {
			wait = r.backoff
		}
		if err := r.sleep(ctx, wait); err != nil {
			return nil
		}
	}
}

// RunOnce performs one Querying → ParsingMetadata → Publishing pass. The
// registry is only replaced when the whole pass completes.
func (r *Refresher) RunOnce(ctx context.Context) error {
	start := time.Now()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	// In-flight requests finish even if ctx is cancelled mid-pass.
	ioctx := context.WithoutCancel(ctx)

	sess, err := r.sessions.Get()
	if err != nil {
		return r.recover(ioctx, 0, "no session")
	}

	vms, err := r.inv.ListVMs(ioctx, sess, "")
	if err != nil {
		if cloud.IsUnauthorized(err) {
			return r.recover(ioctx, sess.Generation, "list vms unauthorized")
		}
		r.log.Error("list vms failed", logx.Err(err))
		r.rep.RefreshFailed("query", err)
		return err
	}

	var tags []schedule.Tag
	for _, vm := range vms {
		if ctx.Err() != nil {
			r.log.Info("shutdown requested, abandoning refresh pass", logx.Int("tags", len(tags)))
			return ctx.Err()
		}
		if !vm.Schedulable() {
			continue
		}
		md, err := r.inv.Metadata(ioctx, sess, vm.Ref)
		if err != nil {
			if cloud.IsUnauthorized(err) {
				return r.recover(ioctx, sess.Generation, "metadata unauthorized")
			}
			r.log.Warn("metadata read failed", logx.String("vm", vm.Name), logx.Err(err))
			r.rep.RefreshFailed("metadata", fmt.Errorf("%s: %w", vm.Name, err))
			continue
		}
		tags = append(tags, schedule.FromMetadata(md, vm, r.log)...)
	}

	r.reg.Replace(tags)
	took := time.Since(start)
	r.log.Debug("registry published", logx.Int("vms", len(vms)), logx.Int("tags", len(tags)), logx.Duration("took", took))
	r.rep.RefreshDone(len(tags), took)
	return nil
}

func (r *Refresher) recover(ctx context.Context, stale uint64, reason string) error {
	_, err := r.sessions.Rehydrate(ctx, stale)
	r.rep.Rehydrated(reason, err)
	if err != nil {
		r.log.Error("session rehydration failed", logx.String("reason", reason), logx.Err(err))
		r.rep.RefreshFailed("rehydrate", err)
	} else {
		r.log.Info("session rehydrated", logx.String("reason", reason))
	}
	return errRehydrated
}
