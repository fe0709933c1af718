package app

import (
	"context"
	"sort"
	"time"

	"vmsched/internal/config"
	"vmsched/internal/registry"
	rtsup "vmsched/internal/runtime/supervisor"
	"vmsched/internal/session"
	"vmsched/internal/storage"
	"vmsched/internal/timewindow"
	logx "vmsched/pkg/logx"
)

const upcomingLimit = 20

// Status is served on /status.
type Status struct {
	StartedAt  time.Time              `json:"started_at"`
	Uptime     string                 `json:"uptime"`
	Region     string                 `json:"region"`
	Site       string                 `json:"site"`
	Timezone   string                 `json:"timezone"`
	Now        time.Time              `json:"now"`
	Resolution int                    `json:"resolution_minutes"`
	Window     time.Time              `json:"next_window"`
	Ready      bool                   `json:"ready"`
	Session    session.Info           `json:"session"`
	Registry   registry.Info          `json:"registry"`
	Upcoming   []Upcoming             `json:"upcoming"`
	Workers    []rtsup.Stats          `json:"workers,omitempty"`
	Recent     []storage.ActionRecord `json:"recent_actions,omitempty"`
}

// Upcoming is the next occurrence of one tag.
type Upcoming struct {
	VM     string    `json:"vm"`
	Action string    `json:"action"`
	Cron   string    `json:"cron"`
	Next   time.Time `json:"next"`
}

func (a *App) Status(ctx context.Context) Status {
	now := time.Now().In(a.loc)
	st := Status{
		StartedAt:  a.startedAt,
		Uptime:     time.Since(a.startedAt).Truncate(time.Second).String(),
		Region:     a.cfg.IBMCloud.Region,
		Site:       a.cfg.IBMCloud.Site,
		Timezone:   a.loc.String(),
		Now:        now,
		Resolution: a.settings.Resolution,
		Window:     timewindow.RoundUp(now, a.settings.Resolution),
		Ready:      a.Ready() == nil,
		Session:    a.sessions.Info(),
		Registry:   a.reg.Info(),
		Upcoming:   upcoming(a, now),
	}
	if a.sup != nil {
		st.Workers = a.sup.Snapshot()
	}
	if a.store != nil {
		limit := config.DefaultRecentLimit
		if sc := a.cfg.Storage; sc != nil && sc.RecentLimit > 0 {
			limit = sc.RecentLimit
		}
		recs, err := a.store.Recent(ctx, limit)
		if err != nil {
			a.log.Warn("status: recent actions unavailable", logx.Err(err))
		}
		st.Recent = recs
	}
	return st
}

func upcoming(a *App, now time.Time) []Upcoming {
	tags := a.reg.Snapshot()
	out := make([]Upcoming, 0, len(tags))
	for _, t := range tags {
		out = append(out, Upcoming{VM: t.Name, Action: t.Action.String(), Cron: t.Cron(), Next: t.Next(now)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Next.Before(out[j].Next) })
	if len(out) > upcomingLimit {
		out = out[:upcomingLimit]
	}
	return out
}
