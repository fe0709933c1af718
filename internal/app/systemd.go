package app

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "vmsched/pkg/logx"
)

// systemd reports lifecycle state over NOTIFY_SOCKET. Every call is a no-op
// when the process is not started by systemd.
type systemd struct {
	log    logx.Logger
	notify func(state string) (bool, error)
	wdog   func() (time.Duration, error)
}

func newSystemd(log logx.Logger) *systemd {
	return &systemd{
		log:    log,
		notify: func(state string) (bool, error) { return daemon.SdNotify(false, state) },
		wdog:   func() (time.Duration, error) { return daemon.SdWatchdogEnabled(false) },
	}
}

func (s *systemd) send(state string) {
	sent, err := s.notify(state)
	switch {
	case err != nil:
		s.log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
	case sent:
		s.log.Debug("sd_notify", logx.String("state", state))
	}
}

func (s *systemd) ready()    { s.send(daemon.SdNotifyReady) }
func (s *systemd) stopping() { s.send(daemon.SdNotifyStopping) }

// watchdogInterval is half of WATCHDOG_USEC, or 0 when disabled.
func (s *systemd) watchdogInterval() time.Duration {
	d, err := s.wdog()
	if err != nil {
		s.log.Warn("systemd watchdog misconfigured", logx.Err(err))
		return 0
	}
	return d / 2
}

func (s *systemd) watchdog(ctx context.Context) error {
	every := s.watchdogInterval()
	if every <= 0 {
		return nil
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			s.send(daemon.SdNotifyWatchdog)
		}
	}
}
