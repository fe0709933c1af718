package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"vmsched/internal/region"
	"vmsched/internal/timewindow"
	logx "vmsched/pkg/logx"
)

const (
	DefaultRefreshInterval  = 60 * time.Second
	DefaultRehydrateBackoff = 5 * time.Second
	DefaultDebugAddr        = "127.0.0.1:6060"
	DefaultRecentLimit      = 50
)

// ValidationError lists every problem found in a config.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid config: " + strings.Join(e.Problems, "; ")
}

// Settings is Config with defaults applied and durations parsed.
type Settings struct {
	Resolution       int
	RefreshInterval  time.Duration
	RehydrateBackoff time.Duration

	HTTPTimeout       time.Duration
	HTTPRetryBase     time.Duration
	HTTPRetryMaxDelay time.Duration

	TelegramTimeout time.Duration
	BusyTimeout     time.Duration

	DebugReadTimeout  time.Duration
	DebugWriteTimeout time.Duration
	DebugIdleTimeout  time.Duration
}

type problems []string

func (p *problems) addf(format string, args ...any) { *p = append(*p, fmt.Sprintf(format, args...)) }

func (p *problems) duration(path, raw string, def time.Duration) time.Duration {
	s := strings.TrimSpace(raw)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		p.addf("%s: invalid duration %q", path, raw)
		return def
	}
	if d < 0 {
		p.addf("%s: duration must be >= 0", path)
		return def
	}
	if d == 0 {
		return def
	}
	return d
}

// Resolve validates cfg and returns its effective settings.
func Resolve(cfg *Config) (Settings, error) {
	if cfg == nil {
		return Settings{}, errors.New("config is nil")
	}
	var p problems
	var s Settings

	ic := cfg.IBMCloud
	if !ic.Keyring.Enabled && strings.TrimSpace(ic.APIKey) == "" {
		p.addf("ibmcloud.api_key: required (or set %s, or enable ibmcloud.keyring)", EnvAPIKey)
	}
	switch {
	case strings.TrimSpace(ic.Region) == "":
		p.addf("ibmcloud.region: required (or set %s)", EnvRegion)
	case !region.Valid(ic.Region):
		p.addf("ibmcloud.region: %q has no timezone (valid: %s)", ic.Region, strings.Join(region.Names(), ", "))
	}
	if strings.TrimSpace(ic.Site) == "" {
		p.addf("ibmcloud.site: required (or set %s)", EnvSite)
	}

	s.Resolution = cfg.Scheduler.ResolutionMinutes
	if s.Resolution == 0 {
		s.Resolution = timewindow.DefaultResolution
	}
	if err := timewindow.ValidateResolution(s.Resolution); err != nil {
		p.addf("scheduler.resolution_minutes: %v", err)
	}
	s.RefreshInterval = p.duration("scheduler.refresh_interval", cfg.Scheduler.RefreshInterval, DefaultRefreshInterval)
	s.RehydrateBackoff = p.duration("scheduler.rehydrate_backoff", cfg.Scheduler.RehydrateBackoff, DefaultRehydrateBackoff)

	s.HTTPTimeout = p.duration("http.timeout", cfg.HTTP.Timeout, 0)
	s.HTTPRetryBase = p.duration("http.retry_base", cfg.HTTP.RetryBase, 0)
	s.HTTPRetryMaxDelay = p.duration("http.retry_max_delay", cfg.HTTP.RetryMaxDelay, 0)
	if cfg.HTTP.RatePerSec < 0 {
		p.addf("http.rate_per_sec: must be >= 0")
	}

	if lv := strings.TrimSpace(cfg.Logging.Level); lv != "" && !logx.ValidLevel(lv) {
		p.addf("logging.level: unknown level %q", lv)
	}
	if lt := cfg.Logging.Telegram; lt.Enabled {
		if cfg.Telegram == nil || strings.TrimSpace(cfg.Telegram.Token) == "" {
			p.addf("logging.telegram: requires telegram.token and telegram.chat_id")
		}
		if lv := strings.TrimSpace(lt.MinLevel); lv != "" && !logx.ValidLevel(lv) {
			p.addf("logging.telegram.min_level: unknown level %q", lv)
		}
	}

	if tg := cfg.Telegram; tg != nil {
		if strings.TrimSpace(tg.Token) == "" {
			p.addf("telegram.token: required when telegram is set")
		}
		if tg.ChatID == 0 {
			p.addf("telegram.chat_id: required when telegram is set")
		}
		for _, o := range tg.Notify {
			switch strings.ToLower(strings.TrimSpace(o)) {
			case "executed", "skipped", "failed":
			default:
				p.addf("telegram.notify: unknown outcome %q", o)
			}
		}
		s.TelegramTimeout = p.duration("telegram.timeout", tg.Timeout, 10*time.Second)
	}

	if st := cfg.Storage; st != nil {
		switch d := strings.ToLower(strings.TrimSpace(st.Driver)); d {
		case "", "none":
		case "file", "sqlite", "sqlite3":
			if strings.TrimSpace(st.Path) == "" {
				p.addf("storage.path: required for driver %q", d)
			}
		default:
			p.addf("storage.driver: unknown driver %q", st.Driver)
		}
		s.BusyTimeout = p.duration("storage.busy_timeout", st.BusyTimeout, 0)
	}

	s.DebugReadTimeout = p.duration("debug.read_timeout", cfg.Debug.ReadTimeout, 10*time.Second)
	s.DebugWriteTimeout = p.duration("debug.write_timeout", cfg.Debug.WriteTimeout, 0)
	s.DebugIdleTimeout = p.duration("debug.idle_timeout", cfg.Debug.IdleTimeout, 60*time.Second)

	if len(p) > 0 {
		return s, &ValidationError{Problems: p}
	}
	return s, nil
}

// CheckReload rejects a reloaded config whose engine settings differ from
// the running one. Those only take effect after a restart.
func CheckReload(running, next *Config) error {
	if running == nil || next == nil {
		return nil
	}
	if _, err := Resolve(next); err != nil {
		return err
	}
	var p problems
	a, b := running.IBMCloud, next.IBMCloud
	if a.Region != b.Region {
		p.addf("ibmcloud.region changed (%s -> %s)", a.Region, b.Region)
	}
	if a.Site != b.Site {
		p.addf("ibmcloud.site changed")
	}
	if a.APIKey != b.APIKey || a.Keyring != b.Keyring {
		p.addf("ibmcloud credentials changed")
	}
	if a.IAMURL != b.IAMURL || a.VCFaaSURL != b.VCFaaSURL {
		p.addf("ibmcloud endpoints changed")
	}
	if running.Scheduler != next.Scheduler {
		p.addf("scheduler settings changed")
	}
	if running.HTTP != next.HTTP {
		p.addf("http settings changed")
	}
	if !reflect.DeepEqual(running.Telegram, next.Telegram) {
		p.addf("telegram settings changed")
	}
	if !sameStorage(running.Storage, next.Storage) {
		p.addf("storage settings changed")
	}
	if len(p) > 0 {
		p.addf("restart required")
		return &ValidationError{Problems: p}
	}
	return nil
}

func sameStorage(a, b *StorageConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
