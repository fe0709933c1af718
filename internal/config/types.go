package config

// Config is the on-disk configuration. All durations are Go duration strings
// (e.g. "500ms", "10s", "1m").
type Config struct {
	IBMCloud  IBMCloudConfig  `json:"ibmcloud"`
	Scheduler SchedulerConfig `json:"scheduler"`
	HTTP      HTTPConfig      `json:"http,omitempty"`
	Logging   LoggingConfig   `json:"logging"`
	Telegram  *TelegramConfig `json:"telegram,omitempty"`
	Storage   *StorageConfig  `json:"storage,omitempty"`
	Debug     DebugConfig     `json:"debug,omitempty"`
}

// IBMCloudConfig selects the account and director site to manage.
//
// api_key, region and site may be supplied by the ibmcloud_api_key,
// ibmcloud_region and ibmcloud_vcfaas_site environment variables, which win
// over the file.
type IBMCloudConfig struct {
	APIKey    string        `json:"api_key,omitempty"` // do not log
	Region    string        `json:"region"`
	Site      string        `json:"site"`
	IAMURL    string        `json:"iam_url,omitempty"`
	VCFaaSURL string        `json:"vcfaas_url,omitempty"` // may contain %s for the region
	Keyring   KeyringConfig `json:"keyring,omitempty"`
}

// KeyringConfig reads the API key from the OS keyring instead of the file.
type KeyringConfig struct {
	Enabled bool   `json:"enabled"`
	Service string `json:"service,omitempty"` // default: "vmsched"
	User    string `json:"user,omitempty"`    // default: "ibmcloud_api_key"
}

// SchedulerConfig controls both workers.
//
// Defaults:
//   - resolution_minutes: 2 (must divide 60)
//   - refresh_interval: "60s"
//   - rehydrate_backoff: "5s"
type SchedulerConfig struct {
	ResolutionMinutes int    `json:"resolution_minutes,omitempty"`
	RefreshInterval   string `json:"refresh_interval,omitempty"`
	RehydrateBackoff  string `json:"rehydrate_backoff,omitempty"`
}

// HTTPConfig tunes the control-plane HTTP client.
type HTTPConfig struct {
	Timeout       string  `json:"timeout,omitempty"`
	RetryMax      int     `json:"retry_max,omitempty"`
	RetryBase     string  `json:"retry_base,omitempty"`
	RetryMaxDelay string  `json:"retry_max_delay,omitempty"`
	RatePerSec    float64 `json:"rate_per_sec,omitempty"`
	Burst         int     `json:"burst,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingTelegram forwards log lines at or above MinLevel to the telegram chat.
type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// TelegramConfig enables action notifications.
//
// Notify lists the outcomes to announce ("executed", "skipped", "failed");
// empty means executed and failed.
type TelegramConfig struct {
	Token      string   `json:"token"` // do not log
	ChatID     int64    `json:"chat_id"`
	ThreadID   int      `json:"thread_id,omitempty"`
	Notify     []string `json:"notify,omitempty"`
	RatePerSec float64  `json:"rate_per_sec,omitempty"`
	Timeout    string   `json:"timeout,omitempty"`
}

// StorageConfig controls the action audit log.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./vmsched_audit" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
	// RecentLimit caps the records served on /status.
	RecentLimit int `json:"recent_limit,omitempty"`
}

// DebugConfig controls the optional debug HTTP server (/healthz, /readyz,
// /status, /metrics and pprof).
//
// Security note:
//   - Prefer binding to localhost (e.g. "127.0.0.1:6060").
//   - If you bind to a non-loopback address, set a token or explicitly allow_insecure.
type DebugConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`
	Token         string `json:"token,omitempty"` // do not log
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
	Pprof         bool   `json:"pprof,omitempty"`

	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
}
