package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": JSON Lines file at Path
//   - "sqlite": SQLite database file (optional build tag)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// ActionRecord is one audited power action. Keep it compact and schema-stable.
type ActionRecord struct {
	At      time.Time `json:"at"`
	DueAt   time.Time `json:"due_at"`
	VM      string    `json:"vm"`
	Ref     string    `json:"ref"`
	Action  string    `json:"action"`
	Cron    string    `json:"cron"`
	Outcome string    `json:"outcome"`
	Error   string    `json:"error,omitempty"`
	TookMS  int64     `json:"took_ms"`
}
