package storage

import (
	"context"
	"errors"
	"strings"

	logx "vmsched/pkg/logx"
)

// Store is the persistence API used by the auditor and the status endpoint.
type Store interface {
	AppendAction(ctx context.Context, r ActionRecord) error
	// Recent returns up to n records, newest first.
	Recent(ctx context.Context, n int) ([]ActionRecord, error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
