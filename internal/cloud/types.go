package cloud

import (
	"context"
	"errors"
)

// ErrUnauthorized marks a request the control plane rejected with 401.
// Callers recover by rebuilding the Session.
var ErrUnauthorized = errors.New("unauthorized")

// IsUnauthorized reports whether err (or anything it wraps) is an auth rejection.
func IsUnauthorized(err error) bool { return errors.Is(err, ErrUnauthorized) }

// Session is the credential state needed to talk to a director.
//
// Generation is assigned by the session store and increases on every
// replacement; it lets a worker tell whether the session it used is still
// the current one.
type Session struct {
	AccessToken string
	Endpoint    string // scheme://host of the director
	Org         string
	Generation  uint64
}

// Valid reports whether s carries enough to issue requests.
func (s Session) Valid() bool { return s.AccessToken != "" && s.Endpoint != "" }

// VM is one virtual machine record from a query. Never cached beyond a cycle.
type VM struct {
	Ref           string // href
	Name          string
	Status        VMStatus
	IsTemplate    bool
	InMaintenance bool
	IsExpired     bool
}

// Schedulable reports whether the VM may carry power schedules.
func (v VM) Schedulable() bool {
	return !v.IsTemplate && !v.InMaintenance && !v.IsExpired
}

// MetadataEntry is one key/value pair attached to a VM.
type MetadataEntry struct {
	Key   string
	Value string
}

// NameFilter builds a query filter matching a VM by exact name.
func NameFilter(name string) string { return "name==" + name }

// EnvironmentResolver builds a fresh Session from scratch: region checks,
// site and VDC discovery, token issuance.
type EnvironmentResolver interface {
	Bootstrap(ctx context.Context) (Session, error)
}

// InventoryClient lists VMs, reads their metadata, and changes power state.
type InventoryClient interface {
	ListVMs(ctx context.Context, s Session, filter string) ([]VM, error)
	Metadata(ctx context.Context, s Session, ref string) ([]MetadataEntry, error)
	PowerOn(ctx context.Context, s Session, ref string) error
	PowerOff(ctx context.Context, s Session, ref string) error
}
