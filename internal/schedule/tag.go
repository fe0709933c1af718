package schedule

import (
	"errors"
	"fmt"
	"time"

	"vmsched/internal/cloud"
	logx "vmsched/pkg/logx"
)

// ErrUnrecognizedKey is returned for metadata keys that are not directives.
// It is not a validation failure; callers ignore it.
var ErrUnrecognizedKey = errors.New("unrecognized metadata key")

// ValidationError reports a recognized tag whose value is unusable.
type ValidationError struct {
	VM    string
	Key   string
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("vm %q tag %s=%q: %v", e.VM, e.Key, e.Value, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Tag is one validated power schedule on one VM. It is a value type and
// never changes after NewTag returns it.
type Tag struct {
	Action Action
	Ref    string
	Name   string
	expr   Expr
}

// NewTag builds a Tag from a metadata entry on vm.
func NewTag(key, value string, vm cloud.VM) (Tag, error) {
	action, ok := ActionForKey(key)
	if !ok {
		return Tag{}, ErrUnrecognizedKey
	}
	expr, err := ParseCron(value)
	if err != nil {
		return Tag{}, &ValidationError{VM: vm.Name, Key: key, Value: value, Err: err}
	}
	return Tag{Action: action, Ref: vm.Ref, Name: vm.Name, expr: expr}, nil
}

// Cron returns the tag's cron expression as written.
func (t Tag) Cron() string { return t.expr.String() }

// Next returns the tag's first occurrence strictly after after.
func (t Tag) Next(after time.Time) time.Time { return t.expr.Next(after) }

func (t Tag) String() string {
	return fmt.Sprintf("%s %s [%s]", t.Name, t.Action, t.Cron())
}

// FromMetadata builds every valid tag from a VM's metadata. Validation errors
// are logged and the entry is dropped; unrecognized keys are skipped silently.
func FromMetadata(entries []cloud.MetadataEntry, vm cloud.VM, log logx.Logger) []Tag {
	var out []Tag
	for _, e := range entries {
		tag, err := NewTag(e.Key, e.Value, vm)
		if errors.Is(err, ErrUnrecognizedKey) {
			continue
		}
		if err != nil {
			log.Error("invalid schedule tag", logx.String("vm", vm.Name), logx.String("key", e.Key), logx.String("value", e.Value), logx.Err(err))
			continue
		}
		log.Debug("schedule tag accepted", logx.String("vm", vm.Name), logx.String("action", tag.Action.String()), logx.String("cron", tag.Cron()))
		out = append(out, tag)
	}
	return out
}
