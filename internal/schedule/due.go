package schedule

import (
	"time"

	"vmsched/internal/timewindow"
)

// ActionItem is a tag selected for execution at DueAt.
type ActionItem struct {
	Tag   Tag
	DueAt time.Time
}

// IsDue reports whether next (the tag's first occurrence after windowStart)
// falls in (windowStart, windowStart+resolution].
func IsDue(next, windowStart time.Time, resolution int) bool {
	if next.IsZero() || next.Equal(windowStart) {
		return false
	}
	return !windowStart.Add(timewindow.Duration(resolution)).Before(next)
}

// Due selects the tags whose next occurrence lies in the window starting at
// windowStart. windowStart should already be rounded down to resolution.
func Due(tags []Tag, windowStart time.Time, resolution int) []ActionItem {
	var out []ActionItem
	for _, t := range tags {
		next := t.Next(windowStart)
		if IsDue(next, windowStart, resolution) {
			out = append(out, ActionItem{Tag: t, DueAt: next})
		}
	}
	return out
}
