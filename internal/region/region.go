// Package region maps IBM Cloud regions to the timezone their schedules run in.
package region

import (
	"errors"
	"fmt"
	"sort"
	"time"
	_ "time/tzdata"
)

var ErrUnknownRegion = errors.New("unknown region")

var timezones = map[string]string{
	"eu-de":    "Europe/Berlin",
	"us-south": "America/Chicago",
	"us-east":  "America/New_York",
	"ca-tor":   "America/Toronto",
	"jp-tok":   "Asia/Tokyo",
}

// Valid reports whether region has a registered timezone.
func Valid(region string) bool {
	_, ok := timezones[region]
	return ok
}

// Names returns the registered regions, sorted.
func Names() []string {
	out := make([]string, 0, len(timezones))
	for k := range timezones {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Timezone returns the IANA timezone name for region.
func Timezone(region string) (string, error) {
	tz, ok := timezones[region]
	if !ok {
		return "", fmt.Errorf("%w: %q has no valid timezone", ErrUnknownRegion, region)
	}
	return tz, nil
}

// Location loads the *time.Location for region.
func Location(region string) (*time.Location, error) {
	tz, err := Timezone(region)
	if err != nil {
		return nil, err
	}
	return time.LoadLocation(tz)
}

// Now returns the current time in region's timezone.
func Now(region string) (time.Time, error) {
	loc, err := Location(region)
	if err != nil {
		return time.Time{}, err
	}
	return time.Now().In(loc), nil
}
