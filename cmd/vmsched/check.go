package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"vmsched/internal/region"
	"vmsched/internal/schedule"
	"vmsched/internal/timewindow"
)

const checkTimeLayout = "2006-01-02 15:04:05 MST"

func newCheckCmd() *cobra.Command {
	var resolution int
	cmd := &cobra.Command{
		Use:   "check <cron> <region>",
		Short: "Validate a cron expression and show its next execution in a region",
		Example: `  vmsched check "30 7 * * 1-5" eu-de
  vmsched check "0 22 * * *" us-south --resolution 15`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return check(cmd.OutOrStdout(), args[0], args[1], resolution, time.Now())
		},
	}
	cmd.Flags().IntVarP(&resolution, "resolution", "r", 0, "also report whether the expression is due in the current window of this many minutes")
	return cmd
}

func check(w io.Writer, expr, regionName string, resolution int, now time.Time) error {
	loc, err := region.Location(regionName)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "region valid")

	e, err := schedule.ParseCron(expr)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "cron string valid")

	now = now.In(loc)
	next := e.Next(now)
	fmt.Fprintf(w, "current time (%s): %s\n", loc, now.Format(checkTimeLayout))
	if next.IsZero() {
		fmt.Fprintln(w, "next execution: never")
	} else {
		fmt.Fprintf(w, "next execution: %s\n", next.Format(checkTimeLayout))
	}

	if resolution == 0 {
		return nil
	}
	if err := timewindow.ValidateResolution(resolution); err != nil {
		return err
	}
	window := timewindow.RoundDown(now, resolution)
	due := schedule.IsDue(e.Next(window), window, resolution)
	fmt.Fprintf(w, "window %s +%dm: due=%t\n", window.Format("15:04"), resolution, due)
	return nil
}
