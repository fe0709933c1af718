package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "vmsched",
		Short:         "Power VCFaaS virtual machines on and off from cron tags in their metadata",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newCheckCmd(), newKeyCmd())
	return root
}
