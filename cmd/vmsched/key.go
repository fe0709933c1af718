package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"vmsched/internal/secrets"
)

func newKeyCmd() *cobra.Command {
	var service, user string
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the IBM Cloud API key in the OS keyring",
	}
	cmd.PersistentFlags().StringVar(&service, "service", secrets.DefaultService, "keyring service name")
	cmd.PersistentFlags().StringVar(&user, "user", secrets.DefaultUser, "keyring user name")

	set := &cobra.Command{
		Use:   "set",
		Short: "Read an API key from stdin and store it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			key := strings.TrimSpace(line)
			if key == "" {
				if err != nil {
					return fmt.Errorf("read key: %w", err)
				}
				return errors.New("empty key")
			}
			if err := secrets.NewKeyring(service, user).SetAPIKey(key); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "key stored")
			return nil
		},
	}
	del := &cobra.Command{
		Use:   "delete",
		Short: "Remove the stored API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := secrets.NewKeyring(service, user).DeleteAPIKey(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "key deleted")
			return nil
		},
	}
	cmd.AddCommand(set, del)
	return cmd
}
