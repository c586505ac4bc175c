package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Manage calendar push channels",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "register <uid>",
		Short: "Register (or replace) the push channel of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ch, err := current.calendar.RegisterWatch(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "channel %s expires %s\n", ch.ChannelID, ch.ExpiresAt.Format(time.RFC3339))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "stop <uid>",
		Short: "Stop the push channel of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := current.calendar.StopWatch(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stopped channel for %s\n", args[0])
			return nil
		},
	})

	return cmd
}
