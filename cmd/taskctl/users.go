package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Inspect users and manage the admin role",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := current.admin.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "UID\tEMAIL\tNAME\tROLE\tCALENDAR")
			for _, u := range users {
				role := "member"
				if u.IsAdmin {
					role = "admin"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n", u.UID, u.Email, u.DisplayName, role, u.CalendarConnected)
			}
			return w.Flush()
		},
	})

	setRole := func(use, short string, isAdmin bool) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <uid>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := current.admin.SetAdmin(cmd.Context(), args[0], isAdmin); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: admin=%t\n", args[0], isAdmin)
				return nil
			},
		}
	}
	cmd.AddCommand(setRole("promote", "Grant the admin role", true))
	cmd.AddCommand(setRole("demote", "Revoke the admin role", false))

	return cmd
}
