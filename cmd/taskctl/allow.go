package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// operatorName is recorded as addedBy for entries created from the CLI.
const operatorName = "taskctl"

// allowListFile is the YAML document read by `allow import`.
type allowListFile struct {
	AddedBy string   `yaml:"addedBy"`
	Emails  []string `yaml:"emails"`
}

func parseAllowList(r io.Reader) (*allowListFile, error) {
	var f allowListFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse allow-list: %w", err)
	}
	if len(f.Emails) == 0 {
		return nil, fmt.Errorf("allow-list has no emails")
	}
	if f.AddedBy == "" {
		f.AddedBy = operatorName
	}
	return &f, nil
}

func newAllowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "allow",
		Short: "Manage the sign-in allow-list",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List allowed emails",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			emails, err := current.admin.ListAllowedEmails(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "EMAIL\tADDED BY\tADDED AT")
			for _, e := range emails {
				fmt.Fprintf(w, "%s\t%s\t%s\n", e.Email, e.AddedBy, e.AddedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add <email>...",
		Short: "Allow one or more emails to sign in",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, email := range args {
				entry, err := current.admin.AllowEmail(cmd.Context(), email, operatorName)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "allowed %s\n", entry.Email)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <email>...",
		Short: "Remove emails from the allow-list",
		Long:  `Removing an email only blocks future sign-ins. Existing users keep their records.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, email := range args {
				if err := current.admin.RemoveAllowedEmail(cmd.Context(), email); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", email)
			}
			return nil
		},
	})

	var file string
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Add every email listed in a YAML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fh, err := os.Open(file)
			if err != nil {
				return err
			}
			defer fh.Close()

			list, err := parseAllowList(fh)
			if err != nil {
				return err
			}
			for _, email := range list.Emails {
				if _, err := current.admin.AllowEmail(cmd.Context(), email, list.AddedBy); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d emails\n", len(list.Emails))
			return nil
		},
	}
	importCmd.Flags().StringVarP(&file, "file", "f", "", "YAML file with an emails list")
	importCmd.MarkFlagRequired("file")
	cmd.AddCommand(importCmd)

	return cmd
}
