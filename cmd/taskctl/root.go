package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/ytakahashi/team-task-tracker/internal/calendar"
	"github.com/ytakahashi/team-task-tracker/internal/config"
	"github.com/ytakahashi/team-task-tracker/internal/services"
	"github.com/ytakahashi/team-task-tracker/internal/usecases"
)

// env is what every subcommand works against. It is set up before a
// subcommand runs and torn down after.
type env struct {
	cfg      *config.Config
	store    services.Store
	admin    *usecases.AdminService
	calendar *usecases.CalendarService
}

var (
	current *env

	// openStore is replaced in tests.
	openStore = (*config.Config).OpenStore
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "taskctl",
		Short:         "Operate the team task tracker",
		Long:          `taskctl manages the sign-in allow-list, user roles and calendar watch channels of the team task tracker.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.ValidateStore(); err != nil {
				return err
			}
			slog.SetDefault(cfg.NewLogger())

			store, err := openStore(cfg)
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}
			provider := calendar.NewGoogleProvider(cfg.CalendarClientID, cfg.CalendarClientSecret, cfg.CalendarRedirectURI)
			current = &env{
				cfg:   cfg,
				store: store,
				admin: usecases.NewAdminService(store.Users(), store.AllowedEmails(), nil),
				calendar: usecases.NewCalendarService(store, provider, usecases.CalendarServiceOptions{
					WebhookURL: cfg.CalendarWebhookURL,
				}),
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if current == nil {
				return nil
			}
			err := current.store.Close()
			current = nil
			return err
		},
	}

	root.AddCommand(newAllowCmd())
	root.AddCommand(newUsersCmd())
	root.AddCommand(newWatchCmd())
	return root
}

func execute(args []string) error {
	root := newRootCmd()
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
