package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.Close()
		a.logger.Info("database migrated", "dir", a.cfg.Database.DataDir)
		return nil
	},
}

func deadlinesCmd() *cobra.Command {
	var within time.Duration
	cmd := &cobra.Command{
		Use:   "deadlines",
		Short: "Notify assignees of unfinished tasks due soon",
		Long: `Send DEADLINE notifications for unfinished tasks due inside the window.
Each assignee is reminded about a task at most once per window, so the
command is safe to run from cron.

Examples:
  cloudtask deadlines
  cloudtask deadlines --within 48h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.Close()

			sent, err := a.svc.NotifyUpcomingDeadlines(cmd.Context(), within)
			if err != nil {
				return fmt.Errorf("deadline reminders: %w", err)
			}
			a.logger.Info("deadline reminders sent", "count", sent, "within", within)
			return nil
		},
	}
	cmd.Flags().DurationVar(&within, "within", 24*time.Hour, "reminder window")
	return cmd
}
