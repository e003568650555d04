package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/DerRheingold/deskd/pkg/config"
	"github.com/DerRheingold/deskd/pkg/desk"
)

func NewScheduleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "schedule",
		Aliases: []string{"sch", "sche", "sched"},
		Short:   "Manage scheduled desk moves",
		Long: `Manage scheduled desk moves.

The schedule command can be used in multiple ways:
  deskd schedule show                           Show configured schedules
  deskd schedule add <name> <cron> <sit|stand>  Add or replace a schedule
  deskd schedule remove <name>                  Remove a schedule
  deskd schedule skip <name>                    Skip the next run of a schedule

Schedules move the desk to a preset on a five-field cron spec. A schedule only fires when the desk is idle and healthy; otherwise the run is retried for a short while and then skipped.`,
		Example: `  deskd schedule add morning '0 9 * * 1-5' stand  (Stand at 09:00 on weekdays)
  deskd schedule add lunch '30 12 * * *' sit      (Sit at 12:30 every day)
  deskd schedule skip morning                     (Sleep in next Monday)`,
		GroupID: gAdvanced,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// If no arguments, show the configured schedules
			return runScheduleShow(cmd)
		},
	}

	// Add subcommands
	cmd.AddCommand(
		newScheduleShowCommand(),
		newScheduleAddCommand(),
		newScheduleRemoveCommand(),
		newScheduleSkipCommand(),
	)

	return cmd
}

func newScheduleShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show configured schedules",
		Long:  "Show configured schedules and their next run times.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScheduleShow(cmd)
		},
	}
}

func newScheduleAddCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "add <name> <cron> <sit|stand>",
		Short: "Add or replace a schedule",
		Long: `Add a schedule, or replace the schedule with the same name.

The cron spec has five fields: minute hour day-of-month month day-of-week. Descriptors like @daily also work.`,
		Example: `  deskd schedule add morning '0 9 * * 1-5' stand
  deskd schedule add lunch '30 12 * * *' sit`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, cron := args[0], args[1]
			if _, err := desk.ParseSlot(args[2]); err != nil {
				return err
			}

			entries, err := apiClient.GetSchedules()
			if err != nil {
				return err
			}

			schedules := make([]config.Schedule, 0, len(entries)+1)
			replaced := false
			for _, e := range entries {
				if e.Name == name {
					schedules = append(schedules, config.Schedule{Name: name, Cron: cron, Action: args[2]})
					replaced = true
					continue
				}
				schedules = append(schedules, config.Schedule{Name: e.Name, Cron: e.Cron, Action: e.Action})
			}
			if !replaced {
				schedules = append(schedules, config.Schedule{Name: name, Cron: cron, Action: args[2]})
			}

			if _, err := apiClient.SetSchedules(schedules); err != nil {
				return err
			}

			if replaced {
				cmd.Printf("Schedule %q replaced.\n", name)
			} else {
				cmd.Printf("Schedule %q added.\n", name)
			}
			return runScheduleShow(cmd)
		},
	}
}

func newScheduleRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm", "delete"},
		Short:   "Remove a schedule",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			entries, err := apiClient.GetSchedules()
			if err != nil {
				return err
			}

			schedules := make([]config.Schedule, 0, len(entries))
			found := false
			for _, e := range entries {
				if e.Name == name {
					found = true
					continue
				}
				schedules = append(schedules, config.Schedule{Name: e.Name, Cron: e.Cron, Action: e.Action})
			}
			if !found {
				return fmt.Errorf("no schedule named %q", name)
			}

			if _, err := apiClient.SetSchedules(schedules); err != nil {
				return err
			}

			cmd.Printf("Schedule %q removed.\n", name)
			return nil
		},
	}
}

func newScheduleSkipCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "skip <name>",
		Short: "Skip the next run of a schedule",
		Long:  "Skip the next run of a schedule. The one after that runs normally.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ret, err := apiClient.SkipSchedule(args[0])
			if err != nil {
				return err
			}

			cmd.Printf("Next run of %q skipped.\n", args[0])
			if ret != "" {
				cmd.Printf("Daemon responded: %s\n", ret)
			}
			return nil
		},
	}
}

func runScheduleShow(cmd *cobra.Command) error {
	entries, err := apiClient.GetSchedules()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		cmd.Println("No schedules configured.")
		return nil
	}
	cmd.Printf("%d schedule(s):\n", len(entries))
	for _, e := range entries {
		cmd.Printf("  - %s: %s at %q, next run %s\n",
			e.Name, e.Action, e.Cron, e.NextRun.Local().Format(time.DateTime))
	}
	return nil
}
