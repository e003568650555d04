package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/DerRheingold/deskd/pkg/client"
	"github.com/DerRheingold/deskd/pkg/config"
	"github.com/DerRheingold/deskd/pkg/desk"
)

type statusData struct {
	status    *desk.Status
	schedules []client.ScheduleStatus
	config    *config.RawFileConfig
}

// fetchStatusData gathers all data required for the status command from the daemon.
func fetchStatusData() (*statusData, error) {
	status, err := apiClient.GetStatus()
	if err != nil {
		return nil, fmt.Errorf("failed to get desk status: %w", err)
	}

	schedules, err := apiClient.GetSchedules()
	if err != nil {
		return nil, fmt.Errorf("failed to get schedules: %w", err)
	}

	conf, err := apiClient.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to get config: %w", err)
	}

	return &statusData{
		status:    status,
		schedules: schedules,
		config:    conf,
	}, nil
}

func NewStatusCommand() *cobra.Command {
	jsonOutput := false

	cmd := &cobra.Command{
		Use:     "status",
		GroupID: gBasic,
		Short:   "Get the current status of the desk",
		Long:    `Get desk status, presets, recorded motions, schedules, and configuration.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Get various info first.
			data, err := fetchStatusData()
			if err != nil {
				return err
			}

			config := config.NewFileFromConfig(data.config, "")

			if jsonOutput {
				return printStatusJSON(cmd, data, config)
			}

			st := data.status

			// Desk state.
			cmd.Println(bold("Desk:"))

			if st.Height.Fault() {
				cmd.Println("  Height: " + color.New(color.Bold, color.FgRed).Sprint("sensor fault"))
			} else {
				cmd.Println("  Height: " + bold("%s", st.Height))
			}

			state := st.Mode.String()
			switch st.Moving {
			case "raise":
				state = color.GreenString("%s, raising", st.Mode)
			case "lower":
				state = color.GreenString("%s, lowering", st.Mode)
			}
			cmd.Printf("  Mode: %s\n", bold("%s", state))

			if st.Display != "" {
				cmd.Printf("  Display: %s\n", bold("[%s]", st.Display))
			}

			backend := describeBackend(st.Backend, config)
			cmd.Println("  Link: " + bool2Text(st.Linked) + " (" + backend + ")")
			if !st.Linked {
				cmd.Println("    The controller board is not responding. Status shown is the last known state.")
			}

			if st.LastError != nil {
				cmd.Printf("  Last error: %s (E%d) at %s\n",
					color.RedString(st.LastError.Message),
					uint8(st.LastError.Code),
					st.LastError.At.Local().Format(time.Kitchen))
			}

			cmd.Println()

			// Presets.
			cmd.Println(bold("Presets:"))
			cmd.Printf("  Sit: %s\n", heightText(desk.Height(st.Presets.SitHeightCm)))
			cmd.Printf("  Stand: %s\n", heightText(desk.Height(st.Presets.StandHeightCm)))

			cmd.Println()

			// Recorded motions.
			cmd.Println(bold("Recorded motions:"))
			cmd.Printf("  Up: %s\n", recordingText(st.Program.RaiseRecorded, st.Program.RaiseMs))
			cmd.Printf("  Down: %s\n", recordingText(st.Program.LowerRecorded, st.Program.LowerMs))

			cmd.Println()

			// Schedules.
			cmd.Println(bold("Schedules:"))
			if len(data.schedules) == 0 {
				cmd.Println("  (none)")
			}
			for _, s := range data.schedules {
				cmd.Printf("  - %s: %s at %q, next run %s\n",
					bold("%s", s.Name), s.Action, s.Cron,
					s.NextRun.Local().Format(time.DateTime))
			}

			cmd.Println()

			// Config.
			cmd.Println(bold("Daemon configuration:"))
			cmd.Printf("  Backend: %s\n", bold("%s", describeBackend(config.Backend(), config)))
			cmd.Printf("  Settings path: %s\n", bold("%s", config.SettingsPath()))
			cmd.Printf("  Allow non-root users to access the daemon: %s\n", bool2Text(config.AllowNonRootAccess()))

			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output status as JSON")

	return cmd
}

// describeBackend names the backend with the serial device when one is
// in use.
func describeBackend(backend string, conf *config.File) string {
	if backend == config.BackendSerial {
		return fmt.Sprintf("serial %s @ %d", conf.SerialDevice(), conf.SerialBaudRate())
	}
	return backend
}

func heightText(h desk.Height) string {
	if !h.Set() {
		return color.New(color.Bold, color.FgRed).Sprint("✘ not saved")
	}
	return bold("%s", h)
}

func recordingText(recorded bool, ms int64) string {
	if !recorded {
		return color.New(color.Bold, color.FgRed).Sprint("✘ not recorded")
	}
	return bold("%s", time.Duration(ms)*time.Millisecond)
}

func bool2Text(b bool) string {
	if b {
		return color.New(color.Bold, color.FgGreen).Sprint("✔")
	}
	return color.New(color.Bold, color.FgRed).Sprint("✘")
}

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}
