package main

import (
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/DerRheingold/deskd/pkg/desk"
)

func NewPressCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "press up|down|sit|stand <duration>",
		Short:   "Hold a desk panel button",
		GroupID: gAdvanced,
		Long: `Hold a desk panel button for a duration.

This is the raw input path underneath the motion commands: the held button goes through the same debounce and gesture classification as a physical press. Useful for exercising gestures the porcelain commands do not cover. For everyday use, prefer "deskd up", "deskd sit", and friends.`,
		Example: `  deskd press up 2s      (hold the up button for 2 seconds)
  deskd press sit 150ms  (tap the sit preset button)`,
		Args: cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			btn, err := desk.ParseButton(args[0])
			if err != nil {
				return err
			}

			d, err := parseDurationArg(args, "hold duration")
			if err != nil {
				return err
			}

			ret, err := apiClient.Press(btn, d)
			if err != nil {
				return fmt.Errorf("failed to press %s: %v", btn, err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			logrus.Infof("pressing %s for %s", btn, d)

			return nil
		},
	}
}

func NewSimFaultCommand() *cobra.Command {
	return newEnableDisableCommand(
		"sim-fault",
		"Set whether the simulated height sensor is faulted",
		`Set whether the simulated height sensor is faulted.

Only works when the daemon runs the sim backend. A faulted sensor makes the desk display E2, refuse preset seeks and saves, and abort any seek in progress. Use it to exercise failure handling without a real desk.`,
		func() (string, error) { return apiClient.SetSimFault(true) },
		func() (string, error) { return apiClient.SetSimFault(false) },
	)
}

func NewSimHeightCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "sim-height <centimeters>",
		Short:   "Teleport the simulated desk to a height",
		GroupID: gAdvanced,
		Long: `Teleport the simulated desk to a height in centimeters.

Only works when the daemon runs the sim backend. The sim clamps the height to its travel limits. Useful for starting a scenario at a known height without waiting for the frame to drive there.`,
		Example: `  deskd sim-height 85    (park the frame at 85 cm)`,
		Args:    cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cm, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("invalid height %q: %v", args[0], err)
			}

			ret, err := apiClient.SetSimHeight(cm)
			if err != nil {
				return fmt.Errorf("failed to set sim height: %v", err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			return nil
		},
	}
}
