package main

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/DerRheingold/deskd/pkg/desk"
	"github.com/DerRheingold/deskd/pkg/version"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s %s\n", version.Version, version.GitCommit)
		},
	}
}

func NewSitCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "sit",
		Short:   "Move the desk to the sit preset",
		GroupID: gBasic,
		Long: `Move the desk to the saved sit preset.

The desk seeks under sensor feedback until it reaches the saved height. Selecting a preset while the desk is already moving cancels the motion in progress and starts the new one, so you never need to stop first.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			ret, err := apiClient.Seek(desk.SlotSit)
			if err != nil {
				return fmt.Errorf("failed to move to sit preset: %v", err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			logrus.Infof("moving to sit preset")

			return nil
		},
	}
}

func NewStandCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "stand",
		Short:   "Move the desk to the stand preset",
		GroupID: gBasic,
		Long: `Move the desk to the saved stand preset.

The desk seeks under sensor feedback until it reaches the saved height. Selecting a preset while the desk is already moving cancels the motion in progress and starts the new one, so you never need to stop first.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			ret, err := apiClient.Seek(desk.SlotStand)
			if err != nil {
				return fmt.Errorf("failed to move to stand preset: %v", err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			logrus.Infof("moving to stand preset")

			return nil
		},
	}
}

func newJogCommand(use, short string, dir desk.Direction) *cobra.Command {
	return &cobra.Command{
		Use:     use + " [duration]",
		Short:   short,
		GroupID: gBasic,
		Long: short + `.

Nudges the desk for the given duration, 1s if omitted. This is the same as holding the ` + use + ` button on the desk panel: the motors run while the button is held and stop when it is released.`,
		Example: fmt.Sprintf(`  deskd %s      (nudge for 1 second)
  deskd %s 3s   (nudge for 3 seconds)
  deskd %s 500ms`, use, use, use),
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			d := time.Second
			if len(args) > 0 {
				parsed, err := time.ParseDuration(args[0])
				if err != nil {
					return fmt.Errorf("invalid duration %q: %w", args[0], err)
				}
				d = parsed
			}

			ret, err := apiClient.Jog(dir, d)
			if err != nil {
				return fmt.Errorf("failed to move %s: %v", use, err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			logrus.Infof("moving %s for %s", use, d)

			return nil
		},
	}
}

func NewUpCommand() *cobra.Command {
	return newJogCommand("up", "Move the desk up", desk.Raise)
}

func NewDownCommand() *cobra.Command {
	return newJogCommand("down", "Move the desk down", desk.Lower)
}

func NewStopCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "stop",
		Short:   "Stop the desk",
		GroupID: gBasic,
		Long:    `Stop the desk. Cancels whatever is in progress: a manual move, a preset seek, playback, or recording.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			ret, err := apiClient.Stop()
			if err != nil {
				return fmt.Errorf("failed to stop the desk: %v", err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			logrus.Infof("desk stopped")

			return nil
		},
	}
}

func NewSaveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "save sit|stand",
		Short:   "Save the current height as a preset",
		GroupID: gBasic,
		Long: `Save the current height as the sit or stand preset.

The sit preset must stay below the stand preset; a save that would violate that order is rejected. Presets persist across restarts.`,
		Example: `  deskd save sit    (save current height as the sit preset)
  deskd save stand  (save current height as the stand preset)`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			slot, err := desk.ParseSlot(args[0])
			if err != nil {
				return err
			}

			ret, err := apiClient.SavePreset(slot)
			if err != nil {
				return fmt.Errorf("failed to save %s preset: %v", slot, err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			logrus.Infof("saved %s preset", slot)

			return nil
		},
	}
}

func NewPlayCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "play up|down",
		Short:   "Replay a recorded motion",
		GroupID: gBasic,
		Long: `Replay a recorded motion.

Drives the desk in the given direction for the exact duration recorded earlier with "deskd record". Fails if no motion has been recorded for that direction.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			dir, err := desk.ParseDirection(args[0])
			if err != nil {
				return err
			}

			ret, err := apiClient.Play(dir)
			if err != nil {
				return fmt.Errorf("failed to play %s motion: %v", dir, err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			logrus.Infof("playing recorded %s motion", dir)

			return nil
		},
	}
}

func NewRecordCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "record up|down <duration>",
		Short:   "Record a motion for later replay",
		GroupID: gBasic,
		Long: `Record a motion for later replay.

Drives the desk in the given direction for the given duration and stores that duration. "deskd play" replays it later. Each direction keeps one recording; recording again replaces it.`,
		Example: `  deskd record up 9s
  deskd record down 8.5s`,
		Args: cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			dir, err := desk.ParseDirection(args[0])
			if err != nil {
				return err
			}

			d, err := time.ParseDuration(args[1])
			if err != nil {
				return fmt.Errorf("invalid duration %q: %w", args[1], err)
			}

			ret, err := apiClient.Record(dir, d)
			if err != nil {
				return fmt.Errorf("failed to record %s motion: %v", dir, err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			logrus.Infof("recording %s motion of %s", dir, d)

			return nil
		},
	}
}
