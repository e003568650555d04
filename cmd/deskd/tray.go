package main

import (
	"github.com/spf13/cobra"

	"github.com/DerRheingold/deskd/pkg/tray"
)

func NewTrayCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "tray",
		Short:   "Run the system tray app",
		GroupID: gAdvanced,
		Long: `Run the system tray app.

Shows the desk height and mode in the system tray and offers sit, stand, and stop actions. Needs a running daemon.`,
		Args: cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			tray.Run(unixSocketPath)
		},
	}
}
