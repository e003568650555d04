package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func NewWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "watch",
		Short:   "Stream desk events",
		GroupID: gAdvanced,
		Long: `Stream desk events as they happen.

Prints one line per event (height changes, mode transitions, saved presets, recorded motions, displayed errors, fired schedules) until interrupted with Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ch, err := apiClient.Events(ctx)
			if err != nil {
				return fmt.Errorf("failed to subscribe to events: %v", err)
			}

			for ev := range ch {
				cmd.Printf("%s  %s  %s\n",
					time.Now().Format(time.TimeOnly),
					bold("%-17s", ev.Name),
					ev.Data)
			}

			if ctx.Err() != nil {
				// Interrupted by the user.
				return nil
			}
			return fmt.Errorf("event stream closed by daemon")
		},
	}
}
