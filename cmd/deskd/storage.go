package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func NewStorageCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "storage",
		Short:   "Manage persisted presets and recordings",
		GroupID: gAdvanced,
	}

	cmd.AddCommand(newStorageWipeCommand())

	return cmd
}

func newStorageWipeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "wipe",
		Short: "Wipe persisted presets and recordings",
		Long: `Wipe persisted presets and recordings.

Clears the saved sit/stand presets and recorded motions from persistent storage. On the serial backend this wipes the controller board's flash. The desk keeps working afterwards; you just have to save your presets again.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ret, err := apiClient.WipeStorage()
			if err != nil {
				return fmt.Errorf("failed to wipe storage: %v", err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			logrus.Infof("storage wiped")

			return nil
		},
	}
}
