package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Refresh the chain once and print every line",
	RunE: func(cmd *cobra.Command, args []string) error {
		sk, err := loadShiftIO()
		if err != nil {
			return err
		}
		// status never touches the broker
		sk.Mqtt = nil
		sk.Influx = nil

		err = sk.Init(context.Background())
		// outputs stay as the running controller latched them
		defer sk.CloseKeepOutputs()
		if err != nil {
			return err
		}

		sk.Tick()
		sk.PrintIoStatus(os.Stdout)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
