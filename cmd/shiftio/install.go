package main

import (
	"github.com/charmbracelet/log"
	"github.com/hubertat/servicemaker"
	"github.com/spf13/cobra"
)

var shiftioService = servicemaker.ServiceMaker{
	User:               "shiftio",
	UserGroups:         []string{"gpio", "i2c"},
	ServicePath:        "/etc/systemd/system/shiftio.service",
	ServiceDescription: "ShiftIO service: shift register IO over MQTT and HomeKit. github.com/hubertat/shiftio",
	ExecDir:            "/srv/shiftio",
	ExecName:           "shiftio",
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install shiftio as a systemd service",
	RunE: func(cmd *cobra.Command, args []string) error {
		err := shiftioService.InstallService()
		if err != nil {
			return err
		}
		log.Info("service installed!")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(installCmd)
}
