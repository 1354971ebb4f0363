package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hubertat/shiftio"
)

const defaultSyncInterval = 10 * time.Millisecond

var syncInterval time.Duration

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the controller until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		log.Info("shiftio started", "version", Version, "build", Build)

		sk, err := loadShiftIO()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.Info("will init shift chain...")
		err = sk.Init(ctx)
		defer sk.Close()
		if err != nil {
			return err
		}
		sk.PrintIoStatus(os.Stdout)

		if sk.Mqtt != nil && len(sk.Mqtt.Broker) > 0 {
			err = sk.ConnectMqtt(ctx)
			if err != nil {
				log.Error("mqtt unavailable, continuing without it", "err", err)
			}
		} else {
			log.Info("mqtt not configured, disabled")
		}

		group, ctx := errgroup.WithContext(ctx)
		group.Go(func() error {
			sk.StartTicker(ctx, syncInterval)
			return nil
		})

		if sk.HomeKit.Enabled() {
			log.Info("starting with HomeKit server")
			group.Go(func() error {
				return sk.StartHomeKit(ctx, Version)
			})
		} else {
			log.Info("HomeKit not configured, disabled")
		}

		if sk.Http != nil && len(sk.Http.Address) > 0 {
			group.Go(func() error {
				return sk.StartApi(ctx)
			})
		}

		return group.Wait()
	},
}

func loadShiftIO() (*shiftio.ShiftIO, error) {
	err := shiftio.LoadEnvFiles(envFiles...)
	if err != nil {
		return nil, err
	}

	return shiftio.LoadConfig(configPath)
}

func init() {
	runCmd.Flags().DurationVar(&syncInterval, "sync", defaultSyncInterval, "chain refresh interval")
	rootCmd.AddCommand(runCmd)
}
