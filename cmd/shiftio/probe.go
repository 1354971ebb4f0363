package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/hubertat/shiftio/mqtt"
)

var probeFor time.Duration

var probeCmd = &cobra.Command{
	Use:   "probe [topic...]",
	Short: "Connect to the configured broker and log incoming messages",
	RunE: func(cmd *cobra.Command, args []string) error {
		sk, err := loadShiftIO()
		if err != nil {
			return err
		}
		if sk.Mqtt == nil || len(sk.Mqtt.Broker) == 0 {
			return errors.New("mqtt broker not set")
		}

		cfg := sk.Mqtt.Config
		cfg.ClientId = mqtt.DefaultClientId()
		mc, err := mqtt.NewMqttClient(cfg)
		if err != nil {
			return err
		}

		topics := args
		if len(topics) == 0 {
			topics = []string{sk.TopicRoot() + "#"}
		}
		mc.OnReconnect(func() {
			for _, topic := range topics {
				mc.Subscribe(topic)
			}
		})
		mc.OnMessage(func(topic string, payload []byte) {
			log.Info("received mqtt message", "topic", topic, "payload", string(payload))
		})

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		err = mc.Connect(ctx)
		if err != nil {
			return err
		}
		defer mc.Disconnect(context.Background())

		log.Info("mqtt client connected", "topics", topics, "for", probeFor)
		select {
		case <-ctx.Done():
		case <-time.After(probeFor):
		}
		return nil
	},
}

func init() {
	probeCmd.Flags().DurationVar(&probeFor, "for", time.Minute, "how long to listen")
	rootCmd.AddCommand(probeCmd)
}
