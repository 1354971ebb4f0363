package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/charmbracelet/log"

	"github.com/hubertat/shiftio"
)

var (
	Version string
	Build   string
)

func main() {
	log.Info("shiftio started")
	log.Info("mock instance for testing purposes, runs without any hardware")

	syncDuration := 250 * time.Millisecond
	log.Info("chain refresh", "every", syncDuration)

	sk := &shiftio.ShiftIO{
		Name: "mock",
		Chain: shiftio.ChainConfig{
			OutModules: 2,
			InModules:  2,
			LineDriver: "mock",
			Loopback:   true,
		},
		Outputs: []*shiftio.Output{
			{Name: "fake light", Module: 0, Bit: 1, Homekit: "light"},
			{Name: "fake outlet", Module: 0, Bit: 2, Homekit: "outlet"},
			{Name: "fake relay", Module: 1, Bit: 0, Invert: true},
		},
		Inputs: []*shiftio.Input{
			{Name: "light echo", Module: 0, Bit: 1},
			{Name: "outlet echo", Module: 0, Bit: 2, Homekit: "motion"},
		},
		HomeKit: &shiftio.HomeKitConfig{
			Pin:       "88008800",
			Directory: "./mock_homekit",
		},
		Http: &shiftio.HttpConfig{Address: "127.0.0.1:8089"},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log.Info("will init shift chain...")
	err := sk.Init(ctx)
	defer sk.Close()
	if err != nil {
		log.Error("init failed", "err", err)
		return
	}

	sk.Board().MonitorStateChanges(os.Stdout)
	sk.PrintIoStatus(os.Stdout)

	go sk.StartTicker(ctx, syncDuration)
	go func() {
		err := sk.StartApi(ctx)
		if err != nil {
			log.Error("http api stopped", "err", err)
		}
	}()

	log.Info("starting mock with HomeKit service")
	err = sk.StartHomeKit(ctx, "mock: "+Version)
	if err != nil {
		log.Error("HomeKit stopped", "err", err)
	}
}
