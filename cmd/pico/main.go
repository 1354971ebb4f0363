//go:build tinygo

package main

import (
	"fmt"
	"machine"
	"time"

	"github.com/hubertat/shiftio/pico"
)

const stepInterval = 5 * time.Millisecond

func main() {
	board, err := pico.PicoType1()
	if err != nil {
		fmt.Println("setup failed: ", err.Error())
		panic(err)
	}

	fmt.Println("setup OK!", board.Name())

	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})

	heartbeat := time.Now()
	for {
		board.Step()

		if time.Since(heartbeat) > time.Second {
			led.Set(!led.Get())
			heartbeat = time.Now()
		}
		time.Sleep(stepInterval)
	}
}
