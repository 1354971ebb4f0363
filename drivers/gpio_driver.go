//go:build !tinygo

package drivers

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/stianeikeland/go-rpio/v4"
)

const gpioDriverName = "gpio"

// GpIO hands out Raspberry Pi header pins (BCM numbering) as chain lines.
type GpIO struct {
	lines   []*GpioLine
	isReady bool
}

type GpioLine struct {
	pin       rpio.Pin
	mode      LineMode
	activeLow bool
}

func (gl *GpioLine) Assert() {
	if gl.activeLow {
		gl.pin.Low()
	} else {
		gl.pin.High()
	}
}

func (gl *GpioLine) Deassert() {
	if gl.activeLow {
		gl.pin.High()
	} else {
		gl.pin.Low()
	}
}

func (gl *GpioLine) Sample() bool {
	if gl.activeLow {
		return gl.pin.Read() == rpio.Low
	}
	return gl.pin.Read() == rpio.High
}

func (gl *GpioLine) String() string {
	return fmt.Sprintf("gpio%d (%s)", uint8(gl.pin), gl.mode)
}

func (gp *GpIO) Setup(ctx context.Context) error {
	err := rpio.Open()
	if err != nil {
		return errors.Wrap(err, "failed to setup gpio driver")
	}

	gp.isReady = true
	return nil
}

func (gp *GpIO) Line(pin uint16, mode LineMode, activeLow bool) (DigitalLine, error) {
	if !gp.isReady {
		return nil, errors.New("gpio driver not ready")
	}
	if pin > 255 {
		return nil, errors.Errorf("pin %d out of range (gpio takes uint8 pin)", pin)
	}
	for _, line := range gp.lines {
		if uint16(line.pin) == pin {
			return nil, errors.Errorf("gpio pin %d already in use", pin)
		}
	}

	line := &GpioLine{pin: rpio.Pin(pin), mode: mode, activeLow: activeLow}
	switch mode {
	case LineModePullUp:
		line.pin.Input()
		line.pin.PullUp()
	default:
		line.pin.Output()
	}

	gp.lines = append(gp.lines, line)
	return line, nil
}

func (gp *GpIO) String() string {
	return gpioDriverName
}

func (gp *GpIO) IsReady() bool {
	return gp.isReady
}

func (gp *GpIO) Close() error {
	if !gp.isReady {
		return nil
	}
	gp.isReady = false
	for _, line := range gp.lines {
		if line.mode == LineModePushPull {
			line.Deassert()
		}
	}
	return rpio.Close()
}
