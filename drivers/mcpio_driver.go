//go:build !tinygo

package drivers

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"github.com/racerxdl/go-mcp23017"
)

const mcpioDriverName = "mcpio"
const mcpPinCount = 16

// McpIO drives the chain from MCP23017 expander pins over I2C. Slow, but handy
// when the Pi header is taken.
type McpIO struct {
	BusNo uint8
	DevNo uint8

	device  *mcp23017.Device
	lines   []*McpLine
	isReady bool
	logger  *log.Logger
}

type McpLine struct {
	pin       uint8
	mode      LineMode
	activeLow bool

	device *mcp23017.Device
	logger *log.Logger
	err    error
}

func (ml *McpLine) write(level bool) {
	if ml.activeLow {
		level = !level
	}
	err := ml.device.DigitalWrite(ml.pin, mcp23017.PinLevel(level))
	if err != nil {
		ml.fail(err)
	}
}

func (ml *McpLine) fail(err error) {
	if ml.err == nil {
		ml.logger.Error("mcp line failed", "pin", ml.pin, "err", err)
	}
	ml.err = err
}

func (ml *McpLine) Assert() {
	ml.write(true)
}

func (ml *McpLine) Deassert() {
	ml.write(false)
}

// Sample reads the pin; a failed read counts as low.
func (ml *McpLine) Sample() bool {
	level, err := ml.device.DigitalRead(ml.pin)
	if err != nil {
		ml.fail(err)
		return false
	}
	return bool(level) != ml.activeLow
}

// Err returns the last I2C error seen on this line.
func (ml *McpLine) Err() error {
	return ml.err
}

func (ml *McpLine) String() string {
	return fmt.Sprintf("mcp pin %d (%s)", ml.pin, ml.mode)
}

func (mcp *McpIO) Setup(ctx context.Context) (err error) {
	mcp.logger = log.NewWithOptions(os.Stderr, log.Options{
		Prefix: "McpIO: ",
		Level:  log.GetLevel(),
	})

	mcp.device, err = mcp23017.Open(mcp.BusNo, mcp.DevNo)
	if err != nil {
		return errors.Wrapf(err, "failed to open mcp23017 (bus %d, device %d)", mcp.BusNo, mcp.DevNo)
	}

	mcp.isReady = true
	return nil
}

func (mcp *McpIO) Line(pin uint16, mode LineMode, activeLow bool) (DigitalLine, error) {
	if !mcp.isReady {
		return nil, errors.New("mcpio driver not ready")
	}
	if pin >= mcpPinCount {
		return nil, errors.Errorf("pin %d out of range (mcp23017 has %d pins)", pin, mcpPinCount)
	}
	for _, line := range mcp.lines {
		if uint16(line.pin) == pin {
			return nil, errors.Errorf("mcp pin %d already in use", pin)
		}
	}

	line := &McpLine{pin: uint8(pin), mode: mode, activeLow: activeLow, device: mcp.device, logger: mcp.logger}
	switch mode {
	case LineModePullUp:
		err := mcp.device.PinMode(line.pin, mcp23017.INPUT)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to set mode of pin %d", pin)
		}
		err = mcp.device.SetPullUp(line.pin, true)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to set pull-up of pin %d", pin)
		}
	default:
		err := mcp.device.PinMode(line.pin, mcp23017.OUTPUT)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to set mode of pin %d", pin)
		}
	}

	mcp.lines = append(mcp.lines, line)
	return line, nil
}

func (mcp *McpIO) String() string {
	return mcpioDriverName
}

func (mcp *McpIO) IsReady() bool {
	return mcp.isReady
}

func (mcp *McpIO) Close() error {
	if !mcp.isReady {
		return nil
	}
	mcp.isReady = false
	for _, line := range mcp.lines {
		if line.mode == LineModePushPull {
			line.Deassert()
		}
	}
	return mcp.device.Close()
}
