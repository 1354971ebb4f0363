//go:build tinygo

package drivers

import (
	"machine"
	"runtime/interrupt"
)

// MachineLine is a microcontroller pin driven through TinyGo's machine package.
type MachineLine struct {
	pin       machine.Pin
	activeLow bool
}

func NewMachineLine(pin machine.Pin, mode LineMode, activeLow bool) *MachineLine {
	switch mode {
	case LineModePullUp:
		pin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	default:
		pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	}
	return &MachineLine{pin: pin, activeLow: activeLow}
}

func (ml *MachineLine) Assert() {
	ml.pin.Set(!ml.activeLow)
}

func (ml *MachineLine) Deassert() {
	ml.pin.Set(ml.activeLow)
}

func (ml *MachineLine) Sample() bool {
	return ml.pin.Get() != ml.activeLow
}

// InterruptGuard masks interrupts while held, so a refresh cannot be
// stretched by an interrupt handler in the middle of a byte.
type InterruptGuard struct {
	state interrupt.State
}

func (ig *InterruptGuard) Lock() {
	ig.state = interrupt.Disable()
}

func (ig *InterruptGuard) Unlock() {
	interrupt.Restore(ig.state)
}
