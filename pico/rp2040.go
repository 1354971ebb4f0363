//go:build tinygo

package pico

import (
	"machine"

	"github.com/hubertat/shiftio/drivers"
)

const picoType1 string = "PicoType1"

// PicoType1 is two output and two input modules on GP2..GP6, with the
// first inputs toggling the first relays.
func PicoType1() (*Board, error) {
	lines := drivers.ChainLines{
		OutLatch: drivers.NewMachineLine(machine.GP2, drivers.LineModePushPull, false),
		OutData:  drivers.NewMachineLine(machine.GP3, drivers.LineModePushPull, false),
		InLatch:  drivers.NewMachineLine(machine.GP4, drivers.LineModePushPull, true),
		InData:   drivers.NewMachineLine(machine.GP5, drivers.LineModePullUp, false),
		Clock:    drivers.NewMachineLine(machine.GP6, drivers.LineModePushPull, false),
	}

	chain, err := drivers.NewShiftChain(2, 2, lines, drivers.WithGuard(&drivers.InterruptGuard{}))
	if err != nil {
		return nil, err
	}

	b, err := NewBoard(picoType1, chain)
	if err != nil {
		return nil, err
	}

	for bit := uint8(0); bit < 3; bit++ {
		b.Button(drivers.Port{Module: 0, Bit: bit}).AppendClickedEvent(NewEvent(ActionToggle, b.Output(drivers.Port{Module: 0, Bit: bit})))
	}

	multi := b.Button(drivers.Port{Module: 1, Bit: 0})
	multi.AppendClickedEvent(NewEvent(ActionToggle, b.Output(drivers.Port{Module: 0, Bit: 4})))
	multi.AppendClickedEvent(NewEvent(ActionToggle, b.Output(drivers.Port{Module: 0, Bit: 3})))
	multi.AppendClickedEvent(NewEvent(ActionSwitchOff,
		b.Output(drivers.Port{Module: 0, Bit: 3}),
		b.Output(drivers.Port{Module: 0, Bit: 4}),
	))

	return b, nil
}
