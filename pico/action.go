package pico

import "github.com/hubertat/shiftio/drivers"

type Action int

const (
	ActionSwitchOn Action = iota
	ActionSwitchOff
	ActionToggle
)

func (a Action) String() string {
	switch a {
	case ActionSwitchOn:
		return "on"
	case ActionSwitchOff:
		return "off"
	case ActionToggle:
		return "toggle"
	}
	return "unknown"
}

// Event applies one action to one or more outputs.
type Event struct {
	action  Action
	outputs []drivers.DigitalOutput
}

func NewEvent(action Action, outs ...drivers.DigitalOutput) Event {
	return Event{
		action:  action,
		outputs: outs,
	}
}

func (e Event) Fire() {
	for _, out := range e.outputs {
		switch e.action {
		case ActionSwitchOn:
			out.Set(true)
		case ActionSwitchOff:
			out.Set(false)
		case ActionToggle:
			out.Set(!out.GetState())
		}
	}
}
