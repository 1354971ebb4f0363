package drivers

import (
	"context"
)

// DigitalLine drives or samples one physical signal.
type DigitalLine interface {
	Assert()
	Deassert()
	Sample() bool
}

type LineMode int

const (
	LineModePushPull LineMode = iota
	LineModePullUp
)

func (lm LineMode) String() string {
	switch lm {
	case LineModePushPull:
		return "push-pull"
	case LineModePullUp:
		return "pull-up"
	}
	return "unknown"
}

// LineDriver hands out configured lines for a pin numbering scheme (Pi header, expander pins).
type LineDriver interface {
	Setup(ctx context.Context) error
	Line(pin uint16, mode LineMode, activeLow bool) (DigitalLine, error)
	Close() error
	String() string
	IsReady() bool
}

type DigitalInput interface {
	GetState() bool
	IsChanged() bool
}

type DigitalOutput interface {
	GetState() bool
	Set(bool)
}
