package drivers

import (
	"time"

	"github.com/benbjohnson/clock"
)

type DebounceOption func(*DebouncedInput)

func WithClock(c clock.Clock) DebounceOption {
	return func(di *DebouncedInput) {
		di.clock = c
	}
}

// DebouncedInput reports a new state only after the source has been steady
// for longer than the quiet period, counted from the last observed edge.
// IsChanged must be polled regularly; edges between polls are not seen.
type DebouncedInput struct {
	source DigitalInput
	quiet  time.Duration
	clock  clock.Clock

	state    bool
	lastRaw  bool
	lastEdge time.Time
}

func NewDebouncedInput(source DigitalInput, quiet time.Duration, opts ...DebounceOption) *DebouncedInput {
	di := &DebouncedInput{
		source: source,
		quiet:  quiet,
		clock:  clock.New(),
	}
	for _, opt := range opts {
		opt(di)
	}

	di.lastEdge = di.clock.Now()
	di.state = source.GetState()
	di.lastRaw = di.state

	return di
}

func (di *DebouncedInput) GetState() bool {
	return di.state
}

func (di *DebouncedInput) IsChanged() bool {
	raw := di.source.GetState()
	now := di.clock.Now()

	if raw != di.lastRaw {
		di.lastEdge = now
		di.lastRaw = raw
	}

	if now.Sub(di.lastEdge) > di.quiet && raw != di.state {
		di.state = raw
		return true
	}

	return false
}

func (di *DebouncedInput) QuietPeriod() time.Duration {
	return di.quiet
}
