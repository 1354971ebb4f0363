// Package pico runs a shift chain standalone on a microcontroller: inputs are
// debounced locally and their clicks switch outputs without any bus.
package pico

import (
	"errors"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/hubertat/shiftio/drivers"
)

const debounceClickTime = 50 * time.Millisecond
const clickToClickDuration = 300 * time.Millisecond

type Option func(*Board)

func WithClock(c clock.Clock) Option {
	return func(b *Board) {
		b.clock = c
	}
}

// Button counts clicks on a debounced input. With one event every press fires
// it at once. With more, the n-th event fires after n presses spaced by less
// than the click-to-click window, or at once when n is the last event.
type Button struct {
	input  *drivers.DebouncedInput
	events []Event

	clicks    int
	lastClick time.Time
}

func (bt *Button) AppendClickedEvent(e Event) {
	bt.events = append(bt.events, e)
}

func (bt *Button) ClearClickedEvents() {
	bt.events = nil
	bt.clicks = 0
}

func (bt *Button) Input() *drivers.DebouncedInput {
	return bt.input
}

func (bt *Button) fire(index int) {
	bt.clicks = 0
	if index < len(bt.events) {
		bt.events[index].Fire()
	}
}

func (bt *Button) click(now time.Time) {
	switch len(bt.events) {
	case 0:
		return
	case 1:
		bt.fire(0)
		return
	}

	bt.clicks++
	bt.lastClick = now
	if bt.clicks >= len(bt.events) {
		bt.fire(len(bt.events) - 1)
	}
}

func (bt *Button) expire(now time.Time) {
	if bt.clicks > 0 && now.Sub(bt.lastClick) >= clickToClickDuration {
		bt.fire(bt.clicks - 1)
	}
}

type Board struct {
	name    string
	chain   *drivers.ShiftChain
	clock   clock.Clock
	buttons []*Button
}

func NewBoard(name string, chain *drivers.ShiftChain, opts ...Option) (*Board, error) {
	if chain == nil {
		return nil, errors.New("board needs a chain")
	}

	b := &Board{
		name:  name,
		chain: chain,
		clock: clock.New(),
	}
	for _, opt := range opts {
		opt(b)
	}

	return b, nil
}

func (b *Board) Name() string {
	return b.name
}

func (b *Board) Chain() *drivers.ShiftChain {
	return b.chain
}

// Button binds the input port to a new click counter. Presses are the
// debounced transitions to true.
func (b *Board) Button(port drivers.Port) *Button {
	bt := &Button{
		input: drivers.NewDebouncedInput(b.chain.Input(port), debounceClickTime, drivers.WithClock(b.clock)),
	}
	b.buttons = append(b.buttons, bt)
	return bt
}

func (b *Board) Output(port drivers.Port) *drivers.ShiftOutput {
	return b.chain.Output(port)
}

// Step refreshes the chain and fires any events that became due. Outputs
// switched here are latched on the next step.
func (b *Board) Step() {
	b.chain.Refresh()

	now := b.clock.Now()
	for _, bt := range b.buttons {
		if bt.input.IsChanged() && bt.input.GetState() {
			bt.click(now)
			continue
		}
		bt.expire(now)
	}
}

func (b *Board) Run(interval time.Duration, stop <-chan struct{}) {
	ticker := b.clock.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			b.Step()
		}
	}
}
