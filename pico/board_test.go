package pico

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hubertat/shiftio/drivers"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type testBoard struct {
	*Board
	mock  *drivers.MockBoard
	clock *clock.Mock
}

func newTestBoard(t *testing.T) *testBoard {
	t.Helper()

	mock := drivers.NewMockBoard(1, 1)
	chain, err := drivers.NewShiftChain(1, 1, mock.Lines())
	require.NoError(t, err)

	clk := clock.NewMock()
	b, err := NewBoard("test", chain, WithClock(clk))
	require.NoError(t, err)

	return &testBoard{Board: b, mock: mock, clock: clk}
}

// press holds the pin long enough to pass the debounce and releases it.
func (tb *testBoard) press(bit uint8) {
	tb.mock.SetInputPin(0, bit, true)
	tb.Step()
	tb.clock.Add(debounceClickTime + time.Millisecond)
	tb.Step()
	tb.mock.SetInputPin(0, bit, false)
	tb.Step()
	tb.clock.Add(debounceClickTime + time.Millisecond)
	tb.Step()
}

func TestNewBoardNeedsChain(t *testing.T) {
	_, err := NewBoard("x", nil)
	assert.Error(t, err)
}

func TestEventActions(t *testing.T) {
	tb := newTestBoard(t)
	a := tb.Output(drivers.Port{Module: 0, Bit: 0})
	b := tb.Output(drivers.Port{Module: 0, Bit: 1, Inverted: true})

	NewEvent(ActionSwitchOn, a, b).Fire()
	assert.True(t, a.GetState())
	assert.True(t, b.GetState())

	NewEvent(ActionToggle, a).Fire()
	assert.False(t, a.GetState())

	NewEvent(ActionSwitchOff, b).Fire()
	assert.False(t, b.GetState())

	assert.Equal(t, "toggle", ActionToggle.String())
}

func TestSingleEventFiresOnEveryPress(t *testing.T) {
	tb := newTestBoard(t)
	out := tb.Output(drivers.Port{Module: 0, Bit: 2})
	tb.Button(drivers.Port{Module: 0, Bit: 0}).AppendClickedEvent(NewEvent(ActionToggle, out))

	tb.press(0)
	assert.True(t, out.GetState())
	assert.True(t, tb.mock.OutputPin(0, 2), "latched by the following steps")

	tb.press(0)
	assert.False(t, out.GetState())
}

func TestBounceShorterThanDebounceIsIgnored(t *testing.T) {
	tb := newTestBoard(t)
	out := tb.Output(drivers.Port{Module: 0, Bit: 2})
	tb.Button(drivers.Port{Module: 0, Bit: 0}).AppendClickedEvent(NewEvent(ActionToggle, out))

	tb.mock.SetInputPin(0, 0, true)
	tb.Step()
	tb.clock.Add(10 * time.Millisecond)
	tb.mock.SetInputPin(0, 0, false)
	tb.Step()
	tb.clock.Add(time.Second)
	tb.Step()

	assert.False(t, out.GetState())
}

func TestMultiClick(t *testing.T) {
	setup := func(t *testing.T) (*testBoard, *drivers.ShiftOutput, *drivers.ShiftOutput) {
		tb := newTestBoard(t)
		first := tb.Output(drivers.Port{Module: 0, Bit: 4})
		second := tb.Output(drivers.Port{Module: 0, Bit: 5})

		bt := tb.Button(drivers.Port{Module: 0, Bit: 1})
		bt.AppendClickedEvent(NewEvent(ActionToggle, first))
		bt.AppendClickedEvent(NewEvent(ActionToggle, second))
		bt.AppendClickedEvent(NewEvent(ActionSwitchOff, first, second))
		return tb, first, second
	}

	t.Run("single click waits for the window", func(t *testing.T) {
		tb, first, second := setup(t)

		tb.press(1)
		assert.False(t, first.GetState())

		tb.clock.Add(clickToClickDuration)
		tb.Step()
		assert.True(t, first.GetState())
		assert.False(t, second.GetState())
	})

	t.Run("double click", func(t *testing.T) {
		tb, first, second := setup(t)

		tb.press(1)
		tb.press(1)
		tb.clock.Add(clickToClickDuration)
		tb.Step()

		assert.False(t, first.GetState())
		assert.True(t, second.GetState())
	})

	t.Run("last event fires at once", func(t *testing.T) {
		tb, first, second := setup(t)
		NewEvent(ActionSwitchOn, first, second).Fire()

		tb.press(1)
		tb.press(1)
		tb.press(1)

		assert.False(t, first.GetState())
		assert.False(t, second.GetState())
	})
}

func TestClearClickedEvents(t *testing.T) {
	tb := newTestBoard(t)
	out := tb.Output(drivers.Port{Module: 0, Bit: 2})
	bt := tb.Button(drivers.Port{Module: 0, Bit: 0})
	bt.AppendClickedEvent(NewEvent(ActionToggle, out))
	bt.ClearClickedEvents()

	tb.press(0)
	assert.False(t, out.GetState())
}

func TestRunStops(t *testing.T) {
	tb := newTestBoard(t)
	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		tb.Run(time.Millisecond, stop)
		close(done)
	}()

	tb.clock.Add(time.Millisecond)
	close(stop)
	<-done
}
