package shell

import (
	"errors"
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

type message struct {
	topic   string
	payload string
}

type fakeBus struct {
	published  []message
	subscribed []string
	failWith   error
}

func (fb *fakeBus) Publish(topic string, payload []byte) error {
	fb.published = append(fb.published, message{topic, string(payload)})
	return fb.failWith
}

func (fb *fakeBus) Subscribe(topic string) error {
	fb.subscribed = append(fb.subscribed, topic)
	return fb.failWith
}

type recordingOutput struct {
	drivers.DigitalOutput
	writes []bool
}

func (ro *recordingOutput) Set(state bool) {
	ro.writes = append(ro.writes, state)
	ro.DigitalOutput.Set(state)
}

func newChainOutput(t *testing.T, inverted bool) (*recordingOutput, *drivers.ShiftChain) {
	t.Helper()
	board := drivers.NewMockBoard(1, 1)
	chain, err := drivers.NewShiftChain(1, 1, board.Lines())
	require.NoError(t, err)

	return &recordingOutput{DigitalOutput: chain.Output(drivers.Port{Module: 0, Bit: 3, Inverted: inverted})}, chain
}

func TestOutputShellCommand(t *testing.T) {
	out, chain := newChainOutput(t, false)
	bus := &fakeBus{}
	sh := NewOutputShell("lamp", "house/lamp/", out, bus)

	handled := sh.HandleMessage("house/lamp/commands", []byte("ON"))

	assert.True(t, handled)
	assert.Equal(t, []bool{true}, out.writes)
	assert.Equal(t, []message{{"house/lamp/state", "ON"}}, bus.published)
	assert.True(t, chain.GetOutputBit(0, 3))

	sh.HandleMessage("house/lamp/commands", []byte("OFF"))
	assert.Equal(t, []bool{true, false}, out.writes)
	assert.Equal(t, message{"house/lamp/state", "OFF"}, bus.published[1])
}

func TestOutputShellInvertedEchoesLogicalState(t *testing.T) {
	out, chain := newChainOutput(t, true)
	bus := &fakeBus{}
	sh := NewOutputShell("lamp", "house/lamp/", out, bus)

	sh.HandleMessage("house/lamp/commands", []byte("ON"))

	assert.Equal(t, []bool{true}, out.writes)
	assert.False(t, chain.GetOutputBit(0, 3), "inverted output drives the raw bit low")
	assert.Equal(t, []message{{"house/lamp/state", "ON"}}, bus.published)
}

func TestOutputShellIgnoresUnknownPayload(t *testing.T) {
	out, _ := newChainOutput(t, false)
	bus := &fakeBus{}
	sh := NewOutputShell("lamp", "house/lamp/", out, bus)

	for _, payload := range []string{"on", "TOGGLE", "", "ON "} {
		assert.True(t, sh.HandleMessage("house/lamp/commands", []byte(payload)))
	}

	assert.Empty(t, out.writes)
	assert.Empty(t, bus.published)
}

func TestOutputShellForeignTopic(t *testing.T) {
	out, _ := newChainOutput(t, false)
	bus := &fakeBus{}
	sh := NewOutputShell("lamp", "house/lamp/", out, bus)

	assert.False(t, sh.HandleMessage("house/lamp/state", []byte("ON")))
	assert.False(t, sh.HandleMessage("house/other/commands", []byte("ON")))
	assert.Empty(t, out.writes)
	assert.Empty(t, bus.published)
}

func TestReconnect(t *testing.T) {
	out, _ := newChainOutput(t, false)
	out.Set(true)

	board := drivers.NewMockBoard(0, 1)
	chain, err := drivers.NewShiftChain(0, 1, board.Lines())
	require.NoError(t, err)

	t.Run("output", func(t *testing.T) {
		bus := &fakeBus{}
		sh := NewOutputShell("lamp", "house/lamp/", out, bus)

		sh.OnReconnect()

		assert.Equal(t, []string{"house/lamp/commands"}, bus.subscribed)
		assert.Equal(t, []message{{"house/lamp/state", "ON"}}, bus.published)
	})

	t.Run("input", func(t *testing.T) {
		bus := &fakeBus{}
		sh := NewInputShell("door", "house/door/", chain.Input(drivers.Port{Module: 0, Bit: 0}), bus)

		sh.OnReconnect()

		assert.Equal(t, []string{"house/door/commands"}, bus.subscribed)
		assert.Equal(t, []message{{"house/door/state", "OFF"}}, bus.published)
	})
}

func TestInputShellPollPublishesDebouncedChange(t *testing.T) {
	mock := clock.NewMock()
	board := drivers.NewMockBoard(0, 1)
	chain, err := drivers.NewShiftChain(0, 1, board.Lines())
	require.NoError(t, err)

	in := drivers.NewDebouncedInput(chain.Input(drivers.Port{Module: 0, Bit: 5}), 30*time.Millisecond, drivers.WithClock(mock))
	bus := &fakeBus{}
	sh := NewInputShell("door", "house/door/", in, bus)

	_, changed := sh.Poll()
	assert.False(t, changed)

	board.SetInputPin(0, 5, true)
	chain.Refresh()
	_, changed = sh.Poll()
	assert.False(t, changed)
	assert.Empty(t, bus.published)

	mock.Add(31 * time.Millisecond)
	state, changed := sh.Poll()
	assert.True(t, changed)
	assert.True(t, state)
	assert.Equal(t, []message{{"house/door/state", "ON"}}, bus.published)

	_, changed = sh.Poll()
	assert.False(t, changed)
	assert.Len(t, bus.published, 1)
}

func TestInputShellAnyCommandRepublishes(t *testing.T) {
	board := drivers.NewMockBoard(0, 1)
	chain, err := drivers.NewShiftChain(0, 1, board.Lines())
	require.NoError(t, err)
	board.SetInputPin(0, 1, true)
	chain.Refresh()

	bus := &fakeBus{}
	sh := NewInputShell("door", "house/door/", chain.Input(drivers.Port{Module: 0, Bit: 1}), bus)

	assert.True(t, sh.HandleMessage("house/door/commands", []byte("whatever")))
	assert.True(t, sh.HandleMessage("house/door/commands", nil))
	assert.Equal(t, []message{
		{"house/door/state", "ON"},
		{"house/door/state", "ON"},
	}, bus.published)
	assert.Empty(t, bus.subscribed)
}

func TestPublishErrorsAreSwallowed(t *testing.T) {
	out, _ := newChainOutput(t, false)
	bus := &fakeBus{failWith: errors.New("broker gone")}
	sh := NewOutputShell("lamp", "house/lamp/", out, bus)

	assert.NotPanics(t, func() {
		sh.OnReconnect()
		sh.HandleMessage("house/lamp/commands", []byte("ON"))
	})
	assert.Equal(t, []bool{true}, out.writes)
}
