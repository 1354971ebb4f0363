// Package shell binds logical inputs and outputs to a publish/subscribe bus.
//
// Every binding owns two topics under its prefix: "<prefix>state", where the
// current state is published as "ON" or "OFF", and "<prefix>commands", which
// the binding subscribes to. Bindings are not safe for concurrent use; the
// caller runs them from a single scheduling context.
package shell

import (
	"os"

	"github.com/charmbracelet/log"

	"github.com/hubertat/shiftio/drivers"
)

const (
	StateTopic   = "state"
	CommandTopic = "commands"

	PayloadOn  = "ON"
	PayloadOff = "OFF"
)

// Bus is the messaging transport. Publish is fire-and-forget from the shell's
// point of view, errors are only logged.
type Bus interface {
	Publish(topic string, payload []byte) error
	Subscribe(topic string) error
}

type Binding interface {
	Name() string
	CommandTopic() string
	OnReconnect()
	HandleMessage(topic string, payload []byte) bool
	Publish()
}

var logger = log.NewWithOptions(os.Stderr, log.Options{
	Prefix: "shell: ",
	Level:  log.GetLevel(),
})

func SetLogLevel(level log.Level) {
	logger.SetLevel(level)
}

func Payload(state bool) []byte {
	if state {
		return []byte(PayloadOn)
	}
	return []byte(PayloadOff)
}

type base struct {
	name   string
	prefix string
	bus    Bus
}

func (b *base) Name() string {
	return b.name
}

func (b *base) StateTopic() string {
	return b.prefix + StateTopic
}

func (b *base) CommandTopic() string {
	return b.prefix + CommandTopic
}

func (b *base) sendState(state bool) {
	err := b.bus.Publish(b.StateTopic(), Payload(state))
	if err != nil {
		logger.Error("failed to publish state", "topic", b.StateTopic(), "err", err)
	}
}

func (b *base) subscribe() {
	err := b.bus.Subscribe(b.CommandTopic())
	if err != nil {
		logger.Error("failed to subscribe", "topic", b.CommandTopic(), "err", err)
	}
}

// OutputShell drives an output from "ON"/"OFF" commands and echoes the
// logical state back.
type OutputShell struct {
	base
	out drivers.DigitalOutput
}

func NewOutputShell(name, prefix string, out drivers.DigitalOutput, bus Bus) *OutputShell {
	return &OutputShell{
		base: base{name: name, prefix: prefix, bus: bus},
		out:  out,
	}
}

func (osh *OutputShell) OnReconnect() {
	osh.subscribe()
	osh.sendState(osh.out.GetState())
}

// HandleMessage reports whether the topic belongs to this binding.
// Payloads other than "ON" and "OFF" are dropped without a reply.
func (osh *OutputShell) HandleMessage(topic string, payload []byte) bool {
	if topic != osh.CommandTopic() {
		return false
	}

	switch string(payload) {
	case PayloadOn:
		osh.out.Set(true)
	case PayloadOff:
		osh.out.Set(false)
	default:
		logger.Debug("ignoring command", "topic", topic, "payload", string(payload))
		return true
	}

	osh.sendState(osh.out.GetState())
	return true
}

// Publish sends the current state, used when the output was changed by other means.
func (osh *OutputShell) Publish() {
	osh.sendState(osh.out.GetState())
}

func (osh *OutputShell) Output() drivers.DigitalOutput {
	return osh.out
}

// InputShell publishes input changes; any message on its command topic asks
// for the current state.
type InputShell struct {
	base
	in drivers.DigitalInput
}

func NewInputShell(name, prefix string, in drivers.DigitalInput, bus Bus) *InputShell {
	return &InputShell{
		base: base{name: name, prefix: prefix, bus: bus},
		in:   in,
	}
}

func (is *InputShell) OnReconnect() {
	is.subscribe()
	is.sendState(is.in.GetState())
}

func (is *InputShell) HandleMessage(topic string, payload []byte) bool {
	if topic != is.CommandTopic() {
		return false
	}

	is.sendState(is.in.GetState())
	return true
}

func (is *InputShell) Publish() {
	is.sendState(is.in.GetState())
}

// Poll checks the input once and publishes when it changed. state is only
// meaningful when changed is true.
func (is *InputShell) Poll() (state bool, changed bool) {
	if !is.in.IsChanged() {
		return false, false
	}

	state = is.in.GetState()
	is.sendState(state)
	return state, true
}

func (is *InputShell) Input() drivers.DigitalInput {
	return is.in
}
