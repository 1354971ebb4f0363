package shiftio

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/brutella/hap/accessory"
	"github.com/brutella/hap/characteristic"
	"github.com/pkg/errors"

	"github.com/hubertat/shiftio/drivers"
	"github.com/hubertat/shiftio/shell"
)

// Output is a named chain output. It satisfies drivers.DigitalOutput so the
// shell drives it directly and every write reaches the observers.
type Output struct {
	Name    string `json:"name" yaml:"name"`
	Module  uint8  `json:"module" yaml:"module"`
	Bit     uint8  `json:"bit" yaml:"bit"`
	Invert  bool   `json:"invert" yaml:"invert"`
	Topic   string `json:"topic" yaml:"topic"`
	Homekit string `json:"homekit" yaml:"homekit"`

	out    *drivers.ShiftOutput
	shell  *shell.OutputShell
	notify func(name string, kind Kind, state bool)

	hk   *accessory.A
	hkOn *characteristic.On
}

func (ou *Output) GetUniqueId() uint64 {
	hash := fnv.New64()
	hash.Write([]byte("Output_" + ou.Name))
	return hash.Sum64()
}

func (ou *Output) port() drivers.Port {
	return drivers.Port{Module: ou.Module, Bit: ou.Bit, Inverted: ou.Invert}
}

func (ou *Output) Init(chain *drivers.ShiftChain, topicRoot string, bus shell.Bus, notify func(string, Kind, bool)) error {
	if chain == nil {
		return errors.New("Init failed, chain missing")
	}
	if len(ou.Topic) == 0 {
		ou.Topic = topicRoot + ou.Name + "/"
	}

	ou.notify = notify
	ou.out = chain.Output(ou.port())
	ou.shell = shell.NewOutputShell(ou.Name, ou.Topic, ou, bus)

	info := accessory.Info{
		Name:         ou.Name,
		SerialNumber: fmt.Sprintf("output:%s", ou.port()),
	}
	switch strings.ToLower(ou.Homekit) {
	case "none":
		return nil
	case "outlet":
		hk := accessory.NewOutlet(info)
		ou.hk, ou.hkOn = hk.A, hk.Outlet.On
	case "light", "lightbulb":
		hk := accessory.NewLightbulb(info)
		ou.hk, ou.hkOn = hk.A, hk.Lightbulb.On
	case "", "switch":
		hk := accessory.NewSwitch(info)
		ou.hk, ou.hkOn = hk.A, hk.Switch.On
	default:
		return errors.Errorf("Init failed, unknown homekit type %s", ou.Homekit)
	}
	ou.hk.Id = ou.GetUniqueId()

	return nil
}

func (ou *Output) GetState() bool {
	return ou.out.GetState()
}

func (ou *Output) Set(state bool) {
	previous := ou.out.GetState()
	ou.out.Set(state)

	if previous == state {
		return
	}
	if ou.hkOn != nil {
		ou.hkOn.SetValue(state)
	}
	if ou.notify != nil {
		ou.notify(ou.Name, KindOutput, state)
	}
}

func (ou *Output) GetHk() *accessory.A {
	return ou.hk
}

func (ou *Output) status() LineStatus {
	return LineStatus{
		Name:     ou.Name,
		Kind:     KindOutput,
		Module:   ou.Module,
		Bit:      ou.Bit,
		Inverted: ou.Invert,
		State:    ou.GetState(),
		Topic:    ou.Topic,
	}
}
