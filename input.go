package shiftio

import (
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/brutella/hap/accessory"
	"github.com/brutella/hap/characteristic"
	"github.com/brutella/hap/service"
	"github.com/pkg/errors"

	"github.com/hubertat/shiftio/drivers"
	"github.com/hubertat/shiftio/shell"
)

const defaultDebounce = 50 * time.Millisecond

type Input struct {
	Name   string `json:"name" yaml:"name"`
	Module uint8  `json:"module" yaml:"module"`
	Bit    uint8  `json:"bit" yaml:"bit"`
	Invert bool   `json:"invert" yaml:"invert"`
	Topic  string `json:"topic" yaml:"topic"`

	// Debounce is a duration string, 50ms when empty.
	Debounce string `json:"debounce" yaml:"debounce"`
	Homekit  string `json:"homekit" yaml:"homekit"`

	input *drivers.DebouncedInput
	shell *shell.InputShell

	hk     *accessory.A
	hkSync func(bool)
}

func (in *Input) GetUniqueId() uint64 {
	hash := fnv.New64()
	hash.Write([]byte("Input_" + in.Name))
	return hash.Sum64()
}

func (in *Input) port() drivers.Port {
	return drivers.Port{Module: in.Module, Bit: in.Bit, Inverted: in.Invert}
}

func (in *Input) quietPeriod() (time.Duration, error) {
	if len(in.Debounce) == 0 {
		return defaultDebounce, nil
	}
	quiet, err := time.ParseDuration(in.Debounce)
	if err != nil {
		return 0, errors.Wrapf(err, "wrong debounce value %s", in.Debounce)
	}
	if quiet < 0 {
		return 0, errors.Errorf("negative debounce %s", in.Debounce)
	}
	return quiet, nil
}

func (in *Input) Init(chain *drivers.ShiftChain, topicRoot string, bus shell.Bus, clk clock.Clock) error {
	if chain == nil {
		return errors.New("Init failed, chain missing")
	}
	quiet, err := in.quietPeriod()
	if err != nil {
		return errors.Wrap(err, "Init failed")
	}
	if len(in.Topic) == 0 {
		in.Topic = topicRoot + in.Name + "/"
	}

	in.input = drivers.NewDebouncedInput(chain.Input(in.port()), quiet, drivers.WithClock(clk))
	in.shell = shell.NewInputShell(in.Name, in.Topic, in.input, bus)

	info := accessory.Info{
		Name:         in.Name,
		SerialNumber: fmt.Sprintf("input:%s", in.port()),
	}
	switch strings.ToLower(in.Homekit) {
	case "none":
		return nil
	case "motion":
		in.hk = accessory.New(info, accessory.TypeSensor)
		sensor := service.NewMotionSensor()
		in.hk.AddS(sensor.S)
		in.hkSync = func(state bool) {
			sensor.MotionDetected.SetValue(state)
		}
	case "", "contact":
		in.hk = accessory.New(info, accessory.TypeSensor)
		sensor := service.NewContactSensor()
		in.hk.AddS(sensor.S)
		in.hkSync = func(state bool) {
			sensor.ContactSensorState.SetValue(contactValue(state))
		}
	default:
		return errors.Errorf("Init failed, unknown homekit type %s", in.Homekit)
	}
	in.hk.Id = in.GetUniqueId()
	in.syncHk(in.input.GetState())

	return nil
}

// contactValue maps an active input to a closed contact.
func contactValue(state bool) int {
	if state {
		return characteristic.ContactSensorStateContactDetected
	}
	return characteristic.ContactSensorStateContactNotDetected
}

func (in *Input) syncHk(state bool) {
	if in.hkSync != nil {
		in.hkSync(state)
	}
}

func (in *Input) GetState() bool {
	return in.input.GetState()
}

func (in *Input) GetHk() *accessory.A {
	return in.hk
}

func (in *Input) status() LineStatus {
	return LineStatus{
		Name:     in.Name,
		Kind:     KindInput,
		Module:   in.Module,
		Bit:      in.Bit,
		Inverted: in.Invert,
		State:    in.GetState(),
		Topic:    in.Topic,
	}
}
