package shiftio

import (
	"context"

	dnslog "github.com/brutella/dnssd/log"
	"github.com/brutella/hap"
	"github.com/brutella/hap/accessory"
	hklog "github.com/brutella/hap/log"
	"github.com/pkg/errors"
)

const homeKitBridgeName = "ShiftIO"
const homeKitBridgeAuthor = "github.com/hubertat"
const defaultHomeKitDirectory = "./db"

type HomeKitConfig struct {
	Pin       string `json:"pin" yaml:"pin"`
	Directory string `json:"directory" yaml:"directory"`
	Address   string `json:"address" yaml:"address"`
	Debug     bool   `json:"debug" yaml:"debug"`
}

// Enabled reports a usable pairing pin, HomeKit needs exactly 8 digits.
func (hc *HomeKitConfig) Enabled() bool {
	return hc != nil && len(hc.Pin) == 8
}

type hkThing interface {
	GetHk() *accessory.A
	GetUniqueId() uint64
}

func (sk *ShiftIO) getHkThings() (things []hkThing) {
	for _, out := range sk.Outputs {
		things = append(things, out)
	}
	for _, in := range sk.Inputs {
		things = append(things, in)
	}
	return
}

func (sk *ShiftIO) GetHkAccessories(firmwareVersion string) (acc []*accessory.A) {
	acc = []*accessory.A{}

	for _, th := range sk.getHkThings() {
		a := th.GetHk()
		if a == nil {
			continue
		}
		if a.Info != nil && a.Info.FirmwareRevision != nil {
			a.Info.FirmwareRevision.SetValue(firmwareVersion)
		}
		a.Id = th.GetUniqueId()
		acc = append(acc, a)
	}

	return
}

// StartHomeKit serves the bridge until ctx is done. Remote writes to an
// output go through SetOutput, so they are serialized with the tick and
// published to the bus.
func (sk *ShiftIO) StartHomeKit(ctx context.Context, firmwareVersion string) error {
	if !sk.HomeKit.Enabled() {
		return errors.New("HomeKit pin not configured")
	}

	hkName := sk.Name
	if len(hkName) < 1 {
		hkName = homeKitBridgeName
	}
	bridge := accessory.NewBridge(accessory.Info{
		Name:         hkName,
		Manufacturer: homeKitBridgeAuthor,
		Firmware:     firmwareVersion,
	})

	for _, out := range sk.Outputs {
		if out.hkOn == nil {
			continue
		}
		name := out.Name
		out.hkOn.OnValueRemoteUpdate(func(on bool) {
			_, err := sk.SetOutput(name, on)
			if err != nil {
				sk.logger.Error("HomeKit update failed", "output", name, "err", err)
			}
		})
		out.hkOn.SetValue(out.GetState())
	}

	directory := sk.HomeKit.Directory
	if len(directory) < 1 {
		directory = defaultHomeKitDirectory
	}
	store := hap.NewFsStore(directory)

	hkServer, err := hap.NewServer(store, bridge.A, sk.GetHkAccessories(firmwareVersion)...)
	if err != nil {
		return errors.Wrap(err, "failed to create HomeKit server")
	}
	hkServer.Pin = sk.HomeKit.Pin
	if len(sk.HomeKit.Address) > 0 {
		hkServer.Addr = sk.HomeKit.Address
	}

	if sk.HomeKit.Debug {
		hklog.Debug.Enable()
		dnslog.Debug.Enable()
	}
	sk.logger.Info("starting HomeKit bridge", "name", hkName, "accessories", len(sk.GetHkAccessories(firmwareVersion)))

	return hkServer.ListenAndServe(ctx)
}
