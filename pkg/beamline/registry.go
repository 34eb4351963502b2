package beamline

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Namespace for device unique IDs. IDs are UUIDv5 over the device's PV
// prefix so the same beamline setup always reports the same IDs.
var uidNamespace = uuid.MustParse("6f0c7b3a-52c4-4f6e-9a81-2b04b8f6c1d5")

func DeviceUID(key string) string {
	return uuid.NewSHA1(uidNamespace, []byte(key)).String()
}

// Registry holds the devices exposed to the orchestration layer. The
// facility device is added conditionally, replacing the conditional
// module import the beamline setups used before.
type Registry struct {
	logger  log.FieldLogger
	devices []Device
}

func NewRegistry(logger log.FieldLogger) *Registry {
	return &Registry{
		logger: logger.WithField("component", "registry"),
	}
}

func (r *Registry) Add(dev Device) {
	info := dev.DeviceInfo()
	r.logger.Infof("Registering %s device %q (%s)", info.Type, info.Name, info.UniqueID)
	r.devices = append(r.devices, dev)
}

// AddIf registers the device built by build only when available is
// true. The builder is not invoked otherwise, so devices that cannot
// even be constructed off the facility network stay untouched.
func (r *Registry) AddIf(available bool, name string, build func() Device) {
	if !available {
		r.logger.Infof("Skipping %s: not available on this host", name)
		return
	}
	r.Add(build())
}

func (r *Registry) Devices() []Device {
	return r.devices
}

// Lookup finds a device by type (case insensitive) and number.
func (r *Registry) Lookup(devType string, number int) (Device, error) {
	for _, dev := range r.devices {
		info := dev.DeviceInfo()
		if strings.EqualFold(info.Type, devType) && info.Number == number {
			return dev, nil
		}
	}
	return nil, fmt.Errorf("%w: %s/%d", ErrUnknownDevice, devType, number)
}

// Close disconnects every connected device.
func (r *Registry) Close() {
	for _, dev := range r.devices {
		if !dev.Connected() {
			continue
		}
		if err := dev.Disconnect(); err != nil {
			r.logger.Errorf("Failed to disconnect %s: %v", dev.DeviceInfo().Name, err)
		}
	}
}
