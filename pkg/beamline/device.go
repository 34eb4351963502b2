package beamline

import "errors"

var (
	ErrNotConnected  = errors.New("device is not connected")
	ErrUnknownDevice = errors.New("unknown device")
)

type DeviceInfo struct {
	Name        string `json:"DeviceName"`
	Description string `json:"-"`
	Type        string `json:"DeviceType"`
	Number      int    `json:"DeviceNumber"`
	UniqueID    string `json:"UniqueID"`
}

type DriverInfo struct {
	Name             string
	Version          string
	InterfaceVersion int
}

type StateProperty struct {
	Name  string
	Value interface{}
}

// Device is the contract every beamline device satisfies: identity,
// a state snapshot for the status API, and the connection lifecycle.
type Device interface {
	DeviceInfo() DeviceInfo
	DriverInfo() DriverInfo
	GetState() []StateProperty

	// PVNames lists every PV the device binds, for diagnostics.
	PVNames() []string

	Connected() bool
	Connecting() bool
	Connect() error
	Disconnect() error
}
