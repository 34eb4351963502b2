// Facility-wide devices. These bind absolute PVs exported by the APS
// accelerator control system, not PVs under the beamline IOC prefix,
// and only resolve from inside the facility network.
package facility

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"mctoptics/pkg/beamline"
	"mctoptics/pkg/epics"
)

const (
	deviceName    = "APS Storage Ring"
	deviceType    = "FacilitySource"
	driverName    = "APS Machine Parameters"
	driverVersion = "1.0"

	readTimeout = 5 * time.Second
)

// sourceSchema declares the machine-parameter PVs. The PV names are
// absolute, so the schema expands against an empty prefix.
var sourceSchema = &epics.Schema{
	Version: "aps",
	Fields: map[string]epics.Field{
		"Current":       {Suffix: "S:SRcurrentAI", Access: epics.ReadOnly},
		"Lifetime":      {Suffix: "S:SRlifeTimeHrsCC", Access: epics.ReadOnly},
		"MachineStatus": {Suffix: "S:DesiredMode", Access: epics.ReadOnly, AsString: true},
		"OperatingMode": {Suffix: "S:ActualMode", Access: epics.ReadOnly, AsString: true},
		"ShutterPermit": {Suffix: "ACIS:ShutterPermit", Access: epics.ReadOnly, AsString: true},
		"FillNumber":    {Suffix: "S:FillNumber", Access: epics.ReadOnly},

		"OrbitCorrection": {Suffix: "S:OrbitCorrection:CC", Access: epics.ReadOnly},
		"GlobalFeedback":  {Suffix: "SRFB:GBL:LoopStatusBI", Access: epics.ReadOnly, AsString: true},
		"GlobalFeedbackH": {Suffix: "SRFB:GBL:HLoopStatusBI", Access: epics.ReadOnly, AsString: true},
		"GlobalFeedbackV": {Suffix: "SRFB:GBL:VLoopStatusBI", Access: epics.ReadOnly, AsString: true},
	},
}

// Source reports storage-ring machine parameters: ring current,
// lifetime, operating mode, and the beamline shutter permit.
type Source struct {
	number    int
	conn      epics.Conn
	logger    log.FieldLogger
	connected bool

	Current       *epics.SignalRO
	Lifetime      *epics.SignalRO
	MachineStatus *epics.SignalRO
	OperatingMode *epics.SignalRO
	ShutterPermit *epics.SignalRO
	FillNumber    *epics.SignalRO

	OrbitCorrection *epics.SignalRO
	GlobalFeedback  *epics.SignalRO
	GlobalFeedbackH *epics.SignalRO
	GlobalFeedbackV *epics.SignalRO
}

func NewSource(number int, conn epics.Conn, logger log.FieldLogger) *Source {
	return &Source{
		number: number,
		conn:   conn,
		logger: logger.WithField("device", "aps"),

		Current:       epics.NewSignalRO(conn, "S:SRcurrentAI"),
		Lifetime:      epics.NewSignalRO(conn, "S:SRlifeTimeHrsCC"),
		MachineStatus: epics.NewSignalRO(conn, "S:DesiredMode"),
		OperatingMode: epics.NewSignalRO(conn, "S:ActualMode"),
		ShutterPermit: epics.NewSignalRO(conn, "ACIS:ShutterPermit"),
		FillNumber:    epics.NewSignalRO(conn, "S:FillNumber"),

		OrbitCorrection: epics.NewSignalRO(conn, "S:OrbitCorrection:CC"),
		GlobalFeedback:  epics.NewSignalRO(conn, "SRFB:GBL:LoopStatusBI"),
		GlobalFeedbackH: epics.NewSignalRO(conn, "SRFB:GBL:HLoopStatusBI"),
		GlobalFeedbackV: epics.NewSignalRO(conn, "SRFB:GBL:VLoopStatusBI"),
	}
}

func (s *Source) DeviceInfo() beamline.DeviceInfo {
	return beamline.DeviceInfo{
		Name:        deviceName,
		Description: "APS storage ring machine parameters",
		Type:        deviceType,
		Number:      s.number,
		UniqueID:    beamline.DeviceUID("aps-source"),
	}
}

func (s *Source) DriverInfo() beamline.DriverInfo {
	return beamline.DriverInfo{
		Name:             driverName,
		Version:          driverVersion,
		InterfaceVersion: 1,
	}
}

func (s *Source) PVNames() []string {
	names, err := sourceSchema.PVNames("")
	if err != nil {
		s.logger.Errorf("Failed to expand schema: %v", err)
		return nil
	}
	return names
}

func (s *Source) Connect() error {
	if s.connected {
		return fmt.Errorf("device is already connected")
	}
	if !s.conn.Connected() {
		return epics.ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(context.Background(), readTimeout)
	defer cancel()

	current, err := s.Current.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to read ring current: %v", err)
	}

	s.connected = true
	s.logger.Infof("Connected to APS source (ring current: %s)", current)
	return nil
}

func (s *Source) Disconnect() error {
	if !s.connected {
		return beamline.ErrNotConnected
	}
	s.connected = false
	return nil
}

func (s *Source) Connected() bool {
	return s.connected
}

func (s *Source) Connecting() bool {
	return false
}

func (s *Source) GetState() []beamline.StateProperty {
	props := []beamline.StateProperty{
		{
			Name:  "TimeStamp",
			Value: time.Now().Format(time.RFC3339),
		},
	}

	if !s.connected {
		return props
	}

	ctx, cancel := context.WithTimeout(context.Background(), readTimeout)
	defer cancel()

	signals := []struct {
		name string
		sig  *epics.SignalRO
	}{
		{"Current", s.Current},
		{"Lifetime", s.Lifetime},
		{"MachineStatus", s.MachineStatus},
		{"OperatingMode", s.OperatingMode},
		{"ShutterPermit", s.ShutterPermit},
		{"FillNumber", s.FillNumber},
	}

	for _, sg := range signals {
		value, err := sg.sig.Get(ctx)
		if err != nil {
			s.logger.Debugf("Failed to read %s: %v", sg.sig.Name(), err)
			continue
		}
		props = append(props, beamline.StateProperty{Name: sg.name, Value: value})
	}

	return props
}
