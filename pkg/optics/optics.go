package optics

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"mctoptics/pkg/beamline"
	"mctoptics/pkg/epics"
)

const (
	deviceType    = "MCTOptics"
	driverName    = "MCT Optics Driver"
	driverVersion = "1.0"

	connectTimeout = 5 * time.Second
)

type connState int

const (
	connStateDisconnected connState = iota
	connStateConnecting
	connStateConnected
)

// LensInfo binds the lens metadata PVs: lens names, the motor PV names
// used by the optics server, and the per-lens focus PV names.
type LensInfo struct {
	Name0 *epics.Signal
	Name1 *epics.Signal
	Name2 *epics.Signal

	MotorName   *epics.Signal
	SampleXName *epics.Signal
	SampleYName *epics.Signal
	SampleZName *epics.Signal

	FocusName0 *epics.Signal
	FocusName1 *epics.Signal
	FocusName2 *epics.Signal
}

func newLensInfo(conn epics.Conn, prefix string) LensInfo {
	return LensInfo{
		Name0: epics.NewSignal(conn, prefix+"Name0"),
		Name1: epics.NewSignal(conn, prefix+"Name1"),
		Name2: epics.NewSignal(conn, prefix+"Name2"),

		MotorName:   epics.NewSignal(conn, prefix+"MotorPVName"),
		SampleXName: epics.NewSignal(conn, prefix+"SampleXPVName"),
		SampleYName: epics.NewSignal(conn, prefix+"SampleYPVName"),
		SampleZName: epics.NewSignal(conn, prefix+"SampleZPVName"),

		FocusName0: epics.NewSignal(conn, prefix+"0FocusPVName"),
		FocusName1: epics.NewSignal(conn, prefix+"1FocusPVName"),
		FocusName2: epics.NewSignal(conn, prefix+"2FocusPVName"),
	}
}

// LensOffset binds the offset PVs of a single lens.
type LensOffset struct {
	XOffset  *epics.Signal
	YOffset  *epics.Signal
	ZOffset  *epics.Signal
	Rotation *epics.Signal
	Focus    *epics.Signal
}

func newLensOffset(conn epics.Conn, prefix string) LensOffset {
	return LensOffset{
		XOffset:  epics.NewSignal(conn, prefix+"XOffset"),
		YOffset:  epics.NewSignal(conn, prefix+"YOffset"),
		ZOffset:  epics.NewSignal(conn, prefix+"ZOffset"),
		Rotation: epics.NewSignal(conn, prefix+"Rotation"),
		Focus:    epics.NewSignal(conn, prefix+"Focus"),
	}
}

// LensControl binds the lens position PVs of a camera and the offsets of
// lenses 1 and 2. Lens 0 is the reference lens and carries no offsets.
type LensControl struct {
	Pos0 *epics.Signal
	Pos1 *epics.Signal
	Pos2 *epics.Signal

	Lens1 LensOffset
	Lens2 LensOffset
}

func newLensControl(conn epics.Conn, prefix string) LensControl {
	return LensControl{
		Pos0: epics.NewSignal(conn, prefix+"Pos0"),
		Pos1: epics.NewSignal(conn, prefix+"Pos1"),
		Pos2: epics.NewSignal(conn, prefix+"Pos2"),

		Lens1: newLensOffset(conn, prefix+"1"),
		Lens2: newLensOffset(conn, prefix+"2"),
	}
}

// CameraControl binds the per-camera PVs. The camera's position and name
// PVs do not extend the camera prefix; they are siblings formed by
// splitting the trailing camera index off the prefix and re-inserting a
// token, so "2bm:MCTOptics:Camera0" yields "2bm:MCTOptics:CameraPos0"
// and "2bm:MCTOptics:CameraName0".
type CameraControl struct {
	parts epics.PrefixParts

	Pos    *epics.Signal
	PVName *epics.Signal

	RotationName *epics.Signal
	LensCtrl     LensControl
}

func newCameraControl(conn epics.Conn, prefix string) CameraControl {
	parts := epics.SplitPrefix(prefix)

	return CameraControl{
		parts: parts,

		Pos:    epics.NewSignal(conn, parts.Format("Pos")),
		PVName: epics.NewSignal(conn, parts.Format("Name")),

		RotationName: epics.NewSignal(conn, prefix+"RotationPVName"),
		LensCtrl:     newLensControl(conn, prefix+"Lens"),
	}
}

// Index returns the trailing camera index extracted from the prefix.
func (c CameraControl) Index() string {
	return c.parts.Suffix
}

// MCTOptics is the optics subsystem device: lens and camera selection,
// scintillator and pixel size settings, lens metadata and the two camera
// control trees, all reached through the PV gateway.
type MCTOptics struct {
	prefix string
	number int
	schema *epics.Schema
	conn   epics.Conn
	logger log.FieldLogger
	state  connState

	LensSelect     *epics.Signal
	CameraSelect   *epics.Signal
	CameraSelected *epics.SignalRO

	CrossSelect   *epics.Signal
	Sync          *epics.Signal
	ServerRunning *epics.Signal
	MCTStatus     *epics.Signal

	ScintillatorType      *epics.Signal
	ScintillatorThickness *epics.Signal

	ImagePixelSize    *epics.Signal
	DetectorPixelSize *epics.Signal

	CameraObjective  *epics.Signal
	CameraTubeLength *epics.Signal

	LensInfo LensInfo

	Camera0 CameraControl
	Camera1 CameraControl
}

// New builds the optics device tree for the given IOC prefix and schema
// version. Signals are bound immediately; Connect only verifies that the
// optics server answers.
func New(number int, prefix string, version string, conn epics.Conn, logger log.FieldLogger) (*MCTOptics, error) {
	schema, err := SchemaVersion(version)
	if err != nil {
		return nil, err
	}

	return &MCTOptics{
		prefix: prefix,
		number: number,
		schema: schema,
		conn:   conn,
		logger: logger.WithField("device", "optics"),
		state:  connStateDisconnected,

		LensSelect:     epics.NewSignal(conn, prefix+"LensSelect"),
		CameraSelect:   epics.NewSignal(conn, prefix+"CameraSelect"),
		CameraSelected: epics.NewSignalRO(conn, prefix+"CameraSelected"),

		CrossSelect:   epics.NewSignal(conn, prefix+"CrossSelect"),
		Sync:          epics.NewSignal(conn, prefix+"Sync"),
		ServerRunning: epics.NewSignal(conn, prefix+"ServerRunning"),
		MCTStatus:     epics.NewSignal(conn, prefix+"MCTStatus"),

		ScintillatorType:      epics.NewSignal(conn, prefix+"ScintillatorType"),
		ScintillatorThickness: epics.NewSignal(conn, prefix+"ScintillatorThickness"),

		ImagePixelSize:    epics.NewSignal(conn, prefix+"ImagePixelSize"),
		DetectorPixelSize: epics.NewSignal(conn, prefix+"DetectorPixelSize"),

		CameraObjective:  epics.NewSignal(conn, prefix+"CameraObjective"),
		CameraTubeLength: epics.NewSignal(conn, prefix+"CameraTubeLength"),

		LensInfo: newLensInfo(conn, prefix+"Lens"),

		Camera0: newCameraControl(conn, prefix+"Camera0"),
		Camera1: newCameraControl(conn, prefix+"Camera1"),
	}, nil
}

func (o *MCTOptics) DeviceInfo() beamline.DeviceInfo {
	return beamline.DeviceInfo{
		Name:        "MCT Optics",
		Description: fmt.Sprintf("MCT optics subsystem at %s (schema %s)", o.prefix, o.schema.Version),
		Type:        deviceType,
		Number:      o.number,
		UniqueID:    beamline.DeviceUID(o.prefix),
	}
}

func (o *MCTOptics) DriverInfo() beamline.DriverInfo {
	return beamline.DriverInfo{
		Name:             driverName,
		Version:          driverVersion,
		InterfaceVersion: 1,
	}
}

// Prefix returns the IOC prefix the device was built for.
func (o *MCTOptics) Prefix() string {
	return o.prefix
}

// Schema returns the versioned device tree schema in effect.
func (o *MCTOptics) Schema() *epics.Schema {
	return o.schema
}

// PVNames lists every PV the device tree binds, derived from the schema.
func (o *MCTOptics) PVNames() []string {
	names, err := o.schema.PVNames(o.prefix)
	if err != nil {
		o.logger.Errorf("Failed to expand schema: %v", err)
		return nil
	}
	return names
}

// Connect verifies the gateway link and that the optics server answers
// on its ServerRunning PV.
func (o *MCTOptics) Connect() error {
	if o.state != connStateDisconnected {
		return fmt.Errorf("device is already connected")
	}
	o.state = connStateConnecting

	if !o.conn.Connected() {
		o.state = connStateDisconnected
		return epics.ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	running, err := o.ServerRunning.Get(ctx)
	if err != nil {
		o.state = connStateDisconnected
		return fmt.Errorf("failed to read %s: %v", o.ServerRunning.Name(), err)
	}

	o.state = connStateConnected
	o.logger.Infof("Connected to MCT optics at %s (server running: %s)", o.prefix, running)
	return nil
}

func (o *MCTOptics) Disconnect() error {
	if o.state != connStateConnected {
		return beamline.ErrNotConnected
	}

	o.state = connStateDisconnected
	o.logger.Info("Disconnected from MCT optics")
	return nil
}

func (o *MCTOptics) Connected() bool {
	return o.state == connStateConnected
}

func (o *MCTOptics) Connecting() bool {
	return o.state == connStateConnecting
}

// GetState snapshots the headline PVs for the status API.
func (o *MCTOptics) GetState() []beamline.StateProperty {
	props := []beamline.StateProperty{
		{
			Name:  "TimeStamp",
			Value: time.Now().Format(time.RFC3339),
		},
	}

	if o.state != connStateConnected {
		return props
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	signals := []struct {
		name string
		sig  interface {
			Get(context.Context) (string, error)
			Name() string
		}
	}{
		{"LensSelect", o.LensSelect},
		{"CameraSelect", o.CameraSelect},
		{"CameraSelected", o.CameraSelected},
		{"Sync", o.Sync},
		{"ServerRunning", o.ServerRunning},
		{"MCTStatus", o.MCTStatus},
		{"ScintillatorType", o.ScintillatorType},
		{"ImagePixelSize", o.ImagePixelSize},
	}

	for _, s := range signals {
		value, err := s.sig.Get(ctx)
		if err != nil {
			o.logger.Debugf("Failed to read %s: %v", s.sig.Name(), err)
			continue
		}
		props = append(props, beamline.StateProperty{Name: s.name, Value: value})
	}

	return props
}

// SelectLens writes the lens selector (0-2).
func (o *MCTOptics) SelectLens(ctx context.Context, lens int) error {
	if lens < 0 || lens > 2 {
		return fmt.Errorf("invalid lens index: %d", lens)
	}
	return o.LensSelect.Put(ctx, fmt.Sprintf("%d", lens))
}

// SelectCamera writes the camera selector (0-1).
func (o *MCTOptics) SelectCamera(ctx context.Context, camera int) error {
	if camera < 0 || camera > 1 {
		return fmt.Errorf("invalid camera index: %d", camera)
	}
	return o.CameraSelect.Put(ctx, fmt.Sprintf("%d", camera))
}
