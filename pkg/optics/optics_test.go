package optics

import (
	"io"
	"sort"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mctoptics/pkg/beamline"
	"mctoptics/pkg/epics"
	"mctoptics/pkg/pvgate"
)

const testPrefix = "2bm:MCTOptics:"

func testLogger() log.FieldLogger {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestOptics(t *testing.T) (*MCTOptics, *pvgate.Simulator) {
	t.Helper()

	sim := pvgate.NewSimulator()
	dev, err := New(0, testPrefix, "v2", sim, testLogger())
	require.NoError(t, err)

	// Seed every PV the device binds, as the IOC would export them.
	pvs := make(map[string]string)
	for _, pv := range dev.PVNames() {
		pvs[pv] = ""
	}
	pvs[testPrefix+"ServerRunning"] = "Running"
	pvs[testPrefix+"LensSelect"] = "0"
	pvs[testPrefix+"CameraSelect"] = "0"
	pvs[testPrefix+"CameraSelected"] = "Camera 0"
	sim.Load(pvs)

	return dev, sim
}

func TestSignalNames(t *testing.T) {
	dev, _ := newTestOptics(t)

	// Top-level signals extend the IOC prefix directly.
	assert.Equal(t, "2bm:MCTOptics:LensSelect", dev.LensSelect.Name())
	assert.Equal(t, "2bm:MCTOptics:CameraSelected", dev.CameraSelected.Name())
	assert.Equal(t, "2bm:MCTOptics:ScintillatorThickness", dev.ScintillatorThickness.Name())

	// Lens info nests under the "Lens" suffix.
	assert.Equal(t, "2bm:MCTOptics:LensName0", dev.LensInfo.Name0.Name())
	assert.Equal(t, "2bm:MCTOptics:LensMotorPVName", dev.LensInfo.MotorName.Name())
	assert.Equal(t, "2bm:MCTOptics:Lens0FocusPVName", dev.LensInfo.FocusName0.Name())

	// Camera position and name PVs are derived by splitting the camera
	// index off the prefix, not by appending to it.
	assert.Equal(t, "2bm:MCTOptics:CameraPos0", dev.Camera0.Pos.Name())
	assert.Equal(t, "2bm:MCTOptics:CameraName0", dev.Camera0.PVName.Name())
	assert.Equal(t, "2bm:MCTOptics:CameraPos1", dev.Camera1.Pos.Name())
	assert.Equal(t, "2bm:MCTOptics:CameraName1", dev.Camera1.PVName.Name())
	assert.Equal(t, "0", dev.Camera0.Index())
	assert.Equal(t, "1", dev.Camera1.Index())

	// The rest of the camera tree extends the camera prefix.
	assert.Equal(t, "2bm:MCTOptics:Camera0RotationPVName", dev.Camera0.RotationName.Name())
	assert.Equal(t, "2bm:MCTOptics:Camera0LensPos0", dev.Camera0.LensCtrl.Pos0.Name())
	assert.Equal(t, "2bm:MCTOptics:Camera0Lens1XOffset", dev.Camera0.LensCtrl.Lens1.XOffset.Name())
	assert.Equal(t, "2bm:MCTOptics:Camera1Lens2Focus", dev.Camera1.LensCtrl.Lens2.Focus.Name())
}

func TestSchemaMatchesSignals(t *testing.T) {
	dev, _ := newTestOptics(t)

	expanded, err := dev.Schema().Expand(testPrefix)
	require.NoError(t, err)

	// Spot-check that the declarative schema resolves to the same PVs
	// the constructors bind.
	checks := map[string]string{
		"LensSelect":                     dev.LensSelect.Name(),
		"CameraSelected":                 dev.CameraSelected.Name(),
		"LensInfo.Name0":                 dev.LensInfo.Name0.Name(),
		"LensInfo.FocusName2":            dev.LensInfo.FocusName2.Name(),
		"Camera0.Pos":                    dev.Camera0.Pos.Name(),
		"Camera0.PVName":                 dev.Camera0.PVName.Name(),
		"Camera1.Pos":                    dev.Camera1.Pos.Name(),
		"Camera0.RotationName":           dev.Camera0.RotationName.Name(),
		"Camera0.LensCtrl.Pos2":          dev.Camera0.LensCtrl.Pos2.Name(),
		"Camera1.LensCtrl.Lens1.ZOffset": dev.Camera1.LensCtrl.Lens1.ZOffset.Name(),
	}
	for path, pv := range checks {
		assert.Equal(t, pv, expanded[path], "schema path %s", path)
	}

	// 13 top-level fields, 10 lens info fields, and 16 per camera.
	assert.Len(t, expanded, 55)

	names := dev.PVNames()
	assert.Len(t, names, 55)
	assert.True(t, sort.StringsAreSorted(names))
}

func TestConnectLifecycle(t *testing.T) {
	dev, sim := newTestOptics(t)

	assert.False(t, dev.Connected())
	require.NoError(t, dev.Connect())
	assert.True(t, dev.Connected())
	assert.False(t, dev.Connecting())

	assert.Error(t, dev.Connect(), "double connect must fail")

	require.NoError(t, dev.Disconnect())
	assert.False(t, dev.Connected())
	assert.ErrorIs(t, dev.Disconnect(), beamline.ErrNotConnected)

	// Connect fails when the gateway link is down.
	sim.SetConnected(false)
	assert.Error(t, dev.Connect())
	assert.False(t, dev.Connected())
}

func TestGetState(t *testing.T) {
	dev, _ := newTestOptics(t)

	// Disconnected: only the timestamp.
	props := dev.GetState()
	assert.Len(t, props, 1)
	assert.Equal(t, "TimeStamp", props[0].Name)

	require.NoError(t, dev.Connect())
	props = dev.GetState()
	byName := make(map[string]interface{})
	for _, p := range props {
		byName[p.Name] = p.Value
	}
	assert.Equal(t, "Running", byName["ServerRunning"])
	assert.Equal(t, "Camera 0", byName["CameraSelected"])
	assert.Equal(t, "0", byName["LensSelect"])
}

func TestSelectors(t *testing.T) {
	dev, sim := newTestOptics(t)
	require.NoError(t, dev.Connect())

	ctx := t.Context()

	require.NoError(t, dev.SelectLens(ctx, 2))
	value, err := sim.Get(ctx, testPrefix+"LensSelect")
	require.NoError(t, err)
	assert.Equal(t, "2", value)

	require.NoError(t, dev.SelectCamera(ctx, 1))
	value, err = sim.Get(ctx, testPrefix+"CameraSelect")
	require.NoError(t, err)
	assert.Equal(t, "1", value)

	assert.Error(t, dev.SelectLens(ctx, 3))
	assert.Error(t, dev.SelectLens(ctx, -1))
	assert.Error(t, dev.SelectCamera(ctx, 2))

	// The selected-camera readback is read-only.
	assert.ErrorIs(t, dev.CameraSelected.Put(ctx, "Camera 1"), epics.ErrReadOnly)
}

func TestSchemaVersionLookup(t *testing.T) {
	assert.Equal(t, []string{"v1", "v2"}, SchemaVersions())

	schema, err := SchemaVersion("")
	require.NoError(t, err)
	assert.Equal(t, DefaultSchemaVersion, schema.Version)

	_, err = SchemaVersion("v9")
	assert.Error(t, err)

	_, err = New(0, testPrefix, "v9", pvgate.NewSimulator(), testLogger())
	assert.Error(t, err)

	// The known versions are field-identical today; both must expand to
	// the same PV surface.
	v1, err := SchemaVersion("v1")
	require.NoError(t, err)
	v2, err := SchemaVersion("v2")
	require.NoError(t, err)

	pvs1, err := v1.PVNames(testPrefix)
	require.NoError(t, err)
	pvs2, err := v2.PVNames(testPrefix)
	require.NoError(t, err)
	assert.Equal(t, pvs1, pvs2)
}

func TestDeviceInfo(t *testing.T) {
	dev, _ := newTestOptics(t)

	info := dev.DeviceInfo()
	assert.Equal(t, "MCTOptics", info.Type)
	assert.Equal(t, 0, info.Number)
	assert.NotEmpty(t, info.UniqueID)

	// The unique ID is derived from the prefix, so rebuilding the
	// device yields the same ID.
	dev2, err := New(0, testPrefix, "v2", pvgate.NewSimulator(), testLogger())
	require.NoError(t, err)
	assert.Equal(t, info.UniqueID, dev2.DeviceInfo().UniqueID)

	driver := dev.DriverInfo()
	assert.Equal(t, driverName, driver.Name)
	assert.Equal(t, 1, driver.InterfaceVersion)
}
