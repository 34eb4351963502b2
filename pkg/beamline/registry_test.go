package beamline

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() log.FieldLogger {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger
}

// fakeDevice is a minimal Device for registry and server tests.
type fakeDevice struct {
	info      DeviceInfo
	connected bool
}

func newFakeDevice(devType string, number int) *fakeDevice {
	return &fakeDevice{
		info: DeviceInfo{
			Name:        devType + " fake",
			Description: "fake device",
			Type:        devType,
			Number:      number,
			UniqueID:    DeviceUID(devType),
		},
	}
}

func (d *fakeDevice) DeviceInfo() DeviceInfo { return d.info }

func (d *fakeDevice) DriverInfo() DriverInfo {
	return DriverInfo{Name: "fake", Version: "1.0", InterfaceVersion: 1}
}

func (d *fakeDevice) GetState() []StateProperty {
	return []StateProperty{{Name: "Fake", Value: "ok"}}
}

func (d *fakeDevice) PVNames() []string { return []string{"fake:PV"} }

func (d *fakeDevice) Connected() bool  { return d.connected }
func (d *fakeDevice) Connecting() bool { return false }

func (d *fakeDevice) Connect() error {
	d.connected = true
	return nil
}

func (d *fakeDevice) Disconnect() error {
	if !d.connected {
		return ErrNotConnected
	}
	d.connected = false
	return nil
}

func TestDeviceUID(t *testing.T) {
	uid := DeviceUID("2bm:MCTOptics:")

	assert.NotEmpty(t, uid)
	assert.Equal(t, uid, DeviceUID("2bm:MCTOptics:"), "UID must be deterministic")
	assert.NotEqual(t, uid, DeviceUID("7bm:MCTOptics:"))
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry(testLogger())
	assert.Empty(t, reg.Devices())

	optics := newFakeDevice("MCTOptics", 0)
	reg.Add(optics)

	// Conditional registration mirrors the facility-network gate: the
	// builder only runs when the capability check passes.
	built := false
	reg.AddIf(false, "aps", func() Device {
		built = true
		return newFakeDevice("FacilitySource", 1)
	})
	assert.False(t, built)
	assert.Len(t, reg.Devices(), 1)

	reg.AddIf(true, "aps", func() Device {
		return newFakeDevice("FacilitySource", 1)
	})
	assert.Len(t, reg.Devices(), 2)

	dev, err := reg.Lookup("mctoptics", 0)
	require.NoError(t, err)
	assert.Equal(t, optics, dev)

	_, err = reg.Lookup("MCTOptics", 5)
	assert.ErrorIs(t, err, ErrUnknownDevice)

	// Close disconnects connected devices only.
	require.NoError(t, optics.Connect())
	reg.Close()
	assert.False(t, optics.Connected())
}

func TestServerRoutes(t *testing.T) {
	reg := NewRegistry(testLogger())
	reg.Add(newFakeDevice("MCTOptics", 0))

	server := NewServer(ServerDescription{
		Name:         "MCT Status Server",
		Manufacturer: "2-BM",
	}, reg)

	srv := httptest.NewServer(server.AddRoutes())
	defer srv.Close()

	get := func(path string) baseResponse {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body baseResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		return body
	}

	body := get("/management/apiversions")
	assert.Equal(t, []interface{}{float64(1)}, body.Value)

	body = get("/management/v1/configureddevices")
	devices, ok := body.Value.([]interface{})
	require.True(t, ok)
	require.Len(t, devices, 1)

	body = get("/api/v1/mctoptics/0/name")
	assert.Equal(t, "MCTOptics fake", body.Value)

	body = get("/api/v1/mctoptics/0/connected")
	assert.Equal(t, false, body.Value)

	body = get("/api/v1/mctoptics/0/pvnames")
	assert.Equal(t, []interface{}{"fake:PV"}, body.Value)

	// Connect is a PUT route.
	req, err := http.NewRequest(http.MethodPut, srv.URL+"/api/v1/mctoptics/0/connect", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body = get("/api/v1/mctoptics/0/connected")
	assert.Equal(t, true, body.Value)
}
