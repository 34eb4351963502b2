package beamline

import (
	"fmt"
	"net/http"
	"strings"
)

type ServerDescription struct {
	Name                string `json:"ServerName"`
	Manufacturer        string `json:"Manufacturer"`
	ManufacturerVersion string `json:"ManufacturerVersion"`
	Location            string `json:"Location"`
}

// Server is the status server the beamline orchestration layer queries:
// it describes the daemon and exposes every registered device.
type Server struct {
	description ServerDescription
	registry    *Registry
}

func NewServer(description ServerDescription, registry *Registry) *Server {
	return &Server{
		description: description,
		registry:    registry,
	}
}

func (s *Server) AddRoutes() *http.ServeMux {
	r := http.NewServeMux()

	r.Handle("GET /management/apiversions", apiHandler(s.handleAPIVersions))
	r.Handle("GET /management/v1/description", apiHandler(s.handleDescription))
	r.Handle("GET /management/v1/configureddevices", apiHandler(s.handleConfiguredDevices))

	// Mount the per-device routes under a numbered prefix.
	for _, dev := range s.registry.Devices() {
		mux := http.NewServeMux()
		NewDeviceHandler(dev).RegisterRoutes(mux)

		info := dev.DeviceInfo()
		prefix := fmt.Sprintf("/api/v1/%s/%d", strings.ToLower(info.Type), info.Number)
		r.Handle(prefix+"/", http.StripPrefix(prefix, mux))
	}

	return r
}

func (s *Server) handleAPIVersions(r *http.Request) (any, error) {
	return []int{1}, nil
}

func (s *Server) handleDescription(r *http.Request) (any, error) {
	return s.description, nil
}

func (s *Server) handleConfiguredDevices(r *http.Request) (any, error) {
	devices := s.registry.Devices()

	deviceInfo := make([]DeviceInfo, 0, len(devices))
	for _, device := range devices {
		deviceInfo = append(deviceInfo, device.DeviceInfo())
	}
	return deviceInfo, nil
}
