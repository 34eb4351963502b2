package beamline

import "net/http"

// DeviceHandler serves the per-device status routes.
type DeviceHandler struct {
	dev Device
}

func NewDeviceHandler(dev Device) *DeviceHandler {
	return &DeviceHandler{dev: dev}
}

func (h *DeviceHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /name", h.handleName)
	mux.HandleFunc("GET /description", h.handleDescription)
	mux.HandleFunc("GET /driverinfo", h.handleDriverInfo)
	mux.HandleFunc("GET /driverversion", h.handleDriverVersion)
	mux.HandleFunc("GET /interfaceversion", h.handleInterfaceVersion)
	mux.HandleFunc("GET /devicestate", h.handleState)
	mux.HandleFunc("GET /pvnames", h.handlePVNames)

	mux.HandleFunc("GET /connected", h.handleConnected)
	mux.HandleFunc("GET /connecting", h.handleConnecting)
	mux.HandleFunc("PUT /connect", h.handleConnect)
	mux.HandleFunc("PUT /disconnect", h.handleDisconnect)
}

func (h *DeviceHandler) handleName(w http.ResponseWriter, r *http.Request) {
	handleResponse(w, h.dev.DeviceInfo().Name)
}

func (h *DeviceHandler) handleDescription(w http.ResponseWriter, r *http.Request) {
	handleResponse(w, h.dev.DeviceInfo().Description)
}

func (h *DeviceHandler) handleDriverInfo(w http.ResponseWriter, r *http.Request) {
	handleResponse(w, h.dev.DriverInfo())
}

func (h *DeviceHandler) handleDriverVersion(w http.ResponseWriter, r *http.Request) {
	handleResponse(w, h.dev.DriverInfo().Version)
}

func (h *DeviceHandler) handleInterfaceVersion(w http.ResponseWriter, r *http.Request) {
	handleResponse(w, h.dev.DriverInfo().InterfaceVersion)
}

func (h *DeviceHandler) handleState(w http.ResponseWriter, r *http.Request) {
	handleResponse(w, h.dev.GetState())
}

func (h *DeviceHandler) handlePVNames(w http.ResponseWriter, r *http.Request) {
	handleResponse(w, h.dev.PVNames())
}

func (h *DeviceHandler) handleConnected(w http.ResponseWriter, r *http.Request) {
	handleResponse(w, h.dev.Connected())
}

func (h *DeviceHandler) handleConnecting(w http.ResponseWriter, r *http.Request) {
	handleResponse(w, h.dev.Connecting())
}

func (h *DeviceHandler) handleConnect(w http.ResponseWriter, r *http.Request) {
	if err := h.dev.Connect(); err != nil {
		handleError(w, http.StatusInternalServerError, err.Error())
		return
	}
	handleResponse(w, true)
}

func (h *DeviceHandler) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := h.dev.Disconnect(); err != nil {
		handleError(w, http.StatusInternalServerError, err.Error())
		return
	}
	handleResponse(w, true)
}
