package beamline

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
)

// Global transaction counter
var txCounter atomic.Int32

type baseResponse struct {
	ServerTransactionID int    `json:"ServerTransactionID"`
	ErrorNumber         int    `json:"ErrorNumber"`
	ErrorMessage        string `json:"ErrorMessage"`
	Value               any    `json:"Value,omitempty"`
}

func handleResponse(w http.ResponseWriter, value interface{}) {
	response := baseResponse{
		ServerTransactionID: int(txCounter.Add(1)),
		Value:               value,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func handleError(w http.ResponseWriter, code int, message string) {
	response := baseResponse{
		ServerTransactionID: int(txCounter.Add(1)),
		ErrorNumber:         code,
		ErrorMessage:        message,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// apiHandler adapts a value-returning handler to http.Handler with the
// standard response envelope.
type apiHandler func(r *http.Request) (any, error)

func (h apiHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	value, err := h(r)
	if err != nil {
		handleError(w, http.StatusInternalServerError, err.Error())
		return
	}
	handleResponse(w, value)
}
