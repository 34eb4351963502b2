package pvgate

import (
	"encoding/json"
	"fmt"
)

const (
	opGet = "get"
	opPut = "put"
)

// request is the JSON payload published to the gateway's requests topic.
// The gateway performs the caget/caput and answers on the responses
// topic with the same correlation ID.
type request struct {
	ID    string `json:"id"`
	Op    string `json:"op"`
	PV    string `json:"pv"`
	Value string `json:"value,omitempty"`
}

// response is the gateway's answer to a request.
type response struct {
	ID    string `json:"id"`
	PV    string `json:"pv"`
	Value string `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}

// Update is a monitor event pushed by the gateway under the updates
// topic for a PV.
type Update struct {
	PV    string `json:"pv"`
	Value string `json:"value"`
}

func parseResponse(payload []byte) (response, error) {
	var resp response
	if err := json.Unmarshal(payload, &resp); err != nil {
		return resp, fmt.Errorf("malformed response payload: %v", err)
	}
	if resp.ID == "" {
		return resp, fmt.Errorf("response without correlation ID: %s", payload)
	}
	return resp, nil
}

func parseUpdate(payload []byte) (Update, error) {
	var up Update
	if err := json.Unmarshal(payload, &up); err != nil {
		return up, fmt.Errorf("malformed update payload: %v", err)
	}
	if up.PV == "" {
		return up, fmt.Errorf("update without PV name: %s", payload)
	}
	return up, nil
}
