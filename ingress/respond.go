package ingress

import (
	"encoding/json"
	"net/http"
)

// statusResponse is the JSON body of every response produced by the
// ingestion service.
type statusResponse struct {
	Status      int    `json:"status"`
	Description string `json:"description"`
}

// respond writes a JSON status response.
func respond(w http.ResponseWriter, status int, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	// The encoder can only fail if the connection has already gone away, in
	// which case there is nobody left to tell.
	_ = json.NewEncoder(w).Encode(statusResponse{
		Status:      status,
		Description: description,
	})
}
