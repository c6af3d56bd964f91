package restapi

import "net/http"

// healthHandler answers liveness probes with an empty 200.
func (api *RestAPI) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
