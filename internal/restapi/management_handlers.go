package restapi

import "net/http"

// syncHandler downloads the static feed and applies any new generation,
// reporting how many rows the ingest wrote. An unchanged feed reports zero.
func (api *RestAPI) syncHandler(w http.ResponseWriter, r *http.Request) {
	inserted, err := api.GtfsManager.Sync(r.Context())
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	api.sendJSON(w, r, http.StatusOK, map[string]int64{"newRecords": inserted})
}

// indexStopTimesHandler rebuilds the materialized stop-time occurrence index.
func (api *RestAPI) indexStopTimesHandler(w http.ResponseWriter, r *http.Request) {
	if err := api.GtfsManager.RebuildStopTimeIndex(r.Context()); err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// indexStopsHandler rebuilds the stop bounding-box index and reloads the
// in-memory spatial tree.
func (api *RestAPI) indexStopsHandler(w http.ResponseWriter, r *http.Request) {
	if err := api.GtfsManager.RebuildStopIndex(r.Context()); err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
