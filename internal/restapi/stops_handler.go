package restapi

import (
	"errors"
	"net/http"
	"strconv"

	"waitemata.arrivals.nz/gtfsdb"
)

const nearbyStopLimit = 5

// stopJSON is the public shape of a stop. Code falls back to the stop id
// when the feed has no separate rider-facing code.
type stopJSON struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

func toStopJSON(s gtfsdb.Stop) stopJSON {
	code := s.StopID
	if s.StopCode.Valid {
		code = s.StopCode.String
	}
	return stopJSON{
		ID:   s.StopID,
		Code: code,
		Name: s.StopName.String,
	}
}

// stopsHandler looks up a stop by rider-facing code and/or lists the stops
// closest to a coordinate. A code match seeds the search location when no
// coordinates were given, and is excluded from the nearby list.
func (api *RestAPI) stopsHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	fieldErrors := make(map[string]string)
	var lat, lon float64
	var haveCoords bool
	if query.Get("lat") != "" || query.Get("lon") != "" {
		var err error
		lat, err = strconv.ParseFloat(query.Get("lat"), 64)
		if err != nil {
			fieldErrors["lat"] = "must be a valid latitude"
		}
		lon, err = strconv.ParseFloat(query.Get("lon"), 64)
		if err != nil {
			fieldErrors["lon"] = "must be a valid longitude"
		}
		haveCoords = len(fieldErrors) == 0
	}
	if len(fieldErrors) > 0 {
		api.validationErrorResponse(w, r, fieldErrors)
		return
	}

	stops := make([]stopJSON, 0, nearbyStopLimit+1)

	code := query.Get("code")
	var matchedID string
	if code != "" {
		stop, err := api.GtfsManager.Queries().GetStopByCode(r.Context(), code)
		switch {
		case err == nil:
			matchedID = stop.StopID
			stops = append(stops, toStopJSON(stop))
			if !haveCoords && stop.StopLat.Valid && stop.StopLon.Valid {
				lat, lon = stop.StopLat.Float64, stop.StopLon.Float64
				haveCoords = true
			}
		case !errors.Is(err, gtfsdb.ErrNotFound):
			api.serverErrorResponse(w, r, err)
			return
		}
	}

	if haveCoords {
		// Fetch one extra so excluding the code match still fills the list.
		nearby, err := api.GtfsManager.StopsNear(r.Context(), lat, lon, nearbyStopLimit+1)
		if err != nil {
			api.serverErrorResponse(w, r, err)
			return
		}
		for _, s := range nearby {
			if s.StopID == matchedID {
				continue
			}
			stops = append(stops, toStopJSON(s))
			if len(stops) == nearbyStopLimit+1 || (matchedID == "" && len(stops) == nearbyStopLimit) {
				break
			}
		}
	}

	api.sendJSON(w, r, http.StatusOK, map[string]any{"stops": stops})
}
