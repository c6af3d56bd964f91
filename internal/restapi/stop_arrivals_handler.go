package restapi

import (
	"errors"
	"net/http"
	"time"

	"waitemata.arrivals.nz/gtfsdb"
)

const arrivalsWindow = 24 * time.Hour

type stopArrivalJSON struct {
	TripID                  string `json:"trip_id"`
	RouteID                 string `json:"route_id"`
	RouteShortName          string `json:"route_short_name"`
	StopHeadsign            string `json:"stop_headsign"`
	StopSequence            int64  `json:"stop_sequence"`
	StartTimestamp          int64  `json:"start_timestamp"`
	ArrivalTimestamp        int64  `json:"arrival_timestamp"`
	UpdatedArrivalTimestamp *int64 `json:"updated_arrival_timestamp,omitempty"`
	ScheduleRelationship    int64  `json:"schedule_relationship"`
	VehicleID               string `json:"vehicle_id,omitempty"`
}

// stopArrivalsHandler lists upcoming arrivals at a stop for the next day,
// soonest first, with realtime adjustments applied where present. The
// headsign falls back from the stop-time override to the trip headsign.
func (api *RestAPI) stopArrivalsHandler(w http.ResponseWriter, r *http.Request) {
	stopID := r.PathValue("stop_id")

	q := api.GtfsManager.Queries()
	if _, err := q.GetStopByID(r.Context(), stopID); err != nil {
		if errors.Is(err, gtfsdb.ErrNotFound) {
			api.notFoundResponse(w, r)
		} else {
			api.serverErrorResponse(w, r, err)
		}
		return
	}

	nowMs := api.Clock.NowUnixMilli()
	rows, err := q.GetArrivalsForStop(r.Context(), stopID, nowMs, nowMs+arrivalsWindow.Milliseconds())
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	arrivals := make([]stopArrivalJSON, 0, len(rows))
	for _, row := range rows {
		headsign := row.TripHeadsign.String
		if row.StopHeadsign.Valid {
			headsign = row.StopHeadsign.String
		}
		arrival := stopArrivalJSON{
			TripID:               row.TripID,
			RouteID:              row.RouteID,
			RouteShortName:       row.RouteShortName.String,
			StopHeadsign:         headsign,
			StopSequence:         row.StopSequence,
			StartTimestamp:       row.StartTimestamp,
			ArrivalTimestamp:     row.ArrivalTimestamp,
			ScheduleRelationship: row.ScheduleRelationship,
			VehicleID:            row.VehicleID.String,
		}
		if row.UpdatedArrivalTimestamp.Valid {
			updated := row.UpdatedArrivalTimestamp.Int64
			arrival.UpdatedArrivalTimestamp = &updated
		}
		arrivals = append(arrivals, arrival)
	}
	api.sendJSON(w, r, http.StatusOK, map[string]any{"stop_arrivals": arrivals})
}
