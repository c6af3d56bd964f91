package restapi

import (
	"errors"
	"net/http"

	"waitemata.arrivals.nz/gtfsdb"
)

type stopRouteJSON struct {
	ID        string `json:"id"`
	ShortName string `json:"short_name"`
	LongName  string `json:"long_name"`
	Type      int64  `json:"type"`
	Color     string `json:"color"`
	TextColor string `json:"text_color"`
}

// stopRoutesHandler lists the distinct routes scheduled to serve a stop.
func (api *RestAPI) stopRoutesHandler(w http.ResponseWriter, r *http.Request) {
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

	rows, err := q.GetRoutesForStop(r.Context(), stopID)
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	routes := make([]stopRouteJSON, 0, len(rows))
	for _, row := range rows {
		routes = append(routes, stopRouteJSON{
			ID:        row.RouteID,
			ShortName: row.RouteShortName.String,
			LongName:  row.RouteLongName.String,
			Type:      row.RouteType.Int64,
			Color:     row.RouteColor.String,
			TextColor: row.RouteTextColor.String,
		})
	}
	api.sendJSON(w, r, http.StatusOK, map[string]any{"routes": routes})
}
