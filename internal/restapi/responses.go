package restapi

import (
	"encoding/json"
	"net/http"

	"waitemata.arrivals.nz/internal/logging"
)

func (api *RestAPI) sendJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	setJSONResponseType(&w)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.LogError(api.Logger, "encoding response", err)
	}
}

func setJSONResponseType(w *http.ResponseWriter) {
	(*w).Header().Set("Content-Type", "application/json")
}

func (api *RestAPI) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	logging.LogError(api.Logger, "request failed", err)
	api.sendJSON(w, r, http.StatusInternalServerError, map[string]string{
		"error": "the server encountered a problem and could not process your request",
	})
}

func (api *RestAPI) notFoundResponse(w http.ResponseWriter, r *http.Request) {
	api.sendJSON(w, r, http.StatusNotFound, map[string]string{
		"error": "resource not found",
	})
}

func (api *RestAPI) validationErrorResponse(w http.ResponseWriter, r *http.Request, fieldErrors map[string]string) {
	api.sendJSON(w, r, http.StatusBadRequest, map[string]any{
		"error":        "invalid request parameters",
		"field_errors": fieldErrors,
	})
}
