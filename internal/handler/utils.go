package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"SoilMonitorAPI/internal/apperr"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	err := json.NewEncoder(w).Encode(data)
	if err != nil {
		return
	}
}

func respondError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}

// respondAppError picks the status from the error kind. Store failures are not
// echoed to the client.
func respondAppError(w http.ResponseWriter, err error, fallback string) {
	status := apperr.HTTPStatus(err)
	var e *apperr.Error
	if (status == http.StatusBadRequest || status == http.StatusNotFound) && errors.As(err, &e) {
		respondError(w, status, e.Message)
		return
	}
	respondError(w, status, fallback)
}

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func queryBool(r *http.Request, def bool, keys ...string) bool {
	for _, key := range keys {
		if v := r.URL.Query().Get(key); v != "" {
			if parsed, err := strconv.ParseBool(v); err == nil {
				return parsed
			}
		}
	}
	return def
}
