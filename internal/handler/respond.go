package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"namocoins/internal/model"
	"namocoins/internal/mw"
	"namocoins/internal/service"
)

const maxBodyBytes = 1 << 16

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("encode response")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return false
	}
	return true
}

func callerOrUnauthorized(w http.ResponseWriter, r *http.Request) (model.Caller, bool) {
	c, ok := mw.CallerFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}
	return c, ok
}

// writeServiceError maps service sentinels to HTTP statuses and logs
// everything else as an internal error.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrRateOutOfRange),
		errors.Is(err, service.ErrInvalidProduct):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrProductNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
