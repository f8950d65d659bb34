package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/iconidentify/toolkit/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// statusFor maps a domain error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrInsufficientStorage):
		return http.StatusInsufficientStorage
	default:
		// ErrUpstreamExtraction, ErrDownloadIncomplete, ErrProcessingFailed
		// and anything unexpected.
		return http.StatusInternalServerError
	}
}

// writeDomainError writes err with the status its kind maps to.
func writeDomainError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
	}
	writeError(w, status, domain.Detail(err))
}
