package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"emsp/internal/apperr"
)

const (
	ocpiSuccess             = 1000
	ocpiClientError         = 2000
	ocpiInvalidParameters   = 2001
	ocpiUnknownLocation     = 2003
	ocpiUnknownToken        = 2004
	ocpiServerError         = 3000
	statusUnknownCommandId  = "Unknown command id"
	statusConflictingResult = "Conflicting command result"
)

type envelope struct {
	Data          any    `json:"data,omitempty"`
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message,omitempty"`
	Timestamp     string `json:"timestamp"`
}

func writeEnvelope(w http.ResponseWriter, httpStatus, ocpiStatus int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(envelope{
		Data:          data,
		StatusCode:    ocpiStatus,
		StatusMessage: message,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	})
}

// ocpiStatusFor maps a typed error to its OCPI status code.
func ocpiStatusFor(err error) int {
	switch apperr.TextCode(err) {
	case apperr.CodeUnknownToken:
		return ocpiUnknownToken
	case apperr.CodeUnknownLocation, apperr.CodeUnknownEvse:
		return ocpiUnknownLocation
	case apperr.CodeBadInput, apperr.CodeMalformedResult:
		return ocpiInvalidParameters
	case apperr.CodeInternal:
		return ocpiServerError
	}
	return ocpiClientError
}

// writeError answers the internal JSON API.
func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apperr.HTTPStatus(err))
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":   apperr.TextCode(err),
		"message": err.Error(),
	})
}
