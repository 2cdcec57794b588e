package httpapi

import (
	"io"
	"net/http"
	"strings"

	"emsp/internal/models"
)

func readAll(r *http.Request, limit int64) ([]byte, error) {
	body := http.MaxBytesReader(nil, r.Body, limit)
	defer body.Close()
	return io.ReadAll(body)
}

// routingScope reads the OCPI-<dir>-country-code / -party-id header pair.
func routingScope(r *http.Request, dir string) *models.PartyScope {
	cc := r.Header.Get("OCPI-" + dir + "-country-code")
	pid := r.Header.Get("OCPI-" + dir + "-party-id")
	if strings.TrimSpace(cc) == "" || strings.TrimSpace(pid) == "" {
		return nil
	}
	scope := models.NewPartyScope(cc, pid)
	return &scope
}
