package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"

	"emsp/internal/apperr"
	"emsp/internal/authz"
	"emsp/internal/models"
	"emsp/internal/validation"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func (s *Server) AuthorizeToken(w http.ResponseWriter, r *http.Request) {
	tokenUID := chi.URLParam(r, "tokenUID")
	tokenType, err := models.ParseTokenType(r.URL.Query().Get("type"))
	if err != nil {
		writeEnvelope(w, http.StatusBadRequest, ocpiInvalidParameters, err.Error(), nil)
		return
	}

	raw, err := readAll(r, maxBodyBytes)
	if err != nil {
		writeEnvelope(w, http.StatusBadRequest, ocpiInvalidParameters, "bad body", nil)
		return
	}
	var loc *models.LocationReference
	if len(bytes.TrimSpace(raw)) > 0 {
		var ref models.LocationReference
		if err := json.Unmarshal(raw, &ref); err != nil {
			writeEnvelope(w, http.StatusBadRequest, ocpiInvalidParameters, "invalid location reference", nil)
			return
		}
		if err := validation.Struct(ref); err != nil {
			writeEnvelope(w, http.StatusBadRequest, ocpiInvalidParameters, err.Error(), nil)
			return
		}
		loc = &ref
	}

	info, err := s.Engine.Authorize(r.Context(), authz.Request{
		TokenId:   tokenUID,
		TokenType: tokenType,
		From:      routingScope(r, "from"),
		To:        routingScope(r, "to"),
		Caller:    accessFrom(r.Context()),
		Location:  loc,
	})
	if err == nil {
		writeEnvelope(w, http.StatusOK, ocpiSuccess, "", info)
		return
	}

	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.Log.Error("authorize token", zap.String("token_uid", tokenUID), zap.Error(err))
		writeEnvelope(w, status, ocpiServerError, "authorization failed", nil)
		return
	}
	if apperr.Is(err, apperr.CodeUnknownToken) {
		writeEnvelope(w, status, ocpiUnknownToken, "Unknown token", nil)
		return
	}
	message := err.Error()
	if info.Info != nil {
		message = info.Info.Text
	}
	writeEnvelope(w, status, ocpiStatusFor(err), message, info)
}
