package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"emsp/internal/apperr"
	"emsp/internal/correlate"
	"emsp/internal/models"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CommandCallback receives the asynchronous CommandResult a CPO posts to the
// response_url of a commandType command.
func (s *Server) CommandCallback(commandType models.CommandType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		commandId := chi.URLParam(r, "commandId")
		raw, err := readAll(r, maxBodyBytes)
		if err != nil {
			writeEnvelope(w, http.StatusBadRequest, ocpiInvalidParameters, "bad body", nil)
			return
		}

		outcome, err := s.Correlator.Correlate(r.Context(), commandType, commandId, raw)
		switch outcome {
		case correlate.Accepted:
			writeEnvelope(w, http.StatusAccepted, ocpiSuccess, "", nil)
		case correlate.UnknownCommandId:
			writeEnvelope(w, http.StatusOK, ocpiClientError, statusUnknownCommandId, nil)
		case correlate.MalformedResult:
			writeEnvelope(w, http.StatusBadRequest, ocpiInvalidParameters, err.Error(), nil)
		case correlate.Conflict:
			writeEnvelope(w, http.StatusConflict, ocpiClientError, statusConflictingResult, nil)
		default:
			s.Log.Error("correlate command result",
				zap.String("command", string(commandType)),
				zap.String("command_id", commandId),
				zap.Error(err))
			writeEnvelope(w, http.StatusInternalServerError, ocpiServerError, "could not store command result", nil)
		}
	}
}

type dispatchReq struct {
	Type        string          `json:"type"`
	RemoteParty string          `json:"remote_party"`
	CountryCode string          `json:"country_code"`
	PartyId     string          `json:"party_id"`
	Payload     json.RawMessage `json:"payload"`
}

// DispatchCommand sends a command to a CPO on behalf of an internal caller.
func (s *Server) DispatchCommand(w http.ResponseWriter, r *http.Request) {
	var req dispatchReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.BadInput("invalid json", nil))
		return
	}
	commandType, err := models.ParseCommandType(req.Type)
	if err != nil {
		writeError(w, apperr.BadInput(err.Error(), nil))
		return
	}

	var cpo models.RemotePartyId
	switch {
	case strings.TrimSpace(req.RemoteParty) != "":
		cpo, err = models.ParseRemotePartyId(req.RemoteParty)
		if err != nil {
			writeError(w, apperr.BadInput(err.Error(), nil))
			return
		}
	case req.CountryCode != "" && req.PartyId != "":
		cpo = models.NewRemotePartyId(req.CountryCode, req.PartyId, models.RoleCPO)
	default:
		writeError(w, apperr.BadInput("missing remote_party or country_code/party_id", nil))
		return
	}

	timeout := s.Cfg.OutboundTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	res, err := s.Dispatcher.Send(ctx, cpo, commandType, req.Payload)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(res)
}
