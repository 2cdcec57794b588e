// Package dispatch sends commands to CPOs and registers them for callback
// correlation.
package dispatch

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"emsp/internal/apperr"
	"emsp/internal/correlate"
	"emsp/internal/logging"
	"emsp/internal/models"
	"emsp/internal/outbound"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ClientSource interface {
	GetClient(ctx context.Context, id models.RemotePartyId) (*outbound.Client, error)
}

type Dispatcher struct {
	registrar   correlate.Registrar
	clients     ClientSource
	callbackURL string
	log         *zap.Logger
	NewId       func() string
	Now         func() time.Time
}

// Result describes a command after the CPO's synchronous answer.
type Result struct {
	CommandId   string          `json:"command_id"`
	ResponseURL string          `json:"response_url"`
	StatusCode  int             `json:"cpo_status_code"`
	Response    json.RawMessage `json:"cpo_response,omitempty"`
}

// New wires a dispatcher. publicBaseURL is where CPOs reach this EMSP.
func New(registrar correlate.Registrar, clients ClientSource, publicBaseURL string, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		registrar:   registrar,
		clients:     clients,
		callbackURL: strings.TrimRight(publicBaseURL, "/") + "/ocpi/emsp/2.2/commands/",
		log:         logging.OrNop(log),
		NewId:       uuid.NewString,
		Now:         time.Now,
	}
}

func (d *Dispatcher) ResponseURL(commandType models.CommandType, commandId string) string {
	return d.callbackURL + string(commandType) + "/" + commandId
}

// Send posts payload as a commandType command to cpo. The pending command is
// registered before the request leaves so an early callback still correlates.
func (d *Dispatcher) Send(ctx context.Context, cpo models.RemotePartyId, commandType models.CommandType, payload []byte) (Result, error) {
	fields := map[string]json.RawMessage{}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &fields); err != nil {
			return Result{}, apperr.BadInput("command payload must be a JSON object", map[string]any{"error": err.Error()})
		}
	}
	// a literal null decodes to a nil map
	if fields == nil {
		fields = map[string]json.RawMessage{}
	}

	client, err := d.clients.GetClient(ctx, cpo)
	if err != nil {
		return Result{}, apperr.Internal(err, "resolve outbound client")
	}
	if client == nil {
		return Result{}, apperr.NoEndpoint(cpo.String())
	}

	id := d.NewId()
	res := Result{CommandId: id, ResponseURL: d.ResponseURL(commandType, id)}
	fields["response_url"], _ = json.Marshal(res.ResponseURL)
	body, err := json.Marshal(fields)
	if err != nil {
		return Result{}, apperr.Internal(err, "encode command")
	}

	if err := d.registrar.Register(ctx, models.PendingCommand{
		CommandId:    id,
		Type:         commandType,
		RemoteParty:  cpo.String(),
		DispatchedAt: d.Now().UTC(),
	}); err != nil {
		return Result{}, apperr.Internal(err, "register pending command")
	}

	status, resp, err := client.SendCommand(ctx, commandType, body)
	if err != nil {
		d.log.Error("send command", zap.String("command", string(commandType)), zap.String("command_id", id), zap.Error(err))
		return res, apperr.Upstream(err, cpo.String())
	}
	res.StatusCode = status
	if json.Valid(resp) {
		res.Response = resp
	}
	d.log.Info("command dispatched",
		zap.String("command", string(commandType)),
		zap.String("command_id", id),
		zap.String("remote_party", cpo.String()),
		zap.Int("status", status))
	return res, nil
}
