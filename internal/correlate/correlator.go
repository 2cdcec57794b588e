// Package correlate matches command results posted by CPOs to the commands
// this EMSP dispatched earlier.
//
// The result slot of a pending command is written at most once. A repeated
// delivery of the same payload is accepted; a different payload for a command
// that already has a result is a conflict and leaves the stored result as is.
package correlate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"emsp/internal/apperr"
	"emsp/internal/logging"
	"emsp/internal/metrics"
	"emsp/internal/models"
	"emsp/internal/validation"

	"go.uber.org/zap"
)

var (
	ErrCommandNotFound  = errors.New("pending command not found")
	ErrDuplicateCommand = errors.New("pending command already registered")
	ErrMissingCommandId = errors.New("command id is required")
)

type Outcome string

const (
	Accepted         Outcome = "accepted"
	UnknownCommandId Outcome = "unknown_command_id"
	MalformedResult  Outcome = "malformed_result"
	Conflict         Outcome = "conflict"
)

// Store is the shared correlation store.
type Store interface {
	// Lookup returns nil, nil for unknown ids.
	Lookup(ctx context.Context, commandId string) (*models.PendingCommand, error)
	// SetResult stores result if the slot is still empty. It returns the
	// result held after the call and whether this call wrote it, or
	// ErrCommandNotFound if the command is gone.
	SetResult(ctx context.Context, commandId string, result models.CommandResult) (models.CommandResult, bool, error)
}

// Registrar is implemented by stores that accept newly dispatched commands.
type Registrar interface {
	// Register inserts cmd unless its id is already present (ErrDuplicateCommand).
	Register(ctx context.Context, cmd models.PendingCommand) error
}

// Journal records every callback delivery.
type Journal interface {
	Record(ctx context.Context, commandId string, commandType models.CommandType, outcome string, payload []byte) error
}

type Correlator struct {
	store   Store
	journal Journal
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Correlator)

func WithJournal(j Journal) Option { return func(c *Correlator) { c.journal = j } }

func WithLogger(l *zap.Logger) Option { return func(c *Correlator) { c.log = logging.OrNop(l) } }

func WithMetrics(m *metrics.Metrics) Option { return func(c *Correlator) { c.metrics = m } }

func WithClock(fn func() time.Time) Option {
	return func(c *Correlator) {
		if fn != nil {
			c.now = fn
		}
	}
}

func New(store Store, opts ...Option) *Correlator {
	c := &Correlator{
		store: store,
		log:   zap.NewNop(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Correlate records body as the result of the commandType command commandId.
//
// MalformedResult and Conflict come with a typed error; UnknownCommandId is a
// soft failure and returns a nil error. Any other error is a store failure.
func (c *Correlator) Correlate(ctx context.Context, commandType models.CommandType, commandId string, body []byte) (Outcome, error) {
	outcome, err := c.correlate(ctx, commandType, commandId, body)
	c.metrics.ObserveCallback(string(commandType), string(outcome))
	if c.journal != nil && outcome != "" {
		if jerr := c.journal.Record(ctx, commandId, commandType, string(outcome), body); jerr != nil {
			c.log.Warn("journal command callback", zap.String("command_id", commandId), zap.Error(jerr))
		}
	}
	return outcome, err
}

func (c *Correlator) correlate(ctx context.Context, commandType models.CommandType, commandId string, body []byte) (Outcome, error) {
	commandId = strings.TrimSpace(commandId)
	if commandId == "" {
		return MalformedResult, apperr.MalformedResult(ErrMissingCommandId)
	}
	result, err := c.decode(body)
	if err != nil {
		c.log.Info("malformed command result",
			zap.String("command", string(commandType)),
			zap.String("command_id", commandId),
			zap.Error(err))
		return MalformedResult, apperr.MalformedResult(err)
	}

	pending, err := c.store.Lookup(ctx, commandId)
	if err != nil {
		return "", apperr.Internal(err, "lookup pending command")
	}
	if pending == nil || pending.Type != commandType {
		c.log.Info("command result for unknown command id",
			zap.String("command", string(commandType)),
			zap.String("command_id", commandId))
		return UnknownCommandId, nil
	}

	stored, swapped, err := c.store.SetResult(ctx, commandId, result)
	if errors.Is(err, ErrCommandNotFound) {
		return UnknownCommandId, nil
	}
	if err != nil {
		return "", apperr.Internal(err, "store command result")
	}
	if swapped {
		c.log.Info("command result accepted",
			zap.String("command", string(commandType)),
			zap.String("command_id", commandId),
			zap.String("result", string(result.Result)))
		return Accepted, nil
	}
	if bytes.Equal(stored.Raw, result.Raw) {
		c.log.Debug("command result re-delivered",
			zap.String("command", string(commandType)),
			zap.String("command_id", commandId))
		return Accepted, nil
	}

	c.log.Warn("conflicting command result rejected",
		zap.String("command", string(commandType)),
		zap.String("command_id", commandId),
		zap.String("stored_result", string(stored.Result)),
		zap.String("rejected_result", string(result.Result)))
	return Conflict, apperr.ResultConflict(commandId)
}

func (c *Correlator) decode(body []byte) (models.CommandResult, error) {
	var compact bytes.Buffer
	if err := json.Compact(&compact, body); err != nil {
		return models.CommandResult{}, err
	}
	var result models.CommandResult
	if err := json.Unmarshal(compact.Bytes(), &result); err != nil {
		return models.CommandResult{}, err
	}
	if err := validation.Struct(result); err != nil {
		return models.CommandResult{}, err
	}
	result.Raw = compact.Bytes()
	result.ReceivedAt = c.now().UTC()
	return result, nil
}

// DecodeStoredResult rebuilds a CommandResult from the raw payload a store persisted.
func DecodeStoredResult(raw []byte, receivedAt time.Time) (models.CommandResult, error) {
	var result models.CommandResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return models.CommandResult{}, err
	}
	result.Raw = append([]byte(nil), raw...)
	result.ReceivedAt = receivedAt
	return result, nil
}
