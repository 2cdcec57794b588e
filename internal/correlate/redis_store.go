package correlate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"emsp/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// registerScript inserts the command hash only if the key is absent.
var registerScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], 'type', ARGV[1], 'remote_party', ARGV[2], 'dispatched_at', ARGV[3])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return 1
`)

// setResultScript is the compare-and-set on the result field.
// Returns {-1} when the command is unknown, {1} when written, {0, raw, at} otherwise.
var setResultScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return {-1}
end
if redis.call('HSETNX', KEYS[1], 'result', ARGV[1]) == 1 then
  redis.call('HSET', KEYS[1], 'result_at', ARGV[2])
  return {1}
end
return {0, redis.call('HGET', KEYS[1], 'result'), redis.call('HGET', KEYS[1], 'result_at')}
`)

// RedisStore shares pending commands between EMSP instances through Redis.
// Entries expire with the key TTL set at registration.
type RedisStore struct {
	client *redis.Client
	logger *zap.Logger
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, logger *zap.Logger, ttl time.Duration) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{
		client: client,
		logger: logger,
		prefix: "emsp:command:",
		ttl:    ttl,
	}
}

func (s *RedisStore) key(commandId string) string {
	return s.prefix + strings.TrimSpace(commandId)
}

func (s *RedisStore) Register(ctx context.Context, cmd models.PendingCommand) error {
	if strings.TrimSpace(cmd.CommandId) == "" {
		return ErrMissingCommandId
	}
	if cmd.DispatchedAt.IsZero() {
		cmd.DispatchedAt = time.Now().UTC()
	}
	ttl := s.ttl
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	inserted, err := registerScript.Run(ctx, s.client, []string{s.key(cmd.CommandId)},
		string(cmd.Type), cmd.RemoteParty, cmd.DispatchedAt.UTC().Format(time.RFC3339Nano), ttl.Milliseconds()).Int()
	if err != nil {
		s.logger.Error("Failed to register pending command", zap.Error(err), zap.String("command_id", cmd.CommandId))
		return err
	}
	if inserted == 0 {
		return ErrDuplicateCommand
	}
	return nil
}

func (s *RedisStore) Lookup(ctx context.Context, commandId string) (*models.PendingCommand, error) {
	fields, err := s.client.HGetAll(ctx, s.key(commandId)).Result()
	if err != nil {
		s.logger.Error("Failed to get pending command", zap.Error(err), zap.String("command_id", commandId))
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}

	cmd := &models.PendingCommand{
		CommandId:    strings.TrimSpace(commandId),
		Type:         models.CommandType(fields["type"]),
		RemoteParty:  fields["remote_party"],
		DispatchedAt: parseTime(fields["dispatched_at"]),
	}
	if raw, ok := fields["result"]; ok {
		result, err := DecodeStoredResult([]byte(raw), parseTime(fields["result_at"]))
		if err != nil {
			return nil, fmt.Errorf("decode stored result: %w", err)
		}
		cmd.Result = &result
	}
	return cmd, nil
}

func (s *RedisStore) SetResult(ctx context.Context, commandId string, result models.CommandResult) (models.CommandResult, bool, error) {
	at := result.ReceivedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	reply, err := setResultScript.Run(ctx, s.client, []string{s.key(commandId)},
		string(result.Raw), at.Format(time.RFC3339Nano)).Slice()
	if err != nil {
		s.logger.Error("Failed to set command result", zap.Error(err), zap.String("command_id", commandId))
		return models.CommandResult{}, false, err
	}
	if len(reply) == 0 {
		return models.CommandResult{}, false, fmt.Errorf("unexpected reply from redis")
	}

	switch status, _ := reply[0].(int64); status {
	case -1:
		return models.CommandResult{}, false, ErrCommandNotFound
	case 1:
		return result, true, nil
	}

	if len(reply) < 3 {
		return models.CommandResult{}, false, fmt.Errorf("unexpected reply from redis")
	}
	raw, _ := reply[1].(string)
	storedAt, _ := reply[2].(string)
	stored, err := DecodeStoredResult([]byte(raw), parseTime(storedAt))
	if err != nil {
		return models.CommandResult{}, false, fmt.Errorf("decode stored result: %w", err)
	}
	return stored, false, nil
}

// Expire is a no-op: Redis evicts entries through the key TTL.
func (s *RedisStore) Expire(context.Context, time.Time) (int, error) { return 0, nil }

func parseTime(s string) time.Time {
	ts, _ := time.Parse(time.RFC3339Nano, s)
	return ts
}
