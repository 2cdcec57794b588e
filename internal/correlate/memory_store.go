package correlate

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"emsp/internal/models"
)

type memoryEntry struct {
	cmd    models.PendingCommand
	result atomic.Pointer[models.CommandResult]
}

// MemoryStore keeps pending commands in process. Membership is guarded by a
// mutex; each entry's result slot is a compare-and-swap cell.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	Now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: map[string]*memoryEntry{},
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (s *MemoryStore) Register(_ context.Context, cmd models.PendingCommand) error {
	cmd.CommandId = strings.TrimSpace(cmd.CommandId)
	if cmd.CommandId == "" {
		return ErrMissingCommandId
	}
	if cmd.DispatchedAt.IsZero() {
		cmd.DispatchedAt = s.now()
	}
	e := &memoryEntry{cmd: cmd}
	e.cmd.Result = nil
	if cmd.Result != nil {
		r := *cmd.Result
		e.result.Store(&r)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[cmd.CommandId]; exists {
		return ErrDuplicateCommand
	}
	s.entries[cmd.CommandId] = e
	return nil
}

func (s *MemoryStore) Lookup(_ context.Context, commandId string) (*models.PendingCommand, error) {
	e := s.entry(commandId)
	if e == nil {
		return nil, nil
	}
	cmd := e.cmd
	if r := e.result.Load(); r != nil {
		copied := *r
		cmd.Result = &copied
	}
	return &cmd, nil
}

func (s *MemoryStore) SetResult(_ context.Context, commandId string, result models.CommandResult) (models.CommandResult, bool, error) {
	e := s.entry(commandId)
	if e == nil {
		return models.CommandResult{}, false, ErrCommandNotFound
	}
	candidate := result
	if e.result.CompareAndSwap(nil, &candidate) {
		return candidate, true, nil
	}
	return *e.result.Load(), false, nil
}

// Expire drops commands dispatched before cutoff and reports how many went.
func (s *MemoryStore) Expire(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, e := range s.entries {
		if e.cmd.DispatchedAt.Before(cutoff) {
			delete(s.entries, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) entry(commandId string) *memoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[strings.TrimSpace(commandId)]
}

func (s *MemoryStore) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
