// Package sweeper periodically drops pending commands and outbound clients
// that outlived their TTL.
package sweeper

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"emsp/internal/metrics"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type commandExpirer interface {
	Expire(ctx context.Context, cutoff time.Time) (int, error)
}

type clientSweeper interface {
	Sweep(maxAge time.Duration) int
}

type Config struct {
	Schedule   string
	CommandTTL time.Duration
	ClientTTL  time.Duration
}

type Sweeper struct {
	commands commandExpirer
	clients  clientSweeper
	cfg      Config
	logger   *zap.Logger
	metrics  *metrics.Metrics
	Now      func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

// New validates the schedule up front; both standard five-field expressions
// and descriptors such as "@every 1m" are accepted.
func New(commands commandExpirer, clients clientSweeper, cfg Config, m *metrics.Metrics, logger *zap.Logger) (*Sweeper, error) {
	cfg.Schedule = strings.TrimSpace(cfg.Schedule)
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return nil, fmt.Errorf("sweep schedule %q: %w", cfg.Schedule, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		commands: commands,
		clients:  clients,
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		Now:      time.Now,
	}, nil
}

// Start schedules the sweep. Calling it twice is a no-op.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return
	}
	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(s.cfg.Schedule, func() { s.RunOnce(ctx) }); err != nil {
		// New already parsed the schedule
		s.logger.Error("schedule sweeper", zap.Error(err))
		return
	}
	c.Start()
	s.cron = c
	s.logger.Info("sweeper started", zap.String("schedule", s.cfg.Schedule))
}

// Stop waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
}

// RunOnce performs a single sweep. A zero TTL disables that half.
func (s *Sweeper) RunOnce(ctx context.Context) {
	now := s.Now().UTC()
	if s.commands != nil && s.cfg.CommandTTL > 0 {
		n, err := s.commands.Expire(ctx, now.Add(-s.cfg.CommandTTL))
		if err != nil {
			s.logger.Error("expire pending commands", zap.Error(err))
		} else if n > 0 {
			s.logger.Info("expired pending commands", zap.Int("count", n))
		}
		s.metrics.ObserveSwept("command", n)
	}
	if s.clients != nil && s.cfg.ClientTTL > 0 {
		n := s.clients.Sweep(s.cfg.ClientTTL)
		if n > 0 {
			s.logger.Info("evicted outbound clients", zap.Int("count", n))
		}
		s.metrics.ObserveSwept("client", n)
	}
}
