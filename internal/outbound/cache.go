// Package outbound holds the per-party clients this EMSP uses to call CPOs.
package outbound

import (
	"context"
	"net/http"
	"sync"
	"time"

	"emsp/internal/logging"
	"emsp/internal/metrics"
	"emsp/internal/models"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Directory resolves a remote party's stored configuration. It returns nil, nil
// for unknown parties.
type Directory interface {
	RemoteParty(ctx context.Context, id models.RemotePartyId) (*models.RemoteParty, error)
}

// Cache is a get-or-create map of outbound clients keyed by remote party id.
// The sync.Map is the only place a client is published; the singleflight group
// merely keeps concurrent misses from hammering the directory.
const directoryTimeout = 10 * time.Second

type Cache struct {
	directory Directory
	http      *http.Client
	log       *zap.Logger
	metrics   *metrics.Metrics
	clients   sync.Map
	lookups   singleflight.Group
	Now       func() time.Time
}

type CacheOption func(*Cache)

func WithLogger(l *zap.Logger) CacheOption { return func(c *Cache) { c.log = logging.OrNop(l) } }

func WithMetrics(m *metrics.Metrics) CacheOption { return func(c *Cache) { c.metrics = m } }

func WithHTTPClient(h *http.Client) CacheOption {
	return func(c *Cache) {
		if h != nil {
			c.http = h
		}
	}
}

func NewCache(directory Directory, opts ...CacheOption) *Cache {
	c := &Cache{
		directory: directory,
		http:      &http.Client{Timeout: 15 * time.Second},
		log:       zap.NewNop(),
		Now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetClient returns the cached client for id, resolving the party through the
// directory on a miss. A nil client without error means the party has no
// usable access endpoint; that answer is not cached.
func (c *Cache) GetClient(ctx context.Context, id models.RemotePartyId) (*Client, error) {
	key := id.String()
	if v, ok := c.clients.Load(key); ok {
		c.metrics.ObserveClientLookup("hit")
		return v.(*Client), nil
	}

	// The shared lookup must not inherit one caller's cancellation; each caller
	// stops waiting on its own context instead.
	ch := c.lookups.DoChan(key, func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), directoryTimeout)
		defer cancel()
		party, err := c.directory.RemoteParty(lookupCtx, id)
		if err != nil {
			return nil, err
		}
		return c.publish(id, party), nil
	})
	var v any
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			c.log.Error("resolve remote party", zap.String("remote_party", key), zap.Error(res.Err))
			return nil, res.Err
		}
		v = res.Val
	}
	client, _ := v.(*Client)
	c.observeMiss(client)
	return client, nil
}

// GetClientFor resolves the CPO role of countryCode/partyId.
func (c *Cache) GetClientFor(ctx context.Context, countryCode, partyId string) (*Client, error) {
	return c.GetClient(ctx, models.NewRemotePartyId(countryCode, partyId, models.RoleCPO))
}

// GetClientForParty skips the directory and builds from party on a miss.
func (c *Cache) GetClientForParty(party models.RemoteParty) *Client {
	if v, ok := c.clients.Load(party.Id.String()); ok {
		c.metrics.ObserveClientLookup("hit")
		return v.(*Client)
	}
	client := c.publish(party.Id, &party)
	c.observeMiss(client)
	return client
}

func (c *Cache) publish(id models.RemotePartyId, party *models.RemoteParty) *Client {
	if party == nil {
		return nil
	}
	access, ok := party.UsableRemoteAccess()
	if !ok {
		return nil
	}
	candidate := NewClient(id, access, c.http, c.Now())
	winner, loaded := c.clients.LoadOrStore(id.String(), candidate)
	if loaded {
		c.log.Debug("discarding redundant outbound client", zap.String("remote_party", id.String()))
	}
	return winner.(*Client)
}

func (c *Cache) observeMiss(client *Client) {
	if client == nil {
		c.metrics.ObserveClientLookup("none")
		return
	}
	c.metrics.ObserveClientLookup("miss")
}

// Evict drops the client for id so the next lookup rebuilds it.
func (c *Cache) Evict(id models.RemotePartyId) {
	c.clients.Delete(id.String())
}

// Sweep evicts clients created more than maxAge ago and returns the count.
func (c *Cache) Sweep(maxAge time.Duration) int {
	cutoff := c.Now().Add(-maxAge)
	n := 0
	c.clients.Range(func(key, value any) bool {
		if value.(*Client).CreatedAt().Before(cutoff) {
			// only remove the exact handle we inspected
			if c.clients.CompareAndDelete(key, value) {
				n++
			}
		}
		return true
	})
	return n
}

func (c *Cache) Len() int {
	n := 0
	c.clients.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
