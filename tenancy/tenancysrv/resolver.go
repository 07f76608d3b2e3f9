package tenancysrv

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Abraxas-365/multistore/pkg/telemetry"
	"github.com/Abraxas-365/multistore/tenancy"
	"go.uber.org/zap"
)

const defaultMaxEntries = 10_000

// Resolver maps request hostnames to tenants with a read-through cache.
//
// Registry mutations wrap their transaction in BeginMutation. While one is
// pending lookups bypass the cache and never fill it; when it finishes the
// cache is emptied and the generation bumped, so a lookup that read the old
// mapping before the commit cannot store it afterwards.
type Resolver struct {
	domains    tenancy.DomainRepository
	ttl        time.Duration
	maxEntries int
	logger     *zap.Logger
	metrics    *telemetry.Metrics
	now        func() time.Time

	mu         sync.RWMutex
	entries    map[string]cacheEntry
	generation uint64
	pending    int
}

type cacheEntry struct {
	tenant   *tenancy.Tenant
	notFound bool
	expires  time.Time
}

// NewResolver builds a resolver. A zero ttl disables caching.
func NewResolver(domains tenancy.DomainRepository, ttl time.Duration, logger *zap.Logger, metrics *telemetry.Metrics) *Resolver {
	return &Resolver{
		domains:    domains,
		ttl:        ttl,
		maxEntries: defaultMaxEntries,
		logger:     logger,
		metrics:    metrics,
		now:        time.Now,
		entries:    make(map[string]cacheEntry),
	}
}

// Resolve returns the tenant registered for host. Matching is exact after
// normalization (case, port and trailing dot are ignored); an unregistered
// host yields tenancy.NotFound.
func (r *Resolver) Resolve(ctx context.Context, host string) (*tenancy.Tenant, error) {
	key := tenancy.NormalizeHost(host)
	if key == "" {
		return nil, tenancy.ErrDomainNotFound().WithDetail("domain", host)
	}

	r.mu.RLock()
	entry, cached := r.entries[key]
	gen, pending := r.generation, r.pending
	r.mu.RUnlock()

	if pending == 0 && cached && r.now().Before(entry.expires) {
		r.metrics.Lookup("hit")
		if entry.notFound {
			return nil, tenancy.ErrDomainNotFound().WithDetail("domain", key)
		}
		return entry.tenant.Clone(), nil
	}

	if pending > 0 {
		r.metrics.Lookup("bypass")
	} else {
		r.metrics.Lookup("miss")
	}

	t, err := r.domains.FindTenantByDomain(ctx, key)
	if err != nil && !errors.Is(err, tenancy.NotFound) {
		return nil, err
	}

	r.store(key, gen, t, err != nil)

	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *Resolver) store(key string, gen uint64, t *tenancy.Tenant, notFound bool) {
	if r.ttl <= 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pending > 0 || r.generation != gen {
		return
	}
	if len(r.entries) >= r.maxEntries {
		clear(r.entries)
	}
	r.entries[key] = cacheEntry{
		tenant:   t.Clone(),
		notFound: notFound,
		expires:  r.now().Add(r.ttl),
	}
}

// BeginMutation marks a registry mutation as in flight. The returned func
// must be called once the mutation has committed or rolled back; calling it
// more than once is harmless.
func (r *Resolver) BeginMutation() func() {
	r.mu.Lock()
	r.pending++
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			r.pending--
			r.generation++
			clear(r.entries)
			r.mu.Unlock()
		})
	}
}

// Invalidate drops every cached mapping.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	r.generation++
	clear(r.entries)
	r.mu.Unlock()
}

// HandleChange applies a change published by another replica.
func (r *Resolver) HandleChange(change tenancy.Change) {
	r.Invalidate()
	r.logger.Debug("resolver cache invalidated by remote change",
		zap.String("op", string(change.Op)),
		zap.String("tenant_id", change.TenantID.String()),
		zap.String("origin", change.Origin))
}

// Size reports the number of cached hostnames.
func (r *Resolver) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
