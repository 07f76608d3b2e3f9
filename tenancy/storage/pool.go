package storage

import (
	"context"
	"sync"

	"github.com/Abraxas-365/multistore/pkg/kernel"
	"github.com/Abraxas-365/multistore/tenancy"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Pool caches one *sqlx.DB per tenant and counts the leases held on it.
// A retired tenant refuses new leases; its connections are closed once the
// outstanding leases are released.
type Pool struct {
	driver Driver
	logger *zap.Logger

	mu      sync.Mutex
	handles map[kernel.TenantID]*handle
}

type handle struct {
	id         kernel.TenantID
	db         *sqlx.DB
	leases     int
	connecting int
	retired    bool
	drained    chan struct{}
}

func NewPool(driver Driver, logger *zap.Logger) *Pool {
	return &Pool{
		driver:  driver,
		logger:  logger,
		handles: make(map[kernel.TenantID]*handle),
	}
}

func (p *Pool) Driver() Driver { return p.driver }

// Acquire returns a lease on the tenant's store, connecting on first use.
func (p *Pool) Acquire(ctx context.Context, id kernel.TenantID) (*Lease, error) {
	p.mu.Lock()
	h := p.handles[id]
	if h != nil && h.retired {
		p.mu.Unlock()
		return nil, errRetired(id)
	}
	if h != nil && h.db != nil {
		h.leases++
		p.mu.Unlock()
		return &Lease{pool: p, h: h, db: h.db}, nil
	}
	// The placeholder stays in the map while connecting, so a Retire that
	// lands in between marks it and the new connection is thrown away.
	if h == nil {
		h = &handle{id: id}
		p.handles[id] = h
	}
	h.connecting++
	p.mu.Unlock()

	// Connect outside the lock so a slow tenant does not stall the others.
	db, err := p.driver.Connect(ctx, id)

	p.mu.Lock()
	defer p.mu.Unlock()
	h.connecting--

	if p.handles[id] != h || h.retired {
		if db != nil {
			db.Close()
		}
		return nil, errRetired(id)
	}
	if err != nil {
		p.forgetIdle(h)
		return nil, err
	}

	if h.db != nil {
		db.Close()
	} else {
		h.db = db
		p.logger.Debug("tenant storage connected",
			zap.String("tenant_id", id.String()),
			zap.String("driver", p.driver.Name()))
	}

	h.leases++
	return &Lease{pool: p, h: h, db: h.db}, nil
}

// forgetIdle drops a handle nobody uses. Callers hold p.mu.
func (p *Pool) forgetIdle(h *handle) {
	if h.db == nil && h.leases == 0 && h.connecting == 0 && !h.retired && p.handles[h.id] == h {
		delete(p.handles, h.id)
	}
}

func errRetired(id kernel.TenantID) error {
	return tenancy.ErrTenantNotFound().
		WithDetail("tenant_id", id.String()).
		WithDetail("reason", "storage retired")
}

func (p *Pool) release(h *handle) {
	p.mu.Lock()
	defer p.mu.Unlock()

	h.leases--
	if h.retired && h.leases == 0 && h.drained != nil {
		select {
		case <-h.drained:
		default:
			close(h.drained)
		}
	}
}

// Retire stops new leases for the tenant and waits until the existing ones
// are released or ctx is done. On success the tenant's connections are closed
// and the returned Retirement must be completed or aborted.
func (p *Pool) Retire(ctx context.Context, id kernel.TenantID) (*Retirement, error) {
	p.mu.Lock()
	h := p.handles[id]
	if h == nil {
		h = &handle{id: id}
		p.handles[id] = h
	}
	if h.retired {
		p.mu.Unlock()
		return nil, tenancy.ErrTenantNotFound().
			WithDetail("tenant_id", id.String()).
			WithDetail("reason", "deletion already in progress")
	}
	h.retired = true
	h.drained = make(chan struct{})
	if h.leases == 0 {
		close(h.drained)
	}
	drained, waiting := h.drained, h.leases
	p.mu.Unlock()

	r := &Retirement{pool: p, h: h}

	if waiting > 0 {
		p.logger.Info("waiting for tenant contexts to drain",
			zap.String("tenant_id", id.String()),
			zap.Int("leases", waiting))
	}

	select {
	case <-drained:
	case <-ctx.Done():
		r.Abort()
		return nil, tenancy.ErrProvisioningFailed(ctx.Err()).
			WithDetail("tenant_id", id.String()).
			WithDetail("reason", "active contexts did not drain")
	}

	p.mu.Lock()
	db := h.db
	h.db = nil
	p.mu.Unlock()

	if db != nil {
		if err := db.Close(); err != nil {
			p.logger.Warn("failed to close tenant storage",
				zap.String("tenant_id", id.String()),
				zap.Error(err))
		}
	}

	return r, nil
}

// Leases reports the number of outstanding leases for the tenant.
func (p *Pool) Leases(id kernel.TenantID) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if h := p.handles[id]; h != nil {
		return h.leases
	}
	return 0
}

// Open lists the tenants with a live connection.
func (p *Pool) Open() []kernel.TenantID {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]kernel.TenantID, 0, len(p.handles))
	for id, h := range p.handles {
		if h.db != nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// Close closes every cached connection.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var first error
	for id, h := range p.handles {
		if h.db == nil {
			continue
		}
		if err := h.db.Close(); err != nil && first == nil {
			first = err
		}
		h.db = nil
		delete(p.handles, id)
	}
	return first
}

// Lease is one unit of work's hold on a tenant store.
type Lease struct {
	pool *Pool
	h    *handle
	db   *sqlx.DB
	once sync.Once
}

func (l *Lease) TenantID() kernel.TenantID { return l.h.id }

func (l *Lease) DB() *sqlx.DB { return l.db }

// Release is idempotent.
func (l *Lease) Release() {
	l.once.Do(func() { l.pool.release(l.h) })
}

// Retirement is a drained tenant whose deletion is in progress.
type Retirement struct {
	pool *Pool
	h    *handle
	once sync.Once
}

// Complete forgets the tenant; later acquisitions go to the driver, which
// reports NotFound once the store is destroyed.
func (r *Retirement) Complete() {
	r.once.Do(func() {
		r.pool.mu.Lock()
		defer r.pool.mu.Unlock()
		if r.pool.handles[r.h.id] == r.h {
			delete(r.pool.handles, r.h.id)
		}
	})
}

// Abort lifts the retirement so the tenant can be activated again.
func (r *Retirement) Abort() {
	r.once.Do(func() {
		r.pool.mu.Lock()
		defer r.pool.mu.Unlock()
		r.h.retired = false
		r.pool.forgetIdle(r.h)
	})
}
