package scope

import (
	"context"
	"errors"
	"time"

	"github.com/Abraxas-365/multistore/pkg/kernel"
	"github.com/Abraxas-365/multistore/pkg/telemetry"
	"github.com/Abraxas-365/multistore/tenancy"
	"github.com/Abraxas-365/multistore/tenancy/storage"
	"go.uber.org/zap"
)

// Switcher moves a unit of work between the central context and a tenant.
type Switcher struct {
	pool    *storage.Pool
	tenants tenancy.TenantRepository
	logger  *zap.Logger
	metrics *telemetry.Metrics
}

func NewSwitcher(pool *storage.Pool, tenants tenancy.TenantRepository, logger *zap.Logger, metrics *telemetry.Metrics) *Switcher {
	return &Switcher{
		pool:    pool,
		tenants: tenants,
		logger:  logger,
		metrics: metrics,
	}
}

// Activate binds t to the unit of work in ctx. The binding keeps a copy of t
// and a lease on its store; nothing is looked up again until Deactivate.
func (s *Switcher) Activate(ctx context.Context, t *tenancy.Tenant) error {
	u := from(ctx)
	if u == nil {
		s.metrics.Activation("error")
		return tenancy.ErrNoUnitOfWork()
	}
	if t == nil {
		s.metrics.Activation("error")
		return tenancy.ErrInvalidTenant().WithDetail("reason", "nil tenant")
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	if u.binding != nil {
		s.metrics.Activation("already_active")
		return tenancy.ErrAlreadyActive().
			WithDetail("active_tenant", u.binding.tenant.ID.String()).
			WithDetail("requested_tenant", t.ID.String())
	}
	if !t.IsActive {
		s.metrics.Activation("inactive")
		return tenancy.ErrTenantInactive().WithDetail("tenant_id", t.ID.String())
	}
	if err := ctx.Err(); err != nil {
		s.metrics.Activation("error")
		return err
	}

	lease, err := s.pool.Acquire(ctx, t.ID)
	if err != nil {
		if errors.Is(err, tenancy.NotFound) {
			s.metrics.Activation("not_found")
		} else {
			s.metrics.Activation("error")
		}
		return err
	}

	u.binding = &binding{
		tenant: t.Clone(),
		lease:  lease,
		memo:   newMemo(),
		since:  time.Now(),
	}
	s.metrics.Activation("ok")
	s.metrics.Bound()
	s.logger.Debug("tenant context activated", zap.String("tenant_id", t.ID.String()))
	return nil
}

// Deactivate returns the unit of work to the central context. It is a no-op
// when nothing is bound.
func (s *Switcher) Deactivate(ctx context.Context) error {
	u := from(ctx)
	if u == nil {
		return nil
	}

	u.mu.Lock()
	b := u.binding
	u.binding = nil
	u.mu.Unlock()

	if b == nil {
		return nil
	}

	b.lease.Release()
	s.metrics.Unbound()
	s.logger.Debug("tenant context deactivated",
		zap.String("tenant_id", b.tenant.ID.String()),
		zap.Duration("held", time.Since(b.since)))
	return nil
}

// Run activates t, runs fn and deactivates on every exit path, including
// errors, panics and cancellation. ctx gets a unit of work if it has none.
func (s *Switcher) Run(ctx context.Context, t *tenancy.Tenant, fn func(ctx context.Context) error) error {
	if !HasUnit(ctx) {
		ctx = Begin(ctx)
	}
	if err := s.Activate(ctx, t); err != nil {
		return err
	}
	defer s.Deactivate(ctx)

	return fn(ctx)
}

// RunByID looks the tenant up in the registry and runs fn inside it. Used by
// the CLI and jobs, where the tenant is named explicitly.
func (s *Switcher) RunByID(ctx context.Context, id kernel.TenantID, fn func(ctx context.Context) error) error {
	if err := EnsureCentral(ctx); err != nil {
		return err
	}
	t, err := s.tenants.FindByID(ctx, id)
	if err != nil {
		return err
	}
	return s.Run(ctx, t, fn)
}

type forEachConfig struct {
	continueOnError bool
	skipInactive    bool
}

// ForEachOption tunes RunForEach.
type ForEachOption func(*forEachConfig)

// ContinueOnError runs every tenant and joins the failures.
func ContinueOnError() ForEachOption {
	return func(c *forEachConfig) { c.continueOnError = true }
}

// SkipInactive ignores deactivated tenants instead of failing on them.
func SkipInactive() ForEachOption {
	return func(c *forEachConfig) { c.skipInactive = true }
}

// RunForEach runs fn inside each tenant in turn, always from and back to the
// central context. It stops at the first error unless ContinueOnError is set.
func (s *Switcher) RunForEach(ctx context.Context, tenants []*tenancy.Tenant, fn func(ctx context.Context, t *tenancy.Tenant) error, opts ...ForEachOption) error {
	cfg := forEachConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if !HasUnit(ctx) {
		ctx = Begin(ctx)
	}
	if err := EnsureCentral(ctx); err != nil {
		return err
	}

	var errs []error
	for _, t := range tenants {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		if cfg.skipInactive && !t.IsActive {
			continue
		}

		err := s.Run(ctx, t, func(ctx context.Context) error {
			return fn(ctx, t)
		})
		if err == nil {
			continue
		}
		s.logger.Warn("tenant run failed", zap.String("tenant_id", t.ID.String()), zap.Error(err))
		if !cfg.continueOnError {
			return err
		}
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Suspended is a binding detached from its unit of work by Suspend.
type Suspended struct {
	unit *unit
	b    *binding
	done bool
}

// Tenant returns the suspended tenant, nil when the unit was central.
func (sp *Suspended) Tenant() *tenancy.Tenant {
	if sp.b == nil {
		return nil
	}
	return sp.b.tenant.Clone()
}

// Suspend detaches the current binding, leaving the unit in the central
// context while keeping the lease. It must be followed by Resume or Discard.
func (s *Switcher) Suspend(ctx context.Context) (*Suspended, error) {
	u := from(ctx)
	if u == nil {
		return nil, tenancy.ErrNoUnitOfWork()
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	sp := &Suspended{unit: u, b: u.binding}
	u.binding = nil
	return sp, nil
}

// Resume reattaches a suspended binding, or confirms the central context
// when nothing was bound. The unit must be central again.
func (s *Switcher) Resume(ctx context.Context, sp *Suspended) error {
	u := from(ctx)
	if u == nil || u != sp.unit {
		return tenancy.ErrNoUnitOfWork()
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	if sp.done {
		return nil
	}
	if u.binding != nil {
		requested := "central"
		if sp.b != nil {
			requested = sp.b.tenant.ID.String()
		}
		return tenancy.ErrAlreadyActive().
			WithDetail("active_tenant", u.binding.tenant.ID.String()).
			WithDetail("requested_tenant", requested)
	}
	u.binding = sp.b
	sp.done = true
	return nil
}

// Discard releases a suspended binding that will not be resumed.
func (s *Switcher) Discard(sp *Suspended) {
	sp.unit.mu.Lock()
	done := sp.done
	sp.done = true
	sp.unit.mu.Unlock()

	if done || sp.b == nil {
		return
	}
	sp.b.lease.Release()
	s.metrics.Unbound()
}

// Swap runs fn inside t and afterwards restores whatever was bound before,
// tenant or central.
func (s *Switcher) Swap(ctx context.Context, t *tenancy.Tenant, fn func(ctx context.Context) error) (err error) {
	if !HasUnit(ctx) {
		ctx = Begin(ctx)
	}
	sp, err := s.Suspend(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := s.Resume(ctx, sp); rerr != nil {
			s.Discard(sp)
			if err == nil {
				err = rerr
			}
		}
	}()

	return s.Run(ctx, t, fn)
}
