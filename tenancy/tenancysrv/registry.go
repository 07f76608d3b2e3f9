package tenancysrv

import (
	"context"
	"errors"
	"time"

	"github.com/Abraxas-365/multistore/pkg/kernel"
	"github.com/Abraxas-365/multistore/pkg/telemetry"
	"github.com/Abraxas-365/multistore/tenancy"
	"github.com/Abraxas-365/multistore/tenancy/scope"
	"github.com/Abraxas-365/multistore/tenancy/storage"
	"go.uber.org/zap"
)

const defaultDrainTimeout = 30 * time.Second

// Registry is the administrative surface over tenants and their domains.
// It only works from the central context.
type Registry struct {
	tenants  tenancy.TenantRepository
	domains  tenancy.DomainRepository
	tx       tenancy.Transactor
	pool     *storage.Pool
	switcher *scope.Switcher
	resolver *Resolver
	logger   *zap.Logger
	metrics  *telemetry.Metrics

	hooks        []tenancy.Hook
	notifier     tenancy.ChangeNotifier
	drainTimeout time.Duration
}

// RegistryOption configures optional collaborators.
type RegistryOption func(*Registry)

// WithHooks appends lifecycle hooks. They provision in the given order and
// deprovision in reverse.
func WithHooks(hooks ...tenancy.Hook) RegistryOption {
	return func(r *Registry) { r.hooks = append(r.hooks, hooks...) }
}

// WithNotifier broadcasts committed changes to other replicas.
func WithNotifier(n tenancy.ChangeNotifier) RegistryOption {
	return func(r *Registry) { r.notifier = n }
}

// WithDrainTimeout bounds how long Delete waits for other units of work to
// leave the tenant.
func WithDrainTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.drainTimeout = d
		}
	}
}

func NewRegistry(
	tenants tenancy.TenantRepository,
	domains tenancy.DomainRepository,
	tx tenancy.Transactor,
	pool *storage.Pool,
	switcher *scope.Switcher,
	resolver *Resolver,
	logger *zap.Logger,
	metrics *telemetry.Metrics,
	opts ...RegistryOption,
) *Registry {
	r := &Registry{
		tenants:      tenants,
		domains:      domains,
		tx:           tx,
		pool:         pool,
		switcher:     switcher,
		resolver:     resolver,
		logger:       logger,
		metrics:      metrics,
		drainTimeout: defaultDrainTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Hooks returns the registered hook names in provisioning order.
func (r *Registry) Hooks() []string {
	names := make([]string, len(r.hooks))
	for i, h := range r.hooks {
		names[i] = h.Name()
	}
	return names
}

// ============================================================================
// Tenants
// ============================================================================

// Create registers a tenant, its domains and its storage in one step. Either
// everything exists afterwards or nothing does.
func (r *Registry) Create(ctx context.Context, req tenancy.CreateTenantRequest) (*tenancy.Tenant, error) {
	if err := scope.EnsureCentral(ctx); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	t := req.NewTenant(time.Now().UTC())

	done := r.resolver.BeginMutation()
	defer done()

	provisioned := false
	err := r.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := r.tenants.Create(ctx, t); err != nil {
			return err
		}
		for _, host := range req.Domains {
			if err := r.domains.Create(ctx, tenancy.Domain{
				Domain:    host,
				TenantID:  t.ID,
				CreatedAt: t.CreatedAt,
				UpdatedAt: t.CreatedAt,
			}); err != nil {
				return err
			}
		}
		if err := r.provision(ctx, t); err != nil {
			return err
		}
		provisioned = true
		return nil
	})
	if err != nil && provisioned {
		// The commit failed after storage and hooks were set up.
		r.teardown(context.WithoutCancel(ctx), t, r.hooks)
		err = tenancy.ErrProvisioningFailed(err).WithDetail("tenant_id", t.ID.String())
	}
	done()

	r.metrics.Lifecycle("create", err)
	if err != nil {
		r.logger.Warn("tenant creation failed", zap.String("tenant_id", t.ID.String()), zap.Error(err))
		return nil, err
	}

	t.Domains = req.Domains
	r.logger.Info("tenant created",
		zap.String("tenant_id", t.ID.String()),
		zap.Strings("domains", req.Domains),
		zap.Strings("hooks", r.Hooks()))
	r.publish(ctx, tenancy.Change{Op: tenancy.ChangeCreated, TenantID: t.ID})
	return t, nil
}

// provision creates the storage and runs the hooks. On failure it undoes
// what it did before returning.
func (r *Registry) provision(ctx context.Context, t *tenancy.Tenant) error {
	if err := r.pool.Driver().CreateHandle(ctx, t.ID); err != nil {
		return err
	}

	completed := make([]tenancy.Hook, 0, len(r.hooks))
	for _, h := range r.hooks {
		if err := r.runProvision(ctx, t, h); err != nil {
			r.teardown(context.WithoutCancel(ctx), t, completed)
			return tenancy.ErrProvisioningFailed(err).
				WithDetail("tenant_id", t.ID.String()).
				WithDetail("hook", h.Name())
		}
		completed = append(completed, h)
	}
	return nil
}

func (r *Registry) runProvision(ctx context.Context, t *tenancy.Tenant, h tenancy.Hook) error {
	if !h.NeedsContext() {
		return h.Provision(ctx, t)
	}
	// Provisioning also runs for tenants created disabled.
	target := t.Clone()
	target.IsActive = true
	return r.switcher.Run(ctx, target, func(ctx context.Context) error {
		return h.Provision(ctx, target)
	})
}

// teardown deprovisions hooks in reverse order and destroys the storage.
// Failures are logged; the caller already has an error to report.
func (r *Registry) teardown(ctx context.Context, t *tenancy.Tenant, hooks []tenancy.Hook) {
	for i := len(hooks) - 1; i >= 0; i-- {
		if err := hooks[i].Deprovision(ctx, t); err != nil {
			r.logger.Error("hook compensation failed",
				zap.String("tenant_id", t.ID.String()),
				zap.String("hook", hooks[i].Name()),
				zap.Error(err))
		}
	}

	ret, err := r.pool.Retire(ctx, t.ID)
	if err != nil {
		r.logger.Error("failed to retire tenant storage",
			zap.String("tenant_id", t.ID.String()), zap.Error(err))
		return
	}
	defer ret.Complete()

	if err := r.pool.Driver().DestroyHandle(ctx, t.ID); err != nil {
		r.logger.Error("failed to destroy tenant storage",
			zap.String("tenant_id", t.ID.String()), zap.Error(err))
	}
}

// Find returns a tenant with its domains.
func (r *Registry) Find(ctx context.Context, id kernel.TenantID) (*tenancy.Tenant, error) {
	t, err := r.tenants.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	domains, err := r.domains.FindByTenant(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Domains = hostnames(domains)
	return t, nil
}

// List returns every tenant, active or not.
func (r *Registry) List(ctx context.Context) ([]*tenancy.Tenant, error) {
	return r.tenants.FindAll(ctx)
}

// ListActive returns the tenants that can be activated.
func (r *Registry) ListActive(ctx context.Context) ([]*tenancy.Tenant, error) {
	return r.tenants.FindActive(ctx)
}

// Delete removes a tenant, its domains and its storage. If the caller's own
// unit of work is inside the tenant it is moved back to central first. Other
// units of work keep their context until they leave it; Delete waits for
// them up to the drain timeout and new activations fail with NotFound.
func (r *Registry) Delete(ctx context.Context, id kernel.TenantID) error {
	if current, err := scope.CurrentID(ctx); err == nil && current == id {
		if err := r.switcher.Deactivate(ctx); err != nil {
			return err
		}
	}
	if err := scope.EnsureCentral(ctx); err != nil {
		return err
	}

	t, err := r.tenants.FindByID(ctx, id)
	if err != nil {
		return err
	}

	drainCtx, cancel := context.WithTimeout(ctx, r.drainTimeout)
	defer cancel()

	ret, err := r.pool.Retire(drainCtx, id)
	if err != nil {
		r.metrics.Lifecycle("delete", err)
		return err
	}

	done := r.resolver.BeginMutation()
	defer done()

	// Committed on its own: if the deletion below fails after hooks or the
	// storage are gone, the half-deleted tenant is never served again and a
	// second Delete finishes the job.
	if t.IsActive {
		err = r.tx.WithinTx(ctx, func(ctx context.Context) error {
			t.Deactivate()
			t.UpdatedAt = time.Now().UTC()
			return r.tenants.Update(ctx, t)
		})
		if err != nil {
			done()
			ret.Abort()
			r.metrics.Lifecycle("delete", err)
			return err
		}
	}

	var domains []tenancy.Domain
	err = r.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if domains, err = r.domains.FindByTenant(ctx, id); err != nil {
			return err
		}
		if err := r.domains.DeleteByTenant(ctx, id); err != nil {
			return err
		}
		if err := r.tenants.Delete(ctx, id); err != nil {
			return err
		}
		for i := len(r.hooks) - 1; i >= 0; i-- {
			if err := r.hooks[i].Deprovision(ctx, t); err != nil {
				return tenancy.ErrProvisioningFailed(err).
					WithDetail("tenant_id", id.String()).
					WithDetail("hook", r.hooks[i].Name())
			}
		}
		// Last step before commit.
		return r.pool.Driver().DestroyHandle(ctx, id)
	})
	done()

	r.metrics.Lifecycle("delete", err)
	if err != nil {
		ret.Abort()
		r.logger.Warn("tenant deletion failed, tenant left deactivated",
			zap.String("tenant_id", id.String()), zap.Error(err))
		r.publish(ctx, tenancy.Change{Op: tenancy.ChangeUpdated, TenantID: id})
		return err
	}
	ret.Complete()

	r.logger.Info("tenant deleted", zap.String("tenant_id", id.String()))
	r.publish(ctx, tenancy.Change{Op: tenancy.ChangeDeleted, TenantID: id})
	for _, d := range domains {
		r.publish(ctx, tenancy.Change{Op: tenancy.ChangeDomainGone, TenantID: id, Domain: d.Domain})
	}
	return nil
}

// Update changes the descriptive fields of a tenant.
func (r *Registry) Update(ctx context.Context, id kernel.TenantID, req tenancy.UpdateTenantRequest) (*tenancy.Tenant, error) {
	return r.mutate(ctx, id, func(t *tenancy.Tenant) error {
		return t.ApplyUpdate(req)
	})
}

// Deactivate disables a tenant without touching its data. Units of work
// already inside it finish normally; new activations fail with TenantInactive.
func (r *Registry) Deactivate(ctx context.Context, id kernel.TenantID) (*tenancy.Tenant, error) {
	return r.mutate(ctx, id, func(t *tenancy.Tenant) error {
		t.Deactivate()
		return nil
	})
}

// Reactivate enables a deactivated tenant.
func (r *Registry) Reactivate(ctx context.Context, id kernel.TenantID) (*tenancy.Tenant, error) {
	return r.mutate(ctx, id, func(t *tenancy.Tenant) error {
		t.Reactivate()
		return nil
	})
}

func (r *Registry) mutate(ctx context.Context, id kernel.TenantID, apply func(*tenancy.Tenant) error) (*tenancy.Tenant, error) {
	if err := scope.EnsureCentral(ctx); err != nil {
		return nil, err
	}

	done := r.resolver.BeginMutation()
	defer done()

	var updated *tenancy.Tenant
	err := r.tx.WithinTx(ctx, func(ctx context.Context) error {
		t, err := r.tenants.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := apply(t); err != nil {
			return err
		}
		t.UpdatedAt = time.Now().UTC()
		if err := r.tenants.Update(ctx, t); err != nil {
			return err
		}
		updated = t
		return nil
	})
	done()

	r.metrics.Lifecycle("update", err)
	if err != nil {
		return nil, err
	}

	r.publish(ctx, tenancy.Change{Op: tenancy.ChangeUpdated, TenantID: id})
	return updated, nil
}

// ============================================================================
// Domains
// ============================================================================

// Domains lists the hostnames of a tenant.
func (r *Registry) Domains(ctx context.Context, id kernel.TenantID) ([]string, error) {
	if _, err := r.tenants.FindByID(ctx, id); err != nil {
		return nil, err
	}
	domains, err := r.domains.FindByTenant(ctx, id)
	if err != nil {
		return nil, err
	}
	return hostnames(domains), nil
}

// AddDomain attaches a hostname to a tenant. A hostname already in use
// anywhere fails with DuplicateKey.
func (r *Registry) AddDomain(ctx context.Context, id kernel.TenantID, host string) (*tenancy.Domain, error) {
	domain, err := tenancy.ParseDomain(host)
	if err != nil {
		return nil, err
	}
	if err := scope.EnsureCentral(ctx); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	d := tenancy.Domain{Domain: domain, TenantID: id, CreatedAt: now, UpdatedAt: now}

	done := r.resolver.BeginMutation()
	defer done()

	err = r.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := r.tenants.FindByID(ctx, id); err != nil {
			return err
		}
		return r.domains.Create(ctx, d)
	})
	done()

	if err != nil {
		return nil, err
	}

	r.publish(ctx, tenancy.Change{Op: tenancy.ChangeDomainAdded, TenantID: id, Domain: domain})
	return &d, nil
}

// RemoveDomain detaches a hostname. The tenant and its storage stay.
func (r *Registry) RemoveDomain(ctx context.Context, host string) error {
	domain, err := tenancy.ParseDomain(host)
	if err != nil {
		return err
	}
	if err := scope.EnsureCentral(ctx); err != nil {
		return err
	}

	done := r.resolver.BeginMutation()
	defer done()

	var owner kernel.TenantID
	err = r.tx.WithinTx(ctx, func(ctx context.Context) error {
		d, err := r.domains.FindByDomain(ctx, domain)
		if err != nil {
			return err
		}
		owner = d.TenantID
		return r.domains.Delete(ctx, domain)
	})
	done()

	if err != nil {
		return err
	}

	r.publish(ctx, tenancy.Change{Op: tenancy.ChangeDomainGone, TenantID: owner, Domain: domain})
	return nil
}

// ReassignDomain moves a hostname to another tenant. Once it returns, no
// resolution in this process yields the previous owner.
func (r *Registry) ReassignDomain(ctx context.Context, host string, id kernel.TenantID) (*tenancy.Domain, error) {
	domain, err := tenancy.ParseDomain(host)
	if err != nil {
		return nil, err
	}
	if err := scope.EnsureCentral(ctx); err != nil {
		return nil, err
	}

	done := r.resolver.BeginMutation()
	defer done()

	var moved *tenancy.Domain
	err = r.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := r.tenants.FindByID(ctx, id); err != nil {
			return err
		}
		if err := r.domains.Reassign(ctx, domain, id); err != nil {
			return err
		}
		d, err := r.domains.FindByDomain(ctx, domain)
		if err != nil {
			return err
		}
		moved = d
		return nil
	})
	done()

	if err != nil {
		return nil, err
	}

	r.publish(ctx, tenancy.Change{Op: tenancy.ChangeDomainMoved, TenantID: id, Domain: domain})
	return moved, nil
}

// publish notifies other replicas. The change is committed already, so a
// failure here is logged and the remote caches fall back to their TTL.
func (r *Registry) publish(ctx context.Context, change tenancy.Change) {
	if r.notifier == nil {
		return
	}
	change.At = time.Now().UTC()
	if err := r.notifier.Publish(context.WithoutCancel(ctx), change); err != nil {
		r.logger.Warn("failed to publish registry change",
			zap.String("op", string(change.Op)),
			zap.String("tenant_id", change.TenantID.String()),
			zap.Error(err))
	}
}

func hostnames(domains []tenancy.Domain) []string {
	out := make([]string, len(domains))
	for i, d := range domains {
		out[i] = d.Domain
	}
	return out
}

// IsProvisioningFailure reports whether err came from storage or a hook.
func IsProvisioningFailure(err error) bool {
	return errors.Is(err, tenancy.ProvisioningFailure)
}
