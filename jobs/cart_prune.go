package jobs

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Abraxas-365/multistore/tenancy"
	"github.com/Abraxas-365/multistore/tenancy/scope"
	"go.uber.org/zap"
)

// CartPruneJobName identifies the guest cart cleanup job
const CartPruneJobName = "prune_guest_carts"

// TenantLister lists the tenants a job visits
type TenantLister interface {
	ListActive(ctx context.Context) ([]*tenancy.Tenant, error)
}

// TenantRunner runs fn inside each tenant
type TenantRunner interface {
	RunForEach(ctx context.Context, tenants []*tenancy.Tenant, fn func(ctx context.Context, t *tenancy.Tenant) error, opts ...scope.ForEachOption) error
}

// CartPruner deletes idle guest carts in the active tenant
type CartPruner interface {
	PruneGuestCarts(ctx context.Context, maxAge time.Duration) (int64, error)
}

// NewCartPruneJob builds the job that removes guest carts idle for longer
// than maxAge in every active tenant. One failing tenant does not stop the rest.
func NewCartPruneJob(spec string, maxAge time.Duration, tenants TenantLister, runner TenantRunner, carts CartPruner, logger *zap.Logger) Job {
	return Job{
		Name: CartPruneJobName,
		Spec: spec,
		Run: func(ctx context.Context) error {
			active, err := tenants.ListActive(ctx)
			if err != nil {
				return err
			}

			var total atomic.Int64
			err = runner.RunForEach(ctx, active, func(ctx context.Context, t *tenancy.Tenant) error {
				n, err := carts.PruneGuestCarts(ctx, maxAge)
				if err != nil {
					return err
				}
				if n > 0 {
					logger.Info("guest carts pruned",
						zap.String("tenant_id", t.ID.String()),
						zap.Int64("carts", n))
				}
				total.Add(n)
				return nil
			}, scope.ContinueOnError(), scope.SkipInactive())

			logger.Info("cart prune run complete",
				zap.Int("tenants", len(active)),
				zap.Int64("carts", total.Load()))
			return err
		},
	}
}
