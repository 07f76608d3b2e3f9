package tenancysrv

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Abraxas-365/multistore/pkg/kernel"
	"github.com/Abraxas-365/multistore/tenancy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// countingDomains cuenta las consultas a la tabla de dominios
type countingDomains struct {
	mu      sync.Mutex
	owners  map[string]kernel.TenantID
	calls   int
	err     error
	onQuery func()
}

func newCountingDomains(owners map[string]kernel.TenantID) *countingDomains {
	return &countingDomains{owners: owners}
}

func (d *countingDomains) FindTenantByDomain(ctx context.Context, host string) (*tenancy.Tenant, error) {
	d.mu.Lock()
	d.calls++
	owner, ok := d.owners[host]
	err, hook := d.err, d.onQuery
	d.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, tenancy.ErrDomainNotFound()
	}
	return &tenancy.Tenant{ID: owner, Name: owner.String(), IsActive: true}, nil
}

func (d *countingDomains) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func (d *countingDomains) move(host string, id kernel.TenantID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.owners[host] = id
}

func (d *countingDomains) FindByDomain(ctx context.Context, host string) (*tenancy.Domain, error) {
	return nil, tenancy.ErrDomainNotFound()
}
func (d *countingDomains) FindByTenant(ctx context.Context, id kernel.TenantID) ([]tenancy.Domain, error) {
	return nil, nil
}
func (d *countingDomains) Create(ctx context.Context, dm tenancy.Domain) error { return nil }
func (d *countingDomains) Reassign(ctx context.Context, host string, id kernel.TenantID) error {
	return nil
}
func (d *countingDomains) Delete(ctx context.Context, host string) error { return nil }
func (d *countingDomains) DeleteByTenant(ctx context.Context, id kernel.TenantID) error {
	return nil
}

func TestResolverCachesHits(t *testing.T) {
	domains := newCountingDomains(map[string]kernel.TenantID{"acme.example": "acme"})
	r := NewResolver(domains, time.Minute, zap.NewNop(), nil)
	ctx := context.Background()

	for _, host := range []string{"acme.example", "ACME.example:8080", "acme.example."} {
		tn, err := r.Resolve(ctx, host)
		require.NoError(t, err, host)
		assert.Equal(t, kernel.TenantID("acme"), tn.ID)
	}
	assert.Equal(t, 1, domains.Calls())
	assert.Equal(t, 1, r.Size())
}

func TestResolverReturnsCopies(t *testing.T) {
	domains := newCountingDomains(map[string]kernel.TenantID{"acme.example": "acme"})
	r := NewResolver(domains, time.Minute, zap.NewNop(), nil)
	ctx := context.Background()

	tn, err := r.Resolve(ctx, "acme.example")
	require.NoError(t, err)
	tn.Name = "mutated"

	again, err := r.Resolve(ctx, "acme.example")
	require.NoError(t, err)
	assert.Equal(t, "acme", again.Name)
}

func TestResolverUnknownHost(t *testing.T) {
	domains := newCountingDomains(map[string]kernel.TenantID{})
	r := NewResolver(domains, time.Minute, zap.NewNop(), nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := r.Resolve(ctx, "other.example")
		assert.ErrorIs(t, err, tenancy.NotFound)
	}
	assert.Equal(t, 1, domains.Calls(), "negative results are cached too")

	_, err := r.Resolve(ctx, "   ")
	assert.ErrorIs(t, err, tenancy.NotFound)
	assert.Equal(t, 1, domains.Calls())
}

func TestResolverDoesNotCacheFailures(t *testing.T) {
	domains := newCountingDomains(map[string]kernel.TenantID{"acme.example": "acme"})
	domains.err = errors.New("connection refused")
	r := NewResolver(domains, time.Minute, zap.NewNop(), nil)
	ctx := context.Background()

	_, err := r.Resolve(ctx, "acme.example")
	require.Error(t, err)
	assert.NotErrorIs(t, err, tenancy.NotFound)
	assert.Equal(t, 0, r.Size())

	domains.mu.Lock()
	domains.err = nil
	domains.mu.Unlock()

	tn, err := r.Resolve(ctx, "acme.example")
	require.NoError(t, err)
	assert.Equal(t, kernel.TenantID("acme"), tn.ID)
}

func TestResolverTTL(t *testing.T) {
	domains := newCountingDomains(map[string]kernel.TenantID{"acme.example": "acme"})
	r := NewResolver(domains, time.Minute, zap.NewNop(), nil)
	ctx := context.Background()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	_, err := r.Resolve(ctx, "acme.example")
	require.NoError(t, err)

	now = now.Add(59 * time.Second)
	_, err = r.Resolve(ctx, "acme.example")
	require.NoError(t, err)
	assert.Equal(t, 1, domains.Calls())

	now = now.Add(2 * time.Second)
	_, err = r.Resolve(ctx, "acme.example")
	require.NoError(t, err)
	assert.Equal(t, 2, domains.Calls())
}

func TestResolverZeroTTLDisablesCache(t *testing.T) {
	domains := newCountingDomains(map[string]kernel.TenantID{"acme.example": "acme"})
	r := NewResolver(domains, 0, zap.NewNop(), nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := r.Resolve(ctx, "acme.example")
		require.NoError(t, err)
	}
	assert.Equal(t, 3, domains.Calls())
	assert.Equal(t, 0, r.Size())
}

func TestResolverBypassesCacheDuringMutation(t *testing.T) {
	domains := newCountingDomains(map[string]kernel.TenantID{"shop.example": "tenant1"})
	r := NewResolver(domains, time.Minute, zap.NewNop(), nil)
	ctx := context.Background()

	tn, err := r.Resolve(ctx, "shop.example")
	require.NoError(t, err)
	assert.Equal(t, kernel.TenantID("tenant1"), tn.ID)

	done := r.BeginMutation()
	domains.move("shop.example", "tenant2")

	// Con la mutación en curso se consulta la tabla y no se llena la caché
	tn, err = r.Resolve(ctx, "shop.example")
	require.NoError(t, err)
	assert.Equal(t, kernel.TenantID("tenant2"), tn.ID)
	assert.Equal(t, 0, r.Size())

	done()
	done()

	tn, err = r.Resolve(ctx, "shop.example")
	require.NoError(t, err)
	assert.Equal(t, kernel.TenantID("tenant2"), tn.ID)
	assert.Equal(t, 1, r.Size())
}

// Una consulta que leyó el dueño anterior antes del commit no puede guardarlo
// después de que la mutación terminó.
func TestResolverRefusesStaleFill(t *testing.T) {
	domains := newCountingDomains(map[string]kernel.TenantID{"shop.example": "tenant1"})
	r := NewResolver(domains, time.Minute, zap.NewNop(), nil)
	ctx := context.Background()

	var once sync.Once
	domains.onQuery = func() {
		once.Do(func() {
			done := r.BeginMutation()
			domains.move("shop.example", "tenant2")
			done()
		})
	}

	tn, err := r.Resolve(ctx, "shop.example")
	require.NoError(t, err)
	assert.Equal(t, kernel.TenantID("tenant1"), tn.ID, "the in-flight read saw the old owner")
	assert.Equal(t, 0, r.Size(), "the stale owner must not be cached")

	tn, err = r.Resolve(ctx, "shop.example")
	require.NoError(t, err)
	assert.Equal(t, kernel.TenantID("tenant2"), tn.ID)
}

func TestResolverInvalidate(t *testing.T) {
	domains := newCountingDomains(map[string]kernel.TenantID{"acme.example": "acme"})
	r := NewResolver(domains, time.Minute, zap.NewNop(), nil)
	ctx := context.Background()

	_, err := r.Resolve(ctx, "acme.example")
	require.NoError(t, err)
	require.Equal(t, 1, r.Size())

	r.HandleChange(tenancy.Change{Op: tenancy.ChangeDomainMoved, TenantID: "beta", Domain: "acme.example", Origin: "replica-2"})
	assert.Equal(t, 0, r.Size())

	_, err = r.Resolve(ctx, "acme.example")
	require.NoError(t, err)
	assert.Equal(t, 2, domains.Calls())
}

func TestResolverBoundsCache(t *testing.T) {
	domains := newCountingDomains(map[string]kernel.TenantID{})
	r := NewResolver(domains, time.Minute, zap.NewNop(), nil)
	r.maxEntries = 2
	ctx := context.Background()

	for _, host := range []string{"a.example", "b.example", "c.example", "d.example"} {
		_, _ = r.Resolve(ctx, host)
		assert.LessOrEqual(t, r.Size(), 2)
	}
}
