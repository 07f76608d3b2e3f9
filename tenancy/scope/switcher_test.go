package scope_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/Abraxas-365/multistore/pkg/kernel"
	"github.com/Abraxas-365/multistore/pkg/telemetry"
	"github.com/Abraxas-365/multistore/tenancy"
	"github.com/Abraxas-365/multistore/tenancy/scope"
	"github.com/Abraxas-365/multistore/tenancy/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memTenants es un registro en memoria para RunByID
type memTenants struct {
	mu      sync.Mutex
	tenants map[kernel.TenantID]*tenancy.Tenant
}

func (m *memTenants) FindByID(ctx context.Context, id kernel.TenantID) (*tenancy.Tenant, error) {
	if err := scope.EnsureCentral(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[id]
	if !ok {
		return nil, tenancy.ErrTenantNotFound()
	}
	return t.Clone(), nil
}

func (m *memTenants) FindAll(ctx context.Context) ([]*tenancy.Tenant, error)    { return nil, nil }
func (m *memTenants) FindActive(ctx context.Context) ([]*tenancy.Tenant, error) { return nil, nil }
func (m *memTenants) Create(ctx context.Context, t *tenancy.Tenant) error       { return nil }
func (m *memTenants) Update(ctx context.Context, t *tenancy.Tenant) error       { return nil }
func (m *memTenants) Delete(ctx context.Context, id kernel.TenantID) error      { return nil }

type fixture struct {
	pool     *storage.Pool
	switcher *scope.Switcher
	tenants  map[kernel.TenantID]*tenancy.Tenant
}

// newFixture crea tiendas con una tabla products en su propio almacenamiento
func newFixture(t *testing.T, ids ...kernel.TenantID) *fixture {
	t.Helper()
	ctx := context.Background()

	driver, err := storage.NewSQLiteDriver(t.TempDir(), "", 4)
	require.NoError(t, err)

	tenants := make(map[kernel.TenantID]*tenancy.Tenant, len(ids))
	for _, id := range ids {
		require.NoError(t, driver.CreateHandle(ctx, id))
		db, err := driver.Connect(ctx, id)
		require.NoError(t, err)
		_, err = db.ExecContext(ctx, `CREATE TABLE products (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL)`)
		require.NoError(t, err)
		require.NoError(t, db.Close())
		tenants[id] = &tenancy.Tenant{ID: id, Name: "Store " + id.String(), IsActive: true}
	}

	pool := storage.NewPool(driver, zap.NewNop())
	t.Cleanup(func() { pool.Close() })

	metrics := telemetry.NewMetrics(prometheus.NewRegistry())
	repo := &memTenants{tenants: tenants}
	return &fixture{
		pool:     pool,
		switcher: scope.NewSwitcher(pool, repo, zap.NewNop(), metrics),
		tenants:  tenants,
	}
}

func insertProduct(ctx context.Context, name string) error {
	db, err := scope.DB(ctx)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `INSERT INTO products (name) VALUES (?)`, name)
	return err
}

func countProducts(ctx context.Context) (int, error) {
	db, err := scope.DB(ctx)
	if err != nil {
		return 0, err
	}
	var n int
	err = db.GetContext(ctx, &n, `SELECT COUNT(*) FROM products`)
	return n, err
}

func TestActivateDeactivateSymmetry(t *testing.T) {
	f := newFixture(t, "acme")
	ctx := scope.Begin(context.Background())

	assert.False(t, scope.IsActive(ctx))
	require.NoError(t, f.switcher.Activate(ctx, f.tenants["acme"]))
	assert.True(t, scope.IsActive(ctx))
	assert.Equal(t, 1, f.pool.Leases("acme"))

	id, err := scope.CurrentID(ctx)
	require.NoError(t, err)
	assert.Equal(t, kernel.TenantID("acme"), id)

	require.NoError(t, f.switcher.Deactivate(ctx))
	assert.False(t, scope.IsActive(ctx))
	assert.Equal(t, 0, f.pool.Leases("acme"))

	// Desactivar en central es un no-op
	require.NoError(t, f.switcher.Deactivate(ctx))
}

func TestActivateTwiceFails(t *testing.T) {
	f := newFixture(t, "tenant1", "tenant2")
	ctx := scope.Begin(context.Background())

	require.NoError(t, f.switcher.Activate(ctx, f.tenants["tenant1"]))
	defer f.switcher.Deactivate(ctx)

	err := f.switcher.Activate(ctx, f.tenants["tenant2"])
	assert.ErrorIs(t, err, tenancy.AlreadyActive)

	err = f.switcher.Activate(ctx, f.tenants["tenant1"])
	assert.ErrorIs(t, err, tenancy.AlreadyActive)

	id, err := scope.CurrentID(ctx)
	require.NoError(t, err)
	assert.Equal(t, kernel.TenantID("tenant1"), id)
}

func TestActivateInactiveTenant(t *testing.T) {
	f := newFixture(t, "acme")
	ctx := scope.Begin(context.Background())

	inactive := f.tenants["acme"].Clone()
	inactive.IsActive = false

	err := f.switcher.Activate(ctx, inactive)
	assert.ErrorIs(t, err, tenancy.TenantInactive)
	assert.False(t, scope.IsActive(ctx))
	assert.Equal(t, 0, f.pool.Leases("acme"))
}

func TestActivateWithoutStorage(t *testing.T) {
	f := newFixture(t)
	ctx := scope.Begin(context.Background())

	err := f.switcher.Activate(ctx, &tenancy.Tenant{ID: "ghost", IsActive: true})
	assert.ErrorIs(t, err, tenancy.NotFound)
	assert.False(t, scope.IsActive(ctx))
}

func TestActivateRequiresUnitOfWork(t *testing.T) {
	f := newFixture(t, "acme")

	err := f.switcher.Activate(context.Background(), f.tenants["acme"])
	assert.ErrorIs(t, err, tenancy.NoActiveContext)
}

func TestNoActiveContextIsStrict(t *testing.T) {
	for name, ctx := range map[string]context.Context{
		"no unit":      context.Background(),
		"central unit": scope.Begin(context.Background()),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := scope.DB(ctx)
			assert.ErrorIs(t, err, tenancy.NoActiveContext)

			_, err = scope.Current(ctx)
			assert.ErrorIs(t, err, tenancy.NoActiveContext)

			_, err = scope.MemoFrom(ctx)
			assert.ErrorIs(t, err, tenancy.NoActiveContext)

			assert.NoError(t, scope.EnsureCentral(ctx))
		})
	}
}

func TestCentralUnreachableFromTenant(t *testing.T) {
	f := newFixture(t, "acme")

	err := f.switcher.Run(context.Background(), f.tenants["acme"], func(ctx context.Context) error {
		return scope.EnsureCentral(ctx)
	})
	assert.ErrorIs(t, err, tenancy.WrongContext)

	err = f.switcher.Run(context.Background(), f.tenants["acme"], func(ctx context.Context) error {
		return f.switcher.RunByID(ctx, "acme", func(context.Context) error { return nil })
	})
	assert.ErrorIs(t, err, tenancy.WrongContext)
}

func TestCurrentReturnsCopy(t *testing.T) {
	f := newFixture(t, "acme")

	err := f.switcher.Run(context.Background(), f.tenants["acme"], func(ctx context.Context) error {
		cur, err := scope.Current(ctx)
		require.NoError(t, err)
		cur.Name = "mutated"

		again, err := scope.Current(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Store acme", again.Name)
		return nil
	})
	require.NoError(t, err)
}

func TestRunDeactivatesOnError(t *testing.T) {
	f := newFixture(t, "acme")
	ctx := scope.Begin(context.Background())
	boom := errors.New("boom")

	err := f.switcher.Run(ctx, f.tenants["acme"], func(ctx context.Context) error {
		assert.True(t, scope.IsActive(ctx))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, scope.IsActive(ctx))
	assert.Equal(t, 0, f.pool.Leases("acme"))
}

func TestRunDeactivatesOnPanic(t *testing.T) {
	f := newFixture(t, "acme")
	ctx := scope.Begin(context.Background())

	func() {
		defer func() {
			assert.Equal(t, "kaboom", recover())
		}()
		_ = f.switcher.Run(ctx, f.tenants["acme"], func(ctx context.Context) error {
			panic("kaboom")
		})
	}()

	assert.False(t, scope.IsActive(ctx))
	assert.Equal(t, 0, f.pool.Leases("acme"))
}

func TestRunDeactivatesOnCancel(t *testing.T) {
	f := newFixture(t, "acme")
	ctx, cancel := context.WithCancel(scope.Begin(context.Background()))

	err := f.switcher.Run(ctx, f.tenants["acme"], func(ctx context.Context) error {
		cancel()
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, scope.IsActive(ctx))
	assert.Equal(t, 0, f.pool.Leases("acme"))

	// Con el contexto ya cancelado no se activa
	err = f.switcher.Activate(ctx, f.tenants["acme"])
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, scope.IsActive(ctx))
}

func TestRunByID(t *testing.T) {
	f := newFixture(t, "acme")

	var seen kernel.TenantID
	err := f.switcher.RunByID(context.Background(), "acme", func(ctx context.Context) error {
		var err error
		seen, err = scope.CurrentID(ctx)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, kernel.TenantID("acme"), seen)

	err = f.switcher.RunByID(context.Background(), "ghost", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, tenancy.NotFound)
}

func TestMemoDoesNotSurviveDeactivation(t *testing.T) {
	f := newFixture(t, "tenant1", "tenant2")
	ctx := scope.Begin(context.Background())

	err := f.switcher.Run(ctx, f.tenants["tenant1"], func(ctx context.Context) error {
		memo, err := scope.MemoFrom(ctx)
		require.NoError(t, err)
		memo.Put("product:1", "tenant1 product")
		assert.Equal(t, 1, memo.Len())
		return nil
	})
	require.NoError(t, err)

	for _, id := range []kernel.TenantID{"tenant2", "tenant1"} {
		err = f.switcher.Run(ctx, f.tenants[id], func(ctx context.Context) error {
			memo, err := scope.MemoFrom(ctx)
			require.NoError(t, err)
			_, ok := memo.Get("product:1")
			assert.False(t, ok, "memo leaked into %s", id)
			return nil
		})
		require.NoError(t, err)
	}
}

func TestSwapRestoresPreviousContext(t *testing.T) {
	f := newFixture(t, "tenant1", "tenant2")
	ctx := scope.Begin(context.Background())

	require.NoError(t, f.switcher.Activate(ctx, f.tenants["tenant1"]))
	defer f.switcher.Deactivate(ctx)

	err := f.switcher.Swap(ctx, f.tenants["tenant2"], func(ctx context.Context) error {
		id, err := scope.CurrentID(ctx)
		require.NoError(t, err)
		assert.Equal(t, kernel.TenantID("tenant2"), id)
		return insertProduct(ctx, "only in tenant2")
	})
	require.NoError(t, err)

	id, err := scope.CurrentID(ctx)
	require.NoError(t, err)
	assert.Equal(t, kernel.TenantID("tenant1"), id)

	n, err := countProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, f.pool.Leases("tenant2"))
}

func TestSwapFromCentral(t *testing.T) {
	f := newFixture(t, "acme")
	ctx := scope.Begin(context.Background())

	err := f.switcher.Swap(ctx, f.tenants["acme"], func(ctx context.Context) error {
		return errors.New("fails inside")
	})
	assert.Error(t, err)
	assert.False(t, scope.IsActive(ctx))
}

func TestResumeCentralRefusesLiveBinding(t *testing.T) {
	f := newFixture(t, "acme")
	ctx := scope.Begin(context.Background())

	sp, err := f.switcher.Suspend(ctx)
	require.NoError(t, err)
	assert.Nil(t, sp.Tenant())

	require.NoError(t, f.switcher.Activate(ctx, f.tenants["acme"]))

	// Volver a central con una tienda activa no puede dejarla colgada
	err = f.switcher.Resume(ctx, sp)
	assert.ErrorIs(t, err, tenancy.AlreadyActive)
	id, err := scope.CurrentID(ctx)
	require.NoError(t, err)
	assert.Equal(t, kernel.TenantID("acme"), id)

	require.NoError(t, f.switcher.Deactivate(ctx))
	require.NoError(t, f.switcher.Resume(ctx, sp))
	assert.False(t, scope.IsActive(ctx))
	assert.Equal(t, 0, f.pool.Leases("acme"))
}

func TestSuspendDiscard(t *testing.T) {
	f := newFixture(t, "acme")
	ctx := scope.Begin(context.Background())

	require.NoError(t, f.switcher.Activate(ctx, f.tenants["acme"]))

	sp, err := f.switcher.Suspend(ctx)
	require.NoError(t, err)
	assert.False(t, scope.IsActive(ctx))
	assert.Equal(t, kernel.TenantID("acme"), sp.Tenant().ID)
	assert.Equal(t, 1, f.pool.Leases("acme"))

	f.switcher.Discard(sp)
	assert.Equal(t, 0, f.pool.Leases("acme"))

	// Resume después de Discard no revive la sesión
	require.NoError(t, f.switcher.Resume(ctx, sp))
	assert.False(t, scope.IsActive(ctx))
}

func TestRunForEach(t *testing.T) {
	f := newFixture(t, "tenant1", "tenant2", "tenant3")
	f.tenants["tenant2"].IsActive = false
	list := []*tenancy.Tenant{f.tenants["tenant1"], f.tenants["tenant2"], f.tenants["tenant3"]}

	var visited []kernel.TenantID
	err := f.switcher.RunForEach(context.Background(), list, func(ctx context.Context, tn *tenancy.Tenant) error {
		id, err := scope.CurrentID(ctx)
		require.NoError(t, err)
		assert.Equal(t, tn.ID, id)
		visited = append(visited, id)
		return nil
	}, scope.SkipInactive())
	require.NoError(t, err)
	assert.Equal(t, []kernel.TenantID{"tenant1", "tenant3"}, visited)

	// Sin SkipInactive la tienda deshabilitada corta el recorrido
	visited = nil
	err = f.switcher.RunForEach(context.Background(), list, func(ctx context.Context, tn *tenancy.Tenant) error {
		visited = append(visited, tn.ID)
		return nil
	})
	assert.ErrorIs(t, err, tenancy.TenantInactive)
	assert.Equal(t, []kernel.TenantID{"tenant1"}, visited)

	// ContinueOnError junta los errores y recorre todas
	visited = nil
	err = f.switcher.RunForEach(context.Background(), list, func(ctx context.Context, tn *tenancy.Tenant) error {
		visited = append(visited, tn.ID)
		return fmt.Errorf("failed in %s", tn.ID)
	}, scope.ContinueOnError())
	require.Error(t, err)
	assert.ErrorIs(t, err, tenancy.TenantInactive)
	assert.Contains(t, err.Error(), "failed in tenant1")
	assert.Contains(t, err.Error(), "failed in tenant3")
	assert.Equal(t, []kernel.TenantID{"tenant1", "tenant3"}, visited)
}

func TestRunForEachFromTenantContext(t *testing.T) {
	f := newFixture(t, "acme")

	err := f.switcher.Run(context.Background(), f.tenants["acme"], func(ctx context.Context) error {
		return f.switcher.RunForEach(ctx, []*tenancy.Tenant{f.tenants["acme"]},
			func(context.Context, *tenancy.Tenant) error { return nil })
	})
	assert.ErrorIs(t, err, tenancy.WrongContext)
}

// Dos unidades de trabajo concurrentes, cada una en su tienda, nunca ven los
// datos de la otra.
func TestConcurrentUnitsAreIsolated(t *testing.T) {
	f := newFixture(t, "tenant1", "tenant2")

	writes := map[kernel.TenantID]int{"tenant1": 1, "tenant2": 2}
	start := make(chan struct{})
	var wg sync.WaitGroup
	errs := make(chan error, len(writes))

	for id, n := range writes {
		wg.Add(1)
		go func(id kernel.TenantID, n int) {
			defer wg.Done()
			<-start
			errs <- f.switcher.Run(context.Background(), f.tenants[id], func(ctx context.Context) error {
				for i := 0; i < n; i++ {
					if err := insertProduct(ctx, fmt.Sprintf("%s-%d", id, i)); err != nil {
						return err
					}
				}
				return nil
			})
		}(id, n)
	}
	close(start)
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	for id, want := range writes {
		err := f.switcher.Run(context.Background(), f.tenants[id], func(ctx context.Context) error {
			n, err := countProducts(ctx)
			if err != nil {
				return err
			}
			assert.Equal(t, want, n, "products in %s", id)
			return nil
		})
		require.NoError(t, err)
	}
}

// Muchas unidades de trabajo intercaladas sobre las mismas tiendas
func TestInterleavedUnitsKeepTheirTenant(t *testing.T) {
	f := newFixture(t, "tenant1", "tenant2")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		id := kernel.TenantID("tenant1")
		if i%2 == 1 {
			id = "tenant2"
		}
		wg.Add(1)
		go func(id kernel.TenantID) {
			defer wg.Done()
			err := f.switcher.Run(context.Background(), f.tenants[id], func(ctx context.Context) error {
				for j := 0; j < 5; j++ {
					cur, err := scope.CurrentID(ctx)
					if err != nil {
						return err
					}
					if cur != id {
						return fmt.Errorf("unit bound to %s saw %s", id, cur)
					}
				}
				return nil
			})
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 0, f.pool.Leases("tenant1"))
	assert.Equal(t, 0, f.pool.Leases("tenant2"))
}
