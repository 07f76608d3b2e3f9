package main

import (
	"context"
	"time"

	"github.com/Abraxas-365/multistore/iam/auth"
	"github.com/Abraxas-365/multistore/iam/auth/authinfra"
	"github.com/Abraxas-365/multistore/jobs"
	"github.com/Abraxas-365/multistore/pkg/config"
	"github.com/Abraxas-365/multistore/pkg/database"
	"github.com/Abraxas-365/multistore/pkg/telemetry"
	"github.com/Abraxas-365/multistore/shop"
	"github.com/Abraxas-365/multistore/shop/shopapi"
	"github.com/Abraxas-365/multistore/shop/shopinfra"
	"github.com/Abraxas-365/multistore/shop/shopsrv"
	"github.com/Abraxas-365/multistore/tenancy"
	"github.com/Abraxas-365/multistore/tenancy/scope"
	"github.com/Abraxas-365/multistore/tenancy/storage"
	"github.com/Abraxas-365/multistore/tenancy/tenancyapi"
	"github.com/Abraxas-365/multistore/tenancy/tenancyinfra"
	"github.com/Abraxas-365/multistore/tenancy/tenancysrv"
	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// Container contains all application dependencies
type Container struct {
	// =================================================================
	// CONFIGURATION & INFRASTRUCTURE
	// =================================================================
	Config      *config.Config
	Logger      *zap.Logger
	DB          *sqlx.DB
	RedisClient *redis.Client
	Prometheus  *prometheus.Registry
	Metrics     *telemetry.Metrics

	// =================================================================
	// TENANCY
	// =================================================================
	Pool       *storage.Pool
	TenantRepo tenancy.TenantRepository
	DomainRepo tenancy.DomainRepository
	Switcher   *scope.Switcher
	Resolver   *tenancysrv.Resolver
	Registry   *tenancysrv.Registry
	Notifier   *tenancyinfra.RedisNotifier

	TenancyMiddleware *tenancyapi.Middleware
	TenantHandlers    *tenancyapi.TenantHandlers

	// =================================================================
	// AUTH
	// =================================================================
	PasswordService auth.PasswordService
	TokenService    auth.TokenService
	AuthMiddleware  *auth.AuthMiddleware

	// =================================================================
	// SHOP
	// =================================================================
	CatalogRepo  shop.CatalogRepository
	CustomerRepo shop.CustomerRepository
	CartRepo     shop.CartRepository
	OrderRepo    shop.OrderRepository
	StatsRepo    shop.StatsRepository
	ShopTx       shop.Transactor

	CatalogService  *shopsrv.CatalogService
	CustomerService *shopsrv.CustomerService
	CartService     *shopsrv.CartService
	OrderService    *shopsrv.OrderService
	StatsService    *shopsrv.StatsService
	SchemaHook      *shopsrv.SchemaHook
	SeedHook        *shopsrv.SeedHook
	ShopHandlers    *shopapi.ShopHandlers

	// =================================================================
	// JOBS
	// =================================================================
	Scheduler *jobs.Scheduler
}

// NewContainer connects the central database and wires every component
func NewContainer(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	c := &Container{
		Config:     cfg,
		Logger:     logger,
		Prometheus: prometheus.NewRegistry(),
	}
	c.Prometheus.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	c.Metrics = telemetry.NewMetrics(c.Prometheus)

	if err := c.initInfrastructure(); err != nil {
		c.Cleanup()
		return nil, err
	}
	if err := c.initTenancy(); err != nil {
		c.Cleanup()
		return nil, err
	}
	c.initAuth()
	c.initShop()
	c.initRegistry()
	if err := c.initJobs(); err != nil {
		c.Cleanup()
		return nil, err
	}

	return c, nil
}

func (c *Container) initInfrastructure() error {
	db, err := database.NewCentralDB(c.Config.Database)
	if err != nil {
		return err
	}
	c.DB = db

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := tenancyinfra.MigrateCentral(ctx, db); err != nil {
		return err
	}
	c.Logger.Info("central database ready", zap.String("driver", c.Config.Database.Driver))

	if c.Config.Redis.Enabled {
		client, err := database.NewRedisClient(c.Config.Redis)
		if err != nil {
			return err
		}
		c.RedisClient = client
		c.Notifier = tenancyinfra.NewRedisNotifier(client, c.Config.Redis.Channel, c.Logger)
		c.Logger.Info("redis connected", zap.String("addr", c.Config.Redis.GetAddr()))
	}
	return nil
}

func (c *Container) initTenancy() error {
	driver, err := c.tenantDriver()
	if err != nil {
		return err
	}

	c.Pool = storage.NewPool(driver, c.Logger)
	c.TenantRepo = tenancyinfra.NewSQLTenantRepository(c.DB)
	c.DomainRepo = tenancyinfra.NewSQLDomainRepository(c.DB)
	c.Switcher = scope.NewSwitcher(c.Pool, c.TenantRepo, c.Logger, c.Metrics)
	c.Resolver = tenancysrv.NewResolver(c.DomainRepo, c.Config.Tenancy.ResolverCacheTTL, c.Logger, c.Metrics)
	c.TenancyMiddleware = tenancyapi.NewMiddleware(c.Resolver, c.Switcher, c.isCentralDomain, c.Logger)
	return nil
}

func (c *Container) tenantDriver() (storage.Driver, error) {
	db := c.Config.Database
	switch db.Driver {
	case "postgres":
		return storage.NewPostgresSchemaDriver(c.DB, db.GetDSN(), db.TenantPrefix, db.TenantMaxConns), nil
	default:
		return storage.NewSQLiteDriver(db.TenantDir, db.TenantPrefix, db.TenantMaxConns)
	}
}

func (c *Container) isCentralDomain(host string) bool {
	return c.Config.Server.IsCentralDomain(tenancy.NormalizeHost(host))
}

func (c *Container) initAuth() {
	c.PasswordService = authinfra.NewBcryptPasswordService()
	c.TokenService = auth.NewJWTService(c.Config.Auth.JWT)
	c.AuthMiddleware = auth.NewAuthMiddleware(c.TokenService)
}

func (c *Container) initShop() {
	c.CatalogRepo = shopinfra.NewSQLCatalogRepository()
	c.CustomerRepo = shopinfra.NewSQLCustomerRepository()
	c.CartRepo = shopinfra.NewSQLCartRepository()
	c.OrderRepo = shopinfra.NewSQLOrderRepository()
	c.StatsRepo = shopinfra.NewSQLStatsRepository()
	c.ShopTx = shopinfra.NewTenantTransactor()

	c.CatalogService = shopsrv.NewCatalogService(c.CatalogRepo)
	c.CustomerService = shopsrv.NewCustomerService(c.CustomerRepo, c.PasswordService)
	c.CartService = shopsrv.NewCartService(c.CartRepo, c.CatalogRepo, c.ShopTx, c.Logger)
	c.OrderService = shopsrv.NewOrderService(c.OrderRepo, c.CartService, c.CatalogRepo, c.ShopTx, c.Logger)
	c.StatsService = shopsrv.NewStatsService(c.StatsRepo)
	c.SchemaHook = shopsrv.NewSchemaHook(c.Logger)
	c.SeedHook = shopsrv.NewSeedHook(c.CatalogRepo, c.CustomerRepo, c.PasswordService, c.ShopTx, c.Logger)

	c.ShopHandlers = shopapi.NewShopHandlers(c.CatalogService, c.CartService, c.OrderService, c.StatsService)
}

// initRegistry registers the lifecycle hooks in provisioning order
func (c *Container) initRegistry() {
	hooks := []tenancy.Hook{c.SchemaHook}
	if c.Config.Tenancy.SeedOnCreate {
		hooks = append(hooks, c.SeedHook)
	}
	if c.Config.Assets.Enabled() {
		client := tenancyinfra.NewS3Client(c.Config.Assets)
		hooks = append(hooks, tenancyinfra.NewAssetsHook(client, c.Config.Assets.Bucket, c.Logger))
	}

	opts := []tenancysrv.RegistryOption{
		tenancysrv.WithHooks(hooks...),
		tenancysrv.WithDrainTimeout(c.Config.Tenancy.DrainTimeout),
	}
	if c.Notifier != nil {
		opts = append(opts, tenancysrv.WithNotifier(c.Notifier))
	}

	c.Registry = tenancysrv.NewRegistry(
		c.TenantRepo, c.DomainRepo, tenancyinfra.NewSQLTransactor(c.DB),
		c.Pool, c.Switcher, c.Resolver, c.Logger, c.Metrics, opts...,
	)
	c.TenantHandlers = tenancyapi.NewTenantHandlers(c.Registry)
}

func (c *Container) initJobs() error {
	c.Scheduler = jobs.NewScheduler(c.Logger, c.Metrics)
	return c.Scheduler.Register(jobs.NewCartPruneJob(
		c.Config.Jobs.CartPruneSchedule,
		c.Config.Jobs.CartMaxAge,
		c.Registry, c.Switcher, c.CartService, c.Logger,
	))
}

// SubscribeChanges invalidates the resolver cache on changes made by other
// replicas or by the CLI
func (c *Container) SubscribeChanges(ctx context.Context) error {
	if c.Notifier == nil {
		return nil
	}
	return c.Notifier.Subscribe(ctx, c.Resolver.HandleChange)
}

// HealthCheck verifica el estado de las dependencias
func (c *Container) HealthCheck(ctx context.Context) map[string]bool {
	health := map[string]bool{
		"database": c.DB != nil && c.DB.PingContext(ctx) == nil,
	}
	if c.RedisClient != nil {
		health["redis"] = c.RedisClient.Ping(ctx).Err() == nil
	}
	return health
}

// Cleanup cierra las conexiones abiertas
func (c *Container) Cleanup() {
	if c.Scheduler != nil {
		c.Scheduler.Stop()
	}
	if c.Pool != nil {
		if err := c.Pool.Close(); err != nil {
			c.Logger.Error("failed to close tenant pool", zap.Error(err))
		}
	}
	if c.RedisClient != nil {
		if err := database.CloseRedis(c.RedisClient); err != nil {
			c.Logger.Error("failed to close redis", zap.Error(err))
		}
	}
	if c.DB != nil {
		if err := database.CloseDB(c.DB); err != nil {
			c.Logger.Error("failed to close database", zap.Error(err))
		}
	}
}
