package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Abraxas-365/multistore/tenancy/tenancyapi"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var startTime = time.Now()

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve()
		},
	}
}

func (a *app) serve() error {
	cfg, log := a.cfg, a.logger
	log.Info("starting server", zap.String("environment", cfg.Server.Environment))

	c, err := a.container()
	if err != nil {
		return err
	}
	defer c.Cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := c.SubscribeChanges(ctx); err != nil {
		return err
	}
	if cfg.Jobs.Enabled {
		c.Scheduler.Start()
	}

	app := fiber.New(fiber.Config{
		AppName:      "Multistore API",
		ServerHeader: "Multistore",
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		ErrorHandler: tenancyapi.ErrorHandler(),
	})

	setupMiddleware(app, c)
	setupRoutes(app, c)

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		log.Info("server listening", zap.String("addr", addr))
		errCh <- app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("error during server shutdown", zap.Error(err))
	}
	log.Info("server stopped gracefully")
	return nil
}

// setupMiddleware configura los middleware globales
func setupMiddleware(app *fiber.App, c *Container) {
	cfg := c.Config

	app.Use(requestid.New())

	if cfg.Server.Environment != "test" {
		app.Use(logger.New(logger.Config{
			Format: "[${time}] ${status} - ${method} ${host}${path} - ${latency}\n",
		}))
	}

	app.Use(recover.New())

	app.Use(cors.New(cors.Config{
		AllowOrigins:     getCorsOrigins(c),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
		AllowCredentials: true,
	}))

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
}

// setupRoutes registra las rutas. El orden importa: las rutas centrales van
// antes del grupo de tienda, que intercepta todo lo demás.
func setupRoutes(app *fiber.App, c *Container) {
	tm := c.TenancyMiddleware
	am := c.AuthMiddleware

	app.Get("/health", healthCheckHandler(c))
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(c.Prometheus, promhttp.HandlerOpts{})))

	// =================================================================
	// CENTRAL ROUTES
	// =================================================================
	app.Get("/", tm.CentralOnly(), func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"message": "Multistore API",
			"status":  "running",
			"uptime":  time.Since(startTime).String(),
			"hooks":   c.Registry.Hooks(),
		})
	})

	admin := app.Group("/admin", tm.CentralOnly(), am.Authenticate(), am.RequirePlatformAdmin())
	c.TenantHandlers.RegisterRoutes(admin)

	// =================================================================
	// TENANT ROUTES
	// =================================================================
	store := app.Group("/", tm.PreventCentralDomains(), tm.InitializeByDomain(), am.Optional(), tm.RequireMembership())
	c.ShopHandlers.RegisterRoutes(store, am)

	// =================================================================
	// 404 HANDLER
	// =================================================================
	app.Use(func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Route not found",
			"path":  ctx.Path(),
		})
	})
}

// healthCheckHandler handler de health check
func healthCheckHandler(c *Container) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		health := c.HealthCheck(ctx.UserContext())

		allHealthy := true
		for _, healthy := range health {
			if !healthy {
				allHealthy = false
				break
			}
		}

		status := "healthy"
		statusCode := fiber.StatusOK
		if !allHealthy {
			status = "degraded"
			statusCode = fiber.StatusServiceUnavailable
		}

		return ctx.Status(statusCode).JSON(fiber.Map{
			"status":          status,
			"timestamp":       time.Now(),
			"uptime":          time.Since(startTime).String(),
			"services":        health,
			"open_tenants":    len(c.Pool.Open()),
			"resolver_cached": c.Resolver.Size(),
		})
	}
}

// getCorsOrigins retorna los orígenes permitidos para CORS
func getCorsOrigins(c *Container) string {
	if origins := c.Config.Server.CorsOrigins; origins != "" {
		return origins
	}
	if c.Config.Server.Environment == "production" {
		return "https://yourdomain.com"
	}
	// Evitar wildcard cuando AllowCredentials=true
	return "http://localhost:3000,http://127.0.0.1:3000,http://localhost:5173,http://127.0.0.1:5173"
}
