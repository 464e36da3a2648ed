package http

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/gatechat/allowlist-api/internal/config"
	"github.com/gatechat/allowlist-api/internal/http/handlers"
	"github.com/gatechat/allowlist-api/internal/middleware"
	"github.com/gatechat/allowlist-api/internal/rbac"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	allowlistHandler *handlers.AllowlistHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")
	api.Use(middleware.RateLimitMiddleware(rdb, cfg.RateLimitRequests, cfg.RateLimitWindow))

	// Admin allowlist (staff only)
	admin := api.Group("/admin", middleware.AuthMiddleware(cfg, log))

	admin.Get("/allowlist",
		middleware.RequirePermission(rbac.PermListAllowlist), allowlistHandler.List)
	admin.Post("/allowlist",
		middleware.RequirePermission(rbac.PermManageAllowlist), allowlistHandler.Create)
	admin.Patch("/allowlist/:email",
		middleware.RequirePermission(rbac.PermManageAllowlist), allowlistHandler.Update)
	admin.Post("/allowlist/import",
		middleware.RequirePermission(rbac.PermImportAllowlist), allowlistHandler.Import)
	admin.Get("/allowlist/:email/audit",
		middleware.RequirePermission(rbac.PermViewAuditFeed), allowlistHandler.AuditHistory)

	// Live audit feed
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}
