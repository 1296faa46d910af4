package router

import (
	"context"
	"time"

	"stockreserve/internal/config"
	"stockreserve/internal/handler"
	"stockreserve/internal/infra"
	"stockreserve/internal/middleware"
	"stockreserve/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Deps carries what the HTTP layer needs. DB, Redis and Breaker are only
// used by /health and may be nil.
type Deps struct {
	Service  service.ReservationService
	DB       *gorm.DB
	Redis    *redis.Client
	Breaker  *infra.CircuitBreaker
	Gatherer prometheus.Gatherer
}

// New returns a configured Gin engine. ctx bounds background goroutines
// owned by middleware (rate limiter cleanup).
func New(ctx context.Context, cfg *config.Config, d Deps) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.AllowedOrigins()))
	r.Use(middleware.ErrorHandler())

	stockH := handler.NewStockHandler(d.Service)
	reservationsH := handler.NewReservationHandler(d.Service)

	// ── Public ───────────────────────────────────────────────────────────────
	r.GET("/health", handler.Health(d.DB, d.Redis, d.Breaker))
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	// ── v1 ───────────────────────────────────────────────────────────────────
	v1 := r.Group("/v1")
	authEnabled := cfg.JWTSecret != ""
	if authEnabled {
		v1.Use(middleware.JWTAuth(cfg.JWTSecret))
	} else {
		log.Warn().Msg("router: JWT_SECRET empty, /v1 is unauthenticated")
	}
	if cfg.RateLimitPerMinute > 0 {
		v1.Use(middleware.RateLimiter(ctx, cfg.RateLimitPerMinute, time.Minute))
	}

	roles := func(rs ...string) gin.HandlerFunc {
		if !authEnabled {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RequireRole(rs...)
	}
	callers := roles(middleware.RoleOrderService, middleware.RoleAdmin)
	admins := roles(middleware.RoleAdmin)

	stock := v1.Group("/stock")
	{
		stock.GET("", callers, stockH.GetStocks)
		stock.GET("/:sku", callers, stockH.GetStock)
		stock.GET("/:sku/movements", admins, stockH.ListMovements)
		stock.POST("", admins, stockH.LoadStock)
	}

	reservations := v1.Group("/reservations", callers)
	{
		reservations.POST("", reservationsH.Reserve)
		reservations.POST("/confirm", reservationsH.Confirm)
		reservations.POST("/cancel", reservationsH.Cancel)
		reservations.GET("", reservationsH.List)
		reservations.GET("/:id", reservationsH.Get)
	}

	// ── Notification DLQ (queue mode) ────────────────────────────────────────
	if d.Redis != nil {
		notificationsH := handler.NewNotificationsHandler(d.Redis)
		dlq := v1.Group("/notifications/dlq", admins)
		{
			dlq.GET("", notificationsH.DLQStatus)
			dlq.POST("/replay", notificationsH.Replay)
		}
	}

	return r
}
