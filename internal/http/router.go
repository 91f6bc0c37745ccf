// Package httpapi wires the HTTP transport (Gin) to the ordering and stock
// services, middleware, route handlers and the realtime hub. It owns the
// cross-cutting concerns: tracing, correlation IDs, access logging with
// redaction, panic recovery, metrics, idempotency, rate limiting, CORS,
// compression and security headers.
package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/Fredcx/ezmenu/internal/config"
	"github.com/Fredcx/ezmenu/internal/http/handlers"
	"github.com/Fredcx/ezmenu/internal/http/middleware"
	"github.com/Fredcx/ezmenu/internal/realtime"
	"github.com/Fredcx/ezmenu/internal/repo"
	"github.com/Fredcx/ezmenu/internal/services"
)

// Services is the wired application layer. The same instances back the
// HTTP handlers and the background jobs started by main, so keyed locks
// are shared between them.
type Services struct {
	Ledger       *services.LedgerService
	Recipes      *services.RecipeService
	Availability *services.AvailabilityService
	Deductions   *services.DeductionService
	Sessions     *services.SessionService
	Kitchen      *services.KitchenService
	Analytics    *services.AnalyticsService
}

// NewServices builds the services over db. Change notifications go to n.
func NewServices(db *gorm.DB, n services.Notifier, cfg config.Config) *Services {
	avail := &services.AvailabilityService{DB: db}

	ledger := services.NewLedgerService(db, cfg.LedgerMode, n)
	ledger.Availability = avail

	ded := &services.DeductionService{DB: db, Ledger: ledger}

	sessions := services.NewSessionService(db, ded, n, cfg.RoundLimit, cfg.CartCapMode)
	if cfg.IdempotencyTTL > 0 {
		sessions.IdempotencyTTL = cfg.IdempotencyTTL
	}

	return &Services{
		Ledger:       ledger,
		Recipes:      &services.RecipeService{DB: db},
		Availability: avail,
		Deductions:   ded,
		Sessions:     sessions,
		Kitchen:      &services.KitchenService{DB: db, Notifier: n},
		Analytics: &services.AnalyticsService{
			DB:       db,
			Location: cfg.ReportLocation,
			MaxDays:  cfg.AnalyticsMaxDays,
		},
	}
}

// RegisterRoutes attaches middleware and endpoints to r.
//
// Middleware order matters:
//  1. OpenTelemetry (health and metrics scrapes are not traced)
//  2. RequestID, then ClientIdentity so the access log can carry both
//  3. AccessLog with redaction, then Recovery
//  4. Body size limit and Prometheus metrics
//  5. Idempotency validator before the rate limiter so replays bypass it
//  6. CORS, compression (never on websocket upgrades), security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, hub *realtime.Hub, svc *Services, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName, otelgin.WithFilter(func(req *http.Request) bool {
		return req.URL.Path != "/health" && req.URL.Path != "/metrics"
	})))
	r.Use(middleware.RequestID())
	r.Use(middleware.ClientIdentity())
	r.Use(middleware.AccessLog(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(1 << 20))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 200},
		func(ctx context.Context, clientID, tableID, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, clientID, tableID, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByClientOrIP())
	r.Use(rl.Handler())

	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/ws/", "/metrics"})))
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Realtime: one topic per table plus the stock feed.
	r.GET("/ws/tables/:tableId", func(c *gin.Context) {
		hub.ServeWS(c, services.TableTopic(c.Param("tableId")))
	})
	r.GET("/ws/stock", func(c *gin.Context) { hub.ServeWS(c, services.StockTopic) })

	h := handlers.New(handlers.Deps{
		Ledger:       svc.Ledger,
		Recipes:      svc.Recipes,
		Availability: svc.Availability,
		Sessions:     svc.Sessions,
		Kitchen:      svc.Kitchen,
		Analytics:    svc.Analytics,
		Deductions:   svc.Deductions,
	})

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		// Ingredient ledger
		api.GET("/ingredients", h.ListIngredients)
		api.POST("/ingredients", h.CreateIngredient)
		api.GET("/ingredients/low-stock", h.ListLowStock)
		api.GET("/ingredients/:id", h.GetIngredient)
		api.POST("/ingredients/:id/adjust", h.AdjustIngredient)
		api.PUT("/ingredients/:id/quantity", h.SetIngredientQuantity)
		api.PUT("/ingredients/:id/min-threshold", h.SetIngredientMinThreshold)
		api.PUT("/ingredients/:id/daily-average", h.SetIngredientDailyAverage)

		// Recipes and availability
		api.GET("/recipes/:itemId", h.GetRecipe)
		api.PUT("/recipes/:itemId", h.ReplaceRecipe)
		api.GET("/menu/availability", h.ListAvailability)
		api.GET("/menu/:itemId/availability", h.GetAvailability)

		// Table sessions and cart
		api.POST("/tables/:tableId/session", h.StartSession)
		api.GET("/tables/:tableId/session", h.GetSession)
		api.DELETE("/tables/:tableId/session", h.CloseSession)
		api.GET("/tables/:tableId/cart", h.GetCart)
		api.POST("/tables/:tableId/cart", h.AddToCart)
		api.PUT("/tables/:tableId/cart", h.UpdateCartQuantity)
		api.DELETE("/tables/:tableId/cart", h.ClearCart)
		api.DELETE("/tables/:tableId/cart/lines", h.RemoveCartLine)
		api.POST("/tables/:tableId/send", h.SendOrder)
		api.POST("/tables/:tableId/direct-orders", h.CreateDirectOrder)
		api.GET("/tables/:tableId/orders", h.ListOrders)

		// Kitchen
		api.GET("/kitchen/items", h.ListKitchenItems)
		api.PATCH("/kitchen/items/:id/status", h.UpdateKitchenStatus)

		// Analytics and operations
		api.GET("/analytics/consumption", h.ConsumptionReport)
		api.POST("/admin/deductions/retry", h.RetryDeductions)
	}
}

// corsMiddleware allows every origin when none are configured, otherwise
// echoes allow-listed origins.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	base := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept",
			middleware.HeaderClientID, middleware.HeaderIdempotencyKey,
		},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag", "Retry-After", middleware.HeaderIdempotencyReplayed},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}

	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		base.AllowAllOrigins = true
		return []gin.HandlerFunc{
			// ACAO even without an Origin header (health checks, curl).
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(base),
		}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[strings.TrimRight(o, "/")] = struct{}{}
	}
	base.AllowOrigins = origins
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(base),
	}
}

// limitBody caps request bodies at maxBytes; reads past the cap fail.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
