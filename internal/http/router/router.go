package router

import (
	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"

	"github.com/tumalove/tumalove-backend/internal/config"
	"github.com/tumalove/tumalove-backend/internal/http/handlers"
	"github.com/tumalove/tumalove-backend/internal/http/middleware"
	"github.com/tumalove/tumalove-backend/internal/models"
	"github.com/tumalove/tumalove-backend/internal/service"
)

func SetupRouter(
	cfg *config.Config,
	rateStore limiter.Store,
	paymentHandler *handlers.PaymentHandler,
	callbackHandler *handlers.CallbackHandler,
	withdrawalHandler *handlers.WithdrawalHandler,
	wsHandler *handlers.WSHandler,
	healthHandler *handlers.HealthHandler,
	tokenManager *service.TokenManager,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)

	api := r.Group("/api")

	// Public payment surface. The IP limiter here is coarse; the services
	// apply per-action limits on top.
	payments := api.Group("/payments")
	payments.Use(middleware.RateLimitMiddleware(rateStore, cfg.PaymentRateLimit*4, cfg.PaymentRatePeriod))
	{
		payments.POST("/stk-push", paymentHandler.InitiateStkPush)
		payments.POST("/mpesa/callback", callbackHandler.HandleMpesaCallback)
		payments.GET("/:checkoutId/status", paymentHandler.GetStatus)
		payments.GET("/:checkoutId/await", paymentHandler.AwaitStatus)
	}

	api.GET("/ws", wsHandler.Handle)

	// Creator dashboard routes.
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		protected.GET("/balance", withdrawalHandler.Balance)
		protected.GET("/payments/transactions", paymentHandler.ListTransactions)
		protected.POST("/withdrawals", withdrawalHandler.Request)
		protected.GET("/withdrawals", withdrawalHandler.History)
	}

	// Approval queue. The service re-checks the role; the middleware keeps
	// viewers out of the whole group.
	admin := api.Group("/admin")
	admin.Use(middleware.AuthMiddleware(tokenManager))
	admin.Use(middleware.RequireRole(models.RoleAdmin, models.RoleOperator))
	{
		admin.GET("/withdrawals/pending", withdrawalHandler.Pending)
		admin.POST("/withdrawals/:id/approve", middleware.UUIDValidator("id"), withdrawalHandler.Approve)
	}

	return r
}
