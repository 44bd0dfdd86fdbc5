package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/tumalove/tumalove-backend/internal/config"
	"github.com/tumalove/tumalove-backend/internal/db"
	"github.com/tumalove/tumalove-backend/internal/goroutine"
	httpHandlers "github.com/tumalove/tumalove-backend/internal/http/handlers"
	httpRouter "github.com/tumalove/tumalove-backend/internal/http/router"
	"github.com/tumalove/tumalove-backend/internal/logger"
	"github.com/tumalove/tumalove-backend/internal/mpesa"
	"github.com/tumalove/tumalove-backend/internal/observer"
	"github.com/tumalove/tumalove-backend/internal/ratelimit"
	"github.com/tumalove/tumalove-backend/internal/repository"
	"github.com/tumalove/tumalove-backend/internal/service"
	"github.com/tumalove/tumalove-backend/internal/ws"
)

func main() {
	// Context for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: failed to load configuration: %v", err)
	}

	if cfg.Env == "development" {
		logger.Init("debug")
		logger.SetTextFormatter()
	} else {
		logger.Init("info")
	}

	// Database and migrations.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: failed to connect to database: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: migrations failed: %v", err)
	}

	// Rate limit store: redis when configured so limits hold across
	// instances, in-memory otherwise.
	var rateStore limiter.Store
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		rateStore, err = redisstore.NewStoreWithOptions(redisClient, limiter.StoreOptions{
			Prefix: "ratelimit",
		})
		if err != nil {
			log.Fatalf("main: failed to create redis rate limit store: %v", err)
		}
	} else {
		rateStore = memory.NewStore()
	}

	paymentGuard := ratelimit.NewGuardWithStore(rateStore, cfg.PaymentRateLimit, cfg.PaymentRatePeriod)
	withdrawalGuard := ratelimit.NewGuardWithStore(rateStore, cfg.WithdrawalRateLimit, cfg.WithdrawalRatePeriod)

	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL)

	mpesaClient := mpesa.NewClient(mpesa.Config{
		BaseURL:        cfg.MpesaBaseURL,
		ConsumerKey:    cfg.MpesaConsumerKey,
		ConsumerSecret: cfg.MpesaConsumerSecret,
		Passkey:        cfg.MpesaPasskey,
		Shortcode:      cfg.MpesaShortcode,
		CallbackURL:    cfg.MpesaCallbackURL,
	})

	// Repositories.
	creatorRepo := repository.NewCreatorRepository(dbConn)
	transactionRepo := repository.NewTransactionRepository(dbConn)
	withdrawalRepo := repository.NewWithdrawalRepository(dbConn)
	balanceRepo := repository.NewBalanceRepository(dbConn)
	auditRepo := repository.NewAuditRepository(dbConn)
	ledgerRepo := repository.NewLedgerRepository(dbConn)

	// Websocket hub.
	hub := ws.NewHub(ctx)
	goroutine.SafeGo(hub.Run)

	// Services.
	paymentService := service.NewPaymentService(creatorRepo, transactionRepo, mpesaClient, paymentGuard)
	callbackService := service.NewCallbackService(transactionRepo, ledgerRepo, auditRepo, hub)
	withdrawalService := service.NewWithdrawalService(withdrawalRepo, ledgerRepo, balanceRepo, creatorRepo, auditRepo, withdrawalGuard)
	watcher := observer.New(transactionRepo, hub)

	// Handlers.
	paymentHandler := httpHandlers.NewPaymentHandler(paymentService, watcher)
	callbackHandler := httpHandlers.NewCallbackHandler(callbackService)
	withdrawalHandler := httpHandlers.NewWithdrawalHandler(withdrawalService)
	wsHandler := httpHandlers.NewWSHandler(hub)
	healthHandler := httpHandlers.NewHealthHandler(dbConn)

	engine := httpRouter.SetupRouter(cfg, rateStore, paymentHandler, callbackHandler, withdrawalHandler, wsHandler, healthHandler, tokenManager)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: engine,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: failed to stop http server: %v", err)
		}
	}()

	log.Printf("main: HTTP server listening on port %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: server exited with error: %v", err)
	}
}

func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: failed to close database: %v", err)
	}
}
