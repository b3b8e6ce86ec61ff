package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"botfleet/backend/internal/config"
	"botfleet/backend/internal/handler"
	"botfleet/backend/internal/middleware"
	"botfleet/backend/internal/repository"
	"botfleet/backend/internal/service"
	"botfleet/backend/internal/venue"
	"botfleet/backend/pkg/crypto"
	"botfleet/backend/pkg/jwt"
	"botfleet/backend/pkg/logger"
	"botfleet/backend/pkg/orchestrator"
	"botfleet/backend/pkg/redis"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file (ignore error in production)
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	log := logger.GetLogger()

	log.Info("Starting BotFleet Backend...")
	log.Infof("Environment: %s", cfg.Server.Env)

	// Initialize Redis
	log.Info("Connecting to Redis...")
	redisClient, err := redis.New(redis.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Fatal("Failed to connect to Redis", err)
	}
	defer redisClient.Close()
	log.Info("✓ Redis connected")

	// Credential vault. Fails closed on a bad key.
	vault, err := crypto.NewVault(cfg.Encryption.Key)
	if err != nil {
		log.Fatal("Failed to initialize credential vault", err)
	}

	// Set Gin mode
	if cfg.Server.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create Gin router
	router := gin.New()

	// Apply middleware
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))
	router.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	router.Use(middleware.RateLimit(redisClient, cfg.RateLimit.RequestsPerMinute))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := redisClient.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "Redis connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"redis":  "connected",
		})
	})

	// Identity token validation
	jwtManager := jwt.NewManager(cfg.JWT.Secret, cfg.JWT.TokenTTL)

	// Repositories
	botRepo := repository.NewBotRepository(redisClient)
	credRepo := repository.NewCredentialRepository(redisClient)
	tradeRepo := repository.NewTradeRepository(redisClient)
	healthRepo := repository.NewHealthRepository(redisClient)

	// WebSocket hub
	wsHub := service.NewWSHub(redisClient)
	go wsHub.Run()
	go wsHub.StartPubSubListener(context.Background())

	// Services
	credService := service.NewCredentialService(credRepo, botRepo, vault)

	venueCfg := venue.Config{
		MexcAPIURL:      cfg.Venues.MexcAPIURL,
		BitmartAPIURL:   cfg.Venues.BitmartAPIURL,
		CoinstoreAPIURL: cfg.Venues.CoinstoreAPIURL,
		ProxyURL:        cfg.Venues.ProxyURL,
		SolanaRPCURL:    cfg.Solana.RPCURL,
		AggregatorURL:   cfg.Solana.AggregatorURL,
		SlippageBps:     cfg.Solana.SlippageBps,
	}

	// Scheduler and health monitor keep separate session pools.
	schedulerSessions := venue.NewManager(venueCfg, credService.Decrypt)
	monitorSessions := venue.NewManager(venueCfg, credService.Decrypt)

	orchClient := orchestrator.NewClient(cfg.Orchestrator.BaseURL, cfg.Orchestrator.APIToken)

	fetcher := service.NewFetcher()
	executor := service.NewExecutor(schedulerSessions, fetcher, botRepo, tradeRepo, credRepo, orchClient)
	botService := service.NewBotService(botRepo, credRepo, tradeRepo, healthRepo, executor, wsHub)

	// Background loops
	scheduler := service.NewScheduler(botRepo, executor, wsHub, cfg.Scheduler.TickInterval)
	healthMonitor := service.NewHealthMonitor(botRepo, credRepo, tradeRepo, healthRepo, monitorSessions, wsHub, cfg.Scheduler.HealthInterval)

	loopCtx, cancelLoops := context.WithCancel(context.Background())
	go scheduler.Start(loopCtx)
	go healthMonitor.Start(loopCtx)

	// Handlers
	botHandler := handler.NewBotHandler(botService)
	credHandler := handler.NewCredentialHandler(credService)

	// API v1 group
	v1 := router.Group("/api/v1")
	{
		v1.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"message": "pong",
				"time":    time.Now().Unix(),
			})
		})

		authed := v1.Group("")
		authed.Use(middleware.Auth(jwtManager))
		{
			bots := authed.Group("/bots")
			{
				bots.POST("", botHandler.CreateBot)
				bots.GET("", botHandler.ListBots)
				bots.GET("/:id", botHandler.GetBot)
				bots.PUT("/:id", botHandler.UpdateBot)
				bots.DELETE("/:id", botHandler.DeleteBot)
				bots.POST("/:id/start", botHandler.StartBot)
				bots.POST("/:id/stop", botHandler.StopBot)
				bots.GET("/:id/trades", botHandler.ListTrades)
				bots.GET("/:id/summary", botHandler.GetSummary)
				bots.GET("/:id/health", botHandler.GetHealthAudit)
			}

			creds := authed.Group("/credentials")
			{
				creds.POST("", credHandler.SubmitCredential)
				creds.GET("", credHandler.ListCredentials)
				creds.DELETE("/:id", credHandler.DeleteCredential)
			}

			admin := authed.Group("/admin")
			admin.Use(middleware.RequireOperator())
			{
				admin.POST("/rotate-key", credHandler.RotateKey)
			}

			authed.GET("/ws", wsHub.ServeWS)
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Infof("Server starting on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", err)
		}
	}()

	log.Info("✓ Server started successfully")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// Stop background loops before the HTTP surface.
	cancelLoops()
	scheduler.Stop()
	healthMonitor.Stop()

	// Graceful shutdown with 5 second timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", err)
	}

	log.Info("Server exited")
}
