package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agrodetect/advisor"
	"agrodetect/config"
	"agrodetect/database"
	"agrodetect/devices"
	"agrodetect/handlers"
	"agrodetect/images"
	"agrodetect/inference"
	"agrodetect/llm"
	"agrodetect/metrics"
	"agrodetect/middleware"
	"agrodetect/mqtt"
	"agrodetect/ollama"
	"agrodetect/rabbitmq"
	"agrodetect/service"
	"agrodetect/stubllm"
	"agrodetect/websocket"

	"github.com/apex/log"
	jsonhandler "github.com/apex/log/handlers/json"
	"github.com/apex/log/handlers/text"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found, using environment variables")
	}

	cfg := config.Load()
	setupLogging(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	metrics.Register()

	log.Info("Starting the agrodetect service...")

	db, err := database.NewDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	store, err := images.NewStore(cfg.UploadRoot)
	if err != nil {
		log.Fatalf("Failed to initialize image store: %v", err)
	}

	llmClient := newLLMClient(cfg)
	adv := advisor.New(llmClient)
	predictor := inference.NewClient(cfg.MLServiceURL, cfg.InferenceTimeout, cfg.HealthTimeout)
	scans := database.NewScanStore(db.DB())
	registry := devices.NewRegistry()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	analysis := service.NewAnalysisService(store, predictor, adv, scans)

	hub := websocket.NewHub()
	go hub.Run(ctx)
	analysis.AddListener(hub)

	if cfg.RabbitMQ.Enabled() {
		publisher, err := rabbitmq.NewPublisher(cfg.RabbitMQ.GetAMQPURL(), cfg.RabbitMQ.Exchange, cfg.RabbitMQ.RoutingKey)
		if err != nil {
			log.WithError(err).Error("RabbitMQ publisher unavailable, analysed scans will not be published")
		} else {
			defer publisher.Close()
			analysis.AddListener(publisher)
		}
	}

	if cfg.MQTT.Enabled() {
		bridge, err := mqtt.NewBridge(cfg.MQTT, registry)
		if err != nil {
			log.WithError(err).Error("MQTT bridge unavailable, ESP devices must use HTTP heartbeats")
		} else {
			bridge.Start()
			defer bridge.Close()
		}
	}

	limiter := middleware.NewRateLimiter(cfg.AIRateLimitPerMinute, time.Minute)
	go pruneLimiter(ctx, limiter)

	h := handlers.NewHandlers(handlers.Deps{
		Analysis:       analysis,
		Scans:          scans,
		Frames:         store,
		ML:             predictor,
		AI:             adv,
		ChatService:    service.NewChatService(llmClient),
		Registry:       registry,
		Hub:            hub,
		DB:             db,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: setupRouter(cfg, h, limiter),
	}

	go func() {
		log.Infof("Starting HTTP server on port %s (LLM: %s)", cfg.Port, adv.Source())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}

func setupLogging(cfg *config.Config) {
	if cfg.LogFormat == "json" {
		log.SetHandler(jsonhandler.New(os.Stderr))
	} else {
		log.SetHandler(text.New(os.Stderr))
	}
	if lvl, err := log.ParseLevel(cfg.LogLevel); err != nil {
		log.SetLevel(log.InfoLevel)
		log.Warnf("Unknown LOG_LEVEL %q, using info", cfg.LogLevel)
	} else {
		log.SetLevel(lvl)
	}
	gin.SetMode(cfg.GinMode)
}

func newLLMClient(cfg *config.Config) llm.Client {
	if cfg.LLMProvider == config.ProviderStub {
		log.Warn("Using the stub LLM provider, advisories are canned")
		return stubllm.NewClient()
	}
	return ollama.NewClient(cfg.OllamaURL, cfg.OllamaModel, advisor.SystemPrompt, cfg.LLMTimeout, cfg.HealthTimeout)
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
		return c
	}
	c.AllowOrigins = origins
	c.AllowCredentials = true
	return c
}

func setupRouter(cfg *config.Config, h *handlers.Handlers, limiter *middleware.RateLimiter) *gin.Engine {
	router := gin.Default()
	router.MaxMultipartMemory = cfg.MaxUploadBytes
	router.Use(cors.New(corsConfig(cfg.AllowedOrigins)))
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/analysis/live"})))

	router.Static(images.URLPrefix, cfg.UploadRoot)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterRoutes(router, h, middleware.RateLimit(limiter))
	return router
}

func pruneLimiter(ctx context.Context, limiter *middleware.RateLimiter) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Prune()
		}
	}
}
