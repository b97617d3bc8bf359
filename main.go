package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Spare-Link/storefront/apperrors"
	"github.com/Spare-Link/storefront/clients"
	"github.com/Spare-Link/storefront/config"
	"github.com/Spare-Link/storefront/controllers"
	"github.com/Spare-Link/storefront/database"
	"github.com/Spare-Link/storefront/kafka"
	"github.com/Spare-Link/storefront/logger"
	"github.com/Spare-Link/storefront/middleware"
	awspkg "github.com/Spare-Link/storefront/pkg/aws"
	"github.com/Spare-Link/storefront/repository"
	"github.com/Spare-Link/storefront/routes"
	"github.com/Spare-Link/storefront/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const serviceName = "storefront-checkout"

func main() {
	cfg := config.Load()

	zapLogger, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ── CloudWatch Logs ──
	if cfg.CloudWatchEnabled && cfg.CloudWatchLogGroup != "" {
		zapLogger = teeCloudWatchLogs(ctx, cfg, zapLogger)
	}

	// ── CloudWatch Metrics ──
	var metricsClient *awspkg.MetricsClient
	if cfg.CloudWatchEnabled {
		mc, err := awspkg.NewMetricsClient(ctx)
		if err != nil {
			zapLogger.Warn("CloudWatch Metrics init failed", zap.Error(err))
		} else {
			metricsClient = mc
			zapLogger.Info("CloudWatch Metrics enabled")
		}
	}

	// Response cache: Redis when configured, otherwise in-process
	var cache clients.ResponseCache
	if cfg.RedisURL == "" {
		memCache := clients.NewMemoryCache()
		go memCache.Run(ctx, time.Minute)
		cache = memCache
	} else {
		redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			zapLogger.Fatal("failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		cache = clients.NewRedisCache(redisClient, "storefront:")
		zapLogger.Info("Connected to Redis")
	}

	commerce := clients.NewCommerceClient(cfg.BackendURL, cfg.PublishableKey, cfg.RequestTimeout, cache, cfg.CacheTTL, zapLogger).
		WithMetrics(metricsClient)

	// Carrier quote audit trail (optional)
	var quotes services.QuoteRecorder
	if cfg.PostgresEnabled() {
		db, err := database.ConnectPostgres(&cfg, zapLogger, &repository.CarrierQuoteRecord{})
		if err != nil {
			zapLogger.Fatal("failed to connect to PostgreSQL", zap.Error(err))
		}
		defer database.Close(db)
		quotes = repository.NewGormCarrierQuoteRepository(db)
	}

	events, closeEvents := newEventPublisher(ctx, cfg, zapLogger)
	defer closeEvents()

	carts := services.NewCartService(commerce, zapLogger)
	fulfillment := services.NewFulfillmentService(commerce, quotes, metricsClient, zapLogger)
	addresses := services.NewAddressService(carts, events, zapLogger)
	delivery := services.NewDeliveryService(carts, events, zapLogger)

	sessions := services.NewSessionStore(fulfillment, cfg.SessionTTL, metricsClient, zapLogger)
	defer sessions.Close()
	go sessions.Run(ctx, time.Minute)

	limiter := middleware.NewRateLimiter(middleware.PerMinute(cfg.RateLimitRPM), cfg.RateLimitBurst, 10*time.Minute)
	go limiter.Run(ctx)

	var submitMetrics controllers.MetricsRecorder
	if metricsClient != nil {
		submitMetrics = metricsClient
	}
	controller := controllers.NewCheckoutController(carts, fulfillment, addresses, delivery, sessions, submitMetrics, zapLogger)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(
		apperrors.Boundary(zapLogger),
		logger.RequestID(),
		logger.RequestLogger(zapLogger),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.AllowedOrigins),
		middleware.RateLimit(limiter),
		middleware.Metrics(metricsClient, serviceName),
		apperrors.ErrorMiddleware(),
	)

	routes.RegisterRoutes(r, controller, routes.Options{
		SessionTTL:    cfg.SessionTTL,
		SecureCookies: cfg.Env == "production",
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zapLogger.Info("Server starting", zap.String("port", cfg.Port), zap.String("backend", cfg.BackendURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}
}

// teeCloudWatchLogs adds a CloudWatch Logs sink to zapLogger. Failures leave
// the stdout logger in place.
func teeCloudWatchLogs(ctx context.Context, cfg config.Config, zapLogger *zap.Logger) *zap.Logger {
	awsCfg, err := awspkg.LoadAWSConfig(ctx)
	if err != nil {
		zapLogger.Warn("CloudWatch Logs unavailable", zap.Error(err))
		return zapLogger
	}
	sink, err := awspkg.NewLogsClient(ctx, awsCfg, cfg.CloudWatchLogGroup, serviceName)
	if err != nil {
		zapLogger.Warn("CloudWatch Logs init failed", zap.Error(err))
		return zapLogger
	}
	go sink.Run(ctx, 5*time.Second)
	zapLogger.Info("CloudWatch Logs enabled", zap.String("group", cfg.CloudWatchLogGroup))
	return logger.WithCloudWatch(zapLogger, sink, zap.InfoLevel)
}

// newEventPublisher picks SNS, then Kafka, then a no-op publisher.
func newEventPublisher(ctx context.Context, cfg config.Config, zapLogger *zap.Logger) (services.EventPublisher, func()) {
	noClose := func() {}

	if cfg.CheckoutSNSTopicARN != "" {
		awsCfg, err := awspkg.LoadAWSConfig(ctx)
		if err == nil {
			zapLogger.Info("Checkout events published to SNS", zap.String("topic", cfg.CheckoutSNSTopicARN))
			return services.NewSNSEventPublisher(awspkg.NewSNSClient(awsCfg), cfg.CheckoutSNSTopicARN), noClose
		}
		zapLogger.Warn("SNS unavailable, falling back", zap.Error(err))
	}

	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err == nil {
			zapLogger.Info("Checkout events published to Kafka", zap.Strings("brokers", cfg.KafkaBrokers))
			return services.NewKafkaEventPublisher(producer), func() {
				if err := producer.Close(); err != nil {
					zapLogger.Warn("Kafka producer close failed", zap.Error(err))
				}
			}
		}
		zapLogger.Warn("Kafka producer unavailable", zap.Error(err))
	}

	return services.NewNoopEventPublisher(), noClose
}
