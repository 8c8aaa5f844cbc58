package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/TransPort-Lima/service-rides/internal/application"
	"github.com/TransPort-Lima/service-rides/internal/catalog"
	"github.com/TransPort-Lima/service-rides/internal/config"
	"github.com/TransPort-Lima/service-rides/internal/database"
	tripDomain "github.com/TransPort-Lima/service-rides/internal/domain/trip"
	"github.com/TransPort-Lima/service-rides/internal/geocode"
	"github.com/TransPort-Lima/service-rides/internal/handler"
	"github.com/TransPort-Lima/service-rides/internal/health"
	"github.com/TransPort-Lima/service-rides/internal/kafka"
	"github.com/TransPort-Lima/service-rides/internal/logger"
	"github.com/TransPort-Lima/service-rides/internal/middleware"
	"github.com/TransPort-Lima/service-rides/internal/repository"
	"github.com/TransPort-Lima/service-rides/internal/resolver"
	"github.com/TransPort-Lima/service-rides/internal/routing"
	"github.com/TransPort-Lima/service-rides/internal/search"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewNamed(cfg.AppEnv, "service-rides")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting service-rides",
		zap.String("port", cfg.Port),
	)

	// Connect to database
	db, err := database.Connect(cfg.DBConfig, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	if cfg.AppEnv == "development" {
		if err := db.AutoMigrate(&repository.TripRequestModel{}, &repository.CounterofferModel{}); err != nil {
			log.Fatal("failed to run auto-migration", zap.Error(err))
		}
		log.Info("database migration completed (dev auto-migrate)")
	}

	// Initialize Kafka producer
	kafkaProducer := kafka.NewProducer(cfg.KafkaConfig.Brokers, log)
	defer func() { _ = kafkaProducer.Close() }()

	// Initialize repositories
	tripRepo := repository.NewGormTripRequestRepository(db)
	offerRepo := repository.NewGormCounterofferRepository(db)

	// Initialize pricing strategy
	pricingStrategy := tripDomain.NewStandardPricingStrategy()

	// Initialize the location catalog and its loader
	cat := catalog.New()
	catalogLoader := catalog.NewLoader(cfg.Providers.CatalogURL, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cat.Replace(catalogLoader.Load(ctx))
	log.Info("location catalog loaded", zap.Int("locations", cat.Len()))

	// Initialize the external geo providers
	geocoder := geocode.NewClient(geocode.Config{
		BaseURL:   cfg.Providers.NominatimURL,
		UserAgent: cfg.Providers.UserAgent,
	}, log)
	router := routing.NewClient(cfg.Providers.OSRMURL, log)
	previewer := routing.NewPreviewChain(router, log)
	matching := search.NewClient(cfg.Providers.MatchingURL)

	// Initialize application services
	rideService := application.NewRideService(
		tripRepo,
		offerRepo,
		pricingStrategy,
		kafkaProducer,
		cat,
		log,
	)
	sessionService := application.NewSessionService(
		resolver.Config{
			SnapMaxKm: cfg.Resolver.SnapMaxKm,
			Debounce:  cfg.Resolver.Debounce,
		},
		cat,
		catalogLoader,
		geocoder,
		previewer,
		matching,
		log,
	)

	// Periodically refresh the catalog and revalidate live sessions
	go func() {
		ticker := time.NewTicker(cfg.Resolver.CatalogRefresh)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sessionService.ReloadCatalog(ctx)
			}
		}
	}()

	// Initialize and start settlement event consumer in a goroutine
	groupID := cfg.KafkaConfig.GroupPrefix + "rides-service"
	settlementConsumer := application.NewSettlementEventConsumer(
		cfg.KafkaConfig.Brokers,
		groupID,
		rideService,
		log,
	)
	defer func() { _ = settlementConsumer.Close() }()

	go func() {
		log.Info("starting settlement event consumer")
		if err := settlementConsumer.Start(ctx); err != nil && err != context.Canceled {
			log.Error("settlement event consumer error", zap.Error(err))
		}
	}()

	// Initialize HTTP handlers
	sessionHandler := handler.NewSessionHandler(sessionService)
	tripHandler := handler.NewTripHandler(rideService)
	driverHandler := handler.NewDriverHandler(rideService)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	// Apply global middleware
	engine.Use(middleware.Recovery(log))
	engine.Use(middleware.RequestLogger(log))
	engine.Use(middleware.CORS())

	// Register health check routes
	healthHandler := health.NewHandler(db, "service-rides")
	healthHandler.RegisterRoutes(engine)

	// Register routes
	sessionHandler.RegisterRoutes(&engine.RouterGroup)
	tripHandler.RegisterRoutes(&engine.RouterGroup)
	driverHandler.RegisterRoutes(&engine.RouterGroup)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down service-rides...")

	// Cancel the consumer and refresh contexts
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	log.Info("service-rides stopped")
}
