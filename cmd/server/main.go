package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dealdrop/internal/config"
	"dealdrop/internal/handlers"
	"dealdrop/internal/middleware"
	"dealdrop/internal/repositories/mongodb"
	"dealdrop/internal/services"
	"dealdrop/internal/utils"
	"dealdrop/internal/validators"
	"dealdrop/pkg/cache"
	"dealdrop/pkg/database"
	"dealdrop/pkg/logger"
	"dealdrop/pkg/payment"
	"dealdrop/pkg/scheduler"
	"dealdrop/pkg/sms"
	"dealdrop/pkg/storage"
	"dealdrop/routes"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := logger.NewLogger(&logger.Config{
		Level:      logger.LogLevel(cfg.App.LogLevel),
		Format:     cfg.App.LogFormat,
		TimeFormat: time.RFC3339,
		AppName:    cfg.App.Name,
		Version:    cfg.App.Version,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	// Infrastructure
	mongoDB, err := database.NewMongoDB(cfg.Database.Connection())
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	defer mongoDB.Close()

	if err := database.NewMigrator(mongoDB.Database, appLogger).Up(context.Background()); err != nil {
		appLogger.WithError(err).Fatal("Failed to run migrations")
	}

	redisCache, err := cache.NewRedisCache(cfg.Redis.Connection())
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redisCache.Close()

	objectStore, err := newObjectStore(context.Background(), cfg.Storage)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialise storage")
	}

	smsProvider, err := newSMSProvider(cfg.SMS)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialise SMS")
	}
	if smsProvider == nil {
		appLogger.Warn("No SMS provider configured, codes will not be texted")
	}

	checkoutProviders := newCheckoutProviders(cfg.Payment)
	if len(checkoutProviders) == 0 {
		appLogger.Warn("No checkout provider configured, integrated tier unavailable")
	}

	// Repositories
	db := mongoDB.Database
	dealRepo := mongodb.NewDealRepository(db)
	claimRepo := mongodb.NewClaimRepository(db)
	vendorRepo := mongodb.NewVendorRepository(db, redisCache)
	userRepo := mongodb.NewUserRepository(db)
	redemptionRepo := mongodb.NewRedemptionRepository(db)
	loyaltyRepo := mongodb.NewLoyaltyRepository(db)
	auditRepo := mongodb.NewAuditLogRepository(db)

	// Services
	issuer := services.NewCredentialIssuer(mongoDB, claimRepo, dealRepo, userRepo, objectStore, smsProvider, cfg.Claims, cfg.SMS.Sender(), appLogger)
	claimService := services.NewClaimService(mongoDB, dealRepo, claimRepo, vendorRepo, issuer, checkoutProviders, redisCache, cfg.Claims, cfg.Payment, appLogger)
	loyaltyService := services.NewLoyaltyService(mongoDB, loyaltyRepo, appLogger)
	redemptionService := services.NewRedemptionService(mongoDB, claimRepo, dealRepo, redemptionRepo, userRepo, loyaltyService, cfg.Claims, appLogger)
	adminService := services.NewAdminClaimService(mongoDB, claimRepo, dealRepo, redemptionRepo, auditRepo, issuer, appLogger)
	paymentService := services.NewPaymentConfirmationService(claimRepo, issuer, checkoutProviders, redisCache, cfg.Claims, appLogger)
	sweepService := services.NewSweepService(dealRepo, claimRepo, cfg.Claims, appLogger)

	// Background sweeps
	sched, err := scheduler.NewScheduler(appLogger)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to create scheduler")
	}
	if err := sweepService.Register(sched); err != nil {
		appLogger.WithError(err).Fatal("Failed to register sweeps")
	}
	sched.Start()

	// HTTP
	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := validators.RegisterGinValidators(); err != nil {
		appLogger.WithError(err).Fatal("Failed to register validators")
	}

	router := gin.New()
	if err := router.SetTrustedProxies(cfg.Security.TrustedProxies); err != nil {
		appLogger.WithError(err).Fatal("Invalid trusted proxies")
	}
	router.Use(middleware.RecoveryMiddleware(appLogger))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware(appLogger))
	router.Use(middleware.CORSMiddleware(cfg.Security.CORSAllowedOrigins))

	v1 := router.Group("/api/v1")
	routes.SetupRoutes(v1, routes.Handlers{
		Claims:      handlers.NewClaimHandler(claimService, appLogger),
		Redemptions: handlers.NewRedemptionHandler(redemptionService, appLogger),
		Admin:       handlers.NewAdminClaimHandler(adminService, appLogger),
		Webhooks:    handlers.NewWebhookHandler(paymentService, appLogger),
	}, utils.NewTokenVerifier(cfg.Security.JWTSecret, cfg.Security.JWTIssuer))

	// Health check
	router.GET("/health", handlers.NewHealthHandler(map[string]handlers.Pinger{
		"mongodb": mongoDB,
		"redis":   redisCache,
	}).Health)

	if cfg.Storage.Provider == "local" {
		router.Static("/uploads", cfg.Storage.Local.BasePath)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.App.Host, cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.WithField("addr", server.Addr).Info("Starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.WithError(err).Fatal("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		appLogger.WithError(err).Error("Server shutdown failed")
	}
	if err := sched.Shutdown(); err != nil {
		appLogger.WithError(err).Error("Scheduler shutdown failed")
	}
}

func newObjectStore(ctx context.Context, cfg *config.StorageConfig) (storage.ObjectStore, error) {
	switch cfg.Provider {
	case "s3":
		return storage.NewS3Store(ctx, cfg.S3.Region, cfg.S3.Bucket, cfg.S3.CDNDomain)
	case "gcs":
		return storage.NewGCSStore(ctx, cfg.GCS.Bucket, cfg.GCS.CredentialsFile, cfg.GCS.CDNDomain)
	default:
		return storage.NewLocalStore(cfg.Local.BasePath, cfg.Local.BaseURL)
	}
}

// newSMSProvider returns a nil provider when SMS is not configured, which
// turns code delivery off.
func newSMSProvider(cfg *config.SMSConfig) (sms.SMSProvider, error) {
	switch cfg.Provider {
	case "twilio":
		return sms.NewTwilioProvider(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.FromNumber), nil
	case "sns":
		return sms.NewAWSSNSProvider(cfg.SNS.Region)
	default:
		return nil, nil
	}
}

func newCheckoutProviders(cfg *config.PaymentConfig) services.CheckoutProviders {
	var providers []payment.CheckoutProvider
	if cfg.StripeEnabled() {
		providers = append(providers, payment.NewStripeProvider(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret))
	}
	if cfg.RazorpayEnabled() {
		providers = append(providers, payment.NewRazorpayProvider(cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret, cfg.Razorpay.WebhookSecret))
	}
	return services.NewCheckoutProviders(providers...)
}
