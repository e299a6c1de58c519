package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"inphora/api"
	"inphora/cache"
	"inphora/config"
	"inphora/database"
	"inphora/events"
	"inphora/gateway"
	"inphora/models"
	"inphora/repository"
	"inphora/service"
)

// seedAdminUser creates the configured bootstrap admin when it does not
// exist yet, so a fresh deployment has a login to start from
func seedAdminUser(ctx context.Context, db *database.DB, email, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	created, err := repository.EnsureAdminUser(ctx, db, &models.User{
		Email:        strings.ToLower(strings.TrimSpace(email)),
		FullName:     "Administrator",
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
		IsActive:     true,
	})
	if err != nil {
		return err
	}
	if created {
		log.WithField("email", email).Info("Bootstrap admin user created")
	}
	return nil
}

// Run initializes and starts the application
func Run(ctx context.Context) error {
	cfg := config.Get()

	if cfg.Environment == "production" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetLevel(log.DebugLevel)
	}

	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	log.Info("Database connection established")

	if err := database.RunMigrationsWithURL(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("Migrations applied")

	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		if err := seedAdminUser(ctx, db, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			return fmt.Errorf("failed to seed admin user: %w", err)
		}
	}

	// Cache backs token revocation, rate limiting and STK prompt tracking.
	// Without a configured Redis the in-process store serves a single node.
	var store cache.Store
	if cfg.RedisURL != "" {
		redisStore, err := cache.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisStore.Close()
		store = redisStore
		log.Info("Redis cache connected")
	} else {
		store = cache.NewMemoryStore()
		log.Info("Using in-process cache")
	}

	eventBus := events.NewBus()
	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)
	service.RegisterNotificationHandlers(eventBus, uowFactory)

	mpesaClient := gateway.NewDarajaClient(gateway.MpesaConfig{
		ConsumerKey:       cfg.MpesaConsumerKey,
		ConsumerSecret:    cfg.MpesaConsumerSecret,
		Shortcode:         cfg.MpesaShortcode,
		InitiatorName:     cfg.MpesaInitiatorName,
		InitiatorPassword: cfg.MpesaInitiatorPass,
		Environment:       cfg.MpesaEnvironment,
		CallbackBaseURL:   cfg.CallbackBaseURL,
		Passkey:           cfg.MpesaPasskey,
	}, log.StandardLogger())

	log.Info("Initializing services...")
	services := api.Services{
		Auth: service.NewAuthService(uowFactory, store, cfg.JWTSecret,
			time.Duration(cfg.JWTExpiryHours)*time.Hour),
		Clients:        service.NewClientService(uowFactory),
		Products:       service.NewLoanProductService(uowFactory),
		Loans:          service.NewLoanService(uowFactory),
		Disbursements:  service.NewDisbursementService(uowFactory, mpesaClient),
		Reconciliation: service.NewReconciliationService(uowFactory, store),
		Registration: service.NewRegistrationService(uowFactory, mpesaClient, store,
			decimal.NewFromFloat(cfg.RegistrationFee)),
		Reports:       service.NewReportService(uowFactory),
		Notifications: service.NewNotificationService(uowFactory),
		Store:         store,
	}

	router := api.SetupRouter(cfg, services)
	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(log.Fields{
			"addr":        cfg.ListenAddr,
			"environment": cfg.Environment,
		}).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}

	log.Info("Shutdown completed")
	return nil
}
