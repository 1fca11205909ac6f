package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ikanisa/easymo-router/database"
	"github.com/ikanisa/easymo-router/internal/classifier"
	"github.com/ikanisa/easymo-router/internal/composer"
	"github.com/ikanisa/easymo-router/internal/config"
	"github.com/ikanisa/easymo-router/internal/delivery"
	"github.com/ikanisa/easymo-router/internal/fulfillment"
	"github.com/ikanisa/easymo-router/internal/handlers"
	"github.com/ikanisa/easymo-router/internal/ingress"
	"github.com/ikanisa/easymo-router/internal/jobs"
	"github.com/ikanisa/easymo-router/internal/metrics"
	"github.com/ikanisa/easymo-router/internal/policy"
	"github.com/ikanisa/easymo-router/internal/routes"
	"github.com/ikanisa/easymo-router/internal/services"
	"github.com/ikanisa/easymo-router/internal/skills"
	"github.com/ikanisa/easymo-router/internal/storage"
	"github.com/ikanisa/easymo-router/internal/templates"
	"github.com/ikanisa/easymo-router/internal/utils"
)

type application struct {
	app      *fiber.App
	registry *templates.Registry
	learner  *jobs.PreferenceLearner
	janitor  *jobs.CacheJanitor
	close    func()
}

// build wires every component from cfg.
func build(ctx context.Context, cfg config.Config, log *zap.Logger) (*application, error) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	store, closeStore, err := openStore(cfg, log)
	if err != nil {
		return nil, err
	}

	registry, err := loadRegistry(cfg)
	if err != nil {
		closeStore()
		return nil, err
	}

	gateway, err := newGateway(cfg, log)
	if err != nil {
		closeStore()
		return nil, err
	}

	var service classifier.Service
	if cfg.Router.GeminiAPIKey != "" {
		svc, err := classifier.NewGenAIService(ctx, cfg.Router.GeminiAPIKey, cfg.Router.ClassifierModel)
		if err != nil {
			closeStore()
			return nil, fmt.Errorf("classification service: %w", err)
		}
		service = svc
	} else {
		log.Warn("GEMINI_API_KEY not set, unmatched messages get the default classification")
	}

	locks := utils.NewKeyedMutex()
	gate := ingress.NewGate(ingress.Config{
		AppSecret:         cfg.WhatsApp.AppSecret,
		VerifyToken:       cfg.WhatsApp.VerifyToken,
		DisableValidation: cfg.WhatsApp.DisableValidation,
		MinInterval:       cfg.Router.MinMessageInterval,
		MaxLength:         cfg.Router.MaxMessageLength,
		ClaimLease:        cfg.Router.ClaimLease,
	}, store, locks, log, m)

	cache := skills.NewTransactionCache(store, cfg.Router.TransactionTTL)
	dispatcher := skills.NewDispatcher(log,
		skills.NewPayments(cache, fulfillment.NewQRClient(cfg.Services.QRServiceURL, cfg.Services.QRServiceToken, cfg.Services.FulfillmentTimeout), log),
		skills.NewTransport(cache),
		skills.NewCommerce(fulfillment.NewSearchClient(cfg.Services.SearchServiceURL, cfg.Services.FulfillmentTimeout), log),
		skills.NewListings(),
		skills.NewSupport(store, log),
	)

	conversation := services.NewConversationService(services.ConversationDeps{
		Store: store,
		Gate:  gate,
		Classifier: classifier.New(classifier.Config{
			ClarifyThreshold:      cfg.Router.ClarifyThreshold,
			MemoryBoostConfidence: cfg.Router.MemoryBoostConfidence,
			Timeout:               cfg.Router.ClassifierTimeout,
		}, service, log, m),
		Dispatcher: dispatcher,
		Composer:   composer.New(store, gateway, locks, log, m),
		Catalog:    registry,
		Policy: policy.Config{
			ClarifyThreshold: cfg.Router.ClarifyThreshold,
			SessionWindow:    cfg.Router.SessionWindow,
			MaxQuickReplies:  cfg.Router.MaxQuickReplies,
		},
		Log:     log,
		Metrics: m,
	})

	app := newFiberApp()
	routes.SetupRoutes(app,
		handlers.NewWhatsAppHandler(gate, conversation, log),
		handlers.NewHealthHandler(version, cfg.Database.Driver, cfg.DeliveryProvider, registry.Version(), store),
		routes.Options{
			Development:       cfg.IsDevelopment(),
			DisableValidation: cfg.WhatsApp.DisableValidation,
			TwilioAuthToken:   cfg.Twilio.AuthToken,
			PublicBaseURL:     cfg.Twilio.PublicBaseURL,
			Metrics:           reg,
		}, log)

	return &application{
		app:      app,
		registry: registry,
		learner:  newLearner(cfg, store, log, m),
		janitor:  jobs.NewCacheJanitor(store, cfg.Services.JanitorInterval, log, m),
		close:    closeStore,
	}, nil
}

func newFiberApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "easyMO Router v" + version,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	return app
}

// openStore returns the configured store and a func releasing it.
func openStore(cfg config.Config, log *zap.Logger) (storage.Store, func(), error) {
	if cfg.Database.Driver == config.DriverMemory {
		log.Warn("using in-memory storage (not for production!)")
		return storage.NewMemoryStore(), func() {}, nil
	}

	db, err := database.Connect(cfg.Database, log)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if err := database.Migrate(db); err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return storage.NewDatabaseStore(db), closeFn, nil
}

func loadRegistry(cfg config.Config) (*templates.Registry, error) {
	if cfg.TemplatesFile != "" {
		return templates.Load(cfg.TemplatesFile)
	}
	return templates.Default()
}

func newGateway(cfg config.Config, log *zap.Logger) (composer.Gateway, error) {
	switch cfg.DeliveryProvider {
	case config.ProviderTwilio:
		return delivery.NewTwilioGateway(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.WhatsAppFrom, log)
	case config.ProviderCloud:
		return delivery.NewCloudAPIGateway(cfg.WhatsApp.GraphURL, cfg.WhatsApp.PhoneNumberID, cfg.WhatsApp.AccessToken, cfg.Services.FulfillmentTimeout, log)
	default:
		return delivery.NewLogGateway(log), nil
	}
}

func newLearner(cfg config.Config, store storage.Store, log *zap.Logger, m *metrics.Metrics) *jobs.PreferenceLearner {
	return jobs.NewPreferenceLearner(store, jobs.LearnerConfig{
		Window:    cfg.Learner.Window,
		Threshold: cfg.Learner.Threshold,
		Interval:  cfg.Learner.Interval,
		Workers:   cfg.Learner.Workers,
	}, log, m)
}
