package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/i474232898/weather-extraction/internal/api/http"
	"github.com/i474232898/weather-extraction/internal/config"
	"github.com/i474232898/weather-extraction/internal/extraction"
	"github.com/i474232898/weather-extraction/internal/extraction/providers"
	"github.com/i474232898/weather-extraction/internal/notify"
	"github.com/i474232898/weather-extraction/internal/runner"
	"github.com/i474232898/weather-extraction/internal/scheduler"
	"github.com/i474232898/weather-extraction/internal/store"
)

// objectStore is what the service and the HTTP layer need from a backend.
type objectStore interface {
	extraction.ObjectStore
	runner.Ledger
	httpapi.ObjectLister
	Close() error
}

func main() {
	// Load configuration (.env, optional YAML overlay, environment).
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	var st objectStore
	switch cfg.StoreBackend {
	case "sqlite":
		st, err = store.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			log.Fatalf("failed to open store: %v", err)
		}
	default:
		st = store.NewMemoryStore()
	}
	defer st.Close()

	if cfg.TasksFile != "" {
		data, err := os.ReadFile(cfg.TasksFile)
		if err != nil {
			log.Fatalf("failed to read tasks file: %v", err)
		}
		if err := st.Put(ctx, cfg.TasksBucket, cfg.TasksFileKey, data); err != nil {
			log.Fatalf("failed to seed tasks document: %v", err)
		}
		log.Printf("INFO: seeded %s/%s from %s", cfg.TasksBucket, cfg.TasksFileKey, cfg.TasksFile)
	}

	var publisher extraction.Publisher
	switch cfg.NotifyBackend {
	case "pubsub":
		client, err := pubsub.NewClient(ctx, cfg.GCPProject)
		if err != nil {
			log.Fatalf("failed to create pubsub client: %v", err)
		}
		defer client.Close()
		publisher = notify.NewPubSubPublisher(client)
	case "telegram":
		tg, err := notify.NewTelegramPublisher(cfg.TelegramToken)
		if err != nil {
			log.Fatalf("failed to create telegram notifier: %v", err)
		}
		publisher = tg
	default:
		publisher = notify.NewLogPublisher()
	}
	reporter := extraction.NewFailureReporter(publisher)

	// Local rule scheduler standing in for the managed scheduling service.
	sched := scheduler.New()
	cadence := extraction.NewCadenceController(sched, reporter, cfg.SchedulingRuleName, cfg.FailureTopic)

	// Open-Meteo archive retriever with resilience (backoff + circuit breaker).
	retriever := providers.NewOpenMeteoArchive(httpClient, cfg.ArchiveBaseURL, providers.DefaultBackoff)

	opts := []extraction.Option{extraction.WithPricing(cfg.Pricing)}
	if cfg.GeocoderAPIKey != "" {
		opts = append(opts, extraction.WithGeocoder(providers.NewGoogleGeocoder(cfg.GeocoderAPIKey)))
	}
	service := extraction.NewService(st, retriever, reporter, cadence, opts...)

	run := runner.New(service, st, cfg.ActivationInput(), runner.Limits{
		Daily:    cfg.DailyLimit,
		Hourly:   cfg.HourlyLimit,
		ByMinute: cfg.MinuteLimit,
	})

	sched.Register(cfg.SchedulingRuleName, func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		log.Println("scheduler: running activation")
		res, err := run.Activate(jobCtx)
		if err != nil {
			log.Printf("ERROR: scheduler: activation %s failed: %v", res.ID, err)
			return
		}
		log.Printf("scheduler: activation %s finished with %s", res.ID, res.Final)
	})
	if _, err := cadence.SetCadence(ctx, extraction.CadenceDefault); err != nil {
		log.Fatalf("failed to schedule activations: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "weather-extraction",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          cfg.HTTPTimeout + 10*time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-extraction",
			"cadence": cadence.Current(),
		})
	})

	httpapi.RegisterRoutes(app, run, st)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-sigCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
