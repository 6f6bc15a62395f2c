package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/favicon"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/wandernook/wandernook/app/controllers"
	"github.com/wandernook/wandernook/internal/pkg/billing"
	"github.com/wandernook/wandernook/internal/pkg/cache"
	"github.com/wandernook/wandernook/internal/pkg/config"
	"github.com/wandernook/wandernook/internal/pkg/database"
	"github.com/wandernook/wandernook/internal/pkg/env"
	"github.com/wandernook/wandernook/internal/pkg/hcaptcha"
	"github.com/wandernook/wandernook/internal/pkg/invoice"
	"github.com/wandernook/wandernook/internal/pkg/jobqueue"
	"github.com/wandernook/wandernook/internal/pkg/leads"
	"github.com/wandernook/wandernook/internal/pkg/mail"
	"github.com/wandernook/wandernook/internal/pkg/metrics"
	"github.com/wandernook/wandernook/internal/pkg/newsletter"
	"github.com/wandernook/wandernook/internal/pkg/router"
	"github.com/wandernook/wandernook/internal/pkg/s3archive"
	"github.com/wandernook/wandernook/internal/pkg/session"
	"github.com/wandernook/wandernook/internal/pkg/shopify"
	"github.com/wandernook/wandernook/internal/pkg/tracking"
)

const archiveBacklogInterval = 15 * time.Minute

func main() {
	env.SetupEnvFile()
	cfg := config.Load()

	app, jobs, err := NewApplication(cfg)
	if err != nil {
		log.Fatalf("[Main] Startup failed: %v", err)
	}
	if jobs != nil {
		jobs.Start()
	}

	go func() {
		if err := app.Listen(fmt.Sprintf("%s:%s", cfg.App.Host, cfg.App.Port)); err != nil {
			log.Errorf("[Main] Server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("[Main] Shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Warnf("[Main] Shutdown: %v", err)
	}
	if jobs != nil {
		jobs.Stop()
	}
	_ = cache.Close()
}

// NewApplication wires every dependency and returns the fiber app together
// with the background job manager, which is nil when archiving is off.
func NewApplication(cfg *config.Config) (*fiber.App, *jobqueue.Manager, error) {
	db, err := database.Setup(cfg.Database, cfg.App.IsDev())
	if err != nil {
		return nil, nil, fmt.Errorf("database: %w", err)
	}
	rdb := cache.Setup(cfg.Cache)

	basePath := findBasePath()
	if cfg.Invoice.PublicDir == "./public" {
		cfg.Invoice.PublicDir = basePath + "public"
	}

	billingService := billing.NewServiceFromDB(db, cfg)
	mailer := mail.NewDispatcher(cfg.Mail)
	tracker := tracking.NewTracker(tracking.NewStore(db))

	renderer := invoice.NewRenderer(cfg.Invoice, cfg.App.SiteURL)
	invoices := invoice.NewService(invoice.NewRepository(db), billingService, mailer, renderer)
	invoices.UsePDFCache(cache.NewStore(rdb, "invoice:pdf:"), cfg.Invoice.PDFCacheTTL)

	jobs := setupArchive(cfg, rdb, invoices)

	sessions := session.NewAdminSessions(cfg.Admin, !cfg.App.IsDev(), session.RedisStorage(rdb))
	shop := shopify.NewClient(cfg.Shopify)

	app := fiber.New(fiber.Config{
		Views:             controllers.ViewEngine(basePath+"views", renderer.Location()),
		PassLocalsToViews: true,
		BodyLimit:         1 << 20,
		ProxyHeader:       fiber.HeaderXForwardedFor,
	})

	app.Use(favicon.New(favicon.Config{
		File:         basePath + "public/favicon.ico",
		URL:          "/favicon.ico",
		CacheControl: "public, max-age=604800",
	}))
	app.Use(recover.New(), logger.New(), metrics.Middleware())

	metricsHandlers := []fiber.Handler{}
	if cfg.Metrics.User != "" {
		metricsHandlers = append(metricsHandlers, basicauth.New(basicauth.Config{
			Users: map[string]string{cfg.Metrics.User: cfg.Metrics.Password},
		}))
	}
	metricsHandlers = append(metricsHandlers, adaptor.HTTPHandler(promhttp.Handler()))
	app.Get("/metrics", metricsHandlers...)

	app.Static("/", basePath+"public", fiber.Static{
		CacheDuration: 15 * time.Second,
		Compress:      true,
	})

	// SWAGGER / OPENAPI
	app.Use(swagger.New(swagger.Config{
		BasePath: "/docs/api/",
		FilePath: basePath + "public/docs/v1/openapi.yml",
		Path:     "v1",
	}))

	router.InstallRouter(app, router.Handlers{
		Autopay:    controllers.NewAutopayController(billingService, invoices, tracker, cfg.Razorpay),
		Shopify:    controllers.NewShopifyController(shop, billingService, cfg.Shopify.WebhookSecret),
		Invoice:    controllers.NewInvoiceController(invoices),
		Admin:      controllers.NewAdminController(sessions, cfg.Admin.Password, invoices),
		Newsletter: controllers.NewNewsletterController(newsletter.NewService(newsletter.NewRepository(db), mailer, tracker), hcaptcha.NewVerifier(cfg.Captcha.HCaptchaSecret)),
		Conversion: controllers.NewConversionController(tracker),
		Sample:     controllers.NewSampleController(leads.NewService(leads.NewRepository(db), tracker, cfg.Leads, cfg.App.SiteURL)),
		Sessions:   sessions,
		CronSecret: cfg.Admin.CronSecret,
		Health: map[string]controllers.HealthCheck{
			"database": pingDatabase(db),
			"cache":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		},
		LimiterStorage: session.RedisStorage(rdb),
		SecureCookies:  !cfg.App.IsDev(),
		AllowOrigins:   cfg.App.SiteURL,
	})

	return app, jobs, nil
}

// setupArchive connects the S3 archive and the queue that feeds it. Without
// a usable bucket invoices are served from the database only.
func setupArchive(cfg *config.Config, rdb *redis.Client, invoices *invoice.Service) *jobqueue.Manager {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := s3archive.NewClient(ctx, cfg.Archive)
	if errors.Is(err, s3archive.ErrDisabled) {
		log.Info("[Archive] Invoice archive disabled")
		return nil
	}
	if err != nil {
		log.Errorf("[Archive] Invoice archive unavailable: %v", err)
		return nil
	}

	queue := jobqueue.NewQueue(rdb, cfg.Jobs.Workers)
	queue.Register(jobqueue.JobTypeInvoiceArchive, jobqueue.InvoiceArchiveHandler(invoices))
	invoices.UseArchive(queue, store)
	return jobqueue.NewManager(queue, invoices.EnqueueArchiveBacklog, archiveBacklogInterval)
}

func pingDatabase(db *gorm.DB) controllers.HealthCheck {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}

func findBasePath() string {
	for _, path := range []string{"./", "../../", "../../../"} {
		if _, err := os.Stat(path + "views"); err == nil {
			return path
		}
	}
	log.Warn("[Main] Could not find project root, using working directory")
	return "./"
}
