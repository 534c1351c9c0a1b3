package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/digkill/CapCalWeb/internal/attribution"
	"github.com/digkill/CapCalWeb/internal/auth"
	"github.com/digkill/CapCalWeb/internal/backend"
	"github.com/digkill/CapCalWeb/internal/config"
	"github.com/digkill/CapCalWeb/internal/contact"
	"github.com/digkill/CapCalWeb/internal/dashboard"
	"github.com/digkill/CapCalWeb/internal/database"
	"github.com/digkill/CapCalWeb/internal/deeplink"
	"github.com/digkill/CapCalWeb/internal/fetch"
	"github.com/digkill/CapCalWeb/internal/metrics"
	"github.com/digkill/CapCalWeb/internal/notify"
	"github.com/digkill/CapCalWeb/internal/promoter"
	"github.com/digkill/CapCalWeb/internal/repository"
	"github.com/digkill/CapCalWeb/internal/session"
	"github.com/digkill/CapCalWeb/internal/storage"
	"github.com/digkill/CapCalWeb/internal/web"
	"github.com/digkill/CapCalWeb/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logr := logger.New(cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	fetcher := fetch.NewClient(nil, fetch.Options{
		Attempts: cfg.RetryAttempts,
		Delay:    cfg.RetryDelay(),
		Timeout:  cfg.RequestTimeout(),
		Observer: m,
		Log:      logr,
	})
	remote := backend.NewClient(backend.EndpointsFromConfig(cfg), fetcher, logr)

	var store session.Store
	switch cfg.SessionStore {
	case config.SessionStoreMySQL:
		db, err := database.Connect(ctx, cfg.MySQLDSN)
		if err != nil {
			log.Fatalf("database connect: %v", err)
		}
		defer db.Close()
		if err := database.Migrate(ctx, db); err != nil {
			log.Fatalf("database migrate: %v", err)
		}
		store = repository.NewSessionRepository(db)
	default:
		logr.Warn("using in-memory session store; sessions are lost on restart")
		store = session.NewMemoryStore()
	}

	notifier, err := notify.NewTelegramFromToken(cfg.TelegramBotToken, cfg.TelegramChatID, logr)
	if err != nil {
		log.Fatalf("telegram notifier: %v", err)
	}

	var archiver dashboard.Archiver
	if cfg.ReportArchiveEnabled {
		uploader, err := storage.NewUploader(storage.Config{
			Endpoint:      cfg.S3Endpoint,
			Region:        cfg.S3Region,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			Bucket:        cfg.S3Bucket,
			PublicBaseURL: cfg.S3PublicBaseURL,
			UsePathStyle:  cfg.S3UsePathStyle,
			Prefix:        cfg.S3Prefix,
		})
		if err != nil {
			log.Fatalf("storage uploader: %v", err)
		}
		archiver = uploader
	}

	recorder := attribution.NewRecorder(
		remote,
		attribution.NewIPResolver(cfg.LookupServices(), fetcher, logr),
		attribution.NewLocalIPSource(cfg.LocalIPDiscovery, cfg.LocalIPStub),
		m,
		cfg.AttributionTimeout(),
		logr,
	)

	server := web.NewServer(web.Config{
		Addr:               cfg.ListenAddr,
		AppID:              cfg.AppID,
		CSRFKey:            cfg.CSRFKey,
		SecureCookies:      cfg.SecureCookies,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		MetricsEnabled:     cfg.MetricsEnabled,
		TrustProxyHeaders:  cfg.TrustProxyHeaders,
	}, web.Deps{
		Sessions: session.NewManager(store, session.Options{
			CookieName: cfg.SessionCookieName,
			MaxAge:     cfg.SessionMaxAge(),
			Secure:     cfg.SecureCookies,
		}, logr),
		Auth:      auth.New(cfg.LoginMode, remote, logr),
		Dashboard: dashboard.NewLoader(remote, archiver, logr),
		Promoters: promoter.NewService(remote, notifier, promoter.Config{
			BaseURL:    cfg.PromoBaseURL,
			CodePrefix: cfg.PromoCodePrefix,
			PageSize:   cfg.PromotersPageSize,
		}, logr),
		Contact: contact.NewService(remote, notifier, m, contact.Config{
			To:            cfg.ContactTo,
			From:          cfg.ContactFrom,
			Subject:       cfg.ContactSubject,
			RatePerMinute: cfg.ContactRatePerMinute,
			RateBurst:     cfg.ContactRateBurst,
		}, logr),
		DeepLinks: deeplink.NewRouter(deeplink.Config{
			AppID:          cfg.AppID,
			AndroidPackage: cfg.AndroidPackage,
			IOSAppID:       cfg.IOSAppID,
		}),
		Attribution: recorder,
		Metrics:     m,
	}, logr)

	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logr.Error("web server stopped", "err", err)
	}
}
