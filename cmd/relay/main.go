package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/acc-network/relay/internal/config"
	"github.com/acc-network/relay/internal/core/application"
	"github.com/acc-network/relay/internal/core/ports"
	"github.com/acc-network/relay/internal/infrastructure/callback"
	"github.com/acc-network/relay/internal/infrastructure/chain"
	"github.com/acc-network/relay/internal/infrastructure/db"
	"github.com/acc-network/relay/internal/infrastructure/keystore"
	"github.com/acc-network/relay/internal/infrastructure/metrics"
	"github.com/acc-network/relay/internal/infrastructure/relayclient"
	scheduler "github.com/acc-network/relay/internal/infrastructure/scheduler/gocron"
	"github.com/acc-network/relay/internal/interface/web"
	"github.com/getsentry/sentry-go"
	sentrylogrus "github.com/getsentry/sentry-go/logrus"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"
)

// nolint:all
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("invalid config")
	}

	log.SetLevel(log.Level(cfg.LogLevel))
	if path := cfg.LogFilePath(); path != "" {
		log.SetOutput(io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   path,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		}))
	}

	// Deferred calls don't run on log.Exit, flushing happens in the exit handler.
	flushSentry := func() {}
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			AttachStacktrace: true,
			Release:          version,
		}); err != nil {
			log.Fatal(err)
		}

		sentryLevels := []log.Level{log.ErrorLevel, log.FatalLevel, log.PanicLevel}
		sentryHook, err := sentrylogrus.New(sentryLevels, sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			AttachStacktrace: true,
		})
		if err != nil {
			log.Fatal(err)
		}

		log.AddHook(sentryHook)

		flushSentry = func() {
			sentry.Flush(5 * time.Second)
			sentryHook.Flush(5 * time.Second)
		}
		log.RegisterExitHandler(flushSentry)
	}

	log.Info("starting relay...")

	dbConfig := []any{cfg.DbDir()}
	if cfg.DbType == "badger" {
		var logger any
		if log.GetLevel() >= log.DebugLevel {
			logger = log.StandardLogger()
		}
		dbConfig = []any{cfg.DbDir(), logger}
	}
	dbSvc, err := db.NewService(db.ServiceConfig{
		DbType:   cfg.DbType,
		DbConfig: dbConfig,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to open db")
	}

	keys, err := keystore.NewService(cfg.EncryptKey, false)
	if err != nil {
		log.WithError(err).Fatal("failed to init keystore")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	chainClient, oracle, err := chain.NewService(ctx, cfg.ChainConfig())
	cancel()
	if err != nil {
		log.WithError(err).Fatal("failed to connect to chain")
	}

	notifier, err := callback.NewNotifier(cfg.CallbackConfig())
	if err != nil {
		log.WithError(err).Fatal("failed to init callback notifier")
	}

	var (
		registry    *metrics.Registry
		metricsPort ports.Metrics
	)
	if cfg.MetricsEnabled {
		registry = metrics.New()
		metricsPort = registry
	}

	buildInfo := application.BuildInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
	}

	svc, err := application.NewService(
		buildInfo, cfg.AppConfig(), dbSvc, chainClient, oracle, notifier, keys, metricsPort,
	)
	if err != nil {
		log.WithError(err).Fatal("failed to init relay")
	}

	relay, err := relayclient.NewClient(cfg.Endpoint)
	if err != nil {
		log.WithError(err).Fatal("failed to init relay client")
	}
	// The store reader is picked by the reconciler when none is given.
	var statusReader ports.PaymentStatusReader
	if cfg.ReconcilerRemoteStatus {
		statusReader = relay
	}
	reconciler := application.NewDelegateReconciler(svc, relay, statusReader, scheduler.NewScheduler())
	watcher := application.NewPaymentWatcher(svc, scheduler.NewScheduler())

	server, err := web.NewService(cfg.WebConfig(), web.Services{
		Payments: application.NewPaymentService(svc),
		Accounts: application.NewAccountService(svc),
		Shops:    application.NewShopService(svc),
		Metrics:  registry,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to init http server")
	}

	log.RegisterExitHandler(func() {
		server.Stop()
		watcher.Stop()
		reconciler.Stop()
		svc.Stop()
		flushSentry()
	})

	if err := reconciler.Start(cfg.ReconcilerExpression); err != nil {
		log.WithError(err).Fatal("failed to start delegate reconciler")
	}
	if err := watcher.Start(cfg.WatcherExpression); err != nil {
		log.WithError(err).Fatal("failed to start payment watcher")
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, os.Interrupt)
	defer stop()

	g, gctx := errgroup.WithContext(sigCtx)
	serverErr := server.Start()
	g.Go(func() error {
		select {
		case err := <-serverErr:
			return err
		case <-gctx.Done():
			return nil
		}
	})

	log.Infof("relay %s listening on port %d", version, cfg.HTTPPort)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Error("http server stopped")
		log.Exit(1)
	}

	log.Info("shutting down relay...")
	log.Exit(0)
}
