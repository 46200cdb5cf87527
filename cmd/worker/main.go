package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/supratours/virements/internal/app"
	"github.com/supratours/virements/internal/attachments"
	jobmetrics "github.com/supratours/virements/internal/jobs"
	"github.com/supratours/virements/internal/masterdata/contracts"
	"github.com/supratours/virements/internal/payables"
	"github.com/supratours/virements/internal/platform/db"
	"github.com/supratours/virements/internal/view"
	"github.com/supratours/virements/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	files, err := attachments.NewLocalStore(cfg.UploadDir)
	if err != nil {
		logger.Error("init upload store", slog.Any("error", err))
		os.Exit(1)
	}
	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	metrics := jobmetrics.NewMetrics(nil)
	payablesService := payables.NewService(payables.NewRepository(pool), files, payables.NewReconciler(nil), payables.Config{
		CompanyName: cfg.CompanyName,
		OVStartNum:  cfg.OVStartNum,
	}, logger)
	contractService := contracts.NewService(contracts.NewRepository(pool), files, logger)

	mailJob := &jobs.MailJob{
		Mailer: jobs.NewSMTPMailer(jobs.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		}),
		Logger:  logger,
		Metrics: metrics,
	}
	digestJob := &jobs.DigestJob{
		Invoices:  payablesService,
		Contracts: contractService,
		Renderer:  templates,
		Mail:      jobClient,
		Recipients: jobs.DigestRecipients{
			Invoices:       cfg.DigestInvoicesTo,
			PurchaseOrders: cfg.DigestPurchaseOrdersTo,
		},
		Logger:  logger,
		Metrics: metrics,
	}

	schedule, err := jobs.Schedule(jobs.CronSpecs{
		InvoiceDigest:       cfg.CronInvoiceDigest,
		PurchaseOrderDigest: cfg.CronPurchaseOrderDigest,
	})
	if err != nil {
		logger.Error("build schedule", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: redisOpts,
		Logger:    logger,
		Handlers:  jobs.Handlers(mailJob, digestJob),
		Cron:      schedule,
		Location:  cfg.Location(),
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("worker metrics server", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker started", slog.Int("cron_entries", len(schedule)))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
