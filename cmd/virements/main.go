package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/supratours/virements/internal/app"
	"github.com/supratours/virements/internal/attachments"
	"github.com/supratours/virements/internal/auth"
	"github.com/supratours/virements/internal/dashboard"
	"github.com/supratours/virements/internal/entries"
	"github.com/supratours/virements/internal/internships"
	"github.com/supratours/virements/internal/masterdata/accounts"
	"github.com/supratours/virements/internal/masterdata/beneficiaries"
	"github.com/supratours/virements/internal/masterdata/contracts"
	"github.com/supratours/virements/internal/notify"
	"github.com/supratours/virements/internal/observability"
	"github.com/supratours/virements/internal/omra"
	"github.com/supratours/virements/internal/payables"
	"github.com/supratours/virements/internal/platform/cache"
	"github.com/supratours/virements/internal/platform/db"
	"github.com/supratours/virements/internal/rbac"
	"github.com/supratours/virements/internal/shared"
	"github.com/supratours/virements/internal/tenders"
	"github.com/supratours/virements/internal/view"
	"github.com/supratours/virements/jobs"
	"github.com/supratours/virements/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	if cfg.MigrateOnStart {
		version, err := db.Migrate(cfg.PGDSN)
		if err != nil {
			logger.Error("migrate", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("schema migrated", slog.Uint64("version", uint64(version)))
	}

	dbpool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

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
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	sessionManager := shared.NewSessionManager(redisClient, "virements_session", cfg.SessionTTL, cfg.IsProduction())

	rbacService := rbac.NewService(dbpool)
	if err := rbacService.EnsureDefaults(ctx); err != nil {
		logger.Error("seed permissions", slog.Any("error", err))
		os.Exit(1)
	}
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger}

	authService := auth.NewService(auth.NewRepository(dbpool))
	authService.SetAuditor(shared.NewAuditLogger(dbpool))

	notifier := notify.NewService(jobClient, templates, authService, notify.Recipients{
		TenderTo:      cfg.TenderNotifyTo,
		TenderCc:      cfg.TenderNotifyCc,
		OmraTo:        cfg.OmraNotifyTo,
		OmraCc:        cfg.OmraNotifyCc,
		InternshipBcc: cfg.InternshipNotifyBcc,
	}, logger)

	pdfClient := report.NewClient(cfg.GotenbergURL)
	printer := report.NewDocumentPrinter(pdfClient, templates, cfg.CompanyName)

	beneficiaryService := beneficiaries.NewService(beneficiaries.NewRepository(dbpool), cfg.CompanyName)
	accountService := accounts.NewService(accounts.NewRepository(dbpool), files, logger)
	contractService := contracts.NewService(contracts.NewRepository(dbpool), files, logger)

	dashboardService := dashboard.NewService(dashboard.NewRepository(dbpool), dashboard.NewCache(redisClient, cfg.DashboardCacheTTL), logger)

	payablesService := payables.NewService(payables.NewRepository(dbpool), files, payables.NewReconciler(metrics), payables.Config{
		CompanyName: cfg.CompanyName,
		OVStartNum:  cfg.OVStartNum,
	}, logger)
	payablesService.SetNotifier(notifier)
	payablesService.SetChangeListener(dashboardService)

	tenderService := tenders.NewService(tenders.NewRepository(dbpool), files, logger)
	tenderService.SetNotifier(notifier)
	omraService := omra.NewService(omra.NewRepository(dbpool), files, logger)
	omraService.SetNotifier(notifier)
	internshipService := internships.NewService(internships.NewRepository(dbpool), files, logger)
	internshipService.SetNotifier(notifier)
	entryService := entries.NewService(entries.NewRepository(dbpool), files, printer, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		Metrics:        metrics,
		RBAC:           rbacMiddleware,

		AuthHandler:          auth.NewHandler(logger, authService, sessionManager),
		BeneficiariesHandler: beneficiaries.NewHandler(logger, beneficiaryService, rbacMiddleware),
		AccountsHandler:      accounts.NewHandler(logger, accountService, files, rbacMiddleware),
		ContractsHandler:     contracts.NewHandler(logger, contractService, files, rbacMiddleware),
		PayablesHandler: payables.NewHandler(logger, payablesService, files, accountService, printer,
			shared.NewIdempotencyStore(dbpool), rbacMiddleware),
		DashboardHandler:   dashboard.NewHandler(logger, dashboardService, rbacMiddleware),
		TendersHandler:     tenders.NewHandler(logger, tenderService, files, rbacMiddleware),
		OmraHandler:        omra.NewHandler(logger, omraService, files, rbacMiddleware),
		InternshipsHandler: internships.NewHandler(logger, internshipService, files, rbacMiddleware),
		EntriesHandler:     entries.NewHandler(logger, entryService, files, rbacMiddleware),
		RBACHandler:        rbac.NewHandler(logger, rbacService, rbacMiddleware),
		JobHandler:         jobs.NewHandler(inspector, logger),
		ReportHandler:      report.NewHandler(pdfClient, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
