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

	"cdr-platform/internal/audit"
	"cdr-platform/internal/auth"
	"cdr-platform/internal/billing"
	"cdr-platform/internal/classify"
	"cdr-platform/internal/config"
	"cdr-platform/internal/directory"
	"cdr-platform/internal/httpapi"
	"cdr-platform/internal/ingest"
	"cdr-platform/internal/notify"
	"cdr-platform/internal/pattern"
	"cdr-platform/internal/quota"
	"cdr-platform/internal/reporting"
	"cdr-platform/pkg/logger"
	"cdr-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Domain services.
	ledger := quota.NewLedger(db, log)
	dir := directory.NewService(db, ledger, log)
	patterns := pattern.NewStore(db)
	reports := reporting.NewService(reporting.NewSQLRepo(db))
	alerts := notify.NewService(db, notify.LogSink{Log: log}, rdb, dir, ledger, log, notify.Config{
		AdminRecipient: cfg.Alert.AdminEmail,
		Cooldown:       cfg.Alert.Cooldown,
	})
	pipeline := billing.NewPipeline(db, classify.Default(), patterns, dir, ledger, alerts, log)
	auditor := audit.NewService(audit.NewSQLRepo(db))

	// CDR ingest: one TCP listener per company listening port.
	gateway := ingest.NewGateway(pipeline, dir, log)
	supervisor := ingest.NewSupervisor(gateway, rdb, log, ingest.SupervisorConfig{
		Host:                 cfg.CDR.ListenHost,
		DefaultPort:          cfg.CDR.DefaultPort,
		ReadTimeout:          cfg.CDR.ReadTimeout,
		MaxConcurrentPerPort: cfg.CDR.MaxConcurrentPerPort,
	})

	ports, err := dir.ListeningPorts(rootCtx)
	if err != nil {
		log.Error("listening port load failed", "err", err)
		os.Exit(1)
	}
	if err := supervisor.Start(ports); err != nil {
		log.Error("cdr supervisor start failed", "err", err)
		os.Exit(1)
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	h := httpapi.Handlers{
		Auth:       authManager,
		Directory:  dir,
		Patterns:   patterns,
		Billing:    pipeline,
		Ledger:     ledger,
		Reports:    reports,
		Alerts:     alerts,
		Audit:      auditor,
		Supervisor: supervisor,
	}
	cdrHandler := ingest.HTTPHandler{Gateway: gateway, Port: cfg.CDR.DefaultPort}
	registerRoutes(r, h, cdrHandler, auth.RequireAccessToken(authManager), db)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	if err := supervisor.Close(); err != nil {
		log.Error("cdr supervisor shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
