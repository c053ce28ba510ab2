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

	"agri-ivr/internal/advisory"
	"agri-ivr/internal/audit"
	"agri-ivr/internal/auth"
	"agri-ivr/internal/config"
	"agri-ivr/internal/httpapi"
	"agri-ivr/internal/ivr"
	"agri-ivr/internal/session"
	"agri-ivr/internal/verify"
	"agri-ivr/pkg/logger"
	"agri-ivr/pkg/utils"

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

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	checks := map[string]httpapi.Check{}

	// Sessions
	var (
		store session.Store
		locks session.Locker
	)
	switch cfg.Session.Backend {
	case config.SessionBackendRedis:
		rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		store = session.NewRedisStore(rdb, cfg.Session.TTL, log)
		// The lock must outlive the slowest turn, which is bounded by the advisory timeout.
		locks = session.NewRedisLocker(rdb, cfg.Advisory.Timeout+10*time.Second, log)
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	default:
		log.Warn("using in-memory sessions; state is lost on restart and not shared across replicas")
		store = session.NewMemoryStore()
		locks = session.NewKeyedMutex()
	}

	// Audit trail
	var (
		auditRepo audit.Repository = audit.LogRepo{Log: log}
		auditList httpapi.AuditLister
	)
	if cfg.AuditEnabled() {
		db, err := utils.OpenPostgres(rootCtx, cfg.PostgresDSN(), utils.PostgresPoolConfig{})
		if err != nil {
			log.Error("postgres init failed", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		pg := audit.NewPostgresRepo(db)
		if err := pg.EnsureSchema(rootCtx); err != nil {
			log.Error("audit schema init failed", "err", err)
			os.Exit(1)
		}
		auditRepo, auditList = pg, pg
		checks["postgres"] = func(ctx context.Context) error { return utils.HealthCheck(ctx, db, time.Second) }
	}
	auditSvc := audit.NewService(auditRepo)

	bridge := advisory.NewBridge(advisory.Config{URL: cfg.Advisory.URL, Timeout: cfg.Advisory.Timeout}, log)

	controller, err := ivr.NewController(ivr.Options{
		Store:   store,
		Locker:  locks,
		Policy:  verify.DemoPolicy(),
		Advisor: bridge,
		Audit:   auditSvc,
		Limits: ivr.Limits{
			MaxUsernameAttempts: cfg.IVR.MaxUsernameAttempts,
			MaxPINAttempts:      cfg.IVR.MaxPINAttempts,
		},
		Language: cfg.IVR.Language,
		Logger:   log,
	})
	if err != nil {
		log.Error("ivr init failed", "err", err)
		os.Exit(1)
	}

	var authManager *auth.Manager
	if cfg.OperatorAPIEnabled() {
		authManager, err = auth.NewManager(cfg.Auth)
		if err != nil {
			log.Error("auth init failed", "err", err)
			os.Exit(1)
		}
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, routeDeps{
		cfg:        cfg,
		controller: controller,
		health:     httpapi.Health{Checks: checks},
		api: httpapi.Handlers{
			Auth:      authManager,
			APIKey:    cfg.Auth.AdminAPIKey,
			Sessions:  store,
			Locks:     locks,
			Audit:     auditSvc,
			AuditList: auditList,
		},
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Gateways wait on the advisory round trip.
		WriteTimeout: cfg.Advisory.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("ivr listening", "addr", srv.Addr, "session_backend", cfg.Session.Backend, "audit_db", cfg.AuditEnabled())
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
}
