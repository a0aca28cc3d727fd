package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sudo-init-do/binaryhub/internal/admin"
	"github.com/sudo-init-do/binaryhub/internal/alerts"
	"github.com/sudo-init-do/binaryhub/internal/auth"
	"github.com/sudo-init-do/binaryhub/internal/compensation"
	"github.com/sudo-init-do/binaryhub/internal/config"
	"github.com/sudo-init-do/binaryhub/internal/db"
	"github.com/sudo-init-do/binaryhub/internal/logger"
	mware "github.com/sudo-init-do/binaryhub/internal/middleware"
	"github.com/sudo-init-do/binaryhub/internal/repository"
	"github.com/sudo-init-do/binaryhub/internal/wallet"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}
	log, err := logger.NewLogger(cfg.Development)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database connection
	pool, err := db.Init(ctx, cfg.DSN(), log)
	if err != nil {
		log.Fatal("database init failed", "error", err)
	}
	defer pool.Close()

	store := repository.NewRetrying(
		repository.NewPostgresDB(pool, cfg.DBLockTimeout, log),
		cfg.TxMaxAttempts, cfg.TxRetryDelay, log,
	)

	var notifier alerts.Notifier = alerts.Nop{}
	if cfg.AlertsEnabled {
		client := alerts.NewClient(cfg.RedisAddr, cfg.AdminEmail)
		defer client.Close()
		notifier = client

		mailer, err := alerts.NewSMTPMailer(alerts.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
		if err != nil {
			log.Warn("alert worker disabled", "error", err)
		} else {
			worker := alerts.NewWorker(cfg.RedisAddr, mailer, log)
			if err := worker.Start(); err != nil {
				log.Fatal("alert worker failed to start", "error", err)
			}
			defer worker.Shutdown()
			log.Info("Asynq initialized", "addr", cfg.RedisAddr)
		}
	}

	svc := compensation.NewService(store, cfg.Compensation, notifier, log)
	bvHandler := compensation.NewHandler(svc)
	walletHandler := wallet.NewHandler(svc)
	adminHandler := admin.NewHandler(svc)

	e := echo.New()
	e.HideBanner = true

	// Basic middleware
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())
	e.Use(mware.Metrics)

	// Health and root routes
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
	e.GET("/ready", func(c echo.Context) error {
		if db.Conn == nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "not_ready", "error": "db not initialized"})
		}
		if err := db.Conn.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "not_ready", "error": "db unreachable"})
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	authGroup := e.Group("/auth")
	authGroup.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(5)))
	authGroup.POST("/bootstrap-admin", auth.BootstrapAdmin(cfg.JWTSecret, cfg.BootstrapSecret))

	// Protected routes
	jwtAuth := mware.JWTMiddleware(cfg.JWTSecret)

	bv := e.Group("/bv", jwtAuth)
	bv.GET("/summary", bvHandler.Summary)
	bv.GET("/tree", bvHandler.Tree)

	walletGroup := e.Group("/wallet", jwtAuth)
	walletGroup.GET("/balance", walletHandler.Balance)
	walletGroup.GET("/transactions", walletHandler.Transactions)
	walletGroup.POST("/withdraw", walletHandler.Withdraw, mware.RequireRoles(mware.RoleParticipant))

	// Admin routes
	adm := e.Group("/admin", jwtAuth, mware.RequireRoles(mware.RoleAdmin))

	adm.GET("/stats", adminHandler.Stats)
	adm.GET("/participants", adminHandler.ListParticipants)
	adm.POST("/participants", adminHandler.RegisterParticipant)
	adm.POST("/participants/:id/activate", adminHandler.ActivateParticipant)
	adm.POST("/participants/:id/process-matches", adminHandler.ProcessMatches)
	adm.GET("/participants/:id/summary", adminHandler.Summary)
	adm.GET("/participants/:id/tree", adminHandler.Tree)
	adm.POST("/matches/process-all", adminHandler.ProcessAll)
	adm.POST("/payments/approve", adminHandler.ApprovePayment)
	adm.POST("/plan-requests/approve", adminHandler.ApprovePlanRequest)
	adm.POST("/plans", adminHandler.CreatePlan)
	adm.GET("/transactions/user/:id", walletHandler.AdminUserTransactions)

	// Start server
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", "error", err)
		}
	}()
	log.Info("server started", "port", cfg.Port)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
