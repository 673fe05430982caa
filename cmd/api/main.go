package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/harentsoaR/clinic-api/internal/config"
	"github.com/harentsoaR/clinic-api/internal/database"
	"github.com/harentsoaR/clinic-api/internal/handlers"
	"github.com/harentsoaR/clinic-api/internal/metrics"
	"github.com/harentsoaR/clinic-api/internal/middleware"
	"github.com/harentsoaR/clinic-api/internal/scheduling"
	"github.com/harentsoaR/clinic-api/internal/services"
	"github.com/harentsoaR/clinic-api/internal/store"
	"github.com/harentsoaR/clinic-api/internal/utils"
)

func newLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.JSONFormatter{})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}
	log := newLogger(cfg.LogLevel)
	log.WithFields(logrus.Fields{
		"env":          cfg.App.Env,
		"port":         cfg.App.Port,
		"database":     cfg.Mongo.Database,
		"slotInterval": cfg.Scheduling.SlotInterval.String(),
		"sms":          cfg.Notify.TextbeltKey != "",
	}).Info("starting clinic API")

	// --- Database Connection ---
	db, err := database.Init(context.Background(), cfg.Mongo, log)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	st := store.NewMongo(db.DB)
	indexCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := st.EnsureIndexes(indexCtx); err != nil {
		cancel()
		log.Fatalf("indexes: %v", err)
	}
	cancel()

	// --- Initialize Services ---
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	schedMetrics := metrics.NewSchedulingMetrics(registry)

	tokens := utils.NewTokenIssuer(cfg.JWT.Secret, cfg.JWT.Expiry)
	notifier := services.NewNotificationService(cfg.Notify, log)
	calc := scheduling.NewCalculator(cfg.Scheduling.SlotInterval)

	accounts := services.NewAccountService(st, tokens, log)
	booking := services.NewBookingService(st, calc, cfg.Scheduling.DefaultDuration, notifier, schedMetrics, log)
	assign := services.NewAssignmentService(st, schedMetrics, log)
	directory := services.NewDirectoryService(st, assign, log)

	if cfg.Bootstrap.AdminEmail != "" {
		if err := accounts.EnsureAdmin(context.Background(), cfg.Bootstrap.AdminEmail, cfg.Bootstrap.AdminPassword); err != nil {
			log.Fatalf("bootstrap admin: %v", err)
		}
	}

	h := handlers.NewHandler(accounts, booking, directory)
	if err := handlers.RegisterValidators(); err != nil {
		log.Fatalf("validators: %v", err)
	}

	// --- Gin Router ---
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.App.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: true,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	h.Routes(r, tokens)

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infof("Starting server on port %s", cfg.App.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("http shutdown")
	}
	notifier.Wait()
	if err := db.Shutdown(ctx); err != nil {
		log.WithError(err).Error("database shutdown")
	}
}
