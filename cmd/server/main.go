package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/example/taxi-dispatch/internal/config"
	"github.com/example/taxi-dispatch/internal/dispatch"
	"github.com/example/taxi-dispatch/internal/eta"
	"github.com/example/taxi-dispatch/internal/geo"
	httpapi "github.com/example/taxi-dispatch/internal/http"
	"github.com/example/taxi-dispatch/internal/ingest"
	"github.com/example/taxi-dispatch/internal/lifecycle"
	"github.com/example/taxi-dispatch/internal/logging"
	"github.com/example/taxi-dispatch/internal/payments"
	"github.com/example/taxi-dispatch/internal/store"
)

func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		logging.NewLogger("error").Error("config load failed", "error", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	var (
		requests store.RequestStore
		drivers  store.DriverStore
	)
	if cfg.PGDSN != "" {
		if cfg.RunMigrations {
			runMigrations(cfg.PGDSN, logger)
		}
		pg, err := store.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			logger.Error("postgres unavailable", "error", err)
			os.Exit(1)
		}
		requests = pg.Requests()
		drivers = pg.Drivers()
		logger.Info("using postgres store")
	} else {
		frs, err := store.NewFileRequestStore(cfg.DataDir)
		if err != nil {
			logger.Error("file store init failed", "error", err)
			os.Exit(1)
		}
		fds, err := store.NewFileDriverStore(cfg.DataDir)
		if err != nil {
			logger.Error("file store init failed", "error", err)
			os.Exit(1)
		}
		requests = frs
		drivers = fds
		logger.Info("using file store", "dir", cfg.DataDir)
	}

	var idx geo.DriverIndex
	if cfg.RedisAddr != "" {
		idx = geo.NewRedisIndex(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisGeoKey)
		logger.Info("using redis geo index", "addr", cfg.RedisAddr)
	} else {
		mem := geo.NewIndex()
		if all, err := drivers.All(context.Background()); err == nil {
			for _, d := range all {
				mem.Upsert(d)
			}
		}
		idx = mem
	}

	var kp *ingest.KafkaProducer
	if len(cfg.KafkaBrokers) > 0 {
		kp = ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
	}

	wsreg := dispatch.NewWSRegistry(logger)

	estimator := &eta.Estimator{SpeedKmh: cfg.AverageSpeedKmh}
	if cfg.OSRMEndpoint != "" {
		estimator.Routing = eta.NewOSRMClient(cfg.OSRMEndpoint)
		estimator.Cache = eta.NewCache(5 * time.Minute)
	}

	lc := &lifecycle.Service{
		Requests:      requests,
		Drivers:       drivers,
		Eta:           estimator,
		BufferMinutes: cfg.BufferMinutes,
		AutoBusy:      cfg.AutoBusy,
		Notify:        wsreg,
		Logger:        logger,
	}
	if cfg.StripeAPIKey != "" {
		lc.Fares = payments.NewStripeFares(cfg.StripeAPIKey, cfg.StripeCurrency)
		logger.Info("stripe fares enabled")
	}

	srv := httpapi.NewServer(lc, requests, drivers, idx, kp, wsreg, cfg.AverageSpeedKmh, logger)

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("dispatch api listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}

func runMigrations(dsn string, logger *slog.Logger) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		logger.Error("migration db open error", "error", err)
		return
	}
	defer db.Close()
	b, err := os.ReadFile(filepath.Join("migrations", "001_create_dispatch.sql"))
	if err != nil {
		logger.Error("migration read error", "error", err)
		return
	}
	if _, err := db.Exec(string(b)); err != nil {
		logger.Error("migration exec error", "error", err)
		return
	}
	logger.Info("migration applied", "file", "001_create_dispatch.sql")
}
