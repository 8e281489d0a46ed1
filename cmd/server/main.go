package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"habitpact/config"
	"habitpact/internal/database"
	"habitpact/internal/logging"
	"habitpact/internal/middleware"
	"habitpact/internal/realtime"
	"habitpact/internal/router"
	"habitpact/pkg/cloudinary"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.Log.Level, cfg.Log.Format)

	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("database")
	}
	if err := database.AutoMigrate(db); err != nil {
		log.WithError(err).Fatal("migrate")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := router.Options{
		Log:     log,
		Feed:    realtime.NewFeed(),
		Limiter: middleware.NewKeyedRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst),
	}
	go opts.Limiter.RunSweeper(ctx.Done())

	if cfg.Cloudinary.CloudName != "" {
		cloud, err := cloudinary.NewUploader(cfg.Cloudinary.CloudName, cfg.Cloudinary.APIKey, cfg.Cloudinary.APISecret)
		if err != nil {
			log.WithError(err).Fatal("cloudinary")
		}
		opts.Cloud = cloud
	}

	if cfg.Redis.Addr != "" {
		rdb := realtime.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.WithError(err).Fatal("redis")
		}
		broker := realtime.NewRedisBroker(rdb, cfg.Redis.Channel, opts.Feed, logging.Component(log, "redis"))
		opts.Broker = broker
		go func() {
			if err := broker.Run(ctx); err != nil {
				log.WithError(err).Error("redis relay stopped")
			}
		}()
	} else {
		log.Info("REDIS_ADDR not set, progress events stay in this process")
	}

	engine := router.Setup(cfg, db, opts)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		log.Infof("server listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("listen")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown")
	}
	log.Info("server stopped")
}
