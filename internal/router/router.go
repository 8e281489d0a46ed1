package router

import (
	"net/http"

	"habitpact/config"
	"habitpact/internal/catalog"
	"habitpact/internal/handler"
	"habitpact/internal/logging"
	"habitpact/internal/metrics"
	"habitpact/internal/middleware"
	"habitpact/internal/realtime"
	"habitpact/internal/repository"
	"habitpact/internal/service"
	"habitpact/internal/ws"
	"habitpact/pkg/cloudinary"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Options carries the process-level collaborators. Zero values fall back to
// in-process defaults: a local feed and broker, and no uploads.
type Options struct {
	Log     logrus.FieldLogger
	Cloud   cloudinary.Uploader
	Feed    *realtime.Feed
	Broker  realtime.Broker
	Limiter *middleware.KeyedRateLimiter
}

func Setup(cfg *config.Config, db *gorm.DB, opts Options) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	log := opts.Log
	if log == nil {
		log = logging.Discard()
	}
	feed := opts.Feed
	if feed == nil {
		feed = realtime.NewFeed()
	}
	broker := opts.Broker
	if broker == nil {
		broker = realtime.NewLocalBroker(feed)
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = middleware.NewKeyedRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(metrics.Middleware())

	// Repositories
	userRepo := repository.NewUserRepository(db)
	habitRepo := repository.NewHabitRepository(db)
	partnershipRepo := repository.NewPartnershipRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	nudgeRepo := repository.NewNudgeRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	hub := ws.NewHub()

	// Services
	fcmSvc := service.NewFCMService(cfg.Firebase.ServiceAccountPath, log)
	if fcmSvc != nil {
		log.Info("push notifications enabled")
	} else if cfg.Firebase.ServiceAccountPath != "" {
		log.Warn("push notifications disabled: failed to init (check service account file)")
	} else {
		log.Info("push notifications disabled: set FIREBASE_SERVICE_ACCOUNT_PATH to enable")
	}
	notifSvc := service.NewNotificationService(notificationRepo, userRepo, fcmSvc, hub, log)
	habits := catalog.New(habitRepo)
	mirrorSvc := service.NewMirrorService(habits, log)
	partnershipSvc := service.NewPartnershipService(partnershipRepo, userRepo, habits, mirrorSvc, notifSvc, log)
	progressSvc := service.NewProgressService(progressRepo, partnershipRepo, feed, broker, log)
	nudgeSvc := service.NewNudgeService(nudgeRepo, partnershipRepo, notifSvc, log)

	// Handlers
	partnershipHandler := handler.NewPartnershipHandler(partnershipSvc)
	progressHandler := handler.NewProgressHandler(partnershipSvc, progressSvc)
	nudgeHandler := handler.NewNudgeHandler(partnershipSvc, nudgeSvc)
	notificationHandler := handler.NewNotificationHandler(notificationRepo, userRepo)
	avatarHandler := handler.NewAvatarHandler(opts.Cloud, userRepo)

	authMw := middleware.AuthRequired(&cfg.JWT)
	rateMw := middleware.RateLimit(limiter)

	api := r.Group("/api/v1")
	api.Use(authMw, rateMw)
	{
		p := api.Group("/partnerships")
		{
			p.POST("", partnershipHandler.Invite)
			p.POST("/:id/accept", partnershipHandler.Accept)
			p.POST("/:id/decline", partnershipHandler.Decline)
			p.POST("/:id/cancel", partnershipHandler.Cancel)
			p.DELETE("/:id", partnershipHandler.Remove)

			p.PUT("/:id/progress", progressHandler.Record)
			p.DELETE("/:id/progress/:date", progressHandler.Clear)
			p.GET("/:id/progress", progressHandler.Get)

			p.GET("/:id/nudge", nudgeHandler.Status)
			p.POST("/:id/nudge", nudgeHandler.Send)
		}

		me := api.Group("/me")
		{
			me.GET("/partnerships", partnershipHandler.ListActive)
			me.GET("/partnerships/pending", partnershipHandler.ListPending)
			me.GET("/partnerships/nudges", nudgeHandler.LastTimes)
			me.GET("/invite-options", partnershipHandler.InviteOptions)

			me.GET("/notifications", notificationHandler.List)
			me.PUT("/notifications/:id/read", notificationHandler.MarkRead)
			me.POST("/fcm-token", notificationHandler.RegisterFCMToken)
			me.POST("/avatar", avatarHandler.Upload)
		}
	}

	r.GET("/ws", handler.UpgradeRealtimeWS(&cfg.JWT, hub, partnershipSvc, progressSvc, log))
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}
