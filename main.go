package main

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"snaplink/internal/cache"
	"snaplink/internal/config"
	"snaplink/internal/controllers"
	"snaplink/internal/database"
	"snaplink/internal/middleware"
	"snaplink/internal/repository"
	"snaplink/internal/sequence"
	"snaplink/internal/service"
	"snaplink/internal/sweeper"
)

func main() {
	cfg := config.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	ctx := context.Background()

	// Write-path database connection.
	db, err := database.NewConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()

	if err := database.RunMigrations(db, "migrations"); err != nil {
		log.WithError(err).Fatal("failed to run migrations")
	}

	// Read replica for reporting queries. Falls back to the primary when no
	// replica is configured.
	replica := db
	if cfg.DatabaseReplicaURL != cfg.DatabaseURL {
		replica, err = database.NewConnection(ctx, cfg.DatabaseReplicaURL)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to replica database")
		}
		defer replica.Close()
	}

	// Redis backs both the link cache and the sequence counter. The service
	// degrades without the cache but not without the counter, so a failed
	// connection here is fatal.
	redisClient, err := cache.NewClient(cfg.RedisURL)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to Redis")
	}

	linkCache := cache.NewRedisCache(redisClient, cfg.CacheDefaultTTL)
	seq := sequence.NewRedisSource(redisClient)

	linkRepo := repository.NewLinkRepository(db, replica)
	linkService := service.NewLinkService(linkRepo, linkCache, seq, cfg.BaseURL, log)

	// Background purge of expired rows; the resolver enforces expiry on its
	// own, this only bounds storage growth.
	go sweeper.New(linkRepo, cfg.SweepInterval, log).Run(ctx)

	shortenerController := controllers.NewShortenerController(linkService, log)
	qrcodeController := controllers.NewQRCodeController(cfg.BaseURL)

	generalRateLimiter := middleware.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	shortenRateLimiter := middleware.NewRateLimiter(rate.Limit(cfg.RateLimitShortenRPS), cfg.RateLimitShortenBurst)
	redirectRateLimiter := middleware.NewRateLimiter(rate.Limit(cfg.RateLimitRedirectRPS), cfg.RateLimitRedirectBurst)

	router := gin.Default()

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Redirect endpoint, the hot path.
	router.GET("/:code", redirectRateLimiter.LimitMiddleware(), shortenerController.RedirectToURL)

	api := router.Group("/api/v1")
	api.Use(generalRateLimiter.LimitMiddleware())
	{
		api.POST("/shorten", shortenRateLimiter.LimitMiddleware(), shortenerController.CreateShortLink)
		api.GET("/urls", shortenerController.GetOwnerLinks)
		api.GET("/url/:code/stats", shortenerController.GetLinkStats)
		api.DELETE("/url/:code", shortenerController.DeleteLink)
		api.GET("/qrcode/:code", qrcodeController.GenerateQRCode)
	}

	log.WithField("addr", cfg.ListenAddr).Info("server starting")
	if err := router.Run(cfg.ListenAddr); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}
