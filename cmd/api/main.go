package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"geoattend/internal/attendance"
	"geoattend/internal/config"
	"geoattend/internal/httpmiddleware"
	"geoattend/internal/location"
	"geoattend/internal/notify"
	"geoattend/internal/session"
	"geoattend/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	redisClient := store.NewRedis(cfg.RedisAddr)

	var db *store.DB
	var docs store.Store
	if cfg.StoreBackend == "memory" {
		docs = store.NewMemory()
	} else {
		var err error
		db, err = store.NewDB(cfg.DatabaseURL)
		if db == nil {
			log.Fatalf("database open failed: %v", err)
		}
		if err != nil {
			log.Printf("warning: db not reachable: %v", err)
		}
		pg := store.NewPostgres(db.Client, redisClient.Client)
		if err := pg.EnsureSchema(context.Background()); err != nil {
			log.Printf("warning: schema setup failed: %v", err)
		}
		docs = pg
	}
	defer func() {
		if db != nil {
			_ = db.Close()
		}
	}()

	var notifier notify.Notifier
	var tracker location.Tracker
	if cfg.StoreBackend == "memory" {
		notifier = notify.NewInMemory()
		tracker = location.NewMemoryTracker(cfg.LocationTTL)
	} else {
		notifier = notify.NewRedis(redisClient.Client, 100)
		tracker = location.NewRedisTracker(redisClient.Client, cfg.LocationTTL, cfg.LocationTimeout)
	}

	sessions := session.NewManager(docs, notifier)
	defer sessions.Close()

	evaluator := attendance.NewEvaluator(tracker, notifier, cfg.GeofenceRadiusM)

	// One timer drives all automatic attendance decisions.
	evalCtx, evalCancel := context.WithCancel(context.Background())
	defer evalCancel()
	go runEvaluatorLoop(evalCtx, cfg.TickPeriod, tracker, sessions, evaluator)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewRateLimiter(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db != nil || cfg.StoreBackend == "memory"
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	registerRoutes(r, cfg, sessions, tracker, notifier)

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")
	evalCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// runEvaluatorLoop ticks the evaluator for every actively reporting user.
func runEvaluatorLoop(ctx context.Context, period time.Duration, tracker location.Tracker, sessions *session.Manager, evaluator *attendance.Evaluator) {
	if period <= 0 {
		period = time.Minute
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	log.Printf("evaluator loop started, period %s", period)
	for {
		select {
		case <-ticker.C:
			users, err := tracker.ActiveUsers(ctx)
			if err != nil {
				log.Printf("active user lookup failed: %v", err)
				continue
			}
			for _, userID := range users {
				sess, err := sessions.Get(ctx, userID)
				if err != nil {
					log.Printf("session for %s failed: %v", userID, err)
					continue
				}
				if err := evaluator.Tick(ctx, sess); err != nil {
					log.Printf("evaluator tick for %s: %v", userID, err)
				}
			}
		case <-ctx.Done():
			log.Println("evaluator loop stopped")
			return
		}
	}
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
