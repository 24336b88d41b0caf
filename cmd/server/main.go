package main

import (
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/intentdesk/IntentDesk/cmd/bootstrap"
	handlers "github.com/intentdesk/IntentDesk/internal/handler"
	"github.com/intentdesk/IntentDesk/internal/listeners"
	"github.com/intentdesk/IntentDesk/internal/nlusync"
	"github.com/intentdesk/IntentDesk/internal/task"
	"github.com/intentdesk/IntentDesk/pkg/cache"
	"github.com/intentdesk/IntentDesk/pkg/config"
	"github.com/intentdesk/IntentDesk/pkg/logger"
	"github.com/intentdesk/IntentDesk/pkg/metrics"
	"github.com/intentdesk/IntentDesk/pkg/middleware"
	"github.com/intentdesk/IntentDesk/pkg/nlu"
	"github.com/intentdesk/IntentDesk/pkg/utils"
	"go.uber.org/zap"
)

func main() {
	// 1. Parse command line parameters
	mode := flag.String("mode", "", "running environment (development, test, production)")
	initSQL := flag.String("init-sql", "", "path to database init .sql script (optional)")
	flag.Parse()

	if *mode != "" {
		os.Setenv("APP_ENV", *mode)
	}

	// 2. Load global configuration
	if err := config.Load(); err != nil {
		panic("config load failed: " + err.Error())
	}

	// 3. Load log configuration
	if err := logger.Init(&config.GlobalConfig.Log, config.GlobalConfig.Mode); err != nil {
		panic(err)
	}
	defer logger.Sync()

	// 4. Load data source
	db, err := bootstrap.SetupDatabase(os.Stdout, &bootstrap.Options{
		InitSQLPath: *initSQL,
		AutoMigrate: true,
		SeedNonProd: os.Getenv("APP_ENV") != "production",
	})
	if err != nil {
		logger.Error("database setup failed", zap.Error(err))
		return
	}

	addr := config.GlobalConfig.Addr
	logger.Info("checked config",
		zap.String("addr", addr),
		zap.String("db-driver", config.GlobalConfig.DBDriver),
		zap.String("mode", config.GlobalConfig.Mode))

	// 5. Load global cache
	if err := cache.InitGlobalCache(config.GlobalConfig.Cache); err != nil {
		logger.Error("failed to initialize cache", zap.Error(err))
		logger.Info("falling back to default local cache")
	}
	defer cache.CloseGlobalCache()

	// 6. Build the NLU provider. A missing configuration is tolerated: sync
	// records a configuration error per intent instead of calling out.
	var provider nlu.Provider
	if config.GlobalConfig.NLU.Configured() {
		client, err := nlu.NewClient(config.GlobalConfig.NLU)
		if err != nil {
			logger.Error("nlu client init failed", zap.Error(err))
			return
		}
		provider = client
		logger.Info("nlu provider configured",
			zap.String("projectId", config.GlobalConfig.NLU.ProjectID))
	} else {
		logger.Warn("nlu provider not configured, sync will record errors")
	}

	engine := nlusync.New(db, provider)

	// 7. Register event listeners
	listeners.RegisterIntentListeners(db)

	// 8. Start background tasks
	go task.StartSessionSweeper(db)
	scheduler, err := task.StartSyncScheduler(engine, config.GlobalConfig.SyncSchedule)
	if err != nil {
		logger.Error("sync scheduler init failed", zap.Error(err))
		return
	}
	if scheduler != nil {
		defer scheduler.Stop()
	}

	// 9. Initialize gin routing
	if config.GlobalConfig.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false

	// 10. Middleware
	r.Use(metrics.Middleware())

	secret := config.GlobalConfig.SessionSecret
	if secret != "" {
		r.Use(middleware.WithCookieSession(secret, config.GlobalConfig.SessionExpireDays*24*3600))
	} else {
		r.Use(middleware.WithMemSession(utils.RandText(32)))
	}

	r.Use(middleware.CorsMiddleware())
	r.Use(middleware.LoggerMiddleware(logger.L()))
	r.Use(middleware.RateLimiterMiddleware(middleware.RateLimiterConfig{
		Rate:      config.GlobalConfig.RateLimit,
		SkipPaths: []string{"/health", "/metrics"},
	}))

	// 11. Register routes
	h := handlers.NewHandlers(db, engine, provider, cache.GetGlobalCache())
	h.Register(r, config.GlobalConfig.APIPrefix)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", metrics.Handler())

	// 12. Start HTTP server
	httpServer := &http.Server{
		Addr:           addr,
		Handler:        r,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	logger.Info("Starting HTTP server", zap.String("addr", addr))
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("HTTP server run failed", zap.Error(err))
	}
}
