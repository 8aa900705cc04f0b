package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	apirest "github.com/kasuganosora/isoarpg/api/rest"
	"github.com/kasuganosora/isoarpg/api/sse"
	apows "github.com/kasuganosora/isoarpg/api/ws"
	"github.com/kasuganosora/isoarpg/audit"
	"github.com/kasuganosora/isoarpg/cache"
	"github.com/kasuganosora/isoarpg/config"
	dbadapter "github.com/kasuganosora/isoarpg/db"
	"github.com/kasuganosora/isoarpg/game/action"
	"github.com/kasuganosora/isoarpg/game/player"
	"github.com/kasuganosora/isoarpg/game/stats"
	"github.com/kasuganosora/isoarpg/game/world"
	mw "github.com/kasuganosora/isoarpg/middleware"
	"github.com/kasuganosora/isoarpg/model"
	"github.com/kasuganosora/isoarpg/resource"
	"github.com/kasuganosora/isoarpg/scheduler"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	if cfg.Server.AdminKey == "" {
		logger.Warn("server.admin_key is not set; admin endpoints are disabled")
	}
	if cfg.Security.JWTSecret == "" {
		logger.Fatal("security.jwt_secret is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		logger.Fatal("db open", zap.Error(err))
	}
	if err := model.AutoMigrate(db); err != nil {
		logger.Fatal("db migrate", zap.Error(err))
	}
	logger.Info("DB initialized", zap.String("mode", cfg.Database.Mode))

	// ---- Cache / PubSub ----
	cacheConfig := cache.CacheConfig{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
		LocalPubSubBuf:  cfg.Cache.LocalPubSubBuf,
	}
	c, err := cache.NewCache(cacheConfig)
	if err != nil {
		logger.Fatal("cache", zap.Error(err))
	}
	defer c.Close()
	pubsub, err := cache.NewPubSub(cacheConfig)
	if err != nil {
		logger.Fatal("pubsub", zap.Error(err))
	}
	logger.Info("Cache initialized", zap.Bool("redis", cfg.Cache.RedisAddr != ""))

	// ---- Combat log / stats ----
	combatLog := audit.New(db, logger)
	statsSvc := stats.New(db, c, pubsub, combatLog, logger)
	if n, err := statsSvc.Refresh(ctx); err != nil {
		logger.Warn("initial ranking rebuild failed", zap.Error(err))
	} else {
		logger.Info("Ranking rebuilt", zap.Int("entries", n))
	}

	// ---- Levels ----
	levels := resource.NewLoader(cfg.Game.LevelsDir, logger)
	if err := levels.Load(); err != nil {
		logger.Fatal("load levels", zap.Error(err))
	}
	if _, err := levels.Level(cfg.Game.StartLevel); err != nil {
		logger.Fatal("start level missing", zap.String("level", cfg.Game.StartLevel), zap.Error(err))
	}
	logger.Info("Levels loaded", zap.Strings("levels", levels.IDs()))

	// ---- Game ----
	sm := player.NewSessionManager(logger)
	wm := world.NewWorldManager(levels, levelConfig(cfg.Game), cfg.Game.TickInterval(), statsSvc, logger)

	// ---- Scheduler ----
	sched := scheduler.New(logger)
	sched.AddTicker("ranking_refresh", 5*time.Minute, func(ctx context.Context) error {
		n, err := statsSvc.Refresh(ctx)
		if err == nil {
			logger.Debug("ranking refreshed", zap.Int("entries", n))
		}
		return err
	})
	sched.AddTicker("room_gc", time.Minute, func(context.Context) error {
		if ids := wm.GC(cfg.Game.RoomIdleTimeout); len(ids) > 0 {
			logger.Info("idle rooms destroyed", zap.Strings("levels", ids))
		}
		return nil
	})

	// ---- WS Router ----
	wsRouter := apows.NewRouter(logger)
	apows.NewGameHandlers(wm, cfg.Game.StartLevel, logger).RegisterHandlers(wsRouter)

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.RateLimit(ctx, rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok", "rooms": wm.ActiveRoomCount(), "online": sm.Count()})
	})

	authH := apirest.NewAuthHandler(db, c, cfg.Security, logger)
	rankH := apirest.NewRankingHandler(statsSvc, cfg.Game.RankingSize, logger)
	levelH := apirest.NewLevelHandler(levels, wm, statsSvc, logger)
	adminH := apirest.NewAdminHandler(db, sm, wm, sched, logger)
	sseH := sse.NewHandler(pubsub, c, cfg.Security, levels, logger)

	api := r.Group("/api")
	{
		authG := api.Group("/auth")
		authG.POST("/login", authH.Login)
		authG.POST("/logout", mw.Auth(cfg.Security, c), authH.Logout)
		authG.POST("/refresh", mw.Auth(cfg.Security, c), authH.Refresh)
		authG.GET("/me", mw.Auth(cfg.Security, c), authH.Me)

		api.GET("/ranking/kills", rankH.TopKills)
		api.GET("/levels", levelH.List)
		api.GET("/levels/:id", levelH.Get)
		api.GET("/levels/:id/events", levelH.Events)

		// Client error reporting; no auth since errors may happen before login.
		api.POST("/client-error", func(ctx *gin.Context) {
			var body struct {
				Message string `json:"message"`
				Source  string `json:"source"`
				Line    int    `json:"line"`
				Stack   string `json:"stack"`
				UA      string `json:"ua"`
			}
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
				return
			}
			logger.Warn("client error",
				zap.String("message", body.Message),
				zap.String("source", body.Source),
				zap.Int("line", body.Line),
				zap.String("stack", body.Stack),
				zap.String("ua", body.UA),
				zap.String("trace_id", mw.GetTraceID(ctx)))
			ctx.JSON(http.StatusOK, gin.H{"status": "received"})
		})

		adminG := api.Group("/admin", mw.IPWhitelist(cfg.Server.AdminIPs), apirest.AdminAuth(cfg.Server.AdminKey))
		adminG.GET("/metrics", adminH.Metrics)
		adminG.GET("/rooms", adminH.Rooms)
		adminG.DELETE("/rooms/:id", adminH.DestroyRoom)
		adminG.GET("/players", adminH.ListPlayers)
		adminG.POST("/kick/:id", adminH.KickPlayer)
		adminG.POST("/accounts/:id/ban", adminH.BanAccount)
		adminG.GET("/scheduler", adminH.SchedulerTasks)
		adminG.POST("/scheduler/:name/run", adminH.RunTask)
		adminG.POST("/ranking/refresh", rankH.Refresh)
		adminG.POST("/announce", func(ctx *gin.Context) {
			var body struct {
				Message string `json:"message" binding:"required"`
			}
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
				return
			}
			if err := sseH.Announce(ctx.Request.Context(), body.Message); err != nil {
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": "announce failed"})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"status": "sent"})
		})
	}

	wsH := apows.NewHandler(c, cfg.Security, sm, wsRouter, wm, logger)
	r.GET("/ws", wsH.ServeWS)
	r.GET("/sse", sseH.ServeSSE)

	// ---- Serve ----
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// Hijacked websocket connections are not tracked by Shutdown.
	sm.CloseAllSessions()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	sched.Stop()
	wm.StopAll()
	statsSvc.Stop()
	combatLog.Stop(shutdownCtx)
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	logger.Info("bye")
}

// loadConfig reads the file named by args[0], or config.yaml when it exists,
// falling back to built-in defaults.
func loadConfig(args []string) (*config.Config, error) {
	if len(args) > 0 {
		return config.Load(args[0])
	}
	if _, err := os.Stat("config.yaml"); err == nil {
		return config.Load("config.yaml")
	}
	return config.Default(), nil
}

func levelConfig(g config.GameConfig) world.LevelConfig {
	lc := world.DefaultLevelConfig("")
	lc.BreadcrumbInterval = g.BreadcrumbInterval
	lc.BreadcrumbDecay = g.BreadcrumbDecay
	lc.FollowRange = g.FollowRange
	lc.EnemyHealth = g.EnemyHealth
	lc.RespawnDelay = g.RespawnDelay
	lc.RetreatWait = g.RetreatWait
	lc.PlayerSpeedX, lc.PlayerSpeedY = g.PlayerSpeed.X, g.PlayerSpeed.Y
	lc.EnemySpeedX, lc.EnemySpeedY = g.EnemySpeed.X, g.EnemySpeed.Y
	lc.AttackFrame = g.AttackFrame
	lc.PlayerAnims = action.PlayerAnims
	lc.EnemyAnims = action.FallenAnims
	lc.Strict = g.StrictActions
	lc.Seed = g.Seed
	return lc
}
