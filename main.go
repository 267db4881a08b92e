package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/chxlky/contract-kanban/api"
	"github.com/chxlky/contract-kanban/database"
	"github.com/chxlky/contract-kanban/integrations"
	"github.com/chxlky/contract-kanban/internal/activity"
	"github.com/chxlky/contract-kanban/internal/config"
	"github.com/chxlky/contract-kanban/internal/services"
	"github.com/chxlky/contract-kanban/internal/session"
	"github.com/chxlky/contract-kanban/internal/storage"
	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newLogger(levelStr string) *zap.Logger {
	level, err := zapcore.ParseLevel(strings.ToLower(levelStr))
	if err != nil {
		level = zapcore.InfoLevel
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      true,
		Encoding:         "console",
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, _ := zapConfig.Build()
	return logger
}

// newSessionStore returns a redis backed store when an address is configured.
func newSessionStore(ctx context.Context, cfg config.SessionConfig) (session.Store, io.Closer) {
	if cfg.RedisAddr == "" {
		return nil, nil
	}
	rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{cfg.RedisAddr}})
	if err := rdb.Ping(ctx).Err(); err != nil {
		zap.L().Fatal("Failed to connect to redis", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}
	zap.L().Info("Using redis session store", zap.String("addr", cfg.RedisAddr))
	return session.NewRedisStore(rdb, cfg.TTL), rdb
}

func main() {
	flags := config.Flags()
	if err := flags.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	cfg, err := config.Load(flags)
	if err != nil {
		newLogger("info").Fatal("Error reading config", zap.Error(err))
	}

	logger := newLogger(cfg.Log.Level)
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	ctx := context.Background()

	db := database.Init(cfg.Database)
	sqlDB, _ := db.DB()

	store, err := storage.Open(ctx, cfg.Storage, cfg.Server.AppURL)
	if err != nil {
		zap.L().Fatal("Failed to initialise storage backend", zap.String("type", cfg.Storage.Type), zap.Error(err))
	}
	zap.L().Info("Storage backend ready", zap.String("type", cfg.Storage.Type))

	sessions, redisCloser := newSessionStore(ctx, cfg.Session)
	if sessions == nil {
		sessions = session.NewDBStore(db, cfg.Session.TTL)
	}

	recorder := activity.NewAsyncRecorder(db, logger, cfg.Activity.QueueSize)

	cardOpts := services.CardOptions{
		Policy:          services.NewStagePolicy(cfg.Cards.Stages, cfg.Cards.LaneStages),
		AllowLaneChange: cfg.Cards.AllowLaneChange,
	}
	if cfg.Google.CalendarID != "" {
		calClient, err := integrations.NewCalendarClient(ctx, cfg.Google, cfg.Server.FrontURL)
		if err != nil {
			zap.L().Error("Failed to initialise Google Calendar client; card sync disabled", zap.Error(err))
		} else {
			cardOpts.Calendar = calClient
			zap.L().Info("Successfully authenticated with Google Calendar API.")
		}
	}

	apiHandler := &api.Handler{
		DB:    db,
		Cards: services.NewCardService(db, logger, recorder, cardOpts),
		Uploads: services.NewUploadService(db, store, logger, recorder, services.UploadOptions{
			MaxSize:      cfg.Uploads.MaxSize,
			AllowedTypes: cfg.Uploads.AllowedTypes,
		}),
		Contracts: services.NewContractService(db, logger, recorder, services.ContractOptions{
			Items:         integrations.NewSheetClient(cfg.Import.Timeout, cfg.Import.Attempts),
			ImportTimeout: cfg.Import.Timeout,
		}),
		Facilities: services.NewFacilityService(db, logger, recorder),
		Users:      services.NewUserService(db, logger, recorder, sessions, 0),
		Activities: services.NewActivityService(db),
		Cookie: api.CookieConfig{
			Name:   cfg.Session.CookieName,
			MaxAge: cfg.Session.TTL,
			Secure: cfg.Session.Secure,
		},
		MaxUpload: cfg.Uploads.MaxSize,
	}
	if local, ok := store.(*storage.Local); ok {
		apiHandler.FilesDir = local.Dir(storage.Active)
	}

	gin.SetMode(gin.ReleaseMode)
	if logger.Core().Enabled(zapcore.DebugLevel) {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(ginzap.GinzapWithConfig(logger, &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		Context: func(c *gin.Context) []zapcore.Field {
			return []zapcore.Field{zap.String("requestID", api.GetRequestID(c))}
		},
	}))
	router.Use(ginzap.RecoveryWithZap(logger, true))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.Server.FrontURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	apiHandler.Register(router)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	zap.L().Info("Starting server", zap.String("port", cfg.Server.Port))
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("Server error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	var once sync.Once

	cleanup := func(reason string) {
		zap.L().Info("Shutdown initiated", zap.String("reason", reason))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		zap.L().Info("Shutting down HTTP server...")
		if err := srv.Shutdown(ctx); err != nil {
			zap.L().Error("Error shutting down server", zap.Error(err))
		} else {
			zap.L().Info("HTTP server shut down gracefully.")
		}

		if err := recorder.Close(ctx); err != nil {
			zap.L().Error("Activity queue not fully drained", zap.Error(err))
		} else {
			zap.L().Info("Activity queue drained.")
		}

		if closer, ok := store.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				zap.L().Error("Error closing storage backend", zap.Error(err))
			}
		}
		if redisCloser != nil {
			if err := redisCloser.Close(); err != nil {
				zap.L().Error("Error closing redis client", zap.Error(err))
			}
		}

		if sqlDB != nil {
			if err := sqlDB.Close(); err != nil {
				zap.L().Error("Error closing database", zap.Error(err))
			} else {
				zap.L().Info("Database connection closed.")
			}
		}
		close(done)
	}

	go func() {
		sig := <-sigCh
		once.Do(func() {
			cleanup(sig.String())
		})

		// if a second signal is caught, exit immediately
		go func() {
			<-sigCh
			zap.L().Info("Second interrupt signal received. Exiting immediately.")
			os.Exit(1)
		}()
	}()

	<-done
	zap.L().Info("Exiting...")
}
