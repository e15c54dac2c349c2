package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"noteshare/internal/auth"
	"noteshare/internal/config"
	apphttp "noteshare/internal/http"
	"noteshare/internal/repository"
	"noteshare/internal/repository/memory"
	"noteshare/internal/repository/sqlite"
	"noteshare/internal/service"
	"noteshare/internal/storage"
	"noteshare/internal/sweeper"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}
	configureLogger(logger, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	userRepo, noteRepo, closeRepos, err := buildRepositories(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup datastore: %v", err)
	}
	defer closeRepos()

	storageSvc, err := buildStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup storage: %v", err)
	}

	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		logger.Fatalf("setup tokens: %v", err)
	}

	revocations, closeRevocations, err := buildRevocationList(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup revocation list: %v", err)
	}
	defer closeRevocations()

	userService := service.NewUserService(userRepo, cfg.Auth.AllowAdminSignup)
	noteService := service.NewNoteService(noteRepo, userRepo, storageSvc, service.NoteServiceConfig{
		MaxUploadSize:     cfg.Upload.MaxSize,
		AllowedExtensions: cfg.Upload.AllowedExtensions,
		Logger:            logger,
	})

	var sweep sweeper.Sweeper
	if cfg.Storage.SweepInterval > 0 {
		if cfg.Database.Driver == "memory" {
			logger.Warn("storage sweeper disabled for the in-memory datastore")
		} else {
			sweep = sweeper.New(sweeper.Config{
				Interval: cfg.Storage.SweepInterval,
				Grace:    cfg.Storage.SweepGrace,
				Logger:   logger,
			}, noteRepo, storageSvc)
			if err := sweep.Start(ctx); err != nil {
				logger.Fatalf("start sweeper: %v", err)
			}
		}
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(apphttp.Options{
		Users:         userService,
		Notes:         noteService,
		Tokens:        tokens,
		Revocations:   revocations,
		MaxUploadSize: cfg.Upload.MaxSize,
		AuthRateLimit: rate.Limit(cfg.Server.AuthRateLimit),
		AuthRateBurst: cfg.Server.AuthRateBurst,
		Logger:        logger,
	})
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	if sweep != nil {
		sweep.Shutdown()
	}

	logger.Info("bye")
}

func configureLogger(logger *logrus.Logger, cfg config.Config) {
	if cfg.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.Warnf("unknown log level %q, using info", cfg.Log.Level)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
}

func buildRepositories(ctx context.Context, cfg config.Config, logger *logrus.Logger) (repository.UserRepository, repository.NoteRepository, func(), error) {
	if cfg.Database.Driver == "memory" {
		logger.Warn("using in-memory datastore, data is lost on restart")
		return memory.NewUserRepository(), memory.NewNoteRepository(), func() {}, nil
	}

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open database: %w", err)
	}

	userRepo := sqlite.NewUserRepository(db)
	noteRepo := sqlite.NewNoteRepository(db)

	if err := userRepo.Init(ctx); err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("init user repository: %w", err)
	}
	if err := noteRepo.Init(ctx); err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("init note repository: %w", err)
	}

	logger.Infof("using sqlite database %s", cfg.Database.Path)
	return userRepo, noteRepo, func() { db.Close() }, nil
}

func buildStorage(ctx context.Context, cfg config.Config, logger *logrus.Logger) (storage.Service, error) {
	if cfg.Storage.Driver != "s3" {
		logger.Infof("storing uploads in %s", cfg.Storage.Dir)
		return storage.NewLocalService(cfg.Storage.Dir)
	}

	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Storage.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("using s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.Storage.Region)
	return storage.NewS3Service(client, cfg.Storage.Bucket, cfg.Storage.KeyPrefix)
}

// buildRevocationList returns a nil list when logout revocation is disabled.
func buildRevocationList(ctx context.Context, cfg config.Config, logger *logrus.Logger) (auth.RevocationList, func(), error) {
	if !cfg.Auth.RevokeOnLogout {
		return nil, func() {}, nil
	}
	if cfg.Redis.Addr == "" {
		logger.Info("token revocation enabled (in-memory)")
		return auth.NewMemoryRevocationList(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("ping redis %s: %w", cfg.Redis.Addr, err)
	}

	logger.Infof("token revocation enabled (redis %s)", cfg.Redis.Addr)
	return auth.NewRedisRevocationList(client), func() { client.Close() }, nil
}
