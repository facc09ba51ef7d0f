package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"userauth/internal/auth"
	"userauth/internal/client"
	"userauth/internal/config"
	apphttp "userauth/internal/http"
	"userauth/internal/password"
	"userauth/internal/repository"
	"userauth/internal/repository/redis"
	"userauth/internal/repository/sqlite"
	"userauth/internal/service"
	"userauth/internal/storage"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	configureLogger(logger, cfg)

	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		logger.Fatalf("auth jwt secret is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	authService, err := buildAuthService(ctx, cfg, db, logger)
	if err != nil {
		logger.Fatalf("setup auth: %v", err)
	}

	kv, closeKV, err := buildSessionStore(ctx, cfg, db)
	if err != nil {
		logger.Fatalf("setup session store: %v", err)
	}
	defer closeKV()
	if err := kv.Init(ctx); err != nil {
		logger.Fatalf("init session store: %v", err)
	}
	sessions := service.NewSessionManager(kv, logger)

	if sess, err := sessions.Current(ctx); err != nil {
		logger.Warnf("read session: %v", err)
	} else if sess != nil {
		logger.Infof("resuming session for %s (logged in %s)", sess.Username, sess.LoginTimestamp.Format(time.RFC3339))
	}

	backups, err := buildBackups(ctx, cfg, db, logger)
	if err != nil {
		logger.Fatalf("setup backups: %v", err)
	}

	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTLMinutes)*time.Minute)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(authService, sessions, tokens, backups, logger)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
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

	logger.Info("bye")
}

func configureLogger(logger *logrus.Logger, cfg config.Config) {
	if strings.EqualFold(cfg.Log.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.Warnf("unknown log level %q, using info", cfg.Log.Level)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
}

func buildAuthService(ctx context.Context, cfg config.Config, db *sql.DB, logger *logrus.Logger) (service.AuthService, error) {
	if cfg.RelayMode() {
		up := cfg.Auth.Upstream
		httpClient := &http.Client{}
		if up.TimeoutSeconds > 0 {
			httpClient.Timeout = time.Duration(up.TimeoutSeconds) * time.Second
		}
		logger.Infof("relaying auth to %s", up.LoginURL)
		return client.New(client.Endpoints{
			LoginURL:         up.LoginURL,
			RegisterURL:      up.RegisterURL,
			ResetPasswordURL: up.ResetPasswordURL,
		}, httpClient, logger), nil
	}

	hasher, err := password.New(cfg.Auth.PasswordScheme, cfg.Auth.BcryptCost)
	if err != nil {
		return nil, err
	}
	if _, plain := hasher.(password.Plain); plain {
		logger.Warn("passwords are stored in plain text")
	}

	users := sqlite.NewUserRepository(db, hasher)
	if err := users.Init(ctx); err != nil {
		return nil, fmt.Errorf("init user repository: %w", err)
	}
	return service.NewAuthService(users, logger), nil
}

func buildSessionStore(ctx context.Context, cfg config.Config, db *sql.DB) (repository.KVStore, func(), error) {
	if strings.EqualFold(cfg.Session.Backend, config.SessionBackendRedis) {
		rc, err := redis.Connect(ctx, redis.Config{
			Addr:     cfg.Session.Redis.Addr,
			Password: cfg.Session.Redis.Password,
			DB:       cfg.Session.Redis.DB,
		})
		if err != nil {
			return nil, nil, err
		}
		return redis.NewKVStore(rc, cfg.Session.Redis.KeyPrefix), func() { _ = rc.Close() }, nil
	}
	return sqlite.NewKVStore(db), func() {}, nil
}

func buildBackups(ctx context.Context, cfg config.Config, db *sql.DB, logger *logrus.Logger) (*service.BackupService, error) {
	if cfg.Backup.Bucket == "" {
		logger.Info("backups disabled (no bucket configured)")
		return nil, nil
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

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("backing up to s3 bucket %s (region %s)", cfg.Backup.Bucket, cfg.Storage.Region)

	var store storage.Service = storage.NewS3Service(s3Client)
	return service.NewBackupService(db, store, service.BackupConfig{
		Bucket:      cfg.Backup.Bucket,
		KeyPrefix:   cfg.Backup.KeyPrefix,
		SnapshotDir: cfg.Backup.SnapshotDir,
		Retain:      cfg.Backup.Retain,
	}, logger), nil
}
