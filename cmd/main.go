package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Dosada05/hackathon-partner-finder/config"
	"github.com/Dosada05/hackathon-partner-finder/db"
	"github.com/Dosada05/hackathon-partner-finder/handlers"
	"github.com/Dosada05/hackathon-partner-finder/live"
	"github.com/Dosada05/hackathon-partner-finder/middleware"
	"github.com/Dosada05/hackathon-partner-finder/repositories"
	api "github.com/Dosada05/hackathon-partner-finder/routes"
	"github.com/Dosada05/hackathon-partner-finder/services"
	"github.com/Dosada05/hackathon-partner-finder/storage"
	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("application failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("application exited")
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	if err := db.ApplySchema(ctx, dbConn); err != nil {
		return err
	}
	logger.Info("database schema applied")

	// Загрузчик фото профиля (Cloudflare R2); без настроек загрузка отключена
	var uploader storage.FileUploader
	if cfg.StorageEnabled() {
		uploader, err = storage.NewCloudflareR2Uploader(ctx, storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize Cloudflare R2 uploader: %w", err)
		}
		logger.Info("Cloudflare R2 uploader initialized", slog.String("bucket", cfg.R2BucketName))
	} else {
		logger.Warn("R2 storage is not configured, profile photo uploads are disabled")
	}

	// Живые подписки: локальный брокер, при наличии Redis - ретрансляция между экземплярами
	broker := live.NewBroker(logger)
	var notifier live.Notifier = broker
	var relay *live.RedisRelay
	if cfg.RedisURL != "" {
		redisClient, err := live.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		relay = live.NewRedisRelay(redisClient, cfg.RedisChannel, broker, logger)
		notifier = relay
		logger.Info("redis relay enabled")
	}

	emailService, err := services.NewEmailService(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize email service: %w", err)
	}
	if !cfg.SMTPEnabled() {
		logger.Warn("SMTP is not configured, emails will only be logged")
	}

	var providers []services.IdentityProvider
	if cfg.GoogleClientID != "" && cfg.GoogleClientSecret != "" {
		providers = append(providers, services.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, oauthRedirectURL(cfg, "google")))
	}
	if cfg.GitHubClientID != "" && cfg.GitHubClientSecret != "" {
		providers = append(providers, services.NewGitHubProvider(cfg.GitHubClientID, cfg.GitHubClientSecret, oauthRedirectURL(cfg, "github")))
	}

	// Инициализация репозиториев
	userRepo := repositories.NewPostgresUserRepository(dbConn)
	listingRepo := repositories.NewPostgresListingRepository(dbConn)
	applicationRepo := repositories.NewPostgresApplicationRepository(dbConn)
	bookmarkRepo := repositories.NewPostgresBookmarkRepository(dbConn)
	logger.Info("Repositories initialized")

	// Инициализация сервисов
	authService := services.NewAuthService(userRepo, emailService, providers, cfg.JWTSecretKey, logger)
	userService := services.NewUserService(userRepo, uploader, logger)
	listingService := services.NewListingService(listingRepo, userRepo, broker, notifier, logger)
	applicationService := services.NewApplicationService(dbConn, applicationRepo, listingRepo, userRepo, emailService, broker, notifier, logger)
	bookmarkService := services.NewBookmarkService(dbConn, bookmarkRepo, listingRepo, broker, notifier, logger)
	logger.Info("Services initialized", slog.Any("oauth_providers", authService.Providers()))

	// Инициализация обработчиков HTTP
	router := chi.NewRouter()
	api.SetupRoutes(router, middleware.NewAuthenticator(cfg.JWTSecretKey, logger), api.Handlers{
		Auth:        handlers.NewAuthHandler(authService, strings.HasPrefix(cfg.PublicURL, "https://")),
		User:        handlers.NewUserHandler(userService),
		Listing:     handlers.NewListingHandler(listingService, bookmarkService),
		Application: handlers.NewApplicationHandler(applicationService),
		Bookmark:    handlers.NewBookmarkHandler(bookmarkService),
		Live:        handlers.NewLiveHandler(listingService, bookmarkService, applicationService, cfg.CORSAllowedOrigins, logger),
	}, cfg.CORSAllowedOrigins, logger)
	logger.Info("Routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting server", slog.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if relay != nil {
		g.Go(func() error {
			return relay.Run(gctx)
		})
	}

	// Планировщик: снимает с публикации объявления с прошедшей датой хакатона
	g.Go(func() error {
		sweepPastListings(gctx, listingService, cfg.ListingSweepInterval, logger)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// WebSocket-соединения Shutdown не ждёт: их закрывает остановка брокера
		broker.Close()
		if err := server.Shutdown(shutdownCtx); err != nil {
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		logger.Info("server shutdown complete")
		return nil
	})

	return g.Wait()
}

func sweepPastListings(ctx context.Context, listings services.ListingService, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	logger.Info("listing sweep scheduler started", slog.Duration("interval", interval))

	sweep := func() {
		n, err := listings.DeactivatePast(ctx, time.Now())
		if err != nil {
			if ctx.Err() == nil {
				logger.Error("listing sweep failed", slog.Any("error", err))
			}
			return
		}
		if n > 0 {
			logger.Info("past listings deactivated", slog.Int64("count", n))
		}
	}

	// Run once immediately at startup, then on ticker
	sweep()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}

func oauthRedirectURL(cfg *config.Config, provider string) string {
	return fmt.Sprintf("%s/api/auth/oauth/%s/callback", cfg.PublicURL, provider)
}
