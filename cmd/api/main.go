// Package main is the entry point for the Resonate API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/resonate-social/resonate/internal/api"
	"github.com/resonate-social/resonate/internal/auth"
	"github.com/resonate-social/resonate/internal/config"
	"github.com/resonate-social/resonate/internal/db"
	"github.com/resonate-social/resonate/internal/feed"
	"github.com/resonate-social/resonate/internal/health"
	"github.com/resonate-social/resonate/internal/middleware"
	"github.com/resonate-social/resonate/internal/music"
	"github.com/resonate-social/resonate/internal/post"
	"github.com/resonate-social/resonate/internal/tracing"
	"github.com/resonate-social/resonate/internal/user"
)

const serviceName = "resonate-api"

func main() {
	help := flag.Bool("help", false, "display help message")
	configFile := flag.String("config", "", "path to YAML config file (env vars take precedence)")
	flag.Parse()

	if *help {
		fmt.Println("Resonate API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configFile)
	if cfg == nil {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config error:", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	// In development, missing backing services fall back to in-memory
	// implementations. In production, incomplete config is fatal.
	if len(errs) > 0 {
		for _, err := range errs {
			logger.Warn("config validation", "error", err)
		}
		if cfg.Env == "production" {
			logger.Error("refusing to start with invalid config in production")
			os.Exit(1)
		}
	}

	logger.Info("configuration loaded", "config", cfg.LogSummary())

	ctx := context.Background()

	tracerProvider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  serviceName,
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingExporterType,
		OTLPEndpoint: cfg.TracingOTLPEndpoint,
		SamplingRate: cfg.TracingSamplingRate,
		InsecureMode: cfg.Env != "production",
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	httpMetrics := middleware.NewMetrics()
	if err := httpMetrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register http metrics", "error", err)
		os.Exit(1)
	}
	feedMetrics := feed.NewMetrics()
	if err := feedMetrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register feed metrics", "error", err)
		os.Exit(1)
	}

	// Repositories: Postgres when DATABASE_URL is set, in-memory otherwise.
	var (
		users     user.Repository
		posts     post.Repository
		dbChecker api.HealthChecker
	)
	if cfg.DatabaseURL != "" {
		conn, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer conn.Close()
		users = user.NewPostgresRepository(conn, logger)
		posts = post.NewPostgresRepository(conn, logger)
		dbChecker = health.NewDBChecker(conn)
		logger.Info("using postgres repositories")
	} else {
		users = user.NewInMemoryRepository()
		posts = post.NewInMemoryRepository()
		logger.Warn("DATABASE_URL not set, using in-memory repositories")
	}

	// Rate limit store: Redis when configured, in-memory otherwise.
	var (
		rateLimitStore middleware.RateLimitStore
		redisChecker   api.HealthChecker
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		redisClient := redis.NewClient(opts)
		defer redisClient.Close()
		rateLimitStore = middleware.NewRedisRateLimitStoreWithMetrics(redisClient, httpMetrics)
		redisChecker = health.NewRedisChecker(redisClient)
		logger.Info("using redis rate limit store")
	} else {
		memStore := middleware.NewInMemoryRateLimitStore()
		go func() {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for range ticker.C {
				memStore.Cleanup()
			}
		}()
		rateLimitStore = memStore
		logger.Warn("REDIS_URL not set, using in-memory rate limit store")
	}

	// Music provider: real client when OAuth credentials are present.
	var (
		provider        music.Provider
		providerChecker api.HealthChecker
	)
	if cfg.ProviderClientID != "" && cfg.ProviderClientSecret != "" {
		provider = music.NewHTTPProvider(music.HTTPConfig{
			ClientID:     cfg.ProviderClientID,
			ClientSecret: cfg.ProviderClientSecret,
			RedirectURI:  cfg.ProviderRedirectURI,
			TokenURL:     cfg.ProviderTokenURL,
			APIBaseURL:   cfg.ProviderAPIBaseURL,
			Logger:       logger,
		})
		providerChecker = health.NewProviderChecker(cfg.ProviderAPIBaseURL)
	} else {
		provider = music.NewFakeProvider()
		logger.Warn("provider credentials not set, using fake music provider")
	}

	weights, err := feed.LoadCalibration(cfg.FeedCalibrationPath)
	if err != nil {
		logger.Error("failed to load feed calibration", "error", err, "path", cfg.FeedCalibrationPath)
		os.Exit(1)
	}
	feedService := feed.NewService(feed.ServiceConfig{
		Users:          users,
		Posts:          posts,
		Weights:        weights,
		PoolMultiplier: cfg.FeedPoolMultiplier,
		MaxLimit:       cfg.FeedMaxLimit,
		Logger:         logger,
		Metrics:        feedMetrics,
	})

	jwtSecret := cfg.JWTSecret
	if jwtSecret == "" {
		logger.Warn("JWT_SECRET not set, using insecure development secret")
		jwtSecret = "insecure-development-secret"
	}
	var jwtService *auth.JWTService
	if cfg.JWTPreviousSecret != "" {
		jwtService = auth.NewJWTServiceWithRotation(jwtSecret, cfg.JWTPreviousSecret)
	} else {
		jwtService = auth.NewJWTService(jwtSecret)
	}

	authHandlers := api.NewAuthHandlers(users, provider, jwtService, logger)
	feedHandlers := api.NewFeedHandlers(feedService, logger)
	postHandlers := api.NewPostHandlers(posts, provider, logger)
	userHandlers := api.NewUserHandlers(users, posts, logger)
	healthHandlers := api.NewHealthHandlers(api.HealthHandlersConfig{
		DBChecker:       dbChecker,
		RedisChecker:    redisChecker,
		ProviderChecker: providerChecker,
	})

	// Route-scoped middleware.
	requireAuth := middleware.RequireAuth(jwtService)
	optionalAuth := middleware.OptionalAuth(jwtService)
	authLimit := middleware.RateLimiter(rateLimitStore, middleware.DefaultAuthLimit(), middleware.IPKeyFunc(), httpMetrics)
	feedLimit := middleware.RateLimiter(rateLimitStore, middleware.DefaultFeedLimit(), middleware.UserKeyFunc(), httpMetrics)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", healthHandlers.Health)
	mux.HandleFunc("GET /ready", healthHandlers.Ready)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.Handle("POST /auth/login", authLimit(http.HandlerFunc(authHandlers.Login)))
	mux.Handle("POST /auth/refresh", authLimit(http.HandlerFunc(authHandlers.Refresh)))

	mux.Handle("GET /feed/discovery", requireAuth(feedLimit(http.HandlerFunc(feedHandlers.Discovery))))
	mux.Handle("GET /feed/home", requireAuth(feedLimit(http.HandlerFunc(feedHandlers.Home))))

	mux.Handle("POST /posts", requireAuth(http.HandlerFunc(postHandlers.CreatePost)))
	mux.Handle("GET /posts/{id}", optionalAuth(http.HandlerFunc(postHandlers.GetPost)))
	mux.Handle("DELETE /posts/{id}", requireAuth(http.HandlerFunc(postHandlers.DeletePost)))
	mux.Handle("POST /posts/{id}/like", requireAuth(http.HandlerFunc(postHandlers.LikePost)))
	mux.Handle("DELETE /posts/{id}/like", requireAuth(http.HandlerFunc(postHandlers.UnlikePost)))

	mux.Handle("GET /users/{id}", optionalAuth(http.HandlerFunc(userHandlers.GetUser)))
	mux.Handle("GET /users/{id}/posts", optionalAuth(http.HandlerFunc(userHandlers.ListPosts)))
	mux.Handle("POST /users/{id}/follow", requireAuth(http.HandlerFunc(userHandlers.Follow)))
	mux.Handle("DELETE /users/{id}/follow", requireAuth(http.HandlerFunc(userHandlers.Unfollow)))

	mux.Handle("GET /me", requireAuth(http.HandlerFunc(userHandlers.Me)))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
			api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
			return
		}
		api.WriteJSON(w, r.Context(), http.StatusOK, map[string]string{
			"service": serviceName,
			"version": "0.0.1",
		})
	})

	corsConfig := middleware.DefaultCORSConfig()
	if cfg.CORSAllowedOrigins != "" {
		corsConfig.AllowedOrigins = strings.Split(cfg.CORSAllowedOrigins, ",")
	}

	// Chain: RequestID -> Tracing -> Logging -> CORS -> RateLimit -> HTTPMetrics.
	handler := middleware.RequestID(
		middleware.Tracing(serviceName)(
			middleware.Logging(logger)(
				middleware.CORS(corsConfig)(
					middleware.RateLimiter(rateLimitStore, middleware.DefaultGlobalLimit(), middleware.IPKeyFunc(), httpMetrics)(
						middleware.HTTPMetrics(httpMetrics)(mux),
					),
				),
			),
		),
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		logger.Error("tracer shutdown failed", "error", err)
	}

	logger.Info("server stopped")
}
