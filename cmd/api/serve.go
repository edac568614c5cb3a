package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/laissez/laissez/internal/agentproxy"
	"github.com/laissez/laissez/internal/auth"
	"github.com/laissez/laissez/internal/cache"
	"github.com/laissez/laissez/internal/config"
	"github.com/laissez/laissez/internal/fallback"
	"github.com/laissez/laissez/internal/handler"
	"github.com/laissez/laissez/internal/metrics"
	"github.com/laissez/laissez/internal/middleware"
	"github.com/laissez/laissez/internal/repository"
	"github.com/laissez/laissez/internal/server"
	"github.com/laissez/laissez/internal/service"
	"github.com/laissez/laissez/internal/telegram"
	"github.com/laissez/laissez/internal/telemetry"
)

// outboundTimeout bounds calls to the chat platform and identity provider.
const outboundTimeout = 10 * time.Second

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	tel, err := telemetry.Setup(ctx, telemetry.Config{
		Endpoint:       cfg.OTLPEndpoint,
		Headers:        cfg.OTLPHeaders,
		ServiceName:    cfg.OTELServiceName,
		ServiceVersion: Version,
	})
	if err != nil {
		return fmt.Errorf("telemetry setup: %w", err)
	}

	logger := initLogger(cfg, tel != nil)

	if cfg.MigrateOnStart {
		if err := migrateOnStart(cfg.DatabaseURL); err != nil {
			logger.Error("failed to migrate database", slog.String("error", err.Error()))
			return errors.Join(err, tel.Shutdown(context.Background()))
		}
		logger.Info("database migrations applied")
	}

	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		return errors.Join(errors.New("database unavailable"), tel.Shutdown(context.Background()))
	}
	logger.Info("connected to database")

	var cacheClient *cache.Cache
	if cfg.RedisURL != "" {
		cacheClient, err = cache.New(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error(
				"failed to connect to Redis",
				slog.String("error", sanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", redactURL(cfg.RedisURL)),
			)
			repo.Close()
			return errors.Join(errors.New("redis unavailable"), tel.Shutdown(context.Background()))
		}
		logger.Info("connected to Redis")
	} else {
		logger.Warn("REDIS_URL not set; identity caching and update de-duplication disabled")
	}

	outbound := &http.Client{
		Timeout:   outboundTimeout,
		Transport: telemetry.Transport(nil),
	}

	verifier, err := newVerifier(cfg, outbound)
	if err != nil {
		logger.Error("failed to configure identity verification", slog.String("error", err.Error()))
		return errors.Join(err, closeAll(cacheClient, repo, tel))
	}

	// Bot tokens and agent URLs are secrets, so neither client records URLs.
	telegramHTTP := &http.Client{
		Timeout:   outboundTimeout,
		Transport: telemetry.RedactedTransport(nil, "telegram"),
	}

	agentHTTP := agentproxy.NewHTTPClient(cfg.AgentAllowPrivateURLs)
	agentHTTP.Transport = telemetry.RedactedTransport(agentHTTP.Transport, "agent")

	if cfg.WebhookSecretKey == "" {
		logger.Warn("WEBHOOK_SECRET_KEY not set; webhook deliveries are not authenticated")
	}

	fallbackResponder := fallback.New(fallback.Config{
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.OpenAIBaseURL,
		Model:      cfg.OpenAIModel,
		HTTPClient: &http.Client{Transport: telemetry.Transport(nil)},
	}, logger)
	if !fallbackResponder.Enabled() {
		logger.Warn("OPENAI_API_KEY not set; fallback replies use a fixed apology")
	}

	routes := buildRoutes(cfg, appDeps{
		Repo:      repo,
		Cache:     cacheClient,
		Verifier:  verifier,
		Telegram:  telegram.NewClient(telegramHTTP, cfg.TelegramAPIURL),
		AgentHTTP: agentHTTP,
		Fallback:  fallbackResponder,
		Metrics:   metrics.NewInMemory(),
	}, logger)

	r := setupRouter(routes, cfg, logger)

	srv := server.New(
		telemetry.Handler(r, "laissez-api", telemetry.WithUntracedPaths("/webhook/")),
		server.Options{
			Port:            cfg.AppPort,
			ReadTimeout:     cfg.ReadTimeout,
			WriteTimeout:    cfg.WriteTimeout,
			ShutdownTimeout: cfg.ShutdownTimeout,
		},
		logger,
	)

	// Registered first, stopped last.
	srv.OnShutdown("telemetry", tel.Shutdown)
	srv.OnShutdown("database", func(context.Context) error {
		repo.Close()
		return nil
	})
	if cacheClient != nil {
		srv.OnShutdown("cache", func(context.Context) error {
			return cacheClient.Close()
		})
	}

	if cfg.LinkSweepInterval > 0 {
		sweeper := service.NewLinkSweeper(repo, cfg.LinkSweepInterval, logger)
		go func() {
			if err := sweeper.Run(ctx); err != nil {
				logger.Error("link sweeper stopped", "error", err)
			}
		}()
		srv.OnShutdown("link_sweeper", sweeper.Shutdown)
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"version", Version,
		"auth_mode", cfg.AuthMode,
		"public_base_url", cfg.PublicBaseURL,
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		return err
	}
	return nil
}

// appDeps are the process-wide collaborators behind the routes. Cache is
// optional.
type appDeps struct {
	Repo      *repository.Repository
	Cache     *cache.Cache
	Verifier  auth.Verifier
	Telegram  *telegram.Client
	AgentHTTP *http.Client
	Fallback  *fallback.Responder
	Metrics   *metrics.InMemoryRecorder
}

// buildRoutes wires services and handlers.
func buildRoutes(cfg *config.Config, deps appDeps, logger *slog.Logger) handler.Routes {
	// Keep these interfaces nil, not typed-nil, without a cache.
	var (
		cachePinger   handler.HealthChecker
		identityCache middleware.IdentityCache
		deduper       service.UpdateDeduper
	)
	if deps.Cache != nil {
		cachePinger, identityCache, deduper = deps.Cache, deps.Cache, deps.Cache
	}

	secretKey := []byte(cfg.WebhookSecretKey)

	linkService := service.NewLinkService(deps.Repo, cfg.PublicBaseURL, cfg.LinkCodeTTL, deps.Metrics, logger)
	agentService := service.NewAgentService(
		deps.Repo,
		deps.Telegram,
		agentproxy.TargetPolicy{AllowPrivate: cfg.AgentAllowPrivateURLs, Resolver: net.DefaultResolver},
		secretKey,
		deps.Metrics,
		logger,
	)
	relayService := service.NewRelayService(service.RelayDeps{
		Links:    linkService,
		Agents:   deps.Repo,
		Proxy:    agentproxy.New(deps.AgentHTTP, cfg.AgentTimeout),
		Fallback: deps.Fallback,
		Sender:   deps.Telegram,
		Dedupe:   deduper,
		Metrics:  deps.Metrics,
		Logger:   logger,
	})

	return handler.Routes{
		Health:  handler.NewHealthHandler(deps.Repo, cachePinger),
		Agents:  handler.NewAgentHandler(agentService, cfg.WebhookBaseURL, logger),
		Links:   handler.NewLinkHandler(linkService, logger),
		Webhook: handler.NewWebhookHandler(relayService, secretKey, deps.Metrics, logger),
		Metrics: handler.NewMetricsHandler(deps.Metrics),
		Auth: middleware.Auth(middleware.AuthConfig{
			Logger:   logger,
			Verifier: deps.Verifier,
			Cache:    identityCache,
		}),
	}
}

// setupRouter configures the chi router with global middleware and routes.
func setupRouter(routes handler.Routes, cfg *config.Config, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.CORS(corsCfg))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment()}))
	r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))

	routes.Mount(r)
	return r
}

// newVerifier builds the identity verifier selected by AUTH_MODE.
func newVerifier(cfg *config.Config, client *http.Client) (auth.Verifier, error) {
	if cfg.AuthMode == config.AuthModeRemote {
		return auth.NewRemoteVerifier(client, cfg.PrivyAPIURL, cfg.PrivyAppID), nil
	}

	var keys auth.KeyProvider
	if cfg.PrivyVerificationKey != "" {
		static, err := auth.NewStaticKey(cfg.PrivyVerificationKey)
		if err != nil {
			return nil, fmt.Errorf("PRIVY_VERIFICATION_KEY: %w", err)
		}
		keys = static
	} else {
		keys = auth.NewAppKeyFetcher(client, cfg.PrivyAPIURL, cfg.PrivyAppID, cfg.PrivyAppSecret)
	}
	return auth.NewLocalVerifier(keys, cfg.PrivyIssuer, cfg.PrivyAppID), nil
}

func migrateOnStart(databaseURL string) error {
	mg, err := repository.NewMigrator(databaseURL)
	if err != nil {
		return errors.New(sanitizeError(err, databaseURL))
	}
	defer mg.Close()

	if err := mg.Up(); err != nil {
		return errors.New(sanitizeError(err, databaseURL))
	}
	return nil
}

func closeAll(c *cache.Cache, repo *repository.Repository, tel *telemetry.Telemetry) error {
	var errs []error
	if c != nil {
		errs = append(errs, c.Close())
	}
	repo.Close()
	errs = append(errs, tel.Shutdown(context.Background()))
	return errors.Join(errs...)
}
