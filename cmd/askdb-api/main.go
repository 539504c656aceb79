package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/askdb/askdb/internal/api"
	"github.com/askdb/askdb/internal/auth"
	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/nl2sql"
	"github.com/askdb/askdb/internal/observability"
	"github.com/askdb/askdb/internal/pipeline"
	querypostgres "github.com/askdb/askdb/internal/query/postgres"
	"github.com/askdb/askdb/internal/safety"
	schemapostgres "github.com/askdb/askdb/internal/schema/postgres"
	"github.com/askdb/askdb/internal/storage"
	s3store "github.com/askdb/askdb/internal/storage/s3"
)

func main() {
	// Local development reads overrides from .env; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv("askdb-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logWriter, logCloser, err := observability.NewLogWriter(cfg.Observability, os.Stdout)
	if err != nil {
		slog.Error("failed to open log destination", slog.Any("error", err))
		os.Exit(1)
	}
	if logCloser != nil {
		defer func() { _ = logCloser.Close() }()
	}
	logger := observability.NewLogger(cfg, logWriter)

	translator, err := newTranslator(cfg)
	if err != nil {
		logger.Error("failed to initialize translator", slog.Any("error", err))
		os.Exit(1)
	}

	engine := querypostgres.NewEngine(querypostgres.Options{
		DSN:          cfg.Database.DSN(),
		QueryTimeout: cfg.Database.QueryTimeout,
		PingTimeout:  cfg.Database.PingTimeout,
		MaxRows:      cfg.Database.MaxRows,
	})
	inspector := schemapostgres.NewInspector(schemapostgres.Options{
		DSN:          cfg.Database.DSN(),
		PingTimeout:  cfg.Database.PingTimeout,
		QueryTimeout: cfg.Database.QueryTimeout,
	})

	var archive storage.ObjectStore
	if cfg.ObjectStore.Enabled {
		store, err := s3store.New(context.Background(), s3store.Config{
			Endpoint:         cfg.ObjectStore.Endpoint,
			Region:           cfg.ObjectStore.Region,
			Bucket:           cfg.ObjectStore.Bucket,
			AccessKeyID:      cfg.ObjectStore.AccessKeyID,
			SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
			UseSSL:           cfg.ObjectStore.UseSSL,
			Prefix:           cfg.ObjectStore.Prefix,
			AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
		})
		if err != nil {
			logger.Error("failed to initialize archive store", slog.Any("error", err))
			os.Exit(1)
		}
		archive = store
	}

	deps := api.Dependencies{
		Logger: logger,
		Pipeline: &pipeline.Pipeline{
			Translator: translator,
			Executor:   engine,
			Schema:     inspector,
			Policy: safety.Policy{
				ReadOnly: cfg.Safety.ReadOnly,
				Denylist: cfg.Safety.Denylist,
			},
			Provider: cfg.Translator.Provider,
			Logger:   logger,
		},
		Schema:  inspector,
		Archive: archive,
		Readiness: api.CombineReadinessChecks(
			api.CheckDatabase(cfg),
			api.CheckObjectStoreConfig(cfg),
		),
		DependencyTimeout: time.Second,
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("provider", cfg.Translator.Provider),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}

func newTranslator(cfg config.Config) (nl2sql.Translator, error) {
	switch cfg.Translator.Provider {
	case config.ProviderOpenAI:
		return nl2sql.NewOpenAITranslator(nl2sql.OpenAIConfig{
			BaseURL:     cfg.Translator.BaseURL,
			APIKey:      cfg.Translator.APIKey,
			Model:       cfg.Translator.Model,
			Temperature: cfg.Translator.Temperature,
			Timeout:     cfg.Translator.Timeout,
		})
	case config.ProviderGemini:
		return nl2sql.NewGeminiTranslator(nl2sql.GeminiConfig{
			BaseURL:     cfg.Translator.BaseURL,
			APIKey:      cfg.Translator.APIKey,
			Model:       cfg.Translator.Model,
			Temperature: cfg.Translator.Temperature,
			Timeout:     cfg.Translator.Timeout,
		})
	default:
		return nil, errors.New("unsupported translator provider " + cfg.Translator.Provider)
	}
}
