package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/victor/decision-advisor/internal/advisor"
	"github.com/victor/decision-advisor/internal/billing"
	"github.com/victor/decision-advisor/internal/config"
	"github.com/victor/decision-advisor/internal/llm"
	"github.com/victor/decision-advisor/internal/modes"
	"github.com/victor/decision-advisor/internal/quota"
	"github.com/victor/decision-advisor/internal/server"
	"github.com/victor/decision-advisor/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start the HTTP server exposing the advisory, usage, proxy and webhook endpoints.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if servePort != 0 {
		cfg.Port = servePort
	}

	logger := newLogger(cfg.Environment)
	ctx := context.Background()

	db, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	if err := db.EnsureSchema(ctx); err != nil {
		return err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		// Quota degrades to untracked on Redis outage, so this is a
		// warning, not a startup failure.
		logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable at startup")
	}

	llmCfg := buildLLMConfig(cfg)
	client, err := llm.NewGeminiClient(ctx, llmCfg, cfg.GeminiAPIKey)
	if err != nil {
		return fmt.Errorf("failed to create provider client: %w", err)
	}
	defer client.Close()

	registry, err := modes.NewRegistry(logger)
	if err != nil {
		return err
	}

	ledger := quota.NewLedger(rdb, db, cfg.TierLimits, logger)
	fallback := llm.NewFallback(client, llm.TierStandard, llm.TierLite, logger)
	pipeline := llm.NewTwoStage(client, llm.TierLite, llm.TierAdvanced, logger)
	advisorSvc := advisor.NewService(registry, ledger, fallback, pipeline, db, logger)

	proxy := llm.NewProxy("", cfg.GeminiAPIKey, cfg.VisionTimeout)

	var hook *billing.Webhook
	if cfg.StripeWebhookSecret != "" {
		hook = billing.NewWebhook(cfg.StripeWebhookSecret, cfg.StripePriceTiers, db, logger)
	} else {
		logger.Info().Msg("stripe webhook disabled (no signing secret)")
	}

	srv := server.New(cfg, advisorSvc, ledger, proxy, llmCfg.Model(llm.TierStandard), hook, logger)
	return srv.Start(ctx)
}

func buildLLMConfig(cfg *config.Config) *llm.Config {
	out := llm.DefaultConfig()
	out.TextTimeout = cfg.TextTimeout
	out.VisionTimeout = cfg.VisionTimeout
	if cfg.ModelLite != "" {
		out = out.WithModel(llm.TierLite, cfg.ModelLite)
	}
	if cfg.ModelStandard != "" {
		out = out.WithModel(llm.TierStandard, cfg.ModelStandard)
	}
	if cfg.ModelAdvanced != "" {
		out = out.WithModel(llm.TierAdvanced, cfg.ModelAdvanced)
	}
	return out
}

func newLogger(environment string) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if environment == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	return logger
}
