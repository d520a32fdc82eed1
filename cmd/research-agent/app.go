// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pdiddy/research-agent/internal/agent"
	"github.com/pdiddy/research-agent/internal/cache"
	"github.com/pdiddy/research-agent/internal/llm"
	"github.com/pdiddy/research-agent/internal/safety"
	"github.com/pdiddy/research-agent/internal/search"
	"github.com/pdiddy/research-agent/internal/sms"
	"github.com/pdiddy/research-agent/internal/store"
	"github.com/pdiddy/research-agent/internal/synthesis"
	"github.com/pdiddy/research-agent/pkg/types"
)

// app bundles everything a command needs to run research requests.
type app struct {
	agent   *agent.Agent
	store   *store.Store
	gateway *sms.Gateway
	cfg     types.Config
	logger  *zap.Logger
}

// buildApp assembles the pipeline from defaults, config file values, and
// loaded secrets. The caller must Close the app when done.
func buildApp(ctx context.Context) (*app, error) {
	cfg := loadConfig()

	logger, err := newLogger()
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	var completer llm.Completer
	if cfg.LLM.APIKey != "" {
		gemini, err := llm.NewGemini(ctx, cfg.LLM)
		if err != nil {
			return nil, fmt.Errorf("creating model client: %w", err)
		}
		completer = gemini
	} else {
		logger.Info("no model API key configured, using deterministic fallbacks")
	}

	providers, err := buildProviders(cfg.Search)
	if err != nil {
		return nil, err
	}
	connector := search.NewConnector(providers, cache.NewTTL(cfg.Search.CacheTTL), cfg.Search, logger)

	st, err := store.NewStore(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("opening run store: %w", err)
	}

	pipeline := safety.NewPipeline(cfg.Safety, logger)
	engine := synthesis.NewEngine(completer, cfg.Synthesis, logger)

	a := &app{
		agent:  agent.New(connector, completer, pipeline, engine, st, cfg, logger),
		store:  st,
		cfg:    cfg,
		logger: logger,
	}
	if cfg.SMS.GatewayURL != "" {
		a.gateway = sms.NewGateway(cfg.SMS, logger)
	}
	return a, nil
}

func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
	a.logger.Sync()
}

// buildProviders selects the search backends from config. The mock
// provider backs offline runs.
func buildProviders(cfg types.SearchConfig) ([]search.Provider, error) {
	switch cfg.Provider {
	case "", "mock":
		return []search.Provider{&search.MockProvider{NumResults: cfg.MaxResultsPerQuery}}, nil
	case "brave":
		if cfg.BraveAPIKey == "" {
			return nil, fmt.Errorf("brave provider selected but no API key configured")
		}
		return []search.Provider{&search.BraveProvider{
			APIKey:     cfg.BraveAPIKey,
			MaxResults: cfg.MaxResultsPerQuery,
			UserAgent:  cfg.UserAgent,
		}}, nil
	case "serpapi":
		if cfg.SerpAPIKey == "" {
			return nil, fmt.Errorf("serpapi provider selected but no API key configured")
		}
		return []search.Provider{&search.SerpAPIProvider{
			APIKey:     cfg.SerpAPIKey,
			MaxResults: cfg.MaxResultsPerQuery,
			UserAgent:  cfg.UserAgent,
		}}, nil
	default:
		return nil, fmt.Errorf("unknown search provider %q (want mock, brave, or serpapi)", cfg.Provider)
	}
}

// loadConfig overlays config file and environment values onto the
// defaults, then fills API keys from secrets.
func loadConfig() types.Config {
	cfg := types.DefaultConfig()

	if v := viper.GetString("search.provider"); v != "" {
		cfg.Search.Provider = v
	}
	if v := viper.GetInt("search.max_results_per_query"); v > 0 {
		cfg.Search.MaxResultsPerQuery = v
	}
	if v := viper.GetInt("search.worker_limit"); v > 0 {
		cfg.Search.WorkerLimit = v
	}
	if v := viper.GetDuration("search.cache_ttl"); v > 0 {
		cfg.Search.CacheTTL = v
	}
	if viper.IsSet("search.filter_pii") {
		cfg.Search.FilterPII = viper.GetBool("search.filter_pii")
	}
	if v := viper.GetString("llm.model"); v != "" {
		cfg.LLM.Model = v
	}
	if v := viper.GetInt("reflection.max_iterations"); v > 0 {
		cfg.Reflection.MaxIterations = v
	}
	if v := viper.GetFloat64("reflection.confidence_threshold"); v > 0 {
		cfg.Reflection.ConfidenceThreshold = v
	}
	if viper.IsSet("safety.strict_hallucination") {
		cfg.Safety.StrictHallucination = viper.GetBool("safety.strict_hallucination")
	}
	if v := viper.GetString("store.path"); v != "" {
		cfg.Store.Path = v
	}
	if v := viper.GetDuration("request_timeout"); v > 0 {
		cfg.RequestTimeout = v
	}
	if v := viper.GetString("sms.gateway_url"); v != "" {
		cfg.SMS.GatewayURL = v
	}
	if v := viper.GetString("sms.from_number"); v != "" {
		cfg.SMS.FromNumber = v
	}
	if v := viper.GetString("sms.account_sid"); v != "" {
		cfg.SMS.AccountSID = v
	}

	cfg.Search.BraveAPIKey = secretDefault("brave-api-key", viper.GetString("search.brave_api_key"))
	cfg.Search.SerpAPIKey = secretDefault("serpapi-api-key", viper.GetString("search.serpapi_key"))
	cfg.LLM.APIKey = secretDefault("gemini-api-key", viper.GetString("llm.api_key"))
	cfg.SMS.AuthToken = secretDefault("sms-auth-token", viper.GetString("sms.auth_token"))

	return cfg
}

func newLogger() (*zap.Logger, error) {
	if verbose, _ := rootCmd.PersistentFlags().GetBool("verbose"); verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.UTC().Format(time.RFC3339))
	}
	return cfg.Build()
}
