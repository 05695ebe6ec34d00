package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/triagestack/triage-engine/internal/cache"
	"github.com/triagestack/triage-engine/internal/classify"
	"github.com/triagestack/triage-engine/internal/config"
	"github.com/triagestack/triage-engine/internal/escalate"
	"github.com/triagestack/triage-engine/internal/ingest"
	"github.com/triagestack/triage-engine/internal/insights"
	"github.com/triagestack/triage-engine/internal/llm"
	"github.com/triagestack/triage-engine/internal/metrics"
	"github.com/triagestack/triage-engine/internal/pipeline"
	"github.com/triagestack/triage-engine/internal/repo"
	"github.com/triagestack/triage-engine/internal/services"
	"github.com/triagestack/triage-engine/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting triage-engine",
		slog.String("nats_url", cfg.NATS.URL),
		slog.String("subject", cfg.NATS.Subject))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cacheProvider := buildCacheProvider(cfg, logger)
	defer cacheProvider.Close()

	backend, err := llm.NewGeminiBackend(ctx, cfg.Model.APIKey, cfg.Model.Name)
	if err != nil {
		logger.Error("failed to create inference backend", slog.Any("error", err))
		os.Exit(1)
	}

	invoker := llm.NewInvoker(
		logger,
		backend,
		llm.Policy{
			MaxAttempts:   cfg.Model.MaxAttempts,
			InitialDelay:  cfg.Model.InitialDelay,
			MaxDelay:      cfg.Model.MaxDelay,
			BackoffFactor: cfg.Model.BackoffFactor,
		},
		cfg.Model.Name,
		cfg.Model.Version,
		cfg.Model.Timeout,
		cacheProvider,
		cfg.Cache.AnalysisTTL,
	)

	ledger := classify.NewMemoryLedger()
	classifier := classify.NewClassifier(logger, ledger)

	ruleStore, err := escalate.NewYAMLRuleStore(cfg.Rules.Path, logger)
	if err != nil {
		logger.Error("failed to load escalation rules", slog.Any("error", err))
		os.Exit(1)
	}

	chatClient := repo.NewChatClient(cfg.Chat.WebhookURL, cfg.Chat.Channel, cfg.Chat.Timeout)
	if cfg.Chat.WebhookURL != "" && !chatClient.CheckAvailability(ctx) {
		logger.Warn("chat webhook unreachable, escalation alerts may fail",
			slog.String("channel", cfg.Chat.Channel))
	}
	engine := escalate.NewEngine(logger, ruleStore, chatClient)

	var contexts pipeline.CodeContextProvider
	if cfg.CodeHost.BaseURL != "" {
		contexts = repo.NewCodeHostClient(
			cfg.CodeHost.BaseURL,
			cfg.CodeHost.Token,
			cfg.CodeHost.DefaultBranch,
			cfg.CodeHost.SnippetRadius,
			cfg.CodeHost.Timeout,
		)
	} else {
		logger.Warn("code host not configured, analyzing events without source context")
	}

	var wikiClient *repo.WikiClient
	var publisher pipeline.DocumentationPublisher
	if cfg.Wiki.BaseURL != "" {
		wikiClient = repo.NewWikiClient(cfg.Wiki.BaseURL, cfg.Wiki.Token, cfg.Wiki.Space, cfg.Wiki.Timeout)
		publisher = wikiClient
	} else {
		logger.Warn("wiki not configured, analyses will not be documented")
	}

	triagePipeline := pipeline.NewPipeline(
		logger,
		contexts,
		invoker,
		classifier,
		engine,
		publisher,
		cfg.Pipeline.RunTimeout,
	)
	triageService := services.NewTriageService(logger, triagePipeline)

	nc, err := nats.Connect(cfg.NATS.URL,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second))
	if err != nil {
		logger.Error("failed to connect to NATS", slog.String("url", cfg.NATS.URL), slog.Any("error", err))
		os.Exit(1)
	}
	defer nc.Close()

	subscriber := ingest.NewSubscriber(nc, logger, triageService, cfg.NATS.Subject, cfg.NATS.Queue)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := subscriber.Subscribe(ctx); err != nil {
			logger.Error("event subscription exited", slog.Any("error", err))
			stop()
		}
	}()

	if wikiClient != nil && cfg.Insights.Interval > 0 {
		miner := insights.NewMiner(logger, ledger, wikiClient, cfg.Insights.MinRecurrence, cfg.Insights.TopN)
		wg.Add(1)
		go func() {
			defer wg.Done()
			miner.Run(ctx, cfg.Insights.Interval)
		}()
	}

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			if !nc.IsConnected() {
				http.Error(w, "nats disconnected", http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		})
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")

	waitCh := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitCh)
	}()
	select {
	case <-waitCh:
	case <-time.After(cfg.Server.GracefulTimeout):
		logger.Warn("shutdown timed out waiting for workers")
	}

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	logger.Info("triage-engine stopped")
}

func buildCacheProvider(cfg *config.Config, logger *slog.Logger) cache.Provider {
	if !cfg.Cache.Enabled {
		return cache.NoopProvider{}
	}

	if cfg.Cache.Addr != "" {
		provider, err := cache.NewValkeyProvider(cache.ValkeyConfig{
			Addr:         cfg.Cache.Addr,
			Username:     cfg.Cache.Username,
			Password:     cfg.Cache.Password,
			DB:           cfg.Cache.DB,
			DialTimeout:  cfg.Cache.DialTimeout,
			ReadTimeout:  cfg.Cache.ReadTimeout,
			WriteTimeout: cfg.Cache.WriteTimeout,
			MaxRetries:   cfg.Cache.MaxRetries,
			TLS:          cfg.Cache.TLS,
		})
		if err != nil {
			logger.Warn("valkey cache unavailable, falling back to in-process cache", slog.Any("error", err))
		} else {
			return provider
		}
	}

	provider, err := cache.NewMemoryProvider(cfg.Cache.MemorySize)
	if err != nil {
		logger.Warn("memory cache unavailable, analysis caching disabled", slog.Any("error", err))
		return cache.NoopProvider{}
	}
	return provider
}
