package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"sitescout/internal/config"
	"sitescout/internal/embedding"
	"sitescout/internal/explore"
	"sitescout/internal/fetch"
	"sitescout/internal/llm"
	"sitescout/internal/notify"
)

const (
	scorerSystemPrompt    = "You rate how likely a link leads to content that satisfies a user's goal. Reply with JSON only."
	extractorSystemPrompt = "You extract content from web pages that satisfies a user's goal. Reply with JSON only."
	deciderSystemPrompt   = "You decide whether a user asked for results to be emailed. Reply with JSON only."
)

// app bundles the controller with the resources that must be released on exit.
type app struct {
	controller explore.Controller
	closers    []func() error
}

func (a app) Close() {
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			logger.Warn("Close failed", zap.Error(err))
		}
	}
}

func newCompleter(cfg config.Config) llm.Completer {
	if cfg.LLMProvider == "openrouter" {
		return llm.NewOpenRouterClient(cfg.OpenRouterAPIKey, cfg.OpenRouterBaseURL, nil)
	}
	return llm.NewOpenAIClient(cfg.LLMAPIKey, cfg.LLMBaseURL, nil)
}

func newRenderer(cfg config.Config) (fetch.Renderer, func() error) {
	if cfg.FetchMode == "http" {
		renderer := fetch.NewHTTPRenderer(fetch.HTTPConfig{
			RequestTimeout:       cfg.FetchTimeout,
			AllowPrivateNetworks: cfg.AllowPrivateNetworks,
		}, nil)
		return renderer, func() error { return nil }
	}
	renderer := fetch.NewBrowserRenderer(fetch.BrowserConfig{
		Bin:                  cfg.BrowserBin,
		ControlURL:           cfg.BrowserControlURL,
		Headless:             true,
		NavigationTimeout:    cfg.FetchTimeout,
		AllowPrivateNetworks: cfg.AllowPrivateNetworks,
	})
	return renderer, renderer.Close
}

func newNotifier(ctx context.Context, cfg config.Config, completer llm.Completer) (*notify.Notifier, error) {
	decider := notify.NewLLMDecider(llm.NewResponder(completer, llm.ResponderConfig{
		Model:        cfg.LLMModel,
		SystemPrompt: deciderSystemPrompt,
		MaxAttempts:  cfg.LLMMaxAttempts,
	}))

	if !cfg.EmailEnabled() {
		return notify.NewNotifier(decider, nil, cfg.EmailSubject, logger), nil
	}
	sender, err := notify.NewGmailSender(ctx, cfg.GmailCredentialsFile, cfg.GmailSender)
	if err != nil {
		return nil, fmt.Errorf("gmail sender: %w", err)
	}
	return notify.NewNotifier(decider, sender, cfg.EmailSubject, logger), nil
}

func buildApp(ctx context.Context, cfg config.Config) (app, error) {
	completer := newCompleter(cfg)
	scorer := explore.NewJSONScorer(llm.NewResponder(completer, llm.ResponderConfig{
		Model:        cfg.LLMModel,
		SystemPrompt: scorerSystemPrompt,
		Temperature:  cfg.ScorerTemperature,
		MaxAttempts:  cfg.LLMMaxAttempts,
	}))
	extractor := explore.NewJSONExtractor(llm.NewResponder(completer, llm.ResponderConfig{
		Model:        cfg.LLMModel,
		SystemPrompt: extractorSystemPrompt,
		Temperature:  cfg.ExtractorTemperature,
		MaxAttempts:  cfg.LLMMaxAttempts,
	}))

	engine, err := embedding.NewEngine(ctx, embedding.Config{
		Provider:       cfg.EmbeddingProvider,
		OllamaEndpoint: cfg.OllamaEndpoint,
		OllamaModel:    cfg.OllamaModel,
		GenAIAPIKey:    cfg.GenAIAPIKey,
		GenAIModel:     cfg.GenAIModel,
	})
	if err != nil {
		return app{}, fmt.Errorf("embedding engine: %w", err)
	}

	notifier, err := newNotifier(ctx, cfg, completer)
	if err != nil {
		return app{}, err
	}

	renderer, closeRenderer := newRenderer(cfg)
	fetcher := fetch.NewFetcher(fetch.NewThrottledRenderer(renderer, cfg.FetchMinInterval), 0)

	controller := explore.NewController(fetcher, scorer, extractor, explore.NewEmbeddingGrouper(engine), notifier, explore.Options{
		MaxPages:            cfg.MaxPages,
		BatchSize:           cfg.BatchSize,
		MinScoreThreshold:   cfg.MinScoreThreshold,
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		GroupThreshold:      cfg.GroupSimilarityThreshold,
		MaxConcurrent:       cfg.MaxConcurrent,
	})

	logger.Info("Explorer ready",
		zap.String("llm_provider", cfg.LLMProvider),
		zap.String("model", cfg.LLMModel),
		zap.String("embedding", engine.Name()),
		zap.String("fetch_mode", cfg.FetchMode),
		zap.Bool("email", cfg.EmailEnabled()),
	)
	return app{controller: controller, closers: []func() error{closeRenderer}}, nil
}
