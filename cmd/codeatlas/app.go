package main

import (
	"context"
	"fmt"

	"github.com/codeatlas-ai/codeatlas/internal/agent"
	"github.com/codeatlas-ai/codeatlas/internal/graph"
	"github.com/codeatlas-ai/codeatlas/internal/llm"
	"github.com/codeatlas-ai/codeatlas/internal/registry"
	"github.com/codeatlas-ai/codeatlas/internal/risk"
	"github.com/codeatlas-ai/codeatlas/internal/search"
	"github.com/codeatlas-ai/codeatlas/internal/tools"
	"github.com/sirupsen/logrus"
)

// app wires the shared services commands need. Commands build what they
// use and close it when done.
type app struct {
	store    *graph.Store
	search   *search.Client
	registry *registry.Registry
	tools    *tools.Registry
	logger   *logrus.Logger
}

func newApp(ctx context.Context, logger *logrus.Logger) (*app, error) {
	store, err := graph.OpenStore(cfg.Storage.GraphPath)
	if err != nil {
		return nil, fmt.Errorf("open graph store: %w", err)
	}

	searchClient, err := search.NewClient(cfg.Search.WeaviateURL, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("connect to weaviate at %s: %w", cfg.Search.WeaviateURL, err)
	}
	if err := searchClient.Ready(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("weaviate at %s is not ready: %w", cfg.Search.WeaviateURL, err)
	}

	reg := registry.New(store, searchClient, logger)
	toolRegistry := tools.NewRegistry(reg, searchClient, cfg.Agent.MaxReadBytes, logger)

	return &app{
		store:    store,
		search:   searchClient,
		registry: reg,
		tools:    toolRegistry,
		logger:   logger,
	}, nil
}

func (a *app) Close() {
	a.store.Close()
}

// newAgent builds the orchestrator from config: LLM backend, throttling,
// ranker.
func (a *app) newAgent(ctx context.Context) (*agent.Orchestrator, llm.Client, error) {
	if cfg.LLM.APIKey == "" {
		return nil, nil, fmt.Errorf("no API key configured; run 'codeatlas configure' or set GEMINI_API_KEY")
	}
	client, err := llm.NewClient(ctx, cfg.LLM.Provider, cfg.LLM.APIKey, cfg.LLM.Model)
	if err != nil {
		return nil, nil, err
	}
	throttled := llm.NewThrottledClient(client, cfg.LLM.RequestsPerMinute, a.logger)

	ranker, err := risk.NewRanker(cfg.Risk.FanInThreshold, cfg.Risk.TestPattern, a.logger)
	if err != nil {
		client.Close()
		return nil, nil, err
	}

	orch := agent.New(throttled, a.tools, a.registry, ranker, cfg.Agent.MaxIterations, a.logger)
	return orch, throttled, nil
}
