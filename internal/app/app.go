// Package app wires the components from configuration. Both binaries build
// on it.
package app

import (
	"context"
	"fmt"

	"interview-insights-go/internal/aggregator"
	"interview-insights-go/internal/clustering"
	"interview-insights-go/internal/config"
	"interview-insights-go/internal/embedding"
	"interview-insights-go/internal/extractor"
	"interview-insights-go/internal/jobs"
	"interview-insights-go/internal/logger"
	"interview-insights-go/internal/people"
	"interview-insights-go/internal/pipeline"
	"interview-insights-go/internal/processor"
	"interview-insights-go/internal/store"
	"interview-insights-go/internal/transcription"
)

type App struct {
	Config *config.Config
	Log    *logger.Logger
	Store  *store.Store

	Queue        *jobs.GormQueue
	Registry     *jobs.Registry
	Worker       *jobs.Worker
	Orchestrator *pipeline.Orchestrator
	Pipeline     *pipeline.Service

	Embeddings *embedding.Generator
	Clusters   *clustering.Engine
	PainMatrix *aggregator.Builder

	Resolver *people.Resolver
	Merger   *people.Merger
	Deduper  *people.Deduper
	Syncer   *people.FacetSyncer
}

// Open connects to the configured database, migrates it and wires the app.
func Open(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	s, err := store.Open(cfg.Database, log)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return New(cfg, s, log), nil
}

// New wires every component on top of an open store.
func New(cfg *config.Config, s *store.Store, log *logger.Logger) *App {
	a := &App{Config: cfg, Log: log, Store: s}

	var transcriber transcription.Transcriber = transcription.MockClient{}
	if !cfg.Transcription.Mock {
		transcriber = transcription.NewClient(cfg.Transcription, log)
	}
	var generator extractor.Generator = extractor.MockGenerator{}
	if !cfg.LLM.Mock {
		generator = extractor.NewLLMGenerator(extractor.NewLLMClient(cfg.LLM, log))
	}
	var embedder embedding.Embedder = embedding.MockEmbedder{Dimension: cfg.Embedding.Dimension}
	if !cfg.Embedding.Mock {
		embedder = embedding.NewHTTPEmbedder(cfg.Embedding, log)
	}
	log.WithField("mock_transcribe", cfg.Transcription.Mock).
		WithField("mock_llm", cfg.LLM.Mock).
		WithField("mock_embedding", cfg.Embedding.Mock).
		Info("upstream clients configured")

	a.Embeddings = embedding.NewGenerator(s.Facets(), embedder, cfg.Embedding, log)
	a.Clusters = clustering.NewEngine(s.Facets(), cfg.Clustering.Threshold, log)
	a.PainMatrix = aggregator.NewBuilder(a.Clusters, s.Evidence(), s.People(), aggregator.Options{
		MinEvidencePerPain: cfg.Clustering.MinEvidencePerPain,
		MinGroupSize:       cfg.Clustering.MinGroupSize,
	}, log)

	a.Resolver = people.NewResolver(s.People(), log)
	a.Merger = people.NewMerger(s, log)
	a.Deduper = people.NewDeduper(s, a.Merger, log)
	a.Syncer = people.NewFacetSyncer(s, log)

	stages := processor.New(processor.Deps{
		Store:       s,
		Transcriber: transcriber,
		Sanitizer:   transcription.NewSanitizer(log),
		Extractor:   extractor.New(generator, log),
		Embeddings:  a.Embeddings,
		Clusters:    a.Clusters,
		Resolver:    a.Resolver,
		Syncer:      a.Syncer,
	}, log)
	a.Orchestrator = pipeline.NewOrchestrator(stages, s.Interviews(), pipeline.Options{
		StageAttempts:  cfg.Worker.StageAttempts,
		StageBaseDelay: cfg.Worker.RetryBaseDelay(),
	}, log)

	policy := jobs.RetryPolicy{
		MaxAttempts: cfg.Worker.MaxAttempts,
		BaseDelay:   cfg.Worker.RetryBaseDelay(),
		MaxDelay:    cfg.Worker.RetryMaxDelay(),
	}
	a.Queue = jobs.NewGormQueue(s.JobRuns(), policy)
	a.Registry = jobs.NewRegistry()
	a.Registry.Register(pipeline.NewOrchestrateHandler(a.Orchestrator))
	a.Registry.Register(embedding.NewBackfillHandler(a.Embeddings))
	a.Registry.Register(people.NewSyncFacetsHandler(a.Syncer))
	a.Worker = jobs.NewWorker(s.JobRuns(), a.Registry, jobs.WorkerOptions{
		Concurrency:  cfg.Worker.Concurrency,
		PollInterval: cfg.Worker.PollInterval(),
		StaleAfter:   cfg.Worker.StaleAfter(),
		Policy:       policy,
	}, log)

	a.Pipeline = pipeline.NewService(s.Interviews(), a.Queue, log)
	return a
}

func (a *App) Close() error {
	return a.Store.Close()
}
