package cli

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"sage/internal/actions"
	"sage/internal/actions/critique"
	"sage/internal/actions/research"
	"sage/internal/actions/strategy"
	"sage/internal/actions/summarize"
	"sage/internal/config"
	"sage/internal/docparse"
	"sage/internal/executor"
	"sage/internal/llm_client"
	"sage/internal/logger"
	"sage/internal/memory"
	"sage/internal/metrics"
	"sage/internal/planner"
	"sage/internal/retrieval"
	"sage/internal/search"
	"sage/internal/supervisor"
)

// app holds the wired components shared by every command.
type app struct {
	cfg        *config.Config
	log        *zap.Logger
	memory     *memory.Store
	tracker    *planner.Tracker
	documents  *retrieval.Engine
	supervisor *supervisor.Supervisor
	registry   *prometheus.Registry
}

func newApp(cfg *config.Config) (*app, error) {
	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File})
	if err != nil {
		return nil, err
	}

	mem, err := memory.Open(cfg.Memory.Path, log)
	if err != nil {
		return nil, fmt.Errorf("open memory store: %w", err)
	}

	// A missing backend leaves the service answering with apologies, which
	// keeps ingest and chunk inspection usable offline.
	provider, err := llm_client.NewProvider(llm_client.Config{
		Backend:    cfg.LLM.Backend,
		Model:      cfg.LLM.Model,
		OllamaHost: cfg.LLM.OllamaHost,
		APIKey:     cfg.LLM.APIKey,
	})
	if err != nil {
		log.Warn("LLM backend unavailable", zap.String("backend", cfg.LLM.Backend), zap.Error(err))
	}
	gen := llm_client.NewService(provider, cfg.LLM.Model, log)

	var searcher search.Searcher
	if cfg.Search.Enabled {
		searcher, err = search.New(search.Config{
			Provider: cfg.Search.Provider,
			Endpoint: cfg.Search.Endpoint,
			APIKey:   cfg.Search.APIKey,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("init search: %w", err)
		}
	}

	documents := retrieval.NewEngine(docparse.New(), retrieval.NewMemoryRepository(), gen, retrieval.Options{
		ChunkSize: cfg.Retrieval.ChunkSize,
		TopK:      cfg.Retrieval.TopK,
	}, log)

	registry, err := actions.NewRegistry(actions.Handlers{
		Research: research.New(gen, research.Options{
			Searcher:   searcher,
			NumResults: cfg.Search.NumResults,
			Documents:  documents,
			TopK:       cfg.Retrieval.TopK,
			Memory:     mem,
		}, log),
		Summarize: summarize.New(gen, cfg.Pipeline.SummaryMaxWords, log),
		Critique:  critique.New(gen, cfg.Pipeline.CritiqueThreshold, log),
		Strategy:  strategy.New(gen, log),
	})
	if err != nil {
		return nil, err
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	col := metrics.NewCollectors(promReg)

	tracker := planner.NewTracker(log)
	sup := supervisor.New(tracker, executor.New(registry, col, log), mem, col, supervisor.Options{
		CritiqueThreshold: cfg.Pipeline.CritiqueThreshold,
		SummarizeMinWords: cfg.Pipeline.SummarizeMinWords,
		SkipPolicy:        supervisor.SkipPolicy(cfg.Pipeline.CritiqueSkipPolicy),
	}, log)

	return &app{
		cfg:        cfg,
		log:        log,
		memory:     mem,
		tracker:    tracker,
		documents:  documents,
		supervisor: sup,
		registry:   promReg,
	}, nil
}

func (a *app) Close() {
	_ = a.log.Sync()
}
