package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/swasya-health/capture-pipeline/internal/extract"
	"github.com/swasya-health/capture-pipeline/internal/pipeline"
	"github.com/swasya-health/capture-pipeline/internal/recognize"
	"github.com/swasya-health/capture-pipeline/internal/registry"
	"github.com/swasya-health/capture-pipeline/internal/store"
	"github.com/swasya-health/capture-pipeline/internal/structure"
	"github.com/swasya-health/capture-pipeline/pkg/gentext"
)

// pipelineEnv holds the initialized store, registry, and pipeline shared by
// the process/serve commands.
type pipelineEnv struct {
	Store    store.Store
	Registry registry.Registry
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline sets up the store, provider clients, and the pipeline.
// Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	st, err := store.NewStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	recognizer, err := recognize.NewClient(cfg.Recognition)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	reg := registry.New(st)
	adapter := extract.NewAdapter(recognizer)
	engine := structure.NewEngine(gentext.NewClient(cfg.Gentext.Key, cfg.Gentext.RequestsPerSecond), cfg.Gentext)
	p := pipeline.New(cfg.Pipeline, st, reg, adapter, engine)

	return &pipelineEnv{
		Store:    st,
		Registry: reg,
		Pipeline: p,
	}, nil
}

// initStore opens and migrates just the store, for commands that only read
// or write history without calling any provider.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.NewStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}
