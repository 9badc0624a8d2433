// Package pipeline orchestrates one capture event end to end: validate,
// extract, structure, persist. Each run either appends exactly one history
// entry or fails with a classified terminal error; there are no partial
// writes.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/swasya-health/capture-pipeline/internal/config"
	"github.com/swasya-health/capture-pipeline/internal/model"
	"github.com/swasya-health/capture-pipeline/internal/registry"
	"github.com/swasya-health/capture-pipeline/internal/resilience"
	"github.com/swasya-health/capture-pipeline/internal/store"
)

// Extractor turns a capture event into a transcript.
type Extractor interface {
	Extract(ctx context.Context, event *model.CaptureEvent) (*model.Transcript, error)
}

// Structurer turns a transcript into a typed or degraded record.
type Structurer interface {
	Structure(ctx context.Context, transcript *model.Transcript, schema model.SchemaKind) (*model.StructuredResult, error)
}

// Outcome summarizes a completed pipeline run.
type Outcome struct {
	PatientID string            `json:"patient_id"`
	Timestamp int64             `json:"timestamp"`
	Schema    model.SchemaKind  `json:"schema_kind"`
	Status    model.EntryStatus `json:"status"`
}

// Pipeline wires the stages together.
type Pipeline struct {
	cfg       config.PipelineConfig
	st        store.Store
	reg       registry.Registry
	extractor Extractor
	engine    Structurer
	now       func() time.Time
}

// New creates a Pipeline with all dependencies.
func New(cfg config.PipelineConfig, st store.Store, reg registry.Registry, extractor Extractor, engine Structurer) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		st:        st,
		reg:       reg,
		extractor: extractor,
		engine:    engine,
		now:       time.Now,
	}
}

// Run processes one upload notification end to end and returns the outcome
// of the appended history entry. All terminal errors are *Failure values.
func (p *Pipeline) Run(ctx context.Context, bucket, key string) (*Outcome, error) {
	event, err := ParseEvent(bucket, key, p.cfg.Buckets, p.now().UTC())
	if err != nil {
		return nil, err
	}

	log := zap.L().With(
		zap.String("event_id", event.ID),
		zap.String("patient_id", event.PatientID),
		zap.String("artifact", event.ArtifactLocation),
		zap.String("kind", string(event.Kind)),
	)
	log.Info("pipeline: processing capture event")

	// The registry is store-backed, so a transport error here is a
	// persistence-layer fault, not an identity verdict.
	known, err := p.reg.Exists(ctx, event.PatientID)
	if err != nil {
		return nil, newFailure(FailPersistence, event.PatientID, err)
	}
	if !known {
		return nil, newFailure(FailUnknownPatient, event.PatientID, nil)
	}

	// Extraction failures are terminal; no provider retry beyond what the
	// HTTP client already does, and nothing is persisted.
	extractCtx, cancelExtract := context.WithTimeout(ctx, p.cfg.ExtractTimeout())
	transcript, err := p.extractor.Extract(extractCtx, event)
	cancelExtract()
	if err != nil {
		log.Error("pipeline: extraction failed",
			zap.String("error_class", resilience.ClassifyError(err)),
			zap.Error(err),
		)
		return nil, newFailure(FailExtraction, event.PatientID, err)
	}

	schema := event.Kind.Schema()
	result, err := resilience.DoVal(ctx, resilience.RetryConfig{
		MaxAttempts: p.cfg.StructureMaxAttempts,
		OnRetry:     resilience.RetryLogger("gentext", "structure"),
	}, func(ctx context.Context) (*model.StructuredResult, error) {
		structureCtx, cancel := context.WithTimeout(ctx, p.cfg.StructureTimeout())
		defer cancel()
		return p.engine.Structure(structureCtx, transcript, schema)
	})
	if err != nil {
		log.Error("pipeline: structuring provider failed",
			zap.String("error_class", resilience.ClassifyError(err)),
			zap.Error(err),
		)
		return nil, newFailure(FailStructuringFailure, event.PatientID, err)
	}

	status := model.EntryStatusCompleted
	if result.IsDegraded() {
		status = model.EntryStatusReviewRequired
		log.Warn("pipeline: structuring degraded, persisting for review")
	}

	payload, err := result.Payload()
	if err != nil {
		return nil, newFailure(FailPersistence, event.PatientID, err)
	}

	persistedAt := p.now().UTC()
	entry := &model.HistoryEntry{
		PatientID:      event.PatientID,
		Timestamp:      persistedAt.Unix(),
		SchemaKind:     schema,
		Status:         status,
		Payload:        payload,
		TranscriptText: transcript.Text,
		SourceArtifact: event.ArtifactLocation,
		CreatedAt:      persistedAt.Format(time.RFC3339),
	}

	// Once a run reaches persistence it completes even if the caller's
	// context is cancelled at shutdown; only the stage timeout bounds the
	// append.
	err = resilience.Do(context.WithoutCancel(ctx), resilience.RetryConfig{
		MaxAttempts: p.cfg.PersistMaxAttempts,
		ShouldRetry: func(error) bool { return true },
		OnRetry:     resilience.RetryLogger("store", "append_entry"),
	}, func(ctx context.Context) error {
		persistCtx, cancel := context.WithTimeout(ctx, p.cfg.PersistTimeout())
		defer cancel()
		return p.st.AppendEntry(persistCtx, entry)
	})
	if err != nil {
		log.Error("pipeline: persistence failed", zap.Error(err))
		return nil, newFailure(FailPersistence, event.PatientID, err)
	}

	log.Info("pipeline: capture event processed",
		zap.String("schema", string(schema)),
		zap.String("status", string(status)),
		zap.Int64("timestamp", entry.Timestamp),
	)

	return &Outcome{
		PatientID: event.PatientID,
		Timestamp: entry.Timestamp,
		Schema:    schema,
		Status:    status,
	}, nil
}
