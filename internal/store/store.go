// Package store persists patients and their append-only clinical history.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/swasya-health/capture-pipeline/internal/config"
	"github.com/swasya-health/capture-pipeline/internal/model"
)

// Store defines the persistence interface for the capture pipeline.
//
// AppendEntry is an idempotent upsert on (patient_id, timestamp): replaying
// the same event overwrites the prior row, so history never gains duplicates.
type Store interface {
	// Patients
	CreatePatient(ctx context.Context, p *model.Patient) error
	GetPatient(ctx context.Context, patientID string) (*model.Patient, error)
	ListPatients(ctx context.Context, limit int) ([]model.Patient, error)

	// History
	AppendEntry(ctx context.Context, entry *model.HistoryEntry) error
	ListEntries(ctx context.Context, patientID string, limit int) ([]model.HistoryEntry, error)
	LatestEntry(ctx context.Context, patientID string) (*model.HistoryEntry, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// NewStore creates a Store from config, selecting the backend by driver.
func NewStore(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return NewSQLite(cfg.DatabaseURL)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

// MedicationTimeline aggregates every medication across a patient's completed
// medication records, newest record first. Degraded and SOAP entries are
// skipped; each medication carries its prescribing context.
func MedicationTimeline(ctx context.Context, s Store, patientID string) ([]model.MedicationTimelineItem, error) {
	entries, err := s.ListEntries(ctx, patientID, 0)
	if err != nil {
		return nil, eris.Wrapf(err, "store: medication timeline for %s", patientID)
	}

	items := []model.MedicationTimelineItem{}
	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]
		rec := entry.MedicationPayload()
		if rec == nil {
			continue
		}
		prescribedAt := time.Unix(entry.Timestamp, 0).UTC().Format("2006-01-02")
		for _, med := range rec.Medications {
			items = append(items, model.MedicationTimelineItem{
				Medication:     med,
				PrescribedAt:   prescribedAt,
				Doctor:         rec.DoctorName,
				Diagnoses:      rec.Diagnoses,
				SourceArtifact: entry.SourceArtifact,
			})
		}
	}
	return items, nil
}
