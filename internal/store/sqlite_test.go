package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swasya-health/capture-pipeline/internal/config"
	"github.com/swasya-health/capture-pipeline/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func seedPatient(t *testing.T, s *SQLiteStore, id string) {
	t.Helper()
	require.NoError(t, s.CreatePatient(context.Background(), &model.Patient{
		ID:   id,
		Name: "Asha Devi",
	}))
}

func medicationPayload(t *testing.T, rec model.MedicationRecord) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(rec)
	require.NoError(t, err)
	return b
}

func TestSQLite_PatientRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := &model.Patient{
		ID:      "PAT_1A2B3C4D",
		Name:    "Asha Devi",
		Phone:   "9876543210",
		Age:     34,
		Gender:  "F",
		Village: "Rajpur",
	}
	require.NoError(t, s.CreatePatient(ctx, p))

	got, err := s.GetPatient(ctx, "PAT_1A2B3C4D")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Asha Devi", got.Name)
	assert.Equal(t, 34, got.Age)
	assert.False(t, got.CreatedAt.IsZero())

	missing, err := s.GetPatient(ctx, "PAT_DEADBEEF")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLite_CreatePatient_DuplicateID(t *testing.T) {
	s := newTestStore(t)
	seedPatient(t, s, "PAT_1A2B3C4D")
	err := s.CreatePatient(context.Background(), &model.Patient{ID: "PAT_1A2B3C4D", Name: "Other"})
	assert.Error(t, err)
}

func TestSQLite_AppendEntry_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedPatient(t, s, "PAT_1A2B3C4D")

	ts := time.Now().Unix()
	entry := &model.HistoryEntry{
		PatientID:  "PAT_1A2B3C4D",
		Timestamp:  ts,
		SchemaKind: model.SchemaMedication,
		Status:     model.EntryStatusCompleted,
		Payload:    json.RawMessage(`{"medications":[]}`),
		CreatedAt:  "2026-08-30T10:00:00Z",
	}
	require.NoError(t, s.AppendEntry(ctx, entry))

	// Replay with the same key wins over the first write.
	entry.Payload = json.RawMessage(`{"medications":[{"name":"Amoxicillin","dosage":"500mg","frequency":"bd","duration":"7d"}]}`)
	require.NoError(t, s.AppendEntry(ctx, entry))

	entries, err := s.ListEntries(ctx, "PAT_1A2B3C4D", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, string(entries[0].Payload), "Amoxicillin")
}

func TestSQLite_ListEntries_AscendingOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedPatient(t, s, "PAT_1A2B3C4D")

	for _, ts := range []int64{300, 100, 200} {
		require.NoError(t, s.AppendEntry(ctx, &model.HistoryEntry{
			PatientID:  "PAT_1A2B3C4D",
			Timestamp:  ts,
			SchemaKind: model.SchemaSoap,
			Status:     model.EntryStatusCompleted,
			Payload:    json.RawMessage(`{}`),
			CreatedAt:  "2026-08-30T10:00:00Z",
		}))
	}

	entries, err := s.ListEntries(ctx, "PAT_1A2B3C4D", 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, int64(100), entries[0].Timestamp)
	assert.Equal(t, int64(200), entries[1].Timestamp)
	assert.Equal(t, int64(300), entries[2].Timestamp)

	limited, err := s.ListEntries(ctx, "PAT_1A2B3C4D", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestSQLite_LatestEntry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedPatient(t, s, "PAT_1A2B3C4D")

	none, err := s.LatestEntry(ctx, "PAT_1A2B3C4D")
	require.NoError(t, err)
	assert.Nil(t, none)

	for _, ts := range []int64{100, 300, 200} {
		require.NoError(t, s.AppendEntry(ctx, &model.HistoryEntry{
			PatientID:  "PAT_1A2B3C4D",
			Timestamp:  ts,
			SchemaKind: model.SchemaMedication,
			Status:     model.EntryStatusCompleted,
			Payload:    json.RawMessage(`{}`),
			CreatedAt:  "2026-08-30T10:00:00Z",
		}))
	}

	latest, err := s.LatestEntry(ctx, "PAT_1A2B3C4D")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, int64(300), latest.Timestamp)
}

func TestMedicationTimeline(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedPatient(t, s, "PAT_1A2B3C4D")

	older := medicationPayload(t, model.MedicationRecord{
		Medications: []model.Medication{{Name: "Metformin", Dosage: "500mg", Frequency: "od", Duration: "30d"}},
		Diagnoses:   []string{"Type 2 diabetes"},
		DoctorName:  "Dr. Rao",
	})
	newer := medicationPayload(t, model.MedicationRecord{
		Medications: []model.Medication{
			{Name: "Amoxicillin", Dosage: "500mg", Frequency: "bd", Duration: "7d"},
			{Name: "Paracetamol", Dosage: "650mg", Frequency: "sos", Duration: "3d"},
		},
		DoctorName: "Dr. Sharma",
	})

	require.NoError(t, s.AppendEntry(ctx, &model.HistoryEntry{
		PatientID: "PAT_1A2B3C4D", Timestamp: 1000,
		SchemaKind: model.SchemaMedication, Status: model.EntryStatusCompleted,
		Payload: older, SourceArtifact: "phc-document-uploads/old.jpg", CreatedAt: "x",
	}))
	require.NoError(t, s.AppendEntry(ctx, &model.HistoryEntry{
		PatientID: "PAT_1A2B3C4D", Timestamp: 2000,
		SchemaKind: model.SchemaMedication, Status: model.EntryStatusCompleted,
		Payload: newer, SourceArtifact: "phc-document-uploads/new.jpg", CreatedAt: "x",
	}))
	// SOAP and degraded entries never contribute medications.
	require.NoError(t, s.AppendEntry(ctx, &model.HistoryEntry{
		PatientID: "PAT_1A2B3C4D", Timestamp: 3000,
		SchemaKind: model.SchemaSoap, Status: model.EntryStatusCompleted,
		Payload: json.RawMessage(`{"subjective":"x"}`), CreatedAt: "x",
	}))
	require.NoError(t, s.AppendEntry(ctx, &model.HistoryEntry{
		PatientID: "PAT_1A2B3C4D", Timestamp: 4000,
		SchemaKind: model.SchemaMedication, Status: model.EntryStatusReviewRequired,
		Payload: json.RawMessage(`{"raw_text":"garbled"}`), CreatedAt: "x",
	}))

	items, err := MedicationTimeline(ctx, s, "PAT_1A2B3C4D")
	require.NoError(t, err)
	require.Len(t, items, 3)

	// Newest record first, medications in record order within it.
	assert.Equal(t, "Amoxicillin", items[0].Medication.Name)
	assert.Equal(t, "Dr. Sharma", items[0].Doctor)
	assert.Equal(t, "Paracetamol", items[1].Medication.Name)
	assert.Equal(t, "Metformin", items[2].Medication.Name)
	assert.Equal(t, []string{"Type 2 diabetes"}, items[2].Diagnoses)
	assert.Equal(t, "1970-01-01", items[2].PrescribedAt)
}

func TestNewStore_UnknownDriver(t *testing.T) {
	_, err := NewStore(context.Background(), config.StoreConfig{Driver: "oracle"})
	assert.Error(t, err)
}
