package model

import (
	"encoding/json"
	"time"
)

// EntryStatus marks whether a history entry passed schema validation or
// needs manual review.
type EntryStatus string

const (
	EntryStatusCompleted      EntryStatus = "completed"
	EntryStatusReviewRequired EntryStatus = "review_required"
)

// HistoryEntry is one persisted, timestamped clinical record for a patient.
// (PatientID, Timestamp) is the uniqueness key within the patient partition;
// entries are append-only and never mutated after creation.
type HistoryEntry struct {
	PatientID      string          `json:"patient_id"`
	Timestamp      int64           `json:"timestamp"`
	SchemaKind     SchemaKind      `json:"schema_kind"`
	Status         EntryStatus     `json:"status"`
	Payload        json.RawMessage `json:"payload"`
	TranscriptText string          `json:"transcript_text"`
	SourceArtifact string          `json:"source_artifact_location"`
	CreatedAt      string          `json:"created_at"` // ISO-8601
}

// MedicationPayload decodes the entry payload as a MedicationRecord.
// Returns nil for entries of other schema kinds or degraded entries.
func (e *HistoryEntry) MedicationPayload() *MedicationRecord {
	if e.SchemaKind != SchemaMedication || e.Status != EntryStatusCompleted {
		return nil
	}
	var rec MedicationRecord
	if err := json.Unmarshal(e.Payload, &rec); err != nil {
		return nil
	}
	return &rec
}

// MedicationTimelineItem is one medication with its prescribing context,
// aggregated across a patient's medication records for timeline views.
type MedicationTimelineItem struct {
	Medication     Medication `json:"medication"`
	PrescribedAt   string     `json:"prescription_date"`
	Doctor         string     `json:"doctor"`
	Diagnoses      []string   `json:"diagnoses,omitempty"`
	SourceArtifact string     `json:"source_artifact_location,omitempty"`
}

// Patient is a registered patient record.
type Patient struct {
	ID        string    `json:"patient_id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Age       int       `json:"age,omitempty"`
	Gender    string    `json:"gender,omitempty"`
	Village   string    `json:"village,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
