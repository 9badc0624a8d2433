package model

import "time"

// CaptureKind identifies the raw artifact type behind a capture event.
type CaptureKind string

const (
	CaptureKindDocument CaptureKind = "document"
	CaptureKindAudio    CaptureKind = "audio"
)

// SchemaKind selects the structured-record schema a transcript is parsed into.
type SchemaKind string

const (
	SchemaMedication SchemaKind = "medication"
	SchemaSoap       SchemaKind = "soap"
)

// Schema returns the record schema that corresponds to a capture kind:
// scanned documents become medication records, consultation audio becomes
// SOAP encounter notes.
func (k CaptureKind) Schema() SchemaKind {
	if k == CaptureKindAudio {
		return SchemaSoap
	}
	return SchemaMedication
}

// CaptureEvent identifies one incoming raw artifact. It is created by the
// upload trigger, is immutable, and is consumed once by the pipeline.
type CaptureEvent struct {
	ID               string      `json:"id"`
	PatientID        string      `json:"patient_id"`
	ArtifactLocation string      `json:"artifact_location"`
	Kind             CaptureKind `json:"capture_kind"`
	ReceivedAt       time.Time   `json:"received_at"`
}

// Transcript is the flattened text output of a recognition provider.
// Text is never empty: an empty extraction is a terminal failure upstream
// and never reaches structuring.
type Transcript struct {
	Text       string      `json:"text"`
	SourceKind CaptureKind `json:"source_kind"`
}
