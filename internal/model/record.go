package model

import (
	"encoding/json"

	"github.com/rotisserie/eris"
)

// DocumentType classifies the source document of a medication record.
type DocumentType string

const (
	DocumentTypePrescription DocumentType = "prescription"
	DocumentTypeLabReport    DocumentType = "lab_report"
	DocumentTypeDiagnosis    DocumentType = "diagnosis"
	DocumentTypeOther        DocumentType = "other"
)

// NormalizeDocumentType maps free-form provider output onto the closed
// DocumentType set, defaulting to "other".
func NormalizeDocumentType(s string) DocumentType {
	switch DocumentType(s) {
	case DocumentTypePrescription, DocumentTypeLabReport, DocumentTypeDiagnosis:
		return DocumentType(s)
	default:
		return DocumentTypeOther
	}
}

// Medication is one prescribed item extracted from a document.
type Medication struct {
	Name      string `json:"name"`
	Dosage    string `json:"dosage"`
	Frequency string `json:"frequency"`
	Duration  string `json:"duration"`
}

// MedicationRecord is the structured form of a scanned medical document.
type MedicationRecord struct {
	Medications  []Medication `json:"medications"`
	Diagnoses    []string     `json:"diagnoses"`
	Dates        []string     `json:"dates"`
	DoctorName   string       `json:"doctor_name"`
	HospitalName string       `json:"hospital_name"`
	DocumentType DocumentType `json:"document_type"`
}

// EncounterNote is a SOAP-structured consultation note. All fields are
// required; a note missing any of them fails schema validation.
type EncounterNote struct {
	Subjective     string `json:"subjective"`
	Objective      string `json:"objective"`
	Assessment     string `json:"assessment"`
	Plan           string `json:"plan"`
	ChiefComplaint string `json:"chief_complaint"`
}

// DegradedRecord is the fallback produced when the generative provider
// responded but its output could not be parsed into the requested schema.
// It retains truncated copies of the transcript and the raw response so a
// human can review the entry; it is persisted, never dropped.
type DegradedRecord struct {
	RawText             string `json:"raw_text"`
	RawProviderResponse string `json:"raw_provider_response"`
	ReviewFlag          bool   `json:"review_flag"`
}

// StructuredResult is the tagged union returned by structuring: exactly one
// of the three variants is set. Callers must branch on the degraded case
// explicitly; there is no partially-typed middle ground.
type StructuredResult struct {
	Medication *MedicationRecord
	Soap       *EncounterNote
	Degraded   *DegradedRecord
}

// IsDegraded reports whether the result carries the review fallback.
func (r *StructuredResult) IsDegraded() bool {
	return r.Degraded != nil
}

// Payload serializes whichever variant is set.
func (r *StructuredResult) Payload() (json.RawMessage, error) {
	var v any
	switch {
	case r.Medication != nil:
		v = r.Medication
	case r.Soap != nil:
		v = r.Soap
	case r.Degraded != nil:
		v = r.Degraded
	default:
		return nil, eris.New("model: structured result has no variant set")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, eris.Wrap(err, "model: marshal structured result")
	}
	return b, nil
}
