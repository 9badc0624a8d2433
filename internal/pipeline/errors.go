package pipeline

import "github.com/rotisserie/eris"

// FailureKind names the terminal failure classes of a pipeline run. A
// degraded structuring result is not a failure; it persists with a review
// flag and the run completes.
type FailureKind string

const (
	FailInvalidEvent       FailureKind = "invalid_event"
	FailUnknownPatient     FailureKind = "unknown_patient"
	FailExtraction         FailureKind = "extraction_failed"
	FailStructuringFailure FailureKind = "structuring_provider_failed"
	FailPersistence        FailureKind = "persistence_failed"
)

// Failure is a terminal pipeline error carrying its classification so
// callers and logs can branch on failure class without string matching.
type Failure struct {
	Kind      FailureKind
	PatientID string
	Err       error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return string(f.Kind)
	}
	return string(f.Kind) + ": " + f.Err.Error()
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func newFailure(kind FailureKind, patientID string, err error) *Failure {
	return &Failure{Kind: kind, PatientID: patientID, Err: err}
}

// KindOf extracts the failure kind from an error chain. Errors that did not
// originate in the pipeline report an empty kind.
func KindOf(err error) FailureKind {
	var f *Failure
	if eris.As(err, &f) {
		return f.Kind
	}
	return ""
}
