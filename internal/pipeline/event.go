package pipeline

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/swasya-health/capture-pipeline/internal/model"
)

// ParseEvent builds a CaptureEvent from an upload notification. The bucket
// selects the capture kind via the configured bucket map; the object key's
// first path segment carries the patient ID. Either failing to resolve is an
// invalid-event failure before any provider is called.
func ParseEvent(bucket, key string, buckets map[string]string, now time.Time) (*model.CaptureEvent, error) {
	kindName, ok := buckets[bucket]
	if !ok {
		return nil, newFailure(FailInvalidEvent, "", eris.Errorf("pipeline: bucket %q is not a configured capture source", bucket))
	}
	kind := model.CaptureKind(kindName)
	if kind != model.CaptureKindDocument && kind != model.CaptureKindAudio {
		return nil, newFailure(FailInvalidEvent, "", eris.Errorf("pipeline: bucket %q maps to unknown kind %q", bucket, kindName))
	}

	key = strings.TrimPrefix(key, "/")
	patientID, _, found := strings.Cut(key, "/")
	if !found || patientID == "" {
		return nil, newFailure(FailInvalidEvent, "", eris.Errorf("pipeline: key %q has no patient segment", key))
	}
	if !strings.HasPrefix(patientID, "PAT_") {
		return nil, newFailure(FailInvalidEvent, "", eris.Errorf("pipeline: key segment %q is not a patient ID", patientID))
	}

	return &model.CaptureEvent{
		ID:               uuid.New().String(),
		PatientID:        patientID,
		ArtifactLocation: bucket + "/" + key,
		Kind:             kind,
		ReceivedAt:       now,
	}, nil
}
