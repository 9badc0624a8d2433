package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swasya-health/capture-pipeline/internal/model"
)

func TestParseEvent(t *testing.T) {
	buckets := map[string]string{
		"phc-document-uploads": "document",
		"phc-audio-uploads":    "audio",
	}
	now := time.Unix(1700000000, 0).UTC()

	event, err := ParseEvent("phc-audio-uploads", "PAT_1A2B3C4D/visit.mp3", buckets, now)
	require.NoError(t, err)
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, "PAT_1A2B3C4D", event.PatientID)
	assert.Equal(t, model.CaptureKindAudio, event.Kind)
	assert.Equal(t, "phc-audio-uploads/PAT_1A2B3C4D/visit.mp3", event.ArtifactLocation)
	assert.Equal(t, now, event.ReceivedAt)

	// Leading slash in the key is tolerated.
	event, err = ParseEvent("phc-document-uploads", "/PAT_1A2B3C4D/scan.jpg", buckets, now)
	require.NoError(t, err)
	assert.Equal(t, "PAT_1A2B3C4D", event.PatientID)
}

func TestParseEvent_MisconfiguredKind(t *testing.T) {
	_, err := ParseEvent("weird-bucket", "PAT_1A2B3C4D/x.bin", map[string]string{"weird-bucket": "video"}, time.Now())
	require.Error(t, err)
	assert.Equal(t, FailInvalidEvent, KindOf(err))
}
