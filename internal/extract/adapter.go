// Package extract turns recognition provider output into a normalized
// transcript for the structuring engine.
package extract

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/swasya-health/capture-pipeline/internal/model"
	"github.com/swasya-health/capture-pipeline/internal/recognize"
)

// ErrEmptyTranscript is returned when recognition succeeds but yields no
// usable text. Callers treat it the same as any extraction failure.
var ErrEmptyTranscript = eris.New("extract: recognition produced no text")

// Adapter extracts a transcript from a capture event's artifact.
type Adapter struct {
	recognizer recognize.Recognizer
}

// NewAdapter creates an Adapter over the given recognizer.
func NewAdapter(r recognize.Recognizer) *Adapter {
	return &Adapter{recognizer: r}
}

// Extract runs recognition on the event's artifact and flattens the result
// into a single transcript. Provider line order is preserved; lines are
// joined with newlines and never re-segmented.
func (a *Adapter) Extract(ctx context.Context, event *model.CaptureEvent) (*model.Transcript, error) {
	result, err := a.recognizer.Recognize(ctx, event.ArtifactLocation, event.Kind)
	if err != nil {
		return nil, eris.Wrap(err, "extract: recognize artifact")
	}

	text := strings.TrimSpace(strings.Join(result.Lines, "\n"))
	if text == "" {
		return nil, ErrEmptyTranscript
	}

	zap.L().Debug("transcript extracted",
		zap.String("patient_id", event.PatientID),
		zap.String("kind", string(event.Kind)),
		zap.Int("lines", len(result.Lines)),
		zap.Int("chars", len(text)),
	)

	return &model.Transcript{Text: text, SourceKind: event.Kind}, nil
}
