// Package recognize wraps the external recognition providers that turn raw
// clinical artifacts into text: a document scanner for images and a
// speech-to-text service for consultation audio.
package recognize

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/swasya-health/capture-pipeline/internal/config"
	"github.com/swasya-health/capture-pipeline/internal/model"
)

// Result is the provider's recognition output. Lines hold the detected text
// in provider-reported reading order; RawMetadata carries structural hints
// (forms, tables, speakers) that the pipeline may log but never requires.
type Result struct {
	Lines       []string
	RawMetadata map[string]any
}

// Recognizer extracts text from a stored artifact.
type Recognizer interface {
	Recognize(ctx context.Context, location string, kind model.CaptureKind) (*Result, error)
}

// Client routes recognition calls to the document or speech provider based
// on capture kind.
type Client struct {
	docs   *DocScanner
	speech *SpeechClient
}

// NewClient creates a Client from config.
func NewClient(cfg config.RecognitionConfig) (*Client, error) {
	if cfg.DocScanURL == "" || cfg.SpeechURL == "" {
		return nil, eris.New("recognize: docscan_url and speech_url are required")
	}
	if cfg.APIKey == "" {
		return nil, eris.New("recognize: api_key is required")
	}

	httpClient := &http.Client{Timeout: time.Duration(cfg.TimeoutSecs) * time.Second}
	return &Client{
		docs:   NewDocScanner(cfg.DocScanURL, cfg.APIKey, httpClient),
		speech: NewSpeechClient(cfg.SpeechURL, cfg.APIKey, httpClient),
	}, nil
}

// Recognize delegates to the provider matching the capture kind.
func (c *Client) Recognize(ctx context.Context, location string, kind model.CaptureKind) (*Result, error) {
	switch kind {
	case model.CaptureKindDocument:
		return c.docs.AnalyzeDocument(ctx, location)
	case model.CaptureKindAudio:
		return c.speech.Transcribe(ctx, location)
	default:
		return nil, eris.Errorf("recognize: unknown capture kind %q", kind)
	}
}
