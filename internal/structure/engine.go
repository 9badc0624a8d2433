// Package structure converts transcripts into typed clinical records using a
// generative-text provider. Parse failures degrade to a review record; they
// never surface as errors.
package structure

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/swasya-health/capture-pipeline/internal/config"
	"github.com/swasya-health/capture-pipeline/internal/model"
	"github.com/swasya-health/capture-pipeline/pkg/gentext"
)

const medicationPrompt = `You are a medical data extraction assistant. Extract structured information from the following text taken from a scanned medical document.

Return ONLY a valid JSON object with exactly these fields, no markdown and no code blocks:
{
  "medications": [{"name": "...", "dosage": "...", "frequency": "...", "duration": "..."}],
  "diagnoses": ["..."],
  "dates": ["..."],
  "doctor_name": "...",
  "hospital_name": "...",
  "document_type": "prescription|lab_report|diagnosis|other"
}

Rules:
- Use an empty array for list fields with no information.
- Use "Not found" for text fields with no information.
- Be conservative: only extract information actually present in the text. Never infer or invent values.

Document text:
%s`

const soapPrompt = `You are a clinical documentation assistant. Convert the following doctor-patient consultation transcript into a SOAP note.

Return ONLY a valid JSON object with exactly these fields, no markdown and no code blocks:
{
  "subjective": "...",
  "objective": "...",
  "assessment": "...",
  "plan": "...",
  "chief_complaint": "..."
}

Rules:
- Every field must be present and non-empty.
- Be conservative: record only what the transcript supports. Never invent findings.

Transcript:
%s`

// rawResponseLimit caps how much transcript and provider output a degraded
// record retains for review.
const rawResponseLimit = 500

// Engine structures transcripts through the generative provider.
type Engine struct {
	ai  gentext.Client
	cfg config.GentextConfig
}

// NewEngine creates an Engine.
func NewEngine(ai gentext.Client, cfg config.GentextConfig) *Engine {
	return &Engine{ai: ai, cfg: cfg}
}

// Structure sends the transcript to the provider and parses the response
// into the requested schema. A provider transport failure is returned as an
// error. A response that cannot be parsed or fails schema validation returns
// a degraded result and a nil error.
func (e *Engine) Structure(ctx context.Context, transcript *model.Transcript, schema model.SchemaKind) (*model.StructuredResult, error) {
	prompt, err := buildPrompt(transcript.Text, schema)
	if err != nil {
		return nil, err
	}

	resp, err := e.ai.Complete(ctx, gentext.Request{
		Model:     e.cfg.Model,
		MaxTokens: e.cfg.MaxTokens,
		Prompt:    prompt,
	})
	if err != nil {
		return nil, eris.Wrap(err, "structure: provider call")
	}

	resp.Usage.LogCost(e.cfg.Model, "structure:"+string(schema))

	result, parseErr := decode(resp.Text, schema)
	if parseErr != nil {
		zap.L().Warn("structuring degraded",
			zap.String("schema", string(schema)),
			zap.String("reason", parseErr.Error()),
			zap.Int("response_chars", len(resp.Text)),
		)
		return &model.StructuredResult{Degraded: &model.DegradedRecord{
			RawText:             truncate(transcript.Text, rawResponseLimit),
			RawProviderResponse: truncate(resp.Text, rawResponseLimit),
			ReviewFlag:          true,
		}}, nil
	}

	return result, nil
}

func buildPrompt(text string, schema model.SchemaKind) (string, error) {
	switch schema {
	case model.SchemaMedication:
		return fmt.Sprintf(medicationPrompt, text), nil
	case model.SchemaSoap:
		return fmt.Sprintf(soapPrompt, text), nil
	default:
		return "", eris.Errorf("structure: unknown schema %q", schema)
	}
}

// decode parses a provider response into the requested schema.
func decode(raw string, schema model.SchemaKind) (*model.StructuredResult, error) {
	cleaned := cleanJSON(raw)
	if cleaned == "" {
		return nil, eris.New("structure: no JSON object in response")
	}

	switch schema {
	case model.SchemaMedication:
		var rec model.MedicationRecord
		if err := json.Unmarshal([]byte(cleaned), &rec); err != nil {
			return nil, eris.Wrap(err, "structure: unmarshal medication record")
		}
		normalizeMedication(&rec)
		return &model.StructuredResult{Medication: &rec}, nil
	case model.SchemaSoap:
		var note model.EncounterNote
		if err := json.Unmarshal([]byte(cleaned), &note); err != nil {
			return nil, eris.Wrap(err, "structure: unmarshal encounter note")
		}
		if err := validateSoap(&note); err != nil {
			return nil, err
		}
		return &model.StructuredResult{Soap: &note}, nil
	default:
		return nil, eris.Errorf("structure: unknown schema %q", schema)
	}
}

// normalizeMedication fills defaults for absent fields and canonicalizes
// enum and date values. Absent fields are tolerated; only type mismatches
// fail decoding.
func normalizeMedication(rec *model.MedicationRecord) {
	if rec.Medications == nil {
		rec.Medications = []model.Medication{}
	}
	if rec.Diagnoses == nil {
		rec.Diagnoses = []string{}
	}
	if rec.Dates == nil {
		rec.Dates = []string{}
	}
	if strings.TrimSpace(rec.DoctorName) == "" {
		rec.DoctorName = "Not found"
	}
	if strings.TrimSpace(rec.HospitalName) == "" {
		rec.HospitalName = "Not found"
	}
	rec.DocumentType = model.NormalizeDocumentType(string(rec.DocumentType))
	for i, d := range rec.Dates {
		rec.Dates[i] = normalizeDate(d)
	}
}

func validateSoap(note *model.EncounterNote) error {
	missing := []string{}
	for field, value := range map[string]string{
		"subjective":      note.Subjective,
		"objective":       note.Objective,
		"assessment":      note.Assessment,
		"plan":            note.Plan,
		"chief_complaint": note.ChiefComplaint,
	} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return eris.Errorf("structure: encounter note missing fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// cleanJSON strips markdown fences and surrounding prose from a model
// response, leaving the outermost JSON object.
func cleanJSON(raw string) string {
	cleaned := strings.TrimSpace(raw)

	if strings.HasPrefix(cleaned, "```json") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		if idx := strings.LastIndex(cleaned, "```"); idx >= 0 {
			cleaned = cleaned[:idx]
		}
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
		if idx := strings.LastIndex(cleaned, "```"); idx >= 0 {
			cleaned = cleaned[:idx]
		}
	}

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end < start {
		return ""
	}
	return strings.TrimSpace(cleaned[start : end+1])
}

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
	"2 Jan 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// normalizeDate converts recognized date strings to YYYY-MM-DD. Unparseable
// values pass through unchanged rather than being discarded.
func normalizeDate(s string) string {
	trimmed := strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return trimmed
}

// truncate keeps the first n characters. Cutting on runes, not bytes, keeps
// multi-byte transcripts (Hindi, Hinglish) valid UTF-8 in degraded records.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
