package structure

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/swasya-health/capture-pipeline/internal/config"
	"github.com/swasya-health/capture-pipeline/internal/model"
	"github.com/swasya-health/capture-pipeline/pkg/gentext"
)

type mockAI struct {
	mock.Mock
}

func (m *mockAI) Complete(ctx context.Context, req gentext.Request) (*gentext.Response, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gentext.Response), args.Error(1)
}

func testCfg() config.GentextConfig {
	return config.GentextConfig{Model: "claude-haiku-4-5-20251001", MaxTokens: 2048}
}

func newEngineWithResponse(t *testing.T, text string) *Engine {
	t.Helper()
	ai := new(mockAI)
	ai.On("Complete", mock.Anything, mock.Anything).Return(&gentext.Response{Text: text}, nil)
	return NewEngine(ai, testCfg())
}

func TestStructure_Medication(t *testing.T) {
	engine := newEngineWithResponse(t, `{
		"medications": [{"name": "Amoxicillin", "dosage": "500mg", "frequency": "twice daily", "duration": "7 days"}],
		"diagnoses": ["Acute pharyngitis"],
		"dates": ["15/03/2026"],
		"doctor_name": "Dr. Sharma",
		"hospital_name": "PHC Rajpur",
		"document_type": "prescription"
	}`)

	result, err := engine.Structure(context.Background(), &model.Transcript{Text: "Rx ...", SourceKind: model.CaptureKindDocument}, model.SchemaMedication)
	require.NoError(t, err)
	require.NotNil(t, result.Medication)
	assert.False(t, result.IsDegraded())

	rec := result.Medication
	require.Len(t, rec.Medications, 1)
	assert.Equal(t, "Amoxicillin", rec.Medications[0].Name)
	assert.Equal(t, model.DocumentTypePrescription, rec.DocumentType)
	assert.Equal(t, []string{"2026-03-15"}, rec.Dates)
}

func TestStructure_Medication_FencedResponse(t *testing.T) {
	body := `{"medications": [], "diagnoses": [], "dates": [], "doctor_name": "Not found", "hospital_name": "Not found", "document_type": "other"}`

	plain, err := newEngineWithResponse(t, body).
		Structure(context.Background(), &model.Transcript{Text: "x"}, model.SchemaMedication)
	require.NoError(t, err)

	fenced, err := newEngineWithResponse(t, "```json\n"+body+"\n```").
		Structure(context.Background(), &model.Transcript{Text: "x"}, model.SchemaMedication)
	require.NoError(t, err)

	assert.Equal(t, plain.Medication, fenced.Medication)
}

func TestStructure_Medication_AbsentFieldsDefaulted(t *testing.T) {
	engine := newEngineWithResponse(t, `{"medications": [{"name": "Metformin", "dosage": "500mg", "frequency": "daily", "duration": ""}]}`)

	result, err := engine.Structure(context.Background(), &model.Transcript{Text: "x"}, model.SchemaMedication)
	require.NoError(t, err)
	require.NotNil(t, result.Medication)

	rec := result.Medication
	assert.Equal(t, []string{}, rec.Diagnoses)
	assert.Equal(t, []string{}, rec.Dates)
	assert.Equal(t, "Not found", rec.DoctorName)
	assert.Equal(t, "Not found", rec.HospitalName)
	assert.Equal(t, model.DocumentTypeOther, rec.DocumentType)
}

func TestStructure_Medication_WrongTypeDegrades(t *testing.T) {
	engine := newEngineWithResponse(t, `{"medications": "Amoxicillin 500mg"}`)

	transcript := &model.Transcript{Text: "Rx: Amoxicillin 500mg twice daily"}
	result, err := engine.Structure(context.Background(), transcript, model.SchemaMedication)
	require.NoError(t, err)
	require.True(t, result.IsDegraded())

	assert.Equal(t, transcript.Text, result.Degraded.RawText)
	assert.True(t, result.Degraded.ReviewFlag)
}

func TestStructure_Soap(t *testing.T) {
	engine := newEngineWithResponse(t, `{
		"subjective": "Fever and sore throat for two days.",
		"objective": "Temp 101.2F, pharyngeal erythema.",
		"assessment": "Likely viral pharyngitis.",
		"plan": "Paracetamol, fluids, review in 3 days.",
		"chief_complaint": "Fever"
	}`)

	result, err := engine.Structure(context.Background(), &model.Transcript{Text: "Doctor: ..."}, model.SchemaSoap)
	require.NoError(t, err)
	require.NotNil(t, result.Soap)
	assert.Equal(t, "Fever", result.Soap.ChiefComplaint)
}

func TestStructure_Soap_MissingFieldDegrades(t *testing.T) {
	engine := newEngineWithResponse(t, `{
		"subjective": "Fever for two days.",
		"objective": "Temp 101.2F",
		"assessment": "Viral fever",
		"plan": ""
	}`)

	result, err := engine.Structure(context.Background(), &model.Transcript{Text: "Doctor: ..."}, model.SchemaSoap)
	require.NoError(t, err)
	assert.True(t, result.IsDegraded())
}

func TestStructure_NonJSONDegrades(t *testing.T) {
	engine := newEngineWithResponse(t, "I'm sorry, I cannot extract structured data from this text.")

	result, err := engine.Structure(context.Background(), &model.Transcript{Text: "garbled"}, model.SchemaMedication)
	require.NoError(t, err)
	assert.True(t, result.IsDegraded())
	assert.Contains(t, result.Degraded.RawProviderResponse, "I'm sorry")
}

func TestStructure_ProviderErrorPropagates(t *testing.T) {
	ai := new(mockAI)
	ai.On("Complete", mock.Anything, mock.Anything).Return(nil, eris.New("api: overloaded"))
	engine := NewEngine(ai, testCfg())

	_, err := engine.Structure(context.Background(), &model.Transcript{Text: "x"}, model.SchemaMedication)
	require.Error(t, err)
}

func TestStructure_TruncatesDegradedPayload(t *testing.T) {
	long := make([]byte, 1200)
	for i := range long {
		long[i] = 'a'
	}
	engine := newEngineWithResponse(t, "not json "+string(long))

	result, err := engine.Structure(context.Background(), &model.Transcript{Text: string(long)}, model.SchemaMedication)
	require.NoError(t, err)
	require.True(t, result.IsDegraded())
	assert.Len(t, result.Degraded.RawText, rawResponseLimit)
	assert.Len(t, result.Degraded.RawProviderResponse, rawResponseLimit)
}

func TestStructure_TruncatesDegradedPayload_MultiByte(t *testing.T) {
	// Devanagari runes are 3 bytes each; truncation must cut on characters,
	// never mid-rune.
	long := strings.Repeat("द", 600)
	engine := newEngineWithResponse(t, "not json "+long)

	result, err := engine.Structure(context.Background(), &model.Transcript{Text: long}, model.SchemaMedication)
	require.NoError(t, err)
	require.True(t, result.IsDegraded())

	assert.True(t, utf8.ValidString(result.Degraded.RawText))
	assert.True(t, utf8.ValidString(result.Degraded.RawProviderResponse))
	assert.Equal(t, rawResponseLimit, utf8.RuneCountInString(result.Degraded.RawText))
	assert.Equal(t, rawResponseLimit, utf8.RuneCountInString(result.Degraded.RawProviderResponse))
}

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"a": 1}`, `{"a": 1}`},
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"plain fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"leading prose", "Here is the JSON:\n{\"a\": 1}", `{"a": 1}`},
		{"no object", "no structured data here", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanJSON(tt.in))
		})
	}
}

func TestNormalizeDate(t *testing.T) {
	assert.Equal(t, "2026-03-15", normalizeDate("15/03/2026"))
	assert.Equal(t, "2026-03-15", normalizeDate("2026-03-15"))
	assert.Equal(t, "2026-03-15", normalizeDate("15 March 2026"))
	assert.Equal(t, "next Tuesday", normalizeDate("next Tuesday"))
}
