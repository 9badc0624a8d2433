package recognize

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"
)

// SpeechClient transcribes consultation audio via the speech-to-text service.
type SpeechClient struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewSpeechClient creates a SpeechClient.
func NewSpeechClient(endpoint, apiKey string, client *http.Client) *SpeechClient {
	if client == nil {
		client = &http.Client{}
	}
	return &SpeechClient{endpoint: endpoint, apiKey: apiKey, client: client}
}

type speechRequest struct {
	Location      string `json:"location"`
	SpeakerLabels bool   `json:"speaker_labels"`
}

type speechResponse struct {
	Transcript string         `json:"transcript"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Transcribe sends the artifact location to the speech service. Speaker
// labels, when present, arrive inline in the transcript text and are kept
// as-is; this client never parses them into a separate structure.
func (s *SpeechClient) Transcribe(ctx context.Context, location string) (*Result, error) {
	reqBody := speechRequest{
		Location:      location,
		SpeakerLabels: true,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, eris.Wrap(err, "recognize: marshal speech request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "recognize: create speech request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "recognize: speech API call")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "recognize: read speech response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("recognize: speech API returned %d: %s", resp.StatusCode, string(respBody))
	}

	var speechResp speechResponse
	if err := json.Unmarshal(respBody, &speechResp); err != nil {
		return nil, eris.Wrap(err, "recognize: unmarshal speech response")
	}

	var lines []string
	for _, line := range strings.Split(speechResp.Transcript, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}

	return &Result{Lines: lines, RawMetadata: speechResp.Metadata}, nil
}
