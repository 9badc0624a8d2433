package recognize

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/rotisserie/eris"
)

// DocScanner extracts text from scanned document images via the document
// analysis service.
type DocScanner struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewDocScanner creates a DocScanner.
func NewDocScanner(endpoint, apiKey string, client *http.Client) *DocScanner {
	if client == nil {
		client = &http.Client{}
	}
	return &DocScanner{endpoint: endpoint, apiKey: apiKey, client: client}
}

type docScanRequest struct {
	Location string   `json:"location"`
	Features []string `json:"features"`
}

type docScanResponse struct {
	Blocks   []docScanBlock `json:"blocks"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type docScanBlock struct {
	BlockType string `json:"block_type"`
	Text      string `json:"text"`
}

// AnalyzeDocument sends the artifact location to the document service and
// collects line-level text in reading order. Form and table structure is
// requested so the provider segments lines correctly, but only the metadata
// hints are kept; non-text blocks are discarded.
func (d *DocScanner) AnalyzeDocument(ctx context.Context, location string) (*Result, error) {
	reqBody := docScanRequest{
		Location: location,
		Features: []string{"FORMS", "TABLES"},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, eris.Wrap(err, "recognize: marshal docscan request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "recognize: create docscan request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+d.apiKey)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "recognize: docscan API call")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "recognize: read docscan response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("recognize: docscan API returned %d: %s", resp.StatusCode, string(respBody))
	}

	var scanResp docScanResponse
	if err := json.Unmarshal(respBody, &scanResp); err != nil {
		return nil, eris.Wrap(err, "recognize: unmarshal docscan response")
	}

	var lines []string
	for _, block := range scanResp.Blocks {
		if block.BlockType == "LINE" && block.Text != "" {
			lines = append(lines, block.Text)
		}
	}

	return &Result{Lines: lines, RawMetadata: scanResp.Metadata}, nil
}
