package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Analysis is what the extraction/classification service derives from a
// raw document or image.
type Analysis struct {
	Text         string `json:"text"`
	DocumentType string `json:"documentType"` // course, exercise, image, other
	Subject      string `json:"subject"`
}

// Extractor turns raw file bytes into text plus a document classification.
// The backing service is an external collaborator; this package only
// speaks its wire format.
type Extractor interface {
	Extract(ctx context.Context, fileName, mimeType string, content []byte) (*Analysis, error)
}

// HTTPExtractor calls the extraction service over plain HTTP.
type HTTPExtractor struct {
	BaseURL string
	Client  *http.Client
}

var _ Extractor = &HTTPExtractor{}

func NewHTTPExtractor(baseURL string) *HTTPExtractor {
	return &HTTPExtractor{
		BaseURL: baseURL,
		Client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (e *HTTPExtractor) Extract(ctx context.Context, fileName, mimeType string, content []byte) (*Analysis, error) {
	endpoint := fmt.Sprintf("%s/v1/extract", e.BaseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mimeType)
	req.Header.Set("X-File-Name", fileName)

	resp, err := e.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("extraction request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("extraction error: status %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	var analysis Analysis
	if err := json.Unmarshal(bodyBytes, &analysis); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return &analysis, nil
}
