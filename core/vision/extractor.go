package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ExtractedPiece is one piece observation the extractor read off a screenshot.
type ExtractedPiece struct {
	SlotIndex  int `json:"slot_index"`
	Stars      int `json:"stars"`
	Duplicates int `json:"duplicates"`
}

// Extraction is the structured result of analyzing one image.
type Extraction struct {
	Success   bool             `json:"success"`
	ImageHash string           `json:"image_hash"`
	Scene     string           `json:"scene"`
	Pieces    []ExtractedPiece `json:"pieces"`
	Error     string           `json:"error"`
}

// Extractor analyzes raw image bytes and produces piece observations.
// Implementations may run classical image analysis or call an external AI
// model; the scan pipeline only depends on this contract.
type Extractor interface {
	Extract(ctx context.Context, imageHash string, data []byte) (*Extraction, error)
}

// HTTPExtractor calls a remote vision service over HTTP.
type HTTPExtractor struct {
	endpoint string
	client   *http.Client
}

// NewHTTPExtractor creates an extractor client for the configured endpoint.
func NewHTTPExtractor(cfg Config) *HTTPExtractor {
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 60
	}
	return &HTTPExtractor{
		endpoint: cfg.Endpoint,
		client: &http.Client{
			Timeout: time.Duration(timeout) * time.Second,
		},
	}
}

type extractRequest struct {
	ImageHash string `json:"image_hash"`
	ImageData []byte `json:"image_data"` // base64 via encoding/json
}

// Extract posts the image to the vision service and decodes its verdict.
// A transport failure or a non-2xx status is an error; a well-formed
// response with Success=false is returned as-is for the caller to map to a
// failed scan.
func (e *HTTPExtractor) Extract(ctx context.Context, imageHash string, data []byte) (*Extraction, error) {
	payload, err := json.Marshal(extractRequest{ImageHash: imageHash, ImageData: data})
	if err != nil {
		return nil, fmt.Errorf("failed to encode extraction request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build extraction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("extractor unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("extractor returned status %d: %s", resp.StatusCode, string(body))
	}

	var extraction Extraction
	if err := json.NewDecoder(resp.Body).Decode(&extraction); err != nil {
		return nil, fmt.Errorf("failed to decode extraction response: %w", err)
	}

	// The image hash drives the dedup guard, so it is required even on
	// failure responses. Fill it from the request if the service omitted it.
	if extraction.ImageHash == "" {
		extraction.ImageHash = imageHash
	}

	return &extraction, nil
}
