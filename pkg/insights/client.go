package insights

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client calls a remote analysis service over HTTP. It is used when the
// analyze endpoint is deployed as its own minimal service; a non-2xx
// status or unparsable body is an analysis failure, not a crash.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient builds a client for the given base URL (no trailing slash
// required). The timeout bounds a single analysis round trip.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

type analyzeRequest struct {
	EntryContent string `json:"entryContent"`
	EntryType    string `json:"entryType"`
}

type analyzeResponse struct {
	Insights
	Error string `json:"error,omitempty"`
}

func (c *Client) Analyze(ctx context.Context, entryContent, entryType string) (*Insights, error) {
	body, err := json.Marshal(analyzeRequest{EntryContent: entryContent, EntryType: entryType})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze-entry", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analysis request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("analysis response read failed: %w", err)
	}

	var parsed analyzeResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("analysis service returned status %d with unparsable body", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := parsed.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("analysis service returned status %d: %s", resp.StatusCode, msg)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("analysis failed: %s", parsed.Error)
	}
	return &parsed.Insights, nil
}
