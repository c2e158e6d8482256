// Package clips calls the external clip-generation API with a symmetric
// time window around the checkpoint instant.
package clips

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/velatorre/crossline/pkg/metrics"
)

// WindowMS is the half-width of the clip window in milliseconds: the
// generated clip spans [instant-WindowMS, instant+WindowMS].
const WindowMS int64 = 15_000

const defaultTimeout = 30 * time.Second

// Sentinel kinds for clip generation errors.
var (
	ErrNotConfigured = errors.New("clip generation not configured")
	ErrUnavailable   = errors.New("clip generation unavailable")
)

// Clip is a successfully generated clip.
type Clip struct {
	URL      string `json:"clipUrl"`
	FileName string `json:"fileName"`
}

// Client generates clips from a stream.
type Client interface {
	// Generate requests a clip for the window around instantMS. Errors
	// are returned, never panicked over; the caller persists failures
	// into the story record instead of aborting the pipeline.
	Generate(ctx context.Context, streamID string, instantMS int64) (Clip, error)
}

// Window computes the clip window bounds for a checkpoint instant.
func Window(instantMS int64) (startMS, endMS int64) {
	return instantMS - WindowMS, instantMS + WindowMS
}

// HTTPClient implements Client against the clip API.
type HTTPClient struct {
	baseURL string
	hc      *http.Client
}

// Option applies a configuration option to the HTTPClient.
type Option func(*HTTPClient)

// WithHTTPClient overrides the underlying http.Client. Clip rendering is
// slow, so the default timeout is generous.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) {
		if hc != nil {
			c.hc = hc
		}
	}
}

// NewHTTPClient creates a clip client for baseURL.
func NewHTTPClient(baseURL string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate implements Client.
func (c *HTTPClient) Generate(ctx context.Context, streamID string, instantMS int64) (Clip, error) {
	if c.baseURL == "" {
		return Clip{}, ErrNotConfigured
	}
	start, end := Window(instantMS)
	reqBody, err := json.Marshal(map[string]any{
		"streamId":  streamID,
		"startTime": start,
		"endTime":   end,
	})
	if err != nil {
		return Clip{}, fmt.Errorf("encode clip request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/clips", bytes.NewReader(reqBody))
	if err != nil {
		return Clip{}, fmt.Errorf("build clip request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		metrics.RecordProviderError("clips", "transport")
		return Clip{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		metrics.RecordProviderError("clips", "status")
		return Clip{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var clip Clip
	if err := json.NewDecoder(resp.Body).Decode(&clip); err != nil {
		metrics.RecordProviderError("clips", "decode")
		return Clip{}, fmt.Errorf("decode clip response: %w", err)
	}
	if clip.URL == "" {
		metrics.RecordProviderError("clips", "empty")
		return Clip{}, fmt.Errorf("%w: empty clip url", ErrUnavailable)
	}
	metrics.RecordClipGenerated()
	return clip, nil
}
