// Package timing fetches participant splits/rankings from the external
// timing provider, with a degraded fallback so a provider outage never
// fails the pipeline.
package timing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/velatorre/crossline/internal/domain/model"
	"github.com/velatorre/crossline/internal/domain/ranking"
	"github.com/velatorre/crossline/pkg/metrics"
)

const defaultTimeout = 8 * time.Second

// Client fetches participant enrichment data by provider slug.
type Client interface {
	// FetchParticipant returns the raw provider payload. Any failure
	// (network, auth, application-level error code) is returned as an
	// error; the coordinator recovers with Fallback.
	FetchParticipant(ctx context.Context, slug, participantID string) (*ranking.Payload, error)
}

// envelope is the provider's response wrapper. A non-zero result code is
// an application-level error even on HTTP 200.
type envelope struct {
	Result struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"result"`
	Data json.RawMessage `json:"data"`
}

// HTTPClient implements Client against the provider's REST API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	hc      *http.Client
}

// Option applies a configuration option to the HTTPClient.
type Option func(*HTTPClient)

// WithAPIKey sets the provider API key sent on each request.
func WithAPIKey(key string) Option {
	return func(c *HTTPClient) { c.apiKey = key }
}

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) {
		if hc != nil {
			c.hc = hc
		}
	}
}

// NewHTTPClient creates a provider client for baseURL.
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

// FetchParticipant implements Client.
func (c *HTTPClient) FetchParticipant(ctx context.Context, slug, participantID string) (*ranking.Payload, error) {
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}
	u := fmt.Sprintf("%s/races/%s/participants/%s", c.baseURL, url.PathEscape(slug), url.PathEscape(participantID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build provider request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		metrics.RecordProviderError("timing", "transport")
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.RecordProviderError("timing", "status")
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RecordProviderError("timing", "read")
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		metrics.RecordProviderError("timing", "decode")
		return nil, fmt.Errorf("decode provider envelope: %w", err)
	}
	if env.Result.Code != 0 {
		metrics.RecordProviderError("timing", "application")
		return nil, fmt.Errorf("%w: code %d: %s", ErrProvider, env.Result.Code, env.Result.Message)
	}

	var payload ranking.Payload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		metrics.RecordProviderError("timing", "decode")
		return nil, fmt.Errorf("decode provider payload: %w", err)
	}
	payload.Raw = env.Data
	return &payload, nil
}

// Fallback synthesizes a minimal participant when the provider is down or
// misconfigured, so a story can still be produced with degraded data.
func Fallback(participantID string) model.ParticipantRecord {
	tail := idTail(participantID)
	return model.ParticipantRecord{
		ExternalID: participantID,
		Name:       "Participant " + tail,
		Dorsal:     tail,
		DataSource: model.SourceFallback,
	}
}

// idTail extracts the trailing digits of a participant id, or its last
// four characters when the id carries no digit suffix.
func idTail(id string) string {
	i := len(id)
	for i > 0 && unicode.IsDigit(rune(id[i-1])) {
		i--
	}
	if i < len(id) {
		return id[i:]
	}
	if len(id) > 4 {
		return id[len(id)-4:]
	}
	return id
}
