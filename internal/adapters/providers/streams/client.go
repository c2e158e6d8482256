// Package streams discovers live video streams for a competition and
// resolves which stream covers a checkpoint location.
package streams

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/velatorre/crossline/pkg/metrics"
)

const defaultTimeout = 5 * time.Second

// Sentinel kinds for stream discovery errors.
var (
	ErrNotConfigured = errors.New("stream discovery not configured")
	ErrUnavailable   = errors.New("stream discovery unavailable")
)

// Client fetches the stream map for a competition.
type Client interface {
	// FetchStreams returns stream name -> stream id. Best-effort; callers
	// treat an error the same as an empty map.
	FetchStreams(ctx context.Context, competitionID string) (map[string]string, error)
}

// HTTPClient implements Client against the discovery API.
type HTTPClient struct {
	baseURL string
	hc      *http.Client
}

// Option applies a configuration option to the HTTPClient.
type Option func(*HTTPClient)

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) {
		if hc != nil {
			c.hc = hc
		}
	}
}

// NewHTTPClient creates a discovery client for baseURL.
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

// FetchStreams implements Client.
func (c *HTTPClient) FetchStreams(ctx context.Context, competitionID string) (map[string]string, error) {
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}
	u := fmt.Sprintf("%s/competitions/%s/streams", c.baseURL, url.PathEscape(competitionID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build discovery request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		metrics.RecordProviderError("streams", "transport")
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.RecordProviderError("streams", "status")
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var body struct {
		Data struct {
			Streams []struct {
				Name     string `json:"name"`
				StreamID string `json:"streamId"`
			} `json:"streams"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		metrics.RecordProviderError("streams", "decode")
		return nil, fmt.Errorf("decode discovery response: %w", err)
	}

	out := make(map[string]string, len(body.Data.Streams))
	for _, s := range body.Data.Streams {
		out[s.Name] = s.StreamID
	}
	return out, nil
}

// ResolveStreamID finds the stream covering a checkpoint location.
// Lookup is case-folded. When the location looks like a distance marker
// ("5k", "21 K"), any available stream is an acceptable best-effort
// fallback; the lexicographically first is picked so the choice is stable.
func ResolveStreamID(location string, streamMap map[string]string) (string, bool) {
	if len(streamMap) == 0 {
		return "", false
	}
	for name, id := range streamMap {
		if strings.EqualFold(strings.TrimSpace(name), strings.TrimSpace(location)) {
			return id, true
		}
	}
	if looksLikeDistanceMarker(location) {
		names := make([]string, 0, len(streamMap))
		for name := range streamMap {
			names = append(names, name)
		}
		sort.Strings(names)
		return streamMap[names[0]], true
	}
	return "", false
}

// looksLikeDistanceMarker reports whether s contains a digit followed by a
// "k", optionally separated by spaces, e.g. "5k", "10 K", "Paso 21k".
func looksLikeDistanceMarker(s string) bool {
	lower := strings.ToLower(s)
	for i, r := range lower {
		if !unicode.IsDigit(r) {
			continue
		}
		rest := strings.TrimLeft(lower[i:], "0123456789")
		rest = strings.TrimLeft(rest, " ")
		if strings.HasPrefix(rest, "k") {
			return true
		}
	}
	return false
}
