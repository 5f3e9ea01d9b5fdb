package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"payguard/pkg/platform/sentinel"
)

const maxResponseBytes = 64 << 10

// ErrBadScore is returned when the service answers with a value that is not
// a finite number in [0,1].
var ErrBadScore = errors.New("scoring service returned invalid score")

type scoreRequest struct {
	Features map[string]any `json:"features"`
}

type scoreResponse struct {
	Score *float64 `json:"score"`
}

// Client calls the external scoring service over HTTP.
type Client struct {
	endpoint string
	http     *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// NewClient creates a client posting to endpoint. Deadlines come from the
// request context; the HTTP client timeout is only a backstop.
func NewClient(endpoint string, opts ...ClientOption) (*Client, error) {
	if endpoint == "" {
		return nil, errors.New("scoring endpoint is required")
	}
	c := &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 2 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Score posts {"features": {...}} and expects {"score": x}.
func (c *Client) Score(ctx context.Context, features map[string]any) (float64, error) {
	body, err := json.Marshal(scoreRequest{Features: features})
	if err != nil {
		return 0, fmt.Errorf("marshal score request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build score request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("call scoring service: %w", errors.Join(err, sentinel.ErrUnavailable))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return 0, fmt.Errorf("scoring service status %d: %w", resp.StatusCode, sentinel.ErrUnavailable)
	}

	var out scoreResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode score response: %w", errors.Join(err, ErrBadScore))
	}
	if out.Score == nil {
		return 0, fmt.Errorf("missing score: %w", ErrBadScore)
	}
	if err := validScore(*out.Score); err != nil {
		return 0, err
	}
	return *out.Score, nil
}

func validScore(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > 1 {
		return fmt.Errorf("score %v: %w", v, ErrBadScore)
	}
	return nil
}
