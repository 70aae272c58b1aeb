package opensky

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/yeonjoon13/Flight-State-Relay/internal/model"
)

const (
	DefaultBaseURL = "https://opensky-network.org/api"
	DefaultTimeout = 15 * time.Second

	retryAfterHeader = "X-Rate-Limit-Retry-After-Seconds"
)

// BoundingBox limits a query to an area, in WGS84 degrees.
type BoundingBox struct {
	MinLat float64 `yaml:"min_lat"`
	MaxLat float64 `yaml:"max_lat"`
	MinLon float64 `yaml:"min_lon"`
	MaxLon float64 `yaml:"max_lon"`
}

// Config for a Client. Username and Password are optional; without them
// requests are anonymous and subject to the stricter anonymous rate limit.
type Config struct {
	BaseURL  string
	Username string
	Password string
	Box      *BoundingBox
	Timeout  time.Duration
}

// Client polls the OpenSky REST API for current state vectors.
type Client struct {
	cfg  Config
	http *http.Client
}

// statesResponse matches the /states/all payload. States is null when no
// aircraft are reported.
type statesResponse struct {
	Time   int64             `json:"time"`
	States []json.RawMessage `json:"states"`
}

// Batch is the decoded result of one poll.
type Batch struct {
	Time    int64
	States  []model.StateVector
	Skipped int
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

// Anonymous reports whether requests are sent without credentials.
func (c *Client) Anonymous() bool { return c.cfg.Username == "" }

// FetchStates polls OpenSky and returns the current state vectors.
// Rows that cannot be decoded are dropped and counted in Batch.Skipped.
func (c *Client) FetchStates(ctx context.Context) (Batch, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.statesURL(), nil)
	if err != nil {
		return Batch{}, fmt.Errorf("opensky: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if !c.Anonymous() {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Batch{}, fmt.Errorf("opensky: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return Batch{}, err
	}

	var osResp statesResponse
	if err := json.NewDecoder(resp.Body).Decode(&osResp); err != nil {
		return Batch{}, fmt.Errorf("opensky: decode response: %w", err)
	}

	batch := Batch{Time: osResp.Time, States: make([]model.StateVector, 0, len(osResp.States))}
	for _, row := range osResp.States {
		s, err := model.DecodeStateRow(row)
		if err != nil {
			batch.Skipped++
			continue
		}
		batch.States = append(batch.States, s)
	}
	return batch, nil
}

func (c *Client) statesURL() string {
	u := c.cfg.BaseURL + "/states/all"
	if c.cfg.Box == nil {
		return u
	}
	q := url.Values{}
	q.Set("lamin", strconv.FormatFloat(c.cfg.Box.MinLat, 'f', -1, 64))
	q.Set("lomin", strconv.FormatFloat(c.cfg.Box.MinLon, 'f', -1, 64))
	q.Set("lamax", strconv.FormatFloat(c.cfg.Box.MaxLat, 'f', -1, 64))
	q.Set("lomax", strconv.FormatFloat(c.cfg.Box.MaxLon, 'f', -1, 64))
	return u + "?" + q.Encode()
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	// Drain a little of the body so the connection can be reused.
	_, _ = io.CopyN(io.Discard, resp.Body, 4<<10)

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
	case http.StatusTooManyRequests:
		if after := resp.Header.Get(retryAfterHeader); after != "" {
			return fmt.Errorf("%w: retry after %ss", ErrRateLimited, after)
		}
		return ErrRateLimited
	default:
		return fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}
}
