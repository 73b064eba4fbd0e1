package regional

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultCDCBaseURL is the CDC FluView dataset on the Socrata open-data API.
const DefaultCDCBaseURL = "https://data.cdc.gov/resource/pj7m-y5uh.json"

// Row limits for the location query and the broader national retry.
const (
	locationLimit = 5
	broadLimit    = 3
)

// CDCConfig tunes the CDC client. Zero values fall back to defaults.
type CDCConfig struct {
	BaseURL       string
	AppToken      string // optional Socrata app token, raises the upstream quota
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
}

// CDCClient is the Source backed by the CDC Socrata endpoint. It returns
// errors on transport, status, or decode failure; wrap it with WithFallback
// before handing it to anything user-facing.
type CDCClient struct {
	baseURL    string
	appToken   string
	httpClient *http.Client
	limiter    *rate.Limiter
	now        func() time.Time
}

// NewCDCClient returns a throttled client for the CDC dataset.
func NewCDCClient(cfg CDCConfig) *CDCClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultCDCBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 2
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	return &CDCClient{
		baseURL:  cfg.BaseURL,
		appToken: cfg.AppToken,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		now:     time.Now,
	}
}

// Fetch queries the dataset filtered by location. If the location has no
// rows, it retries once without the filter and returns those national rows
// tagged as Fallback. ErrNoData is returned when even that is empty.
func (c *CDCClient) Fetch(ctx context.Context, location string) (Result, error) {
	location = strings.TrimSpace(location)

	records, err := c.query(ctx, location, locationLimit)
	if err != nil {
		return Result{}, err
	}
	if len(records) > 0 {
		return OK(location, records, c.now().UTC()), nil
	}
	if location == "" {
		return Result{}, ErrNoData
	}

	records, err = c.query(ctx, "", broadLimit)
	if err != nil {
		return Result{}, err
	}
	if len(records) == 0 {
		return Result{}, ErrNoData
	}
	cause := fmt.Errorf("%w for %q, using national rows", ErrNoData, location)
	return Fallback(location, records, c.now().UTC(), cause), nil
}

// query performs one GET against the dataset and decodes the JSON array.
func (c *CDCClient) query(ctx context.Context, location string, limit int) ([]Record, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("cdc: rate limiter: %w", err)
	}

	params := url.Values{}
	params.Set("$limit", strconv.Itoa(limit))
	if location != "" {
		params.Set("state", location)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("cdc: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.appToken != "" {
		req.Header.Set("X-App-Token", c.appToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cdc: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("cdc: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("cdc: unexpected status %d: %.200s", resp.StatusCode, string(body))
	}

	var records []Record
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("cdc: decode response: %w", err)
	}
	return records, nil
}
