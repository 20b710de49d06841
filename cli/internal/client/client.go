// Package client talks to a running subtrack-server over its HTTP API.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/subtrack/subtrack/pkg/types"
)

const defaultTimeout = 10 * time.Second

// Gauge names scraped by Stats.
const (
	metricEntries   = "subtrack_entries"
	metricPermanent = "subtrack_permanent_entries"
)

// APIError is returned for any non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Stats is the entry count reported by the server's /metrics endpoint.
type Stats struct {
	Entries   int `json:"entries"`
	Permanent int `json:"permanent"`
}

// Client is an HTTP client for one server.
type Client struct {
	base string
	http *http.Client
}

// New returns a Client for the server at base (e.g. http://127.0.0.1:50022).
// hc may be nil.
func New(base string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{base: strings.TrimRight(base, "/"), http: hc}
}

// AddPermanent registers uid with no expiry.
func (c *Client) AddPermanent(ctx context.Context, uid string) (*types.UpsertResponse, error) {
	q := url.Values{"uid": {uid}, "permanent": {"true"}}
	var out types.UpsertResponse
	if err := c.do(ctx, http.MethodGet, "/add_uid?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Add registers uid to expire amount units from now. unit is one of
// seconds, days, months or years.
func (c *Client) Add(ctx context.Context, uid, amount, unit string) (*types.UpsertResponse, error) {
	q := url.Values{"uid": {uid}, "time": {amount}, "type": {unit}}
	var out types.UpsertResponse
	if err := c.do(ctx, http.MethodGet, "/add_uid?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RemainingTime returns the remaining-time breakdown for uid.
func (c *Client) RemainingTime(ctx context.Context, uid string) (*types.RemainingResponse, error) {
	var out types.RemainingResponse
	if err := c.do(ctx, http.MethodGet, "/get_time/"+url.PathEscape(uid), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Sweep asks the server to remove expired entries now.
func (c *Client) Sweep(ctx context.Context) (*types.SweepResponse, error) {
	var out types.SweepResponse
	if err := c.do(ctx, http.MethodPost, "/sweep", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stats scrapes /metrics and returns the entry gauges.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/metrics", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse metrics: %w", err)
	}
	return &Stats{
		Entries:   int(gauge(mfs[metricEntries])),
		Permanent: int(gauge(mfs[metricPermanent])),
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode/100 != 2 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var e types.ErrorResponse
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			apiErr.Message = e.Error
		}
		return apiErr
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// gauge returns the first gauge value in mf, or 0 if mf is nil.
func gauge(mf *dto.MetricFamily) float64 {
	if mf == nil || len(mf.GetMetric()) == 0 {
		return 0
	}
	return mf.GetMetric()[0].GetGauge().GetValue()
}
