// Package forecast queries an HTTP forecasting service returning the
// prediction document as JSON.
package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/kilianp07/rakeplan/auth"
	"github.com/kilianp07/rakeplan/connectors"
	"github.com/kilianp07/rakeplan/core/prediction"
)

const name = "forecast"

// Client calls GET <BaseURL>?at=...&loading_point=...&route=...
type Client struct {
	BaseURL string
	HTTP    *http.Client

	at            time.Time
	loadingPoints []string
	routes        []string
}

// New returns a client with a 10 second request timeout.
func New(baseURL string) *Client {
	return &Client{BaseURL: baseURL, HTTP: &http.Client{Timeout: 10 * time.Second}}
}

// Fetch retrieves the predictions. Options only apply to this call.
func (c *Client) Fetch(ctx context.Context, authClient *auth.ClientCred, opts ...connectors.Option) (prediction.MLPredictions, error) {
	call := *c
	for _, opt := range opts {
		if err := opt(&call); err != nil {
			return prediction.MLPredictions{}, err
		}
	}
	u, err := call.url()
	if err != nil {
		return prediction.MLPredictions{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return prediction.MLPredictions{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if err := authClient.SetAuthHeader(req); err != nil {
		return prediction.MLPredictions{}, fmt.Errorf("failed to set auth header: %w", err)
	}

	hc := call.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return prediction.MLPredictions{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return prediction.MLPredictions{}, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, body)
	}
	var p prediction.MLPredictions
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return prediction.MLPredictions{}, fmt.Errorf("failed to decode response: %w", err)
	}
	return p, nil
}

func (c *Client) url() (string, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" {
		return "", fmt.Errorf("invalid forecast url %q", c.BaseURL)
	}
	q := u.Query()
	if !c.at.IsZero() {
		q.Set("at", c.at.UTC().Format(time.RFC3339))
	}
	for _, lp := range c.loadingPoints {
		q.Add("loading_point", lp)
	}
	for _, r := range c.routes {
		q.Add("route", r)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
