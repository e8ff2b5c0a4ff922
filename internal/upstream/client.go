// Package upstream is the client for the market-data reference API that
// serves ticker branding data and image bytes.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/quotedeck/logocache/internal/config"
)

// Client calls the reference API. All requests carry the API key as a query
// parameter and are bounded by the configured timeout.
type Client struct {
	http   *resty.Client
	apiKey string
}

// Branding holds the up-to-two candidate image URLs of a ticker record.
type Branding struct {
	LogoURL string `json:"logo_url"`
	IconURL string `json:"icon_url"`
}

type tickerOverview struct {
	Results struct {
		Branding *Branding `json:"branding"`
	} `json:"results"`
}

// Image is a downloaded image candidate.
type Image struct {
	URL         string
	Data        []byte
	ContentType string
}

// NewClient creates a Client from the configuration.
func NewClient(cfg config.Upstream) *Client {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout)
	return &Client{http: client, apiKey: cfg.APIKey}
}

// Branding fetches the branding block of a ticker's reference record. The
// returned struct may have empty URLs; callers decide whether that is fatal.
func (c *Client) Branding(ctx context.Context, ticker string) (*Branding, error) {
	rsp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("apiKey", c.apiKey).
		Get("/v3/reference/tickers/" + ticker)
	if err != nil {
		return nil, fmt.Errorf("%w: overview for %s: %v", ErrUpstream, ticker, err)
	}

	if rsp.StatusCode() == http.StatusTooManyRequests {
		return nil, &RateLimitedError{RetryAfter: rsp.Header().Get("Retry-After")}
	}
	if !rsp.IsSuccess() {
		return nil, fmt.Errorf("%w: overview for %s returned %d", ErrUpstream, ticker, rsp.StatusCode())
	}

	var overview tickerOverview
	if err := json.Unmarshal(rsp.Body(), &overview); err != nil {
		return nil, fmt.Errorf("%w: decoding overview for %s: %v", ErrUpstream, ticker, err)
	}
	if overview.Results.Branding == nil {
		return &Branding{}, nil
	}
	return overview.Results.Branding, nil
}

// FetchImage downloads one image candidate, appending the API key the same
// way the branding URLs expect it.
func (c *Client) FetchImage(ctx context.Context, url string) (*Image, error) {
	rsp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("apiKey", c.apiKey).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("%w: image fetch: %v", ErrUpstream, err)
	}

	if rsp.StatusCode() == http.StatusTooManyRequests {
		return nil, &RateLimitedError{RetryAfter: rsp.Header().Get("Retry-After")}
	}
	if !rsp.IsSuccess() {
		return nil, fmt.Errorf("%w: image fetch returned %d", ErrUpstream, rsp.StatusCode())
	}

	return &Image{
		URL:         url,
		Data:        rsp.Body(),
		ContentType: rsp.Header().Get("Content-Type"),
	}, nil
}
