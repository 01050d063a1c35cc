// Package ipgeo implements coarse IP-based geolocation against public lookup services.
package ipgeo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/0xbhavyaalag/EcoSphere/internal/domain"
)

// Provider names accepted in IP_PROVIDERS.
const (
	ProviderIPAPI   = "ipapi"
	ProviderIPWhois = "ipwhois"
)

// Default service endpoints.
const (
	IPAPIBaseURL   = "https://ipapi.co"
	IPWhoisBaseURL = "https://ipwho.is"
)

var errMissingFields = errors.New("response has no latitude/longitude")

// Client looks up the approximate position of an IP address.
type Client struct {
	name       string
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewIPAPI creates a client for ipapi.co.
func NewIPAPI(timeout time.Duration, logger *slog.Logger) *Client {
	return newClient(ProviderIPAPI, IPAPIBaseURL, timeout, logger)
}

// NewIPWhois creates a client for ipwho.is.
func NewIPWhois(timeout time.Duration, logger *slog.Logger) *Client {
	return newClient(ProviderIPWhois, IPWhoisBaseURL, timeout, logger)
}

// New creates the client registered under name.
func New(name string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	switch name {
	case ProviderIPAPI:
		return NewIPAPI(timeout, logger), nil
	case ProviderIPWhois:
		return NewIPWhois(timeout, logger), nil
	}
	return nil, fmt.Errorf("unknown ip provider %q", name)
}

func newClient(name, baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		name:       name,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		logger:     logger,
	}
}

// WithBaseURL returns a copy of the client pointed at another endpoint.
func (c *Client) WithBaseURL(baseURL string) *Client {
	cp := *c
	cp.baseURL = strings.TrimRight(baseURL, "/")
	return &cp
}

// Name returns the provider name.
func (c *Client) Name() string { return c.name }

// Locate returns the position of ip, or of the caller when ip is empty.
// The result has source ip and a fixed accuracy of IPAccuracyMeters.
func (c *Client) Locate(ctx context.Context, ip string) (domain.Coordinate, error) {
	var (
		lat, lon *float64
		err      error
	)
	switch c.name {
	case ProviderIPWhois:
		lat, lon, err = c.lookupIPWhois(ctx, ip)
	default:
		lat, lon, err = c.lookupIPAPI(ctx, ip)
	}
	if err != nil {
		return domain.Coordinate{}, err
	}
	if lat == nil || lon == nil {
		return domain.Coordinate{}, fmt.Errorf("%s: %w", c.name, errMissingFields)
	}

	coord := domain.Coordinate{
		Latitude:  *lat,
		Longitude: *lon,
		Accuracy:  domain.IPAccuracyMeters,
		Source:    domain.SourceIP,
	}
	if err := coord.Validate(); err != nil {
		return domain.Coordinate{}, fmt.Errorf("%s: %w", c.name, err)
	}

	c.logger.Debug("ip location resolved", "provider", c.name, "lat", coord.Latitude, "lon", coord.Longitude)
	return coord, nil
}

func (c *Client) lookupIPAPI(ctx context.Context, ip string) (*float64, *float64, error) {
	u := c.baseURL + "/json/"
	if ip != "" {
		u = c.baseURL + "/" + url.PathEscape(ip) + "/json/"
	}

	var body ipapiResponse
	if err := c.getJSON(ctx, u, &body); err != nil {
		return nil, nil, err
	}
	if body.Error {
		return nil, nil, fmt.Errorf("%s: %s", c.name, body.Reason)
	}
	return body.Latitude, body.Longitude, nil
}

func (c *Client) lookupIPWhois(ctx context.Context, ip string) (*float64, *float64, error) {
	u := c.baseURL + "/"
	if ip != "" {
		u += url.PathEscape(ip)
	}

	var body ipwhoisResponse
	if err := c.getJSON(ctx, u, &body); err != nil {
		return nil, nil, err
	}
	if !body.Success {
		return nil, nil, fmt.Errorf("%s: lookup unsuccessful: %s", c.name, body.Message)
	}
	return body.Latitude, body.Longitude, nil
}

func (c *Client) getJSON(ctx context.Context, fullURL string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s API error: status %d: %s", c.name, resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%s decode response: %w", c.name, err)
	}
	return nil
}

// Provider API response types.

type ipapiResponse struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Error     bool     `json:"error"`
	Reason    string   `json:"reason"`
}

type ipwhoisResponse struct {
	Success   bool     `json:"success"`
	Message   string   `json:"message"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}
