package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/0xbhavyaalag/EcoSphere/internal/domain"
	"github.com/0xbhavyaalag/EcoSphere/internal/observability"
)

// DefaultBaseURL is the public OpenStreetMap Nominatim instance.
const DefaultBaseURL = "https://nominatim.openstreetmap.org"

// Client implements domain.Geocoder using the Nominatim API.
type Client struct {
	userAgent  string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Nominatim client. Nominatim's usage policy requires an
// identifying User-Agent on every request.
func NewClient(baseURL, userAgent string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		metrics: metrics,
		logger:  logger,
	}
}

// ReverseGeocode converts coordinates to administrative address fields.
// A point with no address yields Address{Found: false} and no error.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.Address, error) {
	params := url.Values{
		"format":         {"json"},
		"lat":            {strconv.FormatFloat(lat, 'f', -1, 64)},
		"lon":            {strconv.FormatFloat(lon, 'f', -1, 64)},
		"zoom":           {"18"},
		"addressdetails": {"1"},
	}

	var resp reverseResponse
	if err := c.doRequest(ctx, c.baseURL+"/reverse?"+params.Encode(), "reverse", &resp); err != nil {
		return domain.Address{}, err
	}

	if resp.Error != "" || resp.Address == nil {
		c.metrics.GeocodeRequests.WithLabelValues("reverse", "empty").Inc()
		return domain.Address{DisplayName: resp.DisplayName}, nil
	}

	a := resp.Address
	c.metrics.GeocodeRequests.WithLabelValues("reverse", "success").Inc()
	return domain.Address{
		Found:        true,
		DisplayName:  resp.DisplayName,
		City:         a.City,
		Town:         a.Town,
		Village:      a.Village,
		Municipality: a.Municipality,
		County:       a.County,
		State:        a.State,
		Region:       a.Region,
		Country:      a.Country,
		Postcode:     a.Postcode,
	}, nil
}

// Search returns up to limit places matching query, in provider order.
// Hits whose coordinates cannot be parsed are dropped.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]domain.Place, error) {
	params := url.Values{
		"format":         {"json"},
		"q":              {query},
		"limit":          {strconv.Itoa(limit)},
		"addressdetails": {"1"},
	}

	var resp []searchResult
	if err := c.doRequest(ctx, c.baseURL+"/search?"+params.Encode(), "search", &resp); err != nil {
		return nil, err
	}

	places := make([]domain.Place, 0, len(resp))
	for _, r := range resp {
		lat, errLat := strconv.ParseFloat(r.Lat, 64)
		lon, errLon := strconv.ParseFloat(r.Lon, 64)
		if errLat != nil || errLon != nil {
			c.logger.Debug("skipping search hit without coordinates", "query", query, "display_name", r.DisplayName)
			continue
		}
		places = append(places, domain.Place{
			Name:        r.Name,
			DisplayName: r.DisplayName,
			Latitude:    lat,
			Longitude:   lon,
		})
	}

	outcome := "success"
	if len(places) == 0 {
		outcome = "empty"
	}
	c.metrics.GeocodeRequests.WithLabelValues("search", outcome).Inc()
	return places, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL, method string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.GeocodeAPIDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues(method, "error").Inc()
		return &domain.LookupError{
			Kind:    domain.LookupNetworkFailure,
			Message: method + " request failed",
			Err:     err,
		}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		c.metrics.GeocodeRequests.WithLabelValues(method, "rate_limited").Inc()
		c.logger.Warn("nominatim rate limit hit", "method", method)
		return &domain.LookupError{
			Kind:    domain.LookupRateLimited,
			Message: "geocoding rate limit exceeded, try again later",
		}
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.metrics.GeocodeRequests.WithLabelValues(method, "error").Inc()
		return &domain.LookupError{
			Kind:    domain.LookupNetworkFailure,
			Message: method + " request failed",
			Err:     fmt.Errorf("nominatim API error: status %d: %s", resp.StatusCode, body),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		c.metrics.GeocodeRequests.WithLabelValues(method, "error").Inc()
		return &domain.LookupError{
			Kind:    domain.LookupNoData,
			Message: method + " returned an unreadable response",
			Err:     err,
		}
	}
	return nil
}

// Nominatim API response types.

type reverseResponse struct {
	Error       string          `json:"error"`
	DisplayName string          `json:"display_name"`
	Address     *addressDetails `json:"address"`
}

type addressDetails struct {
	City         string `json:"city"`
	Town         string `json:"town"`
	Village      string `json:"village"`
	Municipality string `json:"municipality"`
	County       string `json:"county"`
	State        string `json:"state"`
	Region       string `json:"region"`
	Country      string `json:"country"`
	Postcode     string `json:"postcode"`
}

type searchResult struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"` // decimal degrees as a string
	Lon         string `json:"lon"`
}
