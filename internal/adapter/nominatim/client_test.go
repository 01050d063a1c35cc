package nominatim

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xbhavyaalag/EcoSphere/internal/domain"
	"github.com/0xbhavyaalag/EcoSphere/internal/observability"
)

const (
	testUserAgent     = "EcoSphere-test/1.0"
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func testClient(baseURL string) *Client {
	return NewClient(baseURL, testUserAgent, 5*time.Second,
		observability.NewMetricsForTesting(),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestClient_ReverseGeocode_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reverse", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "json", q.Get("format"))
		assert.Equal(t, "28.6139", q.Get("lat"))
		assert.Equal(t, "77.209", q.Get("lon"))
		assert.Equal(t, "18", q.Get("zoom"))
		assert.Equal(t, "1", q.Get("addressdetails"))
		assert.Equal(t, testUserAgent, r.Header.Get("User-Agent"))

		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = io.WriteString(w, `{
			"display_name": "Connaught Place, New Delhi, Delhi, 110001, India",
			"address": {"city": "New Delhi", "state": "Delhi", "country": "India", "postcode": "110001"}
		}`)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	addr, err := c.ReverseGeocode(context.Background(), 28.6139, 77.209)
	require.NoError(t, err)

	assert.True(t, addr.Found)
	assert.Equal(t, "New Delhi", addr.City)
	assert.Equal(t, "Delhi", addr.State)
	assert.Equal(t, "110001", addr.Postcode)
	assert.InDelta(t, 1, testutil.ToFloat64(c.metrics.GeocodeRequests.WithLabelValues("reverse", "success")), 0)
}

func TestClient_ReverseGeocode_NoAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = io.WriteString(w, `{"error":"Unable to geocode"}`)
	}))
	defer srv.Close()

	addr, err := testClient(srv.URL).ReverseGeocode(context.Background(), 0, -160)
	require.NoError(t, err)
	assert.False(t, addr.Found)
}

func TestClient_Search_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Pune municipal corporation", r.URL.Query().Get("q"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))

		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = io.WriteString(w, `[
			{"name":"Pune Municipal Corporation","display_name":"PMC, Shivajinagar, Pune","lat":"18.5236","lon":"73.8478"},
			{"name":"broken","display_name":"broken","lat":"","lon":"73.8"},
			{"name":"","display_name":"Ward Office, Kothrud, Pune","lat":"18.5074","lon":"73.8077"}
		]`)
	}))
	defer srv.Close()

	places, err := testClient(srv.URL).Search(context.Background(), "Pune municipal corporation", 5)
	require.NoError(t, err)
	require.Len(t, places, 2)
	assert.Equal(t, domain.Place{
		Name: "Pune Municipal Corporation", DisplayName: "PMC, Shivajinagar, Pune",
		Latitude: 18.5236, Longitude: 73.8478,
	}, places[0])
	assert.Equal(t, "Ward Office, Kothrud, Pune", places[1].DisplayName)
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   domain.LookupErrorKind
	}{
		{"rate limited", http.StatusTooManyRequests, `{}`, domain.LookupRateLimited},
		{"server error", http.StatusBadGateway, `bad gateway`, domain.LookupNetworkFailure},
		{"malformed body", http.StatusOK, `[{"lat":`, domain.LookupNoData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := testClient(srv.URL).Search(context.Background(), "x", 5)
			var le *domain.LookupError
			require.ErrorAs(t, err, &le)
			assert.Equal(t, tt.kind, le.Kind)
		})
	}
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	c.httpClient.Timeout = 50 * time.Millisecond

	_, err := c.ReverseGeocode(context.Background(), 1, 1)
	var le *domain.LookupError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, domain.LookupNetworkFailure, le.Kind)
}
