package ipgeo

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xbhavyaalag/EcoSphere/internal/domain"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func serve(t *testing.T, status int, body string, wantPath string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if wantPath != "" {
			assert.Equal(t, wantPath, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestIPAPI_Locate(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"ip":"203.0.113.9","latitude":28.6139,"longitude":77.209}`, "/203.0.113.9/json/")
	c := NewIPAPI(time.Second, discard()).WithBaseURL(srv.URL)

	coord, err := c.Locate(context.Background(), "203.0.113.9")
	require.NoError(t, err)
	assert.Equal(t, domain.Coordinate{
		Latitude: 28.6139, Longitude: 77.209,
		Accuracy: domain.IPAccuracyMeters, Source: domain.SourceIP,
	}, coord)
}

func TestIPAPI_SelfLookup(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"latitude":0,"longitude":0}`, "/json/")
	c := NewIPAPI(time.Second, discard()).WithBaseURL(srv.URL)

	coord, err := c.Locate(context.Background(), "")
	require.NoError(t, err)
	assert.Zero(t, coord.Latitude)
}

func TestIPAPI_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"malformed json", http.StatusOK, `{"latitude":`},
		{"missing fields", http.StatusOK, `{"city":"Delhi"}`},
		{"provider error", http.StatusOK, `{"error":true,"reason":"RateLimited"}`},
		{"out of range", http.StatusOK, `{"latitude":120,"longitude":10}`},
		{"http error", http.StatusServiceUnavailable, `down`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serve(t, tt.status, tt.body, "")
			_, err := NewIPAPI(time.Second, discard()).WithBaseURL(srv.URL).Locate(context.Background(), "")
			assert.Error(t, err)
		})
	}
}

func TestIPWhois_Locate(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"success":true,"latitude":19.076,"longitude":72.8777}`, "/198.51.100.7")
	c := NewIPWhois(time.Second, discard()).WithBaseURL(srv.URL)

	coord, err := c.Locate(context.Background(), "198.51.100.7")
	require.NoError(t, err)
	assert.InDelta(t, 19.076, coord.Latitude, 1e-9)
	assert.InDelta(t, 72.8777, coord.Longitude, 1e-9)
	assert.Equal(t, domain.SourceIP, coord.Source)
}

func TestIPWhois_RequiresSuccess(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"success":false,"message":"Reserved range","latitude":1,"longitude":2}`, "")
	_, err := NewIPWhois(time.Second, discard()).WithBaseURL(srv.URL).Locate(context.Background(), "10.0.0.1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Reserved range")
}

func TestNew(t *testing.T) {
	c, err := New(ProviderIPWhois, time.Second, discard())
	require.NoError(t, err)
	assert.Equal(t, ProviderIPWhois, c.Name())

	_, err = New("freegeoip", time.Second, discard())
	assert.Error(t, err)
}
