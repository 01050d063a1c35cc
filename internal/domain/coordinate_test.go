package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoordinate_Validate(t *testing.T) {
	cases := []struct {
		name  string
		coord Coordinate
		ok    bool
	}{
		{name: "origin", coord: Coordinate{}, ok: true},
		{name: "bounds", coord: Coordinate{Latitude: -90, Longitude: 180}, ok: true},
		{name: "lat too high", coord: Coordinate{Latitude: 90.0001}},
		{name: "lon too low", coord: Coordinate{Longitude: -180.5}},
		{name: "negative accuracy", coord: Coordinate{Accuracy: -1}},
		{name: "nan latitude", coord: Coordinate{Latitude: math.NaN()}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.coord.Validate()
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidCoordinate)
		})
	}
}

func TestManualCoordinate(t *testing.T) {
	c, err := ManualCoordinate(12.5, -45.25)
	require.NoError(t, err)
	assert.Equal(t, SourceManual, c.Source)
	assert.Zero(t, c.Accuracy)

	_, err = ManualCoordinate(91, 0)
	assert.ErrorIs(t, err, ErrInvalidCoordinate)
}

func TestDMSToDecimal(t *testing.T) {
	assert.InDelta(t, 28.6139, DMSToDecimal(28, 36, 50.04, "N"), 1e-6)
	assert.InDelta(t, -33.8688, DMSToDecimal(33, 52, 7.68, "S"), 1e-6)
	assert.InDelta(t, -70.5, DMSToDecimal(70, 30, 0, "w"), 1e-9)
}

func TestExifCoordinate(t *testing.T) {
	c, err := ExifCoordinate([3]float64{19, 4, 33.6}, "N", [3]float64{72, 52, 39.72}, "E")
	require.NoError(t, err)
	assert.Equal(t, SourceGPSExif, c.Source)
	assert.InDelta(t, 19.076, c.Latitude, 1e-6)
	assert.InDelta(t, 72.8777, c.Longitude, 1e-6)

	_, err = ExifCoordinate([3]float64{95, 0, 0}, "N", [3]float64{0, 0, 0}, "E")
	assert.ErrorIs(t, err, ErrInvalidCoordinate)
}

func TestParseSource(t *testing.T) {
	assert.Equal(t, SourceGPSExif, ParseSource("gps"))
	assert.Equal(t, SourceDevice, ParseSource("Device"))
	assert.Equal(t, SourceIP, ParseSource("ip"))
	assert.Equal(t, SourceManual, ParseSource(""))
}
