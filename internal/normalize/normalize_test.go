package normalize

import (
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GiveMeMoreData/useit-warsaw-spots/internal/models"
)

func TestScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"", -1, false},
		{"0", 0, false},
		{"7", 7, false},
		{"85", 8.5, false},
		{"10", 1, false},
		{"100", 10, false},
		{"x", 0, true},
		{"8.5", 0, true},
		{"abc", 0, true},
		{"150", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Score(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedScore)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestScoreDigitsAndTenths(t *testing.T) {
	t.Parallel()

	for d := 0; d <= 9; d++ {
		got, err := Score(strconv.Itoa(d))
		require.NoError(t, err)
		assert.Equal(t, float64(d), got)
	}
	for n := 10; n <= 100; n++ {
		got, err := Score(strconv.Itoa(n))
		require.NoError(t, err)
		assert.InDelta(t, float64(n)/10, got, 1e-9)
	}
}

func TestCoordinate(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"52123456", "21012345", "520", "999", "00000001"} {
		want, err := strconv.ParseFloat(s[:2]+"."+s[2:], 64)
		require.NoError(t, err)
		got, err := Coordinate(s)
		require.NoError(t, err, s)
		assert.Equal(t, want, got, s)
	}

	for _, s := range []string{"", "5", "52", "52.1234", "-5212", "52a123", " 52123"} {
		_, err := Coordinate(s)
		assert.ErrorIs(t, err, ErrMalformedCoordinate, s)
	}
}

func park() models.Record {
	return models.Record{
		Row:          2,
		GeometryType: "point",
		Score:        "85",
		Latitude:     "52123456",
		Longitude:    "21012345",
		Category:     "Park",
		Visit:        "Tak",
		Name:         "A",
	}
}

func TestSpotsScenario(t *testing.T) {
	t.Parallel()

	res, err := Spots([]models.Record{park()}, PolicyFail, nil)
	require.NoError(t, err)
	require.Len(t, res.Spots, 1)

	s := res.Spots[0]
	assert.InDelta(t, 8.5, s.Score, 1e-9)
	assert.InDelta(t, 52.123456, s.Loc.Lat, 1e-9)
	assert.InDelta(t, 21.012345, s.Loc.Lon, 1e-9)
	assert.Equal(t, "A", s.Name)
	assert.Equal(t, "Park", s.Category)
	assert.Equal(t, "Tak", s.Visit)
}

func TestSpotsDropsEmptyGeometry(t *testing.T) {
	t.Parallel()

	rec := park()
	rec.GeometryType = ""
	res, err := Spots([]models.Record{rec}, PolicyFail, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Spots)
	assert.Equal(t, 1, res.Unplaced)
}

func TestSpotsMalformedPolicy(t *testing.T) {
	t.Parallel()

	bad := park()
	bad.Row = 3
	bad.Name = "B"
	bad.Latitude = "5"
	records := []models.Record{park(), bad, park()}

	_, err := Spots(records, PolicyFail, nil)
	require.Error(t, err)
	var rowErr *RowError
	require.True(t, errors.As(err, &rowErr))
	assert.Equal(t, 3, rowErr.Row)
	assert.Equal(t, "Latitude", rowErr.Field)
	assert.ErrorIs(t, err, ErrMalformedCoordinate)

	res, err := Spots(records, PolicySkip, nil)
	require.NoError(t, err)
	assert.Len(t, res.Spots, 2)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "B", res.Skipped[0].Name)
}

func TestParsePolicy(t *testing.T) {
	t.Parallel()

	p, err := ParsePolicy("skip")
	require.NoError(t, err)
	assert.Equal(t, PolicySkip, p)

	_, err = ParsePolicy("ignore")
	assert.Error(t, err)
}
