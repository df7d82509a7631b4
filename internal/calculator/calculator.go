package calculator

import (
	"math"
	"sort"

	"github.com/GiveMeMoreData/useit-warsaw-spots/internal/models"
)

// Median of values; the mean of the middle pair for an even count. ok is
// false for an empty input.
func Median(values []float64) (m float64, ok bool) {
	n := len(values)
	if n == 0 {
		return 0, false
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2], true
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2, true
}

// Center is the elementwise median of the spots' latitudes and longitudes,
// or fallback when there are no spots.
func Center(spots []models.Spot, fallback models.Coordinate) models.Coordinate {
	if len(spots) == 0 {
		return fallback
	}
	lats := make([]float64, len(spots))
	lons := make([]float64, len(spots))
	for i, s := range spots {
		lats[i] = s.Loc.Lat
		lons[i] = s.Loc.Lon
	}
	lat, _ := Median(lats)
	lon, _ := Median(lons)
	return models.Coordinate{Lat: lat, Lon: lon}
}

// Extent is the distance in meters from center to the farthest spot.
func Extent(center models.Coordinate, spots []models.Spot) float64 {
	var farthest float64
	for _, s := range spots {
		if d := Distance(center, s.Loc); d > farthest {
			farthest = d
		}
	}
	return farthest
}

const (
	minZoom = 3
	maxZoom = 16
	// tileMeters is the ground width of one 256px tile at zoom 0 on the equator.
	tileMeters = 40075016.686
)

// ZoomFor picks the largest web-mercator zoom at which a circle of radius
// meters around lat fits in a viewport widthPx wide. A zero radius yields
// fallback.
func ZoomFor(radius, lat float64, widthPx int, fallback int) int {
	if radius <= 0 || widthPx <= 0 {
		return fallback
	}
	metersPerPx := 2 * radius / float64(widthPx)
	z := math.Log2(tileMeters * math.Cos(toRadians(lat)) / (256 * metersPerPx))
	zoom := int(math.Floor(z))
	if zoom < minZoom {
		return minZoom
	}
	if zoom > maxZoom {
		return maxZoom
	}
	return zoom
}
