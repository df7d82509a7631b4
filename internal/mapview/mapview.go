// Package mapview turns a set of spots into a standalone Leaflet map page.
package mapview

import (
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/GiveMeMoreData/useit-warsaw-spots/internal/calculator"
	"github.com/GiveMeMoreData/useit-warsaw-spots/internal/models"
)

//go:embed map.html.tmpl
var pageSource string

var (
	pageTmpl  = template.Must(template.New("map").Parse(pageSource))
	popupTmpl = template.Must(template.New("popup").Parse(
		`<b>Nazwa:</b> {{.Name}}<br><b>Kategoria:</b> {{.Category}}<br><b>Ocena:</b> {{.Score}}<br>` +
			`<a href="{{.Link}}" target="_blank" rel="noopener">Google Map</a>`))
)

// Options controls how a map is laid out.
type Options struct {
	Title string
	// DefaultCenter is used when there is nothing to show.
	DefaultCenter models.Coordinate
	Zoom          int
	// FitZoom derives the start zoom from how far the spots spread.
	FitZoom bool
	// Height of the map in pixels; also used as the assumed viewport width
	// for FitZoom.
	Height      int
	TileURL     string
	Attribution string
}

func DefaultOptions() Options {
	return Options{
		Title:         "Locations Map with Filters",
		DefaultCenter: models.Coordinate{Lat: 52.2297, Lon: 21.0122},
		Zoom:          10,
		Height:        1080,
		TileURL:       "https://tile.openstreetmap.org/{z}/{x}/{y}.png",
		Attribution:   `&copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors`,
	}
}

// Fullscreen is the map-level fullscreen toggle.
type Fullscreen struct {
	Position            string `json:"position"`
	Title               string `json:"title"`
	TitleCancel         string `json:"titleCancel"`
	ForceSeparateButton bool   `json:"forceSeparateButton"`
}

type Marker struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Color    string  `json:"color"`
	Popup    string  `json:"popup"`
	MaxWidth int     `json:"maxWidth"`
}

// Map is the rendered artifact: base map, controls and markers.
type Map struct {
	Title       string
	Center      models.Coordinate
	Zoom        int
	Height      int
	TileURL     string
	Attribution string
	Fullscreen  Fullscreen
	Markers     []Marker
}

// Render places one marker per spot. The map is centered on the median
// location, or on opts.DefaultCenter when spots is empty.
func Render(spots []models.Spot, opts Options) (*Map, error) {
	center := calculator.Center(spots, opts.DefaultCenter)
	zoom := opts.Zoom
	if opts.FitZoom && len(spots) > 1 {
		zoom = calculator.ZoomFor(calculator.Extent(center, spots), center.Lat, opts.Height, opts.Zoom)
	}

	m := &Map{
		Title:       opts.Title,
		Center:      center,
		Zoom:        zoom,
		Height:      opts.Height,
		TileURL:     opts.TileURL,
		Attribution: opts.Attribution,
		Fullscreen: Fullscreen{
			Position:            "topright",
			Title:               "Expand me",
			TitleCancel:         "Exit me",
			ForceSeparateButton: true,
		},
		Markers: make([]Marker, 0, len(spots)),
	}
	for _, s := range spots {
		popup, err := Popup(s)
		if err != nil {
			return nil, err
		}
		m.Markers = append(m.Markers, Marker{
			Lat:      s.Loc.Lat,
			Lon:      s.Loc.Lon,
			Color:    "blue",
			Popup:    popup,
			MaxWidth: 300,
		})
	}
	return m, nil
}

// WriteHTML writes the map as a complete HTML document.
func (m *Map) WriteHTML(w io.Writer) error {
	return pageTmpl.Execute(w, m)
}

// Popup is the escaped HTML label of a spot's marker.
func Popup(s models.Spot) (string, error) {
	var b strings.Builder
	err := popupTmpl.Execute(&b, struct {
		Name, Category, Score, Link string
	}{s.Name, s.Category, FormatScore(s.Score), GoogleMapsURL(s.Loc)})
	if err != nil {
		return "", fmt.Errorf("popup for %q: %w", s.Name, err)
	}
	return b.String(), nil
}

// FormatScore prints whole scores without a fraction ("8", "8.5", "-1").
func FormatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func GoogleMapsURL(c models.Coordinate) string {
	q := url.Values{}
	q.Set("api", "1")
	q.Set("query", FormatScore(c.Lat)+","+FormatScore(c.Lon))
	return "https://www.google.com/maps/search/?" + q.Encode()
}
