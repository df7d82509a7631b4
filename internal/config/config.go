// Package config loads settings from a YAML file and USEIT_* environment
// variables through viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/GiveMeMoreData/useit-warsaw-spots/internal/models"
	"github.com/GiveMeMoreData/useit-warsaw-spots/internal/normalize"
)

const (
	SourceSheets = "sheets"
	SourceXLSX   = "xlsx"
)

type Config struct {
	Source    SourceConfig
	Normalize NormalizeConfig
	Filters   FiltersConfig
	Map       MapConfig
	Web       WebConfig
	Cache     CacheConfig
	Log       LogConfig
}

type SourceConfig struct {
	Kind            string
	SpreadsheetID   string
	SpreadsheetName string
	Worksheet       string
	CredentialsFile string
	CredentialsJSON string
	XLSXPath        string
	XLSXSheet       string
	Timeout         time.Duration
	// Watch reloads sessions when the xlsx file changes.
	Watch bool
}

type NormalizeConfig struct {
	OnMalformed normalize.Policy
}

type FiltersConfig struct {
	People         []string
	VisitStatuses  []string
	SortCategories bool
}

type MapConfig struct {
	Default models.Coordinate
	Zoom    int
	FitZoom bool
	Height  int
	TileURL string
	Title   string
}

type WebConfig struct {
	Port          string
	PageTitle     string
	SessionSecret string
	Password      string
	SessionTTL    time.Duration
}

type CacheConfig struct {
	TTL time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// SetDefaults registers every key with its default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("source.kind", SourceSheets)
	v.SetDefault("source.spreadsheet_id", "")
	v.SetDefault("source.spreadsheet_name", "")
	v.SetDefault("source.worksheet", "")
	v.SetDefault("source.credentials_file", "")
	v.SetDefault("source.credentials_json", "")
	v.SetDefault("source.xlsx_path", "")
	v.SetDefault("source.xlsx_sheet", "")
	v.SetDefault("source.timeout", 30*time.Second)
	v.SetDefault("source.watch", true)

	v.SetDefault("normalize.on_malformed", string(normalize.PolicySkip))

	v.SetDefault("filters.people", []string{"Bartek", "Iga", "Zosia", "Asia", "Herki", "Wojtek", "Bogna", "Dominik"})
	v.SetDefault("filters.visit_statuses", []string{"Tak", "Planowana", "Nie"})
	v.SetDefault("filters.sort_categories", true)

	v.SetDefault("map.default_lat", 52.2297)
	v.SetDefault("map.default_lon", 21.0122)
	v.SetDefault("map.zoom", 10)
	v.SetDefault("map.fit_zoom", false)
	v.SetDefault("map.height", 1080)
	v.SetDefault("map.tile_url", "https://tile.openstreetmap.org/{z}/{x}/{y}.png")
	v.SetDefault("map.title", "Locations Map with Filters")

	v.SetDefault("web.port", "9595")
	v.SetDefault("web.page_title", "USEIT Warsaw")
	v.SetDefault("web.session_secret", "")
	v.SetDefault("web.password", "")
	v.SetDefault("web.session_ttl", 12*time.Hour)

	v.SetDefault("cache.ttl", 10*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// New returns a viper instance with defaults and environment bindings. PORT
// is honoured as an alias of USEIT_WEB_PORT.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix("USEIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("web.port", "USEIT_WEB_PORT", "PORT")
	return v
}

// ReadFile merges path into v. With an empty path, ./config.yaml is read
// if it exists.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
		return nil
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// Load decodes and validates v.
func Load(v *viper.Viper) (*Config, error) {
	policy, err := normalize.ParsePolicy(v.GetString("normalize.on_malformed"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Source: SourceConfig{
			Kind:            strings.ToLower(v.GetString("source.kind")),
			SpreadsheetID:   v.GetString("source.spreadsheet_id"),
			SpreadsheetName: v.GetString("source.spreadsheet_name"),
			Worksheet:       v.GetString("source.worksheet"),
			CredentialsFile: v.GetString("source.credentials_file"),
			CredentialsJSON: v.GetString("source.credentials_json"),
			XLSXPath:        v.GetString("source.xlsx_path"),
			XLSXSheet:       v.GetString("source.xlsx_sheet"),
			Timeout:         v.GetDuration("source.timeout"),
			Watch:           v.GetBool("source.watch"),
		},
		Normalize: NormalizeConfig{OnMalformed: policy},
		Filters: FiltersConfig{
			People:         v.GetStringSlice("filters.people"),
			VisitStatuses:  v.GetStringSlice("filters.visit_statuses"),
			SortCategories: v.GetBool("filters.sort_categories"),
		},
		Map: MapConfig{
			Default: models.Coordinate{Lat: v.GetFloat64("map.default_lat"), Lon: v.GetFloat64("map.default_lon")},
			Zoom:    v.GetInt("map.zoom"),
			FitZoom: v.GetBool("map.fit_zoom"),
			Height:  v.GetInt("map.height"),
			TileURL: v.GetString("map.tile_url"),
			Title:   v.GetString("map.title"),
		},
		Web: WebConfig{
			Port:          normalizePort(v.GetString("web.port")),
			PageTitle:     v.GetString("web.page_title"),
			SessionSecret: v.GetString("web.session_secret"),
			Password:      v.GetString("web.password"),
			SessionTTL:    v.GetDuration("web.session_ttl"),
		},
		Cache: CacheConfig{TTL: v.GetDuration("cache.ttl")},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Source.Kind {
	case SourceSheets:
		if c.Source.SpreadsheetID == "" && c.Source.SpreadsheetName == "" {
			errs = append(errs, errors.New("source.spreadsheet_id or source.spreadsheet_name is required"))
		}
	case SourceXLSX:
		if c.Source.XLSXPath == "" {
			errs = append(errs, errors.New("source.xlsx_path is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("source.kind must be %q or %q, got %q", SourceSheets, SourceXLSX, c.Source.Kind))
	}
	if c.Source.Timeout <= 0 {
		errs = append(errs, errors.New("source.timeout must be positive"))
	}
	if lat := c.Map.Default.Lat; lat < -90 || lat > 90 {
		errs = append(errs, fmt.Errorf("map.default_lat %v out of range", lat))
	}
	if lon := c.Map.Default.Lon; lon < -180 || lon > 180 {
		errs = append(errs, fmt.Errorf("map.default_lon %v out of range", lon))
	}
	if c.Map.Zoom < 0 || c.Map.Zoom > 19 {
		errs = append(errs, fmt.Errorf("map.zoom %d out of range", c.Map.Zoom))
	}
	if c.Map.Height <= 0 {
		errs = append(errs, errors.New("map.height must be positive"))
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, errors.New("cache.ttl must be positive"))
	}
	if c.Web.SessionTTL <= 0 {
		errs = append(errs, errors.New("web.session_ttl must be positive"))
	}
	return errors.Join(errs...)
}

func normalizePort(p string) string {
	p = strings.TrimSpace(p)
	if p != "" && !strings.Contains(p, ":") {
		return ":" + p
	}
	return p
}
