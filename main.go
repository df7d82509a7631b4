package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/GiveMeMoreData/useit-warsaw-spots/internal/config"
	"github.com/GiveMeMoreData/useit-warsaw-spots/internal/excel"
	"github.com/GiveMeMoreData/useit-warsaw-spots/internal/gsheets"
	"github.com/GiveMeMoreData/useit-warsaw-spots/internal/logging"
	"github.com/GiveMeMoreData/useit-warsaw-spots/internal/mapview"
	"github.com/GiveMeMoreData/useit-warsaw-spots/internal/session"
	"github.com/GiveMeMoreData/useit-warsaw-spots/internal/source"
)

// app is what every command needs once configuration is loaded.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	src      source.Source
	settings session.Settings
}

func main() {
	if err := rootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	v := config.New()
	var cfgFile string

	root := &cobra.Command{
		Use:          "useit-map",
		Short:        "Interactive map of the USEIT Warsaw spots sheet",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config.yaml if present)")
	root.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	_ = v.BindPFlag("log.level", root.PersistentFlags().Lookup("log-level"))

	load := func() (*app, error) {
		if err := config.ReadFile(v, cfgFile); err != nil {
			return nil, err
		}
		return newApp(v)
	}

	root.AddCommand(serveCommand(v, load), checkCommand(load), exportCommand(load))
	return root
}

func newApp(v *viper.Viper) (*app, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	src, err := newSource(cfg.Source)
	if err != nil {
		return nil, err
	}

	mapOpts := mapview.DefaultOptions()
	mapOpts.Title = cfg.Map.Title
	mapOpts.DefaultCenter = cfg.Map.Default
	mapOpts.Zoom = cfg.Map.Zoom
	mapOpts.FitZoom = cfg.Map.FitZoom
	mapOpts.Height = cfg.Map.Height
	mapOpts.TileURL = cfg.Map.TileURL

	return &app{
		cfg:    cfg,
		logger: logger,
		src:    source.WithTimeout(src, cfg.Source.Timeout),
		settings: session.Settings{
			Policy:         cfg.Normalize.OnMalformed,
			People:         cfg.Filters.People,
			VisitStatuses:  cfg.Filters.VisitStatuses,
			SortCategories: cfg.Filters.SortCategories,
			CacheTTL:       cfg.Cache.TTL,
			Map:            mapOpts,
		},
	}, nil
}

func newSource(cfg config.SourceConfig) (source.Source, error) {
	switch cfg.Kind {
	case config.SourceXLSX:
		return excel.NewSource(cfg.XLSXPath, cfg.XLSXSheet), nil
	case config.SourceSheets:
		return gsheets.New(gsheets.Config{
			SpreadsheetID:   cfg.SpreadsheetID,
			SpreadsheetName: cfg.SpreadsheetName,
			Worksheet:       cfg.Worksheet,
			CredentialsFile: cfg.CredentialsFile,
			CredentialsJSON: cfg.CredentialsJSON,
		})
	}
	return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
}
