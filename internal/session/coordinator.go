// Package session owns the dataset of one browsing session and decides when
// it has to be fetched again.
package session

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/GiveMeMoreData/useit-warsaw-spots/internal/filter"
	"github.com/GiveMeMoreData/useit-warsaw-spots/internal/mapview"
	"github.com/GiveMeMoreData/useit-warsaw-spots/internal/models"
	"github.com/GiveMeMoreData/useit-warsaw-spots/internal/normalize"
	"github.com/GiveMeMoreData/useit-warsaw-spots/internal/source"
)

// Observer receives coordinator events for metrics.
type Observer interface {
	filter.Observer
	DatasetLoaded(d time.Duration, spots, skipped int)
	DatasetLoadFailed(d time.Duration)
	ViewRendered(markers int)
}

// Settings shared by every coordinator.
type Settings struct {
	Policy normalize.Policy
	// People offered in the person selector. Empty means people are taken
	// from the "Ocena <person>" columns of the sheet.
	People         []string
	VisitStatuses  []string
	SortCategories bool
	CacheTTL       time.Duration
	Map            mapview.Options
}

func DefaultSettings() Settings {
	return Settings{
		Policy:         normalize.PolicySkip,
		People:         []string{"Bartek", "Iga", "Zosia", "Asia", "Herki", "Wojtek", "Bogna", "Dominik"},
		VisitStatuses:  []string{"Tak", "Planowana", "Nie"},
		SortCategories: true,
		CacheTTL:       10 * time.Minute,
		Map:            mapview.DefaultOptions(),
	}
}

// State is the coordinator's reload state. DatasetLoaded gates fetching from
// the source; rendering happens on every View regardless.
type State struct {
	DatasetLoaded bool
	ForceReload   bool
}

// Dataset is an immutable snapshot of the normalized sheet.
type Dataset struct {
	Version  uint64
	LoadedAt time.Time
	Spots    []models.Spot
	People   []string
	Skipped  []*normalize.RowError
	Unplaced int
}

// Options are the choices for the four selectors, sentinel first.
type Options struct {
	Categories []string
	People     []string
	Visits     []string
	MinScores  []string
}

// View is the result of one render cycle.
type View struct {
	Dataset  *Dataset
	Criteria models.Criteria
	Spots    []models.Spot
	Map      *mapview.Map
	// Err is set when a reload failed and the previous dataset was used.
	Err error
}

// Coordinator holds one session's dataset across filter/render cycles.
type Coordinator struct {
	src      source.Source
	settings Settings
	cache    *filter.Cache
	obs      Observer
	logger   *slog.Logger

	mu      sync.Mutex
	state   State
	dataset *Dataset
	version uint64
}

func NewCoordinator(src source.Source, settings Settings, obs Observer, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	var fobs filter.Observer
	if obs != nil {
		fobs = obs
	}
	return &Coordinator{
		src:      src,
		settings: settings,
		cache:    filter.NewCache(settings.CacheTTL, fobs),
		obs:      obs,
		logger:   logger,
	}
}

// State returns a copy of the reload state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RequestReload makes the next Dataset call fetch from the source.
func (c *Coordinator) RequestReload() {
	c.mu.Lock()
	c.state.ForceReload = true
	c.mu.Unlock()
}

// Dataset returns the session's dataset, fetching and normalizing it on
// first use or after RequestReload. If the fetch fails the previous dataset
// is returned unchanged together with the error; it is nil only when nothing
// was ever loaded.
func (c *Coordinator) Dataset(ctx context.Context) (*Dataset, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.DatasetLoaded && !c.state.ForceReload {
		return c.dataset, nil
	}
	// A failed reload is not retried until the user asks again.
	c.state.ForceReload = false

	ds, err := c.load(ctx)
	if err != nil {
		return c.dataset, err
	}
	c.dataset = ds
	c.state.DatasetLoaded = true
	c.cache.Invalidate()
	return ds, nil
}

func (c *Coordinator) load(ctx context.Context) (*Dataset, error) {
	start := time.Now()
	ds, err := c.fetch(ctx)
	elapsed := time.Since(start)
	if err != nil {
		c.logger.Error("dataset load failed", "source", c.src.Name(), "error", err, "duration", elapsed)
		if c.obs != nil {
			c.obs.DatasetLoadFailed(elapsed)
		}
		return nil, err
	}
	c.logger.Info("dataset loaded",
		"source", c.src.Name(), "version", ds.Version, "spots", len(ds.Spots),
		"skipped", len(ds.Skipped), "unplaced", ds.Unplaced, "duration", elapsed)
	if c.obs != nil {
		c.obs.DatasetLoaded(elapsed, len(ds.Spots), len(ds.Skipped))
	}
	return ds, nil
}

func (c *Coordinator) fetch(ctx context.Context) (*Dataset, error) {
	tbl, err := c.src.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	records, err := tbl.Records()
	if err != nil {
		return nil, err
	}
	res, err := normalize.Spots(records, c.settings.Policy, c.logger)
	if err != nil {
		return nil, err
	}

	people := c.settings.People
	if len(people) == 0 {
		people = tbl.People()
	}
	c.version++
	return &Dataset{
		Version:  c.version,
		LoadedAt: time.Now(),
		Spots:    res.Spots,
		People:   people,
		Skipped:  res.Skipped,
		Unplaced: res.Unplaced,
	}, nil
}

// View runs one render cycle: dataset, filter chain, map. A failed reload
// still renders the previous dataset and reports the failure in View.Err.
func (c *Coordinator) View(ctx context.Context, criteria models.Criteria) (*View, error) {
	ds, loadErr := c.Dataset(ctx)
	if ds == nil {
		return nil, loadErr
	}
	criteria = criteria.WithDefaults()
	spots := c.cache.Apply(ds.Version, ds.Spots, criteria)
	m, err := mapview.Render(spots, c.settings.Map)
	if err != nil {
		return nil, err
	}
	if c.obs != nil {
		c.obs.ViewRendered(len(m.Markers))
	}
	return &View{Dataset: ds, Criteria: criteria, Spots: spots, Map: m, Err: loadErr}, nil
}

// Options lists the selector choices for ds.
func (c *Coordinator) Options(ds *Dataset) Options {
	opts := Options{
		Categories: []string{models.AllCategories},
		People:     append([]string{models.AllPeople}, ds.People...),
		Visits:     append([]string{models.AllVisits}, c.settings.VisitStatuses...),
		MinScores:  []string{models.NoMinScore},
	}
	for n := 1; n <= 5; n++ {
		opts.MinScores = append(opts.MinScores, filter.FormatMinScore(n))
	}

	var cats []string
	for _, s := range ds.Spots {
		if s.Category != "" && !slices.Contains(cats, s.Category) {
			cats = append(cats, s.Category)
		}
	}
	if c.settings.SortCategories {
		collate.New(language.Polish).SortStrings(cats)
	}
	opts.Categories = append(opts.Categories, cats...)
	return opts
}
