package filter

import (
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/GiveMeMoreData/useit-warsaw-spots/internal/models"
)

// Observer is told about cache hits and misses.
type Observer interface {
	FilterCacheHit(stage string)
	FilterCacheMiss(stage string)
}

// Cache memoizes each stage of Apply. A stage's key is the dataset version
// plus the selectors of that stage and every stage before it, so it
// identifies the stage's input as well as its selector.
type Cache struct {
	c   *cache.Cache
	obs Observer
}

// NewCache creates a cache whose entries expire after ttl.
func NewCache(ttl time.Duration, obs Observer) *Cache {
	return &Cache{c: cache.New(ttl, 2*ttl), obs: obs}
}

// Apply is filter.Apply with memoization for the given dataset version. The
// returned slice may be shared with the cache and must not be modified.
func (fc *Cache) Apply(version uint64, spots []models.Spot, c models.Criteria) []models.Spot {
	key := "v" + strconv.FormatUint(version, 10)
	stages := []struct {
		name string
		sel  string
		run  func([]models.Spot) []models.Spot
	}{
		{"category", c.Category, func(in []models.Spot) []models.Spot { return Category(in, c.Category) }},
		{"visit", c.Visit, func(in []models.Spot) []models.Spot { return Visit(in, c.Visit) }},
		{"person", c.Person, func(in []models.Spot) []models.Spot { return Person(in, c.Person) }},
		{"min_score", strconv.Itoa(c.MinScore), func(in []models.Spot) []models.Spot { return MinScore(in, c.MinScore) }},
	}

	for _, st := range stages {
		key = stageKey(key, st.name, st.sel)
		if v, ok := fc.c.Get(key); ok {
			fc.hit(st.name)
			spots = v.([]models.Spot)
			continue
		}
		fc.miss(st.name)
		spots = st.run(spots)
		fc.c.Set(key, spots, cache.DefaultExpiration)
	}
	return spots
}

// Invalidate drops every memoized result.
func (fc *Cache) Invalidate() {
	fc.c.Flush()
}

// Len is the number of memoized stage results.
func (fc *Cache) Len() int {
	return fc.c.ItemCount()
}

func (fc *Cache) hit(stage string) {
	if fc.obs != nil {
		fc.obs.FilterCacheHit(stage)
	}
}

func (fc *Cache) miss(stage string) {
	if fc.obs != nil {
		fc.obs.FilterCacheMiss(stage)
	}
}

func stageKey(prefix, stage, sel string) string {
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteByte('|')
	b.WriteString(stage)
	b.WriteByte('=')
	b.WriteString(strconv.Quote(sel))
	return b.String()
}
