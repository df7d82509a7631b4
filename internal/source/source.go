// Package source defines the spreadsheet collaborator and the typed
// ingestion boundary between raw sheet rows and records.
package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/GiveMeMoreData/useit-warsaw-spots/internal/models"
)

// Column headers of the spots sheet.
const (
	ColGeometry  = "geometry_type"
	ColScore     = "Ocena"
	ColLatitude  = "Latitude"
	ColLongitude = "Longitude"
	ColCategory  = "Kategoria"
	ColVisit     = "Wizyta"
	ColName      = "Nazwa"
)

var requiredColumns = []string{ColGeometry, ColScore, ColLatitude, ColLongitude, ColCategory, ColVisit, ColName}

var ErrMissingColumn = errors.New("missing column")

// Source fetches the raw sheet.
type Source interface {
	Name() string
	Fetch(ctx context.Context) (*Table, error)
}

// FetchError reports that the spreadsheet could not be read.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Table is a flat sheet: one header row and the data rows below it. Rows may
// be shorter than the header; missing cells read as empty.
type Table struct {
	Header []string
	Rows   [][]string
}

// NewTable splits the first row off as the header.
func NewTable(rows [][]string) *Table {
	if len(rows) == 0 {
		return &Table{}
	}
	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}
	return &Table{Header: header, Rows: rows[1:]}
}

// People lists the persons that have an "Ocena <person>" column, in sheet order.
func (t *Table) People() []string {
	var people []string
	for _, h := range t.Header {
		if name, ok := strings.CutPrefix(h, models.RatingPrefix); ok && name != "" {
			people = append(people, name)
		}
	}
	return people
}

// Records converts the rows into typed records. Row numbers are 1-based sheet
// rows, so the first data row is 2. Rows with every cell blank are skipped.
func (t *Table) Records() ([]models.Record, error) {
	idx := make(map[string]int, len(t.Header))
	for i, h := range t.Header {
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}
	var missing []string
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}

	people := t.People()
	records := make([]models.Record, 0, len(t.Rows))
	for i, row := range t.Rows {
		if blank(row) {
			continue
		}
		cell := func(col string) string {
			j := idx[col]
			if j >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[j])
		}
		rec := models.Record{
			Row:          i + 2,
			Name:         cell(ColName),
			Category:     cell(ColCategory),
			Visit:        cell(ColVisit),
			Score:        cell(ColScore),
			Latitude:     cell(ColLatitude),
			Longitude:    cell(ColLongitude),
			GeometryType: cell(ColGeometry),
		}
		for _, p := range people {
			if v := cell(models.RatingPrefix + p); v != "" {
				if rec.Ratings == nil {
					rec.Ratings = make(map[string]string)
				}
				rec.Ratings[p] = v
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

type timeoutSource struct {
	Source
	d time.Duration
}

// WithTimeout bounds every Fetch of src by d.
func WithTimeout(src Source, d time.Duration) Source {
	return &timeoutSource{Source: src, d: d}
}

func (t *timeoutSource) Fetch(ctx context.Context) (*Table, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.Source.Fetch(ctx)
}
