// Package normalize turns raw sheet records into plottable spots.
package normalize

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/GiveMeMoreData/useit-warsaw-spots/internal/models"
)

var (
	ErrMalformedScore      = errors.New("malformed score")
	ErrMalformedCoordinate = errors.New("malformed coordinate")
)

// Policy decides what happens to a row that fails coercion.
type Policy string

const (
	// PolicyFail aborts the whole batch on the first malformed row.
	PolicyFail Policy = "fail"
	// PolicySkip drops the malformed row and keeps going.
	PolicySkip Policy = "skip"
)

// ParsePolicy accepts "fail" or "skip".
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicyFail, PolicySkip:
		return p, nil
	}
	return "", fmt.Errorf("unknown malformed row policy %q", s)
}

// RowError describes one row that could not be normalized.
type RowError struct {
	Row   int
	Name  string
	Field string
	Value string
	Err   error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d (%s): %s %q: %v", e.Row, e.Name, e.Field, e.Value, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Result is the outcome of normalizing a batch.
type Result struct {
	Spots []models.Spot
	// Skipped holds the rows dropped under PolicySkip.
	Skipped []*RowError
	// Unplaced counts rows dropped for an empty geometry type.
	Unplaced int
}

// Spots normalizes records in order. Records without a geometry type are
// dropped silently; malformed rows are handled according to policy.
func Spots(records []models.Record, policy Policy, logger *slog.Logger) (Result, error) {
	res := Result{Spots: make([]models.Spot, 0, len(records))}
	for _, rec := range records {
		if rec.GeometryType == "" {
			res.Unplaced++
			continue
		}
		spot, rowErr := Spot(rec)
		if rowErr != nil {
			if policy != PolicySkip {
				return Result{}, rowErr
			}
			if logger != nil {
				logger.Warn("skipping malformed row",
					"row", rowErr.Row, "name", rowErr.Name, "field", rowErr.Field, "value", rowErr.Value)
			}
			res.Skipped = append(res.Skipped, rowErr)
			continue
		}
		res.Spots = append(res.Spots, spot)
	}
	return res, nil
}

// Spot coerces a single record.
func Spot(rec models.Record) (models.Spot, *RowError) {
	fail := func(field, value string, err error) (models.Spot, *RowError) {
		return models.Spot{}, &RowError{Row: rec.Row, Name: rec.Name, Field: field, Value: value, Err: err}
	}

	score, err := Score(rec.Score)
	if err != nil {
		return fail("Ocena", rec.Score, err)
	}
	lat, err := Coordinate(rec.Latitude)
	if err != nil {
		return fail("Latitude", rec.Latitude, err)
	}
	lon, err := Coordinate(rec.Longitude)
	if err != nil {
		return fail("Longitude", rec.Longitude, err)
	}

	return models.Spot{
		Row:      rec.Row,
		Name:     rec.Name,
		Category: rec.Category,
		Visit:    rec.Visit,
		Score:    score,
		Loc:      models.Coordinate{Lat: lat, Lon: lon},
		Ratings:  rec.Ratings,
	}, nil
}

// Score applies the sheet's score convention: empty is unrated (-1), a single
// digit is taken as is, anything longer is an integer in tenths ("85" is 8.5).
func Score(s string) (float64, error) {
	switch len(s) {
	case 0:
		return models.Unrated, nil
	case 1:
		if s[0] < '0' || s[0] > '9' {
			return 0, ErrMalformedScore
		}
		return float64(s[0] - '0'), nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, ErrMalformedScore
	}
	v := float64(n) / 10
	if v < models.Unrated || v > 10 {
		return 0, fmt.Errorf("%w: %v out of range", ErrMalformedScore, v)
	}
	return v, nil
}

// Coordinate restores the decimal point the sheet drops: two integer digits
// followed by the fraction ("52123456" is 52.123456).
func Coordinate(s string) (float64, error) {
	if len(s) < 3 {
		return 0, fmt.Errorf("%w: too short", ErrMalformedCoordinate)
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, fmt.Errorf("%w: non-digit %q", ErrMalformedCoordinate, s[i])
		}
	}
	v, err := strconv.ParseFloat(s[:2]+"."+s[2:], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedCoordinate, err)
	}
	return v, nil
}
