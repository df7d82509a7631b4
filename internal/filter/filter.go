// Package filter narrows a dataset down to the spots matching the selected
// criteria. Every stage returns its input unchanged when its selector is the
// "all" sentinel.
package filter

import (
	"fmt"
	"strconv"

	"github.com/GiveMeMoreData/useit-warsaw-spots/internal/models"
)

// Category keeps spots whose category equals selector exactly.
func Category(spots []models.Spot, selector string) []models.Spot {
	if selector == models.AllCategories {
		return spots
	}
	return keep(spots, func(s models.Spot) bool { return s.Category == selector })
}

// Visit keeps spots whose visit status equals selector exactly.
func Visit(spots []models.Spot, selector string) []models.Spot {
	if selector == models.AllVisits {
		return spots
	}
	return keep(spots, func(s models.Spot) bool { return s.Visit == selector })
}

// Person keeps spots the person has rated. Only presence of a rating counts.
func Person(spots []models.Spot, selector string) []models.Spot {
	if selector == models.AllPeople {
		return spots
	}
	return keep(spots, func(s models.Spot) bool { return s.RatedBy(selector) })
}

// MinScore keeps spots scored at least threshold. Zero means no minimum.
func MinScore(spots []models.Spot, threshold int) []models.Spot {
	if threshold == 0 {
		return spots
	}
	t := float64(threshold)
	return keep(spots, func(s models.Spot) bool { return s.Score >= t })
}

// Apply runs category, visit, person and minimum score filters in that order.
func Apply(spots []models.Spot, c models.Criteria) []models.Spot {
	spots = Category(spots, c.Category)
	spots = Visit(spots, c.Visit)
	spots = Person(spots, c.Person)
	return MinScore(spots, c.MinScore)
}

// ParseMinScore reads the minimum score selector: the no-minimum sentinel (or
// empty) gives 0, otherwise an integer from 1 to 5.
func ParseMinScore(s string) (int, error) {
	if s == "" || s == models.NoMinScore {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 5 {
		return 0, fmt.Errorf("invalid minimum score %q", s)
	}
	return n, nil
}

// FormatMinScore is the inverse of ParseMinScore.
func FormatMinScore(n int) string {
	if n == 0 {
		return models.NoMinScore
	}
	return strconv.Itoa(n)
}

func keep(spots []models.Spot, pred func(models.Spot) bool) []models.Spot {
	out := make([]models.Spot, 0, len(spots))
	for _, s := range spots {
		if pred(s) {
			out = append(out, s)
		}
	}
	return out
}
