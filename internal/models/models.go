package models

// Sentinel selector values meaning "no filtering on this dimension".
const (
	AllCategories = "Wszystkie"
	AllPeople     = "Wszyscy"
	AllVisits     = "Wszystko"
	NoMinScore    = "Wszystko"
)

// Unrated is the score given to a spot whose score cell is empty.
const Unrated = -1.0

// RatingPrefix is the header prefix of the per-person rating columns ("Ocena Iga").
const RatingPrefix = "Ocena "

type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Record is one raw row of the source sheet.
type Record struct {
	Row          int
	Name         string
	Category     string
	Visit        string
	Score        string
	Latitude     string
	Longitude    string
	GeometryType string
	// Ratings maps a person to the raw text of their "Ocena <person>" cell.
	Ratings map[string]string
}

// Spot is a Record with score and location coerced to numbers.
type Spot struct {
	Row      int               `json:"row"`
	Name     string            `json:"name"`
	Category string            `json:"category"`
	Visit    string            `json:"visit"`
	Score    float64           `json:"score"`
	Loc      Coordinate        `json:"location"`
	Ratings  map[string]string `json:"ratings,omitempty"`
}

// RatedBy reports whether person left a rating for the spot.
func (s Spot) RatedBy(person string) bool {
	return s.Ratings[person] != ""
}

// Criteria are the four user-selected filter values of one render cycle.
type Criteria struct {
	Category string `form:"category" json:"category"`
	Person   string `form:"person" json:"person"`
	Visit    string `form:"visit" json:"visit"`
	// MinScore is 0 when no minimum is selected.
	MinScore int `form:"-" json:"min_score"`
}

// AllCriteria returns criteria with every selector set to its sentinel.
func AllCriteria() Criteria {
	return Criteria{
		Category: AllCategories,
		Person:   AllPeople,
		Visit:    AllVisits,
	}
}

// WithDefaults replaces empty selectors with their sentinels.
func (c Criteria) WithDefaults() Criteria {
	if c.Category == "" {
		c.Category = AllCategories
	}
	if c.Person == "" {
		c.Person = AllPeople
	}
	if c.Visit == "" {
		c.Visit = AllVisits
	}
	return c
}
