package excel

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/GiveMeMoreData/useit-warsaw-spots/internal/models"
	"github.com/GiveMeMoreData/useit-warsaw-spots/internal/source"
)

// Source reads the spots sheet from a local .xlsx export.
type Source struct {
	Path string
	// Sheet is the worksheet to read; empty means the first one.
	Sheet string
}

func NewSource(path, sheet string) *Source {
	return &Source{Path: path, Sheet: sheet}
}

func (s *Source) Name() string { return "xlsx:" + s.Path }

func (s *Source) Fetch(ctx context.Context) (*source.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, &source.FetchError{Source: s.Name(), Err: err}
	}
	f, err := excelize.OpenFile(s.Path)
	if err != nil {
		return nil, &source.FetchError{Source: s.Name(), Err: err}
	}
	defer f.Close()

	rows, err := ReadSheet(f, s.Sheet)
	if err != nil {
		return nil, &source.FetchError{Source: s.Name(), Err: err}
	}
	return source.NewTable(rows), nil
}

// ReadSheet returns the raw cell values of sheetName, or of the first sheet
// when sheetName is empty.
func ReadSheet(f *excelize.File, sheetName string) ([][]string, error) {
	if sheetName == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheetName = sheets[0]
	}
	return f.GetRows(sheetName, excelize.Options{RawCellValue: true})
}

// WriteSpots writes spots as a single-sheet workbook to w.
func WriteSpots(w io.Writer, spots []models.Spot, sheetName string) error {
	f, err := buildWorkbook(spots, sheetName)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// SaveSpots writes spots as a single-sheet workbook to path.
func SaveSpots(path string, spots []models.Spot, sheetName string) error {
	f, err := buildWorkbook(spots, sheetName)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.SaveAs(path)
}

func buildWorkbook(spots []models.Spot, sheetName string) (*excelize.File, error) {
	f := excelize.NewFile()
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, err
	}

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return nil, err
	}

	people := ratedPeople(spots)
	headers := []interface{}{
		source.ColName, source.ColCategory, source.ColVisit, source.ColScore,
		source.ColLatitude, source.ColLongitude,
	}
	for _, p := range people {
		headers = append(headers, models.RatingPrefix+p)
	}
	if err := sw.SetRow("A1", headers); err != nil {
		return nil, err
	}

	for i, s := range spots {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []interface{}{
			s.Name, s.Category, s.Visit, s.Score,
			s.Loc.Lat, s.Loc.Lon,
		}
		for _, p := range people {
			row = append(row, s.Ratings[p])
		}
		if err := sw.SetRow(cell, row); err != nil {
			return nil, err
		}
	}

	if err := sw.Flush(); err != nil {
		return nil, err
	}

	f.SetActiveSheet(index)
	if sheetName != "Sheet1" {
		f.DeleteSheet("Sheet1")
	}
	return f, nil
}

func ratedPeople(spots []models.Spot) []string {
	seen := map[string]bool{}
	var people []string
	for _, s := range spots {
		for p := range s.Ratings {
			if !seen[p] {
				seen[p] = true
				people = append(people, p)
			}
		}
	}
	sort.Strings(people)
	return people
}
