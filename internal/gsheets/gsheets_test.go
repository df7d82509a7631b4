package gsheets

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/GiveMeMoreData/useit-warsaw-spots/internal/source"
)

type fakeGoogle struct {
	listCalls atomic.Int32
	failRead  bool
}

func (f *fakeGoogle) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/files"):
		f.listCalls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"files": []map[string]string{{"id": "sheet-123", "name": "USEIT"}},
		})
	case strings.Contains(r.URL.Path, "/spreadsheets/sheet-123/values/"):
		if f.failRead {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":{"code":403,"message":"denied"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"range":          "'Arkusz1'!A1:H3",
			"majorDimension": "ROWS",
			"values": []interface{}{
				[]interface{}{"Nazwa", "Kategoria", "Wizyta", "Ocena", "Latitude", "Longitude", "geometry_type", "Ocena Iga"},
				[]interface{}{"Łazienki", "Park", "Tak", 85, 52215000, 21035000, "point", 9},
				[]interface{}{"Hala", "Jedzenie", "Nie", "", 52222900, 21011400, ""},
			},
		})
	case strings.HasSuffix(r.URL.Path, "/spreadsheets/sheet-123"):
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"sheets": []map[string]interface{}{{"properties": map[string]string{"title": "Arkusz1"}}},
		})
	default:
		http.NotFound(w, r)
	}
}

func newTestSource(t *testing.T, fake *fakeGoogle, cfg Config) *Source {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	s, err := New(cfg, option.WithEndpoint(srv.URL+"/"), option.WithoutAuthentication())
	require.NoError(t, err)
	return s
}

func TestFetchByName(t *testing.T) {
	t.Parallel()

	fake := &fakeGoogle{}
	s := newTestSource(t, fake, Config{SpreadsheetName: "USEIT"})

	tbl, err := s.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, []string{"Łazienki", "Park", "Tak", "85", "52215000", "21035000", "point", "9"}, tbl.Rows[0])
	assert.Equal(t, "", tbl.Rows[1][3])
	assert.Equal(t, []string{"Iga"}, tbl.People())

	_, err = s.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), fake.listCalls.Load(), "name lookup is cached")
}

func TestFetchByIDSkipsDrive(t *testing.T) {
	t.Parallel()

	fake := &fakeGoogle{}
	s := newTestSource(t, fake, Config{SpreadsheetID: "sheet-123", Worksheet: "Arkusz1"})

	_, err := s.Fetch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, fake.listCalls.Load())
}

func TestFetchErrorWrapped(t *testing.T) {
	t.Parallel()

	fake := &fakeGoogle{failRead: true}
	s := newTestSource(t, fake, Config{SpreadsheetID: "sheet-123"})

	_, err := s.Fetch(context.Background())
	require.Error(t, err)
	var fetchErr *source.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, "sheets:sheet-123", fetchErr.Source)
}

func TestNewRequiresSpreadsheet(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	assert.Error(t, err)
}

func TestCellString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "52123456", cellString(float64(52123456)))
	assert.Equal(t, "8.5", cellString(8.5))
	assert.Equal(t, "", cellString(nil))
	assert.Equal(t, "TRUE", cellString(true))
	assert.Equal(t, "Park", cellString("Park"))
}
