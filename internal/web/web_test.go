package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/GiveMeMoreData/useit-warsaw-spots/internal/session"
	"github.com/GiveMeMoreData/useit-warsaw-spots/internal/source"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var header = []string{"Nazwa", "Kategoria", "Wizyta", "Ocena", "Latitude", "Longitude", "geometry_type", "Ocena Iga"}

type fakeSource struct {
	mu   sync.Mutex
	rows [][]string
	err  error
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Fetch(context.Context) (*source.Table, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, &source.FetchError{Source: "fake", Err: f.err}
	}
	return source.NewTable(append([][]string{header}, f.rows...)), nil
}

func (f *fakeSource) set(rows [][]string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows, f.err = rows, err
}

var rows = [][]string{
	{"Łazienki", "Park", "Tak", "85", "52215000", "21035000", "point", "9"},
	{"Hala Koszyki", "Jedzenie", "Planowana", "3", "52222900", "21011400", "point", ""},
	{"Pole Mokotowskie", "Park", "Nie", "5", "52212000", "20995000", "point", ""},
}

type client struct {
	t    *testing.T
	base string
	http *http.Client
}

func newClient(t *testing.T, src *fakeSource, password string) *client {
	t.Helper()
	store := session.NewStore(time.Hour, func() *session.Coordinator {
		return session.NewCoordinator(src, session.DefaultSettings(), nil, nil)
	})
	srv := NewServer(Config{
		PageTitle:     "USEIT Warsaw",
		Password:      password,
		SessionSecret: "test-secret",
		SessionTTL:    time.Hour,
		MapHeight:     1080,
	}, store, http.NotFoundHandler(), nil)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &client{t: t, base: ts.URL, http: &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}}
}

func (c *client) do(method, path string, form url.Values) (*http.Response, string) {
	c.t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequest(method, c.base+path, body)
	require.NoError(c.t, err)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp, string(b)
}

type spotsResponse struct {
	Version uint64 `json:"version"`
	Count   int    `json:"count"`
	Warning string `json:"warning"`
	Spots   []struct {
		Name  string  `json:"name"`
		Score float64 `json:"score"`
	} `json:"spots"`
}

func (c *client) spots(query string) (int, spotsResponse) {
	c.t.Helper()
	resp, body := c.do(http.MethodGet, "/api/spots?"+query, nil)
	var out spotsResponse
	if resp.StatusCode == http.StatusOK {
		require.NoError(c.t, json.Unmarshal([]byte(body), &out))
	}
	return resp.StatusCode, out
}

func TestIndexRendersControls(t *testing.T) {
	c := newClient(t, &fakeSource{rows: rows}, "")

	resp, body := c.do(http.MethodGet, "/?category=Park", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "<title>USEIT Warsaw</title>")
	assert.Contains(t, body, "Reload Data")
	assert.Contains(t, body, `<option value="Park" selected>Park</option>`)
	assert.Contains(t, body, `<option value="Jedzenie">Jedzenie</option>`)
	assert.Contains(t, body, `<option value="Wszyscy" selected>Wszyscy</option>`)
	assert.Contains(t, body, `height="1080"`)
	assert.Contains(t, body, "/map?category=Park")
}

func TestMapAndSpots(t *testing.T) {
	c := newClient(t, &fakeSource{rows: rows}, "")

	resp, body := c.do(http.MethodGet, "/map?category=Park&min_score=5", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "L.control.fullscreen")
	assert.Contains(t, body, "Łazienki")
	assert.NotContains(t, body, "Hala Koszyki")

	status, out := c.spots("category=Park&min_score=5")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2, out.Count)
	assert.Equal(t, 8.5, out.Spots[0].Score)

	status, out = c.spots("person=Iga")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, out.Count)

	status, _ = c.spots("min_score=9")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestReloadIsPerSessionAndExplicit(t *testing.T) {
	src := &fakeSource{rows: rows}
	c := newClient(t, src, "")

	_, out := c.spots("")
	assert.Equal(t, 3, out.Count)
	assert.Equal(t, uint64(1), out.Version)

	src.set(rows[:1], nil)
	_, out = c.spots("")
	assert.Equal(t, 3, out.Count, "dataset kept until reload is requested")

	resp, _ := c.do(http.MethodPost, "/reload", url.Values{"category": {"Park"}, "min_score": {"Wszystko"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/?category=Park&min_score=Wszystko&person=Wszyscy&visit=Wszystko", resp.Header.Get("Location"))

	_, out = c.spots("")
	assert.Equal(t, 1, out.Count)
	assert.Equal(t, uint64(2), out.Version)
}

func TestFailedReloadShowsWarning(t *testing.T) {
	src := &fakeSource{rows: rows}
	c := newClient(t, src, "")
	c.spots("")

	src.set(nil, errors.New("invalid_grant"))
	c.do(http.MethodPost, "/reload", url.Values{})

	resp, body := c.do(http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Nie udało się pobrać arkusza: invalid_grant")
	assert.Contains(t, body, "<iframe")

	status, out := c.spots("")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 3, out.Count)
	assert.Empty(t, out.Warning, "warning reported once per reload")
}

func TestFirstLoadFailure(t *testing.T) {
	c := newClient(t, &fakeSource{err: errors.New("offline")}, "")

	resp, body := c.do(http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "offline")
	assert.NotContains(t, body, "<iframe")

	resp, _ = c.do(http.MethodGet, "/map", nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestExport(t *testing.T) {
	c := newClient(t, &fakeSource{rows: rows}, "")

	resp, body := c.do(http.MethodGet, "/export.xlsx?category=Park", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "useit-1.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader([]byte(body)))
	require.NoError(t, err)
	defer f.Close()
	got, err := f.GetRows("Miejsca")
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestLogin(t *testing.T) {
	c := newClient(t, &fakeSource{rows: rows}, "sekret")

	resp, _ := c.do(http.MethodGet, "/", nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	resp, body := c.do(http.MethodPost, "/login", url.Values{"password": {"zle"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Nieprawidłowe hasło")

	resp, _ = c.do(http.MethodPost, "/login", url.Values{"password": {"sekret"}})
	require.Equal(t, http.StatusFound, resp.StatusCode)

	resp, body = c.do(http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Wyloguj")

	resp, _ = c.do(http.MethodGet, "/logout", nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	resp, _ = c.do(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	c := newClient(t, &fakeSource{rows: rows}, "")
	resp, body := c.do(http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"status":"ok"`)
}
