// Package gsheets reads the spots sheet through the Google Sheets API.
package gsheets

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/GiveMeMoreData/useit-warsaw-spots/internal/source"
)

const spreadsheetMime = "application/vnd.google-apps.spreadsheet"

// Config selects the spreadsheet and the credentials used to read it.
type Config struct {
	// SpreadsheetID takes precedence over SpreadsheetName.
	SpreadsheetID   string
	SpreadsheetName string
	// Worksheet is the tab to read; empty means the first one.
	Worksheet string

	CredentialsFile string
	CredentialsJSON string
}

// Source fetches the sheet with a service account.
type Source struct {
	cfg  Config
	opts []option.ClientOption

	mu sync.Mutex
	id string
}

// New validates cfg. Extra client options are appended after the credential
// options.
func New(cfg Config, extra ...option.ClientOption) (*Source, error) {
	if cfg.SpreadsheetID == "" && cfg.SpreadsheetName == "" {
		return nil, errors.New("gsheets: spreadsheet id or name is required")
	}
	var opts []option.ClientOption
	switch {
	case cfg.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	opts = append(opts, option.WithScopes(sheets.SpreadsheetsReadonlyScope, drive.DriveReadonlyScope))
	opts = append(opts, extra...)
	return &Source{cfg: cfg, opts: opts, id: cfg.SpreadsheetID}, nil
}

func (s *Source) Name() string {
	if s.cfg.SpreadsheetName != "" {
		return "sheets:" + s.cfg.SpreadsheetName
	}
	return "sheets:" + s.cfg.SpreadsheetID
}

// Fetch reads every value of the worksheet. Numbers are rendered without
// exponent or grouping so that "52123456" survives as typed.
func (s *Source) Fetch(ctx context.Context) (*source.Table, error) {
	rows, err := s.fetch(ctx)
	if err != nil {
		return nil, &source.FetchError{Source: s.Name(), Err: err}
	}
	return source.NewTable(rows), nil
}

func (s *Source) fetch(ctx context.Context) ([][]string, error) {
	id, err := s.spreadsheetID(ctx)
	if err != nil {
		return nil, err
	}

	srv, err := sheets.NewService(ctx, s.opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets client: %w", err)
	}

	tab := s.cfg.Worksheet
	if tab == "" {
		meta, err := srv.Spreadsheets.Get(id).Fields("sheets.properties.title").Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("get spreadsheet %s: %w", id, err)
		}
		if len(meta.Sheets) == 0 || meta.Sheets[0].Properties == nil {
			return nil, fmt.Errorf("spreadsheet %s has no worksheets", id)
		}
		tab = meta.Sheets[0].Properties.Title
	}

	vr, err := srv.Spreadsheets.Values.Get(id, quoteRange(tab)).
		ValueRenderOption("UNFORMATTED_VALUE").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", tab, err)
	}

	rows := make([][]string, len(vr.Values))
	for i, vals := range vr.Values {
		row := make([]string, len(vals))
		for j, v := range vals {
			row[j] = cellString(v)
		}
		rows[i] = row
	}
	return rows, nil
}

// spreadsheetID resolves the configured name through Drive once.
func (s *Source) spreadsheetID(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.id != "" {
		return s.id, nil
	}

	srv, err := drive.NewService(ctx, s.opts...)
	if err != nil {
		return "", fmt.Errorf("drive client: %w", err)
	}
	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false",
		strings.ReplaceAll(s.cfg.SpreadsheetName, "'", `\'`), spreadsheetMime)
	list, err := srv.Files.List().Q(q).Fields("files(id, name)").PageSize(1).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("find spreadsheet %q: %w", s.cfg.SpreadsheetName, err)
	}
	if len(list.Files) == 0 {
		return "", fmt.Errorf("spreadsheet %q not found", s.cfg.SpreadsheetName)
	}
	s.id = list.Files[0].Id
	return s.id, nil
}

func quoteRange(tab string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'"
}

func cellString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	default:
		return fmt.Sprint(x)
	}
}
