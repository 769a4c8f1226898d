// Package feed reads a line-oriented JSON export over HTTP.
//
// The export is a CouchDB-style _all_docs response with one row per line:
//
//	{"total_rows":2,"offset":0,"rows":[
//	{"id":"a","key":"a","value":{"rev":"1-x"},"doc":{...}},
//	{"id":"b","key":"b","value":{"rev":"1-y"},"doc":{...}}
//	]}
//
// The body is streamed; each interior line is parsed on its own, so a
// malformed row only skips that row.
package feed

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/buger/jsonparser"
	"github.com/poiesic/docimport/core"
	"github.com/poiesic/docimport/source"
)

// Name identifies this adapter in logs and fatal errors.
const Name = "feed"

// DefaultURL is the export requested when Config.URL is empty.
const DefaultURL = "http://127.0.0.1:5984/database_export/_all_docs?include_docs=true"

var (
	// ErrUnexpectedStatus indicates a non-200 response.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")

	// ErrMissingKey indicates a row without a non-empty string key.
	ErrMissingKey = errors.New("row has no key")

	// ErrMissingDoc indicates a row whose doc is absent or not an object.
	ErrMissingDoc = errors.New("row has no document")

	// ErrMalformedRow indicates an interior line that is not valid JSON.
	ErrMalformedRow = errors.New("malformed row")
)

// Config describes the export to fetch.
type Config struct {
	URL    string
	Client *http.Client
	Header http.Header
}

// Source implements source.Source over an HTTP export.
type Source struct {
	cfg    Config
	logger *slog.Logger

	body   io.ReadCloser
	reader *bufio.Reader
	line   int
	done   bool
}

var _ source.Source = (*Source)(nil)

// Option configures a Source.
type Option func(*Source)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Source) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a feed source. Nothing is fetched until Open.
func New(cfg Config, opts ...Option) *Source {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Client == nil {
		cfg.Client = http.DefaultClient
	}
	s := &Source{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open issues the GET request and checks the response status.
func (s *Source) Open(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL, nil)
	if err != nil {
		return source.Fatal(Name, err)
	}
	for k, vals := range s.cfg.Header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.cfg.Client.Do(req)
	if err != nil {
		return source.Fatal(Name, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return source.Fatal(Name, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status))
	}

	s.body = resp.Body
	s.reader = bufio.NewReader(resp.Body)
	s.logger.Info("fetching export", "url", s.cfg.URL)
	return nil
}

// Next returns the document on the next interior line.
func (s *Source) Next(ctx context.Context) (*core.Item, error) {
	if s.reader == nil {
		return nil, source.ErrNotOpen
	}

	for {
		if s.done {
			return nil, io.EOF
		}

		raw, err := s.reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("reading export: %w", err)
		}
		atEOF := err != nil
		if raw == "" && atEOF {
			s.done = true
			s.logger.Warn("export ended without closing line", "lines", s.line)
			return nil, io.EOF
		}
		s.line++

		line := strings.TrimRight(raw, "\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}

		switch {
		case strings.HasSuffix(line, `"rows":[`):
			s.logHeader(line)
			continue
		case len(line) == 2:
			s.done = true
			s.logger.Info("export complete", "lines", s.line)
			return nil, io.EOF
		}

		return s.parseRow(line)
	}
}

func (s *Source) logHeader(line string) {
	header := []byte(line + "]}")
	total, err := jsonparser.GetInt(header, "total_rows")
	if err != nil {
		s.logger.Warn("unreadable export header", "err", err)
		return
	}
	offset, _ := jsonparser.GetInt(header, "offset")
	s.logger.Info("export header", "total_rows", total, "offset", offset)
}

func (s *Source) parseRow(line string) (*core.Item, error) {
	label := fmt.Sprintf("line %d", s.line)
	row := []byte(strings.TrimSuffix(line, ","))
	if !json.Valid(row) {
		return nil, source.SkipRecord(label, ErrMalformedRow)
	}

	key, err := jsonparser.GetString(row, "key")
	if err != nil || key == "" {
		return nil, source.SkipRecord(label, ErrMissingKey)
	}
	raw, dataType, _, err := jsonparser.Get(row, "doc")
	if err != nil || dataType != jsonparser.Object {
		return nil, source.SkipRecord(label, fmt.Errorf("%w: %q", ErrMissingDoc, key))
	}

	doc, err := decodeObject(raw)
	if err != nil {
		return nil, source.SkipRecord(label, err)
	}
	item, err := core.NewItem(key, doc)
	if err != nil {
		return nil, source.SkipRecord(label, err)
	}
	return item, nil
}

// Close closes the response body.
func (s *Source) Close() error {
	if s.body == nil {
		return nil
	}
	err := s.body.Close()
	s.body = nil
	s.reader = nil
	return err
}
