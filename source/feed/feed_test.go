package feed

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/poiesic/docimport/core"
	"github.com/poiesic/docimport/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const export = `{"total_rows":5,"offset":0,"rows":[
{"id":"a","key":"a","value":{"rev":"1-x"},"doc":{"_id":"a","name":"Ada","visits":3}},
{"id":"b","key":"b","value":{"rev":"1-y"},"doc":"not a document"},
{"id":"broken",
{"id":"c","key":"c","value":{"rev":"1-z"},"doc":{"_id":"c","nested":{"z":1,"a":[1,2.5]},"when":{"$date":"2020-07-26T12:00:00Z"}}},
{"id":"d","value":{"rev":"1-w"},"doc":{"_id":"d"}},
{"id":"e","key":"e","doc":{"price":{"$numberDecimal":"n/a"},"q":{"$type":"widget","n":1},"big":12345678901234567890,"esc":"a\"b"}}
]}
`

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "secret", r.Header.Get("X-Token"))
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func openFeed(t *testing.T, srv *httptest.Server) *Source {
	t.Helper()
	src := New(Config{URL: srv.URL, Client: srv.Client(), Header: http.Header{"X-Token": {"secret"}}})
	require.NoError(t, src.Open(context.Background()))
	t.Cleanup(func() { src.Close() })
	return src
}

func collect(t *testing.T, src *Source) (items []*core.Item, skipped []error) {
	t.Helper()
	for {
		item, err := src.Next(context.Background())
		if err == io.EOF {
			return items, skipped
		}
		if source.IsSkippable(err) {
			skipped = append(skipped, err)
			continue
		}
		require.NoError(t, err)
		items = append(items, item)
	}
}

func TestSource_ReadsExport(t *testing.T) {
	src := openFeed(t, serve(t, http.StatusOK, export))

	items, skipped := collect(t, src)
	require.Len(t, items, 3)
	assert.Equal(t, "a", items[0].Key)
	assert.Equal(t, "c", items[1].Key)
	assert.Equal(t, "e", items[2].Key)

	body, err := json.Marshal(items[0].Doc)
	require.NoError(t, err)
	assert.Equal(t, `{"_id":"a","name":"Ada","visits":3}`, string(body))

	body, err = json.Marshal(items[1].Doc)
	require.NoError(t, err)
	assert.Equal(t, `{"_id":"c","nested":{"z":1,"a":[1,2.5]},"when":{"$date":"2020-07-26T12:00:00Z"}}`, string(body))

	// Operator-looking fields are plain data and pass through untouched.
	body, err = json.Marshal(items[2].Doc)
	require.NoError(t, err)
	assert.Equal(t,
		`{"price":{"$numberDecimal":"n/a"},"q":{"$type":"widget","n":1},"big":12345678901234567890,"esc":"a\"b"}`,
		string(body))

	require.Len(t, skipped, 3)
	assert.ErrorIs(t, skipped[0], ErrMissingDoc)
	assert.ErrorIs(t, skipped[1], ErrMalformedRow)
	assert.Contains(t, skipped[1].Error(), "line 4")
	assert.ErrorIs(t, skipped[2], ErrMissingKey)

	// The closing line ends the stream for good.
	_, err = src.Next(context.Background())
	assert.Equal(t, io.EOF, err)
}

func TestSource_CRLFAndBlankLines(t *testing.T) {
	body := "{\"total_rows\":1,\"offset\":0,\"rows\":[\r\n\r\n" +
		"{\"id\":\"a\",\"key\":\"a\",\"doc\":{\"v\":true}}\r\n" +
		"]}\r\n"
	src := openFeed(t, serve(t, http.StatusOK, body))

	items, skipped := collect(t, src)
	assert.Empty(t, skipped)
	require.Len(t, items, 1)
	v, _ := items[0].Doc.Get("v")
	assert.Equal(t, true, v)
}

func TestSource_TruncatedBody(t *testing.T) {
	body := "{\"total_rows\":2,\"offset\":0,\"rows\":[\n" +
		"{\"id\":\"a\",\"key\":\"a\",\"doc\":{\"n\":1}},\n"
	src := openFeed(t, serve(t, http.StatusOK, body))

	items, skipped := collect(t, src)
	assert.Empty(t, skipped)
	require.Len(t, items, 1)
	assert.Equal(t, "a", items[0].Key)
}

func TestSource_BadStatus(t *testing.T) {
	srv := serve(t, http.StatusNotFound, `{"error":"not_found"}`)
	src := New(Config{URL: srv.URL, Header: http.Header{"X-Token": {"secret"}}})

	err := src.Open(context.Background())
	var fe *source.FatalError
	require.ErrorAs(t, err, &fe)
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
}

func TestSource_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := New(Config{URL: url}).Open(context.Background())
	var fe *source.FatalError
	assert.ErrorAs(t, err, &fe)
}

func TestSource_NextBeforeOpen(t *testing.T) {
	_, err := New(Config{}).Next(context.Background())
	assert.ErrorIs(t, err, source.ErrNotOpen)
}
