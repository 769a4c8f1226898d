package delimited

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrUnterminatedQuote is reported for a quoted field still open at end of input.
var ErrUnterminatedQuote = errors.New("unterminated quoted field")

// malformedError marks a record the reader could not parse. The reader
// stays usable and the caller may skip the record.
type malformedError struct {
	line int
	err  error
}

func (e *malformedError) Error() string {
	return fmt.Sprintf("line %d: %v", e.line, e.err)
}

func (e *malformedError) Unwrap() error {
	return e.err
}

// records yields raw field slices from a tabular input.
type records interface {
	Read() ([]string, error)
	Position() string
	Close() error
}

// textReader splits delimited text into records. It follows RFC 4180 with
// a configurable separator and quote rune. A doubled quote inside a quoted
// field is a literal quote, quoted fields may span lines, and a quote that
// does not open a field is kept as a literal character.
type textReader struct {
	r      *bufio.Reader
	closer io.Closer
	sep    rune
	quote  rune
	line   int // line the next record starts on
	start  int // line the last returned record started on
	eof    bool
}

func newTextReader(r io.Reader, closer io.Closer, sep, quote rune) *textReader {
	return &textReader{
		r:      bufio.NewReader(r),
		closer: closer,
		sep:    sep,
		quote:  quote,
		line:   1,
	}
}

func (t *textReader) Position() string {
	return fmt.Sprintf("line %d", t.start)
}

func (t *textReader) Close() error {
	if t.closer == nil {
		return nil
	}
	return t.closer.Close()
}

// Read returns the next non-blank record or io.EOF.
func (t *textReader) Read() ([]string, error) {
	for {
		if t.eof {
			return nil, io.EOF
		}
		rec, blank, err := t.readRecord()
		if err != nil {
			return nil, err
		}
		if !blank {
			return rec, nil
		}
	}
}

func (t *textReader) readRecord() (fields []string, blank bool, err error) {
	t.start = t.line
	var field strings.Builder
	inQuotes := false
	fieldStart := true
	sawAny := false

	for {
		r, _, rerr := t.r.ReadRune()
		if rerr != nil {
			if !errors.Is(rerr, io.EOF) {
				return nil, false, rerr
			}
			t.eof = true
			if inQuotes {
				return nil, false, &malformedError{line: t.start, err: ErrUnterminatedQuote}
			}
			if !sawAny {
				return nil, true, nil
			}
			return append(fields, field.String()), false, nil
		}

		if inQuotes {
			if r == t.quote {
				next, _, perr := t.r.ReadRune()
				if perr == nil && next == t.quote {
					field.WriteRune(t.quote)
					continue
				}
				if perr == nil {
					_ = t.r.UnreadRune()
				}
				inQuotes = false
				continue
			}
			if r == '\n' {
				t.line++
			}
			field.WriteRune(r)
			continue
		}

		switch {
		case r == '\r':
			if next, _, perr := t.r.ReadRune(); perr == nil && next != '\n' {
				_ = t.r.UnreadRune()
			}
			fallthrough
		case r == '\n':
			t.line++
			if !sawAny {
				return nil, true, nil
			}
			return append(fields, field.String()), false, nil
		case r == t.sep:
			fields = append(fields, field.String())
			field.Reset()
			fieldStart = true
			sawAny = true
			continue
		case r == t.quote && fieldStart:
			inQuotes = true
		default:
			field.WriteRune(r)
		}
		fieldStart = false
		sawAny = true
	}
}
