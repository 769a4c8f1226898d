// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package coerce

import (
	"fmt"
	"strings"
	"time"

	"github.com/poiesic/docimport/core"
	"golang.org/x/text/language"
)

const (
	// DefaultDatePattern matches the output of a default Date.toString rendering.
	DefaultDatePattern = "EEE MMM dd HH:mm:ss z yyyy"

	// DefaultLanguageTag is the locale used when none is configured.
	DefaultLanguageTag = "EN_US"
)

// DateParser parses timestamps written in a SimpleDateFormat-style pattern.
type DateParser struct {
	pattern  string
	layout   string
	tag      language.Tag
	zoneName bool
}

// NewDateParser translates pattern into a Go reference layout.
// languageTag accepts both BCP 47 ("en-US") and underscore ("EN_US") forms.
// Empty arguments select the defaults.
func NewDateParser(pattern, languageTag string) (*DateParser, error) {
	if pattern == "" {
		pattern = DefaultDatePattern
	}
	if languageTag == "" {
		languageTag = DefaultLanguageTag
	}

	tag, err := language.Parse(strings.ReplaceAll(languageTag, "_", "-"))
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidLanguageTag, languageTag, err)
	}

	layout, textual, err := translatePattern(pattern)
	if err != nil {
		return nil, err
	}

	if textual && tag != language.Und {
		if base, _ := tag.Base(); base.String() != "en" {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedLocale, tag)
		}
	}

	return &DateParser{
		pattern:  pattern,
		layout:   layout,
		tag:      tag,
		zoneName: strings.Contains(layout, "MST"),
	}, nil
}

// Layout returns the translated Go layout.
func (p *DateParser) Layout() string {
	return p.layout
}

// Parse converts raw into epoch milliseconds. Inputs without a zone are read as UTC.
// Zone abbreviations must be known to zoneOffsets; unknown ones are rejected.
func (p *DateParser) Parse(raw string) (int64, error) {
	t, err := time.ParseInLocation(p.layout, strings.TrimSpace(raw), time.UTC)
	if err != nil {
		return 0, &core.MappingError{
			Kind:  core.MappingInvalidTimestamp,
			Value: raw,
			Err:   fmt.Errorf("%w: expected pattern %q", core.ErrInvalidTimestamp, p.pattern),
		}
	}
	if p.zoneName {
		if t, err = resolveZone(t); err != nil {
			return 0, &core.MappingError{Kind: core.MappingInvalidTimestamp, Value: raw, Err: err}
		}
	}
	return t.UnixMilli(), nil
}

// translatePattern converts a SimpleDateFormat pattern into a Go layout.
// textual reports whether month or day names are involved.
func translatePattern(pattern string) (layout string, textual bool, err error) {
	var b strings.Builder
	runes := []rune(pattern)

	for i := 0; i < len(runes); {
		r := runes[i]

		if r == '\'' {
			// '' is a literal quote, otherwise read until the closing quote
			if i+1 < len(runes) && runes[i+1] == '\'' {
				b.WriteRune('\'')
				i += 2
				continue
			}
			j := i + 1
			for ; j < len(runes); j++ {
				if runes[j] == '\'' {
					if j+1 < len(runes) && runes[j+1] == '\'' {
						b.WriteRune('\'')
						j++
						continue
					}
					break
				}
				if runes[j] >= '0' && runes[j] <= '9' {
					return "", false, fmt.Errorf("%w: digits in quoted literal of %q", ErrUnsupportedPattern, pattern)
				}
				b.WriteRune(runes[j])
			}
			if j >= len(runes) {
				return "", false, fmt.Errorf("%w: unterminated quote in %q", ErrUnsupportedPattern, pattern)
			}
			i = j + 1
			continue
		}

		if !isASCIILetter(r) {
			if r >= '0' && r <= '9' {
				return "", false, fmt.Errorf("%w: literal digit in %q", ErrUnsupportedPattern, pattern)
			}
			b.WriteRune(r)
			i++
			continue
		}

		n := 1
		for i+n < len(runes) && runes[i+n] == r {
			n++
		}
		i += n

		switch r {
		case 'y', 'u':
			if n == 2 {
				b.WriteString("06")
			} else {
				b.WriteString("2006")
			}
		case 'M', 'L':
			switch {
			case n >= 4:
				b.WriteString("January")
				textual = true
			case n == 3:
				b.WriteString("Jan")
				textual = true
			case n == 2:
				b.WriteString("01")
			default:
				b.WriteString("1")
			}
		case 'd':
			if n >= 2 {
				b.WriteString("02")
			} else {
				b.WriteString("2")
			}
		case 'E':
			if n >= 4 {
				b.WriteString("Monday")
			} else {
				b.WriteString("Mon")
			}
			textual = true
		case 'H':
			b.WriteString("15")
		case 'k', 'K':
			// 1-24 and 0-11 hour fields have no layout equivalent
			return "", false, fmt.Errorf("%w: hour letter %q in %q", ErrUnsupportedPattern, r, pattern)
		case 'h':
			if n >= 2 {
				b.WriteString("03")
			} else {
				b.WriteString("3")
			}
		case 'm':
			if n >= 2 {
				b.WriteString("04")
			} else {
				b.WriteString("4")
			}
		case 's':
			if n >= 2 {
				b.WriteString("05")
			} else {
				b.WriteString("5")
			}
		case 'S':
			// fractional seconds must follow a '.' or ',' in a Go layout
			cur := b.String()
			if !strings.HasSuffix(cur, ".") && !strings.HasSuffix(cur, ",") {
				return "", false, fmt.Errorf("%w: fraction without separator in %q", ErrUnsupportedPattern, pattern)
			}
			b.WriteString(strings.Repeat("0", n))
		case 'a':
			b.WriteString("PM")
			textual = true
		case 'z':
			b.WriteString("MST")
		case 'Z':
			b.WriteString("-0700")
		case 'X':
			switch n {
			case 1:
				b.WriteString("Z07")
			case 2:
				b.WriteString("Z0700")
			default:
				b.WriteString("Z07:00")
			}
		default:
			return "", false, fmt.Errorf("%w: letter %q in %q", ErrUnsupportedPattern, r, pattern)
		}
	}

	return b.String(), textual, nil
}

func isASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
