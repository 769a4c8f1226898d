package coerce

import (
	"testing"
	"time"

	"github.com/poiesic/docimport/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslatePattern(t *testing.T) {
	tests := []struct {
		pattern string
		layout  string
		textual bool
	}{
		{pattern: "EEE MMM dd HH:mm:ss z yyyy", layout: "Mon Jan 02 15:04:05 MST 2006", textual: true},
		{pattern: "yyyy-MM-dd", layout: "2006-01-02"},
		{pattern: "dd/MM/yy", layout: "02/01/06"},
		{pattern: "yyyy-MM-dd'T'HH:mm:ss.SSSZ", layout: "2006-01-02T15:04:05.000-0700"},
		{pattern: "yyyy-MM-dd'T'HH:mm:ssXXX", layout: "2006-01-02T15:04:05Z07:00"},
		{pattern: "h:mm a", layout: "3:04 PM", textual: true},
		{pattern: "EEEE, MMMM d", layout: "Monday, January 2", textual: true},
		{pattern: "HH 'o''clock'", layout: "15 o'clock"},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			layout, textual, err := translatePattern(tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.layout, layout)
			assert.Equal(t, tt.textual, textual)
		})
	}
}

func TestTranslatePattern_Unsupported(t *testing.T) {
	for _, pattern := range []string{
		"yyyy-MM-dd G",   // era
		"ww yyyy",        // week of year
		"HH:mm:ssSSS",    // fraction without separator
		"yyyy 'unclosed", // unterminated quote
		"'day 1' yyyy",   // digit in literal
	} {
		_, _, err := translatePattern(pattern)
		assert.ErrorIs(t, err, ErrUnsupportedPattern, pattern)
	}
}

func TestNewDateParser_Locale(t *testing.T) {
	t.Run("underscore tag is accepted", func(t *testing.T) {
		p, err := NewDateParser("", "EN_US")
		require.NoError(t, err)
		assert.Equal(t, "Mon Jan 02 15:04:05 MST 2006", p.Layout())
	})

	t.Run("numeric pattern allows any locale", func(t *testing.T) {
		_, err := NewDateParser("dd.MM.yyyy", "de_DE")
		require.NoError(t, err)
	})

	t.Run("textual pattern rejects non-English locale", func(t *testing.T) {
		_, err := NewDateParser("dd MMM yyyy", "fr_FR")
		assert.ErrorIs(t, err, ErrUnsupportedLocale)
	})

	t.Run("malformed tag", func(t *testing.T) {
		_, err := NewDateParser("yyyy", "not a tag!")
		assert.ErrorIs(t, err, ErrInvalidLanguageTag)
	})
}

func TestDateParser_Parse(t *testing.T) {
	p, err := NewDateParser("yyyy-MM-dd HH:mm:ss", "en-US")
	require.NoError(t, err)

	got, err := p.Parse("2024-02-29 23:59:58")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 23, 59, 58, 0, time.UTC).UnixMilli(), got)

	withZone, err := NewDateParser("yyyy-MM-dd'T'HH:mm:ssXXX", "")
	require.NoError(t, err)
	got, err = withZone.Parse("2024-01-01T02:00:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli(), got)
}

func TestDateParser_ZoneAbbreviations(t *testing.T) {
	p, err := NewDateParser("", "")
	require.NoError(t, err)

	noonUTC := time.Date(2015, 7, 27, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		raw  string
		want time.Time
	}{
		{raw: "Mon Jul 27 12:00:00 UTC 2015", want: noonUTC},
		{raw: "Mon Jul 27 12:00:00 GMT 2015", want: noonUTC},
		{raw: "Mon Jul 27 12:00:00 PST 2015", want: noonUTC.Add(8 * time.Hour)},
		{raw: "Mon Jul 27 12:00:00 PDT 2015", want: noonUTC.Add(7 * time.Hour)},
		{raw: "Mon Jul 27 12:00:00 CEST 2015", want: noonUTC.Add(-2 * time.Hour)},
		{raw: "Mon Jul 27 12:00:00 IST 2015", want: noonUTC.Add(-5*time.Hour - 30*time.Minute)},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := p.Parse(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want.UnixMilli(), got)
		})
	}

	t.Run("numeric GMT offsets are rejected", func(t *testing.T) {
		_, err := p.Parse("Mon Jul 27 12:00:00 GMT+3 2015")
		assert.ErrorIs(t, err, core.ErrInvalidTimestamp)
	})

	t.Run("unknown abbreviation", func(t *testing.T) {
		_, err := p.Parse("Mon Jul 27 12:00:00 QQT 2015")
		var me *core.MappingError
		require.ErrorAs(t, err, &me)
		assert.Equal(t, core.MappingInvalidTimestamp, me.Kind)
		assert.ErrorIs(t, err, core.ErrInvalidTimestamp)
	})
}

func TestTranslatePattern_RejectsShiftedHours(t *testing.T) {
	for _, pattern := range []string{"kk:mm", "KK:mm a"} {
		_, _, err := translatePattern(pattern)
		assert.ErrorIs(t, err, ErrUnsupportedPattern, pattern)
	}
}
