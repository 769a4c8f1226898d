package coerce

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/poiesic/docimport/core"
)

// thousandsArtifact is the non-breaking space some spreadsheet exports use
// as a thousands separator.
const thousandsArtifact = "\u00a0"

var defaultDates, _ = NewDateParser(DefaultDatePattern, DefaultLanguageTag)

// FromText coerces a delimited-text field into the value set of t.
// A nil dates parser selects the default pattern.
func FromText(t core.SemanticType, raw string, dates *DateParser) (any, error) {
	switch t {
	case core.TypeString:
		return raw, nil

	case core.TypeInteger:
		clean := strings.ReplaceAll(raw, thousandsArtifact, "")
		v, err := strconv.ParseInt(clean, 10, 64)
		if err != nil {
			return nil, &core.MappingError{Kind: core.MappingInvalidNumber, Value: raw, Err: core.ErrInvalidNumber}
		}
		return v, nil

	case core.TypeFloat:
		clean := strings.ReplaceAll(raw, thousandsArtifact, "")
		v, err := strconv.ParseFloat(clean, 64)
		if err != nil {
			return nil, &core.MappingError{Kind: core.MappingInvalidNumber, Value: raw, Err: core.ErrInvalidNumber}
		}
		return v, nil

	case core.TypeBoolean:
		// anything other than a case-insensitive "true" is false
		return strings.EqualFold(raw, "true"), nil

	case core.TypeTimestamp:
		if dates == nil {
			dates = defaultDates
		}
		return dates.Parse(raw)
	}

	return nil, &core.MappingError{
		Kind:  core.MappingUnsupportedValue,
		Value: raw,
		Err:   fmt.Errorf("%w: %v", core.ErrUnknownSemanticType, t),
	}
}
