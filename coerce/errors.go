package coerce

import (
	"errors"

	"github.com/poiesic/docimport/core"
)

var (
	// ErrUnsupportedPattern indicates a date pattern letter with no layout equivalent.
	ErrUnsupportedPattern = errors.New("unsupported date pattern")

	// ErrUnsupportedLocale indicates textual date fields requested for a non-English locale.
	ErrUnsupportedLocale = errors.New("unsupported locale for textual date fields")

	// ErrInvalidLanguageTag indicates the configured language tag could not be parsed.
	ErrInvalidLanguageTag = errors.New("invalid language tag")
)

// WithField attaches a field name to a MappingError. Other errors are returned unchanged.
func WithField(err error, field string) error {
	var me *core.MappingError
	if errors.As(err, &me) && me.Field == "" {
		me.Field = field
	}
	return err
}
