package coerce

import (
	"fmt"
	"time"

	"github.com/poiesic/docimport/core"
)

// zoneOffsets maps zone abbreviations to UTC offsets in seconds. Ambiguous
// abbreviations take their North American meaning (CST, AST), except IST
// which is India.
var zoneOffsets = map[string]int{
	"UTC": 0, "UT": 0, "GMT": 0, "Z": 0, "WET": 0,
	"BST": 1 * 3600, "WEST": 1 * 3600, "CET": 1 * 3600, "WAT": 1 * 3600,
	"CEST": 2 * 3600, "EET": 2 * 3600, "SAST": 2 * 3600, "IST": 5*3600 + 1800,
	"EEST": 3 * 3600, "MSK": 3 * 3600, "EAT": 3 * 3600,
	"PKT": 5 * 3600, "ICT": 7 * 3600, "WIB": 7 * 3600,
	"HKT": 8 * 3600, "SGT": 8 * 3600, "AWST": 8 * 3600,
	"JST": 9 * 3600, "KST": 9 * 3600,
	"ACST": 9*3600 + 1800, "ACDT": 10*3600 + 1800,
	"AEST": 10 * 3600, "AEDT": 11 * 3600,
	"NZST": 12 * 3600, "NZDT": 13 * 3600,
	"NST": -(3*3600 + 1800), "NDT": -(2*3600 + 1800),
	"ADT": -3 * 3600, "BRT": -3 * 3600, "ART": -3 * 3600,
	"AST": -4 * 3600, "EDT": -4 * 3600,
	"EST": -5 * 3600, "CDT": -5 * 3600,
	"CST": -6 * 3600, "MDT": -6 * 3600,
	"MST": -7 * 3600, "PDT": -7 * 3600,
	"PST": -8 * 3600, "AKDT": -8 * 3600,
	"AKST": -9 * 3600, "HST": -10 * 3600,
}

// resolveZone reinterprets the wall clock of a time parsed in UTC using the
// real offset of its zone abbreviation. The time package gives unknown
// abbreviations a zero offset instead of failing, so the UTC wall clock is
// still the one written in the input.
func resolveZone(t time.Time) (time.Time, error) {
	name, _ := t.Zone()
	offset, ok := zoneOffsets[name]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: unknown time zone %q", core.ErrInvalidTimestamp, name)
	}
	t = t.UTC()
	year, month, day := t.Date()
	hour, minute, sec := t.Clock()
	return time.Date(year, month, day, hour, minute, sec, t.Nanosecond(), time.FixedZone(name, offset)), nil
}
