package interval

import (
	"fmt"
	"math"
	"strings"
)

// Unit is a unit the interval editor offers.
type Unit string

// Units offered by the interval editor.
const (
	Seconds Unit = "seconds"
	Minutes Unit = "minutes"
	Hours   Unit = "hours"
	Days    Unit = "days"
	Weeks   Unit = "weeks"
)

var unitSeconds = map[Unit]uint64{
	Seconds: 1,
	Minutes: 60,
	Hours:   3600,
	Days:    86400,
	Weeks:   604800,
}

// coarsestFirst is the precedence used when picking a unit for a number of seconds.
var coarsestFirst = []Unit{Weeks, Days, Hours, Minutes}

// Units returns the editor units from finest to coarsest.
func Units() []Unit {
	return []Unit{Seconds, Minutes, Hours, Days, Weeks}
}

// Length returns the unit length in seconds, or 0 for an unknown unit.
func (u Unit) Length() uint64 {
	return unitSeconds[u]
}

// ParseUnit accepts a unit name, case-insensitively, in plural or singular form.
func ParseUnit(raw string) (Unit, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	if !strings.HasSuffix(name, "s") {
		name += "s"
	}

	unit := Unit(name)
	if unit.Length() == 0 {
		return "", fmt.Errorf("%w: %q", ErrUnknownUnit, raw)
	}

	return unit, nil
}

// Decompose splits seconds into a quantity of the coarsest unit it is an exact multiple of.
// Values that are not a multiple of a minute, and zero, are returned in seconds.
func Decompose(seconds uint64) (uint64, Unit) {
	if seconds == 0 {
		return 0, Seconds
	}

	for _, unit := range coarsestFirst {
		length := unit.Length()
		if seconds%length == 0 {
			return seconds / length, unit
		}
	}

	return seconds, Seconds
}

// Encode converts a quantity of unit back into seconds.
func Encode(quantity uint64, unit Unit) (uint64, error) {
	length := unit.Length()
	if length == 0 {
		return 0, fmt.Errorf("%w: %q", ErrUnknownUnit, unit)
	}

	if quantity > math.MaxUint64/length {
		return 0, fmt.Errorf("%w: %d %s", ErrOverflow, quantity, unit)
	}

	return quantity * length, nil
}

// FormatHuman renders seconds as a label in the coarsest exact unit, e.g. "2 weeks" or "1 day".
// A nil label function renders English.
func FormatHuman(seconds uint64, label LabelFunc) string {
	if label == nil {
		label = EnglishLabels
	}

	quantity, unit := Decompose(seconds)
	return fmt.Sprintf("%d %s", quantity, label(unit, quantity))
}
