package bucket

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidTimeStep is returned for any time step that is neither a known unit
// token nor a strictly positive number of minutes.
var ErrInvalidTimeStep = errors.New("invalid time step")

// Supported time step units.
const (
	UnitHour    = "hour"
	UnitDay     = "day"
	UnitWeek    = "week"
	UnitMinutes = "minutes"
)

// TimeStep is either one of the fixed units (hour, day, week) or an arbitrary
// positive number of minutes. The zero value is not a valid step.
type TimeStep struct {
	unit    string
	minutes int
}

var (
	Hour = TimeStep{unit: UnitHour}
	Day  = TimeStep{unit: UnitDay}
	Week = TimeStep{unit: UnitWeek}
)

// Minutes returns an n-minute time step.
func Minutes(n int) (TimeStep, error) {
	if n <= 0 {
		return TimeStep{}, fmt.Errorf("%w: minutes must be > 0, got %d", ErrInvalidTimeStep, n)
	}
	return TimeStep{unit: UnitMinutes, minutes: n}, nil
}

// ParseTimeStep parses "hour", "day", "week" or a decimal minute count such as "15".
// Tokens are matched exactly; "Hour" or "fortnight" are rejected.
func ParseTimeStep(s string) (TimeStep, error) {
	switch s {
	case UnitHour:
		return Hour, nil
	case UnitDay:
		return Day, nil
	case UnitWeek:
		return Week, nil
	case "":
		return TimeStep{}, fmt.Errorf("%w: time step must not be empty", ErrInvalidTimeStep)
	}

	if strings.TrimSpace(s) != s || strings.HasPrefix(s, "+") {
		return TimeStep{}, fmt.Errorf("%w: %q", ErrInvalidTimeStep, s)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return TimeStep{}, fmt.Errorf("%w: %q (must be hour, day, week or a number of minutes)", ErrInvalidTimeStep, s)
	}
	return Minutes(n)
}

// Unit returns one of UnitHour, UnitDay, UnitWeek or UnitMinutes, or "" for the zero value.
func (ts TimeStep) Unit() string { return ts.unit }

// MinuteCount returns n for an n-minute step and 0 for unit steps.
func (ts TimeStep) MinuteCount() int { return ts.minutes }

// IsZero reports whether ts is the zero value.
func (ts TimeStep) IsZero() bool { return ts.unit == "" }

// String renders the step in the same form ParseTimeStep accepts.
func (ts TimeStep) String() string {
	if ts.unit == UnitMinutes {
		return strconv.Itoa(ts.minutes)
	}
	return ts.unit
}

// MarshalText implements encoding.TextMarshaler.
func (ts TimeStep) MarshalText() ([]byte, error) {
	return []byte(ts.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (ts *TimeStep) UnmarshalText(text []byte) error {
	parsed, err := ParseTimeStep(string(text))
	if err != nil {
		return err
	}
	*ts = parsed
	return nil
}
