// Package timeofday represents wall-clock times as minutes since midnight.
//
// Every HH:MM or HH:MM:SS string entering the engine goes through Parse, so
// comparison logic only ever sees integers.
package timeofday

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	minutesPerHour = 60
	hoursPerDay    = 24
)

// ErrMalformed is returned for strings that are not HH:MM[:SS].
var ErrMalformed = errors.New("malformed time of day")

// Minutes counts minutes since midnight. Seconds are truncated.
type Minutes int

// Parse reads "HH:MM" or "HH:MM:SS". 24:00 is accepted as end of day.
func Parse(s string) (Minutes, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	h, err := parseField(parts[0], hoursPerDay)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	m, err := parseField(parts[1], minutesPerHour-1)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	if len(parts) == 3 {
		if _, err := parseField(parts[2], 59); err != nil {
			return 0, fmt.Errorf("%w: %q", ErrMalformed, s)
		}
	}
	if h == hoursPerDay && m != 0 {
		return 0, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	return Minutes(h*minutesPerHour + m), nil
}

func parseField(s string, limit int) (int, error) {
	if len(s) == 0 || len(s) > 2 {
		return 0, ErrMalformed
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, ErrMalformed
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > limit {
		return 0, ErrMalformed
	}
	return n, nil
}

// MustParse is Parse for constants in tests and fixtures.
func MustParse(s string) Minutes {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

// String formats as HH:MM.
func (m Minutes) String() string {
	return fmt.Sprintf("%02d:%02d", int(m)/minutesPerHour, int(m)%minutesPerHour)
}

// Window is a [Start, End] interval within one day.
type Window struct {
	Start Minutes
	End   Minutes
}

// ParseWindow parses both ends of a window.
func ParseWindow(start, end string) (Window, error) {
	s, err := Parse(start)
	if err != nil {
		return Window{}, err
	}
	e, err := Parse(end)
	if err != nil {
		return Window{}, err
	}
	return Window{Start: s, End: e}, nil
}

// ParseRange parses a "HH:MM-HH:MM" slot token.
func ParseRange(token string) (Window, error) {
	start, end, ok := strings.Cut(token, "-")
	if !ok {
		return Window{}, fmt.Errorf("%w: %q", ErrMalformed, token)
	}
	return ParseWindow(start, end)
}

// Contains reports whether w fully covers other.
func (w Window) Contains(other Window) bool {
	return w.Start <= other.Start && w.End >= other.End
}

// Overlaps reports a strict overlap; touching windows do not overlap.
func (w Window) Overlaps(other Window) bool {
	return w.Start < other.End && w.End > other.Start
}

// Gap returns the smaller distance between the end of one window and the
// start of the other.
func (w Window) Gap(other Window) int {
	return min(abs(int(w.Start-other.End)), abs(int(other.Start-w.End)))
}

func (w Window) String() string {
	return w.Start.String() + "-" + w.End.String()
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
