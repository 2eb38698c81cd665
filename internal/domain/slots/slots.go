// Package slots decides whether a GM's declared time slots cover an event.
package slots

import (
	"strings"

	"github.com/okian/gmassign/internal/domain/model"
	"github.com/okian/gmassign/internal/domain/timeofday"
)

// Match is the outcome of checking one availability record against an event.
type Match struct {
	Compatible bool
	// Matched lists the tokens that cover the event.
	Matched []string
	// Malformed lists range tokens that could not be parsed. They are skipped.
	Malformed []string
}

// Check applies the slot rules in order: an empty list never matches, the
// unavailable-all-day token vetoes everything, the all-day token matches, and
// otherwise one range token must fully contain the event.
func Check(tokens []string, event timeofday.Window) Match {
	if len(tokens) == 0 {
		return Match{}
	}
	for _, t := range tokens {
		if strings.TrimSpace(t) == model.SlotUnavailableDay {
			return Match{}
		}
	}

	var m Match
	for _, t := range tokens {
		t = strings.TrimSpace(t)
		if t == model.SlotAllDay {
			m.Compatible = true
			m.Matched = append(m.Matched, t)
			continue
		}
		slot, err := timeofday.ParseRange(t)
		if err != nil {
			m.Malformed = append(m.Malformed, t)
			continue
		}
		if slot.Contains(event) {
			m.Compatible = true
			m.Matched = append(m.Matched, t)
		}
	}
	return m
}

// Compatible is Check reduced to its verdict.
func Compatible(tokens []string, event timeofday.Window) bool {
	return Check(tokens, event).Compatible
}
