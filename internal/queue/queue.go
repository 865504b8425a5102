// Package queue models the outage rotation queue identifiers.
//
// A queue is a (group, sub-group) pair shown to users as "3.2" and encoded
// canonically as group*10+subgroup (32). Group is 1..6, sub-group 1..2.
package queue

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Code is the canonical queue identifier (group*10 + subgroup).
type Code int

// DefaultCode is the fallback for unparseable or out-of-range input.
const DefaultCode Code = 11

const (
	minGroup    = 1
	maxGroup    = 6
	subPerGroup = 2
)

// Valid reports whether c is a member of the fixed queue set.
func (c Code) Valid() bool {
	g, s := int(c)/10, int(c)%10
	return g >= minGroup && g <= maxGroup && s >= 1 && s <= subPerGroup
}

// Label renders the user-facing form, e.g. 32 -> "3.2".
// Unknown codes render as the plain number, matching what callers log.
func (c Code) Label() string {
	if !c.Valid() {
		return strconv.Itoa(int(c))
	}
	return fmt.Sprintf("%d.%d", int(c)/10, int(c)%10)
}

// Index maps the code to its 1-based row position on the provider page:
// (group-1)*2 + subgroup.
func (c Code) Index() int {
	return (int(c)/10-1)*subPerGroup + int(c)%10
}

// Bias is the number of leading non-slot cells in the code's table row.
func (c Code) Bias() int {
	if c.Index()%2 == 0 {
		return 2
	}
	return 3
}

// FromIndex is the inverse of Index. Out-of-range input yields DefaultCode.
func FromIndex(idx int) Code {
	if idx < 1 || idx > (maxGroup-minGroup+1)*subPerGroup {
		return DefaultCode
	}
	g := (idx-1)/subPerGroup + 1
	s := (idx-1)%subPerGroup + 1
	return Code(g*10 + s)
}

// All returns every valid code in label order.
func All() []Code {
	out := make([]Code, 0, (maxGroup-minGroup+1)*subPerGroup)
	for g := minGroup; g <= maxGroup; g++ {
		for s := 1; s <= subPerGroup; s++ {
			out = append(out, Code(g*10+s))
		}
	}
	return out
}

// ---- Parsing ----
//
// Subscriptions arrive from several historical surfaces (web payloads, bot
// callbacks, cached JSON, DB rows), so the accepted encodings vary:
// label string "3.2", decimal 3.2, canonical integer 32 (as int, float or
// numeric string). Parsing is an ordered list of strategies; the first match
// wins and anything else falls back to the default.

var labelRe = regexp.MustCompile(`^([1-6])\.([12])$`)

type parseStrategy func(v any) (Code, bool)

var strategies = []parseStrategy{parseLabel, parseDecimal, parseInteger}

// parseLabel accepts the user-facing "g.s" string form.
func parseLabel(v any) (Code, bool) {
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	m := labelRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, false
	}
	g, _ := strconv.Atoi(m[1])
	sub, _ := strconv.Atoi(m[2])
	return Code(g*10 + sub), true
}

// parseDecimal accepts a float with a fractional part: 3.2 -> 32.
func parseDecimal(v any) (Code, bool) {
	f, ok := asFloat(v)
	if !ok || f == math.Trunc(f) {
		return 0, false
	}
	major := int(f)
	minor := int(math.Round((f - float64(major)) * 10))
	return Code(major*10 + minor), true
}

// parseInteger accepts the canonical integer form in any numeric carrier.
func parseInteger(v any) (Code, bool) {
	f, ok := asFloat(v)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return Code(int(f)), true
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case Code:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// TryParse normalizes any accepted encoding to a canonical Code and reports
// failure for anything that is not a valid queue. Callers that must reject
// bad input (instead of coercing it) use this form.
func TryParse(v any) (Code, bool) {
	if v == nil {
		return 0, false
	}
	for _, try := range strategies {
		if c, ok := try(v); ok {
			return c, c.Valid()
		}
	}
	return 0, false
}

// Parse normalizes any accepted encoding to a canonical Code, falling back
// to def when no strategy matches or the result is not a valid queue.
func Parse(v any, def Code) Code {
	if !def.Valid() {
		def = DefaultCode
	}
	if c, ok := TryParse(v); ok {
		return c
	}
	return def
}
