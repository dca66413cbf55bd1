package parser

import (
	"regexp"
	"slices"
	"strings"

	"github.com/cybertec-postgresql/pgscript/internal/scan"
)

var (
	returnsRe = regexp.MustCompile(`(?is)^\s*returns\s+`)

	// routineOptionRe matches the first routine option that ends a RETURNS clause
	routineOptionRe = regexp.MustCompile(`(?i)^\s+(as|language|transform|window|immutable|stable|volatile|not|leakproof|called|strict|security|external|parallel|cost|rows|support|set|begin|return)\b`)

	setofRe    = regexp.MustCompile(`(?is)^setof\s+(.+)$`)
	tableRe    = regexp.MustCompile(`(?is)^table\s*\((.*)\)$`)
	typeNameRe = regexp.MustCompile(`(?s)^[A-Za-z_"][\w\s."$%]*(\(\s*\d+\s*(,\s*\d+\s*)?\))?$`)
)

// anyTypes are polymorphic and pseudo types with no concrete result shape
var anyTypes = []string{
	"record", "trigger", "event_trigger",
	"anyelement", "anyarray", "anynonarray", "anyenum", "anyrange", "anymultirange",
	"anycompatible", "anycompatiblearray", "anycompatiblenonarray", "anycompatiblerange", "anycompatiblemultirange",
}

// parseReturns reads an optional RETURNS clause from the text following the
// parameter list. An absent clause means Void.
func parseReturns(text string) Returns {
	loc := returnsRe.FindStringIndex(text)
	if loc == nil {
		return Returns{Kind: ReturnVoid}
	}
	rest := text[loc[1]:]

	span, err := scan.Next(rest, returnsStop)
	if err != nil {
		// The body may hold anything; keep what was written and move on
		return Returns{Kind: ReturnUnknown, Raw: strings.TrimSpace(rest)}
	}
	return ClassifyReturns(span.Value)
}

func returnsStop(i int, c byte, st scan.State, text string) bool {
	if st.Escaped() {
		return false
	}
	return c == ';' || (scan.IsSpace(c) && routineOptionRe.MatchString(text[i:]))
}

// ClassifyReturns maps the text of a RETURNS clause (without the keyword) to a
// Returns value.
func ClassifyReturns(raw string) Returns {
	r := Returns{Raw: strings.TrimSpace(raw)}
	text := r.Raw
	if m := setofRe.FindStringSubmatch(text); m != nil {
		r.SetOf = true
		text = strings.TrimSpace(m[1])
	}
	lower := strings.ToLower(normalizeSpace(text))

	switch {
	case text == "":
		r.Kind = ReturnUnknown
	case lower == "void":
		r.Kind = ReturnVoid
	case tableRe.MatchString(text):
		cols, ok := tableColumns(tableRe.FindStringSubmatch(text)[1])
		if !ok {
			r.Kind = ReturnUnknown
			return r
		}
		r.Kind = ReturnTable
		r.Columns = cols
		r.SetOf = true
	case slices.Contains(anyTypes, lower):
		r.Kind = ReturnAny
	case strings.HasSuffix(lower, "[]"):
		r.Kind = ReturnPrimitiveList
		r.Name = parseType(strings.TrimSpace(strings.TrimSuffix(text, "[]"))).Name
	case typeNameRe.MatchString(text):
		r.Kind = ReturnPrimitive
		r.Name = parseType(text).Name
	default:
		r.Kind = ReturnUnknown
	}
	return r
}

func tableColumns(text string) ([]Column, bool) {
	pieces, err := scan.SplitTopLevel(text, ',')
	if err != nil {
		return nil, false
	}
	cols := make([]Column, 0, len(pieces))
	for _, piece := range pieces {
		p, err := ParseParameter(piece.Value)
		if err != nil || p.Name == "" || p.Default != nil {
			return nil, false
		}
		cols = append(cols, Column{Name: p.Name, Type: p.Type})
	}
	return cols, true
}
