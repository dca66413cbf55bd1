package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/cybertec-postgresql/pgscript/internal/errors"
	"github.com/cybertec-postgresql/pgscript/internal/scan"
)

var (
	// defaultKeywordRe recognises the DEFAULT keyword where a type span ends
	defaultKeywordRe = regexp.MustCompile(`(?i)^\s+default(\s|$)`)

	// defaultClauseRe captures the raw default expression in group 2
	defaultClauseRe = regexp.MustCompile(`(?is)^(\s*=\s*|\s+default\s+)(.+)$`)

	// typeModifierRe splits numeric(10, 3)[] into name, precision, scale, a time
	// zone qualifier as in timestamp(3) with time zone, and the array suffix
	typeModifierRe = regexp.MustCompile(`(?is)^(.*?)\s*\(\s*(\d+)\s*(?:,\s*(\d+)\s*)?\)((?:\s+with(?:out)?\s+time\s+zone)?)\s*((?:\[\s*\d*\s*\])*)$`)

	unnamedTypeRe = regexp.MustCompile(`(?i)^(=|default(\s|$))`)
)

// directionKeywords is checked in order; inout must precede in
var directionKeywords = []struct {
	keyword   string
	direction Direction
}{
	{"inout", InOut},
	{"in", In},
	{"out", Out},
	{"variadic", Variadic},
}

// ParseParameter parses a single parameter declaration such as
// "inout total numeric(10, 2) default 0". An unterminated quoted name fails
// with ParameterNameMalformed here; inside ParseFunction the enclosing list scan
// rejects the same text first with ParameterListMalformed.
func ParseParameter(text string) (Parameter, error) {
	return parseParameter(text, "")
}

func parseParameter(text, file string) (Parameter, error) {
	p := Parameter{Direction: In}
	rest := strings.TrimSpace(text)

	// Step 1: direction keyword, only when followed by whitespace
	lower := strings.ToLower(rest)
	for _, d := range directionKeywords {
		if len(lower) > len(d.keyword) && strings.HasPrefix(lower, d.keyword) && scan.IsSpace(lower[len(d.keyword)]) {
			p.Direction = d.direction
			rest = strings.TrimSpace(rest[len(d.keyword):])
			break
		}
	}

	// Step 2: name
	nameSpan, err := scan.Next(rest, scan.UnescapedSpace)
	if err != nil {
		return Parameter{}, errors.WrapParseError(errors.ParameterNameMalformed, file, "cannot scan parameter name in "+strconvQuote(text), err)
	}
	if nameSpan.Value == "" {
		return Parameter{}, errors.NewParseError(errors.ParameterNameMalformed, file, "empty parameter declaration")
	}

	typeText := strings.TrimSpace(nameSpan.Rest)
	if typeText == "" || unnamedTypeRe.MatchString(typeText) {
		// A lone token is the type of an unnamed parameter
		typeText = rest
	} else {
		p.Name = scan.Unquote(nameSpan.Value)
	}

	// Step 3: type, up to DEFAULT, '=' or ')'
	typeSpan, err := scan.Next(typeText, typeStop)
	if err != nil {
		return Parameter{}, errors.WrapParseError(errors.ParameterTypeMalformed, file, "cannot scan type of parameter "+strconvQuote(p.Name), err)
	}
	if typeSpan.Value == "" {
		return Parameter{}, errors.NewParseError(errors.ParameterTypeMalformed, file, "missing type for parameter "+strconvQuote(p.Name))
	}
	p.Type = parseType(typeSpan.Value)

	// Step 4: default expression, kept as opaque SQL text
	if strings.TrimSpace(typeSpan.Rest) == "" {
		return p, nil
	}
	m := defaultClauseRe.FindStringSubmatch(typeSpan.Rest)
	if m == nil {
		return Parameter{}, errors.NewParseError(errors.ParameterDefaultMalformed, file, "unexpected "+strconvQuote(strings.TrimSpace(typeSpan.Rest))+" after type of parameter "+strconvQuote(p.Name))
	}
	def := strings.TrimSpace(m[2])
	p.Default = &def
	return p, nil
}

func typeStop(i int, c byte, st scan.State, text string) bool {
	if st.Escaped() {
		return false
	}
	if c == '=' || c == ')' {
		return true
	}
	return scan.IsSpace(c) && defaultKeywordRe.MatchString(text[i:])
}

// parseType splits an optional (precision[, scale]) modifier off a type name
func parseType(text string) ParameterType {
	m := typeModifierRe.FindStringSubmatch(text)
	if m == nil {
		return ParameterType{Name: normalizeSpace(text)}
	}
	name := normalizeSpace(m[1])
	if m[4] != "" {
		name += " " + normalizeSpace(m[4])
	}
	t := ParameterType{Name: name + strings.Join(strings.Fields(m[5]), "")}
	if precision, err := strconv.Atoi(m[2]); err == nil {
		t.Precision = &precision
	}
	if m[3] != "" {
		if scale, err := strconv.Atoi(m[3]); err == nil {
			t.Scale = &scale
		}
	}
	return t
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func strconvQuote(s string) string {
	return strconv.Quote(s)
}
