package parser

import (
	"regexp"
	"strings"

	"github.com/cybertec-postgresql/pgscript/internal/errors"
	"github.com/cybertec-postgresql/pgscript/internal/scan"
)

var createRoutineRe = regexp.MustCompile(`(?is)^create\s+(?:or\s+replace\s+)?(procedure|function)\s+`)

// ParseFunction parses the signature of a CREATE [OR REPLACE] FUNCTION or
// PROCEDURE script. Only the signature is inspected; the body is kept verbatim
// in RawScript.
func ParseFunction(script, sourcePath string) (*FunctionDefinition, error) {
	body := skipLeadingComments(script)

	m := createRoutineRe.FindStringSubmatch(body)
	if m == nil {
		return nil, errors.NewParseError(errors.FunctionNotFound, sourcePath, "script does not start with create [or replace] function or procedure")
	}
	fn := &FunctionDefinition{
		Kind:       RoutineFunction,
		RawScript:  script,
		SourcePath: sourcePath,
	}
	if strings.EqualFold(m[1], "procedure") {
		fn.Kind = RoutineProcedure
	}
	rest := body[len(m[0]):]

	// Name
	nameSpan, err := scan.Next(rest, scan.Unescaped('(', ' ', '\t', '\n', '\r'))
	if err != nil {
		return nil, errors.WrapParseError(errors.FunctionNameMalformed, sourcePath, "cannot scan function name", err)
	}
	if nameSpan.Value == "" {
		return nil, errors.NewParseError(errors.FunctionNameMalformed, sourcePath, "empty function name")
	}
	parts, err := scan.SplitQualified(nameSpan.Value)
	if err != nil {
		return nil, errors.WrapParseError(errors.FunctionNameMalformed, sourcePath, "cannot split function name "+strconvQuote(nameSpan.Value), err)
	}
	switch {
	case len(parts) == 1 && parts[0] != "":
		fn.Name = parts[0]
	case len(parts) == 2 && parts[0] != "" && parts[1] != "":
		fn.Schema, fn.Name = parts[0], parts[1]
	default:
		return nil, errors.NewParseError(errors.FunctionNameMalformed, sourcePath, "invalid function name "+strconvQuote(nameSpan.Value))
	}
	fn.RawName = nameSpan.Value

	// Parameter list
	params, rest, err := parseParameterList(nameSpan.Rest, sourcePath)
	if err != nil {
		return nil, err
	}
	fn.Parameters = params

	// Return clause
	fn.Returns = parseReturns(rest)
	return fn, nil
}

// parseParameterList consumes "( ... )" and returns the parsed parameters and the
// text after the closing parenthesis.
func parseParameterList(text, file string) ([]Parameter, string, error) {
	// Comments may sit between parameters; an imbalance is reported by the scan below
	if stripped, err := scan.StripComments(text); err == nil {
		text = stripped
	}
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "(") {
		return nil, "", errors.NewParseError(errors.ParameterListMalformed, file, "expected '(' after function name")
	}

	span, err := scan.Next(text, scan.ClosingParen)
	if err != nil {
		return nil, "", errors.WrapParseError(errors.ParameterListMalformed, file, "cannot scan parameter list", err)
	}
	if span.Rest == "" {
		return nil, "", errors.NewParseError(errors.ParameterListMalformed, file, "parameter list is not closed")
	}

	pieces, err := scan.SplitTopLevel(strings.TrimPrefix(span.Value, "("), ',')
	if err != nil {
		return nil, "", errors.WrapParseError(errors.ParameterListMalformed, file, "cannot split parameter list", err)
	}

	params := make([]Parameter, 0, len(pieces))
	for _, piece := range pieces {
		p, err := parseParameter(piece.Value, file)
		if err != nil {
			return nil, "", err
		}
		params = append(params, p)
	}
	return params, span.Rest[1:], nil
}

// skipLeadingComments drops whitespace, -- line comments and /* */ block
// comments in front of the first statement keyword.
func skipLeadingComments(script string) string {
	s := script
	for {
		s = strings.TrimLeft(s, " \t\r\n\f\v")
		switch {
		case strings.HasPrefix(s, "--"):
			i := strings.IndexByte(s, '\n')
			if i < 0 {
				return ""
			}
			s = s[i+1:]
		case strings.HasPrefix(s, "/*"):
			i := strings.Index(s, "*/")
			if i < 0 {
				return s
			}
			s = s[i+2:]
		default:
			return s
		}
	}
}
