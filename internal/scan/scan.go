// Package scan provides the quote and nesting aware scanning primitive used to
// slice loosely structured SQL text without a full SQL grammar.
//
// Scanning is a pure fold over the bytes of the input. Every delimiter the
// scanner tracks is ASCII, so multi-byte UTF-8 sequences pass through unchanged.
//
// Usage:
//
//	span, err := scan.Next(text, scan.Unescaped('(', ' ', '\n'))
//	if err != nil { ... }
//	// span.Value is the trimmed text before the first top-level '(' or blank,
//	// span.Rest starts at that delimiter.
package scan

import (
	"fmt"
	"strings"

	"github.com/cybertec-postgresql/pgscript/internal/errors"
)

// State is the lexer state after consuming a prefix of the input
type State struct {
	InDoubleQuote bool
	InSingleQuote bool
	ParenDepth    int
	BracketDepth  int
	BraceDepth    int

	// Comments and dollar quotes hide delimiters like quotes do
	InLineComment bool
	CommentDepth  int    // Nesting level of /* */ comments
	DollarTag     string // Closing delimiter of an open $tag$ string, e.g. "$body$"

	escapes bool // The open single quote is an E'' string with backslash escapes
	skip    int  // Bytes still belonging to a token already consumed
}

// Quoted reports whether the state is inside a quoted section, a comment or a
// dollar quoted string
func (s State) Quoted() bool {
	return s.InDoubleQuote || s.InSingleQuote || s.InLineComment || s.CommentDepth > 0 || s.DollarTag != ""
}

// Escaped reports whether the state is quoted or nested inside any bracket
func (s State) Escaped() bool {
	return s.Quoted() || s.ParenDepth > 0 || s.BracketDepth > 0 || s.BraceDepth > 0
}

// Span is a consumed lexical slice and the unconsumed remainder
type Span struct {
	Value string
	Rest  string
}

// StopFunc decides where a scan ends. It is called for every index with the
// state before text[i] is consumed; text is the full text being scanned.
type StopFunc func(i int, c byte, st State, text string) bool

// Step returns the state after consuming text[i].
func Step(text string, i int, st State) (State, error) {
	c := text[i]

	if st.skip > 0 {
		st.skip--
		return st, nil
	}

	switch {
	case st.InLineComment:
		if c == '\n' {
			st.InLineComment = false
		}
		return st, nil
	case st.CommentDepth > 0:
		switch {
		case c == '/' && peek(text, i+1) == '*':
			st.CommentDepth++
			st.skip = 1
		case c == '*' && peek(text, i+1) == '/':
			st.CommentDepth--
			st.skip = 1
		}
		return st, nil
	case st.DollarTag != "":
		if c == '$' && strings.HasPrefix(text[i:], st.DollarTag) {
			st.skip = len(st.DollarTag) - 1
			st.DollarTag = ""
		}
		return st, nil
	case st.InSingleQuote:
		switch {
		case c == '\\' && st.escapes:
			st.skip = 1
		case c == '\'' && peek(text, i+1) == '\'':
			st.skip = 1
		case c == '\'':
			st.InSingleQuote = false
			st.escapes = false
		}
		return st, nil
	case st.InDoubleQuote:
		if c == '"' {
			if peek(text, i+1) == '"' {
				st.skip = 1
			} else {
				st.InDoubleQuote = false
			}
		}
		return st, nil
	}

	switch c {
	case '-':
		if peek(text, i+1) == '-' {
			st.InLineComment = true
			st.skip = 1
		}
	case '/':
		if peek(text, i+1) == '*' {
			st.CommentDepth = 1
			st.skip = 1
		}
	case '$':
		if tag := dollarTag(text, i); tag != "" {
			st.DollarTag = tag
			st.skip = len(tag) - 1
		}
	case '\'':
		st.InSingleQuote = true
		st.escapes = i > 0 && (text[i-1] == 'e' || text[i-1] == 'E') && (i < 2 || !isIdentByte(text[i-2]))
	case '"':
		st.InDoubleQuote = true
	case '(':
		st.ParenDepth++
	case '[':
		st.BracketDepth++
	case '{':
		st.BraceDepth++
	case ')':
		if st.ParenDepth == 0 {
			return st, unbalancedAt(c, i)
		}
		st.ParenDepth--
	case ']':
		if st.BracketDepth == 0 {
			return st, unbalancedAt(c, i)
		}
		st.BracketDepth--
	case '}':
		if st.BraceDepth == 0 {
			return st, unbalancedAt(c, i)
		}
		st.BraceDepth--
	}
	return st, nil
}

func peek(text string, i int) byte {
	if i < len(text) {
		return text[i]
	}
	return 0
}

// dollarTag returns the $tag$ delimiter opening at text[i], or "" when the
// dollar sign is a positional parameter or part of an identifier.
func dollarTag(text string, i int) string {
	if i > 0 && isIdentByte(text[i-1]) {
		return ""
	}
	j := i + 1
	if j < len(text) && text[j] != '$' {
		if !isTagStart(text[j]) {
			return ""
		}
		for j < len(text) && (isTagStart(text[j]) || (text[j] >= '0' && text[j] <= '9')) {
			j++
		}
	}
	if j >= len(text) || text[j] != '$' {
		return ""
	}
	return text[i : j+1]
}

func isTagStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

// isIdentByte reports whether c can continue an unquoted identifier
func isIdentByte(c byte) bool {
	return isTagStart(c) || (c >= '0' && c <= '9') || c == '$'
}

// Fold consumes text left to right until stop returns true. It returns the state
// at the stop index and the index itself, or the final state and -1 when the
// predicate never matched.
func Fold(text string, stop StopFunc) (State, int, error) {
	var st State
	for i := 0; i < len(text); i++ {
		if stop != nil && st.skip == 0 && stop(i, text[i], st, text) {
			return st, i, nil
		}
		next, err := Step(text, i, st)
		if err != nil {
			return st, i, err
		}
		st = next
	}
	// End of text terminates a line comment
	st.InLineComment = false
	return st, -1, nil
}

// Next scans text up to the first index where stop matches. Without a match the
// whole text becomes the value, but only when quoting and nesting are balanced.
func Next(text string, stop StopFunc) (Span, error) {
	st, i, err := Fold(text, stop)
	if err != nil {
		return Span{}, err
	}
	if i >= 0 {
		return Span{Value: strings.TrimSpace(text[:i]), Rest: text[i:]}, nil
	}
	if st.Escaped() {
		return Span{}, unbalancedState(st)
	}
	return Span{Value: strings.TrimSpace(text)}, nil
}

// SplitTopLevel splits text on delim wherever the delimiter is not quoted or
// nested. Pieces are trimmed of whitespace and trailing commas; empty pieces
// are dropped.
func SplitTopLevel(text string, delim byte) ([]Span, error) {
	var spans []Span
	rest := text
	for {
		span, err := Next(rest, Unescaped(delim))
		if err != nil {
			return nil, err
		}

		remainder := ""
		if span.Rest != "" {
			remainder = span.Rest[1:]
		}
		value := strings.TrimRight(span.Value, ", \t\r\n")
		if value != "" {
			spans = append(spans, Span{Value: value, Rest: remainder})
		}

		if span.Rest == "" {
			return spans, nil
		}
		rest = remainder
	}
}

// StripComments replaces every -- and /* */ comment outside quoted sections with
// a single space. Quoted text, including dollar quoted bodies, is kept verbatim.
func StripComments(text string) (string, error) {
	var b strings.Builder
	var st State
	comment := false
	for i := 0; i < len(text); i++ {
		before := comment
		if st.skip == 0 {
			comment = st.InLineComment || st.CommentDepth > 0
		}
		next, err := Step(text, i, st)
		if err != nil {
			return "", err
		}
		if st.skip == 0 && !comment && (next.InLineComment || next.CommentDepth > 0) {
			comment = true
		}
		st = next

		switch {
		case !comment:
			b.WriteByte(text[i])
		case !before:
			b.WriteByte(' ')
		}
	}
	return b.String(), nil
}

// Unescaped stops at any of the given bytes outside quotes and brackets
func Unescaped(stops ...byte) StopFunc {
	return func(_ int, c byte, st State, _ string) bool {
		if st.Escaped() {
			return false
		}
		for _, s := range stops {
			if c == s {
				return true
			}
		}
		return false
	}
}

// UnescapedSpace stops at the first whitespace byte outside quotes and brackets
func UnescapedSpace(_ int, c byte, st State, _ string) bool {
	return !st.Escaped() && IsSpace(c)
}

// ClosingParen stops at the ')' that closes a '(' opened at the start of text
func ClosingParen(_ int, c byte, st State, _ string) bool {
	return c == ')' && st.ParenDepth == 1 && !st.Quoted() && st.BracketDepth == 0 && st.BraceDepth == 0
}

// IsSpace reports whether c is an ASCII whitespace byte
func IsSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}

// Unquote strips surrounding double quotes from an identifier and collapses
// doubled quotes inside it. Unquoted identifiers are returned unchanged.
func Unquote(ident string) string {
	if len(ident) >= 2 && ident[0] == '"' && ident[len(ident)-1] == '"' {
		return strings.ReplaceAll(ident[1:len(ident)-1], `""`, `"`)
	}
	return ident
}

// SplitQualified splits a possibly schema-qualified identifier at top-level dots
// and unquotes each part.
func SplitQualified(name string) ([]string, error) {
	spans, err := SplitTopLevel(name, '.')
	if err != nil {
		return nil, err
	}
	parts := make([]string, 0, len(spans))
	for _, s := range spans {
		parts = append(parts, Unquote(s.Value))
	}
	return parts, nil
}

func unbalancedAt(c byte, i int) error {
	return errors.NewParseError(errors.Unbalanced, "", fmt.Sprintf("unexpected %q at offset %d", c, i))
}

func unbalancedState(st State) error {
	var msg string
	switch {
	case st.InDoubleQuote:
		msg = `unterminated " quote`
	case st.InSingleQuote:
		msg = "unterminated ' quote"
	case st.CommentDepth > 0:
		msg = "unterminated /* comment"
	case st.DollarTag != "":
		msg = "unterminated " + st.DollarTag + " string"
	case st.ParenDepth > 0:
		msg = fmt.Sprintf("%d unclosed '('", st.ParenDepth)
	case st.BracketDepth > 0:
		msg = fmt.Sprintf("%d unclosed '['", st.BracketDepth)
	default:
		msg = fmt.Sprintf("%d unclosed '{'", st.BraceDepth)
	}
	return errors.NewParseError(errors.Unbalanced, "", msg)
}
