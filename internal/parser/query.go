package parser

import (
	"path/filepath"
	"regexp"
	"strings"
)

// queryNameRe matches "-- name: x" or "-- name x" anywhere in the script
var queryNameRe = regexp.MustCompile(`(?i)--[ \t]*name(?:[ \t]*:[ \t]*|[ \t]+)([A-Za-z_][A-Za-z0-9_$.\-]*)`)

// ParseQuery wraps any script as a named query. It never fails.
func ParseQuery(script, sourcePath string) (*QueryDefinition, error) {
	return &QueryDefinition{
		Name:       QueryName(script, sourcePath),
		Script:     script,
		SourcePath: sourcePath,
	}, nil
}

// QueryName resolves the name of a query script: an in-script name comment
// wins over the file name without its .sql extension.
func QueryName(script, sourcePath string) string {
	if m := queryNameRe.FindStringSubmatch(script); m != nil {
		return m[1]
	}
	base := filepath.Base(sourcePath)
	if ext := filepath.Ext(base); strings.EqualFold(ext, ".sql") {
		base = base[:len(base)-len(ext)]
	}
	return base
}
