// Package report renders script definitions, run outcomes and migration
// status for the command line.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/cybertec-postgresql/pgscript/internal/registry"
	"github.com/cybertec-postgresql/pgscript/internal/runner"
)

// Formatter writes command results in one output format
type Formatter interface {
	// Definitions lists the functions, queries and migrations of a loaded tree
	Definitions(w io.Writer, reg *registry.Registry) error

	// Runs reports the outcome of each run and a summary
	Runs(w io.Writer, runs []*runner.Run, elapsed time.Duration) error

	// Status reports the state of every declared and recorded unit
	Status(w io.Writer, entries []runner.StatusEntry) error

	// Name returns the name of this formatter
	Name() string
}

// FormatType represents supported output formats
type FormatType string

const (
	FormatText FormatType = "text"
	FormatJSON FormatType = "json"
)

// GetFormatter returns a formatter for the specified format type, text when
// the format is empty
func GetFormatter(format FormatType) (Formatter, error) {
	switch format {
	case "", FormatText:
		return NewTextFormatter(), nil
	case FormatJSON:
		return NewJSONFormatter(), nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (supported: text, json)", format)
	}
}

// ValidFormat checks if a format string is valid
func ValidFormat(format string) bool {
	switch FormatType(format) {
	case "", FormatText, FormatJSON:
		return true
	default:
		return false
	}
}

// SupportedFormats returns a list of supported format names
func SupportedFormats() []string {
	return []string{string(FormatText), string(FormatJSON)}
}
