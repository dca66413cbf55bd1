package parser

import (
	stderrors "errors"
	"fmt"

	"github.com/cybertec-postgresql/pgscript/internal/errors"
)

// ParseFunc parses a script into a resource of a single kind. A failure of
// type *errors.ParseError means "not this kind" to the Classifier.
type ParseFunc func(script, sourcePath string) (Resource, error)

// Parser pairs a resource kind with its parse function
type Parser struct {
	Kind  Kind
	Parse ParseFunc
}

var (
	MigrationParser = Parser{Kind: KindMigration, Parse: func(script, sourcePath string) (Resource, error) {
		m, err := ParseMigration(script, sourcePath)
		if err != nil {
			return nil, err
		}
		return m, nil
	}}

	FunctionParser = Parser{Kind: KindFunction, Parse: func(script, sourcePath string) (Resource, error) {
		f, err := ParseFunction(script, sourcePath)
		if err != nil {
			return nil, err
		}
		return f, nil
	}}

	QueryParser = Parser{Kind: KindQuery, Parse: func(script, sourcePath string) (Resource, error) {
		q, err := ParseQuery(script, sourcePath)
		if err != nil {
			return nil, err
		}
		return q, nil
	}}
)

// Classifier tries its parsers in order and keeps the first success
type Classifier struct {
	parsers []Parser
}

// NewClassifier creates a classifier over the given parsers. Without arguments
// the default order Migration, Function, Query is used.
func NewClassifier(parsers ...Parser) *Classifier {
	if len(parsers) == 0 {
		parsers = []Parser{MigrationParser, FunctionParser, QueryParser}
	}
	return &Classifier{parsers: parsers}
}

// Classification is the outcome of classifying one script
type Classification struct {
	Resource Resource
	Attempts []error // Failures of the parsers tried before the winning one
}

// Malformed returns the attempt that recognised the script's kind but could not
// parse it, e.g. a create function script with a broken parameter list.
func (c *Classification) Malformed() error {
	for _, err := range c.Attempts {
		if errors.IsParseError(err) && !wrongKind(err) {
			return err
		}
	}
	return nil
}

// wrongKind reports whether a parser rejected the script as not being its kind
func wrongKind(err error) bool {
	return stderrors.Is(err, errors.FunctionNotFound) || stderrors.Is(err, errors.MigrationNotFound)
}

// Unbalanced returns the first attempt that failed on unbalanced quoting or nesting
func (c *Classification) Unbalanced() error {
	for _, err := range c.Attempts {
		if errors.IsUnbalanced(err) {
			return err
		}
	}
	return nil
}

// Classify returns the first resource any parser accepts. Parse errors only
// advance to the next parser; any other error is returned immediately.
func (c *Classifier) Classify(script, sourcePath string) (*Classification, error) {
	result := &Classification{}
	for _, p := range c.parsers {
		res, err := p.Parse(script, sourcePath)
		if err == nil {
			result.Resource = res
			return result, nil
		}
		if !errors.IsParseError(err) {
			return nil, fmt.Errorf("%s: classify as %s: %w", sourcePath, p.Kind, err)
		}
		result.Attempts = append(result.Attempts, err)
	}
	return result, fmt.Errorf("%s: %w", sourcePath, errors.ErrNoResource)
}

// Classify classifies a script with the default parser order
func Classify(script, sourcePath string) (Resource, error) {
	c, err := NewClassifier().Classify(script, sourcePath)
	if err != nil {
		return nil, err
	}
	return c.Resource, nil
}
