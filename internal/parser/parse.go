package parser

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cybertec-postgresql/pgscript/internal/discovery"
)

// Parse reads a discovered SQL file and classifies its content. The relative
// path is used as the logical source path so names do not depend on the
// directory the tool was started from.
func Parse(file *discovery.DiscoveredFile, c *Classifier) (*Classification, error) {
	content, err := os.ReadFile(file.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if c == nil {
		c = NewClassifier()
	}

	source := file.RelativePath
	if source == "" {
		source = file.Path
	}
	return c.Classify(string(content), filepath.ToSlash(source))
}

// ParseFile is a convenience function that parses a file path directly
func ParseFile(filePath string) (*Classification, error) {
	file := &discovery.DiscoveredFile{
		Path: filePath,
		Type: discovery.ClassifyFile(filePath),
	}
	return Parse(file, nil)
}
