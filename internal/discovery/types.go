package discovery

import "time"

// DiscoveredFile represents a SQL file discovered during filesystem traversal
type DiscoveredFile struct {
	Path         string    // Absolute path to file
	RelativePath string    // Path relative to search root
	Type         FileType  // Up, Down or Script
	ModTime      time.Time // Last modification time
}

// FileType indicates the role a file plays, derived from its name alone
type FileType int

const (
	FileTypeScript FileType = iota // Any other *.sql, a function or query by content
	FileTypeUp                     // Matches *.up.sql
	FileTypeDown                   // Matches *.down.sql
)

// String returns a string representation of FileType
func (ft FileType) String() string {
	switch ft {
	case FileTypeScript:
		return "script"
	case FileTypeUp:
		return "up"
	case FileTypeDown:
		return "down"
	default:
		return "unknown"
	}
}

// MigrationPair is an up script and its sibling down script
type MigrationPair struct {
	Name string
	Up   DiscoveredFile
	Down DiscoveredFile
}

// Layout is a discovered tree split into migration pairs and plain scripts
type Layout struct {
	Migrations  []MigrationPair  // Sorted by name, then directory
	Scripts     []DiscoveredFile // Sorted by relative path
	OrphanDowns []DiscoveredFile // Down scripts without an up script
}
