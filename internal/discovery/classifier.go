package discovery

import (
	"path/filepath"
	"strings"
)

const (
	UpSuffix   = ".up.sql"
	DownSuffix = ".down.sql"
)

// ClassifyFile determines the file type from the name's suffix, case-insensitively
func ClassifyFile(filename string) FileType {
	base := filepath.Base(filename)
	lower := strings.ToLower(base)

	switch {
	case strings.HasSuffix(lower, UpSuffix) && len(base) > len(UpSuffix):
		return FileTypeUp
	case strings.HasSuffix(lower, DownSuffix) && len(base) > len(DownSuffix):
		return FileTypeDown
	default:
		return FileTypeScript
	}
}

// MigrationName returns the name shared by both halves of a migration pair, or
// "" when filename is not a migration script.
func MigrationName(filename string) string {
	base := filepath.Base(filename)
	switch ClassifyFile(base) {
	case FileTypeUp:
		return base[:len(base)-len(UpSuffix)]
	case FileTypeDown:
		return base[:len(base)-len(DownSuffix)]
	default:
		return ""
	}
}

// IsMigrationFile returns true for *.up.sql and *.down.sql files
func IsMigrationFile(filename string) bool {
	return ClassifyFile(filename) != FileTypeScript
}

// SiblingDownPath returns the path the down script of an up script must have
func SiblingDownPath(upPath string) string {
	return filepath.Join(filepath.Dir(upPath), MigrationName(upPath)+DownSuffix)
}
