package parser

import (
	"github.com/cybertec-postgresql/pgscript/internal/discovery"
	"github.com/cybertec-postgresql/pgscript/internal/errors"
)

// ParseMigration builds one half of a migration pair. The direction comes from
// the file suffix alone; the script content is not inspected.
func ParseMigration(script, sourcePath string) (*MigrationDefinition, error) {
	name, dir, ok := MigrationBaseName(sourcePath)
	if !ok {
		return nil, errors.NewParseError(errors.MigrationNotFound, sourcePath, "missing "+discovery.UpSuffix+" or "+discovery.DownSuffix+" suffix")
	}
	return &MigrationDefinition{
		Name:       name,
		Direction:  dir,
		Script:     script,
		SourcePath: sourcePath,
	}, nil
}

// MigrationBaseName returns the name shared by both halves of a migration pair,
// e.g. "001_users" for "migrations/001_users.up.sql", and the direction the
// path implements.
func MigrationBaseName(path string) (string, MigrationDirection, bool) {
	switch discovery.ClassifyFile(path) {
	case discovery.FileTypeUp:
		return discovery.MigrationName(path), Up, true
	case discovery.FileTypeDown:
		return discovery.MigrationName(path), Down, true
	default:
		return "", Up, false
	}
}
