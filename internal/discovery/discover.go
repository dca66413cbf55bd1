package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cybertec-postgresql/pgscript/internal/errors"
)

// Discover recursively finds all SQL files in the given directory, sorted by
// relative path.
func Discover(rootPath string) ([]DiscoveredFile, error) {
	absRoot, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	// Check if directory exists
	info, err := os.Stat(absRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("directory not found: %s", absRoot)
		}
		return nil, fmt.Errorf("failed to access directory: %w", err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", absRoot)
	}

	var files []DiscoveredFile

	err = filepath.WalkDir(absRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			// Skip directories we can't access
			if os.IsPermission(err) {
				return nil
			}
			return err
		}

		if d.IsDir() {
			// Hidden directories (.git and friends) never hold scripts
			if path != absRoot && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if !strings.HasSuffix(strings.ToLower(path), ".sql") {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", path, err)
		}

		relPath, err := filepath.Rel(absRoot, path)
		if err != nil {
			return fmt.Errorf("failed to get relative path: %w", err)
		}

		files = append(files, DiscoveredFile{
			Path:         path,
			RelativePath: relPath,
			Type:         ClassifyFile(path),
			ModTime:      fi.ModTime(),
		})

		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].RelativePath < files[j].RelativePath
	})

	return files, nil
}

// Pair matches every up script to its sibling down script. It fails on the
// first up script without one, naming the missing path, so a broken tree is
// rejected before anything is registered.
func Pair(files []DiscoveredFile) (*Layout, error) {
	type key struct{ dir, name string }

	downs := make(map[key]DiscoveredFile)
	for _, f := range files {
		if f.Type == FileTypeDown {
			downs[key{filepath.Dir(f.Path), MigrationName(f.Path)}] = f
		}
	}

	layout := &Layout{}
	paired := make(map[key]bool)
	for _, f := range files {
		switch f.Type {
		case FileTypeScript:
			layout.Scripts = append(layout.Scripts, f)
		case FileTypeUp:
			k := key{filepath.Dir(f.Path), MigrationName(f.Path)}
			down, ok := downs[k]
			if !ok {
				return nil, errors.NewDownMigrationNotDefinedError(f.Path, SiblingDownPath(f.Path))
			}
			paired[k] = true
			layout.Migrations = append(layout.Migrations, MigrationPair{Name: k.name, Up: f, Down: down})
		}
	}

	for _, f := range files {
		if f.Type == FileTypeDown && !paired[key{filepath.Dir(f.Path), MigrationName(f.Path)}] {
			layout.OrphanDowns = append(layout.OrphanDowns, f)
		}
	}

	sort.SliceStable(layout.Migrations, func(i, j int) bool {
		a, b := layout.Migrations[i], layout.Migrations[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Up.RelativePath < b.Up.RelativePath
	})

	return layout, nil
}

// DiscoverLayout discovers rootPath and pairs its migrations
func DiscoverLayout(rootPath string) (*Layout, error) {
	files, err := Discover(rootPath)
	if err != nil {
		return nil, err
	}
	return Pair(files)
}
