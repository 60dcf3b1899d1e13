// Package discover builds a starter manifest from the log files found under
// a directory.
package discover

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/modoterra/tailsync/pkg/manifest"
)

// DefaultGlob matches the files picked up when no pattern is given.
const DefaultGlob = "*.log"

// maxDepth limits how many directory levels below root are searched.
const maxDepth = 3

// FromDir creates a manifest tailing every file under root whose base name
// matches glob. Hidden directories are skipped. Sources are absolute and
// sorted lexically.
func FromDir(root, glob string) (*manifest.Manifest, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", absRoot)
	}

	if glob == "" {
		glob = DefaultGlob
	}
	if _, err := filepath.Match(glob, ""); err != nil {
		return nil, fmt.Errorf("bad glob %q: %w", glob, err)
	}

	var sources []string
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == absRoot {
				return nil
			}
			if strings.HasPrefix(d.Name(), ".") || depth(absRoot, path) > maxDepth {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if ok, _ := filepath.Match(glob, d.Name()); ok {
			sources = append(sources, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", absRoot, err)
	}

	if len(sources) == 0 {
		return nil, fmt.Errorf("no files matching %q under %s", glob, absRoot)
	}

	return &manifest.Manifest{
		Version: 1,
		Root:    absRoot,
		Sources: sources,
	}, nil
}

func depth(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}
