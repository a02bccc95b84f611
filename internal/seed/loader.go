// Package seed loads course catalogs from YAML files and imports them
// through the catalog service, so seeded content passes the same
// validation as content created over the API.
package seed

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader reads course catalogs from a directory tree.
type Loader struct {
	rootDir  string
	catalogs []Catalog
}

// NewLoader walks rootDir and loads every course catalog in it. Files that
// are not valid YAML, or that do not describe a course, are skipped.
func NewLoader(rootDir string) (*Loader, error) {
	info, err := os.Stat(rootDir)
	if err != nil {
		return nil, fmt.Errorf("seed path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("seed path %s is not a directory", rootDir)
	}

	l := &Loader{rootDir: rootDir}
	if err := l.loadAll(); err != nil {
		return nil, fmt.Errorf("loading seed catalogs: %w", err)
	}

	slog.Info("seed catalogs loaded", "path", rootDir, "catalogs", len(l.catalogs))
	return l, nil
}

// Catalogs returns the loaded catalogs ordered by file path.
func (l *Loader) Catalogs() []Catalog {
	return append([]Catalog(nil), l.catalogs...)
}

func (l *Loader) loadAll() error {
	err := filepath.WalkDir(l.rootDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if isQuizFile(path) {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		return l.loadCatalog(path)
	})
	if err != nil {
		return err
	}
	sort.Slice(l.catalogs, func(i, j int) bool {
		return l.catalogs[i].path < l.catalogs[j].path
	})
	return nil
}

func (l *Loader) loadCatalog(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		slog.Warn("skipping invalid catalog YAML", "path", path, "error", err)
		return nil
	}
	if strings.TrimSpace(c.Course.Title) == "" {
		return nil // Not a catalog file
	}

	c.path = path
	l.catalogs = append(l.catalogs, c)
	return nil
}

// isQuizFile reports whether path is a standalone quiz document referenced
// from a catalog rather than a catalog itself.
func isQuizFile(path string) bool {
	base := strings.ToLower(filepath.Base(path))
	return strings.HasSuffix(base, ".quiz.yaml") || strings.HasSuffix(base, ".quiz.yml")
}
