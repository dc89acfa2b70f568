package scan

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/legacyscape/depgraph/internal/common"
)

// Category classifies a discovered source file by extension.
type Category string

const (
	CategoryProgram Category = "program"
	CategoryInclude Category = "include"
	CategoryJCL     Category = "jcl"
	CategorySQL     Category = "sql"
)

var extensions = map[string]Category{
	".pl1": CategoryProgram,
	".pli": CategoryProgram,
	".inc": CategoryInclude,
	".jcl": CategoryJCL,
	".sql": CategorySQL,
}

// Warning records a non-fatal discovery problem: an unreadable file or a stem
// collision between roots. Collisions keep the first match.
type Warning struct {
	Kind string `json:"kind"`
	Name string `json:"name,omitempty"`
	Path string `json:"path"`
	Kept string `json:"kept,omitempty"`
}

// Index maps normalized member names (upper-cased file stems) to absolute
// paths, one map per category. It is built once by Scan and never mutated
// afterwards; parsers and the linker receive it by reference.
type Index struct {
	Programs map[string]string
	Includes map[string]string
	JCL      map[string]string
	SQL      map[string]string
	Warnings []Warning
}

// Lookup returns the indexed path for a member name in the given category.
func (ix *Index) Lookup(cat Category, name string) (string, bool) {
	m := ix.byCategory(cat)
	if m == nil {
		return "", false
	}
	path, ok := m[Normalize(name)]
	return path, ok
}

func (ix *Index) byCategory(cat Category) map[string]string {
	switch cat {
	case CategoryProgram:
		return ix.Programs
	case CategoryInclude:
		return ix.Includes
	case CategoryJCL:
		return ix.JCL
	case CategorySQL:
		return ix.SQL
	}
	return nil
}

// Normalize maps a file stem or member reference to its index key.
func Normalize(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// Scan walks each root recursively and indexes every file with a known source
// extension. An unreadable root is fatal; an unreadable entry below a root is
// recorded as a warning and skipped. When two files share a stem within one
// category the first match wins and the loser is recorded as a collision.
func Scan(roots ...string) (*Index, error) {
	logger := common.Logger()
	ix := &Index{
		Programs: make(map[string]string),
		Includes: make(map[string]string),
		JCL:      make(map[string]string),
		SQL:      make(map[string]string),
	}
	for _, root := range roots {
		root = strings.TrimSpace(root)
		if root == "" {
			continue
		}
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("scan root %s: %w", root, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("scan root %s: not a directory", root)
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				if path == root {
					return walkErr
				}
				ix.Warnings = append(ix.Warnings, Warning{Kind: "unreadable", Path: path})
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			cat, ok := extensions[strings.ToLower(filepath.Ext(path))]
			if !ok {
				return nil
			}
			abs, absErr := filepath.Abs(path)
			if absErr != nil {
				abs = path
			}
			stem := Normalize(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
			m := ix.byCategory(cat)
			if existing, dup := m[stem]; dup {
				ix.Warnings = append(ix.Warnings, Warning{Kind: "collision", Name: stem, Path: abs, Kept: existing})
				return nil
			}
			m[stem] = abs
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scan root %s: %w", root, err)
		}
	}
	logger.Info("scan: index built",
		"programs", len(ix.Programs), "includes", len(ix.Includes),
		"jcl", len(ix.JCL), "sql", len(ix.SQL), "warnings", len(ix.Warnings))
	return ix, nil
}
