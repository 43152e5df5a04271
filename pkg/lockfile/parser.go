package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

const DefaultName = "Cargo.lock"

var ErrNotFound = errors.New("lockfile not found")

type Dependency struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
	Source  string `toml:"source"`
}

// Lockfile is the package list of a Cargo.lock.
type Lockfile struct {
	Path     string       `toml:"-"`
	Version  int          `toml:"version"`
	Packages []Dependency `toml:"package"`
}

// Resolve returns the lockfile path for a run: file relative to workDir, or
// Cargo.lock in workDir when file is empty.
func Resolve(workDir, file string) (string, error) {
	path := file
	if path == "" {
		path = DefaultName
	}
	if !filepath.IsAbs(path) && workDir != "" {
		path = filepath.Join(workDir, path)
	}

	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return "", fmt.Errorf("%w: %s", ErrNotFound, path)
	case err != nil:
		return "", fmt.Errorf("stat lockfile: %w", err)
	case info.IsDir():
		return "", fmt.Errorf("lockfile %s is a directory", path)
	}
	return path, nil
}

func Parse(path string) (*Lockfile, error) {
	var lf Lockfile
	if _, err := toml.DecodeFile(path, &lf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(lf.Packages) == 0 {
		return nil, fmt.Errorf("parse %s: no [[package]] entries", path)
	}
	lf.Path = path
	sort.SliceStable(lf.Packages, func(i, j int) bool {
		if lf.Packages[i].Name != lf.Packages[j].Name {
			return lf.Packages[i].Name < lf.Packages[j].Name
		}
		return lf.Packages[i].Version < lf.Packages[j].Version
	})
	return &lf, nil
}

// Contains reports whether the lockfile pins name at version.
func (lf *Lockfile) Contains(name, version string) bool {
	i := sort.Search(len(lf.Packages), func(i int) bool {
		p := lf.Packages[i]
		return p.Name > name || (p.Name == name && p.Version >= version)
	})
	return i < len(lf.Packages) && lf.Packages[i].Name == name && lf.Packages[i].Version == version
}

// Registry returns the number of packages pulled from a registry rather than
// a path or git source.
func (lf *Lockfile) Registry() int {
	n := 0
	for _, p := range lf.Packages {
		if strings.HasPrefix(p.Source, "registry+") {
			n++
		}
	}
	return n
}
