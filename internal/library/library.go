// Package library resolves the package that exports the marker types.
//
// Every marker a rewrite emits is qualified with that package's name, so
// the name is resolved once at the start of a run and handed to every
// component as a Library value. A failed resolution ends the run.
package library

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/tools/go/packages"
)

// DefaultPath is the import path of the marker package.
const DefaultPath = "github.com/roach88/pre"

// ErrUnresolved is returned when the marker package cannot be loaded.
var ErrUnresolved = errors.New("cannot resolve the marker package")

// Library identifies the marker package.
type Library struct {
	// Path is the import path.
	Path string
	// Name is the package name declared by the package clause.
	Name string
}

// Default is the marker package as published.
func Default() Library {
	return Library{Path: DefaultPath, Name: "pre"}
}

func (l Library) String() string {
	return fmt.Sprintf("%s (%s)", l.Path, l.Name)
}

// Loader looks up the package name for an import path relative to a
// module directory. It is satisfied by LoadName and swapped out in tests.
type Loader func(ctx context.Context, dir, path string) (string, error)

// Resolver caches the result of the first resolution.
type Resolver struct {
	Dir  string
	Load Loader

	once sync.Once
	lib  Library
	err  error
}

// NewResolver returns a resolver loading packages from dir.
func NewResolver(dir string) *Resolver {
	return &Resolver{Dir: dir, Load: LoadName}
}

// Resolve returns the library for path. Only the first call does any work;
// later calls return the cached result whatever path they pass.
func (r *Resolver) Resolve(ctx context.Context, path string) (Library, error) {
	r.once.Do(func() {
		load := r.Load
		if load == nil {
			load = LoadName
		}
		name, err := load(ctx, r.Dir, path)
		if err != nil {
			r.err = fmt.Errorf("%w %q: %v", ErrUnresolved, path, err)
			return
		}
		r.lib = Library{Path: path, Name: name}
	})
	return r.lib, r.err
}

// LoadName loads path with go/packages and returns its package name.
func LoadName(ctx context.Context, dir, path string) (string, error) {
	cfg := &packages.Config{
		Context: ctx,
		Mode:    packages.NeedName,
		Dir:     dir,
	}
	pkgs, err := packages.Load(cfg, path)
	if err != nil {
		return "", err
	}
	if len(pkgs) != 1 {
		return "", fmt.Errorf("pattern matched %d packages", len(pkgs))
	}
	pkg := pkgs[0]
	if len(pkg.Errors) > 0 {
		return "", pkg.Errors[0]
	}
	if pkg.Name == "" {
		return "", errors.New("package has no name")
	}
	return pkg.Name, nil
}
